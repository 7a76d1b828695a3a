package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store with the same semantics as PgStore. The
// mutex stands in for the row-level atomicity of the database, so the
// adjuster behaves identically under concurrent callers. Used by tests and
// handy for local development.
type MemStore struct {
	mu   sync.Mutex
	docs map[string]*StockDocument
}

func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]*StockDocument)}
}

func shiftKey(centerID string, shiftDate time.Time, shiftName string) string {
	return fmt.Sprintf("%s|%s|%s", centerID, shiftDate.Format("2006-01-02"), shiftName)
}

// snapshot copies the document so callers cannot reach the live line slice.
func snapshot(d *StockDocument) StockDocument {
	out := *d
	out.Lines = append([]StockLine(nil), d.Lines...)
	return out
}

func (s *MemStore) FindOrCreateDocument(_ context.Context, centerID string, shiftDate time.Time, shiftName, createdBy string) (StockDocument, error) {
	if centerID == "" || shiftName == "" {
		return StockDocument{}, fmt.Errorf("%w: missing center or shift name", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.docs {
		if shiftKey(d.CenterID, d.ShiftDate, d.ShiftName) == shiftKey(centerID, shiftDate, shiftName) {
			return snapshot(d), nil
		}
	}
	d := &StockDocument{
		ID:        uuid.NewString(),
		CenterID:  centerID,
		ShiftDate: shiftDate,
		ShiftName: shiftName,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	s.docs[d.ID] = d
	return snapshot(d), nil
}

func (s *MemStore) FindDocument(_ context.Context, centerID string, shiftDate time.Time, shiftName string) (StockDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if shiftKey(d.CenterID, d.ShiftDate, d.ShiftName) == shiftKey(centerID, shiftDate, shiftName) {
			return snapshot(d), nil
		}
	}
	return StockDocument{}, ErrNotFound
}

func (s *MemStore) GetDocument(_ context.Context, documentID string) (StockDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[documentID]
	if !ok {
		return StockDocument{}, ErrNotFound
	}
	return snapshot(d), nil
}

func (s *MemStore) GetLine(_ context.Context, documentID, lineID string) (StockLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.line(documentID, lineID)
	if l == nil {
		return StockLine{}, ErrNotFound
	}
	return *l, nil
}

// line must be called with the mutex held.
func (s *MemStore) line(documentID, lineID string) *StockLine {
	d, ok := s.docs[documentID]
	if !ok {
		return nil
	}
	for i := range d.Lines {
		if d.Lines[i].ID == lineID {
			return &d.Lines[i]
		}
	}
	return nil
}

func (s *MemStore) AddLine(_ context.Context, documentID string, in LineInput) (StockLine, error) {
	if err := validateLineInput(in); err != nil {
		return StockLine{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[documentID]
	if !ok {
		return StockLine{}, ErrNotFound
	}
	for _, l := range d.Lines {
		if l.FarmerID == in.FarmerID && l.ItemID == in.ItemID {
			return StockLine{}, ErrDuplicateLine
		}
	}
	now := time.Now().UTC()
	l := StockLine{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		ItemID:      in.ItemID,
		Name:        in.Name,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
		PriceCents:  in.PriceCents,
		OriginalKg:  in.QuantityKg,
		AvailableKg: in.QuantityKg,
		FarmerID:    in.FarmerID,
		FarmerName:  in.FarmerName,
		Status:      LineActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.Lines = append(d.Lines, l)
	return l, nil
}

func (s *MemStore) RemoveLine(_ context.Context, documentID, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.line(documentID, lineID)
	if l == nil || l.Status == LineRemoved {
		return ErrNotFound
	}
	l.Status = LineRemoved
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) SetLineStatus(_ context.Context, documentID, lineID string, to LineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.line(documentID, lineID)
	if l == nil {
		return ErrNotFound
	}
	if !CanTransitionLine(l.Status, to) {
		return ErrBadTransition
	}
	l.Status = to
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) AdjustQuantity(_ context.Context, documentID, lineID string, deltaKg float64, enforce bool) (float64, error) {
	if err := ValidateDelta(deltaKg); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.line(documentID, lineID)
	if l == nil || l.Status == LineRemoved {
		return 0, ErrNotFound
	}
	if enforce && deltaKg < 0 && l.AvailableKg+deltaKg < 0 {
		return 0, ErrInsufficientStock
	}
	l.AvailableKg = ClampQuantity(l.AvailableKg, deltaKg, l.OriginalKg)
	l.UpdatedAt = time.Now().UTC()
	return l.AvailableKg, nil
}
