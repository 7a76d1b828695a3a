package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the production Store over Postgres.
type PgStore struct{ DB *pgxpool.Pool }

func (s *PgStore) FindOrCreateDocument(ctx context.Context, centerID string, shiftDate time.Time, shiftName, createdBy string) (StockDocument, error) {
	if centerID == "" || shiftName == "" {
		return StockDocument{}, fmt.Errorf("%w: missing center or shift name", ErrInvalidInput)
	}
	// ON CONFLICT DO NOTHING + re-select keeps concurrent first publications
	// converging on one row.
	_, err := s.DB.Exec(ctx, `
		INSERT INTO stock_documents(id, center_id, shift_date, shift_name, created_by)
		VALUES ($1, $2, $3::date, $4, $5)
		ON CONFLICT (center_id, shift_date, shift_name) DO NOTHING`,
		uuid.NewString(), centerID, shiftDate.Format("2006-01-02"), shiftName, createdBy)
	if err != nil {
		return StockDocument{}, err
	}
	return s.FindDocument(ctx, centerID, shiftDate, shiftName)
}

func (s *PgStore) FindDocument(ctx context.Context, centerID string, shiftDate time.Time, shiftName string) (StockDocument, error) {
	var d StockDocument
	err := s.DB.QueryRow(ctx, `
		SELECT id, center_id, shift_date, shift_name, created_by, created_at
		FROM stock_documents
		WHERE center_id=$1 AND shift_date=$2::date AND shift_name=$3`,
		centerID, shiftDate.Format("2006-01-02"), shiftName).
		Scan(&d.ID, &d.CenterID, &d.ShiftDate, &d.ShiftName, &d.CreatedBy, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockDocument{}, ErrNotFound
	}
	if err != nil {
		return StockDocument{}, err
	}
	d.Lines, err = s.lines(ctx, d.ID)
	return d, err
}

func (s *PgStore) GetDocument(ctx context.Context, documentID string) (StockDocument, error) {
	var d StockDocument
	err := s.DB.QueryRow(ctx, `
		SELECT id, center_id, shift_date, shift_name, created_by, created_at
		FROM stock_documents WHERE id=$1`, documentID).
		Scan(&d.ID, &d.CenterID, &d.ShiftDate, &d.ShiftName, &d.CreatedBy, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockDocument{}, ErrNotFound
	}
	if err != nil {
		return StockDocument{}, err
	}
	d.Lines, err = s.lines(ctx, d.ID)
	return d, err
}

func (s *PgStore) lines(ctx context.Context, documentID string) ([]StockLine, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, document_id, item_id, name, image_url, category, price_cents,
		       original_kg, available_kg, farmer_id, farmer_name, status, created_at, updated_at
		FROM stock_lines WHERE document_id=$1 ORDER BY created_at, id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockLine
	for rows.Next() {
		var l StockLine
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.ItemID, &l.Name, &l.ImageURL, &l.Category,
			&l.PriceCents, &l.OriginalKg, &l.AvailableKg, &l.FarmerID, &l.FarmerName,
			&l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PgStore) GetLine(ctx context.Context, documentID, lineID string) (StockLine, error) {
	var l StockLine
	err := s.DB.QueryRow(ctx, `
		SELECT id, document_id, item_id, name, image_url, category, price_cents,
		       original_kg, available_kg, farmer_id, farmer_name, status, created_at, updated_at
		FROM stock_lines WHERE document_id=$1 AND id=$2`, documentID, lineID).
		Scan(&l.ID, &l.DocumentID, &l.ItemID, &l.Name, &l.ImageURL, &l.Category,
			&l.PriceCents, &l.OriginalKg, &l.AvailableKg, &l.FarmerID, &l.FarmerName,
			&l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLine{}, ErrNotFound
	}
	return l, err
}

func (s *PgStore) AddLine(ctx context.Context, documentID string, in LineInput) (StockLine, error) {
	if err := validateLineInput(in); err != nil {
		return StockLine{}, err
	}

	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_documents WHERE id=$1)`,
		documentID).Scan(&exists); err != nil {
		return StockLine{}, err
	}
	if !exists {
		return StockLine{}, ErrNotFound
	}

	id := uuid.NewString()
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO stock_lines(id, document_id, item_id, name, image_url, category,
		                        price_cents, original_kg, available_kg, farmer_id, farmer_name, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8,$9,$10,'ACTIVE')
		ON CONFLICT (document_id, farmer_id, item_id) DO NOTHING`,
		id, documentID, in.ItemID, in.Name, in.ImageURL, in.Category,
		in.PriceCents, in.QuantityKg, in.FarmerID, in.FarmerName)
	if err != nil {
		return StockLine{}, err
	}
	if ct.RowsAffected() == 0 {
		return StockLine{}, ErrDuplicateLine
	}
	return s.GetLine(ctx, documentID, id)
}

func validateLineInput(in LineInput) error {
	if in.ItemID == "" || in.FarmerID == "" || in.Name == "" {
		return fmt.Errorf("%w: missing line fields", ErrInvalidInput)
	}
	if in.QuantityKg <= 0 {
		return fmt.Errorf("%w: quantity for item %s", ErrInvalidInput, in.ItemID)
	}
	if in.PriceCents < 0 {
		return fmt.Errorf("%w: price for item %s", ErrInvalidInput, in.ItemID)
	}
	return nil
}

func (s *PgStore) RemoveLine(ctx context.Context, documentID, lineID string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE stock_lines SET status='REMOVED', updated_at=now()
		WHERE document_id=$1 AND id=$2 AND status <> 'REMOVED'`, documentID, lineID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) SetLineStatus(ctx context.Context, documentID, lineID string, to LineStatus) error {
	froms := transitionSources(to)
	if len(froms) == 0 {
		return ErrBadTransition
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE stock_lines SET status=$3, updated_at=now()
		WHERE document_id=$1 AND id=$2 AND status = ANY($4)`,
		documentID, lineID, string(to), froms)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetLine(ctx, documentID, lineID); err != nil {
		return err
	}
	return ErrBadTransition
}

// transitionSources lists the statuses a line may leave to reach the target.
func transitionSources(to LineStatus) []string {
	var out []string
	for from := range validLineNext {
		if CanTransitionLine(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

// AdjustQuantity is the one mutation path for available_kg. The clamp, the
// sufficiency precondition and the write are a single statement, so two
// reservations racing for the last kilograms serialize on the row and
// exactly one can win.
func (s *PgStore) AdjustQuantity(ctx context.Context, documentID, lineID string, deltaKg float64, enforce bool) (float64, error) {
	if err := ValidateDelta(deltaKg); err != nil {
		return 0, err
	}

	var remaining float64
	err := s.DB.QueryRow(ctx, `
		UPDATE stock_lines
		SET available_kg = LEAST(GREATEST(available_kg + $3, 0), original_kg),
		    updated_at = now()
		WHERE document_id=$1 AND id=$2 AND status <> 'REMOVED'
		  AND (NOT $4::bool OR $3 >= 0 OR available_kg + $3 >= 0)
		RETURNING available_kg`,
		documentID, lineID, deltaKg, enforce).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// Zero rows matched: tell a missing line apart from a short one, so
	// "insufficient" is never reported as "not found".
	var present bool
	if err := s.DB.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM stock_lines WHERE document_id=$1 AND id=$2 AND status <> 'REMOVED')`,
		documentID, lineID).Scan(&present); err != nil {
		return 0, err
	}
	if present && enforce && deltaKg < 0 {
		return 0, ErrInsufficientStock
	}
	return 0, ErrNotFound
}
