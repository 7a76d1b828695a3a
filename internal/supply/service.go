package supply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkax "github.com/farmgate/marketstock/internal/kafka"
	"github.com/farmgate/marketstock/internal/market"
	"github.com/farmgate/marketstock/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service turns approved farmer supplies into stock lines: one
// SupplyApproved event appends one Line Entry to the shift's stock
// document, creating the document on first publication.
type Service struct {
	Stock       market.Store
	Redis       *redis.Client
	Producer    *kafkax.Producer // market.stock.line_added
	ServiceName string
}

// HandleSupplyApproved is wired as the consumer handler.
func (s *Service) HandleSupplyApproved(ctx context.Context, m kafkago.Message) error {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != market.EventSupplyApproved {
		return nil // ignore
	}

	// dedup by event id, redelivery is expected
	dkey := fmt.Sprintf(redisx.KeyDedup, "supply", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[market.SupplyApprovedPayload](env.Payload)
	if err != nil {
		return err
	}

	doc, err := s.Stock.FindOrCreateDocument(ctx, p.CenterID, p.ShiftDate, p.ShiftName, p.Approver)
	if err != nil {
		return err
	}

	line, err := s.Stock.AddLine(ctx, doc.ID, p.Line)
	if errors.Is(err, market.ErrDuplicateLine) {
		// same supply landed twice before the dedup key was set
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
		return nil
	}
	if err != nil {
		return err
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	return s.publishLineAdded(doc.ID, line, env.TraceID)
}

func (s *Service) publishLineAdded(documentID string, line market.StockLine, trace string) error {
	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     market.EventStockLineAdded,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: documentID,
		Payload: kafkax.MustMarshal(market.StockLineAddedPayload{
			DocumentID: documentID,
			LineID:     line.ID,
			ItemID:     line.ItemID,
			FarmerID:   line.FarmerID,
			QuantityKg: line.OriginalKg,
		}),
	}
	s.Producer.Publish(market.PartitionKey(documentID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(market.EventStockLineAdded)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
