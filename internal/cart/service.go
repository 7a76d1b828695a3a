package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	kafkax "github.com/farmgate/marketstock/internal/kafka"
	"github.com/farmgate/marketstock/internal/market"
	"github.com/farmgate/marketstock/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service holds customer carts in redis and moves stock through the market
// store: adding an item reserves kilograms, removing or expiring releases
// them. The store call and the cart write are not one transaction; the
// reservation happens first, so a crash in between leaks held stock until
// the cart expires, never oversells.
type Service struct {
	Stock       market.Store
	Redis       *redis.Client
	Producer    *kafkax.Producer // market.stock.depleted
	ServiceName string
	TTL         time.Duration
}

// FieldKey addresses one held line inside the cart hash.
func FieldKey(documentID, lineID string) string {
	return documentID + "/" + lineID
}

func SplitFieldKey(field string) (documentID, lineID string, err error) {
	i := strings.IndexByte(field, '/')
	if i <= 0 || i == len(field)-1 {
		return "", "", fmt.Errorf("malformed cart field %q", field)
	}
	return field[:i], field[i+1:], nil
}

// AddItem reserves kg for the cart. Kilograms must be positive and finite;
// the reservation itself enforces sufficiency, so two customers racing for
// the last kilograms get exactly one success.
func (s *Service) AddItem(ctx context.Context, cartID, documentID, lineID string, kg float64, trace string) (remaining float64, err error) {
	if err := market.ValidateDelta(kg); err != nil {
		return 0, err
	}
	if kg < 0 {
		return 0, market.ErrInvalidDelta
	}

	remaining, err = s.Stock.AdjustQuantity(ctx, documentID, lineID, -kg, true)
	if err != nil {
		return 0, err
	}

	key := fmt.Sprintf(redisx.KeyCart, cartID)
	if err := s.Redis.HIncrByFloat(ctx, key, FieldKey(documentID, lineID), kg).Err(); err != nil {
		// stock is held but the cart lost it; give it back right away
		_, _ = s.Stock.AdjustQuantity(ctx, documentID, lineID, kg, false)
		return 0, err
	}
	deadline := float64(time.Now().Add(s.TTL).Unix())
	_ = s.Redis.ZAdd(ctx, redisx.KeyCartDeadlines, redis.Z{Score: deadline, Member: cartID}).Err()

	if remaining == 0 {
		s.markDepleted(ctx, documentID, lineID, trace)
	}
	return remaining, nil
}

func (s *Service) markDepleted(ctx context.Context, documentID, lineID, trace string) {
	if err := s.Stock.SetLineStatus(ctx, documentID, lineID, market.LineSoldOut); err != nil {
		return // already flipped by a concurrent reservation
	}
	line, err := s.Stock.GetLine(ctx, documentID, lineID)
	if err != nil {
		return
	}
	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     market.EventStockDepleted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: documentID,
		Payload: kafkax.MustMarshal(market.StockDepletedPayload{
			DocumentID: documentID, LineID: lineID, ItemID: line.ItemID,
		}),
	}
	s.Producer.Publish(market.PartitionKey(documentID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(market.EventStockDepleted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// RemoveItem gives one held line back to the pool and drops it from the
// cart. A line that sold out while held becomes ACTIVE again.
func (s *Service) RemoveItem(ctx context.Context, cartID, documentID, lineID string) error {
	key := fmt.Sprintf(redisx.KeyCart, cartID)
	field := FieldKey(documentID, lineID)

	v, err := s.Redis.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return market.ErrNotFound
	}
	if err != nil {
		return err
	}
	kg, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("corrupt cart entry %s: %w", field, err)
	}

	if err := s.release(ctx, documentID, lineID, kg); err != nil {
		return err
	}
	if err := s.Redis.HDel(ctx, key, field).Err(); err != nil {
		return err
	}
	if n, _ := s.Redis.HLen(ctx, key).Result(); n == 0 {
		_ = s.Redis.Del(ctx, key).Err()
		_ = s.Redis.ZRem(ctx, redisx.KeyCartDeadlines, cartID).Err()
	}
	return nil
}

func (s *Service) release(ctx context.Context, documentID, lineID string, kg float64) error {
	if kg <= 0 {
		return nil
	}
	_, err := s.Stock.AdjustQuantity(ctx, documentID, lineID, kg, false)
	if errors.Is(err, market.ErrNotFound) {
		return nil // line pulled meanwhile, nothing to return stock to
	}
	if err != nil {
		return err
	}
	// SOLDOUT -> ACTIVE when stock came back; any other state rejects
	if err := s.Stock.SetLineStatus(ctx, documentID, lineID, market.LineActive); err != nil &&
		!errors.Is(err, market.ErrBadTransition) && !errors.Is(err, market.ErrNotFound) {
		return err
	}
	return nil
}

// Items lists the cart's held lines for checkout.
func (s *Service) Items(ctx context.Context, cartID string) ([]market.CheckoutItem, error) {
	all, err := s.Redis.HGetAll(ctx, fmt.Sprintf(redisx.KeyCart, cartID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]market.CheckoutItem, 0, len(all))
	for field, v := range all {
		docID, lineID, err := SplitFieldKey(field)
		if err != nil {
			return nil, err
		}
		kg, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt cart entry %s: %w", field, err)
		}
		out = append(out, market.CheckoutItem{DocumentID: docID, LineID: lineID, QtyKg: kg})
	}
	return out, nil
}

// Clear drops a cart without releasing stock. Used after checkout, where
// the reservation is carried over into the order.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	if err := s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCart, cartID)).Err(); err != nil {
		return err
	}
	return s.Redis.ZRem(ctx, redisx.KeyCartDeadlines, cartID).Err()
}

// Claim takes the cart's deadline entry. The entry doubles as the release
// token: whoever removes it owns the held stock, so checkout claiming it
// means neither the sweeper nor a concurrent Abandon can release kilograms
// the order is about to own.
func (s *Service) Claim(ctx context.Context, cartID string) (bool, error) {
	n, err := s.Redis.ZRem(ctx, redisx.KeyCartDeadlines, cartID).Result()
	return n > 0, err
}

// Reschedule hands a claimed cart back to the expiry flow.
func (s *Service) Reschedule(ctx context.Context, cartID string) error {
	deadline := float64(time.Now().Add(s.TTL).Unix())
	return s.Redis.ZAdd(ctx, redisx.KeyCartDeadlines, redis.Z{Score: deadline, Member: cartID}).Err()
}

// Abandon drops the cart, releasing its held lines only when the release
// token is still ours to take. A cart claimed by checkout is deleted
// without touching stock.
func (s *Service) Abandon(ctx context.Context, cartID string) error {
	claimed, err := s.Claim(ctx, cartID)
	if err != nil {
		return err
	}
	items, err := s.Items(ctx, cartID)
	if err != nil {
		return err
	}
	if claimed {
		key := fmt.Sprintf(redisx.KeyCart, cartID)
		for _, it := range items {
			if err := s.release(ctx, it.DocumentID, it.LineID, it.QtyKg); err != nil {
				// give the token back so the sweeper retries what is left
				_ = s.Reschedule(ctx, cartID)
				return err
			}
			_ = s.Redis.HDel(ctx, key, FieldKey(it.DocumentID, it.LineID)).Err()
		}
	}
	return s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCart, cartID)).Err()
}

// StartSweeper expires abandoned carts: every interval it pops the carts
// whose deadline passed and gives their stock back.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := s.sweepOnce(ctx); err != nil {
					log.Printf("cart sweep: %v", err)
				}
			}
		}
	}()
}

func (s *Service) sweepOnce(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := s.Redis.ZRangeByScore(ctx, redisx.KeyCartDeadlines, &redis.ZRangeBy{
		Min: "-inf", Max: now,
	}).Result()
	if err != nil {
		return err
	}
	for _, cartID := range due {
		if err := s.Abandon(ctx, cartID); err != nil {
			log.Printf("abandon cart %s: %v", cartID, err)
			continue
		}
	}
	return nil
}
