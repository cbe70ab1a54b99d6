package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"payment-service/internal/helpers/logs"
	"payment-service/internal/types"
)

const (
	processedKey = "payments:processed"
	byDateKey    = "payments_by_date"
)

// Store persists payment records for reporting. It is never used for deduplication.
type Store interface {
	Save(ctx context.Context, rec types.PaymentRecord) error
	Summary(ctx context.Context, from, to time.Time) (map[types.Outcome]*types.PaymentSummary, error)
}

type RedisStore struct {
	RDB *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{RDB: rdb}
}

// Save writes the record and its date index in one pipeline.
func (s *RedisStore) Save(ctx context.Context, rec types.PaymentRecord) error {
	requestedAt, err := time.Parse(time.RFC3339Nano, rec.RequestedAt)
	if err != nil {
		return fmt.Errorf("invalid requested_at %q: %w", rec.RequestedAt, err)
	}
	recBytes, err := sonic.ConfigFastest.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal payment record: %w", err)
	}
	pipe := s.RDB.Pipeline()
	pipe.HSet(ctx, processedKey, rec.OrderID, string(recBytes))
	pipe.ZAdd(ctx, byDateKey, redis.Z{
		Score:  float64(requestedAt.UnixMilli()),
		Member: rec.OrderID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save payment record: %w", err)
	}
	return nil
}

// Summary aggregates the records requested within [from, to].
func (s *RedisStore) Summary(ctx context.Context, from, to time.Time) (map[types.Outcome]*types.PaymentSummary, error) {
	ids, err := s.RDB.ZRangeByScore(ctx, byDateKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", from.UnixMilli()),
		Max: fmt.Sprintf("%d", to.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query payments by date range: %w", err)
	}

	summary := newSummary()
	if len(ids) == 0 {
		return summary, nil
	}
	values, err := s.RDB.HMGet(ctx, processedKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load payment records: %w", err)
	}
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var rec types.PaymentRecord
		if err := sonic.ConfigFastest.UnmarshalFromString(data, &rec); err != nil {
			logs.ShowLogs("skipping unreadable payment record", "error", err)
			continue
		}
		add(summary, rec)
	}
	return round(summary), nil
}

// MemoryStore is used when no Redis address is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]types.PaymentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]types.PaymentRecord)}
}

func (s *MemoryStore) Save(_ context.Context, rec types.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.OrderID] = rec
	return nil
}

func (s *MemoryStore) Get(orderID string) (types.PaymentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[orderID]
	return rec, ok
}

func (s *MemoryStore) Summary(_ context.Context, from, to time.Time) (map[types.Outcome]*types.PaymentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := newSummary()
	for _, rec := range s.records {
		requestedAt, err := time.Parse(time.RFC3339Nano, rec.RequestedAt)
		if err != nil {
			continue
		}
		if requestedAt.Before(from) || requestedAt.After(to) {
			continue
		}
		add(summary, rec)
	}
	return round(summary), nil
}

func newSummary() map[types.Outcome]*types.PaymentSummary {
	summary := make(map[types.Outcome]*types.PaymentSummary)
	for _, o := range []types.Outcome{
		types.OutcomeSuccess,
		types.OutcomeDeclinedLimit,
		types.OutcomeBankUnavailable,
		types.OutcomeFailedUnknown,
	} {
		summary[o] = &types.PaymentSummary{}
	}
	return summary
}

func add(summary map[types.Outcome]*types.PaymentSummary, rec types.PaymentRecord) {
	s, ok := summary[rec.Outcome]
	if !ok {
		s = &types.PaymentSummary{}
		summary[rec.Outcome] = s
	}
	s.TotalRequests++
	s.TotalAmount += rec.Amount
}

func round(summary map[types.Outcome]*types.PaymentSummary) map[types.Outcome]*types.PaymentSummary {
	for _, s := range summary {
		s.TotalAmount = math.Round(s.TotalAmount*100) / 100
	}
	return summary
}
