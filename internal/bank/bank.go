package bank

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"payment-service/internal/types"
)

const (
	DefaultCurrency   = "TRY"
	StatusSuccess     = "SUCCESS"
	DefaultMinLatency = 100 * time.Millisecond
	DefaultMaxLatency = 500 * time.Millisecond
)

// ErrConnectionTimeout is the only failure a settler classifies as transient.
var ErrConnectionTimeout = errors.New("bank connection timeout")

// Settler charges an amount against the bank. Callers stop waiting once ctx
// is done, so implementations should return promptly when it is.
type Settler interface {
	Settle(ctx context.Context, amount float64, currency string) (types.SettlementResult, error)
}

type SimulatedBankConfig struct {
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64
}

// SimulatedBank stands in for a real bank client: random latency, random timeouts.
type SimulatedBank struct {
	cfg SimulatedBankConfig
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedBank applies the default latency range when both bounds are zero.
func NewSimulatedBank(cfg SimulatedBankConfig) *SimulatedBank {
	if cfg.MinLatency == 0 && cfg.MaxLatency == 0 {
		cfg.MinLatency, cfg.MaxLatency = DefaultMinLatency, DefaultMaxLatency
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	return &SimulatedBank{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
}

func (b *SimulatedBank) Settle(ctx context.Context, amount float64, currency string) (types.SettlementResult, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	latency, fail := b.roll()

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return types.SettlementResult{}, ctx.Err()
	case <-timer.C:
	}

	if fail {
		return types.SettlementResult{}, ErrConnectionTimeout
	}
	return types.SettlementResult{TransactionID: uuid.NewString(), Status: StatusSuccess}, nil
}

func (b *SimulatedBank) roll() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	latency := b.cfg.MinLatency
	if spread := b.cfg.MaxLatency - b.cfg.MinLatency; spread > 0 {
		latency += time.Duration(b.rng.Int64N(int64(spread)))
	}
	return latency, b.rng.Float64() < b.cfg.FailureRate
}
