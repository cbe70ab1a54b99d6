package idempotency

import (
	"sync"

	"payment-service/internal/helpers/logs"
)

// Gate admits each order id at most once.
type Gate interface {
	Admit(orderID string) bool
}

// MemoryGate keeps admitted ids for the lifetime of the process.
// It does not coordinate across instances.
type MemoryGate struct {
	mu       sync.Mutex
	admitted map[string]struct{}
}

func NewMemoryGate() *MemoryGate {
	return &MemoryGate{admitted: make(map[string]struct{})}
}

// Admit returns true only for the first call with a given orderID.
func (g *MemoryGate) Admit(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.admitted[orderID]; ok {
		logs.Warn("duplicate order blocked", "order_id", orderID)
		return false
	}
	g.admitted[orderID] = struct{}{}
	return true
}

func (g *MemoryGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.admitted)
}
