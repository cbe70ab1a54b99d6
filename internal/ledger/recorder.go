package ledger

import (
	"context"
	"sync"

	"payment-service/internal/helpers/logs"
	"payment-service/internal/types"
)

// Recorder writes payment records to a Store from a pool of workers so the
// request path never waits on storage.
type Recorder struct {
	store      Store
	ctx        context.Context
	cancel     context.CancelFunc
	numWorkers int
	recordChan chan types.PaymentRecord
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewRecorder(ctx context.Context, store Store, numWorkers, channelSize int) *Recorder {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if channelSize < 0 {
		channelSize = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Recorder{
		store:      store,
		ctx:        ctx,
		cancel:     cancel,
		numWorkers: numWorkers,
		recordChan: make(chan types.PaymentRecord, channelSize),
	}
}

// Start launches the workers.
func (r *Recorder) Start() {
	for i := 0; i < r.numWorkers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Stop closes the queue, waits for queued records to be written, then cancels the context.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.recordChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
}

// Record queues rec and reports whether it was accepted. A full queue drops the record.
func (r *Recorder) Record(rec types.PaymentRecord) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return false
	}
	select {
	case r.recordChan <- rec:
		return true
	default:
		logs.Warn("ledger queue full, record dropped", "order_id", rec.OrderID, "outcome", rec.Outcome)
		return false
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for rec := range r.recordChan {
		if err := r.store.Save(r.ctx, rec); err != nil {
			logs.Error("failed to save payment record", "order_id", rec.OrderID, "error", err)
			continue
		}
		logs.ShowLogs("payment record saved", "order_id", rec.OrderID, "outcome", rec.Outcome)
	}
}
