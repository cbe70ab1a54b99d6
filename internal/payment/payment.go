package internal

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"payment-service/internal/bank"
	"payment-service/internal/helpers/logs"
	"payment-service/internal/idempotency"
	"payment-service/internal/metrics"
	"payment-service/internal/types"
	"payment-service/internal/validation"
)

const (
	DefaultAmountLimit   = 50000.0
	DefaultSettleTimeout = 5 * time.Second
)

// Ledger receives a record for every order that passed the idempotency gate.
type Ledger interface {
	Record(rec types.PaymentRecord) bool
}

type Options struct {
	AmountLimit   float64
	SettleTimeout time.Duration
	Ledger        Ledger
	Metrics       *metrics.Metrics
}

// PaymentProcessor runs one event through validation, deduplication, the
// amount limit and settlement, and maps the result to an Outcome.
type PaymentProcessor struct {
	gate          idempotency.Gate
	bank          bank.Settler
	ledger        Ledger
	metrics       *metrics.Metrics
	amountLimit   float64
	settleTimeout time.Duration
}

// NewPaymentProcessor wires the processor. gate must outlive every request.
func NewPaymentProcessor(gate idempotency.Gate, settler bank.Settler, opts Options) *PaymentProcessor {
	if opts.AmountLimit <= 0 {
		opts.AmountLimit = DefaultAmountLimit
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = DefaultSettleTimeout
	}
	return &PaymentProcessor{
		gate:          gate,
		bank:          settler,
		ledger:        opts.Ledger,
		metrics:       opts.Metrics,
		amountLimit:   opts.AmountLimit,
		settleTimeout: opts.SettleTimeout,
	}
}

// Handle processes the data field of one order_created delivery.
func (p *PaymentProcessor) Handle(ctx context.Context, raw []byte) types.Outcome {
	if p.metrics != nil {
		p.metrics.EventsTotal.Inc()
	}
	outcome := p.process(ctx, raw)
	if p.metrics != nil {
		p.metrics.OutcomesTotal.WithLabelValues(string(outcome)).Inc()
	}
	return outcome
}

func (p *PaymentProcessor) process(ctx context.Context, raw []byte) types.Outcome {
	logs.Info("event received", "type", "ORDER_CREATED", "raw_data", string(raw))

	req, err := validation.Validate(raw)
	if err != nil {
		logs.Error("invalid payment data", "errors", err.Error())
		return types.OutcomeDroppedInvalidData
	}

	// Admission happens before the limit and the bank call; a redelivery of
	// this order will never reach them again.
	if !p.gate.Admit(req.OrderID) {
		return types.OutcomeAlreadyProcessed
	}

	logs.Info("payment starting", "order_id", req.OrderID, "amount", req.TotalAmount)

	if req.TotalAmount > p.amountLimit {
		logs.Warn("payment declined: limit exceeded", "order_id", req.OrderID, "limit", p.amountLimit, "requested", req.TotalAmount)
		p.record(req, types.OutcomeDeclinedLimit, "")
		return types.OutcomeDeclinedLimit
	}

	result, err := p.settle(ctx, req.TotalAmount)
	switch {
	case err == nil:
		logs.Info("payment settled", "order_id", req.OrderID, "customer_id", req.CustomerID, "amount", req.TotalAmount, "transaction_id", result.TransactionID)
		p.record(req, types.OutcomeSuccess, result.TransactionID)
		return types.OutcomeSuccess
	case errors.Is(err, bank.ErrConnectionTimeout):
		logs.Error("bank unavailable, delivery will be retried", "order_id", req.OrderID, "error", err.Error())
		p.record(req, types.OutcomeBankUnavailable, "")
		return types.OutcomeBankUnavailable
	default:
		logs.Error("unexpected payment failure", "order_id", req.OrderID, "customer_id", req.CustomerID, "amount", req.TotalAmount, "error", err.Error(), "error_type", fmt.Sprintf("%T", err))
		p.record(req, types.OutcomeFailedUnknown, "")
		return types.OutcomeFailedUnknown
	}
}

type settleResult struct {
	result types.SettlementResult
	err    error
}

// settle calls the bank with a bounded wait, even when the settler ignores
// ctx. A missed deadline is reported as ErrConnectionTimeout and a panic in
// the settler as a plain error.
func (p *PaymentProcessor) settle(ctx context.Context, amount float64) (types.SettlementResult, error) {
	settleCtx, cancel := context.WithTimeout(ctx, p.settleTimeout)
	defer cancel()

	start := time.Now()
	if p.metrics != nil {
		defer func() { p.metrics.SettlementDuration.Observe(time.Since(start).Seconds()) }()
	}

	// Buffered so a late settler never blocks after we stop waiting.
	done := make(chan settleResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logs.Error("settlement panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				done <- settleResult{err: fmt.Errorf("settlement panicked: %v", r)}
			}
		}()
		result, err := p.bank.Settle(settleCtx, amount, bank.DefaultCurrency)
		done <- settleResult{result: result, err: err}
	}()

	var res settleResult
	select {
	case res = <-done:
	case <-settleCtx.Done():
		res = settleResult{err: settleCtx.Err()}
	}

	if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && !errors.Is(res.err, bank.ErrConnectionTimeout) {
		return types.SettlementResult{}, fmt.Errorf("%w: %v", bank.ErrConnectionTimeout, res.err)
	}
	return res.result, res.err
}

func (p *PaymentProcessor) record(req types.PaymentRequest, outcome types.Outcome, transactionID string) {
	if p.ledger == nil {
		return
	}
	p.ledger.Record(types.PaymentRecord{
		OrderID:       req.OrderID,
		CustomerID:    req.CustomerID,
		Amount:        req.TotalAmount,
		Outcome:       outcome,
		TransactionID: transactionID,
		RequestedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
}
