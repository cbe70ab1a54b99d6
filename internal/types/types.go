package types

import "encoding/json"

// Envelope is the pub/sub delivery wrapper posted to the processing route.
type Envelope struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Topic           string          `json:"topic"`
	PubsubName      string          `json:"pubsubname"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// PaymentRequest is only ever built by the validation package.
type PaymentRequest struct {
	OrderID     string  `json:"order_id" validate:"required,orderid"`
	CustomerID  string  `json:"customer_id" validate:"min=1"`
	TotalAmount float64 `json:"total_amount" validate:"gt=0"`
}

type Outcome string

const (
	OutcomeSuccess            Outcome = "SUCCESS"
	OutcomeDroppedInvalidData Outcome = "DROPPED_INVALID_DATA"
	OutcomeAlreadyProcessed   Outcome = "ALREADY_PROCESSED"
	OutcomeDeclinedLimit      Outcome = "DECLINED_LIMIT"
	OutcomeBankUnavailable    Outcome = "BANK_UNAVAILABLE"
	OutcomeFailedUnknown      Outcome = "FAILED_UNKNOWN"
)

// Retryable reports whether the delivery should be redelivered by the pub/sub layer.
func (o Outcome) Retryable() bool {
	return o == OutcomeBankUnavailable
}

type SettlementResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type Subscription struct {
	PubsubName string `json:"pubsubname"`
	Topic      string `json:"topic"`
	Route      string `json:"route"`
}

// PaymentRecord is what the ledger keeps for every handled order.
type PaymentRecord struct {
	OrderID       string  `json:"order_id"`
	CustomerID    string  `json:"customer_id"`
	Amount        float64 `json:"amount"`
	Outcome       Outcome `json:"outcome"`
	TransactionID string  `json:"transaction_id,omitempty"`
	RequestedAt   string  `json:"requested_at"`
}

type PaymentSummary struct {
	TotalRequests int64   `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}
