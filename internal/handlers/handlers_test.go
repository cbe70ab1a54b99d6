package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-service/internal/bank"
	"payment-service/internal/idempotency"
	"payment-service/internal/ledger"
	"payment-service/internal/metrics"
	internal "payment-service/internal/payment"
	"payment-service/internal/types"
)

type fixedBank struct {
	err error
}

func (b fixedBank) Settle(context.Context, float64, string) (types.SettlementResult, error) {
	if b.err != nil {
		return types.SettlementResult{}, b.err
	}
	return types.SettlementResult{TransactionID: uuid.NewString(), Status: bank.StatusSuccess}, nil
}

type testServer struct {
	app      *fiber.App
	recorder *ledger.Recorder
	store    *ledger.MemoryStore
}

func newTestServer(t *testing.T, settler bank.Settler) *testServer {
	t.Helper()
	store := ledger.NewMemoryStore()
	recorder := ledger.NewRecorder(context.Background(), store, 2, 16)
	recorder.Start()
	t.Cleanup(recorder.Stop)

	m := metrics.New()
	gate := idempotency.NewMemoryGate()
	h := &Handlers{
		Processor: internal.NewPaymentProcessor(gate, settler, internal.Options{
			Ledger:  recorder,
			Metrics: m,
		}),
		Ledger:  store,
		Metrics: m,
		Gate:    gate,
	}
	app := fiber.New(fiber.Config{JSONEncoder: sonic.Marshal, JSONDecoder: sonic.Unmarshal})
	h.Register(app)
	return &testServer{app: app, recorder: recorder, store: store}
}

func (s *testServer) post(t *testing.T, body string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/process-payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/cloudevents+json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, sonic.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func envelope(data string) string {
	return `{"id":"evt-1","topic":"order_created","pubsubname":"order-pubsub","data":` + data + `}`
}

const validData = `{"order_id":"11111111-1111-1111-1111-111111111111","customer_id":"c1","total_amount":100}`

func TestSubscribeHandler(t *testing.T) {
	s := newTestServer(t, fixedBank{})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/dapr/subscribe", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"pubsubname":"order-pubsub","topic":"order_created","route":"process-payment"}]`, string(raw))
}

func TestProcessPayment_SuccessThenDuplicate(t *testing.T) {
	s := newTestServer(t, fixedBank{})

	code, body := s.post(t, envelope(validData))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "SUCCESS", body["status"])

	code, body = s.post(t, envelope(validData))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ALREADY_PROCESSED", body["status"])
}

func TestProcessPayment_StringEncodedData(t *testing.T) {
	s := newTestServer(t, fixedBank{})
	quoted, _ := sonic.MarshalString(validData)

	code, body := s.post(t, envelope(quoted))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "SUCCESS", body["status"])
}

func TestProcessPayment_Acknowledged(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status string
	}{
		{"invalid uuid", envelope(`{"order_id":"not-a-uuid","customer_id":"c1","total_amount":100}`), "DROPPED_INVALID_DATA"},
		{"missing data", `{"id":"evt-1"}`, "DROPPED_INVALID_DATA"},
		{"not json", `<xml/>`, "DROPPED_INVALID_DATA"},
		{"uppercase uuid", envelope(`{"order_id":"6F1C2A9E-3B4D-4E5F-8A7B-9C0D1E2F3A4B","customer_id":"c1","total_amount":100}`), "SUCCESS"},
		{"over limit", envelope(`{"order_id":"22222222-2222-2222-2222-222222222222","customer_id":"c1","total_amount":60000}`), "DECLINED_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, fixedBank{})

			code, body := s.post(t, tt.body)

			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestProcessPayment_BankUnavailableIsRetryable(t *testing.T) {
	s := newTestServer(t, fixedBank{err: bank.ErrConnectionTimeout})

	code, body := s.post(t, envelope(validData))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "BANK_UNAVAILABLE", body["error"])

	// The redelivery finds the order already admitted.
	code, body = s.post(t, envelope(validData))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ALREADY_PROCESSED", body["status"])
}

func TestProcessPayment_UnknownFailureIsAcknowledged(t *testing.T) {
	s := newTestServer(t, fixedBank{err: io.ErrUnexpectedEOF})

	code, body := s.post(t, envelope(validData))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FAILED_UNKNOWN", body["status"])
}

func TestPaymentsSummaryHandler(t *testing.T) {
	s := newTestServer(t, fixedBank{})
	s.post(t, envelope(validData))
	s.post(t, envelope(`{"order_id":"33333333-3333-3333-3333-333333333333","customer_id":"c1","total_amount":70000}`))
	s.recorder.Stop()

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/payments-summary?from="+from+"&to="+to, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var summary map[string]types.PaymentSummary
	require.NoError(t, sonic.Unmarshal(raw, &summary))
	assert.Equal(t, int64(1), summary["SUCCESS"].TotalRequests)
	assert.Equal(t, 100.0, summary["SUCCESS"].TotalAmount)
	assert.Equal(t, int64(1), summary["DECLINED_LIMIT"].TotalRequests)
}

func TestPaymentsSummaryHandler_BadRange(t *testing.T) {
	s := newTestServer(t, fixedBank{})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/payments-summary?from=yesterday", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, fixedBank{})
	s.post(t, envelope(validData))

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"UP","admitted":1}`, string(raw))

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `payment_outcomes_total{outcome="SUCCESS"} 1`)
}
