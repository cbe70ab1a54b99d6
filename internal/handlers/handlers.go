package handlers

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"

	"payment-service/internal/helpers/logs"
	"payment-service/internal/idempotency"
	"payment-service/internal/ledger"
	"payment-service/internal/metrics"
	internal "payment-service/internal/payment"
	"payment-service/internal/types"
)

const (
	PubsubName   = "order-pubsub"
	Topic        = "order_created"
	ProcessRoute = "process-payment"
)

type Handlers struct {
	Processor *internal.PaymentProcessor
	Ledger    ledger.Store
	Metrics   *metrics.Metrics
	Gate      *idempotency.MemoryGate
}

// Register mounts every route on app.
func (h *Handlers) Register(app *fiber.App) {
	app.Get("/dapr/subscribe", h.SubscribeHandler)
	app.Post("/"+ProcessRoute, h.ProcessPaymentHandler)
	app.Get("/payments-summary", h.PaymentsSummaryHandler)
	app.Get("/health", h.HealthHandler)
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{})))
	}
}

// SubscribeHandler tells the sidecar which topic to deliver to which route.
func (h *Handlers) SubscribeHandler(c *fiber.Ctx) error {
	return c.JSON([]types.Subscription{{
		PubsubName: PubsubName,
		Topic:      Topic,
		Route:      ProcessRoute,
	}})
}

// ProcessPaymentHandler acknowledges every outcome with 200 except
// BANK_UNAVAILABLE, which answers 500 so the delivery is retried.
func (h *Handlers) ProcessPaymentHandler(c *fiber.Ctx) error {
	var envelope types.Envelope
	if err := sonic.Unmarshal(c.Body(), &envelope); err != nil {
		logs.Error("failed to decode envelope", "error", err.Error(), "content_type", string(c.Request().Header.ContentType()))
		return c.Status(fasthttp.StatusOK).JSON(fiber.Map{"status": types.OutcomeDroppedInvalidData})
	}

	outcome := h.Processor.Handle(c.UserContext(), envelope.Data)
	if outcome.Retryable() {
		return c.Status(fasthttp.StatusInternalServerError).JSON(fiber.Map{"error": outcome})
	}
	return c.Status(fasthttp.StatusOK).JSON(fiber.Map{"status": outcome})
}

// PaymentsSummaryHandler aggregates ledger records between from and to (RFC3339, both optional).
func (h *Handlers) PaymentsSummaryHandler(c *fiber.Ctx) error {
	from := time.Unix(0, 0).UTC()
	to := time.Now().UTC()

	if fromISO := c.Query("from"); fromISO != "" {
		t, err := time.Parse(time.RFC3339, fromISO)
		if err != nil {
			return c.SendStatus(fasthttp.StatusBadRequest)
		}
		from = t
	}
	if toISO := c.Query("to"); toISO != "" {
		t, err := time.Parse(time.RFC3339, toISO)
		if err != nil {
			return c.SendStatus(fasthttp.StatusBadRequest)
		}
		to = t
	}
	logs.ShowLogs("fetching payments summary", "from", from, "to", to)

	summary, err := h.Ledger.Summary(c.UserContext(), from, to)
	if err != nil {
		logs.Error("failed to build payments summary", "error", err.Error())
		return c.SendStatus(fasthttp.StatusInternalServerError)
	}
	return c.Status(fasthttp.StatusOK).JSON(summary)
}

func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	body := fiber.Map{"status": "UP"}
	if h.Gate != nil {
		body["admitted"] = h.Gate.Len()
	}
	return c.JSON(body)
}
