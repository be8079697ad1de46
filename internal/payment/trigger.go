package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/boomgate-core/internal/dispatch"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the Trigger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Submitter is the dispatcher interface the trigger needs.
type Submitter interface {
	Submit(ctx context.Context, req dispatch.Request) (dispatch.Ack, error)
}

// submitTimeout bounds the synchronous part of a trigger submission.
const submitTimeout = 5 * time.Second

// CompletedEvent is the payload the payment processor publishes when a
// transaction settles. OpenDurationSeconds is optional; the gate's
// configured default applies when absent.
type CompletedEvent struct {
	TransactionID       string   `json:"transaction_id"`
	VehiclePlate        string   `json:"vehicle_plate,omitempty"`
	OpenDurationSeconds *float64 `json:"open_duration_seconds,omitempty"`
}

// Trigger turns payment-completion events into auto-cycle requests.
//
// It is the automated trigger path of the dispatcher: every event is
// submitted with SourceAutomatedTrigger, so contention is absorbed at
// the dispatcher boundary and a busy gate can never fail a completed
// payment. No failure of any kind propagates back to the broker.
type Trigger struct {
	client     *mqtt.Client
	dispatcher Submitter
	logger     Logger
}

// NewTrigger creates the payment trigger.
//
// Parameters:
//   - client: Connected MQTT client
//   - dispatcher: The trigger dispatcher
//   - logger: Logger instance
func NewTrigger(client *mqtt.Client, dispatcher Submitter, logger Logger) *Trigger {
	return &Trigger{
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start subscribes to the payment-completed topic.
//
// Returns:
//   - error: If the subscription cannot be established
func (t *Trigger) Start() error {
	topic := mqtt.Topics{}.PaymentCompleted()
	t.logger.Info("subscribing to payment completions", "topic", topic)

	if err := t.client.Subscribe(topic, 1, t.handleCompleted); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

// Stop removes the payment subscription.
func (t *Trigger) Stop() {
	topic := mqtt.Topics{}.PaymentCompleted()
	if err := t.client.Unsubscribe(topic); err != nil {
		t.logger.Warn("unsubscribing payment topic failed", "error", err)
	}
}

// handleCompleted processes one payment-completion event.
//
// The returned error is always nil: this path must never raise toward
// the payment flow, so every failure ends at a log line here.
func (t *Trigger) handleCompleted(topic string, payload []byte) error {
	var event CompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.logger.Warn("malformed payment event ignored", "topic", topic, "error", err)
		return nil
	}
	if event.TransactionID == "" {
		t.logger.Warn("payment event without transaction id ignored", "topic", topic)
		return nil
	}

	req := dispatch.Request{
		Command:             dispatch.CmdAutoCycle,
		TransactionID:       &event.TransactionID,
		OpenDurationSeconds: event.OpenDurationSeconds,
		Source:              dispatch.SourceAutomatedTrigger,
	}
	if event.VehiclePlate != "" {
		req.VehiclePlate = &event.VehiclePlate
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	ack, err := t.dispatcher.Submit(ctx, req)
	switch {
	case err != nil:
		// Fatal failures (bad duration, blocked transition) are logged;
		// the transaction itself is already settled and unaffected.
		t.logger.Error("payment trigger rejected",
			"transaction_id", event.TransactionID,
			"error", err,
		)
	case !ack.Accepted:
		t.logger.Info("payment trigger not accepted",
			"transaction_id", event.TransactionID,
			"reason", ack.Reason,
		)
	default:
		t.logger.Info("gate cycle started for payment",
			"transaction_id", event.TransactionID,
			"vehicle_plate", event.VehiclePlate,
			"operation_id", ack.OperationID,
		)
	}
	return nil
}
