package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/resilience"
)

// TaskReceiptHandoff is the asynq task type carrying one completed sale
// receipt to the printing and archival pipeline.
const TaskReceiptHandoff = "receipt:handoff"

// handoffPayload is the task body. The receipt itself rides as raw JSON so
// the worker never needs the session types.
type handoffPayload struct {
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	SessionID  string          `json:"sessionId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Receipt    json.RawMessage `json:"receipt"`
}

// ReceiptEnqueuer hands completed sales to the background worker. It
// implements events.Notifier; topics other than completed and due sales are
// ignored.
type ReceiptEnqueuer struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
	Logger   zerolog.Logger
}

// Notify enqueues a receipt hand-off task for the emitted event.
func (e *ReceiptEnqueuer) Notify(_ context.Context, event events.Event) error {
	if e == nil || e.Client == nil {
		return nil
	}
	switch event.Topic {
	case events.TopicSaleCompleted, events.TopicSaleDueRecorded:
	default:
		return nil
	}

	body, err := json.Marshal(handoffPayload{
		EventID:    event.ID.String(),
		Topic:      event.Topic,
		SessionID:  event.AggregateID.String(),
		OccurredAt: event.OccurredAt,
		Receipt:    json.RawMessage(event.Payload),
	})
	if err != nil {
		return fmt.Errorf("notify: encode handoff payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(event.ID.String()),
		asynq.MaxRetry(e.maxRetry()),
	}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	info, err := e.Client.Enqueue(asynq.NewTask(TaskReceiptHandoff, body), opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("notify: enqueue receipt handoff: %w", err)
	}
	e.Logger.Debug().Str("task_id", info.ID).Str("topic", event.Topic).Msg("receipt_handoff_enqueued")
	return nil
}

func (e *ReceiptEnqueuer) maxRetry() int {
	if e.MaxRetry > 0 {
		return e.MaxRetry
	}
	return 5
}

// ReceiptWebhook delivers receipts to the configured endpoint. Payloads are
// signed with an HMAC so the receiver can verify origin.
type ReceiptWebhook struct {
	URL    string
	Secret string
	HTTP   *resilience.HTTPClient
	Logger zerolog.Logger
}

// Handle processes one hand-off task. Returning an error lets asynq retry
// with its own backoff.
func (w *ReceiptWebhook) Handle(ctx context.Context, task *asynq.Task) error {
	if w == nil || w.HTTP == nil || strings.TrimSpace(w.URL) == "" {
		return nil
	}
	var payload handoffPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// malformed tasks never become deliverable, drop them
		w.Logger.Error().Err(err).Msg("receipt_handoff_bad_payload")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(task.Payload()))
	if err != nil {
		return fmt.Errorf("notify: build handoff request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Receipt-Event", payload.Topic)
	if w.Secret != "" {
		req.Header.Set("X-Signature", sign(w.Secret, task.Payload()))
	}

	resp, err := w.HTTP.Do(ctx, req)
	if err != nil {
		observeHandoff("error")
		return fmt.Errorf("notify: deliver receipt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observeHandoff("error")
		return fmt.Errorf("notify: receipt endpoint status %d", resp.StatusCode)
	}

	observeHandoff("ok")
	w.Logger.Info().
		Str("session_id", payload.SessionID).
		Str("topic", payload.Topic).
		Msg("receipt_handoff_delivered")
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func observeHandoff(result string) {
	if obs.ReceiptHandoffTotal != nil {
		obs.ReceiptHandoffTotal.WithLabelValues(result).Inc()
	}
}
