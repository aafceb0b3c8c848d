package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/logging"
	"github.com/agentgate/agentgate/internal/metrics"
	"github.com/agentgate/agentgate/internal/store"
	"github.com/agentgate/agentgate/internal/validation"
)

const maxResponseBody = 4 * 1024

// Dispatcher delivers decision events to subscribed webhooks. Deliveries to
// different webhooks are independent: one slow or failing endpoint never
// delays or discards another's outcome.
type Dispatcher struct {
	store   store.WebhookStore
	client  *http.Client
	resolve validation.Resolver
	logger  *logging.Logger
}

// NewDispatcher creates a dispatcher with a bounded per-call timeout
func NewDispatcher(st store.WebhookStore, timeout time.Duration, logger *logging.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		store:   st,
		client:  &http.Client{Timeout: timeout},
		resolve: validation.SystemResolver,
		logger:  logger,
	}
}

// SetResolver overrides destination resolution
func (d *Dispatcher) SetResolver(resolve validation.Resolver) {
	d.resolve = resolve
}

// Dispatch fans an event out to every enabled subscribed webhook
// concurrently and waits for all attempts to settle. Delivery failures are
// recorded, never returned; nothing here may fail the transition that
// triggered it.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, payload map[string]interface{}) {
	hooks, err := d.store.ListWebhooksForEvent(ctx, event)
	if err != nil {
		d.logger.Error("failed to list webhooks for event", err, map[string]interface{}{
			"event": event,
		})
		return
	}
	if len(hooks) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range hooks {
		hook := hooks[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.deliver(ctx, &hook, event, payload)
		}()
	}
	wg.Wait()
}

// Deliver runs one attempt-cycle against a single webhook, outside the
// normal fan-out. Used for operator-triggered test deliveries.
func (d *Dispatcher) Deliver(ctx context.Context, hook *db.Webhook, event string, payload map[string]interface{}) {
	d.deliver(ctx, hook, event, payload)
}

// deliver runs one attempt-cycle against one webhook and leaves a delivery
// row behind regardless of outcome.
func (d *Dispatcher) deliver(ctx context.Context, hook *db.Webhook, event string, payload map[string]interface{}) {
	delivery := &db.WebhookDelivery{
		WebhookID: hook.ID,
		Event:     event,
		Payload:   payload,
		Status:    db.DeliveryPending,
	}
	if err := d.store.CreateDelivery(ctx, delivery); err != nil {
		d.logger.Error("failed to record webhook delivery", err, map[string]interface{}{
			"webhook_id": hook.ID,
		})
		return
	}

	now := time.Now().UTC()
	delivery.Attempts++
	delivery.LastAttemptAt = &now

	code, body, err := d.attempt(ctx, hook, event, delivery.ID, payload)
	if code != 0 {
		delivery.ResponseCode = &code
	}
	if body != "" {
		delivery.ResponseBody = &body
	}
	if err == nil {
		delivery.Status = db.DeliverySuccess
	} else {
		// Retryable until a background sweep gives up on it
		delivery.Status = db.DeliveryPending
		d.logger.Warn("webhook delivery failed", map[string]interface{}{
			"webhook_id": hook.ID,
			"event":      event,
			"error":      err.Error(),
		})
	}

	metrics.RecordWebhookDelivery(delivery.Status)

	if err := d.store.UpdateDelivery(ctx, delivery); err != nil {
		d.logger.Error("failed to update webhook delivery", err, map[string]interface{}{
			"delivery_id": delivery.ID,
		})
	}
}

// attempt performs one signed POST. Destination validation runs immediately
// before the call and a validation failure is treated like a network
// failure.
func (d *Dispatcher) attempt(ctx context.Context, hook *db.Webhook, event, deliveryID string, payload map[string]interface{}) (int, string, error) {
	if err := validation.CheckDestination(hook.URL, d.resolve); err != nil {
		return 0, "", apperrors.Delivery(err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", apperrors.Delivery(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", apperrors.Delivery(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Delivery-ID", deliveryID)
	req.Header.Set("X-Webhook-Signature", Sign(body, hook.Secret))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", apperrors.Delivery(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, string(respBody), apperrors.Delivery(fmt.Errorf("endpoint returned %d", resp.StatusCode))
	}
	return resp.StatusCode, string(respBody), nil
}

// Sign computes the payload signature header value
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a payload signature in constant time
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
