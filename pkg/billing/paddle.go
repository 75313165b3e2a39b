package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/reconciler"
)

// PaddleConfig holds configuration for the Paddle webhook adapter.
type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
}

// PaddleProvider implements Provider for Paddle notifications. It verifies
// the Paddle-Signature header with the SDK's verifier and maps Paddle event
// types onto the lifecycle vocabulary the reconciler understands.
type PaddleProvider struct {
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle webhook adapter.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	return &PaddleProvider{
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
	}, nil
}

// paddleEnvelope is the common shape of every Paddle notification.
type paddleEnvelope struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// ParseWebhook verifies and normalizes a Paddle delivery.
//
// Unrecognized event types return ErrUnsupportedEvent so the webhook handler
// can acknowledge them without involving the reconciler.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*reconciler.LifecycleEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var envelope paddleEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	eventType, err := mapPaddleEventType(envelope)
	if err != nil {
		return nil, err
	}

	accountID, err := extractAccountID(envelope.Data)
	if err != nil {
		return nil, err
	}

	event := &reconciler.LifecycleEvent{
		Type:                  eventType,
		AccountID:             accountID,
		ProductID:             extractProductID(envelope.Data),
		TransactionID:         envelope.EventID,
		OriginalTransactionID: extractOriginalTransactionID(envelope.Data),
		PurchasedAt:           envelope.OccurredAt,
		ExpiresAt:             extractExpiresAt(envelope.Data),
	}
	return event, nil
}

// mapPaddleEventType translates Paddle's event vocabulary. Renewals surface
// as completed transactions that reference an existing subscription.
func mapPaddleEventType(envelope paddleEnvelope) (reconciler.EventType, error) {
	switch envelope.EventType {
	case "subscription.created":
		return reconciler.EventInitialPurchase, nil
	case "subscription.updated":
		return reconciler.EventProductChange, nil
	case "subscription.canceled":
		return reconciler.EventCancellation, nil
	case "subscription.past_due", "transaction.payment_failed":
		return reconciler.EventBillingIssue, nil
	case "transaction.completed":
		if _, ok := envelope.Data["subscription_id"].(string); ok {
			return reconciler.EventRenewal, nil
		}
		return reconciler.EventNonRenewingPurchase, nil
	default:
		return "", errors.Join(ErrUnsupportedEvent, fmt.Errorf("paddle event %q", envelope.EventType))
	}
}

// extractAccountID reads our account id from the custom data attached at
// checkout time. The id must be a valid UUID.
func extractAccountID(data map[string]any) (uuid.UUID, error) {
	customData, ok := data["custom_data"].(map[string]any)
	if !ok {
		return uuid.Nil, ErrMissingAccountID
	}
	raw, ok := customData["account_id"].(string)
	if !ok {
		return uuid.Nil, ErrMissingAccountID
	}
	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Join(ErrMissingAccountID, err)
	}
	return accountID, nil
}

// extractProductID digs the price id out of the first line item. Subscription
// events nest it under price, transaction events carry it flat.
func extractProductID(data map[string]any) string {
	items, ok := data["items"].([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	item, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}
	if priceID, ok := item["price_id"].(string); ok {
		return priceID
	}
	if price, ok := item["price"].(map[string]any); ok {
		if priceID, ok := price["id"].(string); ok {
			return priceID
		}
	}
	return ""
}

// extractOriginalTransactionID prefers the subscription id, which stays
// stable across renewals, falling back to the object's own id.
func extractOriginalTransactionID(data map[string]any) string {
	if subID, ok := data["subscription_id"].(string); ok && subID != "" {
		return subID
	}
	if id, ok := data["id"].(string); ok {
		return id
	}
	return ""
}

// extractExpiresAt reads the end of the current billing period, if any.
func extractExpiresAt(data map[string]any) *time.Time {
	period, ok := data["current_billing_period"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := period["ends_at"].(string)
	if !ok {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &ts
}
