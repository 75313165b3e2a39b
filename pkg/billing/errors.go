package billing

import "errors"

var (
	ErrMissingWebhookSecret      = errors.New("billing webhook secret is required")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrMalformedPayload          = errors.New("malformed webhook payload")
	ErrMissingAccountID          = errors.New("webhook payload carries no account id")
	ErrUnsupportedEvent          = errors.New("unsupported webhook event")
)
