package billing

import (
	"context"

	"github.com/wanderaudio/guidekit/pkg/reconciler"
)

// Provider normalizes payment-provider webhook deliveries into lifecycle
// events. Implementations must verify the delivery signature before parsing
// anything; a spoofed webhook must never reach the reconciler.
type Provider interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*reconciler.LifecycleEvent, error)
}
