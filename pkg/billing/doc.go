// Package billing adapts payment-provider webhook deliveries into the
// normalized lifecycle events consumed by the reconciler.
//
// The Paddle implementation verifies the Paddle-Signature header before
// touching the payload. Receipt formats and checkout flows stay inside this
// package; the rest of the system only ever sees reconciler.LifecycleEvent
// values with an explicit product id and unique transaction id.
package billing
