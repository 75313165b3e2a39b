// Package redis wires Redis connectivity: client construction from a URL
// with retries and a readiness healthcheck.
package redis
