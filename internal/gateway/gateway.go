// Package gateway provides the reasoning-provider transport used by the
// council engine. Calls are stateless request/response exchanges keyed by an
// idempotency token so that retries never produce double effects.
package gateway

import "context"

// CallRequest is one reasoning request.
type CallRequest struct {
	// SessionKey groups related calls for provider-side attribution.
	SessionKey string `json:"sessionKey"`

	// IdempotencyKey makes the call safe to retry. The engine scopes keys
	// to (session, member) for votes and (session, "synthesizer") for
	// synthesis.
	IdempotencyKey string `json:"idempotencyKey"`

	// Prompt is the full structured-output request text.
	Prompt string `json:"prompt"`
}

// CallResult is the provider's response to a reasoning request.
type CallResult struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Gateway is the client interface for a reasoning provider. Implementations
// must return an error on transport failure, non-success status, or an empty
// response text; cancellation and timeout are the implementation's concern.
type Gateway interface {
	Call(ctx context.Context, req CallRequest) (*CallResult, error)
}
