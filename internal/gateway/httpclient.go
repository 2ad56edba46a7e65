package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Compile-time interface check.
var _ Gateway = (*HTTPGateway)(nil)

// HTTPGateway implements Gateway using HTTP/JSON-RPC against a single
// provider endpoint. The idempotency key travels both in the request params
// and as the Idempotency-Key header.
type HTTPGateway struct {
	endpoint  string
	http      *http.Client
	requestID atomic.Int64
}

// Option configures an HTTPGateway.
type Option func(*HTTPGateway)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGateway) {
		g.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *HTTPGateway) {
		g.http = hc
	}
}

// NewHTTPGateway creates a gateway client for the given provider endpoint.
func NewHTTPGateway(endpoint string, opts ...Option) *HTTPGateway {
	g := &HTTPGateway{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call sends one reasoning request via the reasoning/complete JSON-RPC
// method. It fails on transport errors, non-success HTTP status, JSON-RPC
// error objects, and empty response text.
func (g *HTTPGateway) Call(ctx context.Context, req CallRequest) (*CallResult, error) {
	var result CallResult
	if err := g.call(ctx, MethodComplete, req, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Text) == "" {
		return nil, fmt.Errorf("gateway: %s: empty response text", MethodComplete)
	}
	return &result, nil
}

// nextID returns a monotonically increasing request ID for JSON-RPC calls.
func (g *HTTPGateway) nextID() int64 {
	return g.requestID.Add(1)
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (g *HTTPGateway) call(ctx context.Context, method string, params CallRequest, result any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("gateway: marshal params: %w", err)
	}

	rpcReq := JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      g.nextID(),
		Method:  method,
		Params:  paramsJSON,
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("gateway: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if params.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", params.IdempotencyKey)
	}

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gateway: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gateway: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("gateway: decode result: %w", err)
		}
	}

	return nil
}

// RPCError represents a JSON-RPC error returned by the provider.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("gateway: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("gateway: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}
