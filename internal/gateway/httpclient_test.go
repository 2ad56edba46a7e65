package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler decodes a JSONRPCRequest and writes back the response from fn.
func rpcHandler(t *testing.T, fn func(req JSONRPCRequest) JSONRPCResponse) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method, "gateway always uses POST")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req JSONRPCRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err, "server should be able to decode JSON-RPC request")

		assert.Equal(t, JSONRPCVersion, req.JSONRPC)

		resp := fn(req)
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(resp)
		require.NoError(t, err)
	}
}

func completeResult(t *testing.T, req JSONRPCRequest, res CallResult) JSONRPCResponse {
	t.Helper()
	result, err := json.Marshal(res)
	require.NoError(t, err)
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      req.ID,
		Result:  result,
	}
}

func TestCall_HappyPath(t *testing.T) {
	var gotIdempotencyKey string
	inner := rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		assert.Equal(t, MethodComplete, req.Method)

		var params CallRequest
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "sess-1", params.SessionKey)
		assert.Equal(t, "sess-1:member-1", params.IdempotencyKey)
		assert.Contains(t, params.Prompt, "decide")

		return completeResult(t, req, CallResult{
			Text:     `{"vote":"approve"}`,
			Provider: "stub",
			Model:    "stub-1",
		})
	})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		inner(w, r)
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL)
	res, err := g.Call(context.Background(), CallRequest{
		SessionKey:     "sess-1",
		IdempotencyKey: "sess-1:member-1",
		Prompt:         "decide",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"vote":"approve"}`, res.Text)
	assert.Equal(t, "stub", res.Provider)
	assert.Equal(t, "stub-1", res.Model)
	assert.Equal(t, "sess-1:member-1", gotIdempotencyKey)
}

func TestCall_EmptyResponseTextFails(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		return completeResult(t, req, CallResult{Text: "   "})
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL)
	_, err := g.Call(context.Background(), CallRequest{Prompt: "decide"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response text")
}

func TestCall_HTTPErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL)
	_, err := g.Call(context.Background(), CallRequest{Prompt: "decide"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestCall_RPCError(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		return JSONRPCResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Error: &JSONRPCError{
				Code:    ErrCodeInternal,
				Message: "provider overloaded",
			},
		}
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL)
	_, err := g.Call(context.Background(), CallRequest{Prompt: "decide"})
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrCodeInternal, rpcErr.Code)
	assert.Contains(t, rpcErr.Error(), "provider overloaded")
}

func TestCall_RequestIDsIncrease(t *testing.T) {
	var ids []int64
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		// JSON numbers decode as float64 through the any-typed ID field.
		ids = append(ids, int64(req.ID.(float64)))
		return completeResult(t, req, CallResult{Text: "ok"})
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL)
	for i := 0; i < 3; i++ {
		_, err := g.Call(context.Background(), CallRequest{Prompt: "decide"})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}
