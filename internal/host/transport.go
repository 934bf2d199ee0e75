package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/droneedit/droneedit-agent/internal/logging"
)

const (
	defaultCallTimeout = 30 * time.Second
	maxResponseBytes   = 8 << 20
)

// Transport carries bridge requests to the host.
type Transport interface {
	// Hello performs the bridge handshake and returns the root object.
	Hello(ctx context.Context) (Hello, error)

	// Invoke calls method on the object identified by handle.
	Invoke(ctx context.Context, handle, method string, args []any) (json.RawMessage, error)
}

// Hello is the handshake result.
type Hello struct {
	Product string    `json:"product"`
	Version string    `json:"version"`
	Root    HandleRef `json:"root"`
}

// CallParams are the params of a "call" request.
type CallParams struct {
	Handle string `json:"handle"`
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// HTTPTransport speaks JSON-RPC over HTTP POST to the in-host bridge script.
type HTTPTransport struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPTransport creates a transport for the bridge at baseURL.
func NewHTTPTransport(baseURL, token string, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		endpoint: strings.TrimRight(baseURL, "/") + "/rpc",
		token:    token,
		httpClient: &http.Client{
			Timeout: defaultCallTimeout,
		},
		logger: logging.OrDiscard(logger),
	}
}

func (t *HTTPTransport) Hello(ctx context.Context) (Hello, error) {
	var h Hello
	raw, err := t.roundTrip(ctx, "hello", map[string]string{"client": "droneedit-agent"})
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(raw, &h); err != nil {
		return h, fmt.Errorf("decode hello: %w", err)
	}
	if h.Root.Handle == "" {
		return h, fmt.Errorf("bridge hello returned no root handle")
	}
	return h, nil
}

func (t *HTTPTransport) Invoke(ctx context.Context, handle, method string, args []any) (json.RawMessage, error) {
	return t.roundTrip(ctx, "call", CallParams{Handle: handle, Method: method, Args: args})
}

func (t *HTTPTransport) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: p})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read bridge response: %w", err)
	}

	t.logger.Debug("bridge round trip",
		"method", method,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bridge returned HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 256))
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode bridge response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
