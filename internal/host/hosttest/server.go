package hosttest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/droneedit/droneedit-agent/internal/host"
)

// Handler serves the bridge protocol at /rpc. A non-empty token is required
// as a bearer credential.
func (h *Host) Handler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req host.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := host.Response{JSONRPC: "2.0", ID: req.ID}
		result, err := h.serve(r.Context(), req)
		if err != nil {
			var rpcErr *host.RPCError
			if !errors.As(err, &rpcErr) {
				rpcErr = &host.RPCError{Code: -32000, Message: err.Error()}
			}
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func (h *Host) serve(ctx context.Context, req host.Request) (json.RawMessage, error) {
	switch req.Method {
	case "hello":
		hello, err := h.Hello(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hello)
	case "call":
		var p struct {
			Handle string            `json:"handle"`
			Method string            `json:"method"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &host.RPCError{Code: -32602, Message: "bad params"}
		}
		return h.dispatch(p.Handle, p.Method, p.Args)
	default:
		return nil, &host.RPCError{Code: host.CodeMethodNotFound, Message: "unknown method " + req.Method}
	}
}

// Connect returns a live session on h without going through HTTP.
func (h *Host) Connect(ctx context.Context) (*host.Session, error) {
	bridge, err := host.NewEntryPoint(h).AcquireBridge(ctx)
	if err != nil {
		return nil, err
	}
	return bridge.AcquireSession(ctx)
}
