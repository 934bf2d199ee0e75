package host

import (
	"errors"
	"fmt"
)

var (
	// ErrHostUnavailable means no bridge entry point exists. It is permanent
	// for the lifetime of the process and is never retried.
	ErrHostUnavailable = errors.New("host scripting entry point not available")

	// ErrConnectionExhausted means every connection attempt failed.
	ErrConnectionExhausted = errors.New("host connection attempts exhausted")
)

// CodeMethodNotFound is the JSON-RPC code the bridge uses for an operation
// the host object does not expose.
const CodeMethodNotFound = -32601

// RPCError is an error object returned by the bridge.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message)
}

// CallError wraps a failed host call.
type CallError struct {
	Kind   Kind
	Method string
	Err    error
}

func (e *CallError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("host call %s failed: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("host call %s.%s failed: %v", e.Kind, e.Method, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// IsMethodNotFound reports whether err is the bridge saying the operation
// does not exist on the target object.
func IsMethodNotFound(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeMethodNotFound
}
