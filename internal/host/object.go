// Package host talks to the editing host through its scripting bridge.
//
// The host exposes its object model (application, project manager, project,
// media pool, timelines, items, compositions, UI manager) as remote objects.
// Every object is a handle plus a kind; calling a method on one sends a
// request over the bridge transport and returns a Value that may itself
// contain handles.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Kind names the class of a remote object.
type Kind string

const (
	KindBridge         Kind = "Bridge"
	KindResolve        Kind = "Resolve"
	KindProjectManager Kind = "ProjectManager"
	KindProject        Kind = "Project"
	KindMediaPool      Kind = "MediaPool"
	KindFolder         Kind = "Folder"
	KindMediaPoolItem  Kind = "MediaPoolItem"
	KindTimeline       Kind = "Timeline"
	KindTimelineItem   Kind = "TimelineItem"
	KindFusionComp     Kind = "FusionComp"
	KindUIManager      Kind = "UIManager"
)

// HandleRef is the wire form of an object reference.
type HandleRef struct {
	Handle string `json:"$handle"`
	Kind   Kind   `json:"$kind"`
}

// Object is a borrowed reference to a host-owned object. It must not be
// assumed to outlive the host call sequence that produced it.
type Object struct {
	transport Transport
	ref       HandleRef
}

// NewObject binds a handle to a transport.
func NewObject(t Transport, handle string, kind Kind) *Object {
	return &Object{transport: t, ref: HandleRef{Handle: handle, Kind: kind}}
}

// Handle returns the bridge handle id, or "" for a nil object.
func (o *Object) Handle() string {
	if o == nil {
		return ""
	}
	return o.ref.Handle
}

// Kind returns the object's kind, or "" for a nil object.
func (o *Object) Kind() Kind {
	if o == nil {
		return ""
	}
	return o.ref.Kind
}

func (o *Object) String() string {
	if o == nil {
		return "<nil object>"
	}
	return fmt.Sprintf("%s(%s)", o.ref.Kind, o.ref.Handle)
}

// MarshalJSON encodes the object as a handle reference so objects can be
// passed as call arguments.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.ref)
}

// Call invokes method on the remote object. Any failure, including a
// transport failure, is returned as a *CallError.
func (o *Object) Call(ctx context.Context, method string, args ...any) (Value, error) {
	if o == nil || o.transport == nil {
		return Value{}, &CallError{Method: method, Err: errors.New("nil object")}
	}
	if args == nil {
		args = []any{}
	}
	raw, err := o.transport.Invoke(ctx, o.ref.Handle, method, args)
	if err != nil {
		return Value{}, &CallError{Kind: o.ref.Kind, Method: method, Err: err}
	}
	return Value{raw: raw, transport: o.transport}, nil
}

// Value is a decoded-on-demand call result.
type Value struct {
	raw       json.RawMessage
	transport Transport
}

// NewValue wraps a raw JSON result.
func NewValue(t Transport, raw json.RawMessage) Value {
	return Value{raw: raw, transport: t}
}

// Raw returns the undecoded JSON.
func (v Value) Raw() json.RawMessage { return v.raw }

// IsNull reports whether the host returned nothing (null or no result).
func (v Value) IsNull() bool {
	return len(v.raw) == 0 || string(v.raw) == "null"
}

// Decode unmarshals the result into dst.
func (v Value) Decode(dst any) error {
	if v.IsNull() {
		return errors.New("null value")
	}
	return json.Unmarshal(v.raw, dst)
}

// Object returns the handle carried by the value, if any.
func (v Value) Object() (*Object, bool) {
	if v.IsNull() {
		return nil, false
	}
	var ref HandleRef
	if err := json.Unmarshal(v.raw, &ref); err != nil || ref.Handle == "" {
		return nil, false
	}
	return &Object{transport: v.transport, ref: ref}, true
}

// String returns the value when it is a JSON string.
func (v Value) String() (string, bool) {
	var s string
	if v.IsNull() || json.Unmarshal(v.raw, &s) != nil {
		return "", false
	}
	return s, true
}

// Float returns the value when it is a JSON number.
func (v Value) Float() (float64, bool) {
	var f float64
	if v.IsNull() || json.Unmarshal(v.raw, &f) != nil {
		return 0, false
	}
	return f, true
}

// Int returns the value as an integer when it is numeric.
func (v Value) Int() (int64, bool) {
	f, ok := v.Float()
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Truthy interprets the result the way host scripts do: false, null, 0 and
// "" are failures, anything else is success.
func (v Value) Truthy() bool {
	if v.IsNull() {
		return false
	}
	var b bool
	if json.Unmarshal(v.raw, &b) == nil {
		return b
	}
	if f, ok := v.Float(); ok {
		return f != 0
	}
	if s, ok := v.String(); ok {
		return s != ""
	}
	return true
}

// List returns the elements of an array result. Hosts that return
// 1-indexed tables as JSON objects ({"1": ..., "2": ...}) are accepted
// too, ordered by index.
func (v Value) List() []Value {
	if v.IsNull() {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(v.raw, &arr); err == nil {
		out := make([]Value, len(arr))
		for i, r := range arr {
			out[i] = Value{raw: r, transport: v.transport}
		}
		return out
	}

	var table map[string]json.RawMessage
	if err := json.Unmarshal(v.raw, &table); err != nil {
		return nil
	}
	type entry struct {
		idx int
		raw json.RawMessage
	}
	entries := make([]entry, 0, len(table))
	for k, r := range table {
		idx, err := strconv.Atoi(k)
		if err != nil {
			// Not an indexed table (probably a handle or a record).
			return nil
		}
		entries = append(entries, entry{idx: idx, raw: r})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
	out := make([]Value, len(entries))
	for i, e := range entries {
		out[i] = Value{raw: e.raw, transport: v.transport}
	}
	return out
}

// Objects returns every handle in a list result, skipping non-handles.
func (v Value) Objects() []*Object {
	var out []*Object
	for _, item := range v.List() {
		if obj, ok := item.Object(); ok {
			out = append(out, obj)
		}
	}
	return out
}

// Map returns the members of an object result.
func (v Value) Map() map[string]Value {
	var m map[string]json.RawMessage
	if v.IsNull() || json.Unmarshal(v.raw, &m) != nil {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, r := range m {
		out[k] = Value{raw: r, transport: v.transport}
	}
	return out
}
