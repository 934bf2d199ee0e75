// Package hosttest provides an in-memory editing host that speaks the
// bridge protocol, for tests of everything that drives the host.
package hosttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/droneedit/droneedit-agent/internal/host"
)

// Method implements one host operation.
type Method func(h *Host, self *node, args []json.RawMessage) (any, error)

type node struct {
	ref  host.HandleRef
	data any
}

// Host is a scriptable fake of the editing host. It implements
// host.Transport; Handler exposes it over HTTP.
type Host struct {
	mu sync.Mutex

	Product string
	Version string

	nodes   map[string]*node
	next    int
	methods map[host.Kind]map[string]Method

	failHello  int
	failScript int
	failures   map[string]error
	calls      map[string]int

	root        *node
	app         *node
	manager     *node
	project     *node
	pool        *node
	rootFolder  *node
	curFolder   *node
	uiManager   *node
	timelines   []*node
	curTimeline *node

	durations map[string]any
	missing   map[string]bool

	Alerts      []string
	Progress    []int
	fileAnswers []string
	menuAnswers []string

	RenderJobs     []map[string]any
	RenderStarted  int
	ProjectSaves   int
	DefaultLevel   float64
	DefaultSeconds float64
}

type folderData struct {
	name    string
	clips   []*node
	folders []*node
}

type clipData struct {
	name     string
	path     string
	duration any
	fps      float64
}

type timelineData struct {
	name        string
	fps         float64
	width       int
	height      int
	video       []*node
	audioTracks int
	levels      map[int]float64
	volumes     map[int]float64
	effects     map[int][]string
	transitions []string
}

type itemData struct {
	clip     *node
	start    int64
	end      int64
	srcStart int64
	srcEnd   int64
	luts     []string
	tools    []string
	comps    int
}

// New creates a host with one open project and an empty media pool.
func New() *Host {
	h := &Host{
		Product:        "DaVinci Resolve",
		Version:        "18.6.4",
		nodes:          map[string]*node{},
		failures:       map[string]error{},
		calls:          map[string]int{},
		durations:      map[string]any{},
		missing:        map[string]bool{},
		DefaultLevel:   -12,
		DefaultSeconds: 40,
	}
	h.methods = defaultMethods()
	h.root = h.newNode(host.KindBridge, nil)
	h.app = h.newNode(host.KindResolve, nil)
	h.manager = h.newNode(host.KindProjectManager, nil)
	h.project = h.newNode(host.KindProject, "Drone Project")
	h.pool = h.newNode(host.KindMediaPool, nil)
	h.rootFolder = h.newNode(host.KindFolder, &folderData{name: "Master"})
	h.curFolder = h.rootFolder
	h.uiManager = h.newNode(host.KindUIManager, nil)
	return h
}

func (h *Host) newNode(kind host.Kind, data any) *node {
	h.next++
	n := &node{ref: host.HandleRef{Handle: fmt.Sprintf("h%d", h.next), Kind: kind}, data: data}
	h.nodes[n.ref.Handle] = n
	return n
}

// FailHello makes the next n handshakes fail.
func (h *Host) FailHello(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failHello = n
}

// FailScriptApp makes the next n application lookups fail.
func (h *Host) FailScriptApp(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failScript = n
}

// Fail makes kind.method return err until cleared with a nil err.
func (h *Host) Fail(kind host.Kind, method string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(kind) + "." + method
	if err == nil {
		delete(h.failures, key)
		return
	}
	h.failures[key] = err
}

// Remove drops an operation, as an older host release would lack it.
func (h *Host) Remove(kind host.Kind, method string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.methods[kind], method)
}

// Calls returns how many times kind.method was invoked.
func (h *Host) Calls(kind host.Kind, method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[string(kind)+"."+method]
}

// SetDuration controls the Duration clip property reported for files
// imported from path: a float64 (seconds), a timecode string, or nil.
func (h *Host) SetDuration(path string, d any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.durations[path] = d
}

// SetMissing makes ImportMedia skip path, as if the file were gone.
func (h *Host) SetMissing(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.missing[path] = true
}

// QueueFileAnswer queues a RequestFile reply for the UI manager.
func (h *Host) QueueFileAnswer(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fileAnswers = append(h.fileAnswers, path)
}

// QueueMenuAnswer queues a ShowMenu reply for the UI manager.
func (h *Host) QueueMenuAnswer(choice string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.menuAnswers = append(h.menuAnswers, choice)
}

// AddClip imports a clip directly into the root bin.
func (h *Host) AddClip(path string, duration any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.durations[path] = duration
	c := h.importClip(path)
	f := h.rootFolder.data.(*folderData)
	f.clips = append(f.clips, c)
}

// Hello implements host.Transport.
func (h *Host) Hello(ctx context.Context) (host.Hello, error) {
	if err := ctx.Err(); err != nil {
		return host.Hello{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls["Bridge.hello"]++
	if h.failHello > 0 {
		h.failHello--
		return host.Hello{}, errors.New("bridge not ready")
	}
	return host.Hello{Product: h.Product, Version: h.Version, Root: h.root.ref}, nil
}

// Invoke implements host.Transport. Arguments and results go through JSON
// so the in-memory path matches the wire.
func (h *Host) Invoke(ctx context.Context, handle, method string, args []any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return h.dispatch(handle, method, raw)
}

func (h *Host) dispatch(handle, method string, args []json.RawMessage) (json.RawMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	self, ok := h.nodes[handle]
	if !ok {
		return nil, &host.RPCError{Code: -32602, Message: "unknown handle " + handle}
	}
	key := string(self.ref.Kind) + "." + method
	h.calls[key]++

	if err, ok := h.failures[key]; ok {
		return nil, &host.RPCError{Code: -32000, Message: err.Error()}
	}
	if self.ref.Kind == host.KindBridge && method == "scriptapp" && h.failScript > 0 {
		h.failScript--
		return nil, &host.RPCError{Code: -32000, Message: "application not responding"}
	}

	fn, ok := h.methods[self.ref.Kind][method]
	if !ok {
		return nil, &host.RPCError{Code: host.CodeMethodNotFound, Message: "no method " + key}
	}
	result, err := fn(h, self, args)
	if err != nil {
		return nil, &host.RPCError{Code: -32000, Message: err.Error()}
	}
	return json.Marshal(encode(result))
}

func encode(v any) any {
	switch t := v.(type) {
	case *node:
		if t == nil {
			return nil
		}
		return t.ref
	case []*node:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n.ref
		}
		return out
	default:
		return v
	}
}

func (h *Host) importClip(path string) *node {
	d, ok := h.durations[path]
	if !ok {
		d = h.DefaultSeconds
	}
	return h.newNode(host.KindMediaPoolItem, &clipData{
		name:     filepath.Base(path),
		path:     path,
		duration: d,
		fps:      30,
	})
}

// ClipNames lists every clip in the media pool, root bin first.
func (h *Host) ClipNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	var walk func(f *folderData)
	walk = func(f *folderData) {
		for _, c := range f.clips {
			names = append(names, c.data.(*clipData).name)
		}
		for _, sub := range f.folders {
			walk(sub.data.(*folderData))
		}
	}
	walk(h.rootFolder.data.(*folderData))
	return names
}

// BinNames lists the sub-bins of the root bin.
func (h *Host) BinNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	for _, f := range h.rootFolder.data.(*folderData).folders {
		names = append(names, f.data.(*folderData).name)
	}
	return names
}

// TimelineNames lists timelines in creation order.
func (h *Host) TimelineNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, len(h.timelines))
	for i, t := range h.timelines {
		names[i] = t.data.(*timelineData).name
	}
	return names
}

// CurrentTimelineName returns the active timeline's name, or "".
func (h *Host) CurrentTimelineName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.curTimeline == nil {
		return ""
	}
	return h.curTimeline.data.(*timelineData).name
}

// SetCurrentTimelineByName switches the active timeline.
func (h *Host) SetCurrentTimelineByName(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.timelines {
		if t.data.(*timelineData).name == name {
			h.curTimeline = t
			return true
		}
	}
	return false
}

// TimelineInfo is a snapshot of a fake timeline for assertions.
type TimelineInfo struct {
	Name        string
	Items       []ItemInfo
	Transitions []string
	Volumes     map[int]float64
	Effects     map[int][]string
	AudioTracks int
}

// ItemInfo is a snapshot of a fake timeline item.
type ItemInfo struct {
	Clip     string
	Start    int64
	End      int64
	SrcStart int64
	SrcEnd   int64
	LUTs     []string
	Tools    []string
}

// Timeline returns a snapshot of the named timeline.
func (h *Host) Timeline(name string) (TimelineInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.timelines {
		td := t.data.(*timelineData)
		if td.name != name {
			continue
		}
		info := TimelineInfo{
			Name:        td.name,
			Transitions: append([]string(nil), td.transitions...),
			Volumes:     map[int]float64{},
			Effects:     map[int][]string{},
			AudioTracks: td.audioTracks,
		}
		for k, v := range td.volumes {
			info.Volumes[k] = v
		}
		for k, v := range td.effects {
			info.Effects[k] = append([]string(nil), v...)
		}
		for _, it := range td.video {
			d := it.data.(*itemData)
			info.Items = append(info.Items, ItemInfo{
				Clip:     d.clip.data.(*clipData).name,
				Start:    d.start,
				End:      d.end,
				SrcStart: d.srcStart,
				SrcEnd:   d.srcEnd,
				LUTs:     append([]string(nil), d.luts...),
				Tools:    append([]string(nil), d.tools...),
			})
		}
		return info, true
	}
	return TimelineInfo{}, false
}

// SetTrackLevel sets the measured level reported for an audio track of the
// current timeline.
func (h *Host) SetTrackLevel(track int, dbfs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.curTimeline == nil {
		return
	}
	h.curTimeline.data.(*timelineData).levels[track] = dbfs
}
