package editor

import (
	"context"
	"strconv"
	"strings"

	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/timecode"
)

// Placement puts a source range of a clip on a timeline. Start and End are
// offsets into the clip in seconds.
type Placement struct {
	Clip  *host.Object
	Name  string
	Start float64
	End   float64
}

// Item is a clip placement on the primary video layer.
type Item struct {
	Object *host.Object
	Name   string
	Start  int64 // timeline frames
	End    int64
	Source *host.Object
}

type clipInfo struct {
	Item       *host.Object `json:"mediaPoolItem"`
	StartFrame int64        `json:"startFrame"`
	EndFrame   int64        `json:"endFrame"`
}

// CreateTimeline creates a timeline called name and appends placements in
// order. The new timeline becomes current. It returns nil on failure.
func (d *Delegate) CreateTimeline(ctx context.Context, name string, placements []Placement) *host.Object {
	if strings.TrimSpace(name) == "" {
		d.invalid("create timeline", "empty timeline name")
		return nil
	}
	mp := d.MediaPool(ctx)
	if mp == nil {
		return nil
	}
	tl := d.object(ctx, mp, "CreateEmptyTimeline", name)
	if tl == nil {
		d.logger.Error("host refused to create timeline", "timeline", name)
		return nil
	}
	if len(placements) > 0 && !d.appendPlacements(ctx, mp, d.TimelineFPS(ctx, tl), placements) {
		d.logger.Error("timeline created without clips", "timeline", name)
	}
	d.logger.Info("created timeline", "timeline", name, "placements", len(placements))
	return tl
}

func (d *Delegate) appendPlacements(ctx context.Context, mp *host.Object, fps int, placements []Placement) bool {
	infos := make([]clipInfo, 0, len(placements))
	for _, p := range placements {
		if p.Clip == nil || p.End <= p.Start {
			d.invalid("append to timeline", "placement without clip or with empty range")
			continue
		}
		infos = append(infos, clipInfo{
			Item:       p.Clip,
			StartFrame: timecode.SecondsToFrames(p.Start, fps),
			EndFrame:   timecode.SecondsToFrames(p.End, fps),
		})
	}
	if len(infos) == 0 {
		return false
	}
	v, ok := d.call(ctx, mp, "AppendToTimeline", infos)
	return ok && len(v.Objects()) > 0
}

// CurrentTimeline returns the project's active timeline.
func (d *Delegate) CurrentTimeline(ctx context.Context) *host.Object {
	p := d.Project(ctx)
	if p == nil {
		return nil
	}
	return d.object(ctx, p, "GetCurrentTimeline")
}

// FindTimeline returns the timeline called name.
func (d *Delegate) FindTimeline(ctx context.Context, name string) *host.Object {
	if name == "" {
		d.invalid("find timeline", "empty timeline name")
		return nil
	}
	p := d.Project(ctx)
	if p == nil {
		return nil
	}
	v, ok := d.call(ctx, p, "GetTimelineCount")
	if !ok {
		return nil
	}
	n, _ := v.Int()
	for i := int64(1); i <= n; i++ {
		tl := d.object(ctx, p, "GetTimelineByIndex", i)
		if tl != nil && d.str(ctx, tl, "GetName") == name {
			return tl
		}
	}
	return nil
}

// SetCurrentTimeline makes tl the active timeline.
func (d *Delegate) SetCurrentTimeline(ctx context.Context, tl *host.Object) bool {
	if tl == nil {
		d.invalid("set current timeline", "nil timeline")
		return false
	}
	p := d.Project(ctx)
	if p == nil {
		return false
	}
	v, ok := d.call(ctx, p, "SetCurrentTimeline", tl)
	return ok && v.Truthy()
}

// TimelineName returns tl's name.
func (d *Delegate) TimelineName(ctx context.Context, tl *host.Object) string {
	if tl == nil {
		return ""
	}
	return d.str(ctx, tl, "GetName")
}

// TimelineFPS returns tl's frame rate rounded to whole frames.
func (d *Delegate) TimelineFPS(ctx context.Context, tl *host.Object) int {
	if f := d.settingFloat(ctx, tl, "timelineFrameRate"); f > 0 {
		return timecode.RoundFPS(f)
	}
	return timecode.DefaultFPS
}

func (d *Delegate) settingFloat(ctx context.Context, tl *host.Object, key string) float64 {
	if tl == nil {
		return 0
	}
	v, ok := d.call(ctx, tl, "GetSetting", key)
	if !ok {
		return 0
	}
	if f, ok := v.Float(); ok {
		return f
	}
	s, _ := v.String()
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// TimelineItems lists the items on the primary video layer in order.
func (d *Delegate) TimelineItems(ctx context.Context, tl *host.Object) []Item {
	if tl == nil {
		d.invalid("list timeline items", "nil timeline")
		return nil
	}
	v, ok := d.call(ctx, tl, "GetItemListInTrack", "video", 1)
	if !ok {
		return nil
	}
	var items []Item
	for _, obj := range v.Objects() {
		it := Item{Object: obj, Name: d.str(ctx, obj, "GetName")}
		if v, ok := d.call(ctx, obj, "GetStart"); ok {
			it.Start, _ = v.Int()
		}
		if v, ok := d.call(ctx, obj, "GetEnd"); ok {
			it.End, _ = v.Int()
		}
		it.Source = d.object(ctx, obj, "GetMediaPoolItem")
		items = append(items, it)
	}
	return items
}

// AddTransitions inserts a transition between every consecutive pair of
// primary-layer items. It returns the number inserted; ok is true when at
// least one pair succeeded.
func (d *Delegate) AddTransitions(ctx context.Context, tl *host.Object, name string, seconds float64) (int, bool) {
	switch {
	case tl == nil:
		d.invalid("add transitions", "nil timeline")
		return 0, false
	case name == "":
		d.invalid("add transitions", "empty transition name")
		return 0, false
	case seconds <= 0:
		d.invalid("add transitions", "non-positive duration")
		return 0, false
	}
	items := d.TimelineItems(ctx, tl)
	if len(items) < 2 {
		d.invalid("add transitions", "fewer than two timeline items")
		return 0, false
	}

	frames := timecode.SecondsToFrames(seconds, d.TimelineFPS(ctx, tl))
	added := 0
	for i := 0; i+1 < len(items); i++ {
		v, ok := d.call(ctx, tl, "AddTransition", name, items[i].Object, items[i+1].Object, frames)
		if ok && v.Truthy() {
			added++
			continue
		}
		d.logger.Warn("transition not added", "pair", i+1, "from", items[i].Name, "to", items[i+1].Name)
	}
	d.logger.Info("added transitions", "transition", name, "added", added, "pairs", len(items)-1)
	return added, added > 0
}

// ApplyEffect adds a compositing comp to item and a tool called toolName to it.
func (d *Delegate) ApplyEffect(ctx context.Context, item *host.Object, toolName string) bool {
	if item == nil || toolName == "" {
		d.invalid("apply effect", "nil item or empty tool name")
		return false
	}
	comp := d.object(ctx, item, "AddFusionComp")
	if comp == nil {
		d.logger.Error("no compositing comp for item", "item", item.String())
		return false
	}
	v, ok := d.call(ctx, comp, "AddTool", toolName)
	if !ok || !v.Truthy() {
		d.logger.Error("effect tool not added", "tool", toolName)
		return false
	}
	return true
}

// TrimItem removes it from tl and appends its source again cut to
// [start, end] seconds. The host has no in-place trim.
func (d *Delegate) TrimItem(ctx context.Context, tl *host.Object, it Item, start, end float64) bool {
	switch {
	case tl == nil || it.Object == nil:
		d.invalid("trim item", "nil timeline or item")
		return false
	case it.Source == nil:
		d.invalid("trim item", "item has no source clip")
		return false
	case start < 0 || end <= start:
		d.invalid("trim item", "empty trim range")
		return false
	}
	if !d.SetCurrentTimeline(ctx, tl) {
		return false
	}
	v, ok := d.call(ctx, tl, "DeleteClips", []*host.Object{it.Object})
	if !ok || !v.Truthy() {
		d.logger.Error("could not remove item for trim", "item", it.Name)
		return false
	}
	mp := d.MediaPool(ctx)
	if mp == nil {
		return false
	}
	return d.appendPlacements(ctx, mp, d.TimelineFPS(ctx, tl), []Placement{{Clip: it.Source, Name: it.Name, Start: start, End: end}})
}

// ApplyLUT sets lutPath on the first grading node of every primary-layer
// item. ok is true when at least one item took it.
func (d *Delegate) ApplyLUT(ctx context.Context, tl *host.Object, lutPath string) (int, bool) {
	if tl == nil || lutPath == "" {
		d.invalid("apply LUT", "nil timeline or empty LUT path")
		return 0, false
	}
	applied := 0
	for _, it := range d.TimelineItems(ctx, tl) {
		if d.ApplyItemLUT(ctx, it, lutPath) {
			applied++
		}
	}
	return applied, applied > 0
}

// ApplyItemLUT sets lutPath on the first grading node of one item.
func (d *Delegate) ApplyItemLUT(ctx context.Context, it Item, lutPath string) bool {
	if it.Object == nil || lutPath == "" {
		d.invalid("apply LUT", "nil item or empty LUT path")
		return false
	}
	if v, ok := d.call(ctx, it.Object, "SetLUT", 1, lutPath); ok && v.Truthy() {
		return true
	}
	d.logger.Warn("LUT not applied", "item", it.Name)
	return false
}
