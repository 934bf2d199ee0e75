package editor

import (
	"context"
	"strings"

	"github.com/droneedit/droneedit-agent/internal/config"
)

// TimelineSummary describes a timeline for persistence.
type TimelineSummary struct {
	Name   string
	FPS    int
	Width  int
	Height int
}

// ClipDescriptor is a point-in-time description of one placement.
type ClipDescriptor struct {
	Index      int
	Name       string
	StartFrame int64
	EndFrame   int64
	FilePath   string
}

// Snapshot describes the current timeline and its primary-layer clips.
// With no current timeline it returns a zero summary and no clips.
func (d *Delegate) Snapshot(ctx context.Context) (TimelineSummary, []ClipDescriptor) {
	tl := d.CurrentTimeline(ctx)
	if tl == nil {
		return TimelineSummary{}, nil
	}
	sum := TimelineSummary{
		Name:   d.TimelineName(ctx, tl),
		FPS:    d.TimelineFPS(ctx, tl),
		Width:  int(d.settingFloat(ctx, tl, "timelineResolutionWidth")),
		Height: int(d.settingFloat(ctx, tl, "timelineResolutionHeight")),
	}

	var clips []ClipDescriptor
	for i, it := range d.TimelineItems(ctx, tl) {
		cd := ClipDescriptor{Index: i, Name: it.Name, StartFrame: it.Start, EndFrame: it.End}
		if it.Source != nil {
			if v, ok := d.call(ctx, it.Source, "GetClipProperty", "File Path"); ok {
				cd.FilePath, _ = v.String()
			}
		}
		clips = append(clips, cd)
	}
	return sum, clips
}

// QueueRender configures a render of the current timeline into dir and
// starts it. It returns the host's job id.
func (d *Delegate) QueueRender(ctx context.Context, name, format, resolution, dir string) (string, bool) {
	if dir == "" || name == "" {
		d.invalid("queue render", "empty output dir or name")
		return "", false
	}
	w, h, err := config.ParseResolution(resolution)
	if err != nil {
		d.invalid("queue render", err.Error())
		return "", false
	}
	p := d.Project(ctx)
	if p == nil {
		return "", false
	}

	settings := map[string]any{
		"TargetDir":    dir,
		"CustomName":   name,
		"FormatWidth":  w,
		"FormatHeight": h,
		"ExportVideo":  true,
		"ExportAudio":  true,
	}
	if format != "" {
		settings["Format"] = strings.ToLower(format)
	}
	if v, ok := d.call(ctx, p, "SetRenderSettings", settings); !ok || !v.Truthy() {
		d.logger.Error("render settings rejected", "format", format, "resolution", resolution)
		return "", false
	}
	v, ok := d.call(ctx, p, "AddRenderJob")
	if !ok {
		return "", false
	}
	job, _ := v.String()
	if job == "" {
		d.logger.Error("host did not queue a render job")
		return "", false
	}
	if v, ok := d.call(ctx, p, "StartRendering", job); !ok || !v.Truthy() {
		d.logger.Error("render did not start", "job", job)
		return job, false
	}
	d.logger.Info("render started", "job", job, "dir", dir)
	return job, true
}

