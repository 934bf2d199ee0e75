package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/host/hosttest"
)

func newTestDelegate(t *testing.T, fake *hosttest.Host) *Delegate {
	t.Helper()
	session, err := fake.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	return New(session, nil, nil)
}

func TestImportFiles(t *testing.T) {
	fake := hosttest.New()
	fake.SetDuration("/footage/b.mp4", "00:00:12:15")
	d := newTestDelegate(t, fake)
	ctx := context.Background()

	clips := d.ImportFiles(ctx, []string{"/footage/a.mp4", " ", "/footage/b.mp4"}, "Drone Footage")
	if len(clips) != 2 {
		t.Fatalf("imported %d clips, want 2", len(clips))
	}
	if clips[0].Name != "a.mp4" || clips[0].FilePath != "/footage/a.mp4" {
		t.Errorf("clip[0] = %+v", clips[0])
	}
	if !clips[0].Duration.Known || clips[0].Duration.Seconds != 40 {
		t.Errorf("clip[0] duration = %+v, want 40s", clips[0].Duration)
	}
	if got := clips[1].Duration.Seconds; got != 12.5 {
		t.Errorf("timecode duration = %v, want 12.5", got)
	}
	if bins := fake.BinNames(); len(bins) != 1 || bins[0] != "Drone Footage" {
		t.Errorf("bins = %v", bins)
	}

	// Importing into the same bin again reuses it.
	d.ImportFiles(ctx, []string{"/footage/c.mp4"}, "Drone Footage")
	if bins := fake.BinNames(); len(bins) != 1 {
		t.Errorf("bins after second import = %v", bins)
	}
}

func TestImportFiles_Validation(t *testing.T) {
	fake := hosttest.New()
	d := newTestDelegate(t, fake)
	if clips := d.ImportFiles(context.Background(), nil, ""); clips != nil {
		t.Errorf("ImportFiles(nil) = %v, want nil", clips)
	}
	if got := fake.Calls(host.KindMediaPool, "ImportMedia"); got != 0 {
		t.Errorf("host called %d times for invalid import", got)
	}
}

func TestImportFiles_HostFailure(t *testing.T) {
	fake := hosttest.New()
	fake.Fail(host.KindMediaPool, "ImportMedia", errors.New("disk full"))
	d := newTestDelegate(t, fake)
	if clips := d.ImportFiles(context.Background(), []string{"/a.mp4"}, ""); clips != nil {
		t.Errorf("ImportFiles = %v, want nil on host failure", clips)
	}
}

func TestUnknownDuration(t *testing.T) {
	fake := hosttest.New()
	fake.AddClip("/footage/x.mov", nil)
	fake.AddClip("/footage/y.mov", "garbage")
	d := newTestDelegate(t, fake)
	for _, c := range d.Clips(context.Background()) {
		if c.Duration.Known {
			t.Errorf("%s duration known = %+v, want unknown", c.Name, c.Duration)
		}
	}
}

func TestCreateTimelineAndTransitions(t *testing.T) {
	fake := hosttest.New()
	d := newTestDelegate(t, fake)
	ctx := context.Background()

	clips := d.ImportFiles(ctx, []string{"/a.mp4", "/b.mp4", "/c.mp4"}, "")
	var placements []Placement
	for _, c := range clips {
		placements = append(placements, Placement{Clip: c.Item, Start: 2, End: 6})
	}
	tl := d.CreateTimeline(ctx, "Drone Edit", placements)
	if tl == nil {
		t.Fatal("CreateTimeline returned nil")
	}
	info, ok := fake.Timeline("Drone Edit")
	if !ok || len(info.Items) != 3 {
		t.Fatalf("timeline = %+v", info)
	}
	if info.Items[1].Start != 120 || info.Items[1].SrcStart != 60 || info.Items[1].SrcEnd != 180 {
		t.Errorf("item[1] = %+v", info.Items[1])
	}

	added, ok := d.AddTransitions(ctx, tl, "Cross Dissolve", 1.0)
	if !ok || added != 2 {
		t.Errorf("AddTransitions = %d, %v; want 2, true", added, ok)
	}

	if d.FindTimeline(ctx, "Drone Edit") == nil {
		t.Error("FindTimeline did not find the new timeline")
	}
	if d.FindTimeline(ctx, "Nope") != nil {
		t.Error("FindTimeline found a missing timeline")
	}
	if d.CreateTimeline(ctx, "Drone Edit", nil) != nil {
		t.Error("duplicate timeline name should fail")
	}
}

func TestAddTransitions_PartialFailure(t *testing.T) {
	fake := hosttest.New()
	d := newTestDelegate(t, fake)
	ctx := context.Background()
	clips := d.ImportFiles(ctx, []string{"/a.mp4", "/b.mp4"}, "")
	tl := d.CreateTimeline(ctx, "T", []Placement{
		{Clip: clips[0].Item, Start: 0, End: 4},
		{Clip: clips[1].Item, Start: 0, End: 4},
	})

	fake.Fail(host.KindTimeline, "AddTransition", errors.New("unsupported"))
	if n, ok := d.AddTransitions(ctx, tl, "Cross Dissolve", 1); ok || n != 0 {
		t.Errorf("AddTransitions = %d, %v; want 0, false", n, ok)
	}

	if n, ok := d.AddTransitions(ctx, tl, "", 1); ok || n != 0 {
		t.Error("empty transition name should be rejected")
	}
}

func TestAddTransitions_OldHost(t *testing.T) {
	fake := hosttest.New()
	fake.Version = "17.4.0"
	d := newTestDelegate(t, fake)
	ctx := context.Background()
	clips := d.ImportFiles(ctx, []string{"/a.mp4", "/b.mp4"}, "")
	tl := d.CreateTimeline(ctx, "T", []Placement{
		{Clip: clips[0].Item, Start: 0, End: 4},
		{Clip: clips[1].Item, Start: 0, End: 4},
	})
	if _, ok := d.AddTransitions(ctx, tl, "Cross Dissolve", 1); ok {
		t.Error("transitions should be skipped on 17.x")
	}
	if got := fake.Calls(host.KindTimeline, "AddTransition"); got != 0 {
		t.Errorf("AddTransition called %d times on a host without it", got)
	}
}

func TestApplyEffectAndLUT(t *testing.T) {
	fake := hosttest.New()
	d := newTestDelegate(t, fake)
	ctx := context.Background()
	clips := d.ImportFiles(ctx, []string{"/a.mp4", "/b.mp4"}, "")
	tl := d.CreateTimeline(ctx, "T", []Placement{
		{Clip: clips[0].Item, Start: 0, End: 4},
		{Clip: clips[1].Item, Start: 0, End: 4},
	})
	items := d.TimelineItems(ctx, tl)

	if !d.ApplyEffect(ctx, items[0].Object, "Glow") {
		t.Error("ApplyEffect failed")
	}
	if d.ApplyEffect(ctx, items[0].Object, "") {
		t.Error("ApplyEffect with empty tool should fail")
	}
	n, ok := d.ApplyLUT(ctx, tl, "/luts/drone.cube")
	if !ok || n != 2 {
		t.Errorf("ApplyLUT = %d, %v", n, ok)
	}

	info, _ := fake.Timeline("T")
	if len(info.Items[0].Tools) != 1 || info.Items[0].Tools[0] != "Glow" {
		t.Errorf("tools = %v", info.Items[0].Tools)
	}
	if len(info.Items[1].LUTs) != 1 {
		t.Errorf("luts = %v", info.Items[1].LUTs)
	}
}

func TestTrimItem(t *testing.T) {
	fake := hosttest.New()
	d := newTestDelegate(t, fake)
	ctx := context.Background()
	clips := d.ImportFiles(ctx, []string{"/a.mp4"}, "")
	tl := d.CreateTimeline(ctx, "T", []Placement{{Clip: clips[0].Item, Start: 0, End: 10}})
	items := d.TimelineItems(ctx, tl)

	if !d.TrimItem(ctx, tl, items[0], 2, 5) {
		t.Fatal("TrimItem failed")
	}
	info, _ := fake.Timeline("T")
	if len(info.Items) != 1 || info.Items[0].SrcStart != 60 || info.Items[0].SrcEnd != 150 {
		t.Errorf("items after trim = %+v", info.Items)
	}
	if d.TrimItem(ctx, tl, items[0], 5, 2) {
		t.Error("reversed range should be rejected")
	}
}

func TestEnhanceAudio(t *testing.T) {
	fake := hosttest.New()
	d := newTestDelegate(t, fake)
	ctx := context.Background()
	clips := d.ImportFiles(ctx, []string{"/a.mp4"}, "")
	tl := d.CreateTimeline(ctx, "T", []Placement{{Clip: clips[0].Item, Start: 0, End: 10}})
	fake.SetTrackLevel(1, -9.5)

	r := d.EnhanceAudio(ctx, tl, AudioOptions{Normalize: true, Denoise: true})
	if !r.OK() || r.Tracks != 1 || r.Normalized != 1 || r.Denoised != 1 {
		t.Fatalf("report = %+v", r)
	}
	info, _ := fake.Timeline("T")
	if got := info.Volumes[1]; got != 8.5 {
		t.Errorf("gain = %v, want 8.5", got)
	}
	if e := info.Effects[1]; len(e) != 1 || e[0] != NoiseReductionEffect {
		t.Errorf("effects = %v", e)
	}
}

func TestSnapshot(t *testing.T) {
	fake := hosttest.New()
	d := newTestDelegate(t, fake)
	ctx := context.Background()

	if sum, clips := d.Snapshot(ctx); sum.Name != "" || clips != nil {
		t.Errorf("snapshot without timeline = %+v, %v", sum, clips)
	}

	clips := d.ImportFiles(ctx, []string{"/a.mp4", "/b.mp4"}, "")
	d.CreateTimeline(ctx, "Main", []Placement{
		{Clip: clips[0].Item, Start: 0, End: 3},
		{Clip: clips[1].Item, Start: 1, End: 2},
	})
	sum, descs := d.Snapshot(ctx)
	if sum.Name != "Main" || sum.FPS != 30 || sum.Width != 3840 || sum.Height != 2160 {
		t.Errorf("summary = %+v", sum)
	}
	if len(descs) != 2 || descs[1].Index != 1 || descs[1].StartFrame != 90 || descs[1].EndFrame != 120 || descs[1].FilePath != "/b.mp4" {
		t.Errorf("descriptors = %+v", descs)
	}
}

func TestQueueRender(t *testing.T) {
	fake := hosttest.New()
	d := newTestDelegate(t, fake)
	ctx := context.Background()

	job, ok := d.QueueRender(ctx, "out", "mp4", "1920x1080", "/renders")
	if !ok || job == "" {
		t.Fatalf("QueueRender = %q, %v", job, ok)
	}
	if fake.RenderStarted != 1 || fake.RenderJobs[0]["FormatWidth"] != float64(1920) {
		t.Errorf("render state = %d, %v", fake.RenderStarted, fake.RenderJobs)
	}
	if _, ok := d.QueueRender(ctx, "out", "mp4", "huge", "/renders"); ok {
		t.Error("bad resolution should be rejected")
	}
}

func TestNoSession(t *testing.T) {
	d := New(nil, nil, nil)
	ctx := context.Background()
	if d.CurrentTimeline(ctx) != nil || d.Clips(ctx) != nil || d.SaveHostProject(ctx) {
		t.Error("delegate without session should return sentinels")
	}
}
