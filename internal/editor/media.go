package editor

import (
	"context"
	"strconv"
	"strings"

	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/timecode"
)

// Clip is a media pool item with the metadata the host reports for it.
// The item handle is borrowed from the host.
type Clip struct {
	Item     *host.Object
	Name     string
	FilePath string
	Duration Duration
}

// Duration is a clip length as reported by the host. Known is false when
// the host gave neither a number nor a parseable timecode.
type Duration struct {
	Seconds float64
	Known   bool
	Raw     string
}

// Bin is a media pool folder.
type Bin struct {
	Folder *host.Object
	Name   string
}

// ImportFiles imports paths into the media pool, into bin when it is not
// empty. It returns the imported clips, or nil on failure.
func (d *Delegate) ImportFiles(ctx context.Context, paths []string, bin string) []Clip {
	var clean []string
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		d.invalid("import", "no file paths")
		return nil
	}

	mp := d.MediaPool(ctx)
	if mp == nil {
		return nil
	}
	if bin != "" {
		folder := d.CreateBin(ctx, bin)
		if folder == nil {
			return nil
		}
		if v, ok := d.call(ctx, mp, "SetCurrentFolder", folder); !ok || !v.Truthy() {
			d.logger.Error("could not select bin", "bin", bin)
			return nil
		}
	}

	v, ok := d.call(ctx, mp, "ImportMedia", clean)
	if !ok {
		return nil
	}
	items := v.Objects()
	if len(items) == 0 {
		d.logger.Error("host imported nothing", "files", len(clean))
		return nil
	}
	clips := make([]Clip, 0, len(items))
	for _, it := range items {
		clips = append(clips, d.describeClip(ctx, it))
	}
	d.logger.Info("imported media", "requested", len(clean), "imported", len(clips), "bin", bin)
	return clips
}

// ListBins returns the sub-bins of the root bin.
func (d *Delegate) ListBins(ctx context.Context) []Bin {
	root := d.rootFolder(ctx)
	if root == nil {
		return nil
	}
	v, ok := d.call(ctx, root, "GetSubFolderList")
	if !ok {
		return nil
	}
	var bins []Bin
	for _, f := range v.Objects() {
		bins = append(bins, Bin{Folder: f, Name: d.str(ctx, f, "GetName")})
	}
	return bins
}

// CreateBin returns the root sub-bin called name, creating it if needed.
func (d *Delegate) CreateBin(ctx context.Context, name string) *host.Object {
	if strings.TrimSpace(name) == "" {
		d.invalid("create bin", "empty bin name")
		return nil
	}
	for _, b := range d.ListBins(ctx) {
		if b.Name == name {
			return b.Folder
		}
	}
	mp := d.MediaPool(ctx)
	root := d.rootFolder(ctx)
	if mp == nil || root == nil {
		return nil
	}
	f := d.object(ctx, mp, "AddSubFolder", root, name)
	if f == nil {
		d.logger.Error("could not create bin", "bin", name)
		return nil
	}
	d.logger.Info("created bin", "bin", name)
	return f
}

func (d *Delegate) rootFolder(ctx context.Context) *host.Object {
	mp := d.MediaPool(ctx)
	if mp == nil {
		return nil
	}
	return d.object(ctx, mp, "GetRootFolder")
}

// Clips lists every clip in the media pool, depth first from the root bin.
func (d *Delegate) Clips(ctx context.Context) []Clip {
	root := d.rootFolder(ctx)
	if root == nil {
		return nil
	}
	var clips []Clip
	var walk func(folder *host.Object, depth int)
	walk = func(folder *host.Object, depth int) {
		if depth > 32 {
			return
		}
		if v, ok := d.call(ctx, folder, "GetClipList"); ok {
			for _, it := range v.Objects() {
				clips = append(clips, d.describeClip(ctx, it))
			}
		}
		if v, ok := d.call(ctx, folder, "GetSubFolderList"); ok {
			for _, sub := range v.Objects() {
				walk(sub, depth+1)
			}
		}
	}
	walk(root, 0)
	return clips
}

// FindClip returns the clip called name, or failing that the clip imported
// from path. Either may be empty.
func (d *Delegate) FindClip(ctx context.Context, name, path string) *Clip {
	if name == "" && path == "" {
		d.invalid("find clip", "no name or path")
		return nil
	}
	clips := d.Clips(ctx)
	if name != "" {
		for i := range clips {
			if clips[i].Name == name {
				return &clips[i]
			}
		}
	}
	if path != "" {
		for i := range clips {
			if clips[i].FilePath == path {
				return &clips[i]
			}
		}
	}
	return nil
}

func (d *Delegate) describeClip(ctx context.Context, item *host.Object) Clip {
	c := Clip{Item: item, Name: d.str(ctx, item, "GetName")}
	if v, ok := d.call(ctx, item, "GetClipProperty", "File Path"); ok {
		c.FilePath, _ = v.String()
	}
	fps := timecode.DefaultFPS
	if v, ok := d.call(ctx, item, "GetClipProperty", "FPS"); ok {
		if f, ok := v.Float(); ok && f > 0 {
			fps = timecode.RoundFPS(f)
		} else if s, ok := v.String(); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
				fps = timecode.RoundFPS(f)
			}
		}
	}
	if v, ok := d.call(ctx, item, "GetClipProperty", "Duration"); ok {
		c.Duration = parseDuration(v, fps)
	}
	return c
}

// parseDuration accepts a numeric seconds value, a numeric string or a
// timecode string.
func parseDuration(v host.Value, fps int) Duration {
	if f, ok := v.Float(); ok {
		return Duration{Seconds: f, Known: f > 0}
	}
	s, ok := v.String()
	if !ok {
		return Duration{}
	}
	s = strings.TrimSpace(s)
	d := Duration{Raw: s}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		d.Seconds, d.Known = f, f > 0
		return d
	}
	if secs, err := timecode.ToSeconds(s, fps); err == nil {
		d.Seconds, d.Known = secs, secs > 0
	}
	return d
}
