// Package capability decides which host operations a session may use.
//
// The decision is made from a static table keyed by host version range,
// computed once per session. Callers check a capability before every
// optional host call; absence is normal across host releases.
package capability

import (
	"github.com/Masterminds/semver/v3"

	"github.com/droneedit/droneedit-agent/internal/host"
)

// Ops maps an object kind to the operations it exposes.
type Ops map[host.Kind][]string

type row struct {
	constraint string // empty matches every version, including unparseable ones
	ops        Ops
}

var table = []row{
	{
		ops: Ops{
			host.KindResolve:        {"GetProjectManager", "GetVersionString", "GetProductName", "OpenPage"},
			host.KindProjectManager: {"GetCurrentProject", "SaveProject"},
			host.KindProject: {
				"GetName", "GetMediaPool", "GetCurrentTimeline", "SetCurrentTimeline",
				"GetTimelineCount", "GetTimelineByIndex",
				"SetRenderSettings", "AddRenderJob", "StartRendering",
			},
			host.KindMediaPool: {
				"GetRootFolder", "GetCurrentFolder", "SetCurrentFolder", "AddSubFolder",
				"ImportMedia", "CreateEmptyTimeline", "AppendToTimeline",
			},
			host.KindFolder:        {"GetName", "GetClipList", "GetSubFolderList"},
			host.KindMediaPoolItem: {"GetName", "GetClipProperty"},
			host.KindTimeline:      {"GetName", "GetTrackCount", "GetItemListInTrack", "GetSetting"},
			host.KindTimelineItem: {
				"GetName", "GetStart", "GetEnd", "GetDuration", "GetLeftOffset",
				"GetMediaPoolItem", "SetLUT",
			},
			host.KindFusionComp: {"AddTool"},
		},
	},
	{
		constraint: ">= 17.0.0",
		ops: Ops{
			host.KindResolve:      {"GetUIManager"},
			host.KindUIManager:    {"ShowAlert", "ShowProgress", "RequestFile", "ShowMenu"},
			host.KindTimelineItem: {"AddFusionComp", "GetFusionCompCount"},
		},
	},
	{
		constraint: ">= 18.0.0",
		ops: Ops{
			host.KindTimeline: {"AddTransition", "DeleteClips"},
		},
	},
	{
		constraint: ">= 18.5.0",
		ops: Ops{
			host.KindTimeline: {"GetAudioTrackLevel", "SetAudioTrackVolume", "ApplyAudioTrackEffect"},
		},
	},
}

// resolve returns the union of every row matching v. A nil v matches only
// unconstrained rows.
func resolve(v *semver.Version) map[host.Kind]map[string]bool {
	out := map[host.Kind]map[string]bool{}
	for _, r := range table {
		if r.constraint != "" {
			if v == nil {
				continue
			}
			c, err := semver.NewConstraint(r.constraint)
			if err != nil || !c.Check(v) {
				continue
			}
		}
		for kind, names := range r.ops {
			if out[kind] == nil {
				out[kind] = map[string]bool{}
			}
			for _, n := range names {
				out[kind][n] = true
			}
		}
	}
	return out
}

// known lists every operation any row names for kind.
func known(kind host.Kind) []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range table {
		for _, n := range r.ops[kind] {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
