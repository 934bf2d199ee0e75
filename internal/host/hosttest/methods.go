package hosttest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/droneedit/droneedit-agent/internal/host"
)

func defaultMethods() map[host.Kind]map[string]Method {
	return map[host.Kind]map[string]Method{
		host.KindBridge: {
			"scriptapp": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				if name := argString(args, 0); name != host.AppName {
					return nil, fmt.Errorf("unknown application %q", name)
				}
				return h.app, nil
			},
		},
		host.KindResolve: {
			"GetProjectManager": func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return h.manager, nil },
			"GetVersionString":  func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return h.Version, nil },
			"GetProductName":    func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return h.Product, nil },
			"GetUIManager":      func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return h.uiManager, nil },
			"OpenPage":          func(h *Host, _ *node, args []json.RawMessage) (any, error) { return argString(args, 0) != "", nil },
		},
		host.KindProjectManager: {
			"GetCurrentProject": func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return h.project, nil },
			"SaveProject": func(h *Host, _ *node, _ []json.RawMessage) (any, error) {
				h.ProjectSaves++
				return true, nil
			},
		},
		host.KindProject: {
			"GetName":      func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(string), nil },
			"GetMediaPool": func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return h.pool, nil },
			"GetCurrentTimeline": func(h *Host, _ *node, _ []json.RawMessage) (any, error) {
				return h.curTimeline, nil
			},
			"SetCurrentTimeline": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				n := h.argNode(args, 0)
				if n == nil || n.ref.Kind != host.KindTimeline {
					return false, nil
				}
				h.curTimeline = n
				return true, nil
			},
			"GetTimelineCount": func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return len(h.timelines), nil },
			"GetTimelineByIndex": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				i := int(argFloat(args, 0))
				if i < 1 || i > len(h.timelines) {
					return nil, nil
				}
				return h.timelines[i-1], nil
			},
			"SetRenderSettings": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				var m map[string]any
				if len(args) == 0 || json.Unmarshal(args[0], &m) != nil {
					return false, nil
				}
				h.RenderJobs = append(h.RenderJobs, m)
				return true, nil
			},
			"AddRenderJob": func(h *Host, _ *node, _ []json.RawMessage) (any, error) {
				if len(h.RenderJobs) == 0 {
					return "", nil
				}
				return fmt.Sprintf("job-%d", len(h.RenderJobs)), nil
			},
			"StartRendering": func(h *Host, _ *node, _ []json.RawMessage) (any, error) {
				h.RenderStarted++
				return true, nil
			},
		},
		host.KindMediaPool: {
			"GetRootFolder":    func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return h.rootFolder, nil },
			"GetCurrentFolder": func(h *Host, _ *node, _ []json.RawMessage) (any, error) { return h.curFolder, nil },
			"SetCurrentFolder": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				n := h.argNode(args, 0)
				if n == nil || n.ref.Kind != host.KindFolder {
					return false, nil
				}
				h.curFolder = n
				return true, nil
			},
			"AddSubFolder": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				parent := h.argNode(args, 0)
				name := argString(args, 1)
				if parent == nil || name == "" {
					return nil, nil
				}
				f := h.newNode(host.KindFolder, &folderData{name: name})
				pd := parent.data.(*folderData)
				pd.folders = append(pd.folders, f)
				return f, nil
			},
			"ImportMedia": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				var paths []string
				if len(args) > 0 {
					_ = json.Unmarshal(args[0], &paths)
				}
				var items []*node
				fd := h.curFolder.data.(*folderData)
				for _, p := range paths {
					if h.missing[p] {
						continue
					}
					c := h.importClip(p)
					fd.clips = append(fd.clips, c)
					items = append(items, c)
				}
				return items, nil
			},
			"CreateEmptyTimeline": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				name := argString(args, 0)
				for _, t := range h.timelines {
					if t.data.(*timelineData).name == name {
						return nil, nil
					}
				}
				t := h.newNode(host.KindTimeline, &timelineData{
					name:    name,
					fps:     30,
					width:   3840,
					height:  2160,
					levels:  map[int]float64{},
					volumes: map[int]float64{},
					effects: map[int][]string{},
				})
				h.timelines = append(h.timelines, t)
				h.curTimeline = t
				return t, nil
			},
			"AppendToTimeline": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				if h.curTimeline == nil || len(args) == 0 {
					return nil, nil
				}
				var infos []struct {
					Item       host.HandleRef `json:"mediaPoolItem"`
					StartFrame int64          `json:"startFrame"`
					EndFrame   int64          `json:"endFrame"`
				}
				if err := json.Unmarshal(args[0], &infos); err != nil {
					return nil, fmt.Errorf("bad clip info: %v", err)
				}
				td := h.curTimeline.data.(*timelineData)
				var added []*node
				for _, info := range infos {
					clip := h.nodes[info.Item.Handle]
					if clip == nil || clip.ref.Kind != host.KindMediaPoolItem {
						continue
					}
					var pos int64
					if n := len(td.video); n > 0 {
						pos = td.video[n-1].data.(*itemData).end
					}
					length := info.EndFrame - info.StartFrame
					if length <= 0 {
						continue
					}
					it := h.newNode(host.KindTimelineItem, &itemData{
						clip:     clip,
						start:    pos,
						end:      pos + length,
						srcStart: info.StartFrame,
						srcEnd:   info.EndFrame,
					})
					td.video = append(td.video, it)
					added = append(added, it)
				}
				if len(added) > 0 && td.audioTracks == 0 {
					td.audioTracks = 1
				}
				return added, nil
			},
		},
		host.KindFolder: {
			"GetName":          func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*folderData).name, nil },
			"GetClipList":      func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*folderData).clips, nil },
			"GetSubFolderList": func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*folderData).folders, nil },
		},
		host.KindMediaPoolItem: {
			"GetName": func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*clipData).name, nil },
			"GetClipProperty": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				c := self.data.(*clipData)
				switch argString(args, 0) {
				case "File Path":
					return c.path, nil
				case "Duration":
					return c.duration, nil
				case "FPS":
					return c.fps, nil
				case "Clip Name":
					return c.name, nil
				}
				return "", nil
			},
		},
		host.KindTimeline: {
			"GetName": func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*timelineData).name, nil },
			"GetTrackCount": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				td := self.data.(*timelineData)
				if argString(args, 0) == "audio" {
					return td.audioTracks, nil
				}
				return 1, nil
			},
			"GetItemListInTrack": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				td := self.data.(*timelineData)
				if argString(args, 0) != "video" || int(argFloat(args, 1)) != 1 {
					return []*node{}, nil
				}
				return td.video, nil
			},
			"GetSetting": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				td := self.data.(*timelineData)
				switch argString(args, 0) {
				case "timelineFrameRate":
					return fmt.Sprintf("%g", td.fps), nil
				case "timelineResolutionWidth":
					return fmt.Sprintf("%d", td.width), nil
				case "timelineResolutionHeight":
					return fmt.Sprintf("%d", td.height), nil
				}
				return "", nil
			},
			"AddTransition": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				td := self.data.(*timelineData)
				name := argString(args, 0)
				a, b := h.argNode(args, 1), h.argNode(args, 2)
				if name == "" || a == nil || b == nil {
					return false, nil
				}
				td.transitions = append(td.transitions, fmt.Sprintf("%s:%s>%s", name, a.ref.Handle, b.ref.Handle))
				return true, nil
			},
			"DeleteClips": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				td := self.data.(*timelineData)
				var refs []host.HandleRef
				if len(args) == 0 || json.Unmarshal(args[0], &refs) != nil {
					return false, nil
				}
				drop := map[string]bool{}
				for _, r := range refs {
					drop[r.Handle] = true
				}
				kept := td.video[:0]
				removed := 0
				for _, it := range td.video {
					if drop[it.ref.Handle] {
						removed++
						continue
					}
					kept = append(kept, it)
				}
				td.video = kept
				return removed > 0, nil
			},
			"GetAudioTrackLevel": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				td := self.data.(*timelineData)
				track := int(argFloat(args, 0))
				if track < 1 || track > td.audioTracks {
					return nil, fmt.Errorf("no audio track %d", track)
				}
				if lvl, ok := td.levels[track]; ok {
					return lvl, nil
				}
				return h.DefaultLevel, nil
			},
			"SetAudioTrackVolume": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				td := self.data.(*timelineData)
				track := int(argFloat(args, 0))
				if track < 1 || track > td.audioTracks {
					return false, nil
				}
				td.volumes[track] = argFloat(args, 1)
				return true, nil
			},
			"ApplyAudioTrackEffect": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				td := self.data.(*timelineData)
				track := int(argFloat(args, 0))
				name := argString(args, 1)
				if track < 1 || track > td.audioTracks || name == "" {
					return false, nil
				}
				td.effects[track] = append(td.effects[track], name)
				return true, nil
			},
		},
		host.KindTimelineItem: {
			"GetName": func(h *Host, self *node, _ []json.RawMessage) (any, error) {
				return self.data.(*itemData).clip.data.(*clipData).name, nil
			},
			"GetStart":    func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*itemData).start, nil },
			"GetEnd":      func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*itemData).end, nil },
			"GetDuration": func(h *Host, self *node, _ []json.RawMessage) (any, error) { d := self.data.(*itemData); return d.end - d.start, nil },
			"GetLeftOffset": func(h *Host, self *node, _ []json.RawMessage) (any, error) {
				return self.data.(*itemData).srcStart, nil
			},
			"GetMediaPoolItem": func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*itemData).clip, nil },
			"SetLUT": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				path := argString(args, 1)
				if path == "" {
					return false, nil
				}
				d := self.data.(*itemData)
				d.luts = append(d.luts, path)
				return true, nil
			},
			"AddFusionComp": func(h *Host, self *node, _ []json.RawMessage) (any, error) {
				d := self.data.(*itemData)
				d.comps++
				return h.newNode(host.KindFusionComp, self), nil
			},
			"GetFusionCompCount": func(h *Host, self *node, _ []json.RawMessage) (any, error) { return self.data.(*itemData).comps, nil },
		},
		host.KindFusionComp: {
			"AddTool": func(h *Host, self *node, args []json.RawMessage) (any, error) {
				name := argString(args, 0)
				if name == "" || strings.HasPrefix(name, "Unknown") {
					return nil, nil
				}
				item := self.data.(*node).data.(*itemData)
				item.tools = append(item.tools, name)
				return map[string]any{"name": name}, nil
			},
		},
		host.KindUIManager: {
			"ShowAlert": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				h.Alerts = append(h.Alerts, argString(args, 0)+": "+argString(args, 1))
				return true, nil
			},
			"ShowProgress": func(h *Host, _ *node, args []json.RawMessage) (any, error) {
				h.Progress = append(h.Progress, int(argFloat(args, 1)))
				return true, nil
			},
			"RequestFile": func(h *Host, _ *node, _ []json.RawMessage) (any, error) {
				if len(h.fileAnswers) == 0 {
					return "", nil
				}
				a := h.fileAnswers[0]
				h.fileAnswers = h.fileAnswers[1:]
				return a, nil
			},
			"ShowMenu": func(h *Host, _ *node, _ []json.RawMessage) (any, error) {
				if len(h.menuAnswers) == 0 {
					return "Quit", nil
				}
				a := h.menuAnswers[0]
				h.menuAnswers = h.menuAnswers[1:]
				return a, nil
			},
		},
	}
}

func argString(args []json.RawMessage, i int) string {
	if i >= len(args) {
		return ""
	}
	var s string
	_ = json.Unmarshal(args[i], &s)
	return s
}

func argFloat(args []json.RawMessage, i int) float64 {
	if i >= len(args) {
		return 0
	}
	var f float64
	_ = json.Unmarshal(args[i], &f)
	return f
}

func (h *Host) argNode(args []json.RawMessage, i int) *node {
	if i >= len(args) {
		return nil
	}
	var ref host.HandleRef
	if err := json.Unmarshal(args[i], &ref); err != nil {
		return nil
	}
	return h.nodes[ref.Handle]
}
