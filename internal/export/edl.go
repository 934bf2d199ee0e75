// Package export writes detected segments as a CMX3600 edit decision list
// for round-tripping the cut into other editors.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/droneedit/droneedit-agent/internal/timecode"
)

// Event is one source range to place on the record side. Start and End are
// seconds into the source clip.
type Event struct {
	ClipName  string
	MediaPath string
	Start     float64
	End       float64
}

// GenerateEDL renders events in order. Record timecodes accumulate from
// the event durations, starting at zero.
func GenerateEDL(events []Event, title string, frameRate float64) string {
	fps := timecode.RoundFPS(frameRate)
	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	var record int64
	n := 0
	for _, ev := range events {
		in := timecode.SecondsToFrames(ev.Start, fps)
		out := timecode.SecondsToFrames(ev.End, fps)
		if out <= in {
			continue
		}
		n++
		length := out - in
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", n, "AX", "V",
				timecode.FromFrames(in, fps), timecode.FromFrames(out, fps),
				timecode.FromFrames(record, fps), timecode.FromFrames(record+length, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", ev.MediaPath),
		)
		record += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL validates dir and writes <title>.edl into it, returning the path.
func WriteEDL(events []Event, dir, title string, frameRate float64) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	name := SanitizeName(title, 120)
	if name == "" {
		name = "droneedit"
	}
	path := filepath.Join(dir, name+".edl")
	if err := os.WriteFile(path, []byte(GenerateEDL(events, title, frameRate)), 0644); err != nil {
		return "", fmt.Errorf("write edl: %w", err)
	}
	return path, nil
}
