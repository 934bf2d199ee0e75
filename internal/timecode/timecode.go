// Package timecode converts between seconds and HH:MM:SS:FF timecode at a
// fixed integer frame rate.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultFPS is the frame rate used when a timeline does not report one.
const DefaultFPS = 30

// FromSeconds formats seconds as HH:MM:SS:FF. Frames are bucketed with
// round(seconds * fps) before the hour/minute/second split.
func FromSeconds(seconds float64, fps int) string {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if seconds < 0 {
		seconds = 0
	}
	return FromFrames(int64(math.Round(seconds*float64(fps))), fps)
}

// FromFrames formats an absolute frame count as HH:MM:SS:FF.
func FromFrames(frames int64, fps int) string {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if frames < 0 {
		frames = 0
	}
	perHour := int64(fps) * 3600
	perMinute := int64(fps) * 60

	hours := frames / perHour
	frames %= perHour
	minutes := frames / perMinute
	frames %= perMinute
	secs := frames / int64(fps)
	frames %= int64(fps)

	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}

// ToFrames parses HH:MM:SS:FF, or HH:MM:SS with frames defaulted to 0.
// A ';' before the frame field (drop-frame notation) is accepted as ':'.
func ToFrames(tc string, fps int) (int64, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	parts := strings.Split(strings.ReplaceAll(strings.TrimSpace(tc), ";", ":"), ":")
	if len(parts) != 3 && len(parts) != 4 {
		return 0, fmt.Errorf("invalid timecode %q: want HH:MM:SS or HH:MM:SS:FF", tc)
	}

	fields := make([]int64, 4)
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timecode %q: bad field %q", tc, p)
		}
		fields[i] = n
	}

	hours, minutes, secs, frames := fields[0], fields[1], fields[2], fields[3]
	if minutes > 59 || secs > 59 {
		return 0, fmt.Errorf("invalid timecode %q: minutes and seconds must be below 60", tc)
	}
	if frames >= int64(fps) {
		return 0, fmt.Errorf("invalid timecode %q: frame %d out of range for %d fps", tc, frames, fps)
	}

	f := int64(fps)
	return ((hours*3600+minutes*60+secs)*f + frames), nil
}

// ToSeconds parses a timecode and returns its position in seconds.
func ToSeconds(tc string, fps int) (float64, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	frames, err := ToFrames(tc, fps)
	if err != nil {
		return 0, err
	}
	return float64(frames) / float64(fps), nil
}

// SecondsToFrames rounds seconds to the nearest frame.
func SecondsToFrames(seconds float64, fps int) int64 {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return int64(math.Round(seconds * float64(fps)))
}

// FramesToSeconds converts a frame count to seconds.
func FramesToSeconds(frames int64, fps int) float64 {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return float64(frames) / float64(fps)
}

// RoundFPS maps a fractional host frame rate (29.97, 23.976) to the integer
// frame base used for timecode math.
func RoundFPS(rate float64) int {
	fps := int(math.Round(rate))
	if fps <= 0 {
		return DefaultFPS
	}
	return fps
}
