package timecode

import (
	"math"
	"testing"
)

func TestFromSeconds(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		fps     int
		want    string
	}{
		{name: "zero", seconds: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", seconds: 1, fps: 30, want: "00:00:01:00"},
		{name: "half second", seconds: 0.5, fps: 30, want: "00:00:00:15"},
		{name: "one minute", seconds: 60, fps: 30, want: "00:01:00:00"},
		{name: "one hour", seconds: 3600, fps: 30, want: "01:00:00:00"},
		{name: "mixed", seconds: 3723.5, fps: 30, want: "01:02:03:15"},
		{name: "rounds to nearest frame", seconds: 0.049, fps: 30, want: "00:00:00:01"},
		{name: "negative clamps", seconds: -3, fps: 30, want: "00:00:00:00"},
		{name: "default fps", seconds: 2, fps: 0, want: "00:00:02:00"},
		{name: "24 fps", seconds: 1.5, fps: 24, want: "00:00:01:12"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromSeconds(tc.seconds, tc.fps); got != tc.want {
				t.Fatalf("FromSeconds(%v, %d) = %q, want %q", tc.seconds, tc.fps, got, tc.want)
			}
		})
	}
}

func TestToSeconds(t *testing.T) {
	tests := []struct {
		tc      string
		want    float64
		wantErr bool
	}{
		{tc: "00:00:00:00", want: 0},
		{tc: "00:00:01:15", want: 1.5},
		{tc: "01:02:03:15", want: 3723.5},
		{tc: "00:00:10", want: 10},
		{tc: "00:00:10;15", want: 10.5},
		{tc: " 00:01:00:00 ", want: 60},
		{tc: "garbage", wantErr: true},
		{tc: "00:00", wantErr: true},
		{tc: "00:61:00:00", wantErr: true},
		{tc: "00:00:00:30", wantErr: true},
		{tc: "00:00:-1:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tc, func(t *testing.T) {
			got, err := ToSeconds(tt.tc, 30)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ToSeconds(%q) expected error, got %v", tt.tc, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToSeconds(%q) error = %v", tt.tc, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("ToSeconds(%q) = %v, want %v", tt.tc, got, tt.want)
			}
		})
	}
}

func TestRoundTripWithinOneFrame(t *testing.T) {
	const fps = 30
	for _, frames := range []int64{0, 1, 14, 29, 30, 31, 899, 1800, 107999, 108000, 324017} {
		seconds := float64(frames) / fps
		got, err := ToSeconds(FromSeconds(seconds, fps), fps)
		if err != nil {
			t.Fatalf("round trip for %d frames: %v", frames, err)
		}
		if math.Abs(got-seconds) > 1.0/fps {
			t.Fatalf("round trip for %d frames = %v, want %v within one frame", frames, got, seconds)
		}
	}
}

func TestRoundFPS(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{29.97, 30},
		{23.976, 24},
		{59.94, 60},
		{25, 25},
		{0, DefaultFPS},
		{-1, DefaultFPS},
	}
	for _, tt := range tests {
		if got := RoundFPS(tt.rate); got != tt.want {
			t.Errorf("RoundFPS(%v) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}
