package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"

	"github.com/droneedit/droneedit-agent/internal/editor"
)

func delegatedOptions(url string) Options {
	return Options{
		Level:      "Low",
		Rand:       rand.New(rand.NewPCG(7, 11)),
		Sleep:      noSleep,
		ServiceURL: url,
		Timeout:    5 * time.Second,
	}
}

func TestDelegated_ServiceScenesClamped(t *testing.T) {
	var gotReq analysisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scenes" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(scenesResponse{Segments: []segmentPayload{
			{ClipIndex: 0, Start: 10, End: 20},
			{ClipIndex: 0, Start: -3, End: 5},  // clamped to 0
			{ClipIndex: 0, Start: 15, End: 25}, // overlaps
			{ClipIndex: 0, Start: 30, End: 31}, // too short
			{ClipIndex: 0, Start: 35, End: 90}, // cut at clip end
			{ClipIndex: 9, Start: 0, End: 10},  // no such clip
		}})
	}))
	defer srv.Close()

	d := NewDelegated(delegatedOptions(srv.URL))
	clips := []editor.Clip{{Name: "a.mp4", FilePath: "/a.mp4", Duration: editor.Duration{Seconds: 40, Known: true}}}
	segs, err := d.DetectScenes(context.Background(), clips, nil)
	if err != nil {
		t.Fatalf("DetectScenes error: %v", err)
	}

	want := []Segment{{Start: 0, End: 5}, {Start: 10, End: 20}, {Start: 35, End: 40}}
	if len(segs) != len(want) {
		t.Fatalf("segments = %+v, want %d", segs, len(want))
	}
	for i, w := range want {
		if segs[i].Start != w.Start || segs[i].End != w.End {
			t.Errorf("segment %d = [%v, %v], want [%v, %v]", i, segs[i].Start, segs[i].End, w.Start, w.End)
		}
	}
	if gotReq.Level != "Low" || len(gotReq.Clips) != 1 || gotReq.Clips[0].Duration != 40 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestDelegated_ServiceProgressPerClip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/scenes":
			_ = json.NewEncoder(w).Encode(scenesResponse{Segments: []segmentPayload{
				{ClipIndex: 0, Start: 0, End: 5},
				{ClipIndex: 2, Start: 1, End: 6},
			}})
		case "/v1/highlights":
			_ = json.NewEncoder(w).Encode(highlightsResponse{Highlights: []highlightPayload{
				{ClipIndex: 1, Start: 0, End: 5, Score: 0.9},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewDelegated(delegatedOptions(srv.URL))
	var clips []editor.Clip
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"} {
		clips = append(clips, editor.Clip{Name: name, FilePath: "/" + name, Duration: editor.Duration{Seconds: 30, Known: true}})
	}

	var got []int
	if _, err := d.DetectScenes(context.Background(), clips, func(p int) { got = append(got, p) }); err != nil {
		t.Fatal(err)
	}
	if want := []int{25, 50, 75, 100}; !slices.Equal(got, want) {
		t.Errorf("scene progress = %v, want %v", got, want)
	}

	got = nil
	if _, err := d.SmartHighlight(context.Background(), clips, func(p int) { got = append(got, p) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(clips) || got[len(got)-1] != 100 {
		t.Errorf("highlight progress = %v", got)
	}
}

func TestDelegated_ServiceFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDelegated(delegatedOptions(srv.URL))
	clips := []editor.Clip{{Name: "a.mp4", Duration: editor.Duration{Seconds: 40, Known: true}}}
	hs, err := d.SmartHighlight(context.Background(), clips, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) == 0 {
		t.Fatal("fallback produced no highlights")
	}
}

func TestDelegated_EmptyResultFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"grades":[]}`))
	}))
	defer srv.Close()

	d := NewDelegated(delegatedOptions(srv.URL))
	grades, err := d.AutoColorGrade(context.Background(), []editor.Clip{{Name: "a"}}, "Vintage", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(grades) != 1 || grades[0].Preset != "Vintage" {
		t.Errorf("grades = %+v", grades)
	}
}

func TestDelegated_HighlightsClamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(highlightsResponse{Highlights: []highlightPayload{
			{ClipIndex: 0, Start: 1, End: 4, Score: 0.2},
			{ClipIndex: 0, Start: 5, End: 9, Score: 1.7},
			{ClipIndex: 0, Start: 6, End: 6, Score: 0.9},
		}})
	}))
	defer srv.Close()

	d := NewDelegated(delegatedOptions(srv.URL))
	hs, err := d.SmartHighlight(context.Background(), []editor.Clip{{Name: "a", Duration: editor.Duration{Seconds: 20, Known: true}}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 2 || hs[0].Score != 1.0 || hs[1].Score != 0.6 {
		t.Errorf("highlights = %+v", hs)
	}
}

func TestDelegated_GradePresetValidated(t *testing.T) {
	got := clampGrades([]editor.Clip{{Name: "a"}, {Name: "b"}}, "Default", []gradePayload{
		{ClipIndex: 0, Preset: "Cinematic"},
		{ClipIndex: 1, Preset: "Neon Dream"},
		{ClipIndex: 5, Preset: "Vintage"},
	})
	if len(got) != 2 || got[0].Preset != "Cinematic" || got[1].Preset != "Default" {
		t.Errorf("grades = %+v", got)
	}
}

func TestDelegated_MissingToolUsesService(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(scenesResponse{Segments: []segmentPayload{{ClipIndex: 0, Start: 0, End: 10}}})
	}))
	defer srv.Close()

	opts := delegatedOptions(srv.URL)
	opts.Executable = "/nonexistent/droneedit-analyze"
	d := NewDelegated(opts)
	if _, err := d.DetectScenes(context.Background(), []editor.Clip{{Name: "a"}}, nil); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("service was not called when the tool is missing")
	}
}

func TestToolRunner_Script(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script tool")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "analyze.sh")
	body := `#!/bin/sh
# usage: analyze.sh <op> --in <file> --out <file>
echo "running $1" >&2
printf '{"segments":[{"clip_index":0,"start":1,"end":9}]}' > "$5"
`
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}

	r, err := NewToolRunner(script, dir, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewToolRunner error: %v", err)
	}
	var resp scenesResponse
	res, err := r.Run(context.Background(), "scenes", analysisRequest{Level: "Low"}, &resp)
	if err != nil {
		t.Fatalf("Run error: %v (stderr %q)", err, res.StderrTail)
	}
	if len(resp.Segments) != 1 || resp.Segments[0].End != 9 {
		t.Errorf("resp = %+v", resp)
	}
	if !bytes.Contains([]byte(res.StderrTail), []byte("running scenes")) {
		t.Errorf("stderr tail = %q", res.StderrTail)
	}
}

func TestToolRunner_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script tool")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fail.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'no model' >&2\nexit 3\n"), 0755); err != nil {
		t.Fatal(err)
	}
	r, err := NewToolRunner(script, dir, 5*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	var resp scenesResponse
	res, err := r.Run(context.Background(), "scenes", analysisRequest{}, &resp)
	if err == nil || res.ExitCode != 3 {
		t.Fatalf("Run = %+v, %v; want exit 3 error", res, err)
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}
	lw.Write([]byte(" world of test data"))
	if got := buf.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "...world"},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
