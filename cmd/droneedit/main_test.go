package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/host/hosttest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func isolatedEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvDataDir, dir)
	t.Setenv(config.EnvBridgeURL, "")
	t.Setenv(config.EnvBridgeToken, "")
	t.Setenv(config.EnvConnectAttempts, "1")
	t.Setenv(config.EnvLUTDir, filepath.Join(dir, "luts"))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "droneedit "+Version+"\n" {
		t.Errorf("output = %q", out)
	}
}

func TestDoctor_ReportsCapabilities(t *testing.T) {
	dir := isolatedEnv(t)
	srv := httptest.NewServer(hosttest.New().Handler("secret"))
	defer srv.Close()
	t.Setenv(config.EnvBridgeURL, srv.URL)
	t.Setenv(config.EnvBridgeToken, "secret")

	luts := filepath.Join(dir, "luts")
	if err := os.MkdirAll(luts, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(luts, "cinematic.cube"), []byte("LUT_3D_SIZE 17\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "doctor")
	if err != nil {
		t.Fatalf("doctor error: %v\n%s", err, out)
	}
	for _, want := range []string{
		"host: ",
		"18.6.4",
		"host project: Drone Project",
		"capabilities for 18.6.4",
		"  UIManager\n",
		"    + ShowMenu\n",
		"    + AddTransition\n",
		"  Cinematic      ok",
		"  Vintage        missing",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctor_NoHost(t *testing.T) {
	isolatedEnv(t)
	out, err := execute(t, "doctor")
	if !errors.Is(err, host.ErrHostUnavailable) {
		t.Fatalf("err = %v, want ErrHostUnavailable", err)
	}
	if !strings.Contains(out, "host: not found") {
		t.Errorf("output = %q", out)
	}
}

func TestRootRejectsArgs(t *testing.T) {
	isolatedEnv(t)
	if _, err := execute(t, "render-everything"); err == nil {
		t.Fatal("unknown subcommand accepted")
	}
}
