package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, `
[package]
name = "cfltk"
library = "libcfltk.so.1.2.5"

[parse]
headers = ["include/cfl.h"]
include_dirs = ["include"]
flags = ["-D_GNU_SOURCE"]

[probe]
cc = "clang"
timeout = "30s"
jobs = 4
cache = true

[output]
path = "bindings"
bundle = true
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Package.Name != "cfltk" || m.Package.Library != "libcfltk.so.1.2.5" {
		t.Errorf("package = %+v", m.Package)
	}
	base := filepath.Dir(path)
	if want := filepath.Join(base, "include/cfl.h"); m.Parse.Headers[0] != want {
		t.Errorf("header = %q, want %q (resolved against the manifest dir)", m.Parse.Headers[0], want)
	}
	if m.Probe.CC != "clang" || m.Probe.Jobs != 4 || !m.Probe.Cache {
		t.Errorf("probe = %+v", m.Probe)
	}
	if got := m.ProbeTimeout(10 * time.Second); got != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", got)
	}
	if !m.Output.Bundle || m.Output.Path != filepath.Join(base, "bindings") {
		t.Errorf("output = %+v", m.Output)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeManifest(t, "[package]\nname = \"x\"\nlibary = \"typo\"\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Errorf("Load = %v, want unknown key error", err)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	path := writeManifest(t, "[probe]\ntimeout = \"fast\"\n")
	if _, err := Load(path); err == nil {
		t.Errorf("Load accepted a malformed timeout")
	}
}

func TestProbeTimeoutFallback(t *testing.T) {
	m := Manifest{}
	if got := m.ProbeTimeout(10 * time.Second); got != 10*time.Second {
		t.Errorf("fallback = %v", got)
	}
}

func TestStarterRoundTrips(t *testing.T) {
	path := writeManifest(t, Starter("demo"))
	m, err := Load(path)
	if err != nil {
		t.Fatalf("starter manifest does not load: %v", err)
	}
	if m.Package.Name != "demo" || m.Package.Library != "libdemo.so" {
		t.Errorf("package = %+v", m.Package)
	}
	if m.ProbeTimeout(0) != 10*time.Second {
		t.Errorf("timeout = %v", m.ProbeTimeout(0))
	}
}
