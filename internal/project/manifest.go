// Package project loads the cffigen.toml manifest. Flags given on the
// command line override manifest values; the manifest fills in whatever the
// flags leave unset.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file looked up in the working directory.
const ManifestName = "cffigen.toml"

// ErrNoHeaders marks a manifest (or flag set) that names nothing to parse.
var ErrNoHeaders = errors.New("no input headers given")

// Manifest is the resolved cffigen.toml content.
type Manifest struct {
	Package PackageSection
	Parse   ParseSection
	Probe   ProbeSection
	Output  OutputSection
}

// PackageSection names the binding set and the shared library it loads.
type PackageSection struct {
	Name    string `toml:"name"`
	Library string `toml:"library"`
}

// ParseSection configures the C front end.
type ParseSection struct {
	Headers     []string `toml:"headers"`
	IncludeDirs []string `toml:"include_dirs"`
	Flags       []string `toml:"flags"`
}

// ProbeSection configures the layout probe toolchain. Timeout is a string
// in the file ("10s") and validated on load.
type ProbeSection struct {
	CC       string   `toml:"cc"`
	Flags    []string `toml:"flags"`
	Includes []string `toml:"includes"`
	Timeout  string   `toml:"timeout"`
	Jobs     int      `toml:"jobs"`
	Cache    bool     `toml:"cache"`
}

// OutputSection configures the assembler.
type OutputSection struct {
	Path   string `toml:"path"`
	Bundle bool   `toml:"bundle"`
}

// Load parses a manifest file. Relative paths in [parse] are resolved
// against the manifest's directory, so a run from anywhere sees the same
// inputs.
func Load(path string) (Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if m.Probe.Timeout != "" {
		if _, err := time.ParseDuration(m.Probe.Timeout); err != nil {
			return Manifest{}, fmt.Errorf("%s: [probe].timeout: %w", path, err)
		}
	}

	base := filepath.Dir(path)
	for i, h := range m.Parse.Headers {
		m.Parse.Headers[i] = resolveRel(base, h)
	}
	for i, d := range m.Parse.IncludeDirs {
		m.Parse.IncludeDirs[i] = resolveRel(base, d)
	}
	if meta.IsDefined("output", "path") && m.Output.Path != "" {
		m.Output.Path = resolveRel(base, m.Output.Path)
	}
	return m, nil
}

// ProbeTimeout returns the parsed timeout, or fallback when unset.
func (m *Manifest) ProbeTimeout(fallback time.Duration) time.Duration {
	if m.Probe.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(m.Probe.Timeout)
	if err != nil {
		return fallback
	}
	return d
}

func resolveRel(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Starter renders the template `cffigen init` writes.
func Starter(name string) string {
	if name == "" {
		name = "mylib"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[package]\nname = %q\nlibrary = %q\n\n", name, "lib"+name+".so")
	sb.WriteString("[parse]\nheaders = []\ninclude_dirs = []\nflags = []\n\n")
	sb.WriteString("[probe]\ncc = \"cc\"\nflags = []\nincludes = []\ntimeout = \"10s\"\n\n")
	sb.WriteString("[output]\npath = \"bindings\"\nbundle = false\n")
	return sb.String()
}
