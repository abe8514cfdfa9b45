// Package manifest handles wlr.toml host configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/wlr/lib/runtime"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "wlr.toml"

// Manifest represents a wlr.toml configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Runtime Runtime `toml:"runtime"`
	Signing Signing `toml:"signing"`
	Source  Source  `toml:"source"`
	Server  Server  `toml:"server"`

	// Dir is the directory containing the wlr.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Runtime configures start-up.
type Runtime struct {
	Arguments   []string `toml:"arguments"`
	Containment string   `toml:"containment"`
	LicenseKey  string   `toml:"license-key"`
	Layout      string   `toml:"layout"`
	Store       string   `toml:"store"`
}

// Signing configures code signing.
type Signing struct {
	Mode   string  `toml:"mode"`
	Grants []Grant `toml:"grant"`
}

// Grant binds the signature in a file to a set of symbols. Trusted grants
// also register the signature itself.
type Grant struct {
	Signature string   `toml:"signature"`
	Symbols   []string `toml:"symbols"`
	Trusted   bool     `toml:"trusted"`
}

// Source lists files evaluated at start-up.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// Server configures the remote evaluation service.
type Server struct {
	Port      int      `toml:"port"`
	HandleTTL Duration `toml:"handle-ttl"`
}

// Duration decodes TOML strings such as "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Load parses a wlr.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Runtime.Containment == "" {
		m.Runtime.Containment = "contained"
	}
	if m.Signing.Mode == "" {
		m.Signing.Mode = "enabled"
	}
	if m.Server.Port == 0 {
		m.Server.Port = 8765
	}
	if m.Server.HandleTTL.Duration == 0 {
		m.Server.HandleTTL.Duration = 10 * time.Minute
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if _, err := m.containment(); err != nil {
		return err
	}
	if _, err := m.signingMode(); err != nil {
		return err
	}
	for i, g := range m.Signing.Grants {
		if g.Signature == "" {
			return fmt.Errorf("grant %d has no signature file", i+1)
		}
	}
	return nil
}

// FindAndLoad walks up from startDir to find a wlr.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) containment() (runtime.Containment, error) {
	switch m.Runtime.Containment {
	case "contained":
		return runtime.Contained, nil
	case "uncontained":
		return runtime.Uncontained, nil
	}
	return runtime.Contained, fmt.Errorf("unknown containment %q", m.Runtime.Containment)
}

func (m *Manifest) signingMode() (runtime.SigningMode, error) {
	for _, mode := range []runtime.SigningMode{
		runtime.EnableCodeSigning,
		runtime.EnableCodeSigningExceptExpressionAPI,
		runtime.DisableCodeSigning,
	} {
		if mode.String() == m.Signing.Mode {
			return mode, nil
		}
	}
	return runtime.EnableCodeSigning, fmt.Errorf("unknown signing mode %q", m.Signing.Mode)
}

// path resolves p against the manifest directory.
func (m *Manifest) path(p string) string {
	if p == "" || filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// Configuration returns the start-up configuration the manifest describes.
func (m *Manifest) Configuration() *runtime.Configuration {
	conf := runtime.DefaultConfiguration()
	conf.Arguments = append([]string(nil), m.Runtime.Arguments...)
	conf.Containment, _ = m.containment()
	conf.LicenseKey = m.Runtime.LicenseKey
	conf.StorePath = m.path(m.Runtime.Store)
	return conf
}

// LayoutDirectory returns the absolute layout directory, or "".
func (m *Manifest) LayoutDirectory() string {
	return m.path(m.Runtime.Layout)
}

// Apply installs the signing configuration on rt. It may run before or
// after Start.
func (m *Manifest) Apply(rt *runtime.Runtime) error {
	mode, err := m.signingMode()
	if err != nil {
		return err
	}
	rt.ConfigureCodeSigning(mode)

	for _, g := range m.Signing.Grants {
		path := m.path(g.Signature)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading signature: %w", err)
		}
		if len(data) != runtime.SignatureSize {
			return fmt.Errorf("signature %s has %d bytes, want %d", path, len(data), runtime.SignatureSize)
		}
		var sig runtime.Signature
		copy(sig[:], data)
		if g.Trusted {
			rt.RegisterSignature(sig)
		}
		if err := rt.RegisterSymbols(sig, g.Symbols).Err(); err != nil {
			return fmt.Errorf("granting %v: %w", g.Symbols, err)
		}
	}
	return nil
}

// SourceFiles returns the files to evaluate at start-up: every *.wl file
// in the source directories in lexical order, then the entry file.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, d := range m.Source.Dirs {
		matches, err := filepath.Glob(filepath.Join(m.path(d), "*.wl"))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", d, err)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	if m.Source.Entry != "" {
		files = append(files, m.path(m.Source.Entry))
	}
	return files, nil
}
