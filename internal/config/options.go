package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects how statements are executed.
type Mode string

const (
	// ModeAuto runs index-free statements immediately and compiles the rest.
	ModeAuto Mode = "auto"
	// ModeEmbedded forces every statement through the compiler and VM.
	ModeEmbedded Mode = "embedded"
)

// Options is the top-level reshop.yaml configuration.
type Options struct {
	// Mode is auto or embedded. Defaults to auto.
	Mode Mode `yaml:"mode,omitempty"`

	// Data lists symbol-dictionary files loaded before the first statement.
	// Relative paths are resolved against the configuration file directory.
	Data []string `yaml:"data,omitempty"`

	// Trace logs the disassembly of every chunk handed to the VM.
	Trace bool `yaml:"trace,omitempty"`

	// Color forces colored diagnostics on ("always") or off ("never").
	// The default ("auto") colors only when stdout is a terminal.
	Color string `yaml:"color,omitempty"`

	// RequireRoot rejects graphs whose root had to be inferred.
	RequireRoot bool `yaml:"require_root,omitempty"`
}

// DefaultOptions returns the options used when no reshop.yaml exists.
func DefaultOptions() *Options {
	opts := &Options{}
	opts.setDefaults()
	return opts
}

// LoadOptions reads and parses a reshop.yaml file.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseOptions(data, path)
}

// ParseOptions parses reshop.yaml content from bytes.
// The path argument is used for error messages and to resolve data paths.
func ParseOptions(data []byte, path string) (*Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	opts.setDefaults()
	if err := opts.validate(path); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i, d := range opts.Data {
		if !filepath.IsAbs(d) {
			opts.Data[i] = filepath.Join(dir, d)
		}
	}
	return &opts, nil
}

// FindOptions searches for reshop.yaml starting from dir and walking up
// to parent directories. Returns "" and nil error when none is found.
func FindOptions(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (o *Options) setDefaults() {
	if o.Mode == "" {
		o.Mode = ModeAuto
	}
	if o.Color == "" {
		o.Color = "auto"
	}
}

func (o *Options) validate(path string) error {
	switch o.Mode {
	case ModeAuto, ModeEmbedded:
	default:
		return fmt.Errorf("%s: unknown mode %q (want auto or embedded)", path, o.Mode)
	}
	switch o.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%s: unknown color setting %q", path, o.Color)
	}
	for i, d := range o.Data {
		if !IsDataFile(d) {
			return fmt.Errorf("%s: data[%d]: unsupported data file %q", path, i, d)
		}
	}
	return nil
}

// IsDataFile reports whether path has a YAML or SQLite data extension.
func IsDataFile(path string) bool {
	return IsYAMLData(path) || IsSQLiteData(path)
}

// IsYAMLData reports whether path names a YAML symbol file.
func IsYAMLData(path string) bool {
	return hasExt(path, YAMLDataExtensions)
}

// IsSQLiteData reports whether path names a SQLite symbol database.
func IsSQLiteData(path string) bool {
	return hasExt(path, SQLiteDataExtensions)
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
