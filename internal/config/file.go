package config

import (
	"fmt"
	"maps"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML form of Options.
//
// Example:
//
//	host_path: /usr/libexec/shell-host
//	codec: cbor
//	request_timeout: 10s
//	env:
//	  LANG: C.UTF-8
type File struct {
	HostPath         string            `yaml:"host_path"`
	HostArgs         []string          `yaml:"host_args"`
	URL              string            `yaml:"url"`
	Header           map[string]string `yaml:"header"`
	Codec            string            `yaml:"codec"`
	Cwd              string            `yaml:"cwd"`
	Env              map[string]string `yaml:"env"`
	RequestTimeout   string            `yaml:"request_timeout"`
	MaxFrameSize     int               `yaml:"max_frame_size"`
	SkipVersionCheck bool              `yaml:"skip_version_check"`
}

// LoadFile reads and parses a YAML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return f, nil
}

// ParseFile parses YAML configuration data.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	switch f.Codec {
	case "", "json", "cbor":
	default:
		return nil, fmt.Errorf("unknown codec %q", f.Codec)
	}

	if f.RequestTimeout != "" {
		if _, err := time.ParseDuration(f.RequestTimeout); err != nil {
			return nil, fmt.Errorf("request_timeout: %w", err)
		}
	}

	return &f, nil
}

// Apply copies the values set in f onto o. Values already set on o win.
func (f *File) Apply(o *Options) {
	if o.HostPath == "" {
		o.HostPath = f.HostPath
	}

	if len(o.HostArgs) == 0 {
		o.HostArgs = f.HostArgs
	}

	if o.URL == "" {
		o.URL = f.URL
	}

	if o.Codec == "" {
		o.Codec = f.Codec
	}

	if o.Cwd == "" {
		o.Cwd = f.Cwd
	}

	if len(f.Header) > 0 {
		merged := maps.Clone(f.Header)
		maps.Copy(merged, o.Header)
		o.Header = merged
	}

	if len(f.Env) > 0 {
		merged := maps.Clone(f.Env)
		maps.Copy(merged, o.Env)
		o.Env = merged
	}

	if o.RequestTimeout == nil && f.RequestTimeout != "" {
		// Validated by ParseFile.
		if d, err := time.ParseDuration(f.RequestTimeout); err == nil {
			o.RequestTimeout = &d
		}
	}

	if o.MaxFrameSize == nil && f.MaxFrameSize > 0 {
		size := f.MaxFrameSize
		o.MaxFrameSize = &size
	}

	o.SkipVersionCheck = o.SkipVersionCheck || f.SkipVersionCheck
}
