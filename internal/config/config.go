// Package config loads the host configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/modbridge/internal/bridge"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/userdata"
)

// Config is the root of the host configuration file.
type Config struct {
	Log     Log           `yaml:"log"`
	Bridge  bridge.Config `yaml:"bridge"`
	Scripts Scripts       `yaml:"scripts"`
	Console Console       `yaml:"console"`
}

type Log struct {
	Level    string   `yaml:"level"`
	Encoding string   `yaml:"encoding"`
	Output   []string `yaml:"output"`
}

// Scripts controls which script files are loaded at startup.
type Scripts struct {
	Dir string `yaml:"dir"`
	// Pattern is matched against file names inside Dir.
	Pattern string `yaml:"pattern"`
}

// Console is the optional websocket console.
type Console struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	Path           string        `yaml:"path"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	// Tick is how often the host loop drains console submissions.
	Tick time.Duration `yaml:"tick"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: Log{
			Level:    "info",
			Encoding: "console",
		},
		Bridge: bridge.DefaultConfig(),
		Scripts: Scripts{
			Dir:     "scripts",
			Pattern: "*.go",
		},
		Console: Console{
			Enabled:        false,
			Addr:           "127.0.0.1:7777",
			Path:           "/console",
			MaxMessageSize: 64 << 10,
			WriteTimeout:   5 * time.Second,
			Tick:           16 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.encoding: %q is not json or console", c.Log.Encoding))
	}
	if c.Bridge.MaxTraversalNodes <= 0 {
		errs = append(errs, errors.New("bridge.max_traversal_nodes must be positive"))
	}
	if c.Bridge.MaxOverlayDepth <= 0 {
		errs = append(errs, errors.New("bridge.max_overlay_depth must be positive"))
	}
	if _, err := userdata.NewCodec(c.Bridge.UserDataCodec); err != nil {
		errs = append(errs, fmt.Errorf("bridge.userdata_codec: %w", err))
	}
	if c.Scripts.Pattern == "" {
		errs = append(errs, errors.New("scripts.pattern is empty"))
	}
	if c.Console.Enabled {
		if c.Console.Addr == "" {
			errs = append(errs, errors.New("console.addr is empty"))
		}
		if c.Console.Path == "" || c.Console.Path[0] != '/' {
			errs = append(errs, fmt.Errorf("console.path: %q must start with /", c.Console.Path))
		}
		if c.Console.Tick <= 0 {
			errs = append(errs, errors.New("console.tick must be positive"))
		}
	}
	return errors.Join(errs...)
}

// LogOptions maps the log section onto logger options. Validate first.
func (c Config) LogOptions() log.Options {
	level, _ := log.ParseLevel(c.Log.Level)
	return log.Options{Level: level, Encoding: c.Log.Encoding, Output: c.Log.Output}
}
