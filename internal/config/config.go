// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the objrpc server configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/luxfi/objrpc"
	"github.com/luxfi/objrpc/objerr"
)

// Config is the server configuration file.
//
//	listen: ":9000"
//	transport: zap
//	gateway: ":8080"
//	journal: objrpc.db
//	log:
//	  level: info
//	  format: text
//	demo: true
//	interfaces:
//	  - demo.cue
type Config struct {
	Listen     string   `yaml:"listen"`
	Transport  string   `yaml:"transport"`
	Gateway    string   `yaml:"gateway,omitempty"`
	Journal    string   `yaml:"journal,omitempty"`
	Log        Log      `yaml:"log"`
	Demo       bool     `yaml:"demo"`
	Interfaces []string `yaml:"interfaces,omitempty"`
}

// Log configures the server logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:    ":9000",
		Transport: objrpc.DefaultTransport,
		Log:       Log{Level: "info", Format: "text"},
		Demo:      true,
	}
}

// Load reads path over the defaults. Unknown fields are rejected. Relative
// interface paths are resolved against the directory of path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, p := range cfg.Interfaces {
		if !filepath.IsAbs(p) {
			cfg.Interfaces[i] = filepath.Join(base, p)
		}
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that have a fixed set of values.
func (c Config) Validate() error {
	if c.Listen == "" {
		return objerr.New(objerr.ConfigurationError, "listen is required")
	}
	if !objrpc.HasTransport(c.Transport) {
		return objerr.New(objerr.ConfigurationError, "unknown transport %q: must be one of %v",
			c.Transport, objrpc.AvailableTransports())
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return objerr.New(objerr.ConfigurationError, "invalid log format %q: must be text or json", c.Log.Format)
	}
	return nil
}

func (l Log) level() (slog.Level, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, objerr.New(objerr.ConfigurationError, "invalid log level %q", l.Level)
	}
	return lv, nil
}

// Logger builds the configured logger writing to w.
func (l Log) Logger(w io.Writer) (*slog.Logger, error) {
	lv, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lv}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, objerr.New(objerr.ConfigurationError, "invalid log format %q", l.Format)
}
