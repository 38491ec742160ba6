// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package config loads the freqsynth YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/gotmc/freqsynth/lib/step"
	"github.com/gotmc/freqsynth/lib/visa"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "500ms" or "3s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format,omitempty"` // json or text
	File   string `yaml:"file,omitempty"`   // empty: freqsynth.log in the config directory
}

// BoardConfig describes the USB adapter for one GPIB board.
type BoardConfig struct {
	Board       int      `yaml:"board"`
	Port        string   `yaml:"port"` // empty: auto-detect
	Baud        int      `yaml:"baud,omitempty"`
	AR488       bool     `yaml:"ar488,omitempty"`
	WriteDelay  Duration `yaml:"write_delay,omitempty"`
	ReadTimeout Duration `yaml:"read_timeout,omitempty"`
}

// StepConfig picks the step size the slider starts on.
type StepConfig struct {
	DefaultIndex int `yaml:"default_index"`
}

// TelemetryConfig enables the Prometheus endpoint when Listen is set.
type TelemetryConfig struct {
	Listen string `yaml:"listen"`
}

// Config is the YAML configuration file.
type Config struct {
	Logging     LoggingConfig   `yaml:"logging"`
	GPIB        []BoardConfig   `yaml:"gpib"`
	Instruments []string        `yaml:"instruments"`
	ScanSerial  bool            `yaml:"scan_serial"`
	Step        StepConfig      `yaml:"step"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		GPIB: []BoardConfig{{
			Board:       0,
			Baud:        115200,
			ReadTimeout: Duration{3 * time.Second},
		}},
		Instruments: []string{"GPIB0::19::INSTR"},
		Step:        StepConfig{DefaultIndex: step.DefaultIndex},
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "freqsynth"), nil
}

// Path returns the default config file path
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path, or returns defaults if the file does not
// exist. Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var err error
	seen := map[int]bool{}
	for _, b := range c.GPIB {
		if b.Board < 0 {
			err = multierr.Append(err, fmt.Errorf("gpib board %d: negative board number", b.Board))
		}
		if seen[b.Board] {
			err = multierr.Append(err, fmt.Errorf("gpib board %d: configured twice", b.Board))
		}
		seen[b.Board] = true
		if b.Baud < 0 {
			err = multierr.Append(err, fmt.Errorf("gpib board %d: invalid baud rate %d", b.Board, b.Baud))
		}
		if b.ReadTimeout.Duration < 0 || b.ReadTimeout.Duration > 3*time.Second {
			err = multierr.Append(err, fmt.Errorf("gpib board %d: read_timeout must be within 0-3s", b.Board))
		}
	}
	for _, name := range c.Instruments {
		if _, perr := visa.Parse(name); perr != nil {
			err = multierr.Append(err, perr)
		}
	}
	if c.Step.DefaultIndex < 0 || c.Step.DefaultIndex >= len(step.Magnitudes()) {
		err = multierr.Append(err, fmt.Errorf("step.default_index %d out of range", c.Step.DefaultIndex))
	}
	return err
}

// Boards converts the GPIB section for the resource manager.
func (c *Config) Boards() []visa.Board {
	boards := make([]visa.Board, 0, len(c.GPIB))
	for _, b := range c.GPIB {
		boards = append(boards, visa.Board{
			Index:       b.Board,
			Port:        b.Port,
			Baud:        b.Baud,
			AR488:       b.AR488,
			WriteDelay:  b.WriteDelay.Duration,
			ReadTimeout: b.ReadTimeout.Duration,
		})
	}
	return boards
}

// LogFile returns the configured log file, defaulting to freqsynth.log in
// the config directory.
func (c *Config) LogFile() (string, error) {
	if c.Logging.File != "" {
		return c.Logging.File, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "freqsynth.log"), nil
}
