package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TransportKind selects where transmitted packets go on a host build.
type TransportKind string

const (
	TransportRtMidi TransportKind = "rtmidi"
	TransportSerial TransportKind = "serial"
)

// SerialConfig describes the serial bridge.
type SerialConfig struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}

// OutputConfig controls which host MIDI output port is used.
type OutputConfig struct {
	Preferred []string `json:"preferred,omitempty"`
	Excluded  []string `json:"excluded,omitempty"`
	RescanMS  int      `json:"rescanMs,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Transport TransportKind `json:"transport"`
	Serial    SerialConfig  `json:"serial"`
	Output    OutputConfig  `json:"output"`
	// Input is the evdev device whose keys drive the matrix model.
	Input   string `json:"input,omitempty"`
	SysFreq uint32 `json:"sysFreqHz"`
	// StatsMS is how often the pipeline counters are logged. 0 disables.
	StatsMS int  `json:"statsMs"`
	Debug   bool `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportRtMidi,
		Serial: SerialConfig{
			Device: "/dev/ttyACM0",
			Baud:   500000,
		},
		Output: OutputConfig{
			Excluded: []string{"Midi Through", "Through Port", "Dummy"},
			RescanMS: 1000,
		},
		SysFreq: 125_000_000,
		StatsMS: 10_000,
	}
}

// ConfigPath returns the default config location
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "keymatrix", "config.json"), nil
}

// Load reads the config from path, or returns defaults if it does not exist.
// Fields missing from the file keep their default values. The result is not
// validated; callers apply their overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the values a run cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportRtMidi:
	case TransportSerial:
		if c.Serial.Device == "" {
			errs = append(errs, errors.New("serial transport needs a device"))
		}
		if c.Serial.Baud <= 0 {
			errs = append(errs, fmt.Errorf("invalid baud rate %d", c.Serial.Baud))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	if c.SysFreq == 0 {
		errs = append(errs, errors.New("system clock frequency must be non-zero"))
	}
	if c.Output.RescanMS < 0 {
		errs = append(errs, fmt.Errorf("invalid rescan interval %dms", c.Output.RescanMS))
	}
	if c.StatsMS < 0 {
		errs = append(errs, fmt.Errorf("invalid stats interval %dms", c.StatsMS))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RescanInterval returns the output rescan interval as a duration.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Output.RescanMS) * time.Millisecond
}

// StatsInterval returns the counter logging interval as a duration.
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsMS) * time.Millisecond
}
