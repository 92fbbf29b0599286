package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the matrixhalo daemon.
//
// The config file is the primary configuration surface; flags exist for
// small overrides and environments where a file is awkward. Defaults and
// validation live here so the rest of the code can assume a well-formed
// config.
type Config struct {
	// Display output configuration
	Display DisplayConfig `yaml:"display"`

	// HTTP API configuration
	API APIConfig `yaml:"api"`

	// IPC configuration (unix socket command ingest)
	IPC IPCConfig `yaml:"ipc"`

	// Animation / interpolation tuning
	Animation AnimationConfig `yaml:"animation"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type DisplayConfig struct {
	// Device is the framebuffer device the pixel sink maps.
	Device string `yaml:"device"`

	Width      int `yaml:"width"`
	Height     int `yaml:"height"`
	PanelWidth int `yaml:"panel_width"`

	// Panel orientation fixes
	MirrorTopPanel bool `yaml:"mirror_top_panel"`
	FlipX          bool `yaml:"flip_x,omitempty"`
	FlipY          bool `yaml:"flip_y,omitempty"`
	ReversePanels  bool `yaml:"reverse_panels,omitempty"`

	// DryRun swaps the hardware sink for an in-memory one.
	DryRun bool `yaml:"dry_run,omitempty"`
}

type APIConfig struct {
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type AnimationConfig struct {
	TargetFPS int     `yaml:"target_fps"`
	AnimStep  float64 `yaml:"anim_step"`
	ColorStep float64 `yaml:"color_step"`

	// GraceSec freezes the animation clock once the signal age passes it.
	GraceSec float64 `yaml:"grace_sec"`

	// GrayEndSec is where the renderer's grayscale fade completes.
	GrayEndSec float64 `yaml:"gray_end_sec"`

	// BlankSec fully clears the output past this signal age; 0 disables.
	BlankSec float64 `yaml:"blank_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Display: DisplayConfig{
			Device:         defaultFbdevPath,
			Width:          defaultMatrixWidth,
			Height:         defaultMatrixHeight,
			PanelWidth:     defaultPanelWidth,
			MirrorTopPanel: true,
		},
		API: APIConfig{
			Port:  defaultAPIPort,
			Token: defaultAPIToken,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		Animation: AnimationConfig{
			TargetFPS:  defaultTargetFPS,
			AnimStep:   defaultAnimStep,
			ColorStep:  defaultColorStep,
			GraceSec:   defaultGraceSec,
			GrayEndSec: defaultGrayEndSec,
			BlankSec:   defaultBlankSec,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true),
// and trailing garbage after the document is an error.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// Validate checks cross-field and range constraints.
func (c Config) Validate() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display: width and height must be positive (got %dx%d)", c.Display.Width, c.Display.Height)
	}
	if c.Display.PanelWidth <= 0 || c.Display.Width%c.Display.PanelWidth != 0 {
		return fmt.Errorf("display: panel_width must divide width (%d %% %d != 0)", c.Display.Width, c.Display.PanelWidth)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api: port out of range: %d", c.API.Port)
	}
	if c.API.Token == "" {
		return errors.New("api: token must not be empty")
	}
	if c.Animation.TargetFPS <= 0 || c.Animation.TargetFPS > 1000 {
		return fmt.Errorf("animation: target_fps must be between 1 and 1000 (got %d)", c.Animation.TargetFPS)
	}
	if c.Animation.AnimStep <= 0 {
		return fmt.Errorf("animation: anim_step must be positive (got %g)", c.Animation.AnimStep)
	}
	if c.Animation.ColorStep <= 0 {
		return fmt.Errorf("animation: color_step must be positive (got %g)", c.Animation.ColorStep)
	}
	if c.Animation.GraceSec < 0 || c.Animation.BlankSec < 0 {
		return errors.New("animation: grace_sec and blank_sec must be >= 0")
	}
	if c.Animation.GrayEndSec < c.Animation.GraceSec {
		return fmt.Errorf("animation: gray_end_sec (%g) must be >= grace_sec (%g)", c.Animation.GrayEndSec, c.Animation.GraceSec)
	}
	return nil
}

// FlagOverrides applies flag values on top of a loaded config. Each override
// is applied only when its pointer is non-nil, so the file stays the primary
// source and flags remain ad-hoc overrides.
type FlagOverrides struct {
	FbdevPath *string
	DryRun    *bool

	APIPort  *int
	APIToken *string

	IPCSocketPath *string

	TargetFPS *int
	BlankSec  *float64

	LogLevel *string
}

// Apply merges the overrides into cfg. Nil pointers are ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.FbdevPath != nil {
		cfg.Display.Device = *o.FbdevPath
	}
	if o.DryRun != nil {
		cfg.Display.DryRun = *o.DryRun
	}
	if o.APIPort != nil {
		cfg.API.Port = *o.APIPort
	}
	if o.APIToken != nil {
		cfg.API.Token = *o.APIToken
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.TargetFPS != nil {
		cfg.Animation.TargetFPS = *o.TargetFPS
	}
	if o.BlankSec != nil {
		cfg.Animation.BlankSec = *o.BlankSec
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// panelMapFromConfig builds the logical-to-physical remap for the sink.
func panelMapFromConfig(d DisplayConfig) panelMap {
	return panelMap{
		w:             d.Width,
		h:             d.Height,
		panelW:        d.PanelWidth,
		mirrorTop:     d.MirrorTopPanel,
		flipX:         d.FlipX,
		flipY:         d.FlipY,
		reversePanels: d.ReversePanels,
	}
}
