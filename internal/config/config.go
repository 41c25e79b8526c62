// Package config loads build configuration for Verilog generation from JSON
// files and converts it into generator options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rtlgen/internal/codegen"
	"rtlgen/internal/ir"
	"rtlgen/internal/sched"
)

// IOConstraintEntry pins the cycle distance between two channel operations.
// Directions are "send" or "receive".
type IOConstraintEntry struct {
	SourceChannel   string `json:"source_channel"`
	SourceDirection string `json:"source_direction"`
	TargetChannel   string `json:"target_channel"`
	TargetDirection string `json:"target_direction"`
	MinimumLatency  int64  `json:"minimum_latency"`
	MaximumLatency  int64  `json:"maximum_latency"`
}

// Config is the top-level build configuration.
type Config struct {
	// ModuleName overrides the emitted module name.
	ModuleName string `json:"module_name,omitempty"`

	// PipelineStages is the number of pipeline stages. 1 produces a purely
	// combinational datapath.
	PipelineStages int `json:"pipeline_stages,omitempty"`

	// ClockPeriodPs is the combinational delay budget of one cycle.
	ClockPeriodPs int64 `json:"clock_period_ps,omitempty"`

	ClockName string `json:"clock_name,omitempty"`

	// ResetName, when nonempty, gives registers a reset.
	ResetName         string `json:"reset_name,omitempty"`
	ResetActiveLow    bool   `json:"reset_active_low,omitempty"`
	ResetAsynchronous bool   `json:"reset_asynchronous,omitempty"`

	UseSystemVerilog bool `json:"use_system_verilog,omitempty"`

	// OptimizeState runs proc state optimization before scheduling.
	OptimizeState *bool `json:"optimize_state,omitempty"`

	IOConstraints []IOConstraintEntry `json:"io_constraints,omitempty"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		PipelineStages: 1,
		ClockPeriodPs:  1000,
		ClockName:      "clk",
		OptimizeState:  boolPtr(true),
	}
}

func boolPtr(v bool) *bool { return &v }

// Load finds and loads the configuration file. Search order:
//  1. ./rtlgen.json (current working directory)
//  2. ./.rtlgen.json (current working directory)
//  3. <rootPath>/rtlgen.json and <rootPath>/.rtlgen.json (if a directory
//     different from cwd)
//  4. ~/.config/rtlgen/config.json
//
// Returns DefaultConfig if no config file is found.
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "rtlgen.json"),
		filepath.Join(cwd, ".rtlgen.json"),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "rtlgen.json"),
				filepath.Join(rootPath, ".rtlgen.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "rtlgen", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults.
func (c *Config) applyDefaults() {
	if c.PipelineStages == 0 {
		c.PipelineStages = 1
	}
	if c.ClockPeriodPs == 0 {
		c.ClockPeriodPs = 1000
	}
	if c.ClockName == "" {
		c.ClockName = "clk"
	}
	if c.OptimizeState == nil {
		c.OptimizeState = boolPtr(true)
	}
}

// Save writes the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate reports the first structural problem of the configuration.
func (c *Config) Validate() error {
	if c.PipelineStages < 1 {
		return fmt.Errorf("pipeline_stages must be >= 1, got %d", c.PipelineStages)
	}
	if c.ClockPeriodPs <= 0 {
		return fmt.Errorf("clock_period_ps must be positive, got %d", c.ClockPeriodPs)
	}
	for i, e := range c.IOConstraints {
		if e.SourceChannel == "" || e.TargetChannel == "" {
			return fmt.Errorf("io_constraints[%d]: source and target channels must be named", i)
		}
		if _, err := parseDirection(e.SourceDirection); err != nil {
			return fmt.Errorf("io_constraints[%d]: %w", i, err)
		}
		if _, err := parseDirection(e.TargetDirection); err != nil {
			return fmt.Errorf("io_constraints[%d]: %w", i, err)
		}
		if e.MinimumLatency > e.MaximumLatency {
			return fmt.Errorf("io_constraints[%d]: minimum latency %d exceeds maximum %d",
				i, e.MinimumLatency, e.MaximumLatency)
		}
	}
	return nil
}

func parseDirection(s string) (ir.ChannelDirection, error) {
	switch s {
	case "receive":
		return ir.ChannelReceive, nil
	case "send":
		return ir.ChannelSend, nil
	}
	return 0, fmt.Errorf("direction must be %q or %q, got %q", "send", "receive", s)
}

// GeneratorOptions converts the configuration into codegen options. The
// configuration must have been validated.
func (c *Config) GeneratorOptions() (codegen.Options, error) {
	var constraints []sched.Constraint
	for i, e := range c.IOConstraints {
		src, err := parseDirection(e.SourceDirection)
		if err != nil {
			return codegen.Options{}, fmt.Errorf("io_constraints[%d]: %w", i, err)
		}
		tgt, err := parseDirection(e.TargetDirection)
		if err != nil {
			return codegen.Options{}, fmt.Errorf("io_constraints[%d]: %w", i, err)
		}
		constraints = append(constraints, sched.IOConstraint{
			SourceChannel:   e.SourceChannel,
			SourceDirection: src,
			TargetChannel:   e.TargetChannel,
			TargetDirection: tgt,
			MinimumLatency:  e.MinimumLatency,
			MaximumLatency:  e.MaximumLatency,
		})
	}
	optimize := true
	if c.OptimizeState != nil {
		optimize = *c.OptimizeState
	}
	return codegen.Options{
		ModuleName:        c.ModuleName,
		ClockName:         c.ClockName,
		ResetName:         c.ResetName,
		ResetActiveLow:    c.ResetActiveLow,
		ResetAsynchronous: c.ResetAsynchronous,
		UseSystemVerilog:  c.UseSystemVerilog,
		Stages:            c.PipelineStages,
		ClockPeriodPs:     c.ClockPeriodPs,
		Constraints:       constraints,
		OptimizeState:     optimize,
	}, nil
}
