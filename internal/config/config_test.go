package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rtlgen/internal/ir"
	"rtlgen/internal/sched"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rtlgen.json")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 1, cfg.PipelineStages)
	require.Equal(t, int64(1000), cfg.ClockPeriodPs)
	require.Equal(t, "clk", cfg.ClockName)
	require.NotNil(t, cfg.OptimizeState)
	require.True(t, *cfg.OptimizeState)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileFillsDefaults(t *testing.T) {
	path := writeConfig(t, `{"module_name": "top", "pipeline_stages": 3}`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "top", cfg.ModuleName)
	require.Equal(t, 3, cfg.PipelineStages)
	require.Equal(t, int64(1000), cfg.ClockPeriodPs)
	require.Equal(t, "clk", cfg.ClockName)
	require.True(t, *cfg.OptimizeState)
}

func TestLoadFileBadJSON(t *testing.T) {
	path := writeConfig(t, `{"module_name": }`)
	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().PipelineStages, cfg.PipelineStages)
}

func TestLoadFindsFileInRoot(t *testing.T) {
	dir := t.TempDir()
	text := `{"module_name": "from_root", "clock_period_ps": 750}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rtlgen.json"), []byte(text), 0644))
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "from_root", cfg.ModuleName)
	require.Equal(t, int64(750), cfg.ClockPeriodPs)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero stages", func(c *Config) { c.PipelineStages = 0 }},
		{"negative clock", func(c *Config) { c.ClockPeriodPs = -5 }},
		{"unnamed channel", func(c *Config) {
			c.IOConstraints = []IOConstraintEntry{{
				TargetChannel: "s", SourceDirection: "receive", TargetDirection: "send",
			}}
		}},
		{"bad direction", func(c *Config) {
			c.IOConstraints = []IOConstraintEntry{{
				SourceChannel: "r", TargetChannel: "s",
				SourceDirection: "recv", TargetDirection: "send",
			}}
		}},
		{"inverted window", func(c *Config) {
			c.IOConstraints = []IOConstraintEntry{{
				SourceChannel: "r", TargetChannel: "s",
				SourceDirection: "receive", TargetDirection: "send",
				MinimumLatency: 2, MaximumLatency: 1,
			}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mut(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestGeneratorOptions(t *testing.T) {
	cfg := &Config{
		ModuleName:        "top",
		PipelineStages:    4,
		ClockPeriodPs:     800,
		ClockName:         "clock",
		ResetName:         "rst_n",
		ResetActiveLow:    true,
		ResetAsynchronous: true,
		UseSystemVerilog:  true,
		OptimizeState:     boolPtr(false),
		IOConstraints: []IOConstraintEntry{{
			SourceChannel:   "req",
			SourceDirection: "receive",
			TargetChannel:   "resp",
			TargetDirection: "send",
			MinimumLatency:  1,
			MaximumLatency:  3,
		}},
	}
	require.NoError(t, cfg.Validate())

	opts, err := cfg.GeneratorOptions()
	require.NoError(t, err)
	require.Equal(t, "top", opts.ModuleName)
	require.Equal(t, 4, opts.Stages)
	require.Equal(t, int64(800), opts.ClockPeriodPs)
	require.Equal(t, "clock", opts.ClockName)
	require.Equal(t, "rst_n", opts.ResetName)
	require.True(t, opts.ResetActiveLow)
	require.True(t, opts.ResetAsynchronous)
	require.True(t, opts.UseSystemVerilog)
	require.False(t, opts.OptimizeState)

	require.Len(t, opts.Constraints, 1)
	ioc, ok := opts.Constraints[0].(sched.IOConstraint)
	require.True(t, ok)
	require.Equal(t, sched.IOConstraint{
		SourceChannel:   "req",
		SourceDirection: ir.ChannelReceive,
		TargetChannel:   "resp",
		TargetDirection: ir.ChannelSend,
		MinimumLatency:  1,
		MaximumLatency:  3,
	}, ioc)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtlgen.json")
	cfg := DefaultConfig()
	cfg.ModuleName = "saved"
	require.NoError(t, cfg.Save(path))
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "saved", loaded.ModuleName)
	require.Equal(t, cfg.PipelineStages, loaded.PipelineStages)
}
