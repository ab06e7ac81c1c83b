package main

import (
	"errors"
	"flag"
	"testing"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
	"github.com/urfave/cli"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want [3]float32
		err  bool
	}{
		{"0.5,0.7,1.0", [3]float32{0.5, 0.7, 1.0}, false},
		{" 1 , 2 , 3 ", [3]float32{1, 2, 3}, false},
		{"1,2", [3]float32{}, true},
		{"1,2,x", [3]float32{}, true},
		{"1,-2,3", [3]float32{}, true},
	}
	for _, tt := range tests {
		got, err := parseColor(tt.in)
		if tt.err {
			if !errors.Is(err, common.ErrConfiguration) {
				t.Errorf("parseColor(%q) error = %v, want ErrConfiguration", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseColor(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestParseToneMap(t *testing.T) {
	for _, name := range []string{"", "gamma", "ACES"} {
		if tm, err := parseToneMap(name); err != nil || tm == nil {
			t.Errorf("parseToneMap(%q) = %v, %v", name, tm, err)
		}
	}
	if _, err := parseToneMap("reinhard"); !errors.Is(err, common.ErrConfiguration) {
		t.Errorf("unknown tone map error = %v, want ErrConfiguration", err)
	}
}

// newContext parses args against the flags of one command, the way cli does before calling an action.
func newContext(t *testing.T, flags []cli.Flag, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags {
		f.Apply(set)
	}
	if err := set.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestConfigFromContextDefaults(t *testing.T) {
	cfg, err := configFromContext(newContext(t, tracerFlags("cpu")))
	if err != nil {
		t.Fatalf("configFromContext: %v", err)
	}
	if cfg.width != 1200 || cfg.height != 675 || cfg.samples != 10 || cfg.bounces != 50 {
		t.Errorf("defaults = %dx%d %d spp %d bounces; want 1200x675 10 spp 50 bounces", cfg.width, cfg.height, cfg.samples, cfg.bounces)
	}
	if cfg.backend != device.BackendTypeCPU || !cfg.jitter || cfg.sky || cfg.seed != 0 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.background != [3]float32{0.5, 0.7, 1.0} {
		t.Errorf("background = %v", cfg.background)
	}
	if len(cfg.deviceOptions()) != 2 {
		t.Errorf("zero workers should keep the device default")
	}
	if len(cfg.tracerOptions()) != 3 {
		t.Errorf("tracer options without seed = %d, want 3", len(cfg.tracerOptions()))
	}
}

func TestConfigFromContextOverrides(t *testing.T) {
	ctx := newContext(t, tracerFlags("cpu"),
		"--width", "64", "--height", "32", "-s", "2", "-b", "0",
		"--backend", "wgpu", "--workers", "3", "--seed", "9", "--jitter=false", "--sky", "--tonemap", "aces")
	cfg, err := configFromContext(ctx)
	if err != nil {
		t.Fatalf("configFromContext: %v", err)
	}
	if cfg.width != 64 || cfg.height != 32 || cfg.samples != 2 || cfg.bounces != 0 {
		t.Errorf("got %dx%d %d spp %d bounces", cfg.width, cfg.height, cfg.samples, cfg.bounces)
	}
	if cfg.backend != device.BackendTypeWGPU || cfg.workers != 3 || cfg.seed != 9 || cfg.jitter || !cfg.sky {
		t.Errorf("unexpected overrides %+v", cfg)
	}
	if len(cfg.deviceOptions()) != 3 {
		t.Errorf("explicit workers should add a device option")
	}
	if len(cfg.tracerOptions()) != 4 {
		t.Errorf("tracer options with seed = %d, want 4", len(cfg.tracerOptions()))
	}
}

func TestConfigFromContextRejects(t *testing.T) {
	tests := [][]string{
		{"--width", "0"},
		{"--height", "-1"},
		{"--samples", "0"},
		{"--bounces", "-2"},
		{"--backend", "vulkan"},
		{"--background", "red"},
		{"--tonemap", "filmic"},
	}
	for _, args := range tests {
		if _, err := configFromContext(newContext(t, tracerFlags("cpu"), args...)); !errors.Is(err, common.ErrConfiguration) {
			t.Errorf("%v: error = %v, want ErrConfiguration", args, err)
		}
	}
}
