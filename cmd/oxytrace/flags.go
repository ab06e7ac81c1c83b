package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
	"github.com/Carmen-Shannon/oxy-trace/engine/tracer"
	"github.com/urfave/cli"
)

func tracerFlags(defaultBackend string) []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{Name: "width", Value: 1200, Usage: "image width in pixels"},
		cli.IntFlag{Name: "height", Value: 675, Usage: "image height in pixels"},
		cli.IntFlag{Name: "samples, s", Value: 10, Usage: "samples per pixel for each recompute"},
		cli.IntFlag{Name: "bounces, b", Value: int(tracer.DefaultMaxBounces), Usage: "maximum bounces per path"},
		cli.StringFlag{Name: "backend", Value: defaultBackend, Usage: "compute backend: cpu or wgpu"},
		cli.IntFlag{Name: "workers", Usage: "CPU backend worker count (0 = number of CPUs - 1)"},
		cli.BoolFlag{Name: "fallback-adapter", Usage: "force the software WebGPU adapter"},
		cli.Uint64Flag{Name: "seed", Usage: "fixed seed for reproducible output (0 = random)"},
		cli.BoolTFlag{Name: "jitter", Usage: "jitter sample positions inside each pixel (use --jitter=false for pixel centres)"},
		cli.StringFlag{Name: "background", Value: "0.5,0.7,1.0", Usage: "background radiance as r,g,b"},
		cli.BoolFlag{Name: "sky", Usage: "blend the background from white at the horizon to --background at the zenith"},
		cli.StringFlag{Name: "tonemap", Value: "gamma", Usage: "display mapping: gamma or aces"},
	}
}

func renderFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "output, o", Value: "render.png", Usage: "output file (.png, .jpg, .bmp, .tif)"},
	}
}

func viewFlags() []cli.Flag {
	return []cli.Flag{
		cli.BoolFlag{Name: "profile", Usage: "log frame rate and tracing throughput every second"},
		cli.Float64Flag{Name: "fps", Value: 60, Usage: "present rate cap (0 = uncapped)"},
		cli.BoolFlag{Name: "uncapped", Usage: "present without waiting for vsync"},
	}
}

// config is the parsed, validated form of the shared tracer flags.
type config struct {
	width, height   uint32
	samples         uint32
	bounces         uint32
	backend         device.BackendType
	workers         int
	fallbackAdapter bool
	seed            uint64
	jitter          bool
	background      [3]float32
	sky             bool
	toneMap         tracer.ToneMapper
}

func configFromContext(ctx *cli.Context) (*config, error) {
	width, height := ctx.Int("width"), ctx.Int("height")
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("resolution %dx%d must be positive: %w", width, height, common.ErrConfiguration)
	}
	samples := ctx.Int("samples")
	if samples <= 0 {
		return nil, fmt.Errorf("samples %d must be positive: %w", samples, common.ErrConfiguration)
	}
	bounces := ctx.Int("bounces")
	if bounces < 0 {
		return nil, fmt.Errorf("bounces %d must not be negative: %w", bounces, common.ErrConfiguration)
	}
	backend, err := device.ParseBackendType(ctx.String("backend"))
	if err != nil {
		return nil, err
	}
	background, err := parseColor(ctx.String("background"))
	if err != nil {
		return nil, err
	}
	toneMap, err := parseToneMap(ctx.String("tonemap"))
	if err != nil {
		return nil, err
	}

	return &config{
		width:           uint32(width),
		height:          uint32(height),
		samples:         uint32(samples),
		bounces:         uint32(bounces),
		backend:         backend,
		workers:         ctx.Int("workers"),
		fallbackAdapter: ctx.Bool("fallback-adapter"),
		seed:            ctx.Uint64("seed"),
		jitter:          ctx.BoolT("jitter"),
		background:      background,
		sky:             ctx.Bool("sky"),
		toneMap:         toneMap,
	}, nil
}

func (c *config) deviceOptions() []device.DeviceBuilderOption {
	opts := []device.DeviceBuilderOption{
		device.WithBackend(c.backend),
		device.WithForceFallbackAdapter(c.fallbackAdapter),
	}
	if c.workers > 0 {
		opts = append(opts, device.WithWorkers(c.workers))
	}
	return opts
}

func (c *config) cameraOptions() []camera.CameraBuilderOption {
	return []camera.CameraBuilderOption{
		camera.WithResolution(c.width, c.height),
		camera.WithSamplesPerPixel(c.samples),
	}
}

func (c *config) tracerOptions() []tracer.TracerBuilderOption {
	opts := []tracer.TracerBuilderOption{
		tracer.WithMaxBounces(c.bounces),
		tracer.WithJitter(c.jitter),
	}
	if c.sky {
		opts = append(opts, tracer.WithBackground([3]float32{1, 1, 1}, c.background))
	} else {
		opts = append(opts, tracer.WithUniformBackground(c.background))
	}
	if c.seed != 0 {
		opts = append(opts, tracer.WithSeedSource(tracer.NewFixedSeedSource(c.seed)))
	}
	return opts
}

// parseColor reads "r,g,b" with non-negative components.
func parseColor(s string) ([3]float32, error) {
	var c [3]float32
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return c, fmt.Errorf("colour %q must have three components: %w", s, common.ErrConfiguration)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil || v < 0 {
			return c, fmt.Errorf("colour component %q must be a non-negative number: %w", p, common.ErrConfiguration)
		}
		c[i] = float32(v)
	}
	return c, nil
}

func parseToneMap(name string) (tracer.ToneMapper, error) {
	switch strings.ToLower(name) {
	case "", "gamma":
		return tracer.ToneMapGamma, nil
	case "aces":
		return tracer.ToneMapACES, nil
	default:
		return nil, fmt.Errorf("unknown tone map %q: %w", name, common.ErrConfiguration)
	}
}
