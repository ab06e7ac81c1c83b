package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Carmen-Shannon/oxy-trace/engine"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
	"github.com/Carmen-Shannon/oxy-trace/engine/display"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
	"github.com/Carmen-Shannon/oxy-trace/engine/tracer"
	"github.com/urfave/cli"
)

func newTracer(cfg *config) (device.Device, tracer.Tracer, error) {
	dev, err := device.NewDevice(cfg.deviceOptions()...)
	if err != nil {
		return nil, nil, err
	}
	cam, err := camera.NewCamera(cfg.cameraOptions()...)
	if err != nil {
		dev.Release()
		return nil, nil, err
	}
	tr, err := tracer.NewTracer(dev, cam, scene.DefaultScene(), cfg.tracerOptions()...)
	if err != nil {
		dev.Release()
		return nil, nil, err
	}
	log.Printf("[Tracer] %s backend, %dx%d, %d spp, %d bounces", cfg.backend, cfg.width, cfg.height, cfg.samples, cfg.bounces)
	return dev, tr, nil
}

func render(ctx *cli.Context) error {
	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}
	output := ctx.String("output")
	if _, err := display.ImageFormatForPath(output); err != nil {
		return err
	}

	dev, tr, err := newTracer(cfg)
	if err != nil {
		return err
	}
	defer dev.Release()
	defer tr.Release()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	if err := tr.Perform(runCtx); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	frame := tr.Frame()
	log.Printf("[Tracer] traced %d samples with %d dispatches in %v", frame.Samples(), tr.Dispatcher().Dispatches(), time.Since(start).Round(time.Millisecond))

	if err := display.WriteImage(output, frame.WithToneMap(cfg.toneMap)); err != nil {
		return err
	}
	log.Printf("[Tracer] wrote %s", output)
	return nil
}

func view(ctx *cli.Context) error {
	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}

	dev, tr, err := newTracer(cfg)
	if err != nil {
		return err
	}
	defer dev.Release()

	presentMode := display.PresentModeVSync
	if ctx.Bool("uncapped") {
		presentMode = display.PresentModeUncapped
	}
	e, err := engine.NewEngine(tr,
		engine.WithProfiling(ctx.Bool("profile")),
		engine.WithRenderFrameLimit(ctx.Float64("fps")),
		engine.WithDisplayOptions(
			display.WithToneMap(cfg.toneMap),
			display.WithPresentMode(presentMode),
			display.WithForceFallbackAdapter(cfg.fallbackAdapter),
		),
	)
	if err != nil {
		tr.Release()
		return err
	}
	e.Run()
	return nil
}
