package tracer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
)

// DispatchState is the phase of the sample the dispatcher is working on.
type DispatchState int

const (
	StateIdle DispatchState = iota
	StateGenerating
	StateBouncing
	StateDone
)

func (s DispatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateBouncing:
		return "bouncing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type bounceDispatcherImpl struct {
	mu *sync.Mutex

	maxBounces uint32
	jitter     bool
	background device.Background
	seeds      SeedSource

	state  DispatchState
	bounce uint32

	dispatches atomic.Uint64
}

// BounceDispatcher issues the dispatch sequence of one sample: ray generation followed by
// max-bounces bounce dispatches, swapping the ping-pong buffers after each one.
type BounceDispatcher interface {
	// Run traces one sample. Every dispatch draws a fresh seed. The context is checked
	// between dispatches; a cancelled sample leaves partial radiance in img that the
	// caller must clear before the next sample.
	//
	// Parameters:
	//   - ctx: cancels the remaining dispatches
	//   - dev: the device to dispatch on
	//   - cam: camera snapshot for ray generation
	//   - rays: the ping-pong ray buffers, sized cam.Width*cam.Height
	//   - img: the radiance image
	//
	// Returns:
	//   - error: the first dispatch error, or ctx.Err() if cancelled
	Run(ctx context.Context, dev device.Device, cam camera.GPUCameraUniform, rays RayState, img device.ImageBuffer) error

	// State returns the current phase and, while bouncing, the bounce index.
	//
	// Returns:
	//   - DispatchState: the phase
	//   - uint32: the bounce index k while in StateBouncing
	State() (DispatchState, uint32)

	// MaxBounces returns the number of bounce dispatches per sample.
	//
	// Returns:
	//   - uint32: the bounce count
	MaxBounces() uint32

	// Dispatches returns the total number of dispatches issued so far.
	//
	// Returns:
	//   - uint64: the dispatch counter
	Dispatches() uint64
}

var _ BounceDispatcher = &bounceDispatcherImpl{}

func newBounceDispatcher(maxBounces uint32, jitter bool, background device.Background, seeds SeedSource) *bounceDispatcherImpl {
	return &bounceDispatcherImpl{
		mu:         &sync.Mutex{},
		maxBounces: maxBounces,
		jitter:     jitter,
		background: background,
		seeds:      seeds,
	}
}

func (b *bounceDispatcherImpl) Run(ctx context.Context, dev device.Device, cam camera.GPUCameraUniform, rays RayState, img device.ImageBuffer) (err error) {
	if n := int(cam.Width) * int(cam.Height); n != rays.Len() {
		return fmt.Errorf("camera is %dx%d but the ray state holds %d rays: %w", cam.Width, cam.Height, rays.Len(), common.ErrConfiguration)
	}
	defer func() {
		if err != nil {
			b.setState(StateIdle, 0)
		}
	}()

	rays.Reset()
	params := device.DispatchParams{Jitter: b.jitter, Background: b.background}

	b.setState(StateGenerating, 0)
	params.Seed = b.seeds.Next()
	if err := dev.Generate(ctx, cam, rays.Destination(), params); err != nil {
		return fmt.Errorf("ray generation failed: %w", err)
	}
	b.dispatches.Add(1)
	rays.Swap()

	for k := range b.maxBounces {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.setState(StateBouncing, k)
		params.Seed = b.seeds.Next()
		params.Bounce = k
		if err := dev.Bounce(ctx, rays.Source(), rays.Destination(), img, params); err != nil {
			return fmt.Errorf("bounce %d failed: %w", k, err)
		}
		b.dispatches.Add(1)
		rays.Swap()
	}

	b.setState(StateDone, b.maxBounces)
	return nil
}

func (b *bounceDispatcherImpl) setState(s DispatchState, bounce uint32) {
	b.mu.Lock()
	b.state, b.bounce = s, bounce
	b.mu.Unlock()
}

func (b *bounceDispatcherImpl) State() (DispatchState, uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.bounce
}

func (b *bounceDispatcherImpl) MaxBounces() uint32 {
	return b.maxBounces
}

func (b *bounceDispatcherImpl) Dispatches() uint64 {
	return b.dispatches.Load()
}
