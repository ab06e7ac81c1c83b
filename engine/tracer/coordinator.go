package tracer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
)

// RequestKind identifies what a coordinator request asks for.
type RequestKind int

const (
	// RequestRecompute discards the accumulated samples and traces a full set again.
	RequestRecompute RequestKind = iota
	// RequestResize changes the resolution.
	RequestResize
	// RequestMove moves the camera one step.
	RequestMove
	// RequestSetScene replaces the scene.
	RequestSetScene
)

func (k RequestKind) String() string {
	switch k {
	case RequestRecompute:
		return "recompute"
	case RequestResize:
		return "resize"
	case RequestMove:
		return "move"
	case RequestSetScene:
		return "set-scene"
	default:
		return fmt.Sprintf("request(%d)", int(k))
	}
}

// Request is a message to the coordinator goroutine. Every request implies a recompute.
type Request struct {
	Kind      RequestKind
	Width     uint32
	Height    uint32
	Direction camera.MoveDirection
	Scene     scene.Scene
}

// batch is the coalesced form of every request pending when the coordinator wakes up.
type batch struct {
	recompute bool
	scene     scene.Scene
	resize    bool
	width     uint32
	height    uint32
	moves     []camera.MoveDirection
}

type coordinatorImpl struct {
	mu *sync.Mutex

	tracer Tracer

	pending  []Request
	wake     chan struct{}
	cancel   context.CancelFunc
	busy     bool
	running  bool
	errs     chan error
	idleCond *sync.Cond
}

// Coordinator owns the single goroutine that issues every dispatch of a Tracer.
// Requests may be submitted from any goroutine. A new request cancels the sample loop in
// flight; the coordinator then coalesces everything that is queued and starts over, so
// only the latest state is ever traced to completion.
type Coordinator interface {
	// Run processes requests until ctx is done. It must be called once.
	//
	// Parameters:
	//   - ctx: stops the loop and cancels the work in flight
	//
	// Returns:
	//   - error: ctx.Err() once the loop stops
	Run(ctx context.Context) error

	// Submit queues req and cancels the work in flight. It never blocks.
	//
	// Parameters:
	//   - req: the request
	Submit(req Request)

	// Recompute queues a RequestRecompute.
	Recompute()

	// Resize queues a RequestResize.
	//
	// Parameters:
	//   - width, height: the new resolution
	Resize(width, height uint32)

	// Move queues a RequestMove.
	//
	// Parameters:
	//   - direction: the move command
	Move(direction camera.MoveDirection)

	// SetScene queues a RequestSetScene.
	//
	// Parameters:
	//   - s: the new scene
	SetScene(s scene.Scene)

	// Errors returns the channel failed recomputes are reported on. Errors are dropped
	// when nobody drains the channel. Cancellations are not reported.
	//
	// Returns:
	//   - <-chan error: the error channel
	Errors() <-chan error

	// Busy reports whether requests are queued or a recompute is in flight.
	//
	// Returns:
	//   - bool: true while work is outstanding
	Busy() bool

	// WaitIdle blocks until no request is queued and nothing is in flight, or ctx is done.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: ctx.Err() if the wait was abandoned
	WaitIdle(ctx context.Context) error

	// Tracer returns the coordinated tracer.
	//
	// Returns:
	//   - Tracer: the tracer
	Tracer() Tracer
}

var _ Coordinator = &coordinatorImpl{}

// NewCoordinator wraps t. Call Run on a dedicated goroutine to start processing requests.
//
// Parameters:
//   - t: the tracer to drive
//
// Returns:
//   - Coordinator: the new coordinator
func NewCoordinator(t Tracer) Coordinator {
	c := &coordinatorImpl{
		mu:     &sync.Mutex{},
		tracer: t,
		wake:   make(chan struct{}, 1),
		errs:   make(chan error, 16),
	}
	c.idleCond = sync.NewCond(c.mu)
	return c
}

func (c *coordinatorImpl) Submit(req Request) {
	c.mu.Lock()
	c.pending = append(c.pending, req)
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *coordinatorImpl) Recompute() {
	c.Submit(Request{Kind: RequestRecompute})
}

func (c *coordinatorImpl) Resize(width, height uint32) {
	c.Submit(Request{Kind: RequestResize, Width: width, Height: height})
}

func (c *coordinatorImpl) Move(direction camera.MoveDirection) {
	c.Submit(Request{Kind: RequestMove, Direction: direction})
}

func (c *coordinatorImpl) SetScene(s scene.Scene) {
	c.Submit(Request{Kind: RequestSetScene, Scene: s})
}

func (c *coordinatorImpl) Errors() <-chan error {
	return c.errs
}

func (c *coordinatorImpl) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy || len(c.pending) > 0
}

func (c *coordinatorImpl) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.idleCond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.busy || len(c.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.idleCond.Wait()
	}
	return nil
}

func (c *coordinatorImpl) Tracer() Tracer {
	return c.tracer
}

func (c *coordinatorImpl) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("coordinator is already running")
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.busy = false
		c.pending = nil
		c.idleCond.Broadcast()
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}

		for {
			runCtx, cancel := context.WithCancel(ctx)
			b, ok := c.take(cancel)
			if !ok {
				cancel()
				break
			}
			err := c.process(runCtx, b)
			cancel()
			c.finish(err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// take removes every pending request and coalesces them. It installs cancel as the
// cancellation of the work about to start, so a later Submit interrupts it.
func (c *coordinatorImpl) take(cancel context.CancelFunc) (batch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		c.busy = false
		c.cancel = nil
		c.idleCond.Broadcast()
		return batch{}, false
	}

	b := coalesce(c.pending)
	c.pending = nil
	c.busy = true
	c.cancel = cancel
	return b, true
}

// coalesce merges requests in arrival order: the latest scene and resolution win and
// moves are kept in order.
func coalesce(reqs []Request) batch {
	var b batch
	for _, r := range reqs {
		switch r.Kind {
		case RequestRecompute:
			b.recompute = true
		case RequestResize:
			b.resize = true
			b.width, b.height = r.Width, r.Height
		case RequestMove:
			b.moves = append(b.moves, r.Direction)
		case RequestSetScene:
			if r.Scene != nil {
				b.scene = r.Scene
			}
		}
	}
	return b
}

// process applies a batch to the tracer and re-traces every sample. A batch holding only
// a resize to the current resolution does nothing. The scene, the resize and the moves are
// applied independently, so one rejected request does not drop the others queued with it.
func (c *coordinatorImpl) process(ctx context.Context, b batch) error {
	var errs []error
	invalidated := b.recompute || len(b.moves) > 0
	if b.scene != nil {
		if err := c.tracer.SetScene(b.scene); err != nil {
			errs = append(errs, fmt.Errorf("scene update rejected: %w", err))
		} else {
			invalidated = true
		}
	}
	if b.resize {
		changed, err := c.tracer.Resize(b.width, b.height)
		if err != nil {
			errs = append(errs, fmt.Errorf("resize to %dx%d failed: %w", b.width, b.height, err))
		} else if changed {
			log.Printf("[Tracer] resized to %dx%d", b.width, b.height)
			invalidated = true
		}
	}
	for _, m := range b.moves {
		c.tracer.Move(m)
	}
	if invalidated {
		// A cancelled pass is followed by the next batch and is not a failure.
		if err := c.tracer.Perform(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *coordinatorImpl) finish(err error) {
	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()

	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("[Tracer] recompute failed: %v", err)
	select {
	case c.errs <- err:
	default:
	}
}
