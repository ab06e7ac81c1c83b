package tracer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/device"
)

type rayStateImpl struct {
	mu *sync.Mutex

	buffers [2]device.RayBuffer
	parity  int
}

// RayState owns the two ping-pong ray buffers of a tracer. At any time one buffer is the
// source of the next dispatch and the other its destination; Swap exchanges the roles.
type RayState interface {
	// Source returns the buffer the next bounce dispatch reads from.
	//
	// Returns:
	//   - device.RayBuffer: the current source buffer
	Source() device.RayBuffer

	// Destination returns the buffer the next dispatch writes to.
	//
	// Returns:
	//   - device.RayBuffer: the current destination buffer
	Destination() device.RayBuffer

	// Swap exchanges source and destination. Called once after every completed dispatch.
	Swap()

	// Reset restores the initial parity so buffer 0 is the source again.
	Reset()

	// Len returns the number of rays each buffer holds.
	//
	// Returns:
	//   - int: the ray count, width*height of the image being traced
	Len() int

	// Parity returns which buffer is currently the source.
	//
	// Returns:
	//   - int: 0 or 1
	Parity() int

	// Release frees both buffers.
	Release()
}

var _ RayState = &rayStateImpl{}

// NewRayState allocates two distinct ray buffers of count rays each.
//
// Parameters:
//   - dev: the device that owns the buffers
//   - count: rays per buffer, must be positive
//
// Returns:
//   - RayState: the new ray state with parity 0
//   - error: common.ErrResourceExhausted if either buffer cannot be allocated
func NewRayState(dev device.Device, count int) (RayState, error) {
	ping, err := dev.NewRayBuffer("Rays Ping", count)
	if err != nil {
		return nil, err
	}
	pong, err := dev.NewRayBuffer("Rays Pong", count)
	if err != nil {
		ping.Release()
		return nil, err
	}
	return newRayState(ping, pong)
}

func newRayState(ping, pong device.RayBuffer) (*rayStateImpl, error) {
	if ping == nil || pong == nil || ping == pong {
		return nil, fmt.Errorf("ray state needs two distinct buffers: %w", common.ErrConfiguration)
	}
	if ping.Len() != pong.Len() {
		return nil, fmt.Errorf("ray buffers differ in size (%d vs %d): %w", ping.Len(), pong.Len(), common.ErrConfiguration)
	}
	return &rayStateImpl{
		mu:      &sync.Mutex{},
		buffers: [2]device.RayBuffer{ping, pong},
	}, nil
}

func (r *rayStateImpl) Source() device.RayBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers[r.parity]
}

func (r *rayStateImpl) Destination() device.RayBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers[1-r.parity]
}

func (r *rayStateImpl) Swap() {
	r.mu.Lock()
	r.parity = 1 - r.parity
	r.mu.Unlock()
}

func (r *rayStateImpl) Reset() {
	r.mu.Lock()
	r.parity = 0
	r.mu.Unlock()
}

func (r *rayStateImpl) Len() int {
	return r.buffers[0].Len()
}

func (r *rayStateImpl) Parity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parity
}

func (r *rayStateImpl) Release() {
	r.buffers[0].Release()
	r.buffers[1].Release()
}
