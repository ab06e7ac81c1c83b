package tracer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-trace/common"
)

func (t *tracerImpl) Resize(width, height uint32) (bool, error) {
	if width == 0 || height == 0 {
		return false, fmt.Errorf("invalid resolution %dx%d: %w", width, height, common.ErrConfiguration)
	}

	t.runMu.Lock()
	defer t.runMu.Unlock()

	if w, h := t.Dimensions(); w == width && h == height {
		return false, nil
	}

	// Allocate first so a failure leaves the current buffers untouched.
	rays, img, err := t.allocate(width, height)
	if err != nil {
		return false, fmt.Errorf("failed to allocate buffers for %dx%d: %w", width, height, err)
	}

	t.mu.Lock()
	if _, err := t.cam.OnResize(width, height); err != nil {
		t.mu.Unlock()
		rays.Release()
		img.Release()
		return false, err
	}
	oldRays := t.rays
	t.rays = rays
	oldImage := t.accumulator.ReplaceImage(img)
	t.mu.Unlock()

	oldRays.Release()
	oldImage.Release()
	t.needsClear = true
	return true, nil
}
