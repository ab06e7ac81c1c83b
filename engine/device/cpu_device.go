package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
)

// cpuDevice runs the kernels on the host. Each dispatch is split into chunks of rays that are
// submitted to a dynamic worker pool; a WaitGroup acts as the barrier at the end of the dispatch.
type cpuDevice struct {
	mu *sync.Mutex

	pool      worker.DynamicWorkerPool
	workers   int
	chunkSize int

	maxBufferSize uint64

	spheres   []scene.GPUSphere
	materials []material.GPUMaterial

	released bool
}

type cpuRayBuffer struct {
	label    string
	count    int
	rays     []common.Ray
	released bool
}

type cpuImageBuffer struct {
	label         string
	width, height uint32
	texels        []float32
	released      bool
}

var _ Device = &cpuDevice{}
var _ RayBuffer = &cpuRayBuffer{}
var _ ImageBuffer = &cpuImageBuffer{}

func newCPUDevice(cfg *deviceConfig) *cpuDevice {
	return &cpuDevice{
		mu:            &sync.Mutex{},
		pool:          worker.NewDynamicWorkerPool(cfg.workers, 256, 1*time.Second),
		workers:       cfg.workers,
		chunkSize:     cfg.chunkSize,
		maxBufferSize: cfg.maxBufferSize,
	}
}

func (d *cpuDevice) BackendType() BackendType {
	return BackendTypeCPU
}

func (d *cpuDevice) MaxBufferSize() uint64 {
	return d.maxBufferSize
}

func (d *cpuDevice) NewRayBuffer(label string, count int) (RayBuffer, error) {
	if count <= 0 {
		return nil, fmt.Errorf("ray buffer %q needs a positive size, got %d: %w", label, count, common.ErrConfiguration)
	}
	if err := checkSize(label, uint64(count)*common.RaySize, d.maxBufferSize); err != nil {
		return nil, err
	}
	return &cpuRayBuffer{label: label, count: count, rays: make([]common.Ray, count)}, nil
}

func (d *cpuDevice) NewImageBuffer(label string, width, height uint32) (ImageBuffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image %q has invalid size %dx%d: %w", label, width, height, common.ErrConfiguration)
	}
	texels := uint64(width) * uint64(height)
	if err := checkSize(label, texels*16, d.maxBufferSize); err != nil {
		return nil, err
	}
	return &cpuImageBuffer{label: label, width: width, height: height, texels: make([]float32, texels*4)}, nil
}

func (d *cpuDevice) UploadScene(enc scene.EncodedScene) error {
	spheres := make([]scene.GPUSphere, len(enc.Spheres))
	copy(spheres, enc.Spheres)
	materials := make([]material.GPUMaterial, len(enc.Materials))
	copy(materials, enc.Materials)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.spheres = spheres
	d.materials = materials
	return nil
}

func (d *cpuDevice) ClearImage(img ImageBuffer) error {
	ci, err := d.image(img)
	if err != nil {
		return err
	}
	clear(ci.texels)
	return nil
}

func (d *cpuDevice) Generate(ctx context.Context, cam camera.GPUCameraUniform, dst RayBuffer, params DispatchParams) error {
	out, err := d.rays(dst)
	if err != nil {
		return err
	}
	if n := int(cam.Width) * int(cam.Height); n != len(out.rays) {
		return fmt.Errorf("camera is %dx%d but %q holds %d rays: %w", cam.Width, cam.Height, dst.Label(), len(out.rays), common.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gp := newGPUDispatchParams(params, len(out.rays))
	return d.parallel(len(out.rays), func(start, end int) {
		for i := start; i < end; i++ {
			out.rays[i] = GenerateRay(&cam, &gp, uint32(i))
		}
	})
}

func (d *cpuDevice) Bounce(ctx context.Context, src, dst RayBuffer, img ImageBuffer, params DispatchParams) error {
	if err := checkPair(src, dst); err != nil {
		return err
	}
	in, err := d.rays(src)
	if err != nil {
		return err
	}
	out, err := d.rays(dst)
	if err != nil {
		return err
	}
	ci, err := d.image(img)
	if err != nil {
		return err
	}
	if uint64(len(in.rays)) != uint64(ci.width)*uint64(ci.height) {
		return fmt.Errorf("image %dx%d does not match %d rays: %w", ci.width, ci.height, len(in.rays), common.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	spheres, materials := d.spheres, d.materials
	d.mu.Unlock()

	gp := newGPUDispatchParams(params, len(in.rays))
	return d.parallel(len(in.rays), func(start, end int) {
		for i := start; i < end; i++ {
			ray, radiance := BounceRay(in.rays[i], spheres, materials, &gp, uint32(i))
			out.rays[i] = ray
			if radiance != [3]float32{} {
				t := ci.texels[ray.Pixel*4 : ray.Pixel*4+4]
				t[0] += radiance[0]
				t[1] += radiance[1]
				t[2] += radiance[2]
			}
		}
	})
}

func (d *cpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	d.pool.Stop()
}

// parallel runs fn over [0, n) in chunks on the worker pool and blocks until every chunk is done.
// A panic inside a chunk is recovered and reported as common.ErrDevice.
func (d *cpuDevice) parallel(n int, fn func(start, end int)) error {
	d.mu.Lock()
	released := d.released
	d.mu.Unlock()
	if released {
		return fmt.Errorf("dispatch on a released device: %w", common.ErrDevice)
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	for id, start := 0, 0; start < n; id, start = id+1, start+d.chunkSize {
		end := min(start+d.chunkSize, n)
		wg.Add(1)
		d.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						errMu.Lock()
						if firstErr == nil {
							firstErr = fmt.Errorf("kernel panic in rays [%d, %d): %v: %w", start, end, r, common.ErrDevice)
						}
						errMu.Unlock()
					}
				}()
				fn(start, end)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return firstErr
}

func (d *cpuDevice) rays(b RayBuffer) (*cpuRayBuffer, error) {
	rb, ok := b.(*cpuRayBuffer)
	if !ok || rb == nil {
		return nil, fmt.Errorf("ray buffer %T does not belong to the cpu device: %w", b, common.ErrConfiguration)
	}
	if rb.released {
		return nil, fmt.Errorf("ray buffer %q was released: %w", rb.label, common.ErrDevice)
	}
	return rb, nil
}

func (d *cpuDevice) image(b ImageBuffer) (*cpuImageBuffer, error) {
	ib, ok := b.(*cpuImageBuffer)
	if !ok || ib == nil {
		return nil, fmt.Errorf("image %T does not belong to the cpu device: %w", b, common.ErrConfiguration)
	}
	if ib.released {
		return nil, fmt.Errorf("image %q was released: %w", ib.label, common.ErrDevice)
	}
	return ib, nil
}

func (b *cpuRayBuffer) Label() string {
	return b.label
}

func (b *cpuRayBuffer) Len() int {
	return b.count
}

func (b *cpuRayBuffer) Read() ([]common.Ray, error) {
	if b.released {
		return nil, fmt.Errorf("ray buffer %q was released: %w", b.label, common.ErrDevice)
	}
	out := make([]common.Ray, len(b.rays))
	copy(out, b.rays)
	return out, nil
}

func (b *cpuRayBuffer) Release() {
	b.released = true
	b.rays = nil
}

func (b *cpuImageBuffer) Width() uint32 {
	return b.width
}

func (b *cpuImageBuffer) Height() uint32 {
	return b.height
}

func (b *cpuImageBuffer) Read(dst []float32) error {
	if b.released {
		return fmt.Errorf("image %q was released: %w", b.label, common.ErrDevice)
	}
	if len(dst) != len(b.texels) {
		return fmt.Errorf("destination holds %d floats, image has %d: %w", len(dst), len(b.texels), common.ErrConfiguration)
	}
	copy(dst, b.texels)
	return nil
}

func (b *cpuImageBuffer) Release() {
	b.released = true
	b.texels = nil
}
