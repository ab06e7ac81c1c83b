package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/camera"
	"github.com/Carmen-Shannon/oxy-trace/engine/material"
	"github.com/Carmen-Shannon/oxy-trace/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
)

// maxWorkgroupsPerDimension is the WebGPU default for maxComputeWorkgroupsPerDimension.
const maxWorkgroupsPerDimension = 65535

// wgpuDevice runs the kernels as WGSL compute shaders. Every dispatch is its own submission
// followed by a blocking poll, so a dispatch never overlaps the next one.
type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	maxBufferSize uint64

	module           *wgpu.ShaderModule
	generatePipeline *wgpu.ComputePipeline
	bouncePipeline   *wgpu.ComputePipeline

	cameraBuffer    *wgpu.Buffer
	paramsBuffer    *wgpu.Buffer
	sphereBuffer    *wgpu.Buffer
	materialBuffer  *wgpu.Buffer
	bindGroupsCache map[bindGroupKey]*wgpu.BindGroup

	released bool
}

// bindGroupKey identifies a cached bind group. Generation only uses dst.
type bindGroupKey struct {
	generate bool
	src, dst *wgpuRayBuffer
	img      *wgpuImageBuffer
}

type wgpuRayBuffer struct {
	owner  *wgpuDevice
	label  string
	count  int
	buffer *wgpu.Buffer
}

type wgpuImageBuffer struct {
	owner         *wgpuDevice
	label         string
	width, height uint32
	buffer        *wgpu.Buffer
}

var _ Device = &wgpuDevice{}
var _ RayBuffer = &wgpuRayBuffer{}
var _ ImageBuffer = &wgpuImageBuffer{}

// ShaderSource returns the complete WGSL module: the shared struct definitions followed by the kernels.
//
// Returns:
//   - string: the WGSL source
func ShaderSource() string {
	return strings.Join([]string{
		camera.GPUCameraUniformSource,
		material.GPUMaterialSource,
		scene.GPUSphereSource,
		raytraceSource,
	}, "\n")
}

func newWGPUDevice(cfg *deviceConfig) (*wgpuDevice, error) {
	d := &wgpuDevice{
		mu:              &sync.Mutex{},
		instance:        wgpu.CreateInstance(nil),
		bindGroupsCache: make(map[bindGroupKey]*wgpu.BindGroup),
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		PowerPreference:      wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %v: %w", err, common.ErrDevice)
	}
	d.adapter = a

	limits := wgpu.DefaultLimits()
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Tracer Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		d.adapter.Release()
		d.instance.Release()
		return nil, fmt.Errorf("failed to request device: %v: %w", err, common.ErrDevice)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	d.maxBufferSize = min(cfg.maxBufferSize, limits.MaxStorageBufferBindingSize, limits.MaxBufferSize)

	if err := d.initPipelines(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.initUniforms(); err != nil {
		d.Release()
		return nil, err
	}
	// An empty scene keeps the bounce bind group valid before the first upload.
	empty, _ := emptyScene()
	if err := d.UploadScene(empty); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func emptyScene() (scene.EncodedScene, error) {
	s, err := scene.NewScene()
	if err != nil {
		return scene.EncodedScene{}, err
	}
	return s.Encode()
}

func (d *wgpuDevice) initPipelines() error {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "raytrace.wgsl",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: ShaderSource(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to compile raytrace shader: %v: %w", err, common.ErrDevice)
	}
	d.module = module

	// Layout is left nil so each pipeline derives its own bind group layout from the bindings
	// its entry point actually uses.
	d.generatePipeline, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Generate Compute Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "generate",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create generate pipeline: %v: %w", err, common.ErrDevice)
	}

	d.bouncePipeline, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Bounce Compute Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "bounce",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bounce pipeline: %v: %w", err, common.ErrDevice)
	}
	return nil
}

func (d *wgpuDevice) initUniforms() error {
	var cam camera.GPUCameraUniform
	var params GPUDispatchParams
	var err error

	d.cameraBuffer, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera Uniform",
		Size:  uint64(cam.Size()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create camera uniform: %v: %w", err, common.ErrDevice)
	}
	d.paramsBuffer, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Dispatch Params Uniform",
		Size:  uint64(params.Size()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create params uniform: %v: %w", err, common.ErrDevice)
	}
	return nil
}

func (d *wgpuDevice) BackendType() BackendType {
	return BackendTypeWGPU
}

func (d *wgpuDevice) MaxBufferSize() uint64 {
	return d.maxBufferSize
}

func (d *wgpuDevice) NewRayBuffer(label string, count int) (RayBuffer, error) {
	if count <= 0 {
		return nil, fmt.Errorf("ray buffer %q needs a positive size, got %d: %w", label, count, common.ErrConfiguration)
	}
	size := uint64(count) * common.RaySize
	if err := checkSize(label, size, d.maxBufferSize); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate ray buffer %q: %v: %w", label, err, common.ErrResourceExhausted)
	}
	return &wgpuRayBuffer{owner: d, label: label, count: count, buffer: buf}, nil
}

func (d *wgpuDevice) NewImageBuffer(label string, width, height uint32) (ImageBuffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image %q has invalid size %dx%d: %w", label, width, height, common.ErrConfiguration)
	}
	size := uint64(width) * uint64(height) * 16
	if err := checkSize(label, size, d.maxBufferSize); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate image %q: %v: %w", label, err, common.ErrResourceExhausted)
	}
	d.queue.WriteBuffer(buf, 0, make([]byte, size))
	return &wgpuImageBuffer{owner: d, label: label, width: width, height: height, buffer: buf}, nil
}

func (d *wgpuDevice) UploadScene(enc scene.EncodedScene) error {
	if enc.SphereBytes == nil || enc.MaterialBytes == nil {
		return fmt.Errorf("scene has not been encoded: %w", common.ErrEncoding)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	current := [2]*wgpu.Buffer{d.sphereBuffer, d.materialBuffer}
	labels := [2]string{"Scene Spheres", "Scene Materials"}
	sizes := [2]uint64{uint64(len(enc.SphereBytes)), uint64(len(enc.MaterialBytes))}

	// Both buffers are in hand before either old one is released, so a failed
	// allocation leaves the previous scene bound.
	next, err := allocateAll(len(current), func(i int) (*wgpu.Buffer, error) {
		return d.ensureBuffer(current[i], labels[i], sizes[i])
	}, func(i int, buf *wgpu.Buffer) {
		if buf != current[i] {
			buf.Release()
		}
	})
	if err != nil {
		return err
	}

	for i, buf := range next {
		if buf == current[i] {
			continue
		}
		if current[i] != nil {
			current[i].Release()
		}
		d.dropBindGroups(nil)
	}
	d.sphereBuffer, d.materialBuffer = next[0], next[1]

	d.queue.WriteBuffer(d.sphereBuffer, 0, enc.SphereBytes)
	d.queue.WriteBuffer(d.materialBuffer, 0, enc.MaterialBytes)
	return nil
}

// ensureBuffer returns buf if it is large enough, otherwise allocates a new storage buffer.
// The old buffer is left to the caller. Caller must hold the mutex.
func (d *wgpuDevice) ensureBuffer(buf *wgpu.Buffer, label string, size uint64) (*wgpu.Buffer, error) {
	if buf != nil && buf.GetSize() >= size {
		return buf, nil
	}

	created, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %s: %v: %w", label, err, common.ErrResourceExhausted)
	}
	return created, nil
}

// allocateAll calls alloc for 0..n-1. When one call fails, undo is called on the values
// already allocated, last first, and the error is returned.
func allocateAll[T any](n int, alloc func(i int) (T, error), undo func(i int, v T)) ([]T, error) {
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, err := alloc(i)
		if err != nil {
			for j := len(out) - 1; j >= 0; j-- {
				undo(j, out[j])
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *wgpuDevice) ClearImage(img ImageBuffer) error {
	wi, err := d.image(img)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	size := uint64(wi.width) * uint64(wi.height) * 16
	d.queue.WriteBuffer(wi.buffer, 0, make([]byte, size))
	d.device.Poll(true, nil)
	return nil
}

func (d *wgpuDevice) Generate(ctx context.Context, cam camera.GPUCameraUniform, dst RayBuffer, params DispatchParams) error {
	out, err := d.rays(dst)
	if err != nil {
		return err
	}
	if n := int(cam.Width) * int(cam.Height); n != out.count {
		return fmt.Errorf("camera is %dx%d but %q holds %d rays: %w", cam.Width, cam.Height, out.label, out.count, common.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.queue.WriteBuffer(d.cameraBuffer, 0, cam.Marshal())
	bg, err := d.bindGroup(bindGroupKey{generate: true, dst: out})
	if err != nil {
		return err
	}
	gp := newGPUDispatchParams(params, out.count)
	return d.dispatch(d.generatePipeline, bg, &gp)
}

func (d *wgpuDevice) Bounce(ctx context.Context, src, dst RayBuffer, img ImageBuffer, params DispatchParams) error {
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
	wi, err := d.image(img)
	if err != nil {
		return err
	}
	if uint64(in.count) != uint64(wi.width)*uint64(wi.height) {
		return fmt.Errorf("image %dx%d does not match %d rays: %w", wi.width, wi.height, in.count, common.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	bg, err := d.bindGroup(bindGroupKey{src: in, dst: out, img: wi})
	if err != nil {
		return err
	}
	gp := newGPUDispatchParams(params, in.count)
	return d.dispatch(d.bouncePipeline, bg, &gp)
}

// dispatch writes the params uniform, encodes a single compute pass and waits for it to finish.
// Caller must hold the mutex.
func (d *wgpuDevice) dispatch(p *wgpu.ComputePipeline, bg *wgpu.BindGroup, params *GPUDispatchParams) error {
	if d.released {
		return fmt.Errorf("dispatch on a released device: %w", common.ErrDevice)
	}
	d.queue.WriteBuffer(d.paramsBuffer, 0, params.Marshal())

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %v: %w", err, common.ErrDevice)
	}
	defer encoder.Release()

	x, y := workgroupGrid(params.RayCount)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish compute pass: %v: %w", err, common.ErrDevice)
	}
	defer commandBuffer.Release()

	d.queue.Submit(commandBuffer)
	d.device.Poll(true, nil)
	return nil
}

// workgroupGrid folds the workgroup count into two dimensions so that large images stay within
// the per-dimension dispatch limit. The kernels rebuild the linear index from num_workgroups.
func workgroupGrid(rays uint32) (x, y uint32) {
	groups := (rays + WorkgroupSize - 1) / WorkgroupSize
	if groups <= maxWorkgroupsPerDimension {
		return max(groups, 1), 1
	}
	x = maxWorkgroupsPerDimension
	y = (groups + x - 1) / x
	return x, y
}

// bindGroup returns the cached bind group for key, creating it on first use.
// Caller must hold the mutex.
func (d *wgpuDevice) bindGroup(key bindGroupKey) (*wgpu.BindGroup, error) {
	if bg, ok := d.bindGroupsCache[key]; ok {
		return bg, nil
	}

	var desc wgpu.BindGroupDescriptor
	if key.generate {
		desc = wgpu.BindGroupDescriptor{
			Label:  "Generate Bind Group " + key.dst.label,
			Layout: d.generatePipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: d.cameraBuffer, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: d.paramsBuffer, Size: wgpu.WholeSize},
				{Binding: 5, Buffer: key.dst.buffer, Size: wgpu.WholeSize},
			},
		}
	} else {
		desc = wgpu.BindGroupDescriptor{
			Label:  "Bounce Bind Group " + key.src.label + " -> " + key.dst.label,
			Layout: d.bouncePipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 1, Buffer: d.paramsBuffer, Size: wgpu.WholeSize},
				{Binding: 2, Buffer: d.sphereBuffer, Size: wgpu.WholeSize},
				{Binding: 3, Buffer: d.materialBuffer, Size: wgpu.WholeSize},
				{Binding: 4, Buffer: key.src.buffer, Size: wgpu.WholeSize},
				{Binding: 5, Buffer: key.dst.buffer, Size: wgpu.WholeSize},
				{Binding: 6, Buffer: key.img.buffer, Size: wgpu.WholeSize},
			},
		}
	}

	bg, err := d.device.CreateBindGroup(&desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %v: %w", desc.Label, err, common.ErrDevice)
	}
	d.bindGroupsCache[key] = bg
	return bg, nil
}

// dropBindGroups releases cached bind groups that reference buf, or every bind group when buf is nil.
// Caller must hold the mutex.
func (d *wgpuDevice) dropBindGroups(buf *wgpu.Buffer) {
	for key, bg := range d.bindGroupsCache {
		if buf == nil || key.references(buf) {
			bg.Release()
			delete(d.bindGroupsCache, key)
		}
	}
}

func (k bindGroupKey) references(buf *wgpu.Buffer) bool {
	return (k.src != nil && k.src.buffer == buf) ||
		(k.dst != nil && k.dst.buffer == buf) ||
		(k.img != nil && k.img.buffer == buf)
}

// readBuffer copies size bytes of src into a mappable staging buffer and returns them.
func (d *wgpuDevice) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback Staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %v: %w", err, common.ErrResourceExhausted)
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %v: %w", err, common.ErrDevice)
	}
	defer encoder.Release()
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish readback: %v: %w", err, common.ErrDevice)
	}
	defer commandBuffer.Release()
	d.queue.Submit(commandBuffer)

	mapped := false
	status := wgpu.BufferMapAsyncStatusSuccess
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		mapped = true
	})
	for !mapped {
		d.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("readback map failed with status %v: %w", status, common.ErrDevice)
	}

	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true

	d.dropBindGroups(nil)
	for _, buf := range []*wgpu.Buffer{d.cameraBuffer, d.paramsBuffer, d.sphereBuffer, d.materialBuffer} {
		if buf != nil {
			buf.Release()
		}
	}
	if d.generatePipeline != nil {
		d.generatePipeline.Release()
	}
	if d.bouncePipeline != nil {
		d.bouncePipeline.Release()
	}
	if d.module != nil {
		d.module.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	d.instance.Release()
}

func (d *wgpuDevice) rays(b RayBuffer) (*wgpuRayBuffer, error) {
	rb, ok := b.(*wgpuRayBuffer)
	if !ok || rb == nil || rb.owner != d {
		return nil, fmt.Errorf("ray buffer %T does not belong to this wgpu device: %w", b, common.ErrConfiguration)
	}
	if rb.buffer == nil {
		return nil, fmt.Errorf("ray buffer %q was released: %w", rb.label, common.ErrDevice)
	}
	return rb, nil
}

func (d *wgpuDevice) image(b ImageBuffer) (*wgpuImageBuffer, error) {
	ib, ok := b.(*wgpuImageBuffer)
	if !ok || ib == nil || ib.owner != d {
		return nil, fmt.Errorf("image %T does not belong to this wgpu device: %w", b, common.ErrConfiguration)
	}
	if ib.buffer == nil {
		return nil, fmt.Errorf("image %q was released: %w", ib.label, common.ErrDevice)
	}
	return ib, nil
}

func (b *wgpuRayBuffer) Label() string {
	return b.label
}

func (b *wgpuRayBuffer) Len() int {
	return b.count
}

func (b *wgpuRayBuffer) Read() ([]common.Ray, error) {
	if b.buffer == nil {
		return nil, fmt.Errorf("ray buffer %q was released: %w", b.label, common.ErrDevice)
	}
	raw, err := b.owner.readBuffer(b.buffer, uint64(b.count)*common.RaySize)
	if err != nil {
		return nil, err
	}
	rays := make([]common.Ray, b.count)
	for i := range rays {
		rays[i] = common.UnmarshalRay(raw[i*common.RaySize:])
	}
	return rays, nil
}

func (b *wgpuRayBuffer) Release() {
	if b.buffer == nil {
		return
	}
	b.owner.mu.Lock()
	b.owner.dropBindGroups(b.buffer)
	b.owner.mu.Unlock()
	b.buffer.Release()
	b.buffer = nil
}

func (b *wgpuImageBuffer) Width() uint32 {
	return b.width
}

func (b *wgpuImageBuffer) Height() uint32 {
	return b.height
}

func (b *wgpuImageBuffer) Read(dst []float32) error {
	if b.buffer == nil {
		return fmt.Errorf("image %q was released: %w", b.label, common.ErrDevice)
	}
	texels := uint64(b.width) * uint64(b.height)
	if uint64(len(dst)) != texels*4 {
		return fmt.Errorf("destination holds %d floats, image has %d: %w", len(dst), texels*4, common.ErrConfiguration)
	}
	raw, err := b.owner.readBuffer(b.buffer, texels*16)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = common.GetFloat32(raw[i*4:])
	}
	return nil
}

func (b *wgpuImageBuffer) Release() {
	if b.buffer == nil {
		return
	}
	b.owner.mu.Lock()
	b.owner.dropBindGroups(b.buffer)
	b.owner.mu.Unlock()
	b.buffer.Release()
	b.buffer = nil
}
