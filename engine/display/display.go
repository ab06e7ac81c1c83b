package display

import (
	_ "embed"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-trace/common"
	"github.com/Carmen-Shannon/oxy-trace/engine/tracer"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/blit.wgsl
var blitSource string

// PresentMode controls how presented frames are paced against the display refresh.
type PresentMode int

const (
	// PresentModeVSync waits for vertical blank (FIFO).
	PresentModeVSync PresentMode = iota
	// PresentModeUncapped presents immediately and may tear.
	PresentModeUncapped
)

// Display copies published frames onto a window surface with a full-screen textured triangle.
// A frame is only re-uploaded when its version or size changes; otherwise the previous texture is redrawn.
type Display interface {
	// Present draws the frame onto the surface. A nil frame redraws the last uploaded frame,
	// or just clears the surface when nothing has been uploaded yet.
	//
	// Parameters:
	//   - frame: the published frame to show, may be nil
	//
	// Returns:
	//   - error: ErrDevice wrapped if the surface or GPU calls fail
	Present(frame *tracer.Frame) error

	// Resize reconfigures the surface for the new framebuffer size. A zero size (minimized window)
	// suspends presentation until the next non-zero resize.
	//
	// Parameters:
	//   - width: framebuffer width in pixels
	//   - height: framebuffer height in pixels
	Resize(width, height int)

	// PresentedVersion returns the version of the frame currently held in the blit texture.
	//
	// Returns:
	//   - uint64: the frame version, 0 before the first upload
	PresentedVersion() uint64

	// Release frees the GPU resources owned by the display. Present fails afterwards.
	Release()
}

type displayImpl struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   PresentMode
	width, height int

	forceFallbackAdapter bool
	toneMap              tracer.ToneMapper
	samplerData          common.SamplerStagingData
	clearColor           wgpu.Color

	pipeline        *wgpu.RenderPipeline
	bindGroupLayout *wgpu.BindGroupLayout
	sampler         *wgpu.Sampler

	texture     *wgpu.Texture
	textureView *wgpu.TextureView
	bindGroup   *wgpu.BindGroup
	texWidth    uint32
	texHeight   uint32
	version     uint64

	released bool
}

var _ Display = &displayImpl{}

// NewDisplay creates a display bound to the surface described by surfaceDescriptor.
// It must be called on the thread that owns the window.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor from the window
//   - width, height: the initial framebuffer size in pixels
//   - options: functional options to configure the display
//
// Returns:
//   - Display: the configured display
//   - error: ErrConfiguration for a nil descriptor, ErrDevice if adapter, device or pipeline creation fails
func NewDisplay(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, options ...DisplayBuilderOption) (Display, error) {
	if surfaceDescriptor == nil {
		return nil, fmt.Errorf("display needs a surface descriptor: %w", common.ErrConfiguration)
	}
	runtime.LockOSThread()

	d := &displayImpl{
		mu:          &sync.Mutex{},
		presentMode: PresentModeVSync,
		toneMap:     tracer.ToneMapGamma,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("failed to request display adapter: %v: %w", err, common.ErrDevice)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Display Device",
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("failed to request display device: %v: %w", err, common.ErrDevice)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	d.surfaceFormat = d.surface.GetCapabilities(d.adapter).Formats[0]

	d.configureSurface(width, height)
	if err := d.initPipeline(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.initSampler(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *displayImpl) configureSurface(width, height int) {
	d.width = width
	d.height = height
	if width <= 0 || height <= 0 {
		return
	}

	capabilities := d.surface.GetCapabilities(d.adapter)
	mode := wgpu.PresentModeFifo
	if d.presentMode == PresentModeUncapped {
		mode = wgpu.PresentModeImmediate
	}
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: mode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (d *displayImpl) initPipeline() error {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Blit Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: blitSource,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to compile blit shader: %v: %w", err, common.ErrDevice)
	}
	defer module.Release()

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Blit Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create blit bind group layout: %v: %w", err, common.ErrDevice)
	}
	d.bindGroupLayout = layout

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Blit Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("failed to create blit pipeline layout: %v: %w", err, common.ErrDevice)
	}
	defer pipelineLayout.Release()

	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Blit Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    d.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create blit pipeline: %v: %w", err, common.ErrDevice)
	}
	d.pipeline = p
	return nil
}

func (d *displayImpl) initSampler() error {
	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Blit Sampler",
		AddressModeU:  common.Coalesce(d.samplerData.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(d.samplerData.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(d.samplerData.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(d.samplerData.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(d.samplerData.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0.0,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create blit sampler: %v: %w", err, common.ErrDevice)
	}
	d.sampler = samp
	return nil
}

func (d *displayImpl) Present(frame *tracer.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return fmt.Errorf("display has been released: %w", common.ErrDevice)
	}
	if d.width <= 0 || d.height <= 0 {
		return nil
	}

	if frame != nil && d.needsUpload(frame) {
		if err := d.upload(frame); err != nil {
			return err
		}
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("failed to acquire surface texture: %v: %w", err, common.ErrDevice)
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create surface view: %v: %w", err, common.ErrDevice)
	}
	defer view.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create blit encoder: %v: %w", err, common.ErrDevice)
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: d.clearColor,
			},
		},
	})
	if d.bindGroup != nil {
		pass.SetPipeline(d.pipeline)
		pass.SetBindGroup(0, d.bindGroup, nil)
		pass.Draw(3, 1, 0, 0)
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish blit encoder: %v: %w", err, common.ErrDevice)
	}
	defer commandBuffer.Release()

	d.queue.Submit(commandBuffer)
	d.surface.Present()
	return nil
}

func (d *displayImpl) needsUpload(frame *tracer.Frame) bool {
	return d.bindGroup == nil ||
		frame.Version() != d.version ||
		uint32(frame.Width()) != d.texWidth ||
		uint32(frame.Height()) != d.texHeight
}

func (d *displayImpl) upload(frame *tracer.Frame) error {
	staging := stagePixels(frame.WithToneMap(d.toneMap).RGBA())
	if staging.Width == 0 || staging.Height == 0 {
		return nil
	}

	if d.texture == nil || staging.Width != d.texWidth || staging.Height != d.texHeight {
		if err := d.initTexture(staging.Width, staging.Height); err != nil {
			return err
		}
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  d.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		staging.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  staging.Width * 4,
			RowsPerImage: staging.Height,
		},
		&wgpu.Extent3D{
			Width:              staging.Width,
			Height:             staging.Height,
			DepthOrArrayLayers: 1,
		},
	)
	d.version = frame.Version()
	return nil
}

func (d *displayImpl) initTexture(width, height uint32) error {
	d.releaseTexture()

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "Frame Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        blitTextureFormat(d.surfaceFormat),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("failed to create frame texture %dx%d: %v: %w", width, height, err, common.ErrDevice)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("failed to create frame texture view: %v: %w", err, common.ErrDevice)
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Blit Bind Group",
		Layout: d.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: d.sampler},
		},
	})
	if err != nil {
		view.Release()
		tex.Release()
		return fmt.Errorf("failed to create blit bind group: %v: %w", err, common.ErrDevice)
	}

	d.texture = tex
	d.textureView = view
	d.bindGroup = bg
	d.texWidth = width
	d.texHeight = height
	return nil
}

func (d *displayImpl) releaseTexture() {
	if d.bindGroup != nil {
		d.bindGroup.Release()
		d.bindGroup = nil
	}
	if d.textureView != nil {
		d.textureView.Release()
		d.textureView = nil
	}
	if d.texture != nil {
		d.texture.Release()
		d.texture = nil
	}
	d.texWidth, d.texHeight = 0, 0
}

func (d *displayImpl) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released || (width == d.width && height == d.height) {
		return
	}
	d.configureSurface(width, height)
}

func (d *displayImpl) PresentedVersion() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

func (d *displayImpl) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return
	}
	d.released = true

	d.releaseTexture()
	if d.sampler != nil {
		d.sampler.Release()
	}
	if d.pipeline != nil {
		d.pipeline.Release()
	}
	if d.bindGroupLayout != nil {
		d.bindGroupLayout.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}

// blitTextureFormat picks the frame texture format for a surface format. Frame pixels are already
// gamma encoded, so an sRGB surface gets an sRGB texture (decode then re-encode) and any other
// surface gets a plain unorm texture that passes the bytes through.
func blitTextureFormat(surface wgpu.TextureFormat) wgpu.TextureFormat {
	switch surface {
	case wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

// stagePixels wraps tone-mapped RGBA pixels for a texture upload. Padded rows are compacted
// so the staging data is always tightly packed.
func stagePixels(img *image.RGBA) common.TextureStagingData {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := img.Pix[:w*h*4]
	if img.Stride != w*4 {
		pixels = make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(pixels[y*w*4:(y+1)*w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
		}
	}
	return common.TextureStagingData{
		Pixels: pixels,
		Width:  uint32(w),
		Height: uint32(h),
	}
}
