// Package d3d implements the D3D device/context/resource object model
// and a software rasterizer implementing the documented seven-step
// triangle-fill algorithm. An optional GPU backend (internal/gpudriver)
// can take over the same resource graph; when absent, everything in
// this package runs the software path.
package d3d

import (
	"sync"
	"sync/atomic"
)

// Device owns every resource created through it; resources hold a
// back-reference and participate in the device's refcount graph, but
// bindings between resources and views are weak (a view does not keep
// its resource alive).
type Device struct {
	refs int32

	mu        sync.Mutex
	resources map[*Resource]struct{}
}

// NewDevice creates a device with a software (CPU) rasterizer; a GPU
// backend, if loaded, is attached separately by the caller.
func NewDevice() *Device {
	return &Device{refs: 1, resources: make(map[*Resource]struct{})}
}

func (d *Device) AddRef() int32  { return atomic.AddInt32(&d.refs, 1) }
func (d *Device) Release() int32 { return atomic.AddInt32(&d.refs, -1) }

func (d *Device) track(r *Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources[r] = struct{}{}
}

// ImmediateContext issues draw calls directly rather than recording
// them into a CommandList.
type ImmediateContext struct {
	Device *Device

	pipeline    *PipelineState
	inputLayout *InputLayout
	vertexBuf   *Resource
	indexBuf    *Resource
	rtv         *View
	dsv         *View
	viewport    Viewport
	scissor     *Rect
}

// NewImmediateContext builds a context bound to dev.
func NewImmediateContext(dev *Device) *ImmediateContext {
	return &ImmediateContext{Device: dev}
}

// Viewport mirrors D3D12_VIEWPORT's pixel-space fields citc's rasterizer
// consumes.
type Viewport struct {
	X, Y, Width, Height float64
}

// Rect is an integer scissor/clip rectangle.
type Rect struct {
	Left, Top, Right, Bottom int32
}

func (c *ImmediateContext) SetPipelineState(p *PipelineState) { c.pipeline = p }
func (c *ImmediateContext) SetInputLayout(l *InputLayout)      { c.inputLayout = l }
func (c *ImmediateContext) SetVertexBuffer(r *Resource)        { c.vertexBuf = r }
func (c *ImmediateContext) SetIndexBuffer(r *Resource)         { c.indexBuf = r }
func (c *ImmediateContext) SetRenderTarget(rtv, dsv *View)     { c.rtv, c.dsv = rtv, dsv }
func (c *ImmediateContext) SetViewport(v Viewport)             { c.viewport = v }
func (c *ImmediateContext) SetScissor(r *Rect)                 { c.scissor = r }

// ClearRenderTargetView writes a uniform colour to the entire target.
func (c *ImmediateContext) ClearRenderTargetView(v *View, color [4]float32) {
	clearColorTarget(v, color)
}

// ClearDepthStencilView writes a uniform depth value to the entire
// target.
func (c *ImmediateContext) ClearDepthStencilView(v *View, depth float32) {
	clearDepthTarget(v, depth)
}

// DrawIndexed rasterizes indexCount indices starting at startIndex,
// using the currently bound pipeline, input layout, buffers and
// targets, captured by value at the moment of the call (as spec'd:
// "a draw call captures ... by value").
func (c *ImmediateContext) DrawIndexed(indexCount, startIndex int) {
	call := drawCall{
		pipeline:    c.pipeline,
		inputLayout: c.inputLayout,
		vertexBuf:   c.vertexBuf,
		indexBuf:    c.indexBuf,
		rtv:         c.rtv,
		dsv:         c.dsv,
		viewport:    c.viewport,
		scissor:     c.scissor,
	}
	rasterizeIndexed(call, indexCount, startIndex)
}
