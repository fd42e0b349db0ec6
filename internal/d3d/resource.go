package d3d

import "sync/atomic"

// ResourceKind distinguishes a buffer from a 2-D texture.
type ResourceKind int

const (
	ResourceBuffer ResourceKind = iota
	ResourceTexture2D
)

// Format is a small subset of DXGI_FORMAT citc's raster path
// understands.
type Format int

const (
	FormatUnknown Format = iota
	FormatR8G8B8A8Unorm
	FormatR32Float // depth
	FormatR32G32B32Float
	FormatR32G32Float
)

func (f Format) bytesPerPixel() int {
	switch f {
	case FormatR8G8B8A8Unorm:
		return 4
	case FormatR32Float:
		return 4
	case FormatR32G32B32Float:
		return 12
	case FormatR32G32Float:
		return 8
	default:
		return 0
	}
}

// Resource is a buffer or Texture2D. A resource may be referenced by
// multiple views.
type Resource struct {
	device *Device
	refs   int32

	Kind   ResourceKind
	Format Format
	Width  int // element count for a buffer, pixel width for a texture
	Height int // 1 for a buffer
	Data   []byte
}

// NewBuffer allocates a buffer resource of size bytes.
func NewBuffer(dev *Device, size int) *Resource {
	r := &Resource{device: dev, refs: 1, Kind: ResourceBuffer, Width: size, Height: 1, Data: make([]byte, size)}
	dev.track(r)
	return r
}

// NewTexture2D allocates a width x height texture of the given format.
func NewTexture2D(dev *Device, width, height int, format Format) *Resource {
	r := &Resource{
		device: dev, refs: 1,
		Kind: ResourceTexture2D, Format: format, Width: width, Height: height,
		Data: make([]byte, width*height*format.bytesPerPixel()),
	}
	dev.track(r)
	return r
}

func (r *Resource) AddRef() int32  { return atomic.AddInt32(&r.refs, 1) }
func (r *Resource) Release() int32 { return atomic.AddInt32(&r.refs, -1) }

// ViewKind distinguishes the four view types citc supports.
type ViewKind int

const (
	ViewRTV ViewKind = iota
	ViewSRV
	ViewDSV
	ViewCBV
)

// View binds to a resource weakly: it does not AddRef the resource, and
// releasing the resource does not invalidate already-created views. A
// view records the resource's format and size at creation; the clear
// and raster paths read pixels and dimensions from View.Resource.
type View struct {
	Kind     ViewKind
	Resource *Resource
	Format   Format
	Width    int
	Height   int
}

// NewView creates a view of kind over r.
func NewView(kind ViewKind, r *Resource) *View {
	format := r.Format
	if kind == ViewDSV && format == FormatUnknown {
		format = FormatR32Float
	}
	return &View{Kind: kind, Resource: r, Format: format, Width: r.Width, Height: r.Height}
}

func clearColorTarget(v *View, color [4]float32) {
	if v == nil || v.Resource == nil {
		return
	}
	r, g, b, a := packRGBA8(color)
	px := []byte{r, g, b, a}
	data := v.Resource.Data
	for i := 0; i+4 <= len(data); i += 4 {
		copy(data[i:i+4], px)
	}
}

func clearDepthTarget(v *View, depth float32) {
	if v == nil || v.Resource == nil {
		return
	}
	bits := float32ToBits(depth)
	data := v.Resource.Data
	for i := 0; i+4 <= len(data); i += 4 {
		putUint32LE(data[i:i+4], bits)
	}
}

// InputElement names a semantic, its format, its byte offset within the
// vertex, and an input slot. Unknown semantics are ignored by the
// fixed-function interpretation the rasterizer applies.
type InputElement struct {
	Semantic string
	Format   Format
	Offset   int
	Slot     int
}

// InputLayout is an ordered set of InputElements describing one vertex
// buffer's stride and field layout.
type InputLayout struct {
	Elements []InputElement
	Stride   int
}

// PipelineState is immutable once created: blend/depth/raster state
// plus the vertex-attribute interpretation the rasterizer uses.
type PipelineState struct {
	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthFunc        CompareFunc
	CullBackFace     bool
}

// CompareFunc mirrors D3D12_COMPARISON_FUNC's relevant subset.
type CompareFunc int

const (
	CompareLess CompareFunc = iota
	CompareLessEqual
	CompareAlways
)

func (f CompareFunc) passes(newDepth, existing float32) bool {
	switch f {
	case CompareLess:
		return newDepth < existing
	case CompareLessEqual:
		return newDepth <= existing
	default:
		return true
	}
}
