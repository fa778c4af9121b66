// Package ra is the render abstraction: a hardware-agnostic object model for
// textures, buffers and render passes that the video-output pipeline draws
// through without caring which GPU backend is active underneath.
package ra

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/imgfmt"
	"github.com/spaghettifunk/prism/engine/math"
)

// ComponentType classifies how a native texture format stores one component.
type ComponentType int

const (
	CTypeUnknown ComponentType = iota
	// CTypeUNorm is a normalized unsigned fixed-point format.
	CTypeUNorm
	// CTypeUInt is a raw unsigned integer format.
	CTypeUInt
	// CTypeFloat covers float16 and float32 formats.
	CTypeFloat
)

func (c ComponentType) String() string {
	switch c {
	case CTypeUNorm:
		return "unorm"
	case CTypeUInt:
		return "uint"
	case CTypeFloat:
		return "float"
	}
	return "unknown"
}

// Format is an immutable descriptor of a native texture format. The backend
// creates all Format values during initialization and owns them for the
// lifetime of the context.
type Format struct {
	Name          string
	ComponentType ComponentType
	NumComponents int
	// PixelSize is the total bytes transferred per pixel.
	PixelSize int
	// ComponentSize is the bits transferred per component.
	ComponentSize [4]int
	// ComponentDepth is the effective bits per component (can be lower
	// than ComponentSize, e.g. float16 uploaded as float32).
	ComponentDepth [4]int
	// LuminanceAlpha marks legacy GL_LUMINANCE_ALPHA style formats.
	LuminanceAlpha bool
	// LinearFilter marks formats that can be sampled with linear filtering.
	LinearFilter bool
	// Renderable marks formats usable as render targets.
	Renderable bool

	// SpecialImageFormat links this format 1:1 to a player pixel format
	// the backend supports outright (e.g. packed rgb565).
	SpecialImageFormat imgfmt.ImageFormat
	SpecialDesc        *ImgFmtDesc

	// Priv is the backend-native descriptor. Owned by the backend.
	Priv any
}

// ImgFmtDesc maps one player pixel format to native texture formats, one per
// plane, each with an RGBA component-source mapping.
type ImgFmtDesc struct {
	NumPlanes int
	Planes    [4]*Format
	// Components[p][i] names the image channel sourced by component i of
	// plane p's texture: 1..4 = r/g/b/a, 0 = unused.
	Components [4][4]uint8
	// ChromaW/ChromaH are the subsampling factors of the chroma planes.
	ChromaW, ChromaH int
	// ComponentBits is the effective bit depth of the image components.
	ComponentBits int
	// ComponentPad is the per-component padding in bits (negative =
	// LSB-aligned samples).
	ComponentPad int
}

// TexParams describes a texture at creation time. All fields are fixed for
// the texture's lifetime.
type TexParams struct {
	// Dimensions is 1, 2 or 3.
	Dimensions int
	W, H, D    int
	Format     *Format
	// RenderSrc allows sampling the texture in a shader.
	RenderSrc bool
	// RenderDst allows using the texture as a render target. Requires a
	// renderable Format.
	RenderDst bool
	// SrcLinear selects linear instead of nearest sampling.
	SrcLinear bool
	// SrcRepeat selects repeat instead of clamp-to-edge wrapping.
	SrcRepeat bool
	// NonNormalized requests non-normalized texture coordinates
	// (2D only).
	NonNormalized bool
	// ExternalOES marks external-sampler textures (hwdec interop).
	ExternalOES bool
	// InitialData, if set, is uploaded during creation and must match the
	// texture size with no padding. Cleared after creation.
	InitialData []byte
}

// Tex is a GPU-resident image. Created and destroyed exclusively through the
// backend; Priv is backend state.
type Tex struct {
	Params TexParams
	Priv   any
}

// StagingBuffer is a CPU-visible persistently mapped GPU buffer for
// zero-copy uploads. While a fence installed by an upload is unresolved the
// caller must not write to Data; poll before reuse.
type StagingBuffer struct {
	Size int
	// Data aliases the mapped GPU memory for the buffer's whole lifetime.
	Data []byte
	Priv any
}

// Buf is a GPU storage buffer, bindable as a read/write input of a pass.
type Buf struct {
	Size int
	Priv any
}

// InputType describes one declared input slot of a render pass.
type InputType int

const (
	InputInvalid InputType = iota
	InputInt
	InputFloat
	// InputTex is a sampled texture.
	InputTex
	// InputImgW is a write-only image for image load/store.
	InputImgW
	// InputBufRW is a read/write storage buffer.
	InputBufRW
)

// Input declares a named, typed input slot with a fixed binding. The slot
// ordering and types of a pass never change after creation.
type Input struct {
	Name string
	Type InputType
	// DimV is the vector dimension (1-4).
	DimV int
	// DimM is the matrix dimension (1 for scalars and vectors, 2 or 3
	// for mat2/mat3).
	DimM int
	// Binding is the texture unit, image unit or buffer binding index.
	// Unused for primitive types under OpenGL.
	Binding int
}

// DataSize returns the number of value bytes transmitted for this input, or
// 0 for resource types (textures, images, buffers).
func (in Input) DataSize() int {
	var elemSize int
	switch in.Type {
	case InputInt:
		elemSize = 4
	case InputFloat:
		elemSize = 4
	default:
		return 0
	}
	return elemSize * in.DimV * in.DimM
}

// UniformValue is the tagged value storage for one input. Exactly one field
// group is meaningful, selected by the input's type; the struct is
// comparable so cached snapshots can be diffed with ==.
type UniformValue struct {
	Int    int32
	Floats [9]float32
	Tex    *Tex
	Buf    *Buf
}

// InputValue supplies a value for the input slot at Index for one pass
// execution.
type InputValue struct {
	Index int
	Value UniformValue
}

// RenderPassType selects between raster draws and compute dispatches.
type RenderPassType int

const (
	RenderPassRaster RenderPassType = iota + 1
	RenderPassCompute
)

// BlendFactor is a blend function coefficient.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
)

// RenderPassParams describes a pass at creation time.
type RenderPassParams struct {
	Type RenderPassType

	// Inputs declares the ordered input slots.
	Inputs []Input

	// Raster only.
	VertexAttribs []Input
	VertexStride  int
	VertexShader  string
	FragShader    string

	// Compute only.
	ComputeShader string

	EnableBlend   bool
	BlendSrcRGB   BlendFactor
	BlendDstRGB   BlendFactor
	BlendSrcAlpha BlendFactor
	BlendDstAlpha BlendFactor

	// CachedProgram optionally provides a serialized program binary from a
	// previous run. Invalid blobs are silently ignored. After creation the
	// pass's own params carry the (possibly new) blob produced by the
	// backend.
	CachedProgram []byte
}

// Copy returns a deep copy of the params; the pass owns its copy outright.
func (p *RenderPassParams) Copy() *RenderPassParams {
	res := *p
	res.Inputs = append([]Input(nil), p.Inputs...)
	res.VertexAttribs = append([]Input(nil), p.VertexAttribs...)
	res.CachedProgram = append([]byte(nil), p.CachedProgram...)
	return &res
}

// RenderPass is a compiled program plus its immutable declared parameter
// set. Values are supplied per invocation by slot index.
type RenderPass struct {
	Params RenderPassParams
	Priv   any
}

// RenderPassRunParams parameterizes one execution of a pass.
type RenderPassRunParams struct {
	Pass   *RenderPass
	Values []InputValue

	// Raster only. Target must have RenderDst set.
	Target      *Tex
	VertexData  []byte
	VertexCount int
	Viewport    math.Rect
	Scissors    math.Rect

	// Compute only: work group counts.
	ComputeGroups [3]int
}

// UploadFlags modify texture uploads.
type UploadFlags uint32

const (
	// UploadDiscard tells the backend the previous texture contents do not
	// need to be preserved outside the uploaded region.
	UploadDiscard UploadFlags = 1 << iota
)

// Caps is a bitfield of optional backend capabilities.
type Caps uint32

const (
	CapTex1D Caps = 1 << iota
	CapTex3D
	CapBlit
	CapCompute
	CapPBO
	CapNestedArray
)

// Backend is implemented once per concrete graphics API. All object
// creation goes through it; returned objects must only be destroyed through
// the same backend.
type Backend interface {
	// Destroy releases the backend context and everything it owns.
	Destroy()

	// Caps reports the optional capabilities of the context.
	Caps() Caps
	// GLSLVersion reports the shading-language version to generate for,
	// and whether it is an embedded (ES) profile.
	GLSLVersion() (version int, es bool)
	// Formats lists the native formats enumerated at initialization.
	// Read-only after init.
	Formats() []*Format
	// MaxTextureSize reports the largest allowed texture extent.
	MaxTextureSize() int

	// TexCreate allocates a texture. Returns an error if RenderDst is
	// requested on a non-renderable format or target validation fails.
	TexCreate(params *TexParams) (*Tex, error)
	// TexDestroy releases a texture. Wrapped native handles are not
	// deleted.
	TexDestroy(tex *Tex)
	// TexUpload copies pixel data into the texture. region restricts the
	// copy for 2D textures; 1D/3D uploads always replace the whole image.
	// When buf is non-nil, src must alias buf.Data and a fence is
	// installed so the buffer is not reused prematurely.
	TexUpload(tex *Tex, src []byte, stride int, region *math.Rect, flags UploadFlags, buf *StagingBuffer) error

	// BufCreate allocates a storage buffer, optionally with initial data.
	BufCreate(size int, initialData []byte) (*Buf, error)
	BufDestroy(buf *Buf)

	// CreateStagingBuffer allocates a persistently mapped upload buffer.
	// Fails if the backend lacks persistent mapping support.
	CreateStagingBuffer(size int) (*StagingBuffer, error)
	// DestroyStagingBuffer waits for any outstanding fence, then unmaps
	// and releases the buffer.
	DestroyStagingBuffer(buf *StagingBuffer)
	// PollStagingBuffer reports whether the GPU is done reading from the
	// buffer. Non-blocking; resolves the fence at most once.
	PollStagingBuffer(buf *StagingBuffer) bool

	// Clear fills a region of a render target with a color. dst must have
	// RenderDst set.
	Clear(dst *Tex, color [4]float32, scissor math.Rect)
	// Blit copies a rectangle between two render targets. Both textures
	// must have RenderDst set; the blit path binds source and destination
	// as framebuffers.
	Blit(dst, src *Tex, dstX, dstY int, srcRect math.Rect)

	// RenderPassCreate compiles (or loads) a program and fixes its input
	// schema. Compile diagnostics are logged, not returned.
	RenderPassCreate(params *RenderPassParams) (*RenderPass, error)
	RenderPassDestroy(pass *RenderPass)
	// RenderPassRun executes one draw or dispatch. Bindings established
	// for the run are removed again before it returns.
	RenderPassRun(params *RenderPassRunParams)
}

// TexFree destroys *tex through the backend and clears the pointer. Safe on
// nil entries.
func TexFree(b Backend, tex **Tex) {
	if *tex != nil {
		b.TexDestroy(*tex)
	}
	*tex = nil
}

func (t RenderPassType) String() string {
	switch t {
	case RenderPassRaster:
		return "raster"
	case RenderPassCompute:
		return "compute"
	}
	return fmt.Sprintf("invalid(%d)", int(t))
}
