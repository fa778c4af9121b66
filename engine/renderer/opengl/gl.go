// Package opengl implements the render abstraction against OpenGL. All GL
// traffic goes through a GL function table so the backend itself never binds
// to a concrete driver; LoadGL fills the table from the real bindings.
package opengl

import "unsafe"

// GL enum values used by the backend. Declared locally so only the loader
// depends on the binding package.
const (
	glTexture1D        = 0x0DE0
	glTexture2D        = 0x0DE1
	glTexture3D        = 0x806F
	glTextureRectangle = 0x84F5
	glTextureExternal  = 0x8D65

	glNearest     = 0x2600
	glLinear      = 0x2601
	glClampToEdge = 0x812F
	glRepeat      = 0x2901

	glTextureMinFilter = 0x2801
	glTextureMagFilter = 0x2800
	glTextureWrapS     = 0x2802
	glTextureWrapT     = 0x2803
	glTextureWrapR     = 0x8072

	glUnpackAlignment = 0x0CF5
	glUnpackRowLength = 0x0CF2

	glFramebuffer         = 0x8D40
	glReadFramebuffer     = 0x8CA8
	glDrawFramebuffer     = 0x8CA9
	glColorAttachment0    = 0x8CE0
	glFramebufferComplete = 0x8CD5

	glArrayBuffer         = 0x8892
	glPixelUnpackBuffer   = 0x88EC
	glShaderStorageBuffer = 0x90D2
	glStreamDraw          = 0x88E0
	glStaticDraw          = 0x88E4

	glMapReadBit       = 0x0001
	glMapWriteBit      = 0x0002
	glMapPersistentBit = 0x0040
	glMapCoherentBit   = 0x0080
	glClientStorageBit = 0x0200

	glSyncGPUCommandsComplete = 0x9117
	glAlreadySignaled         = 0x911A
	glTimeoutExpired          = 0x911B
	glConditionSatisfied      = 0x911C
	glWaitFailed              = 0x911D

	glScissorTest    = 0x0C11
	glBlend          = 0x0BE2
	glDither         = 0x0BD0
	glColorBufferBit = 0x00004000
	glTriangles      = 0x0004

	glVertexShader   = 0x8B31
	glFragmentShader = 0x8B30
	glComputeShader  = 0x91B9

	glCompileStatus       = 0x8B81
	glLinkStatus          = 0x8B82
	glInfoLogLength       = 0x8B84
	glProgramBinaryLength = 0x8741

	glTexture0 = 0x84C0

	glWriteOnly      = 0x88B9
	glAllBarrierBits = 0xFFFFFFFF

	glZero             = 0
	glOne              = 1
	glSrcAlpha         = 0x0302
	glOneMinusSrcAlpha = 0x0303

	glMaxTextureSize = 0x0D33

	// Component layouts.
	glRed            = 0x1903
	glRG             = 0x8227
	glRGB            = 0x1907
	glRGBA           = 0x1908
	glRedInteger     = 0x8D94
	glRGInteger      = 0x8228
	glRGBAInteger    = 0x8D99
	glLuminance      = 0x1909
	glLuminanceAlpha = 0x190A
	glRGBRaw422Apple = 0x8A51

	// Data types.
	glUnsignedByte         = 0x1401
	glUnsignedShort        = 0x1403
	glUnsignedInt          = 0x1405
	glFloat                = 0x1406
	glUnsignedShort565     = 0x8363
	glUnsignedShort88Apple = 0x85BA

	// Sized internal formats.
	glR8       = 0x8229
	glRG8      = 0x822B
	glRGB8     = 0x8051
	glRGBA8    = 0x8058
	glR16      = 0x822A
	glRG16     = 0x822C
	glRGBA16   = 0x805B
	glR16F     = 0x822D
	glRG16F    = 0x822F
	glRGB16F   = 0x881B
	glRGBA16F  = 0x881A
	glR32F     = 0x822E
	glRGBA32F  = 0x8814
	glR8UI     = 0x8232
	glRG8UI    = 0x8238
	glRGBA8UI  = 0x8D7C
	glR16UI    = 0x8234
	glRG16UI   = 0x823A
	glRGBA16UI = 0x8D76
	glRGB565   = 0x8D62
	glL8       = 0x8040
	glLA8      = 0x8045
	glL16      = 0x8042
	glLA16     = 0x8048
)

// GLSync is an opaque driver fence handle. Zero means "no fence".
type GLSync uintptr

// GL is the function table of the active OpenGL context, the single point
// of contact between the backend and the driver. Optional entry points are
// nil when the context does not provide them; capability detection checks
// for that. Tests substitute a recording fake.
type GL struct {
	// Version is the desktop GL version in the form major*100+minor*10
	// (e.g. 460); ES is the same for OpenGL ES contexts, 0 for desktop.
	Version int
	ES      int
	// GLSLVersion is the shading-language version to generate (e.g. 430,
	// or 300 for ES 3.0).
	GLSLVersion int
	Extensions  []string

	GenTextures    func(n int32, textures *uint32)
	DeleteTextures func(n int32, textures *uint32)
	BindTexture    func(target, texture uint32)
	TexParameteri  func(target, pname uint32, param int32)
	TexImage1D     func(target uint32, level, internalFormat, w int32, border int32, format, typ uint32, data unsafe.Pointer)
	TexImage2D     func(target uint32, level, internalFormat, w, h int32, border int32, format, typ uint32, data unsafe.Pointer)
	TexImage3D     func(target uint32, level, internalFormat, w, h, d int32, border int32, format, typ uint32, data unsafe.Pointer)
	TexSubImage2D  func(target uint32, level, x, y, w, h int32, format, typ uint32, data unsafe.Pointer)
	PixelStorei    func(pname uint32, param int32)
	ActiveTexture  func(unit uint32)

	GenFramebuffers        func(n int32, fbos *uint32)
	DeleteFramebuffers     func(n int32, fbos *uint32)
	BindFramebuffer        func(target, fbo uint32)
	FramebufferTexture2D   func(target, attachment, textarget, texture uint32, level int32)
	CheckFramebufferStatus func(target uint32) uint32
	BlitFramebuffer        func(sx0, sy0, sx1, sy1, dx0, dy0, dx1, dy1 int32, mask, filter uint32)

	GenBuffers     func(n int32, buffers *uint32)
	DeleteBuffers  func(n int32, buffers *uint32)
	BindBuffer     func(target, buffer uint32)
	BindBufferBase func(target, index, buffer uint32)
	BufferData     func(target uint32, size int, data unsafe.Pointer, usage uint32)
	BufferSubData  func(target uint32, offset, size int, data unsafe.Pointer)
	BufferStorage  func(target uint32, size int, data unsafe.Pointer, flags uint32)
	MapBufferRange func(target uint32, offset, length int, access uint32) unsafe.Pointer
	UnmapBuffer    func(target uint32) bool

	FenceSync      func(condition, flags uint32) GLSync
	DeleteSync     func(sync GLSync)
	ClientWaitSync func(sync GLSync, flags uint32, timeoutNs uint64) uint32

	Enable     func(cap uint32)
	Disable    func(cap uint32)
	Scissor    func(x, y, w, h int32)
	Viewport   func(x, y, w, h int32)
	ClearColor func(r, g, b, a float32)
	Clear      func(mask uint32)

	CreateShader     func(typ uint32) uint32
	DeleteShader     func(shader uint32)
	ShaderSource     func(shader uint32, source string)
	CompileShader    func(shader uint32)
	GetShaderiv      func(shader, pname uint32, out *int32)
	GetShaderInfoLog func(shader uint32, bufSize int32) string
	AttachShader     func(program, shader uint32)

	CreateProgram      func() uint32
	DeleteProgram      func(program uint32)
	LinkProgram        func(program uint32)
	UseProgram         func(program uint32)
	GetProgramiv       func(program, pname uint32, out *int32)
	GetProgramInfoLog  func(program uint32, bufSize int32) string
	GetUniformLocation func(program uint32, name string) int32
	BindAttribLocation func(program, index uint32, name string)
	ProgramBinary      func(program, format uint32, binary []byte)
	GetProgramBinary   func(program uint32) (format uint32, binary []byte)

	Uniform1i        func(loc int32, v int32)
	Uniform1f        func(loc int32, v float32)
	Uniform2f        func(loc int32, v0, v1 float32)
	Uniform3f        func(loc int32, v0, v1, v2 float32)
	Uniform4f        func(loc int32, v0, v1, v2, v3 float32)
	UniformMatrix2fv func(loc int32, transpose bool, value *float32)
	UniformMatrix3fv func(loc int32, transpose bool, value *float32)

	GenVertexArrays         func(n int32, arrays *uint32)
	DeleteVertexArrays      func(n int32, arrays *uint32)
	BindVertexArray         func(array uint32)
	EnableVertexAttribArray func(index uint32)
	VertexAttribPointer     func(index uint32, size int32, typ uint32, normalized bool, stride int32, offset uintptr)
	DrawArrays              func(mode uint32, first, count int32)

	BindImageTexture func(unit, texture uint32, level int32, layered bool, layer int32, access, format uint32)
	DispatchCompute  func(x, y, z uint32)
	MemoryBarrier    func(barriers uint32)

	BlendFuncSeparate func(srcRGB, dstRGB, srcAlpha, dstAlpha uint32)

	GetIntegerv func(pname uint32, out *int32)
	GetError    func() uint32
}

// HasExtension reports whether the context advertises the named extension.
func (gl *GL) HasExtension(name string) bool {
	for _, ext := range gl.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}
