package opengl

import (
	"fmt"
	"unsafe"
)

// fakeGL backs a GL function table with plain Go state so backend behavior
// can be exercised without a context. Interesting entry points append a
// formatted line to calls; tests assert against that trace.
type fakeGL struct {
	calls []string

	nextName uint32
	nextSync GLSync

	// Knobs tests flip to force failure paths.
	compileFail bool
	linkFail    bool
	fboStatus   uint32
	mapFail     bool

	// signaled marks fences the "GPU" has completed.
	signaled map[GLSync]bool

	// mapped keeps the backing store of mapped buffers alive.
	mapped map[uint32][]byte

	uniformLocs map[string]int32

	// binaryBlob is what GetProgramBinary hands back; nil disables the
	// program-binary entry points.
	binaryBlob []byte

	maxTexSize int32
}

func (f *fakeGL) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeGL) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeGL) called(call string) bool { return f.count(call) > 0 }

func (f *fakeGL) genName() uint32 {
	f.nextName++
	return f.nextName
}

func (f *fakeGL) genNames(n int32, out *uint32) {
	names := unsafe.Slice(out, n)
	for i := range names {
		names[i] = f.genName()
	}
}

// newFakeGL builds a fake table advertising the given desktop version, with
// every optional entry point the loader would provide at that version.
func newFakeGL(version int) (*GL, *fakeGL) {
	f := &fakeGL{
		fboStatus:   glFramebufferComplete,
		signaled:    map[GLSync]bool{},
		mapped:      map[uint32][]byte{},
		uniformLocs: map[string]int32{},
		maxTexSize:  16384,
	}

	gl := &GL{
		Version:     version,
		GLSLVersion: glslVersionFor(version),

		GenTextures:    f.genNames,
		DeleteTextures: func(n int32, t *uint32) { f.record("DeleteTextures(%d)", *t) },
		BindTexture:    func(target, tex uint32) { f.record("BindTexture(0x%04X, %d)", target, tex) },
		TexParameteri:  func(target, pname uint32, param int32) {},
		TexImage1D: func(target uint32, level, ifmt, w int32, border int32, format, typ uint32, data unsafe.Pointer) {
			f.record("TexImage1D(%d)", w)
		},
		TexImage2D: func(target uint32, level, ifmt, w, h int32, border int32, format, typ uint32, data unsafe.Pointer) {
			f.record("TexImage2D(%dx%d, data=%v)", w, h, data != nil)
		},
		TexImage3D: func(target uint32, level, ifmt, w, h, d int32, border int32, format, typ uint32, data unsafe.Pointer) {
			f.record("TexImage3D(%dx%dx%d)", w, h, d)
		},
		TexSubImage2D: func(target uint32, level, x, y, w, h int32, format, typ uint32, data unsafe.Pointer) {
			f.record("TexSubImage2D(%d,%d %dx%d, ptr=0x%X)", x, y, w, h, uintptr(data))
		},
		PixelStorei:   func(pname uint32, param int32) {},
		ActiveTexture: func(unit uint32) { f.record("ActiveTexture(%d)", unit-glTexture0) },

		GenFramebuffers:    f.genNames,
		DeleteFramebuffers: func(n int32, fb *uint32) { f.record("DeleteFramebuffers(%d)", *fb) },
		BindFramebuffer: func(target, fbo uint32) {
			f.record("BindFramebuffer(0x%04X, %d)", target, fbo)
		},
		FramebufferTexture2D:   func(target, attachment, textarget, tex uint32, level int32) {},
		CheckFramebufferStatus: func(target uint32) uint32 { return f.fboStatus },
		BlitFramebuffer: func(sx0, sy0, sx1, sy1, dx0, dy0, dx1, dy1 int32, mask, filter uint32) {
			f.record("BlitFramebuffer(%d,%d,%d,%d -> %d,%d,%d,%d)",
				sx0, sy0, sx1, sy1, dx0, dy0, dx1, dy1)
		},

		GenBuffers:    f.genNames,
		DeleteBuffers: func(n int32, b *uint32) { f.record("DeleteBuffers(%d)", *b) },
		BindBuffer: func(target, buffer uint32) {
			f.record("BindBuffer(0x%04X, %d)", target, buffer)
		},
		BindBufferBase: func(target, index, buffer uint32) {
			f.record("BindBufferBase(0x%04X, %d, %d)", target, index, buffer)
		},
		BufferData: func(target uint32, size int, data unsafe.Pointer, usage uint32) {
			f.record("BufferData(0x%04X, %d)", target, size)
		},
		BufferSubData: func(target uint32, offset, size int, data unsafe.Pointer) {
			f.record("BufferSubData(0x%04X, %d, %d)", target, offset, size)
		},
		BufferStorage: func(target uint32, size int, data unsafe.Pointer, flags uint32) {
			f.record("BufferStorage(0x%04X, %d)", target, size)
		},
		UnmapBuffer: func(target uint32) bool { f.record("UnmapBuffer"); return true },

		FenceSync: func(condition, flags uint32) GLSync {
			f.nextSync++
			f.record("FenceSync() = %d", f.nextSync)
			return f.nextSync
		},
		DeleteSync: func(sync GLSync) { f.record("DeleteSync(%d)", sync) },
		ClientWaitSync: func(sync GLSync, flags uint32, timeoutNs uint64) uint32 {
			if f.signaled[sync] {
				return glAlreadySignaled
			}
			return glTimeoutExpired
		},

		Enable:     func(cap uint32) { f.record("Enable(0x%04X)", cap) },
		Disable:    func(cap uint32) { f.record("Disable(0x%04X)", cap) },
		Scissor:    func(x, y, w, h int32) { f.record("Scissor(%d,%d %dx%d)", x, y, w, h) },
		Viewport:   func(x, y, w, h int32) { f.record("Viewport(%d,%d %dx%d)", x, y, w, h) },
		ClearColor: func(r, g, b, a float32) { f.record("ClearColor(%v,%v,%v,%v)", r, g, b, a) },
		Clear:      func(mask uint32) { f.record("Clear") },

		CreateShader:  func(typ uint32) uint32 { return f.genName() },
		DeleteShader:  func(shader uint32) {},
		ShaderSource:  func(shader uint32, source string) {},
		CompileShader: func(shader uint32) {},
		GetShaderiv: func(shader, pname uint32, out *int32) {
			switch pname {
			case glCompileStatus:
				*out = 1
				if f.compileFail {
					*out = 0
				}
			case glInfoLogLength:
				*out = 0
			}
		},
		GetShaderInfoLog: func(shader uint32, bufSize int32) string { return "" },
		AttachShader:     func(program, shader uint32) {},

		CreateProgram: func() uint32 { return f.genName() },
		DeleteProgram: func(program uint32) { f.record("DeleteProgram(%d)", program) },
		LinkProgram:   func(program uint32) {},
		UseProgram:    func(program uint32) { f.record("UseProgram(%d)", program) },
		GetProgramiv: func(program, pname uint32, out *int32) {
			switch pname {
			case glLinkStatus:
				*out = 1
				if f.linkFail {
					*out = 0
				}
			case glInfoLogLength:
				*out = 0
			}
		},
		GetProgramInfoLog: func(program uint32, bufSize int32) string { return "" },
		GetUniformLocation: func(program uint32, name string) int32 {
			loc, ok := f.uniformLocs[name]
			if !ok {
				loc = int32(len(f.uniformLocs))
				f.uniformLocs[name] = loc
			}
			return loc
		},
		BindAttribLocation: func(program, index uint32, name string) {
			f.record("BindAttribLocation(%d, %s)", index, name)
		},

		Uniform1i: func(loc int32, v int32) { f.record("Uniform1i(%d, %d)", loc, v) },
		Uniform1f: func(loc int32, v float32) { f.record("Uniform1f(%d, %v)", loc, v) },
		Uniform2f: func(loc int32, v0, v1 float32) { f.record("Uniform2f(%d, %v, %v)", loc, v0, v1) },
		Uniform3f: func(loc int32, v0, v1, v2 float32) {
			f.record("Uniform3f(%d, %v, %v, %v)", loc, v0, v1, v2)
		},
		Uniform4f: func(loc int32, v0, v1, v2, v3 float32) {
			f.record("Uniform4f(%d, %v, %v, %v, %v)", loc, v0, v1, v2, v3)
		},
		UniformMatrix2fv: func(loc int32, transpose bool, value *float32) {
			f.record("UniformMatrix2fv(%d)", loc)
		},
		UniformMatrix3fv: func(loc int32, transpose bool, value *float32) {
			f.record("UniformMatrix3fv(%d)", loc)
		},

		GenVertexArrays:         f.genNames,
		DeleteVertexArrays:      func(n int32, a *uint32) { f.record("DeleteVertexArrays(%d)", *a) },
		BindVertexArray:         func(array uint32) { f.record("BindVertexArray(%d)", array) },
		EnableVertexAttribArray: func(index uint32) {},
		VertexAttribPointer: func(index uint32, size int32, typ uint32, norm bool, stride int32, offset uintptr) {
		},
		DrawArrays: func(mode uint32, first, count int32) {
			f.record("DrawArrays(%d, %d)", first, count)
		},

		BindImageTexture: func(unit, tex uint32, level int32, layered bool, layer int32, access, format uint32) {
			f.record("BindImageTexture(%d, %d)", unit, tex)
		},

		BlendFuncSeparate: func(srcRGB, dstRGB, srcAlpha, dstAlpha uint32) {
			f.record("BlendFuncSeparate(%d, %d, %d, %d)", srcRGB, dstRGB, srcAlpha, dstAlpha)
		},

		GetIntegerv: func(pname uint32, out *int32) {
			if pname == glMaxTextureSize {
				*out = f.maxTexSize
			}
		},
		GetError: func() uint32 { return 0 },
	}

	gl.MapBufferRange = func(target uint32, offset, length int, access uint32) unsafe.Pointer {
		if f.mapFail {
			return nil
		}
		backing := make([]byte, length)
		// Key by the most recently generated buffer; good enough for the
		// single-buffer tests.
		f.mapped[f.nextName] = backing
		return unsafe.Pointer(&backing[0])
	}

	if version >= 410 {
		gl.ProgramBinary = func(program, format uint32, binary []byte) {
			f.record("ProgramBinary(fmt=%d, %d bytes)", format, len(binary))
		}
		gl.GetProgramBinary = func(program uint32) (uint32, []byte) {
			if f.binaryBlob == nil {
				return 0, nil
			}
			return 42, f.binaryBlob
		}
	}
	if version >= 430 {
		gl.DispatchCompute = func(x, y, z uint32) { f.record("DispatchCompute(%d,%d,%d)", x, y, z) }
		gl.MemoryBarrier = func(barriers uint32) { f.record("MemoryBarrier(0x%08X)", barriers) }
	}
	if version < 440 {
		gl.BufferStorage = nil
	}
	if version < 320 {
		gl.FenceSync = nil
		gl.DeleteSync = nil
		gl.ClientWaitSync = nil
	}
	if version < 300 {
		gl.BlitFramebuffer = nil
		gl.MapBufferRange = nil
		gl.GenVertexArrays = nil
		gl.DeleteVertexArrays = nil
		gl.BindVertexArray = nil
	}

	return gl, f
}

// newTestBackend builds a backend over a fake GL 4.6 context.
func newTestBackend(cfg Config) (*backend, *fakeGL) {
	gl, f := newFakeGL(460)
	b, err := New(gl, cfg)
	if err != nil {
		panic(err)
	}
	return b.(*backend), f
}
