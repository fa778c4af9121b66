package opengl

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
)

// Binding the driver entry points is process-wide state; do it exactly once
// no matter how many contexts get created.
var (
	glInitOnce sync.Once
	glInitErr  error
)

// LoadGL binds the OpenGL entry points of the current context (which must
// be current on the calling thread) and returns a populated function table.
// Optional entry points are left nil when the context version does not
// provide them, which is how capability detection later sees them.
func LoadGL() (*GL, error) {
	glInitOnce.Do(func() {
		glInitErr = gl.Init()
	})
	if glInitErr != nil {
		return nil, fmt.Errorf("binding OpenGL entry points: %w", glInitErr)
	}

	var major, minor int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	version := int(major)*100 + int(minor)*10

	var numExts int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &numExts)
	exts := make([]string, 0, numExts)
	for i := int32(0); i < numExts; i++ {
		ext := gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i)))
		exts = append(exts, strings.TrimSpace(ext))
	}

	table := &GL{
		Version:     version,
		GLSLVersion: glslVersionFor(version),
		Extensions:  exts,

		GenTextures:    gl.GenTextures,
		DeleteTextures: gl.DeleteTextures,
		BindTexture:    gl.BindTexture,
		TexParameteri:  gl.TexParameteri,
		TexImage1D: func(target uint32, level, internalFormat, w int32, border int32, format, typ uint32, data unsafe.Pointer) {
			gl.TexImage1D(target, level, internalFormat, w, border, format, typ, data)
		},
		TexImage2D: func(target uint32, level, internalFormat, w, h int32, border int32, format, typ uint32, data unsafe.Pointer) {
			gl.TexImage2D(target, level, internalFormat, w, h, border, format, typ, data)
		},
		TexImage3D: func(target uint32, level, internalFormat, w, h, d int32, border int32, format, typ uint32, data unsafe.Pointer) {
			gl.TexImage3D(target, level, internalFormat, w, h, d, border, format, typ, data)
		},
		TexSubImage2D: func(target uint32, level, x, y, w, h int32, format, typ uint32, data unsafe.Pointer) {
			gl.TexSubImage2D(target, level, x, y, w, h, format, typ, data)
		},
		PixelStorei:   gl.PixelStorei,
		ActiveTexture: gl.ActiveTexture,

		GenFramebuffers:        gl.GenFramebuffers,
		DeleteFramebuffers:     gl.DeleteFramebuffers,
		BindFramebuffer:        gl.BindFramebuffer,
		FramebufferTexture2D:   gl.FramebufferTexture2D,
		CheckFramebufferStatus: gl.CheckFramebufferStatus,

		GenBuffers:    gl.GenBuffers,
		DeleteBuffers: gl.DeleteBuffers,
		BindBuffer:    gl.BindBuffer,
		BufferData: func(target uint32, size int, data unsafe.Pointer, usage uint32) {
			gl.BufferData(target, size, data, usage)
		},
		BufferSubData: func(target uint32, offset, size int, data unsafe.Pointer) {
			gl.BufferSubData(target, offset, size, data)
		},

		Enable:     gl.Enable,
		Disable:    gl.Disable,
		Scissor:    gl.Scissor,
		Viewport:   gl.Viewport,
		ClearColor: gl.ClearColor,
		Clear:      gl.Clear,

		CreateShader: gl.CreateShader,
		DeleteShader: gl.DeleteShader,
		ShaderSource: func(shader uint32, source string) {
			csources, free := gl.Strs(source + "\x00")
			gl.ShaderSource(shader, 1, csources, nil)
			free()
		},
		CompileShader: gl.CompileShader,
		GetShaderiv:   gl.GetShaderiv,
		GetShaderInfoLog: func(shader uint32, bufSize int32) string {
			buf := make([]byte, bufSize+1)
			gl.GetShaderInfoLog(shader, bufSize, nil, &buf[0])
			return trimLog(buf)
		},
		AttachShader: gl.AttachShader,

		CreateProgram: gl.CreateProgram,
		DeleteProgram: gl.DeleteProgram,
		LinkProgram:   gl.LinkProgram,
		UseProgram:    gl.UseProgram,
		GetProgramiv:  gl.GetProgramiv,
		GetProgramInfoLog: func(program uint32, bufSize int32) string {
			buf := make([]byte, bufSize+1)
			gl.GetProgramInfoLog(program, bufSize, nil, &buf[0])
			return trimLog(buf)
		},
		GetUniformLocation: func(program uint32, name string) int32 {
			return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
		},
		BindAttribLocation: func(program, index uint32, name string) {
			gl.BindAttribLocation(program, index, gl.Str(name+"\x00"))
		},

		Uniform1i: gl.Uniform1i,
		Uniform1f: gl.Uniform1f,
		Uniform2f: gl.Uniform2f,
		Uniform3f: gl.Uniform3f,
		Uniform4f: gl.Uniform4f,
		UniformMatrix2fv: func(loc int32, transpose bool, value *float32) {
			gl.UniformMatrix2fv(loc, 1, transpose, value)
		},
		UniformMatrix3fv: func(loc int32, transpose bool, value *float32) {
			gl.UniformMatrix3fv(loc, 1, transpose, value)
		},

		BlendFuncSeparate: gl.BlendFuncSeparate,

		GetIntegerv: gl.GetIntegerv,
		GetError:    gl.GetError,
	}

	if version >= 300 {
		table.BlitFramebuffer = gl.BlitFramebuffer
		table.BindBufferBase = gl.BindBufferBase
		table.GenVertexArrays = gl.GenVertexArrays
		table.DeleteVertexArrays = gl.DeleteVertexArrays
		table.BindVertexArray = gl.BindVertexArray
		table.EnableVertexAttribArray = gl.EnableVertexAttribArray
		table.VertexAttribPointer = func(index uint32, size int32, typ uint32, normalized bool, stride int32, offset uintptr) {
			gl.VertexAttribPointerWithOffset(index, size, typ, normalized, stride, offset)
		}
		table.DrawArrays = gl.DrawArrays
		table.MapBufferRange = func(target uint32, offset, length int, access uint32) unsafe.Pointer {
			return gl.MapBufferRange(target, offset, length, access)
		}
		table.UnmapBuffer = gl.UnmapBuffer
	}
	if version >= 320 {
		table.FenceSync = func(condition, flags uint32) GLSync {
			return GLSync(gl.FenceSync(condition, flags))
		}
		table.DeleteSync = func(sync GLSync) {
			gl.DeleteSync(uintptr(sync))
		}
		table.ClientWaitSync = func(sync GLSync, flags uint32, timeoutNs uint64) uint32 {
			return gl.ClientWaitSync(uintptr(sync), flags, timeoutNs)
		}
	}
	if version >= 410 || table.HasExtension("GL_ARB_get_program_binary") {
		table.ProgramBinary = func(program, format uint32, binary []byte) {
			gl.ProgramBinary(program, format, gl.Ptr(binary), int32(len(binary)))
		}
		table.GetProgramBinary = func(program uint32) (uint32, []byte) {
			var size int32
			gl.GetProgramiv(program, glProgramBinaryLength, &size)
			if size <= 0 {
				return 0, nil
			}
			buf := make([]byte, size)
			var actual int32
			var format uint32
			gl.GetProgramBinary(program, size, &actual, &format, gl.Ptr(buf))
			return format, buf[:actual]
		}
	}
	if version >= 420 || table.HasExtension("GL_ARB_shader_image_load_store") {
		table.BindImageTexture = gl.BindImageTexture
	}
	if version >= 430 || table.HasExtension("GL_ARB_compute_shader") {
		table.DispatchCompute = gl.DispatchCompute
		table.MemoryBarrier = gl.MemoryBarrier
	}
	if version >= 440 || table.HasExtension("GL_ARB_buffer_storage") {
		table.BufferStorage = func(target uint32, size int, data unsafe.Pointer, flags uint32) {
			gl.BufferStorage(target, size, data, flags)
		}
	}

	return table, nil
}

// glslVersionFor maps a context version to the #version directive the
// shader generator should emit.
func glslVersionFor(version int) int {
	switch {
	case version >= 330:
		return version
	case version >= 320:
		return 150
	case version >= 310:
		return 140
	case version >= 300:
		return 130
	default:
		return 120
	}
}

func trimLog(buf []byte) string {
	s := string(buf)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "\n")
}
