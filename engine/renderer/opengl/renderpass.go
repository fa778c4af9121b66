package opengl

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/ra"
)

// glRenderPass is the backend state of a compiled pass.
type glRenderPass struct {
	program uint32
	// uniformLoc[i] is the native location of input slot i, -1 when the
	// compiler optimized the uniform out.
	uniformLoc []int32
	vao        glVAO
	// firstRun gates the one-time "tell the sampler its unit" step.
	firstRun bool
}

func (b *backend) RenderPassDestroy(pass *ra.RenderPass) {
	passGL := pass.Priv.(*glRenderPass)
	b.gl.DeleteProgram(passGL.program)
	passGL.vao.uninit(b.gl)
	pass.Priv = nil
}

func shaderTypeName(typ uint32) string {
	switch typ {
	case glVertexShader:
		return "vertex"
	case glFragmentShader:
		return "fragment"
	case glComputeShader:
		return "compute"
	}
	panic(fmt.Sprintf("unknown shader type 0x%x", typ))
}

// compileAttachShader compiles one stage and attaches it. Failure is
// recorded in *ok; the full source and compiler log are surfaced through
// the logger either way, at error severity only on failure.
func (b *backend) compileAttachShader(program, typ uint32, source string, ok *bool) {
	gl := b.gl

	shader := gl.CreateShader(typ)
	gl.ShaderSource(shader, source)
	gl.CompileShader(shader)
	var status, logLength int32
	gl.GetShaderiv(shader, glCompileStatus, &status)
	gl.GetShaderiv(shader, glInfoLogLength, &logLength)

	failed := status == 0
	typeName := shaderTypeName(typ)
	if failed || core.LogLevelEnabled("debug") {
		if failed {
			core.LogError("%s shader source:", typeName)
		} else {
			core.LogDebug("%s shader source:", typeName)
		}
		core.LogSource(source, failed)
	}
	if logLength > 1 {
		logStr := gl.GetShaderInfoLog(shader, logLength)
		if failed {
			core.LogError("%s shader compile log (status=%d):\n%s", typeName, status, logStr)
		} else {
			core.LogDebug("%s shader compile log (status=%d):\n%s", typeName, status, logStr)
		}
	}

	gl.AttachShader(program, shader)
	gl.DeleteShader(shader)

	*ok = *ok && !failed
}

func (b *backend) linkShader(program uint32, ok *bool) {
	gl := b.gl

	gl.LinkProgram(program)
	var status, logLength int32
	gl.GetProgramiv(program, glLinkStatus, &status)
	gl.GetProgramiv(program, glInfoLogLength, &logLength)

	failed := status == 0
	if logLength > 1 {
		logStr := gl.GetProgramInfoLog(program, logLength)
		if failed {
			core.LogError("shader link log (status=%d): %s", status, logStr)
		} else {
			core.LogDebug("shader link log (status=%d): %s", status, logStr)
		}
	}

	*ok = *ok && !failed
}

// compileProgram builds a program from source: either the compute stage
// alone, or vertex and fragment together. Link status is checked only after
// every stage attached.
func (b *backend) compileProgram(params *ra.RenderPassParams) uint32 {
	gl := b.gl

	program := gl.CreateProgram()
	ok := true
	if params.Type == ra.RenderPassCompute {
		b.compileAttachShader(program, glComputeShader, params.ComputeShader, &ok)
	}
	if params.Type == ra.RenderPassRaster {
		b.compileAttachShader(program, glVertexShader, params.VertexShader, &ok)
		b.compileAttachShader(program, glFragmentShader, params.FragShader, &ok)
		for n, attr := range params.VertexAttribs {
			gl.BindAttribLocation(program, uint32(n), attr.Name)
		}
	}
	b.linkShader(program, &ok)
	if !ok {
		gl.DeleteProgram(program)
		program = 0
	}
	return program
}

// loadProgram first tries the serialized binary from a previous run (the
// blob is a 4-byte little-endian binary-format tag plus driver data) and
// falls back to source compilation. On a fresh compile it serializes the
// new program into cachedOut when the driver supports that.
func (b *backend) loadProgram(params *ra.RenderPassParams) (program uint32, cachedOut []byte) {
	gl := b.gl

	if gl.ProgramBinary != nil && len(params.CachedProgram) > 4 {
		format := binary.LittleEndian.Uint32(params.CachedProgram[:4])
		program = gl.CreateProgram()
		b.checkError("before loading program")
		gl.ProgramBinary(program, format, params.CachedProgram[4:])
		gl.GetError() // discard potential useless error
		var status int32
		gl.GetProgramiv(program, glLinkStatus, &status)
		if status != 0 {
			core.LogDebug("loading binary program succeeded")
		} else {
			gl.DeleteProgram(program)
			program = 0
		}
	}

	if program == 0 {
		program = b.compileProgram(params)

		if gl.GetProgramBinary != nil && program != 0 {
			format, blob := gl.GetProgramBinary(program)
			if len(blob) > 0 {
				cachedOut = make([]byte, 4+len(blob))
				binary.LittleEndian.PutUint32(cachedOut[:4], format)
				copy(cachedOut[4:], blob)
			}
		}
	}

	return program, cachedOut
}

func (b *backend) RenderPassCreate(params *ra.RenderPassParams) (*ra.RenderPass, error) {
	gl := b.gl

	pass := &ra.RenderPass{Params: *params.Copy()}
	pass.Params.CachedProgram = nil
	passGL := &glRenderPass{}
	pass.Priv = passGL

	program, cached := b.loadProgram(params)
	if program == 0 {
		pass.Priv = nil
		return nil, core.ErrCompileFailed
	}
	passGL.program = program
	pass.Params.CachedProgram = cached

	for _, input := range params.Inputs {
		loc := gl.GetUniformLocation(program, input.Name)
		passGL.uniformLoc = append(passGL.uniformLoc, loc)
	}

	passGL.vao.init(gl, params.VertexStride, params.VertexAttribs)

	passGL.firstRun = true

	return pass, nil
}

func mapBlend(blend ra.BlendFactor) uint32 {
	switch blend {
	case ra.BlendZero:
		return glZero
	case ra.BlendOne:
		return glOne
	case ra.BlendSrcAlpha:
		return glSrcAlpha
	case ra.BlendOneMinusSrcAlpha:
		return glOneMinusSrcAlpha
	}
	return 0
}

// updateUniform transmits one input value. Assumes the program is current.
func (b *backend) updateUniform(pass *ra.RenderPass, val *ra.InputValue) {
	gl := b.gl
	passGL := pass.Priv.(*glRenderPass)

	if val.Index < 0 || val.Index >= len(passGL.uniformLoc) {
		panic(fmt.Sprintf("input index %d out of range", val.Index))
	}
	input := &pass.Params.Inputs[val.Index]
	loc := passGL.uniformLoc[val.Index]

	switch input.Type {
	case ra.InputInt:
		if input.DimV*input.DimM != 1 {
			panic("int inputs must be scalars")
		}
		if loc < 0 {
			break
		}
		gl.Uniform1i(loc, val.Value.Int)
	case ra.InputFloat:
		if loc < 0 {
			break
		}
		f := &val.Value.Floats
		if input.DimM == 1 {
			switch input.DimV {
			case 1:
				gl.Uniform1f(loc, f[0])
			case 2:
				gl.Uniform2f(loc, f[0], f[1])
			case 3:
				gl.Uniform3f(loc, f[0], f[1], f[2])
			case 4:
				gl.Uniform4f(loc, f[0], f[1], f[2], f[3])
			default:
				panic(fmt.Sprintf("invalid vector dimension %d", input.DimV))
			}
		} else if input.DimV == 2 && input.DimM == 2 {
			gl.UniformMatrix2fv(loc, false, &f[0])
		} else if input.DimV == 3 && input.DimM == 3 {
			gl.UniformMatrix3fv(loc, false, &f[0])
		} else {
			panic(fmt.Sprintf("invalid matrix shape %dx%d", input.DimV, input.DimM))
		}
	case ra.InputTex, ra.InputImgW:
		tex := val.Value.Tex
		texGL := tex.Priv.(*glTex)
		if !tex.Params.RenderSrc {
			panic("texture bound as input has no render-source capability")
		}
		if passGL.firstRun {
			gl.Uniform1i(loc, int32(input.Binding))
		}
		if input.Type == ra.InputTex {
			gl.ActiveTexture(glTexture0 + uint32(input.Binding))
			gl.BindTexture(texGL.target, texGL.texture)
		} else {
			gl.BindImageTexture(uint32(input.Binding), texGL.texture, 0, false, 0,
				glWriteOnly, uint32(texGL.internalFormat))
		}
	case ra.InputBufRW:
		bufGL := val.Value.Buf.Priv.(*glBuf)
		gl.BindBufferBase(glShaderStorageBuffer, uint32(input.Binding), bufGL.ssbo)
	default:
		panic(fmt.Sprintf("invalid input type %d", input.Type))
	}
}

// disableBinding removes the GPU-resource binding a value established, so
// nothing leaks into unrelated draws.
func (b *backend) disableBinding(pass *ra.RenderPass, val *ra.InputValue) {
	gl := b.gl

	input := &pass.Params.Inputs[val.Index]

	switch input.Type {
	case ra.InputTex, ra.InputImgW:
		tex := val.Value.Tex
		texGL := tex.Priv.(*glTex)
		if input.Type == ra.InputTex {
			gl.ActiveTexture(glTexture0 + uint32(input.Binding))
			gl.BindTexture(texGL.target, 0)
		} else {
			gl.BindImageTexture(uint32(input.Binding), 0, 0, false, 0,
				glWriteOnly, uint32(texGL.internalFormat))
		}
	case ra.InputBufRW:
		gl.BindBufferBase(glShaderStorageBuffer, uint32(input.Binding), 0)
	}
}

func (b *backend) RenderPassRun(params *ra.RenderPassRunParams) {
	gl := b.gl
	pass := params.Pass
	passGL := pass.Priv.(*glRenderPass)

	gl.UseProgram(passGL.program)

	for n := range params.Values {
		b.updateUniform(pass, &params.Values[n])
	}
	gl.ActiveTexture(glTexture0)

	switch pass.Params.Type {
	case ra.RenderPassRaster:
		if !params.Target.Params.RenderDst {
			panic("raster target is not a render destination")
		}
		targetGL := params.Target.Priv.(*glTex)
		gl.BindFramebuffer(glFramebuffer, targetGL.fbo)
		gl.Viewport(int32(params.Viewport.X0), int32(params.Viewport.Y0),
			int32(params.Viewport.W()), int32(params.Viewport.H()))
		gl.Scissor(int32(params.Scissors.X0), int32(params.Scissors.Y0),
			int32(params.Scissors.W()), int32(params.Scissors.H()))
		gl.Enable(glScissorTest)
		if pass.Params.EnableBlend {
			gl.BlendFuncSeparate(mapBlend(pass.Params.BlendSrcRGB),
				mapBlend(pass.Params.BlendDstRGB),
				mapBlend(pass.Params.BlendSrcAlpha),
				mapBlend(pass.Params.BlendDstAlpha))
			gl.Enable(glBlend)
		}
		passGL.vao.drawData(gl, glTriangles, params.VertexData, params.VertexCount)
		gl.Disable(glScissorTest)
		gl.Disable(glBlend)
		gl.BindFramebuffer(glFramebuffer, 0)
	case ra.RenderPassCompute:
		gl.DispatchCompute(uint32(params.ComputeGroups[0]),
			uint32(params.ComputeGroups[1]),
			uint32(params.ComputeGroups[2]))

		// Writes of the dispatch must be visible to whatever samples the
		// written textures next.
		gl.MemoryBarrier(glAllBarrierBits)
	default:
		panic(fmt.Sprintf("invalid pass type %d", pass.Params.Type))
	}

	for n := range params.Values {
		b.disableBinding(pass, &params.Values[n])
	}
	gl.ActiveTexture(glTexture0)

	gl.UseProgram(0)

	passGL.firstRun = false
}

// glVAO owns the vertex-array state of one raster pass: a VAO plus a
// streaming vertex buffer refilled on every draw.
type glVAO struct {
	vao     uint32
	buffer  uint32
	stride  int
	attribs []ra.Input
}

func (v *glVAO) init(gl *GL, stride int, attribs []ra.Input) {
	v.stride = stride
	v.attribs = append([]ra.Input(nil), attribs...)
	if len(attribs) == 0 {
		return
	}
	gl.GenBuffers(1, &v.buffer)
	if gl.GenVertexArrays == nil {
		return
	}
	gl.GenVertexArrays(1, &v.vao)
	gl.BindVertexArray(v.vao)
	gl.BindBuffer(glArrayBuffer, v.buffer)
	v.setupAttribs(gl)
	gl.BindBuffer(glArrayBuffer, 0)
	gl.BindVertexArray(0)
}

func (v *glVAO) setupAttribs(gl *GL) {
	offset := uintptr(0)
	for n, attr := range v.attribs {
		gl.EnableVertexAttribArray(uint32(n))
		gl.VertexAttribPointer(uint32(n), int32(attr.DimV), glFloat, false,
			int32(v.stride), offset)
		offset += uintptr(attr.DimV) * 4
	}
}

func (v *glVAO) uninit(gl *GL) {
	if v.vao != 0 {
		gl.DeleteVertexArrays(1, &v.vao)
		v.vao = 0
	}
	if v.buffer != 0 {
		gl.DeleteBuffers(1, &v.buffer)
		v.buffer = 0
	}
}

func (v *glVAO) drawData(gl *GL, mode uint32, data []byte, count int) {
	if count == 0 {
		return
	}
	gl.BindBuffer(glArrayBuffer, v.buffer)
	gl.BufferData(glArrayBuffer, len(data), dataPtr(data), glStreamDraw)
	if v.vao != 0 {
		gl.BindVertexArray(v.vao)
	} else {
		v.setupAttribs(gl)
	}
	gl.DrawArrays(mode, 0, int32(count))
	if v.vao != 0 {
		gl.BindVertexArray(0)
	}
	gl.BindBuffer(glArrayBuffer, 0)
}
