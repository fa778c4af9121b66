// Package shadercache assembles shader source text incrementally and caches
// the compiled render passes, so the video pipeline can describe a frame's
// shading from scratch every frame without paying for recompilation.
package shadercache

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/ra"
)

// Force cache flush if more than this number of shaders is created.
const maxEntries = 48

// uniform is one pending named input plus its value for the next dispatch.
type uniform struct {
	input        ra.Input
	glslType     string
	value        ra.UniformValue
	bufferFormat string
}

// entry pairs a compiled pass with the last-seen value per input slot, for
// change detection, and a timer aggregating the pass's execution times.
type entry struct {
	pass *ra.RenderPass
	// cached is parallel to pass.Params.Inputs.
	cached []ra.UniformValue
	// total is the exact cache key the entry was created under.
	total string
	timer *core.TimerPool
}

// ShaderCache accumulates exactly one pending shader at a time. The protocol
// is strict: append text and uniforms, declare the vertex format, then
// dispatch; the dispatch resets the pending state for the next shader.
// Violations are caller bugs and panic.
type ShaderCache struct {
	backend ra.Backend

	// permanent
	exts []string

	// pending shader, cleared by Reset
	preludeText strings.Builder
	headerText  strings.Builder
	text        strings.Builder

	nextTextureUnit   int
	nextImageUnit     int
	nextBufferBinding int

	params   ra.RenderPassParams
	uniforms []uniform

	entries []*entry
	current *entry
	values  []ra.InputValue

	// needsReset guards against starting a second shader before the
	// previous dispatch cycle completed.
	needsReset bool

	errorState bool

	cacheDir string

	// passCreations counts actual backend pass creations, so tests can
	// observe cache hits.
	passCreations int

	watcher        *fsnotify.Watcher
	watcherDone    chan struct{}
	flushRequested atomic.Bool
}

func New(b ra.Backend) *ShaderCache {
	sc := &ShaderCache{backend: b}
	sc.Reset()
	return sc
}

// SetCacheDir enables the on-disk program-binary cache under dir.
func (sc *ShaderCache) SetCacheDir(dir string) {
	sc.cacheDir = dir
}

func (sc *ShaderCache) Destroy() {
	if sc == nil {
		return
	}
	if sc.watcher != nil {
		close(sc.watcherDone)
		sc.watcher.Close()
		sc.watcher = nil
	}
	sc.Reset()
	sc.Flush()
}

// ErrorState reports whether any pass creation failed since the last
// ResetError. Failed dispatches render nothing but are not fatal.
func (sc *ShaderCache) ErrorState() bool { return sc.errorState }

func (sc *ShaderCache) ResetError() { sc.errorState = false }

// PassCreations counts backend pass creations since New, for
// instrumentation.
func (sc *ShaderCache) PassCreations() int { return sc.passCreations }

// Flush destroys every cached pass. The next dispatch of any shader
// recompiles it.
func (sc *ShaderCache) Flush() {
	core.LogDebug("flushing shader cache")
	for _, e := range sc.entries {
		if e.pass != nil {
			sc.backend.RenderPassDestroy(e.pass)
			e.pass = nil
		}
	}
	sc.entries = sc.entries[:0]
}

// Reset discards the pending shader state and prepares for a new one. Called
// automatically at the end of each dispatch.
func (sc *ShaderCache) Reset() {
	sc.preludeText.Reset()
	sc.headerText.Reset()
	sc.text.Reset()
	sc.uniforms = sc.uniforms[:0]
	// Unit 0 stays free for incidental backend use.
	sc.nextTextureUnit = 1
	sc.nextImageUnit = 1
	sc.nextBufferBinding = 1
	sc.current = nil
	sc.params = ra.RenderPassParams{}
	sc.needsReset = false
}

// EnableExtension adds a #extension directive to every following shader.
// Permanent, not cleared by Reset.
func (sc *ShaderCache) EnableExtension(name string) {
	for _, e := range sc.exts {
		if e == name {
			return
		}
	}
	sc.exts = append(sc.exts, name)
}

// Add appends raw text to the pending shader body.
func (sc *ShaderCache) Add(text string) {
	sc.text.WriteString(text)
}

func (sc *ShaderCache) Addf(format string, args ...interface{}) {
	fmt.Fprintf(&sc.text, format, args...)
}

// HAdd appends to the header region, which precedes the body's main
// function.
func (sc *ShaderCache) HAdd(text string) {
	sc.headerText.WriteString(text)
}

func (sc *ShaderCache) HAddf(format string, args ...interface{}) {
	fmt.Fprintf(&sc.headerText, format, args...)
}

// PAddf appends to the prelude region, which precedes even the header.
func (sc *ShaderCache) PAddf(format string, args ...interface{}) {
	fmt.Fprintf(&sc.preludeText, format, args...)
}

// findUniform returns the pending uniform named name, fully reinitialized,
// appending a new slot on first use. Re-declaring a name within one pending
// shader overwrites it in place so the slot order stays stable.
func (sc *ShaderCache) findUniform(name string) *uniform {
	fresh := uniform{input: ra.Input{Name: name, DimV: 1, DimM: 1}}
	for n := range sc.uniforms {
		if sc.uniforms[n].input.Name == name {
			sc.uniforms[n] = fresh
			return &sc.uniforms[n]
		}
	}
	sc.uniforms = append(sc.uniforms, fresh)
	return &sc.uniforms[len(sc.uniforms)-1]
}

// UniformTexture declares a sampled texture, choosing the GLSL sampler type
// from the texture's shape and format.
func (sc *ShaderCache) UniformTexture(name string, tex *ra.Tex) {
	_, es := sc.backend.GLSLVersion()

	glslType := "sampler2D"
	switch {
	case tex.Params.Dimensions == 1:
		glslType = "sampler1D"
	case tex.Params.Dimensions == 3:
		glslType = "sampler3D"
	case tex.Params.NonNormalized:
		glslType = "sampler2DRect"
	case tex.Params.ExternalOES:
		glslType = "samplerExternalOES"
	case tex.Params.Format.ComponentType == ra.CTypeUInt:
		glslType = "usampler2D"
		if es {
			glslType = "highp usampler2D"
		}
	}

	u := sc.findUniform(name)
	u.input.Type = ra.InputTex
	u.glslType = glslType
	u.input.Binding = sc.nextTextureUnit
	sc.nextTextureUnit++
	u.value.Tex = tex
}

// UniformImage2DWO declares a write-only image for image load/store.
func (sc *ShaderCache) UniformImage2DWO(name string, tex *ra.Tex) {
	sc.EnableExtension("GL_ARB_shader_image_load_store")

	u := sc.findUniform(name)
	u.input.Type = ra.InputImgW
	u.glslType = "writeonly image2D"
	u.input.Binding = sc.nextImageUnit
	sc.nextImageUnit++
	u.value.Tex = tex
}

// SSBO declares a read/write storage buffer; format is the GLSL member list
// of the buffer block.
func (sc *ShaderCache) SSBO(name string, buf *ra.Buf, format string) {
	sc.EnableExtension("GL_ARB_shader_storage_buffer_object")

	u := sc.findUniform(name)
	u.input.Type = ra.InputBufRW
	u.input.Binding = sc.nextBufferBinding
	sc.nextBufferBinding++
	u.value.Buf = buf
	u.bufferFormat = format
}

func (sc *ShaderCache) UniformFloat(name string, f float32) {
	u := sc.findUniform(name)
	u.input.Type = ra.InputFloat
	u.glslType = "float"
	u.value.Floats[0] = f
}

func (sc *ShaderCache) UniformInt(name string, i int32) {
	u := sc.findUniform(name)
	u.input.Type = ra.InputInt
	u.glslType = "int"
	u.value.Int = i
}

func (sc *ShaderCache) UniformVec2(name string, v [2]float32) {
	u := sc.findUniform(name)
	u.input.Type = ra.InputFloat
	u.input.DimV = 2
	u.glslType = "vec2"
	copy(u.value.Floats[:], v[:])
}

func (sc *ShaderCache) UniformVec3(name string, v [3]float32) {
	u := sc.findUniform(name)
	u.input.Type = ra.InputFloat
	u.input.DimV = 3
	u.glslType = "vec3"
	copy(u.value.Floats[:], v[:])
}

func (sc *ShaderCache) UniformVec4(name string, v [4]float32) {
	u := sc.findUniform(name)
	u.input.Type = ra.InputFloat
	u.input.DimV = 4
	u.glslType = "vec4"
	copy(u.value.Floats[:], v[:])
}

// UniformMat2 declares a 2x2 matrix, column-major; transpose converts a
// row-major caller value.
func (sc *ShaderCache) UniformMat2(name string, transpose bool, v [4]float32) {
	u := sc.findUniform(name)
	u.input.Type = ra.InputFloat
	u.input.DimV = 2
	u.input.DimM = 2
	u.glslType = "mat2"
	copy(u.value.Floats[:], v[:])
	if transpose {
		f := &u.value.Floats
		f[0+2*1], f[1+2*0] = f[1+2*0], f[0+2*1]
	}
}

// UniformMat3 declares a 3x3 matrix, column-major; transpose converts a
// row-major caller value.
func (sc *ShaderCache) UniformMat3(name string, transpose bool, v [9]float32) {
	u := sc.findUniform(name)
	u.input.Type = ra.InputFloat
	u.input.DimV = 3
	u.input.DimM = 3
	u.glslType = "mat3"
	u.value.Floats = v
	if transpose {
		f := &u.value.Floats
		f[0+3*1], f[1+3*0] = f[1+3*0], f[0+3*1]
		f[0+3*2], f[2+3*0] = f[2+3*0], f[0+3*2]
		f[1+3*2], f[2+3*1] = f[2+3*1], f[1+3*2]
	}
}

// SetVertexFormat declares the vertex data layout and attribute names for
// the pending shader. Mandatory before dispatch.
func (sc *ShaderCache) SetVertexFormat(attribs []ra.Input, vertexStride int) {
	sc.params.VertexAttribs = append([]ra.Input(nil), attribs...)
	sc.params.VertexStride = vertexStride
}

// Blend enables blending with the given factors for the pending shader.
func (sc *ShaderCache) Blend(srcRGB, dstRGB, srcAlpha, dstAlpha ra.BlendFactor) {
	sc.params.EnableBlend = true
	sc.params.BlendSrcRGB = srcRGB
	sc.params.BlendDstRGB = dstRGB
	sc.params.BlendSrcAlpha = srcAlpha
	sc.params.BlendDstAlpha = dstAlpha
}

func vaoGLSLType(e *ra.Input) string {
	switch e.DimV {
	case 1:
		return "float"
	case 2:
		return "vec2"
	case 3:
		return "vec3"
	case 4:
		return "vec4"
	}
	panic(fmt.Sprintf("invalid vertex attribute dimension %d", e.DimV))
}

func (sc *ShaderCache) addUniformDecls(dst *strings.Builder) {
	for n := range sc.uniforms {
		u := &sc.uniforms[n]
		switch u.input.Type {
		case ra.InputInt, ra.InputFloat, ra.InputTex, ra.InputImgW:
			fmt.Fprintf(dst, "uniform %s %s;\n", u.glslType, u.input.Name)
		case ra.InputBufRW:
			fmt.Fprintf(dst, "layout(std430, binding=%d) buffer %s { %s };\n",
				u.input.Binding, u.input.Name, u.bufferFormat)
		default:
			panic(fmt.Sprintf("uniform %q has invalid type %d", u.input.Name, u.input.Type))
		}
	}
}

// updateUniform collects the value for slot n into the dispatch's value list
// if it differs from the entry's last-seen value. Resource inputs (textures,
// images, buffers) are always re-sent since the binding has to be
// re-established anyway.
func (sc *ShaderCache) updateUniform(e *entry, n int) {
	u := &sc.uniforms[n]

	changed := true
	switch u.input.Type {
	case ra.InputInt:
		changed = e.cached[n].Int != u.value.Int
	case ra.InputFloat:
		changed = e.cached[n].Floats != u.value.Floats
	}
	if !changed {
		return
	}
	e.cached[n] = u.value
	sc.values = append(sc.values, ra.InputValue{Index: n, Value: u.value})
}

// generate assembles the pending shader into full source text, finds or
// creates the cached pass for it, and collects the changed uniform values
// for the upcoming run.
func (sc *ShaderCache) generate(typ ra.RenderPassType) {
	glslVersion, es := sc.backend.GLSLVersion()
	esVersion := 0
	if es {
		esVersion = glslVersion
	}

	sc.params.Type = typ

	// Dispatch must have completed (and reset) the previous shader.
	if sc.needsReset {
		panic("shader generated without resetting the previous one")
	}
	sc.needsReset = true

	if sc.params.VertexAttribs == nil {
		panic("vertex format was never declared")
	}

	if sc.flushRequested.Swap(false) {
		sc.Flush()
	}

	var header strings.Builder
	esTag := ""
	if esVersion >= 300 {
		esTag = " es"
	}
	fmt.Fprintf(&header, "#version %d%s\n", glslVersion, esTag)
	if typ == ra.RenderPassCompute {
		// Cannot be enabled in fragment shaders; needed here.
		header.WriteString("#extension GL_ARB_compute_shader : enable\n")
	}
	for _, ext := range sc.exts {
		fmt.Fprintf(&header, "#extension %s : enable\n", ext)
	}
	if esVersion > 0 {
		header.WriteString("precision mediump float;\n")
		header.WriteString("precision mediump sampler2D;\n")
		if sc.backend.Caps()&ra.CapTex3D != 0 {
			header.WriteString("precision mediump sampler3D;\n")
		}
	}

	if glslVersion >= 130 {
		header.WriteString("#define texture1D texture\n")
		header.WriteString("#define texture3D texture\n")
	} else {
		header.WriteString("#define texture texture2D\n")
	}

	// Additional helpers.
	header.WriteString("#define LUT_POS(x, lut_size)" +
		" mix(0.5 / (lut_size), 1.0 - 0.5 / (lut_size), (x))\n")

	vertIn, vertOut, fragIn := "in", "out", "in"
	if glslVersion < 130 {
		vertIn, vertOut, fragIn = "attribute", "varying", "varying"
	}

	var vert, frag, comp string

	if typ == ra.RenderPassRaster {
		// We don't use the vertex shader, so just set up a dummy that
		// passes through the vertex array attributes.
		var vertHead, vertBody, fragVaos strings.Builder
		vertHead.WriteString(header.String())
		vertBody.WriteString("void main() {\n")
		for n := range sc.params.VertexAttribs {
			e := &sc.params.VertexAttribs[n]
			glslType := vaoGLSLType(e)
			if e.Name == "position" {
				// Rasterization needs the clip-space magic variable.
				if e.DimV != 2 || e.Type != ra.InputFloat {
					panic("position attribute must be a float vec2")
				}
				fmt.Fprintf(&vertHead, "%s vec2 vertex_position;\n", vertIn)
				vertBody.WriteString("gl_Position = vec4(vertex_position, 1.0, 1.0);\n")
			} else {
				fmt.Fprintf(&vertHead, "%s %s vertex_%s;\n", vertIn, glslType, e.Name)
				fmt.Fprintf(&vertHead, "%s %s %s;\n", vertOut, glslType, e.Name)
				fmt.Fprintf(&vertBody, "%s = vertex_%s;\n", e.Name, e.Name)
				fmt.Fprintf(&fragVaos, "%s %s %s;\n", fragIn, glslType, e.Name)
			}
		}
		vertBody.WriteString("}\n")
		vert = vertHead.String() + vertBody.String()

		var fragText strings.Builder
		fragText.WriteString(header.String())
		if glslVersion >= 130 {
			fragText.WriteString("out vec4 out_color;\n")
		}
		fragText.WriteString(fragVaos.String())
		sc.addUniformDecls(&fragText)

		fragText.WriteString(sc.preludeText.String())
		fragText.WriteString(sc.headerText.String())

		fragText.WriteString("void main() {\n")
		// We require _all_ frag shaders to write to a "vec4 color".
		fragText.WriteString("vec4 color = vec4(0.0, 0.0, 0.0, 1.0);\n")
		fragText.WriteString(sc.text.String())
		if glslVersion >= 130 {
			fragText.WriteString("out_color = color;\n")
		} else {
			fragText.WriteString("gl_FragColor = color;\n")
		}
		fragText.WriteString("}\n")
		frag = fragText.String()

		sc.params.VertexShader = vert
		sc.params.FragShader = frag
	}

	if typ == ra.RenderPassCompute {
		var compText strings.Builder
		compText.WriteString(header.String())

		sc.addUniformDecls(&compText)

		compText.WriteString(sc.preludeText.String())
		compText.WriteString(sc.headerText.String())

		compText.WriteString("void main() {\n")
		compText.WriteString("vec4 color = vec4(0.0, 0.0, 0.0, 1.0);\n") // convenience
		compText.WriteString(sc.text.String())
		compText.WriteString("}\n")
		comp = compText.String()

		sc.params.ComputeShader = comp
	}

	// The cache key is the exact byte content of everything that affects
	// the compiled program.
	var total strings.Builder
	fmt.Fprintf(&total, "type %d\n", sc.params.Type)
	total.WriteString(frag)
	total.WriteString("\n")
	total.WriteString(vert)
	total.WriteString("\n")
	total.WriteString(comp)
	total.WriteString("\n")
	if sc.params.EnableBlend {
		fmt.Fprintf(&total, "blend %d %d %d %d\n",
			sc.params.BlendSrcRGB, sc.params.BlendDstRGB,
			sc.params.BlendSrcAlpha, sc.params.BlendDstAlpha)
	}
	key := total.String()

	var e *entry
	for _, cur := range sc.entries {
		if cur.total == key {
			e = cur
			break
		}
	}
	if e == nil {
		if len(sc.entries) == maxEntries {
			// Full flush, not per-entry LRU. Worst case is recompiling
			// every active shader at once; acceptable because reaching
			// the cap at all is rare.
			sc.Flush()
		}
		e = &entry{
			total:  key,
			timer:  core.NewTimerPool(),
			cached: make([]ra.UniformValue, len(sc.uniforms)),
		}
		for n := range sc.uniforms {
			sc.params.Inputs = append(sc.params.Inputs, sc.uniforms[n].input)
		}
		sc.createPass(e)
		sc.entries = append(sc.entries, e)
	}
	if e.pass == nil {
		return
	}

	if len(sc.uniforms) != len(e.cached) ||
		len(sc.uniforms) != len(e.pass.Params.Inputs) {
		panic("uniform list diverged from the cached pass input schema")
	}

	sc.values = sc.values[:0]
	for n := range sc.uniforms {
		sc.updateUniform(e, n)
	}

	sc.current = e
}

// createPass compiles (or loads from disk) the program for e.
func (sc *ShaderCache) createPass(e *entry) {
	params := sc.params.Copy()

	core.LogDebug("new shader program:")
	if sc.headerText.Len() > 0 {
		core.LogDebug("header:")
		core.LogSource(sc.headerText.String(), false)
		core.LogDebug("body:")
	}
	if sc.text.Len() > 0 {
		core.LogSource(sc.text.String(), false)
	}

	// The vertex shader uses mangled attribute names so the fragment
	// shader can use the real ones.
	for n := range params.VertexAttribs {
		params.VertexAttribs[n].Name = "vertex_" + params.VertexAttribs[n].Name
	}

	cacheFile := ""
	if sc.cacheDir != "" {
		cacheFile = sc.cacheFilename(e.total)
		if blob := sc.loadCachedProgram(cacheFile); blob != nil {
			core.LogDebug("trying to load shader from disk...")
			params.CachedProgram = blob
		}
	}

	loaded := params.CachedProgram
	pass, err := sc.backend.RenderPassCreate(params)
	sc.passCreations++
	if err != nil {
		core.LogError("shader compilation or linking failed: %v", err)
		sc.errorState = true
		return
	}
	e.pass = pass

	if cacheFile != "" {
		nc := pass.Params.CachedProgram
		if len(nc) > 0 && string(nc) != string(loaded) {
			sc.storeCachedProgram(cacheFile, nc)
		}
	}
}

// DispatchDraw compiles the pending shader if needed and draws vertexCount
// vertices against the whole target. Returns aggregated pass timings; a zero
// sample if the shader is broken.
func (sc *ShaderCache) DispatchDraw(target *ra.Tex, vertexData []byte,
	vertexCount int) core.PassPerf {
	defer sc.Reset()

	sc.generate(ra.RenderPassRaster)
	if sc.current == nil {
		return core.PassPerf{}
	}
	timer := sc.current.timer

	full := math.Rect{X1: target.Params.W, Y1: target.Params.H}
	run := &ra.RenderPassRunParams{
		Pass:        sc.current.pass,
		Values:      sc.values,
		Target:      target,
		VertexData:  vertexData,
		VertexCount: vertexCount,
		Viewport:    full,
		Scissors:    full,
	}

	timer.Start()
	sc.backend.RenderPassRun(run)
	timer.Stop()

	return timer.Measure()
}

// DispatchCompute compiles the pending shader if needed and dispatches
// w*h*d work groups.
func (sc *ShaderCache) DispatchCompute(w, h, d int) core.PassPerf {
	defer sc.Reset()

	sc.generate(ra.RenderPassCompute)
	if sc.current == nil {
		return core.PassPerf{}
	}
	timer := sc.current.timer

	run := &ra.RenderPassRunParams{
		Pass:          sc.current.pass,
		Values:        sc.values,
		ComputeGroups: [3]int{w, h, d},
	}

	timer.Start()
	sc.backend.RenderPassRun(run)
	timer.Stop()

	return timer.Measure()
}
