package opengl

import (
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/ra"
)

// glTex is the backend state of one texture.
type glTex struct {
	target  uint32
	texture uint32
	fbo     uint32
	// ownObjects is false for wrapped textures; destruction must then
	// leave the native handles alone.
	ownObjects     bool
	internalFormat int32
	format         uint32
	typ            uint32
	pbo            pboPool
}

func (b *backend) TexCreate(params *ra.TexParams) (*ra.Tex, error) {
	gl := b.gl

	tex := &ra.Tex{Params: *params}
	texGL := &glTex{ownObjects: true}
	tex.Priv = texGL

	glFmt := params.Format.Priv.(*glFormat)
	texGL.internalFormat = glFmt.internalFormat
	texGL.format = glFmt.format
	texGL.typ = glFmt.typ
	switch params.Dimensions {
	case 1:
		texGL.target = glTexture1D
	case 2:
		texGL.target = glTexture2D
	case 3:
		texGL.target = glTexture3D
	default:
		panic(fmt.Sprintf("invalid texture dimensions %d", params.Dimensions))
	}
	if params.NonNormalized {
		if params.Dimensions != 2 {
			panic("non-normalized coords require a 2D texture")
		}
		texGL.target = glTextureRectangle
	}

	gl.GenTextures(1, &texGL.texture)
	gl.BindTexture(texGL.target, texGL.texture)

	filter := int32(glNearest)
	if params.SrcLinear {
		filter = glLinear
	}
	wrap := int32(glClampToEdge)
	if params.SrcRepeat {
		wrap = glRepeat
	}
	gl.TexParameteri(texGL.target, glTextureMinFilter, filter)
	gl.TexParameteri(texGL.target, glTextureMagFilter, filter)
	gl.TexParameteri(texGL.target, glTextureWrapS, wrap)
	if params.Dimensions > 1 {
		gl.TexParameteri(texGL.target, glTextureWrapT, wrap)
	}
	if params.Dimensions > 2 {
		gl.TexParameteri(texGL.target, glTextureWrapR, wrap)
	}

	gl.PixelStorei(glUnpackAlignment, 1)
	initial := dataPtr(params.InitialData)
	switch params.Dimensions {
	case 1:
		gl.TexImage1D(texGL.target, 0, texGL.internalFormat, int32(params.W),
			0, texGL.format, texGL.typ, initial)
	case 2:
		gl.TexImage2D(texGL.target, 0, texGL.internalFormat, int32(params.W),
			int32(params.H), 0, texGL.format, texGL.typ, initial)
	case 3:
		gl.TexImage3D(texGL.target, 0, texGL.internalFormat, int32(params.W),
			int32(params.H), int32(params.D), 0, texGL.format, texGL.typ, initial)
	}
	gl.PixelStorei(glUnpackAlignment, 4)

	gl.BindTexture(texGL.target, 0)

	tex.Params.InitialData = nil

	b.checkError("after creating texture")

	if tex.Params.RenderDst {
		if !tex.Params.Format.Renderable {
			b.TexDestroy(tex)
			return nil, fmt.Errorf("format %q is not renderable: %w",
				tex.Params.Format.Name, core.ErrBadFormat)
		}

		gl.GenFramebuffers(1, &texGL.fbo)
		gl.BindFramebuffer(glFramebuffer, texGL.fbo)
		gl.FramebufferTexture2D(glFramebuffer, glColorAttachment0,
			glTexture2D, texGL.texture, 0)
		status := gl.CheckFramebufferStatus(glFramebuffer)
		gl.BindFramebuffer(glFramebuffer, 0)

		if status != glFramebufferComplete {
			b.TexDestroy(tex)
			return nil, fmt.Errorf("framebuffer completeness check failed (status=%d): %w",
				status, core.ErrIncomplete)
		}

		b.checkError("after creating framebuffer")
	}

	return tex, nil
}

func (b *backend) TexDestroy(tex *ra.Tex) {
	gl := b.gl
	texGL := tex.Priv.(*glTex)

	if texGL.ownObjects {
		if texGL.fbo != 0 {
			gl.DeleteFramebuffers(1, &texGL.fbo)
		}
		gl.DeleteTextures(1, &texGL.texture)
	}
	texGL.pbo.uninit(gl)
	tex.Priv = nil
}

func (b *backend) TexUpload(tex *ra.Tex, src []byte, stride int,
	region *math.Rect, flags ra.UploadFlags, buf *ra.StagingBuffer) error {
	gl := b.gl
	texGL := tex.Priv.(*glTex)
	full := math.Rect{X0: 0, Y0: 0, X1: tex.Params.W, Y1: tex.Params.H}

	var bufGL *glStagingBuffer
	var srcPtr unsafe.Pointer
	if buf != nil {
		bufGL = buf.Priv.(*glStagingBuffer)
		gl.BindBuffer(glPixelUnpackBuffer, bufGL.pbo)
		// With a bound unpack buffer, the "pointer" is a byte offset
		// into the buffer.
		srcPtr = unsafe.Pointer(uintptr(unsafe.Pointer(&src[0])) -
			uintptr(unsafe.Pointer(&buf.Data[0])))
	} else {
		srcPtr = dataPtr(src)
	}

	gl.BindTexture(texGL.target, texGL.texture)

	switch tex.Params.Dimensions {
	case 1:
		if region != nil {
			panic("1D uploads replace the whole image")
		}
		gl.TexImage1D(texGL.target, 0, texGL.internalFormat,
			int32(tex.Params.W), 0, texGL.format, texGL.typ, srcPtr)
	case 2:
		if region == nil {
			region = &full
		}
		if buf != nil {
			b.uploadRows(texGL, srcPtr, stride, *region)
		} else {
			texGL.pbo.uploadTex(b, texGL, b.cfg.UsePBO, src, stride, *region)
		}
	case 3:
		if region != nil {
			panic("3D uploads replace the whole image")
		}
		gl.PixelStorei(glUnpackAlignment, 1)
		gl.TexImage3D(glTexture3D, 0, texGL.internalFormat, int32(tex.Params.W),
			int32(tex.Params.H), int32(tex.Params.D), 0, texGL.format,
			texGL.typ, srcPtr)
		gl.PixelStorei(glUnpackAlignment, 4)
	}

	gl.BindTexture(texGL.target, 0)

	if buf != nil {
		gl.BindBuffer(glPixelUnpackBuffer, 0)
		// Make sure the buffer is not reused until the GPU is done with
		// it. If a previous upload is still pending, the new fence covers
		// that one as well.
		if bufGL.fence != 0 {
			gl.DeleteSync(bufGL.fence)
		}
		bufGL.fence = gl.FenceSync(glSyncGPUCommandsComplete, 0)
	}

	return nil
}

// uploadRows issues a sub-image upload honoring the source stride. The
// pixel size of the bound format decides whether the stride can be
// expressed with UNPACK_ROW_LENGTH directly.
func (b *backend) uploadRows(texGL *glTex, src unsafe.Pointer, stride int, rc math.Rect) {
	gl := b.gl
	pixelSize := glBytesPerPixel(texGL.format, texGL.typ)
	packed := rc.W() * pixelSize

	gl.PixelStorei(glUnpackAlignment, 1)
	if stride != packed && pixelSize > 0 && stride%pixelSize == 0 {
		gl.PixelStorei(glUnpackRowLength, int32(stride/pixelSize))
		defer gl.PixelStorei(glUnpackRowLength, 0)
	}
	gl.TexSubImage2D(texGL.target, 0, int32(rc.X0), int32(rc.Y0),
		int32(rc.W()), int32(rc.H()), texGL.format, texGL.typ, src)
	gl.PixelStorei(glUnpackAlignment, 4)
}

// pboPool is a small ring of streaming pixel buffers used to decouple
// plain CPU uploads from the GPU's consumption of earlier frames.
type pboPool struct {
	buffers [2]uint32
	index   int
	size    int
}

func (p *pboPool) uninit(gl *GL) {
	for i := range p.buffers {
		if p.buffers[i] != 0 {
			gl.DeleteBuffers(1, &p.buffers[i])
			p.buffers[i] = 0
		}
	}
	p.size = 0
}

// uploadTex copies src into the texture region, optionally staging the data
// through a rotating PBO. Falls back to a direct upload when PBOs are
// disabled or unavailable.
func (p *pboPool) uploadTex(b *backend, texGL *glTex, usePBO bool,
	src []byte, stride int, rc math.Rect) {
	gl := b.gl
	pixelSize := glBytesPerPixel(texGL.format, texGL.typ)
	needed := rc.H() * stride

	if !usePBO || gl.MapBufferRange == nil || needed <= 0 || pixelSize == 0 {
		b.uploadRows(texGL, dataPtr(src), stride, rc)
		return
	}

	if p.size < needed {
		p.uninit(gl)
		p.size = needed
	}
	pbo := &p.buffers[p.index]
	p.index = (p.index + 1) % len(p.buffers)

	if *pbo == 0 {
		gl.GenBuffers(1, pbo)
	}
	gl.BindBuffer(glPixelUnpackBuffer, *pbo)
	// Orphan the previous contents so the copy never waits for the GPU.
	gl.BufferData(glPixelUnpackBuffer, p.size, nil, glStreamDraw)
	gl.BufferSubData(glPixelUnpackBuffer, 0, needed, dataPtr(src[:needed]))
	b.uploadRows(texGL, nil, stride, rc)
	gl.BindBuffer(glPixelUnpackBuffer, 0)
}

var fboDummyFormat = &ra.Format{
	Name:       "unknown_fbo",
	Priv:       &glFormat{name: "unknown", format: glRGBA, flags: fCR},
	Renderable: true,
}

var texDummyFormat = &ra.Format{
	Name:         "unknown_tex",
	Priv:         &glFormat{name: "unknown", format: glRGBA, flags: fTF},
	Renderable:   true,
	LinearFilter: true,
}

// findSimilarFormat matches a registered format against native hints; zero
// hint components act as wildcards.
func (b *backend) findSimilarFormat(iformat int32, format, typ uint32) *ra.Format {
	if iformat == 0 && format == 0 && typ == 0 {
		return nil
	}
	for _, f := range b.formats {
		glFmt := f.Priv.(*glFormat)
		if (glFmt.internalFormat == iformat || iformat == 0) &&
			(glFmt.format == format || format == 0) &&
			(glFmt.typ == typ || typ == 0) {
			return f
		}
	}
	return nil
}

func (b *backend) wrapTexFBO(glObj uint32, isFBO bool, glTarget uint32,
	iformat int32, format, typ uint32, w, h int) *ra.Tex {
	raFormat := b.findSimilarFormat(iformat, format, typ)
	if raFormat == nil {
		if isFBO {
			raFormat = fboDummyFormat
		} else {
			raFormat = texDummyFormat
		}
	}

	tex := &ra.Tex{
		Params: ra.TexParams{
			Dimensions:    2,
			W:             w,
			H:             h,
			D:             1,
			Format:        raFormat,
			RenderDst:     isFBO,
			RenderSrc:     !isFBO,
			NonNormalized: glTarget == glTextureRectangle,
			ExternalOES:   glTarget == glTextureExternal,
		},
	}

	texGL := &glTex{
		target:         glTarget,
		internalFormat: iformat,
		format:         format,
		typ:            typ,
	}
	if isFBO {
		texGL.fbo = glObj
	} else {
		texGL.texture = glObj
	}
	tex.Priv = texGL

	return tex
}

// WrapTexture adapts an existing GL texture into a ra.Tex without taking
// ownership. format hints can be 0, in which case possibly nonsensical
// fallbacks are chosen. 2D targets only; destroying the wrapper never
// deletes the passed texture.
func WrapTexture(b ra.Backend, glTexture, glTarget uint32, iformat int32,
	format, typ uint32, w, h int) *ra.Tex {
	return b.(*backend).wrapTexFBO(glTexture, false, glTarget, iformat, format, typ, w, h)
}

// WrapFramebuffer adapts an existing framebuffer (0 for the default one)
// into a render-destination ra.Tex without taking ownership.
func WrapFramebuffer(b ra.Backend, glFBO uint32, w, h int) *ra.Tex {
	return b.(*backend).wrapTexFBO(glFBO, true, 0, 0, glRGBA, 0, w, h)
}

func (b *backend) Clear(dst *ra.Tex, color [4]float32, scissor math.Rect) {
	gl := b.gl

	if !dst.Params.RenderDst {
		panic("clear target is not a render destination")
	}
	dstGL := dst.Priv.(*glTex)

	gl.BindFramebuffer(glFramebuffer, dstGL.fbo)

	gl.Scissor(int32(scissor.X0), int32(scissor.Y0),
		int32(scissor.W()), int32(scissor.H()))

	gl.Enable(glScissorTest)
	gl.ClearColor(color[0], color[1], color[2], color[3])
	gl.Clear(glColorBufferBit)
	gl.Disable(glScissorTest)

	gl.BindFramebuffer(glDrawFramebuffer, 0)
}

func (b *backend) Blit(dst, src *ra.Tex, dstX, dstY int, srcRect math.Rect) {
	gl := b.gl

	if !dst.Params.RenderDst {
		panic("blit destination is not a render destination")
	}
	// The blit path binds the source as a framebuffer too.
	if !src.Params.RenderDst {
		panic("blit source has no framebuffer binding")
	}

	srcGL := src.Priv.(*glTex)
	dstGL := dst.Priv.(*glTex)

	w := srcRect.W()
	h := srcRect.H()

	gl.BindFramebuffer(glReadFramebuffer, srcGL.fbo)
	gl.BindFramebuffer(glDrawFramebuffer, dstGL.fbo)
	gl.BlitFramebuffer(int32(srcRect.X0), int32(srcRect.Y0),
		int32(srcRect.X1), int32(srcRect.Y1),
		int32(dstX), int32(dstY), int32(dstX+w), int32(dstY+h),
		glColorBufferBit, glNearest)
	gl.BindFramebuffer(glReadFramebuffer, 0)
	gl.BindFramebuffer(glDrawFramebuffer, 0)
}

// dataPtr returns a GL-consumable pointer for a byte slice, nil for empty.
func dataPtr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Pointer(&data[0])
}
