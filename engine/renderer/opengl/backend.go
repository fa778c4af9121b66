package opengl

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/imgfmt"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/ra"
)

// Config tunes backend behavior that the player selects at startup.
type Config struct {
	// UsePBO routes plain texture uploads through a streaming pixel
	// buffer to avoid stalling the pipeline.
	UsePBO bool
}

type backend struct {
	gl         *GL
	cfg        Config
	caps       ra.Caps
	formats    []*ra.Format
	maxTexSize int
	// depth16 is the effective bit depth of 16 bit unorm textures on this
	// driver (naive approximation, can be 8 on mobile).
	depth16 int
}

// New builds a render abstraction backend over an initialized GL function
// table. Fails below OpenGL 2.1 / OpenGL ES 2.0.
func New(gl *GL, cfg Config) (ra.Backend, error) {
	if gl.Version < 210 && gl.ES < 200 {
		return nil, fmt.Errorf("at least OpenGL 2.1 or OpenGL ES 2.0 required: %w", core.ErrUnsupported)
	}

	b := &backend{
		gl:      gl,
		cfg:     cfg,
		depth16: determine16BitDepth(gl),
	}

	if gl.ES == 0 {
		b.caps |= ra.CapTex1D
	}
	if gl.Version >= 210 || gl.ES >= 300 {
		b.caps |= ra.CapTex3D
	}
	if gl.BlitFramebuffer != nil {
		b.caps |= ra.CapBlit
	}
	if gl.DispatchCompute != nil {
		b.caps |= ra.CapCompute
	}
	if gl.MapBufferRange != nil {
		b.caps |= ra.CapPBO
	}
	if gl.Version >= 430 {
		b.caps |= ra.CapNestedArray
	}

	core.LogDebug("16 bit texture depth: %d", b.depth16)

	features := featureFlags(gl)
	for i := range glFormats {
		glFmt := &glFormats[i]
		if glFmt.flags&features == 0 {
			continue
		}

		rf := &ra.Format{
			Name:           glFmt.name,
			Priv:           glFmt,
			ComponentType:  glFormatCType(glFmt),
			NumComponents:  glFormatComponents(glFmt.format),
			PixelSize:      glBytesPerPixel(glFmt.format, glFmt.typ),
			LuminanceAlpha: glFmt.format == glLuminanceAlpha,
			LinearFilter:   glFmt.flags&fTF != 0,
			Renderable:     glFmt.flags&fCR != 0,
		}

		csize := glComponentSize(glFmt.typ) * 8
		depth := csize
		if rf.ComponentType == ra.CTypeUNorm {
			depth = math.Min(csize, b.depth16) // naive/approximate
		}
		if glFmt.flags&fF16 != 0 {
			depth = 16
			csize = 32 // always upload as 32 bit floats (simpler for us)
		}
		for i := 0; i < rf.NumComponents; i++ {
			rf.ComponentSize[i] = csize
			rf.ComponentDepth[i] = depth
		}

		// Special formats for which OpenGL happens to have direct support.
		switch rf.Name {
		case "rgb565":
			rf.SpecialImageFormat = imgfmt.ImageFormatRGB565
			desc := &ra.ImgFmtDesc{NumPlanes: 1, ChromaW: 1, ChromaH: 1}
			desc.Planes[0] = rf
			for i := 0; i < 3; i++ {
				desc.Components[0][i] = uint8(i + 1)
			}
			rf.SpecialDesc = desc
		case "appleyp":
			rf.SpecialImageFormat = imgfmt.ImageFormatUYVY
			desc := &ra.ImgFmtDesc{NumPlanes: 1, ChromaW: 1, ChromaH: 1}
			desc.Planes[0] = rf
			desc.Components[0][0] = 3
			desc.Components[0][1] = 1
			desc.Components[0][2] = 2
			rf.SpecialDesc = desc
		}

		b.formats = append(b.formats, rf)
	}

	var maxWH int32
	gl.GetIntegerv(glMaxTextureSize, &maxWH)
	b.maxTexSize = int(maxWH)

	gl.Disable(glDither)

	return b, nil
}

func glFormatCType(f *glFormat) ra.ComponentType {
	switch {
	case isIntegerFormat(f.format):
		return ra.CTypeUInt
	case f.typ == glFloat:
		return ra.CTypeFloat
	default:
		return ra.CTypeUNorm
	}
}

func (b *backend) Destroy() {
	b.formats = nil
}

func (b *backend) Caps() ra.Caps { return b.caps }

func (b *backend) GLSLVersion() (int, bool) {
	return b.gl.GLSLVersion, b.gl.ES > 0
}

func (b *backend) Formats() []*ra.Format { return b.formats }

func (b *backend) MaxTextureSize() int { return b.maxTexSize }
