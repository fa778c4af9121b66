package ra

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/imgfmt"
)

// IsRegular reports whether the format is tightly packed with no external
// padding and the same bit size/depth in all components.
func (f *Format) IsRegular() bool {
	if f.PixelSize == 0 || f.NumComponents == 0 {
		return false
	}
	for n := 1; n < f.NumComponents; n++ {
		if f.ComponentSize[n] != f.ComponentSize[0] ||
			f.ComponentDepth[n] != f.ComponentDepth[0] {
			return false
		}
	}
	return f.ComponentSize[0]*f.NumComponents == f.PixelSize*8
}

// FindUnormFormat returns the first regular, linearly filterable unorm
// format matching the request, or nil.
func FindUnormFormat(b Backend, bytesPerComponent, nComponents int) *Format {
	for _, f := range b.Formats() {
		if f.ComponentType == CTypeUNorm && f.NumComponents == nComponents &&
			f.PixelSize == bytesPerComponent*nComponents &&
			f.ComponentDepth[0] == bytesPerComponent*8 &&
			f.LinearFilter && f.IsRegular() {
			return f
		}
	}
	return nil
}

// FindUintFormat returns the first regular unsigned-integer format matching
// the request, or nil.
func FindUintFormat(b Backend, bytesPerComponent, nComponents int) *Format {
	for _, f := range b.Formats() {
		if f.ComponentType == CTypeUInt && f.NumComponents == nComponents &&
			f.PixelSize == bytesPerComponent*nComponents &&
			f.ComponentDepth[0] == bytesPerComponent*8 &&
			f.IsRegular() {
			return f
		}
	}
	return nil
}

// FindFloat16Format returns a filterable regular format that stores float16
// internally but transfers 32 bit floats, so callers never convert on the
// CPU. Returns nil if unavailable.
func FindFloat16Format(b Backend, nComponents int) *Format {
	for _, f := range b.Formats() {
		if f.ComponentType == CTypeFloat && f.NumComponents == nComponents &&
			f.PixelSize == 4*nComponents && f.ComponentDepth[0] == 16 &&
			f.LinearFilter && f.IsRegular() {
			return f
		}
	}
	return nil
}

// FindNamedFormat looks a format up by exact name, or nil.
func FindNamedFormat(b Backend, name string) *Format {
	for _, f := range b.Formats() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// findPlaneFormat is FindUnormFormat with a fallback to an unsigned integer
// format when no fixed-point format exists (e.g. 16 bit on GLES).
func findPlaneFormat(b Backend, bytes, nChannels int) *Format {
	if f := FindUnormFormat(b, bytes, nChannels); f != nil {
		return f
	}
	return FindUintFormat(b, bytes, nChannels)
}

// ImgFmtDescFor selects the native texture formats needed to represent a
// player pixel format in a shader, one texture per plane, each with RGBA
// component order described by the descriptor. May pick integer formats for
// >8 bit content when the driver has no normalized 16 bit formats. Returns
// false if the format cannot be represented:
//   - a plane has no matching native format,
//   - the chosen depth would silently drop MSBs (LSB-padded content on a
//     shallower texture), or
//   - different planes resolve to incompatible component types.
//
// Backend-special formats (rgb565, uyvy style) bypass decomposition and
// return the backend's fixed descriptor. The result depends only on the
// pixel format and the registered format set, so it is deterministic.
func ImgFmtDescFor(b Backend, format imgfmt.ImageFormat) (*ImgFmtDesc, bool) {
	if layout, ok := imgfmt.RegularLayoutFor(format); ok {
		res := &ImgFmtDesc{
			NumPlanes:     layout.NumPlanes,
			ComponentBits: layout.ComponentSize * 8,
			ComponentPad:  layout.ComponentPad,
			ChromaW:       layout.ChromaW,
			ChromaH:       layout.ChromaH,
		}
		ctype := CTypeUnknown
		for n := 0; n < layout.NumPlanes; n++ {
			plane := &layout.Planes[n]
			res.Planes[n] = findPlaneFormat(b, layout.ComponentSize, plane.NumComponents)
			if res.Planes[n] == nil {
				return nil, false
			}
			for i := 0; i < plane.NumComponents; i++ {
				res.Components[n][i] = plane.Components[i]
			}
			// Dropping LSBs when shifting would lead to dropped MSBs.
			if res.ComponentBits > res.Planes[n].ComponentDepth[0] &&
				res.ComponentPad < 0 {
				return nil, false
			}
			if ctype != CTypeUnknown && ctype != res.Planes[n].ComponentType {
				return nil, false
			}
			ctype = res.Planes[n].ComponentType
		}
		return res, true
	}

	for _, f := range b.Formats() {
		if f.SpecialImageFormat == format && f.SpecialDesc != nil {
			desc := *f.SpecialDesc
			return &desc, true
		}
	}

	return nil, false
}

// DescCache memoizes ImgFmtDescFor per pixel format. The format table is
// immutable after backend init, so entries never need invalidation.
type DescCache struct {
	backend Backend
	descs   map[imgfmt.ImageFormat]*ImgFmtDesc
	known   map[imgfmt.ImageFormat]bool
}

func NewDescCache(b Backend) *DescCache {
	return &DescCache{
		backend: b,
		descs:   make(map[imgfmt.ImageFormat]*ImgFmtDesc),
		known:   make(map[imgfmt.ImageFormat]bool),
	}
}

// Lookup resolves a pixel format, consulting the cache first.
func (dc *DescCache) Lookup(format imgfmt.ImageFormat) (*ImgFmtDesc, bool) {
	if dc.known[format] {
		desc := dc.descs[format]
		return desc, desc != nil
	}
	desc, ok := ImgFmtDescFor(dc.backend, format)
	dc.known[format] = true
	if ok {
		dc.descs[format] = desc
	}
	return desc, ok
}

// Supported reports whether the active backend can display the pixel format
// directly, without CPU-side conversion. Used by upstream video-format
// negotiation.
func (dc *DescCache) Supported(format imgfmt.ImageFormat) bool {
	_, ok := dc.Lookup(format)
	return ok
}

// DumpTexFormats logs the native texture-format table. Debug-level gated,
// human-readable only.
func DumpTexFormats(b Backend) {
	if !core.LogLevelEnabled("debug") {
		return
	}
	core.LogDebug("Texture formats:")
	core.LogDebug("  NAME       COMP*TYPE SIZE        DEPTH PER COMP.")
	for _, f := range b.Formats() {
		var cl strings.Builder
		for i := 0; i < f.NumComponents; i++ {
			if i > 0 {
				cl.WriteString(" ")
			}
			fmt.Fprintf(&cl, "%d", f.ComponentSize[i])
			if f.ComponentSize[i] != f.ComponentDepth[i] {
				fmt.Fprintf(&cl, "/%d", f.ComponentDepth[i])
			}
		}
		core.LogDebug("  %-10s %d*%s %3dB %s %s %s {%s}", f.Name,
			f.NumComponents, f.ComponentType, f.PixelSize,
			flagStr(f.LuminanceAlpha, "LA"),
			flagStr(f.LinearFilter, "LF"),
			flagStr(f.Renderable, "CR"),
			cl.String())
	}
	core.LogDebug(" LA = LUMINANCE_ALPHA hack format")
	core.LogDebug(" LF = linear filterable")
	core.LogDebug(" CR = can be used for render targets")
}

func flagStr(set bool, tag string) string {
	if set {
		return tag
	}
	return "  "
}

// DescString renders an ImgFmtDesc in the compact single-line form used by
// the diagnostic dumps.
func (desc *ImgFmtDesc) DescString() string {
	var pl, pf strings.Builder
	for n := 0; n < desc.NumPlanes; n++ {
		if n > 0 {
			pl.WriteString("/")
			pf.WriteString("/")
		}
		comps := []byte{}
		for i := 0; i < 4; i++ {
			comps = append(comps, "_rgba"[desc.Components[n][i]])
		}
		for len(comps) > 1 && comps[len(comps)-1] == '_' {
			comps = comps[:len(comps)-1]
		}
		pl.Write(comps)
		pf.WriteString(desc.Planes[n].Name)
	}
	return fmt.Sprintf("%d planes %dx%d %d/%d [%s] (%s)",
		desc.NumPlanes, desc.ChromaW, desc.ChromaH,
		desc.ComponentBits, desc.ComponentPad, pf.String(), pl.String())
}

// DumpImgFmtDesc logs a single resolved plane mapping.
func DumpImgFmtDesc(desc *ImgFmtDesc) {
	core.LogDebug("%s", desc.DescString())
}

// DumpImgFmts sweeps every known player pixel format and logs whether and
// how the backend can represent it.
func DumpImgFmts(b Backend) {
	if !core.LogLevelEnabled("debug") {
		return
	}
	core.LogDebug("Image formats:")
	for _, f := range imgfmt.All() {
		if desc, ok := ImgFmtDescFor(b, f); ok {
			core.LogDebug("  %s => %s", f, desc.DescString())
		} else {
			core.LogDebug("  %s", f)
		}
	}
}
