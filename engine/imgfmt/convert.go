package imgfmt

import (
	"image"

	"golang.org/x/image/draw"
)

// ConvertToRGBA converts an arbitrary decoded image to tightly packed
// 8-bit RGBA. This is the CPU-side fallback used when format negotiation
// reports that the backend cannot sample a pixel format directly.
func ConvertToRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 {
		return rgba
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}

// ScaleRGBA resizes an RGBA image with bilinear filtering. Used by callers
// that must shrink CPU-converted frames before upload.
func ScaleRGBA(src *image.RGBA, w, h int) *image.RGBA {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
