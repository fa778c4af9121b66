// Package imgfmt enumerates the player-level pixel formats the video
// pipeline hands to the render abstraction, and describes their CPU memory
// layout so the backend can negotiate native texture formats per plane.
package imgfmt

// ImageFormat identifies a player-level pixel format.
type ImageFormat int

const (
	ImageFormatUnknown ImageFormat = iota
	ImageFormatGray8
	ImageFormatGray16
	ImageFormatYUV420P
	ImageFormatYUV422P
	ImageFormatYUV444P
	ImageFormatYUV420P10
	ImageFormatYUV420P16
	ImageFormatNV12
	ImageFormatP010
	ImageFormatRGB24
	ImageFormatRGBA
	ImageFormatBGRA
	ImageFormatRGBA64
	// Packed formats with no regular per-plane layout. These can only be
	// displayed when the backend declares direct support.
	ImageFormatRGB565
	ImageFormatUYVY

	imageFormatCount
)

var imageFormatNames = map[ImageFormat]string{
	ImageFormatUnknown:   "unknown",
	ImageFormatGray8:     "gray8",
	ImageFormatGray16:    "gray16",
	ImageFormatYUV420P:   "yuv420p",
	ImageFormatYUV422P:   "yuv422p",
	ImageFormatYUV444P:   "yuv444p",
	ImageFormatYUV420P10: "yuv420p10",
	ImageFormatYUV420P16: "yuv420p16",
	ImageFormatNV12:      "nv12",
	ImageFormatP010:      "p010",
	ImageFormatRGB24:     "rgb24",
	ImageFormatRGBA:      "rgba",
	ImageFormatBGRA:      "bgra",
	ImageFormatRGBA64:    "rgba64",
	ImageFormatRGB565:    "rgb565",
	ImageFormatUYVY:      "uyvy",
}

func (f ImageFormat) String() string {
	if name, ok := imageFormatNames[f]; ok {
		return name
	}
	return "unknown"
}

// All returns every known image format, for diagnostic sweeps.
func All() []ImageFormat {
	out := make([]ImageFormat, 0, int(imageFormatCount)-1)
	for f := ImageFormatGray8; f < imageFormatCount; f++ {
		out = append(out, f)
	}
	return out
}

// PlaneLayout describes one plane of a regular pixel format. Components maps
// the plane's texture channels (in order) to image color channels, with
// 1..4 meaning R/G/B/A (or Y/U/V/A for YUV formats) and 0 meaning unused.
type PlaneLayout struct {
	NumComponents int
	Components    [4]uint8
}

// RegularLayout describes the full CPU memory organization of a pixel format
// whose planes are tightly packed arrays of equally sized components.
type RegularLayout struct {
	// ComponentSize is the byte size of one component.
	ComponentSize int
	// ComponentPad is the number of unused bits per component. Negative
	// values mean the significant bits sit in the LSBs (e.g. 10-bit
	// samples in 16-bit words stored LSB-aligned is -6).
	ComponentPad int
	NumPlanes    int
	Planes       [4]PlaneLayout
	// ChromaW/ChromaH are the horizontal/vertical subsampling factors of
	// the chroma planes (1 = not subsampled).
	ChromaW, ChromaH int
}

var regularLayouts = map[ImageFormat]RegularLayout{
	ImageFormatGray8: {
		ComponentSize: 1, NumPlanes: 1, ChromaW: 1, ChromaH: 1,
		Planes: [4]PlaneLayout{{NumComponents: 1, Components: [4]uint8{1}}},
	},
	ImageFormatGray16: {
		ComponentSize: 2, NumPlanes: 1, ChromaW: 1, ChromaH: 1,
		Planes: [4]PlaneLayout{{NumComponents: 1, Components: [4]uint8{1}}},
	},
	ImageFormatYUV420P: {
		ComponentSize: 1, NumPlanes: 3, ChromaW: 2, ChromaH: 2,
		Planes: [4]PlaneLayout{
			{NumComponents: 1, Components: [4]uint8{1}},
			{NumComponents: 1, Components: [4]uint8{2}},
			{NumComponents: 1, Components: [4]uint8{3}},
		},
	},
	ImageFormatYUV422P: {
		ComponentSize: 1, NumPlanes: 3, ChromaW: 2, ChromaH: 1,
		Planes: [4]PlaneLayout{
			{NumComponents: 1, Components: [4]uint8{1}},
			{NumComponents: 1, Components: [4]uint8{2}},
			{NumComponents: 1, Components: [4]uint8{3}},
		},
	},
	ImageFormatYUV444P: {
		ComponentSize: 1, NumPlanes: 3, ChromaW: 1, ChromaH: 1,
		Planes: [4]PlaneLayout{
			{NumComponents: 1, Components: [4]uint8{1}},
			{NumComponents: 1, Components: [4]uint8{2}},
			{NumComponents: 1, Components: [4]uint8{3}},
		},
	},
	ImageFormatYUV420P10: {
		ComponentSize: 2, ComponentPad: -6, NumPlanes: 3, ChromaW: 2, ChromaH: 2,
		Planes: [4]PlaneLayout{
			{NumComponents: 1, Components: [4]uint8{1}},
			{NumComponents: 1, Components: [4]uint8{2}},
			{NumComponents: 1, Components: [4]uint8{3}},
		},
	},
	ImageFormatYUV420P16: {
		ComponentSize: 2, NumPlanes: 3, ChromaW: 2, ChromaH: 2,
		Planes: [4]PlaneLayout{
			{NumComponents: 1, Components: [4]uint8{1}},
			{NumComponents: 1, Components: [4]uint8{2}},
			{NumComponents: 1, Components: [4]uint8{3}},
		},
	},
	ImageFormatNV12: {
		ComponentSize: 1, NumPlanes: 2, ChromaW: 2, ChromaH: 2,
		Planes: [4]PlaneLayout{
			{NumComponents: 1, Components: [4]uint8{1}},
			{NumComponents: 2, Components: [4]uint8{2, 3}},
		},
	},
	ImageFormatP010: {
		ComponentSize: 2, ComponentPad: -6, NumPlanes: 2, ChromaW: 2, ChromaH: 2,
		Planes: [4]PlaneLayout{
			{NumComponents: 1, Components: [4]uint8{1}},
			{NumComponents: 2, Components: [4]uint8{2, 3}},
		},
	},
	ImageFormatRGB24: {
		ComponentSize: 1, NumPlanes: 1, ChromaW: 1, ChromaH: 1,
		Planes: [4]PlaneLayout{{NumComponents: 3, Components: [4]uint8{1, 2, 3}}},
	},
	ImageFormatRGBA: {
		ComponentSize: 1, NumPlanes: 1, ChromaW: 1, ChromaH: 1,
		Planes: [4]PlaneLayout{{NumComponents: 4, Components: [4]uint8{1, 2, 3, 4}}},
	},
	ImageFormatBGRA: {
		ComponentSize: 1, NumPlanes: 1, ChromaW: 1, ChromaH: 1,
		Planes: [4]PlaneLayout{{NumComponents: 4, Components: [4]uint8{3, 2, 1, 4}}},
	},
	ImageFormatRGBA64: {
		ComponentSize: 2, NumPlanes: 1, ChromaW: 1, ChromaH: 1,
		Planes: [4]PlaneLayout{{NumComponents: 4, Components: [4]uint8{1, 2, 3, 4}}},
	},
}

// RegularLayoutFor returns the CPU layout of a regular pixel format. The
// second result is false for packed formats (rgb565, uyvy) and unknown ones.
func RegularLayoutFor(f ImageFormat) (RegularLayout, bool) {
	layout, ok := regularLayouts[f]
	return layout, ok
}

// ComponentBits returns the effective bit depth of one component of f, or 0
// if f has no regular layout.
func ComponentBits(f ImageFormat) int {
	layout, ok := regularLayouts[f]
	if !ok {
		return 0
	}
	bits := layout.ComponentSize * 8
	if layout.ComponentPad < 0 {
		bits += layout.ComponentPad
	}
	return bits
}
