package opengl

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/imgfmt"
	"github.com/spaghettifunk/prism/engine/renderer/ra"
)

func TestNewRejectsAncientContext(t *testing.T) {
	gl, _ := newFakeGL(200)
	_, err := New(gl, Config{})
	if !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("New on GL 2.0 = %v, want ErrUnsupported", err)
	}
}

func TestNewCaps(t *testing.T) {
	b, f := newTestBackend(Config{})

	want := ra.CapTex1D | ra.CapTex3D | ra.CapBlit | ra.CapCompute |
		ra.CapPBO | ra.CapNestedArray
	if b.Caps() != want {
		t.Errorf("Caps() = %b, want %b", b.Caps(), want)
	}
	if b.MaxTextureSize() != 16384 {
		t.Errorf("MaxTextureSize() = %d, want 16384", b.MaxTextureSize())
	}
	if ver, es := b.GLSLVersion(); ver != 460 || es {
		t.Errorf("GLSLVersion() = %d/%v, want 460/false", ver, es)
	}
	// Dithering would mangle high bit-depth output.
	if !f.called("Disable(0x0BD0)") {
		t.Error("dithering was not disabled at init")
	}
}

func TestNewLimitedCaps(t *testing.T) {
	gl, _ := newFakeGL(210)
	b, err := New(gl, Config{})
	if err != nil {
		t.Fatal(err)
	}
	caps := b.Caps()
	for _, c := range []ra.Caps{ra.CapBlit, ra.CapCompute, ra.CapPBO, ra.CapNestedArray} {
		if caps&c != 0 {
			t.Errorf("GL 2.1 backend advertises cap %b", c)
		}
	}
	if caps&ra.CapTex1D == 0 || caps&ra.CapTex3D == 0 {
		t.Error("GL 2.1 backend should still do 1D and 3D textures")
	}
}

func TestFormatEnumeration(t *testing.T) {
	b, _ := newTestBackend(Config{})

	cases := []struct {
		name       string
		ctype      ra.ComponentType
		comps      int
		pixelSize  int
		depth      int
		renderable bool
		linear     bool
	}{
		{"r8", ra.CTypeUNorm, 1, 1, 8, true, true},
		{"rg8", ra.CTypeUNorm, 2, 2, 8, true, true},
		{"rgba8", ra.CTypeUNorm, 4, 4, 8, true, true},
		{"r16", ra.CTypeUNorm, 1, 2, 16, true, true},
		{"rgba16f", ra.CTypeFloat, 4, 16, 16, true, true},
		{"r32f", ra.CTypeFloat, 1, 4, 32, true, true},
		{"r16ui", ra.CTypeUInt, 1, 2, 16, true, false},
		// Packed transfer type, so no per-component size.
		{"rgb565", ra.CTypeUNorm, 3, 2, 0, true, true},
	}
	for _, tc := range cases {
		f := ra.FindNamedFormat(b, tc.name)
		if f == nil {
			t.Errorf("format %q missing on GL 4.6", tc.name)
			continue
		}
		if f.ComponentType != tc.ctype {
			t.Errorf("%s: ComponentType = %s, want %s", tc.name, f.ComponentType, tc.ctype)
		}
		if f.NumComponents != tc.comps {
			t.Errorf("%s: NumComponents = %d, want %d", tc.name, f.NumComponents, tc.comps)
		}
		if f.PixelSize != tc.pixelSize {
			t.Errorf("%s: PixelSize = %d, want %d", tc.name, f.PixelSize, tc.pixelSize)
		}
		if f.ComponentDepth[0] != tc.depth {
			t.Errorf("%s: ComponentDepth = %d, want %d", tc.name, f.ComponentDepth[0], tc.depth)
		}
		if f.Renderable != tc.renderable {
			t.Errorf("%s: Renderable = %v, want %v", tc.name, f.Renderable, tc.renderable)
		}
		if f.LinearFilter != tc.linear {
			t.Errorf("%s: LinearFilter = %v, want %v", tc.name, f.LinearFilter, tc.linear)
		}
	}

	// Legacy luminance formats must not leak into a modern context.
	for _, name := range []string{"l8", "la8", "l16", "la16"} {
		if ra.FindNamedFormat(b, name) != nil {
			t.Errorf("legacy format %q present on GL 4.6", name)
		}
	}
}

func TestFormatEnumerationLegacy(t *testing.T) {
	gl, _ := newFakeGL(210)
	b, err := New(gl, Config{})
	if err != nil {
		t.Fatal(err)
	}

	l8 := ra.FindNamedFormat(b, "l8")
	if l8 == nil {
		t.Fatal("l8 missing on GL 2.1")
	}
	if l8.Renderable {
		t.Error("l8 must not be renderable")
	}
	la8 := ra.FindNamedFormat(b, "la8")
	if la8 == nil || !la8.LuminanceAlpha {
		t.Error("la8 must carry the LuminanceAlpha marker")
	}
	if ra.FindNamedFormat(b, "r8") != nil {
		t.Error("r8 present on GL 2.1")
	}
}

func TestFloat16TransferSize(t *testing.T) {
	b, _ := newTestBackend(Config{})

	f := ra.FindFloat16Format(b, 2)
	if f == nil {
		t.Fatal("FindFloat16Format(2) = nil")
	}
	if f.Name != "rg16f" {
		t.Errorf("FindFloat16Format(2) = %q, want rg16f", f.Name)
	}
	// f16 formats transfer full floats so callers never pack halfs.
	if f.ComponentSize[0] != 32 || f.ComponentDepth[0] != 16 {
		t.Errorf("rg16f size/depth = %d/%d, want 32/16",
			f.ComponentSize[0], f.ComponentDepth[0])
	}
	if f.PixelSize != 8 {
		t.Errorf("rg16f PixelSize = %d, want 8", f.PixelSize)
	}
}

func TestFindFormats(t *testing.T) {
	b, _ := newTestBackend(Config{})

	cases := []struct {
		bytes, comps int
		find         func(ra.Backend, int, int) *ra.Format
		want         string
	}{
		{1, 1, ra.FindUnormFormat, "r8"},
		{1, 2, ra.FindUnormFormat, "rg8"},
		{1, 4, ra.FindUnormFormat, "rgba8"},
		{2, 1, ra.FindUnormFormat, "r16"},
		{2, 4, ra.FindUnormFormat, "rgba16"},
		{1, 1, ra.FindUintFormat, "r8ui"},
		{2, 2, ra.FindUintFormat, "rg16ui"},
	}
	for _, tc := range cases {
		f := tc.find(b, tc.bytes, tc.comps)
		if f == nil {
			t.Errorf("find(%d, %d) = nil, want %q", tc.bytes, tc.comps, tc.want)
			continue
		}
		if f.Name != tc.want {
			t.Errorf("find(%d, %d) = %q, want %q", tc.bytes, tc.comps, f.Name, tc.want)
		}
	}

	// No 3-byte-per-component formats exist.
	if f := ra.FindUnormFormat(b, 3, 1); f != nil {
		t.Errorf("FindUnormFormat(3, 1) = %q, want nil", f.Name)
	}
}

func TestImgFmtDesc(t *testing.T) {
	b, _ := newTestBackend(Config{})

	desc, ok := ra.ImgFmtDescFor(b, imgfmt.ImageFormatYUV420P)
	if !ok {
		t.Fatal("yuv420p unsupported on GL 4.6")
	}
	if desc.NumPlanes != 3 {
		t.Fatalf("yuv420p planes = %d, want 3", desc.NumPlanes)
	}
	for n := 0; n < 3; n++ {
		if desc.Planes[n].Name != "r8" {
			t.Errorf("yuv420p plane %d = %q, want r8", n, desc.Planes[n].Name)
		}
	}
	if desc.ChromaW != 2 || desc.ChromaH != 2 {
		t.Errorf("yuv420p chroma = %dx%d, want 2x2", desc.ChromaW, desc.ChromaH)
	}
	if desc.ComponentBits != 8 || desc.ComponentPad != 0 {
		t.Errorf("yuv420p bits/pad = %d/%d, want 8/0", desc.ComponentBits, desc.ComponentPad)
	}

	desc, ok = ra.ImgFmtDescFor(b, imgfmt.ImageFormatP010)
	if !ok {
		t.Fatal("p010 unsupported on GL 4.6")
	}
	if desc.Planes[0].Name != "r16" || desc.Planes[1].Name != "rg16" {
		t.Errorf("p010 planes = %q/%q, want r16/rg16",
			desc.Planes[0].Name, desc.Planes[1].Name)
	}
	if desc.ComponentBits != 16 || desc.ComponentPad != -6 {
		t.Errorf("p010 bits/pad = %d/%d, want 16/-6", desc.ComponentBits, desc.ComponentPad)
	}
	if desc.Components[1][0] != 2 || desc.Components[1][1] != 3 {
		t.Errorf("p010 chroma mapping = %v, want [2 3 0 0]", desc.Components[1])
	}

	desc, ok = ra.ImgFmtDescFor(b, imgfmt.ImageFormatBGRA)
	if !ok {
		t.Fatal("bgra unsupported on GL 4.6")
	}
	if desc.Components[0] != [4]uint8{3, 2, 1, 4} {
		t.Errorf("bgra mapping = %v, want [3 2 1 4]", desc.Components[0])
	}
}

func TestImgFmtDescSpecial(t *testing.T) {
	b, _ := newTestBackend(Config{})

	// rgb565 has no regular layout; the backend supplies a fixed
	// single-plane descriptor instead.
	desc, ok := ra.ImgFmtDescFor(b, imgfmt.ImageFormatRGB565)
	if !ok {
		t.Fatal("rgb565 unsupported on GL 4.6")
	}
	if desc.NumPlanes != 1 || desc.Planes[0].Name != "rgb565" {
		t.Errorf("rgb565 desc = %d planes, plane %q", desc.NumPlanes, desc.Planes[0].Name)
	}

	// uyvy needs the apple extension, which the fake does not advertise.
	if _, ok := ra.ImgFmtDescFor(b, imgfmt.ImageFormatUYVY); ok {
		t.Error("uyvy should be unsupported without GL_APPLE_rgb_422")
	}
}

func TestImgFmtDescDeterministic(t *testing.T) {
	b, _ := newTestBackend(Config{})

	first, ok := ra.ImgFmtDescFor(b, imgfmt.ImageFormatNV12)
	if !ok {
		t.Fatal("nv12 unsupported on GL 4.6")
	}
	for i := 0; i < 3; i++ {
		again, ok := ra.ImgFmtDescFor(b, imgfmt.ImageFormatNV12)
		if !ok || *again != *first {
			t.Fatalf("resolution %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestDescCache(t *testing.T) {
	b, _ := newTestBackend(Config{})
	dc := ra.NewDescCache(b)

	if !dc.Supported(imgfmt.ImageFormatYUV420P) {
		t.Error("yuv420p should be supported")
	}
	if dc.Supported(imgfmt.ImageFormatUYVY) {
		t.Error("uyvy should not be supported")
	}
	// Negative results are cached too.
	if dc.Supported(imgfmt.ImageFormatUYVY) {
		t.Error("uyvy flipped to supported on second lookup")
	}

	d1, _ := dc.Lookup(imgfmt.ImageFormatYUV420P)
	d2, _ := dc.Lookup(imgfmt.ImageFormatYUV420P)
	if d1 != d2 {
		t.Error("cache returned distinct descriptors for the same format")
	}
}
