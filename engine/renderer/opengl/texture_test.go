package opengl

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/ra"
)

func texParams2D(b *backend, name string, w, h int) *ra.TexParams {
	return &ra.TexParams{
		Dimensions: 2,
		W:          w,
		H:          h,
		D:          1,
		Format:     ra.FindNamedFormat(b, name),
		RenderSrc:  true,
	}
}

func TestTexCreateDestroy(t *testing.T) {
	b, f := newTestBackend(Config{})

	tex, err := b.TexCreate(texParams2D(b, "rgba8", 64, 32))
	if err != nil {
		t.Fatal(err)
	}
	if !f.called("TexImage2D(64x32, data=false)") {
		t.Errorf("no allocation upload issued, trace: %v", f.calls)
	}

	texGL := tex.Priv.(*glTex)
	if texGL.texture == 0 {
		t.Error("no texture name allocated")
	}
	if texGL.fbo != 0 {
		t.Error("framebuffer allocated without RenderDst")
	}

	b.TexDestroy(tex)
	if !f.called("DeleteTextures(1)") {
		t.Error("texture not deleted")
	}
}

func TestTexCreateInitialData(t *testing.T) {
	b, f := newTestBackend(Config{})

	params := texParams2D(b, "r8", 4, 4)
	params.InitialData = make([]byte, 16)
	tex, err := b.TexCreate(params)
	if err != nil {
		t.Fatal(err)
	}
	if !f.called("TexImage2D(4x4, data=true)") {
		t.Error("initial data not uploaded")
	}
	if tex.Params.InitialData != nil {
		t.Error("InitialData not cleared after creation")
	}
}

func TestTexCreateRenderDst(t *testing.T) {
	b, f := newTestBackend(Config{})

	params := texParams2D(b, "rgba8", 16, 16)
	params.RenderDst = true
	tex, err := b.TexCreate(params)
	if err != nil {
		t.Fatal(err)
	}
	if tex.Priv.(*glTex).fbo == 0 {
		t.Error("no framebuffer attached to render destination")
	}
	b.TexDestroy(tex)
	deleted := false
	for _, c := range f.calls {
		if len(c) > 18 && c[:18] == "DeleteFramebuffers" {
			deleted = true
		}
	}
	if !deleted {
		t.Errorf("framebuffer not deleted, trace: %v", f.calls)
	}
}

func TestTexCreateRenderDstNonRenderable(t *testing.T) {
	gl, _ := newFakeGL(210)
	rb, err := New(gl, Config{})
	if err != nil {
		t.Fatal(err)
	}
	b := rb.(*backend)

	params := texParams2D(b, "l8", 16, 16)
	params.RenderDst = true
	_, err = b.TexCreate(params)
	if !errors.Is(err, core.ErrBadFormat) {
		t.Fatalf("TexCreate(l8 render target) = %v, want ErrBadFormat", err)
	}
}

func TestTexCreateIncompleteFramebuffer(t *testing.T) {
	b, f := newTestBackend(Config{})
	f.fboStatus = 0x8CD6 // INCOMPLETE_ATTACHMENT

	params := texParams2D(b, "rgba8", 16, 16)
	params.RenderDst = true
	_, err := b.TexCreate(params)
	if !errors.Is(err, core.ErrIncomplete) {
		t.Fatalf("TexCreate with broken FBO = %v, want ErrIncomplete", err)
	}
}

func TestTexCreateBadDimsPanics(t *testing.T) {
	b, _ := newTestBackend(Config{})

	defer func() {
		if recover() == nil {
			t.Error("TexCreate with 4 dimensions did not panic")
		}
	}()
	b.TexCreate(&ra.TexParams{Dimensions: 4, Format: ra.FindNamedFormat(b, "rgba8")})
}

func TestTexUploadRegion(t *testing.T) {
	b, f := newTestBackend(Config{})

	tex, err := b.TexCreate(texParams2D(b, "rgba8", 8, 8))
	if err != nil {
		t.Fatal(err)
	}
	src := make([]byte, 4*4*4)
	rc := math.Rect{X0: 2, Y0: 2, X1: 6, Y1: 6}
	if err := b.TexUpload(tex, src, 4*4, &rc, 0, nil); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range f.calls {
		if len(c) > 13 && c[:13] == "TexSubImage2D" {
			found = true
		}
	}
	if !found {
		t.Errorf("no sub-image upload issued, trace: %v", f.calls)
	}
}

func TestTexUploadPBO(t *testing.T) {
	b, f := newTestBackend(Config{UsePBO: true})

	tex, err := b.TexCreate(texParams2D(b, "r8", 8, 8))
	if err != nil {
		t.Fatal(err)
	}
	src := make([]byte, 64)
	if err := b.TexUpload(tex, src, 8, nil, 0, nil); err != nil {
		t.Fatal(err)
	}

	// The copy goes through an orphaned streaming buffer.
	if !f.called("BufferData(0x88EC, 64)") {
		t.Errorf("PBO not orphaned, trace: %v", f.calls)
	}
	if !f.called("BufferSubData(0x88EC, 0, 64)") {
		t.Errorf("no PBO fill, trace: %v", f.calls)
	}

	// Uploads alternate between the two ring buffers.
	texGL := tex.Priv.(*glTex)
	b.TexUpload(tex, src, 8, nil, 0, nil)
	if texGL.pbo.buffers[0] == 0 || texGL.pbo.buffers[1] == 0 {
		t.Error("second upload did not rotate to the second buffer")
	}
}

func TestTexUpload1DRegionPanics(t *testing.T) {
	b, _ := newTestBackend(Config{})

	tex, err := b.TexCreate(&ra.TexParams{
		Dimensions: 1, W: 16, H: 1, D: 1,
		Format: ra.FindNamedFormat(b, "rgba8"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("1D upload with region did not panic")
		}
	}()
	rc := math.Rect{X1: 4, Y1: 1}
	b.TexUpload(tex, make([]byte, 64), 64, &rc, 0, nil)
}

func TestWrapFramebuffer(t *testing.T) {
	b, f := newTestBackend(Config{})

	tex := WrapFramebuffer(b, 0, 1280, 720)
	if !tex.Params.RenderDst || tex.Params.RenderSrc {
		t.Error("wrapped FBO should be dst-only")
	}
	if tex.Params.W != 1280 || tex.Params.H != 720 {
		t.Errorf("wrapped size = %dx%d, want 1280x720", tex.Params.W, tex.Params.H)
	}

	// Destroying a wrapper must not touch the native objects.
	n := len(f.calls)
	b.TexDestroy(tex)
	for _, c := range f.calls[n:] {
		if c == "DeleteFramebuffers(0)" || c == "DeleteTextures(0)" {
			t.Errorf("wrapper destroy deleted native object: %s", c)
		}
	}
}

func TestWrapTextureFormatMatch(t *testing.T) {
	b, _ := newTestBackend(Config{})

	tex := WrapTexture(b, 7, glTexture2D, glR8, glRed, glUnsignedByte, 32, 32)
	if tex.Params.Format.Name != "r8" {
		t.Errorf("wrapped format = %q, want r8", tex.Params.Format.Name)
	}

	// Unknown hints fall back to a dummy descriptor instead of failing.
	tex = WrapTexture(b, 7, glTexture2D, 0x1234, 0, 0, 32, 32)
	if tex.Params.Format.Name != "unknown_tex" {
		t.Errorf("wrapped format = %q, want unknown_tex", tex.Params.Format.Name)
	}
}

func TestClear(t *testing.T) {
	b, f := newTestBackend(Config{})

	params := texParams2D(b, "rgba8", 16, 16)
	params.RenderDst = true
	tex, err := b.TexCreate(params)
	if err != nil {
		t.Fatal(err)
	}

	b.Clear(tex, [4]float32{0, 0, 0, 1}, math.Rect{X1: 16, Y1: 16})
	if !f.called("Scissor(0,0 16x16)") || !f.called("Clear") {
		t.Errorf("clear sequence missing, trace: %v", f.calls)
	}
}

func TestClearNonDstPanics(t *testing.T) {
	b, _ := newTestBackend(Config{})

	tex, err := b.TexCreate(texParams2D(b, "rgba8", 16, 16))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("clear on non-destination did not panic")
		}
	}()
	b.Clear(tex, [4]float32{}, math.Rect{X1: 16, Y1: 16})
}

func TestBlit(t *testing.T) {
	b, f := newTestBackend(Config{})

	params := texParams2D(b, "rgba8", 32, 32)
	params.RenderDst = true
	src, err := b.TexCreate(params)
	if err != nil {
		t.Fatal(err)
	}
	dst, err := b.TexCreate(params)
	if err != nil {
		t.Fatal(err)
	}

	b.Blit(dst, src, 4, 4, math.Rect{X0: 0, Y0: 0, X1: 16, Y1: 16})
	if !f.called("BlitFramebuffer(0,0,16,16 -> 4,4,20,20)") {
		t.Errorf("blit rectangle wrong, trace: %v", f.calls)
	}
}
