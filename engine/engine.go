package engine

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	stdmath "math"

	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/imgfmt"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer/opengl"
	"github.com/spaghettifunk/prism/engine/renderer/ra"
	"github.com/spaghettifunk/prism/engine/renderer/shadercache"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Engine drives the window, the render backend and the demo scene: a
// procedural test image drawn through the shader cache every frame.
type Engine struct {
	currentStage Stage
	cfg          *config.Config
	platform     *platform.Platform
	gl           *opengl.GL
	backend      ra.Backend
	shaders      *shadercache.ShaderCache
	descs        *ra.DescCache

	// Demo scene state.
	window  *ra.Tex
	picture *ra.Tex
	staging *ra.StagingBuffer
	frame   uint64
}

func New(cfg *config.Config) (*Engine, error) {
	p, err := platform.New()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		cfg:          cfg,
		platform:     p,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := e.platform.Startup(e.cfg.Name, uint32(e.cfg.Width), uint32(e.cfg.Height)); err != nil {
		return err
	}

	gl, err := opengl.LoadGL()
	if err != nil {
		return err
	}
	e.gl = gl

	b, err := opengl.New(gl, opengl.Config{UsePBO: e.cfg.Renderer.UsePBO})
	if err != nil {
		return err
	}
	e.backend = b
	e.descs = ra.NewDescCache(b)

	ra.DumpTexFormats(b)
	ra.DumpImgFmts(b)

	e.shaders = shadercache.New(b)
	e.shaders.SetCacheDir(e.cfg.Renderer.ShaderCacheDir)
	if dir := e.cfg.Renderer.ShaderWatchDir; dir != "" {
		if err := e.shaders.WatchDir(dir); err != nil {
			core.LogWarn("shader watch disabled: %s", err)
		}
	}

	if err := e.createScene(); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// createScene uploads the procedural test picture, through a persistently
// mapped staging buffer when the backend supports it.
func (e *Engine) createScene() error {
	const texW, texH = 256, 256

	if !e.descs.Supported(imgfmt.ImageFormatRGBA) {
		return fmt.Errorf("backend cannot sample rgba: %w", core.ErrBadFormat)
	}
	desc, _ := e.descs.Lookup(imgfmt.ImageFormatRGBA)
	ra.DumpImgFmtDesc(desc)

	tex, err := e.backend.TexCreate(&ra.TexParams{
		Dimensions: 2,
		W:          texW,
		H:          texH,
		Format:     desc.Planes[0],
		RenderSrc:  true,
		SrcLinear:  true,
	})
	if err != nil {
		return err
	}
	e.picture = tex

	pixels := imgfmt.ConvertToRGBA(testImage(texW, texH)).Pix

	if e.backend.Caps()&ra.CapPBO != 0 {
		staging, err := e.backend.CreateStagingBuffer(len(pixels))
		if err == nil {
			e.staging = staging
			copy(staging.Data, pixels)
			return e.backend.TexUpload(tex, staging.Data, texW*4, nil,
				ra.UploadDiscard, staging)
		}
		core.LogWarn("staging buffer unavailable, uploading directly: %s", err)
	}
	return e.backend.TexUpload(tex, pixels, texW*4, nil, ra.UploadDiscard, nil)
}

// testImage renders a color gradient with a checkerboard overlay.
func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			}
			if (x/32+y/32)%2 == 0 {
				c.B = 255 - c.R
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var quadFormat = []ra.Input{
	{Name: "position", Type: ra.InputFloat, DimV: 2, DimM: 1},
	{Name: "texcoord", Type: ra.InputFloat, DimV: 2, DimM: 1},
}

// quadVertices builds two CCW triangles covering the whole target.
func quadVertices() []byte {
	verts := []float32{
		-1, -1, 0, 0,
		1, -1, 1, 0,
		-1, 1, 0, 1,
		1, -1, 1, 0,
		1, 1, 1, 1,
		-1, 1, 0, 1,
	}
	out := make([]byte, 0, len(verts)*4)
	for _, v := range verts {
		out = binary.NativeEndian.AppendUint32(out, stdmath.Float32bits(v))
	}
	return out
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is not initialized")
	}
	e.currentStage = EngineStageRunning

	vertices := quadVertices()

	for e.currentStage == EngineStageRunning && !e.platform.ShouldClose() {
		w, h := e.platform.FramebufferSize()
		if e.window == nil || e.window.Params.W != w || e.window.Params.H != h {
			ra.TexFree(e.backend, &e.window)
			e.window = opengl.WrapFramebuffer(e.backend, 0, w, h)
		}

		e.drawFrame(vertices)
		e.frame++

		e.platform.PumpMessages()
	}

	e.currentStage = EngineStageShuttingDown
	return nil
}

// drawFrame draws the test picture over the whole window with a slowly
// pulsing gamma, so both the cached-pass path and the uniform-change path
// get exercised continuously.
func (e *Engine) drawFrame(vertices []byte) {
	sc := e.shaders

	sc.UniformTexture("texture0", e.picture)
	gamma := 1.0 + 0.5*stdmath.Sin(float64(e.frame)/120.0)
	sc.UniformFloat("gamma", float32(gamma))

	sc.SetVertexFormat(quadFormat, 16)
	sc.Add("color = texture(texture0, texcoord);\n")
	sc.Add("color.rgb = pow(color.rgb, vec3(1.0 / gamma));\n")

	perf := sc.DispatchDraw(e.window, vertices, 6)

	if e.frame%600 == 0 && core.LogLevelEnabled("debug") {
		core.LogDebug("frame %d: draw last=%s avg=%s peak=%s (%d pass builds)",
			e.frame, perf.Last, perf.Avg, perf.Peak, sc.PassCreations())
	}
	if sc.ErrorState() {
		core.LogError("shader generation failed, stopping")
		e.currentStage = EngineStageShuttingDown
	}
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	if e.shaders != nil {
		e.shaders.Destroy()
	}
	if e.backend != nil {
		if e.staging != nil {
			e.backend.DestroyStagingBuffer(e.staging)
			e.staging = nil
		}
		ra.TexFree(e.backend, &e.picture)
		ra.TexFree(e.backend, &e.window)
		e.backend.Destroy()
	}
	return e.platform.Shutdown()
}
