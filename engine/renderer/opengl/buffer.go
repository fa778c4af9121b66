package opengl

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/ra"
)

// glStagingBuffer is the backend state of a persistently mapped upload
// buffer. fence is nonzero while the GPU may still be reading the buffer.
type glStagingBuffer struct {
	pbo   uint32
	fence GLSync
}

func (b *backend) CreateStagingBuffer(size int) (*ra.StagingBuffer, error) {
	gl := b.gl

	// Persistent mapping needs GL_ARB_buffer_storage.
	if gl.BufferStorage == nil || gl.MapBufferRange == nil || gl.FenceSync == nil {
		return nil, fmt.Errorf("persistently mapped buffers: %w", core.ErrUnsupported)
	}

	buf := &ra.StagingBuffer{Size: size}
	bufGL := &glStagingBuffer{}
	buf.Priv = bufGL

	flags := uint32(glMapReadBit | glMapWriteBit | glMapPersistentBit | glMapCoherentBit)

	gl.GenBuffers(1, &bufGL.pbo)
	gl.BindBuffer(glPixelUnpackBuffer, bufGL.pbo)
	gl.BufferStorage(glPixelUnpackBuffer, size, nil, flags|glClientStorageBit)
	ptr := gl.MapBufferRange(glPixelUnpackBuffer, 0, size, flags)
	gl.BindBuffer(glPixelUnpackBuffer, 0)
	if ptr == nil {
		b.checkError("mapping buffer")
		b.DestroyStagingBuffer(buf)
		return nil, fmt.Errorf("mapping staging buffer of %d bytes failed", size)
	}
	buf.Data = unsafe.Slice((*byte)(ptr), size)

	return buf, nil
}

func (b *backend) DestroyStagingBuffer(buf *ra.StagingBuffer) {
	gl := b.gl
	bufGL := buf.Priv.(*glStagingBuffer)

	// Unmapping while the GPU still reads the memory is a race; drain the
	// fence first. A wedged driver gets a bounded wait and a warning
	// instead of a hang.
	if bufGL.fence != 0 {
		deadline := time.Now().Add(time.Second)
		for !b.PollStagingBuffer(buf) {
			if time.Now().After(deadline) {
				core.LogWarn("staging buffer still in flight after 1s, unmapping anyway")
				break
			}
			gl.ClientWaitSync(bufGL.fence, 0, uint64(time.Millisecond))
		}
	}
	if bufGL.fence != 0 {
		gl.DeleteSync(bufGL.fence)
		bufGL.fence = 0
	}

	gl.BindBuffer(glPixelUnpackBuffer, bufGL.pbo)
	if buf.Data != nil {
		gl.UnmapBuffer(glPixelUnpackBuffer)
		buf.Data = nil
	}
	gl.BindBuffer(glPixelUnpackBuffer, 0)
	gl.DeleteBuffers(1, &bufGL.pbo)

	buf.Priv = nil
}

func (b *backend) PollStagingBuffer(buf *ra.StagingBuffer) bool {
	gl := b.gl
	bufGL := buf.Priv.(*glStagingBuffer)

	if bufGL.fence != 0 {
		res := gl.ClientWaitSync(bufGL.fence, 0, 0) // non-blocking
		if res == glAlreadySignaled || res == glConditionSatisfied {
			gl.DeleteSync(bufGL.fence)
			bufGL.fence = 0
		}
	}

	return bufGL.fence == 0
}

// glBuf is the backend state of a storage buffer.
type glBuf struct {
	ssbo uint32
}

func (b *backend) BufCreate(size int, initialData []byte) (*ra.Buf, error) {
	gl := b.gl

	if gl.BindBufferBase == nil {
		return nil, fmt.Errorf("storage buffers: %w", core.ErrUnsupported)
	}
	if initialData != nil && len(initialData) != size {
		panic("initial data size does not match buffer size")
	}

	buf := &ra.Buf{Size: size}
	bufGL := &glBuf{}
	buf.Priv = bufGL

	gl.GenBuffers(1, &bufGL.ssbo)
	gl.BindBuffer(glShaderStorageBuffer, bufGL.ssbo)
	gl.BufferData(glShaderStorageBuffer, size, dataPtr(initialData), glStaticDraw)
	gl.BindBuffer(glShaderStorageBuffer, 0)

	return buf, nil
}

func (b *backend) BufDestroy(buf *ra.Buf) {
	bufGL := buf.Priv.(*glBuf)
	b.gl.DeleteBuffers(1, &bufGL.ssbo)
	buf.Priv = nil
}

// checkError drains the GL error queue and logs anything found with the
// given context string.
func (b *backend) checkError(ctx string) {
	for {
		errCode := b.gl.GetError()
		if errCode == 0 {
			return
		}
		core.LogError("OpenGL error 0x%04x (%s)", errCode, ctx)
	}
}
