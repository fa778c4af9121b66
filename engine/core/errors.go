package core

import (
	"errors"
)

var (
	// ErrUnsupported indicates the backend lacks a capability the caller
	// asked for (version floor, persistent mapping, compute).
	ErrUnsupported = errors.New("capability not supported by backend")
	// ErrBadFormat indicates a texture format that cannot serve the request.
	ErrBadFormat = errors.New("unusable texture format")
	// ErrCompileFailed indicates shader compilation or program linking failed.
	ErrCompileFailed = errors.New("shader compile/link failed")
	// ErrIncomplete indicates a render-target completeness check failed.
	ErrIncomplete = errors.New("framebuffer incomplete")
	ErrUnknown    = errors.New("unknown")
)
