package raster

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrResource reports a raster that cannot be opened, read or written.
var ErrResource = errors.New("raster resource error")

// Handle references a raster on local storage. It is a value: trimming
// produces a new Handle, the input is never modified in place.
type Handle struct {
	Path   string
	Width  int
	Height int
}

func (h Handle) Dimensions() (width, height int) {
	return h.Width, h.Height
}

// Window is a pixel window with zero-indexed offsets and exclusive upper
// bounds: rows [YOff, YOff+YSize) and columns [XOff, XOff+XSize).
type Window struct {
	XOff  int
	YOff  int
	XSize int
	YSize int
}

// Reader opens a raster and reports its dimensions.
type Reader interface {
	Open(ctx context.Context, path string) (Handle, error)
}

// Codec performs the two re-encode operations the salvage pipeline needs.
// A codec that ran to completion but reported a decode failure returns a
// *ToolError carrying the tool's diagnostic output.
type Codec interface {
	// Reencode rewrites src to dst without any transformation, forcing
	// every row and column to be decoded.
	Reencode(ctx context.Context, src, dst string) error

	// TrimAndCompress writes the given window of src to dst using
	// lossless DEFLATE compression with horizontal differencing.
	TrimAndCompress(ctx context.Context, src, dst string, win Window) error
}

// ResourceError wraps a failure to open, read or write a raster.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, ErrResource)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func (e *ResourceError) Is(target error) bool { return target == ErrResource }

// ToolError is returned by a codec whose external tool exited with a
// failure status. Output holds the combined stdout and stderr.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }
