package salvage

import (
	"context"
	"fmt"
	"io"
	"log"

	"rastersalvage/internal/raster"
)

// DefaultTrimSuffix names the salvaged output.
const DefaultTrimSuffix = "_compressed_and_trimmed"

type Trimmer struct {
	codec  raster.Codec
	verify raster.Reader
	suffix string
	logger *log.Logger
}

// NewTrimmer builds a trimmer. When verify is non-nil the output is
// re-opened and its dimensions checked against the requested window.
func NewTrimmer(codec raster.Codec, verify raster.Reader, suffix string, logger *log.Logger) *Trimmer {
	if suffix == "" {
		suffix = DefaultTrimSuffix
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Trimmer{codec: codec, verify: verify, suffix: suffix, logger: logger}
}

// Trim writes rows [0, untilRow) and columns [0, width) of h to a new
// compressed raster and returns its handle.
func (t *Trimmer) Trim(ctx context.Context, h raster.Handle, untilRow, width int) (raster.Handle, error) {
	out := siblingPath(h.Path, t.suffix)
	if untilRow <= 0 || untilRow > h.Height || width <= 0 || width > h.Width {
		return raster.Handle{}, &raster.ResourceError{
			Op:   "trim",
			Path: h.Path,
			Err:  fmt.Errorf("window %dx%d outside raster %dx%d", width, untilRow, h.Width, h.Height),
		}
	}

	win := Decision{UntilRow: untilRow, Width: width}.Window()
	t.logger.Printf("[trim] %s -> %s rows=[0,%d) cols=[0,%d)", h.Path, out, untilRow, width)
	if err := t.codec.TrimAndCompress(ctx, h.Path, out, win); err != nil {
		return raster.Handle{}, &raster.ResourceError{Op: "trim", Path: out, Err: err}
	}

	trimmed := raster.Handle{Path: out, Width: width, Height: untilRow}
	if t.verify == nil {
		return trimmed, nil
	}
	got, err := t.verify.Open(ctx, out)
	if err != nil {
		return raster.Handle{}, &raster.ResourceError{Op: "verify trim", Path: out, Err: err}
	}
	if got.Width != width || got.Height != untilRow {
		return raster.Handle{}, &raster.ResourceError{
			Op:   "verify trim",
			Path: out,
			Err:  fmt.Errorf("output is %dx%d, want %dx%d", got.Width, got.Height, width, untilRow),
		}
	}
	return got, nil
}
