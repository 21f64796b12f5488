// Package tiffmeta reads raster dimensions from a TIFF header without
// invoking any external tool.
package tiffmeta

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"rastersalvage/internal/raster"

	"golang.org/x/image/tiff"
)

type Reader struct{}

var _ raster.Reader = Reader{}

// Open decodes the header with x/image/tiff. Layouts that package cannot
// decode (float samples, 32/64-bit samples, many bands, BigTIFF) fall back
// to reading ImageWidth and ImageLength from the first IFD.
func (Reader) Open(_ context.Context, path string) (raster.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return raster.Handle{}, &raster.ResourceError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	width, height, err := decodeSize(f)
	if err != nil {
		return raster.Handle{}, &raster.ResourceError{Op: "decode header", Path: path, Err: err}
	}
	if width <= 0 || height <= 0 {
		return raster.Handle{}, &raster.ResourceError{
			Op:   "decode header",
			Path: path,
			Err:  fmt.Errorf("invalid raster size %dx%d", width, height),
		}
	}
	return raster.Handle{Path: path, Width: width, Height: height}, nil
}

func decodeSize(f *os.File) (int, int, error) {
	cfg, decodeErr := tiff.DecodeConfig(bufio.NewReader(f))
	if decodeErr == nil {
		return cfg.Width, cfg.Height, nil
	}
	width, height, err := readIFDSize(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w (tag scan: %v)", decodeErr, err)
	}
	return width, height, nil
}
