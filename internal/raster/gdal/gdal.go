// Package gdal adapts the GDAL command line utilities to the raster
// Reader and Codec interfaces.
package gdal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"rastersalvage/internal/raster"
)

const (
	DefaultTranslateBin = "gdal_translate"
	DefaultInfoBin      = "gdalinfo"
)

// Creation options applied to every trimmed output.
var compressOptions = []string{"-co", "COMPRESS=DEFLATE", "-co", "PREDICTOR=2"}

type Options struct {
	TranslateBin string
	InfoBin      string
}

// Codec shells out to gdal_translate and gdalinfo.
type Codec struct {
	translateBin string
	infoBin      string
}

var (
	_ raster.Codec  = (*Codec)(nil)
	_ raster.Reader = (*Codec)(nil)
)

func New(opts Options) *Codec {
	if opts.TranslateBin == "" {
		opts.TranslateBin = DefaultTranslateBin
	}
	if opts.InfoBin == "" {
		opts.InfoBin = DefaultInfoBin
	}
	return &Codec{
		translateBin: opts.TranslateBin,
		infoBin:      opts.InfoBin,
	}
}

func (c *Codec) Reencode(ctx context.Context, src, dst string) error {
	_, err := c.exec(ctx, c.translateBin, src, dst)
	return err
}

func (c *Codec) TrimAndCompress(ctx context.Context, src, dst string, win raster.Window) error {
	args := translateArgs(src, dst, win)
	_, err := c.exec(ctx, c.translateBin, args...)
	return err
}

// Open reads the raster size reported by gdalinfo -json.
func (c *Codec) Open(ctx context.Context, path string) (raster.Handle, error) {
	out, err := c.exec(ctx, c.infoBin, "-json", path)
	if err != nil {
		return raster.Handle{}, &raster.ResourceError{Op: "open", Path: path, Err: err}
	}
	width, height, err := parseInfoSize(out)
	if err != nil {
		return raster.Handle{}, &raster.ResourceError{Op: "open", Path: path, Err: err}
	}
	return raster.Handle{Path: path, Width: width, Height: height}, nil
}

// exec runs name and returns its stdout. A non-zero exit becomes a
// *raster.ToolError holding stdout followed by stderr.
func (c *Codec) exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s cancelled: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &raster.ToolError{
			Tool:     name,
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Output:   stdout.String() + stderr.String(),
			Err:      err,
		}
	}
	return nil, fmt.Errorf("run %s: %w", name, err)
}

func translateArgs(src, dst string, win raster.Window) []string {
	args := make([]string, 0, len(compressOptions)+7)
	args = append(args, compressOptions...)
	args = append(args,
		"-srcwin",
		strconv.Itoa(win.XOff),
		strconv.Itoa(win.YOff),
		strconv.Itoa(win.XSize),
		strconv.Itoa(win.YSize),
		src,
		dst,
	)
	return args
}

type infoDocument struct {
	Size []int `json:"size"`
}

func parseInfoSize(out []byte) (int, int, error) {
	var doc infoDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		return 0, 0, fmt.Errorf("decode gdalinfo output: %w", err)
	}
	if len(doc.Size) != 2 {
		return 0, 0, fmt.Errorf("gdalinfo output has size %v, want [width, height]", doc.Size)
	}
	width, height := doc.Size[0], doc.Size[1]
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	return width, height, nil
}
