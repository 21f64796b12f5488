package salvage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"rastersalvage/internal/raster"
)

// The fake raster format is a header line "FAKERASTER <width> <height>"
// followed by one line per row.

func writeFakeRaster(path string, width, height int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "FAKERASTER %d %d\n", width, height)
	for y := 0; y < height; y++ {
		fmt.Fprintf(&b, "row-%04d\n", y)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func readFakeRaster(path string) (width, height int, rows []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, 0, nil, fmt.Errorf("%s: empty file", path)
	}
	if _, err := fmt.Sscanf(sc.Text(), "FAKERASTER %d %d", &width, &height); err != nil {
		return 0, 0, nil, fmt.Errorf("%s: bad header: %w", path, err)
	}
	for sc.Scan() {
		rows = append(rows, sc.Text())
	}
	return width, height, rows, sc.Err()
}

type fakeReader struct{}

func (fakeReader) Open(_ context.Context, path string) (raster.Handle, error) {
	w, h, _, err := readFakeRaster(path)
	if err != nil {
		return raster.Handle{}, &raster.ResourceError{Op: "open", Path: path, Err: err}
	}
	return raster.Handle{Path: path, Width: w, Height: h}, nil
}

// fakeCodec fails the no-op re-encode at failAt (when >= 0) with a
// GDAL-style diagnostic, or with diagnostic verbatim when it is set.
type fakeCodec struct {
	failAt     int
	diagnostic string
	startErr   error
	heightSkew int

	mu       sync.Mutex
	reencode []string
	windows  []raster.Window
}

func newFakeCodec(failAt int) *fakeCodec {
	return &fakeCodec{failAt: failAt}
}

func (c *fakeCodec) Reencode(_ context.Context, src, dst string) error {
	c.mu.Lock()
	c.reencode = append(c.reencode, dst)
	c.mu.Unlock()

	if c.startErr != nil {
		return c.startErr
	}
	if err := os.WriteFile(dst, []byte("partial"), 0o644); err != nil {
		return err
	}
	if c.diagnostic != "" {
		return &raster.ToolError{Tool: "gdal_translate", ExitCode: 1, Output: c.diagnostic}
	}
	if c.failAt >= 0 {
		return &raster.ToolError{
			Tool:     "gdal_translate",
			ExitCode: 1,
			Output: fmt.Sprintf("Input file size is 64, 1000\n0...10...20...30...40...50...60...70...80...90\n"+
				"ERROR 1: TIFFReadEncodedStrip:Read error at scanline %d\n"+
				"ERROR 1: %s, band 1: IReadBlock failed at X offset 0, Y offset %d\n"+
				"ERROR 1: GetBlockRef failed at X block offset 0, Y block offset %d", c.failAt, src, c.failAt, c.failAt),
		}
	}
	return nil
}

func (c *fakeCodec) TrimAndCompress(_ context.Context, src, dst string, win raster.Window) error {
	c.mu.Lock()
	c.windows = append(c.windows, win)
	c.mu.Unlock()

	w, _, rows, err := readFakeRaster(src)
	if err != nil {
		return err
	}
	if win.XOff+win.XSize > w || win.YOff+win.YSize > len(rows) {
		return fmt.Errorf("window %+v outside source", win)
	}
	kept := rows[win.YOff : win.YOff+win.YSize]
	var b strings.Builder
	fmt.Fprintf(&b, "FAKERASTER %d %d\n", win.XSize, win.YSize+c.heightSkew)
	for _, r := range kept {
		b.WriteString(r + "\n")
	}
	return os.WriteFile(dst, []byte(b.String()), 0o644)
}

func (c *fakeCodec) trimWindows() []raster.Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]raster.Window(nil), c.windows...)
}
