package salvage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strconv"

	"rastersalvage/internal/raster"
)

// DefaultProbeSuffix names the throwaway output of the integrity probe.
const DefaultProbeSuffix = "_forthelulz"

// offsetPattern matches GDAL block read failures such as
// "IReadBlock failed at X offset 0, Y offset 960".
var offsetPattern = regexp.MustCompile(`X offset \d+, Y offset (\d+)`)

// ExtractFailingRow returns the Y offset of the first offset message in a
// probe diagnostic. Any other wording is a *ParseError.
func ExtractFailingRow(diagnostic string) (int, error) {
	m := offsetPattern.FindStringSubmatch(diagnostic)
	if m == nil {
		return 0, &ParseError{Diagnostic: diagnostic}
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &ParseError{Diagnostic: diagnostic, Err: err}
	}
	return row, nil
}

// ProbeResult is either clean or failed at FailingRow.
type ProbeResult struct {
	Failed     bool
	FailingRow int
	Diagnostic string
}

func (r ProbeResult) Clean() bool { return !r.Failed }

type Prober struct {
	codec  raster.Codec
	suffix string
	logger *log.Logger
}

func NewProber(codec raster.Codec, suffix string, logger *log.Logger) *Prober {
	if suffix == "" {
		suffix = DefaultProbeSuffix
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Prober{codec: codec, suffix: suffix, logger: logger}
}

// Probe re-encodes the whole raster to a throwaway file next to it. A tool
// failure is located through its diagnostic output.
func (p *Prober) Probe(ctx context.Context, h raster.Handle) (ProbeResult, error) {
	scratch := siblingPath(h.Path, p.suffix)
	defer func() {
		if err := os.Remove(scratch); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Printf("[probe] remove %s: %v", scratch, err)
		}
	}()

	p.logger.Printf("[probe] no-op translate %s -> %s", h.Path, scratch)
	err := p.codec.Reencode(ctx, h.Path, scratch)
	if err == nil {
		return ProbeResult{}, nil
	}

	var toolErr *raster.ToolError
	if !errors.As(err, &toolErr) {
		return ProbeResult{}, &raster.ResourceError{Op: "probe", Path: h.Path, Err: err}
	}

	p.logger.Printf("[probe] translate failed (exit %d), locating failing row", toolErr.ExitCode)
	row, err := ExtractFailingRow(toolErr.Output)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe %s: %w", h.Path, err)
	}
	p.logger.Printf("[probe] failing row=%d height=%d", row, h.Height)
	return ProbeResult{Failed: true, FailingRow: row, Diagnostic: toolErr.Output}, nil
}
