package salvage

import (
	"fmt"

	"rastersalvage/internal/raster"
)

// DefaultTolerance is the minimum fraction of rows that must precede the
// failing row for a raster to be trimmed rather than rejected.
const DefaultTolerance = 0.95

// Decision keeps rows [0, UntilRow) and all Width columns.
type Decision struct {
	UntilRow int
	Width    int
}

func (d Decision) Window() raster.Window {
	return raster.Window{XOff: 0, YOff: 0, XSize: d.Width, YSize: d.UntilRow}
}

type Policy struct {
	Tolerance float64
}

func NewPolicy(tolerance float64) (Policy, error) {
	if !(tolerance > 0 && tolerance <= 1) {
		return Policy{}, fmt.Errorf("tolerance %v must be in (0, 1]", tolerance)
	}
	return Policy{Tolerance: tolerance}, nil
}

// Decide returns a trim decision for a raster whose probe failed at
// failingRow, or a *PolicyRejection when too little of it is intact.
func (p Policy) Decide(failingRow, height, width int) (Decision, error) {
	if height <= 0 || width <= 0 {
		return Decision{}, &PolicyRejection{FailingRow: failingRow, Height: height, Reason: fmt.Sprintf("invalid raster size %dx%d", width, height)}
	}
	if failingRow < 0 || failingRow > height {
		return Decision{}, &PolicyRejection{FailingRow: failingRow, Height: height, Reason: "failing row outside the raster"}
	}

	fraction := float64(failingRow) / float64(height)
	if failingRow == 0 || fraction < p.Tolerance {
		return Decision{}, &PolicyRejection{
			FailingRow: failingRow,
			Height:     height,
			Fraction:   fraction,
			Tolerance:  p.Tolerance,
		}
	}
	return Decision{UntilRow: failingRow, Width: width}, nil
}
