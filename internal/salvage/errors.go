package salvage

import (
	"errors"
	"fmt"
)

var (
	ErrParse          = errors.New("unrecognized probe diagnostic")
	ErrPolicyRejected = errors.New("raster rejected by salvage policy")
	ErrStorage        = errors.New("storage error")
)

// ParseError reports probe output that does not name a failing offset.
type ParseError struct {
	Diagnostic string
	Err        error
}

func (e *ParseError) Error() string {
	msg := `probe diagnostic has no "X offset <n>, Y offset <n>" pattern`
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + "\n--- diagnostic ---\n" + e.Diagnostic
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// PolicyRejection reports corruption too early in the raster to be worth
// salvaging.
type PolicyRejection struct {
	FailingRow int
	Height     int
	Fraction   float64
	Tolerance  float64
	Reason     string
	// Diagnostic is the tool output that located the failing row.
	Diagnostic string
}

func (e *PolicyRejection) Error() string {
	var msg string
	if e.Reason != "" {
		msg = fmt.Sprintf("raster cannot be salvaged: %s (failing row %d, height %d)", e.Reason, e.FailingRow, e.Height)
	} else {
		msg = fmt.Sprintf(
			"raster too damaged to salvage: read error at row %d of %d is only %.2f%% of the way through the file, need at least %.2f%%",
			e.FailingRow, e.Height, e.Fraction*100, e.Tolerance*100,
		)
	}
	if e.Diagnostic != "" {
		msg += "\n--- diagnostic ---\n" + e.Diagnostic
	}
	return msg
}

func (e *PolicyRejection) Is(target error) bool { return target == ErrPolicyRejected }
