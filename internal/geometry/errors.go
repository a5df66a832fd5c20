package geometry

import (
	"errors"
	"fmt"
)

var (
	// ErrGeometryParse matches every *ParseError.
	ErrGeometryParse = errors.New("geometry parse error")
	// ErrMissingCalibration matches every *MissingCalibrationError.
	ErrMissingCalibration = errors.New("missing detector calibration")
	// ErrNoGeometry is returned when a mapping is requested for zero references.
	ErrNoGeometry = errors.New("no geometry references")
)

// ParseError reports a malformed geometry file. Line is 1-based; zero means
// the problem is not tied to a single line.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("geometry %s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("geometry %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrGeometryParse }

// MissingCalibrationError is returned by projection operations on a
// descriptor loaded without detector distance or Ewald radius.
type MissingCalibrationError struct {
	Path string
}

func (e *MissingCalibrationError) Error() string {
	return fmt.Sprintf("geometry %s: detector distance and Ewald radius are required for projection", e.Path)
}

func (e *MissingCalibrationError) Is(target error) bool { return target == ErrMissingCalibration }
