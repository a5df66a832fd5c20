package frameindex

import (
	"errors"
	"fmt"
)

var (
	ErrSourceCountMismatch = errors.New("source count mismatch")
	ErrPixelCountMismatch  = errors.New("pixel count mismatch")
	ErrIndexOutOfRange     = errors.New("frame index out of range")
	ErrFrameDecode         = errors.New("frame decode error")
)

// SourceCountMismatchError is returned by Build when the number of data
// sources and geometry references differ and the single reference cannot
// be broadcast.
type SourceCountMismatchError struct {
	Sources    int
	References int
}

func (e *SourceCountMismatchError) Error() string {
	return fmt.Sprintf("%d data sources but %d geometry references (want one reference per source, or exactly one)", e.Sources, e.References)
}

func (e *SourceCountMismatchError) Is(target error) bool { return target == ErrSourceCountMismatch }

// PixelCountMismatchError is returned by Build when a data source and the
// geometry paired with it disagree on the detector size.
type PixelCountMismatchError struct {
	Source         int
	Path           string
	Geometry       string
	SourcePixels   int
	GeometryPixels int
}

func (e *PixelCountMismatchError) Error() string {
	return fmt.Sprintf("source %d (%s) has %d pixels but geometry %s has %d",
		e.Source, e.Path, e.SourcePixels, e.Geometry, e.GeometryPixels)
}

func (e *PixelCountMismatchError) Is(target error) bool { return target == ErrPixelCountMismatch }

// IndexOutOfRangeError reports a global index outside [0, Total) or one
// excluded by a blacklist.
type IndexOutOfRangeError struct {
	Index    int
	Total    int
	Excluded bool
}

func (e *IndexOutOfRangeError) Error() string {
	if e.Excluded {
		return fmt.Sprintf("frame %d is blacklisted", e.Index)
	}
	return fmt.Sprintf("frame %d out of range [0,%d)", e.Index, e.Total)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// FrameDecodeError wraps a reader failure with the frame's position in the
// index.
type FrameDecodeError struct {
	Global int
	Source int
	Path   string
	Local  int
	Err    error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("decode frame %d (source %d %s, local %d): %v", e.Global, e.Source, e.Path, e.Local, e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

func (e *FrameDecodeError) Is(target error) bool { return target == ErrFrameDecode }
