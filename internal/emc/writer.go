package emc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/emcview/internal/fsutil"
)

// Writer accumulates frames and writes a photon file on Close. The format
// puts every frame's record counts ahead of the records, so nothing is
// written until all frames are known.
type Writer struct {
	fsys   fsutil.FileSystem
	path   string
	numPix int

	frames []Photons

	mu     sync.Mutex
	closed bool
}

// NewWriter creates a Writer for a detector with numPix pixels.
func NewWriter(fsys fsutil.FileSystem, path string, numPix int) (*Writer, error) {
	if numPix <= 0 {
		return nil, fmt.Errorf("emc writer: non-positive pixel count %d", numPix)
	}
	return &Writer{fsys: fsys, path: path, numPix: numPix}, nil
}

// Add appends one frame. Pixel indices must lie in [0, numPix) and
// multi-photon counts must be positive.
func (w *Writer) Add(p Photons) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("emc writer is closed")
	}
	if len(p.Multi) != len(p.MultiCount) {
		return fmt.Errorf("emc writer: %d multi pixels but %d counts", len(p.Multi), len(p.MultiCount))
	}
	for _, pix := range p.Ones {
		if pix < 0 || int(pix) >= w.numPix {
			return fmt.Errorf("emc writer: pixel %d outside [0,%d)", pix, w.numPix)
		}
	}
	for i, pix := range p.Multi {
		if pix < 0 || int(pix) >= w.numPix {
			return fmt.Errorf("emc writer: pixel %d outside [0,%d)", pix, w.numPix)
		}
		if p.MultiCount[i] <= 0 {
			return fmt.Errorf("emc writer: non-positive count %d", p.MultiCount[i])
		}
	}
	w.frames = append(w.frames, p)
	return nil
}

// FrameCount returns the number of frames added so far.
func (w *Writer) FrameCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

// Close writes the file. It is a no-op after the first call.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	out, err := w.fsys.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create photon file: %w", err)
	}
	if err := Encode(out, w.numPix, w.frames); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close photon file: %w", err)
	}
	return nil
}

// Encode writes frames in the photon file format.
func Encode(dst io.Writer, numPix int, frames []Photons) error {
	bw := bufio.NewWriter(dst)

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:], uint32(len(frames)))
	binary.LittleEndian.PutUint32(header[4:], uint32(numPix))
	binary.LittleEndian.PutUint32(header[8:], SparseType)
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	sections := []func(Photons) []int32{
		func(p Photons) []int32 { return []int32{int32(len(p.Ones))} },
		func(p Photons) []int32 { return []int32{int32(len(p.Multi))} },
		func(p Photons) []int32 { return p.Ones },
		func(p Photons) []int32 { return p.Multi },
		func(p Photons) []int32 { return p.MultiCount },
	}
	for _, section := range sections {
		for _, p := range frames {
			if err := binary.Write(bw, binary.LittleEndian, section(p)); err != nil {
				return fmt.Errorf("failed to write frame data: %w", err)
			}
		}
	}
	return bw.Flush()
}
