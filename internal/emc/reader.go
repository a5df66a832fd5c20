package emc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/emcview/internal/fsutil"
)

// HeaderSize is the fixed size of the file header in bytes.
const HeaderSize = 1024

// SparseType is the ftype value of a sparse photon file.
const SparseType = 0

// ErrBadHeader is returned by Open when the header or per-frame count
// tables cannot be used.
var ErrBadHeader = errors.New("emc: bad header")

// DecodeError reports a frame whose records are missing or inconsistent.
type DecodeError struct {
	Path   string
	Frame  int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("emc: %s frame %d: %s: %v", e.Path, e.Frame, e.Reason, e.Err)
	}
	return fmt.Sprintf("emc: %s frame %d: %s", e.Path, e.Frame, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// File is an open photon file. It is not safe for concurrent use; callers
// that share a File between goroutines must serialise access.
type File struct {
	path   string
	f      fsutil.File
	size   int64
	numPix int

	ones  []int32
	multi []int32

	// onesOff[i] and multiOff[i] are the record offsets of frame i;
	// the final entries hold the totals.
	onesOff  []int64
	multiOff []int64

	placeOnesBase  int64
	placeMultiBase int64
	countMultiBase int64

	buf []byte
}

// Open reads the header and per-frame count tables of path. The handle
// stays open until Close.
func Open(fsys fsutil.FileSystem, path string) (*File, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photon file: %w", err)
	}

	ef, err := newFile(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return ef, nil
}

func newFile(path string, f fsutil.File) (*File, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat photon file %s: %w", path, err)
	}
	size := fi.Size()

	hdr := make([]byte, 12)
	if err := readFull(f, hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: %s: read header: %v", ErrBadHeader, path, err)
	}
	numData := int32(binary.LittleEndian.Uint32(hdr[0:]))
	numPix := int32(binary.LittleEndian.Uint32(hdr[4:]))
	ftype := int32(binary.LittleEndian.Uint32(hdr[8:]))

	if numData < 0 {
		return nil, fmt.Errorf("%w: %s: negative frame count %d", ErrBadHeader, path, numData)
	}
	if numPix <= 0 {
		return nil, fmt.Errorf("%w: %s: non-positive pixel count %d", ErrBadHeader, path, numPix)
	}
	if ftype != SparseType {
		return nil, fmt.Errorf("%w: %s: unsupported file type %d", ErrBadHeader, path, ftype)
	}

	// Both count tables must fit in the file before they are allocated.
	if HeaderSize+8*int64(numData) > size {
		return nil, fmt.Errorf("%w: %s: %d frames need %d bytes of counts, file has %d", ErrBadHeader, path, numData, 8*int64(numData), size-HeaderSize)
	}

	n := int(numData)
	counts := make([]byte, 8*n)
	if n > 0 {
		if err := readFull(f, counts, HeaderSize); err != nil {
			return nil, fmt.Errorf("%w: %s: read frame counts: %v", ErrBadHeader, path, err)
		}
	}

	ef := &File{
		path:     path,
		f:        f,
		size:     size,
		numPix:   int(numPix),
		ones:     make([]int32, n),
		multi:    make([]int32, n),
		onesOff:  make([]int64, n+1),
		multiOff: make([]int64, n+1),
	}
	for i := 0; i < n; i++ {
		ef.ones[i] = int32(binary.LittleEndian.Uint32(counts[4*i:]))
		ef.multi[i] = int32(binary.LittleEndian.Uint32(counts[4*(n+i):]))
		if ef.ones[i] < 0 || ef.multi[i] < 0 {
			return nil, fmt.Errorf("%w: %s: negative photon count for frame %d", ErrBadHeader, path, i)
		}
		ef.onesOff[i+1] = ef.onesOff[i] + int64(ef.ones[i])
		ef.multiOff[i+1] = ef.multiOff[i] + int64(ef.multi[i])
	}

	ef.placeOnesBase = HeaderSize + int64(8*n)
	ef.placeMultiBase = ef.placeOnesBase + 4*ef.onesOff[n]
	ef.countMultiBase = ef.placeMultiBase + 4*ef.multiOff[n]
	return ef, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// FrameCount returns the number of frames in the file.
func (f *File) FrameCount() int { return len(f.ones) }

// NumPix returns the detector pixel count recorded in the header.
func (f *File) NumPix() int { return f.numPix }

// PhotonRecords returns the number of single- and multi-photon records of
// frame i without reading the frame body.
func (f *File) PhotonRecords(i int) (ones, multi int) {
	return int(f.ones[i]), int(f.multi[i])
}

// Photons reads frame i.
func (f *File) Photons(i int) (Photons, error) {
	if i < 0 || i >= len(f.ones) {
		return Photons{}, &DecodeError{Path: f.path, Frame: i, Reason: fmt.Sprintf("frame out of range [0,%d)", len(f.ones))}
	}

	var p Photons
	var err error
	if p.Ones, err = f.readInt32s(f.placeOnesBase+4*f.onesOff[i], int(f.ones[i])); err != nil {
		return Photons{}, &DecodeError{Path: f.path, Frame: i, Reason: "read place_ones", Err: err}
	}
	if p.Multi, err = f.readInt32s(f.placeMultiBase+4*f.multiOff[i], int(f.multi[i])); err != nil {
		return Photons{}, &DecodeError{Path: f.path, Frame: i, Reason: "read place_multi", Err: err}
	}
	if p.MultiCount, err = f.readInt32s(f.countMultiBase+4*f.multiOff[i], int(f.multi[i])); err != nil {
		return Photons{}, &DecodeError{Path: f.path, Frame: i, Reason: "read count_multi", Err: err}
	}

	if err := f.validate(i, p); err != nil {
		return Photons{}, err
	}
	return p, nil
}

func (f *File) validate(i int, p Photons) error {
	for _, pix := range p.Ones {
		if pix < 0 || int(pix) >= f.numPix {
			return &DecodeError{Path: f.path, Frame: i, Reason: fmt.Sprintf("pixel %d outside [0,%d)", pix, f.numPix)}
		}
	}
	for j, pix := range p.Multi {
		if pix < 0 || int(pix) >= f.numPix {
			return &DecodeError{Path: f.path, Frame: i, Reason: fmt.Sprintf("pixel %d outside [0,%d)", pix, f.numPix)}
		}
		if p.MultiCount[j] <= 0 {
			return &DecodeError{Path: f.path, Frame: i, Reason: fmt.Sprintf("non-positive count %d at pixel %d", p.MultiCount[j], pix)}
		}
	}
	return nil
}

func (f *File) readInt32s(off int64, n int) ([]int32, error) {
	if n == 0 {
		return nil, nil
	}
	if end := off + 4*int64(n); end > f.size {
		return nil, fmt.Errorf("%d records at offset %d run past end of file (%d bytes): %w", n, off, f.size, io.ErrUnexpectedEOF)
	}
	size := 4 * n
	if cap(f.buf) < size {
		f.buf = make([]byte, size)
	}
	buf := f.buf[:size]
	if err := readFull(f.f, buf, off); err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out, nil
}

// readFull fills buf from off. A short read is reported as
// io.ErrUnexpectedEOF; an io.EOF that accompanies a complete read is not an
// error.
func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Close releases the file handle.
func (f *File) Close() error {
	return f.f.Close()
}
