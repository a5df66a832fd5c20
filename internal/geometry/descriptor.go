package geometry

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Mask flag values stored per pixel in geometry files.
const (
	MaskGood  = 0 // used everywhere
	MaskOuter = 1 // outer ring, excluded from orientation determination only
	MaskBad   = 2 // dead or hot pixel
)

// MaxLayoutCells bounds the rows×cols of an assembled image. Projections
// wider than this come from malformed coordinates.
const MaxLayoutCells = 1 << 24

// LoadOptions carries the caller policy applied on top of a geometry file.
// DetectorDistance and EwaldRadius are the legacy calibration values (in
// pixel units) used when the file header does not carry its own.
type LoadOptions struct {
	DetectorDistance *float64
	EwaldRadius      *float64
	ApplyMask        bool
}

// Descriptor is an immutable detector geometry.
type Descriptor struct {
	path string

	qx, qy, qz []float64
	corr       []float64
	flags      []uint8
	active     []bool

	calibrated bool
	detd       float64
	ewaldRad   float64

	// projected positions and assembly layout, set when calibrated
	cx, cy []float64
	px, py []int
	rows   int
	cols   int
}

// Path returns the file the descriptor was loaded from.
func (d *Descriptor) Path() string { return d.path }

// NumPix returns the number of detector pixels.
func (d *Descriptor) NumPix() int { return len(d.qx) }

// Q returns the reciprocal-space coordinates of pixel i.
func (d *Descriptor) Q(i int) (qx, qy, qz float64) { return d.qx[i], d.qy[i], d.qz[i] }

// Correction returns the polarization and solid-angle factor of pixel i.
func (d *Descriptor) Correction(i int) float64 { return d.corr[i] }

// MaskFlag returns the raw mask flag of pixel i as stored in the file.
func (d *Descriptor) MaskFlag(i int) uint8 { return d.flags[i] }

// Active reports whether pixel i contributes to assembled images.
func (d *Descriptor) Active(i int) bool { return d.active[i] }

// ActiveCount returns the number of active pixels.
func (d *Descriptor) ActiveCount() int {
	n := 0
	for _, a := range d.active {
		if a {
			n++
		}
	}
	return n
}

// Calibration returns the detector distance and Ewald radius in pixels.
// ok is false for an uncalibrated descriptor.
func (d *Descriptor) Calibration() (detd, ewaldRad float64, ok bool) {
	return d.detd, d.ewaldRad, d.calibrated
}

// Projected returns the corrected 2D position of every pixel on the
// detector plane. The slices are shared and must not be modified.
func (d *Descriptor) Projected() (cx, cy []float64, err error) {
	if !d.calibrated {
		return nil, nil, &MissingCalibrationError{Path: d.path}
	}
	return d.cx, d.cy, nil
}

// Shape returns the assembled image dimensions.
func (d *Descriptor) Shape() (rows, cols int, err error) {
	if !d.calibrated {
		return 0, 0, &MissingCalibrationError{Path: d.path}
	}
	return d.rows, d.cols, nil
}

// PixelPosition returns the assembled (row, col) of pixel i.
func (d *Descriptor) PixelPosition(i int) (row, col int, err error) {
	if !d.calibrated {
		return 0, 0, &MissingCalibrationError{Path: d.path}
	}
	return d.px[i], d.py[i], nil
}

// Assemble scatters a per-pixel vector onto the 2D detector layout.
// Inactive pixels contribute nothing; pixels landing on the same cell add.
func (d *Descriptor) Assemble(values []float64) (*mat.Dense, error) {
	if !d.calibrated {
		return nil, &MissingCalibrationError{Path: d.path}
	}
	if len(values) != len(d.qx) {
		return nil, fmt.Errorf("geometry %s: assemble %d values onto %d pixels", d.path, len(values), len(d.qx))
	}

	img := mat.NewDense(d.rows, d.cols, nil)
	for i, v := range values {
		if !d.active[i] || v == 0 {
			continue
		}
		img.Set(d.px[i], d.py[i], img.At(d.px[i], d.py[i])+v)
	}
	return img, nil
}

// parse builds a Descriptor from the contents of an ASCII geometry file:
// a header line "num_pix [detd ewald_rad]" followed by num_pix lines of
// "qx qy qz corr mask".
func parse(path string, data []byte, opts LoadOptions) (*Descriptor, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	next := func() ([]string, bool) {
		for sc.Scan() {
			line++
			fields := strings.Fields(sc.Text())
			if len(fields) > 0 {
				return fields, true
			}
		}
		return nil, false
	}

	header, ok := next()
	if !ok {
		return nil, &ParseError{Path: path, Reason: "empty file"}
	}
	if len(header) != 1 && len(header) != 3 {
		return nil, &ParseError{Path: path, Line: line, Reason: fmt.Sprintf("header has %d fields, want 1 or 3", len(header))}
	}
	numPix, err := strconv.Atoi(header[0])
	if err != nil || numPix <= 0 {
		return nil, &ParseError{Path: path, Line: line, Reason: fmt.Sprintf("invalid pixel count %q", header[0])}
	}

	d := &Descriptor{
		path:   path,
		qx:     make([]float64, numPix),
		qy:     make([]float64, numPix),
		qz:     make([]float64, numPix),
		corr:   make([]float64, numPix),
		flags:  make([]uint8, numPix),
		active: make([]bool, numPix),
	}

	// Header calibration wins over the legacy values from the caller.
	switch {
	case len(header) == 3:
		detd, err1 := strconv.ParseFloat(header[1], 64)
		ewald, err2 := strconv.ParseFloat(header[2], 64)
		if err1 != nil || err2 != nil {
			return nil, &ParseError{Path: path, Line: line, Reason: "invalid calibration values in header"}
		}
		if !finite(detd) || !finite(ewald) {
			return nil, &ParseError{Path: path, Line: line, Reason: "non-finite calibration values in header"}
		}
		d.detd, d.ewaldRad, d.calibrated = detd, ewald, true
	case opts.DetectorDistance != nil && opts.EwaldRadius != nil:
		d.detd, d.ewaldRad, d.calibrated = *opts.DetectorDistance, *opts.EwaldRadius, true
	}

	for i := 0; i < numPix; i++ {
		fields, ok := next()
		if !ok {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("header declares %d pixels, file has %d", numPix, i)}
		}
		if len(fields) != 5 {
			return nil, &ParseError{Path: path, Line: line, Reason: fmt.Sprintf("pixel line has %d fields, want 5", len(fields))}
		}
		var vals [4]float64
		for j := 0; j < 4; j++ {
			v, err := strconv.ParseFloat(fields[j], 64)
			if err != nil || !finite(v) {
				return nil, &ParseError{Path: path, Line: line, Reason: fmt.Sprintf("invalid number %q", fields[j])}
			}
			vals[j] = v
		}
		flag, err := strconv.ParseUint(fields[4], 10, 8)
		if err != nil {
			return nil, &ParseError{Path: path, Line: line, Reason: fmt.Sprintf("invalid mask flag %q", fields[4])}
		}

		d.qx[i], d.qy[i], d.qz[i], d.corr[i] = vals[0], vals[1], vals[2], vals[3]
		d.flags[i] = uint8(flag)
		d.active[i] = !opts.ApplyMask || flag != MaskBad
	}
	if extra, ok := next(); ok {
		return nil, &ParseError{Path: path, Line: line, Reason: fmt.Sprintf("header declares %d pixels, found extra line %q", numPix, strings.Join(extra, " "))}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Path: path, Line: line, Reason: err.Error()}
	}

	if d.calibrated {
		if !finite(d.detd) || !finite(d.ewaldRad) {
			return nil, &ParseError{Path: path, Reason: "non-finite calibration values"}
		}
		if err := d.project(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// project maps pixels onto the detector plane: c = q·detd/(ewald − qz).
func (d *Descriptor) project() error {
	n := len(d.qx)
	d.cx = make([]float64, n)
	d.cy = make([]float64, n)
	for i := 0; i < n; i++ {
		denom := d.ewaldRad - d.qz[i]
		if denom == 0 {
			return &ParseError{Path: d.path, Reason: fmt.Sprintf("pixel %d lies on the projection singularity (qz == ewald_rad)", i)}
		}
		d.cx[i] = d.qx[i] * d.detd / denom
		d.cy[i] = d.qy[i] * d.detd / denom
		if !finite(d.cx[i]) || !finite(d.cy[i]) {
			return &ParseError{Path: d.path, Reason: fmt.Sprintf("pixel %d projects to a non-finite position", i)}
		}
	}

	minX, minY := floats.Min(d.cx), floats.Min(d.cy)
	spanX := math.Round(floats.Max(d.cx)-minX) + 1
	spanY := math.Round(floats.Max(d.cy)-minY) + 1
	if spanX*spanY > MaxLayoutCells {
		return &ParseError{Path: d.path, Reason: fmt.Sprintf("projected layout %.0fx%.0f exceeds %d cells", spanX, spanY, MaxLayoutCells)}
	}
	d.px = make([]int, n)
	d.py = make([]int, n)
	for i := 0; i < n; i++ {
		d.px[i] = int(math.Round(d.cx[i] - minX))
		d.py[i] = int(math.Round(d.cy[i] - minY))
		if d.px[i]+1 > d.rows {
			d.rows = d.px[i] + 1
		}
		if d.py[i]+1 > d.cols {
			d.cols = d.py[i] + 1
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
