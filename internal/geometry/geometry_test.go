package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/emcview/internal/fsutil"
	"github.com/banshee-data/emcview/internal/monitoring"
	"github.com/banshee-data/emcview/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func ptr(v float64) *float64 { return &v }

func TestLoad_CalibratedHeader(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDetector(t, fsys, "/det.dat", testutil.Detector{Side: 3, Calibrated: true})

	d, err := Load(fsys, "/det.dat", LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "/det.dat", d.Path())
	assert.Equal(t, 9, d.NumPix())
	detd, ewald, ok := d.Calibration()
	assert.True(t, ok)
	assert.Equal(t, 100.0, detd)
	assert.Equal(t, 100.0, ewald)

	rows, cols, err := d.Shape()
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)

	row, col, err := d.PixelPosition(5)
	require.NoError(t, err)
	assert.Equal(t, 1, row)
	assert.Equal(t, 2, col)

	cx, cy, err := d.Projected()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cx[5], 1e-12)
	assert.InDelta(t, 2.0, cy[5], 1e-12)

	qx, qy, qz := d.Q(5)
	assert.Equal(t, [3]float64{1, 2, 0}, [3]float64{qx, qy, qz})
	assert.Equal(t, 1.0, d.Correction(5))
}

func TestLoad_HeaderCalibrationWinsOverLegacy(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDetector(t, fsys, "/det.dat", testutil.Detector{Side: 2, Calibrated: true, Distance: 80})

	d, err := Load(fsys, "/det.dat", LoadOptions{DetectorDistance: ptr(10), EwaldRadius: ptr(20)})
	require.NoError(t, err)
	detd, ewald, ok := d.Calibration()
	require.True(t, ok)
	assert.Equal(t, 80.0, detd)
	assert.Equal(t, 80.0, ewald)
}

func TestLoad_LegacyCalibration(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDetector(t, fsys, "/old.dat", testutil.Detector{Side: 2})

	d, err := Load(fsys, "/old.dat", LoadOptions{DetectorDistance: ptr(50), EwaldRadius: ptr(50)})
	require.NoError(t, err)
	_, _, ok := d.Calibration()
	assert.True(t, ok)

	rows, cols, err := d.Shape()
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
}

func TestLoad_UncalibratedProjectionFails(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDetector(t, fsys, "/old.dat", testutil.Detector{Side: 2})

	// Only one of the two legacy values is not enough.
	d, err := Load(fsys, "/old.dat", LoadOptions{DetectorDistance: ptr(50)})
	require.NoError(t, err, "uncalibrated descriptors load fine")

	_, _, ok := d.Calibration()
	assert.False(t, ok)

	_, _, err = d.Projected()
	assert.ErrorIs(t, err, ErrMissingCalibration)
	_, _, err = d.Shape()
	assert.ErrorIs(t, err, ErrMissingCalibration)
	_, _, err = d.PixelPosition(0)
	assert.ErrorIs(t, err, ErrMissingCalibration)

	_, err = d.Assemble(make([]float64, 4))
	var mcErr *MissingCalibrationError
	require.True(t, errors.As(err, &mcErr))
	assert.Equal(t, "/old.dat", mcErr.Path)
}

func TestLoad_MaskPolicy(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	det := testutil.Detector{Side: 2, Calibrated: true, BadPixels: []int{1}, OuterPixels: []int{2}}
	testutil.WriteDetector(t, fsys, "/det.dat", det)

	unmasked, err := Load(fsys, "/det.dat", LoadOptions{ApplyMask: false})
	require.NoError(t, err)
	assert.Equal(t, 4, unmasked.ActiveCount(), "apply_mask=false forces every pixel active")
	assert.Equal(t, uint8(MaskBad), unmasked.MaskFlag(1))

	masked, err := Load(fsys, "/det.dat", LoadOptions{ApplyMask: true})
	require.NoError(t, err)
	assert.Equal(t, 3, masked.ActiveCount())
	assert.False(t, masked.Active(1))
	assert.True(t, masked.Active(2), "outer-ring pixels stay active")

	img, err := masked.Assemble([]float64{1, 5, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, img.At(0, 0))
	assert.Equal(t, 0.0, img.At(0, 1), "masked pixel is zeroed")
	assert.Equal(t, 2.0, img.At(1, 0))
	assert.Equal(t, 3.0, img.At(1, 1))
}

func TestAssemble_LengthMismatch(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDetector(t, fsys, "/det.dat", testutil.Detector{Side: 2, Calibrated: true})
	d, err := Load(fsys, "/det.dat", LoadOptions{})
	require.NoError(t, err)

	_, err = d.Assemble([]float64{1, 2})
	assert.Error(t, err)
}

func TestAssemble_CoincidentPixelsAdd(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	contents := "3 10 10\n0 0 0 1 0\n0 0 0 1 0\n1 0 0 1 0\n"
	require.NoError(t, fsys.WriteFile("/dup.dat", []byte(contents), 0644))

	d, err := Load(fsys, "/dup.dat", LoadOptions{})
	require.NoError(t, err)
	img, err := d.Assemble([]float64{1, 2, 4})
	require.NoError(t, err)

	rows, cols := img.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 1, cols)
	assert.Equal(t, 3.0, img.At(0, 0))
	assert.Equal(t, 4.0, img.At(1, 0))
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		line     int
	}{
		{name: "empty file", contents: "\n\n", line: 0},
		{name: "bad pixel count", contents: "abc\n", line: 1},
		{name: "zero pixels", contents: "0\n", line: 1},
		{name: "two header fields", contents: "1 100\n0 0 0 1 0\n", line: 1},
		{name: "bad calibration", contents: "1 x 100\n0 0 0 1 0\n", line: 1},
		{name: "fewer pixels than declared", contents: "3\n0 0 0 1 0\n0 1 0 1 0\n", line: 0},
		{name: "more pixels than declared", contents: "1\n0 0 0 1 0\n0 1 0 1 0\n", line: 3},
		{name: "short pixel line", contents: "1\n0 0 0 1\n", line: 2},
		{name: "non-numeric q", contents: "1\n0 y 0 1 0\n", line: 2},
		{name: "bad mask flag", contents: "1\n0 0 0 1 -1\n", line: 2},
		{name: "blank lines are skipped", contents: "2\n\n0 0 0 1 0\n\n0 1 0 1 zz\n", line: 5},
		{name: "NaN q", contents: "2 100 100\n0 0 0 1 0\nNaN 0 0 1 0\n", line: 3},
		{name: "infinite correction", contents: "1\n0 0 0 Inf 0\n", line: 2},
		{name: "infinite calibration", contents: "1 +Inf 100\n0 0 0 1 0\n", line: 1},
		{name: "projection overflows", contents: "1 1e300 1\n1e300 0 0 1 0\n", line: 0},
		{name: "huge q spreads layout", contents: "2 100 100\n0 0 0 1 0\n1e12 0 0 1 0\n", line: 0},
		{name: "qz close to ewald radius", contents: "2 100 100\n0 0 0 1 0\n1 0 99.9999999 1 0\n", line: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fsutil.NewMemoryFileSystem()
			require.NoError(t, fsys.WriteFile("/bad.dat", []byte(tt.contents), 0644))

			_, err := Load(fsys, "/bad.dat", LoadOptions{})
			require.ErrorIs(t, err, ErrGeometryParse)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "/bad.dat", perr.Path)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestLoad_NonFiniteLegacyCalibration(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("/legacy.dat", []byte("1\n0 0 0 1 0\n"), 0644))

	nan, r := math.NaN(), 100.0
	_, err := Load(fsys, "/legacy.dat", LoadOptions{DetectorDistance: &nan, EwaldRadius: &r})
	assert.ErrorIs(t, err, ErrGeometryParse)
}

func TestLoad_ProjectionSingularity(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("/sing.dat", []byte("1 10 5\n1 1 5 1 0\n"), 0644))

	_, err := Load(fsys, "/sing.dat", LoadOptions{})
	assert.ErrorIs(t, err, ErrGeometryParse)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(fsutil.NewMemoryFileSystem(), "/nope.dat", LoadOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGeometryParse)
}

func TestSet_Memoizes(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDetector(t, fsys, "/det.dat", testutil.Detector{Side: 2, Calibrated: true})
	set := NewSet(fsys)

	a, err := set.Load("/det.dat", LoadOptions{})
	require.NoError(t, err)
	b, err := set.Load("/det.dat", LoadOptions{})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, set.Loads())
	assert.Equal(t, 1, fsys.Opens("/det.dat"))

	// Calibration values compare by value, not by pointer identity.
	c1, err := set.Load("/det.dat", LoadOptions{DetectorDistance: ptr(5), EwaldRadius: ptr(6)})
	require.NoError(t, err)
	c2, err := set.Load("/det.dat", LoadOptions{DetectorDistance: ptr(5), EwaldRadius: ptr(6)})
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.NotSame(t, a, c1)

	m, err := set.Load("/det.dat", LoadOptions{ApplyMask: true})
	require.NoError(t, err)
	assert.NotSame(t, a, m)
	assert.Equal(t, 3, set.Loads())
}

func TestSet_FailedLoadIsNotCached(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	set := NewSet(fsys)

	_, err := set.Load("/late.dat", LoadOptions{})
	require.Error(t, err)

	testutil.WriteDetector(t, fsys, "/late.dat", testutil.Detector{Side: 1, Calibrated: true})
	_, err = set.Load("/late.dat", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Loads())
}
