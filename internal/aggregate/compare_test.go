package aggregate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/emcview/internal/emc"
	"github.com/banshee-data/emcview/internal/geometry"
	"github.com/banshee-data/emcview/internal/testutil"
)

func TestCompare_PowderPredictor(t *testing.T) {
	a, ds := newAggregator(t, det3, []int{10}, []string{"a"}, nil, Options{})
	require.NoError(t, a.Powder().RecomputeAll())

	cmp, err := a.Compare(3, PowderPredictor{Powder: a.Powder()})
	require.NoError(t, err)

	assert.Same(t, cmp.Frame.Image, cmp.Observed)
	total := float64(ds.frame(0, 3).Total())
	assert.InDelta(t, total, mat.Sum(cmp.Predicted), 1e-9, "prediction carries the frame's photon count")

	// The prediction is proportional to the powder sum.
	sum := a.Powder().Sum(0)
	scale := total / floats.Sum(sum)
	for pix, v := range sum {
		assert.InDelta(t, v*scale, cmp.Predicted.At(pix/3, pix%3), 1e-9)
	}
}

func TestCompare_EmptyPowder(t *testing.T) {
	a, _ := newAggregator(t, det3, []int{2, 2}, []string{"a", "b"}, nil, Options{})
	require.NoError(t, a.Powder().Recompute([]int{0, 1}))

	_, err := a.Compare(2, PowderPredictor{Powder: a.Powder()})
	assert.ErrorIs(t, err, ErrEmptyPowder)
}

type constPredictor struct {
	vals []float64
	err  error
}

func (c constPredictor) Predict(*Frame) ([]float64, error) { return c.vals, c.err }

func TestCompare_CustomPredictor(t *testing.T) {
	a, _ := newAggregator(t, det3, []int{1}, []string{"a"}, nil, Options{})

	c, err := a.Compare(0, constPredictor{vals: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}})
	require.NoError(t, err)
	assert.Equal(t, 6.0, c.Predicted.At(1, 2))

	_, err = a.Compare(0, constPredictor{vals: []float64{1}})
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = a.Compare(0, constPredictor{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestCompare_Uncalibrated(t *testing.T) {
	a, _ := newAggregator(t, testutil.Detector{Side: 2}, []int{1}, []string{"a"}, nil, Options{})
	_, err := a.Compare(0, constPredictor{vals: make([]float64, 4)})
	assert.ErrorIs(t, err, geometry.ErrMissingCalibration)
}

func TestPowderPredictor_ZeroSum(t *testing.T) {
	a, _ := newAggregator(t, det3, []int{1}, []string{"a"}, nil, Options{})
	require.NoError(t, a.Powder().Add(0))
	a.Powder().sums[0] = make([]float64, 9)

	pred, err := PowderPredictor{Powder: a.Powder()}.Predict(&Frame{Photons: emc.Photons{Ones: []int32{1}}})
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 9), pred)
}
