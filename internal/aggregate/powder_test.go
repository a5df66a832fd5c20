package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/emcview/internal/frameindex"
	"github.com/banshee-data/emcview/internal/testutil"
)

// serialSums adds up the written frames of each source into the geometry
// the source maps to.
func serialSums(ds *dataset, geomOf []int, nGeom int, keep func(source, local int) bool) [][]float64 {
	out := make([][]float64, nGeom)
	for g := range out {
		out[g] = make([]float64, ds.det.NumPix())
	}
	for s, frames := range ds.frames {
		for l, p := range frames {
			if keep(s, l) {
				p.AddTo(out[geomOf[s]])
			}
		}
	}
	return out
}

func TestPowder_RecomputeAllMatchesSerialSum(t *testing.T) {
	a, ds := newAggregator(t, det3, []int{20, 15, 0, 30}, []string{"a", "b", "b", "a"}, nil, Options{})
	powder := a.Powder()

	require.NoError(t, powder.RecomputeAll())
	assert.Equal(t, 65, powder.Count())
	assert.Equal(t, 50, powder.GeometryCount(0))
	assert.Equal(t, 15, powder.GeometryCount(1))

	want := serialSums(ds, []int{0, 1, 1, 0}, 2, func(int, int) bool { return true })
	for g := range want {
		if diff := cmp.Diff(want[g], powder.Sum(g), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("geometry %d sum mismatch (-want +got):\n%s", g, diff)
		}
	}

	img, err := powder.Image(1)
	require.NoError(t, err)
	for pix, v := range want[1] {
		assert.InDelta(t, v, img.At(pix/3, pix%3), 1e-9)
	}
}

func TestPowder_RecomputeAllSkipsBlacklist(t *testing.T) {
	a, ds := newAggregator(t, det3, []int{5, 5}, []string{"a"}, []int{1, 6, 9}, Options{})
	powder := a.Powder()

	require.NoError(t, powder.RecomputeAll())
	assert.Equal(t, []int{0, 2, 3, 4, 5, 7, 8}, powder.Frames())

	want := serialSums(ds, []int{0, 0}, 1, func(s, l int) bool {
		g := s*5 + l
		return g != 1 && g != 6 && g != 9
	})
	if diff := cmp.Diff(want[0], powder.Sum(0), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("sum mismatch (-want +got):\n%s", diff)
	}
}

func TestPowder_RecomputeReplaces(t *testing.T) {
	a, ds := newAggregator(t, det3, []int{6}, []string{"a"}, nil, Options{})
	powder := a.Powder()

	require.NoError(t, powder.RecomputeAll())
	require.NoError(t, powder.Recompute([]int{4, 1}))

	assert.Equal(t, []int{1, 4}, powder.Frames())
	assert.True(t, powder.Contains(4))
	assert.False(t, powder.Contains(0))

	want := ds.frame(0, 1).Dense(9)
	ds.frame(0, 4).AddTo(want)
	assert.Equal(t, want, powder.Sum(0))
}

func TestPowder_RecomputeRejectsBadInput(t *testing.T) {
	a, _ := newAggregator(t, det3, []int{4}, []string{"a"}, []int{2}, Options{})
	powder := a.Powder()
	require.NoError(t, powder.Recompute([]int{0}))
	before := powder.Sum(0)

	err := powder.Recompute([]int{1, 3, 1})
	assert.ErrorIs(t, err, ErrDuplicateFrame)
	err = powder.Recompute([]int{1, 2})
	assert.ErrorIs(t, err, frameindex.ErrIndexOutOfRange)
	err = powder.Recompute([]int{1, 4})
	assert.ErrorIs(t, err, frameindex.ErrIndexOutOfRange)

	assert.Equal(t, []int{0}, powder.Frames(), "failed requests leave the sum untouched")
	assert.Equal(t, before, powder.Sum(0))
}

func TestPowder_Add(t *testing.T) {
	a, ds := newAggregator(t, det3, []int{3, 3}, []string{"a"}, nil, Options{})
	powder := a.Powder()

	require.NoError(t, powder.Add(0, 4))
	require.NoError(t, powder.Add(5))
	assert.Equal(t, []int{0, 4, 5}, powder.Frames())

	err := powder.Add(1, 4)
	assert.ErrorIs(t, err, ErrAlreadyAccumulated)
	assert.Equal(t, 3, powder.Count(), "nothing from a rejected Add is kept")
	assert.False(t, powder.Contains(1))

	err = powder.Add(2, 2)
	assert.ErrorIs(t, err, ErrDuplicateFrame)

	want := ds.frame(0, 0).Dense(9)
	ds.frame(1, 1).AddTo(want)
	ds.frame(1, 2).AddTo(want)
	assert.Equal(t, want, powder.Sum(0))

	// Incremental and full recompute agree.
	inc := powder.Sum(0)
	require.NoError(t, powder.Recompute([]int{5, 0, 4}))
	assert.Equal(t, inc, powder.Sum(0))
}

func TestPowder_DecodeErrorAbortsRecompute(t *testing.T) {
	ds, _, refs := newDataset(t, det3, nil, []string{"a"})
	photons := []string{"/data/good.emc", "/data/bad.emc"}
	testutil.WriteEMC(t, ds.fsys, photons[0], det3.NumPix(), testutil.MarkerFrames(3, det3.NumPix()))
	testutil.WriteEMC(t, ds.fsys, photons[1], det3.NumPix(), testutil.MarkerFrames(3, det3.NumPix()))
	data, err := ds.fsys.ReadFile(photons[1])
	require.NoError(t, err)
	require.NoError(t, ds.fsys.WriteFile(photons[1], data[:len(data)-4], 0644))

	a := newAggregatorFrom(t, ds, photons, refs, nil, Options{})
	powder := a.Powder()
	require.NoError(t, powder.Add(0))

	err = powder.RecomputeAll()
	assert.ErrorIs(t, err, frameindex.ErrFrameDecode)
	assert.Equal(t, []int{0}, powder.Frames())

	err = powder.Add(1, 5)
	assert.ErrorIs(t, err, frameindex.ErrFrameDecode)
	assert.Equal(t, []int{0}, powder.Frames())
}

func TestPowder_EmptyImage(t *testing.T) {
	a, _ := newAggregator(t, det3, []int{2}, []string{"a"}, nil, Options{})
	img, err := a.Powder().Image(0)
	require.NoError(t, err)
	rows, cols := img.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 0, a.Powder().Count())
}
