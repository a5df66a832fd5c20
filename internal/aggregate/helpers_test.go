package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/emcview/internal/emc"
	"github.com/banshee-data/emcview/internal/frameindex"
	"github.com/banshee-data/emcview/internal/fsutil"
	"github.com/banshee-data/emcview/internal/geometry"
	"github.com/banshee-data/emcview/internal/monitoring"
	"github.com/banshee-data/emcview/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

type dataset struct {
	fsys   *fsutil.MemoryFileSystem
	frames [][]emc.Photons
	det    testutil.Detector
}

// newDataset writes one synthetic photon file per count and one detector
// file per distinct geometry name.
func newDataset(t *testing.T, det testutil.Detector, counts []int, geoms []string) (*dataset, []string, []string) {
	t.Helper()
	ds := &dataset{fsys: fsutil.NewMemoryFileSystem(), det: det}

	var photons []string
	for i, n := range counts {
		p := fmt.Sprintf("/data/%d.emc", i)
		frames := testutil.SyntheticFrames(n, det.NumPix(), int64(i+1))
		testutil.WriteEMC(t, ds.fsys, p, det.NumPix(), frames)
		ds.frames = append(ds.frames, frames)
		photons = append(photons, p)
	}
	var refs []string
	for _, g := range geoms {
		p := "/det/" + g + ".dat"
		if !ds.fsys.Exists(p) {
			testutil.WriteDetector(t, ds.fsys, p, det)
		}
		refs = append(refs, p)
	}
	return ds, photons, refs
}

func newAggregator(t *testing.T, det testutil.Detector, counts []int, geoms []string, excluded []int, opts Options) (*Aggregator, *dataset) {
	t.Helper()
	ds, photons, refs := newDataset(t, det, counts, geoms)
	return newAggregatorFrom(t, ds, photons, refs, excluded, opts), ds
}

func newAggregatorFrom(t *testing.T, ds *dataset, photons, refs []string, excluded []int, opts Options) *Aggregator {
	t.Helper()
	mapping, err := geometry.BuildMapping(geometry.NewSet(ds.fsys), refs, geometry.LoadOptions{ApplyMask: true})
	require.NoError(t, err)
	sources, err := frameindex.OpenSources(ds.fsys, photons)
	require.NoError(t, err)
	idx, err := frameindex.Build(sources, mapping)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	view, err := frameindex.NewView(idx, excluded)
	require.NoError(t, err)
	a, err := New(view, opts)
	require.NoError(t, err)
	return a
}

// frame returns the frame written at (source, local).
func (ds *dataset) frame(source, local int) emc.Photons {
	return ds.frames[source][local]
}
