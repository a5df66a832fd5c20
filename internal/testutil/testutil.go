// Package testutil provides shared test fixtures: synthetic detector
// geometry files and photon files written to an fsutil.FileSystem.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/banshee-data/emcview/internal/emc"
	"github.com/banshee-data/emcview/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Detector describes a square synthetic detector of Side×Side pixels.
// Pixel i sits at row i/Side, column i%Side. With DetectorDistance equal to
// EwaldRadius and qz = 0 the projection is the identity, so assembled
// images have exactly Side×Side cells.
type Detector struct {
	Side int
	// Calibrated writes "num_pix detd ewald_rad" in the header.
	Calibrated bool
	// Distance is used for both detd and ewald_rad; zero means 100.
	Distance float64
	// BadPixels get mask flag 2.
	BadPixels []int
	// OuterPixels get mask flag 1.
	OuterPixels []int
}

// NumPix returns Side².
func (d Detector) NumPix() int { return d.Side * d.Side }

// Contents renders the detector as an ASCII geometry file.
func (d Detector) Contents() string {
	dist := d.Distance
	if dist == 0 {
		dist = 100
	}
	flags := make(map[int]int)
	for _, p := range d.OuterPixels {
		flags[p] = 1
	}
	for _, p := range d.BadPixels {
		flags[p] = 2
	}

	var b strings.Builder
	if d.Calibrated {
		fmt.Fprintf(&b, "%d %g %g\n", d.NumPix(), dist, dist)
	} else {
		fmt.Fprintf(&b, "%d\n", d.NumPix())
	}
	for i := 0; i < d.NumPix(); i++ {
		row, col := i/d.Side, i%d.Side
		fmt.Fprintf(&b, "%d %d 0 1.0 %d\n", row, col, flags[i])
	}
	return b.String()
}

// WriteDetector writes d to path.
func WriteDetector(t testing.TB, fsys fsutil.FileSystem, path string, d Detector) {
	t.Helper()
	if err := fsys.WriteFile(path, []byte(d.Contents()), 0644); err != nil {
		t.Fatalf("write detector %s: %v", path, err)
	}
}

// WriteEMC writes frames to path as a photon file.
func WriteEMC(t testing.TB, fsys fsutil.FileSystem, path string, numPix int, frames []emc.Photons) {
	t.Helper()
	w, err := emc.NewWriter(fsys, path, numPix)
	if err != nil {
		t.Fatalf("create photon writer %s: %v", path, err)
	}
	for i, p := range frames {
		if err := w.Add(p); err != nil {
			t.Fatalf("add frame %d to %s: %v", i, path, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close photon writer %s: %v", path, err)
	}
}

// SyntheticFrames returns n reproducible random frames for a detector with
// numPix pixels.
func SyntheticFrames(n, numPix int, seed int64) []emc.Photons {
	rng := rand.New(rand.NewSource(seed))
	frames := make([]emc.Photons, n)
	for i := range frames {
		var p emc.Photons
		for pix := 0; pix < numPix; pix++ {
			switch r := rng.Float64(); {
			case r < 0.05:
				p.Multi = append(p.Multi, int32(pix))
				p.MultiCount = append(p.MultiCount, int32(2+rng.Intn(3)))
			case r < 0.25:
				p.Ones = append(p.Ones, int32(pix))
			}
		}
		frames[i] = p
	}
	return frames
}

// MarkerFrames returns n frames where frame i has a single photon on pixel
// i % numPix, which makes the origin of a decoded frame easy to assert.
func MarkerFrames(n, numPix int) []emc.Photons {
	frames := make([]emc.Photons, n)
	for i := range frames {
		frames[i] = emc.Photons{Ones: []int32{int32(i % numPix)}}
	}
	return frames
}
