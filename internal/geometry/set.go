package geometry

import (
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/banshee-data/emcview/internal/fsutil"
	"github.com/banshee-data/emcview/internal/metrics"
	"github.com/banshee-data/emcview/internal/monitoring"
)

var logf = monitoring.Component("geometry")

// loadKey is the memoization key of a Set. Calibration pointers are hashed
// by value.
type loadKey struct {
	Path             string
	DetectorDistance *float64
	EwaldRadius      *float64
	ApplyMask        bool
}

// Set loads descriptors and memoizes them: repeated loads with the same
// path and options return the same *Descriptor.
type Set struct {
	fsys fsutil.FileSystem

	mu    sync.Mutex
	cache map[uint64]*Descriptor
	loads int
}

// NewSet creates a Set reading from fsys.
func NewSet(fsys fsutil.FileSystem) *Set {
	return &Set{fsys: fsys, cache: make(map[uint64]*Descriptor)}
}

// Load returns the descriptor for path under opts, parsing the file only on
// the first request for that (path, opts) combination.
func (s *Set) Load(path string, opts LoadOptions) (*Descriptor, error) {
	key, err := hashstructure.Hash(loadKey{
		Path:             path,
		DetectorDistance: opts.DetectorDistance,
		EwaldRadius:      opts.EwaldRadius,
		ApplyMask:        opts.ApplyMask,
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, fmt.Errorf("hash geometry key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.cache[key]; ok {
		return d, nil
	}

	d, err := Load(s.fsys, path, opts)
	if err != nil {
		return nil, err
	}
	s.loads++
	s.cache[key] = d
	return d, nil
}

// Loads returns how many geometry files this Set has parsed.
func (s *Set) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// Load reads and parses a single geometry file without memoization.
func Load(fsys fsutil.FileSystem, path string, opts LoadOptions) (*Descriptor, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geometry file: %w", err)
	}

	d, err := parse(path, data, opts)
	if err != nil {
		return nil, err
	}
	metrics.GeometryLoads.Inc()

	if d.calibrated {
		logf("loaded %s: %d pixels (%d active), detd=%.2f ewald_rad=%.2f, image %dx%d",
			path, d.NumPix(), d.ActiveCount(), d.detd, d.ewaldRad, d.rows, d.cols)
	} else {
		logf("loaded %s: %d pixels (%d active), uncalibrated", path, d.NumPix(), d.ActiveCount())
	}
	return d, nil
}
