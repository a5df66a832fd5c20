// Package frameindex joins several photon files into one randomly
// addressable frame sequence and pairs every frame with its detector
// geometry.
//
// Global frame numbers follow the order of the sources: the frames of
// source 0 come first, then those of source 1, and so on. Resolution is a
// binary search over the per-source start offsets.
package frameindex

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/emcview/internal/emc"
	"github.com/banshee-data/emcview/internal/fsutil"
	"github.com/banshee-data/emcview/internal/geometry"
	"github.com/banshee-data/emcview/internal/metrics"
	"github.com/banshee-data/emcview/internal/monitoring"
)

var logf = monitoring.Component("frameindex")

// DataSource is an ordered sequence of sparse photon frames.
// *emc.File implements it.
type DataSource interface {
	Path() string
	FrameCount() int
	NumPix() int
	Photons(local int) (emc.Photons, error)
	Close() error
}

// Span describes where one source sits in the global sequence.
type Span struct {
	Source        int
	Path          string
	First         int
	Count         int
	GeometryIndex int
	GeometryPath  string
}

// End returns one past the last global index of the span.
func (s Span) End() int { return s.First + s.Count }

// Location is the resolution of a global frame index.
type Location struct {
	Global        int
	Source        int
	Local         int
	GeometryIndex int
	Geometry      *geometry.Descriptor
}

// Index is an immutable view over a fixed list of sources. Reads of the
// same source are serialised; different sources can be read concurrently.
type Index struct {
	sources    []DataSource
	locks      []sync.Mutex
	spans      []Span
	geometries []*geometry.Descriptor
	total      int
}

// OpenSources opens every path as a photon file. On failure the files
// already opened are closed.
func OpenSources(fsys fsutil.FileSystem, paths []string) ([]DataSource, error) {
	sources := make([]DataSource, 0, len(paths))
	for _, p := range paths {
		f, err := emc.Open(fsys, p)
		if err != nil {
			for _, s := range sources {
				s.Close()
			}
			return nil, err
		}
		sources = append(sources, f)
	}
	return sources, nil
}

// Build lays the sources out end to end and pairs each with its geometry.
// A mapping with a single reference is broadcast to every source; any
// other count must match the number of sources.
func Build(sources []DataSource, mapping *geometry.Mapping) (*Index, error) {
	if len(sources) == 0 {
		return nil, &SourceCountMismatchError{Sources: 0, References: mapping.Len()}
	}

	refs := mapping.Index
	if len(sources) != mapping.Len() {
		if mapping.Len() != 1 {
			return nil, &SourceCountMismatchError{Sources: len(sources), References: mapping.Len()}
		}
		refs = make([]int, len(sources))
		for i := range refs {
			refs[i] = mapping.Index[0]
		}
		logf("broadcasting geometry %s to %d sources", mapping.Geometries[mapping.Index[0]].Path(), len(sources))
	}

	idx := &Index{
		sources:    sources,
		locks:      make([]sync.Mutex, len(sources)),
		spans:      make([]Span, len(sources)),
		geometries: mapping.Geometries,
	}
	for i, src := range sources {
		g := mapping.Geometries[refs[i]]
		if src.NumPix() != g.NumPix() {
			return nil, &PixelCountMismatchError{
				Source:         i,
				Path:           src.Path(),
				Geometry:       g.Path(),
				SourcePixels:   src.NumPix(),
				GeometryPixels: g.NumPix(),
			}
		}
		idx.spans[i] = Span{
			Source:        i,
			Path:          src.Path(),
			First:         idx.total,
			Count:         src.FrameCount(),
			GeometryIndex: refs[i],
			GeometryPath:  g.Path(),
		}
		idx.total += src.FrameCount()
	}

	metrics.IndexedFrames.Set(float64(idx.total))
	logf("indexed %d frames from %d sources over %d geometries", idx.total, len(sources), len(mapping.Geometries))
	return idx, nil
}

// TotalFrames returns the number of frames across all sources.
func (idx *Index) TotalFrames() int { return idx.total }

// NumSources returns the number of data sources.
func (idx *Index) NumSources() int { return len(idx.sources) }

// Geometries returns the distinct descriptors, ordered by geometry index.
func (idx *Index) Geometries() []*geometry.Descriptor { return idx.geometries }

// Spans returns a copy of the per-source layout.
func (idx *Index) Spans() []Span {
	out := make([]Span, len(idx.spans))
	copy(out, idx.spans)
	return out
}

// Resolve maps a global index to its source, local offset and geometry.
func (idx *Index) Resolve(global int) (Location, error) {
	if global < 0 || global >= idx.total {
		return Location{}, &IndexOutOfRangeError{Index: global, Total: idx.total}
	}
	// First span ending after global. Empty spans end where they start and
	// are never selected.
	s := sort.Search(len(idx.spans), func(i int) bool { return idx.spans[i].End() > global })
	span := idx.spans[s]
	return Location{
		Global:        global,
		Source:        s,
		Local:         global - span.First,
		GeometryIndex: span.GeometryIndex,
		Geometry:      idx.geometries[span.GeometryIndex],
	}, nil
}

// Photons resolves global and reads its photons.
func (idx *Index) Photons(global int) (emc.Photons, Location, error) {
	loc, err := idx.Resolve(global)
	if err != nil {
		return emc.Photons{}, Location{}, err
	}
	p, err := idx.Read(loc)
	return p, loc, err
}

// Read decodes the frame at a resolved location under its source's lock.
func (idx *Index) Read(loc Location) (emc.Photons, error) {
	idx.locks[loc.Source].Lock()
	p, err := idx.sources[loc.Source].Photons(loc.Local)
	idx.locks[loc.Source].Unlock()

	metrics.RecordDecode(err)
	if err != nil {
		return emc.Photons{}, &FrameDecodeError{
			Global: loc.Global,
			Source: loc.Source,
			Path:   idx.spans[loc.Source].Path,
			Local:  loc.Local,
			Err:    err,
		}
	}
	return p, nil
}

// Close closes every source.
func (idx *Index) Close() error {
	var errs []error
	for i, src := range idx.sources {
		idx.locks[i].Lock()
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", src.Path(), err))
		}
		idx.locks[i].Unlock()
	}
	return errors.Join(errs...)
}
