package aggregate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/emcview/internal/frameindex"
	"github.com/banshee-data/emcview/internal/metrics"
)

// Powder accumulates per-geometry sums of frame intensities, counting only
// active pixels, so a sum equals the sum of Intensities. Sums are kept
// unassembled, one vector per distinct geometry, so frames from different
// detectors are never mixed.
type Powder struct {
	view *frameindex.View
	logf func(format string, v ...interface{})

	mu     sync.RWMutex
	sums   [][]float64
	counts []int
	frames map[int]struct{}
}

func newPowder(view *frameindex.View, logf func(string, ...interface{})) *Powder {
	p := &Powder{view: view, logf: logf}
	p.reset()
	return p
}

func (p *Powder) reset() {
	geoms := p.view.Index().Geometries()
	p.sums = make([][]float64, len(geoms))
	for i, g := range geoms {
		p.sums[i] = make([]float64, g.NumPix())
	}
	p.counts = make([]int, len(geoms))
	p.frames = make(map[int]struct{})
}

// partial is the contribution of a batch of frames.
type partial struct {
	sums   [][]float64
	counts []int
}

func (p *Powder) newPartial() *partial {
	geoms := p.view.Index().Geometries()
	return &partial{sums: make([][]float64, len(geoms)), counts: make([]int, len(geoms))}
}

func (pt *partial) add(g, numPix int, fn func(dst []float64)) {
	if pt.sums[g] == nil {
		pt.sums[g] = make([]float64, numPix)
	}
	fn(pt.sums[g])
	pt.counts[g]++
}

func (pt *partial) merge(other *partial) {
	for g, s := range other.sums {
		if s == nil {
			continue
		}
		if pt.sums[g] == nil {
			pt.sums[g] = make([]float64, len(s))
		}
		floats.Add(pt.sums[g], s)
		pt.counts[g] += other.counts[g]
	}
}

// resolve checks a request before any frame is read: every index must be
// valid and appear once.
func (p *Powder) resolve(indices []int) ([]frameindex.Location, error) {
	seen := make(map[int]struct{}, len(indices))
	locs := make([]frameindex.Location, len(indices))
	for i, g := range indices {
		if _, dup := seen[g]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateFrame, g)
		}
		seen[g] = struct{}{}
		loc, err := p.view.Resolve(g)
		if err != nil {
			return nil, err
		}
		locs[i] = loc
	}
	return locs, nil
}

// accumulate reads locs with one worker per source and returns their
// combined contribution. Workers only touch their own source, so no
// source is read by two goroutines at once.
func (p *Powder) accumulate(locs []frameindex.Location) (*partial, error) {
	bySource := make(map[int][]frameindex.Location)
	for _, loc := range locs {
		bySource[loc.Source] = append(bySource[loc.Source], loc)
	}

	idx := p.view.Index()
	parts := make([]*partial, 0, len(bySource))
	var eg errgroup.Group
	for _, batch := range bySource {
		part := p.newPartial()
		parts = append(parts, part)
		eg.Go(func() error {
			for _, loc := range batch {
				photons, err := idx.Read(loc)
				if err != nil {
					return err
				}
				part.add(loc.GeometryIndex, loc.Geometry.NumPix(), func(dst []float64) {
					addActive(dst, photons, loc.Geometry)
				})
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	total := p.newPartial()
	for _, part := range parts {
		total.merge(part)
	}
	return total, nil
}

// Recompute replaces the sum with exactly the given frames.
func (p *Powder) Recompute(indices []int) error {
	start := time.Now()
	locs, err := p.resolve(indices)
	if err != nil {
		return err
	}
	part, err := p.accumulate(locs)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.reset()
	p.commit(indices, part)
	p.mu.Unlock()

	elapsed := time.Since(start)
	metrics.PowderSeconds.Observe(elapsed.Seconds())
	p.logf("powder recomputed over %d frames in %v", len(indices), elapsed)
	return nil
}

// RecomputeAll recomputes the sum over every valid frame.
func (p *Powder) RecomputeAll() error {
	n := p.view.TotalFrames()
	indices := make([]int, 0, n)
	g, ok := p.view.First()
	for ok {
		indices = append(indices, g)
		g, ok = p.view.NextValid(g)
	}
	return p.Recompute(indices)
}

// Add accumulates further frames. If any of them is already part of the
// sum, nothing is added and the error matches ErrAlreadyAccumulated.
func (p *Powder) Add(indices ...int) error {
	locs, err := p.resolve(indices)
	if err != nil {
		return err
	}

	p.mu.RLock()
	for _, g := range indices {
		if _, ok := p.frames[g]; ok {
			p.mu.RUnlock()
			return fmt.Errorf("%w: %d", ErrAlreadyAccumulated, g)
		}
	}
	p.mu.RUnlock()

	part, err := p.accumulate(locs)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Re-check under the write lock in case a concurrent Add won.
	for _, g := range indices {
		if _, ok := p.frames[g]; ok {
			return fmt.Errorf("%w: %d", ErrAlreadyAccumulated, g)
		}
	}
	p.commit(indices, part)
	return nil
}

// commit must be called with mu held for writing.
func (p *Powder) commit(indices []int, part *partial) {
	for g, s := range part.sums {
		if s != nil {
			floats.Add(p.sums[g], s)
		}
		p.counts[g] += part.counts[g]
	}
	for _, g := range indices {
		p.frames[g] = struct{}{}
	}
}

// Frames returns the accumulated frame indices in ascending order.
func (p *Powder) Frames() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int, 0, len(p.frames))
	for g := range p.frames {
		out = append(out, g)
	}
	sort.Ints(out)
	return out
}

// Count returns the number of accumulated frames.
func (p *Powder) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.frames)
}

// GeometryCount returns the number of accumulated frames recorded with
// the given geometry.
func (p *Powder) GeometryCount(geometryIndex int) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counts[geometryIndex]
}

// Contains reports whether frame global is part of the sum.
func (p *Powder) Contains(global int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.frames[global]
	return ok
}

// Sum returns a copy of the unassembled sum for one geometry.
func (p *Powder) Sum(geometryIndex int) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]float64, len(p.sums[geometryIndex]))
	copy(out, p.sums[geometryIndex])
	return out
}

// Image assembles the sum of one geometry onto its detector layout.
func (p *Powder) Image(geometryIndex int) (*mat.Dense, error) {
	g := p.view.Index().Geometries()[geometryIndex]
	return g.Assemble(p.Sum(geometryIndex))
}
