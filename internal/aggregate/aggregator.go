// Package aggregate turns indexed photon frames into displayable data:
// assembled frame images, navigation over valid frames, powder sums and
// model comparisons.
package aggregate

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/emcview/internal/emc"
	"github.com/banshee-data/emcview/internal/frameindex"
	"github.com/banshee-data/emcview/internal/geometry"
	"github.com/banshee-data/emcview/internal/metrics"
	"github.com/banshee-data/emcview/internal/monitoring"
)

var (
	// ErrNoFrames is returned when an operation needs at least one valid frame.
	ErrNoFrames = errors.New("no valid frames")
	// ErrDuplicateFrame is returned when a request names the same frame twice.
	ErrDuplicateFrame = errors.New("duplicate frame index")
	// ErrAlreadyAccumulated is returned by Powder.Add for a frame that is
	// already part of the sum.
	ErrAlreadyAccumulated = errors.New("frame already accumulated")
)

// Options configures an Aggregator.
type Options struct {
	// CacheSize is the number of decoded frames kept in memory. Zero or
	// negative disables the cache.
	CacheSize int
	// Seed seeds the random navigation source.
	Seed int64
	// Logf receives diagnostics; nil uses the monitoring logger.
	Logf func(format string, v ...interface{})
}

// Frame is one decoded frame. Frames may be shared through the cache and
// must be treated as read-only.
type Frame struct {
	Location frameindex.Location
	Photons  emc.Photons
	// Image is the assembled detector image; nil when the frame's geometry
	// is uncalibrated.
	Image *mat.Dense
}

// Geometry returns the descriptor the frame was recorded with.
func (f *Frame) Geometry() *geometry.Descriptor { return f.Location.Geometry }

// Aggregator serves frames of a View.
type Aggregator struct {
	view  *frameindex.View
	cache *lru.Cache[int, *Frame]
	logf  func(format string, v ...interface{})

	rngMu sync.Mutex
	rng   *rand.Rand

	powder *Powder
}

// New creates an Aggregator over view.
func New(view *frameindex.View, opts Options) (*Aggregator, error) {
	a := &Aggregator{
		view: view,
		logf: opts.Logf,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
	if a.logf == nil {
		a.logf = monitoring.Component("aggregate")
	}
	if opts.CacheSize > 0 {
		c, err := lru.New[int, *Frame](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create frame cache: %w", err)
		}
		a.cache = c
	}
	a.powder = newPowder(view, a.logf)
	return a, nil
}

// View returns the frame view the aggregator reads from.
func (a *Aggregator) View() *frameindex.View { return a.view }

// TotalFrames returns the number of valid frames.
func (a *Aggregator) TotalFrames() int { return a.view.TotalFrames() }

// Powder returns the aggregator's powder accumulator.
func (a *Aggregator) Powder() *Powder { return a.powder }

// Frame decodes and assembles a valid frame. Decode failures are returned
// as *frameindex.FrameDecodeError. A frame whose geometry has no
// calibration is returned with a nil Image.
func (a *Aggregator) Frame(global int) (*Frame, error) {
	if a.cache != nil {
		if f, ok := a.cache.Get(global); ok {
			metrics.FrameCacheHits.Inc()
			return f, nil
		}
	}

	p, loc, err := a.view.Photons(global)
	if err != nil {
		return nil, err
	}

	f := &Frame{Location: loc, Photons: p}
	img, err := loc.Geometry.Assemble(p.Dense(loc.Geometry.NumPix()))
	switch {
	case err == nil:
		f.Image = img
	case errors.Is(err, geometry.ErrMissingCalibration):
	default:
		return nil, fmt.Errorf("assemble frame %d: %w", global, err)
	}

	if a.cache != nil {
		a.cache.Add(global, f)
	}
	return f, nil
}

// Intensities returns the unassembled per-pixel photon counts of a frame
// and its geometry. Inactive pixels are zeroed.
func (a *Aggregator) Intensities(global int) ([]float64, *geometry.Descriptor, error) {
	f, err := a.Frame(global)
	if err != nil {
		return nil, nil, err
	}
	g := f.Geometry()
	out := make([]float64, g.NumPix())
	addActive(out, f.Photons, g)
	return out, g, nil
}

// ActivePhotons returns the number of photons on active pixels of the
// frame's geometry.
func (f *Frame) ActivePhotons() int {
	g := f.Geometry()
	n := 0
	f.Photons.Each(func(pixel, count int) {
		if g.Active(pixel) {
			n += count
		}
	})
	return n
}

// addActive adds the counts of p that land on active pixels of g to dst.
func addActive(dst []float64, p emc.Photons, g *geometry.Descriptor) {
	p.Each(func(pixel, count int) {
		if g.Active(pixel) {
			dst[pixel] += float64(count)
		}
	})
}

// Next returns the next valid frame after cur. At the last valid frame it
// returns that frame. cur may be blacklisted but must lie inside the index.
func (a *Aggregator) Next(cur int) (int, error) {
	if err := a.checkCursor(cur); err != nil {
		return 0, err
	}
	if n, ok := a.view.NextValid(cur); ok {
		return n, nil
	}
	last, _ := a.view.Last()
	return last, nil
}

// Previous returns the previous valid frame before cur. At the first
// valid frame it returns that frame.
func (a *Aggregator) Previous(cur int) (int, error) {
	if err := a.checkCursor(cur); err != nil {
		return 0, err
	}
	if p, ok := a.view.PrevValid(cur); ok {
		return p, nil
	}
	first, _ := a.view.First()
	return first, nil
}

func (a *Aggregator) checkCursor(cur int) error {
	total := a.view.Index().TotalFrames()
	if cur < 0 || cur >= total {
		return &frameindex.IndexOutOfRangeError{Index: cur, Total: total}
	}
	if a.view.TotalFrames() == 0 {
		return ErrNoFrames
	}
	return nil
}

// Random returns a valid frame drawn uniformly.
func (a *Aggregator) Random() (int, error) {
	n := a.view.TotalFrames()
	if n == 0 {
		return 0, ErrNoFrames
	}
	a.rngMu.Lock()
	k := a.rng.Intn(n)
	a.rngMu.Unlock()
	return a.view.Nth(k)
}

// Reseed restarts the random navigation sequence.
func (a *Aggregator) Reseed(seed int64) {
	a.rngMu.Lock()
	a.rng = rand.New(rand.NewSource(seed))
	a.rngMu.Unlock()
}
