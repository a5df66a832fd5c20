package aggregate

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Summary describes the photon counts of a set of frames.
type Summary struct {
	Frames  int
	Photons int
	Mean    float64
	Median  float64
	Max     float64
	StdDev  float64
}

// Stats summarises the photon totals of the given frames. Frames are read
// directly and do not pass through the frame cache.
func (a *Aggregator) Stats(indices []int) (Summary, error) {
	if len(indices) == 0 {
		return Summary{}, ErrNoFrames
	}

	totals := make(stats.Float64Data, 0, len(indices))
	sum := 0
	for _, g := range indices {
		p, _, err := a.view.Photons(g)
		if err != nil {
			return Summary{}, err
		}
		totals = append(totals, float64(p.Total()))
		sum += p.Total()
	}

	s := Summary{Frames: len(indices), Photons: sum}
	var err error
	if s.Mean, err = totals.Mean(); err != nil {
		return Summary{}, fmt.Errorf("mean: %w", err)
	}
	if s.Median, err = totals.Median(); err != nil {
		return Summary{}, fmt.Errorf("median: %w", err)
	}
	if s.Max, err = totals.Max(); err != nil {
		return Summary{}, fmt.Errorf("max: %w", err)
	}
	if s.StdDev, err = totals.StandardDeviation(); err != nil {
		return Summary{}, fmt.Errorf("stddev: %w", err)
	}
	return s, nil
}
