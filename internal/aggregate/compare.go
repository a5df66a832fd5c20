package aggregate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyPowder is returned by PowderPredictor when no frame of the
// requested geometry has been accumulated.
var ErrEmptyPowder = errors.New("powder sum is empty for this geometry")

// Predictor produces the expected per-pixel intensities of a frame.
type Predictor interface {
	Predict(f *Frame) ([]float64, error)
}

// PowderPredictor predicts the powder pattern of the frame's geometry,
// scaled so the prediction carries as many photons as the frame's active
// pixels.
type PowderPredictor struct {
	Powder *Powder
}

// Predict implements Predictor.
func (pp PowderPredictor) Predict(f *Frame) ([]float64, error) {
	g := f.Location.GeometryIndex
	if pp.Powder.GeometryCount(g) == 0 {
		return nil, fmt.Errorf("%w: geometry %d", ErrEmptyPowder, g)
	}
	sum := pp.Powder.Sum(g)
	total := floats.Sum(sum)
	if total == 0 {
		return sum, nil
	}
	floats.Scale(float64(f.ActivePhotons())/total, sum)
	return sum, nil
}

// Comparison pairs an observed frame with a prediction on the same layout.
type Comparison struct {
	Frame     *Frame
	Observed  *mat.Dense
	Predicted *mat.Dense
}

// Compare assembles frame global next to the predictor's expectation.
func (a *Aggregator) Compare(global int, predictor Predictor) (*Comparison, error) {
	f, err := a.Frame(global)
	if err != nil {
		return nil, err
	}
	if f.Image == nil {
		_, _, err := f.Geometry().Shape()
		return nil, err
	}

	pred, err := predictor.Predict(f)
	if err != nil {
		return nil, fmt.Errorf("predict frame %d: %w", global, err)
	}
	img, err := f.Geometry().Assemble(pred)
	if err != nil {
		return nil, fmt.Errorf("assemble prediction for frame %d: %w", global, err)
	}
	return &Comparison{Frame: f, Observed: f.Image, Predicted: img}, nil
}
