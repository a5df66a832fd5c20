package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// paletteSize is the number of discrete colors in a heatmap.
const paletteSize = 256

// colormapPalette adapts a Colormap to gonum's palette.Palette.
type colormapPalette struct {
	cmap Colormap
}

func (p colormapPalette) Colors() []color.Color { return p.cmap.Colors(paletteSize) }

// imageGrid exposes an assembled image as a plotter.GridXYZ. Image rows
// run along X and columns along Y.
type imageGrid struct {
	img *mat.Dense
}

func (g imageGrid) Dims() (c, r int) {
	rows, cols := g.img.Dims()
	return rows, cols
}

func (g imageGrid) Z(c, r int) float64 { return g.img.At(c, r) }
func (g imageGrid) X(c int) float64    { return float64(c) }
func (g imageGrid) Y(r int) float64    { return float64(r) }

// HeatmapPlot builds a titled heatmap of img.
func HeatmapPlot(img *mat.Dense, cmap Colormap, title string) (*plot.Plot, error) {
	if img == nil || img.IsEmpty() {
		return nil, fmt.Errorf("render: empty image")
	}

	h := plotter.NewHeatMap(imageGrid{img: img}, colormapPalette{cmap: cmap})
	if h.Max <= h.Min {
		// Flat images still need a non-empty value range.
		h.Max = h.Min + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (pixels)"
	p.Y.Label.Text = "y (pixels)"
	p.Add(h)
	return p, nil
}

// EncodePNG writes img as a PNG heatmap to w.
func EncodePNG(w io.Writer, img *mat.Dense, cmap Colormap, title string) error {
	p, err := HeatmapPlot(img, cmap, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// WritePNG saves img as a PNG heatmap at path.
func WritePNG(img *mat.Dense, cmap Colormap, path, title string) error {
	p, err := HeatmapPlot(img, cmap, title)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}
