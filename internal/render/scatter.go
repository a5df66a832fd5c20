package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"
)

// AssetsHost is where rendered HTML pages load the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ScatterPoints returns the non-zero cells of img as [x, y, value] triples.
func ScatterPoints(img *mat.Dense) ([]opts.ScatterData, float64) {
	rows, cols := img.Dims()
	pts := make([]opts.ScatterData, 0)
	maxV := 0.0
	for x := 0; x < rows; x++ {
		for y := 0; y < cols; y++ {
			v := img.At(x, y)
			if v == 0 {
				continue
			}
			if v > maxV {
				maxV = v
			}
			pts = append(pts, opts.ScatterData{Value: []interface{}{x, y, v}})
		}
	}
	return pts, maxV
}

// WriteScatterHTML renders img as an interactive scatter chart colored by
// intensity.
func WriteScatterHTML(w io.Writer, img *mat.Dense, cmap Colormap, title string) error {
	if img == nil || img.IsEmpty() {
		return fmt.Errorf("render: empty image")
	}
	rows, cols := img.Dims()
	pts, maxV := ScatterPoints(img)
	if maxV == 0 {
		maxV = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d pixels, %d lit", rows, cols, len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: rows, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: cols, Name: "y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxV),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: cmap.Hex(10)},
		}),
	)
	scatter.AddSeries("intensity", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render scatter: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
