package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/emcview/internal/aggregate"
	"github.com/banshee-data/emcview/internal/render"
)

func newCompareCmd(o *rootOptions) *cobra.Command {
	var pngPath string

	cmd := &cobra.Command{
		Use:   "compare <index>",
		Short: "Compare a frame with the powder prediction for its geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			global, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid frame index %q", args[0])
			}

			s, err := openSession(o)
			if err != nil {
				return err
			}
			defer s.Close()

			p := s.agg.Powder()
			if err := p.RecomputeAll(); err != nil {
				return err
			}
			c, err := s.agg.Compare(global, aggregate.PowderPredictor{Powder: p})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			loc := c.Frame.Location
			fmt.Fprintf(out, "frame %d: source %d local %d geometry %d\n", loc.Global, loc.Source, loc.Local, loc.GeometryIndex)
			fmt.Fprintf(out, "observed:  %.0f photons, peak %.0f\n", floats.Sum(c.Observed.RawMatrix().Data), floats.Max(c.Observed.RawMatrix().Data))
			fmt.Fprintf(out, "predicted: %.1f photons, peak %.2f\n", floats.Sum(c.Predicted.RawMatrix().Data), floats.Max(c.Predicted.RawMatrix().Data))

			if pngPath == "" {
				return nil
			}
			if pngPath, err = s.outputPath(o.fsys, pngPath); err != nil {
				return err
			}
			obs := suffixed(pngPath, "_observed")
			if err := render.WritePNG(c.Observed, s.cmap, obs, fmt.Sprintf("Frame %d", loc.Global)); err != nil {
				return err
			}
			pred := suffixed(pngPath, "_predicted")
			if err := render.WritePNG(c.Predicted, s.cmap, pred, fmt.Sprintf("Frame %d prediction", loc.Global)); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\nwrote %s\n", obs, pred)
			return nil
		},
	}

	cmd.Flags().StringVar(&pngPath, "png", "", "write observed and predicted images as PNG heatmaps; relative paths go under output_folder")
	return cmd
}
