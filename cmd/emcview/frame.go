package main

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/emcview/internal/aggregate"
	"github.com/banshee-data/emcview/internal/render"
)

func newFrameCmd(o *rootOptions) *cobra.Command {
	var (
		next, prev, random bool
		pngPath, htmlPath  string
	)

	cmd := &cobra.Command{
		Use:   "frame [index]",
		Short: "Show one frame",
		Long: `Show one frame of the index. The index defaults to the first valid
frame; --next, --prev and --random move from it the way the viewer's
navigation does, stepping over blacklisted frames and across file
boundaries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(o)
			if err != nil {
				return err
			}
			defer s.Close()

			cur, ok := s.view.First()
			if !ok {
				return aggregate.ErrNoFrames
			}
			if len(args) == 1 {
				if cur, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("invalid frame index %q", args[0])
				}
			}
			switch {
			case next:
				if cur, err = s.agg.Next(cur); err != nil {
					return err
				}
			case prev:
				if cur, err = s.agg.Previous(cur); err != nil {
					return err
				}
			case random:
				if cur, err = s.agg.Random(); err != nil {
					return err
				}
			}

			f, err := s.agg.Frame(cur)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			loc := f.Location
			fmt.Fprintf(out, "frame %d: source %d (%s) local %d\n", loc.Global, loc.Source, s.index.Spans()[loc.Source].Path, loc.Local)
			fmt.Fprintf(out, "geometry %d: %s\n", loc.GeometryIndex, loc.Geometry.Path())
			fmt.Fprintf(out, "photons: %d (%d single, %d multi records)\n", f.Photons.Total(), len(f.Photons.Ones), len(f.Photons.Multi))

			title := fmt.Sprintf("Frame %d", loc.Global)
			if pngPath != "" {
				if pngPath, err = s.outputPath(o.fsys, pngPath); err != nil {
					return err
				}
				if f.Image == nil {
					_, _, err := loc.Geometry.Shape()
					return err
				}
				if err := render.WritePNG(f.Image, s.cmap, pngPath, title); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", pngPath)
			}
			if htmlPath != "" {
				if htmlPath, err = s.outputPath(o.fsys, htmlPath); err != nil {
					return err
				}
				if f.Image == nil {
					_, _, err := loc.Geometry.Shape()
					return err
				}
				var buf bytes.Buffer
				if err := render.WriteScatterHTML(&buf, f.Image, s.cmap, title); err != nil {
					return err
				}
				if err := o.fsys.WriteFile(htmlPath, buf.Bytes(), 0644); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", htmlPath)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&next, "next", false, "show the next valid frame")
	fl.BoolVar(&prev, "prev", false, "show the previous valid frame")
	fl.BoolVar(&random, "random", false, "show a random valid frame")
	fl.StringVar(&pngPath, "png", "", "write the assembled frame as a PNG heatmap; relative paths go under output_folder")
	fl.StringVar(&htmlPath, "html", "", "write the assembled frame as an interactive HTML chart; relative paths go under output_folder")
	cmd.MarkFlagsMutuallyExclusive("next", "prev", "random")
	return cmd
}
