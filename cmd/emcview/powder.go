package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/banshee-data/emcview/internal/render"
)

func newPowderCmd(o *rootOptions) *cobra.Command {
	var (
		frames  []int
		pngPath string
	)

	cmd := &cobra.Command{
		Use:   "powder",
		Short: "Sum frames into per-geometry powder images",
		Long: `Sum the photons of every valid frame, or of the frames given with
--frames, into one image per distinct detector geometry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(o)
			if err != nil {
				return err
			}
			defer s.Close()

			p := s.agg.Powder()
			if len(frames) > 0 {
				err = p.Recompute(frames)
			} else {
				err = p.RecomputeAll()
			}
			if err != nil {
				return err
			}

			if pngPath != "" {
				if pngPath, err = s.outputPath(o.fsys, pngPath); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "powder: %s frames\n", humanize.Comma(int64(p.Count())))
			geoms := s.index.Geometries()
			for g, d := range geoms {
				var photons float64
				for _, v := range p.Sum(g) {
					photons += v
				}
				fmt.Fprintf(out, "geometry %d: %s frames, %s photons (%s)\n",
					g, humanize.Comma(int64(p.GeometryCount(g))), humanize.Comma(int64(photons)), d.Path())

				if pngPath == "" {
					continue
				}
				img, err := p.Image(g)
				if err != nil {
					return err
				}
				path := pngPath
				if len(geoms) > 1 {
					path = suffixed(pngPath, fmt.Sprintf("_g%d", g))
				}
				title := fmt.Sprintf("Powder sum, geometry %d", g)
				if err := render.WritePNG(img, s.cmap, path, title); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&frames, "frames", nil, "sum only these global frame indices")
	cmd.Flags().StringVar(&pngPath, "png", "", "write each powder image as a PNG heatmap; relative paths go under output_folder")
	return cmd
}

// suffixed inserts suffix before the extension of path.
func suffixed(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
