package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInfoCmd(o *rootOptions) *cobra.Command {
	var withStats bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Summarise the frame index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(o)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			total := s.index.TotalFrames()
			valid := s.view.TotalFrames()
			fmt.Fprintf(out, "config:     %s\n", s.cfg.Path)
			fmt.Fprintf(out, "frames:     %s (%s valid, %s blacklisted)\n",
				humanize.Comma(int64(total)), humanize.Comma(int64(valid)), humanize.Comma(int64(total-valid)))
			fmt.Fprintf(out, "sources:    %d\n", s.index.NumSources())
			fmt.Fprintf(out, "geometries: %d\n", len(s.index.Geometries()))
			fmt.Fprintf(out, "colormap:   %s\n\n", s.cmap)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tFIRST\tFRAMES\tSIZE\tGEOMETRY\tPATH")
			for _, sp := range s.index.Spans() {
				size := "?"
				if fi, err := o.fsys.Stat(sp.Path); err == nil {
					size = humanize.Bytes(uint64(fi.Size()))
				}
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\t%s\n", sp.Source, sp.First, sp.Count, size, sp.GeometryIndex, sp.Path)
			}
			tw.Flush()
			fmt.Fprintln(out)

			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GEOMETRY\tPIXELS\tACTIVE\tCALIBRATED\tPATH")
			for i, g := range s.index.Geometries() {
				_, _, calibrated := g.Calibration()
				fmt.Fprintf(tw, "%d\t%d\t%d\t%t\t%s\n", i, g.NumPix(), g.ActiveCount(), calibrated, g.Path())
			}
			tw.Flush()

			if !withStats || valid == 0 {
				return nil
			}
			var indices []int
			for g, ok := s.view.First(); ok; g, ok = s.view.NextValid(g) {
				indices = append(indices, g)
			}
			sum, err := s.agg.Stats(indices)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nphotons:    %s total, mean %.2f, median %.1f, max %.0f, stddev %.2f per frame\n",
				humanize.Comma(int64(sum.Photons)), sum.Mean, sum.Median, sum.Max, sum.StdDev)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withStats, "stats", false, "read every valid frame and report photon statistics")
	return cmd
}
