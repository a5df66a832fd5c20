package main

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/emcview/internal/emc"
	"github.com/banshee-data/emcview/internal/fsutil"
	"github.com/banshee-data/emcview/internal/monitoring"
)

type genOptions struct {
	out            string
	sources        int
	frames         int
	side           int
	geometries     int
	seed           int64
	blacklistEvery int
}

func newGenCmd(o *rootOptions) *cobra.Command {
	g := genOptions{}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a synthetic dataset with a config file",
		Long: `Write a synthetic dataset: square detector files, photon files with a
powder ring and a config.ini tying them together. The dataset can be
browsed with the other commands via --config <out>/config.ini.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := generate(o.fsys, g)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&g.out, "out", "o", "sample", "output directory")
	fl.IntVar(&g.sources, "sources", 2, "number of photon files")
	fl.IntVarP(&g.frames, "frames", "n", 100, "frames per photon file")
	fl.IntVar(&g.side, "side", 32, "detector side length in pixels")
	fl.IntVar(&g.geometries, "geometries", 1, "number of distinct detector files, assigned to sources round robin")
	fl.Int64Var(&g.seed, "seed", 1, "random seed")
	fl.IntVar(&g.blacklistEvery, "blacklist-every", 0, "write a blacklist excluding every n-th frame (0 disables)")
	return cmd
}

// generate writes the dataset described by g and returns the config path.
func generate(fsys fsutil.FileSystem, g genOptions) (string, error) {
	logf := monitoring.Component("gen")

	switch {
	case g.sources < 1:
		return "", fmt.Errorf("--sources must be positive")
	case g.frames < 0:
		return "", fmt.Errorf("--frames must not be negative")
	case g.side < 2:
		return "", fmt.Errorf("--side must be at least 2")
	case g.geometries < 1 || g.geometries > g.sources:
		return "", fmt.Errorf("--geometries must be between 1 and --sources")
	}

	dir, err := filepath.Abs(g.out)
	if err != nil {
		return "", err
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	detectors := make([]string, g.geometries)
	for i := range detectors {
		detectors[i] = filepath.Join(dir, fmt.Sprintf("det_%d.dat", i))
		// Each geometry moves the beam centre by one pixel.
		if err := fsys.WriteFile(detectors[i], []byte(detectorFile(g.side, float64(i))), 0644); err != nil {
			return "", err
		}
	}

	rng := rand.New(rand.NewSource(g.seed))
	numPix := g.side * g.side
	photons := make([]string, g.sources)
	for s := range photons {
		photons[s] = filepath.Join(dir, fmt.Sprintf("photons_%d.emc", s))
		w, err := emc.NewWriter(fsys, photons[s], numPix)
		if err != nil {
			return "", err
		}
		shift := float64(s % g.geometries)
		for f := 0; f < g.frames; f++ {
			if err := w.Add(ringFrame(rng, g.side, shift)); err != nil {
				return "", err
			}
			if (f+1)%50 == 0 {
				logf("%s: %d/%d frames", filepath.Base(photons[s]), f+1, g.frames)
			}
		}
		if err := w.Close(); err != nil {
			return "", err
		}
	}

	// A single detector entry applies to every source. Otherwise each source
	// gets its own line and repeated files are loaded once.
	detList := detectors
	if g.geometries > 1 {
		detList = make([]string, g.sources)
		for s := range detList {
			detList[s] = detectors[s%g.geometries]
		}
	}
	if err := writeList(fsys, filepath.Join(dir, "detectors.lst"), detList); err != nil {
		return "", err
	}
	if err := writeList(fsys, filepath.Join(dir, "photons.lst"), photons); err != nil {
		return "", err
	}

	var cfg strings.Builder
	cfg.WriteString("[emc]\n")
	cfg.WriteString("in_photons_list = photons.lst\n")
	cfg.WriteString("in_detector_list = detectors.lst\n")
	cfg.WriteString("output_folder = data\n")

	if g.blacklistEvery > 0 {
		var bl strings.Builder
		for i := 0; i < g.sources*g.frames; i++ {
			if i%g.blacklistEvery == g.blacklistEvery-1 {
				bl.WriteString("1\n")
			} else {
				bl.WriteString("0\n")
			}
		}
		if err := fsys.WriteFile(filepath.Join(dir, "blacklist.dat"), []byte(bl.String()), 0644); err != nil {
			return "", err
		}
		cfg.WriteString("blacklist_file = blacklist.dat\n")
	}

	path := filepath.Join(dir, "config.ini")
	if err := fsys.WriteFile(path, []byte(cfg.String()), 0644); err != nil {
		return "", err
	}
	logf("dataset of %d frames in %d files written to %s", g.sources*g.frames, g.sources, dir)
	return path, nil
}

// detectorFile renders a calibrated flat detector. With detd equal to
// ewald_rad and qz = 0 every pixel projects onto its own cell.
func detectorFile(side int, shift float64) string {
	const dist = 100.0
	var b strings.Builder
	fmt.Fprintf(&b, "%d %g %g\n", side*side, dist, dist)
	centre := float64(side-1)/2 + shift
	for i := 0; i < side*side; i++ {
		row, col := i/side, i%side
		mask := 0
		if math.Hypot(float64(row)-centre, float64(col)-centre) > float64(side)/2 {
			mask = 1
		}
		fmt.Fprintf(&b, "%g %g 0 1.0 %d\n", float64(col)-centre, float64(row)-centre, mask)
	}
	return b.String()
}

// ringFrame draws one frame of a powder ring around the beam centre.
func ringFrame(rng *rand.Rand, side int, shift float64) emc.Photons {
	centre := float64(side-1)/2 + shift
	radius := float64(side) / 4
	width := math.Max(1, float64(side)/16)

	var p emc.Photons
	for i := 0; i < side*side; i++ {
		row, col := i/side, i%side
		d := math.Hypot(float64(row)-centre, float64(col)-centre) - radius
		lambda := 0.01 + 0.3*math.Exp(-d*d/(2*width*width))
		switch n := poisson(rng, lambda); {
		case n == 1:
			p.Ones = append(p.Ones, int32(i))
		case n > 1:
			p.Multi = append(p.Multi, int32(i))
			p.MultiCount = append(p.MultiCount, int32(n))
		}
	}
	return p
}

func poisson(rng *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k, p := 0, rng.Float64()
	for p > l {
		k++
		p *= rng.Float64()
	}
	return k
}

func writeList(fsys fsutil.FileSystem, path string, entries []string) error {
	return fsys.WriteFile(path, []byte(strings.Join(entries, "\n")+"\n"), 0644)
}
