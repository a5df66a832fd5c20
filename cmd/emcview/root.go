package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/emcview/internal/aggregate"
	"github.com/banshee-data/emcview/internal/config"
	"github.com/banshee-data/emcview/internal/frameindex"
	"github.com/banshee-data/emcview/internal/fsutil"
	"github.com/banshee-data/emcview/internal/geometry"
	"github.com/banshee-data/emcview/internal/metrics"
	"github.com/banshee-data/emcview/internal/monitoring"
	"github.com/banshee-data/emcview/internal/render"
	"github.com/banshee-data/emcview/internal/version"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath  string
	mask        bool
	metricsPort int
	quiet       bool

	fsys fsutil.FileSystem
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{fsys: fsutil.OSFileSystem{}}

	cmd := &cobra.Command{
		Use:   "emcview",
		Short: "Browse frames of sparse photon datasets",
		Long: `emcview indexes the photon files named by a config file as one
continuous frame sequence. Each frame is paired with the detector geometry
of the file it came from, so datasets recorded with several detector
files can be browsed, summed and compared frame by frame.`,
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if o.quiet {
				monitoring.SetLogger(nil)
			}
			metrics.StartMetricsServer(o.metricsPort)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "config.ini", "path to the config file")
	pf.BoolVarP(&o.mask, "mask", "M", false, "zero out pixels flagged bad in the detector file")
	pf.IntVar(&o.metricsPort, "metrics-port", 0, "serve prometheus metrics on this port (0 disables)")
	pf.BoolVarP(&o.quiet, "quiet", "q", false, "suppress diagnostic logging")

	cmd.AddCommand(
		newInfoCmd(o),
		newFrameCmd(o),
		newPowderCmd(o),
		newCompareCmd(o),
		newCatalogCmd(o),
		newGenCmd(o),
	)
	return cmd
}

// session is everything a command needs to read frames.
type session struct {
	cfg   *config.Config
	index *frameindex.Index
	view  *frameindex.View
	agg   *aggregate.Aggregator
	cmap  render.Colormap
}

func (s *session) Close() error { return s.index.Close() }

// openSession resolves the config and builds the frame index. Any error
// here means the inputs are inconsistent.
func openSession(o *rootOptions) (*session, error) {
	cfg, err := config.LoadFS(o.fsys, o.configPath)
	if err != nil {
		return nil, err
	}

	cmap, err := render.ParseColormap(cfg.Viewer.GetColormap())
	if err != nil {
		return nil, fmt.Errorf("viewer.cmap: %w", err)
	}

	mapping, err := geometry.BuildMapping(geometry.NewSet(o.fsys), cfg.DetectorFiles, geometry.LoadOptions{
		DetectorDistance: cfg.DetectorDistance,
		EwaldRadius:      cfg.EwaldRadius,
		ApplyMask:        o.mask || cfg.Viewer.GetMask(),
	})
	if err != nil {
		return nil, err
	}

	sources, err := frameindex.OpenSources(o.fsys, cfg.PhotonFiles)
	if err != nil {
		return nil, err
	}
	idx, err := frameindex.Build(sources, mapping)
	if err != nil {
		for _, s := range sources {
			s.Close()
		}
		return nil, err
	}

	var excluded []int
	bl, err := cfg.LoadBlacklist(o.fsys)
	if err != nil {
		idx.Close()
		return nil, err
	}
	if bl != nil {
		if excluded, err = bl.Indices(idx.TotalFrames()); err != nil {
			idx.Close()
			return nil, err
		}
	}
	view, err := frameindex.NewView(idx, excluded)
	if err != nil {
		idx.Close()
		return nil, err
	}

	agg, err := aggregate.New(view, aggregate.Options{
		CacheSize: cfg.Viewer.GetFrameCache(),
		Seed:      cfg.Viewer.GetSeed(),
	})
	if err != nil {
		idx.Close()
		return nil, err
	}

	return &session{cfg: cfg, index: idx, view: view, agg: agg, cmap: cmap}, nil
}

// outputPath places a relative output file under the configured
// output_folder and makes sure its directory exists.
func (s *session) outputPath(fsys fsutil.FileSystem, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.cfg.OutputFolder, path)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	return path, nil
}
