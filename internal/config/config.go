// Package config resolves an emcview configuration file into the photon
// sources, detector geometries and viewer options of a session.
//
// The file is INI (the default) or JSON, read through viper. Recognised
// keys:
//
//	[emc]
//	in_photons_file  | in_photons_list
//	in_detector_file | in_detector_list
//	output_folder    (default "data/")
//	log_file
//	blacklist_file
//
//	[parameters]     legacy calibration for detector files without one
//	detd, pixsize, ewald_rad
//
//	[viewer]
//	cmap, frame_cache, seed, mask
//
// File-valued keys are resolved relative to the directory holding the
// config file. Entries of list files are used as written.
package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/banshee-data/emcview/internal/fsutil"
)

// DefaultOutputFolder is used when output_folder is not set.
const DefaultOutputFolder = "data/"

// Config is a resolved configuration.
type Config struct {
	// Path is the config file as given to Load.
	Path string

	PhotonFiles   []string
	DetectorFiles []string

	OutputFolder  string
	LogFile       string
	BlacklistFile string

	// DetectorDistance (detd/pixsize) and EwaldRadius are both nil unless
	// all three legacy parameters are present.
	DetectorDistance *float64
	EwaldRadius      *float64

	Viewer ViewerOptions
}

// Load reads and resolves the config file at path from the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFS(fsutil.OSFileSystem{}, path)
}

// LoadFS reads and resolves the config file at path from fsys. List files
// named by the config are read from fsys as well.
func LoadFS(fsys fsutil.FileSystem, path string) (*Config, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := viper.New()
	v.SetConfigType(configType(path))
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, &ResolutionError{Path: path, Reason: fmt.Sprintf("parse: %v", err)}
	}

	r := resolver{v: v, fsys: fsys, path: path, dir: filepath.Dir(path)}
	cfg := &Config{Path: path}

	if cfg.PhotonFiles, err = r.fileOrList("emc.in_photons_file", "emc.in_photons_list"); err != nil {
		return nil, err
	}
	if cfg.DetectorFiles, err = r.fileOrList("emc.in_detector_file", "emc.in_detector_list"); err != nil {
		return nil, err
	}

	cfg.OutputFolder = filepath.Clean(DefaultOutputFolder)
	if v.IsSet("emc.output_folder") {
		cfg.OutputFolder = r.filename(v.GetString("emc.output_folder"))
	}
	if v.IsSet("emc.log_file") {
		cfg.LogFile = r.filename(v.GetString("emc.log_file"))
	}
	if v.IsSet("emc.blacklist_file") {
		cfg.BlacklistFile = r.filename(v.GetString("emc.blacklist_file"))
	}

	if err := r.calibration(cfg); err != nil {
		return nil, err
	}
	if err := r.viewer(&cfg.Viewer); err != nil {
		return nil, err
	}
	if err := cfg.Viewer.Validate(); err != nil {
		return nil, &ResolutionError{Path: path, Key: "viewer", Reason: err.Error()}
	}
	return cfg, nil
}

// LoadBlacklist reads the configured blacklist file. It returns nil when
// the config names none.
func (c *Config) LoadBlacklist(fsys fsutil.FileSystem) (*Blacklist, error) {
	if c.BlacklistFile == "" {
		return nil, nil
	}
	return ReadBlacklist(fsys, c.BlacklistFile)
}

func configType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "ini"
}

type resolver struct {
	v    *viper.Viper
	fsys fsutil.FileSystem
	path string
	dir  string
}

// filename resolves a file-valued key relative to the config directory.
func (r resolver) filename(value string) string {
	value = strings.TrimSpace(value)
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(r.dir, value)
}

// fileOrList prefers the single-file key and falls back to the list key.
func (r resolver) fileOrList(fileKey, listKey string) ([]string, error) {
	if r.v.IsSet(fileKey) && strings.TrimSpace(r.v.GetString(fileKey)) != "" {
		return []string{r.filename(r.v.GetString(fileKey))}, nil
	}
	if !r.v.IsSet(listKey) {
		return nil, &ResolutionError{Key: fileKey, Path: r.path, Reason: fmt.Sprintf("missing, and no %s fallback", listKey)}
	}

	listPath := r.filename(r.v.GetString(listKey))
	entries, err := ReadList(r.fsys, listPath)
	if err != nil {
		return nil, &ResolutionError{Key: listKey, Path: r.path, Reason: err.Error()}
	}
	if len(entries) == 0 {
		return nil, &ResolutionError{Key: listKey, Path: r.path, Reason: fmt.Sprintf("list file %s is empty", listPath)}
	}
	return entries, nil
}

// calibration reads the legacy [parameters] section. Any missing value
// leaves the config uncalibrated; malformed values are errors.
func (r resolver) calibration(cfg *Config) error {
	keys := []string{"parameters.detd", "parameters.pixsize", "parameters.ewald_rad"}
	vals := make([]float64, len(keys))
	for i, k := range keys {
		if !r.v.IsSet(k) {
			return nil
		}
		f, err := cast.ToFloat64E(strings.TrimSpace(r.v.GetString(k)))
		if err != nil {
			return &ResolutionError{Key: k, Path: r.path, Reason: err.Error()}
		}
		vals[i] = f
	}
	if vals[1] == 0 {
		return &ResolutionError{Key: keys[1], Path: r.path, Reason: "pixel size must be non-zero"}
	}

	detd := vals[0] / vals[1]
	ewald := vals[2]
	cfg.DetectorDistance = &detd
	cfg.EwaldRadius = &ewald
	return nil
}

func (r resolver) viewer(opts *ViewerOptions) error {
	if r.v.IsSet("viewer.cmap") {
		s := strings.TrimSpace(r.v.GetString("viewer.cmap"))
		opts.Colormap = &s
	}
	if r.v.IsSet("viewer.frame_cache") {
		n, err := cast.ToIntE(strings.TrimSpace(r.v.GetString("viewer.frame_cache")))
		if err != nil {
			return &ResolutionError{Key: "viewer.frame_cache", Path: r.path, Reason: err.Error()}
		}
		opts.FrameCache = &n
	}
	if r.v.IsSet("viewer.seed") {
		n, err := cast.ToInt64E(strings.TrimSpace(r.v.GetString("viewer.seed")))
		if err != nil {
			return &ResolutionError{Key: "viewer.seed", Path: r.path, Reason: err.Error()}
		}
		opts.Seed = &n
	}
	if r.v.IsSet("viewer.mask") {
		b, err := cast.ToBoolE(strings.TrimSpace(r.v.GetString("viewer.mask")))
		if err != nil {
			return &ResolutionError{Key: "viewer.mask", Path: r.path, Reason: err.Error()}
		}
		opts.Mask = &b
	}
	return nil
}
