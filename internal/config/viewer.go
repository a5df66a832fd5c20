package config

import "fmt"

// ViewerOptions are the optional [viewer] settings. Unset fields are nil
// and the Get* methods supply the defaults.
type ViewerOptions struct {
	Colormap   *string `json:"cmap,omitempty"`
	FrameCache *int    `json:"frame_cache,omitempty"`
	Seed       *int64  `json:"seed,omitempty"`
	Mask       *bool   `json:"mask,omitempty"`
}

// Validate checks the values that are set.
func (o *ViewerOptions) Validate() error {
	if o.Colormap != nil && *o.Colormap == "" {
		return fmt.Errorf("cmap must not be empty")
	}
	if o.FrameCache != nil && *o.FrameCache < 0 {
		return fmt.Errorf("frame_cache must be non-negative, got %d", *o.FrameCache)
	}
	return nil
}

// GetColormap returns the colormap name or the default.
func (o *ViewerOptions) GetColormap() string {
	if o.Colormap == nil {
		return "cubehelix"
	}
	return *o.Colormap
}

// GetFrameCache returns the number of decoded frames to keep, or the default.
func (o *ViewerOptions) GetFrameCache() int {
	if o.FrameCache == nil {
		return 64
	}
	return *o.FrameCache
}

// GetSeed returns the random navigation seed or the default.
func (o *ViewerOptions) GetSeed() int64 {
	if o.Seed == nil {
		return 1
	}
	return *o.Seed
}

// GetMask returns whether bad pixels are masked, or the default.
func (o *ViewerOptions) GetMask() bool {
	if o.Mask == nil {
		return false
	}
	return *o.Mask
}
