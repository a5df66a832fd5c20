// Package geometry loads detector geometry files and pairs them with data
// sources.
//
// A Descriptor holds the per-pixel layout of one detector: reciprocal-space
// pixel coordinates, a correction factor, the mask flags and, when
// calibrated, the projected 2D pixel positions used to assemble images.
// Descriptors are immutable once loaded and shared by pointer.
//
// Set memoizes loads; Mapping deduplicates a list of geometry references
// (one per data source) into a unique, sorted descriptor list plus a
// source-to-geometry index.
package geometry
