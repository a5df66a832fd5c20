// Package emc reads and writes sparse photon-count files.
//
// A file holds an ordered sequence of frames. Each frame is a list of pixels
// that saw exactly one photon ("ones") and a list of pixels that saw more
// than one, with their counts ("multi"). All integers are little-endian
// int32:
//
//	header      1024 bytes: num_data, num_pix, ftype (0 = sparse), zero padding
//	ones        [num_data]
//	multi       [num_data]
//	place_ones  [sum(ones)]
//	place_multi [sum(multi)]
//	count_multi [sum(multi)]
//
// File keeps the handle open and reads one frame at a time with ReadAt, so
// frame access cost does not depend on the number of frames in the file.
package emc
