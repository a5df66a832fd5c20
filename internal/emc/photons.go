package emc

// Photons is the sparse photon content of one frame.
type Photons struct {
	Ones       []int32 // pixels with a single photon
	Multi      []int32 // pixels with more than one photon
	MultiCount []int32 // photon count for each entry of Multi
}

// Len returns the number of distinct (pixel, count) records in the frame.
func (p Photons) Len() int {
	return len(p.Ones) + len(p.Multi)
}

// Total returns the number of photons in the frame.
func (p Photons) Total() int {
	n := len(p.Ones)
	for _, c := range p.MultiCount {
		n += int(c)
	}
	return n
}

// Each calls fn for every (pixel, count) record, ones first.
func (p Photons) Each(fn func(pixel, count int)) {
	for _, pix := range p.Ones {
		fn(int(pix), 1)
	}
	for i, pix := range p.Multi {
		fn(int(pix), int(p.MultiCount[i]))
	}
}

// AddTo accumulates the photon counts into dst, which is indexed by pixel.
func (p Photons) AddTo(dst []float64) {
	for _, pix := range p.Ones {
		dst[pix]++
	}
	for i, pix := range p.Multi {
		dst[pix] += float64(p.MultiCount[i])
	}
}

// Dense returns a per-pixel count vector of length numPix.
func (p Photons) Dense(numPix int) []float64 {
	out := make([]float64, numPix)
	p.AddTo(out)
	return out
}
