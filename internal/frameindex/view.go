package frameindex

import (
	"sort"

	"github.com/banshee-data/emcview/internal/emc"
)

// View filters an Index through a blacklist. Global numbering is kept:
// excluded frames are simply not valid, and navigation steps over them.
type View struct {
	idx      *Index
	excluded []int // sorted, unique
}

// NewView wraps idx, excluding the given global indices. Duplicates are
// ignored; indices outside the index are rejected.
func NewView(idx *Index, excluded []int) (*View, error) {
	ex := make([]int, 0, len(excluded))
	for _, g := range excluded {
		if g < 0 || g >= idx.total {
			return nil, &IndexOutOfRangeError{Index: g, Total: idx.total}
		}
		ex = append(ex, g)
	}
	sort.Ints(ex)
	ex = dedupSorted(ex)

	if len(ex) > 0 {
		logf("blacklist excludes %d of %d frames", len(ex), idx.total)
	}
	return &View{idx: idx, excluded: ex}, nil
}

func dedupSorted(s []int) []int {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// Index returns the underlying index.
func (v *View) Index() *Index { return v.idx }

// Excluded returns a copy of the excluded global indices, ascending.
func (v *View) Excluded() []int {
	out := make([]int, len(v.excluded))
	copy(out, v.excluded)
	return out
}

// TotalFrames returns the number of valid frames.
func (v *View) TotalFrames() int { return v.idx.total - len(v.excluded) }

func (v *View) isExcluded(global int) bool {
	i := sort.SearchInts(v.excluded, global)
	return i < len(v.excluded) && v.excluded[i] == global
}

// Valid reports whether global addresses a frame that is not excluded.
func (v *View) Valid(global int) bool {
	return global >= 0 && global < v.idx.total && !v.isExcluded(global)
}

// Resolve resolves a valid global index.
func (v *View) Resolve(global int) (Location, error) {
	if global >= 0 && global < v.idx.total && v.isExcluded(global) {
		return Location{}, &IndexOutOfRangeError{Index: global, Total: v.idx.total, Excluded: true}
	}
	return v.idx.Resolve(global)
}

// Photons resolves a valid global index and reads its photons.
func (v *View) Photons(global int) (emc.Photons, Location, error) {
	loc, err := v.Resolve(global)
	if err != nil {
		return emc.Photons{}, Location{}, err
	}
	p, err := v.idx.Read(loc)
	return p, loc, err
}

// Nth returns the global index of the k-th valid frame.
func (v *View) Nth(k int) (int, error) {
	if k < 0 || k >= v.TotalFrames() {
		return 0, &IndexOutOfRangeError{Index: k, Total: v.TotalFrames()}
	}
	// excluded[j]-j counts valid frames before excluded[j]; it never
	// decreases, so the excluded entries preceding the answer are a prefix.
	j := sort.Search(len(v.excluded), func(j int) bool { return v.excluded[j]-j > k })
	return k + j, nil
}

// Rank returns the position of a valid global index among valid frames.
func (v *View) Rank(global int) (int, error) {
	if !v.Valid(global) {
		return 0, &IndexOutOfRangeError{Index: global, Total: v.idx.total, Excluded: v.isExcluded(global)}
	}
	return global - sort.SearchInts(v.excluded, global), nil
}

// validBefore counts valid frames with global index < g, for g in [0, total].
func (v *View) validBefore(g int) int {
	return g - sort.SearchInts(v.excluded, g)
}

// First returns the lowest valid global index.
func (v *View) First() (int, bool) {
	if v.TotalFrames() == 0 {
		return 0, false
	}
	g, _ := v.Nth(0)
	return g, true
}

// Last returns the highest valid global index.
func (v *View) Last() (int, bool) {
	if v.TotalFrames() == 0 {
		return 0, false
	}
	g, _ := v.Nth(v.TotalFrames() - 1)
	return g, true
}

// NextValid returns the lowest valid index greater than global.
func (v *View) NextValid(global int) (int, bool) {
	g := global + 1
	if g < 0 {
		g = 0
	}
	if g >= v.idx.total {
		return 0, false
	}
	k := v.validBefore(g)
	if k >= v.TotalFrames() {
		return 0, false
	}
	n, _ := v.Nth(k)
	return n, true
}

// PrevValid returns the highest valid index less than global.
func (v *View) PrevValid(global int) (int, bool) {
	g := global
	if g > v.idx.total {
		g = v.idx.total
	}
	if g <= 0 {
		return 0, false
	}
	k := v.validBefore(g)
	if k == 0 {
		return 0, false
	}
	n, _ := v.Nth(k - 1)
	return n, true
}
