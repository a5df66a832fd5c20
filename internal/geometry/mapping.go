package geometry

import (
	"fmt"
	"sort"
)

// Mapping pairs each geometry reference (one per data source) with a
// deduplicated descriptor.
type Mapping struct {
	// Geometries holds one descriptor per distinct path, sorted by path.
	Geometries []*Descriptor
	// Index[i] is the position in Geometries of reference i.
	Index []int
}

// BuildMapping deduplicates refs by path and loads each distinct path once
// through set. All references share opts, so a path always resolves to the
// descriptor loaded for its first occurrence.
func BuildMapping(set *Set, refs []string, opts LoadOptions) (*Mapping, error) {
	if len(refs) == 0 {
		return nil, ErrNoGeometry
	}

	if allSame(refs) {
		d, err := set.Load(refs[0], opts)
		if err != nil {
			return nil, err
		}
		return &Mapping{
			Geometries: []*Descriptor{d},
			Index:      make([]int, len(refs)),
		}, nil
	}

	uniq := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		uniq = append(uniq, r)
	}
	sort.Strings(uniq)

	m := &Mapping{
		Geometries: make([]*Descriptor, len(uniq)),
		Index:      make([]int, len(refs)),
	}
	for i, path := range uniq {
		d, err := set.Load(path, opts)
		if err != nil {
			return nil, err
		}
		m.Geometries[i] = d
	}
	for i, r := range refs {
		m.Index[i] = sort.SearchStrings(uniq, r)
	}

	logf("mapped %d references onto %d unique geometries", len(refs), len(uniq))
	return m, nil
}

func allSame(refs []string) bool {
	for _, r := range refs[1:] {
		if r != refs[0] {
			return false
		}
	}
	return true
}

// Len returns the number of references.
func (m *Mapping) Len() int { return len(m.Index) }

// Unique returns the number of distinct descriptors.
func (m *Mapping) Unique() int { return len(m.Geometries) }

// GeometryFor returns the geometry index and descriptor of reference i.
func (m *Mapping) GeometryFor(i int) (int, *Descriptor) {
	g := m.Index[i]
	return g, m.Geometries[g]
}

// Validate checks the mapping invariants: one entry per reference and
// geometry indices dense in [0, Unique()).
func (m *Mapping) Validate() error {
	used := make([]bool, len(m.Geometries))
	for i, g := range m.Index {
		if g < 0 || g >= len(m.Geometries) {
			return fmt.Errorf("mapping: reference %d points at geometry %d of %d", i, g, len(m.Geometries))
		}
		used[g] = true
	}
	for g, u := range used {
		if !u {
			return fmt.Errorf("mapping: geometry %d (%s) is not referenced", g, m.Geometries[g].Path())
		}
	}
	return nil
}
