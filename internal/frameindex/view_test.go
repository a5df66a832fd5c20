package frameindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView_NoBlacklist(t *testing.T) {
	idx, _ := build(t, []int{3, 2}, []string{"a"})
	v, err := NewView(idx, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, v.TotalFrames())
	first, ok := v.First()
	require.True(t, ok)
	assert.Equal(t, 0, first)
	last, ok := v.Last()
	require.True(t, ok)
	assert.Equal(t, 4, last)

	for g := 0; g < 5; g++ {
		n, err := v.Nth(g)
		require.NoError(t, err)
		assert.Equal(t, g, n)
	}
}

func TestView_Blacklist(t *testing.T) {
	idx, _ := build(t, []int{4, 4}, []string{"a", "b"})
	// 3 and 4 straddle the source boundary.
	v, err := NewView(idx, []int{6, 0, 3, 4, 3})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 4, 6}, v.Excluded())
	assert.Equal(t, 4, v.TotalFrames())

	valid := []int{1, 2, 5, 7}
	for k, g := range valid {
		n, err := v.Nth(k)
		require.NoError(t, err)
		assert.Equal(t, g, n, "nth %d", k)

		r, err := v.Rank(g)
		require.NoError(t, err)
		assert.Equal(t, k, r)
		assert.True(t, v.Valid(g))
	}

	for _, g := range []int{0, 3, 4, 6} {
		assert.False(t, v.Valid(g), "blacklisted %d", g)

		_, err := v.Resolve(g)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		var oor *IndexOutOfRangeError
		require.ErrorAs(t, err, &oor)
		assert.True(t, oor.Excluded)

		_, _, err = v.Photons(g)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)

		_, err = v.Rank(g)
		assert.Error(t, err)
	}

	_, err = v.Nth(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	first, _ := v.First()
	last, _ := v.Last()
	assert.Equal(t, 1, first)
	assert.Equal(t, 7, last)

	loc, err := v.Resolve(5)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.Source)
	assert.Equal(t, 1, loc.Local)
}

func TestView_NextPrevSkipExcluded(t *testing.T) {
	idx, _ := build(t, []int{4, 4}, []string{"a", "b"})
	v, err := NewView(idx, []int{0, 3, 4, 6})
	require.NoError(t, err)

	tests := []struct {
		from   int
		next   int
		nextOK bool
		prev   int
		prevOK bool
	}{
		{from: -5, next: 1, nextOK: true, prevOK: false},
		{from: 0, next: 1, nextOK: true, prevOK: false},
		{from: 1, next: 2, nextOK: true, prevOK: false},
		{from: 2, next: 5, nextOK: true, prev: 1, prevOK: true},
		{from: 3, next: 5, nextOK: true, prev: 2, prevOK: true},
		{from: 5, next: 7, nextOK: true, prev: 2, prevOK: true},
		{from: 7, nextOK: false, prev: 5, prevOK: true},
		{from: 8, nextOK: false, prev: 7, prevOK: true},
		{from: 100, nextOK: false, prev: 7, prevOK: true},
	}
	for _, tt := range tests {
		n, ok := v.NextValid(tt.from)
		assert.Equal(t, tt.nextOK, ok, "next from %d", tt.from)
		if ok {
			assert.Equal(t, tt.next, n, "next from %d", tt.from)
		}
		p, ok := v.PrevValid(tt.from)
		assert.Equal(t, tt.prevOK, ok, "prev from %d", tt.from)
		if ok {
			assert.Equal(t, tt.prev, p, "prev from %d", tt.from)
		}
	}
}

func TestView_EverythingExcluded(t *testing.T) {
	idx, _ := build(t, []int{2}, []string{"a"})
	v, err := NewView(idx, []int{0, 1})
	require.NoError(t, err)

	assert.Equal(t, 0, v.TotalFrames())
	_, ok := v.First()
	assert.False(t, ok)
	_, ok = v.Last()
	assert.False(t, ok)
	_, ok = v.NextValid(-1)
	assert.False(t, ok)
	_, ok = v.PrevValid(2)
	assert.False(t, ok)
}

func TestView_RejectsOutOfRangeExclusions(t *testing.T) {
	idx, _ := build(t, []int{2}, []string{"a"})
	_, err := NewView(idx, []int{2})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = NewView(idx, []int{-1})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

// Every valid frame is reachable by walking NextValid from the start, and
// no excluded frame is ever produced.
func TestView_WalkCoversValidFrames(t *testing.T) {
	idx, _ := build(t, []int{5, 0, 6, 3}, []string{"a", "b", "a", "c"})
	excluded := []int{0, 1, 5, 9, 13}
	v, err := NewView(idx, excluded)
	require.NoError(t, err)

	var walked []int
	g, ok := v.First()
	for ok {
		walked = append(walked, g)
		g, ok = v.NextValid(g)
	}
	require.Len(t, walked, v.TotalFrames())
	assert.Equal(t, idx.TotalFrames()-len(excluded), v.TotalFrames())
	for _, w := range walked {
		assert.NotContains(t, excluded, w)
	}
}
