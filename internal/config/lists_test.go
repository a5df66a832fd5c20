package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/emcview/internal/fsutil"
)

func TestReadList(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeFile(t, fsys, "/list.txt", "a.emc\r\n  b.emc  \n\n\nc.emc")

	got, err := ReadList(fsys, "/list.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.emc", "  b.emc", "c.emc"}, got, "only trailing whitespace is stripped")

	_, err = ReadList(fsys, "/missing.txt")
	assert.Error(t, err)
}

func TestBlacklist(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeFile(t, fsys, "/bl.dat", "0\n1\n0\n\n1\n0\n")

	b, err := ReadBlacklist(fsys, "/bl.dat")
	require.NoError(t, err)
	assert.Equal(t, 5, b.Len())

	idx, err := b.Indices(5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, idx)

	_, err = b.Indices(6)
	assert.ErrorIs(t, err, ErrConfigResolution)
}

func TestBlacklist_NoneExcluded(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeFile(t, fsys, "/bl.dat", "0\n0\n")

	b, err := ReadBlacklist(fsys, "/bl.dat")
	require.NoError(t, err)
	idx, err := b.Indices(2)
	require.NoError(t, err)
	assert.Empty(t, idx)
}

func TestBlacklist_BadFlag(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeFile(t, fsys, "/bl.dat", "0\nyes\n")

	_, err := ReadBlacklist(fsys, "/bl.dat")
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Reason, "line 2")
}

func TestConfig_LoadBlacklist(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()

	cfg := &Config{}
	b, err := cfg.LoadBlacklist(fsys)
	require.NoError(t, err)
	assert.Nil(t, b)

	writeFile(t, fsys, "/bl.dat", "1\n")
	cfg.BlacklistFile = "/bl.dat"
	b, err = cfg.LoadBlacklist(fsys)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1}, b.Flags)
}

func TestViewerOptions_Validate(t *testing.T) {
	empty := ""
	neg := -3
	zero := 0

	assert.NoError(t, (&ViewerOptions{}).Validate())
	assert.NoError(t, (&ViewerOptions{FrameCache: &zero}).Validate())
	assert.Error(t, (&ViewerOptions{Colormap: &empty}).Validate())
	assert.Error(t, (&ViewerOptions{FrameCache: &neg}).Validate())
}
