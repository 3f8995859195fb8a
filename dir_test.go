package blockfs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectoryAddLookupRemove(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t, Geometry{TotalBlocks: 64, InodeCount: 4})
	d := fs.dir

	_, err := d.Lookup("a.txt")
	r.Equal(ErrFileNotFound, err)

	r.NoError(d.AddEntry("a.txt", 2))
	inum, err := d.Lookup("a.txt")
	r.NoError(err)
	r.EqualValues(2, inum)

	r.NoError(d.RemoveEntry("a.txt"))
	_, err = d.Lookup("a.txt")
	r.Equal(ErrFileNotFound, err)
}

func TestDirectoryNameBounds(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t, Geometry{TotalBlocks: 64, InodeCount: 4})

	r.Equal(ErrNameTooLong, fs.dir.AddEntry("", 0))
	r.Equal(ErrNameTooLong, fs.dir.AddEntry(strings.Repeat("x", MaxFileName+1), 0))
	r.NoError(fs.dir.AddEntry(strings.Repeat("x", MaxFileName), 0))
}

func TestDirectorySurvivesRemount(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t, Geometry{TotalBlocks: 64, InodeCount: 4})

	r.NoError(fs.dir.AddEntry("kept.dat", 1))
	d2, err := loadDirectory(fs.dev, fs.super)
	r.NoError(err)
	inum, err := d2.Lookup("kept.dat")
	r.NoError(err)
	r.EqualValues(1, inum)
}
