package blockfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutExtentsDisjoint(t *testing.T) {
	r := require.New(t)
	sb, err := Geometry{TotalBlocks: 2048, InodeCount: 64}.Layout()
	r.NoError(err)

	r.EqualValues(1, sb.InodeStart)
	r.Equal(sb.InodeStart+sb.InodeCount, sb.DirStart)
	r.Equal(sb.DirStart+sb.DirBlocks, sb.FreeStart)
	r.Equal(sb.FreeStart+sb.FreeBlocks, sb.DataStart)
	r.Less(sb.DataStart, sb.TotalBlocks)
	// The free map must cover every block on the device.
	r.GreaterOrEqual(sb.FreeBlocks*BlockSize*8, sb.TotalBlocks)
}

func TestLayoutRejectsTinyDisk(t *testing.T) {
	_, err := Geometry{TotalBlocks: 8, InodeCount: 64}.Layout()
	require.Equal(t, ErrDiskTooSmall, err)
}

func TestMkfsThenMount(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "disk.img")

	fs, err := Format(path, Geometry{TotalBlocks: 256, InodeCount: 16})
	r.NoError(err)

	r.EqualValues(256, fs.super.TotalBlocks)
	r.EqualValues(16, fs.super.InodeCount)
	// Freshly formatted: the whole data region is free.
	r.Equal(fs.super.DataBlocks(), fs.FreeBlocks())
	r.Empty(fs.List())
	r.NoError(fs.Unmount())

	// A second mount reads the same geometry back from the superblock.
	fs2, err := Mount(path)
	r.NoError(err)
	r.EqualValues(256, fs2.super.TotalBlocks)
	r.Equal(fs2.super.DataBlocks(), fs2.FreeBlocks())
	r.NoError(fs2.Unmount())
}

func TestMountMissingDiskIsFatal(t *testing.T) {
	r := require.New(t)
	_, err := Mount(filepath.Join(t.TempDir(), "nope.img"))
	r.Error(err)
	r.True(IsFatal(err))
}

func TestMountGarbageIsFatal(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "garbage.img")

	dev, err := CreateFileBlockDevice(path, 64)
	r.NoError(err)
	junk := make([]byte, BlockSize)
	for i := range junk {
		junk[i] = 0x5a
	}
	r.NoError(dev.WriteBlock(0, junk))
	r.NoError(dev.Close())

	_, err = Mount(path)
	r.Error(err)
	r.True(IsFatal(err))
}
