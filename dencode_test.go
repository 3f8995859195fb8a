package blockfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInodePacksIntoOneBlock(t *testing.T) {
	r := require.New(t)
	ino := DInode{Magic: InodeMagic, Used: 1, Size: 600, NBlocks: 2}
	ino.Blocks[0] = 40
	ino.Blocks[1] = 41

	size, err := SizeOf(&ino)
	r.NoError(err)
	r.LessOrEqual(size, BlockSize)

	b, err := BytesOf(&ino)
	r.NoError(err)
	var got DInode
	r.NoError(StructOf(Pad(b, BlockSize), &got))
	r.Equal(ino, got)
}

func TestDirEntWidth(t *testing.T) {
	r := require.New(t)
	ent := DirEnt{Used: 1, Inum: 3}
	copy(ent.Name[:], "a.txt")

	b, err := BytesOf(&ent)
	r.NoError(err)
	r.Len(b, DirEntSize)

	var got DirEnt
	r.NoError(StructOf(b, &got))
	r.Equal(ent, got)
	r.Equal("a.txt", entName(&got))
}

func TestSuperblockRoundTrip(t *testing.T) {
	r := require.New(t)
	sb, err := DefaultGeometry.Layout()
	r.NoError(err)

	b, err := BytesOf(sb)
	r.NoError(err)
	var got Superblock
	r.NoError(StructOf(Pad(b, BlockSize), &got))
	r.Equal(*sb, got)
}

func TestPad(t *testing.T) {
	r := require.New(t)
	b := Pad([]byte{1, 2, 3}, 8)
	r.Equal([]byte{1, 2, 3, 0, 0, 0, 0, 0}, b)
	r.Panics(func() { Pad(make([]byte, 9), 8) })
}
