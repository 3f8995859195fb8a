package blockfs

// On-disk layout. Block 0 holds the superblock; the inode table, the root
// directory and the free map follow as fixed disjoint extents; everything
// from DataStart up is data blocks owned by inode chains.

const SuperBlockMagicNum = uint32(0x42534642) // "BFSB"
const SuperBlockVersion = uint32(1)

const InodeMagic = uint16(0x4e49) // "IN"

// MaxFileBlocks is the direct-block capacity of one inode; one inode packs
// into exactly one block.
const MaxFileBlocks = 120

// MaxFileSize is the largest byte range one chain can map.
const MaxFileSize = MaxFileBlocks * BlockSize

// MaxFileName leaves room for a terminating NUL inside the fixed name field.
const MaxFileName = 26

const DirEntSize = 32

// DefaultGeometry formats a 1 MiB disk with 64 file slots.
var DefaultGeometry = Geometry{TotalBlocks: 2048, InodeCount: 64}

type Superblock struct {
	MagicNum    uint32 `struct:"uint32"`
	Version     uint32 `struct:"uint32"`
	BlockSize   uint32 `struct:"uint32"`
	TotalBlocks uint32 `struct:"uint32"`
	InodeStart  uint32 `struct:"uint32"`
	InodeCount  uint32 `struct:"uint32"`
	DirStart    uint32 `struct:"uint32"`
	DirBlocks   uint32 `struct:"uint32"`
	FreeStart   uint32 `struct:"uint32"`
	FreeBlocks  uint32 `struct:"uint32"`
	DataStart   uint32 `struct:"uint32"`
}

// DInode is the persisted form of one inode. The chain maps file block
// numbers to disk block numbers; entries [0, NBlocks) are allocated and the
// chain is dense, so an FBN at or past NBlocks is unmapped.
type DInode struct {
	Magic   uint16 `struct:"uint16"`
	Used    uint8  `struct:"uint8"`
	Rsvd    uint8  `struct:"uint8"`
	Size    uint32 `struct:"uint32"`
	NBlocks uint32 `struct:"uint32"`
	Blocks  [MaxFileBlocks]uint32
}

// DirEnt is one fixed-width slot of the root directory. Name is NUL padded.
type DirEnt struct {
	Used uint8  `struct:"uint8"`
	Inum uint32 `struct:"uint32"`
	Name [27]uint8
}

// Geometry is the formatting input; everything else about the layout is
// derived from it and recorded in the superblock.
type Geometry struct {
	TotalBlocks uint32
	InodeCount  uint32
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// Layout computes the extent table for a geometry. Directory capacity equals
// the inode count, so neither table can outgrow the other.
func (g Geometry) Layout() (*Superblock, error) {
	if g.InodeCount == 0 {
		return nil, ErrDiskTooSmall
	}
	sb := &Superblock{
		MagicNum:    SuperBlockMagicNum,
		Version:     SuperBlockVersion,
		BlockSize:   BlockSize,
		TotalBlocks: g.TotalBlocks,
		InodeStart:  1,
		InodeCount:  g.InodeCount,
	}
	sb.DirStart = sb.InodeStart + g.InodeCount
	sb.DirBlocks = ceilDiv(g.InodeCount*DirEntSize, BlockSize)
	sb.FreeStart = sb.DirStart + sb.DirBlocks
	sb.FreeBlocks = ceilDiv(ceilDiv(g.TotalBlocks, 8), BlockSize)
	sb.DataStart = sb.FreeStart + sb.FreeBlocks
	if sb.DataStart >= g.TotalBlocks {
		return nil, ErrDiskTooSmall
	}
	return sb, nil
}

// DataBlocks is the number of blocks available to file chains.
func (sb *Superblock) DataBlocks() uint32 {
	return sb.TotalBlocks - sb.DataStart
}
