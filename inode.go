package blockfs

import (
	"github.com/sirupsen/logrus"
)

// InodeTable caches every inode in memory and writes the owning block back
// on each mutation, one inode per block.
type InodeTable struct {
	dev   BlockDevice
	super *Superblock
	cache []*DInode
}

func loadInodeTable(dev BlockDevice, super *Superblock) (*InodeTable, error) {
	cache := make([]*DInode, super.InodeCount)
	for inum := uint32(0); inum < super.InodeCount; inum++ {
		blk, err := dev.ReadBlock(super.InodeStart + inum)
		if err != nil {
			return nil, err
		}
		if !CheckMagic(blk[:2], InodeMagic) {
			return nil, ErrInvalidStructBytes
		}
		var ino DInode
		if err := StructOf(blk, &ino); err != nil {
			return nil, err
		}
		cache[inum] = &ino
	}
	return &InodeTable{
		dev:   dev,
		super: super,
		cache: cache,
	}, nil
}

func (t *InodeTable) sync(inum uint32) error {
	inoBytes, err := BytesOf(t.cache[inum])
	if err != nil {
		return err
	}
	return t.dev.WriteBlock(t.super.InodeStart+inum, Pad(inoBytes, BlockSize))
}

func (t *InodeTable) get(inum uint32) *DInode {
	return t.cache[inum]
}

// Alloc claims an unused inode slot. The slot starts with an empty chain and
// size zero.
func (t *InodeTable) Alloc() (uint32, error) {
	for inum := uint32(0); inum < t.super.InodeCount; inum++ {
		ino := t.cache[inum]
		if ino.Used != 0 {
			continue
		}
		ino.Used = 1
		ino.Size = 0
		ino.NBlocks = 0
		ino.Blocks = [MaxFileBlocks]uint32{}
		return inum, t.sync(inum)
	}
	return 0, ErrNoInode
}

// FbnToDbn resolves a file block number to its disk block. The second result
// is false when the FBN lies past the chain, which signals "needs
// allocation" rather than an error.
func (t *InodeTable) FbnToDbn(inum, fbn uint32) (uint32, bool) {
	ino := t.cache[inum]
	if fbn >= ino.NBlocks {
		return 0, false
	}
	return ino.Blocks[fbn], true
}

// AllocBlock obtains one block from the free list, zero-fills it on disk and
// appends it to the chain at position fbn. Chains only grow one block at a
// time, so fbn must be the current chain length.
func (t *InodeTable) AllocBlock(inum, fbn uint32, free *FreeList) (uint32, error) {
	ino := t.cache[inum]
	if fbn != ino.NBlocks || fbn >= MaxFileBlocks {
		return 0, ErrNoSpace
	}
	dbn, err := free.Alloc()
	if err != nil {
		return 0, err
	}
	if err := t.dev.WriteBlock(dbn, make([]byte, BlockSize)); err != nil {
		return 0, err
	}
	ino.Blocks[fbn] = dbn
	ino.NBlocks++
	logrus.Debugf("inum=%d fbn=%d mapped to dbn=%d", inum, fbn, dbn)
	return dbn, t.sync(inum)
}

func (t *InodeTable) GetSize(inum uint32) uint32 {
	return t.cache[inum].Size
}

// SetSize records a new high-water mark. Size never exceeds the allocated
// chain and never shrinks here; Truncate handles shrinking.
func (t *InodeTable) SetSize(inum, size uint32) error {
	ino := t.cache[inum]
	ino.Size = size
	return t.sync(inum)
}

// Truncate releases chain blocks past the one holding newSize and clamps the
// size. Truncate(inum, 0, free) resets the file to empty.
func (t *InodeTable) Truncate(inum, newSize uint32, free *FreeList) error {
	ino := t.cache[inum]
	keep := ceilDiv(newSize, BlockSize)
	for fbn := keep; fbn < ino.NBlocks; fbn++ {
		if err := free.Release(ino.Blocks[fbn]); err != nil {
			return err
		}
		ino.Blocks[fbn] = 0
	}
	if keep < ino.NBlocks {
		ino.NBlocks = keep
	}
	if newSize < ino.Size {
		ino.Size = newSize
	}
	return t.sync(inum)
}

// Free returns the whole chain to the free list and marks the slot unused.
func (t *InodeTable) Free(inum uint32, free *FreeList) error {
	if err := t.Truncate(inum, 0, free); err != nil {
		return err
	}
	ino := t.cache[inum]
	ino.Used = 0
	ino.Size = 0
	return t.sync(inum)
}

// BlocksInUse sums chain lengths across all in-use inodes.
func (t *InodeTable) BlocksInUse() uint32 {
	var n uint32
	for _, ino := range t.cache {
		if ino.Used != 0 {
			n += ino.NBlocks
		}
	}
	return n
}
