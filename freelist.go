package blockfs

// FreeList tracks block allocation with one bit per disk block, cached in
// memory and written through to the free-map extent bit-block by bit-block.
// Bit set means allocated. The metadata extents are marked allocated at
// format time, so the map, the inode chains and the fixed extents partition
// the whole disk.
type FreeList struct {
	dev       BlockDevice
	super     *Superblock
	bits      []byte
	freeCount uint32
}

func loadFreeList(dev BlockDevice, super *Superblock) (*FreeList, error) {
	bits := make([]byte, 0, super.FreeBlocks*BlockSize)
	for i := uint32(0); i < super.FreeBlocks; i++ {
		blk, err := dev.ReadBlock(super.FreeStart + i)
		if err != nil {
			return nil, err
		}
		bits = append(bits, blk...)
	}
	fl := &FreeList{
		dev:   dev,
		super: super,
		bits:  bits,
	}
	for dbn := super.DataStart; dbn < super.TotalBlocks; dbn++ {
		if !fl.isSet(dbn) {
			fl.freeCount++
		}
	}
	return fl, nil
}

func (fl *FreeList) isSet(dbn uint32) bool {
	return fl.bits[dbn/8]&(1<<(dbn%8)) != 0
}

func (fl *FreeList) set(dbn uint32) {
	fl.bits[dbn/8] |= 1 << (dbn % 8)
}

func (fl *FreeList) clear(dbn uint32) {
	fl.bits[dbn/8] &^= 1 << (dbn % 8)
}

// syncBit writes back the one free-map block whose bits cover dbn.
func (fl *FreeList) syncBit(dbn uint32) error {
	blkoff := dbn / 8 / BlockSize
	start := blkoff * BlockSize
	return fl.dev.WriteBlock(fl.super.FreeStart+blkoff, fl.bits[start:start+BlockSize])
}

// Alloc pops one free data block or fails with ErrNoSpace.
func (fl *FreeList) Alloc() (uint32, error) {
	if fl.freeCount == 0 {
		return 0, ErrNoSpace
	}
	for dbn := fl.super.DataStart; dbn < fl.super.TotalBlocks; dbn++ {
		if fl.isSet(dbn) {
			continue
		}
		fl.set(dbn)
		fl.freeCount--
		return dbn, fl.syncBit(dbn)
	}
	return 0, ErrNoSpace
}

// Release returns a block to the free pool. Releasing a block that is not a
// data block or not currently allocated is rejected, which is what protects
// the double-free invariant.
func (fl *FreeList) Release(dbn uint32) error {
	if dbn < fl.super.DataStart || dbn >= fl.super.TotalBlocks {
		return ErrNotAllocated
	}
	if !fl.isSet(dbn) {
		return ErrNotAllocated
	}
	fl.clear(dbn)
	fl.freeCount++
	return fl.syncBit(dbn)
}

// FreeCount is the number of data blocks not owned by any inode.
func (fl *FreeList) FreeCount() uint32 {
	return fl.freeCount
}
