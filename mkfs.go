package blockfs

import (
	"github.com/sirupsen/logrus"
)

// Mkfs lays a fresh filesystem onto dev: superblock, all-unused inode table,
// empty directory, and a free map with every block outside the fixed
// extents marked free.
func Mkfs(dev BlockDevice, geo Geometry) error {
	if geo.TotalBlocks == 0 {
		geo.TotalBlocks = dev.GetTotalBlockCount()
	}
	if geo.TotalBlocks > dev.GetTotalBlockCount() {
		return ErrDiskTooSmall
	}
	sb, err := geo.Layout()
	if err != nil {
		return err
	}
	logrus.Infof("mkfs: %d blocks, %d inodes, data at block %d",
		sb.TotalBlocks, sb.InodeCount, sb.DataStart)

	if err := syncSuperblock(dev, sb); err != nil {
		return err
	}

	// Inode table: every slot present but unused, one per block.
	empty := DInode{Magic: InodeMagic}
	inoBytes, err := BytesOf(&empty)
	if err != nil {
		return err
	}
	inoBlock := Pad(inoBytes, BlockSize)
	for inum := uint32(0); inum < sb.InodeCount; inum++ {
		if err := dev.WriteBlock(sb.InodeStart+inum, inoBlock); err != nil {
			return err
		}
	}

	// Directory: all slots zero, which restruct decodes as unused entries.
	zero := make([]byte, BlockSize)
	for i := uint32(0); i < sb.DirBlocks; i++ {
		if err := dev.WriteBlock(sb.DirStart+i, zero); err != nil {
			return err
		}
	}

	// Free map: metadata extents allocated, data region free.
	bits := make([]byte, sb.FreeBlocks*BlockSize)
	for dbn := uint32(0); dbn < sb.DataStart; dbn++ {
		bits[dbn/8] |= 1 << (dbn % 8)
	}
	// Bits past TotalBlocks address no real block; keep them allocated so
	// they can never be handed out.
	for dbn := sb.TotalBlocks; dbn < sb.FreeBlocks*BlockSize*8; dbn++ {
		bits[dbn/8] |= 1 << (dbn % 8)
	}
	for i := uint32(0); i < sb.FreeBlocks; i++ {
		if err := dev.WriteBlock(sb.FreeStart+i, bits[i*BlockSize:(i+1)*BlockSize]); err != nil {
			return err
		}
	}
	return dev.Sync()
}
