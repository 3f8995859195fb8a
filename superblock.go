package blockfs

// loadSuperblock reads and validates block 0. A bad magic means the backing
// store is not a formatted disk; the caller decides the tier.
func loadSuperblock(dev BlockDevice) (*Superblock, error) {
	sbbytes, err := dev.ReadBlock(0)
	if err != nil {
		return nil, err
	}
	if !CheckMagic(sbbytes[:4], SuperBlockMagicNum) {
		return nil, ErrInvalidStructBytes
	}
	var sb Superblock
	if err := StructOf(sbbytes, &sb); err != nil {
		return nil, err
	}
	if sb.BlockSize != BlockSize || sb.DataStart >= sb.TotalBlocks {
		return nil, ErrInvalidStructBytes
	}
	return &sb, nil
}

func syncSuperblock(dev BlockDevice, sb *Superblock) error {
	sbbytes, err := BytesOf(sb)
	if err != nil {
		return err
	}
	return dev.WriteBlock(0, Pad(sbbytes, BlockSize))
}
