package blockfs

// Directory is the flat root namespace: a fixed array of entry slots packed
// across the directory extent, cached in memory, write-through per slot.
type Directory struct {
	dev   BlockDevice
	super *Superblock
	ents  []DirEnt
}

func loadDirectory(dev BlockDevice, super *Superblock) (*Directory, error) {
	raw := make([]byte, 0, super.DirBlocks*BlockSize)
	for i := uint32(0); i < super.DirBlocks; i++ {
		blk, err := dev.ReadBlock(super.DirStart + i)
		if err != nil {
			return nil, err
		}
		raw = append(raw, blk...)
	}
	ents := make([]DirEnt, super.InodeCount)
	for i := range ents {
		if err := StructOf(raw[i*DirEntSize:(i+1)*DirEntSize], &ents[i]); err != nil {
			return nil, err
		}
	}
	return &Directory{
		dev:   dev,
		super: super,
		ents:  ents,
	}, nil
}

// syncEnt writes back the directory block holding slot i.
func (d *Directory) syncEnt(i int) error {
	perBlock := BlockSize / DirEntSize
	blkoff := i / perBlock
	first := blkoff * perBlock
	last := Min(first+perBlock, len(d.ents))
	buf := make([]byte, 0, BlockSize)
	for j := first; j < last; j++ {
		entBytes, err := BytesOf(&d.ents[j])
		if err != nil {
			return err
		}
		buf = append(buf, entBytes...)
	}
	return d.dev.WriteBlock(d.super.DirStart+uint32(blkoff), Pad(buf, BlockSize))
}

func entName(e *DirEnt) string {
	for i, c := range e.Name {
		if c == 0 {
			return string(e.Name[:i])
		}
	}
	return string(e.Name[:])
}

// Lookup resolves a name to its inode number.
func (d *Directory) Lookup(name string) (uint32, error) {
	for i := range d.ents {
		if d.ents[i].Used != 0 && entName(&d.ents[i]) == name {
			return d.ents[i].Inum, nil
		}
	}
	return 0, ErrFileNotFound
}

// AddEntry binds name to inum in a free slot. Uniqueness is the caller's
// concern; the create path looks the name up first.
func (d *Directory) AddEntry(name string, inum uint32) error {
	if len(name) == 0 || len(name) > MaxFileName {
		return ErrNameTooLong
	}
	for i := range d.ents {
		if d.ents[i].Used != 0 {
			continue
		}
		d.ents[i] = DirEnt{Used: 1, Inum: inum}
		copy(d.ents[i].Name[:], name)
		return d.syncEnt(i)
	}
	return ErrNoInode
}

func (d *Directory) RemoveEntry(name string) error {
	for i := range d.ents {
		if d.ents[i].Used != 0 && entName(&d.ents[i]) == name {
			d.ents[i] = DirEnt{}
			return d.syncEnt(i)
		}
	}
	return ErrFileNotFound
}

// Entries lists the in-use slots in table order.
func (d *Directory) Entries() []DirEnt {
	var out []DirEnt
	for i := range d.ents {
		if d.ents[i].Used != 0 {
			out = append(out, d.ents[i])
		}
	}
	return out
}
