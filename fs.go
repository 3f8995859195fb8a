package blockfs

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Whence values for Seek.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// FileSystem is one mounted virtual disk. All shared state (superblock,
// inode table, directory, free list, open file table) hangs off this struct
// so independent disks can coexist in one process. Every public operation is
// a single critical section; block allocation and chain extension are
// multi-step and must not interleave.
type FileSystem struct {
	mu     sync.Mutex
	dev    BlockDevice
	super  *Superblock
	inodes *InodeTable
	dir    *Directory
	free   *FreeList
	oft    *OpenFileTable
}

// FileInfo describes one directory entry.
type FileInfo struct {
	Name   string
	Inum   uint32
	Size   int64
	Blocks uint32
}

// Format creates (or re-creates) the backing store at path, writes a fresh
// filesystem and mounts it. Failure to create the backing store is the
// unrecoverable tier.
func Format(path string, geo Geometry) (*FileSystem, error) {
	if geo.TotalBlocks == 0 {
		geo = DefaultGeometry
	}
	dev, err := CreateFileBlockDevice(path, geo.TotalBlocks)
	if err != nil {
		return nil, fatalErr("format", err, "cannot create backing store %s", path)
	}
	if err := Mkfs(dev, geo); err != nil {
		dev.Close()
		if _, ok := err.(FsError); ok {
			return nil, err
		}
		return nil, fatalErr("format", err, "mkfs %s", path)
	}
	fs, err := mount(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return fs, nil
}

// Mount opens an existing backing store. A missing or unreadable store is
// the unrecoverable tier: mounting is a precondition for everything else.
func Mount(path string) (*FileSystem, error) {
	dev, err := OpenFileBlockDevice(path)
	if err != nil {
		return nil, fatalErr("mount", err, "backing store %s not found", path)
	}
	fs, err := mount(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return fs, nil
}

func mount(dev BlockDevice) (*FileSystem, error) {
	super, err := loadSuperblock(dev)
	if err != nil {
		return nil, fatalErr("mount", err, "superblock")
	}
	inodes, err := loadInodeTable(dev, super)
	if err != nil {
		return nil, fatalErr("mount", err, "inode table")
	}
	dir, err := loadDirectory(dev, super)
	if err != nil {
		return nil, fatalErr("mount", err, "directory")
	}
	free, err := loadFreeList(dev, super)
	if err != nil {
		return nil, fatalErr("mount", err, "free list")
	}
	logrus.Infof("mounted: %d blocks, %d free, %d inodes",
		super.TotalBlocks, free.FreeCount(), super.InodeCount)
	return &FileSystem{
		dev:    dev,
		super:  super,
		inodes: inodes,
		dir:    dir,
		free:   free,
		oft:    NewOpenFileTable(DefaultOpenFiles),
	}, nil
}

// Create makes the file called name, overwriting if it already exists: the
// existing inode keeps its number but its chain is released and its size
// reset. Returns a fresh descriptor positioned at 0.
func (fs *FileSystem) Create(name string) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(name) == 0 || len(name) > MaxFileName {
		return 0, ErrNameTooLong
	}
	// A create that cannot yield a descriptor must not touch the file, so
	// the capacity check comes before any truncation or allocation.
	if fs.oft.Full() {
		return 0, ErrTooManyOpen
	}
	if inum, err := fs.dir.Lookup(name); err == nil {
		if err := fs.inodes.Truncate(inum, 0, fs.free); err != nil {
			return 0, err
		}
		logrus.Debugf("op=Create name=%s inum=%d (overwrite)", name, inum)
		return fs.oft.Bind(inum)
	}
	inum, err := fs.inodes.Alloc()
	if err != nil {
		return 0, err
	}
	if err := fs.dir.AddEntry(name, inum); err != nil {
		fs.inodes.Free(inum, fs.free)
		return 0, err
	}
	logrus.Debugf("op=Create name=%s inum=%d", name, inum)
	return fs.oft.Bind(inum)
}

// Open opens the existing file called name and returns a descriptor. Two
// opens of the same name get independent cursors.
func (fs *FileSystem) Open(name string) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	inum, err := fs.dir.Lookup(name)
	if err != nil {
		return 0, err
	}
	logrus.Debugf("op=Open name=%s inum=%d", name, inum)
	return fs.oft.Bind(inum)
}

// Close releases the descriptor's open-file entry.
func (fs *FileSystem) Close(fd int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.oft.Deref(fd)
}

// Read copies up to len(p) bytes from the cursor into p and advances the
// cursor by the bytes actually read. Hitting end of file returns fewer bytes
// than requested; it is not an error. A block that should exist but cannot
// be resolved or read is structural corruption, the unrecoverable tier.
func (fs *FileSystem) Read(fd int, p []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, err := fs.oft.Get(fd)
	if err != nil {
		return 0, err
	}
	return fs.readLocked(e, p)
}

func (fs *FileSystem) readLocked(e *ofte, p []byte) (int, error) {
	size := int64(fs.inodes.GetSize(e.inum))
	if e.curs >= size || len(p) == 0 {
		return 0, nil
	}
	// End of file is decided up front against the logical size, never
	// inferred from byte values in the data.
	n := int(Min(int64(len(p)), size-e.curs))
	staging := make([]byte, n)
	got := 0
	curs := e.curs
	for got < n {
		fbn := uint32(curs / BlockSize)
		inblk := int(curs % BlockSize)
		dbn, mapped := fs.inodes.FbnToDbn(e.inum, fbn)
		if !mapped {
			// Size says these bytes exist, so the chain must map them.
			return 0, fatalErr("read", ErrInvalidStructBytes,
				"inum %d fbn %d unmapped below size %d", e.inum, fbn, size)
		}
		blk, err := fs.dev.ReadBlock(dbn)
		if err != nil {
			return 0, fatalErr("read", err, "inum %d dbn %d", e.inum, dbn)
		}
		count := Min(n-got, BlockSize-inblk)
		copy(staging[got:got+count], blk[inblk:inblk+count])
		got += count
		curs += int64(count)
	}
	// The caller's buffer is only touched once the whole transfer worked.
	copy(p, staging)
	e.curs = curs
	return n, nil
}

// Write copies len(p) bytes from p into the file at the cursor, allocating
// and zero-filling chain blocks as the write extends the file, and advances
// the cursor block by block. Blocks are persisted as they are produced; a
// mid-call failure (ErrNoSpace when the disk fills) leaves the blocks
// already flushed in place and reports the bytes written so far.
func (fs *FileSystem) Write(fd int, p []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, err := fs.oft.Get(fd)
	if err != nil {
		return 0, err
	}
	return fs.writeLocked(e, p)
}

func (fs *FileSystem) writeLocked(e *ofte, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		// The chain cannot map bytes at or past MaxFileSize; checking the
		// full 64-bit cursor here keeps a huge seek offset from wrapping
		// into a low FBN.
		if e.curs >= MaxFileSize {
			return written, ErrNoSpace
		}
		fbn := uint32(e.curs / BlockSize)
		inblk := int(e.curs % BlockSize)
		dbn, err := fs.mapOrAlloc(e.inum, fbn)
		if err != nil {
			return written, err
		}
		count := Min(len(p)-written, BlockSize-inblk)
		var blk []byte
		if count == BlockSize {
			blk = make([]byte, BlockSize)
		} else {
			// Partial block: read-modify-write.
			blk, err = fs.dev.ReadBlock(dbn)
			if err != nil {
				return written, fatalErr("write", err, "inum %d dbn %d", e.inum, dbn)
			}
		}
		copy(blk[inblk:inblk+count], p[written:written+count])
		if err := fs.dev.WriteBlock(dbn, blk); err != nil {
			return written, fatalErr("write", err, "inum %d dbn %d", e.inum, dbn)
		}
		written += count
		e.curs += int64(count)
		if e.curs > int64(fs.inodes.GetSize(e.inum)) {
			if err := fs.inodes.SetSize(e.inum, uint32(e.curs)); err != nil {
				return written, fatalErr("write", err, "inum %d size", e.inum)
			}
		}
	}
	return written, nil
}

// mapOrAlloc resolves fbn for inum, allocating and zero-filling every chain
// block up through fbn when the write lands past the current chain. That is
// how a seek-created hole is materialized: the skipped blocks come into
// existence zeroed, so no uninitialized bytes can ever be read back.
func (fs *FileSystem) mapOrAlloc(inum, fbn uint32) (uint32, error) {
	if dbn, mapped := fs.inodes.FbnToDbn(inum, fbn); mapped {
		return dbn, nil
	}
	var dbn uint32
	for next := fs.inodes.get(inum).NBlocks; next <= fbn; next++ {
		var err error
		dbn, err = fs.inodes.AllocBlock(inum, next, fs.free)
		if err != nil {
			return 0, err
		}
	}
	return dbn, nil
}

// Seek moves the descriptor's cursor. Seeking past the current size is
// permitted and creates a hole that stays unallocated until written.
func (fs *FileSystem) Seek(fd int, offset int64, whence int) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, err := fs.oft.Get(fd)
	if err != nil {
		return 0, err
	}
	var next int64
	switch whence {
	case SeekSet:
		next = offset
	case SeekCur:
		next = e.curs + offset
	case SeekEnd:
		next = int64(fs.inodes.GetSize(e.inum)) + offset
	default:
		return 0, ErrBadWhence
	}
	if next < 0 {
		return 0, ErrBadCursor
	}
	e.curs = next
	return next, nil
}

// Tell returns the descriptor's cursor.
func (fs *FileSystem) Tell(fd int) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, err := fs.oft.Get(fd)
	if err != nil {
		return 0, err
	}
	return e.curs, nil
}

// Size returns the file's logical size, the authoritative count of valid
// bytes. Only writes advance it; a seek past the end does not.
func (fs *FileSystem) Size(fd int) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, err := fs.oft.Get(fd)
	if err != nil {
		return 0, err
	}
	return int64(fs.inodes.GetSize(e.inum)), nil
}

// ReadAt reads at an absolute offset without moving the descriptor's cursor.
func (fs *FileSystem) ReadAt(fd int, off int64, p []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, err := fs.oft.Get(fd)
	if err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, ErrBadCursor
	}
	tmp := ofte{inum: e.inum, curs: off}
	return fs.readLocked(&tmp, p)
}

// WriteAt writes at an absolute offset without moving the descriptor's
// cursor.
func (fs *FileSystem) WriteAt(fd int, off int64, p []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, err := fs.oft.Get(fd)
	if err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, ErrBadCursor
	}
	tmp := ofte{inum: e.inum, curs: off}
	return fs.writeLocked(&tmp, p)
}

// Unlink removes name and returns its inode and chain to the free pools.
// Refuses while any descriptor still references the file.
func (fs *FileSystem) Unlink(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	inum, err := fs.dir.Lookup(name)
	if err != nil {
		return err
	}
	if _, open := fs.oft.FindByInum(inum); open {
		return ErrFileBusy
	}
	if err := fs.dir.RemoveEntry(name); err != nil {
		return err
	}
	logrus.Debugf("op=Unlink name=%s inum=%d", name, inum)
	return fs.inodes.Free(inum, fs.free)
}

// Truncate sets the file's size. Shrinking releases whole blocks past the
// new end and zeroes the tail of the last kept block; growing materializes
// zero-filled blocks up to the new end.
func (fs *FileSystem) Truncate(name string, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if size < 0 {
		return ErrBadCursor
	}
	inum, err := fs.dir.Lookup(name)
	if err != nil {
		return err
	}
	cur := int64(fs.inodes.GetSize(inum))
	if size >= cur {
		if size == cur {
			return nil
		}
		if size > MaxFileSize {
			return ErrNoSpace
		}
		lastFbn := uint32((size - 1) / BlockSize)
		if _, err := fs.mapOrAlloc(inum, lastFbn); err != nil {
			return err
		}
		return fs.inodes.SetSize(inum, uint32(size))
	}
	if err := fs.inodes.Truncate(inum, uint32(size), fs.free); err != nil {
		return err
	}
	// Zero the cut-off tail so stale bytes cannot resurface if the file
	// grows back over this block.
	tail := int(size % BlockSize)
	if tail != 0 {
		dbn, mapped := fs.inodes.FbnToDbn(inum, uint32(size/BlockSize))
		if mapped {
			blk, err := fs.dev.ReadBlock(dbn)
			if err != nil {
				return fatalErr("truncate", err, "inum %d dbn %d", inum, dbn)
			}
			copy(blk[tail:], make([]byte, BlockSize-tail))
			if err := fs.dev.WriteBlock(dbn, blk); err != nil {
				return fatalErr("truncate", err, "inum %d dbn %d", inum, dbn)
			}
		}
	}
	return nil
}

// Stat looks a name up without opening it.
func (fs *FileSystem) Stat(name string) (FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	inum, err := fs.dir.Lookup(name)
	if err != nil {
		return FileInfo{}, err
	}
	return fs.statLocked(name, inum), nil
}

// StatInum describes an in-use inode by number.
func (fs *FileSystem) StatInum(inum uint32) (FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if inum >= fs.super.InodeCount || fs.inodes.get(inum).Used == 0 {
		return FileInfo{}, ErrFileNotFound
	}
	name := ""
	for _, ent := range fs.dir.Entries() {
		if ent.Inum == inum {
			name = entName(&ent)
			break
		}
	}
	return fs.statLocked(name, inum), nil
}

func (fs *FileSystem) statLocked(name string, inum uint32) FileInfo {
	ino := fs.inodes.get(inum)
	return FileInfo{
		Name:   name,
		Inum:   inum,
		Size:   int64(ino.Size),
		Blocks: ino.NBlocks,
	}
}

// List enumerates the root directory.
func (fs *FileSystem) List() []FileInfo {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []FileInfo
	for _, ent := range fs.dir.Entries() {
		out = append(out, fs.statLocked(entName(&ent), ent.Inum))
	}
	return out
}

// FreeBlocks is the number of unallocated data blocks.
func (fs *FileSystem) FreeBlocks() uint32 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.free.FreeCount()
}

// TotalDataBlocks is the capacity of the data region.
func (fs *FileSystem) TotalDataBlocks() uint32 {
	return fs.super.DataBlocks()
}

// Sync flushes the backing store.
func (fs *FileSystem) Sync() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.dev.Sync()
}

// Unmount flushes and releases the backing store. The FileSystem must not
// be used afterwards.
func (fs *FileSystem) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.dev.Sync(); err != nil {
		return err
	}
	return fs.dev.Close()
}
