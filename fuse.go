package blockfs

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"
)

// FuseFS adapts the engine's flat namespace to the kernel. Every file lives
// in the root directory; node ids are inode numbers shifted past the
// reserved root id.
type FuseFS struct {
	fuse.RawFileSystem
	engine *FileSystem
}

const fuseRootIno = 1
const inumNodeBase = 2

func NewFuseFS(engine *FileSystem) *FuseFS {
	return &FuseFS{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		engine:        engine,
	}
}

func (f *FuseFS) String() string {
	return "blockfs"
}

func nodeToInum(nodeID uint64) uint32 {
	return uint32(nodeID - inumNodeBase)
}

func inumToNode(inum uint32) uint64 {
	return uint64(inum) + inumNodeBase
}

func fsStatus(err error) fuse.Status {
	switch err {
	case nil:
		return fuse.OK
	case ErrFileNotFound:
		return fuse.ENOENT
	case ErrNoSpace, ErrNoInode:
		return fuse.Status(syscall.ENOSPC)
	case ErrFileBusy:
		return fuse.Status(syscall.EBUSY)
	case ErrNameTooLong:
		return fuse.Status(syscall.ENAMETOOLONG)
	case ErrTooManyOpen:
		return fuse.Status(syscall.EMFILE)
	default:
		return fuse.EIO
	}
}

func (f *FuseFS) fillAttr(info FileInfo, out *fuse.Attr) {
	out.Ino = inumToNode(info.Inum)
	out.Size = uint64(info.Size)
	out.Blocks = uint64(info.Blocks)
	out.Mode = fuse.S_IFREG | 0644
	out.Nlink = 1
	out.Blksize = BlockSize
}

func (f *FuseFS) fillRootAttr(out *fuse.Attr) {
	out.Ino = fuseRootIno
	out.Mode = fuse.S_IFDIR | 0755
	out.Nlink = 1
	out.Blksize = BlockSize
}

func (f *FuseFS) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logrus.Debugf("[in ] op=%s, ino=%v, name=%s", "Lookup", header.NodeId, name)
	if header.NodeId != fuseRootIno {
		return fuse.ENOTDIR
	}
	info, err := f.engine.Stat(name)
	if err != nil {
		return fsStatus(err)
	}
	out.NodeId = inumToNode(info.Inum)
	out.Generation = 1
	f.fillAttr(info, &out.Attr)
	logrus.Debugf("[out] op=%s, ino=%v, name=%s", "Lookup", out.NodeId, name)
	return fuse.OK
}

func (f *FuseFS) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	logrus.Debugf("[in ] op=%s, ino=%v", "GetAttr", input.NodeId)
	if input.NodeId == fuseRootIno {
		f.fillRootAttr(&out.Attr)
		return fuse.OK
	}
	info, err := f.engine.StatInum(nodeToInum(input.NodeId))
	if err != nil {
		return fsStatus(err)
	}
	f.fillAttr(info, &out.Attr)
	return fuse.OK
}

func (f *FuseFS) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	logrus.Debugf("[in ] op=%s, ino=%v, valid=%v", "SetAttr", input.NodeId, input.Valid)
	if input.NodeId == fuseRootIno {
		return fuse.EINVAL
	}
	info, err := f.engine.StatInum(nodeToInum(input.NodeId))
	if err != nil {
		return fsStatus(err)
	}
	if input.Valid&fuse.FATTR_SIZE != 0 {
		if err := f.engine.Truncate(info.Name, int64(input.Size)); err != nil {
			return fsStatus(err)
		}
		info.Size = int64(input.Size)
	}
	f.fillAttr(info, &out.Attr)
	return fuse.OK
}

func (f *FuseFS) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	logrus.Debugf("[in ] op=%s, name=%s, parent_ino=%v", "Create", name, input.NodeId)
	if input.NodeId != fuseRootIno {
		return fuse.ENOTDIR
	}
	fd, err := f.engine.Create(name)
	if err != nil {
		return fsStatus(err)
	}
	info, err := f.engine.Stat(name)
	if err != nil {
		return fsStatus(err)
	}
	out.NodeId = inumToNode(info.Inum)
	out.Generation = 1
	f.fillAttr(info, &out.EntryOut.Attr)
	out.OpenOut = fuse.OpenOut{Fh: uint64(fd), OpenFlags: input.Flags}
	logrus.Debugf("[out] op=%s, ino=%v, fd=%d", "Create", out.NodeId, fd)
	return fuse.OK
}

func (f *FuseFS) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	logrus.Debugf("[in ] op=%s, ino=%v", "Open", input.NodeId)
	info, err := f.engine.StatInum(nodeToInum(input.NodeId))
	if err != nil {
		return fsStatus(err)
	}
	fd, err := f.engine.Open(info.Name)
	if err != nil {
		return fsStatus(err)
	}
	out.Fh = uint64(fd)
	return fuse.OK
}

func (f *FuseFS) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	logrus.Debugf("[in ] op=%s, ino=%v, fh=%v", "Release", input.NodeId, input.Fh)
	f.engine.Close(int(input.Fh))
}

func (f *FuseFS) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	logrus.Debugf("[in ] op=%s, ino=%v, off=%d", "Read", input.NodeId, input.Offset)
	n, err := f.engine.ReadAt(int(input.Fh), int64(input.Offset), buf)
	if err != nil {
		return nil, fsStatus(err)
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

func (f *FuseFS) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	logrus.Debugf("[in ] op=%s, ino=%v, off=%d, len=%d", "Write", input.NodeId, input.Offset, len(data))
	n, err := f.engine.WriteAt(int(input.Fh), int64(input.Offset), data)
	if err != nil {
		return uint32(n), fsStatus(err)
	}
	return uint32(n), fuse.OK
}

func (f *FuseFS) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	return fsStatus(f.engine.Sync())
}

func (f *FuseFS) Fsync(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	return fsStatus(f.engine.Sync())
}

func (f *FuseFS) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	logrus.Debugf("[in ] op=%s, name=%s", "Unlink", name)
	if header.NodeId != fuseRootIno {
		return fuse.ENOTDIR
	}
	return fsStatus(f.engine.Unlink(name))
}

func (f *FuseFS) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	if input.NodeId != fuseRootIno {
		return fuse.ENOTDIR
	}
	return fuse.OK
}

func (f *FuseFS) ReleaseDir(input *fuse.ReleaseIn) {
}

func (f *FuseFS) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, l *fuse.DirEntryList) fuse.Status {
	logrus.Debugf("[in ] op=%s, ino=%v, off=%d", "ReadDir", input.NodeId, input.Offset)
	if input.NodeId != fuseRootIno {
		return fuse.ENOTDIR
	}
	infos := f.engine.List()
	for i := uint64(input.Offset); i < uint64(len(infos)); i++ {
		ok := l.AddDirEntry(fuse.DirEntry{
			Name: infos[i].Name,
			Ino:  inumToNode(infos[i].Inum),
			Mode: fuse.S_IFREG,
		})
		if !ok {
			break
		}
	}
	return fuse.OK
}

func (f *FuseFS) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, l *fuse.DirEntryList) fuse.Status {
	logrus.Debugf("[in ] op=%s, ino=%v, off=%d", "ReadDirPlus", input.NodeId, input.Offset)
	if input.NodeId != fuseRootIno {
		return fuse.ENOTDIR
	}
	infos := f.engine.List()
	for i := uint64(input.Offset); i < uint64(len(infos)); i++ {
		entry := l.AddDirLookupEntry(fuse.DirEntry{
			Name: infos[i].Name,
			Ino:  inumToNode(infos[i].Inum),
			Mode: fuse.S_IFREG,
		})
		if entry == nil {
			break
		}
		entry.NodeId = inumToNode(infos[i].Inum)
		entry.Generation = 1
		f.fillAttr(infos[i], &entry.Attr)
	}
	return fuse.OK
}

func (f *FuseFS) StatFs(cancel <-chan struct{}, header *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	out.Blocks = uint64(f.engine.TotalDataBlocks())
	out.Bfree = uint64(f.engine.FreeBlocks())
	out.Bavail = out.Bfree
	out.Bsize = BlockSize
	out.NameLen = MaxFileName
	return fuse.OK
}

func (f *FuseFS) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	return fuse.OK
}
