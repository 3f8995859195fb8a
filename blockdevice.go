package blockfs

import (
	"os"

	"github.com/pkg/errors"
)

// BlockSize is the fixed size of one disk block in bytes.
const BlockSize = 512

// BlockDevice is the physical layer: whole-block reads and writes addressed
// by disk block number. The engine never touches the backing file directly.
type BlockDevice interface {
	ReadBlock(blockno uint32) ([]byte, error)
	WriteBlock(blockno uint32, data []byte) error
	GetTotalBlockCount() uint32
	Sync() error
	Close() error
}

// FileBlockDevice backs a virtual disk with one regular host file.
type FileBlockDevice struct {
	file       *os.File
	blockcount uint32
}

// CreateFileBlockDevice creates (or truncates) the backing file and sizes it
// to blockcount blocks.
func CreateFileBlockDevice(path string, blockcount uint32) (*FileBlockDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	if err := file.Truncate(int64(blockcount) * BlockSize); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "truncate %s", path)
	}
	return &FileBlockDevice{
		file:       file,
		blockcount: blockcount,
	}, nil
}

// OpenFileBlockDevice opens an existing backing file. The file must already
// exist; the block count is read back from its size.
func OpenFileBlockDevice(path string) (*FileBlockDevice, error) {
	fsize, err := GetFileSize(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &FileBlockDevice{
		file:       file,
		blockcount: uint32(fsize / BlockSize),
	}, nil
}

func (f *FileBlockDevice) ReadBlock(blockno uint32) ([]byte, error) {
	data := make([]byte, BlockSize)
	nbytes, err := f.file.ReadAt(data, int64(blockno)*BlockSize)
	if err != nil {
		return nil, errors.Wrapf(err, "read block %d", blockno)
	}
	if nbytes != BlockSize {
		return nil, errors.Errorf("short read at block %d", blockno)
	}
	return data, nil
}

func (f *FileBlockDevice) WriteBlock(blockno uint32, data []byte) error {
	nbytes, err := f.file.WriteAt(data, int64(blockno)*BlockSize)
	if err != nil {
		return errors.Wrapf(err, "write block %d", blockno)
	}
	if nbytes != BlockSize {
		return errors.Errorf("short write at block %d", blockno)
	}
	return nil
}

func (f *FileBlockDevice) GetTotalBlockCount() uint32 {
	return f.blockcount
}

func (f *FileBlockDevice) Sync() error {
	return f.file.Sync()
}

func (f *FileBlockDevice) Close() error {
	return f.file.Close()
}
