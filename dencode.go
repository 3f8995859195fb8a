package blockfs

import (
	"encoding/binary"
	"reflect"

	"github.com/go-restruct/restruct"
)

// All on-disk structures go through restruct with a fixed little-endian
// layout, so the field declarations in dstruct.go are the single source of
// truth for the byte format.

func BytesOf(data interface{}) ([]byte, error) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Ptr {
		return nil, ErrInvalidStructBytes
	}
	return restruct.Pack(binary.LittleEndian, data)
}

func StructOf(data []byte, v interface{}) error {
	return restruct.Unpack(data, binary.LittleEndian, v)
}

func SizeOf(data interface{}) (int, error) {
	return restruct.SizeOf(data)
}

// Pad grows data to size with trailing zeros so a packed structure can be
// written as a whole block.
func Pad(data []byte, size int) []byte {
	if len(data) == size {
		return data
	}
	if len(data) > size {
		panic("data is too long")
	}
	return append(data, make([]byte, size-len(data))...)
}
