package blockfs

import (
	"encoding/binary"
	"os"
	"reflect"
)

type magicType interface{ uint32 | uint16 }

func CheckMagic[T magicType](data []byte, magic T) bool {
	magicKind := reflect.TypeOf(magic).Kind()
	if magicKind == reflect.Uint32 {
		if len(data) < 4 {
			return false
		}
		val := binary.LittleEndian.Uint32(data)
		return val == uint32(magic)
	}
	if magicKind == reflect.Uint16 {
		if len(data) < 2 {
			return false
		}
		val := binary.LittleEndian.Uint16(data)
		return val == uint16(magic)
	}
	return false
}

func GetFileSize(filename string) (int64, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

type Integer interface {
	int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64
}

type Ordered interface {
	Integer | ~string
}

func Min[T Ordered](nums ...T) T {
	min := nums[0]
	for _, v := range nums[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
