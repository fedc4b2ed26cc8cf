package wasm

import (
	"errors"
	"io"
)

// ErrLEB128Overflow is returned when a varint uses more bytes than its
// declared result width can hold, which the wasm binary format treats as
// malformed (spec.md §7, MalformedStream).
var ErrLEB128Overflow = errors.New("leb128: integer overflow")

// decodeUint32 reads an unsigned LEB128 varint constrained to 32 bits, used
// for every wasm binary format index and count immediate.
func decodeUint32(r io.ByteReader) (uint32, error) {
	v, err := decodeUint64(r, 32)
	return uint32(v), err
}

// decodeUint64 reads an unsigned LEB128 varint of up to maxBits bits.
func decodeUint64(r io.ByteReader, maxBits uint) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift >= maxBits && b&0x7f != 0 {
			return 0, ErrLEB128Overflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// decodeInt32 reads a signed LEB128 varint constrained to 32 bits, used for
// i32.const immediates and block-type immediates.
func decodeInt32(r io.ByteReader) (int32, error) {
	v, err := decodeInt64(r, 32)
	return int32(v), err
}

// decodeInt64 reads a signed LEB128 varint, used for i64.const immediates.
// maxBits is not checked: unlike decodeUint64 it never returns
// ErrLEB128Overflow, and bits past the result width are dropped.
func decodeInt64(r io.ByteReader, maxBits uint) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}
