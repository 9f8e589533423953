package codeview

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// The numeric leaf encoding: a uint16 leaf kind where values below
// LF_NUMERIC are the value itself, and values at or above it select an
// inline signed or unsigned integer of 1, 2, 4, or 8 bytes that follows the
// kind word. Inline numerics are not aligned; all reads here index the byte
// slice directly.

// LeafSize returns the total encoded size of a numeric leaf with the given
// kind, including the kind word itself, or an error for a kind that is not
// a numeric leaf.
func LeafSize(kind uint16) (int, error) {
	if kind < LF_NUMERIC {
		return 2, nil
	}
	switch kind {
	case LF_CHAR:
		return 2 + 1, nil
	case LF_SHORT, LF_USHORT:
		return 2 + 2, nil
	case LF_LONG, LF_ULONG:
		return 2 + 4, nil
	case LF_QUADWORD, LF_UQUADWORD:
		return 2 + 8, nil
	default:
		return 0, fmt.Errorf("bogus numeric leaf kind 0x%04x", kind)
	}
}

// ReadNumeric decodes a numeric leaf at the start of data and returns its
// value and the number of bytes consumed.
func ReadNumeric(data []byte) (uint64, int, error) {
	if len(data) < 2 {
		return 0, 0, fmt.Errorf("numeric leaf truncated: %d bytes", len(data))
	}

	kind := binary.LittleEndian.Uint16(data)
	if kind < LF_NUMERIC {
		return uint64(kind), 2, nil
	}

	size, err := LeafSize(kind)
	if err != nil {
		return 0, 0, err
	}
	if len(data) < size {
		return 0, 0, fmt.Errorf("numeric leaf truncated: kind 0x%04x needs %d bytes, have %d", kind, size, len(data))
	}

	inline := data[2:]
	switch kind {
	case LF_CHAR:
		return uint64(int8(inline[0])), size, nil
	case LF_SHORT:
		return uint64(int16(binary.LittleEndian.Uint16(inline))), size, nil
	case LF_USHORT:
		return uint64(binary.LittleEndian.Uint16(inline)), size, nil
	case LF_LONG:
		return uint64(int32(binary.LittleEndian.Uint32(inline))), size, nil
	case LF_ULONG:
		return uint64(binary.LittleEndian.Uint32(inline)), size, nil
	case LF_QUADWORD, LF_UQUADWORD:
		return binary.LittleEndian.Uint64(inline), size, nil
	default:
		return 0, 0, fmt.Errorf("bogus numeric leaf kind 0x%04x", kind)
	}
}

// NameAfterNumeric returns the null-terminated string that follows a numeric
// leaf at the start of data, together with the offset one past the string's
// terminator.
func NameAfterNumeric(data []byte) (string, int, error) {
	if len(data) < 2 {
		return "", 0, fmt.Errorf("record truncated before numeric leaf")
	}
	size, err := LeafSize(binary.LittleEndian.Uint16(data))
	if err != nil {
		return "", 0, err
	}
	if size > len(data) {
		return "", 0, fmt.Errorf("record truncated inside numeric leaf")
	}
	name, n := ReadCString(data[size:])
	return name, size + n, nil
}

// ReadCString reads a null-terminated string and returns it with the number
// of bytes consumed including the terminator.
func ReadCString(data []byte) (string, int) {
	idx := bytes.IndexByte(data, 0)
	if idx == -1 {
		return string(data), len(data)
	}
	return string(data[:idx]), idx + 1
}
