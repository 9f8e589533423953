package codeview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNumericImmediate(t *testing.T) {
	// Values below LF_NUMERIC are the value itself.
	v, n, err := ReadNumeric([]byte{0x10, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10), v)
	assert.Equal(t, 2, n)

	v, n, err = ReadNumeric([]byte{0xFF, 0x7F})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7FFF), v)
	assert.Equal(t, 2, n)
}

func TestReadNumericInline(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want uint64
		size int
	}{
		{"LF_CHAR", []byte{0x00, 0x80, 0xFE}, 0xFFFFFFFFFFFFFFFE, 3},
		{"LF_SHORT", []byte{0x01, 0x80, 0xFE, 0xFF}, 0xFFFFFFFFFFFFFFFE, 4},
		{"LF_USHORT", []byte{0x02, 0x80, 0x34, 0x12}, 0x1234, 4},
		{"LF_LONG", []byte{0x03, 0x80, 0xFE, 0xFF, 0xFF, 0xFF}, 0xFFFFFFFFFFFFFFFE, 6},
		{"LF_ULONG", []byte{0x04, 0x80, 0x78, 0x56, 0x34, 0x12}, 0x12345678, 6},
		{"LF_UQUADWORD", []byte{0x0a, 0x80, 1, 0, 0, 0, 0, 0, 0, 0x80}, 0x8000000000000001, 10},
	}

	for _, tc := range cases {
		v, n, err := ReadNumeric(tc.data)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, v, tc.name)
		assert.Equal(t, tc.size, n, tc.name)
	}
}

func TestReadNumericTruncated(t *testing.T) {
	_, _, err := ReadNumeric([]byte{0x04})
	assert.Error(t, err)

	_, _, err = ReadNumeric([]byte{0x04, 0x80, 0x78})
	assert.Error(t, err)
}

func TestReadNumericBogusKind(t *testing.T) {
	// 0x8005 (LF_REAL32) carries no integer payload here.
	_, _, err := ReadNumeric([]byte{0x05, 0x80, 0, 0, 0, 0})
	assert.Error(t, err)
}

func TestLeafSize(t *testing.T) {
	n, err := LeafSize(0x1234)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = LeafSize(LF_ULONG)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = LeafSize(0x8005)
	assert.Error(t, err)
}

func TestNameAfterNumeric(t *testing.T) {
	// Immediate size 0x40 followed by "CBaseEntity\0".
	data := append([]byte{0x40, 0x00}, append([]byte("CBaseEntity"), 0)...)
	name, n, err := NameAfterNumeric(data)
	require.NoError(t, err)
	assert.Equal(t, "CBaseEntity", name)
	assert.Equal(t, len(data), n)

	// Inline LF_USHORT size, then the name.
	data = append([]byte{0x02, 0x80, 0x00, 0x10}, append([]byte("CWorld"), 0)...)
	name, _, err = NameAfterNumeric(data)
	require.NoError(t, err)
	assert.Equal(t, "CWorld", name)
}
