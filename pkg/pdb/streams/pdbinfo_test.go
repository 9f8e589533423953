package streams

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildInfoStream(features ...uint32) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, PDBStreamVersionVC70)
	buf = binary.LittleEndian.AppendUint32(buf, 0x5EADBEEF) // signature
	buf = binary.LittleEndian.AppendUint32(buf, 2)          // age
	guid := [16]byte{0x78, 0x56, 0x34, 0x12, 0xBC, 0x9A, 0xF0, 0xDE}
	buf = append(buf, guid[:]...)

	// Empty named stream map.
	buf = binary.LittleEndian.AppendUint32(buf, 0) // string buffer size
	buf = binary.LittleEndian.AppendUint32(buf, 0) // hash size
	buf = binary.LittleEndian.AppendUint32(buf, 0) // hash capacity
	buf = binary.LittleEndian.AppendUint32(buf, 0) // present words
	buf = binary.LittleEndian.AppendUint32(buf, 0) // deleted words

	for _, f := range features {
		buf = binary.LittleEndian.AppendUint32(buf, f)
	}
	return buf
}

func TestReadPDBInfo(t *testing.T) {
	info, err := ReadPDBInfo(bytes.NewReader(buildInfoStream(FeatureVC140)))
	require.NoError(t, err)

	assert.Equal(t, uint32(PDBStreamVersionVC70), info.Version)
	assert.Equal(t, uint32(2), info.Age)
	assert.Equal(t, []uint32{FeatureVC140}, info.Features)
	assert.False(t, info.UsesFastLink())
	assert.Equal(t, "123456789ABCDEF00000000000000000", info.GUIDString())
}

func TestReadPDBInfoFastLink(t *testing.T) {
	info, err := ReadPDBInfo(bytes.NewReader(buildInfoStream(FeatureVC140, FeatureMinimalDebugInfo)))
	require.NoError(t, err)
	assert.True(t, info.UsesFastLink())
}

func TestReadPDBInfoTruncatedHeader(t *testing.T) {
	_, err := ReadPDBInfo(bytes.NewReader(make([]byte, 10)))
	assert.Error(t, err)
}
