// Package streams provides parsers for the individual PDB streams.
package streams

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// PDB Stream versions
const (
	PDBStreamVersionVC70  = 20000404
	PDBStreamVersionVC80  = 20030901
	PDBStreamVersionVC110 = 20091201
	PDBStreamVersionVC140 = 20140508
)

// Feature codes appended after the named stream map.
const (
	FeatureVC110            = PDBStreamVersionVC110
	FeatureVC140            = PDBStreamVersionVC140
	FeatureNoTypeMerge      = 0x4D544F4E // "NOTM"
	FeatureMinimalDebugInfo = 0x494E494D // "MINI", produced by /DEBUG:FASTLINK
)

// PDBInfo is the parsed PDB Info Stream (stream 1).
type PDBInfo struct {
	Version      uint32
	Signature    uint32            // Timestamp of PDB creation
	Age          uint32            // Number of times the PDB has been written
	GUID         [16]byte          // Unique identifier
	NamedStreams map[string]uint32 // Named stream name to stream index
	Features     []uint32          // Trailing feature codes
}

// PDBInfoHeader is the fixed header at the start of the info stream.
type PDBInfoHeader struct {
	Version   uint32
	Signature uint32
	Age       uint32
	GUID      [16]byte
}

// ReadPDBInfo parses the PDB info stream.
func ReadPDBInfo(r io.Reader) (*PDBInfo, error) {
	var header PDBInfoHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read PDB info header: %w", err)
	}

	info := &PDBInfo{
		Version:      header.Version,
		Signature:    header.Signature,
		Age:          header.Age,
		GUID:         header.GUID,
		NamedStreams: make(map[string]uint32),
	}

	// Named stream map: string buffer, then a serialized hash table of
	// buffer offsets to stream indices. Absent in very old PDBs.
	var strBufSize uint32
	if err := binary.Read(r, binary.LittleEndian, &strBufSize); err != nil {
		return info, nil
	}
	strBuf := make([]byte, strBufSize)
	if _, err := io.ReadFull(r, strBuf); err != nil {
		return info, nil
	}

	var hashSize, hashCapacity uint32
	if err := binary.Read(r, binary.LittleEndian, &hashSize); err != nil {
		return info, nil
	}
	if err := binary.Read(r, binary.LittleEndian, &hashCapacity); err != nil {
		return info, nil
	}

	presentWords, ok := readBitVector(r)
	if !ok {
		return info, nil
	}
	if _, ok := readBitVector(r); !ok { // deleted buckets
		return info, nil
	}

	for i := uint32(0); i < hashCapacity; i++ {
		if !isBitSet(presentWords, i) {
			continue
		}
		var keyOffset, streamIndex uint32
		if err := binary.Read(r, binary.LittleEndian, &keyOffset); err != nil {
			break
		}
		if err := binary.Read(r, binary.LittleEndian, &streamIndex); err != nil {
			break
		}
		if keyOffset < strBufSize {
			info.NamedStreams[extractCString(strBuf[keyOffset:])] = streamIndex
		}
	}

	// A trailing uint32 that is not a feature code terminates the list in
	// the reference reader; here everything to EOF is a feature code.
	for {
		var feature uint32
		if err := binary.Read(r, binary.LittleEndian, &feature); err != nil {
			break
		}
		info.Features = append(info.Features, feature)
	}

	return info, nil
}

// UsesFastLink reports whether the PDB was linked with /DEBUG:FASTLINK and
// therefore carries no usable type information.
func (p *PDBInfo) UsesFastLink() bool {
	for _, f := range p.Features {
		if f == FeatureMinimalDebugInfo {
			return true
		}
	}
	return false
}

// GUIDString returns the GUID as a formatted string.
func (p *PDBInfo) GUIDString() string {
	return fmt.Sprintf("%08X%04X%04X%02X%02X%02X%02X%02X%02X%02X%02X",
		binary.LittleEndian.Uint32(p.GUID[0:4]),
		binary.LittleEndian.Uint16(p.GUID[4:6]),
		binary.LittleEndian.Uint16(p.GUID[6:8]),
		p.GUID[8], p.GUID[9], p.GUID[10], p.GUID[11],
		p.GUID[12], p.GUID[13], p.GUID[14], p.GUID[15])
}

func readBitVector(r io.Reader) ([]uint32, bool) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, false
	}
	words := make([]uint32, count)
	if err := binary.Read(r, binary.LittleEndian, words); err != nil {
		return nil, false
	}
	return words, true
}

func isBitSet(words []uint32, n uint32) bool {
	wordIdx := n / 32
	bitIdx := n % 32
	if wordIdx >= uint32(len(words)) {
		return false
	}
	return (words[wordIdx] & (1 << bitIdx)) != 0
}

func extractCString(data []byte) string {
	idx := bytes.IndexByte(data, 0)
	if idx == -1 {
		return string(data)
	}
	return string(data[:idx])
}
