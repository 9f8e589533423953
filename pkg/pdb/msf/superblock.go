// Package msf implements reading of Microsoft's Multi-Stream Format (MSF)
// container, the outer layer of a PDB file.
package msf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MSF 7.00 magic signature
var Magic = []byte("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")

// SuperBlock is the header structure at the beginning of an MSF file.
// It carries the geometry needed to navigate the stream directory.
type SuperBlock struct {
	Magic             [32]byte // Must be Magic
	BlockSize         uint32   // Block size in bytes (512, 1024, 2048, or 4096)
	FreeBlockMapBlock uint32   // Index of active FPM block (1 or 2)
	NumBlocks         uint32   // Total number of blocks in file
	NumDirectoryBytes uint32   // Size of stream directory in bytes
	Unknown           uint32   // Reserved
	BlockMapAddr      uint32   // Block index of the stream directory block map
}

// SuperBlockSize is the size of the SuperBlock structure in bytes.
const SuperBlockSize = 56

var validBlockSizes = []uint32{512, 1024, 2048, 4096}

// ReadSuperBlock reads and validates the SuperBlock from the beginning of an
// MSF file.
func ReadSuperBlock(r io.Reader) (*SuperBlock, error) {
	var sb SuperBlock

	if _, err := io.ReadFull(r, sb.Magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if !bytes.Equal(sb.Magic[:], Magic) {
		return nil, fmt.Errorf("invalid superblock: not a PDB 7 file")
	}

	fields := []*uint32{
		&sb.BlockSize,
		&sb.FreeBlockMapBlock,
		&sb.NumBlocks,
		&sb.NumDirectoryBytes,
		&sb.Unknown,
		&sb.BlockMapAddr,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, fmt.Errorf("failed to read superblock: %w", err)
		}
	}

	if !isValidBlockSize(sb.BlockSize) {
		return nil, fmt.Errorf("invalid block size: %d", sb.BlockSize)
	}
	if sb.FreeBlockMapBlock != 1 && sb.FreeBlockMapBlock != 2 {
		return nil, fmt.Errorf("invalid free block map: %d (must be 1 or 2)", sb.FreeBlockMapBlock)
	}
	if sb.BlockMapAddr >= sb.NumBlocks {
		return nil, fmt.Errorf("block map address %d beyond %d blocks", sb.BlockMapAddr, sb.NumBlocks)
	}

	return &sb, nil
}

// NumDirectoryBlocks returns the number of blocks holding the stream
// directory.
func (sb *SuperBlock) NumDirectoryBlocks() uint32 {
	return (sb.NumDirectoryBytes + sb.BlockSize - 1) / sb.BlockSize
}

// FileSize returns the expected file size based on block count.
func (sb *SuperBlock) FileSize() int64 {
	return int64(sb.NumBlocks) * int64(sb.BlockSize)
}

func isValidBlockSize(size uint32) bool {
	for _, valid := range validBlockSizes {
		if size == valid {
			return true
		}
	}
	return false
}
