package msf

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/exp/mmap"
)

// MSF is an opened MSF container. The file is memory-mapped for the lifetime
// of the session and released on Close.
type MSF struct {
	r          *mmap.ReaderAt
	superBlock *SuperBlock
	directory  *StreamDirectory
	streams    []*Stream
}

// Open memory-maps an MSF file and parses its superblock and stream
// directory.
func Open(path string) (*MSF, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to map file: %w", err)
	}

	m := &MSF{r: r}

	m.superBlock, err = ReadSuperBlock(io.NewSectionReader(r, 0, SuperBlockSize))
	if err != nil {
		r.Close()
		return nil, err
	}

	if m.superBlock.FileSize() > int64(r.Len()) {
		r.Close()
		return nil, fmt.Errorf("superblock claims %d bytes, file has %d", m.superBlock.FileSize(), r.Len())
	}

	if err := m.readStreamDirectory(); err != nil {
		r.Close()
		return nil, err
	}

	m.buildStreams()
	return m, nil
}

// Close releases the mapping. Streams and readers are invalid afterwards.
func (m *MSF) Close() error {
	if m.r != nil {
		err := m.r.Close()
		m.r = nil
		return err
	}
	return nil
}

// SuperBlock returns the MSF SuperBlock.
func (m *MSF) SuperBlock() *SuperBlock {
	return m.superBlock
}

// NumStreams returns the number of streams in the container.
func (m *MSF) NumStreams() int {
	return int(m.directory.NumStreams)
}

// Stream returns the stream at the given index.
func (m *MSF) Stream(index int) (*Stream, error) {
	if index < 0 || index >= len(m.streams) {
		return nil, fmt.Errorf("stream index %d out of range [0, %d)", index, len(m.streams))
	}
	return m.streams[index], nil
}

// StreamReader returns a sequential reader for the stream at the given index.
func (m *MSF) StreamReader(index int) (*StreamReader, error) {
	s, err := m.Stream(index)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(s), nil
}

// BlockSize returns the block size of this container.
func (m *MSF) BlockSize() uint32 {
	return m.superBlock.BlockSize
}

func (m *MSF) readAt(p []byte, off int64) (int, error) {
	return m.r.ReadAt(p, off)
}

// readStreamDirectory locates the directory through the block map and
// parses it.
func (m *MSF) readStreamDirectory() error {
	blockSize := m.superBlock.BlockSize

	// The block map lists the blocks that hold the stream directory.
	blockMapOffset := int64(m.superBlock.BlockMapAddr) * int64(blockSize)
	numDirBlocks := m.superBlock.NumDirectoryBlocks()

	blockMap := make([]uint32, numDirBlocks)
	mapReader := io.NewSectionReader(m.r, blockMapOffset, int64(numDirBlocks)*4)
	if err := binary.Read(mapReader, binary.LittleEndian, blockMap); err != nil {
		return fmt.Errorf("failed to read directory block map: %w", err)
	}

	dirData := make([]byte, m.superBlock.NumDirectoryBytes)
	read := 0
	for _, blockIdx := range blockMap {
		if blockIdx >= m.superBlock.NumBlocks {
			return fmt.Errorf("directory block %d beyond %d blocks", blockIdx, m.superBlock.NumBlocks)
		}
		offset := int64(blockIdx) * int64(blockSize)
		toRead := int(blockSize)
		if read+toRead > len(dirData) {
			toRead = len(dirData) - read
		}
		if _, err := m.r.ReadAt(dirData[read:read+toRead], offset); err != nil {
			return fmt.Errorf("failed to read directory block %d: %w", blockIdx, err)
		}
		read += toRead
	}

	return m.parseStreamDirectory(dirData)
}

func (m *MSF) parseStreamDirectory(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("stream directory truncated")
	}
	numStreams := binary.LittleEndian.Uint32(data)
	pos := 4

	sizes := make([]uint32, numStreams)
	for i := range sizes {
		if pos+4 > len(data) {
			return fmt.Errorf("stream directory truncated reading size %d", i)
		}
		sizes[i] = binary.LittleEndian.Uint32(data[pos:])
		pos += 4
	}

	blockSize := m.superBlock.BlockSize
	blocks := make([][]uint32, numStreams)
	for i, size := range sizes {
		// 0xFFFFFFFF marks an unused/deleted stream.
		if size == 0xFFFFFFFF {
			continue
		}
		n := (size + blockSize - 1) / blockSize
		list := make([]uint32, n)
		for j := range list {
			if pos+4 > len(data) {
				return fmt.Errorf("stream directory truncated reading blocks of stream %d", i)
			}
			list[j] = binary.LittleEndian.Uint32(data[pos:])
			pos += 4
		}
		blocks[i] = list
	}

	m.directory = &StreamDirectory{
		NumStreams:   numStreams,
		StreamSizes:  sizes,
		StreamBlocks: blocks,
	}
	return nil
}

func (m *MSF) buildStreams() {
	m.streams = make([]*Stream, m.directory.NumStreams)
	for i := uint32(0); i < m.directory.NumStreams; i++ {
		size := m.directory.StreamSizes[i]
		if size == 0xFFFFFFFF {
			m.streams[i] = &Stream{msf: m}
		} else {
			m.streams[i] = &Stream{
				msf:    m,
				size:   size,
				blocks: m.directory.StreamBlocks[i],
			}
		}
	}
}
