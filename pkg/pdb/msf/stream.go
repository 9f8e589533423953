package msf

import (
	"io"
)

// Stream is a single stream within an MSF container. Streams are composed of
// potentially non-contiguous blocks.
type Stream struct {
	msf    *MSF
	size   uint32
	blocks []uint32
}

// Size returns the size of the stream in bytes.
func (s *Stream) Size() uint32 {
	return s.size
}

// Blocks returns the block indices that make up this stream.
func (s *Stream) Blocks() []uint32 {
	return s.blocks
}

// ReadAll reads the entire stream contents into a byte slice.
func (s *Stream) ReadAll() ([]byte, error) {
	data := make([]byte, s.size)
	if _, err := io.ReadFull(NewStreamReader(s), data); err != nil {
		return nil, err
	}
	return data, nil
}

// StreamReader provides sequential read access to a stream's data, mapping
// the non-contiguous block layout transparently.
type StreamReader struct {
	stream      *Stream
	offset      int64 // Current position in the stream
	blockOffset int   // Current block index within stream.blocks
	posInBlock  int   // Position within current block
}

// NewStreamReader creates a new reader positioned at the start of the
// stream.
func NewStreamReader(s *Stream) *StreamReader {
	return &StreamReader{stream: s}
}

// Read implements io.Reader across block boundaries.
func (sr *StreamReader) Read(p []byte) (int, error) {
	if sr.offset >= int64(sr.stream.size) {
		return 0, io.EOF
	}

	totalRead := 0
	blockSize := int(sr.stream.msf.superBlock.BlockSize)

	for len(p) > 0 && sr.offset < int64(sr.stream.size) {
		remainingInBlock := blockSize - sr.posInBlock
		remainingInStream := int64(sr.stream.size) - sr.offset
		toRead := len(p)

		if toRead > remainingInBlock {
			toRead = remainingInBlock
		}
		if int64(toRead) > remainingInStream {
			toRead = int(remainingInStream)
		}

		blockIndex := sr.stream.blocks[sr.blockOffset]
		fileOffset := int64(blockIndex)*int64(blockSize) + int64(sr.posInBlock)

		n, err := sr.stream.msf.readAt(p[:toRead], fileOffset)
		if err != nil && err != io.EOF {
			return totalRead, err
		}

		totalRead += n
		sr.offset += int64(n)
		sr.posInBlock += n
		p = p[n:]

		if sr.posInBlock >= blockSize {
			sr.blockOffset++
			sr.posInBlock = 0
		}
	}

	return totalRead, nil
}

// Seek implements io.Seeker.
func (sr *StreamReader) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = sr.offset + offset
	case io.SeekEnd:
		newOffset = int64(sr.stream.size) + offset
	}

	if newOffset < 0 {
		newOffset = 0
	}
	if newOffset > int64(sr.stream.size) {
		newOffset = int64(sr.stream.size)
	}

	sr.offset = newOffset
	blockSize := int64(sr.stream.msf.superBlock.BlockSize)
	sr.blockOffset = int(newOffset / blockSize)
	sr.posInBlock = int(newOffset % blockSize)

	return sr.offset, nil
}

// StreamDirectory is the directory of all streams in the container.
type StreamDirectory struct {
	NumStreams   uint32
	StreamSizes  []uint32
	StreamBlocks [][]uint32
}
