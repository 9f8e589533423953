package streams

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// TPI Stream versions
const (
	TPIStreamVersionV70 = 19990903
	TPIStreamVersionV80 = 20040203
)

// TypeIndexBegin is the first user-defined type index; indices below it are
// builtin types.
const TypeIndexBegin = 0x1000

// TPIHeader is the header of the TPI stream.
type TPIHeader struct {
	Version                 uint32
	HeaderSize              uint32
	TypeIndexBegin          uint32
	TypeIndexEnd            uint32
	TypeRecordBytes         uint32
	HashStreamIndex         uint16
	HashAuxStreamIndex      uint16
	HashKeySize             uint32
	NumHashBuckets          uint32
	HashValueBufferOffset   int32
	HashValueBufferLength   uint32
	IndexOffsetBufferOffset int32
	IndexOffsetBufferLength uint32
	HashAdjBufferOffset     int32
	HashAdjBufferLength     uint32
}

// TPIStream is the parsed TPI (type info) stream: a flat sequence of type
// records addressed by a monotonically increasing type index.
type TPIStream struct {
	Header      TPIHeader
	TypeRecords []TypeRecord
	typeMap     map[uint32]*TypeRecord
}

// TypeRecord is a single type record.
type TypeRecord struct {
	Index uint32 // Type index
	Kind  uint16 // LF_* leaf kind
	Data  []byte // Raw record data (excluding length and kind)
}

// ReadTPIStream parses the TPI stream from raw bytes.
func ReadTPIStream(data []byte) (*TPIStream, error) {
	r := bytes.NewReader(data)

	var header TPIHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read TPI header: %w", err)
	}

	if header.Version != TPIStreamVersionV80 && header.Version != TPIStreamVersionV70 {
		return nil, fmt.Errorf("unsupported TPI version: %d", header.Version)
	}

	recordData := make([]byte, header.TypeRecordBytes)
	if _, err := io.ReadFull(r, recordData); err != nil {
		return nil, fmt.Errorf("failed to read type records: %w", err)
	}

	tpi := &TPIStream{
		Header:  header,
		typeMap: make(map[uint32]*TypeRecord),
	}

	offset := 0
	typeIndex := header.TypeIndexBegin
	for offset < len(recordData) && typeIndex < header.TypeIndexEnd {
		if offset+2 > len(recordData) {
			break
		}
		recLen := binary.LittleEndian.Uint16(recordData[offset:])
		offset += 2

		if offset+int(recLen) > len(recordData) {
			break
		}
		if recLen < 2 {
			typeIndex++
			continue
		}

		recKind := binary.LittleEndian.Uint16(recordData[offset:])

		record := TypeRecord{
			Index: typeIndex,
			Kind:  recKind,
			Data:  make([]byte, recLen-2),
		}
		copy(record.Data, recordData[offset+2:offset+int(recLen)])

		tpi.TypeRecords = append(tpi.TypeRecords, record)

		offset += int(recLen)
		typeIndex++
	}

	for i := range tpi.TypeRecords {
		tpi.typeMap[tpi.TypeRecords[i].Index] = &tpi.TypeRecords[i]
	}

	return tpi, nil
}

// GetType returns the type record for the given type index, or nil.
func (t *TPIStream) GetType(index uint32) *TypeRecord {
	return t.typeMap[index]
}

// NumTypes returns the number of parsed type records.
func (t *TPIStream) NumTypes() int {
	return len(t.TypeRecords)
}

// FirstTypeIndex returns the lowest user-defined type index of the stream.
func (t *TPIStream) FirstTypeIndex() uint32 {
	return t.Header.TypeIndexBegin
}

// LastTypeIndex returns the highest assigned type index of the stream.
func (t *TPIStream) LastTypeIndex() uint32 {
	return t.Header.TypeIndexEnd - 1
}
