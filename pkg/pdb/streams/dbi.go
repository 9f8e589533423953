package streams

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Machine types
const (
	MachineI386  = 0x014c
	MachineIA64  = 0x0200
	MachineAMD64 = 0x8664
	MachineARM   = 0x01c0
	MachineARM64 = 0xAA64
)

// DBIHeader is the fixed 64-byte header of the DBI stream.
type DBIHeader struct {
	VersionSignature        int32  // Always -1
	VersionHeader           uint32 // DBI version
	Age                     uint32 // PDB age
	GlobalStreamIndex       uint16 // Global symbols stream index
	BuildNumber             uint16 // Toolchain version
	PublicStreamIndex       uint16 // Public symbols stream index
	PdbDllVersion           uint16
	SymRecordStream         uint16 // Symbol record stream index
	PdbDllRbld              uint16
	ModInfoSize             int32 // Size of module info substream
	SectionContributionSize int32 // Size of section contribution substream
	SectionMapSize          int32 // Size of section map substream
	SourceInfoSize          int32 // Size of source info substream
	TypeServerMapSize       int32 // Size of type server map substream
	MFCTypeServerIndex      uint32
	OptionalDbgHeaderSize   int32 // Size of optional debug header
	ECSubstreamSize         int32 // Size of EC substream
	Flags                   uint16
	Machine                 uint16 // CPU type
	Padding                 uint32
}

// DBIStream is the parsed DBI stream header. The module and section
// substreams carry per-object symbol locations, which class-layout
// extraction never touches.
type DBIStream struct {
	Header DBIHeader
}

// ReadDBIStream parses and validates the DBI stream header.
func ReadDBIStream(data []byte) (*DBIStream, error) {
	if len(data) < 64 {
		return nil, fmt.Errorf("DBI stream too small: %d bytes", len(data))
	}

	var header DBIHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read DBI header: %w", err)
	}
	if header.VersionSignature != -1 {
		return nil, fmt.Errorf("invalid DBI version signature: %d", header.VersionSignature)
	}

	return &DBIStream{Header: header}, nil
}

// PointerWidth returns the target pointer size in bytes derived from the
// machine type. V-table byte offsets divide by it to produce slot indices.
func (d *DBIStream) PointerWidth() int {
	switch d.Header.Machine {
	case MachineAMD64, MachineARM64, MachineIA64:
		return 8
	default:
		return 4
	}
}

// MachineTypeName returns the human-readable name for a machine type.
func MachineTypeName(machine uint16) string {
	switch machine {
	case MachineI386:
		return "x86"
	case MachineAMD64:
		return "x64"
	case MachineARM:
		return "ARM"
	case MachineARM64:
		return "ARM64"
	case MachineIA64:
		return "IA64"
	default:
		return fmt.Sprintf("0x%04x", machine)
	}
}
