package codeview

import (
	"encoding/binary"
	"fmt"

	"github.com/tmp64/amxx-offset-generator/pkg/pdb/streams"
)

// ClassRecord is a decoded LF_CLASS / LF_STRUCTURE / LF_UNION record.
type ClassRecord struct {
	Kind      uint16
	Property  uint32
	FieldList uint32
	Size      uint64
	Name      string
}

// Forward reports whether the record is a forward reference with no field
// list of its own.
func (c *ClassRecord) Forward() bool {
	return c.Property&PropForwardRef != 0
}

// IsClassLike reports whether kind is one of the class/structure record
// kinds yielded by class enumeration.
func IsClassLike(kind uint16) bool {
	switch kind {
	case LF_CLASS, LF_STRUCTURE, LF_CLASS2, LF_STRUCTURE2:
		return true
	}
	return false
}

// ParseClassRecord decodes a class, structure, or union record.
func ParseClassRecord(rec *streams.TypeRecord) (*ClassRecord, error) {
	data := rec.Data
	c := &ClassRecord{Kind: rec.Kind}

	var numericOff int
	switch rec.Kind {
	case LF_CLASS, LF_STRUCTURE:
		// count u16, property u16, field u32, derived u32, vshape u32
		if len(data) < 16 {
			return nil, truncated(rec)
		}
		c.Property = uint32(binary.LittleEndian.Uint16(data[2:]))
		c.FieldList = binary.LittleEndian.Uint32(data[4:])
		numericOff = 16

	case LF_CLASS2, LF_STRUCTURE2:
		// property u32, field u32, derived u32, vshape u32, count u16
		if len(data) < 18 {
			return nil, truncated(rec)
		}
		c.Property = binary.LittleEndian.Uint32(data[0:])
		c.FieldList = binary.LittleEndian.Uint32(data[4:])
		numericOff = 18

	case LF_UNION:
		// count u16, property u16, field u32
		if len(data) < 8 {
			return nil, truncated(rec)
		}
		c.Property = uint32(binary.LittleEndian.Uint16(data[2:]))
		c.FieldList = binary.LittleEndian.Uint32(data[4:])
		numericOff = 8

	default:
		return nil, fmt.Errorf("record 0x%x is %s, not class-like", rec.Index, LeafKindName(rec.Kind))
	}

	size, consumed, err := ReadNumeric(data[numericOff:])
	if err != nil {
		return nil, fmt.Errorf("record 0x%x: %w", rec.Index, err)
	}
	c.Size = size
	c.Name, _ = ReadCString(data[numericOff+consumed:])
	return c, nil
}

// ModifierRecord is a decoded LF_MODIFIER record.
type ModifierRecord struct {
	Type  uint32
	Attrs uint16
}

// ParseModifierRecord decodes an LF_MODIFIER record.
func ParseModifierRecord(rec *streams.TypeRecord) (*ModifierRecord, error) {
	if len(rec.Data) < 6 {
		return nil, truncated(rec)
	}
	return &ModifierRecord{
		Type:  binary.LittleEndian.Uint32(rec.Data[0:]),
		Attrs: binary.LittleEndian.Uint16(rec.Data[4:]),
	}, nil
}

// PointerRecord is a decoded LF_POINTER record.
type PointerRecord struct {
	Underlying uint32
	Attrs      uint32
}

// PtrType returns the ptrtype attribute field.
func (p *PointerRecord) PtrType() uint32 { return p.Attrs & 0x1F }

// PtrMode returns the ptrmode attribute field.
func (p *PointerRecord) PtrMode() uint32 { return (p.Attrs >> 5) & 0x07 }

// IsVolatile reports the pointer's own volatile qualifier.
func (p *PointerRecord) IsVolatile() bool { return p.Attrs&(1<<9) != 0 }

// IsConst reports the pointer's own const qualifier.
func (p *PointerRecord) IsConst() bool { return p.Attrs&(1<<10) != 0 }

// IsUnaligned reports the pointer's own unaligned qualifier.
func (p *PointerRecord) IsUnaligned() bool { return p.Attrs&(1<<11) != 0 }

// IsRestrict reports the pointer's own restrict qualifier.
func (p *PointerRecord) IsRestrict() bool { return p.Attrs&(1<<12) != 0 }

// Width returns the pointer size in bytes, or 0 when the ptrtype does not
// imply one.
func (p *PointerRecord) Width() int {
	switch p.PtrType() {
	case PtrTypeNear32, PtrTypeFar32:
		return 4
	case PtrType64:
		return 8
	default:
		return 0
	}
}

// ParsePointerRecord decodes an LF_POINTER record.
func ParsePointerRecord(rec *streams.TypeRecord) (*PointerRecord, error) {
	if len(rec.Data) < 8 {
		return nil, truncated(rec)
	}
	return &PointerRecord{
		Underlying: binary.LittleEndian.Uint32(rec.Data[0:]),
		Attrs:      binary.LittleEndian.Uint32(rec.Data[4:]),
	}, nil
}

// ArrayRecord is a decoded LF_ARRAY record.
type ArrayRecord struct {
	ElemType  uint32
	IndexType uint32
	ByteSize  uint64
	Name      string
}

// ParseArrayRecord decodes an LF_ARRAY record.
func ParseArrayRecord(rec *streams.TypeRecord) (*ArrayRecord, error) {
	data := rec.Data
	if len(data) < 10 {
		return nil, truncated(rec)
	}
	a := &ArrayRecord{
		ElemType:  binary.LittleEndian.Uint32(data[0:]),
		IndexType: binary.LittleEndian.Uint32(data[4:]),
	}
	size, consumed, err := ReadNumeric(data[8:])
	if err != nil {
		return nil, fmt.Errorf("record 0x%x: %w", rec.Index, err)
	}
	a.ByteSize = size
	a.Name, _ = ReadCString(data[8+consumed:])
	return a, nil
}

// EnumRecord is a decoded LF_ENUM record.
type EnumRecord struct {
	Underlying uint32
	FieldList  uint32
	Name       string
}

// ParseEnumRecord decodes an LF_ENUM record.
func ParseEnumRecord(rec *streams.TypeRecord) (*EnumRecord, error) {
	data := rec.Data
	if len(data) < 12 {
		return nil, truncated(rec)
	}
	e := &EnumRecord{
		Underlying: binary.LittleEndian.Uint32(data[4:]),
		FieldList:  binary.LittleEndian.Uint32(data[8:]),
	}
	e.Name, _ = ReadCString(data[12:])
	return e, nil
}

// AliasRecord is a decoded LF_ALIAS record.
type AliasRecord struct {
	Underlying uint32
	Name       string
}

// ParseAliasRecord decodes an LF_ALIAS record.
func ParseAliasRecord(rec *streams.TypeRecord) (*AliasRecord, error) {
	if len(rec.Data) < 5 {
		return nil, truncated(rec)
	}
	a := &AliasRecord{Underlying: binary.LittleEndian.Uint32(rec.Data[0:])}
	a.Name, _ = ReadCString(rec.Data[4:])
	return a, nil
}

// BitfieldRecord is a decoded LF_BITFIELD record.
type BitfieldRecord struct {
	Type     uint32
	Length   uint8
	Position uint8
}

// ParseBitfieldRecord decodes an LF_BITFIELD record.
func ParseBitfieldRecord(rec *streams.TypeRecord) (*BitfieldRecord, error) {
	if len(rec.Data) < 6 {
		return nil, truncated(rec)
	}
	return &BitfieldRecord{
		Type:     binary.LittleEndian.Uint32(rec.Data[0:]),
		Length:   rec.Data[4],
		Position: rec.Data[5],
	}, nil
}

// ProcedureRecord is a decoded LF_PROCEDURE or LF_MFUNCTION record.
type ProcedureRecord struct {
	ReturnType uint32
	ArgList    uint32
	ParmCount  uint16
}

// ParseProcedureRecord decodes LF_PROCEDURE and LF_MFUNCTION records.
func ParseProcedureRecord(rec *streams.TypeRecord) (*ProcedureRecord, error) {
	data := rec.Data
	switch rec.Kind {
	case LF_PROCEDURE:
		// rvtype u32, callconv u8, funcattr u8, parmcount u16, arglist u32
		if len(data) < 12 {
			return nil, truncated(rec)
		}
		return &ProcedureRecord{
			ReturnType: binary.LittleEndian.Uint32(data[0:]),
			ParmCount:  binary.LittleEndian.Uint16(data[6:]),
			ArgList:    binary.LittleEndian.Uint32(data[8:]),
		}, nil

	case LF_MFUNCTION:
		// rvtype u32, classtype u32, thistype u32, callconv u8,
		// funcattr u8, parmcount u16, arglist u32, thisadjust i32
		if len(data) < 24 {
			return nil, truncated(rec)
		}
		return &ProcedureRecord{
			ReturnType: binary.LittleEndian.Uint32(data[0:]),
			ParmCount:  binary.LittleEndian.Uint16(data[14:]),
			ArgList:    binary.LittleEndian.Uint32(data[16:]),
		}, nil

	default:
		return nil, fmt.Errorf("record 0x%x is %s, not a procedure", rec.Index, LeafKindName(rec.Kind))
	}
}

// ParseArgList decodes an LF_ARGLIST record into its argument type indices.
func ParseArgList(rec *streams.TypeRecord) ([]uint32, error) {
	data := rec.Data
	if len(data) < 4 {
		return nil, truncated(rec)
	}
	count := binary.LittleEndian.Uint32(data[0:])
	args := make([]uint32, 0, count)
	offset := 4
	for i := uint32(0); i < count && offset+4 <= len(data); i++ {
		args = append(args, binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
	}
	return args, nil
}

func truncated(rec *streams.TypeRecord) error {
	return fmt.Errorf("record 0x%x (%s) truncated: %d bytes", rec.Index, LeafKindName(rec.Kind), len(rec.Data))
}
