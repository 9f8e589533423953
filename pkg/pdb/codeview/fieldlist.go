package codeview

import (
	"encoding/binary"
	"fmt"

	"github.com/tmp64/amxx-offset-generator/pkg/pdb/streams"
)

// FieldList is the decoded content of a class's LF_FIELDLIST record,
// LF_INDEX continuations already folded in.
type FieldList struct {
	Members []MemberField
	Bases   []uint32 // Direct non-virtual base class type indices
	Methods []Method
}

// MemberField is one LF_MEMBER or LF_STMEMBER entry in declaration order.
type MemberField struct {
	Name   string
	Offset uint64
	Type   uint32
	Static bool
}

// Method is one virtual-method entry gathered from LF_ONEMETHOD and
// LF_METHOD/LF_METHODLIST records. VTabOffset is the byte offset into the
// v-table, present only on introducing methods.
type Method struct {
	Name        string
	VTabOffset  uint32
	Introducing bool
}

// RecordLookup resolves a type index to its record, nil when dangling.
type RecordLookup func(uint32) *streams.TypeRecord

// ParseFieldList walks a field list record, collecting data members, base
// classes, and introducing virtual methods. Virtual-base entries
// (LF_VBCLASS, LF_IVBCLASS) are skipped.
func ParseFieldList(rec *streams.TypeRecord, lookup RecordLookup) (*FieldList, error) {
	fl := &FieldList{}
	if err := fl.walk(rec.Data, lookup); err != nil {
		return nil, fmt.Errorf("field list 0x%x: %w", rec.Index, err)
	}
	return fl, nil
}

func (fl *FieldList) walk(data []byte, lookup RecordLookup) error {
	offset := 0
	for offset < len(data) {
		// LF_PAD bytes fill the gap to the next entry.
		if data[offset] >= 0xF0 {
			offset++
			continue
		}
		if offset+2 > len(data) {
			return fmt.Errorf("truncated at %d", offset)
		}

		kind := binary.LittleEndian.Uint16(data[offset:])
		body := data[offset+2:]
		consumed, err := fl.walkEntry(kind, body, lookup)
		if err != nil {
			return err
		}
		offset += 2 + consumed
	}
	return nil
}

// walkEntry decodes a single field entry and returns the number of body
// bytes it occupied.
func (fl *FieldList) walkEntry(kind uint16, body []byte, lookup RecordLookup) (int, error) {
	switch kind {
	case LF_MEMBER:
		// attrs u16, type u32, offset numeric, name
		if len(body) < 8 {
			return 0, fmt.Errorf("LF_MEMBER truncated")
		}
		typeIdx := binary.LittleEndian.Uint32(body[2:])
		memberOffset, consumed, err := ReadNumeric(body[6:])
		if err != nil {
			return 0, fmt.Errorf("LF_MEMBER offset: %w", err)
		}
		name, nameLen := ReadCString(body[6+consumed:])
		fl.Members = append(fl.Members, MemberField{
			Name:   name,
			Offset: memberOffset,
			Type:   typeIdx,
		})
		return 6 + consumed + nameLen, nil

	case LF_STMEMBER:
		// attrs u16, type u32, name
		if len(body) < 7 {
			return 0, fmt.Errorf("LF_STMEMBER truncated")
		}
		typeIdx := binary.LittleEndian.Uint32(body[2:])
		name, nameLen := ReadCString(body[6:])
		fl.Members = append(fl.Members, MemberField{
			Name:   name,
			Type:   typeIdx,
			Static: true,
		})
		return 6 + nameLen, nil

	case LF_BCLASS:
		// attrs u16, type u32, offset numeric
		if len(body) < 8 {
			return 0, fmt.Errorf("LF_BCLASS truncated")
		}
		typeIdx := binary.LittleEndian.Uint32(body[2:])
		_, consumed, err := ReadNumeric(body[6:])
		if err != nil {
			return 0, fmt.Errorf("LF_BCLASS offset: %w", err)
		}
		fl.Bases = append(fl.Bases, typeIdx)
		return 6 + consumed, nil

	case LF_VBCLASS, LF_IVBCLASS:
		// attrs u16, btype u32, vbptype u32, vbp offset numeric,
		// vb offset numeric. Virtual bases are not extracted.
		if len(body) < 12 {
			return 0, fmt.Errorf("LF_VBCLASS truncated")
		}
		_, c1, err := ReadNumeric(body[10:])
		if err != nil {
			return 0, fmt.Errorf("LF_VBCLASS vbp offset: %w", err)
		}
		_, c2, err := ReadNumeric(body[10+c1:])
		if err != nil {
			return 0, fmt.Errorf("LF_VBCLASS vb offset: %w", err)
		}
		return 10 + c1 + c2, nil

	case LF_VFUNCTAB:
		// pad u16, type u32: the v-table pointer pseudo-member.
		if len(body) < 6 {
			return 0, fmt.Errorf("LF_VFUNCTAB truncated")
		}
		return 6, nil

	case LF_ENUMERATE:
		// attrs u16, value numeric, name
		if len(body) < 4 {
			return 0, fmt.Errorf("LF_ENUMERATE truncated")
		}
		_, consumed, err := ReadNumeric(body[2:])
		if err != nil {
			return 0, fmt.Errorf("LF_ENUMERATE value: %w", err)
		}
		_, nameLen := ReadCString(body[2+consumed:])
		return 2 + consumed + nameLen, nil

	case LF_NESTTYPE:
		// pad u16, index u32, name
		if len(body) < 7 {
			return 0, fmt.Errorf("LF_NESTTYPE truncated")
		}
		_, nameLen := ReadCString(body[6:])
		return 6 + nameLen, nil

	case LF_ONEMETHOD:
		return fl.walkOneMethod(body)

	case LF_METHOD:
		return fl.walkMethod(body, lookup)

	case LF_INDEX:
		// pad u16, continuation index u32
		if len(body) < 6 {
			return 0, fmt.Errorf("LF_INDEX truncated")
		}
		contIdx := binary.LittleEndian.Uint32(body[2:])
		cont := lookup(contIdx)
		if cont == nil || cont.Kind != LF_FIELDLIST {
			return 0, fmt.Errorf("LF_INDEX continuation 0x%x missing", contIdx)
		}
		if err := fl.walk(cont.Data, lookup); err != nil {
			return 0, err
		}
		return 6, nil

	default:
		return 0, fmt.Errorf("unknown field leaf %s", LeafKindName(kind))
	}
}

// walkOneMethod decodes LF_ONEMETHOD: attrs u16, type u32, then for
// introducing methods a u32 v-table byte offset, then the name.
func (fl *FieldList) walkOneMethod(body []byte) (int, error) {
	if len(body) < 7 {
		return 0, fmt.Errorf("LF_ONEMETHOD truncated")
	}
	attrs := binary.LittleEndian.Uint16(body[0:])
	pos := 6

	intro := isIntroMethod(attrs)
	var vtabOffset uint32
	if intro {
		if len(body) < pos+4 {
			return 0, fmt.Errorf("LF_ONEMETHOD missing vbaseoff")
		}
		vtabOffset = binary.LittleEndian.Uint32(body[pos:])
		pos += 4
	}

	name, nameLen := ReadCString(body[pos:])
	if intro {
		fl.Methods = append(fl.Methods, Method{
			Name:        name,
			VTabOffset:  vtabOffset,
			Introducing: true,
		})
	}
	return pos + nameLen, nil
}

// walkMethod decodes LF_METHOD: count u16, method list index u32, name. The
// referenced LF_METHODLIST holds one entry per overload: attrs u16, pad u16,
// type u32, and for introducing entries a u32 v-table byte offset.
func (fl *FieldList) walkMethod(body []byte, lookup RecordLookup) (int, error) {
	if len(body) < 7 {
		return 0, fmt.Errorf("LF_METHOD truncated")
	}
	count := binary.LittleEndian.Uint16(body[0:])
	listIdx := binary.LittleEndian.Uint32(body[2:])
	name, nameLen := ReadCString(body[6:])

	list := lookup(listIdx)
	if list == nil || list.Kind != LF_METHODLIST {
		return 0, fmt.Errorf("method list 0x%x missing for %s", listIdx, name)
	}

	data := list.Data
	offset := 0
	for i := 0; i < int(count); i++ {
		if offset+8 > len(data) {
			return 0, fmt.Errorf("method list 0x%x truncated", listIdx)
		}
		attrs := binary.LittleEndian.Uint16(data[offset:])
		entrySize := 8

		if isIntroMethod(attrs) {
			if offset+12 > len(data) {
				return 0, fmt.Errorf("method list 0x%x missing vbaseoff", listIdx)
			}
			fl.Methods = append(fl.Methods, Method{
				Name:        name,
				VTabOffset:  binary.LittleEndian.Uint32(data[offset+8:]),
				Introducing: true,
			})
			entrySize += 4
		}
		offset += entrySize
	}

	return 6 + nameLen, nil
}

func isIntroMethod(attrs uint16) bool {
	mprop := (attrs >> 2) & 0x07
	return mprop == MethodIntro || mprop == MethodPureIntro
}
