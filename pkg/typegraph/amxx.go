package typegraph

import (
	"fmt"
	"strings"
)

// Tag is one of the fixed scripting-runtime type tags emitted for every
// member.
type Tag string

const (
	TagVoid      Tag = "void"
	TagCharacter Tag = "character"
	TagShort     Tag = "short"
	TagInteger   Tag = "integer"
	TagLongLong  Tag = "long long"
	TagFloat     Tag = "float"
	TagDouble    Tag = "double"
	TagPointer   Tag = "pointer"
	TagStringPtr Tag = "stringptr"
	TagString    Tag = "string"
	TagStringInt Tag = "stringint"
	TagClassPtr  Tag = "classptr"
	TagFunction  Tag = "function"
	TagStructure Tag = "structure"
	TagVector    Tag = "vector"
	TagEHandle   Tag = "ehandle"
	TagEntvars   Tag = "entvars"
	TagEdict     Tag = "edict"
)

// Mapper classifies member types onto runtime tags. StringInternNames
// enables the PDB-only name heuristic that recovers string_t members whose
// typedef was folded away by the compiler; the DWARF front-end leaves it off
// because the typedef survives there and is matched structurally.
type Mapper struct {
	StringInternNames bool
}

// internNamePrefixes and internNames match members that hold engine string
// handles despite being typed as plain int in the debug info.
var (
	internNamePrefixes = []string{"m_str", "m_isz"}
	internNames        = map[string]struct{}{
		"m_sMaster":     {},
		"m_globalstate": {},
		"m_altName":     {},
	}
)

// Map classifies the type behind ref. Signedness comes from the innermost
// type under every modifier, typedef, pointer and array layer, so a pointer
// to int reports false. The returned pointer is nil for the string-like tags
// and when that innermost type has no signed or unsigned encoding.
func (m *Mapper) Map(b Backend, ref TypeRef) (Tag, *bool, error) {
	tag, err := m.mapTag(b, ref, 0)
	if err != nil {
		return "", nil, err
	}

	var unsigned *bool
	switch tag {
	case TagString, TagStringPtr, TagStringInt:
		// String-like members never report signedness.
	default:
		unsigned, err = signedness(b, ref)
		if err != nil {
			return "", nil, err
		}
	}
	return tag, unsigned, nil
}

// MatchesInternName reports whether a member name matches the string-intern
// heuristic.
func (m *Mapper) MatchesInternName(name string) bool {
	if !m.StringInternNames {
		return false
	}
	for _, p := range internNamePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	_, ok := internNames[name]
	return ok
}

func (m *Mapper) mapTag(b Backend, ref TypeRef, depth int) (Tag, error) {
	if depth >= maxChainDepth {
		return "", fmt.Errorf("%w: type chain deeper than %d at ref %#x", ErrCorruptInput, maxChainDepth, uint64(ref))
	}

	head, err := Strip(b, ref, StripOptions{Modifiers: true})
	if err != nil {
		return "", err
	}
	t, err := b.Lookup(head)
	if err != nil {
		return "", err
	}

	switch t.Kind {
	case KindBase:
		return baseTag(t, head)

	case KindTypedef:
		switch t.Name {
		case "string_t":
			return TagStringInt, nil
		default:
			return m.mapTag(b, t.Elem, depth+1)
		}

	case KindPointer:
		if t.Ptr == PtrToMember {
			return TagFunction, nil
		}
		return m.mapPointee(b, t.Elem, depth)

	case KindClass, KindStruct, KindUnion:
		switch t.Name {
		case "Vector":
			return TagVector, nil
		case "EHANDLE":
			return TagEHandle, nil
		default:
			return TagStructure, nil
		}

	case KindEnum:
		if t.HasElem {
			return m.mapTag(b, t.Elem, depth+1)
		}
		return enumTag(t, head)

	case KindArray:
		elem, err := StripModifiers(b, t.Elem)
		if err != nil {
			return "", err
		}
		et, err := b.Lookup(elem)
		if err != nil {
			return "", err
		}
		if et.Kind == KindBase && isCharBase(et) {
			return TagString, nil
		}
		return m.mapTag(b, t.Elem, depth+1)

	case KindSubroutine:
		return TagFunction, nil

	default:
		return "", fmt.Errorf("%w: no runtime tag for %s record at ref %#x", ErrUnsupportedRecord, t.Kind, uint64(head))
	}
}

// mapPointee applies the pointer rules: the immediate pointee decides
// between stringptr, the named engine structures, classptr, function, and
// the plain pointer fallback.
func (m *Mapper) mapPointee(b Backend, pointee TypeRef, depth int) (Tag, error) {
	// A typedef directly under the pointer names the engine structures.
	bare, err := Strip(b, pointee, StripOptions{Modifiers: true})
	if err != nil {
		return "", err
	}
	bt, err := b.Lookup(bare)
	if err != nil {
		return "", err
	}
	if bt.Kind == KindTypedef {
		switch bt.Name {
		case "entvars_t":
			return TagEntvars, nil
		case "edict_t":
			return TagEdict, nil
		}
	}

	head, err := Strip(b, pointee, StripOptions{Modifiers: true, Typedefs: true})
	if err != nil {
		return "", err
	}
	t, err := b.Lookup(head)
	if err != nil {
		return "", err
	}

	switch t.Kind {
	case KindBase:
		if isCharBase(t) {
			return TagStringPtr, nil
		}

	case KindClass, KindStruct, KindUnion:
		switch {
		case t.Name == "entvars_s":
			return TagEntvars, nil
		case t.Name == "edict_s":
			return TagEdict, nil
		case strings.HasPrefix(t.Name, "C"):
			return TagClassPtr, nil
		}

	case KindSubroutine:
		return TagFunction, nil
	}

	return TagPointer, nil
}

// baseTag selects the tag for a primitive by encoding and bit size.
func baseTag(t Type, ref TypeRef) (Tag, error) {
	switch t.Encoding {
	case EncBoolean, EncSignedChar, EncUnsignedChar, EncASCII:
		return TagCharacter, nil

	case EncUCS, EncUTF:
		return charWidthTag(t, ref)

	case EncSigned, EncUnsigned:
		return intWidthTag(t, ref)

	case EncFloat:
		switch t.BitSize {
		case 32:
			return TagFloat, nil
		case 64:
			return TagDouble, nil
		}

	case EncAddress:
		return TagPointer, nil

	case EncNone:
		if t.BitSize == 0 {
			return TagVoid, nil
		}
	}

	return "", fmt.Errorf("%w: base type %q (encoding %d, %d bits) at ref %#x", ErrUnsupportedRecord, t.Name, t.Encoding, t.BitSize, uint64(ref))
}

func intWidthTag(t Type, ref TypeRef) (Tag, error) {
	switch t.BitSize {
	case 8:
		return TagCharacter, nil
	case 16:
		return TagShort, nil
	case 32:
		return TagInteger, nil
	case 64:
		return TagLongLong, nil
	}
	return "", fmt.Errorf("%w: %d-bit integer at ref %#x", ErrUnsupportedRecord, t.BitSize, uint64(ref))
}

// charWidthTag maps wide and unicode character types by storage width.
func charWidthTag(t Type, ref TypeRef) (Tag, error) {
	switch t.BitSize {
	case 8:
		return TagCharacter, nil
	case 16:
		return TagShort, nil
	case 32:
		return TagInteger, nil
	}
	return "", fmt.Errorf("%w: %d-bit character at ref %#x", ErrUnsupportedRecord, t.BitSize, uint64(ref))
}

func enumTag(t Type, ref TypeRef) (Tag, error) {
	switch t.BitSize {
	case 8:
		return TagCharacter, nil
	case 16:
		return TagShort, nil
	case 32:
		return TagInteger, nil
	case 64:
		return TagLongLong, nil
	}
	return "", fmt.Errorf("%w: enumeration with %d-bit storage at ref %#x", ErrUnsupportedRecord, t.BitSize, uint64(ref))
}

// isCharBase matches the narrow char type that drives the string and
// stringptr rules: any ASCII-encoded base (CodeView T_RCHAR), or a
// signed-char base named "char" (DWARF's plain char, and also CodeView
// T_CHAR, which the PDB builtin table spells "char"). A signed-char base
// named "signed char" does not match.
func isCharBase(t Type) bool {
	switch t.Encoding {
	case EncASCII:
		return true
	case EncSignedChar:
		return t.Name == "char"
	}
	return false
}

// signedness finds the innermost builtin through every wrapper layer and
// reports its signedness, or nil when the encoding carries none.
func signedness(b Backend, ref TypeRef) (*bool, error) {
	inner, err := Innermost(b, ref)
	if err != nil {
		return nil, err
	}
	t, err := b.Lookup(inner)
	if err != nil {
		return nil, err
	}
	if t.Kind != KindBase {
		return nil, nil
	}

	switch t.Encoding {
	case EncSigned, EncSignedChar:
		v := false
		return &v, nil
	case EncUnsigned, EncUnsignedChar:
		v := true
		return &v, nil
	default:
		return nil, nil
	}
}
