package pdb

import (
	"fmt"

	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
)

// Builtin type indices are split into a kind (bits 0-7) and a pointer mode
// (bits 8-11). Mode 0 is the type itself; every other mode is a pointer to
// it.
const (
	tmDirect  = 0
	tmNear    = 1
	tmFar     = 2
	tmHuge    = 3
	tmNear32  = 4
	tmFar32   = 5
	tmNear64  = 6
	tmNear128 = 7
)

// Builtin kinds (bits 0-7 of a builtin type index).
const (
	tNoType  = 0x0000
	tVoid    = 0x0003
	tHResult = 0x0008

	tChar  = 0x0010
	tShort = 0x0011
	tLong  = 0x0012
	tQuad  = 0x0013
	tOct   = 0x0014

	tUChar  = 0x0020
	tUShort = 0x0021
	tULong  = 0x0022
	tUQuad  = 0x0023
	tUOct   = 0x0024

	tBool08 = 0x0030
	tBool16 = 0x0031
	tBool32 = 0x0032
	tBool64 = 0x0033

	tReal32 = 0x0040
	tReal64 = 0x0041
	tReal80 = 0x0042

	tInt1   = 0x0068
	tUInt1  = 0x0069
	tRChar  = 0x0070
	tWChar  = 0x0071
	tInt2   = 0x0072
	tUInt2  = 0x0073
	tInt4   = 0x0074
	tUInt4  = 0x0075
	tInt8   = 0x0076
	tUInt8  = 0x0077
	tChar16 = 0x007a
	tChar32 = 0x007b
	tChar8  = 0x007c
)

type builtinInfo struct {
	Name string
	Enc  typegraph.Encoding
	Bits int
}

// builtinTable spells builtins with their canonical short C names.
var builtinTable = map[uint32]builtinInfo{
	tNoType:  {"<no type>", typegraph.EncNone, 0},
	tVoid:    {"void", typegraph.EncNone, 0},
	tHResult: {"HRESULT", typegraph.EncSigned, 32},

	tChar:  {"char", typegraph.EncSignedChar, 8},
	tShort: {"short", typegraph.EncSigned, 16},
	tLong:  {"long", typegraph.EncSigned, 32},
	tQuad:  {"int64_t", typegraph.EncSigned, 64},
	tOct:   {"OCTAL", typegraph.EncSigned, 128},

	tUChar:  {"byte", typegraph.EncUnsignedChar, 8},
	tUShort: {"unsigned short", typegraph.EncUnsigned, 16},
	tULong:  {"unsigned long", typegraph.EncUnsigned, 32},
	tUQuad:  {"uint64_t", typegraph.EncUnsigned, 64},
	tUOct:   {"UOCTAL", typegraph.EncUnsigned, 128},

	tBool08: {"bool", typegraph.EncBoolean, 8},
	tBool16: {"BOOL16", typegraph.EncBoolean, 16},
	tBool32: {"BOOL", typegraph.EncBoolean, 32},
	tBool64: {"BOOL64", typegraph.EncBoolean, 64},

	tReal32: {"float", typegraph.EncFloat, 32},
	tReal64: {"double", typegraph.EncFloat, 64},
	tReal80: {"REAL80", typegraph.EncFloat, 80},

	tInt1:  {"int8_t", typegraph.EncSigned, 8},
	tUInt1: {"uint8_t", typegraph.EncUnsigned, 8},

	// T_RCHAR is the "really a char" plain char; T_CHAR above is the
	// explicitly signed one.
	tRChar:  {"char", typegraph.EncASCII, 8},
	tWChar:  {"wchar_t", typegraph.EncUCS, 16},
	tInt2:   {"int16_t", typegraph.EncSigned, 16},
	tUInt2:  {"uint16_t", typegraph.EncUnsigned, 16},
	tInt4:   {"int", typegraph.EncSigned, 32},
	tUInt4:  {"unsigned", typegraph.EncUnsigned, 32},
	tInt8:   {"int64_t", typegraph.EncSigned, 64},
	tUInt8:  {"uint64_t", typegraph.EncUnsigned, 64},
	tChar16: {"char16_t", typegraph.EncUTF, 16},
	tChar32: {"char32_t", typegraph.EncUTF, 32},
	tChar8:  {"char8_t", typegraph.EncUTF, 8},
}

// builtinKind returns the kind bits of a builtin index.
func builtinKind(index uint32) uint32 { return index & 0xFF }

// builtinMode returns the pointer mode bits of a builtin index.
func builtinMode(index uint32) uint32 { return (index >> 8) & 0xF }

// lookupBuiltin decodes a builtin type index into the uniform type model.
// Pointer modes become a pointer wrapping the mode-stripped index.
func lookupBuiltin(index uint32) (typegraph.Type, error) {
	kind := builtinKind(index)
	info, ok := builtinTable[kind]
	if !ok {
		return typegraph.Type{}, fmt.Errorf("%w: builtin type 0x%04x", typegraph.ErrUnsupportedRecord, index)
	}

	if mode := builtinMode(index); mode != tmDirect {
		width := 4
		if mode == tmNear64 || mode == tmNear128 {
			width = 8
		}
		return typegraph.Type{
			Kind:     typegraph.KindPointer,
			Ptr:      typegraph.PtrRaw,
			PtrWidth: width,
			Elem:     typegraph.TypeRef(kind),
			HasElem:  true,
		}, nil
	}

	return typegraph.Type{
		Kind:     typegraph.KindBase,
		Name:     info.Name,
		Encoding: info.Enc,
		BitSize:  info.Bits,
	}, nil
}

// builtinByteSize returns the storage size of a builtin index in bytes.
func builtinByteSize(index uint32) (int64, error) {
	if mode := builtinMode(index); mode != tmDirect {
		if mode == tmNear64 || mode == tmNear128 {
			return 8, nil
		}
		return 4, nil
	}
	info, ok := builtinTable[builtinKind(index)]
	if !ok {
		return 0, fmt.Errorf("%w: builtin type 0x%04x", typegraph.ErrUnsupportedRecord, index)
	}
	return int64(info.Bits / 8), nil
}
