// Package typegraph defines the uniform type-graph contract shared by the
// debug-info backends and the pure resolution passes (normaliser, speller,
// runtime-type mapper) that run on top of it.
package typegraph

// TypeRef is an opaque handle into a backend's type graph. For the PDB
// backend it is the CodeView type index; for the DWARF backend it is the
// DIE offset. A TypeRef is only valid for the backend session that issued it.
type TypeRef uint64

// Kind classifies a type record.
type Kind int

const (
	KindInvalid Kind = iota
	KindBase
	KindModifier
	KindTypedef
	KindPointer
	KindArray
	KindClass
	KindStruct
	KindUnion
	KindEnum
	KindSubroutine
	KindBitfield
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindModifier:
		return "modifier"
	case KindTypedef:
		return "typedef"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindSubroutine:
		return "subroutine"
	case KindBitfield:
		return "bitfield"
	default:
		return "invalid"
	}
}

// Encoding is the interpretation of a base type's bits.
type Encoding int

const (
	EncNone Encoding = iota
	EncSigned
	EncUnsigned
	EncSignedChar
	EncUnsignedChar
	EncBoolean
	EncFloat
	EncASCII
	EncUCS
	EncUTF
	EncAddress
)

// Modifiers is a cv-qualifier bitmask. It appears on modifier records and on
// pointer records that carry their own qualifiers.
type Modifiers uint8

const (
	ModConst Modifiers = 1 << iota
	ModVolatile
	ModRestrict
	ModUnaligned
)

// PointerKind distinguishes the pointer-like record flavors.
type PointerKind int

const (
	PtrRaw PointerKind = iota
	PtrReference
	PtrRValueReference
	PtrToMember
)

// Type is the decoded form of one type record. Kind selects which fields are
// meaningful; the rest are zero.
type Type struct {
	Kind Kind

	// Name of the leaf for base, class/struct/union, enum, and typedef
	// records. Base types use their canonical short C spelling.
	Name string

	// Base types.
	Encoding Encoding
	BitSize  int

	// Modifier and pointer records.
	Mods Modifiers

	// Wrapped reference: modifier/typedef target, pointee, array element,
	// enum underlying type, bitfield underlying type, subroutine return.
	Elem    TypeRef
	HasElem bool

	// Pointer records.
	Ptr      PointerKind
	PtrWidth int

	// Array extent. PDB arrays carry a total byte size (0 = present but
	// unknown); DWARF arrays carry an upper bound. -1 means not applicable.
	ByteSize   int64
	UpperBound int64

	// Class/struct/union records.
	Forward bool

	// Subroutine parameter list.
	Params []TypeRef

	// Bitfield width in bits.
	BitWidth int
}

// Member is a raw data-member descriptor in declaration (layout) order.
type Member struct {
	Name       string
	Offset     uint64
	Type       TypeRef
	Artificial bool
	Static     bool
}

// VirtualMethod is one entry of a class's virtual-method list.
// Slot is the zero-based v-table index, sized in pointer-width words.
type VirtualMethod struct {
	Name        string
	LinkName    string
	Slot        uint32
	Introducing bool
}

// ClassHandle identifies one class-like definition yielded by enumeration.
type ClassHandle struct {
	Ref     TypeRef
	Name    string
	Forward bool
}

// Backend is the uniform reader over one debug format. All graph state lives
// for the duration of one session; TypeRefs are invalidated on Close.
type Backend interface {
	// VisitClasses enumerates class-like definition records in the backend's
	// natural order. Forward-declaration records are skipped. The pass is
	// finite and not restartable.
	VisitClasses(fn func(ClassHandle) error) error

	// Members yields the raw member descriptors of a class in layout order.
	Members(h ClassHandle) ([]Member, error)

	// BaseClasses yields the direct non-virtual base-class references in
	// declaration order.
	BaseClasses(h ClassHandle) ([]TypeRef, error)

	// VirtualMethods yields the class's virtual methods in declaration
	// order. Only methods carrying an introducing property are reported by
	// backends that can tell; others report every virtual method.
	VirtualMethods(h ClassHandle) ([]VirtualMethod, error)

	// Lookup decodes the record behind ref.
	Lookup(ref TypeRef) (Type, error)

	// ByteSize reports the storage size of the type behind ref, or an error
	// when the format does not record one.
	ByteSize(ref TypeRef) (int64, error)

	// ResolveForward maps a forward-declared class/struct to its same-named
	// definition record. When no definition exists the argument is returned
	// unchanged.
	ResolveForward(ref TypeRef) TypeRef

	// IsBuiltin reports whether ref lies in the backend's builtin partition.
	IsBuiltin(ref TypeRef) bool
}
