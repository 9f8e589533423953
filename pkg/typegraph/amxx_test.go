package typegraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
	"github.com/tmp64/amxx-offset-generator/pkg/typegraph/graphtest"
)

func mapOne(t *testing.T, g *graphtest.Graph, ref typegraph.TypeRef) (typegraph.Tag, *bool) {
	t.Helper()
	m := &typegraph.Mapper{}
	tag, unsigned, err := m.Map(g, ref)
	require.NoError(t, err)
	return tag, unsigned
}

func TestMapBaseTypes(t *testing.T) {
	g := graphtest.New()

	cases := []struct {
		name     string
		enc      typegraph.Encoding
		bits     int
		tag      typegraph.Tag
		unsigned *bool
	}{
		{"int", typegraph.EncSigned, 32, typegraph.TagInteger, boolPtr(false)},
		{"unsigned", typegraph.EncUnsigned, 32, typegraph.TagInteger, boolPtr(true)},
		{"short", typegraph.EncSigned, 16, typegraph.TagShort, boolPtr(false)},
		{"int64_t", typegraph.EncSigned, 64, typegraph.TagLongLong, boolPtr(false)},
		{"char", typegraph.EncSignedChar, 8, typegraph.TagCharacter, boolPtr(false)},
		{"byte", typegraph.EncUnsignedChar, 8, typegraph.TagCharacter, boolPtr(true)},
		{"bool", typegraph.EncBoolean, 8, typegraph.TagCharacter, nil},
		{"float", typegraph.EncFloat, 32, typegraph.TagFloat, nil},
		{"double", typegraph.EncFloat, 64, typegraph.TagDouble, nil},
		{"wchar_t", typegraph.EncUCS, 16, typegraph.TagShort, nil},
	}

	for _, tc := range cases {
		ref := g.AddBase(tc.name, tc.enc, tc.bits)
		tag, unsigned := mapOne(t, g, ref)
		assert.Equal(t, tc.tag, tag, tc.name)
		assert.Equal(t, tc.unsigned, unsigned, tc.name)
	}
}

func TestMapUnsupportedBase(t *testing.T) {
	g := graphtest.New()
	ref := g.AddBase("OCTAL", typegraph.EncSigned, 128)

	m := &typegraph.Mapper{}
	_, _, err := m.Map(g, ref)
	assert.ErrorIs(t, err, typegraph.ErrUnsupportedRecord)
}

func TestMapStringTypedef(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	alias := g.Add(typegraph.Type{
		Kind:    typegraph.KindTypedef,
		Name:    "string_t",
		Elem:    intRef,
		HasElem: true,
	})

	tag, unsigned := mapOne(t, g, alias)
	assert.Equal(t, typegraph.TagStringInt, tag)
	assert.Nil(t, unsigned)
}

func TestMapOtherTypedefRecurses(t *testing.T) {
	g := graphtest.New()
	floatRef := g.AddBase("float", typegraph.EncFloat, 32)
	alias := g.Add(typegraph.Type{
		Kind:    typegraph.KindTypedef,
		Name:    "vec_t",
		Elem:    floatRef,
		HasElem: true,
	})

	tag, _ := mapOne(t, g, alias)
	assert.Equal(t, typegraph.TagFloat, tag)
}

func TestMapCharPointer(t *testing.T) {
	g := graphtest.New()
	charRef := g.AddBase("char", typegraph.EncASCII, 8)
	ptr := g.AddPointer(charRef, 4)

	tag, unsigned := mapOne(t, g, ptr)
	assert.Equal(t, typegraph.TagStringPtr, tag)
	assert.Nil(t, unsigned)
}

func TestMapClassPointer(t *testing.T) {
	g := graphtest.New()
	cls := g.AddStruct("CBaseEntity", true)
	ptr := g.AddPointer(cls, 4)

	tag, unsigned := mapOne(t, g, ptr)
	assert.Equal(t, typegraph.TagClassPtr, tag)
	assert.Nil(t, unsigned)
}

func TestMapEnginePointers(t *testing.T) {
	g := graphtest.New()

	entvars := g.AddStruct("entvars_s", true)
	tag, _ := mapOne(t, g, g.AddPointer(entvars, 4))
	assert.Equal(t, typegraph.TagEntvars, tag)

	edict := g.AddStruct("edict_s", true)
	tag, _ = mapOne(t, g, g.AddPointer(edict, 4))
	assert.Equal(t, typegraph.TagEdict, tag)
}

func TestMapEngineTypedefPointers(t *testing.T) {
	g := graphtest.New()
	entvars := g.AddStruct("entvars_s", true)
	alias := g.Add(typegraph.Type{
		Kind:    typegraph.KindTypedef,
		Name:    "entvars_t",
		Elem:    entvars,
		HasElem: true,
	})
	ptr := g.AddPointer(alias, 4)

	tag, _ := mapOne(t, g, ptr)
	assert.Equal(t, typegraph.TagEntvars, tag)
}

func TestMapPlainPointer(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	ptr := g.AddPointer(intRef, 4)

	tag, unsigned := mapOne(t, g, ptr)
	assert.Equal(t, typegraph.TagPointer, tag)
	// Signedness follows the innermost builtin through the pointer.
	assert.Equal(t, boolPtr(false), unsigned)
}

func TestMapFunctionPointer(t *testing.T) {
	g := graphtest.New()
	voidRef := g.AddBase("void", typegraph.EncNone, 0)
	fn := g.Add(typegraph.Type{
		Kind:    typegraph.KindSubroutine,
		Elem:    voidRef,
		HasElem: true,
	})
	ptr := g.AddPointer(fn, 4)

	tag, unsigned := mapOne(t, g, ptr)
	assert.Equal(t, typegraph.TagFunction, tag)
	assert.Nil(t, unsigned)
}

func TestMapPointerToMember(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	pm := g.Add(typegraph.Type{
		Kind:     typegraph.KindPointer,
		Ptr:      typegraph.PtrToMember,
		Elem:     intRef,
		HasElem:  true,
		PtrWidth: 4,
	})

	tag, _ := mapOne(t, g, pm)
	assert.Equal(t, typegraph.TagFunction, tag)
}

func TestMapStructures(t *testing.T) {
	g := graphtest.New()

	tag, unsigned := mapOne(t, g, g.AddStruct("Vector", false))
	assert.Equal(t, typegraph.TagVector, tag)
	assert.Nil(t, unsigned)

	tag, _ = mapOne(t, g, g.AddStruct("EHANDLE", false))
	assert.Equal(t, typegraph.TagEHandle, tag)

	tag, _ = mapOne(t, g, g.AddStruct("entity_state_t", false))
	assert.Equal(t, typegraph.TagStructure, tag)
}

func TestMapCharArray(t *testing.T) {
	g := graphtest.New()
	charRef := g.AddBase("char", typegraph.EncASCII, 8)
	arr := g.Add(typegraph.Type{
		Kind:       typegraph.KindArray,
		Elem:       charRef,
		HasElem:    true,
		ByteSize:   16,
		UpperBound: -1,
	})

	tag, unsigned := mapOne(t, g, arr)
	assert.Equal(t, typegraph.TagString, tag)
	assert.Nil(t, unsigned)
}

func TestMapOtherArrayRecurses(t *testing.T) {
	g := graphtest.New()
	floatRef := g.AddBase("float", typegraph.EncFloat, 32)
	arr := g.Add(typegraph.Type{
		Kind:       typegraph.KindArray,
		Elem:       floatRef,
		HasElem:    true,
		ByteSize:   12,
		UpperBound: -1,
	})

	tag, _ := mapOne(t, g, arr)
	assert.Equal(t, typegraph.TagFloat, tag)
}

func TestMapEnum(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)

	withUnderlying := g.Add(typegraph.Type{
		Kind:    typegraph.KindEnum,
		Name:    "USE_TYPE",
		Elem:    intRef,
		HasElem: true,
	})
	tag, _ := mapOne(t, g, withUnderlying)
	assert.Equal(t, typegraph.TagInteger, tag)

	bySize := g.Add(typegraph.Type{
		Kind:    typegraph.KindEnum,
		Name:    "MONSTERSTATE",
		BitSize: 32,
	})
	tag, _ = mapOne(t, g, bySize)
	assert.Equal(t, typegraph.TagInteger, tag)
}

func TestMapModifierStripped(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	constInt := g.Add(typegraph.Type{
		Kind:    typegraph.KindModifier,
		Mods:    typegraph.ModConst,
		Elem:    intRef,
		HasElem: true,
	})

	tag, unsigned := mapOne(t, g, constInt)
	assert.Equal(t, typegraph.TagInteger, tag)
	assert.Equal(t, boolPtr(false), unsigned)
}

func TestMapBitfieldUnsupported(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	bf := g.Add(typegraph.Type{
		Kind:     typegraph.KindBitfield,
		Elem:     intRef,
		HasElem:  true,
		BitWidth: 3,
	})

	m := &typegraph.Mapper{}
	_, _, err := m.Map(g, bf)
	assert.ErrorIs(t, err, typegraph.ErrUnsupportedRecord)
}

func TestMatchesInternName(t *testing.T) {
	m := &typegraph.Mapper{StringInternNames: true}

	assert.True(t, m.MatchesInternName("m_iszTargetName"))
	assert.True(t, m.MatchesInternName("m_strMessage"))
	assert.True(t, m.MatchesInternName("m_sMaster"))
	assert.True(t, m.MatchesInternName("m_globalstate"))
	assert.True(t, m.MatchesInternName("m_altName"))
	assert.False(t, m.MatchesInternName("m_iHealth"))

	off := &typegraph.Mapper{}
	assert.False(t, off.MatchesInternName("m_iszTargetName"))
}

func boolPtr(v bool) *bool { return &v }
