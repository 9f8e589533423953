package typegraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
	"github.com/tmp64/amxx-offset-generator/pkg/typegraph/graphtest"
)

func TestSpellBase(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)

	got, err := typegraph.Spell(g, intRef, "count")
	require.NoError(t, err)
	assert.Equal(t, "int count", got)

	got, err = typegraph.Spell(g, intRef, "")
	require.NoError(t, err)
	assert.Equal(t, "int", got)
}

func TestSpellCharArray(t *testing.T) {
	g := graphtest.New()
	charRef := g.AddBase("char", typegraph.EncASCII, 8)
	arr := g.Add(typegraph.Type{
		Kind:       typegraph.KindArray,
		Elem:       charRef,
		HasElem:    true,
		ByteSize:   16,
		UpperBound: -1,
	})

	got, err := typegraph.Spell(g, arr, "name")
	require.NoError(t, err)
	assert.Equal(t, "char name[16]", got)
}

func TestSpellUnknownArrayExtent(t *testing.T) {
	g := graphtest.New()
	charRef := g.AddBase("char", typegraph.EncASCII, 8)
	arr := g.Add(typegraph.Type{
		Kind:       typegraph.KindArray,
		Elem:       charRef,
		HasElem:    true,
		ByteSize:   0,
		UpperBound: -1,
	})

	got, err := typegraph.Spell(g, arr, "tail")
	require.NoError(t, err)
	assert.Equal(t, "char tail[]", got)
}

func TestSpellClassPointer(t *testing.T) {
	g := graphtest.New()
	cls := g.AddStruct("CBaseEntity", false)
	ptr := g.AddPointer(cls, 4)

	got, err := typegraph.Spell(g, ptr, "m_pOwner")
	require.NoError(t, err)
	assert.Equal(t, "CBaseEntity *m_pOwner", got)
}

func TestSpellPointerToConst(t *testing.T) {
	g := graphtest.New()
	charRef := g.AddBase("char", typegraph.EncASCII, 8)
	constChar := g.Add(typegraph.Type{
		Kind:    typegraph.KindModifier,
		Mods:    typegraph.ModConst,
		Elem:    charRef,
		HasElem: true,
	})
	ptr := g.AddPointer(constChar, 4)

	got, err := typegraph.Spell(g, ptr, "m_pszName")
	require.NoError(t, err)
	assert.Equal(t, "char const *m_pszName", got)
}

func TestSpellPointerOwnQualifier(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	ptr := g.Add(typegraph.Type{
		Kind:     typegraph.KindPointer,
		Mods:     typegraph.ModConst,
		Elem:     intRef,
		HasElem:  true,
		PtrWidth: 4,
	})

	got, err := typegraph.Spell(g, ptr, "p")
	require.NoError(t, err)
	assert.Equal(t, "int *const p", got)
}

func TestSpellReference(t *testing.T) {
	g := graphtest.New()
	vec := g.AddStruct("Vector", false)
	ref := g.Add(typegraph.Type{
		Kind:     typegraph.KindPointer,
		Ptr:      typegraph.PtrReference,
		Elem:     vec,
		HasElem:  true,
		PtrWidth: 4,
	})

	got, err := typegraph.Spell(g, ref, "origin")
	require.NoError(t, err)
	assert.Equal(t, "Vector &origin", got)
}

func TestSpellTypedefLeaf(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	alias := g.Add(typegraph.Type{
		Kind:    typegraph.KindTypedef,
		Name:    "string_t",
		Elem:    intRef,
		HasElem: true,
	})

	got, err := typegraph.Spell(g, alias, "m_iName")
	require.NoError(t, err)
	assert.Equal(t, "string_t m_iName", got)
}

func TestSpellSubroutine(t *testing.T) {
	g := graphtest.New()
	voidRef := g.AddBase("void", typegraph.EncNone, 0)
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	fn := g.Add(typegraph.Type{
		Kind:    typegraph.KindSubroutine,
		Elem:    voidRef,
		HasElem: true,
		Params:  []typegraph.TypeRef{intRef},
	})
	ptr := g.AddPointer(fn, 4)

	got, err := typegraph.Spell(g, ptr, "callback")
	require.NoError(t, err)
	assert.Equal(t, "void (*callback)(int)", got)
}

func TestSpellUnknownKind(t *testing.T) {
	g := graphtest.New()
	odd := g.Add(typegraph.Type{Name: "LF_VTSHAPE"})

	got, err := typegraph.Spell(g, odd, "x")
	require.NoError(t, err)
	assert.Equal(t, "unk_LF_VTSHAPE x", got)
}
