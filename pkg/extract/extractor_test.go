package extract_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmp64/amxx-offset-generator/pkg/extract"
	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
	"github.com/tmp64/amxx-offset-generator/pkg/typegraph/graphtest"
)

func runExtractor(t *testing.T, g *graphtest.Graph, mapper *typegraph.Mapper, names ...string) *extract.Document {
	t.Helper()
	list := make(extract.ClassList)
	for _, n := range names {
		list[n] = struct{}{}
	}
	ex := &extract.Extractor{
		Backend: g,
		Mapper:  mapper,
		Classes: list,
	}
	doc, err := ex.Run()
	require.NoError(t, err)
	return doc
}

func TestExtractPrimitiveMember(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	c := g.AddClass("CCounter")
	g.SetMembers(c, typegraph.Member{Name: "count", Offset: 0, Type: intRef})

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CCounter")
	require.Contains(t, doc.Classes, "CCounter")
	cls := doc.Classes["CCounter"]
	require.Len(t, cls.Fields, 1)

	f := cls.Fields[0]
	assert.Equal(t, "count", f.Name)
	assert.Equal(t, uint64(0), f.Offset)
	assert.Nil(t, f.ArraySize)
	assert.Equal(t, "int count", f.Type)
	assert.Equal(t, "integer", f.AmxxType)
	require.NotNil(t, f.Unsigned)
	assert.False(t, *f.Unsigned)
	assert.Nil(t, cls.BaseClass)
}

func TestExtractCharArrayMember(t *testing.T) {
	g := graphtest.New()
	charRef := g.AddBase("char", typegraph.EncASCII, 8)
	arr := g.Add(typegraph.Type{
		Kind:       typegraph.KindArray,
		Elem:       charRef,
		HasElem:    true,
		ByteSize:   16,
		UpperBound: -1,
	})
	c := g.AddClass("CNamed")
	g.SetMembers(c, typegraph.Member{Name: "name", Offset: 8, Type: arr})

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CNamed")
	f := doc.Classes["CNamed"].Fields[0]
	assert.Equal(t, "char name[16]", f.Type)
	require.NotNil(t, f.ArraySize)
	assert.Equal(t, int64(16), *f.ArraySize)
	assert.Equal(t, "string", f.AmxxType)
	assert.Nil(t, f.Unsigned)
}

func TestExtractClassPointerMember(t *testing.T) {
	g := graphtest.New()
	fwd := g.AddStruct("CBaseEntity", true)
	ptr := g.AddPointer(fwd, 4)
	c := g.AddClass("CItem")
	g.SetMembers(c, typegraph.Member{Name: "m_pOwner", Offset: 24, Type: ptr})

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CItem")
	f := doc.Classes["CItem"].Fields[0]
	assert.Equal(t, "CBaseEntity *m_pOwner", f.Type)
	assert.Equal(t, "classptr", f.AmxxType)
	assert.Nil(t, f.ArraySize)
	assert.Nil(t, f.Unsigned)
}

func TestExtractStringTypedefMember(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	alias := g.Add(typegraph.Type{
		Kind:    typegraph.KindTypedef,
		Name:    "string_t",
		Elem:    intRef,
		HasElem: true,
	})
	c := g.AddClass("CTarget")
	g.SetMembers(c, typegraph.Member{Name: "m_iName", Offset: 4, Type: alias})

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CTarget")
	f := doc.Classes["CTarget"].Fields[0]
	assert.Equal(t, "string_t m_iName", f.Type)
	assert.Equal(t, "stringint", f.AmxxType)
}

func TestExtractInternNameHeuristic(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	c := g.AddClass("CTrigger")
	g.SetMembers(c, typegraph.Member{Name: "m_iszTargetName", Offset: 32, Type: intRef})

	doc := runExtractor(t, g, &typegraph.Mapper{StringInternNames: true}, "CTrigger")
	f := doc.Classes["CTrigger"].Fields[0]
	assert.Equal(t, "string_t m_iszTargetName", f.Type)
	assert.Equal(t, "stringint", f.AmxxType)
	assert.Nil(t, f.Unsigned)

	// Without the heuristic the member stays a plain integer.
	doc = runExtractor(t, g, &typegraph.Mapper{}, "CTrigger")
	f = doc.Classes["CTrigger"].Fields[0]
	assert.Equal(t, "int m_iszTargetName", f.Type)
	assert.Equal(t, "integer", f.AmxxType)
}

func TestExtractVTableDedupsOverrides(t *testing.T) {
	g := graphtest.New()
	c := g.AddClass("CMonster")
	g.SetMethods(c,
		typegraph.VirtualMethod{Name: "Spawn", Slot: 0, Introducing: true},
		typegraph.VirtualMethod{Name: "Think", Slot: 1, Introducing: true},
		typegraph.VirtualMethod{Name: "Use", Slot: 2, Introducing: true},
		typegraph.VirtualMethod{Name: "Think", Slot: 1, Introducing: true}, // override restating its slot
		typegraph.VirtualMethod{Name: "NonVirtualHelper", Slot: 0, Introducing: false},
	)

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CMonster")
	vt := doc.Classes["CMonster"].VTable
	require.Len(t, vt, 3)
	assert.Equal(t, uint32(0), vt[0].Index)
	assert.Equal(t, uint32(1), vt[1].Index)
	assert.Equal(t, uint32(2), vt[2].Index)
	assert.Equal(t, "Think", vt[1].Name)
}

func TestExtractVTableSlotOrder(t *testing.T) {
	g := graphtest.New()
	c := g.AddClass("COrdered")
	g.SetMethods(c,
		typegraph.VirtualMethod{Name: "B", Slot: 2, Introducing: true},
		typegraph.VirtualMethod{Name: "A", Slot: 0, Introducing: true, LinkName: "_ZN8COrdered1AEv"},
	)

	doc := runExtractor(t, g, &typegraph.Mapper{}, "COrdered")
	vt := doc.Classes["COrdered"].VTable
	require.Len(t, vt, 2)
	assert.Equal(t, "A", vt[0].Name)
	require.NotNil(t, vt[0].LinkName)
	assert.Equal(t, "_ZN8COrdered1AEv", *vt[0].LinkName)
	assert.Nil(t, vt[1].LinkName)
}

func TestExtractSkipsStaticAndArtificial(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	c := g.AddClass("CPlain")
	g.SetMembers(c,
		typegraph.Member{Name: "_vptr$CPlain", Offset: 0, Type: intRef, Artificial: true},
		typegraph.Member{Name: "s_count", Type: intRef, Static: true},
		typegraph.Member{Name: "value", Offset: 4, Type: intRef},
	)

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CPlain")
	fields := doc.Classes["CPlain"].Fields
	require.Len(t, fields, 1)
	assert.Equal(t, "value", fields[0].Name)
}

func TestExtractBaseClassResolvesForward(t *testing.T) {
	g := graphtest.New()
	fwd := g.AddStruct("CBaseEntity", true)
	def := g.AddStruct("CBaseEntity", false)
	g.SetForward(fwd, def)

	c := g.AddClass("CItem")
	g.SetBases(c, fwd)

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CItem")
	base := doc.Classes["CItem"].BaseClass
	require.NotNil(t, base)
	assert.Equal(t, "CBaseEntity", *base)
}

func TestExtractSkipsUnlisted(t *testing.T) {
	g := graphtest.New()
	g.AddClass("CListed")
	g.AddClass("CUnlisted")

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CListed")
	assert.Len(t, doc.Classes, 1)
	assert.Contains(t, doc.Classes, "CListed")
}

func TestExtractProcessesEachNameOnce(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)

	first := g.AddClass("CDup")
	g.SetMembers(first, typegraph.Member{Name: "a", Offset: 0, Type: intRef})
	second := g.AddClass("CDup")
	g.SetMembers(second, typegraph.Member{Name: "b", Offset: 0, Type: intRef})

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CDup")
	require.Len(t, doc.Classes, 1)
	assert.Equal(t, "a", doc.Classes["CDup"].Fields[0].Name)
}

func TestDocumentJSONShape(t *testing.T) {
	g := graphtest.New()
	intRef := g.AddBase("int", typegraph.EncSigned, 32)
	c := g.AddClass("CShape")
	g.SetMembers(c, typegraph.Member{Name: "count", Offset: 0, Type: intRef})

	doc := runExtractor(t, g, &typegraph.Mapper{}, "CShape")

	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))
	out := buf.String()

	assert.Contains(t, out, `"classes"`)
	assert.Contains(t, out, `"baseClass": null`)
	assert.Contains(t, out, `"arraySize": null`)
	assert.Contains(t, out, `"unsigned": false`)
	assert.Contains(t, out, `"vtable": []`)

	// Determinism: a second serialization is byte-identical.
	var buf2 bytes.Buffer
	require.NoError(t, doc.Write(&buf2))
	assert.Equal(t, buf.String(), buf2.String())
}
