// Package dwarfinfo implements the DWARF debug-info backend: it reads the
// .debug_info of an ELF shared object and exposes the DIE tree through the
// uniform typegraph contract.
package dwarfinfo

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"

	"fortio.org/safecast"

	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
)

// voidRef is the pseudo reference used where a DIE omits DW_AT_type, which
// DWARF defines to mean void. No real DIE lives at offset 0.
const voidRef typegraph.TypeRef = 0

// attrMIPSLinkageName is the pre-DWARF4 linkage name attribute still
// emitted by some producers.
const attrMIPSLinkageName dwarf.Attr = 0x2007

// node is one DIE with its resolved child list.
type node struct {
	entry    *dwarf.Entry
	children []dwarf.Offset
	addrSize int
}

// Backend is an opened DWARF session. The whole DIE tree is decoded on Open
// so that every TypeRef lookup is a map access.
type Backend struct {
	nodes     map[dwarf.Offset]*node
	classes   []dwarf.Offset
	defByName map[string]dwarf.Offset
}

// Open reads the DWARF data of an ELF shared object and indexes every
// compilation unit's DIE tree.
func Open(path string) (*Backend, error) {
	f, err := elf.Open(path)
	if err != nil {
		if _, ok := err.(*elf.FormatError); ok {
			return nil, fmt.Errorf("%w: %v", typegraph.ErrFormat, err)
		}
		return nil, err
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", typegraph.ErrFormat, err)
	}

	b := &Backend{
		nodes:     make(map[dwarf.Offset]*node),
		defByName: make(map[string]dwarf.Offset),
	}
	if err := b.load(data); err != nil {
		return nil, err
	}
	return b, nil
}

// load walks every DIE of every compilation unit once, recording parent and
// child relationships and collecting class definition handles in natural
// order.
func (b *Backend) load(data *dwarf.Data) error {
	r := data.Reader()
	var stack []*node
	addrSize := 8

	for {
		e, err := r.Next()
		if err != nil {
			return fmt.Errorf("%w: %v", typegraph.ErrCorruptInput, err)
		}
		if e == nil {
			break
		}
		if e.Tag == 0 {
			// End-of-children marker.
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		if e.Tag == dwarf.TagCompileUnit {
			addrSize = r.AddressSize()
			stack = stack[:0]
		}

		n := &node{entry: e, addrSize: addrSize}
		b.nodes[e.Offset] = n
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, e.Offset)
		}
		if e.Children {
			stack = append(stack, n)
		}

		b.indexClass(e)
	}
	return nil
}

func (b *Backend) indexClass(e *dwarf.Entry) {
	if e.Tag != dwarf.TagClassType && e.Tag != dwarf.TagStructType {
		return
	}
	name, _ := e.Val(dwarf.AttrName).(string)
	if name == "" {
		return
	}
	if e.Val(dwarf.AttrDeclaration) != nil {
		return
	}
	b.classes = append(b.classes, e.Offset)
	if _, dup := b.defByName[name]; !dup {
		b.defByName[name] = e.Offset
	}
}

// VisitClasses enumerates class and structure definitions in DIE order.
func (b *Backend) VisitClasses(fn func(typegraph.ClassHandle) error) error {
	for _, off := range b.classes {
		n := b.nodes[off]
		name, _ := n.entry.Val(dwarf.AttrName).(string)
		err := fn(typegraph.ClassHandle{
			Ref:  typegraph.TypeRef(off),
			Name: name,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Members yields the class's data members in layout order. Members without
// DW_AT_data_member_location are statics.
func (b *Backend) Members(h typegraph.ClassHandle) ([]typegraph.Member, error) {
	n, err := b.node(h.Ref)
	if err != nil {
		return nil, err
	}

	var members []typegraph.Member
	for _, off := range n.children {
		child := b.nodes[off]
		if child.entry.Tag != dwarf.TagMember {
			continue
		}
		e := child.entry

		m := typegraph.Member{}
		m.Name, _ = e.Val(dwarf.AttrName).(string)
		typeOff, ok := e.Val(dwarf.AttrType).(dwarf.Offset)
		if !ok {
			return nil, fmt.Errorf("%w: member %s has no type", typegraph.ErrCorruptInput, m.Name)
		}
		m.Type = typegraph.TypeRef(typeOff)
		m.Artificial, _ = e.Val(dwarf.AttrArtificial).(bool)

		switch loc := e.Val(dwarf.AttrDataMemberLoc).(type) {
		case int64:
			if loc < 0 {
				return nil, fmt.Errorf("%w: member %s at negative offset %d", typegraph.ErrCorruptInput, m.Name, loc)
			}
			m.Offset = uint64(loc)
		case []byte:
			v, err := evalMemberLocation(loc)
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", m.Name, err)
			}
			m.Offset = v
		case nil:
			m.Static = true
		}

		members = append(members, m)
	}
	return members, nil
}

// BaseClasses yields the direct non-virtual base-class references in
// declaration order. Virtual bases are skipped.
func (b *Backend) BaseClasses(h typegraph.ClassHandle) ([]typegraph.TypeRef, error) {
	n, err := b.node(h.Ref)
	if err != nil {
		return nil, err
	}

	var bases []typegraph.TypeRef
	for _, off := range n.children {
		child := b.nodes[off]
		if child.entry.Tag != dwarf.TagInheritance {
			continue
		}
		if v, _ := child.entry.Val(dwarf.AttrVirtuality).(int64); v != 0 {
			continue
		}
		typeOff, ok := child.entry.Val(dwarf.AttrType).(dwarf.Offset)
		if !ok {
			return nil, fmt.Errorf("%w: inheritance entry without type in %s", typegraph.ErrCorruptInput, h.Name)
		}
		bases = append(bases, typegraph.TypeRef(typeOff))
	}
	return bases, nil
}

// VirtualMethods yields every virtual subprogram child with its v-table
// slot, evaluated from the DW_AT_vtable_elem_location expression.
func (b *Backend) VirtualMethods(h typegraph.ClassHandle) ([]typegraph.VirtualMethod, error) {
	n, err := b.node(h.Ref)
	if err != nil {
		return nil, err
	}

	var methods []typegraph.VirtualMethod
	for _, off := range n.children {
		child := b.nodes[off]
		e := child.entry
		if e.Tag != dwarf.TagSubprogram {
			continue
		}
		if v, _ := e.Val(dwarf.AttrVirtuality).(int64); v == 0 {
			continue
		}

		name, _ := e.Val(dwarf.AttrName).(string)

		loc, ok := e.Val(dwarf.AttrVtableElemLoc).([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: virtual method %s has no v-table location", typegraph.ErrUnsupportedRecord, name)
		}
		rawSlot, err := evalVtableSlot(loc)
		if err != nil {
			return nil, fmt.Errorf("virtual method %s: %w", name, err)
		}
		slot, err := safecast.Conv[uint32](rawSlot)
		if err != nil {
			return nil, fmt.Errorf("%w: virtual method %s slot %d: %v", typegraph.ErrCorruptInput, name, rawSlot, err)
		}

		linkName, _ := e.Val(dwarf.AttrLinkageName).(string)
		if linkName == "" {
			linkName, _ = e.Val(attrMIPSLinkageName).(string)
		}

		methods = append(methods, typegraph.VirtualMethod{
			Name:        name,
			LinkName:    linkName,
			Slot:        slot,
			Introducing: true,
		})
	}
	return methods, nil
}

// Lookup decodes the DIE behind ref into the uniform type model.
func (b *Backend) Lookup(ref typegraph.TypeRef) (typegraph.Type, error) {
	if ref == voidRef {
		return typegraph.Type{Kind: typegraph.KindBase, Name: "void"}, nil
	}
	n, err := b.node(ref)
	if err != nil {
		return typegraph.Type{}, err
	}
	e := n.entry

	switch e.Tag {
	case dwarf.TagBaseType:
		t := typegraph.Type{Kind: typegraph.KindBase}
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		enc, _ := e.Val(dwarf.AttrEncoding).(int64)
		t.Encoding = mapEncoding(enc)
		if bits, ok := e.Val(dwarf.AttrBitSize).(int64); ok {
			t.BitSize = int(bits)
		} else if size, ok := e.Val(dwarf.AttrByteSize).(int64); ok {
			t.BitSize = int(size * 8)
		}
		return t, nil

	case dwarf.TagConstType, dwarf.TagVolatileType, dwarf.TagRestrictType:
		t := typegraph.Type{Kind: typegraph.KindModifier}
		switch e.Tag {
		case dwarf.TagConstType:
			t.Mods = typegraph.ModConst
		case dwarf.TagVolatileType:
			t.Mods = typegraph.ModVolatile
		default:
			t.Mods = typegraph.ModRestrict
		}
		t.Elem, t.HasElem = b.typeAttr(e)
		return t, nil

	case dwarf.TagTypedef:
		t := typegraph.Type{Kind: typegraph.KindTypedef}
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		t.Elem, t.HasElem = b.typeAttr(e)
		return t, nil

	case dwarf.TagPointerType, dwarf.TagReferenceType, dwarf.TagRvalueReferenceType, dwarf.TagPtrToMemberType:
		t := typegraph.Type{Kind: typegraph.KindPointer}
		switch e.Tag {
		case dwarf.TagReferenceType:
			t.Ptr = typegraph.PtrReference
		case dwarf.TagRvalueReferenceType:
			t.Ptr = typegraph.PtrRValueReference
		case dwarf.TagPtrToMemberType:
			t.Ptr = typegraph.PtrToMember
		}
		if size, ok := e.Val(dwarf.AttrByteSize).(int64); ok {
			t.PtrWidth = int(size)
		} else {
			t.PtrWidth = n.addrSize
		}
		t.Elem, t.HasElem = b.typeAttr(e)
		return t, nil

	case dwarf.TagArrayType:
		t := typegraph.Type{
			Kind:       typegraph.KindArray,
			ByteSize:   -1,
			UpperBound: -1,
		}
		t.Elem, t.HasElem = b.typeAttr(e)
		for _, child := range n.children {
			sub := b.nodes[child]
			if sub.entry.Tag != dwarf.TagSubrangeType {
				continue
			}
			if ub, ok := sub.entry.Val(dwarf.AttrUpperBound).(int64); ok {
				t.UpperBound = ub
			}
			break
		}
		return t, nil

	case dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType:
		t := typegraph.Type{}
		switch e.Tag {
		case dwarf.TagClassType:
			t.Kind = typegraph.KindClass
		case dwarf.TagStructType:
			t.Kind = typegraph.KindStruct
		default:
			t.Kind = typegraph.KindUnion
		}
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		t.Forward = e.Val(dwarf.AttrDeclaration) != nil
		return t, nil

	case dwarf.TagEnumerationType:
		t := typegraph.Type{Kind: typegraph.KindEnum}
		t.Name, _ = e.Val(dwarf.AttrName).(string)
		// DWARF 4 records the underlying type; older producers only give a
		// byte size.
		if off, ok := e.Val(dwarf.AttrType).(dwarf.Offset); ok {
			t.Elem, t.HasElem = typegraph.TypeRef(off), true
		}
		if size, ok := e.Val(dwarf.AttrByteSize).(int64); ok {
			t.BitSize = int(size * 8)
		}
		return t, nil

	case dwarf.TagSubroutineType, dwarf.TagSubprogram:
		t := typegraph.Type{Kind: typegraph.KindSubroutine}
		t.Elem, t.HasElem = b.typeAttr(e)
		if !t.HasElem {
			t.Elem, t.HasElem = voidRef, true
		}
		for _, child := range n.children {
			p := b.nodes[child]
			if p.entry.Tag != dwarf.TagFormalParameter {
				continue
			}
			if off, ok := p.entry.Val(dwarf.AttrType).(dwarf.Offset); ok {
				t.Params = append(t.Params, typegraph.TypeRef(off))
			}
		}
		return t, nil

	default:
		return typegraph.Type{Name: e.Tag.String()}, nil
	}
}

// ByteSize reports the storage size of the type behind ref.
func (b *Backend) ByteSize(ref typegraph.TypeRef) (int64, error) {
	if ref == voidRef {
		return 0, nil
	}
	n, err := b.node(ref)
	if err != nil {
		return 0, err
	}

	if size, ok := n.entry.Val(dwarf.AttrByteSize).(int64); ok {
		if size < 0 {
			return 0, fmt.Errorf("%w: negative byte size %d at offset %#x", typegraph.ErrCorruptInput, size, uint64(ref))
		}
		return size, nil
	}

	t, err := b.Lookup(ref)
	if err != nil {
		return 0, err
	}
	switch t.Kind {
	case typegraph.KindModifier, typegraph.KindTypedef:
		if !t.HasElem {
			return 0, nil
		}
		return b.ByteSize(t.Elem)
	case typegraph.KindPointer:
		return int64(t.PtrWidth), nil
	case typegraph.KindArray:
		if t.UpperBound < 0 {
			return 0, fmt.Errorf("%w: array at offset %#x has no upper bound", typegraph.ErrCorruptInput, uint64(ref))
		}
		elemSize, err := b.ByteSize(t.Elem)
		if err != nil {
			return 0, err
		}
		return (t.UpperBound + 1) * elemSize, nil
	case typegraph.KindBase:
		return int64(t.BitSize / 8), nil
	default:
		return 0, fmt.Errorf("%w: no byte size for %s DIE at offset %#x", typegraph.ErrUnsupportedRecord, t.Kind, uint64(ref))
	}
}

// ResolveForward maps a declaration-only class/struct DIE to a same-named
// definition, or returns ref unchanged.
func (b *Backend) ResolveForward(ref typegraph.TypeRef) typegraph.TypeRef {
	n, err := b.node(ref)
	if err != nil {
		return ref
	}
	e := n.entry
	if e.Tag != dwarf.TagClassType && e.Tag != dwarf.TagStructType {
		return ref
	}
	if e.Val(dwarf.AttrDeclaration) == nil {
		return ref
	}
	name, _ := e.Val(dwarf.AttrName).(string)
	if def, ok := b.defByName[name]; ok {
		return typegraph.TypeRef(def)
	}
	return ref
}

// IsBuiltin always reports false: DWARF has no reserved builtin handle
// space, primitives are ordinary base-type DIEs.
func (b *Backend) IsBuiltin(typegraph.TypeRef) bool {
	return false
}

func (b *Backend) node(ref typegraph.TypeRef) (*node, error) {
	n, ok := b.nodes[dwarf.Offset(ref)]
	if !ok {
		return nil, fmt.Errorf("%w: DIE offset %#x", typegraph.ErrDanglingRef, uint64(ref))
	}
	return n, nil
}

func (b *Backend) typeAttr(e *dwarf.Entry) (typegraph.TypeRef, bool) {
	if off, ok := e.Val(dwarf.AttrType).(dwarf.Offset); ok {
		return typegraph.TypeRef(off), true
	}
	// A missing DW_AT_type means void.
	return voidRef, true
}

// DWARF base type encodings (DW_ATE_*).
func mapEncoding(enc int64) typegraph.Encoding {
	switch enc {
	case 0x01:
		return typegraph.EncAddress
	case 0x02:
		return typegraph.EncBoolean
	case 0x04:
		return typegraph.EncFloat
	case 0x05:
		return typegraph.EncSigned
	case 0x06:
		return typegraph.EncSignedChar
	case 0x07:
		return typegraph.EncUnsigned
	case 0x08:
		return typegraph.EncUnsignedChar
	case 0x10:
		return typegraph.EncUTF
	case 0x11:
		return typegraph.EncUCS
	case 0x12:
		return typegraph.EncASCII
	default:
		return typegraph.EncNone
	}
}
