// Package graphtest provides an in-memory type-graph backend for testing
// the resolution passes and the extractor without a real debug-info file.
package graphtest

import (
	"fmt"

	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
)

// Graph is a hand-assembled type graph implementing typegraph.Backend.
type Graph struct {
	next     typegraph.TypeRef
	types    map[typegraph.TypeRef]typegraph.Type
	sizes    map[typegraph.TypeRef]int64
	builtins map[typegraph.TypeRef]bool

	classes  []typegraph.ClassHandle
	members  map[typegraph.TypeRef][]typegraph.Member
	bases    map[typegraph.TypeRef][]typegraph.TypeRef
	methods  map[typegraph.TypeRef][]typegraph.VirtualMethod
	forwards map[typegraph.TypeRef]typegraph.TypeRef
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		next:     0x1000,
		types:    make(map[typegraph.TypeRef]typegraph.Type),
		sizes:    make(map[typegraph.TypeRef]int64),
		builtins: make(map[typegraph.TypeRef]bool),
		members:  make(map[typegraph.TypeRef][]typegraph.Member),
		bases:    make(map[typegraph.TypeRef][]typegraph.TypeRef),
		methods:  make(map[typegraph.TypeRef][]typegraph.VirtualMethod),
		forwards: make(map[typegraph.TypeRef]typegraph.TypeRef),
	}
}

// Add registers a type record and returns its reference.
func (g *Graph) Add(t typegraph.Type) typegraph.TypeRef {
	ref := g.next
	g.next++
	g.types[ref] = t
	return ref
}

// AddBase registers a builtin base type.
func (g *Graph) AddBase(name string, enc typegraph.Encoding, bits int) typegraph.TypeRef {
	ref := g.Add(typegraph.Type{
		Kind:     typegraph.KindBase,
		Name:     name,
		Encoding: enc,
		BitSize:  bits,
	})
	g.builtins[ref] = true
	return ref
}

// AddPointer registers a raw pointer to pointee.
func (g *Graph) AddPointer(pointee typegraph.TypeRef, width int) typegraph.TypeRef {
	return g.Add(typegraph.Type{
		Kind:     typegraph.KindPointer,
		Elem:     pointee,
		HasElem:  true,
		PtrWidth: width,
	})
}

// AddClass registers a class record and its enumeration handle.
func (g *Graph) AddClass(name string) typegraph.ClassHandle {
	ref := g.Add(typegraph.Type{Kind: typegraph.KindClass, Name: name})
	h := typegraph.ClassHandle{Ref: ref, Name: name}
	g.classes = append(g.classes, h)
	return h
}

// AddStruct registers a struct record without an enumeration handle.
func (g *Graph) AddStruct(name string, forward bool) typegraph.TypeRef {
	return g.Add(typegraph.Type{Kind: typegraph.KindStruct, Name: name, Forward: forward})
}

// SetMembers sets the member list of a class.
func (g *Graph) SetMembers(h typegraph.ClassHandle, members ...typegraph.Member) {
	g.members[h.Ref] = members
}

// SetBases sets the base-class list of a class.
func (g *Graph) SetBases(h typegraph.ClassHandle, bases ...typegraph.TypeRef) {
	g.bases[h.Ref] = bases
}

// SetMethods sets the virtual-method list of a class.
func (g *Graph) SetMethods(h typegraph.ClassHandle, methods ...typegraph.VirtualMethod) {
	g.methods[h.Ref] = methods
}

// SetSize overrides the byte size reported for ref.
func (g *Graph) SetSize(ref typegraph.TypeRef, size int64) {
	g.sizes[ref] = size
}

// SetForward maps a forward record to its definition.
func (g *Graph) SetForward(fwd, def typegraph.TypeRef) {
	g.forwards[fwd] = def
}

// Patch replaces an already-registered record, for wiring cycles.
func (g *Graph) Patch(ref typegraph.TypeRef, t typegraph.Type) {
	g.types[ref] = t
}

// VisitClasses implements typegraph.Backend.
func (g *Graph) VisitClasses(fn func(typegraph.ClassHandle) error) error {
	for _, h := range g.classes {
		if err := fn(h); err != nil {
			return err
		}
	}
	return nil
}

// Members implements typegraph.Backend.
func (g *Graph) Members(h typegraph.ClassHandle) ([]typegraph.Member, error) {
	return g.members[h.Ref], nil
}

// BaseClasses implements typegraph.Backend.
func (g *Graph) BaseClasses(h typegraph.ClassHandle) ([]typegraph.TypeRef, error) {
	return g.bases[h.Ref], nil
}

// VirtualMethods implements typegraph.Backend.
func (g *Graph) VirtualMethods(h typegraph.ClassHandle) ([]typegraph.VirtualMethod, error) {
	return g.methods[h.Ref], nil
}

// Lookup implements typegraph.Backend.
func (g *Graph) Lookup(ref typegraph.TypeRef) (typegraph.Type, error) {
	t, ok := g.types[ref]
	if !ok {
		return typegraph.Type{}, fmt.Errorf("%w: ref %#x", typegraph.ErrDanglingRef, uint64(ref))
	}
	return t, nil
}

// ByteSize implements typegraph.Backend.
func (g *Graph) ByteSize(ref typegraph.TypeRef) (int64, error) {
	if size, ok := g.sizes[ref]; ok {
		return size, nil
	}
	t, err := g.Lookup(ref)
	if err != nil {
		return 0, err
	}
	switch t.Kind {
	case typegraph.KindBase:
		return int64(t.BitSize / 8), nil
	case typegraph.KindPointer:
		return int64(t.PtrWidth), nil
	case typegraph.KindArray:
		return t.ByteSize, nil
	case typegraph.KindModifier, typegraph.KindTypedef:
		return g.ByteSize(t.Elem)
	default:
		return 0, fmt.Errorf("%w: no byte size for ref %#x", typegraph.ErrUnsupportedRecord, uint64(ref))
	}
}

// ResolveForward implements typegraph.Backend.
func (g *Graph) ResolveForward(ref typegraph.TypeRef) typegraph.TypeRef {
	if def, ok := g.forwards[ref]; ok {
		return def
	}
	return ref
}

// IsBuiltin implements typegraph.Backend.
func (g *Graph) IsBuiltin(ref typegraph.TypeRef) bool {
	return g.builtins[ref]
}
