package extract

import (
	"fmt"
	"sort"

	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
)

// Extractor composes the normaliser, speller, and runtime-type mapper into
// ClassDefinitions for every allow-listed class the backend yields.
type Extractor struct {
	Backend typegraph.Backend
	Mapper  *typegraph.Mapper
	Classes ClassList

	// Logf receives progress output. The driver owns it; nil disables.
	Logf func(format string, args ...any)

	processed map[string]struct{}
}

// Run performs one streaming pass over the backend's class enumeration and
// returns the assembled document. A single failing member aborts the run.
func (e *Extractor) Run() (*Document, error) {
	doc := NewDocument()
	e.processed = make(map[string]struct{})

	err := e.Backend.VisitClasses(func(h typegraph.ClassHandle) error {
		if h.Forward {
			return nil
		}
		if !e.Classes.Contains(h.Name) {
			return nil
		}
		if _, done := e.processed[h.Name]; done {
			return nil
		}
		e.processed[h.Name] = struct{}{}

		cls, err := e.extractClass(h)
		if err != nil {
			return fmt.Errorf("class %s: %w", h.Name, err)
		}
		doc.Classes[h.Name] = cls
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (e *Extractor) extractClass(h typegraph.ClassHandle) (*Class, error) {
	e.logf("struct %s\n{", h.Name)

	cls := &Class{
		Fields: []Field{},
		VTable: []VTableEntry{},
	}

	base, err := e.baseClassName(h)
	if err != nil {
		return nil, err
	}
	cls.BaseClass = base
	if base != nil {
		e.logf("  base: %s", *base)
	}

	members, err := e.Backend.Members(h)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.Static || m.Artificial {
			continue
		}
		f, err := e.extractField(m)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Name, err)
		}
		cls.Fields = append(cls.Fields, f)
		e.logf("  [0x%X] %s", f.Offset, f.Type)
	}

	vtable, err := e.extractVTable(h)
	if err != nil {
		return nil, err
	}
	cls.VTable = vtable

	e.logf("}")
	return cls, nil
}

// baseClassName resolves the first direct base-class reference to its
// definition record and takes its name.
func (e *Extractor) baseClassName(h typegraph.ClassHandle) (*string, error) {
	bases, err := e.Backend.BaseClasses(h)
	if err != nil {
		return nil, err
	}
	if len(bases) == 0 {
		return nil, nil
	}

	ref := e.Backend.ResolveForward(bases[0])
	t, err := e.Backend.Lookup(ref)
	if err != nil {
		return nil, err
	}
	if t.Name == "" {
		return nil, nil
	}
	name := t.Name
	return &name, nil
}

func (e *Extractor) extractField(m typegraph.Member) (Field, error) {
	spelling, err := typegraph.Spell(e.Backend, m.Type, m.Name)
	if err != nil {
		return Field{}, err
	}

	tag, unsigned, err := e.Mapper.Map(e.Backend, m.Type)
	if err != nil {
		return Field{}, err
	}

	// Engine string handles compiled down to plain int are recovered by
	// member name on the PDB side, where the string_t typedef is gone.
	if tag == typegraph.TagInteger && e.Mapper.MatchesInternName(m.Name) {
		tag = typegraph.TagStringInt
		spelling = "string_t " + m.Name
		unsigned = nil
	}

	var arraySize *int64
	count, known, err := typegraph.ArrayElementCount(e.Backend, m.Type)
	if err != nil {
		return Field{}, err
	}
	if known {
		n := count
		arraySize = &n
	}

	return Field{
		Name:      m.Name,
		Offset:    m.Offset,
		ArraySize: arraySize,
		Type:      spelling,
		AmxxType:  string(tag),
		Unsigned:  unsigned,
	}, nil
}

// extractVTable keeps the introducing method of every slot, in ascending
// slot order. Backends that report overrides alongside introductions are
// collapsed here: the first method seen per slot wins.
func (e *Extractor) extractVTable(h typegraph.ClassHandle) ([]VTableEntry, error) {
	methods, err := e.Backend.VirtualMethods(h)
	if err != nil {
		return nil, err
	}

	entries := []VTableEntry{}
	seen := make(map[uint32]struct{})
	for _, vm := range methods {
		if !vm.Introducing {
			continue
		}
		if _, dup := seen[vm.Slot]; dup {
			continue
		}
		seen[vm.Slot] = struct{}{}

		entry := VTableEntry{Name: vm.Name, Index: vm.Slot}
		if vm.LinkName != "" {
			ln := vm.LinkName
			entry.LinkName = &ln
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries, nil
}

func (e *Extractor) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}
