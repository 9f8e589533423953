// Package pdb implements the PDB debug-info backend: it reads the MSF
// container, the info/DBI/TPI streams, and exposes the CodeView type graph
// through the uniform typegraph contract.
package pdb

import (
	"errors"
	"fmt"
	"io/fs"

	"fortio.org/safecast"

	"github.com/tmp64/amxx-offset-generator/pkg/pdb/codeview"
	"github.com/tmp64/amxx-offset-generator/pkg/pdb/msf"
	"github.com/tmp64/amxx-offset-generator/pkg/pdb/streams"
	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
)

// Fixed stream indices of the core PDB streams.
const (
	StreamPDB = 1 // PDB info stream
	StreamTPI = 2 // Type info stream
	StreamDBI = 3 // Debug info stream
)

// Backend is an opened PDB session.
type Backend struct {
	msf      *msf.MSF
	info     *streams.PDBInfo
	dbi      *streams.DBIStream
	tpi      *streams.TPIStream
	ptrWidth int

	fieldLists map[uint32]*codeview.FieldList
	defByName  map[string]uint32
}

// Open maps a PDB file and parses the streams class extraction needs.
func Open(path string) (*Backend, error) {
	m, err := msf.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", typegraph.ErrFormat, err)
	}

	b := &Backend{
		msf:        m,
		ptrWidth:   4,
		fieldLists: make(map[uint32]*codeview.FieldList),
	}

	if err := b.readStreams(); err != nil {
		m.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) readStreams() error {
	if b.msf.NumStreams() <= StreamDBI {
		return fmt.Errorf("%w: only %d streams present", typegraph.ErrFormat, b.msf.NumStreams())
	}

	infoReader, err := b.msf.StreamReader(StreamPDB)
	if err != nil {
		return fmt.Errorf("%w: %v", typegraph.ErrFormat, err)
	}
	b.info, err = streams.ReadPDBInfo(infoReader)
	if err != nil {
		return fmt.Errorf("%w: %v", typegraph.ErrFormat, err)
	}
	if b.info.UsesFastLink() {
		return fmt.Errorf("%w: PDB was linked with unsupported option /DEBUG:FASTLINK", typegraph.ErrFormat)
	}

	dbiData, err := b.readStream(StreamDBI)
	if err != nil {
		return err
	}
	b.dbi, err = streams.ReadDBIStream(dbiData)
	if err != nil {
		return fmt.Errorf("%w: %v", typegraph.ErrFormat, err)
	}
	b.ptrWidth = b.dbi.PointerWidth()

	tpiData, err := b.readStream(StreamTPI)
	if err != nil {
		return err
	}
	b.tpi, err = streams.ReadTPIStream(tpiData)
	if err != nil {
		return fmt.Errorf("%w: %v", typegraph.ErrFormat, err)
	}

	return nil
}

func (b *Backend) readStream(index int) ([]byte, error) {
	stream, err := b.msf.Stream(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", typegraph.ErrFormat, err)
	}
	if stream.Size() == 0 {
		return nil, fmt.Errorf("%w: stream %d is empty", typegraph.ErrFormat, index)
	}
	data, err := stream.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read stream %d: %v", typegraph.ErrFormat, index, err)
	}
	return data, nil
}

// Close releases the file mapping; all TypeRefs become invalid.
func (b *Backend) Close() error {
	return b.msf.Close()
}

// Info returns the parsed info stream.
func (b *Backend) Info() *streams.PDBInfo {
	return b.info
}

// Machine returns the human-readable target machine name from the DBI
// stream.
func (b *Backend) Machine() string {
	return streams.MachineTypeName(b.dbi.Header.Machine)
}

// VisitClasses enumerates LF_CLASS/LF_STRUCTURE definition records in TPI
// order. Forward references and records without a field list are skipped.
func (b *Backend) VisitClasses(fn func(typegraph.ClassHandle) error) error {
	for i := range b.tpi.TypeRecords {
		rec := &b.tpi.TypeRecords[i]
		if !codeview.IsClassLike(rec.Kind) {
			continue
		}
		cls, err := codeview.ParseClassRecord(rec)
		if err != nil {
			return fmt.Errorf("%w: %v", typegraph.ErrUnsupportedRecord, err)
		}
		if cls.Forward() {
			continue
		}
		if b.tpi.GetType(cls.FieldList) == nil {
			continue
		}
		err = fn(typegraph.ClassHandle{
			Ref:  typegraph.TypeRef(rec.Index),
			Name: cls.Name,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Members yields the class's data members in layout order.
func (b *Backend) Members(h typegraph.ClassHandle) ([]typegraph.Member, error) {
	fl, err := b.fieldList(h.Ref)
	if err != nil {
		return nil, err
	}
	members := make([]typegraph.Member, 0, len(fl.Members))
	for _, m := range fl.Members {
		members = append(members, typegraph.Member{
			Name:   m.Name,
			Offset: m.Offset,
			Type:   typegraph.TypeRef(m.Type),
			Static: m.Static,
		})
	}
	return members, nil
}

// BaseClasses yields the direct non-virtual base references in declaration
// order.
func (b *Backend) BaseClasses(h typegraph.ClassHandle) ([]typegraph.TypeRef, error) {
	fl, err := b.fieldList(h.Ref)
	if err != nil {
		return nil, err
	}
	bases := make([]typegraph.TypeRef, 0, len(fl.Bases))
	for _, idx := range fl.Bases {
		bases = append(bases, typegraph.TypeRef(idx))
	}
	return bases, nil
}

// VirtualMethods yields the introducing virtual methods in declaration
// order, with v-table byte offsets converted to slot indices.
func (b *Backend) VirtualMethods(h typegraph.ClassHandle) ([]typegraph.VirtualMethod, error) {
	fl, err := b.fieldList(h.Ref)
	if err != nil {
		return nil, err
	}
	methods := make([]typegraph.VirtualMethod, 0, len(fl.Methods))
	for _, m := range fl.Methods {
		slot, err := safecast.Conv[uint32](int(m.VTabOffset) / b.ptrWidth)
		if err != nil {
			return nil, fmt.Errorf("%w: v-table offset %d: %v", typegraph.ErrCorruptInput, m.VTabOffset, err)
		}
		methods = append(methods, typegraph.VirtualMethod{
			Name:        m.Name,
			Slot:        slot,
			Introducing: m.Introducing,
		})
	}
	return methods, nil
}

// Lookup decodes the type record behind ref.
func (b *Backend) Lookup(ref typegraph.TypeRef) (typegraph.Type, error) {
	index := uint32(ref)
	if b.IsBuiltin(ref) {
		return lookupBuiltin(index)
	}

	rec := b.tpi.GetType(index)
	if rec == nil {
		return typegraph.Type{}, fmt.Errorf("%w: type index 0x%x", typegraph.ErrDanglingRef, index)
	}

	switch rec.Kind {
	case codeview.LF_MODIFIER:
		mod, err := codeview.ParseModifierRecord(rec)
		if err != nil {
			return typegraph.Type{}, wrapCorrupt(err)
		}
		var mods typegraph.Modifiers
		if mod.Attrs&codeview.ModifierConst != 0 {
			mods |= typegraph.ModConst
		}
		if mod.Attrs&codeview.ModifierVolatile != 0 {
			mods |= typegraph.ModVolatile
		}
		if mod.Attrs&codeview.ModifierUnaligned != 0 {
			mods |= typegraph.ModUnaligned
		}
		return typegraph.Type{
			Kind:    typegraph.KindModifier,
			Mods:    mods,
			Elem:    typegraph.TypeRef(mod.Type),
			HasElem: true,
		}, nil

	case codeview.LF_POINTER:
		ptr, err := codeview.ParsePointerRecord(rec)
		if err != nil {
			return typegraph.Type{}, wrapCorrupt(err)
		}
		t := typegraph.Type{
			Kind:    typegraph.KindPointer,
			Elem:    typegraph.TypeRef(ptr.Underlying),
			HasElem: true,
		}
		switch ptr.PtrMode() {
		case codeview.PtrModeReference:
			t.Ptr = typegraph.PtrReference
		case codeview.PtrModeRValueRef:
			t.Ptr = typegraph.PtrRValueReference
		case codeview.PtrModePMember, codeview.PtrModePMFunc:
			t.Ptr = typegraph.PtrToMember
		}
		if ptr.IsConst() {
			t.Mods |= typegraph.ModConst
		}
		if ptr.IsVolatile() {
			t.Mods |= typegraph.ModVolatile
		}
		if ptr.IsUnaligned() {
			t.Mods |= typegraph.ModUnaligned
		}
		if ptr.IsRestrict() {
			t.Mods |= typegraph.ModRestrict
		}
		if t.PtrWidth = ptr.Width(); t.PtrWidth == 0 {
			t.PtrWidth = b.ptrWidth
		}
		return t, nil

	case codeview.LF_ARRAY:
		arr, err := codeview.ParseArrayRecord(rec)
		if err != nil {
			return typegraph.Type{}, wrapCorrupt(err)
		}
		size, err := safecast.Conv[int64](arr.ByteSize)
		if err != nil {
			return typegraph.Type{}, fmt.Errorf("%w: array byte size %d: %v", typegraph.ErrCorruptInput, arr.ByteSize, err)
		}
		return typegraph.Type{
			Kind:       typegraph.KindArray,
			Elem:       typegraph.TypeRef(arr.ElemType),
			HasElem:    true,
			ByteSize:   size,
			UpperBound: -1,
		}, nil

	case codeview.LF_CLASS, codeview.LF_CLASS2, codeview.LF_STRUCTURE, codeview.LF_STRUCTURE2, codeview.LF_UNION:
		cls, err := codeview.ParseClassRecord(rec)
		if err != nil {
			return typegraph.Type{}, wrapCorrupt(err)
		}
		kind := typegraph.KindStruct
		switch rec.Kind {
		case codeview.LF_CLASS, codeview.LF_CLASS2:
			kind = typegraph.KindClass
		case codeview.LF_UNION:
			kind = typegraph.KindUnion
		}
		return typegraph.Type{
			Kind:    kind,
			Name:    cls.Name,
			Forward: cls.Forward(),
		}, nil

	case codeview.LF_ENUM:
		e, err := codeview.ParseEnumRecord(rec)
		if err != nil {
			return typegraph.Type{}, wrapCorrupt(err)
		}
		return typegraph.Type{
			Kind:    typegraph.KindEnum,
			Name:    e.Name,
			Elem:    typegraph.TypeRef(e.Underlying),
			HasElem: true,
		}, nil

	case codeview.LF_ALIAS:
		a, err := codeview.ParseAliasRecord(rec)
		if err != nil {
			return typegraph.Type{}, wrapCorrupt(err)
		}
		return typegraph.Type{
			Kind:    typegraph.KindTypedef,
			Name:    a.Name,
			Elem:    typegraph.TypeRef(a.Underlying),
			HasElem: true,
		}, nil

	case codeview.LF_BITFIELD:
		bf, err := codeview.ParseBitfieldRecord(rec)
		if err != nil {
			return typegraph.Type{}, wrapCorrupt(err)
		}
		return typegraph.Type{
			Kind:     typegraph.KindBitfield,
			Elem:     typegraph.TypeRef(bf.Type),
			HasElem:  true,
			BitWidth: int(bf.Length),
		}, nil

	case codeview.LF_PROCEDURE, codeview.LF_MFUNCTION:
		proc, err := codeview.ParseProcedureRecord(rec)
		if err != nil {
			return typegraph.Type{}, wrapCorrupt(err)
		}
		t := typegraph.Type{
			Kind:    typegraph.KindSubroutine,
			Elem:    typegraph.TypeRef(proc.ReturnType),
			HasElem: true,
		}
		if argRec := b.tpi.GetType(proc.ArgList); argRec != nil && argRec.Kind == codeview.LF_ARGLIST {
			args, err := codeview.ParseArgList(argRec)
			if err != nil {
				return typegraph.Type{}, wrapCorrupt(err)
			}
			for _, a := range args {
				t.Params = append(t.Params, typegraph.TypeRef(a))
			}
		}
		return t, nil

	default:
		return typegraph.Type{Name: codeview.LeafKindName(rec.Kind)}, nil
	}
}

// ByteSize reports the storage size of the type behind ref.
func (b *Backend) ByteSize(ref typegraph.TypeRef) (int64, error) {
	index := uint32(ref)
	if b.IsBuiltin(ref) {
		return builtinByteSize(index)
	}

	t, err := b.Lookup(ref)
	if err != nil {
		return 0, err
	}

	switch t.Kind {
	case typegraph.KindModifier, typegraph.KindTypedef, typegraph.KindEnum:
		return b.ByteSize(t.Elem)
	case typegraph.KindPointer:
		return int64(t.PtrWidth), nil
	case typegraph.KindArray:
		return t.ByteSize, nil
	case typegraph.KindClass, typegraph.KindStruct, typegraph.KindUnion:
		rec := b.tpi.GetType(uint32(b.ResolveForward(ref)))
		if rec == nil {
			return 0, fmt.Errorf("%w: type index 0x%x", typegraph.ErrDanglingRef, index)
		}
		cls, err := codeview.ParseClassRecord(rec)
		if err != nil {
			return 0, wrapCorrupt(err)
		}
		size, err := safecast.Conv[int64](cls.Size)
		if err != nil {
			return 0, fmt.Errorf("%w: class size %d: %v", typegraph.ErrCorruptInput, cls.Size, err)
		}
		return size, nil
	default:
		return 0, fmt.Errorf("%w: no byte size for %s record 0x%x", typegraph.ErrUnsupportedRecord, t.Kind, index)
	}
}

// ResolveForward maps a forward-declared class/structure to the same-named
// definition record elsewhere in the stream, or returns ref unchanged.
func (b *Backend) ResolveForward(ref typegraph.TypeRef) typegraph.TypeRef {
	rec := b.tpi.GetType(uint32(ref))
	if rec == nil || !codeview.IsClassLike(rec.Kind) {
		return ref
	}
	cls, err := codeview.ParseClassRecord(rec)
	if err != nil || !cls.Forward() {
		return ref
	}

	if b.defByName == nil {
		b.defByName = make(map[string]uint32)
		for i := range b.tpi.TypeRecords {
			r := &b.tpi.TypeRecords[i]
			if !codeview.IsClassLike(r.Kind) {
				continue
			}
			c, err := codeview.ParseClassRecord(r)
			if err != nil || c.Forward() || c.Name == "" {
				continue
			}
			if _, dup := b.defByName[c.Name]; !dup {
				b.defByName[c.Name] = r.Index
			}
		}
	}

	if def, ok := b.defByName[cls.Name]; ok {
		return typegraph.TypeRef(def)
	}
	return ref
}

// IsBuiltin reports whether ref lies below the first user-defined type
// index.
func (b *Backend) IsBuiltin(ref typegraph.TypeRef) bool {
	return uint32(ref) < b.tpi.FirstTypeIndex()
}

func (b *Backend) fieldList(ref typegraph.TypeRef) (*codeview.FieldList, error) {
	index := uint32(ref)
	if fl, ok := b.fieldLists[index]; ok {
		return fl, nil
	}

	rec := b.tpi.GetType(index)
	if rec == nil {
		return nil, fmt.Errorf("%w: type index 0x%x", typegraph.ErrDanglingRef, index)
	}
	cls, err := codeview.ParseClassRecord(rec)
	if err != nil {
		return nil, wrapCorrupt(err)
	}

	fieldRec := b.tpi.GetType(cls.FieldList)
	if fieldRec == nil {
		return nil, fmt.Errorf("%w: field list 0x%x of %s", typegraph.ErrDanglingRef, cls.FieldList, cls.Name)
	}
	if fieldRec.Kind != codeview.LF_FIELDLIST {
		return nil, fmt.Errorf("%w: record 0x%x is %s, not a field list", typegraph.ErrUnsupportedRecord, cls.FieldList, codeview.LeafKindName(fieldRec.Kind))
	}

	fl, err := codeview.ParseFieldList(fieldRec, b.tpi.GetType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", typegraph.ErrUnsupportedRecord, err)
	}
	b.fieldLists[index] = fl
	return fl, nil
}

func wrapCorrupt(err error) error {
	return fmt.Errorf("%w: %v", typegraph.ErrCorruptInput, err)
}
