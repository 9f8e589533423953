package typegraph

import "fmt"

// maxChainDepth bounds modifier/typedef/pointer/array unwrapping. Well-formed
// debug info never nests this deep; exceeding it means the graph has a cycle.
const maxChainDepth = 64

// StripOptions selects which wrapper layers Strip removes.
type StripOptions struct {
	Modifiers bool
	Typedefs  bool
	Pointers  bool
	Arrays    bool
}

// Strip repeatedly unwraps the selected wrapper layers until the head of the
// chain is none of them, and returns the resulting reference.
func Strip(b Backend, ref TypeRef, opts StripOptions) (TypeRef, error) {
	for depth := 0; ; depth++ {
		if depth >= maxChainDepth {
			return 0, fmt.Errorf("%w: type chain deeper than %d at ref %#x", ErrCorruptInput, maxChainDepth, uint64(ref))
		}

		t, err := b.Lookup(ref)
		if err != nil {
			return 0, err
		}

		switch {
		case opts.Modifiers && t.Kind == KindModifier:
		case opts.Typedefs && t.Kind == KindTypedef:
		case opts.Pointers && t.Kind == KindPointer:
		case opts.Arrays && t.Kind == KindArray:
		default:
			return ref, nil
		}

		if !t.HasElem {
			return ref, nil
		}
		ref = t.Elem
	}
}

// StripModifiers removes modifier and typedef wrappers.
func StripModifiers(b Backend, ref TypeRef) (TypeRef, error) {
	return Strip(b, ref, StripOptions{Modifiers: true, Typedefs: true})
}

// Innermost resolves through every wrapper layer down to the innermost type.
// The runtime-type mapper uses it to find the builtin that decides
// signedness.
func Innermost(b Backend, ref TypeRef) (TypeRef, error) {
	return Strip(b, ref, StripOptions{Modifiers: true, Typedefs: true, Pointers: true, Arrays: true})
}

// ArrayElementCount computes the element count of an array type. The second
// return is false when the head (after stripping modifiers and typedefs) is
// not an array, or when the extent is recorded as unknown.
func ArrayElementCount(b Backend, ref TypeRef) (int64, bool, error) {
	head, err := StripModifiers(b, ref)
	if err != nil {
		return 0, false, err
	}

	t, err := b.Lookup(head)
	if err != nil {
		return 0, false, err
	}
	if t.Kind != KindArray {
		return 0, false, nil
	}

	switch {
	case t.ByteSize == 0 && t.UpperBound < 0:
		// Zero-sized arrays exist in PDBs (flexible trailing members).
		return 0, false, nil

	case t.ByteSize > 0:
		elemSize, err := b.ByteSize(t.Elem)
		if err != nil {
			return 0, false, err
		}
		if elemSize <= 0 {
			return 0, false, fmt.Errorf("%w: array at ref %#x has element size %d", ErrCorruptInput, uint64(head), elemSize)
		}
		return t.ByteSize / elemSize, true, nil

	case t.UpperBound >= 0:
		return t.UpperBound + 1, true, nil

	default:
		return 0, false, fmt.Errorf("%w: array at ref %#x has no extent", ErrCorruptInput, uint64(head))
	}
}
