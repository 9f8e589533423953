package typegraph

import (
	"fmt"
	"strings"
)

// Spell renders the canonical C spelling of the type behind ref with the
// given declarator attached, following C declarator syntax: wrappers fold
// into the declarator on the way down, and the named leaf is prepended once
// the chain bottoms out.
func Spell(b Backend, ref TypeRef, declarator string) (string, error) {
	return spell(b, ref, declarator, 0)
}

func spell(b Backend, ref TypeRef, declarator string, depth int) (string, error) {
	if depth >= maxChainDepth {
		return "", fmt.Errorf("%w: type chain deeper than %d at ref %#x", ErrCorruptInput, maxChainDepth, uint64(ref))
	}

	t, err := b.Lookup(ref)
	if err != nil {
		return "", err
	}

	switch t.Kind {
	case KindModifier:
		return spell(b, t.Elem, t.Mods.spell()+declarator, depth+1)

	case KindPointer:
		switch t.Ptr {
		case PtrReference:
			declarator = "&" + t.Mods.spell() + declarator
		case PtrRValueReference:
			declarator = "&&" + t.Mods.spell() + declarator
		case PtrToMember:
			declarator = "__member_func *" + t.Mods.spell() + declarator
		default:
			declarator = "*" + t.Mods.spell() + declarator
		}
		return spell(b, t.Elem, declarator, depth+1)

	case KindArray:
		count, known, err := ArrayElementCount(b, ref)
		if err != nil {
			return "", err
		}
		if known {
			declarator = fmt.Sprintf("%s[%d]", declarator, count)
		} else {
			declarator += "[]"
		}
		return spell(b, t.Elem, declarator, depth+1)

	case KindSubroutine:
		ret, err := spell(b, t.Elem, "", depth+1)
		if err != nil {
			return "", err
		}
		params := make([]string, 0, len(t.Params))
		for _, p := range t.Params {
			ps, err := spell(b, p, "", depth+1)
			if err != nil {
				return "", err
			}
			params = append(params, ps)
		}
		return fmt.Sprintf("%s (%s)(%s)", ret, declarator, strings.Join(params, ", ")), nil

	case KindBase, KindClass, KindStruct, KindUnion, KindEnum, KindTypedef:
		return leaf(t.Name, declarator), nil

	default:
		// Exotic records spell but never crash the emitter; the runtime-type
		// mapper decides whether the member is acceptable.
		name := t.Name
		if name == "" {
			name = t.Kind.String()
		}
		return leaf("unk_"+name, declarator), nil
	}
}

func leaf(name, declarator string) string {
	if declarator == "" {
		return name
	}
	return name + " " + declarator
}

func (m Modifiers) spell() string {
	var sb strings.Builder
	if m&ModConst != 0 {
		sb.WriteString("const ")
	}
	if m&ModVolatile != 0 {
		sb.WriteString("volatile ")
	}
	if m&ModRestrict != 0 {
		sb.WriteString("restrict ")
	}
	if m&ModUnaligned != 0 {
		sb.WriteString("unaligned ")
	}
	return sb.String()
}
