package dwarfinfo

import (
	"fmt"

	"github.com/tmp64/amxx-offset-generator/pkg/typegraph"
)

// DWARF expression opcodes understood by this backend.
const (
	opPlusUconst = 0x23
	opConstu     = 0x10
)

// evalVtableSlot evaluates a DW_AT_vtable_elem_location expression. The
// only accepted form is a single DW_OP_constu whose operand is the slot
// index.
func evalVtableSlot(expr []byte) (uint64, error) {
	if len(expr) == 0 || expr[0] != opConstu {
		return 0, fmt.Errorf("%w: v-table location expression is not DW_OP_constu", typegraph.ErrUnsupportedRecord)
	}
	value, n := uleb128(expr[1:])
	if n == 0 || 1+n != len(expr) {
		return 0, fmt.Errorf("%w: malformed v-table location expression", typegraph.ErrUnsupportedRecord)
	}
	return value, nil
}

// evalMemberLocation evaluates a DW_AT_data_member_location expression in
// its pre-DWARF4 block form: DW_OP_plus_uconst with the byte offset as
// operand.
func evalMemberLocation(expr []byte) (uint64, error) {
	if len(expr) == 0 || expr[0] != opPlusUconst {
		return 0, fmt.Errorf("%w: member location expression is not DW_OP_plus_uconst", typegraph.ErrUnsupportedRecord)
	}
	value, n := uleb128(expr[1:])
	if n == 0 || 1+n != len(expr) {
		return 0, fmt.Errorf("%w: malformed member location expression", typegraph.ErrUnsupportedRecord)
	}
	return value, nil
}

// uleb128 decodes an unsigned LEB128 value and returns it with the number
// of bytes consumed; zero consumed means the input was truncated.
func uleb128(data []byte) (uint64, int) {
	var value uint64
	var shift uint
	for i, b := range data {
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1
		}
		shift += 7
		if shift >= 64 {
			break
		}
	}
	return 0, 0
}
