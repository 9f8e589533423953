package typegraph

import "errors"

// Error taxonomy shared by both backends and the resolution passes. Callers
// classify with errors.Is; messages carry the specifics via fmt.Errorf
// wrapping.
var (
	// ErrFormat is a malformed container: bad signature, unsupported
	// version, FASTLINK PDB, invalid super-block.
	ErrFormat = errors.New("malformed debug-info container")

	// ErrDanglingRef is a TypeRef that points to no record.
	ErrDanglingRef = errors.New("dangling type reference")

	// ErrUnsupportedRecord is a record kind encountered where no rule
	// exists, or a v-table location expression that is not a single
	// DW_OP_constu.
	ErrUnsupportedRecord = errors.New("unsupported record")

	// ErrCorruptInput is a modifier/typedef cycle, a missing or negative
	// array extent, or a negative byte size.
	ErrCorruptInput = errors.New("corrupt debug info")
)
