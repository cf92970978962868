package vm

// Machine geometry, grounded on original_source/src/nanovm.h: a single
// 512-byte RAM buffer shared by program, data and stack, with the stack
// occupying the low 128 bytes and growing downward from 0x7F.
const (
	RAMSize     = 512
	StackBottom = 0x7F
	stackLimit  = 128
)

// State is the complete, inspectable machine state: the register file,
// the two 1-bit flags, the shared RAM buffer, and the stack pointer
// indexing into it. Exported so the debugger (DOMAIN STACK) can read and
// render it directly instead of going through an accessor interface.
type State struct {
	PC  uint16
	MAR uint16
	ACC uint8
	X   uint8
	Y   uint8
	IR  uint8

	Z bool // zero flag
	C bool // carry/borrow flag

	SP  uint16
	RAM [RAMSize]byte

	Halted bool
	Cycles uint64
}

// NewState returns a State with the stack pointer initialized to the
// bottom of the stack region and everything else zeroed, matching the
// register initialization the original's main() performs before load().
func NewState() *State {
	return &State{SP: StackBottom}
}

func (s *State) stackEmpty() bool {
	return s.SP == StackBottom
}
