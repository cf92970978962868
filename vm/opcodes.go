package vm

import "fmt"

// Opcode is the one-byte instruction tag stored in an image's program
// bytes. Values are fixed by the wire format and must never be
// renumbered — §6.2 of the format spec.
type Opcode byte

const (
	LdaImm Opcode = 0
	LdaAbs Opcode = 1
	Sta    Opcode = 2
	AddImm Opcode = 3
	AddAbs Opcode = 4
	SubImm Opcode = 5
	SubAbs Opcode = 6
	MulImm Opcode = 7
	MulAbs Opcode = 8
	DivImm Opcode = 9
	DivAbs Opcode = 10
	Jmp    Opcode = 11
	Jeq    Opcode = 12
	Jne    Opcode = 13
	Halt   Opcode = 14
	In     Opcode = 15
	Out    Opcode = 16
	Jsr    Opcode = 17
	Rts    Opcode = 18
	CmpImm Opcode = 19
	CmpAbs Opcode = 20
	JmpInd Opcode = 21
	Pusha  Opcode = 22
	Popa   Opcode = 23
	Shl    Opcode = 24
	Shr    Opcode = 25
	Inc    Opcode = 26
	Dec    Opcode = 27
	Nop    Opcode = 28
	LdxImm Opcode = 29
	LdxAbs Opcode = 30
	LdyImm Opcode = 31
	LdyAbs Opcode = 32
	Stx    Opcode = 33
	Sty    Opcode = 34
	CpxImm Opcode = 35
	CpxAbs Opcode = 36
	CpyImm Opcode = 37
	CpyAbs Opcode = 38
	Tax    Opcode = 39
	Tay    Opcode = 40
	Txa    Opcode = 41
	Tya    Opcode = 42
	Inx    Opcode = 43
	Iny    Opcode = 44
	Dex    Opcode = 45
	Dey    Opcode = 46
	Neg    Opcode = 47
	Dup    Opcode = 48
	Swap   Opcode = 49
	AndImm Opcode = 50
	AndAbs Opcode = 51
	OrImm  Opcode = 52
	OrAbs  Opcode = 53
	XorImm Opcode = 54
	XorAbs Opcode = 55
	Not    Opcode = 56
	Clc    Opcode = 57
	Sec    Opcode = 58
	Jcs    Opcode = 59
	Jcc    Opcode = 60
)

// AddrPrefix is the syntactic addressing-mode tag a mnemonic's operand
// can be written with: none (absolute, bare 16-bit operand), '#'
// (immediate, 8-bit), or '(' (indirect, 16-bit, JMP only).
type AddrPrefix byte

const (
	PrefixNone     AddrPrefix = 0
	PrefixImmidiat AddrPrefix = '#'
	PrefixIndirect AddrPrefix = '('
)

// Form is one (addressing mode, opcode, operand width) variant that a
// mnemonic can assemble to. OperandWidth is the number of operand bytes
// that follow the opcode byte on disk: 0, 1 (imm8) or 2 (abs16/ind16,
// always high-byte-first).
type Form struct {
	Prefix       AddrPrefix
	Opcode       Opcode
	OperandWidth int
}

// OpcodeInfo is the VM's decoding-side view of an instruction: the name
// used in disassembly/trace output and how many operand bytes to fetch.
type OpcodeInfo struct {
	Mnemonic     string
	OperandWidth int
}

// Forms is the single source of truth mapping each assembler mnemonic to
// the addressing-mode variants it admits. The VM's decode table (below)
// is derived from it, so the assembler's encoding and the VM's decoding
// can never drift apart.
var Forms = map[string][]Form{
	"LDA":   {{PrefixNone, LdaAbs, 2}, {PrefixImmidiat, LdaImm, 1}},
	"STA":   {{PrefixNone, Sta, 2}},
	"ADD":   {{PrefixNone, AddAbs, 2}, {PrefixImmidiat, AddImm, 1}},
	"SUB":   {{PrefixNone, SubAbs, 2}, {PrefixImmidiat, SubImm, 1}},
	"MUL":   {{PrefixNone, MulAbs, 2}, {PrefixImmidiat, MulImm, 1}},
	"DIV":   {{PrefixNone, DivAbs, 2}, {PrefixImmidiat, DivImm, 1}},
	"JMP":   {{PrefixNone, Jmp, 2}, {PrefixIndirect, JmpInd, 2}},
	"JEQ":   {{PrefixNone, Jeq, 2}},
	"JNE":   {{PrefixNone, Jne, 2}},
	"HALT":  {{PrefixNone, Halt, 0}},
	"IN":    {{PrefixNone, In, 0}},
	"OUT":   {{PrefixNone, Out, 0}},
	"JSR":   {{PrefixNone, Jsr, 2}},
	"RTS":   {{PrefixNone, Rts, 0}},
	"CMP":   {{PrefixNone, CmpAbs, 2}, {PrefixImmidiat, CmpImm, 1}},
	"PUSHA": {{PrefixNone, Pusha, 0}},
	"POPA":  {{PrefixNone, Popa, 0}},
	"SHL":   {{PrefixNone, Shl, 0}},
	"SHR":   {{PrefixNone, Shr, 0}},
	"INC":   {{PrefixNone, Inc, 0}},
	"DEC":   {{PrefixNone, Dec, 0}},
	"NOP":   {{PrefixNone, Nop, 0}},
	"LDX":   {{PrefixNone, LdxAbs, 2}, {PrefixImmidiat, LdxImm, 1}},
	"LDY":   {{PrefixNone, LdyAbs, 2}, {PrefixImmidiat, LdyImm, 1}},
	"STX":   {{PrefixNone, Stx, 2}},
	"STY":   {{PrefixNone, Sty, 2}},
	"CPX":   {{PrefixNone, CpxAbs, 2}, {PrefixImmidiat, CpxImm, 1}},
	"CPY":   {{PrefixNone, CpyAbs, 2}, {PrefixImmidiat, CpyImm, 1}},
	"TAX":   {{PrefixNone, Tax, 0}},
	"TAY":   {{PrefixNone, Tay, 0}},
	"TXA":   {{PrefixNone, Txa, 0}},
	"TYA":   {{PrefixNone, Tya, 0}},
	"INX":   {{PrefixNone, Inx, 0}},
	"INY":   {{PrefixNone, Iny, 0}},
	"DEX":   {{PrefixNone, Dex, 0}},
	"DEY":   {{PrefixNone, Dey, 0}},
	"NEG":   {{PrefixNone, Neg, 0}},
	"DUP":   {{PrefixNone, Dup, 0}},
	"SWAP":  {{PrefixNone, Swap, 0}},
	"AND":   {{PrefixNone, AndAbs, 2}, {PrefixImmidiat, AndImm, 1}},
	"OR":    {{PrefixNone, OrAbs, 2}, {PrefixImmidiat, OrImm, 1}},
	"XOR":   {{PrefixNone, XorAbs, 2}, {PrefixImmidiat, XorImm, 1}},
	"NOT":   {{PrefixNone, Not, 0}},
	"CLC":   {{PrefixNone, Clc, 0}},
	"SEC":   {{PrefixNone, Sec, 0}},
	// Redesigned per spec §9: JCS/JCC carry a trailing abs16 operand like
	// the other conditional jumps, instead of the original's bare,
	// unusable opcode byte.
	"JCS": {{PrefixNone, Jcs, 2}},
	"JCC": {{PrefixNone, Jcc, 2}},
}

// decodeTable maps opcode byte -> decoding info, derived once from Forms
// so the VM's dispatch table can never disagree with the assembler's
// encoding table.
var decodeTable map[Opcode]OpcodeInfo

func init() {
	decodeTable = make(map[Opcode]OpcodeInfo, 64)
	for mnemonic, forms := range Forms {
		for _, f := range forms {
			if existing, ok := decodeTable[f.Opcode]; ok {
				panic(fmt.Sprintf("opcode %d claimed by both %s and %s", f.Opcode, existing.Mnemonic, mnemonic))
			}
			decodeTable[f.Opcode] = OpcodeInfo{Mnemonic: mnemonic, OperandWidth: f.OperandWidth}
		}
	}
}

// Decode returns the decoding info for an opcode byte, and false if the
// byte does not name a known instruction.
func Decode(op Opcode) (OpcodeInfo, bool) {
	info, ok := decodeTable[op]
	return info, ok
}

func (op Opcode) String() string {
	if info, ok := decodeTable[op]; ok {
		return info.Mnemonic
	}
	return fmt.Sprintf("?unknown(0x%02X)?", byte(op))
}
