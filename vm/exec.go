package vm

import (
	"errors"
	"fmt"
	"time"
)

// VM couples a machine State with the host I/O it is wired to. It is the
// fetch-decode-execute engine described in spec.md §4.5, grounded on the
// main loop of original_source/src/nanovm.c — generalized from that
// file's single global `while(run)` loop into a Step/Run pair so a
// debugger can drive execution one instruction at a time.
type VM struct {
	State *State
	Ports Ports

	// Elapsed is the wall-clock time the most recent Run call spent
	// stepping, matching spec.md §4.5's per-HALT elapsed-time report.
	Elapsed time.Duration
}

// New couples an already-loaded State with its I/O ports.
func New(s *State, ports Ports) *VM {
	return &VM{State: s, Ports: ports}
}

// Step fetches, decodes and executes exactly one instruction. It returns
// ErrHalted after executing HALT (and on any call once halted), or
// another sentinel error on any fatal condition. Run is built on top
// of Step so the debugger can reuse the exact same entry point.
func (m *VM) Step() error {
	s := m.State
	if s.Halted {
		return ErrHalted
	}
	s.Cycles++

	s.MAR = s.PC
	ir, err := m.readMem(s.MAR)
	if err != nil {
		return err
	}
	s.IR = ir
	s.PC++

	op := Opcode(ir)
	switch op {
	case LdaImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.ACC = v
		m.setZ(s.ACC)
	case LdaAbs:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		v, err := m.readMem(addr)
		if err != nil {
			return err
		}
		s.ACC = v
		m.setZ(s.ACC)
	case Sta:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		return m.writeMem(addr, s.ACC)

	case LdxImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.X = v
		m.setZ(s.X)
	case LdxAbs:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		v, err := m.readMem(addr)
		if err != nil {
			return err
		}
		s.X = v
		m.setZ(s.X)
	case Stx:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		return m.writeMem(addr, s.X)

	case LdyImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.Y = v
		m.setZ(s.Y)
	case LdyAbs:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		v, err := m.readMem(addr)
		if err != nil {
			return err
		}
		s.Y = v
		m.setZ(s.Y)
	case Sty:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		return m.writeMem(addr, s.Y)

	case AddImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		m.addWithCarry(v)
	case AddAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		m.addWithCarry(v)
	case SubImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		m.subWithCarry(v)
	case SubAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		m.subWithCarry(v)
	case MulImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		m.mul(v)
	case MulAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		m.mul(v)
	case DivImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		return m.div(v)
	case DivAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		return m.div(v)

	case Jmp:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		s.PC = addr
	case JmpInd:
		ptr, err := m.fetch16()
		if err != nil {
			return err
		}
		addr, err := m.read16(ptr)
		if err != nil {
			return err
		}
		s.PC = addr
	case Jeq:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		if s.Z {
			s.PC = addr
		}
	case Jne:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		if !s.Z {
			s.PC = addr
		}
	case Jcs:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		if s.C {
			s.PC = addr
		}
	case Jcc:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		if !s.C {
			s.PC = addr
		}

	case Halt:
		s.Halted = true
		return ErrHalted
	case In:
		v, err := m.Ports.readDecimal()
		if err != nil {
			return err
		}
		s.ACC = v
	case Out:
		return m.Ports.writeDecimal(s.ACC)

	case Jsr:
		addr, err := m.fetch16()
		if err != nil {
			return err
		}
		if err := m.push(byte(s.PC >> 8)); err != nil {
			return err
		}
		if err := m.push(byte(s.PC)); err != nil {
			return err
		}
		s.PC = addr
	case Rts:
		lo, err := m.pop()
		if err != nil {
			return err
		}
		hi, err := m.pop()
		if err != nil {
			return err
		}
		s.PC = uint16(hi)<<8 | uint16(lo)

	case CmpImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.Z = s.ACC == v
	case CmpAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		s.Z = s.ACC == v
	case CpxImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.Z = s.X == v
	case CpxAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		s.Z = s.X == v
	case CpyImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.Z = s.Y == v
	case CpyAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		s.Z = s.Y == v

	case Pusha:
		return m.push(s.ACC)
	case Popa:
		v, err := m.pop()
		if err != nil {
			return err
		}
		s.ACC = v
		m.setZ(s.ACC)
	case Dup:
		if !s.stackEmpty() {
			v, err := m.peek()
			if err != nil {
				return err
			}
			if err := m.push(v); err != nil {
				return err
			}
		}
	case Swap:
		a, err := m.pop()
		if err != nil {
			return err
		}
		b, err := m.pop()
		if err != nil {
			return err
		}
		if err := m.push(a); err != nil {
			return err
		}
		if err := m.push(b); err != nil {
			return err
		}

	case Shl:
		s.C = s.ACC&0x80 != 0
		s.ACC <<= 1
		m.setZ(s.ACC)
	case Shr:
		s.C = s.ACC&0x01 != 0
		s.ACC >>= 1
		m.setZ(s.ACC)

	case Inc:
		old := s.ACC
		s.ACC = old + 1
		s.C = old == 0xFF
		m.setZ(s.ACC)
	case Dec:
		old := s.ACC
		s.ACC = old - 1
		s.C = old == 0x00
		m.setZ(s.ACC)
	case Inx:
		s.X++
		m.setZ(s.X)
	case Iny:
		s.Y++
		m.setZ(s.Y)
	case Dex:
		s.X--
		m.setZ(s.X)
	case Dey:
		s.Y--
		m.setZ(s.Y)

	case Neg:
		s.ACC = ^s.ACC + 1
	case Not:
		s.ACC = ^s.ACC
		m.setZ(s.ACC)

	case AndImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.ACC &= v
		m.setZ(s.ACC)
	case AndAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		s.ACC &= v
		m.setZ(s.ACC)
	case OrImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.ACC |= v
		m.setZ(s.ACC)
	case OrAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		s.ACC |= v
		m.setZ(s.ACC)
	case XorImm:
		v, err := m.fetch8()
		if err != nil {
			return err
		}
		s.ACC ^= v
		m.setZ(s.ACC)
	case XorAbs:
		v, err := m.fetchMem()
		if err != nil {
			return err
		}
		s.ACC ^= v
		m.setZ(s.ACC)

	case Tax:
		s.X = s.ACC
	case Tay:
		s.Y = s.ACC
	case Txa:
		s.ACC = s.X
		m.setZ(s.ACC)
	case Tya:
		s.ACC = s.Y
		m.setZ(s.ACC)

	case Clc:
		s.C = false
	case Sec:
		s.C = true
	case Nop:
		// no-op

	default:
		return fmt.Errorf("%w: 0x%02X at address 0x%04X", ErrUnknownOpcode, ir, s.MAR)
	}

	return nil
}

// Run steps the machine until HALT or a fatal error. A clean HALT is not
// reported to the caller as an error. Elapsed is recorded on every exit
// path so a caller that reports cycles/elapsed only on success still
// sees a sane value for State.Cycles on a fatal error.
func (m *VM) Run() error {
	start := time.Now()
	defer func() { m.Elapsed = time.Since(start) }()

	for {
		err := m.Step()
		if err == nil {
			continue
		}
		if errors.Is(err, ErrHalted) {
			return nil
		}
		return err
	}
}

func (m *VM) setZ(v uint8) {
	m.State.Z = v == 0
}

// addWithCarry implements ADD's two's-complement-with-carry addition:
// the carry-in from a previous add/subtract feeds into the next one, and
// the carry-out reflects the 9th bit of the 8-bit sum.
func (m *VM) addWithCarry(operand uint8) {
	s := m.State
	carryIn := 0
	if s.C {
		carryIn = 1
	}
	sum := int(s.ACC) + int(operand) + carryIn
	s.ACC = uint8(sum)
	s.C = sum > 0xFF
	m.setZ(s.ACC)
}

// subWithCarry implements SUB via the one's-complement-plus-carry borrow
// trick: add the operand's one's complement plus the incoming carry: no
// carry-out means a borrow occurred.
func (m *VM) subWithCarry(operand uint8) {
	s := m.State
	carryIn := 0
	if s.C {
		carryIn = 1
	}
	sum := int(s.ACC) + int(^operand) + carryIn
	s.ACC = uint8(sum)
	s.C = sum > 0xFF
	m.setZ(s.ACC)
}

func (m *VM) mul(operand uint8) {
	s := m.State
	product := int(s.ACC) * int(operand)
	s.ACC = uint8(product)
	s.C = product > 0xFF
	m.setZ(s.ACC)
}

func (m *VM) div(operand uint8) error {
	if operand == 0 {
		return fmt.Errorf("%w: at address 0x%04X", ErrDivideByZero, m.State.MAR)
	}
	s := m.State
	s.ACC /= operand
	m.setZ(s.ACC)
	return nil
}
