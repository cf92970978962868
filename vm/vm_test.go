package vm

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RDMachinery/nanovm/image"
)

func newVM(t *testing.T, origin uint16, program []byte, stdin string) (*VM, *bytes.Buffer) {
	t.Helper()
	state, err := Load(image.Image{Origin: origin, Program: program})
	require.NoError(t, err)
	var out bytes.Buffer
	m := New(state, NewPorts(strings.NewReader(stdin), &out))
	return m, &out
}

func TestRunHelloNumber(t *testing.T) {
	program := []byte{
		byte(LdaImm), 42,
		byte(Out),
		byte(Halt),
	}
	m, out := newVM(t, 0x0200, program, "")
	require.NoError(t, m.Run())
	assert.Equal(t, "42\n", out.String())
	assert.True(t, m.State.Halted)
	assert.Equal(t, uint64(3), m.State.Cycles)
	assert.GreaterOrEqual(t, m.Elapsed, time.Duration(0))
}

func TestRunEchoesInputThroughAcc(t *testing.T) {
	program := []byte{
		byte(In),
		byte(Out),
		byte(Halt),
	}
	m, out := newVM(t, 0x0200, program, "7\n")
	require.NoError(t, m.Run())
	assert.Equal(t, "7\n", out.String())
}

func TestAddSetsCarryOnOverflow(t *testing.T) {
	program := []byte{
		byte(LdaImm), 0xFF,
		byte(AddImm), 0x02,
		byte(Out),
		byte(Halt),
	}
	m, out := newVM(t, 0x0200, program, "")
	require.NoError(t, m.Run())
	assert.Equal(t, "1\n", out.String())
	assert.True(t, m.State.C)
}

func TestSubBorrowClearsCarry(t *testing.T) {
	program := []byte{
		byte(Sec), // no incoming borrow
		byte(LdaImm), 0x01,
		byte(SubImm), 0x02,
		byte(Halt),
	}
	m, _ := newVM(t, 0x0200, program, "")
	require.NoError(t, m.Run())
	assert.Equal(t, uint8(0xFF), m.State.ACC)
	assert.False(t, m.State.C)
}

func TestJumpOnZeroAfterCompare(t *testing.T) {
	// CMP #5 sets Z; JEQ should be taken.
	program := []byte{
		byte(LdaImm), 5,
		byte(CmpImm), 5,
		byte(Jeq), 0x02, 0x09, // jump to the OUT at offset 9 (origin+9)
		byte(LdaImm), 0xAA, // skipped
		byte(Out),
		byte(Halt),
	}
	m, out := newVM(t, 0x0200, program, "")
	require.NoError(t, m.Run())
	assert.Equal(t, "5\n", out.String())
}

func TestJcsTakesBranchWhenCarrySet(t *testing.T) {
	program := []byte{
		byte(Sec),
		byte(Jcs), 0x01, 0x07,
		byte(LdaImm), 0xAA, // skipped
		byte(Out),          // skipped
		byte(LdaImm), 9,
		byte(Out),
		byte(Halt),
	}
	m, out := newVM(t, 0x0100, program, "")
	require.NoError(t, m.Run())
	assert.Equal(t, "9\n", out.String())
}

func TestShlIsSelfContainedAndDoesNotFallThroughToShr(t *testing.T) {
	program := []byte{
		byte(LdaImm), 0x81, // 1000_0001
		byte(Shl),
		byte(Out),
		byte(Halt),
	}
	m, out := newVM(t, 0x0200, program, "")
	require.NoError(t, m.Run())
	// 0x81 << 1 = 0x02 (wraps mod 256); if SHL fell through into SHR the
	// value would be shifted back down and this would read 1 instead.
	assert.Equal(t, "2\n", out.String())
	assert.True(t, m.State.C) // bit 7 of 0x81 was set
}

func TestJsrRtsRoundTripsFullReturnAddress(t *testing.T) {
	// Subroutine at an address whose low byte exceeds 0x0F, to catch the
	// original's 4-bit return-address mask bug if it ever crept back in.
	program := []byte{
		byte(Jsr), 0x02, 0x20, // call subroutine at 0x0220
		byte(Out), // executed after RTS
		byte(Halt),
	}
	sub := []byte{
		byte(LdaImm), 3,
		byte(Rts),
	}
	full := make([]byte, 0x20+len(sub))
	copy(full, program)
	copy(full[0x20:], sub)

	m, out := newVM(t, 0x0200, full, "")
	require.NoError(t, m.Run())
	assert.Equal(t, "3\n", out.String())
}

func TestIndirectJumpDereferencesPointer(t *testing.T) {
	program := []byte{
		byte(JmpInd), 0x02, 0x10, // indirect through 0x0210
	}
	// At 0x0210 store the real target 0x0220, then the target program.
	full := make([]byte, 0x20+3)
	copy(full, program)
	full[0x10] = 0x02
	full[0x11] = 0x20
	full[0x20] = byte(LdaImm)
	full[0x21] = 77
	full[0x22] = byte(Halt)

	m, _ := newVM(t, 0x0200, full, "")
	require.NoError(t, m.Run())
	assert.Equal(t, uint8(77), m.State.ACC)
}

func TestStackDisciplinePushSwapPop(t *testing.T) {
	program := []byte{
		byte(LdaImm), 1,
		byte(Pusha),
		byte(LdaImm), 2,
		byte(Pusha),
		byte(Swap),
		byte(Popa), // acc = 1 (was pushed first, now on top after swap)
		byte(Out),
		byte(Popa), // acc = 2
		byte(Out),
		byte(Halt),
	}
	m, out := newVM(t, 0x0200, program, "")
	require.NoError(t, m.Run())
	assert.Equal(t, "1\n2\n", out.String())
}

func TestStackOverflow(t *testing.T) {
	program := make([]byte, 0, 2*(stackLimit+1))
	for i := 0; i < stackLimit+1; i++ {
		program = append(program, byte(Pusha))
	}
	program = append(program, byte(Halt))
	m, _ := newVM(t, 0x0200, program, "")
	err := m.Run()
	assert.ErrorIs(t, err, ErrStackOverflow)
}

func TestStackUnderflow(t *testing.T) {
	program := []byte{byte(Popa), byte(Halt)}
	m, _ := newVM(t, 0x0200, program, "")
	err := m.Run()
	assert.ErrorIs(t, err, ErrStackUnderflow)
}

func TestDivideByZeroIsFatal(t *testing.T) {
	program := []byte{
		byte(LdaImm), 10,
		byte(DivImm), 0,
		byte(Halt),
	}
	m, _ := newVM(t, 0x0200, program, "")
	err := m.Run()
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestUnknownOpcodeIsFatal(t *testing.T) {
	program := []byte{0xFE}
	m, _ := newVM(t, 0x0200, program, "")
	err := m.Run()
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestLoadRejectsImageLargerThanRAM(t *testing.T) {
	_, err := Load(image.Image{Origin: 0x01F0, Program: make([]byte, 64)})
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestTransferInstructionsDoNotAllTouchZeroFlag(t *testing.T) {
	program := []byte{
		byte(LdaImm), 5,
		byte(Tax), // TAX does not touch Z per the original
		byte(LdaImm), 0,
		byte(Txa), // TXA does touch Z
		byte(Halt),
	}
	m, _ := newVM(t, 0x0200, program, "")
	require.NoError(t, m.Run())
	assert.Equal(t, uint8(5), m.State.X)
	// LDA #0 set Z; TXA then copied X=5 into ACC and cleared it.
	assert.False(t, m.State.Z)
}

func TestCountdownLoop(t *testing.T) {
	// X = 3; loop: OUT X-as-ACC via TXA; DEX; CPX 0; JNE loop; HALT
	program := []byte{
		byte(LdxImm), 3,
		byte(Txa), // 2
		byte(Out), // 3
		byte(Dex), // 4
		byte(CpxImm), 0, // 5,6
		byte(Jne), 0x02, 0x02, // 7,8,9 -> back to Txa at offset 2
		byte(Halt),
	}
	m, out := newVM(t, 0x0200, program, "")
	require.NoError(t, m.Run())
	assert.Equal(t, "3\n2\n1\n", out.String())
}
