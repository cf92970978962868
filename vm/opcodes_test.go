package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeTableDerivedFromForms(t *testing.T) {
	info, ok := Decode(LdaImm)
	assert.True(t, ok)
	assert.Equal(t, "LDA", info.Mnemonic)
	assert.Equal(t, 1, info.OperandWidth)

	info, ok = Decode(JmpInd)
	assert.True(t, ok)
	assert.Equal(t, "JMP", info.Mnemonic)
	assert.Equal(t, 2, info.OperandWidth)

	_, ok = Decode(Opcode(0xFE))
	assert.False(t, ok)
}

func TestEveryFormOpcodeIsUnique(t *testing.T) {
	seen := map[Opcode]string{}
	for mnemonic, forms := range Forms {
		for _, f := range forms {
			if existing, dup := seen[f.Opcode]; dup {
				t.Fatalf("opcode %d used by both %s and %s", f.Opcode, existing, mnemonic)
			}
			seen[f.Opcode] = mnemonic
		}
	}
	assert.Len(t, seen, 61)
}

func TestOpcodeStringUsesMnemonic(t *testing.T) {
	assert.Equal(t, "HALT", Halt.String())
}
