package asm

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/RDMachinery/nanovm/image"
	"github.com/RDMachinery/nanovm/vm"
)

const maxMnemonicLen = 80

// Options controls behavior left ambiguous by the original tool.
type Options struct {
	// CompatBinaryLiteral selects the natural base-2 reading of a '%'
	// literal. When false (the default) the assembler reproduces the
	// original's bug: the digits are read as a decimal number and then
	// that number's decimal digits are reinterpreted positionally as
	// bits, from least significant.
	CompatBinaryLiteral bool
}

// Assembler drives the one-pass grammar described in
// original_source/src/nanoasm.c's header comment:
//
//	assemble ::= org <number> <statement>* EOF
//	statement ::= <newline> | <comment> | <code> [<comment>] <newline>
//	code ::= <mnemonic> [<address_mode>] [<operand>] | mnemonic (<operand>)
//
// encoding each instruction the moment it is recognized — there is no
// symbol table and no backpatching.
type Assembler struct {
	lex      *lexer
	opts     Options
	out      bytes.Buffer
	Warnings []string
}

// Assemble compiles one source buffer into an Image.
func Assemble(src []byte, opts Options) (image.Image, []string, error) {
	a := &Assembler{lex: newLexer(src), opts: opts}

	origin, err := a.parseOrg()
	if err != nil {
		return image.Image{}, a.Warnings, err
	}

	if err := a.assembleBody(); err != nil {
		return image.Image{}, a.Warnings, err
	}

	return image.Image{Origin: origin, Program: a.out.Bytes()}, a.Warnings, nil
}

func (a *Assembler) assembleBody() error {
	l := a.lex
	l.skipWS()
	// The rest of the ORG line (a trailing comment, or nothing) is
	// discarded the same way the original's assemble() does right after
	// org(), before entering the statement loop.
	l.skipToLineEnd()
	l.skipWS()

	for l.look != eof {
		if l.look == '\n' || l.look == '\r' {
			if err := l.expectNewline(); err != nil {
				return err
			}
			continue
		}
		if err := a.statement(); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) statement() error {
	l := a.lex
	l.skipWS()
	switch {
	case l.look == ';':
		l.skipToLineEnd()
		return nil
	case isAlpha(l.look):
		return a.code()
	case l.look == '\n' || l.look == '\r' || l.look == eof:
		return nil
	default:
		return l.syntaxErrorf("unexpected %s at start of statement", describeRune(l.look))
	}
}

// parseOrg consumes the mandatory leading "ORG <number>" header and
// returns the load origin. A warning (not a fatal error) is recorded
// when the origin falls in the system-reserved low page, matching
// org()'s behavior in the original.
func (a *Assembler) parseOrg() (uint16, error) {
	l := a.lex
	l.skipWS()
	mnemonic, err := a.readMnemonic()
	if err != nil {
		return 0, err
	}
	if mnemonic != "ORG" {
		return 0, fmt.Errorf("%w: found %q instead", ErrMissingOrg, mnemonic)
	}
	value, err := a.readNumber()
	if err != nil {
		return 0, err
	}
	if value > 0xFFFF {
		return 0, fmt.Errorf("%w: ORG %d", ErrOperandTooLarge, value)
	}
	if value <= 0xFF {
		a.Warnings = append(a.Warnings, "program originates in an area of memory used by the system (addresses 0x00-0xFF are reserved)")
	}
	return uint16(value), nil
}

// code assembles one "<mnemonic> [<address_mode>] [<operand>]"
// statement and immediately writes its encoding to the output buffer.
func (a *Assembler) code() error {
	l := a.lex
	name, err := a.readMnemonic()
	if err != nil {
		return err
	}

	forms, ok := vm.Forms[name]
	if !ok {
		return fmt.Errorf("%w: %q (line %d)", ErrUnknownMnemonic, name, l.line)
	}

	prefix := a.readAddrPrefix()
	form, err := selectForm(name, forms, prefix)
	if err != nil {
		return err
	}

	a.out.WriteByte(byte(form.Opcode))

	switch form.OperandWidth {
	case 0:
		// no operand
	case 1:
		value, err := a.readNumber()
		if err != nil {
			return err
		}
		if value > 0xFF {
			return fmt.Errorf("%w: %s immediate operand %d (line %d)", ErrOperandTooLarge, name, value, l.line)
		}
		a.out.WriteByte(byte(value))
	case 2:
		value, err := a.readNumber()
		if err != nil {
			return err
		}
		if value > 0xFFFF {
			return fmt.Errorf("%w: %s operand %d (line %d)", ErrOperandTooLarge, name, value, l.line)
		}
		a.out.WriteByte(byte(value >> 8))
		a.out.WriteByte(byte(value))
		if prefix == vm.PrefixIndirect {
			l.skipWS()
			if l.look != ')' {
				return fmt.Errorf("%w, found %s (line %d)", ErrExpectedCloseParen, describeRune(l.look), l.line)
			}
			l.advance()
		}
	}

	l.skipWS()
	l.skipToLineEnd()
	return nil
}

// selectForm picks the Form matching the addressing-mode prefix actually
// written in source, or reports that the mnemonic does not support it.
func selectForm(name string, forms []vm.Form, prefix vm.AddrPrefix) (vm.Form, error) {
	for _, f := range forms {
		if f.Prefix == prefix {
			return f, nil
		}
	}
	return vm.Form{}, fmt.Errorf("%w: %s does not accept %s addressing", ErrUnsupportedMode, name, prefixName(prefix))
}

func prefixName(p vm.AddrPrefix) string {
	switch p {
	case vm.PrefixImmidiat:
		return "immediate ('#')"
	case vm.PrefixIndirect:
		return "indirect ('(...)')"
	default:
		return "absolute"
	}
}

func (a *Assembler) readAddrPrefix() vm.AddrPrefix {
	l := a.lex
	l.skipWS()
	switch l.look {
	case '#':
		l.advance()
		return vm.PrefixImmidiat
	case '(':
		l.advance()
		return vm.PrefixIndirect
	default:
		return vm.PrefixNone
	}
}

// readMnemonic reads a run of alphabetic characters (up to
// maxMnemonicLen, matching the original's 80-byte buffer) and upper-cases
// it for case-insensitive matching.
func (a *Assembler) readMnemonic() (string, error) {
	l := a.lex
	var sb strings.Builder
	for isAlpha(l.look) {
		sb.WriteByte(byte(l.look))
		l.advance()
		if sb.Len() >= maxMnemonicLen {
			return "", fmt.Errorf("%w (line %d)", ErrMnemonicTooLong, l.line)
		}
	}
	return strings.ToUpper(sb.String()), nil
}

// readNumber reads a '$' hex, '%' binary or bare decimal literal,
// grounded on _operand() in the original assembler.
func (a *Assembler) readNumber() (int, error) {
	l := a.lex
	l.skipWS()

	const (
		baseDec = iota
		baseHex
		baseBin
	)
	base := baseDec
	switch l.look {
	case '$':
		base = baseHex
		l.advance()
	case '%':
		base = baseBin
		l.advance()
	}

	var sb strings.Builder
	for isDigit(l.look) || isAlpha(l.look) {
		sb.WriteByte(byte(l.look))
		l.advance()
	}
	if sb.Len() == 0 {
		return 0, fmt.Errorf("%w after instruction mnemonic, found %s (line %d)", ErrOperandMissing, describeRune(l.look), l.line)
	}
	digits := sb.String()

	var value int
	switch base {
	case baseHex:
		n, err := strconv.ParseUint(digits, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid hex literal $%s (line %d)", ErrSyntax, digits, l.line)
		}
		value = int(n)
	case baseBin:
		if a.opts.CompatBinaryLiteral {
			n, err := strconv.ParseUint(digits, 2, 32)
			if err != nil {
				return 0, fmt.Errorf("%w: invalid binary literal %%%s (line %d)", ErrSyntax, digits, l.line)
			}
			value = int(n)
		} else {
			value = bugCompatBinaryToDecimal(digits)
		}
	default:
		n, err := strconv.Atoi(digits)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid decimal literal %s (line %d)", ErrSyntax, digits, l.line)
		}
		value = n
	}

	if value > 65535 || value < 0 {
		return 0, fmt.Errorf("%w: %d (line %d); must lie in 0..65535", ErrOperandTooLarge, value, l.line)
	}
	return value, nil
}

// bugCompatBinaryToDecimal reproduces bin_to_decimal() from
// original_source/src/nanoasm.c: it reads the digit run as a decimal
// number, then reinterprets that number's own decimal digits
// positionally as bits (least significant digit = bit 0). For a literal
// made only of '0'/'1' this happens to equal the natural binary value;
// for any other digit it reproduces the original's nonsense result
// rather than rejecting it.
func bugCompatBinaryToDecimal(digits string) int {
	n, _ := strconv.Atoi(digits)
	dec := 0
	for i := 0; n != 0; i++ {
		rem := n % 10
		n /= 10
		dec += rem * (1 << uint(i))
	}
	return dec
}
