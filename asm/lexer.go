package asm

import (
	"fmt"
)

const eof = -1

// lexer is a single-character-lookahead scanner over an assembly source
// buffer, grounded on original_source/src/nanoasm.c's la()/skipWS()
// single-pass reader — generalized here into a struct instead of package
// globals so an Assembler can be reused across sources.
type lexer struct {
	src  []byte
	pos  int
	look int
	line int
}

func newLexer(src []byte) *lexer {
	l := &lexer{src: src, line: 1}
	l.advance()
	return l
}

// advance reads the next lookahead character, tracking line numbers.
func (l *lexer) advance() {
	if l.pos >= len(l.src) {
		l.look = eof
		return
	}
	l.look = int(l.src[l.pos])
	l.pos++
	if l.look == '\n' {
		l.line++
	}
}

func (l *lexer) skipWS() {
	for l.look == ' ' || l.look == '\t' {
		l.advance()
	}
}

// skipToLineEnd discards everything up to (but not including) the next
// newline or EOF. Used both for ';' comments and for the "rest of line"
// after a statement has been fully parsed.
func (l *lexer) skipToLineEnd() {
	for l.look != '\n' && l.look != eof {
		l.advance()
	}
}

// expectNewline consumes an optional '\r' then requires and consumes a
// '\n', or EOF at the very end of the source.
func (l *lexer) expectNewline() error {
	if l.look == '\r' {
		l.advance()
	}
	if l.look == eof {
		return nil
	}
	if l.look != '\n' {
		return l.syntaxErrorf("expected newline, found %s", describeRune(l.look))
	}
	l.advance()
	return nil
}

func isAlpha(c int) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c int) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c int) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func describeRune(c int) string {
	if c == eof {
		return "end of file"
	}
	return fmt.Sprintf("'%c'", rune(c))
}

func (l *lexer) syntaxErrorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, l.line, msg)
}
