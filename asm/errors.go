package asm

import "errors"

// Sentinel errors, one per failure class, so callers can errors.Is
// against the class of failure rather than matching message text.
var (
	ErrSyntax             = errors.New("nanoasm: syntax error")
	ErrMissingOrg         = errors.New("nanoasm: missing ORG directive at start of source")
	ErrUnknownMnemonic    = errors.New("nanoasm: unknown mnemonic")
	ErrMnemonicTooLong    = errors.New("nanoasm: mnemonic too long")
	ErrOperandMissing     = errors.New("nanoasm: expected a number")
	ErrOperandTooLarge    = errors.New("nanoasm: operand out of range")
	ErrUnsupportedMode    = errors.New("nanoasm: addressing mode not valid for this mnemonic")
	ErrExpectedCloseParen = errors.New("nanoasm: expected closing ')'")
)
