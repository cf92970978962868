// Package image defines the binary object format shared between nanoasm
// and nanovm: a 2-byte magic, a 2-byte load origin, and the program
// bytes themselves. Both fields are written little-endian on disk.
package image

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic identifies a nanovm object file. On disk it is written as the
// two bytes 0x0D 0xD0 (little-endian).
const Magic uint16 = 0xD00D

const headerBytes = 4

var (
	// ErrBadMagic means the input did not start with the nanovm magic number.
	ErrBadMagic = errors.New("nanovm: not an object file (bad magic number)")
	// ErrTruncated means the input was shorter than a valid header.
	ErrTruncated = errors.New("nanovm: truncated object file")
)

// Image is an assembled program: the address it was built to run from,
// plus the raw bytes that should be copied into RAM starting there.
type Image struct {
	Origin  uint16
	Program []byte
}

// Encode serializes an Image to its on-disk representation.
func Encode(img Image) []byte {
	buf := make([]byte, headerBytes+len(img.Program))
	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	binary.LittleEndian.PutUint16(buf[2:4], img.Origin)
	copy(buf[headerBytes:], img.Program)
	return buf
}

// Decode parses the on-disk representation of an Image.
func Decode(raw []byte) (Image, error) {
	if len(raw) < headerBytes {
		return Image{}, ErrTruncated
	}

	magic := binary.LittleEndian.Uint16(raw[0:2])
	if magic != Magic {
		return Image{}, fmt.Errorf("%w: got 0x%04X", ErrBadMagic, magic)
	}

	origin := binary.LittleEndian.Uint16(raw[2:4])
	program := make([]byte, len(raw)-headerBytes)
	copy(program, raw[headerBytes:])

	return Image{Origin: origin, Program: program}, nil
}
