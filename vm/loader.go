package vm

import (
	"fmt"

	"github.com/RDMachinery/nanovm/image"
)

// Load copies an Image's program bytes into a fresh State's RAM at the
// image's origin and prepares the machine to begin execution, grounded
// on load() in original_source/src/nanovm.c: zero RAM, copy the program
// at org_address, set PC to the origin, reset the stack pointer to the
// bottom of the stack region.
//
// Unlike the original's unchecked array copy, an image that does not fit
// in the fixed RAM buffer is rejected with ErrImageTooLarge rather than
// silently corrupting adjacent memory.
func Load(img image.Image) (*State, error) {
	end := int(img.Origin) + len(img.Program)
	if end > RAMSize {
		return nil, fmt.Errorf("%w: origin 0x%04X + %d bytes > %d-byte RAM", ErrImageTooLarge, img.Origin, len(img.Program), RAMSize)
	}

	s := NewState()
	copy(s.RAM[img.Origin:], img.Program)
	s.PC = img.Origin
	return s, nil
}
