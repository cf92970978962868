package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := Image{Origin: 0x0200, Program: []byte{0x00, 0x2A, 0x10, 0x0E}}

	raw := Encode(img)
	assert.Equal(t, []byte{0x0D, 0xD0, 0x00, 0x02, 0x00, 0x2A, 0x10, 0x0E}, raw)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := Decode([]byte{0xAB, 0xCD, 0x00, 0x02})
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{0x0D})
	assert.ErrorIs(t, err, ErrTruncated)
}
