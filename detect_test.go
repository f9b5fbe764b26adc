package appimg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	data := make([]byte, 256)
	copy(data[32:], "hsqs\x00\x00rest of superblock")
	copy(data[128:], "DWARFS metadata")
	r := bytes.NewReader(data)

	format, err := Detect(r, 32)
	require.NoError(t, err)
	assert.Equal(t, FormatSquashFS, format)

	format, err = Detect(r, 128)
	require.NoError(t, err)
	assert.Equal(t, FormatDwarFS, format)

	_, err = Detect(r, 0)
	assert.ErrorIs(t, err, ErrNoFilesystem)
}

func TestDetectDeterministic(t *testing.T) {
	t.Parallel()

	data := make([]byte, 64)
	copy(data[8:], "hsqs")
	r := bytes.NewReader(data)

	for range 10 {
		format, err := Detect(r, 8)
		require.NoError(t, err)
		assert.Equal(t, FormatSquashFS, format)
	}
}

func TestDetectShortRead(t *testing.T) {
	t.Parallel()

	// Fewer than six bytes available at the offset.
	r := bytes.NewReader([]byte("hsqs"))
	_, err := Detect(r, 0)
	assert.ErrorIs(t, err, ErrNoFilesystem)

	_, err = Detect(r, 1000)
	assert.ErrorIs(t, err, ErrNoFilesystem)
}

func TestDetectRequiresFullDwarfsMagic(t *testing.T) {
	t.Parallel()

	// Five of six magic bytes is not DwarFS.
	r := bytes.NewReader([]byte("DWARF_ and more"))
	_, err := Detect(r, 0)
	assert.ErrorIs(t, err, ErrNoFilesystem)
}
