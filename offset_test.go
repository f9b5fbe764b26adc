package appimg

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildELF64 assembles a minimal little-endian ELF64 with a null
// section plus one PROGBITS section of sectionSize bytes placed right
// after the section header table.
func buildELF64(t *testing.T, sectionSize int) []byte {
	t.Helper()

	const (
		headerSize = 64
		shentsize  = 64
		shnum      = 2
		shoff      = headerSize
		dataOff    = shoff + shnum*shentsize
	)

	buf := make([]byte, dataOff+sectionSize)
	le := binary.LittleEndian

	copy(buf, "\x7fELF")
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT
	le.PutUint16(buf[16:], 2)          // e_type: ET_EXEC
	le.PutUint16(buf[18:], 62)         // e_machine: EM_X86_64
	le.PutUint32(buf[20:], 1)          // e_version
	le.PutUint64(buf[40:], shoff)      // e_shoff
	le.PutUint16(buf[52:], headerSize) // e_ehsize
	le.PutUint16(buf[58:], shentsize)  // e_shentsize
	le.PutUint16(buf[60:], shnum)      // e_shnum
	le.PutUint16(buf[62:], 0)          // e_shstrndx

	// Section 0 stays all-zero (SHT_NULL). Section 1:
	sh := buf[shoff+shentsize:]
	le.PutUint32(sh[4:], 1)                    // sh_type: SHT_PROGBITS
	le.PutUint64(sh[24:], dataOff)             // sh_offset
	le.PutUint64(sh[32:], uint64(sectionSize)) // sh_size
	le.PutUint64(sh[48:], 1)                   // sh_addralign

	return buf
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.AppImage")
	require.NoError(t, os.WriteFile(path, data, 0o755))
	return path
}

func TestElfOffsetLastSectionWins(t *testing.T) {
	t.Parallel()

	// Section data extends past the section header table, so the
	// furthest section end is the boundary.
	elf := buildELF64(t, 100)
	path := writeTemp(t, elf)

	off, err := ElfOffset(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(elf)), off)
}

func TestElfOffsetTableEndWins(t *testing.T) {
	t.Parallel()

	// With an empty section the header table itself ends last.
	elf := buildELF64(t, 0)
	path := writeTemp(t, elf)

	off, err := ElfOffset(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(64+2*64), off)
}

func TestElfOffsetAgreesWithScan(t *testing.T) {
	t.Parallel()

	// Structural offset and brute-force magic scan must agree when both
	// apply.
	elf := buildELF64(t, 333)
	host := append(elf, append([]byte("hsqs"), make([]byte, 64)...)...)
	path := writeTemp(t, host)

	structural, err := ElfOffset(path)
	require.NoError(t, err)

	scanned, err := ScanOffset(bytes.NewReader(host), MagicSquashFS)
	require.NoError(t, err)

	assert.Equal(t, structural, scanned)
	assert.Equal(t, uint64(len(elf)), structural)
}

func TestElfOffsetRejectsNonELF(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, []byte("definitely not an executable"))
	_, err := ElfOffset(path)
	assert.Error(t, err)
}

func TestElfOffsetRejectsTruncatedHeader(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, []byte("\x7fELF\x02\x01\x01"))
	_, err := ElfOffset(path)
	assert.Error(t, err)
}

func TestScanOffset(t *testing.T) {
	t.Parallel()

	t.Run("finds magic mid-stream", func(t *testing.T) {
		t.Parallel()
		data := append(make([]byte, 1234), []byte("DWARFS rest")...)
		off, err := ScanOffset(bytes.NewReader(data), MagicDwarFS)
		require.NoError(t, err)
		assert.Equal(t, uint64(1234), off)
	})

	t.Run("finds magic straddling a chunk boundary", func(t *testing.T) {
		t.Parallel()
		data := make([]byte, scanChunkSize+100)
		copy(data[scanChunkSize-2:], "DWARFS")
		off, err := ScanOffset(bytes.NewReader(data), MagicDwarFS)
		require.NoError(t, err)
		assert.Equal(t, uint64(scanChunkSize-2), off)
	})

	t.Run("finds magic at offset zero", func(t *testing.T) {
		t.Parallel()
		off, err := ScanOffset(bytes.NewReader([]byte("hsqs....")), MagicSquashFS)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), off)
	})

	t.Run("reports absence", func(t *testing.T) {
		t.Parallel()
		_, err := ScanOffset(bytes.NewReader(make([]byte, 100_000)), MagicSquashFS)
		assert.ErrorIs(t, err, ErrNoFilesystem)
	})
}
