package appimg

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Magic byte sequences identifying the supported image formats.
var (
	MagicSquashFS = []byte("hsqs")
	MagicDwarFS   = []byte("DWARFS")
)

// ElfOffset returns the byte offset at which the embedded filesystem
// image begins inside the ELF executable at path.
//
// The appended image starts immediately after the true end of the ELF
// structural metadata. That end is not reliably the last section in
// declaration order, so both the end of the section header table and the
// furthest section end are computed and the larger is returned.
func ElfOffset(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var ident [16]byte
	if _, err := io.ReadFull(f, ident[:]); err != nil {
		return 0, fmt.Errorf("appimg: read elf ident: %w", err)
	}
	if !bytes.Equal(ident[:4], []byte(elf.ELFMAG)) {
		return 0, fmt.Errorf("appimg: not an ELF file: %s", path)
	}

	var order binary.ByteOrder
	switch elf.Data(ident[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		return 0, fmt.Errorf("appimg: unknown ELF byte order %d", ident[elf.EI_DATA])
	}

	shoff, shentsize, shnum, err := sectionTableGeometry(f, ident, order)
	if err != nil {
		return 0, err
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		return 0, fmt.Errorf("appimg: parse elf sections: %w", err)
	}
	defer ef.Close()

	// e_shnum is zero when the section count exceeds 0xff00; the real
	// count lives in section 0 and debug/elf already decodes it.
	if shnum == 0 && shoff != 0 {
		shnum = uint64(len(ef.Sections))
	}

	tableEnd := shoff + shnum*shentsize

	var lastSectionEnd uint64
	for _, s := range ef.Sections {
		if end := s.Offset + s.FileSize; end > lastSectionEnd {
			lastSectionEnd = end
		}
	}

	return max(tableEnd, lastSectionEnd), nil
}

// sectionTableGeometry reads e_shoff, e_shentsize, and e_shnum from the
// fixed-size ELF header following the ident bytes.
func sectionTableGeometry(r io.ReaderAt, ident [16]byte, order binary.ByteOrder) (shoff, shentsize, shnum uint64, err error) {
	switch elf.Class(ident[elf.EI_CLASS]) {
	case elf.ELFCLASS64:
		var hdr [64]byte
		if _, err := r.ReadAt(hdr[:], 0); err != nil {
			return 0, 0, 0, fmt.Errorf("appimg: read elf header: %w", err)
		}
		shoff = order.Uint64(hdr[0x28:])
		shentsize = uint64(order.Uint16(hdr[0x3a:]))
		shnum = uint64(order.Uint16(hdr[0x3c:]))
	case elf.ELFCLASS32:
		var hdr [52]byte
		if _, err := r.ReadAt(hdr[:], 0); err != nil {
			return 0, 0, 0, fmt.Errorf("appimg: read elf header: %w", err)
		}
		shoff = uint64(order.Uint32(hdr[0x20:]))
		shentsize = uint64(order.Uint16(hdr[0x2e:]))
		shnum = uint64(order.Uint16(hdr[0x30:]))
	default:
		return 0, 0, 0, fmt.Errorf("appimg: unknown ELF class %d", ident[elf.EI_CLASS])
	}
	return shoff, shentsize, shnum, nil
}

// scanChunkSize is the read granularity of ScanOffset.
const scanChunkSize = 64 << 10

// ScanOffset brute-force scans r for the first occurrence of magic and
// returns its byte offset. Windows overlap by len(magic)-1 bytes so
// matches spanning chunk boundaries are found.
//
// ScanOffset is the fallback for hosts without an ELF header; it returns
// ErrNoFilesystem when the magic never occurs.
func ScanOffset(r io.ReaderAt, magic []byte) (uint64, error) {
	if len(magic) == 0 || len(magic) >= scanChunkSize {
		return 0, fmt.Errorf("appimg: invalid magic length %d", len(magic))
	}

	buf := make([]byte, scanChunkSize)
	var off int64
	for {
		n, err := r.ReadAt(buf, off)
		if n >= len(magic) {
			if i := bytes.Index(buf[:n], magic); i >= 0 {
				return uint64(off) + uint64(i), nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrNoFilesystem
			}
			return 0, err
		}
		// Step back so a match straddling the boundary stays in window.
		off += int64(n - (len(magic) - 1))
	}
}
