package appimg

import (
	"bytes"
	"errors"
	"io"
)

// Detect classifies the filesystem image format at offset in r.
//
// It reads exactly six bytes through an independent ReadAt cursor, so
// any cursor state held by the caller is left untouched. Detection is
// idempotent and side-effect-free with respect to the file.
func Detect(r io.ReaderAt, offset uint64) (Format, error) {
	var magic [6]byte
	if _, err := r.ReadAt(magic[:], int64(offset)); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrNoFilesystem
		}
		return 0, err
	}

	if bytes.Equal(magic[:4], MagicSquashFS) {
		return FormatSquashFS, nil
	}
	if bytes.Equal(magic[:], MagicDwarFS) {
		return FormatDwarFS, nil
	}
	return 0, ErrNoFilesystem
}
