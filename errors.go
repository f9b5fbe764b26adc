package appimg

import "errors"

// Sentinel errors.
var (
	// ErrNoFilesystem is returned when no supported filesystem magic is
	// found at (or after) the computed offset.
	ErrNoFilesystem = errors.New("appimg: no supported filesystem found")

	// ErrInvalidArchive is returned when a backend codec reports a
	// structural parse failure. The codec's message is wrapped verbatim.
	ErrInvalidArchive = errors.New("appimg: invalid archive")

	// ErrNotFound is returned when a requested path is absent from the
	// archive.
	ErrNotFound = errors.New("appimg: file not found")

	// ErrSymlinkCycle is returned when symlink resolution revisits an
	// already-visited path.
	ErrSymlinkCycle = errors.New("appimg: symlink cycle")

	// ErrNotAFile is returned when a read or extract targets an entry
	// that is not a regular file.
	ErrNotAFile = errors.New("appimg: not a file")

	// ErrNoDwarFSCodec is returned when a DwarFS image is detected but no
	// codec was supplied via WithDwarFSCodec.
	ErrNoDwarFSCodec = errors.New("appimg: no dwarfs codec configured")
)
