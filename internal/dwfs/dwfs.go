// Package dwfs defines the contract consumed from a DwarFS codec.
//
// Byte-level DwarFS decoding is owned by an external codec; this package
// only fixes the surface the adapter drives: opening an image at an
// offset, walking directories from the root, reading per-file chunk
// lengths and content, and reading the POSIX mode of each inode.
package dwfs

import "io"

// Kind classifies a DwarFS inode as reported by the codec.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
	KindDevice
	KindIpc
	KindUnknown
)

// Codec opens DwarFS images.
type Codec interface {
	// Open decodes the image occupying the first size bytes of r.
	// The reader is already positioned at the image: callers slice the
	// host file so byte 0 of r is the DwarFS magic.
	Open(r io.ReaderAt, size int64) (Archive, error)
}

// Archive is an open DwarFS image.
type Archive interface {
	// Root returns the image's root directory.
	Root() Dir

	// OpenFile returns a streaming reader over the file node's content.
	OpenFile(n Node) (io.ReadCloser, error)

	Close() error
}

// Dir is a directory inode.
type Dir interface {
	// Children returns the directory's immediate children in codec
	// order.
	Children() []Child
}

// Child pairs a directory-entry name with its inode.
type Child struct {
	Name string
	Node Node
}

// Node is a single inode.
type Node interface {
	Kind() Kind

	// Mode returns the inode's POSIX mode bits.
	Mode() uint32

	// ChunkSizes returns the byte lengths of the file's data chunks;
	// the file size is their sum. Only meaningful for KindFile.
	ChunkSizes() []uint64

	// Target returns the raw symlink target. Only meaningful for
	// KindSymlink.
	Target() string

	// Dir returns the directory handle. Only meaningful for
	// KindDirectory.
	Dir() Dir
}
