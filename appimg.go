package appimg

import "io/fs"

// Format identifies the filesystem image format embedded in an AppImage.
type Format uint8

const (
	// FormatSquashFS is a SquashFS image ("hsqs" magic).
	FormatSquashFS Format = iota
	// FormatDwarFS is a DwarFS image ("DWARFS" magic).
	FormatDwarFS
)

func (f Format) String() string {
	switch f {
	case FormatSquashFS:
		return "squashfs"
	case FormatDwarFS:
		return "dwarfs"
	default:
		return "unknown"
	}
}

// Kind classifies an archive entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
	KindDevice
	KindIpc
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindDevice:
		return "device"
	case KindIpc:
		return "ipc"
	default:
		return "unknown"
	}
}

// Entry represents a single entry in the embedded filesystem image.
//
// Entries are transient values materialized fresh on each traversal;
// they are never cached or mutated in place.
type Entry struct {
	// Path is the archive-absolute path, beginning at the archive root
	// (e.g. "/usr/share/icons/app.png").
	Path string

	// Size is the entry's byte count. It is meaningful only when Kind
	// is KindFile.
	Size uint64

	// Mode holds the permission bits recorded in the archive.
	Mode fs.FileMode

	// Kind classifies the entry.
	Kind Kind

	// Target is the raw, unresolved symlink target exactly as recorded
	// in the archive. Set only when Kind is KindSymlink; it may be
	// relative or absolute until passed through Resolve.
	Target string
}

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool { return e.Kind == KindFile }

// IsSymlink reports whether the entry is a symlink.
func (e Entry) IsSymlink() bool { return e.Kind == KindSymlink }
