// Package sqfs adapts a SquashFS codec into the flattened node listing
// the appimg adapter consumes.
//
// Decoding is owned by github.com/CalebQ42/squashfs; this package walks
// its fs.FS surface once per listing call and normalizes paths to the
// archive root.
package sqfs

import (
	"io"
	"io/fs"
	"strings"

	"github.com/CalebQ42/squashfs"
)

// Node is one flattened entry of the image.
type Node struct {
	// Path is archive-absolute ("/"-rooted).
	Path string

	// Size is the regular file's byte count, zero otherwise.
	Size uint64

	// Mode carries the full file mode, type bits included.
	Mode fs.FileMode

	// Target is the symlink target as recorded by the codec, empty for
	// non-symlinks.
	Target string
}

// Archive is an open SquashFS image.
type Archive struct {
	fsys fs.FS
}

// Open decodes the SquashFS image starting at byte 0 of r. Callers
// slice the host file so the superblock magic is at offset zero.
func Open(r io.ReaderAt) (*Archive, error) {
	rdr, err := squashfs.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &Archive{fsys: rdr}, nil
}

// Nodes returns the flattened entry list in pre-order traversal order.
// Each call re-walks the live image.
func (a *Archive) Nodes() ([]Node, error) {
	return flatten(a.fsys, a.readlink)
}

// Open returns a reader over the regular file at the archive-absolute
// path.
func (a *Archive) Open(path string) (fs.File, error) {
	return a.fsys.Open(rel(path))
}

// readlink reads a symlink target through the codec.
func (a *Archive) readlink(name string) (string, bool) {
	f, err := a.fsys.Open(name)
	if err != nil {
		return "", false
	}
	defer f.Close()
	if sl, ok := f.(interface{ SymlinkPath() string }); ok {
		return sl.SymlinkPath(), true
	}
	return "", false
}

// flatten walks fsys in pre-order and yields one node per entry, root
// excluded. readlink supplies symlink targets; it is injected so the
// walk is exercisable without a real image.
func flatten(fsys fs.FS, readlink func(string) (string, bool)) ([]Node, error) {
	var nodes []Node
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		n := Node{Path: abs(p), Mode: info.Mode()}
		if info.Mode().IsRegular() {
			n.Size = uint64(info.Size())
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			if target, ok := readlink(p); ok {
				n.Target = target
			}
		}
		nodes = append(nodes, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// abs converts an fs.FS path to an archive-absolute one.
func abs(p string) string {
	return "/" + p
}

// rel converts an archive-absolute path to an fs.FS one.
func rel(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}
