package appimg

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/mxkv/appimg/internal/dwfs"
	"github.com/mxkv/appimg/internal/sqfs"
)

// AppImage is an open AppImage with its embedded filesystem image
// decoded behind a uniform entry view.
//
// The backend is chosen once at open time; no operation afterwards
// branches on the image format. Reads go through independent cursors,
// so concurrent reads of distinct entries are safe.
type AppImage struct {
	format Format
	offset uint64
	file   *os.File
	back   backend
	log    *slog.Logger
}

// backend is the per-format traversal/read surface. Exactly two
// implementations exist: SquashFS and DwarFS.
type backend interface {
	// entries re-materializes the entry sequence from the live handle.
	entries() iter.Seq2[Entry, error]
	// open returns a streaming reader over the regular file at the
	// archive-absolute path.
	open(path string) (io.ReadCloser, error)
	close() error
}

type openConfig struct {
	offset    uint64
	hasOffset bool
	format    Format
	hasFormat bool
	dwCodec   dwfs.Codec
	logger    *slog.Logger
}

// Option configures Open.
type Option func(*openConfig)

// WithOffset bypasses offset location and opens the image at the given
// byte offset.
func WithOffset(offset uint64) Option {
	return func(c *openConfig) {
		c.offset = offset
		c.hasOffset = true
	}
}

// WithFormat bypasses format detection and opens the image as the given
// format.
func WithFormat(f Format) Option {
	return func(c *openConfig) {
		c.format = f
		c.hasFormat = true
	}
}

// WithDwarFSCodec supplies the codec used to decode DwarFS images.
// Without one, opening a DwarFS image fails with ErrNoDwarFSCodec.
func WithDwarFSCodec(codec dwfs.Codec) Option {
	return func(c *openConfig) {
		c.dwCodec = codec
	}
}

// WithLogger sets a logger for the archive.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *openConfig) {
		c.logger = logger
	}
}

// Open opens the AppImage at path.
//
// Unless WithOffset is given, the image offset is derived from the ELF
// section layout. Unless WithFormat is given, the format is detected
// from the magic bytes at that offset.
func Open(name string, opts ...Option) (*AppImage, error) {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	offset := cfg.offset
	if !cfg.hasOffset {
		off, err := ElfOffset(name)
		if err != nil {
			return nil, err
		}
		offset = off
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if offset >= uint64(info.Size()) {
		f.Close()
		return nil, fmt.Errorf("%w: offset %d beyond end of %s", ErrNoFilesystem, offset, name)
	}

	format := cfg.format
	if !cfg.hasFormat {
		format, err = Detect(f, offset)
		if err != nil {
			f.Close()
			return nil, err
		}
	}

	section := io.NewSectionReader(f, int64(offset), info.Size()-int64(offset))

	var back backend
	switch format {
	case FormatSquashFS:
		archive, err := sqfs.Open(section)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		back = &squashBackend{archive: archive}
	case FormatDwarFS:
		if cfg.dwCodec == nil {
			f.Close()
			return nil, ErrNoDwarFSCodec
		}
		archive, err := cfg.dwCodec.Open(section, section.Size())
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		back = &dwarfsBackend{archive: archive}
	default:
		f.Close()
		return nil, ErrNoFilesystem
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &AppImage{
		format: format,
		offset: offset,
		file:   f,
		back:   back,
		log:    logger,
	}, nil
}

// Format returns the detected image format.
func (a *AppImage) Format() Format { return a.format }

// Offset returns the byte offset at which the image begins.
func (a *AppImage) Offset() uint64 { return a.offset }

// Close releases the underlying file handle.
func (a *AppImage) Close() error {
	berr := a.back.close()
	ferr := a.file.Close()
	if berr != nil {
		return berr
	}
	return ferr
}

// Entries returns a lazy iterator over every entry in the image.
//
// The sequence is finite and restartable: each call re-materializes it
// from the open archive. For the DwarFS backend every directory entry
// strictly precedes the entries nested beneath it.
func (a *AppImage) Entries() iter.Seq2[Entry, error] {
	return a.back.entries()
}

// ReadFile reads the whole content of the regular file at the
// archive-absolute path.
func (a *AppImage) ReadFile(path string) ([]byte, error) {
	rc, err := a.back.open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// lookup returns a copy of the entry with exactly the given path.
func (a *AppImage) lookup(path string) (*Entry, error) {
	for e, err := range a.Entries() {
		if err != nil {
			return nil, err
		}
		if e.Path == path {
			return &e, nil
		}
	}
	return nil, nil
}

// squashBackend serves entries from the codec's flattened listing.
type squashBackend struct {
	archive *sqfs.Archive
}

func (b *squashBackend) entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		nodes, err := b.archive.Nodes()
		if err != nil {
			yield(Entry{}, fmt.Errorf("%w: %v", ErrInvalidArchive, err))
			return
		}
		for _, n := range nodes {
			if !yield(entryFromSquash(n), nil) {
				return
			}
		}
	}
}

func (b *squashBackend) open(path string) (io.ReadCloser, error) {
	f, err := b.archive.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	return f, nil
}

func (b *squashBackend) close() error { return nil }

// entryFromSquash collapses a codec node onto the unified entry set.
func entryFromSquash(n sqfs.Node) Entry {
	e := Entry{Path: n.Path, Size: n.Size, Mode: n.Mode.Perm()}
	switch {
	case n.Mode.IsRegular():
		e.Kind = KindFile
	case n.Mode.IsDir():
		e.Kind = KindDirectory
	case n.Mode&fs.ModeSymlink != 0:
		e.Kind = KindSymlink
		// SquashFS records targets relative to the image root; anchor
		// them so they are comparable with entry paths.
		e.Target = n.Target
		if e.Target != "" && !strings.HasPrefix(e.Target, "/") {
			e.Target = "/" + e.Target
		}
	case n.Mode&(fs.ModeDevice|fs.ModeCharDevice) != 0:
		e.Kind = KindDevice
	case n.Mode&(fs.ModeNamedPipe|fs.ModeSocket) != 0:
		e.Kind = KindIpc
	default:
		e.Kind = KindUnknown
	}
	return e
}

// dwarfsBackend walks the codec's directory tree on demand.
type dwarfsBackend struct {
	archive dwfs.Archive
}

// entries walks the tree in pre-order with an explicit frame stack, so
// memory is bounded by tree depth in the slice arena rather than the
// call stack.
func (b *dwarfsBackend) entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		type frame struct {
			children []dwfs.Child
			next     int
			base     string
		}
		stack := []frame{{children: b.archive.Root().Children(), base: "/"}}
		for len(stack) > 0 {
			fr := &stack[len(stack)-1]
			if fr.next >= len(fr.children) {
				stack = stack[:len(stack)-1]
				continue
			}
			child := fr.children[fr.next]
			fr.next++

			p := path.Join(fr.base, child.Name)
			if !yield(entryFromDwarfs(p, child.Node), nil) {
				return
			}
			if child.Node.Kind() == dwfs.KindDirectory {
				stack = append(stack, frame{children: child.Node.Dir().Children(), base: p})
			}
		}
	}
}

func (b *dwarfsBackend) open(path string) (io.ReadCloser, error) {
	node, ok := b.findNode(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if node.Kind() != dwfs.KindFile {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	return b.archive.OpenFile(node)
}

func (b *dwarfsBackend) close() error { return b.archive.Close() }

// findNode descends the tree component by component.
func (b *dwarfsBackend) findNode(p string) (dwfs.Node, bool) {
	dir := b.archive.Root()
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return nil, false
	}
	for i, part := range parts {
		var found dwfs.Node
		for _, child := range dir.Children() {
			if child.Name == part {
				found = child.Node
				break
			}
		}
		if found == nil {
			return nil, false
		}
		if i == len(parts)-1 {
			return found, true
		}
		if found.Kind() != dwfs.KindDirectory {
			return nil, false
		}
		dir = found.Dir()
	}
	return nil, false
}

// entryFromDwarfs collapses a codec inode onto the unified entry set.
func entryFromDwarfs(path string, n dwfs.Node) Entry {
	e := Entry{Path: path, Mode: fs.FileMode(n.Mode() & 0o777)}
	switch n.Kind() {
	case dwfs.KindFile:
		e.Kind = KindFile
		for _, c := range n.ChunkSizes() {
			e.Size += c
		}
	case dwfs.KindDirectory:
		e.Kind = KindDirectory
	case dwfs.KindSymlink:
		e.Kind = KindSymlink
		e.Target = n.Target()
	case dwfs.KindDevice:
		e.Kind = KindDevice
	case dwfs.KindIpc:
		e.Kind = KindIpc
	default:
		e.Kind = KindUnknown
	}
	return e
}
