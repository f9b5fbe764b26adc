package appimg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ExtractOption configures Extract and ExtractAll.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	name         string
	preserveMode bool
}

// ExtractWithName renames the written file to the given base name, with
// the original extension appended. Appstream files keep their semantic
// suffix: renaming "org.app.appdata.xml" to "myapp" yields
// "myapp.appdata.xml". An original without an extension keeps its name.
//
// ExtractAll ignores the override; entries keep their archive paths.
func ExtractWithName(name string) ExtractOption {
	return func(c *extractConfig) {
		c.name = name
	}
}

// ExtractWithMode applies the entry's recorded permission bits to the
// destination. By default files use umask defaults.
func ExtractWithMode(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveMode = preserve
	}
}

// Extract streams the entry's bytes to destDir in a single buffered
// pass. The directory is created if absent. Permission bits, when
// requested, are applied only after the stream completes, so a failed
// write never leaves a file with correct permissions but partial
// content.
func (a *AppImage) Extract(entry Entry, destDir string, opts ...ExtractOption) error {
	if !entry.IsFile() {
		return fmt.Errorf("%w: %s", ErrNotAFile, entry.Path)
	}

	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, outputName(entry.Path, cfg.name))
	return a.writeEntry(entry, dest, cfg.preserveMode)
}

// writeEntry streams one entry to dest and optionally chmods it after.
func (a *AppImage) writeEntry(entry Entry, dest string, preserveMode bool) error {
	rc, err := a.back.open(entry.Path)
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	if _, err := io.Copy(w, rc); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("close %s: %w", dest, err)
	}

	if preserveMode {
		if err := os.Chmod(dest, entry.Mode.Perm()); err != nil {
			return fmt.Errorf("chmod %s: %w", dest, err)
		}
	}

	a.log.Info("wrote file", "entry", entry.Path, "dest", dest)
	return nil
}

// ExtractAll extracts every entry of the image under destDir,
// reproducing the archive tree.
//
// File entries are distributed over a worker pool sized to the
// available cores; entries have no data dependency on one another and
// each writes a distinct destination, so no cross-entry locking is
// needed. A destination that already exists is skipped, which makes
// repeated runs resumable without overwrites. A failure on one entry is
// recorded and extraction continues; the joined failures are returned.
func (a *AppImage) ExtractAll(destDir string, opts ...ExtractOption) error {
	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", destDir, err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		a.log.Error("extract failed", "error", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for e, err := range a.Entries() {
		if err != nil {
			return err
		}
		dest := filepath.Join(destDir, filepath.FromSlash(strings.TrimPrefix(e.Path, "/")))

		switch e.Kind {
		case KindDirectory:
			// Pre-order traversal guarantees parents exist before
			// their children are scheduled.
			if err := os.MkdirAll(dest, 0o755); err != nil {
				record(fmt.Errorf("create directory %s: %w", dest, err))
			}
		case KindSymlink:
			if _, err := os.Lstat(dest); err == nil {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				record(fmt.Errorf("create directory %s: %w", filepath.Dir(dest), err))
				continue
			}
			if err := os.Symlink(e.Target, dest); err != nil {
				record(fmt.Errorf("symlink %s: %w", dest, err))
			}
		case KindFile:
			g.Go(func() error {
				if _, err := os.Stat(dest); err == nil {
					a.log.Debug("skipping existing file", "dest", dest)
					return nil
				}
				if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
					record(fmt.Errorf("create directory %s: %w", filepath.Dir(dest), err))
					return nil
				}
				if err := a.writeEntry(e, dest, cfg.preserveMode); err != nil {
					record(err)
				}
				return nil
			})
		default:
			// Devices, IPC nodes, and unknown kinds are not
			// reproducible on a plain filesystem.
			a.log.Debug("skipping entry", "entry", e.Path, "kind", e.Kind.String())
		}
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// outputName computes the written filename for an entry, applying the
// optional base-name override.
func outputName(entryPath, override string) string {
	base := path.Base(entryPath)
	if override == "" {
		return base
	}
	ext := path.Ext(base)
	if ext == "" {
		return base
	}
	switch {
	case strings.HasSuffix(base, "appdata.xml"):
		return override + ".appdata.xml"
	case strings.HasSuffix(base, "metainfo.xml"):
		return override + ".metainfo.xml"
	}
	return override + ext
}
