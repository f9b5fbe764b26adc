package appimg

import "fmt"

// Resolve follows the symlink chain starting at entry and returns the
// terminal entry.
//
// It returns (nil, nil) when entry is not a symlink or when the chain
// ends at a path absent from the archive (a dangling link is not an
// error). A chain that revisits an already-visited path fails with
// ErrSymlinkCycle. Resolution never mutates the original entry.
//
// The chain length is attacker-controlled input, so resolution is
// driven by a loop over a visited set rather than recursion. The set
// strictly grows each iteration, which guarantees termination.
func (a *AppImage) Resolve(entry Entry) (*Entry, error) {
	if !entry.IsSymlink() {
		return nil, nil
	}

	visited := map[string]struct{}{entry.Path: {}}
	target := entry.Target
	for {
		current, err := a.lookup(target)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}
		if !current.IsSymlink() {
			return current, nil
		}
		if _, seen := visited[current.Target]; seen {
			return nil, fmt.Errorf("%w: %s", ErrSymlinkCycle, current.Target)
		}
		visited[current.Target] = struct{}{}
		target = current.Target
	}
}

// finalize passes non-symlink entries through unchanged and resolves
// symlinks to their terminal entry.
func (a *AppImage) finalize(entry Entry) (*Entry, error) {
	if !entry.IsSymlink() {
		return &entry, nil
	}
	return a.Resolve(entry)
}
