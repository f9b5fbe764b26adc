package appimg

import "strings"

// Resource-discovery conventions inside an AppImage.
const (
	dirIconPath = "/.DirIcon"
	iconPrefix  = "/usr/share/icons/"
)

// FindDesktop returns the first entry in traversal order whose path
// ends with ".desktop" and passes the filter, resolved to its terminal
// entry.
//
// The filter is a case-insensitive substring match against the path; an
// empty filter passes everything. A nil result without error means no
// desktop entry is present.
func (a *AppImage) FindDesktop(filter string) (*Entry, error) {
	return a.findFirst(filter, ".desktop")
}

// FindAppstream returns the first entry whose path ends with
// "appdata.xml" or "metainfo.xml" and passes the filter, resolved.
func (a *AppImage) FindAppstream(filter string) (*Entry, error) {
	return a.findFirst(filter, "appdata.xml", "metainfo.xml")
}

// FindIcon locates the application icon by ordered fallback:
//
//  1. the fixed-convention /.DirIcon entry (the filter does not apply)
//  2. the largest .png under /usr/share/icons/ passing the filter,
//     else the first .svg under the same prefix
//  3. the largest .png anywhere, passing the filter
//  4. the first .svg anywhere, passing the filter
//
// The first successful step wins; the result is resolved to its
// terminal entry. Among equal-size candidates the first in traversal
// order wins.
func (a *AppImage) FindIcon(filter string) (*Entry, error) {
	steps := []func(string) (*Entry, error){
		a.findDirIcon,
		a.findIconUnderPrefix,
		func(f string) (*Entry, error) { return a.findLargest(f, "", ".png") },
		func(f string) (*Entry, error) { return a.findSuffix(f, "", ".svg") },
	}
	for _, step := range steps {
		found, err := step(filter)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return a.finalize(*found)
		}
	}
	return nil, nil
}

// findDirIcon matches the exact /.DirIcon path regardless of filter.
func (a *AppImage) findDirIcon(string) (*Entry, error) {
	return a.lookup(dirIconPath)
}

// findIconUnderPrefix implements the themed-icon step: largest png, or
// failing that the first svg, under the icon directory.
func (a *AppImage) findIconUnderPrefix(filter string) (*Entry, error) {
	found, err := a.findLargest(filter, iconPrefix, ".png")
	if err != nil || found != nil {
		return found, err
	}
	return a.findSuffix(filter, iconPrefix, ".svg")
}

// findFirst returns the first entry whose lower-cased path carries one
// of the suffixes and passes the filter, resolved.
func (a *AppImage) findFirst(filter string, suffixes ...string) (*Entry, error) {
	found, err := a.findSuffix(filter, "", suffixes...)
	if err != nil || found == nil {
		return nil, err
	}
	return a.finalize(*found)
}

// findSuffix returns the first matching entry in traversal order.
func (a *AppImage) findSuffix(filter, prefix string, suffixes ...string) (*Entry, error) {
	filter = strings.ToLower(filter)
	for e, err := range a.Entries() {
		if err != nil {
			return nil, err
		}
		if matchPath(e.Path, filter, prefix, suffixes...) {
			return &e, nil
		}
	}
	return nil, nil
}

// findLargest returns the matching entry with the greatest size. A
// strict comparison while scanning keeps the first-encountered entry
// among equal maxima.
func (a *AppImage) findLargest(filter, prefix, suffix string) (*Entry, error) {
	filter = strings.ToLower(filter)
	var best *Entry
	for e, err := range a.Entries() {
		if err != nil {
			return nil, err
		}
		if !matchPath(e.Path, filter, prefix, suffix) {
			continue
		}
		if best == nil || e.Size > best.Size {
			best = &e
		}
	}
	return best, nil
}

// matchPath applies the lower-cased prefix/suffix/filter predicates.
func matchPath(entryPath, filter, prefix string, suffixes ...string) bool {
	p := strings.ToLower(entryPath)
	if prefix != "" && !strings.HasPrefix(p, prefix) {
		return false
	}
	if filter != "" && !strings.Contains(p, filter) {
		return false
	}
	for _, suffix := range suffixes {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}
