package filterlist

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Format selects the parser used for a source.
type Format uint8

const (
	FormatABP Format = iota
	FormatHosts
)

// Source is one filter list: the bundled list or a user-supplied file.
type Source struct {
	Name   string
	Format Format
	Open   func() (io.ReadCloser, error)
}

// FileSource describes a list on disk. Files ending in ".hosts" are parsed
// as hosts files, everything else as Adblock Plus lists.
func FileSource(path string) Source {
	format := FormatABP
	if strings.EqualFold(filepath.Ext(path), ".hosts") {
		format = FormatHosts
	}
	return Source{
		Name:   path,
		Format: format,
		Open:   func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// TextSource wraps in-memory rule text, e.g. rules typed by the user.
func TextSource(name, text string) Source {
	return Source{
		Name:   name,
		Format: FormatABP,
		Open:   func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(text)), nil },
	}
}

// DirectorySources returns the bundled list (when set) followed by every
// regular file in dir, in name order. A missing directory yields no user
// sources; it is not an error.
func DirectorySources(bundled, dir string) []Source {
	var out []Source
	if bundled != "" {
		out = append(out, FileSource(bundled))
	}
	if dir == "" {
		return out
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		out = append(out, FileSource(filepath.Join(dir, n)))
	}
	return out
}
