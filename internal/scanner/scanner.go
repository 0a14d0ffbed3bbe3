// Package scanner finds the input files of an action.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultExtensions are the accepted input file extensions.
var DefaultExtensions = []string{"csv", "txt", "tsv", "asc"}

// FileInfo describes one discovered input file.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// HumanSize renders the file size for logs, e.g. "1.2 MB".
func (f FileInfo) HumanSize() string {
	return humanize.Bytes(uint64(f.Size))
}

// Scanner selects files by extension, name pattern and exclude pattern.
type Scanner struct {
	path       string
	extensions []string
	pattern    string
	exclude    string
}

// New creates a scanner rooted at path, which may be a directory or a single file.
// Empty extensions fall back to DefaultExtensions.
func New(path string, extensions []string, pattern, exclude string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = strings.ToLower(strings.TrimPrefix(e, "."))
	}
	return &Scanner{path: path, extensions: exts, pattern: pattern, exclude: exclude}
}

// Scan returns the matching files sorted by name. A single file path is
// returned as is. Finding no file is an error.
func (s *Scanner) Scan() ([]FileInfo, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("specified location is neither file nor directory: %w", err)
	}

	if !info.IsDir() {
		return []FileInfo{{
			Path:    s.path,
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}, nil
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", s.path, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !s.matches(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(s.path, entry.Name()),
			Name:    entry.Name(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files to process in %s (accepted extensions: %s, pattern: %q, exclude pattern: %q)",
			s.path, strings.Join(s.extensions, ","), s.pattern, s.exclude)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *Scanner) matches(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	accepted := false
	for _, e := range s.extensions {
		if ext == e {
			accepted = true
			break
		}
	}
	if !accepted {
		return false
	}
	if s.pattern != "" && !strings.Contains(name, s.pattern) {
		return false
	}
	if s.exclude != "" && strings.Contains(name, s.exclude) {
		return false
	}
	return true
}

// TotalSize sums the sizes of files in human readable form.
func TotalSize(files []FileInfo) string {
	var total uint64
	for _, f := range files {
		total += uint64(f.Size)
	}
	return humanize.Bytes(total)
}
