package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
	return path
}

func names(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "cage2_run.CSV", 10)
	touch(t, dir, "cage1_run.csv", 10)
	touch(t, dir, "cage3_run.txt", 10)
	touch(t, dir, "cage4_params.csv", 10)
	touch(t, dir, "notes.md", 10)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	tests := []struct {
		name    string
		exts    []string
		pattern string
		exclude string
		want    []string
	}{
		{"defaults", nil, "", "", []string{"cage1_run.csv", "cage2_run.CSV", "cage3_run.txt", "cage4_params.csv"}},
		{"csv only", []string{".csv"}, "", "", []string{"cage1_run.csv", "cage2_run.CSV", "cage4_params.csv"}},
		{"pattern", nil, "_run", "", []string{"cage1_run.csv", "cage2_run.CSV", "cage3_run.txt"}},
		{"exclude", []string{"csv"}, "", "params", []string{"cage1_run.csv", "cage2_run.CSV"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := New(dir, tt.exts, tt.pattern, tt.exclude).Scan()
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(files))
		})
	}
}

func TestScanSingleFile(t *testing.T) {
	path := touch(t, t.TempDir(), "only.dat", 2048)
	files, err := New(path, nil, "", "").Scan()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0].Path)
	assert.Equal(t, "2.0 kB", files[0].HumanSize())
}

func TestScanErrors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil, "", "").Scan()
	assert.Error(t, err)

	dir := t.TempDir()
	touch(t, dir, "readme.md", 1)
	_, err = New(dir, nil, "", "").Scan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files to process")
}

func TestTotalSize(t *testing.T) {
	assert.Equal(t, "3.0 kB", TotalSize([]FileInfo{{Size: 1000}, {Size: 2000}}))
}
