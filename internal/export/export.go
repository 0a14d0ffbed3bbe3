// Package export writes datasets as the canonical [Metadata]/[Data] table,
// as per-parameter subject-wide tables, or as an xlsx workbook.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/cageconvert/internal/dataset"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Table orientations.
const (
	ParameterWide = "parameter-wide"
	SubjectWide   = "subject-wide"
)

// Field is one key/value line of the metadata block.
type Field struct {
	Key   string
	Value string
}

// Metadata describes d for the header block. extra fields are appended as given.
func Metadata(d *dataset.Dataset, extra ...Field) []Field {
	phase := d.Phase()
	allowed := d.AllowedFrequencies()
	freqs := make([]string, len(allowed))
	for i, f := range allowed {
		freqs[i] = strconv.FormatInt(f, 10)
	}

	fields := []Field{
		{"dataset_id", d.ID()},
		{"frequency", strconv.FormatInt(d.Frequency(), 10)},
		{"start", d.Start().Format(dataset.TimeLayout)},
		{"end", d.End().Format(dataset.TimeLayout)},
		{"subjects", strconv.Itoa(len(d.Subjects()))},
		{"parameters", strings.Join(d.Parameters(), " ")},
		{"initial_phase", strconv.Itoa(phase.Initial)},
		{"phase_durations", fmt.Sprintf("%d %d", phase.Durations[0], phase.Durations[1])},
		{"allowed_frequencies", strings.Join(freqs, " ")},
	}
	return append(fields, extra...)
}

// Exporter writes a dataset to an output directory.
type Exporter struct {
	format      string
	orientation string
	precision   int
}

// New validates the output settings. precision is the number of decimals kept
// for parameter values; a negative precision writes the shortest exact form.
func New(format, orientation string, precision int) (*Exporter, error) {
	switch format {
	case FormatCSV, FormatXLSX:
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", dataset.ErrConfig, format)
	}
	switch orientation {
	case ParameterWide, SubjectWide:
	default:
		return nil, fmt.Errorf("%w: unknown orientation %q", dataset.ErrConfig, orientation)
	}
	return &Exporter{format: format, orientation: orientation, precision: precision}, nil
}

// BaseName builds <YYYY-MM-DD>_<suffix>; the action name is used when suffix
// is empty.
func BaseName(date time.Time, suffix, action string) string {
	if suffix == "" {
		suffix = action
	}
	return date.Format("2006-01-02") + "_" + suffix
}

// FileName is BaseName with an extension.
func FileName(date time.Time, suffix, action, ext string) string {
	return BaseName(date, suffix, action) + "." + ext
}

// Export writes d into dir and returns the paths it created. base is the file
// name without extension; subject-wide CSV output gets one file per parameter.
func (e *Exporter) Export(d *dataset.Dataset, meta []Field, dir, base string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if e.format == FormatXLSX {
		path := filepath.Join(dir, base+".xlsx")
		if err := WriteWorkbook(path, d, meta, e.orientation, e.precision); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	if e.orientation == ParameterWide {
		path := filepath.Join(dir, base+".csv")
		if err := writeFile(path, func(f *os.File) error {
			return WriteCanonical(f, d, meta, e.precision)
		}); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var paths []string
	for _, param := range d.Parameters() {
		path := filepath.Join(dir, base+"_"+param+".csv")
		if err := writeFile(path, func(f *os.File) error {
			return WriteSubjectWide(f, d, param, e.precision)
		}); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// FormatValue renders a parameter value. NaN becomes an empty cell.
func FormatValue(v float64, precision int) string {
	if math.IsNaN(v) {
		return ""
	}
	if precision >= 0 {
		p := math.Pow(10, float64(precision))
		v = math.Round(v*p) / p
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
