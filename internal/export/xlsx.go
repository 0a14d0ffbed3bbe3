package export

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/cageconvert/internal/dataset"
)

const (
	metadataSheet = "Metadata"
	dataSheet     = "Data"
)

// WriteWorkbook saves d as an xlsx workbook. The metadata block gets its own
// sheet. Parameter-wide output has a single data sheet; subject-wide output
// has one sheet per parameter.
func WriteWorkbook(path string, d *dataset.Dataset, meta []Field, orientation string, precision int) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), metadataSheet); err != nil {
		return fmt.Errorf("failed to prepare workbook: %w", err)
	}
	for i, field := range meta {
		if err := setRow(f, metadataSheet, i+1, []interface{}{field.Key, field.Value}); err != nil {
			return err
		}
	}

	if orientation == SubjectWide {
		for _, param := range d.Parameters() {
			header, rows := subjectWideRows(d, param, precision)
			if err := addSheet(f, sheetName(param), header, rows); err != nil {
				return err
			}
		}
	} else {
		if err := writeParameterWide(f, d, precision); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeParameterWide(f *excelize.File, d *dataset.Dataset, precision int) error {
	if _, err := f.NewSheet(dataSheet); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", dataSheet, err)
	}
	header := append([]string{"subject", "date_time", "interval", "light"}, d.Parameters()...)
	if err := setRow(f, dataSheet, 1, stringsToCells(header)); err != nil {
		return err
	}

	n := 2
	for _, s := range d.Subjects() {
		for _, row := range d.Observations(s) {
			cells := make([]interface{}, 0, len(header))
			cells = append(cells, row.Subject, row.Time.Format(dataset.TimeLayout), row.Interval, row.Phase)
			for _, v := range row.Values {
				cells = append(cells, cellValue(v, precision))
			}
			if err := setRow(f, dataSheet, n, cells); err != nil {
				return err
			}
			n++
		}
	}
	return nil
}

func addSheet(f *excelize.File, name string, header []string, rows [][]string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	if err := setRow(f, name, 1, stringsToCells(header)); err != nil {
		return err
	}
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			// date_time stays text; numbers are written as numbers.
			if j != 1 {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cells[j] = n
					continue
				}
			}
			cells[j] = v
		}
		if err := setRow(f, name, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func stringsToCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// cellValue leaves missing values as empty cells.
func cellValue(v float64, precision int) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	if precision >= 0 {
		p := math.Pow(10, float64(precision))
		v = math.Round(v*p) / p
	}
	return v
}

// sheetName trims a parameter to the 31 characters a sheet name may hold.
func sheetName(param string) string {
	if len(param) > 31 {
		return param[:31]
	}
	return param
}
