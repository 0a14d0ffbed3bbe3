package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rewired-gh/cageconvert/internal/dataset"
	"github.com/rewired-gh/cageconvert/internal/vendor"
)

// WriteCanonical writes the parameter-wide canonical table:
//
//	[Metadata]
//	key,value
//	[Data]
//	subject,date_time,interval,light,<parameters>
func WriteCanonical(w io.Writer, d *dataset.Dataset, meta []Field, precision int) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)

	if _, err := fmt.Fprintln(bw, vendor.MetadataAnchor); err != nil {
		return err
	}
	for _, f := range meta {
		if err := cw.Write([]string{f.Key, f.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(bw, vendor.DataAnchor); err != nil {
		return err
	}

	header := append([]string{"subject", "date_time", "interval", "light"}, d.Parameters()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, s := range d.Subjects() {
		for _, row := range d.Observations(s) {
			record[0] = row.Subject
			record[1] = row.Time.Format(dataset.TimeLayout)
			record[2] = strconv.Itoa(row.Interval)
			record[3] = strconv.Itoa(row.Phase)
			for i, v := range row.Values {
				record[4+i] = FormatValue(v, precision)
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// subjectWideRows pivots one parameter: a row per interval, a column per
// subject. date_time and light come from the first subject that has the
// interval; subjects with fewer observations leave empty cells.
func subjectWideRows(d *dataset.Dataset, param string, precision int) ([]string, [][]string) {
	subjects := d.Subjects()
	col := -1
	for i, p := range d.Parameters() {
		if p == param {
			col = i
		}
	}

	series := make([][]dataset.Observation, len(subjects))
	longest := 0
	for i, s := range subjects {
		series[i] = d.Observations(s)
		if len(series[i]) > longest {
			longest = len(series[i])
		}
	}

	header := append([]string{"interval", "date_time", "light"}, subjects...)
	rows := make([][]string, longest)
	for k := 0; k < longest; k++ {
		record := make([]string, len(header))
		record[0] = strconv.Itoa(k)
		for i, obs := range series {
			if k >= len(obs) {
				continue
			}
			if record[1] == "" {
				record[1] = obs[k].Time.Format(dataset.TimeLayout)
				record[2] = strconv.Itoa(obs[k].Phase)
			}
			if col >= 0 {
				record[3+i] = FormatValue(obs[k].Values[col], precision)
			}
		}
		rows[k] = record
	}
	return header, rows
}

// WriteSubjectWide writes one parameter with subjects as columns.
func WriteSubjectWide(w io.Writer, d *dataset.Dataset, param string, precision int) error {
	header, rows := subjectWideRows(d, param, precision)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
