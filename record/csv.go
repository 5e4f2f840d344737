// Package record serializes accelerometer samples.
package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/mklimuk/accellog/accel"
)

// TimeFormat is the timestamp layout of a CSV row (MM/DD/YYYY HH:MM:SS.ffffff).
const TimeFormat = "01/02/2006 15:04:05.000000"

// CSVWriter writes one row per sample: timestamp, x, y, z. An axis without new
// data is written as an empty field.
type CSVWriter struct {
	w    *csv.Writer
	row  []string
	rows int
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{
		w:   csv.NewWriter(w),
		row: make([]string, 4),
	}
}

func (c *CSVWriter) Write(s accel.TimedSample) error {
	c.row[0] = s.Time.Format(TimeFormat)
	c.row[1] = s.Sample.X.String()
	c.row[2] = s.Sample.Y.String()
	c.row[3] = s.Sample.Z.String()
	err := c.w.Write(c.row)
	if err != nil {
		return fmt.Errorf("could not write record: %w", err)
	}
	c.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (c *CSVWriter) Rows() int {
	return c.rows
}

func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// FormatTime formats t the way it appears in a record.
func FormatTime(t time.Time) string {
	return t.Format(TimeFormat)
}
