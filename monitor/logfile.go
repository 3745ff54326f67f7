package monitor

import (
	"encoding/csv"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
)

// CSVTimeLayout is the timestamp column format used by ExportCSV.
const CSVTimeLayout = "2006-01-02 15:04:05.000"

// SaveLog writes text to path verbatim.
func SaveLog(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// CSVExportOptions configures how console entries are exported to CSV.
type CSVExportOptions struct {
	FilePath          string
	IncludeTimestamps bool
	FilterByTime      bool
	StartTime         time.Time
	EndTime           time.Time
	CustomHeader      []string // Custom header row; if nil, a default header is written.
}

// ExportCSV writes entries to a CSV file, one record per entry with the
// text split on commas. It returns the number of records written.
func ExportCSV(entries []Entry, opts CSVExportOptions) (int, error) {
	f, err := os.Create(opts.FilePath)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := opts.CustomHeader
	if len(header) == 0 {
		header = []string{"Data"}
		if opts.IncludeTimestamps {
			header = []string{"Timestamp", "Data"}
		}
	}
	if err := w.Write(header); err != nil {
		return 0, errors.Wrap(err, "failed to write header")
	}

	n := 0
	for _, e := range entries {
		if opts.FilterByTime {
			// Unstamped entries are not tied to the window.
			if !e.HasTimestamp() || e.Time.Before(opts.StartTime) || e.Time.After(opts.EndTime) {
				continue
			}
		}

		fields := strings.Split(strings.TrimRightFunc(e.Text, unicode.IsSpace), ",")
		record := fields
		if opts.IncludeTimestamps {
			stamp := ""
			if e.HasTimestamp() {
				stamp = e.Time.Format(CSVTimeLayout)
			}
			record = append([]string{stamp}, fields...)
		}

		if err := w.Write(record); err != nil {
			return n, errors.Wrap(err, "failed to write record")
		}
		n++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return n, errors.Wrap(err, "failed to flush csv writer")
	}
	return n, nil
}

// ParseCustomHeader reads the first CSV record of filePath as a header row.
func ParseCustomHeader(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open header file")
	}
	defer f.Close()

	record, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	return record, nil
}

// SplitHeader turns "a, b,c" into a trimmed header row.
func SplitHeader(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	fields := strings.Split(text, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
