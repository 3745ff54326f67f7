package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportEntries() []Entry {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	return []Entry{
		NewEntry(base, "21.5,40"),
		NewEntry(base.Add(time.Minute), "22.0,41\r"),
		ErrorEntry("EOF"),
		NewEntry(base.Add(2*time.Minute), "22.4,43"),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestExportCSVDefaultHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	n, err := ExportCSV(exportEntries(), CSVExportOptions{FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "Data\n21.5,40\n22.0,41\n[ERROR] EOF\n22.4,43\n", readFile(t, path))
}

func TestExportCSVWithTimestampsAndFilter(t *testing.T) {
	entries := exportEntries()
	path := filepath.Join(t.TempDir(), "out.csv")
	n, err := ExportCSV(entries, CSVExportOptions{
		FilePath:          path,
		IncludeTimestamps: true,
		FilterByTime:      true,
		StartTime:         entries[1].Time,
		EndTime:           entries[3].Time,
		CustomHeader:      []string{"Time", "Temp", "Humidity"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t,
		"Time,Temp,Humidity\n2024-03-01 10:01:00.000,22.0,41\n2024-03-01 10:02:00.000,22.4,43\n",
		readFile(t, path))
}

func TestExportCSVBadPath(t *testing.T) {
	_, err := ExportCSV(nil, CSVExportOptions{FilePath: filepath.Join(t.TempDir(), "nope", "x.csv")})
	assert.Error(t, err)
}

func TestParseCustomHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header.csv")
	require.NoError(t, os.WriteFile(path, []byte("Time,Temp,Humidity\nignored\n"), 0644))

	header, err := ParseCustomHeader(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "Temp", "Humidity"}, header)

	_, err = ParseCustomHeader(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSplitHeader(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitHeader(" a, b ,c "))
	assert.Nil(t, SplitHeader("  "))
}
