package ui

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-monitor/monitor"
)

func TestParseTimeWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 4, 5, 0, time.Local)

	from, to, err := parseTimeWindow("", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), from)
	assert.Equal(t, now, to)

	from, to, err = parseTimeWindow(" 10:00:00", "11:30:00 ", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local), from)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 30, 0, 999999999, time.Local), to)

	_, _, err = parseTimeWindow("10h", "", now)
	assert.Error(t, err)
	_, _, err = parseTimeWindow("", "noon", now)
	assert.Error(t, err)
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/tmp/serial_log.txt", localPath(storage.NewFileURI("/tmp/serial_log.txt")))
}

func TestExportFormOptions(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 4, 5, 0, time.Local)
	headerFile := filepath.Join(t.TempDir(), "header.csv")
	require.NoError(t, os.WriteFile(headerFile, []byte("Time,Temp,Humidity\n1,2,3\n"), 0o644))

	cases := []struct {
		name   string
		form   exportForm
		header []string
	}{
		{"none", exportForm{HeaderSource: headerNone, Pasted: "a,b"}, nil},
		{"template", exportForm{HeaderSource: headerTemplate, Template: "Time, Temp"}, []string{"Time", "Temp"}},
		{"paste", exportForm{HeaderSource: headerPaste, Pasted: " x,y "}, []string{"x", "y"}},
		{"file", exportForm{HeaderSource: headerFile, HeaderFile: headerFile}, []string{"Time", "Temp", "Humidity"}},
		{"file not chosen", exportForm{HeaderSource: headerFile}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := tc.form.options(now)
			require.NoError(t, err)
			assert.Equal(t, tc.header, opts.CustomHeader)
			assert.False(t, opts.FilterByTime)
		})
	}

	opts, err := exportForm{IncludeTimestamps: true, FilterByTime: true, Start: "10:00:00"}.options(now)
	require.NoError(t, err)
	assert.True(t, opts.IncludeTimestamps)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local), opts.StartTime)
	assert.Equal(t, now, opts.EndTime)

	// Bounds are ignored while the filter is off.
	_, err = exportForm{Start: "bogus"}.options(now)
	assert.NoError(t, err)
	_, err = exportForm{FilterByTime: true, Start: "bogus"}.options(now)
	assert.Error(t, err)
	_, err = exportForm{HeaderSource: headerFile, HeaderFile: filepath.Join(t.TempDir(), "missing.csv")}.options(now)
	assert.ErrorContains(t, err, "failed to load header")
}

func TestExportDialogHeaderSourceEnablesInputs(t *testing.T) {
	ui := newTestUI(t, nil)
	d := newExportDialog(ui.AppUI)

	assert.True(t, d.templates.Disabled())
	assert.True(t, d.paste.Disabled())
	assert.True(t, d.browseBtn.Disabled())
	assert.True(t, d.start.Disabled())

	d.source.SetSelected(headerPaste)
	assert.False(t, d.paste.Disabled())
	assert.False(t, d.saveBtn.Disabled())
	assert.True(t, d.templates.Disabled())

	d.source.SetSelected(headerTemplate)
	assert.False(t, d.templates.Disabled())
	assert.False(t, d.deleteBtn.Disabled())
	assert.True(t, d.paste.Disabled())

	d.source.SetSelected(headerFile)
	assert.False(t, d.browseBtn.Disabled())
	assert.True(t, d.templates.Disabled())

	d.filter.SetChecked(true)
	assert.False(t, d.start.Disabled())
	assert.False(t, d.end.Disabled())
}

func TestExportDialogTemplates(t *testing.T) {
	ui := newTestUI(t, nil)
	d := newExportDialog(ui.AppUI)

	assert.Equal(t, "Enter a header in the Paste field first.", d.saveTemplate())

	d.paste.SetText(" Time,Temp ")
	assert.Equal(t, "Template saved.", d.saveTemplate())
	assert.Equal(t, []string{"Time,Temp"}, ui.settings.HeaderTemplates)
	assert.Equal(t, []string{"Time,Temp"}, d.templates.Options)
	assert.Equal(t, "This template already exists.", d.saveTemplate())

	d.source.SetSelected(headerTemplate)
	d.templates.SetSelected("Time,Temp")
	opts, err := d.form().options(time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "Temp"}, opts.CustomHeader)
	d.deleteTemplate()
	assert.Empty(t, ui.settings.HeaderTemplates)
	assert.Empty(t, d.templates.Options)
	assert.Equal(t, "", d.templates.Selected)
}

func TestExportCSVWritesConsole(t *testing.T) {
	ui := newTestUI(t, nil)
	stamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	ui.console.Append(monitor.NewEntry(stamp, "21,40"), monitor.NewEntry(stamp.Add(time.Second), "22,41"))

	path := filepath.Join(t.TempDir(), "out.csv")
	n, err := ui.exportCSV(path, monitor.CSVExportOptions{CustomHeader: []string{"Temp", "Hum"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Temp,Hum\n21,40\n22,41\n", string(data))
}
