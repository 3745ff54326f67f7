package ui

import (
	"fmt"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"serial-monitor/monitor"
)

// Header sources offered by the export dialog.
const (
	headerNone     = "None"
	headerTemplate = "Template"
	headerPaste    = "Paste"
	headerFile     = "File"
)

// exportForm is what the export dialog collects.
type exportForm struct {
	IncludeTimestamps bool
	FilterByTime      bool
	Start, End        string

	HeaderSource string
	Template     string
	Pasted       string
	HeaderFile   string
}

// options converts the form to CSV export options. now anchors the time
// window to today.
func (f exportForm) options(now time.Time) (monitor.CSVExportOptions, error) {
	opts := monitor.CSVExportOptions{
		IncludeTimestamps: f.IncludeTimestamps,
		FilterByTime:      f.FilterByTime,
	}
	if f.FilterByTime {
		var err error
		opts.StartTime, opts.EndTime, err = parseTimeWindow(f.Start, f.End, now)
		if err != nil {
			return opts, err
		}
	}

	switch f.HeaderSource {
	case headerTemplate:
		opts.CustomHeader = monitor.SplitHeader(f.Template)
	case headerPaste:
		opts.CustomHeader = monitor.SplitHeader(f.Pasted)
	case headerFile:
		if f.HeaderFile == "" {
			break
		}
		header, err := monitor.ParseCustomHeader(f.HeaderFile)
		if err != nil {
			return opts, fmt.Errorf("failed to load header: %w", err)
		}
		opts.CustomHeader = header
	}
	return opts, nil
}

type exportDialog struct {
	ui *AppUI

	timestamps *widget.Check
	filter     *widget.Check
	start      *widget.Entry
	end        *widget.Entry

	source     *widget.Select
	templates  *widget.Select
	saveBtn    *widget.Button
	deleteBtn  *widget.Button
	paste      *widget.Entry
	pathLabel  *widget.Label
	browseBtn  *widget.Button
	headerPath string
}

func newExportDialog(ui *AppUI) *exportDialog {
	d := &exportDialog{ui: ui}

	d.timestamps = widget.NewCheck("Include timestamps", nil)
	d.timestamps.SetChecked(ui.timestampChk.Checked)

	d.start = widget.NewEntry()
	d.start.SetPlaceHolder("Start (HH:MM:SS)")
	d.end = widget.NewEntry()
	d.end.SetPlaceHolder("End (HH:MM:SS)")
	d.filter = widget.NewCheck("Filter by time range", d.setFilter)
	d.setFilter(false)

	d.templates = widget.NewSelect(ui.settings.HeaderTemplates, nil)
	d.templates.PlaceHolder = "Select saved template..."
	d.paste = widget.NewEntry()
	d.paste.SetPlaceHolder("e.g. Time,Temp,Humidity")
	d.saveBtn = widget.NewButton("Save Current as Template", func() {
		if msg := d.saveTemplate(); msg != "" {
			dialog.ShowInformation("Template", msg, ui.window)
		}
	})
	d.deleteBtn = widget.NewButton("Delete Selected", d.deleteTemplate)
	d.pathLabel = widget.NewLabel("No file selected")
	d.browseBtn = widget.NewButton("Browse...", d.browse)

	d.source = widget.NewSelect([]string{headerNone, headerTemplate, headerPaste, headerFile}, d.setSource)
	d.source.SetSelected(headerNone)
	return d
}

func (d *exportDialog) setFilter(on bool) {
	if on {
		d.start.Enable()
		d.end.Enable()
	} else {
		d.start.Disable()
		d.end.Disable()
	}
}

// setSource enables only the inputs of the chosen header source.
func (d *exportDialog) setSource(source string) {
	for _, w := range []fyne.Disableable{d.templates, d.deleteBtn, d.paste, d.saveBtn, d.browseBtn} {
		w.Disable()
	}
	switch source {
	case headerTemplate:
		d.templates.Enable()
		d.deleteBtn.Enable()
	case headerPaste:
		d.paste.Enable()
		d.saveBtn.Enable()
	case headerFile:
		d.browseBtn.Enable()
	}
}

// saveTemplate stores the pasted header and returns the message to show.
func (d *exportDialog) saveTemplate() string {
	text := strings.TrimSpace(d.paste.Text)
	if text == "" {
		return "Enter a header in the Paste field first."
	}
	if !d.ui.settings.AddTemplate(text) {
		return "This template already exists."
	}
	d.ui.saveSettings()
	d.templates.Options = d.ui.settings.HeaderTemplates
	d.templates.Refresh()
	return "Template saved."
}

func (d *exportDialog) deleteTemplate() {
	sel := d.templates.Selected
	if sel == "" {
		return
	}
	d.ui.settings.RemoveTemplate(sel)
	d.ui.saveSettings()
	d.templates.Options = d.ui.settings.HeaderTemplates
	d.templates.ClearSelected()
	d.templates.Refresh()
}

func (d *exportDialog) browse() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		d.headerPath = localPath(reader.URI())
		d.pathLabel.SetText(reader.URI().Name())
		reader.Close()
	}, d.ui.window)
	fd.Show()
}

func (d *exportDialog) form() exportForm {
	return exportForm{
		IncludeTimestamps: d.timestamps.Checked,
		FilterByTime:      d.filter.Checked,
		Start:             d.start.Text,
		End:               d.end.Text,
		HeaderSource:      d.source.Selected,
		Template:          d.templates.Selected,
		Pasted:            d.paste.Text,
		HeaderFile:        d.headerPath,
	}
}

func (d *exportDialog) content() fyne.CanvasObject {
	return widget.NewForm(
		widget.NewFormItem("Timestamps", d.timestamps),
		widget.NewFormItem("Time Filter", d.filter),
		widget.NewFormItem("Start", d.start),
		widget.NewFormItem("End", d.end),
		widget.NewFormItem("Header Source", d.source),
		widget.NewFormItem("Template", container.NewHBox(d.templates, d.deleteBtn)),
		widget.NewFormItem("Paste Header", container.NewVBox(d.paste, d.saveBtn)),
		widget.NewFormItem("Header File", container.NewHBox(d.pathLabel, d.browseBtn)),
	)
}

// exportCSV writes the console to path and returns the number of records.
func (ui *AppUI) exportCSV(path string, opts monitor.CSVExportOptions) (int, error) {
	opts.FilePath = path
	return monitor.ExportCSV(ui.console.Entries(), opts)
}

func (ui *AppUI) showExportDialog() {
	if ui.console.Len() == 0 {
		dialog.ShowInformation("Export", "No data to export.", ui.window)
		return
	}

	d := newExportDialog(ui)
	dialog.ShowCustomConfirm("Export CSV Options", "Export", "Cancel", d.content(), func(confirmed bool) {
		if !confirmed {
			return
		}
		opts, err := d.form().options(time.Now())
		if err != nil {
			dialog.ShowError(err, ui.window)
			return
		}

		fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			writer.Close()

			n, err := ui.exportCSV(localPath(writer.URI()), opts)
			if err != nil {
				dialog.ShowError(err, ui.window)
				return
			}
			dialog.ShowInformation("Export", fmt.Sprintf("Exported %d lines to CSV.", n), ui.window)
		}, ui.window)
		fd.SetFileName("serial_data.csv")
		fd.Show()
	}, ui.window)
}

// parseTimeWindow turns HH:MM:SS bounds into times on the day of now. An
// empty start means the beginning of the day, an empty end means now.
func parseTimeWindow(start, end string, now time.Time) (time.Time, time.Time, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := now

	if s := strings.TrimSpace(start); s != "" {
		t, err := time.Parse("15:04:05", s)
		if err != nil {
			return from, to, fmt.Errorf("invalid start time format (use HH:MM:SS): %s", s)
		}
		from = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	}
	if e := strings.TrimSpace(end); e != "" {
		t, err := time.Parse("15:04:05", e)
		if err != nil {
			return from, to, fmt.Errorf("invalid end time format (use HH:MM:SS): %s", e)
		}
		to = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 999999999, now.Location())
	}
	return from, to, nil
}
