package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"serial-monitor/config"
	"serial-monitor/monitor"
)

const noPortsLabel = "(No ports found)"

// listPorts enumerates the devices offered in the port selector.
var listPorts = monitor.ListPorts

// AppUI holds all UI state and widgets.
type AppUI struct {
	window    fyne.Window
	ctrl      *monitor.Controller
	queue     *monitor.Queue
	console   *monitor.Console
	settings  config.Settings
	configDir string
	log       logrus.FieldLogger

	// Widgets
	portSelect    *widget.Select
	refreshBtn    *widget.Button
	baudSelect    *widget.Select
	connectBtn    *widget.Button
	timestampChk  *widget.Check
	autoscrollChk *widget.Check
	keepTextChk   *widget.Check
	saveBtn       *widget.Button
	exportBtn     *widget.Button
	clearBtn      *widget.Button
	output        *widget.List
	sendEntry     *widget.Entry
	eolSelect     *widget.Select
	sendBtn       *widget.Button
	status        *widget.Label
	stats         *widget.Label

	// State, touched only on the UI thread.
	portDevices map[string]string // selector label -> device path
	statusSeq   int
	stopPoll    context.CancelFunc
}

// NewAppUI builds the window content. Received rows reach the console once
// Start is called.
func NewAppUI(window fyne.Window, ctrl *monitor.Controller, queue *monitor.Queue,
	settings config.Settings, configDir string, log logrus.FieldLogger) *AppUI {
	ui := &AppUI{
		window:      window,
		ctrl:        ctrl,
		queue:       queue,
		console:     monitor.NewConsole(monitor.MaxConsoleLines, settings.Timestamps),
		settings:    settings,
		configDir:   configDir,
		log:         log,
		portDevices: map[string]string{},
	}
	ui.build()

	ctrl.SetOnStateChange(func(st monitor.State) {
		fyne.Do(func() {
			if st == monitor.Connected {
				ui.setConnectedState()
			} else {
				ui.setDisconnectedState()
			}
		})
	})

	return ui
}

// Start launches the queue poll loop. Close stops it.
func (ui *AppUI) Start() {
	if ui.stopPoll != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	ui.stopPoll = cancel
	interval := time.Duration(ui.settings.PollIntervalMs) * time.Millisecond
	go monitor.Poll(ctx, interval, func() {
		fyne.Do(ui.flushQueue)
	})
}

func (ui *AppUI) build() {
	// Port selection
	ui.portSelect = widget.NewSelect([]string{}, nil)
	ui.portSelect.PlaceHolder = "Select port"
	ui.refreshBtn = widget.NewButton("Refresh", func() {
		ui.refreshPorts()
	})

	// Baud rate selection
	bauds := make([]string, len(monitor.BaudRates))
	for i, b := range monitor.BaudRates {
		bauds[i] = strconv.Itoa(b)
	}
	ui.baudSelect = widget.NewSelect(bauds, func(string) {
		ui.saveSettings()
	})
	ui.baudSelect.SetSelected(strconv.Itoa(ui.settings.BaudRate))
	if ui.baudSelect.Selected == "" {
		ui.baudSelect.SetSelected(strconv.Itoa(monitor.DefaultBaudRate))
	}

	ui.connectBtn = widget.NewButton("Connect", func() {
		ui.toggleConnection()
	})

	// Toggles
	ui.timestampChk = widget.NewCheck("Timestamps", func(checked bool) {
		ui.console.SetShowTimestamp(checked)
		ui.output.Refresh()
		ui.saveSettings()
	})
	ui.autoscrollChk = widget.NewCheck("Autoscroll", func(bool) {
		ui.saveSettings()
	})
	ui.keepTextChk = widget.NewCheck("Keep after send", func(bool) {
		ui.saveSettings()
	})

	ui.saveBtn = widget.NewButton("Save Log", func() {
		ui.showSaveDialog()
	})
	ui.exportBtn = widget.NewButton("Export CSV", func() {
		ui.showExportDialog()
	})
	ui.clearBtn = widget.NewButton("Clear", func() {
		ui.console.Clear()
		ui.output.Refresh()
	})

	// Console. Rows are copied out of the console under its own lock.
	ui.output = widget.NewList(
		func() int {
			return ui.console.Len()
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.TextStyle = fyne.TextStyle{Monospace: true}
			return label
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(ui.console.Line(id))
		},
	)

	// Send row
	ui.sendEntry = widget.NewEntry()
	ui.sendEntry.SetPlaceHolder("Type text to send… (Enter to send)")
	ui.sendEntry.OnSubmitted = func(string) {
		ui.send()
	}
	ui.eolSelect = widget.NewSelect(monitor.LineEndingLabels(), func(string) {
		ui.saveSettings()
	})
	ui.eolSelect.SetSelected(ui.settings.LineEnding)
	ui.sendBtn = widget.NewButton("Send", func() {
		ui.send()
	})

	ui.status = widget.NewLabel("")
	ui.stats = widget.NewLabel("")

	// Checks are set after every widget exists because SetChecked fires
	// OnChanged.
	ui.timestampChk.SetChecked(ui.settings.Timestamps)
	ui.autoscrollChk.SetChecked(ui.settings.Autoscroll)
	ui.keepTextChk.SetChecked(ui.settings.KeepText)
	ui.refreshPorts()

	// Layout
	controls := container.NewHBox(
		widget.NewLabel("Port:"),
		ui.portSelect,
		ui.refreshBtn,
		widget.NewLabel("Baud:"),
		ui.baudSelect,
		ui.connectBtn,
		layout.NewSpacer(),
		ui.timestampChk,
		ui.autoscrollChk,
		ui.keepTextChk,
		ui.saveBtn,
		ui.exportBtn,
		ui.clearBtn,
	)

	sendRow := container.NewBorder(nil, nil,
		widget.NewLabel("Send:"),
		container.NewHBox(widget.NewLabel("EOL:"), ui.eolSelect, ui.sendBtn),
		ui.sendEntry,
	)
	statusRow := container.NewHBox(ui.status, layout.NewSpacer(), ui.stats)

	content := container.NewBorder(controls, container.NewVBox(sendRow, statusRow), nil, nil, ui.output)
	ui.window.SetContent(content)
}

// Close stops polling, disconnects and persists settings.
func (ui *AppUI) Close() {
	if ui.stopPoll != nil {
		ui.stopPoll()
	}
	ui.ctrl.Disconnect()
	ui.saveSettings()
}

func (ui *AppUI) refreshPorts() {
	ports, err := listPorts()
	if err != nil {
		ui.log.WithError(err).Warn("Port enumeration failed")
		ui.setStatus(fmt.Sprintf("Port enumeration failed: %v", err), 5*time.Second)
	}

	ui.portDevices = make(map[string]string, len(ports))
	labels := make([]string, 0, len(ports))
	selected := ""
	for _, p := range ports {
		label := p.Label()
		ui.portDevices[label] = p.Device
		labels = append(labels, label)
		if p.Device == ui.settings.Port {
			selected = label
		}
	}
	if len(labels) == 0 {
		labels = append(labels, noPortsLabel)
	}
	if selected == "" {
		selected = labels[0]
	}

	ui.portSelect.Options = labels
	ui.portSelect.SetSelected(selected)
	ui.portSelect.Refresh()
}

// selectedDevice maps the selector label to a device path. Labels not built
// by refreshPorts fall back to their first word.
func (ui *AppUI) selectedDevice() string {
	label := ui.portSelect.Selected
	if device, ok := ui.portDevices[label]; ok {
		return device
	}
	if strings.HasPrefix(label, "(") {
		return ""
	}
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (ui *AppUI) toggleConnection() {
	if ui.ctrl.State() == monitor.Connected {
		ui.ctrl.Disconnect()
		ui.setDisconnectedState()
		ui.setStatus("Disconnected", 2*time.Second)
		return
	}
	ui.connect()
}

func (ui *AppUI) connect() {
	device := ui.selectedDevice()
	if device == "" {
		ui.appendEntry(monitor.InfoEntry("No ports to open."))
		return
	}

	baud, err := strconv.Atoi(ui.baudSelect.Selected)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid baud rate: %s", ui.baudSelect.Selected), ui.window)
		return
	}

	if err := ui.ctrl.Connect(device, baud); err != nil {
		cause := errors.Cause(err)
		ui.appendEntry(monitor.ErrorEntry("Could not open %s @ %d: %v", device, baud, cause))
		ui.setStatus(fmt.Sprintf("Failed to connect: %v", cause), 5*time.Second)
		return
	}

	ui.settings.Port = device
	ui.saveSettings()
	ui.setConnectedState()
	ui.setStatus(fmt.Sprintf("Connected: %s @ %d", device, baud), 3*time.Second)
}

func (ui *AppUI) setConnectedState() {
	ui.connectBtn.SetText("Disconnect")
	ui.portSelect.Disable()
	ui.refreshBtn.Disable()
	ui.baudSelect.Disable()
}

func (ui *AppUI) setDisconnectedState() {
	ui.connectBtn.SetText("Connect")
	ui.portSelect.Enable()
	ui.refreshBtn.Enable()
	ui.baudSelect.Enable()
}

func (ui *AppUI) send() {
	if ui.ctrl.State() != monitor.Connected {
		ui.setStatus("Not connected", 2*time.Second)
		return
	}

	eol, err := monitor.ParseLineEnding(ui.eolSelect.Selected)
	if err != nil {
		eol = monitor.EOLNone
	}

	if _, err := ui.ctrl.Send(ui.sendEntry.Text, eol); err != nil {
		if errors.Is(err, monitor.ErrNotConnected) {
			ui.setStatus("Not connected", 2*time.Second)
		}
		// Write failures are already queued as console rows.
		return
	}
	ui.updateStats()
	if !ui.keepTextChk.Checked {
		ui.sendEntry.SetText("")
	}
}

// flushQueue runs on the UI thread for every poll tick.
func (ui *AppUI) flushQueue() {
	if ui.console.Pump(ui.queue) == 0 {
		return
	}
	ui.output.Refresh()
	if ui.autoscrollChk.Checked {
		ui.output.ScrollToBottom()
	}
	ui.updateStats()
}

func (ui *AppUI) updateStats() {
	ui.stats.SetText(ui.ctrl.Stats().Snapshot().String())
}

// appendEntry adds a row produced on the UI thread itself.
func (ui *AppUI) appendEntry(e monitor.Entry) {
	ui.console.Append(e)
	ui.output.Refresh()
	if ui.autoscrollChk.Checked {
		ui.output.ScrollToBottom()
	}
}

// setStatus shows msg on the status bar for d.
func (ui *AppUI) setStatus(msg string, d time.Duration) {
	ui.statusSeq++
	seq := ui.statusSeq
	ui.status.SetText(msg)
	time.AfterFunc(d, func() {
		fyne.Do(func() {
			if ui.statusSeq == seq {
				ui.status.SetText("")
			}
		})
	})
}

func (ui *AppUI) showSaveDialog() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()

		path := localPath(writer.URI())
		if err := monitor.SaveLog(path, ui.console.Text()); err != nil {
			ui.log.WithError(err).Warn("Save failed")
			ui.setStatus(fmt.Sprintf("Save failed: %v", errors.Cause(err)), 5*time.Second)
			return
		}
		ui.setStatus(fmt.Sprintf("Saved: %s", path), 3*time.Second)
	}, ui.window)
	fd.SetFileName("serial_log.txt")
	fd.Show()
}

func (ui *AppUI) saveSettings() {
	// Widgets fire OnChanged while build() is still wiring them up.
	if ui.keepTextChk == nil || ui.eolSelect == nil || ui.status == nil {
		return
	}
	if baud, err := strconv.Atoi(ui.baudSelect.Selected); err == nil {
		ui.settings.BaudRate = baud
	}
	ui.settings.LineEnding = ui.eolSelect.Selected
	ui.settings.Timestamps = ui.timestampChk.Checked
	ui.settings.Autoscroll = ui.autoscrollChk.Checked
	ui.settings.KeepText = ui.keepTextChk.Checked

	if ui.configDir == "" {
		return
	}
	if err := ui.settings.Save(ui.configDir); err != nil {
		ui.log.WithError(err).Warn("Could not save settings")
	}
}

// localPath turns a file URI into an OS path, dropping the leading slash
// fyne puts in front of Windows drive letters.
func localPath(uri fyne.URI) string {
	p := uri.Path()
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return p
}
