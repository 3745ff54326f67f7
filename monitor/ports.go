package monitor

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is preselected in the baud selector.
const DefaultBaudRate = 115200

// BaudRates are the selectable baud rates.
var BaudRates = []int{
	300, 600, 1200, 2400, 4800, 9600, 19200,
	38400, 57600, 115200, 230400, 460800, 921600,
}

// IsStandardBaudRate reports whether baud is one of BaudRates.
func IsStandardBaudRate(baud int) bool {
	for _, b := range BaudRates {
		if b == baud {
			return true
		}
	}
	return false
}

// PortInfo describes one serial device found on the host.
type PortInfo struct {
	Device       string
	Description  string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// Label is the text shown in the device selector.
func (p PortInfo) Label() string {
	return fmt.Sprintf("%s — %s", p.Device, p.Description)
}

var (
	detailedPortsList = enumerator.GetDetailedPortsList
	portsList         = serial.GetPortsList
)

// ListPorts returns the serial devices on the host sorted by device path.
// When detailed enumeration is unavailable it falls back to bare names.
func ListPorts() ([]PortInfo, error) {
	details, err := detailedPortsList()
	if err != nil {
		names, nerr := portsList()
		if nerr != nil {
			return nil, errors.Wrap(nerr, "failed to list serial ports")
		}
		ports := make([]PortInfo, 0, len(names))
		for _, name := range names {
			ports = append(ports, PortInfo{Device: name, Description: "n/a"})
		}
		sortPorts(ports)
		return ports, nil
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Device:       d.Name,
			Description:  describe(d),
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	sortPorts(ports)
	return ports, nil
}

func describe(d *enumerator.PortDetails) string {
	switch {
	case d.Product != "":
		return d.Product
	case d.IsUSB:
		return fmt.Sprintf("USB %s:%s", d.VID, d.PID)
	default:
		return "n/a"
	}
}

func sortPorts(ports []PortInfo) {
	sort.Slice(ports, func(i, j int) bool { return ports[i].Device < ports[j].Device })
}
