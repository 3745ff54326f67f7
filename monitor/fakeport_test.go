package monitor

import (
	"errors"
	"sync"

	"go.bug.st/serial"

	"serial-monitor/monitor/monitortest"
)

// fakeOpener hands out ports in order and records what was opened.
type fakeOpener struct {
	mu      sync.Mutex
	ports   []*monitortest.Port
	err     error
	devices []string
	modes   []serial.Mode
}

func (o *fakeOpener) open(device string, mode *serial.Mode) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.devices = append(o.devices, device)
	o.modes = append(o.modes, *mode)
	if o.err != nil {
		return nil, o.err
	}
	if len(o.ports) == 0 {
		return nil, errors.New("no such device")
	}
	p := o.ports[0]
	o.ports = o.ports[1:]
	return p, nil
}
