package midi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Manager owns the rtmidi driver and hands out ports. The driver instance
// is held explicitly (rather than through the package-global registration)
// because virtual ports can only be created on a concrete driver.
type Manager struct {
	drv *rtmididrv.Driver
}

// NewManager initializes the MIDI driver.
func NewManager() (*Manager, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create MIDI driver: %w", err)
	}
	return &Manager{drv: drv}, nil
}

// Close shuts the driver down. Ports opened through this manager become
// unusable afterwards.
func (m *Manager) Close() {
	m.drv.Close()
}

// ListInPorts returns the names of available MIDI input ports.
func (m *Manager) ListInPorts() ([]string, error) {
	ins, err := m.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("failed to get MIDI inputs: %w", err)
	}
	return portNames(ins), nil
}

// ListOutPorts returns the names of available MIDI output ports.
func (m *Manager) ListOutPorts() ([]string, error) {
	outs, err := m.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("failed to get MIDI outputs: %w", err)
	}
	return portNames(outs), nil
}

func portNames[P fmt.Stringer](ports []P) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

// OpenPort opens the bidirectional connection to the surface. With an empty
// name it discovers the port by substring hint; exactly one input must
// match, otherwise DeviceNotFoundError or AmbiguousDeviceError.
func (m *Manager) OpenPort(name, hint string) (*Port, error) {
	ins, err := m.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("failed to get MIDI inputs: %w", err)
	}
	outs, err := m.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("failed to get MIDI outputs: %w", err)
	}

	var in drivers.In
	if name != "" {
		for _, candidate := range ins {
			if candidate.String() == name {
				in = candidate
				break
			}
		}
		if in == nil {
			return nil, &DeviceNotFoundError{Hint: name}
		}
	} else {
		matches := matchPorts(ins, hint)
		switch len(matches) {
		case 0:
			return nil, &DeviceNotFoundError{Hint: hint}
		case 1:
			in = matches[0]
		default:
			return nil, &AmbiguousDeviceError{Hint: hint, Matches: portNames(matches)}
		}
	}

	// The APC presents its output port under the same name as the input.
	var out drivers.Out
	for _, candidate := range outs {
		if candidate.String() == in.String() {
			out = candidate
			break
		}
	}
	if out == nil {
		return nil, &DeviceNotFoundError{Hint: in.String()}
	}

	return openPort(in, out)
}

// OpenVirtualPort creates a virtual bidirectional port pair under the given
// name, for exposing the surface to other MIDI software.
func (m *Manager) OpenVirtualPort(name string) (*Port, error) {
	in, err := m.drv.OpenVirtualIn(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual input %q: %w", name, err)
	}
	out, err := m.drv.OpenVirtualOut(name)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("failed to create virtual output %q: %w", name, err)
	}
	return openPort(in, out)
}

func matchPorts(ins []drivers.In, hint string) []drivers.In {
	var matches []drivers.In
	for _, in := range ins {
		if containsFold(in.String(), hint) {
			matches = append(matches, in)
		}
	}
	return matches
}
