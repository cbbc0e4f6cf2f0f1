package midi

import (
	"fmt"
	"strings"
)

// DeviceNotFoundError means no MIDI port matched the configured name or
// discovery hint. Fatal at startup; the daemon cannot run without the surface.
type DeviceNotFoundError struct {
	Hint string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("no MIDI port matching %q found", e.Hint)
}

// AmbiguousDeviceError means discovery matched more than one port and the
// config does not say which to use.
type AmbiguousDeviceError struct {
	Hint    string
	Matches []string
}

func (e *AmbiguousDeviceError) Error() string {
	return fmt.Sprintf("multiple MIDI ports match %q: %s (set the port explicitly in the config)",
		e.Hint, strings.Join(e.Matches, ", "))
}
