package apc

import "fmt"

// ProtocolError reports an inbound MIDI message that does not map to any
// control on the surface. Such messages are dropped and logged, they never
// surface as events.
type ProtocolError struct {
	Raw    []byte
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s (raw % X)", e.Reason, e.Raw)
}

// UnsupportedStateError reports an LED state a control's hardware class
// cannot display, for example a color on a single-color round button.
type UnsupportedStateError struct {
	Control Control
	State   LEDState
}

func (e *UnsupportedStateError) Error() string {
	return fmt.Sprintf("LED state %s not supported on %s", e.State, e.Control)
}
