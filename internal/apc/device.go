package apc

import (
	"fmt"
	"log"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// Transport is the outbound half of the MIDI connection to the surface.
// The inbound half is wired by feeding received messages to HandleMessage.
type Transport interface {
	Send(msg midi.Message) error
}

// Device models one APC mini attached through a Transport. It decodes the
// raw note/CC stream into typed control events and encodes LED states back
// into the velocity-addressed messages the hardware understands.
//
// The device keeps a last-written cache per LED so that unchanged states are
// not resent; the APC drops MIDI messages arriving at a very high rate, so
// fewer writes means fewer chances to lose one. The cache is an optimization
// only: Resync force-writes all of it when the hardware state is suspect
// (e.g. after USB ports powered down during system standby).
type Device struct {
	mu      sync.Mutex
	out     Transport
	leds    map[Control]LEDState
	faders  [NumFaders]FaderValue
	enabled bool

	// Event callbacks, invoked from the transport's listener goroutine
	// while events are enabled. Assign before calling EnableEvents.
	OnButtonPressed  func(Control)
	OnButtonReleased func(Control)
	OnFaderChanged   func(Control, uint8)

	// OnDiagnostic receives non-fatal decode/encode problems. Defaults to
	// the standard logger when nil.
	OnDiagnostic func(error)
}

// NewDevice creates a device on the given transport with all LEDs assumed off.
func NewDevice(out Transport) *Device {
	leds := make(map[Control]LEDState, NumMatrix+NumHorizontal+NumVertical)
	for _, c := range AllButtons() {
		leds[c] = LEDOff
	}
	return &Device{out: out, leds: leds}
}

// EnableEvents starts delivering decoded events to the callbacks.
func (d *Device) EnableEvents() {
	d.mu.Lock()
	d.enabled = true
	d.mu.Unlock()
}

// DisableEvents stops event delivery. Messages received while disabled are
// discarded, matching the hardware being in nobody's hands.
func (d *Device) DisableEvents() {
	d.mu.Lock()
	d.enabled = false
	d.mu.Unlock()
}

func (d *Device) diagnostic(err error) {
	if d.OnDiagnostic != nil {
		d.OnDiagnostic(err)
		return
	}
	log.Printf("apc: %v", err)
}

// HandleMessage decodes one raw inbound message. Wire this to the
// transport's listener. Unknown or out-of-range messages are dropped with a
// diagnostic and never become events.
func (d *Device) HandleMessage(msg midi.Message) {
	d.mu.Lock()
	enabled := d.enabled
	d.mu.Unlock()

	var channel, key, velocity, value uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		ctl, ok := ControlForNote(key)
		if !ok {
			d.diagnostic(&ProtocolError{Raw: msg.Bytes(), Reason: fmt.Sprintf("note %d maps to no control", key)})
			return
		}
		if !enabled {
			return
		}
		// The APC signals releases both as note-off and as note-on with
		// zero velocity depending on firmware; treat them alike.
		if velocity > 0 {
			if d.OnButtonPressed != nil {
				d.OnButtonPressed(ctl)
			}
		} else if d.OnButtonReleased != nil {
			d.OnButtonReleased(ctl)
		}
	case msg.GetNoteOff(&channel, &key, &velocity):
		ctl, ok := ControlForNote(key)
		if !ok {
			d.diagnostic(&ProtocolError{Raw: msg.Bytes(), Reason: fmt.Sprintf("note %d maps to no control", key)})
			return
		}
		if enabled && d.OnButtonReleased != nil {
			d.OnButtonReleased(ctl)
		}
	case msg.GetControlChange(&channel, &key, &value):
		ctl, ok := ControlForCC(key)
		if !ok {
			d.diagnostic(&ProtocolError{Raw: msg.Bytes(), Reason: fmt.Sprintf("controller %d maps to no fader", key)})
			return
		}
		d.mu.Lock()
		d.faders[ctl.Index] = FaderValue{Value: value, Known: true}
		d.mu.Unlock()
		if enabled && d.OnFaderChanged != nil {
			d.OnFaderChanged(ctl, value)
		}
	default:
		d.diagnostic(&ProtocolError{Raw: msg.Bytes(), Reason: "unexpected message type"})
	}
}

// SetLED displays state on the given button, skipping the write when the
// cache says the hardware already shows it.
func (d *Device) SetLED(c Control, state LEDState) error {
	return d.setLED(c, state, false)
}

// ForceLED displays state unconditionally, bypassing the cache. Use when
// the hardware state is not trusted.
func (d *Device) ForceLED(c Control, state LEDState) error {
	return d.setLED(c, state, true)
}

func (d *Device) setLED(c Control, state LEDState, force bool) error {
	if !SupportsLED(c, state) {
		return &UnsupportedStateError{Control: c, State: state}
	}
	note, ok := c.Note()
	if !ok {
		return &UnsupportedStateError{Control: c, State: state}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !force && d.leds[c] == state {
		return nil
	}
	d.leds[c] = state
	if err := d.out.Send(midi.NoteOn(0, note, uint8(state))); err != nil {
		return fmt.Errorf("set LED %s: %w", c, err)
	}
	return nil
}

// Reset turns every LED off, writing unconditionally.
func (d *Device) Reset() error {
	var firstErr error
	for _, c := range AllButtons() {
		if err := d.setLED(c, LEDOff, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Blank turns every LED off on the hardware without touching the cache,
// so a later Resync restores the previous picture. Used right before the
// system suspends and the surface loses power anyway.
func (d *Device) Blank() error {
	var firstErr error
	for _, c := range AllButtons() {
		note, _ := c.Note()
		if err := d.out.Send(midi.NoteOn(0, note, uint8(LEDOff))); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("blank %s: %w", c, err)
		}
	}
	return firstErr
}

// Resync rewrites every cached LED state to the hardware. Use after the
// surface may have lost state, e.g. when USB ports power down in standby.
func (d *Device) Resync() error {
	var firstErr error
	for _, c := range AllButtons() {
		d.mu.Lock()
		state := d.leds[c]
		d.mu.Unlock()
		if err := d.setLED(c, state, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LED returns the last state written for a button.
func (d *Device) LED(c Control) LEDState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leds[c]
}

// Fader returns the last reported value of fader index, if any movement has
// been seen since the port was opened.
func (d *Device) Fader(index uint8) FaderValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index >= NumFaders {
		return FaderValue{}
	}
	return d.faders[index]
}

// Faders returns a snapshot of all fader values.
func (d *Device) Faders() [NumFaders]FaderValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faders
}
