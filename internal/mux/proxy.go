package mux

import (
	"fmt"

	"github.com/PixPMusic/gopher-apc/internal/apc"
)

// ZoneError reports a proxy access outside the proxy's assigned zone.
type ZoneError struct {
	Zone apc.Zone
}

func (e *ZoneError) Error() string {
	return fmt.Sprintf("control outside assigned zone %s", e.Zone)
}

// Proxy is a per-plugin virtual view of one zone. It mirrors every LED
// state its plugin requested and, for the horizontal zone, the last fader
// values seen while the plugin was foreground. The mirror persists across
// foreground/background switches, so a plugin resumes exactly where it left
// off when its zone is bound again.
type Proxy struct {
	mux  *Multiplexer
	reg  *registration
	zone apc.Zone

	// Guarded by mux.mu. leds is indexed by button index within the zone.
	leds   []apc.LEDState
	faders [apc.NumFaders]apc.FaderValue
}

func newProxy(m *Multiplexer, reg *registration, zone apc.Zone) *Proxy {
	return &Proxy{
		mux:  m,
		reg:  reg,
		zone: zone,
		leds: make([]apc.LEDState, len(apc.ZoneButtons(zone))),
	}
}

// Zone returns the zone this proxy stands in for.
func (p *Proxy) Zone() apc.Zone {
	return p.zone
}

// SetLED records the desired state for a button in the proxy's zone and,
// if the proxy is currently foreground, writes it to the hardware. While
// background the state is only remembered; it reaches the hardware in bulk
// the next time the zone is bound to this proxy.
func (p *Proxy) SetLED(ctl apc.Control, state apc.LEDState) error {
	if ctl.Zone != p.zone || ctl.Kind != apc.KindButton {
		return &ZoneError{Zone: p.zone}
	}
	if int(ctl.Index) >= len(p.leds) {
		return &ZoneError{Zone: p.zone}
	}
	if !apc.SupportsLED(ctl, state) {
		return &apc.UnsupportedStateError{Control: ctl, State: state}
	}

	p.mux.mu.Lock()
	defer p.mux.mu.Unlock()
	p.leds[ctl.Index] = state
	if p.mux.bound[p.zone] == p.reg {
		return p.mux.dev.SetLED(ctl, state)
	}
	return nil
}

// LED returns the mirrored state for a button in the proxy's zone.
func (p *Proxy) LED(ctl apc.Control) apc.LEDState {
	if ctl.Zone != p.zone || ctl.Kind != apc.KindButton || int(ctl.Index) >= len(p.leds) {
		return apc.LEDOff
	}
	p.mux.mu.Lock()
	defer p.mux.mu.Unlock()
	return p.leds[ctl.Index]
}

// FaderValue returns the mirrored value of a fader, regardless of whether
// the proxy is currently foreground. Only meaningful on the horizontal
// zone; values are unknown until the fader moved at least once while this
// proxy was foreground (or before it first came foreground).
func (p *Proxy) FaderValue(index uint8) (uint8, bool) {
	if p.zone != apc.ZoneHorizontal || index >= apc.NumFaders {
		return 0, false
	}
	p.mux.mu.Lock()
	defer p.mux.mu.Unlock()
	fv := p.faders[index]
	return fv.Value, fv.Known
}

// Foreground reports whether the zone is currently bound to this proxy.
func (p *Proxy) Foreground() bool {
	p.mux.mu.Lock()
	defer p.mux.mu.Unlock()
	return p.mux.bound[p.zone] == p.reg
}
