package plugins

import (
	"log"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/PixPMusic/gopher-apc/internal/apc"
	"github.com/PixPMusic/gopher-apc/internal/midi"
	"github.com/PixPMusic/gopher-apc/internal/mux"
)

// Passthrough exposes the surface to other MIDI software through a virtual
// port named after the plugin instance. Hardware events on the claimed
// zones go out as the raw note/CC numbers of the APC; note-on messages
// received on the virtual port set LEDs through the proxy mirror, so an
// external program keeps its lights across foreground switches like any
// native plugin. Instantiate it several times to multiplex the APC to
// several programs. SHIFT is not passed through; the multiplexer owns it.
type Passthrough struct {
	mux.BasePlugin

	manager *midi.Manager
	port    *midi.Port
}

func NewPassthrough(name string, manager *midi.Manager) *Passthrough {
	return &Passthrough{
		BasePlugin: mux.BasePlugin{PluginName: name},
		manager:    manager,
	}
}

func (p *Passthrough) OnRegistered(proxies map[apc.Zone]*mux.Proxy) {
	p.BasePlugin.OnRegistered(proxies)

	port, err := p.manager.OpenVirtualPort(p.Name())
	if err != nil {
		log.Printf("passthrough %s: %v", p.Name(), err)
		return
	}
	if err := port.Listen(p.handleMessage); err != nil {
		log.Printf("passthrough %s: %v", p.Name(), err)
		port.Close()
		return
	}
	p.port = port
}

func (p *Passthrough) OnUnregistered() {
	if p.port != nil {
		p.port.Close()
		p.port = nil
	}
	p.BasePlugin.OnUnregistered()
}

func (p *Passthrough) OnButtonPressed(ctl apc.Control) {
	if note, ok := ctl.Note(); ok {
		p.send(gomidi.NoteOn(0, note, 127))
	}
}

func (p *Passthrough) OnButtonReleased(ctl apc.Control) {
	if note, ok := ctl.Note(); ok {
		p.send(gomidi.NoteOff(0, note))
	}
}

func (p *Passthrough) OnFaderChanged(ctl apc.Control, value uint8, synthetic bool) {
	if cc, ok := ctl.CC(); ok {
		p.send(gomidi.ControlChange(0, cc, value))
	}
}

func (p *Passthrough) send(msg gomidi.Message) {
	if p.port == nil {
		return
	}
	if err := p.port.Send(msg); err != nil {
		log.Printf("passthrough %s: send: %v", p.Name(), err)
	}
}

// handleMessage applies LED commands arriving on the virtual port. Only
// note-on messages addressing buttons in the claimed zones are accepted;
// everything else is dropped with a diagnostic, mirroring how the device
// model treats unknown hardware input.
func (p *Passthrough) handleMessage(msg gomidi.Message) {
	var channel, key, velocity uint8
	if !msg.GetNoteOn(&channel, &key, &velocity) {
		log.Printf("passthrough %s: dropping unsupported message % X", p.Name(), msg.Bytes())
		return
	}
	ctl, ok := apc.ControlForNote(key)
	if !ok || ctl.Kind != apc.KindButton {
		log.Printf("passthrough %s: dropping out-of-range note %d", p.Name(), key)
		return
	}
	proxy := p.Proxy(ctl.Zone)
	if proxy == nil {
		log.Printf("passthrough %s: dropping note %d outside claimed zones", p.Name(), key)
		return
	}
	if err := proxy.SetLED(ctl, apc.LEDState(velocity)); err != nil {
		log.Printf("passthrough %s: %v", p.Name(), err)
	}
}
