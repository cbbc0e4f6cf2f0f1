package mux

import (
	"github.com/PixPMusic/gopher-apc/internal/apc"
)

// Plugin is one unit of user logic sharing the surface. A plugin talks to
// the hardware exclusively through the proxies handed to OnRegistered and
// receives input only while the respective zone is bound to it.
//
// Event callbacks run on a dispatcher goroutine owned by the multiplexer,
// one per plugin: callbacks for the same plugin never run concurrently with
// each other, but a plugin must not assume it shares a goroutine with other
// plugins. Long-running work belongs in the plugin's own goroutines.
type Plugin interface {
	Name() string

	// OnRegistered delivers one proxy per claimed zone. Called before any
	// other callback.
	OnRegistered(proxies map[apc.Zone]*Proxy)

	// OnUnregistered is called after the last event has been delivered.
	// The proxies are dead at this point.
	OnUnregistered()

	// OnActivated fires when the plugin becomes foreground on a zone. From
	// here until OnDeactivated, input from that zone is relayed and LED
	// writes take immediate hardware effect.
	OnActivated(zone apc.Zone)

	// OnDeactivated fires when the plugin goes background on a zone. LED
	// writes are still remembered and replayed when the zone comes back.
	OnDeactivated(zone apc.Zone)

	OnButtonPressed(ctl apc.Control)
	OnButtonReleased(ctl apc.Control)

	// OnFaderChanged reports fader movement. Synthetic events replay, at
	// activation time, movements that happened while the plugin was
	// backgrounded; ignore them to keep pre-background values until the
	// user touches the fader again.
	OnFaderChanged(ctl apc.Control, value uint8, synthetic bool)
}

// ErrorReporter is optionally implemented by plugins that want to hear
// about asynchronous failures, such as an LED write rejected while their
// mirror was being replayed during activation.
type ErrorReporter interface {
	OnError(err error)
}

// BasePlugin provides no-op callbacks and proxy bookkeeping so concrete
// plugins only override what they use.
type BasePlugin struct {
	PluginName string

	proxies map[apc.Zone]*Proxy
}

func (b *BasePlugin) Name() string { return b.PluginName }

func (b *BasePlugin) OnRegistered(proxies map[apc.Zone]*Proxy) {
	b.proxies = proxies
}

func (b *BasePlugin) OnUnregistered() {
	b.proxies = nil
}

// Proxy returns the proxy for a claimed zone, nil if the zone was not
// claimed or the plugin is not registered.
func (b *BasePlugin) Proxy(zone apc.Zone) *Proxy {
	return b.proxies[zone]
}

// SetLED writes to the mirror of the proxy owning the control's zone.
func (b *BasePlugin) SetLED(ctl apc.Control, state apc.LEDState) error {
	p := b.proxies[ctl.Zone]
	if p == nil {
		return &ZoneError{Zone: ctl.Zone}
	}
	return p.SetLED(ctl, state)
}

func (b *BasePlugin) OnActivated(apc.Zone)                    {}
func (b *BasePlugin) OnDeactivated(apc.Zone)                  {}
func (b *BasePlugin) OnButtonPressed(apc.Control)             {}
func (b *BasePlugin) OnButtonReleased(apc.Control)            {}
func (b *BasePlugin) OnFaderChanged(apc.Control, uint8, bool) {}
