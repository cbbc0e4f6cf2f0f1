package mux

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/PixPMusic/gopher-apc/internal/apc"
)

// queueSize bounds how many undelivered events a single plugin may have
// outstanding. A plugin that stalls longer than this loses events rather
// than stalling routing for everyone else.
const queueSize = 64

// registration ties a plugin to its proxies and its dispatcher goroutine.
type registration struct {
	id      string
	plugin  Plugin
	zones   apc.Zone
	proxies map[apc.Zone]*Proxy

	// queue carries plugin callbacks to the dispatcher goroutine. Sends
	// happen only under the multiplexer lock and only while closed is
	// false, so closing the channel is race-free.
	queue  chan func()
	done   chan struct{}
	closed bool
}

// Multiplexer shares one APC mini between several plugins. Each zone is
// bound to at most one plugin at a time; the operator holds SHIFT and taps
// a button in a zone to hand that zone to the next registered plugin, in
// registration order, wrapping around. SHIFT itself is therefore never
// available to plugins.
type Multiplexer struct {
	mu        sync.Mutex
	dev       *apc.Device
	rosters   map[apc.Zone][]*registration
	bound     map[apc.Zone]*registration
	regs      map[Plugin]*registration
	shiftHeld bool
}

// New takes ownership of the device: it resets the lights, installs the
// event callbacks and starts routing.
func New(dev *apc.Device) *Multiplexer {
	m := &Multiplexer{
		dev: dev,
		rosters: map[apc.Zone][]*registration{
			apc.ZoneMatrix:     nil,
			apc.ZoneHorizontal: nil,
			apc.ZoneVertical:   nil,
		},
		bound: make(map[apc.Zone]*registration),
		regs:  make(map[Plugin]*registration),
	}

	dev.DisableEvents()
	if err := dev.Reset(); err != nil {
		log.Printf("mux: reset failed: %v", err)
	}
	dev.OnButtonPressed = m.handlePress
	dev.OnButtonReleased = m.handleRelease
	dev.OnFaderChanged = m.handleFader
	dev.EnableEvents()

	return m
}

// Register claims zones for a plugin and creates one proxy per zone. The
// plugin becomes foreground immediately on every claimed zone that has no
// other registrant. Zones must be a non-empty subset of the plugin zones;
// SHIFT cannot be claimed.
func (m *Multiplexer) Register(plugin Plugin, zones apc.Zone) error {
	if zones == 0 || !apc.PluginZones.Contains(zones) {
		return fmt.Errorf("invalid zone claim %s for plugin %s", zones, plugin.Name())
	}

	reg := &registration{
		id:      uuid.New().String(),
		plugin:  plugin,
		zones:   zones,
		proxies: make(map[apc.Zone]*Proxy),
		queue:   make(chan func(), queueSize),
		done:    make(chan struct{}),
	}
	for _, zone := range zones.Split() {
		reg.proxies[zone] = newProxy(m, reg, zone)
	}

	m.mu.Lock()
	if _, dup := m.regs[plugin]; dup {
		m.mu.Unlock()
		return fmt.Errorf("plugin %s is already registered", plugin.Name())
	}
	m.regs[plugin] = reg
	m.mu.Unlock()

	// The plugin sees its proxies before any event can reach it.
	plugin.OnRegistered(reg.proxies)
	go reg.dispatch()

	m.mu.Lock()
	for _, zone := range zones.Split() {
		m.rosters[zone] = append(m.rosters[zone], reg)
		if m.bound[zone] == nil {
			m.connectLocked(zone, reg)
		}
	}
	m.mu.Unlock()

	log.Printf("mux: registered %s on zones %s", plugin.Name(), zones)
	return nil
}

// Unregister removes a plugin. It is safe to call while events are being
// delivered to the plugin: delivery of in-flight events completes, no new
// ones follow, then OnUnregistered fires and the proxies are discarded.
// Zones the plugin held are handed to the next registrant, if any.
func (m *Multiplexer) Unregister(plugin Plugin) error {
	m.mu.Lock()
	reg, ok := m.regs[plugin]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("plugin %s is not registered", plugin.Name())
	}
	delete(m.regs, plugin)

	for _, zone := range reg.zones.Split() {
		roster := m.rosters[zone]
		idx := rosterIndex(roster, reg)
		if idx < 0 {
			continue
		}
		m.rosters[zone] = append(roster[:idx], roster[idx+1:]...)
		if m.bound[zone] == reg {
			m.disconnectLocked(zone)
			if next := nextAfterRemoval(m.rosters[zone], idx); next != nil {
				m.connectLocked(zone, next)
			}
		}
	}

	// No enqueues can follow: every send site holds the lock and checks
	// this flag.
	reg.closed = true
	m.mu.Unlock()

	close(reg.queue)
	<-reg.done
	plugin.OnUnregistered()

	log.Printf("mux: unregistered %s", plugin.Name())
	return nil
}

// Shutdown unregisters every plugin and blanks the surface.
func (m *Multiplexer) Shutdown() {
	m.mu.Lock()
	plugins := make([]Plugin, 0, len(m.regs))
	for p := range m.regs {
		plugins = append(plugins, p)
	}
	m.mu.Unlock()

	for _, p := range plugins {
		if err := m.Unregister(p); err != nil {
			log.Printf("mux: shutdown: %v", err)
		}
	}

	m.dev.DisableEvents()
	if err := m.dev.Reset(); err != nil {
		log.Printf("mux: shutdown reset failed: %v", err)
	}
}

// Resync force-writes the full LED state of every bound proxy back to the
// hardware. The transport is documented to drop messages under load and the
// surface forgets everything when USB power cycles, so this is the recovery
// path rather than an error path.
func (m *Multiplexer) Resync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.dev.Resync(); err != nil {
		log.Printf("mux: resync: %v", err)
	}
}

// Foreground returns the plugin currently bound to a zone.
func (m *Multiplexer) Foreground(zone apc.Zone) (Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg := m.bound[zone]; reg != nil {
		return reg.plugin, true
	}
	return nil, false
}

func (r *registration) dispatch() {
	for fn := range r.queue {
		fn()
	}
	close(r.done)
}

// enqueueLocked hands a callback to the plugin's dispatcher. Requires m.mu.
// When the plugin's queue is full the event is dropped with a diagnostic;
// a stuck plugin must not back-pressure the routing path.
func (m *Multiplexer) enqueueLocked(reg *registration, fn func()) {
	if reg.closed {
		return
	}
	select {
	case reg.queue <- fn:
	default:
		log.Printf("mux: event queue of %s full, dropping event", reg.plugin.Name())
	}
}

func rosterIndex(roster []*registration, reg *registration) int {
	for i, r := range roster {
		if r == reg {
			return i
		}
	}
	return -1
}

// nextAfterRemoval picks the registration that inherits a zone when the
// bound one at index idx was removed from the roster.
func nextAfterRemoval(roster []*registration, idx int) *registration {
	if len(roster) == 0 {
		return nil
	}
	return roster[idx%len(roster)]
}

// connectLocked makes reg the foreground owner of zone. The incoming
// proxy's complete LED mirror is written in ascending control order, so a
// partial transport failure still leaves a predictable prefix lit. This is
// the only bulk LED write path. Requires m.mu.
func (m *Multiplexer) connectLocked(zone apc.Zone, reg *registration) {
	if m.bound[zone] == reg {
		return
	}
	if old := m.bound[zone]; old != nil {
		m.disconnectLocked(zone)
	}

	proxy := reg.proxies[zone]
	for i, ctl := range apc.ZoneButtons(zone) {
		if err := m.dev.SetLED(ctl, proxy.leds[i]); err != nil {
			m.reportLocked(reg, fmt.Errorf("restoring %s: %w", ctl, err))
		}
	}
	m.bound[zone] = reg
	m.enqueueLocked(reg, func() { reg.plugin.OnActivated(zone) })

	if zone == apc.ZoneHorizontal {
		m.syncFadersLocked(reg, proxy)
	}
}

// disconnectLocked detaches the current owner of zone without touching the
// hardware: its mirror is preserved and the lights are about to be
// overwritten by the next owner anyway. Requires m.mu.
func (m *Multiplexer) disconnectLocked(zone apc.Zone) {
	reg := m.bound[zone]
	if reg == nil {
		return
	}
	m.bound[zone] = nil
	m.enqueueLocked(reg, func() { reg.plugin.OnDeactivated(zone) })
}

// syncFadersLocked pulls the physical fader positions into an incoming
// horizontal proxy and replays movements that happened while it was in the
// background as synthetic events. Requires m.mu.
func (m *Multiplexer) syncFadersLocked(reg *registration, proxy *Proxy) {
	physical := m.dev.Faders()
	for i := range physical {
		fv := physical[i]
		if !fv.Known || proxy.faders[i] == fv {
			continue
		}
		proxy.faders[i] = fv
		ctl := apc.Fader(uint8(i))
		value := fv.Value
		m.enqueueLocked(reg, func() { reg.plugin.OnFaderChanged(ctl, value, true) })
	}
}

// reportLocked surfaces a non-fatal error to the plugin if it wants them,
// and to the log either way. Requires m.mu.
func (m *Multiplexer) reportLocked(reg *registration, err error) {
	log.Printf("mux: %s: %v", reg.plugin.Name(), err)
	if reporter, ok := reg.plugin.(ErrorReporter); ok {
		m.enqueueLocked(reg, func() { reporter.OnError(err) })
	}
}

// cycleLocked advances a zone's binding to the next registered plugin in
// registration order, wrapping. No-op for zones with fewer than two
// registrants. Requires m.mu.
func (m *Multiplexer) cycleLocked(zone apc.Zone) {
	roster := m.rosters[zone]
	if len(roster) < 2 {
		return
	}
	current := m.bound[zone]
	idx := rosterIndex(roster, current)
	next := roster[(idx+1)%len(roster)]
	m.connectLocked(zone, next)
	log.Printf("mux: activated %s on zone %s", next.plugin.Name(), zone)
}

// handlePress routes a button press. SHIFT only arms the gesture state; a
// press on any other zone while SHIFT is held is consumed as a cycle
// request and never reaches a plugin.
func (m *Multiplexer) handlePress(ctl apc.Control) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctl.Zone == apc.ZoneShift {
		m.shiftHeld = true
		return
	}
	if m.shiftHeld {
		m.cycleLocked(ctl.Zone)
		return
	}
	if reg := m.bound[ctl.Zone]; reg != nil {
		m.enqueueLocked(reg, func() { reg.plugin.OnButtonPressed(ctl) })
	}
}

// handleRelease routes a button release. Releases while SHIFT is held are
// consumed, so the release paired with a cycle press never reaches a
// plugin either.
func (m *Multiplexer) handleRelease(ctl apc.Control) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctl.Zone == apc.ZoneShift {
		m.shiftHeld = false
		return
	}
	if m.shiftHeld {
		return
	}
	if reg := m.bound[ctl.Zone]; reg != nil {
		m.enqueueLocked(reg, func() { reg.plugin.OnButtonReleased(ctl) })
	}
}

// handleFader routes fader movement to whoever holds the horizontal zone
// and keeps that proxy's fader mirror current.
func (m *Multiplexer) handleFader(ctl apc.Control, value uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg := m.bound[apc.ZoneHorizontal]
	if reg == nil {
		return
	}
	proxy := reg.proxies[apc.ZoneHorizontal]
	proxy.faders[ctl.Index] = apc.FaderValue{Value: value, Known: true}
	m.enqueueLocked(reg, func() { reg.plugin.OnFaderChanged(ctl, value, false) })
}
