package mux

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/PixPMusic/gopher-apc/internal/apc"
)

type captureTransport struct {
	mu   sync.Mutex
	sent []midi.Message
}

func (t *captureTransport) Send(msg midi.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return nil
}

func (t *captureTransport) messages() []midi.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]midi.Message(nil), t.sent...)
}

func (t *captureTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

// recordPlugin turns every callback into a string on a channel so tests can
// assert on delivery order.
type recordPlugin struct {
	BasePlugin
	events chan string
}

func newRecordPlugin(name string) *recordPlugin {
	return &recordPlugin{
		BasePlugin: BasePlugin{PluginName: name},
		events:     make(chan string, 256),
	}
}

func (p *recordPlugin) OnRegistered(proxies map[apc.Zone]*Proxy) {
	p.BasePlugin.OnRegistered(proxies)
	p.events <- "registered"
}

func (p *recordPlugin) OnUnregistered() {
	p.BasePlugin.OnUnregistered()
	p.events <- "unregistered"
}

func (p *recordPlugin) OnActivated(zone apc.Zone) {
	p.events <- "activated " + zone.String()
}

func (p *recordPlugin) OnDeactivated(zone apc.Zone) {
	p.events <- "deactivated " + zone.String()
}

func (p *recordPlugin) OnButtonPressed(ctl apc.Control) {
	p.events <- "press " + ctl.String()
}

func (p *recordPlugin) OnButtonReleased(ctl apc.Control) {
	p.events <- "release " + ctl.String()
}

func (p *recordPlugin) OnFaderChanged(ctl apc.Control, value uint8, synthetic bool) {
	p.events <- fmt.Sprintf("fader %d=%d synthetic=%v", ctl.Index, value, synthetic)
}

func nextEvent(t *testing.T, p *recordPlugin) string {
	t.Helper()
	select {
	case e := <-p.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("plugin %s: no event arrived", p.Name())
		return ""
	}
}

func assertIdle(t *testing.T, p *recordPlugin) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	select {
	case e := <-p.events:
		t.Fatalf("plugin %s: unexpected event %q", p.Name(), e)
	default:
	}
}

func newTestMux() (*Multiplexer, *apc.Device, *captureTransport) {
	out := &captureTransport{}
	dev := apc.NewDevice(out)
	m := New(dev)
	out.reset() // drop the initial all-off sweep
	return m, dev, out
}

func TestRegisterValidation(t *testing.T) {
	m, _, _ := newTestMux()

	err := m.Register(newRecordPlugin("empty"), 0)
	assert.Error(t, err, "a claim of no zones is meaningless")

	err = m.Register(newRecordPlugin("greedy"), apc.ZoneMatrix|apc.ZoneShift)
	assert.Error(t, err, "shift is reserved for zone switching")

	p := newRecordPlugin("once")
	require.NoError(t, m.Register(p, apc.ZoneMatrix))
	err = m.Register(p, apc.ZoneVertical)
	assert.Error(t, err, "a plugin registers at most once")
}

func TestFirstRegistrantBecomesForeground(t *testing.T) {
	m, _, _ := newTestMux()

	a := newRecordPlugin("a")
	require.NoError(t, m.Register(a, apc.ZoneMatrix|apc.ZoneVertical))
	assert.Equal(t, "registered", nextEvent(t, a))
	assert.Equal(t, "activated matrix", nextEvent(t, a))
	assert.Equal(t, "activated vertical", nextEvent(t, a))

	fg, ok := m.Foreground(apc.ZoneMatrix)
	require.True(t, ok)
	assert.Same(t, a, fg)
	_, ok = m.Foreground(apc.ZoneHorizontal)
	assert.False(t, ok, "nobody claimed the horizontal zone")

	// a later registrant on an already-bound zone stays background
	b := newRecordPlugin("b")
	require.NoError(t, m.Register(b, apc.ZoneMatrix))
	assert.Equal(t, "registered", nextEvent(t, b))
	assertIdle(t, b)

	fg, ok = m.Foreground(apc.ZoneMatrix)
	require.True(t, ok)
	assert.Same(t, a, fg)
}

func TestBackgroundLEDWritesAreBuffered(t *testing.T) {
	m, _, out := newTestMux()

	a := newRecordPlugin("a")
	b := newRecordPlugin("b")
	require.NoError(t, m.Register(a, apc.ZoneMatrix))
	require.NoError(t, m.Register(b, apc.ZoneMatrix))
	out.reset()

	pad := apc.MatrixButton(4)
	require.NoError(t, b.Proxy(apc.ZoneMatrix).SetLED(pad, apc.LEDRed))
	assert.Empty(t, out.messages(), "background writes must not reach the hardware")
	assert.Equal(t, apc.LEDRed, b.Proxy(apc.ZoneMatrix).LED(pad))
	assert.False(t, b.Proxy(apc.ZoneMatrix).Foreground())
}

func TestShiftGestureCyclesZone(t *testing.T) {
	m, dev, out := newTestMux()

	a := newRecordPlugin("a")
	b := newRecordPlugin("b")
	require.NoError(t, m.Register(a, apc.ZoneMatrix))
	require.NoError(t, m.Register(b, apc.ZoneMatrix))
	require.Equal(t, "registered", nextEvent(t, a))
	require.Equal(t, "activated matrix", nextEvent(t, a))
	require.Equal(t, "registered", nextEvent(t, b))

	// b paints a pad while background so the switch has something to restore
	require.NoError(t, b.Proxy(apc.ZoneMatrix).SetLED(apc.MatrixButton(4), apc.LEDRed))
	out.reset()

	// hold SHIFT, tap a matrix pad, let go
	dev.HandleMessage(midi.NoteOn(0, 98, 127))
	dev.HandleMessage(midi.NoteOn(0, 2, 127))
	dev.HandleMessage(midi.NoteOff(0, 2))
	dev.HandleMessage(midi.NoteOff(0, 98))

	// the tap switched the zone instead of reaching a plugin
	assert.Equal(t, "deactivated matrix", nextEvent(t, a))
	assert.Equal(t, "activated matrix", nextEvent(t, b))
	fg, ok := m.Foreground(apc.ZoneMatrix)
	require.True(t, ok)
	assert.Same(t, b, fg)

	// b's mirror was restored; only pad 4 differs from the all-off hardware
	msgs := out.messages()
	require.Len(t, msgs, 1)
	var channel, key, velocity uint8
	require.True(t, msgs[0].GetNoteOn(&channel, &key, &velocity))
	assert.Equal(t, uint8(4), key)
	assert.Equal(t, uint8(apc.LEDRed), velocity)

	// input now flows to b
	dev.HandleMessage(midi.NoteOn(0, 3, 127))
	assert.Equal(t, "press matrix button 3", nextEvent(t, b))
	assertIdle(t, a)
}

func TestShiftGestureConsumedWithSingleRegistrant(t *testing.T) {
	m, dev, _ := newTestMux()

	a := newRecordPlugin("a")
	require.NoError(t, m.Register(a, apc.ZoneMatrix))
	require.Equal(t, "registered", nextEvent(t, a))
	require.Equal(t, "activated matrix", nextEvent(t, a))

	// with one registrant there is nothing to cycle to, but the gesture is
	// still swallowed: neither the press nor its release reaches the plugin
	dev.HandleMessage(midi.NoteOn(0, 98, 127))
	dev.HandleMessage(midi.NoteOn(0, 5, 127))
	dev.HandleMessage(midi.NoteOff(0, 5))
	dev.HandleMessage(midi.NoteOff(0, 98))

	dev.HandleMessage(midi.NoteOn(0, 5, 127))
	dev.HandleMessage(midi.NoteOff(0, 5))
	assert.Equal(t, "press matrix button 5", nextEvent(t, a))
	assert.Equal(t, "release matrix button 5", nextEvent(t, a))

	fg, ok := m.Foreground(apc.ZoneMatrix)
	require.True(t, ok)
	assert.Same(t, a, fg)
}

func cycleHorizontal(dev *apc.Device) {
	dev.HandleMessage(midi.NoteOn(0, 98, 127))
	dev.HandleMessage(midi.NoteOn(0, 64, 127))
	dev.HandleMessage(midi.NoteOff(0, 64))
	dev.HandleMessage(midi.NoteOff(0, 98))
}

func TestFaderRoutingAndSyntheticReplay(t *testing.T) {
	m, dev, _ := newTestMux()

	a := newRecordPlugin("a")
	b := newRecordPlugin("b")
	require.NoError(t, m.Register(a, apc.ZoneHorizontal))
	require.NoError(t, m.Register(b, apc.ZoneHorizontal))
	require.Equal(t, "registered", nextEvent(t, a))
	require.Equal(t, "activated horizontal", nextEvent(t, a))
	require.Equal(t, "registered", nextEvent(t, b))

	// movement reaches the foreground plugin and its mirror only
	dev.HandleMessage(midi.ControlChange(0, 48, 10))
	assert.Equal(t, "fader 0=10 synthetic=false", nextEvent(t, a))
	value, known := a.Proxy(apc.ZoneHorizontal).FaderValue(0)
	require.True(t, known)
	assert.Equal(t, uint8(10), value)
	_, known = b.Proxy(apc.ZoneHorizontal).FaderValue(0)
	assert.False(t, known, "background plugin has not seen the fader yet")

	// switching to b replays the position it missed as a synthetic event
	cycleHorizontal(dev)
	assert.Equal(t, "deactivated horizontal", nextEvent(t, a))
	assert.Equal(t, "activated horizontal", nextEvent(t, b))
	assert.Equal(t, "fader 0=10 synthetic=true", nextEvent(t, b))

	// switching back to a replays nothing: its mirror is already current
	cycleHorizontal(dev)
	assert.Equal(t, "deactivated horizontal", nextEvent(t, b))
	assert.Equal(t, "activated horizontal", nextEvent(t, a))
	assertIdle(t, a)

	dev.HandleMessage(midi.ControlChange(0, 48, 20))
	assert.Equal(t, "fader 0=20 synthetic=false", nextEvent(t, a))
}

func TestFaderIgnoredWithoutHorizontalOwner(t *testing.T) {
	m, dev, _ := newTestMux()

	a := newRecordPlugin("a")
	require.NoError(t, m.Register(a, apc.ZoneMatrix))
	require.Equal(t, "registered", nextEvent(t, a))
	require.Equal(t, "activated matrix", nextEvent(t, a))

	dev.HandleMessage(midi.ControlChange(0, 48, 77))
	assertIdle(t, a)
}

func TestUnregisterHandsZoneToSuccessor(t *testing.T) {
	m, _, _ := newTestMux()

	a := newRecordPlugin("a")
	b := newRecordPlugin("b")
	require.NoError(t, m.Register(a, apc.ZoneVertical))
	require.NoError(t, m.Register(b, apc.ZoneVertical))
	require.Equal(t, "registered", nextEvent(t, a))
	require.Equal(t, "activated vertical", nextEvent(t, a))
	require.Equal(t, "registered", nextEvent(t, b))

	require.NoError(t, m.Unregister(a))
	assert.Equal(t, "deactivated vertical", nextEvent(t, a))
	assert.Equal(t, "unregistered", nextEvent(t, a))
	assert.Equal(t, "activated vertical", nextEvent(t, b))

	fg, ok := m.Foreground(apc.ZoneVertical)
	require.True(t, ok)
	assert.Same(t, b, fg)

	require.NoError(t, m.Unregister(b))
	assert.Equal(t, "deactivated vertical", nextEvent(t, b))
	assert.Equal(t, "unregistered", nextEvent(t, b))
	_, ok = m.Foreground(apc.ZoneVertical)
	assert.False(t, ok)

	err := m.Unregister(a)
	assert.Error(t, err, "unregistering twice must fail")
}

func TestProxyZoneEnforcement(t *testing.T) {
	m, _, _ := newTestMux()

	a := newRecordPlugin("a")
	require.NoError(t, m.Register(a, apc.ZoneMatrix))
	proxy := a.Proxy(apc.ZoneMatrix)
	require.NotNil(t, proxy)
	assert.Equal(t, apc.ZoneMatrix, proxy.Zone())

	var zoneErr *ZoneError
	err := proxy.SetLED(apc.VerticalButton(0), apc.LEDOn)
	require.ErrorAs(t, err, &zoneErr)
	err = proxy.SetLED(apc.Fader(0), apc.LEDOn)
	require.ErrorAs(t, err, &zoneErr)
	err = proxy.SetLED(apc.MatrixButton(200), apc.LEDOff)
	require.ErrorAs(t, err, &zoneErr)

	var unsupported *apc.UnsupportedStateError
	err = proxy.SetLED(apc.MatrixButton(0), apc.LEDState(9))
	require.ErrorAs(t, err, &unsupported)

	_, known := proxy.FaderValue(0)
	assert.False(t, known, "matrix proxies carry no fader values")

	assert.True(t, proxy.Foreground())
}

func TestShutdownUnregistersEverything(t *testing.T) {
	m, dev, out := newTestMux()

	a := newRecordPlugin("a")
	b := newRecordPlugin("b")
	require.NoError(t, m.Register(a, apc.ZoneMatrix))
	require.NoError(t, m.Register(b, apc.ZoneVertical))

	m.Shutdown()

	require.Equal(t, "registered", nextEvent(t, a))
	require.Equal(t, "activated matrix", nextEvent(t, a))
	assert.Equal(t, "deactivated matrix", nextEvent(t, a))
	assert.Equal(t, "unregistered", nextEvent(t, a))
	require.Equal(t, "registered", nextEvent(t, b))
	require.Equal(t, "activated vertical", nextEvent(t, b))
	assert.Equal(t, "deactivated vertical", nextEvent(t, b))
	assert.Equal(t, "unregistered", nextEvent(t, b))

	// events are off and the surface was swept dark
	assert.NotEmpty(t, out.messages())
	dev.HandleMessage(midi.NoteOn(0, 1, 127))
	assertIdle(t, a)
	assertIdle(t, b)
}

// stressPlugin flags any callback that arrives after Unregister returned.
// OnRegistered runs before the dispatcher starts and OnUnregistered after it
// drained, so the alive flag brackets exactly the window in which callbacks
// are legal.
type stressPlugin struct {
	BasePlugin
	alive      atomic.Bool
	violations *atomic.Int64
}

func newStressPlugin(name string, violations *atomic.Int64) *stressPlugin {
	return &stressPlugin{
		BasePlugin: BasePlugin{PluginName: name},
		violations: violations,
	}
}

func (p *stressPlugin) OnRegistered(proxies map[apc.Zone]*Proxy) {
	p.BasePlugin.OnRegistered(proxies)
	p.alive.Store(true)
}

func (p *stressPlugin) OnUnregistered() {
	p.BasePlugin.OnUnregistered()
	p.alive.Store(false)
}

func (p *stressPlugin) observe() {
	if !p.alive.Load() {
		p.violations.Add(1)
	}
}

func (p *stressPlugin) OnActivated(apc.Zone)                    { p.observe() }
func (p *stressPlugin) OnDeactivated(apc.Zone)                  { p.observe() }
func (p *stressPlugin) OnButtonPressed(apc.Control)             { p.observe() }
func (p *stressPlugin) OnButtonReleased(apc.Control)            { p.observe() }
func (p *stressPlugin) OnFaderChanged(apc.Control, uint8, bool) { p.observe() }

// TestConcurrentGestureAndChurn hammers the router from several goroutines
// at once: SHIFT-cycle gestures, a plain input stream, mirror painting from
// plugin goroutines, registration churn and resyncs. Run with the race
// detector. Asserts that a zone only ever reports a registered owner and
// that no callback reaches a plugin after its Unregister returned.
func TestConcurrentGestureAndChurn(t *testing.T) {
	m, dev, out := newTestMux()

	var violations atomic.Int64
	a := newStressPlugin("a", &violations)
	b := newStressPlugin("b", &violations)
	c := newStressPlugin("c", &violations)
	require.NoError(t, m.Register(a, apc.ZoneMatrix|apc.ZoneHorizontal))
	require.NoError(t, m.Register(b, apc.ZoneMatrix|apc.ZoneHorizontal))

	proxyA := a.Proxy(apc.ZoneMatrix)
	proxyB := b.Proxy(apc.ZoneMatrix)
	require.NotNil(t, proxyA)
	require.NotNil(t, proxyB)

	var wg sync.WaitGroup

	// SHIFT gestures cycling the matrix and horizontal zones
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			dev.HandleMessage(midi.NoteOn(0, 98, 127))
			dev.HandleMessage(midi.NoteOn(0, uint8(i%64), 127))
			dev.HandleMessage(midi.NoteOff(0, uint8(i%64)))
			dev.HandleMessage(midi.NoteOn(0, 64+uint8(i%8), 127))
			dev.HandleMessage(midi.NoteOff(0, 64+uint8(i%8)))
			dev.HandleMessage(midi.NoteOff(0, 98))
		}
	}()

	// plain input stream racing the gestures
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			note := uint8(i % 64)
			dev.HandleMessage(midi.NoteOn(0, note, 127))
			dev.HandleMessage(midi.NoteOff(0, note))
			dev.HandleMessage(midi.ControlChange(0, 48+uint8(i%9), uint8(i%128)))
		}
	}()

	// plugins painting their mirrors from their own goroutines
	for _, proxy := range []*Proxy{proxyA, proxyB} {
		wg.Add(1)
		go func(p *Proxy) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if err := p.SetLED(apc.MatrixButton(uint8(i%apc.NumMatrix)), apc.LEDState(i%7)); err != nil {
					t.Errorf("SetLED: %v", err)
				}
			}
		}(proxy)
	}

	// registration churn on a zone that is being cycled at the same time
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if err := m.Register(c, apc.ZoneMatrix); err != nil {
				t.Errorf("register: %v", err)
				return
			}
			if err := m.Unregister(c); err != nil {
				t.Errorf("unregister: %v", err)
				return
			}
		}
	}()

	// observer: the matrix zone only ever reports a known owner
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if fg, ok := m.Foreground(apc.ZoneMatrix); ok {
				if fg != Plugin(a) && fg != Plugin(b) && fg != Plugin(c) {
					t.Errorf("foreground is not a registered plugin: %v", fg)
				}
			}
			if i%25 == 0 {
				m.Resync()
				out.reset()
			}
		}
	}()

	wg.Wait()
	assert.Zero(t, violations.Load(), "callbacks must stop once Unregister has returned")

	// the churned plugin is gone, the survivors still hold the zone
	fg, ok := m.Foreground(apc.ZoneMatrix)
	require.True(t, ok)
	assert.Contains(t, []Plugin{a, b}, fg)

	m.Shutdown()
	assert.Zero(t, violations.Load())
}
