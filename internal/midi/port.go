package midi

import (
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Port is one bidirectional MIDI connection: raw messages out via Send,
// raw messages in via the Listen callback.
type Port struct {
	name string
	in   drivers.In
	out  drivers.Out
	send func(midi.Message) error

	mu   sync.Mutex
	stop func()
}

func openPort(in drivers.In, out drivers.Out) (*Port, error) {
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("failed to open output %q: %w", out.String(), err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender for %q: %w", out.String(), err)
	}
	return &Port{name: in.String(), in: in, out: out, send: send}, nil
}

// Name returns the system name of the port.
func (p *Port) Name() string {
	return p.name
}

// Send writes one raw message to the port.
func (p *Port) Send(msg midi.Message) error {
	return p.send(msg)
}

// Listen starts delivering inbound messages to cb on the driver's listener
// goroutine. Only one listener is active at a time; a second call replaces
// the first.
func (p *Port) Listen(cb func(midi.Message)) error {
	stop, err := midi.ListenTo(p.in, func(msg midi.Message, timestampms int32) {
		cb(msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start listening on %q: %w", p.name, err)
	}
	p.mu.Lock()
	if p.stop != nil {
		p.stop()
	}
	p.stop = stop
	p.mu.Unlock()
	return nil
}

// StopListening detaches the listener, if any.
func (p *Port) StopListening() {
	p.mu.Lock()
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.mu.Unlock()
}

// Close stops listening and closes both halves of the port.
func (p *Port) Close() {
	p.StopListening()
	p.in.Close()
	p.out.Close()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
