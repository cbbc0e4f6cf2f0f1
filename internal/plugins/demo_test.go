package plugins

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/PixPMusic/gopher-apc/internal/apc"
	"github.com/PixPMusic/gopher-apc/internal/mux"
)

type stubTransport struct {
	fail error
}

func (t *stubTransport) Send(gomidi.Message) error {
	return t.fail
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDemoTogglesPads(t *testing.T) {
	dev := apc.NewDevice(&stubTransport{})
	m := mux.New(dev)
	defer m.Shutdown()

	d := NewDemo("Demo")
	require.NoError(t, m.Register(d, apc.ZoneMatrix))
	proxy := d.Proxy(apc.ZoneMatrix)
	require.NotNil(t, proxy)

	pad := apc.MatrixButton(3)
	dev.HandleMessage(gomidi.NoteOn(0, 3, 127))
	require.Eventually(t, func() bool {
		return proxy.LED(pad) == apc.LEDGreen
	}, 2*time.Second, 5*time.Millisecond)

	dev.HandleMessage(gomidi.NoteOn(0, 3, 127))
	require.Eventually(t, func() bool {
		return proxy.LED(pad) == apc.LEDOff
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDemoLogsFailedWrites(t *testing.T) {
	dev := apc.NewDevice(&stubTransport{fail: errors.New("wire down")})
	m := mux.New(dev)
	defer m.Shutdown()

	var buf syncBuffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	d := NewDemo("Demo")
	require.NoError(t, m.Register(d, apc.ZoneMatrix))
	proxy := d.Proxy(apc.ZoneMatrix)
	require.NotNil(t, proxy)

	pad := apc.MatrixButton(7)
	dev.HandleMessage(gomidi.NoteOn(0, 7, 127))

	// the mirror still records the toggle, and the write failure is logged
	// rather than swallowed
	require.Eventually(t, func() bool {
		return proxy.LED(pad) == apc.LEDGreen
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "wire down")
	}, 2*time.Second, 5*time.Millisecond)
}
