package plugins

import (
	"log"
	"sync"
	"time"

	"github.com/PixPMusic/gopher-apc/internal/apc"
	"github.com/PixPMusic/gopher-apc/internal/mux"
)

// Demo is a smoke-test plugin: pressing a matrix pad toggles its light, and
// a background chaser walks the matrix toggling one pad per second. Useful
// for verifying that mirrors survive backgrounding.
type Demo struct {
	mux.BasePlugin

	mu   sync.Mutex
	lit  [apc.NumMatrix]bool
	stop chan struct{}
	done chan struct{}
}

func NewDemo(name string) *Demo {
	return &Demo{BasePlugin: mux.BasePlugin{PluginName: name}}
}

func (d *Demo) OnRegistered(proxies map[apc.Zone]*mux.Proxy) {
	d.BasePlugin.OnRegistered(proxies)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.chase()
}

func (d *Demo) OnUnregistered() {
	close(d.stop)
	<-d.done
	d.BasePlugin.OnUnregistered()
}

func (d *Demo) OnButtonPressed(ctl apc.Control) {
	if ctl.Zone != apc.ZoneMatrix {
		return
	}
	d.toggle(ctl.Index)
}

func (d *Demo) toggle(index uint8) {
	d.mu.Lock()
	d.lit[index] = !d.lit[index]
	state := apc.LEDOff
	if d.lit[index] {
		state = apc.LEDGreen
	}
	d.mu.Unlock()

	// Write through the mirror; takes hardware effect only while foreground.
	if err := d.SetLED(apc.MatrixButton(index), state); err != nil {
		log.Printf("demo %s: %v", d.Name(), err)
	}
}

func (d *Demo) chase() {
	defer close(d.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var index uint8
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.toggle(index)
			index = (index + 1) % apc.NumMatrix
		}
	}
}
