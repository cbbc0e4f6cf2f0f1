package plugins

import (
	"log"
	"sync"

	"github.com/PixPMusic/gopher-apc/internal/actions"
	"github.com/PixPMusic/gopher-apc/internal/apc"
	"github.com/PixPMusic/gopher-apc/internal/config"
	"github.com/PixPMusic/gopher-apc/internal/mux"
)

// ActionPad binds matrix pads to configured actions. A bound pad idles
// green, shows yellow while its action runs and blinks red when the action
// failed until it is pressed again. Actions run on their own goroutine so
// a slow shell command never blocks event delivery.
type ActionPad struct {
	mux.BasePlugin

	executor *actions.Executor
	store    *actions.Store
	bindings map[uint8]string // pad index -> action ID

	mu      sync.Mutex
	running map[uint8]bool
	failed  map[uint8]bool
}

func NewActionPad(name string, store *actions.Store, bindings []config.PadBinding) *ActionPad {
	byPad := make(map[uint8]string, len(bindings))
	for _, b := range bindings {
		if b.Index < apc.NumMatrix {
			byPad[b.Index] = b.ActionID
		}
	}
	return &ActionPad{
		BasePlugin: mux.BasePlugin{PluginName: name},
		executor:   actions.NewExecutor(),
		store:      store,
		bindings:   byPad,
		running:    make(map[uint8]bool),
		failed:     make(map[uint8]bool),
	}
}

func (a *ActionPad) OnRegistered(proxies map[apc.Zone]*mux.Proxy) {
	a.BasePlugin.OnRegistered(proxies)
	for index := range a.bindings {
		a.SetLED(apc.MatrixButton(index), apc.LEDGreen)
	}
}

func (a *ActionPad) OnButtonPressed(ctl apc.Control) {
	if ctl.Zone != apc.ZoneMatrix {
		return
	}
	actionID, bound := a.bindings[ctl.Index]
	if !bound {
		return
	}

	a.mu.Lock()
	if a.running[ctl.Index] {
		a.mu.Unlock()
		return
	}
	if a.failed[ctl.Index] {
		// A press on a failed pad only acknowledges the failure.
		delete(a.failed, ctl.Index)
		a.mu.Unlock()
		a.SetLED(ctl, apc.LEDGreen)
		return
	}
	a.running[ctl.Index] = true
	a.mu.Unlock()

	a.SetLED(ctl, apc.LEDYellow)
	go a.run(ctl, actionID)
}

func (a *ActionPad) run(ctl apc.Control, actionID string) {
	action := a.store.Get(actionID)

	var err error
	if action == nil {
		log.Printf("actionpad %s: pad %d bound to unknown action %s", a.Name(), ctl.Index, actionID)
	} else {
		var output string
		output, err = a.executor.Execute(action)
		if err != nil {
			log.Printf("actionpad %s: %s: %v", a.Name(), action.Name, err)
		} else if output != "" {
			log.Printf("actionpad %s: %s: %s", a.Name(), action.Name, output)
		}
	}

	a.mu.Lock()
	delete(a.running, ctl.Index)
	state := apc.LEDGreen
	if err != nil || action == nil {
		a.failed[ctl.Index] = true
		state = apc.LEDRedBlink
	}
	a.mu.Unlock()

	a.SetLED(ctl, state)
}

// OnError receives asynchronous LED write failures from the multiplexer.
func (a *ActionPad) OnError(err error) {
	log.Printf("actionpad %s: %v", a.Name(), err)
}
