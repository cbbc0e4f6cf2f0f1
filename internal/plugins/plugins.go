// Package plugins contains the plugin implementations shipped with the
// daemon and the factory that builds them from configuration.
package plugins

import (
	"fmt"

	"github.com/PixPMusic/gopher-apc/internal/actions"
	"github.com/PixPMusic/gopher-apc/internal/apc"
	"github.com/PixPMusic/gopher-apc/internal/config"
	"github.com/PixPMusic/gopher-apc/internal/midi"
	"github.com/PixPMusic/gopher-apc/internal/mux"
)

// Deps are the shared collaborators a plugin may need.
type Deps struct {
	MIDI     *midi.Manager
	Actions  *actions.Store
	Bindings []config.PadBinding
}

// New builds the plugin described by cfg.
func New(cfg config.PluginConfig, deps Deps) (mux.Plugin, error) {
	switch cfg.Type {
	case "demo":
		return NewDemo(cfg.Name), nil
	case "passthrough":
		return NewPassthrough(cfg.Name, deps.MIDI), nil
	case "actionpad":
		return NewActionPad(cfg.Name, deps.Actions, deps.Bindings), nil
	default:
		return nil, fmt.Errorf("unknown plugin type: %q", cfg.Type)
	}
}

// ParseZones converts config zone names into a zone flag set.
func ParseZones(names []string) (apc.Zone, error) {
	var zones apc.Zone
	for _, name := range names {
		z, err := apc.ParseZone(name)
		if err != nil {
			return 0, err
		}
		zones |= z
	}
	if zones == 0 {
		return 0, fmt.Errorf("plugin claims no zones")
	}
	return zones, nil
}
