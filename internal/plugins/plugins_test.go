package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PixPMusic/gopher-apc/internal/actions"
	"github.com/PixPMusic/gopher-apc/internal/apc"
	"github.com/PixPMusic/gopher-apc/internal/config"
)

func TestParseZones(t *testing.T) {
	zones, err := ParseZones([]string{"matrix", "vertical"})
	require.NoError(t, err)
	assert.Equal(t, apc.ZoneMatrix|apc.ZoneVertical, zones)

	_, err = ParseZones([]string{"matrix", "shift"})
	assert.Error(t, err, "shift cannot be claimed")

	_, err = ParseZones([]string{"sideways"})
	assert.Error(t, err)

	_, err = ParseZones(nil)
	assert.Error(t, err, "a plugin must claim at least one zone")
}

func TestFactory(t *testing.T) {
	deps := Deps{Actions: actions.NewStore(nil)}

	p, err := New(config.PluginConfig{Name: "D", Type: "demo"}, deps)
	require.NoError(t, err)
	assert.Equal(t, "D", p.Name())

	p, err = New(config.PluginConfig{Name: "Pads", Type: "actionpad"}, deps)
	require.NoError(t, err)
	assert.Equal(t, "Pads", p.Name())

	_, err = New(config.PluginConfig{Name: "X", Type: "telnet"}, deps)
	assert.Error(t, err)
}

func TestActionPadBindingFilter(t *testing.T) {
	pad := NewActionPad("Pads", actions.NewStore(nil), []config.PadBinding{
		{Index: 0, ActionID: "a"},
		{Index: 63, ActionID: "b"},
		{Index: 64, ActionID: "c"}, // beyond the matrix
	})

	assert.Equal(t, "a", pad.bindings[0])
	assert.Equal(t, "b", pad.bindings[63])
	_, ok := pad.bindings[64]
	assert.False(t, ok, "out-of-range bindings are dropped")
}
