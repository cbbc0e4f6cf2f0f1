package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsFold(t *testing.T) {
	assert.True(t, containsFold("APC MINI MIDI 1", "apc mini"))
	assert.True(t, containsFold("apc mini midi 1", "APC MINI"))
	assert.True(t, containsFold("anything", ""))
	assert.False(t, containsFold("Launchpad X", "apc"))
}

func TestErrorMessages(t *testing.T) {
	err := &DeviceNotFoundError{Hint: "APC MINI"}
	assert.Contains(t, err.Error(), "APC MINI")

	ambiguous := &AmbiguousDeviceError{
		Hint:    "APC",
		Matches: []string{"APC MINI MIDI 1", "APC MINI MIDI 2"},
	}
	assert.Contains(t, ambiguous.Error(), "APC MINI MIDI 1")
	assert.Contains(t, ambiguous.Error(), "APC MINI MIDI 2")
}
