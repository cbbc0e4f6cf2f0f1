package apc

import "fmt"

// LEDState is the value a button LED can display, encoded exactly as the
// velocity byte the hardware expects. The matrix buttons carry three-color
// LEDs; the round buttons are single-color and only know off/on/blink.
type LEDState uint8

const (
	LEDOff LEDState = 0

	// single-color round buttons
	LEDOn    LEDState = 1
	LEDBlink LEDState = 2

	// three-color matrix buttons
	LEDGreen       LEDState = 1
	LEDGreenBlink  LEDState = 2
	LEDRed         LEDState = 3
	LEDRedBlink    LEDState = 4
	LEDYellow      LEDState = 5
	LEDYellowBlink LEDState = 6
)

const (
	maxRoundState  = LEDBlink
	maxMatrixState = LEDYellowBlink
)

func (s LEDState) String() string {
	switch s {
	case LEDOff:
		return "off"
	case LEDGreen:
		return "on/green"
	case LEDGreenBlink:
		return "blink/green-blink"
	case LEDRed:
		return "red"
	case LEDRedBlink:
		return "red-blink"
	case LEDYellow:
		return "yellow"
	case LEDYellowBlink:
		return "yellow-blink"
	}
	return fmt.Sprintf("LEDState(%d)", uint8(s))
}

// SupportsLED reports whether state is displayable on control. SHIFT has no
// LED at all, round buttons reject the color states.
func SupportsLED(c Control, state LEDState) bool {
	if c.Kind != KindButton {
		return false
	}
	switch c.Zone {
	case ZoneMatrix:
		return state <= maxMatrixState
	case ZoneHorizontal, ZoneVertical:
		return state <= maxRoundState
	}
	return false
}

// FaderValue is the last value reported by a fader. The APC mini never
// reports fader positions on its own, so a value is unknown until the user
// first moves the fader after the port was opened.
type FaderValue struct {
	Value uint8
	Known bool
}
