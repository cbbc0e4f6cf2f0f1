package apc

import "fmt"

// Zone identifies a group of controls on the APC mini that is handed to
// plugins as one unit. Zones are bit flags so that a plugin can claim
// several of them in a single registration.
type Zone uint8

const (
	ZoneMatrix     Zone = 1 << iota // 8x8 clip launch matrix
	ZoneHorizontal                  // round buttons above the faders, plus the faders
	ZoneVertical                    // round buttons on the right edge
	ZoneShift                       // the single SHIFT button
)

// PluginZones is the set of zones a plugin may claim. SHIFT is reserved
// for switching between plugins.
const PluginZones = ZoneMatrix | ZoneHorizontal | ZoneVertical

// Split breaks a zone flag set into its individual zones, in a fixed order.
func (z Zone) Split() []Zone {
	var zones []Zone
	for _, single := range []Zone{ZoneMatrix, ZoneHorizontal, ZoneVertical, ZoneShift} {
		if z&single != 0 {
			zones = append(zones, single)
		}
	}
	return zones
}

// Contains reports whether every zone in other is part of z.
func (z Zone) Contains(other Zone) bool {
	return z&other == other
}

func (z Zone) String() string {
	switch z {
	case ZoneMatrix:
		return "matrix"
	case ZoneHorizontal:
		return "horizontal"
	case ZoneVertical:
		return "vertical"
	case ZoneShift:
		return "shift"
	}
	names := ""
	for _, single := range z.Split() {
		if names != "" {
			names += "|"
		}
		names += single.String()
	}
	if names == "" {
		return fmt.Sprintf("Zone(%d)", uint8(z))
	}
	return names
}

// ParseZone maps a config string to a single zone.
func ParseZone(s string) (Zone, error) {
	switch s {
	case "matrix":
		return ZoneMatrix, nil
	case "horizontal":
		return ZoneHorizontal, nil
	case "vertical":
		return ZoneVertical, nil
	default:
		return 0, fmt.Errorf("unknown zone: %q", s)
	}
}

// ControlKind distinguishes the physical classes of controls.
type ControlKind uint8

const (
	KindButton ControlKind = iota // momentary button with an LED
	KindFader                     // linear fader, reports 0-127
	KindShift                     // the SHIFT modifier, no LED
)

func (k ControlKind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindFader:
		return "fader"
	case KindShift:
		return "shift"
	}
	return fmt.Sprintf("ControlKind(%d)", uint8(k))
}

// Control addresses one physical element on the surface. Index counts from
// zero within the control's zone and kind, so the third horizontal button
// and the third fader are distinct controls in the same zone.
type Control struct {
	Zone  Zone
	Kind  ControlKind
	Index uint8
}

func (c Control) String() string {
	if c.Kind == KindShift {
		return "shift"
	}
	return fmt.Sprintf("%s %s %d", c.Zone, c.Kind, c.Index)
}

// MIDI note and controller numbers of the APC mini, from the hardware
// protocol documentation. The surface addresses every button by note number
// and every fader by CC number; these tables are fixed for the device.
const (
	matrixOffset     = 0
	NumMatrix        = 64
	horizontalOffset = 64
	NumHorizontal    = 8
	verticalOffset   = 82
	NumVertical      = 8
	shiftNote        = 98
	faderOffset      = 48
	NumFaders        = 9 // 8 track faders plus master
)

// MatrixButton returns the matrix control at the given index (0-63,
// row-major from the bottom-left as the hardware counts).
func MatrixButton(index uint8) Control {
	return Control{Zone: ZoneMatrix, Kind: KindButton, Index: index}
}

// HorizontalButton returns the round button above fader column index (0-7).
func HorizontalButton(index uint8) Control {
	return Control{Zone: ZoneHorizontal, Kind: KindButton, Index: index}
}

// VerticalButton returns the round button at row index on the right edge (0-7).
func VerticalButton(index uint8) Control {
	return Control{Zone: ZoneVertical, Kind: KindButton, Index: index}
}

// Fader returns the fader control at the given index (0-8; 8 is master).
func Fader(index uint8) Control {
	return Control{Zone: ZoneHorizontal, Kind: KindFader, Index: index}
}

// ShiftButton is the SHIFT modifier control.
func ShiftButton() Control {
	return Control{Zone: ZoneShift, Kind: KindShift, Index: 0}
}

// ControlForNote decodes a note number into its control. The second return
// is false for note numbers the device never produces.
func ControlForNote(note uint8) (Control, bool) {
	switch {
	case note < matrixOffset+NumMatrix:
		return MatrixButton(note - matrixOffset), true
	case note >= horizontalOffset && note < horizontalOffset+NumHorizontal:
		return HorizontalButton(note - horizontalOffset), true
	case note >= verticalOffset && note < verticalOffset+NumVertical:
		return VerticalButton(note - verticalOffset), true
	case note == shiftNote:
		return ShiftButton(), true
	}
	return Control{}, false
}

// ControlForCC decodes a controller number into its fader control.
func ControlForCC(cc uint8) (Control, bool) {
	if cc >= faderOffset && cc < faderOffset+NumFaders {
		return Fader(cc - faderOffset), true
	}
	return Control{}, false
}

// Note returns the note number addressing a button control. Fader controls
// have no note number.
func (c Control) Note() (uint8, bool) {
	switch {
	case c.Kind == KindShift:
		return shiftNote, true
	case c.Kind != KindButton:
		return 0, false
	}
	switch c.Zone {
	case ZoneMatrix:
		if c.Index < NumMatrix {
			return matrixOffset + c.Index, true
		}
	case ZoneHorizontal:
		if c.Index < NumHorizontal {
			return horizontalOffset + c.Index, true
		}
	case ZoneVertical:
		if c.Index < NumVertical {
			return verticalOffset + c.Index, true
		}
	}
	return 0, false
}

// CC returns the controller number addressing a fader control.
func (c Control) CC() (uint8, bool) {
	if c.Kind == KindFader && c.Zone == ZoneHorizontal && c.Index < NumFaders {
		return faderOffset + c.Index, true
	}
	return 0, false
}

// zoneButtonCount returns how many LED-carrying buttons a zone has.
func zoneButtonCount(z Zone) int {
	switch z {
	case ZoneMatrix:
		return NumMatrix
	case ZoneHorizontal:
		return NumHorizontal
	case ZoneVertical:
		return NumVertical
	}
	return 0
}

// ZoneButtons enumerates the buttons of a zone in ascending index order.
// This ordering is what makes bulk LED writes deterministic.
func ZoneButtons(z Zone) []Control {
	n := zoneButtonCount(z)
	buttons := make([]Control, 0, n)
	for i := 0; i < n; i++ {
		buttons = append(buttons, Control{Zone: z, Kind: KindButton, Index: uint8(i)})
	}
	return buttons
}

// AllButtons enumerates every button on the surface, SHIFT excluded since
// it carries no LED.
func AllButtons() []Control {
	buttons := make([]Control, 0, NumMatrix+NumHorizontal+NumVertical)
	for _, z := range []Zone{ZoneMatrix, ZoneHorizontal, ZoneVertical} {
		buttons = append(buttons, ZoneButtons(z)...)
	}
	return buttons
}
