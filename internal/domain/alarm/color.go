package alarm

import (
	"errors"
	"fmt"
)

// Color is a status indicator palette index.
// The numeric values are the ones operators type in the status command.
type Color uint8

const (
	// ColorRed is palette index 0.
	ColorRed Color = iota
	// ColorYellow is palette index 1.
	ColorYellow
	// ColorGreen is palette index 2.
	ColorGreen
	// ColorOff is palette index 3 and turns the indicator dark.
	ColorOff
)

// PaletteSize is the number of valid palette indices.
const PaletteSize = 4

// ErrColorOutOfRange is returned for palette indices outside 0..PaletteSize-1.
var ErrColorOutOfRange = errors.New("color index out of range")

// ColorFromIndex validates a palette index typed by an operator.
func ColorFromIndex(index int) (Color, error) {
	if index < 0 || index >= PaletteSize {
		return ColorOff, fmt.Errorf("index %d: %w", index, ErrColorOutOfRange)
	}

	return Color(index), nil
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorYellow:
		return "yellow"
	case ColorGreen:
		return "green"
	case ColorOff:
		return "off"
	default:
		return fmt.Sprintf("color(%d)", uint8(c))
	}
}
