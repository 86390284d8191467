package pattern

import (
	"fmt"
	"strings"

	"github.com/crazy3lf/colorconv"
)

// NormalizeHex returns the hex color upper-cased with a leading '#'.
func NormalizeHex(hex string) string {
	return "#" + strings.ToUpper(strings.TrimPrefix(hex, "#"))
}

// DisplayHex returns the color the step shows, as "#RRGGBB", for status reporting.
// Kelvin-only steps have no RGB equivalent on the device API and return "".
func (s ColorStep) DisplayHex() string {
	switch {
	case s.HasHex():
		return NormalizeHex(s.Hex)
	case s.HasHSB():
		value := 1.0
		if s.Brightness != nil {
			value = float64(*s.Brightness) / 100.0
		}
		r, g, b, err := colorconv.HSVToRGB(float64(*s.Hue%360), float64(*s.Saturation)/100.0, value)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("#%02X%02X%02X", r, g, b)
	}
	return ""
}
