// Package pattern provides the color-pattern sequencer that drives a bulb
// through a timed series of color steps.
package pattern

import (
	"fmt"
	"strings"
)

// PatternType selects how the step list is traversed on each cycle.
type PatternType string

const (
	// PatternSequential plays the steps in input order every cycle.
	PatternSequential PatternType = "SEQUENTIAL"
	// PatternRandom plays a fresh random permutation of the steps every cycle.
	PatternRandom PatternType = "RANDOM"
	// PatternPingPong alternates between input order and reversed order.
	PatternPingPong PatternType = "PING_PONG"
	// PatternPulse plays steps in input order, dimming and restoring each one during its hold.
	PatternPulse PatternType = "PULSE"
)

// TransitionType selects the effect played after each step's hold.
type TransitionType string

const (
	// TransitionInstant moves straight to the next step.
	TransitionInstant TransitionType = "INSTANT"
	// TransitionFade dims the bulb to half brightness for the transition time.
	TransitionFade TransitionType = "FADE"
	// TransitionFlash blinks the bulb off and on.
	TransitionFlash TransitionType = "FLASH"
)

// Wire defaults applied by DecodeRequest when a field is omitted.
const (
	DefaultDurationMs           = 1000
	DefaultRepeatCount          = 1
	DefaultTransitionDurationMs = 500

	// MinDurationMs is the shortest hold a step may declare.
	MinDurationMs = 100
)

// ColorStep is one target color with the time to hold it.
type ColorStep struct {
	Hex        string `json:"hex,omitempty"`
	Hue        *int   `json:"hue,omitempty"`
	Saturation *int   `json:"saturation,omitempty"`
	Brightness *int   `json:"brightness,omitempty"`
	Kelvin     *int   `json:"kelvin,omitempty"`
	DurationMs int    `json:"durationMs"`
}

// HasHex reports whether the step carries a hex color.
func (s ColorStep) HasHex() bool {
	return s.Hex != ""
}

// HasHSB reports whether the step carries both hue and saturation.
func (s ColorStep) HasHSB() bool {
	return s.Hue != nil && s.Saturation != nil
}

// HasKelvin reports whether the step carries a color temperature.
func (s ColorStep) HasKelvin() bool {
	return s.Kelvin != nil
}

// PatternSettings governs traversal and transitions.
type PatternSettings struct {
	Type                 PatternType    `json:"type"`
	RepeatCount          int            `json:"repeatCount"`
	Transition           TransitionType `json:"transition"`
	TransitionDurationMs int            `json:"transitionDurationMs"`
}

// Infinite reports whether the pattern repeats until cancelled.
func (p PatternSettings) Infinite() bool {
	return p.RepeatCount == 0
}

// PatternRequest is a validated request to play a pattern on one device.
type PatternRequest struct {
	DeviceID string          `json:"deviceId"`
	Steps    []ColorStep     `json:"colors"`
	Settings PatternSettings `json:"pattern"`
}

// ParsePatternType parses a pattern type name. Matching ignores case and the
// separators '_', '-' and ' ', so "PingPong" and "PING_PONG" are equivalent.
func ParsePatternType(s string) (PatternType, error) {
	switch normalizeName(s) {
	case "SEQUENTIAL":
		return PatternSequential, nil
	case "RANDOM":
		return PatternRandom, nil
	case "PINGPONG":
		return PatternPingPong, nil
	case "PULSE":
		return PatternPulse, nil
	}
	return "", fmt.Errorf("unknown pattern type %q", s)
}

// ParseTransitionType parses a transition name using the same rules as ParsePatternType.
func ParseTransitionType(s string) (TransitionType, error) {
	switch normalizeName(s) {
	case "INSTANT":
		return TransitionInstant, nil
	case "FADE":
		return TransitionFade, nil
	case "FLASH":
		return TransitionFlash, nil
	}
	return "", fmt.Errorf("unknown transition type %q", s)
}

// IsValid reports whether t is a known pattern type.
func (t PatternType) IsValid() bool {
	switch t {
	case PatternSequential, PatternRandom, PatternPingPong, PatternPulse:
		return true
	}
	return false
}

// IsValid reports whether t is a known transition type.
func (t TransitionType) IsValid() bool {
	switch t {
	case TransitionInstant, TransitionFade, TransitionFlash:
		return true
	}
	return false
}

func normalizeName(s string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(s)))
}
