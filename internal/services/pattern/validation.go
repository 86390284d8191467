package pattern

import (
	"regexp"
	"strings"
)

var hexColorPattern = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)

// Validate checks a request before it is handed to the sequencer.
// The sequencer itself performs no validation and assumes every rule here holds.
func Validate(req PatternRequest) error {
	if strings.TrimSpace(req.DeviceID) == "" {
		return &ValidationError{Field: "deviceId", Message: "device ID is required"}
	}

	if len(req.Steps) == 0 {
		return &ValidationError{Field: "colors", Message: "at least one color step is required"}
	}

	if err := validateSettings(req.Settings); err != nil {
		return err
	}

	for i, step := range req.Steps {
		if err := validateStep(i+1, step); err != nil {
			return err
		}
	}

	return nil
}

func validateSettings(p PatternSettings) error {
	if !p.Type.IsValid() {
		return &ValidationError{Field: "pattern.type", Message: "unknown pattern type " + string(p.Type)}
	}
	if !p.Transition.IsValid() {
		return &ValidationError{Field: "pattern.transition", Message: "unknown transition " + string(p.Transition)}
	}
	if p.RepeatCount < 0 {
		return &ValidationError{Field: "pattern.repeatCount", Message: "repeat count cannot be negative"}
	}
	if p.TransitionDurationMs < 0 {
		return &ValidationError{Field: "pattern.transitionDurationMs", Message: "transition duration cannot be negative"}
	}
	return nil
}

func validateStep(n int, s ColorStep) error {
	if !s.HasHex() && !s.HasHSB() && !s.HasKelvin() {
		return &ValidationError{Step: n, Field: "color", Message: "must specify either hex, HSB (hue + saturation), or kelvin"}
	}

	if s.HasHex() && !hexColorPattern.MatchString(s.Hex) {
		return &ValidationError{Step: n, Field: "hex", Message: "hex must be 6 hex digits, optionally prefixed with #"}
	}

	if s.Hue != nil && (*s.Hue < 0 || *s.Hue > 360) {
		return &ValidationError{Step: n, Field: "hue", Message: "hue must be between 0 and 360"}
	}

	if s.Saturation != nil && (*s.Saturation < 0 || *s.Saturation > 100) {
		return &ValidationError{Step: n, Field: "saturation", Message: "saturation must be between 0 and 100"}
	}

	if s.Brightness != nil && (*s.Brightness < 1 || *s.Brightness > 100) {
		return &ValidationError{Step: n, Field: "brightness", Message: "brightness must be between 1 and 100"}
	}

	if s.Kelvin != nil && (*s.Kelvin < 2700 || *s.Kelvin > 6500) {
		return &ValidationError{Step: n, Field: "kelvin", Message: "kelvin must be between 2700 and 6500"}
	}

	if s.DurationMs < MinDurationMs {
		return &ValidationError{Step: n, Field: "durationMs", Message: "duration must be at least 100ms"}
	}

	return nil
}
