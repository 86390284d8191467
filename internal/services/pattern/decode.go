package pattern

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// wireRequest accepts both the current field names and the legacy ones
// (bulbIP/colors/pattern) sent by older callers.
type wireRequest struct {
	DeviceID string        `json:"deviceId"`
	BulbIP   string        `json:"bulbIP"`
	Colors   []wireStep    `json:"colors"`
	Steps    []wireStep    `json:"steps"`
	Pattern  *wireSettings `json:"pattern"`
	Settings *wireSettings `json:"settings"`
}

type wireStep struct {
	Hex        string `json:"hex"`
	Hue        *int   `json:"hue"`
	Saturation *int   `json:"saturation"`
	Brightness *int   `json:"brightness"`
	Kelvin     *int   `json:"kelvin"`
	DurationMs *int   `json:"durationMs"`
}

type wireSettings struct {
	Type                 wireEnum `json:"type"`
	RepeatCount          *int     `json:"repeatCount"`
	Transition           wireEnum `json:"transition"`
	TransitionDurationMs *int     `json:"transitionDurationMs"`
}

// Numeric enum values index these lists.
var (
	patternTypeOrder    = []PatternType{PatternSequential, PatternRandom, PatternPingPong, PatternPulse}
	transitionTypeOrder = []TransitionType{TransitionInstant, TransitionFade, TransitionFlash}
)

// wireEnum holds an enum sent either by name ("PingPong") or by ordinal (2).
type wireEnum struct {
	name    string
	ordinal *int
}

func (e *wireEnum) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.name)
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("enum value must be a name or an integer: %s", data)
	}
	e.ordinal = &n
	return nil
}

func (e wireEnum) set() bool {
	return e.name != "" || e.ordinal != nil
}

func ordinalAt[T ~string](order []T, n int, kind string) (T, error) {
	if n < 0 || n >= len(order) {
		var zero T
		return zero, fmt.Errorf("unknown %s %d", kind, n)
	}
	return order[n], nil
}

// DecodeRequest reads a JSON pattern request and applies the wire defaults
// (1000ms step duration, one repetition, instant transitions of 500ms).
// The result still has to pass Validate before it is executed.
func DecodeRequest(r io.Reader) (PatternRequest, error) {
	var w wireRequest
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return PatternRequest{}, fmt.Errorf("%w: invalid JSON format: %v", ErrInvalidRequest, err)
	}
	return w.toRequest()
}

// DecodeRequestBytes is DecodeRequest for an in-memory document.
func DecodeRequestBytes(data []byte) (PatternRequest, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return PatternRequest{}, fmt.Errorf("%w: invalid JSON format: %v", ErrInvalidRequest, err)
	}
	return w.toRequest()
}

func (w wireRequest) toRequest() (PatternRequest, error) {
	req := PatternRequest{DeviceID: w.DeviceID}
	if req.DeviceID == "" {
		req.DeviceID = w.BulbIP
	}

	steps := w.Colors
	if len(steps) == 0 {
		steps = w.Steps
	}
	req.Steps = make([]ColorStep, 0, len(steps))
	for _, s := range steps {
		step := ColorStep{
			Hex:        s.Hex,
			Hue:        s.Hue,
			Saturation: s.Saturation,
			Brightness: s.Brightness,
			Kelvin:     s.Kelvin,
			DurationMs: DefaultDurationMs,
		}
		if s.DurationMs != nil {
			step.DurationMs = *s.DurationMs
		}
		req.Steps = append(req.Steps, step)
	}

	settings := w.Pattern
	if settings == nil {
		settings = w.Settings
	}
	if settings == nil {
		settings = &wireSettings{}
	}

	parsed, err := settings.toSettings()
	if err != nil {
		return PatternRequest{}, err
	}
	req.Settings = parsed

	return req, nil
}

func (w wireSettings) toSettings() (PatternSettings, error) {
	p := PatternSettings{
		Type:                 PatternSequential,
		RepeatCount:          DefaultRepeatCount,
		Transition:           TransitionInstant,
		TransitionDurationMs: DefaultTransitionDurationMs,
	}

	if w.Type.set() {
		var t PatternType
		var err error
		if w.Type.ordinal != nil {
			t, err = ordinalAt(patternTypeOrder, *w.Type.ordinal, "pattern type")
		} else {
			t, err = ParsePatternType(w.Type.name)
		}
		if err != nil {
			return p, &ValidationError{Field: "pattern.type", Message: err.Error()}
		}
		p.Type = t
	}
	if w.Transition.set() {
		var t TransitionType
		var err error
		if w.Transition.ordinal != nil {
			t, err = ordinalAt(transitionTypeOrder, *w.Transition.ordinal, "transition type")
		} else {
			t, err = ParseTransitionType(w.Transition.name)
		}
		if err != nil {
			return p, &ValidationError{Field: "pattern.transition", Message: err.Error()}
		}
		p.Transition = t
	}
	if w.RepeatCount != nil {
		p.RepeatCount = *w.RepeatCount
	}
	if w.TransitionDurationMs != nil {
		p.TransitionDurationMs = *w.TransitionDurationMs
	}

	return p, nil
}
