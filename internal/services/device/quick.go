package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// quickColors maps color quick actions to the hex they apply.
var quickColors = map[string]string{
	"red":    "#FF0000",
	"green":  "#00FF00",
	"blue":   "#0000FF",
	"yellow": "#FFFF00",
	"purple": "#800080",
	"white":  "#FFFFFF",
}

// QuickActions lists the supported action names in sorted order.
func QuickActions() []string {
	actions := []string{"on", "off"}
	for name := range quickColors {
		actions = append(actions, name)
	}
	sort.Strings(actions)
	return actions
}

// QuickAction runs a named one-shot command: "on", "off" or a color name.
func (c *Client) QuickAction(ctx context.Context, deviceID, action string) (bool, error) {
	name := strings.ToLower(strings.TrimSpace(action))

	switch name {
	case "on":
		return c.SetPower(ctx, deviceID, true)
	case "off":
		return c.SetPower(ctx, deviceID, false)
	}

	hex, ok := quickColors[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
	return c.SetColorHex(ctx, deviceID, hex)
}
