package executor

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Typed parameter shapes for each action. Request parameters arrive as a
// dynamic JSON object; each handler decodes into its own struct and
// validates before touching the backend.

// clickParams covers click and long_press. Exactly one addressing mode is
// required: a selector, one of the id/text/desc shorthands, or raw
// coordinates.
type clickParams struct {
	Selector any    `mapstructure:"selector"`
	ID       string `mapstructure:"id"`
	Text     string `mapstructure:"text"`
	Desc     string `mapstructure:"desc"`
	X        *int   `mapstructure:"x"`
	Y        *int   `mapstructure:"y"`
}

func (p clickParams) hasCoordinates() bool { return p.X != nil && p.Y != nil }

func (p clickParams) hasTarget() bool {
	return p.Selector != nil || p.ID != "" || p.Text != "" || p.Desc != "" || p.hasCoordinates()
}

type swipeParams struct {
	X1       *int `mapstructure:"x1"`
	Y1       *int `mapstructure:"y1"`
	X2       *int `mapstructure:"x2"`
	Y2       *int `mapstructure:"y2"`
	Duration int  `mapstructure:"duration"`
}

func (p swipeParams) validate() error {
	if p.X1 == nil || p.Y1 == nil || p.X2 == nil || p.Y2 == nil {
		return fmt.Errorf("swipe requires x1, y1, x2, y2")
	}
	return nil
}

// inputTextParams: Text is the content to type, not a selector.
type inputTextParams struct {
	Selector any    `mapstructure:"selector"`
	ID       string `mapstructure:"id"`
	Text     string `mapstructure:"text"`
}

type scrollParams struct {
	Down *bool `mapstructure:"down"`
}

func (p scrollParams) down() bool { return p.Down == nil || *p.Down }

type launchAppParams struct {
	PackageName string `mapstructure:"packageName"`
	Package     string `mapstructure:"package"`
}

// component returns the package and optional explicit activity. Accepted
// forms: "com.app", "com.app/com.app.MainActivity", "com.app/.MainActivity"
// (leading dot expands against the package).
func (p launchAppParams) component() (pkg, activity string, err error) {
	raw := p.PackageName
	if raw == "" {
		raw = p.Package
	}
	if raw == "" {
		return "", "", fmt.Errorf("launch_app requires packageName")
	}

	pkg, activity, found := strings.Cut(raw, "/")
	if !found {
		return pkg, "", nil
	}
	if pkg == "" || activity == "" {
		return "", "", fmt.Errorf("malformed component %q", raw)
	}
	if strings.HasPrefix(activity, ".") {
		activity = pkg + activity
	}
	return pkg, activity, nil
}

type findElementParams struct {
	Selector any    `mapstructure:"selector"`
	ID       string `mapstructure:"id"`
	Text     string `mapstructure:"text"`
	Desc     string `mapstructure:"desc"`
}

type focusParams struct {
	Selector any    `mapstructure:"selector"`
	ID       string `mapstructure:"id"`
}

// waitParams: the documented parameter is milliseconds; duration is an
// accepted alias.
type waitParams struct {
	Milliseconds int `mapstructure:"milliseconds"`
	Duration     int `mapstructure:"duration"`
}

func (p waitParams) millis() int {
	if p.Milliseconds > 0 {
		return p.Milliseconds
	}
	return p.Duration
}

// decodeParams maps a dynamic parameter object onto a typed struct.
// Weak typing absorbs JSON numbers arriving as float64.
func decodeParams(src map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return fmt.Errorf("building parameter decoder: %w", err)
	}
	if err := dec.Decode(src); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}
