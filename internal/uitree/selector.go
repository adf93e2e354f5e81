package uitree

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Selector describes an element to locate in a snapshot. Fields are tried
// in a fixed priority order by Resolver.Resolve; the first populated field
// that matches a node wins.
type Selector struct {
	ResourceID         string  `json:"resourceId" mapstructure:"resourceId"`
	Text               string  `json:"text" mapstructure:"text"`
	ContentDescription string  `json:"contentDescription" mapstructure:"contentDescription"`
	ClassName          string  `json:"className" mapstructure:"className"`
	Bounds             *Bounds `json:"bounds" mapstructure:"bounds"`

	// Legacy aliases accepted on the wire. They are a separate, final
	// resolution stage: consulted only after every canonical criterion
	// has failed to match.
	LegacyID    string `json:"id" mapstructure:"id"`
	LegacyClass string `json:"class" mapstructure:"class"`
	LegacyDesc  string `json:"desc" mapstructure:"desc"`
}

// Empty reports whether the selector has no criteria at all.
func (s Selector) Empty() bool {
	return s.ResourceID == "" && s.Text == "" && s.ContentDescription == "" &&
		s.ClassName == "" && s.Bounds == nil &&
		s.LegacyID == "" && s.LegacyClass == "" && s.LegacyDesc == ""
}

// ParseSelector turns a raw selector string into a Selector. Accepted forms:
//
//	"id=com.app:id/button"    resource id
//	"text=Submit"             exact visible text
//	"desc=Close dialog"       content description
//	"class=android.widget.Button"
//	`{"resourceId":...}`      structured JSON descriptor
//	"Submit"                  bare string, treated as exact text
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}

	switch {
	case strings.HasPrefix(raw, "id="):
		return Selector{ResourceID: raw[len("id="):]}, nil
	case strings.HasPrefix(raw, "text="):
		return Selector{Text: raw[len("text="):]}, nil
	case strings.HasPrefix(raw, "desc="):
		return Selector{ContentDescription: raw[len("desc="):]}, nil
	case strings.HasPrefix(raw, "class="):
		return Selector{ClassName: raw[len("class="):]}, nil
	}

	if strings.HasPrefix(raw, "{") {
		var sel Selector
		if err := json.Unmarshal([]byte(raw), &sel); err != nil {
			return Selector{}, fmt.Errorf("parsing selector JSON: %w", err)
		}
		if sel.Empty() {
			return Selector{}, fmt.Errorf("selector has no criteria: %s", raw)
		}
		return sel, nil
	}

	return Selector{Text: raw}, nil
}

// SelectorFromValue builds a Selector from a dynamic parameter value: a
// string (ParseSelector rules) or a structured map from a decoded JSON
// payload.
func SelectorFromValue(v any) (Selector, error) {
	switch val := v.(type) {
	case string:
		return ParseSelector(val)
	case map[string]any:
		var sel Selector
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &sel,
		})
		if err != nil {
			return Selector{}, fmt.Errorf("building selector decoder: %w", err)
		}
		if err := dec.Decode(val); err != nil {
			return Selector{}, fmt.Errorf("decoding selector: %w", err)
		}
		if sel.Empty() {
			return Selector{}, fmt.Errorf("selector has no criteria")
		}
		return sel, nil
	case nil:
		return Selector{}, fmt.Errorf("missing selector")
	default:
		return Selector{}, fmt.Errorf("unsupported selector type %T", v)
	}
}

// DefaultBoundsTolerance is the pixel slack allowed when matching by
// bounds. Rendering differences between capture and resolution shift
// rectangles by a few pixels.
const DefaultBoundsTolerance = 10

// Resolver locates nodes in a snapshot by Selector.
type Resolver struct {
	// BoundsTolerance is the per-edge pixel slack for bounds matching.
	// Zero means DefaultBoundsTolerance.
	BoundsTolerance int
}

func (r Resolver) tolerance() int {
	if r.BoundsTolerance > 0 {
		return r.BoundsTolerance
	}
	return DefaultBoundsTolerance
}

// Resolve finds the first node in root matching sel, trying criteria in
// priority order: resource id, exact text, content description, class name
// with bounds, class name alone, bounds alone, then the legacy id/class/desc
// aliases. Returns nil when nothing matches.
func (r Resolver) Resolve(sel Selector, root *Node) *Node {
	if root == nil || sel.Empty() {
		return nil
	}

	if sel.ResourceID != "" {
		if n := findFirst(root, func(n *Node) bool { return n.ResourceID == sel.ResourceID }); n != nil {
			return n
		}
	}
	if sel.Text != "" {
		if n := findFirst(root, func(n *Node) bool { return n.Text == sel.Text }); n != nil {
			return n
		}
	}
	if sel.ContentDescription != "" {
		if n := findFirst(root, func(n *Node) bool { return n.ContentDescription == sel.ContentDescription }); n != nil {
			return n
		}
	}
	if sel.ClassName != "" && sel.Bounds != nil {
		tol := r.tolerance()
		if n := findFirst(root, func(n *Node) bool {
			return n.ClassName == sel.ClassName && n.Bounds.Within(*sel.Bounds, tol)
		}); n != nil {
			return n
		}
	}
	if sel.ClassName != "" {
		if n := findFirst(root, func(n *Node) bool { return n.ClassName == sel.ClassName }); n != nil {
			return n
		}
	}
	if sel.Bounds != nil {
		tol := r.tolerance()
		if n := findFirst(root, func(n *Node) bool { return n.Bounds.Within(*sel.Bounds, tol) }); n != nil {
			return n
		}
	}

	// Legacy aliases are a last resort, tried only once every canonical
	// criterion has failed.
	if sel.LegacyID != "" {
		if n := findFirst(root, func(n *Node) bool { return n.ResourceID == sel.LegacyID }); n != nil {
			return n
		}
	}
	if sel.LegacyClass != "" {
		if n := findFirst(root, func(n *Node) bool { return n.ClassName == sel.LegacyClass }); n != nil {
			return n
		}
	}
	if sel.LegacyDesc != "" {
		if n := findFirst(root, func(n *Node) bool { return n.ContentDescription == sel.LegacyDesc }); n != nil {
			return n
		}
	}
	return nil
}

// FindScrollable returns the first scrollable node in the tree, or nil.
func FindScrollable(root *Node) *Node {
	return findFirst(root, func(n *Node) bool { return n.Scrollable })
}

func findFirst(root *Node, match func(*Node) bool) *Node {
	var found *Node
	root.Walk(func(n *Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}
