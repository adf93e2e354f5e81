package uitree

import (
	"fmt"
	"strings"
)

// Bounds is a screen rectangle in pixels.
type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() (x, y int) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

// Within reports whether b matches other with every edge inside the given
// pixel tolerance.
func (b Bounds) Within(other Bounds, tolerance int) bool {
	return abs(b.Left-other.Left) <= tolerance &&
		abs(b.Top-other.Top) <= tolerance &&
		abs(b.Right-other.Right) <= tolerance &&
		abs(b.Bottom-other.Bottom) <= tolerance
}

// String renders the rectangle as "[l,t][r,b]".
func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.Left, b.Top, b.Right, b.Bottom)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Node is one element of a captured UI hierarchy. A tree of Nodes is an
// immutable snapshot; resolvers and serializers only read it.
type Node struct {
	Text               string `json:"text,omitempty"`
	ContentDescription string `json:"contentDescription,omitempty"`
	ResourceID         string `json:"resourceId,omitempty"`
	ClassName          string `json:"className,omitempty"`
	Bounds             Bounds `json:"bounds"`

	Clickable     bool `json:"clickable"`
	LongClickable bool `json:"longClickable"`
	Focusable     bool `json:"focusable"`
	Focused       bool `json:"focused"`
	Selected      bool `json:"selected"`
	Scrollable    bool `json:"scrollable"`
	Enabled       bool `json:"enabled"`
	Checkable     bool `json:"checkable"`
	Checked       bool `json:"checked"`
	Password      bool `json:"password"`

	Children []*Node `json:"children,omitempty"`
}

// Walk visits n and its descendants depth-first, pre-order. Traversal stops
// when visit returns false.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil {
		return
	}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(cur) {
			return
		}
		// Push children in reverse so the first child is visited first.
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// Interactive reports whether the node accepts some form of user input or
// carries visible text worth tracking for change detection.
func (n *Node) Interactive() bool {
	return n.Clickable || n.LongClickable || n.Scrollable || n.Checkable ||
		n.Focusable && n.Text != ""
}

// Fingerprint is a stable one-line identity for change hashing. Two nodes
// with equal fingerprints are considered the same element in the same place.
func (n *Node) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(n.ResourceID)
	sb.WriteByte('|')
	sb.WriteString(n.Text)
	sb.WriteByte('|')
	sb.WriteString(n.ContentDescription)
	sb.WriteByte('|')
	sb.WriteString(n.ClassName)
	sb.WriteByte('|')
	sb.WriteString(n.Bounds.String())
	if n.Checked {
		sb.WriteString("|checked")
	}
	if n.Selected {
		sb.WriteString("|selected")
	}
	return sb.String()
}
