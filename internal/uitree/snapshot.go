package uitree

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
)

// DeviceState is the full snapshot attached to UI-changing action responses
// and to get_ui_state results.
type DeviceState struct {
	CurrentPackage  string            `json:"currentPackage"`
	CurrentActivity string            `json:"currentActivity"`
	ScreenState     string            `json:"screenState"`
	UIHierarchy     *Node             `json:"uiHierarchy"`
	VisibleText     []TextElement     `json:"visibleText"`
	DeviceInfo      map[string]string `json:"deviceInfo,omitempty"`
}

// TextElement is one piece of visible text with its location.
type TextElement struct {
	Text        string `json:"text"`
	ElementType string `json:"elementType"`
	ResourceID  string `json:"resourceId,omitempty"`
	Bounds      Bounds `json:"bounds"`
}

// ElementInfo is the flat element description returned by find_element.
type ElementInfo struct {
	Found              bool   `json:"found"`
	Text               string `json:"text,omitempty"`
	ContentDescription string `json:"description,omitempty"`
	ResourceID         string `json:"id,omitempty"`
	ClassName          string `json:"className,omitempty"`
	Bounds             Bounds `json:"bounds"`
	Clickable          bool   `json:"clickable"`
	LongClickable      bool   `json:"longClickable"`
	Focusable          bool   `json:"focusable"`
	Focused            bool   `json:"focused"`
	Selected           bool   `json:"selected"`
	Scrollable         bool   `json:"scrollable"`
	Enabled            bool   `json:"enabled"`
	Checkable          bool   `json:"checkable"`
	Checked            bool   `json:"checked"`
}

// DescribeNode flattens a node into an ElementInfo with Found set.
func DescribeNode(n *Node) ElementInfo {
	if n == nil {
		return ElementInfo{Found: false}
	}
	return ElementInfo{
		Found:              true,
		Text:               n.Text,
		ContentDescription: n.ContentDescription,
		ResourceID:         n.ResourceID,
		ClassName:          n.ClassName,
		Bounds:             n.Bounds,
		Clickable:          n.Clickable,
		LongClickable:      n.LongClickable,
		Focusable:          n.Focusable,
		Focused:            n.Focused,
		Selected:           n.Selected,
		Scrollable:         n.Scrollable,
		Enabled:            n.Enabled,
		Checkable:          n.Checkable,
		Checked:            n.Checked,
	}
}

// Screen states reported in DeviceState.ScreenState.
const (
	ScreenOn  = "on"
	ScreenOff = "off"
)

// Snapshot assembles a DeviceState from a captured hierarchy.
func Snapshot(root *Node, pkg, activity string, screenOn bool, deviceInfo map[string]string) DeviceState {
	state := ScreenOff
	if screenOn {
		state = ScreenOn
	}
	return DeviceState{
		CurrentPackage:  pkg,
		CurrentActivity: activity,
		ScreenState:     state,
		UIHierarchy:     root,
		VisibleText:     VisibleText(root),
		DeviceInfo:      deviceInfo,
	}
}

// VisibleText extracts every node carrying text, in traversal order.
func VisibleText(root *Node) []TextElement {
	var out []TextElement
	root.Walk(func(n *Node) bool {
		if n.Text != "" {
			out = append(out, TextElement{
				Text:        n.Text,
				ElementType: shortClass(n.ClassName),
				ResourceID:  n.ResourceID,
				Bounds:      n.Bounds,
			})
		}
		return true
	})
	return out
}

// InteractiveNodes returns the nodes that matter for change detection, in
// traversal order.
func InteractiveNodes(root *Node) []*Node {
	var out []*Node
	root.Walk(func(n *Node) bool {
		if n.Interactive() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Hash computes the change-detection digest for a screen: package, activity
// and the fingerprints of all interactive nodes. Equal hashes mean the
// screen has not meaningfully changed.
func Hash(pkg, activity string, root *Node) string {
	h := fnv.New64a()
	h.Write([]byte(pkg))
	h.Write([]byte{'|'})
	h.Write([]byte(activity))
	for _, n := range InteractiveNodes(root) {
		h.Write([]byte{'|'})
		h.Write([]byte(n.Fingerprint()))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// ChangeDetector deduplicates UI-change notifications by hash. Safe for
// concurrent use.
type ChangeDetector struct {
	mu   sync.Mutex
	last string
}

// Changed records the hash and reports whether it differs from the previous
// one. The first call always reports true.
func (d *ChangeDetector) Changed(hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if hash == d.last {
		return false
	}
	d.last = hash
	return true
}

// Reset forgets the last seen hash so the next snapshot always notifies.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	d.last = ""
	d.mu.Unlock()
}

// shortClass trims a fully qualified class name to its final component.
func shortClass(className string) string {
	if i := strings.LastIndexByte(className, '.'); i >= 0 {
		return className[i+1:]
	}
	return className
}
