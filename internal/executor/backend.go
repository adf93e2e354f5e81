package executor

import (
	"context"
	"time"

	"github.com/nerrad567/droid-agent/internal/uitree"
)

// NodeAction is an operation performed on a resolved node.
type NodeAction string

const (
	NodeClick          NodeAction = "click"
	NodeLongClick      NodeAction = "long_click"
	NodeFocus          NodeAction = "focus"
	NodeSetText        NodeAction = "set_text"
	NodeScrollForward  NodeAction = "scroll_forward"
	NodeScrollBackward NodeAction = "scroll_backward"
)

// GlobalAction is a device-level navigation action with no target node.
type GlobalAction string

const (
	GlobalBack          GlobalAction = "back"
	GlobalHome          GlobalAction = "home"
	GlobalRecents       GlobalAction = "recents"
	GlobalNotifications GlobalAction = "notifications"
)

// Point is a screen coordinate in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// AppInfo describes one launchable application.
type AppInfo struct {
	PackageName string `json:"packageName"`
	AppName     string `json:"appName"`
}

// DeviceContext is the ambient device state captured alongside a snapshot.
type DeviceContext struct {
	Package    string
	Activity   string
	ScreenOn   bool
	DeviceInfo map[string]string
}

// Backend is the platform capability the executor drives. The production
// implementation wraps the platform accessibility layer; tests and the
// bundled binary use the simulator.
//
// DispatchGesture is asynchronous: the backend reports the outcome through
// done exactly once, on its own goroutine. done receives true when the
// gesture ran to completion and false when the platform cancelled it.
type Backend interface {
	// Root captures the current UI hierarchy. May return nil with no
	// error when no window is showing.
	Root(ctx context.Context) (*uitree.Node, error)

	// PerformAction runs a node action on target. The bool reports
	// whether the platform accepted the action; args carries
	// action-specific values such as the text for NodeSetText.
	PerformAction(ctx context.Context, target *uitree.Node, action NodeAction, args map[string]any) (bool, error)

	// DispatchGesture injects a pointer gesture along path over the given
	// duration.
	DispatchGesture(ctx context.Context, path []Point, duration time.Duration, done func(completed bool)) error

	// PerformGlobal runs a device-level navigation action.
	PerformGlobal(ctx context.Context, action GlobalAction) (bool, error)

	// LaunchApp starts an application. activity may be empty for the
	// default launcher activity.
	LaunchApp(ctx context.Context, pkg, activity string) error

	// InstalledApps lists launchable applications.
	InstalledApps(ctx context.Context) ([]AppInfo, error)

	// DeviceContext reports the current package, activity and screen
	// state.
	DeviceContext(ctx context.Context) (DeviceContext, error)
}
