package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/droid-agent/internal/executor"
	"github.com/nerrad567/droid-agent/internal/uitree"
)

// Sentinel errors for simulator operations.
var (
	// ErrAppNotInstalled is returned when launching an unregistered package.
	ErrAppNotInstalled = errors.New("simulator: app not installed")

	// ErrEmptyGesturePath is returned for a gesture with no points.
	ErrEmptyGesturePath = errors.New("simulator: gesture path is empty")

	// ErrScreenOff is returned for actions attempted while the screen is off.
	ErrScreenOff = errors.New("simulator: screen is off")
)

// defaultGestureDelay is how long a simulated gesture takes to complete.
const defaultGestureDelay = 50 * time.Millisecond

const (
	launcherPackage  = "com.android.launcher"
	launcherActivity = ".Launcher"
)

// app is one registered application: its catalog entry plus the screen shown
// after launch.
type app struct {
	info     executor.AppInfo
	activity string
	root     *uitree.Node
}

// Device is an in-memory implementation of executor.Backend.
//
// It holds a current UI hierarchy, a foreground package/activity pair and a
// registry of launchable apps. Actions mutate the hierarchy the way the real
// platform would (set_text changes node text, clicking a checkable toggles
// it) and every mutation fires the UI-change callback so observers see the
// same signal the production backend would raise.
//
// All methods are safe for concurrent use.
type Device struct {
	mu sync.Mutex

	root       *uitree.Node
	pkg        string
	activity   string
	screenOn   bool
	deviceInfo map[string]string

	apps []app

	gestureDelay time.Duration
	onUIChange   func()
}

// New creates a simulated device showing an empty launcher screen.
func New() *Device {
	return &Device{
		root:         launcherScreen(),
		pkg:          launcherPackage,
		activity:     launcherActivity,
		screenOn:     true,
		gestureDelay: defaultGestureDelay,
		deviceInfo: map[string]string{
			"model":        "SimDevice",
			"manufacturer": "droidagent",
		},
	}
}

// launcherScreen builds the minimal home-screen hierarchy.
func launcherScreen() *uitree.Node {
	return &uitree.Node{
		ClassName: "android.widget.FrameLayout",
		Bounds:    uitree.Bounds{Right: 1080, Bottom: 2400},
		Children: []*uitree.Node{
			{
				ResourceID: launcherPackage + ":id/workspace",
				ClassName:  "android.view.ViewGroup",
				Bounds:     uitree.Bounds{Right: 1080, Bottom: 2400},
				Scrollable: true,
				Enabled:    true,
			},
		},
	}
}

// SetOnUIChange registers a callback fired after every mutation of the
// visible hierarchy. The callback runs on the mutating goroutine with no
// locks held.
func (d *Device) SetOnUIChange(fn func()) {
	d.mu.Lock()
	d.onUIChange = fn
	d.mu.Unlock()
}

// SetGestureDelay overrides how long simulated gestures take. Tests use
// short delays; a delay longer than the executor's gesture timeout exercises
// the timeout path.
func (d *Device) SetGestureDelay(delay time.Duration) {
	d.mu.Lock()
	d.gestureDelay = delay
	d.mu.Unlock()
}

// SetRoot replaces the visible hierarchy, as if the foreground app redrew
// its screen.
func (d *Device) SetRoot(root *uitree.Node) {
	d.mu.Lock()
	d.root = root
	d.mu.Unlock()
	d.notifyUIChange()
}

// SetScreen turns the simulated display on or off.
func (d *Device) SetScreen(on bool) {
	d.mu.Lock()
	d.screenOn = on
	d.mu.Unlock()
}

// InstallApp registers a launchable application and the screen it shows
// after launch.
func (d *Device) InstallApp(info executor.AppInfo, activity string, root *uitree.Node) {
	d.mu.Lock()
	d.apps = append(d.apps, app{info: info, activity: activity, root: root})
	d.mu.Unlock()
}

// Root returns the current hierarchy.
func (d *Device) Root(_ context.Context) (*uitree.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.screenOn {
		return nil, nil
	}
	return d.root, nil
}

// PerformAction applies a node action, honouring the node's capability
// flags the way the accessibility layer does: clicking a non-clickable node
// is refused, not an error.
func (d *Device) PerformAction(_ context.Context, target *uitree.Node, action executor.NodeAction, args map[string]any) (bool, error) {
	if target == nil {
		return false, nil
	}

	d.mu.Lock()
	if !d.screenOn {
		d.mu.Unlock()
		return false, ErrScreenOff
	}

	accepted := false
	mutated := false
	switch action {
	case executor.NodeClick:
		if target.Clickable {
			accepted = true
			if target.Checkable {
				target.Checked = !target.Checked
				mutated = true
			}
		}
	case executor.NodeLongClick:
		accepted = target.LongClickable
	case executor.NodeFocus:
		if target.Focusable {
			target.Focused = true
			accepted = true
			mutated = true
		}
	case executor.NodeSetText:
		if target.Enabled {
			text, _ := args["text"].(string)
			target.Text = text
			accepted = true
			mutated = true
		}
	case executor.NodeScrollForward, executor.NodeScrollBackward:
		accepted = target.Scrollable
		mutated = accepted
	default:
		d.mu.Unlock()
		return false, fmt.Errorf("simulator: unsupported node action %q", action)
	}
	d.mu.Unlock()

	if mutated {
		d.notifyUIChange()
	}
	return accepted, nil
}

// DispatchGesture completes the gesture asynchronously after the configured
// delay. Cancelling ctx before the delay elapses reports the gesture as
// cancelled.
func (d *Device) DispatchGesture(ctx context.Context, path []executor.Point, _ time.Duration, done func(completed bool)) error {
	if len(path) == 0 {
		return ErrEmptyGesturePath
	}

	d.mu.Lock()
	if !d.screenOn {
		d.mu.Unlock()
		return ErrScreenOff
	}
	delay := d.gestureDelay
	d.mu.Unlock()

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			done(false)
		case <-timer.C:
			done(true)
			d.notifyUIChange()
		}
	}()
	return nil
}

// PerformGlobal runs a device-level navigation action. Home returns to the
// launcher screen.
func (d *Device) PerformGlobal(_ context.Context, action executor.GlobalAction) (bool, error) {
	switch action {
	case executor.GlobalHome:
		d.mu.Lock()
		d.root = launcherScreen()
		d.pkg = launcherPackage
		d.activity = launcherActivity
		d.mu.Unlock()
		d.notifyUIChange()
		return true, nil
	case executor.GlobalBack, executor.GlobalRecents, executor.GlobalNotifications:
		d.notifyUIChange()
		return true, nil
	default:
		return false, fmt.Errorf("simulator: unsupported global action %q", action)
	}
}

// LaunchApp switches the foreground to a registered app.
func (d *Device) LaunchApp(_ context.Context, pkg, activity string) error {
	d.mu.Lock()
	var found *app
	for i := range d.apps {
		if d.apps[i].info.PackageName == pkg {
			found = &d.apps[i]
			break
		}
	}
	if found == nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAppNotInstalled, pkg)
	}

	d.pkg = pkg
	if activity != "" {
		d.activity = activity
	} else {
		d.activity = found.activity
	}
	d.root = found.root
	d.mu.Unlock()

	d.notifyUIChange()
	return nil
}

// InstalledApps lists registered applications.
func (d *Device) InstalledApps(_ context.Context) ([]executor.AppInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	infos := make([]executor.AppInfo, 0, len(d.apps))
	for _, a := range d.apps {
		infos = append(infos, a.info)
	}
	return infos, nil
}

// DeviceContext reports the simulated foreground state.
func (d *Device) DeviceContext(_ context.Context) (executor.DeviceContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := make(map[string]string, len(d.deviceInfo))
	for k, v := range d.deviceInfo {
		info[k] = v
	}
	return executor.DeviceContext{
		Package:    d.pkg,
		Activity:   d.activity,
		ScreenOn:   d.screenOn,
		DeviceInfo: info,
	}, nil
}

func (d *Device) notifyUIChange() {
	d.mu.Lock()
	fn := d.onUIChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}
