package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/droid-agent/internal/uitree"
)

// Default timing constants.
const (
	// DefaultGestureTimeout bounds how long a dispatched gesture may take
	// before the action is reported as timed out.
	DefaultGestureTimeout = 10 * time.Second

	// DefaultDedupeWindow is how long a duplicate of the same action is
	// rejected after dispatch.
	DefaultDedupeWindow = 5 * time.Second

	// tapDuration is the pointer-down time for a synthesized tap.
	tapDuration = 100 * time.Millisecond

	// longPressDuration is the pointer-down time for a synthesized long
	// press.
	longPressDuration = 1000 * time.Millisecond

	// defaultSwipeDuration applies when a swipe request omits duration.
	defaultSwipeDuration = 300 * time.Millisecond

	// defaultWaitDuration applies when a wait request omits duration.
	defaultWaitDuration = 500 * time.Millisecond
)

// Result is the outcome of one executed action.
type Result struct {
	// Success reports whether the action took effect. find_element is the
	// exception: a completed lookup is successful even when nothing
	// matched.
	Success bool

	// Message is a short human-readable outcome description.
	Message string

	// Extra carries action-specific payload (elementInfo, installedApps).
	Extra map[string]any

	// UIChanging marks actions whose response should carry a fresh
	// device snapshot.
	UIChanging bool
}

func failf(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

func okf(format string, args ...any) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

// EventSink receives the outcome of every executed action, successful or
// not. All results pass through this single funnel.
type EventSink interface {
	NotifyResult(action string, result Result)
}

// Logger is the optional structured logger accepted by SetLogger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config tunes executor behavior. Zero values select the defaults.
type Config struct {
	GestureTimeout  time.Duration
	DedupeWindow    time.Duration
	BoundsTolerance int
}

// Executor validates, deduplicates and dispatches actions against a
// Backend. Safe for concurrent use; each Execute call is independent.
type Executor struct {
	backend        Backend
	resolver       uitree.Resolver
	tickets        *ticketTable
	gestureTimeout time.Duration

	sink   EventSink
	sinkMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an Executor driving the given backend.
func New(backend Backend, cfg Config) *Executor {
	if cfg.GestureTimeout <= 0 {
		cfg.GestureTimeout = DefaultGestureTimeout
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = DefaultDedupeWindow
	}
	return &Executor{
		backend:        backend,
		resolver:       uitree.Resolver{BoundsTolerance: cfg.BoundsTolerance},
		tickets:        newTicketTable(cfg.DedupeWindow),
		gestureTimeout: cfg.GestureTimeout,
	}
}

// SetEventSink installs the result funnel. Pass nil to disable.
func (e *Executor) SetEventSink(sink EventSink) {
	e.sinkMu.Lock()
	e.sink = sink
	e.sinkMu.Unlock()
}

// SetLogger installs an optional logger.
func (e *Executor) SetLogger(logger Logger) {
	e.loggerMu.Lock()
	e.logger = logger
	e.loggerMu.Unlock()
}

func (e *Executor) getLogger() Logger {
	e.loggerMu.RLock()
	defer e.loggerMu.RUnlock()
	return e.logger
}

// Normalize folds the accepted action spellings onto canonical names,
// case-insensitively. The second return is false for unknown actions.
func Normalize(actionType string) (string, bool) {
	canonical, ok := actionAliases[lower(actionType)]
	return canonical, ok
}

var actionAliases = map[string]string{
	"click":               "click",
	"long_press":          "long_press",
	"long_click":          "long_press",
	"swipe":               "swipe",
	"input_text":          "input_text",
	"type_text":           "input_text",
	"scroll":              "scroll",
	"back":                "back",
	"press_back":          "back",
	"home":                "home",
	"press_home":          "home",
	"launch_app":          "launch_app",
	"get_ui_state":        "get_ui_state",
	"get_installed_apps":  "get_installed_apps",
	"find_element":        "find_element",
	"focus":               "focus",
	"press_recents":       "press_recents",
	"press_notifications": "press_notifications",
	"wait":                "wait",
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Execute runs one action to completion and returns its outcome. Gesture
// actions block until the platform reports completion, cancellation or the
// gesture timeout elapses. Panics inside handlers are contained and
// reported as execution errors. Every outcome is also delivered to the
// event sink.
func (e *Executor) Execute(ctx context.Context, actionType string, params map[string]any) Result {
	canonical, ok := Normalize(actionType)
	if !ok {
		res := failf("unknown action type: %s", actionType)
		e.notify(actionType, res)
		return res
	}

	if canonical == "launch_app" {
		// A new app means a new screen; prior suppression history is
		// meaningless there.
		e.tickets.Reset()
	} else if !e.tickets.Begin(canonical) {
		res := failf("duplicate action suppressed: %s", canonical)
		e.notify(canonical, res)
		return res
	}

	res := e.dispatch(ctx, canonical, params)
	e.notify(canonical, res)
	return res
}

func (e *Executor) dispatch(ctx context.Context, canonical string, params map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			if logger := e.getLogger(); logger != nil {
				logger.Error("action handler panic recovered", "action", canonical, "panic", r)
			}
			res = failf("execution error: %v", r)
		}
	}()

	var err error
	switch canonical {
	case "click":
		res, err = e.click(ctx, params, false)
	case "long_press":
		res, err = e.click(ctx, params, true)
	case "swipe":
		res, err = e.swipe(ctx, params)
	case "input_text":
		res, err = e.inputText(ctx, params)
	case "scroll":
		res, err = e.scroll(ctx, params)
	case "back":
		res, err = e.global(ctx, GlobalBack, "pressed back")
	case "home":
		res, err = e.global(ctx, GlobalHome, "pressed home")
	case "press_recents":
		res, err = e.global(ctx, GlobalRecents, "opened recents")
	case "press_notifications":
		res, err = e.global(ctx, GlobalNotifications, "opened notifications")
	case "launch_app":
		res, err = e.launchApp(ctx, params)
	case "get_ui_state":
		res = Result{Success: true, Message: "ui state captured", UIChanging: true}
	case "get_installed_apps":
		res, err = e.installedApps(ctx)
	case "find_element":
		res, err = e.findElement(ctx, params)
	case "focus":
		res, err = e.focus(ctx, params)
	case "wait":
		res, err = e.wait(ctx, params)
	default:
		res = failf("unknown action type: %s", canonical)
	}
	if err != nil {
		if logger := e.getLogger(); logger != nil {
			logger.Warn("action failed", "action", canonical, "error", err)
		}
		return failf("execution error: %v", err)
	}
	return res
}

func (e *Executor) notify(action string, res Result) {
	e.sinkMu.RLock()
	sink := e.sink
	e.sinkMu.RUnlock()
	if sink != nil {
		sink.NotifyResult(action, res)
	}
}

// resolveTarget locates the node addressed by the common selector/id/text/
// desc parameter forms. A nil return with nil error means no match.
func (e *Executor) resolveTarget(ctx context.Context, selector any, id, text, desc string) (*uitree.Node, error) {
	var sel uitree.Selector
	switch {
	case selector != nil:
		var err error
		sel, err = uitree.SelectorFromValue(selector)
		if err != nil {
			return nil, err
		}
	case id != "":
		sel = uitree.Selector{ResourceID: id}
	case text != "":
		sel = uitree.Selector{Text: text}
	case desc != "":
		sel = uitree.Selector{ContentDescription: desc}
	default:
		return nil, fmt.Errorf("missing element target")
	}

	root, err := e.backend.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing ui root: %w", err)
	}
	return e.resolver.Resolve(sel, root), nil
}

func (e *Executor) click(ctx context.Context, params map[string]any, long bool) (Result, error) {
	var p clickParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	name := "click"
	if long {
		name = "long press"
	}
	if !p.hasTarget() {
		return failf("%s requires a selector, id, text, desc or coordinates", name), nil
	}

	if p.hasCoordinates() {
		duration := tapDuration
		if long {
			duration = longPressDuration
		}
		res := e.runGesture(ctx, []Point{{X: *p.X, Y: *p.Y}}, duration)
		if res.Success {
			res = okf("%s at (%d, %d)", name, *p.X, *p.Y)
		}
		res.UIChanging = res.Success
		return res, nil
	}

	target, err := e.resolveTarget(ctx, p.Selector, p.ID, p.Text, p.Desc)
	if err != nil {
		return Result{}, err
	}
	if target == nil {
		return failf("element not found"), nil
	}

	action := NodeClick
	if long {
		action = NodeLongClick
	}
	performed, err := e.backend.PerformAction(ctx, target, action, nil)
	if err != nil {
		return Result{}, err
	}
	if !performed {
		return failf("%s rejected by element", name), nil
	}
	return Result{Success: true, Message: name + " performed", UIChanging: true}, nil
}

func (e *Executor) swipe(ctx context.Context, params map[string]any) (Result, error) {
	var p swipeParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	if err := p.validate(); err != nil {
		return failf("%v", err), nil
	}

	duration := defaultSwipeDuration
	if p.Duration > 0 {
		duration = time.Duration(p.Duration) * time.Millisecond
	}

	res := e.runGesture(ctx, []Point{{X: *p.X1, Y: *p.Y1}, {X: *p.X2, Y: *p.Y2}}, duration)
	if res.Success {
		res = okf("swiped (%d, %d) -> (%d, %d)", *p.X1, *p.Y1, *p.X2, *p.Y2)
	}
	res.UIChanging = res.Success
	return res, nil
}

// runGesture dispatches a gesture and blocks until the backend reports the
// outcome, the gesture timeout elapses or ctx is cancelled. The completion
// callback hands off to a buffered channel so the backend goroutine never
// blocks on a caller that already gave up.
func (e *Executor) runGesture(ctx context.Context, path []Point, duration time.Duration) Result {
	done := make(chan bool, 1)
	err := e.backend.DispatchGesture(ctx, path, duration, func(completed bool) {
		select {
		case done <- completed:
		default:
		}
	})
	if err != nil {
		return failf("execution error: %v", err)
	}

	timer := time.NewTimer(e.gestureTimeout)
	defer timer.Stop()

	select {
	case completed := <-done:
		if !completed {
			return failf("gesture cancelled")
		}
		return Result{Success: true}
	case <-timer.C:
		return failf("action timed out")
	case <-ctx.Done():
		return failf("action cancelled: %v", ctx.Err())
	}
}

func (e *Executor) inputText(ctx context.Context, params map[string]any) (Result, error) {
	var p inputTextParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	if p.Text == "" {
		return failf("input_text requires text"), nil
	}
	if p.Selector == nil && p.ID == "" {
		return failf("input_text requires a selector or id"), nil
	}

	target, err := e.resolveTarget(ctx, p.Selector, p.ID, "", "")
	if err != nil {
		return Result{}, err
	}
	if target == nil {
		return failf("element not found"), nil
	}

	performed, err := e.backend.PerformAction(ctx, target, NodeSetText, map[string]any{"text": p.Text})
	if err != nil {
		return Result{}, err
	}
	if !performed {
		return failf("element rejected text input"), nil
	}
	return Result{Success: true, Message: "text entered", UIChanging: true}, nil
}

func (e *Executor) scroll(ctx context.Context, params map[string]any) (Result, error) {
	var p scrollParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}

	action := NodeScrollForward
	direction := "down"
	if !p.down() {
		action = NodeScrollBackward
		direction = "up"
	}

	root, err := e.backend.Root(ctx)
	if err != nil {
		return Result{}, err
	}
	if root == nil {
		return failf("no active window"), nil
	}

	// Try the root first; many screens scroll at the top level. Fall back
	// to the first scrollable descendant.
	target := root
	if !root.Scrollable {
		target = uitree.FindScrollable(root)
	}
	if target == nil {
		return failf("nothing to scroll"), nil
	}

	performed, err := e.backend.PerformAction(ctx, target, action, nil)
	if err != nil {
		return Result{}, err
	}
	if !performed && target == root {
		if target = uitree.FindScrollable(root); target != nil && target != root {
			performed, err = e.backend.PerformAction(ctx, target, action, nil)
			if err != nil {
				return Result{}, err
			}
		}
	}
	if !performed {
		return failf("scroll %s rejected", direction), nil
	}
	return Result{Success: true, Message: "scrolled " + direction, UIChanging: true}, nil
}

func (e *Executor) global(ctx context.Context, action GlobalAction, message string) (Result, error) {
	performed, err := e.backend.PerformGlobal(ctx, action)
	if err != nil {
		return Result{}, err
	}
	if !performed {
		return failf("global action %s rejected", action), nil
	}
	return Result{Success: true, Message: message, UIChanging: true}, nil
}

func (e *Executor) launchApp(ctx context.Context, params map[string]any) (Result, error) {
	var p launchAppParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	pkg, activity, err := p.component()
	if err != nil {
		return failf("%v", err), nil
	}

	if err := e.backend.LaunchApp(ctx, pkg, activity); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: "launched " + pkg, UIChanging: true}, nil
}

func (e *Executor) installedApps(ctx context.Context) (Result, error) {
	apps, err := e.backend.InstalledApps(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("%d apps installed", len(apps)),
		Extra:   map[string]any{"installedApps": apps, "count": len(apps)},
	}, nil
}

func (e *Executor) findElement(ctx context.Context, params map[string]any) (Result, error) {
	var p findElementParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	if p.Selector == nil && p.ID == "" && p.Text == "" && p.Desc == "" {
		return failf("find_element requires a selector"), nil
	}

	target, err := e.resolveTarget(ctx, p.Selector, p.ID, p.Text, p.Desc)
	if err != nil {
		return Result{}, err
	}

	// A lookup that finds nothing is still a successful lookup; the
	// caller inspects elementInfo.found.
	info := uitree.DescribeNode(target)
	message := "element found"
	if !info.Found {
		message = "element not found"
	}
	return Result{
		Success: true,
		Message: message,
		Extra:   map[string]any{"elementInfo": info},
	}, nil
}

func (e *Executor) focus(ctx context.Context, params map[string]any) (Result, error) {
	var p focusParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	if p.Selector == nil && p.ID == "" {
		return failf("focus requires a selector or id"), nil
	}

	target, err := e.resolveTarget(ctx, p.Selector, p.ID, "", "")
	if err != nil {
		return Result{}, err
	}
	if target == nil {
		return failf("element not found"), nil
	}

	performed, err := e.backend.PerformAction(ctx, target, NodeFocus, nil)
	if err != nil {
		return Result{}, err
	}
	if !performed {
		return failf("element rejected focus"), nil
	}
	return okf("focused"), nil
}

func (e *Executor) wait(ctx context.Context, params map[string]any) (Result, error) {
	var p waitParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}

	duration := defaultWaitDuration
	if ms := p.millis(); ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return okf("waited %dms", duration.Milliseconds()), nil
	case <-ctx.Done():
		return failf("wait cancelled: %v", ctx.Err()), nil
	}
}
