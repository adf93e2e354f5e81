package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/droid-agent/internal/executor"
	"github.com/nerrad567/droid-agent/internal/history"
	"github.com/nerrad567/droid-agent/internal/infrastructure/config"
	"github.com/nerrad567/droid-agent/internal/infrastructure/influxdb"
	"github.com/nerrad567/droid-agent/internal/infrastructure/logging"
	"github.com/nerrad567/droid-agent/internal/infrastructure/mqtt"
	"github.com/nerrad567/droid-agent/internal/protocol"
	"github.com/nerrad567/droid-agent/internal/session"
	"github.com/nerrad567/droid-agent/internal/uitree"
)

// snapshotTimeout bounds UI capture triggered outside a request context.
const snapshotTimeout = 5 * time.Second

// Dependencies carries the optional integrations. Any field may be nil;
// the agent degrades to session-only operation.
type Dependencies struct {
	Logger  *logging.Logger
	History *history.Repository
	Events  *mqtt.Client
	Metrics *influxdb.Client
}

// uiChangeNotifier is implemented by backends that can signal hierarchy
// mutations, such as the simulator.
type uiChangeNotifier interface {
	SetOnUIChange(func())
}

// Stats is a point-in-time snapshot of agent counters.
type Stats struct {
	ActionsExecuted   uint64
	UIChangesDetected uint64
	EventsDropped     uint64
	Session           *session.Stats
}

// Agent ties the pieces together: it serves inbound action requests from
// the session, drives the executor against the backend, attaches fresh
// device snapshots to UI-changing responses, and fans results out to the
// event feed, the history store and the metrics sink.
type Agent struct {
	cfg     *config.Config
	backend executor.Backend
	exec    *executor.Executor
	logger  *logging.Logger

	history *history.Repository
	events  *mqtt.Client
	metrics *influxdb.Client

	detector uitree.ChangeDetector

	sessMu sync.RWMutex
	sess   *session.Session

	actionsExecuted   atomic.Uint64
	uiChangesDetected atomic.Uint64
	eventsDropped     atomic.Uint64
}

// New creates an Agent over the given backend.
func New(cfg *config.Config, backend executor.Backend, deps Dependencies) *Agent {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	exec := executor.New(backend, executor.Config{
		GestureTimeout:  time.Duration(cfg.Executor.GestureTimeout) * time.Second,
		DedupeWindow:    time.Duration(cfg.Executor.DedupeWindow) * time.Second,
		BoundsTolerance: cfg.Selector.BoundsTolerance,
	})
	exec.SetLogger(logger.With("component", "executor"))

	a := &Agent{
		cfg:     cfg,
		backend: backend,
		exec:    exec,
		logger:  logger,
		history: deps.History,
		events:  deps.Events,
		metrics: deps.Metrics,
	}
	exec.SetEventSink(a)

	if notifier, ok := backend.(uiChangeNotifier); ok {
		notifier.SetOnUIChange(a.handleUIChange)
	}
	return a
}

// HandleRequest executes one inbound action and builds the response data.
// UI-changing actions carry a fresh device snapshot in the response.
func (a *Agent) HandleRequest(ctx context.Context, req *protocol.RequestMessage) map[string]any {
	start := time.Now()
	res := a.exec.Execute(ctx, req.ActionType, req.Parameters)
	duration := time.Since(start)
	a.actionsExecuted.Add(1)

	data := make(map[string]any, 3+len(res.Extra))
	if res.Success {
		data["status"] = "success"
	} else {
		data["status"] = "error"
	}
	data["message"] = res.Message
	for k, v := range res.Extra {
		data[k] = v
	}
	if res.UIChanging {
		if state, ok := a.snapshot(ctx); ok {
			data["deviceState"] = state
		}
	}

	a.record(ctx, req, res, duration)
	return data
}

// record persists the action and emits its metric. Failures are logged,
// never surfaced: bookkeeping must not fail the action.
func (a *Agent) record(ctx context.Context, req *protocol.RequestMessage, res executor.Result, duration time.Duration) {
	canonical, ok := executor.Normalize(req.ActionType)
	if !ok {
		canonical = req.ActionType
	}

	if a.history != nil {
		err := a.history.Record(ctx, history.Entry{
			RequestID:  req.RequestID,
			ActionType: canonical,
			Success:    res.Success,
			Message:    res.Message,
			Duration:   duration,
		})
		if err != nil {
			a.logger.Warn("failed to record action history", "request_id", req.RequestID, "error", err)
		}
	}
	if a.metrics != nil {
		a.metrics.WriteActionMetric(a.cfg.Agent.DeviceID, canonical, res.Success, duration)
	}
}

// NotifyResult implements executor.EventSink. Every action outcome is
// broadcast as an action_result event on the session and the event feed.
func (a *Agent) NotifyResult(action string, res executor.Result) {
	payload := map[string]any{
		"action":  action,
		"success": res.Success,
		"message": res.Message,
	}

	if sess := a.session(); sess != nil {
		if err := sess.SendEvent("action_result", payload); err != nil {
			a.eventsDropped.Add(1)
			a.logger.Debug("action_result event not sent", "action", action, "error", err)
		}
	}
	if a.events != nil {
		if err := a.events.PublishEvent("action_result", payload); err != nil {
			a.eventsDropped.Add(1)
		}
	}
}

// handleUIChange runs when the backend reports a hierarchy mutation. The
// change hash suppresses notifications for screens that did not
// meaningfully change.
func (a *Agent) handleUIChange() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	dc, err := a.backend.DeviceContext(ctx)
	if err != nil {
		a.logger.Warn("device context unavailable", "error", err)
		return
	}
	root, err := a.backend.Root(ctx)
	if err != nil {
		a.logger.Warn("ui root unavailable", "error", err)
		return
	}

	hash := uitree.Hash(dc.Package, dc.Activity, root)
	if !a.detector.Changed(hash) {
		return
	}
	a.uiChangesDetected.Add(1)

	state := uitree.Snapshot(root, dc.Package, dc.Activity, dc.ScreenOn, dc.DeviceInfo)
	payload := map[string]any{
		"deviceState": state,
		"hash":        hash,
	}

	if sess := a.session(); sess != nil {
		if err := sess.SendEvent("ui_changed", payload); err != nil {
			a.eventsDropped.Add(1)
			a.logger.Debug("ui_changed event not sent", "error", err)
		}
	}
	if a.events != nil {
		if err := a.events.PublishEvent("ui_changed", payload); err != nil {
			a.eventsDropped.Add(1)
		}
	}
	if a.metrics != nil {
		a.metrics.WriteUIChange(a.cfg.Agent.DeviceID, dc.Package, len(uitree.InteractiveNodes(root)))
	}
}

// snapshot captures the current device state.
func (a *Agent) snapshot(ctx context.Context) (uitree.DeviceState, bool) {
	dc, err := a.backend.DeviceContext(ctx)
	if err != nil {
		a.logger.Warn("device context unavailable", "error", err)
		return uitree.DeviceState{}, false
	}
	root, err := a.backend.Root(ctx)
	if err != nil {
		a.logger.Warn("ui root unavailable", "error", err)
		return uitree.DeviceState{}, false
	}
	return uitree.Snapshot(root, dc.Package, dc.Activity, dc.ScreenOn, dc.DeviceInfo), true
}

// Run connects to the automation server and keeps the session alive,
// reconnecting with exponential backoff until ctx is cancelled. Returns
// nil on shutdown, or an error once the attempt budget is exhausted.
func (a *Agent) Run(ctx context.Context) error {
	rc := a.cfg.Server.Reconnect
	initialDelay := time.Duration(rc.InitialDelay) * time.Second
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	maxDelay := time.Duration(rc.MaxDelay) * time.Second
	if maxDelay < initialDelay {
		maxDelay = 60 * time.Second
	}

	delay := initialDelay
	attempts := 0
	for {
		sess, err := session.Dial(ctx, a.sessionConfig(), a, a.logger.With("component", "session"))
		if err != nil {
			attempts++
			if rc.MaxAttempts > 0 && attempts >= rc.MaxAttempts {
				return fmt.Errorf("giving up after %d connection attempts: %w", attempts, err)
			}
			if a.metrics != nil {
				a.metrics.WriteSessionEvent(a.cfg.Agent.DeviceID, "connect_failed")
			}
			a.logger.Warn("connection failed, retrying", "delay", delay, "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
			continue
		}

		attempts = 0
		delay = initialDelay
		a.setSession(sess)
		// Fresh session, fresh baseline: the first snapshot after connect
		// always raises ui_changed.
		a.detector.Reset()
		if a.metrics != nil {
			a.metrics.WriteSessionEvent(a.cfg.Agent.DeviceID, "connected")
		}

		select {
		case <-ctx.Done():
			sess.Close() //nolint:errcheck // shutdown
			<-sess.Done()
			a.setSession(nil)
			return nil
		case <-sess.Done():
			a.setSession(nil)
			if a.metrics != nil {
				a.metrics.WriteSessionEvent(a.cfg.Agent.DeviceID, "disconnected")
			}
			if err := sess.Err(); err != nil {
				a.logger.Warn("session lost", "error", err)
			}
		}
	}
}

// sessionConfig translates agent configuration into session parameters.
func (a *Agent) sessionConfig() session.Config {
	srv := a.cfg.Server
	return session.Config{
		Host:     srv.Host,
		Port:     srv.Port,
		DeviceID: a.cfg.Agent.DeviceID,
		DeviceInfo: protocol.DeviceInfo{
			Model:        a.cfg.Agent.Device.Model,
			Manufacturer: a.cfg.Agent.Device.Manufacturer,
			OSVersion:    a.cfg.Agent.Device.OSVersion,
			SDKVersion:   a.cfg.Agent.Device.SDKVersion,
		},
		ConnectTimeout:    time.Duration(srv.ConnectTimeout) * time.Second,
		HeartbeatInterval: time.Duration(srv.HeartbeatInterval) * time.Second,
		RequestTimeout:    time.Duration(srv.RequestTimeout) * time.Second,
	}
}

// Stats returns a snapshot of agent counters, including the live session's
// counters when connected.
func (a *Agent) Stats() Stats {
	stats := Stats{
		ActionsExecuted:   a.actionsExecuted.Load(),
		UIChangesDetected: a.uiChangesDetected.Load(),
		EventsDropped:     a.eventsDropped.Load(),
	}
	if sess := a.session(); sess != nil {
		s := sess.Stats()
		stats.Session = &s
	}
	return stats
}

func (a *Agent) session() *session.Session {
	a.sessMu.RLock()
	defer a.sessMu.RUnlock()
	return a.sess
}

func (a *Agent) setSession(sess *session.Session) {
	a.sessMu.Lock()
	a.sess = sess
	a.sessMu.Unlock()
}
