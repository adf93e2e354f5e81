package agent

import (
	"context"
	"time"
)

// Maintenance intervals.
const (
	// DefaultHealthInterval is how often the health report is published.
	DefaultHealthInterval = 60 * time.Second

	// pruneInterval is how often expired history entries are removed.
	pruneInterval = time.Hour
)

// RunHealthReporter periodically publishes a retained health report to the
// event feed until ctx is cancelled. No-op when MQTT is not configured.
func (a *Agent) RunHealthReporter(ctx context.Context, interval time.Duration) {
	if a.events == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultHealthInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.publishHealth()
		}
	}
}

func (a *Agent) publishHealth() {
	stats := a.Stats()
	payload := map[string]any{
		"deviceId":          a.cfg.Agent.DeviceID,
		"actionsExecuted":   stats.ActionsExecuted,
		"uiChangesDetected": stats.UIChangesDetected,
		"eventsDropped":     stats.EventsDropped,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	}
	if stats.Session != nil {
		payload["sessionState"] = stats.Session.State
		payload["messagesSent"] = stats.Session.MessagesSent
		payload["messagesReceived"] = stats.Session.MessagesReceived
		payload["requestsServed"] = stats.Session.RequestsServed
		payload["pendingRequests"] = stats.Session.PendingRequests
	} else {
		payload["sessionState"] = "disconnected"
	}

	if err := a.events.PublishHealth(payload); err != nil {
		a.logger.Debug("health report not published", "error", err)
	}
}

// RunMaintenance prunes expired history entries on a fixed interval until
// ctx is cancelled. No-op when history or retention is not configured.
func (a *Agent) RunMaintenance(ctx context.Context) {
	if a.history == nil || a.cfg.History.RetentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -a.cfg.History.RetentionDays)
			pruned, err := a.history.Prune(ctx, cutoff)
			if err != nil {
				a.logger.Warn("history prune failed", "error", err)
				continue
			}
			if pruned > 0 {
				a.logger.Info("pruned action history", "removed", pruned)
			}
		}
	}
}
