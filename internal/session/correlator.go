package session

import (
	"sync"
	"time"

	"github.com/nerrad567/droid-agent/internal/protocol"
)

// Callback receives the terminal outcome of a pending request: a response,
// or an error (timeout, connection closed). Exactly one of resp/err is
// non-nil, and each callback fires at most once.
type Callback func(resp *protocol.ResponseMessage, err error)

// pendingRequest is one in-flight request awaiting its response.
type pendingRequest struct {
	callback Callback
	timer    *time.Timer
	sentAt   time.Time
}

// Correlator matches responses to in-flight requests by id and enforces
// per-request timeouts. Resolution is exactly-once: whichever of response,
// timeout or connection-close arrives first claims the entry, and the
// losers find it already gone.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]*pendingRequest)}
}

// Register tracks a request and arms its timeout. The callback fires on
// the timer goroutine (timeout) or the caller of Resolve/FailAll.
func (c *Correlator) Register(id string, timeout time.Duration, cb Callback) error {
	c.mu.Lock()
	if _, exists := c.pending[id]; exists {
		c.mu.Unlock()
		return ErrAlreadyPending
	}

	p := &pendingRequest{callback: cb, sentAt: time.Now()}
	p.timer = time.AfterFunc(timeout, func() {
		c.fail(id, ErrRequestTimeout)
	})
	c.pending[id] = p
	c.mu.Unlock()
	return nil
}

// Resolve delivers a response to its pending request. It returns false
// when no request with that id is pending (already resolved, timed out,
// or never existed).
func (c *Correlator) Resolve(id string, resp *protocol.ResponseMessage) bool {
	p := c.take(id)
	if p == nil {
		return false
	}
	p.callback(resp, nil)
	return true
}

// Forget drops a pending request without invoking its callback. Used when
// the send itself failed and the caller handles the error directly.
func (c *Correlator) Forget(id string) {
	c.take(id)
}

// fail resolves a pending request with an error.
func (c *Correlator) fail(id string, err error) {
	if p := c.take(id); p != nil {
		p.callback(nil, err)
	}
}

// take removes and returns the pending entry, stopping its timer. Nil when
// absent. This remove-if-present step is what makes resolution
// exactly-once.
func (c *Correlator) take(id string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	p.timer.Stop()
	return p
}

// FailAll resolves every pending request with err and returns how many
// were failed. Called on connection teardown.
func (c *Correlator) FailAll(err error) int {
	c.mu.Lock()
	taken := make([]*pendingRequest, 0, len(c.pending))
	for id, p := range c.pending {
		delete(c.pending, id)
		p.timer.Stop()
		taken = append(taken, p)
	}
	c.mu.Unlock()

	for _, p := range taken {
		p.callback(nil, err)
	}
	return len(taken)
}

// Len returns the number of in-flight requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
