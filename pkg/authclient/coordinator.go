package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/idx"
)

// Refresher mints a new credential from a refresh token. *authsdk.SDKClient
// satisfies it; the call must not go through the authenticated pipeline.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (authsdk.Credential, error)
}

// Coordinator runs the single-flight refresh protocol. It is Idle when
// current is nil and Refreshing(current) otherwise; every transition happens
// under mu, so exactly one caller observes Idle and starts the refresh.
type Coordinator struct {
	mu      sync.Mutex
	current *ticket

	session   *Session
	refresher Refresher

	// replay re-sends a request with the current access token, provided the
	// session is still at epoch. It calls issued once the request is about to
	// go on the wire and never re-enters the coordinator.
	replay func(ctx context.Context, req *Request, epoch uint64, issued func()) (*http.Response, error)

	// onRotated persists a refreshed credential.
	onRotated func(ctx context.Context, snap Snapshot)

	// onTerminal logs out the session at generation gen. It runs before any
	// waiter is released.
	onTerminal func(ctx context.Context, gen uint64, reason string, cause error)

	refreshTimeout time.Duration
	waitTimeout    time.Duration
	metrics        *Metrics
	logger         *slog.Logger
}

// ticket is the live refresh. queue holds the requests waiting on it in
// arrival order, the starter first.
type ticket struct {
	id         idx.ID
	generation uint64
	epoch      uint64
	startedAt  time.Time
	queue      []*pending
}

type pending struct {
	ctx    context.Context
	req    *Request
	result chan result
}

type result struct {
	resp *http.Response
	err  error
}

// AwaitRefreshThenRetry is called by the Client after req, sent with the
// session as it was in sent, came back 401. It joins the in-flight refresh
// or starts one, then returns the response of the replayed request or a
// terminal error. A request whose session was replaced or ended since it
// was sent fails with authsdk.ErrLoggedOut and is never replayed.
func (c *Coordinator) AwaitRefreshThenRetry(ctx context.Context, req *Request, sent Snapshot) (*http.Response, error) {
	p := &pending{ctx: ctx, req: req, result: make(chan result, 1)}

	c.mu.Lock()
	t := c.current
	if t == nil {
		snap := c.session.Snapshot()
		switch {
		case snap.Epoch != sent.Epoch:
			c.mu.Unlock()
			return nil, loggedOut(req)

		case !snap.IsAuthenticated():
			c.mu.Unlock()
			return nil, authsdk.ErrNotAuthenticated

		case snap.Generation != sent.Generation:
			// The token was rotated after this request left; the refresh it
			// needs has already happened.
			c.mu.Unlock()
			c.logger.Debug("replaying_stale_request", "method", req.Method, "path", req.Path)
			c.metrics.recordReplay()
			return c.replay(ctx, req, sent.Epoch, func() {})
		}

		t = &ticket{
			id:         idx.New(),
			generation: snap.Generation,
			epoch:      snap.Epoch,
			startedAt:  time.Now(),
			queue:      []*pending{p},
		}
		c.current = t
		c.mu.Unlock()

		c.logger.Debug("token_refresh_started", "ticket", t.id, "method", req.Method, "path", req.Path)
		go c.run(ctx, t, snap.Credential.RefreshToken)
	} else {
		if t.epoch != sent.Epoch {
			c.mu.Unlock()
			return nil, loggedOut(req)
		}
		t.queue = append(t.queue, p)
		c.mu.Unlock()
	}

	return c.wait(ctx, t, p)
}

func loggedOut(req *Request) error {
	return fmt.Errorf("%w: session ended while %s %s was in flight", authsdk.ErrLoggedOut, req.Method, req.Path)
}

// Cancel is called after the session was replaced or ended. If the
// in-flight refresh belongs to an earlier epoch, every request queued on it
// fails with err and the coordinator returns to Idle. The refresh call
// itself keeps running and its result is discarded once it sees the session
// has moved on. A refresh started by the current session is left alone.
func (c *Coordinator) Cancel(err error) {
	c.mu.Lock()
	t := c.current
	if t == nil || t.epoch == c.session.Epoch() {
		c.mu.Unlock()
		return
	}
	c.current = nil
	queue := t.queue
	t.queue = nil
	c.mu.Unlock()

	c.fail(queue, err)
}

// Refreshing reports whether a refresh is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Coordinator) run(ctx context.Context, t *ticket, refreshToken string) {
	logger := c.logger.With("ticket", t.id)

	// Detached from the starter: abandoning the first request must not cancel
	// the refresh the others are waiting on.
	base := context.WithoutCancel(ctx)
	refreshCtx, cancel := context.WithTimeout(base, c.refreshTimeout)
	cred, err := c.refresher.Refresh(refreshCtx, refreshToken)
	timedOut := errors.Is(refreshCtx.Err(), context.DeadlineExceeded)
	cancel()
	elapsed := time.Since(t.startedAt)

	if err == nil {
		snap, ok := c.session.Rotate(t.generation, cred)
		if !ok {
			c.metrics.recordRefresh(OutcomeSuperseded, elapsed)
			logger.Info("token_refresh_superseded", "duration_ms", elapsed.Milliseconds())
			c.resolveSuperseded(c.finish(t))
			return
		}

		c.metrics.recordRefresh(OutcomeSuccess, elapsed)
		if c.onRotated != nil {
			c.onRotated(base, snap)
		}

		queue := c.finish(t)
		logger.Info("token_refreshed", "waiters", len(queue), "duration_ms", elapsed.Milliseconds())
		c.dispatch(queue, t.epoch)
		return
	}

	if c.session.Generation() != t.generation {
		c.metrics.recordRefresh(OutcomeSuperseded, elapsed)
		logger.Info("token_refresh_superseded", "error", err)
		c.resolveSuperseded(c.finish(t))
		return
	}

	switch {
	case timedOut:
		err = fmt.Errorf("%w: %w", authsdk.ErrRefreshTimeout, err)
		c.metrics.recordRefresh(OutcomeTimeout, elapsed)
		logger.Warn("token_refresh_timed_out", "timeout", c.refreshTimeout)
		c.terminal(base, t, ReasonRefreshTimeout, err)

	case errors.Is(err, authsdk.ErrRefreshRejected):
		c.metrics.recordRefresh(OutcomeRejected, elapsed)
		logger.Warn("token_refresh_rejected", "error", err)
		c.terminal(base, t, ReasonRefreshRefused, err)

	default:
		c.metrics.recordRefresh(OutcomeTransport, elapsed)
		logger.Warn("token_refresh_failed", "error", err)
		c.fail(c.finish(t), err)
	}
}

// terminal logs the session out while t is still current, so no request can
// start a second refresh with the dead token, then releases the waiters.
func (c *Coordinator) terminal(ctx context.Context, t *ticket, reason string, cause error) {
	if c.onTerminal != nil {
		c.onTerminal(ctx, t.generation, reason, cause)
	}
	c.fail(c.finish(t), cause)
}

// finish moves t out of the live slot and hands back its queue.
func (c *Coordinator) finish(t *ticket) []*pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == t {
		c.current = nil
	}
	queue := t.queue
	t.queue = nil
	return queue
}

func (c *Coordinator) isCurrent(t *ticket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == t
}

// remove takes p out of t's queue if it has not been dispatched yet.
func (c *Coordinator) remove(t *ticket, p *pending) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.Index(t.queue, p)
	if i < 0 {
		return false
	}
	t.queue = slices.Delete(t.queue, i, i+1)
	return true
}

func (c *Coordinator) wait(ctx context.Context, t *ticket, p *pending) (*http.Response, error) {
	c.metrics.waiterAdded()
	defer c.metrics.waiterDone()

	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	select {
	case r := <-p.result:
		return r.resp, r.err

	case <-ctx.Done():
		if c.remove(t, p) {
			return nil, ctx.Err()
		}
		// Already dispatched: the replay observes the same context.

	case <-timer.C:
		if c.isCurrent(t) {
			err := fmt.Errorf("%w: no refresh result after %s", authsdk.ErrRefreshTimeout, c.waitTimeout)
			c.logger.Warn("token_refresh_wait_timed_out", "ticket", t.id, "timeout", c.waitTimeout)
			c.terminal(context.WithoutCancel(ctx), t, ReasonRefreshTimeout, err)
		}
	}

	r := <-p.result
	return r.resp, r.err
}

// dispatch replays each request on its own goroutine. Replays are issued in
// queue order: the next goroutine is not started until the previous request
// has been handed to the transport. Responses complete independently.
func (c *Coordinator) dispatch(queue []*pending, epoch uint64) {
	for _, p := range queue {
		started := make(chan struct{})
		issued := sync.OnceFunc(func() { close(started) })

		go func() {
			defer issued()
			if err := p.ctx.Err(); err != nil {
				p.result <- result{err: err}
				return
			}
			c.metrics.recordReplay()
			resp, err := c.replay(p.ctx, p.req, epoch, issued)
			p.result <- result{resp: resp, err: err}
		}()
		<-started
	}
}

// resolveSuperseded settles the queue of a refresh whose session was
// replaced or logged out while it ran. Only the ticket itself rotates the
// session, so a superseded ticket always belongs to an ended epoch and its
// requests are never replayed.
func (c *Coordinator) resolveSuperseded(queue []*pending) {
	c.fail(queue, authsdk.ErrLoggedOut)
}

func (c *Coordinator) fail(queue []*pending, err error) {
	for _, p := range queue {
		p.result <- result{err: err}
	}
}
