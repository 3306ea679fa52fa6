package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// fetchFunc performs one network refresh and returns the new access token.
type fetchFunc func(ctx context.Context) (string, error)

// refresher collapses concurrent refresh demands into one network call.
type refresher struct {
	session *Session
	fetch   fetchFunc
	timeout time.Duration
	log     *slog.Logger

	group   singleflight.Group
	calls   atomic.Int64
	pending atomic.Int64

	// Outcome of the last flight that settled the session, keyed by the
	// epoch it produced.
	mu          sync.Mutex
	settled     uint64
	settledErr  error
	haveSettled bool
}

func newRefresher(s *Session, fetch fetchFunc, timeout time.Duration, log *slog.Logger) *refresher {
	return &refresher{session: s, fetch: fetch, timeout: timeout, log: log}
}

// Refresh returns a valid access token, refreshing at most once for all
// concurrent callers. The shared refresh is detached from any single
// caller's cancellation and bounded by the refresher timeout; a caller
// whose ctx ends first gets ctx.Err() while the refresh carries on.
func (r *refresher) Refresh(ctx context.Context) (string, error) {
	return r.refreshSince(ctx, r.session.Epoch())
}

// refreshSince is Refresh for a caller that observed the session at epoch
// seen. If a flight settled the session after that observation, the caller
// gets that flight's outcome instead of starting another network call.
func (r *refresher) refreshSince(ctx context.Context, seen uint64) (string, error) {
	r.pending.Add(1)
	defer r.pending.Add(-1)

	ch := r.group.DoChan(refreshKey, func() (any, error) {
		return r.run(context.WithoutCancel(ctx), seen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Calls reports how many network refreshes have been started.
func (r *refresher) Calls() int64 { return r.calls.Load() }

func (r *refresher) run(ctx context.Context, seen uint64) (string, error) {
	tok, st, epoch := r.session.snapshot()
	if st == StateValid {
		return tok, nil
	}
	if epoch != seen {
		if err := r.failedAt(epoch); err != nil {
			return "", err
		}
	}
	if !r.session.beginRefresh(epoch) {
		return r.current()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.calls.Add(1)
	start := time.Now()
	tok, fetchErr := r.fetch(ctx)
	next, applied, err := r.session.settle(epoch, tok, fetchErr)
	if !applied {
		r.log.Debug("client.refresh.superseded", "duration_ms", time.Since(start).Milliseconds())
		return r.current()
	}

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrRefreshTimeout, r.timeout, err)
	}
	r.record(next, err)

	if err != nil {
		r.log.Warn("client.refresh.fail", "err", err, "duration_ms", time.Since(start).Milliseconds())
		return "", err
	}

	r.log.Debug("client.refresh.ok", "subject_id", r.session.Subject(), "duration_ms", time.Since(start).Milliseconds())
	return tok, nil
}

func (r *refresher) record(epoch uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled, r.settledErr, r.haveSettled = epoch, err, true
}

// failedAt returns the error of the flight that produced epoch, or nil.
func (r *refresher) failedAt(epoch uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.haveSettled || r.settled != epoch {
		return nil
	}
	return r.settledErr
}

// current answers from whatever a login or logout left in the session.
func (r *refresher) current() (string, error) {
	if tok, st := r.session.Check(); st == StateValid {
		return tok, nil
	}
	return "", fmt.Errorf("%w: session replaced during refresh", ErrNotAuthenticated)
}
