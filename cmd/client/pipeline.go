package client

import (
	"log/slog"
	"net/http"
	"time"
)

// Call is one request travelling through the pipeline. Cancellation comes
// from Request.Context().
type Call struct {
	Request *http.Request
	Token   string
	State   TokenState

	// Session epoch at the validity stage.
	epoch    uint64
	observed bool
}

// Doer executes a Call.
type Doer interface {
	Do(c *Call) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(c *Call) (*http.Response, error)

func (f DoerFunc) Do(c *Call) (*http.Response, error) { return f(c) }

// Stage is a named middleware over Doer.
type Stage interface {
	Name() string
	Wrap(next Doer) Doer
}

// Pipeline runs stages in order, first stage outermost, ending in terminal.
type Pipeline struct {
	stages []Stage
	head   Doer
}

// NewPipeline composes stages over terminal.
func NewPipeline(terminal Doer, stages ...Stage) *Pipeline {
	head := terminal
	for i := len(stages) - 1; i >= 0; i-- {
		head = stages[i].Wrap(head)
	}
	return &Pipeline{stages: stages, head: head}
}

// Names lists the stage names in execution order.
func (p *Pipeline) Names() []string {
	out := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		out = append(out, s.Name())
	}
	return out
}

func (p *Pipeline) Do(c *Call) (*http.Response, error) { return p.head.Do(c) }

// ---- stages ----

// validityStage reads the current token and classifies it.
type validityStage struct{ session *Session }

func (validityStage) Name() string { return "validity" }

func (s validityStage) Wrap(next Doer) Doer {
	return DoerFunc(func(c *Call) (*http.Response, error) {
		c.Token, c.State, c.epoch = s.session.snapshot()
		c.observed = true
		return next.Do(c)
	})
}

// refreshStage holds the call until a valid token exists.
type refreshStage struct{ refresher *refresher }

func (refreshStage) Name() string { return "refresh" }

func (s refreshStage) Wrap(next Doer) Doer {
	return DoerFunc(func(c *Call) (*http.Response, error) {
		if c.State != StateValid {
			seen := c.epoch
			if !c.observed {
				seen = s.refresher.session.Epoch()
			}
			tok, err := s.refresher.refreshSince(c.Request.Context(), seen)
			if err != nil {
				return nil, err
			}
			c.Token, c.State = tok, StateValid
		}
		return next.Do(c)
	})
}

// authStage attaches the bearer token to a copy of the request.
type authStage struct{}

func (authStage) Name() string { return "auth" }

func (authStage) Wrap(next Doer) Doer {
	return DoerFunc(func(c *Call) (*http.Response, error) {
		if c.Token != "" {
			req := c.Request.Clone(c.Request.Context())
			req.Header.Set("Authorization", "Bearer "+c.Token)
			c.Request = req
		}
		return next.Do(c)
	})
}

// observeStage logs transport and protocol errors without altering them.
type observeStage struct{ log *slog.Logger }

func (observeStage) Name() string { return "observe" }

func (s observeStage) Wrap(next Doer) Doer {
	return DoerFunc(func(c *Call) (*http.Response, error) {
		start := time.Now()
		res, err := next.Do(c)
		switch {
		case err != nil:
			s.log.Warn("client.transport.error",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"err", err,
				"duration_ms", time.Since(start).Milliseconds())
		case res.StatusCode >= 400:
			s.log.Info("client.http.error",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", res.StatusCode,
				"duration_ms", time.Since(start).Milliseconds())
		}
		return res, err
	})
}

// transport is the terminal Doer.
type transport struct{ http *http.Client }

func (t transport) Do(c *Call) (*http.Response, error) {
	res, err := t.http.Do(c.Request)
	if err != nil {
		return nil, &TransportError{Op: c.Request.Method + " " + c.Request.URL.Path, Err: err}
	}
	return res, nil
}
