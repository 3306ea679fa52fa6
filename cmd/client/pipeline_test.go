package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

type recordingStage struct {
	name  string
	trace *[]string
}

func (s recordingStage) Name() string { return s.name }

func (s recordingStage) Wrap(next Doer) Doer {
	return DoerFunc(func(c *Call) (*http.Response, error) {
		*s.trace = append(*s.trace, s.name)
		return next.Do(c)
	})
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	t.Parallel()

	var trace []string
	terminal := DoerFunc(func(c *Call) (*http.Response, error) {
		trace = append(trace, "terminal")
		return &http.Response{StatusCode: http.StatusOK}, nil
	})
	p := NewPipeline(terminal,
		recordingStage{"a", &trace},
		recordingStage{"b", &trace},
		recordingStage{"c", &trace},
	)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if _, err := p.Do(&Call{Request: req}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if want := []string{"a", "b", "c", "terminal"}; !reflect.DeepEqual(trace, want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(p.Names(), want) {
		t.Fatalf("names = %v", p.Names())
	}
}

func TestClientPipeline_StageNames(t *testing.T) {
	t.Parallel()

	c, err := New("http://example.invalid")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []string{"validity", "refresh", "auth", "observe"}
	if got := c.Pipeline().Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
}

func TestAuthStage_ClonesAndSetsBearer(t *testing.T) {
	t.Parallel()

	var seen *http.Request
	d := authStage{}.Wrap(DoerFunc(func(c *Call) (*http.Response, error) {
		seen = c.Request
		return &http.Response{StatusCode: http.StatusOK}, nil
	}))

	orig := httptest.NewRequest(http.MethodGet, "/me", nil)
	if _, err := d.Do(&Call{Request: orig, Token: "tok-1", State: StateValid}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := seen.Header.Get("Authorization"); got != "Bearer tok-1" {
		t.Fatalf("Authorization = %q", got)
	}
	if orig.Header.Get("Authorization") != "" {
		t.Fatalf("caller's request must not be mutated")
	}
}

func TestRefreshStage_BlocksRequestOnFailure(t *testing.T) {
	t.Parallel()

	s := NewSession(nil)
	r := newRefresher(s, func(context.Context) (string, error) {
		return "", ErrNotAuthenticated
	}, time.Second, discardLogger())

	sent := false
	d := refreshStage{refresher: r}.Wrap(DoerFunc(func(c *Call) (*http.Response, error) {
		sent = true
		return nil, nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if _, err := d.Do(&Call{Request: req, State: StateAbsent}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("want ErrNotAuthenticated, got %v", err)
	}
	if sent {
		t.Fatalf("request must not be sent without a token")
	}
}

func TestObserveStage_LogsWithoutAltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	boom := &TransportError{Op: "GET /x", Err: errors.New("connection refused")}
	d := observeStage{log: log}.Wrap(DoerFunc(func(c *Call) (*http.Response, error) {
		if c.Request.URL.Path == "/fail" {
			return nil, boom
		}
		return &http.Response{StatusCode: http.StatusTeapot}, nil
	}))

	res, err := d.Do(&Call{Request: httptest.NewRequest(http.MethodGet, "/x", nil)})
	if err != nil || res.StatusCode != http.StatusTeapot {
		t.Fatalf("protocol error must pass through: %v %v", res, err)
	}
	if _, err := d.Do(&Call{Request: httptest.NewRequest(http.MethodGet, "/fail", nil)}); err != boom {
		t.Fatalf("transport error must pass through unchanged, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "client.http.error") || !strings.Contains(out, "status=418") {
		t.Fatalf("missing protocol error log: %s", out)
	}
	if !strings.Contains(out, "client.transport.error") {
		t.Fatalf("missing transport error log: %s", out)
	}
}

func TestTransportError_Is(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	err := error(&TransportError{Op: "refresh", Err: cause})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, cause) {
		t.Fatalf("TransportError must match ErrTransport and its cause")
	}
	var te *TransportError
	if !errors.As(&TransportError{Op: "login", Status: 502}, &te) || te.Status != 502 {
		t.Fatalf("errors.As failed")
	}
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()
	if _, err := New("not a url"); err == nil {
		t.Fatalf("expected error")
	}
}
