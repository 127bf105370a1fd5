package httpio

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mystral-js/mystral/internal/core"
)

// waitForCompletion polls DrainCompletions until it sees exactly one
// completion or the deadline passes, mirroring the scheduler's own
// poll_once drain loop closely enough to exercise the same code path.
func waitForCompletion(t *testing.T, c *Client) (string, core.HTTPResponse) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var gotID string
	var gotResp core.HTTPResponse
	for time.Now().Before(deadline) {
		found := false
		c.DrainCompletions(func(callbackID string, resp core.HTTPResponse) {
			gotID, gotResp = callbackID, resp
			found = true
		})
		if found {
			return gotID, gotResp
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for httpio completion")
	return "", core.HTTPResponse{}
}

func newTestClient() *Client {
	c := New()
	c.SSRFProtected = false // the httptest server listens on 127.0.0.1
	return c
}

func TestGetDeliversSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := newTestClient()
	c.Get("cb-1", srv.URL, Options{})

	id, resp := waitForCompletion(t, c)
	if id != "cb-1" {
		t.Errorf("callback id = %q, want cb-1", id)
	}
	if !resp.OK || resp.Status != 200 {
		t.Errorf("resp = %+v, want OK 200", resp)
	}
	if string(resp.Data) != "hello" {
		t.Errorf("body = %q, want %q", resp.Data, "hello")
	}
	if got := resp.Headers["X-Test"]; len(got) == 0 || got[0] != "yes" {
		t.Errorf("missing response header, got %v", got)
	}
}

func TestGetDeliversNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient()
	c.Get("cb-2", srv.URL, Options{})

	_, resp := waitForCompletion(t, c)
	if resp.OK {
		t.Errorf("resp.OK = true, want false for 404")
	}
	if resp.Status != 404 {
		t.Errorf("resp.Status = %d, want 404", resp.Status)
	}
}

func TestGetStripsForbiddenHeaders(t *testing.T) {
	seen := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("Connection")
	}))
	defer srv.Close()

	c := newTestClient()
	c.Get("cb-3", srv.URL, Options{Headers: map[string]string{
		"Connection": "keep-alive",
		"X-Allowed":  "1",
	}})

	waitForCompletion(t, c)
	select {
	case v := <-seen:
		if v != "" {
			t.Errorf("Connection header leaked through as %q", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestGetRejectsPrivateHostWhenProtected(t *testing.T) {
	c := New() // SSRFProtected stays true
	c.Get("cb-4", "http://127.0.0.1:1/unreachable", Options{})

	_, resp := waitForCompletion(t, c)
	if resp.Error == "" {
		t.Errorf("expected an SSRF rejection error, got none")
	}
}

func TestCancelAbortsInFlightRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	c := newTestClient()
	c.Get("cb-5", srv.URL, Options{})
	time.Sleep(20 * time.Millisecond) // let the goroutine register its cancel func
	c.Cancel("cb-5")

	_, resp := waitForCompletion(t, c)
	if resp.Error == "" {
		t.Errorf("expected cancellation to surface as an error response")
	}
}

func TestHasPendingReflectsInFlightAndQueuedWork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient()
	if c.HasPending() {
		t.Fatal("HasPending should be false before any request")
	}
	c.Get("cb-6", srv.URL, Options{})
	if !c.HasPending() {
		t.Errorf("HasPending should be true immediately after Get")
	}
	waitForCompletion(t, c)
	if c.HasPending() {
		t.Errorf("HasPending should be false after drain")
	}
}

func TestDrainCompletionsReturnsFalseWhenEmpty(t *testing.T) {
	c := newTestClient()
	if c.DrainCompletions(func(string, core.HTTPResponse) {}) {
		t.Errorf("DrainCompletions should return false with nothing queued")
	}
}
