package scheduler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/watchio"
)

// deliverHTTP hands one Async HTTP completion to JS by calling the
// __fetchResolve/__fetchReject bridge functions internal/webapi/fetch.go
// installs. The scheduler never imports internal/webapi (which would be
// circular, since webapi registers the Go functions the scheduler's
// timer/RAF JS calls into); it only needs to agree on these global names.
func (s *Scheduler) deliverHTTP(callbackID string, resp core.HTTPResponse) {
	if resp.Error != "" {
		_ = s.RT.Eval(fmt.Sprintf(`globalThis.__fetchReject(%q, %q)`, callbackID, resp.Error))
		s.RT.RunMicrotasks()
		return
	}
	headers := make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	headersJSON, _ := json.Marshal(headers)
	bodyB64 := base64.StdEncoding.EncodeToString(resp.Data)
	js := fmt.Sprintf(`globalThis.__fetchResolve(%q, %d, %q, %q, %q, false, %q)`,
		callbackID, resp.Status, httpStatusText(resp.Status), string(headersJSON), bodyB64, resp.URL)
	_ = s.RT.Eval(js)
	s.RT.RunMicrotasks()
}

func httpStatusText(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "OK"
	case code >= 400 && code < 500:
		return "Client Error"
	case code >= 500:
		return "Server Error"
	default:
		return ""
	}
}

// deliverFsEvent hands one File Watcher completion to JS, matching the
// `(full_path, kind)` shape spec.md §4.7 assigns watcher events.
func (s *Scheduler) deliverFsEvent(ev watchio.Event) {
	js := fmt.Sprintf(`globalThis.__fsWatchFire(%d, %q, %q)`, ev.WatchID, ev.FullPath, ev.Kind.String())
	_ = s.RT.Eval(js)
	s.RT.RunMicrotasks()
}

// fireTimer invokes a fired timer's JS callback via globalThis.__timerCallbacks,
// matching internal/webapi/timers.go's callback table.
func (s *Scheduler) fireTimer(id uint32) {
	js := fmt.Sprintf(`(function() {
		var entry = globalThis.__timerCallbacks[%d];
		if (!entry) return;
		if (!entry.interval) delete globalThis.__timerCallbacks[%d];
		entry.fn.apply(null, entry.args || []);
	})()`, id, id)
	_ = s.RT.Eval(js)
	s.RT.RunMicrotasks()
}

// rafInvokeJS builds the JS call that invokes one requestAnimationFrame
// callback with the frame's single consistent timestamp.
func rafInvokeJS(id uint32, timestamp float64) string {
	return fmt.Sprintf(`(function() {
		var cb = globalThis.__rafCallbacks[%d];
		if (!cb) return;
		delete globalThis.__rafCallbacks[%d];
		cb(%v);
	})()`, id, id, timestamp)
}
