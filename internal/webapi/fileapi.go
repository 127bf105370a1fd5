package webapi

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/fileio"
)

// fileReadIDCounter assigns callback ids internal/fileio.Reader keys its
// completions by, the same scheme fetch.go uses for internal/httpio.
var fileReadIDCounter uint64

// fileAPIJS exposes the Async File component (spec.md §2's "Async File")
// to scripts as a small host-provided promise API, the file-I/O
// counterpart to fetch() — there is no browser equivalent to name, so this
// follows fetch's own resolve/reject bridge shape instead.
const fileAPIJS = `
globalThis.__fileReadPromises = {};

globalThis.readFile = function(path) {
	return new Promise(function(resolve, reject) {
		var callbackID = __fileReadStart(String(path));
		globalThis.__fileReadPromises[callbackID] = { resolve: resolve, reject: reject };
	});
};

globalThis.readTextFile = function(path) {
	return globalThis.readFile(path).then(function(buf) {
		return new TextDecoder().decode(buf);
	});
};

globalThis.__fileReadResolve = function(callbackID, dataB64) {
	var p = globalThis.__fileReadPromises[callbackID];
	delete globalThis.__fileReadPromises[callbackID];
	if (!p) return;
	try {
		p.resolve(__b64ToBuffer(dataB64));
	} catch (e) {
		p.reject(e);
	}
};

globalThis.__fileReadReject = function(callbackID, errMsg) {
	var p = globalThis.__fileReadPromises[callbackID];
	delete globalThis.__fileReadPromises[callbackID];
	if (p) p.reject(new Error(errMsg));
};
`

// SetupFileAPI registers the __fileReadStart bridge and evaluates the
// readFile/readTextFile polyfill. Must run after SetupWebAPIs
// (__b64ToBuffer comes from bufferSourceJS).
func SetupFileAPI(rt core.JSRuntime, reader *fileio.Reader) error {
	if err := rt.RegisterFunc("__fileReadStart", func(path string) (string, error) {
		if path == "" {
			return "", fmt.Errorf("readFile requires a path argument")
		}
		callbackID := "file-" + strconv.FormatUint(atomic.AddUint64(&fileReadIDCounter, 1), 10)
		reader.ReadFile(callbackID, path)
		return callbackID, nil
	}); err != nil {
		return err
	}
	if err := rt.Eval(fileAPIJS); err != nil {
		return fmt.Errorf("evaluating file_api.js: %w", err)
	}
	return nil
}
