package webapi

import (
	"fmt"

	"github.com/mystral-js/mystral/internal/core"
)

// objectURLJS adds URL.createObjectURL/revokeObjectURL, the one piece of
// the URL surface spec.md §6 names that SetupWebAPIs' own URL class
// (webapi.go) does not define — it needs a process-wide registry of
// blob: URLs, which belongs in its own file rather than growing the
// already-large URL class definition.
const objectURLJS = `
(function() {
	var registry = Object.create(null);
	var counter = 0;

	URL.createObjectURL = function(obj) {
		counter++;
		var id = 'blob:mystral-' + counter;
		registry[id] = obj;
		return id;
	};

	URL.revokeObjectURL = function(url) {
		delete registry[url];
	};

	globalThis.__objectURLRegistry = registry;
})();
`

// SetupObjectURL evaluates the createObjectURL/revokeObjectURL polyfill.
// Must run after SetupWebAPIs, which defines the URL class itself.
func SetupObjectURL(rt core.JSRuntime) error {
	if err := rt.Eval(objectURLJS); err != nil {
		return fmt.Errorf("evaluating object_url.js: %w", err)
	}
	return nil
}
