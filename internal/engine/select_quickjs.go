//go:build !v8

package engine

import (
	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/quickjsengine"
)

// newJSRuntime constructs the concrete core.JSRuntime backend selected
// when the v8 build tag is absent.
func newJSRuntime() (core.JSRuntime, error) {
	return quickjsengine.New()
}

// engineName identifies the backend in startup logs.
const engineName = "quickjs"
