//go:build v8

package engine

import (
	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/v8engine"
)

// newJSRuntime constructs the concrete core.JSRuntime backend selected by
// the v8 build tag.
func newJSRuntime() (core.JSRuntime, error) {
	return v8engine.New()
}

// engineName identifies the backend in startup logs.
const engineName = "v8"
