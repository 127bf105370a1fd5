package webapi

import (
	"strings"
	"testing"
)

// The engine-agnostic shim is pure JS, so we only assert on the source we
// hand the engine — actual atob/btoa behavior is only exercised when a real
// engine runs this script; no test in this repository does so.
func TestEncodingBase64SourceDefinesGlobals(t *testing.T) {
	for _, want := range []string{"globalThis.btoa = function", "globalThis.atob = function"} {
		if !strings.Contains(encodingBase64JS, want) {
			t.Errorf("encoding_base64.js missing %q", want)
		}
	}
}

type recordingRuntime struct {
	fakeRuntimeBase
	lastFilename string
}

func TestSetupEncodingBase64EvaluatesUnderExpectedFilename(t *testing.T) {
	rt := &recordingRuntime{}
	if err := SetupEncodingBase64(rt); err != nil {
		t.Fatal(err)
	}
	if rt.lastFilename != "encoding_base64.js" {
		t.Fatalf("filename = %q", rt.lastFilename)
	}
}

func (r *recordingRuntime) EvalNamed(js, filename string) error {
	r.lastFilename = filename
	return nil
}
