package domevents

import (
	"strings"
	"testing"

	"github.com/mystral-js/mystral/internal/core"
)

type recordingRuntime struct {
	evaluated []string
}

func (r *recordingRuntime) Eval(js string) error                   { r.evaluated = append(r.evaluated, js); return nil }
func (r *recordingRuntime) EvalNamed(js, filename string) error    { return r.Eval(js) }
func (r *recordingRuntime) EvalString(js string) (string, error)   { return "", r.Eval(js) }
func (r *recordingRuntime) EvalBool(js string) (bool, error)       { return false, r.Eval(js) }
func (r *recordingRuntime) RegisterFunc(name string, fn any) error { return nil }
func (r *recordingRuntime) SetGlobal(name string, value any) error { return nil }
func (r *recordingRuntime) RunMicrotasks()                         {}
func (r *recordingRuntime) Protect(name string) core.Protected {
	return core.NewProtected(name, func(string) {})
}
func (r *recordingRuntime) Close() {}

var _ core.JSRuntime = (*recordingRuntime)(nil)

func TestFanoutOrder(t *testing.T) {
	tests := []struct {
		target string
		want   []string
	}{
		{"keyboard", []string{"document", "window", "canvas"}},
		{"mouse", []string{"document", "window", "canvas"}},
		{"pointer", []string{"document", "window", "canvas"}},
		{"wheel", []string{"document", "window", "canvas"}},
		{"gamepad", []string{"window"}},
		{"resize", []string{"window"}},
	}
	for _, tt := range tests {
		got := fanoutOrder(tt.target)
		if len(got) != len(tt.want) {
			t.Errorf("fanoutOrder(%q) = %v, want %v", tt.target, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("fanoutOrder(%q) = %v, want %v", tt.target, got, tt.want)
				break
			}
		}
	}
}

func TestInstallEvaluatesDomEventsScript(t *testing.T) {
	rt := &recordingRuntime{}
	d := New(rt)
	if err := d.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(rt.evaluated) != 1 {
		t.Fatalf("evaluated %d scripts, want 1", len(rt.evaluated))
	}
	if !strings.Contains(rt.evaluated[0], "__domFireEvent") {
		t.Errorf("Install script missing __domFireEvent definition")
	}
}

func TestDispatchFiresEventAcrossFanoutTargets(t *testing.T) {
	rt := &recordingRuntime{}
	d := New(rt)

	err := d.Dispatch(core.InputEvent{
		Target: "keyboard",
		Type:   "keydown",
		Fields: map[string]any{"key": "a", "code": "KeyA"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(rt.evaluated) != 1 {
		t.Fatalf("evaluated %d scripts, want 1", len(rt.evaluated))
	}
	script := rt.evaluated[0]
	if !strings.Contains(script, `"document"`) || !strings.Contains(script, `"window"`) || !strings.Contains(script, `"canvas"`) {
		t.Errorf("expected dispatch across document/window/canvas, got %q", script)
	}
	if !strings.Contains(script, `"keydown"`) || !strings.Contains(script, `"key":"a"`) {
		t.Errorf("expected event type and fields encoded, got %q", script)
	}
}

func TestDispatchGamepadTargetsWindowOnly(t *testing.T) {
	rt := &recordingRuntime{}
	d := New(rt)

	if err := d.Dispatch(core.InputEvent{Target: "gamepad", Type: "gamepadconnected", Fields: map[string]any{}}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	script := rt.evaluated[0]
	if strings.Contains(script, `"document"`) || strings.Contains(script, `"canvas"`) {
		t.Errorf("gamepad event should only target window, got %q", script)
	}
}

func TestDispatchResizeUpdatesInnerDimensionsFirst(t *testing.T) {
	rt := &recordingRuntime{}
	d := New(rt)

	if err := d.Dispatch(core.InputEvent{
		Target: "resize",
		Type:   "resize",
		Fields: map[string]any{"width": float64(800), "height": float64(600)},
	}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(rt.evaluated) != 2 {
		t.Fatalf("evaluated %d scripts, want 2 (resize assignment + dispatch)", len(rt.evaluated))
	}
	if !strings.Contains(rt.evaluated[0], "innerWidth = 800") || !strings.Contains(rt.evaluated[0], "innerHeight = 600") {
		t.Errorf("first script should set inner dimensions, got %q", rt.evaluated[0])
	}
	if !strings.Contains(rt.evaluated[1], "__domFireEvent") {
		t.Errorf("second script should dispatch the resize event, got %q", rt.evaluated[1])
	}
}
