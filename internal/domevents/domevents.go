// Package domevents implements the DOM-style event fan-out of spec.md
// §4.8: addEventListener/removeEventListener bookkeeping for the
// "document", "window", and "canvas" targets, and dispatch of OS input
// events across them in registration order.
//
// Grounded on the teacher's internal/webapi abort.go EventTarget (the JS
// Event/EventTarget shape is reused as-is) plus spec.md's listener-table
// invariant: dispatch order is document → window → canvas for keyboard,
// mouse, pointer, and wheel events; gamepad events go to window only;
// resize updates window.innerWidth/innerHeight then dispatches to window.
package domevents

import (
	"encoding/json"
	"fmt"

	"github.com/mystral-js/mystral/internal/core"
)

// Dispatcher owns no JS state itself — registration and per-listener
// storage live entirely on the JS side (document/window/canvas are real
// EventTarget instances there); Dispatcher only knows how to build and
// fire an event object from a Go-side core.InputEvent, and in which order
// to visit targets for each event kind.
type Dispatcher struct {
	rt core.JSRuntime
}

// New constructs a Dispatcher bound to rt. Install must be called once
// before Dispatch is used.
func New(rt core.JSRuntime) *Dispatcher {
	return &Dispatcher{rt: rt}
}

// fanoutOrder returns the targets an event kind dispatches across, in
// spec.md §4.8's fixed order.
func fanoutOrder(target string) []string {
	switch target {
	case "gamepad":
		return []string{"window"}
	case "resize":
		return []string{"window"}
	default:
		return []string{"document", "window", "canvas"}
	}
}

// Install defines document/window/canvas as EventTarget instances and the
// __domFireEvent bridge that Dispatch evaluates into.
func (d *Dispatcher) Install() error {
	return d.rt.EvalNamed(domEventsJS, "dom_events.js")
}

const domEventsJS = `
(function() {
  if (typeof globalThis.EventTarget !== 'function') {
    throw new Error('domevents requires EventTarget (internal/webapi abort.go) to be installed first');
  }

  class UIEvent extends Event {
    constructor(type, init) { super(type, init); }
  }

  class KeyboardEvent extends UIEvent {
    constructor(type, init) {
      super(type, init);
      init = init || {};
      this.key = init.key || '';
      this.code = init.code || '';
      this.repeat = !!init.repeat;
      this.altKey = !!init.altKey;
      this.ctrlKey = !!init.ctrlKey;
      this.shiftKey = !!init.shiftKey;
      this.metaKey = !!init.metaKey;
    }
  }

  class MouseEvent extends UIEvent {
    constructor(type, init) {
      super(type, init);
      init = init || {};
      this.clientX = init.clientX || 0;
      this.clientY = init.clientY || 0;
      this.button = init.button || 0;
      this.buttons = init.buttons || 0;
    }
  }

  class PointerEvent extends MouseEvent {
    constructor(type, init) {
      super(type, init);
      init = init || {};
      this.pointerId = init.pointerId || 0;
      this.pointerType = init.pointerType || 'mouse';
    }
  }

  class WheelEvent extends MouseEvent {
    constructor(type, init) {
      super(type, init);
      init = init || {};
      this.deltaX = init.deltaX || 0;
      this.deltaY = init.deltaY || 0;
      this.deltaZ = init.deltaZ || 0;
      this.deltaMode = init.deltaMode || 0;
    }
  }

  class GamepadEvent extends Event {
    constructor(type, init) {
      super(type, init);
      this.gamepad = (init && init.gamepad) || null;
    }
  }

  globalThis.UIEvent = UIEvent;
  globalThis.KeyboardEvent = KeyboardEvent;
  globalThis.MouseEvent = MouseEvent;
  globalThis.PointerEvent = PointerEvent;
  globalThis.WheelEvent = WheelEvent;
  globalThis.GamepadEvent = GamepadEvent;

  const doc = new EventTarget();
  const win = new EventTarget();
  win.innerWidth = 1280;
  win.innerHeight = 720;
  win.devicePixelRatio = 1;
  const canvasTarget = new EventTarget();

  globalThis.document = globalThis.document || {};
  globalThis.window = globalThis.window || win;
  Object.assign(globalThis.document, doc);
  globalThis.document.addEventListener = doc.addEventListener.bind(doc);
  globalThis.document.removeEventListener = doc.removeEventListener.bind(doc);
  globalThis.document.dispatchEvent = doc.dispatchEvent.bind(doc);
  globalThis.window.addEventListener = win.addEventListener.bind(win);
  globalThis.window.removeEventListener = win.removeEventListener.bind(win);
  globalThis.window.dispatchEvent = win.dispatchEvent.bind(win);

  globalThis.__domTargets = { document: doc, window: win, canvas: canvasTarget };

  globalThis.__bindCanvasTarget = function(canvasEl) {
    canvasEl.addEventListener = canvasTarget.addEventListener.bind(canvasTarget);
    canvasEl.removeEventListener = canvasTarget.removeEventListener.bind(canvasTarget);
    canvasEl.dispatchEvent = canvasTarget.dispatchEvent.bind(canvasTarget);
  };

  const ctorFor = {
    keydown: KeyboardEvent, keyup: KeyboardEvent, keypress: KeyboardEvent,
    mousedown: MouseEvent, mouseup: MouseEvent, mousemove: MouseEvent, click: MouseEvent,
    pointerdown: PointerEvent, pointerup: PointerEvent, pointermove: PointerEvent,
    wheel: WheelEvent,
    gamepadconnected: GamepadEvent, gamepaddisconnected: GamepadEvent,
  };

  globalThis.__domFireEvent = function(targetNames, type, fieldsJSON) {
    const fields = fieldsJSON ? JSON.parse(fieldsJSON) : {};
    const Ctor = ctorFor[type] || Event;
    for (const name of targetNames) {
      const ev = new Ctor(type, fields);
      globalThis.__domTargets[name].dispatchEvent(ev);
    }
  };
})();
`

// Dispatch fires ev across the targets spec.md §4.8 assigns to its kind,
// in registration order (document → window → canvas, or window-only for
// gamepad/resize events). Field values are JSON-encoded so they cross the
// Go/JS boundary as plain data, matching §5's "never an engine value
// handle" rule for cross-thread producers; this one happens to run
// synchronously on the engine thread (input is polled in poll_once step 1)
// but keeping the same encoding keeps every completion path uniform.
func (d *Dispatcher) Dispatch(ev core.InputEvent) error {
	fields, err := json.Marshal(ev.Fields)
	if err != nil {
		return fmt.Errorf("domevents: encoding fields: %w", err)
	}
	targets := fanoutOrder(ev.Target)
	targetsJSON, _ := json.Marshal(targets)

	if ev.Target == "resize" {
		w, _ := ev.Fields["width"].(float64)
		h, _ := ev.Fields["height"].(float64)
		resize := fmt.Sprintf("globalThis.window.innerWidth = %d; globalThis.window.innerHeight = %d;", int(w), int(h))
		if err := d.rt.Eval(resize); err != nil {
			return err
		}
	}

	js := fmt.Sprintf("globalThis.__domFireEvent(%s, %q, %s)", targetsJSON, ev.Type, string(fields))
	return d.rt.Eval(js)
}
