package webapi

import (
	"fmt"

	"github.com/mystral-js/mystral/internal/core"
)

// canvasJS implements the document/canvas DOM surface spec.md §6 names:
// document.getElementById, document.createElement("canvas"),
// canvas.getContext, canvas.getBoundingClientRect, canvas.toDataURL. The
// EventTarget plumbing itself (addEventListener/dispatchEvent fan-out) is
// already installed by internal/domevents; this file only adds the
// element-shaped surface scripts query before attaching listeners or
// requesting a rendering context.
//
// Grounded on internal/domevents' own document/window/canvas globals
// (__domTargets, __bindCanvasTarget) for how an element is wired into the
// dispatch fan-out, generalized here into a full canvas element object and
// a minimal getElementById/createElement registry.
const canvasJS = `
(function() {
	if (typeof globalThis.__bindCanvasTarget !== 'function') {
		throw new Error('canvas requires internal/domevents to be installed first');
	}

	function makeCanvas(id) {
		var canvas = {
			tagName: 'CANVAS',
			id: id || '',
			width: globalThis.window.innerWidth,
			height: globalThis.window.innerHeight,
			style: {},
		};
		globalThis.__bindCanvasTarget(canvas);

		canvas.getContext = function(type) {
			if (type === 'webgpu') {
				return globalThis.__makeWebGPUCanvasContext(canvas);
			}
			if (type === '2d' || type === 'bitmaprenderer') {
				return globalThis.__makeStub2DContext(canvas);
			}
			return null;
		};

		canvas.getBoundingClientRect = function() {
			return { x: 0, y: 0, top: 0, left: 0, width: canvas.width, height: canvas.height, right: canvas.width, bottom: canvas.height };
		};

		canvas.toDataURL = function(mimeType) {
			return 'data:' + (mimeType || 'image/png') + ';base64,';
		};

		return canvas;
	}

	var elements = Object.create(null);
	var defaultCanvas = makeCanvas('canvas');
	elements['canvas'] = defaultCanvas;

	globalThis.document.getElementById = function(id) {
		return elements[id] || null;
	};

	globalThis.document.createElement = function(tagName) {
		if (String(tagName).toLowerCase() === 'canvas') {
			return makeCanvas('');
		}
		return { tagName: String(tagName).toUpperCase(), style: {}, setAttribute: function() {}, appendChild: function() {} };
	};

	// The default canvas is always reachable the way a single-canvas game
	// shell expects, even if the script never calls createElement itself.
	globalThis.__defaultCanvas = defaultCanvas;
})();
`

// SetupCanvas evaluates the document/canvas DOM surface. Must run after
// internal/domevents.Dispatcher.Install and SetupWebGPU/SetupStub2DContext
// (canvasJS references globals those define).
func SetupCanvas(rt core.JSRuntime) error {
	if err := rt.Eval(canvasJS); err != nil {
		return fmt.Errorf("evaluating canvas.js: %w", err)
	}
	return nil
}
