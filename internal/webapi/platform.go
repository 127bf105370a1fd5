package webapi

import (
	"fmt"

	"github.com/mystral-js/mystral/internal/core"
)

// platformJS implements the host-provided, contract-only surfaces spec.md
// §6 lists alongside the rest of the Web API shim: navigator.gpu and the
// WebGPU object graph, a canvas WebGPU/2d context, an AudioContext subset,
// and navigator.getGamepads. None of these execute real graphics or
// audio work — per spec.md §1 the GPU backend and codecs are external
// collaborators this runtime expresses only as interface contracts, so a
// script can feature-detect and call these APIs without the calls doing
// anything observable beyond returning spec-shaped values.
const platformJS = `
(function() {

// --- WebGPU contract surface ---

class GPUAdapter {
	constructor() {
		this.name = 'mystral-stub-adapter';
		this.features = new Set();
		this.limits = {};
	}
	requestDevice() {
		return Promise.resolve(new GPUDevice());
	}
}

class GPUQueue {
	submit(commandBuffers) {}
	writeBuffer(buffer, offset, data) {}
	writeTexture(destination, data, dataLayout, size) {}
}

class GPUDevice extends EventTarget {
	constructor() {
		super();
		this.queue = new GPUQueue();
		this.features = new Set();
		this.limits = {};
		this.lost = new Promise(function() {});
	}
	createBuffer(desc) { return { size: (desc && desc.size) || 0, usage: (desc && desc.usage) || 0, destroy: function() {}, mapAsync: function() { return Promise.resolve(); }, getMappedRange: function() { return new ArrayBuffer((desc && desc.size) || 0); }, unmap: function() {} }; }
	createTexture(desc) { return { createView: function() { return {}; }, destroy: function() {} }; }
	createSampler(desc) { return {}; }
	createShaderModule(desc) { return { getCompilationInfo: function() { return Promise.resolve({ messages: [] }); } }; }
	createBindGroupLayout(desc) { return {}; }
	createBindGroup(desc) { return {}; }
	createPipelineLayout(desc) { return {}; }
	createRenderPipeline(desc) { return {}; }
	createComputePipeline(desc) { return {}; }
	createCommandEncoder(desc) {
		return {
			beginRenderPass: function() { return { setPipeline: function() {}, setBindGroup: function() {}, setVertexBuffer: function() {}, setIndexBuffer: function() {}, draw: function() {}, drawIndexed: function() {}, end: function() {} }; },
			beginComputePass: function() { return { setPipeline: function() {}, setBindGroup: function() {}, dispatchWorkgroups: function() {}, end: function() {} }; },
			copyBufferToBuffer: function() {},
			copyBufferToTexture: function() {},
			copyTextureToBuffer: function() {},
			finish: function() { return {}; },
		};
	}
	destroy() {}
}

globalThis.GPUAdapter = GPUAdapter;
globalThis.GPUDevice = GPUDevice;

Object.defineProperty(globalThis.navigator, 'gpu', {
	value: {
		requestAdapter: function(options) { return Promise.resolve(new GPUAdapter()); },
		getPreferredCanvasFormat: function() { return 'bgra8unorm'; },
	},
	writable: false,
	configurable: true,
});

globalThis.__makeWebGPUCanvasContext = function(canvas) {
	return {
		canvas: canvas,
		configure: function(config) {},
		unconfigure: function() {},
		getCurrentTexture: function() { return { createView: function() { return {}; }, destroy: function() {} }; },
	};
};

// --- 2D canvas context contract surface ---

globalThis.__makeStub2DContext = function(canvas) {
	var noop = function() {};
	return {
		canvas: canvas,
		fillStyle: '#000000', strokeStyle: '#000000', lineWidth: 1, font: '10px sans-serif',
		fillRect: noop, strokeRect: noop, clearRect: noop,
		beginPath: noop, closePath: noop, moveTo: noop, lineTo: noop, arc: noop,
		fill: noop, stroke: noop, save: noop, restore: noop, translate: noop, rotate: noop, scale: noop,
		drawImage: noop, fillText: noop, strokeText: noop,
		measureText: function(text) { return { width: String(text).length * 6 }; },
		getImageData: function(x, y, w, h) { return { data: new Uint8ClampedArray(Math.max(0, w) * Math.max(0, h) * 4), width: w, height: h }; },
		putImageData: noop,
	};
};

// --- AudioContext subset ---

class AudioParam {
	constructor(value) { this.value = value; this.defaultValue = value; }
	setValueAtTime(value, time) { this.value = value; return this; }
	linearRampToValueAtTime(value, time) { this.value = value; return this; }
	exponentialRampToValueAtTime(value, time) { this.value = value; return this; }
}

class AudioNode {
	connect(destination) { return destination; }
	disconnect() {}
}

class GainNode extends AudioNode {
	constructor() { super(); this.gain = new AudioParam(1); }
}

class OscillatorNode extends AudioNode {
	constructor() {
		super();
		this.frequency = new AudioParam(440);
		this.detune = new AudioParam(0);
		this.type = 'sine';
		this.onended = null;
	}
	start(when) {}
	stop(when) { var self = this; queueMicrotask(function() { if (typeof self.onended === 'function') self.onended(new Event('ended')); }); }
}

class AudioBufferSourceNode extends AudioNode {
	constructor() { super(); this.buffer = null; this.loop = false; this.onended = null; }
	start(when, offset, duration) {}
	stop(when) { var self = this; queueMicrotask(function() { if (typeof self.onended === 'function') self.onended(new Event('ended')); }); }
}

class AudioContext {
	constructor(options) {
		this.state = 'running';
		this.sampleRate = (options && options.sampleRate) || 48000;
		this._startTime = performance.now();
		this.destination = new AudioNode();
	}
	get currentTime() { return (performance.now() - this._startTime) / 1000; }
	createGain() { return new GainNode(); }
	createOscillator() { return new OscillatorNode(); }
	createBufferSource() { return new AudioBufferSourceNode(); }
	createBuffer(channels, length, sampleRate) {
		var data = [];
		for (var i = 0; i < channels; i++) data.push(new Float32Array(length));
		return { numberOfChannels: channels, length: length, sampleRate: sampleRate, getChannelData: function(ch) { return data[ch]; } };
	}
	decodeAudioData(arrayBuffer) {
		return Promise.resolve(this.createBuffer(2, 0, this.sampleRate));
	}
	resume() { this.state = 'running'; return Promise.resolve(); }
	suspend() { this.state = 'suspended'; return Promise.resolve(); }
	close() { this.state = 'closed'; return Promise.resolve(); }
}

globalThis.AudioContext = AudioContext;

// --- Gamepad contract surface ---

var gamepadSlots = new Array(4).fill(null);

globalThis.window.addEventListener('gamepadconnected', function(e) {
	var gp = e.gamepad;
	if (gp && typeof gp.index === 'number') gamepadSlots[gp.index] = gp;
});
globalThis.window.addEventListener('gamepaddisconnected', function(e) {
	var gp = e.gamepad;
	if (gp && typeof gp.index === 'number') gamepadSlots[gp.index] = null;
});

Object.defineProperty(globalThis.navigator, 'getGamepads', {
	value: function() { return gamepadSlots.slice(); },
	writable: false,
	configurable: true,
});

})();
`

// SetupPlatformStubs evaluates the navigator.gpu/AudioContext/getGamepads
// contract surfaces. Must run after SetupGlobals (navigator),
// internal/domevents.Dispatcher.Install (window/EventTarget), and before
// SetupCanvas (canvasJS references __makeWebGPUCanvasContext/
// __makeStub2DContext).
func SetupPlatformStubs(rt core.JSRuntime) error {
	if err := rt.Eval(platformJS); err != nil {
		return fmt.Errorf("evaluating platform.js: %w", err)
	}
	return nil
}
