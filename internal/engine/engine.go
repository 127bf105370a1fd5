// Package engine wires the pieces named throughout spec.md into one
// running Runtime: VFS, resolver, JS backend, loader, scheduler, and the
// full Web API surface, in the dependency order their individual doc
// comments require. It is the Go-native analogue of the teacher's
// Engine/EngineConfig pairing, generalized from "serve one Worker
// request" to "run one script's event loop for the process lifetime."
package engine

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/mystral-js/mystral/internal/cachedb"
	"github.com/mystral-js/mystral/internal/compiler"
	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/crashhandler"
	"github.com/mystral-js/mystral/internal/debugserver"
	"github.com/mystral-js/mystral/internal/loader"
	"github.com/mystral-js/mystral/internal/resolver"
	"github.com/mystral-js/mystral/internal/scheduler"
	"github.com/mystral-js/mystral/internal/vfs"
	"github.com/mystral-js/mystral/internal/watchio"
	"github.com/mystral-js/mystral/internal/webapi"
)

// BackendName identifies the JS engine backend selected at compile time
// (select_v8.go / select_quickjs.go), for startup logs and `--version`.
const BackendName = engineName

// Runtime owns every collaborator a running script needs and the
// teardown order to release them.
type Runtime struct {
	cfg core.RuntimeConfig

	RT        core.JSRuntime
	VFS       *vfs.VFS
	Resolver  *resolver.Resolver
	Loader    *loader.Loader
	Scheduler *scheduler.Scheduler

	cache       *cachedb.Cache
	crashStop   func()
	debugServer *debugserver.Server
}

// New constructs a Runtime from cfg but does not load the entry module;
// call Load before Run.
func New(cfg core.RuntimeConfig) (*Runtime, error) {
	crashStop := crashhandler.Install(cfg.ShowCrash)

	fsys, err := vfs.Discover(cfg.Root, cfg.BundlePath)
	if err != nil {
		crashStop()
		return nil, fmt.Errorf("engine: discovering bundle: %w", err)
	}
	res := resolver.New(fsys)

	rt, err := newJSRuntime()
	if err != nil {
		crashStop()
		return nil, fmt.Errorf("engine: starting %s engine: %w", engineName, err)
	}

	cache, err := cachedb.Open(cacheDir(cfg.Root))
	if err != nil {
		rt.Close()
		crashStop()
		return nil, fmt.Errorf("engine: opening transpile cache: %w", err)
	}
	transpiler := compiler.NewCachedTranspiler(cache)

	ld := loader.New(rt, res, fsys, transpiler)
	sched := scheduler.New(rt)

	r := &Runtime{
		cfg:       cfg,
		RT:        rt,
		VFS:       fsys,
		Resolver:  res,
		Loader:    ld,
		Scheduler: sched,
		cache:     cache,
		crashStop: crashStop,
	}

	if cfg.Watch {
		watcher, err := watchio.New()
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("engine: starting file watcher: %w", err)
		}
		sched.Watch = watcher
		sched.Reload = r.reload

		srv, err := debugserver.New("127.0.0.1:0")
		if err != nil {
			log.Printf("engine: debug server disabled: %v", err)
		} else {
			srv.Start()
			r.debugServer = srv
			if !cfg.Quiet {
				log.Printf("mystral: dev reload server listening on ws://%s", srv.Addr())
			}
		}
	}

	if err := r.installWebAPIs(); err != nil {
		r.Close()
		return nil, fmt.Errorf("engine: installing web APIs: %w", err)
	}

	return r, nil
}

// installWebAPIs runs every webapi.Setup* call in the order their own doc
// comments require: EventTarget/Event before anything that dispatches
// events, globals (navigator) before the platform stubs that extend it,
// the platform stubs before canvas (which calls into them), and the
// body/stream/blob trio in the order bodytypes.go itself documents.
func (r *Runtime) installWebAPIs() error {
	steps := []func() error{
		func() error { return webapi.SetupConsole(r.RT) },
		func() error { return webapi.SetupConsoleExt(r.RT) },
		func() error { return webapi.SetupAbort(r.RT) },        // EventTarget/Event
		func() error { return r.Scheduler.Events.Install() },   // needs EventTarget
		func() error { return webapi.SetupGlobals(r.RT) },      // navigator, performance
		func() error { return webapi.SetupPlatformStubs(r.RT) }, // needs SetupGlobals + domevents
		func() error { return webapi.SetupCanvas(r.RT) },        // needs SetupPlatformStubs
		func() error { return webapi.SetupWebAPIs(r.RT) },       // URL, Response, Blob, buffer helpers
		func() error { return webapi.SetupFormData(r.RT) },      // FormData/Blob/File
		func() error { return webapi.SetupStreams(r.RT) },
		func() error { return webapi.SetupTextStreams(r.RT) },   // needs SetupStreams + SetupWebAPIs
		func() error { return webapi.SetupBlobExt(r.RT) },       // needs SetupFormData's Blob
		func() error { return webapi.SetupBodyTypes(r.RT) },     // needs SetupWebAPIs, SetupStreams, SetupFormData
		func() error { return webapi.SetupURLSearchParamsExt(r.RT) },
		func() error { return webapi.SetupObjectURL(r.RT) },     // needs SetupWebAPIs' URL class
		func() error { return webapi.SetupFileAPI(r.RT, r.Scheduler.Files) }, // needs SetupWebAPIs' buffer helpers
		func() error { return webapi.SetupEncodingBase64(r.RT) },
		func() error { return webapi.SetupFetch(r.RT, r.Scheduler.HTTP) }, // needs SetupWebAPIs' Response/Headers
		func() error { return webapi.SetupTimers(r.RT, r.Scheduler.Timers) },
		func() error { return webapi.SetupRAF(r.RT, r.Scheduler) },
		func() error { return webapi.SetupSchedulerAPI(r.RT) },
		func() error { return webapi.SetupReportError(r.RT) },
		func() error { return webapi.SetupUnhandledRejection(r.RT) },
		func() error { return webapi.SetupWorker(r.RT, r.VFS) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Load resolves and evaluates the entry module named by cfg.Entry.
func (r *Runtime) Load() error {
	return r.Loader.LoadEntry(r.cfg.Entry)
}

// Run hands control to the scheduler's poll_once loop until the script
// quits (or, in no-window mode, goes idle).
func (r *Runtime) Run() {
	r.Scheduler.Run()
}

// reload is the default watch-mode ReloadFunc: it clears the Loader's
// module cache (spec.md:168's "clear module caches" step) before re-running
// the entry module in the same realm, so edited source is re-evaluated
// instead of short-circuiting on the already-loaded guard.
func (r *Runtime) reload() error {
	if r.debugServer != nil {
		defer r.debugServer.BroadcastReload()
	}
	if err := r.Loader.ClearCache(); err != nil {
		return err
	}
	return r.Loader.LoadEntry(r.cfg.Entry)
}

// Close tears every collaborator down in reverse acquisition order.
func (r *Runtime) Close() {
	if r.debugServer != nil {
		if err := r.debugServer.Stop(); err != nil {
			log.Printf("engine: stopping debug server: %v", err)
		}
	}
	if r.Scheduler != nil && r.Scheduler.Watch != nil {
		if err := r.Scheduler.Watch.Close(); err != nil {
			log.Printf("engine: closing watcher: %v", err)
		}
	}
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			log.Printf("engine: closing transpile cache: %v", err)
		}
	}
	if r.RT != nil {
		r.RT.Close()
	}
	if r.crashStop != nil {
		r.crashStop()
	}
}

// cacheDir picks the directory the transpile cache database lives in,
// next to the game's own root rather than the current working directory
// so two concurrently running games do not share a cache file.
func cacheDir(root string) string {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return filepath.Join(abs, ".mystral-cache")
}
