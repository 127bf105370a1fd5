// Command mystral runs or compiles a JavaScript/TypeScript game entry
// script against the native runtime in internal/engine.
//
// Usage:
//
//	mystral run <script> [flags]
//	mystral compile <entry> [flags]
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mystral-js/mystral/internal/compiler"
	"github.com/mystral-js/mystral/internal/core"
	"github.com/mystral-js/mystral/internal/engine"
)

var versionString = "mystral 0.1.0 (" + engine.BackendName + ")"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mystral: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: mystral <run|compile> [flags]\n\nCommands:\n  run <script>    run a script\n  compile <entry> emit a bundle or self-contained executable")
	}

	switch args[0] {
	case "run":
		return runCommand(args[1:])
	case "compile":
		return compileCommand(args[1:])
	case "--version":
		fmt.Println(versionString)
		return nil
	case "--help", "-h":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q (expected run or compile)", args[0])
	}
}

const usage = `mystral run <script> [flags]
mystral compile <entry> [flags]

Flags for run:
  --width N          initial window width (default 1280)
  --height N         initial window height (default 720)
  --title S          window title (default "mystral")
  --headless         create window hidden
  --no-sdl           run without a window; use an offscreen render target
  --watch, -w        enable hot reload on entry-script change
  --screenshot FILE  capture after --frames frames and exit
  --frames N         frame count for --screenshot (default 60)
  --quiet, -q        suppress non-error output
  --root DIR         root directory for bundle paths

Flags for compile:
  --include DIR      asset directory to bundle (repeatable)
  --output FILE      output binary/bundle path
  --root DIR         root directory for bundle paths
  --bundle-only      emit a standalone bundle file (no runtime prefix)

  --version, --help  informational`

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	width := fs.Int("width", 1280, "initial window width")
	height := fs.Int("height", 720, "initial window height")
	title := fs.String("title", "mystral", "window title")
	headless := fs.Bool("headless", os.Getenv("HEADLESS") == "1", "create window hidden")
	noSDL := fs.Bool("no-sdl", false, "run without a window; use an offscreen render target")
	watch := fs.Bool("watch", false, "enable hot reload on entry-script change")
	fs.BoolVar(watch, "w", false, "shorthand for --watch")
	screenshot := fs.String("screenshot", "", "capture after --frames frames and exit")
	frames := fs.Int("frames", 60, "frame count for --screenshot")
	quiet := fs.Bool("quiet", false, "suppress non-error output")
	fs.BoolVar(quiet, "q", false, "shorthand for --quiet")
	root := fs.String("root", "", "root directory for bundle paths")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: mystral run <script> [flags]")
	}
	entry := fs.Arg(0)

	cfg := core.DefaultRuntimeConfig()
	cfg.Width = *width
	cfg.Height = *height
	cfg.Title = *title
	cfg.Headless = *headless
	cfg.NoWindow = *noSDL
	cfg.Watch = *watch
	cfg.Screenshot = *screenshot
	cfg.Frames = *frames
	cfg.Quiet = *quiet
	cfg.Root = *root
	if cfg.Root == "" {
		cfg.Root = filepath.Dir(entry)
	}
	cfg.Entry = entrySpecifier(cfg.Root, entry)
	cfg.BundlePath = os.Getenv("BUNDLE")
	cfg.ShowCrash = os.Getenv("SHOW_CRASH_DIALOG") == "1"
	cfg.Debug = os.Getenv("DEBUG") == "1"

	return runScript(cfg)
}

// entrySpecifier turns a filesystem path the user typed into the
// root-relative path specifier internal/loader.LoadEntry expects (it
// resolves Entry as a Require specifier against an empty referrer, so it
// must look like "./game.js", not a bare "game.js").
func entrySpecifier(root, entry string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	absEntry, err := filepath.Abs(entry)
	if err != nil {
		absEntry = entry
	}
	rel, err := filepath.Rel(absRoot, absEntry)
	if err != nil {
		rel = filepath.Base(entry)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		rel = filepath.Base(entry)
	}
	if rel[0] != '.' && rel[0] != '/' {
		rel = "./" + rel
	}
	return rel
}

func runScript(cfg core.RuntimeConfig) error {
	if !cfg.Quiet {
		log.Printf("mystral: starting %s", versionString)
	}

	rt, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer rt.Close()

	if err := rt.Load(); err != nil {
		return fmt.Errorf("loading %s: %w", cfg.Entry, err)
	}

	if cfg.Screenshot != "" {
		return captureScreenshot(rt, cfg)
	}

	rt.Run()
	return nil
}

// captureScreenshot drives cfg.Frames iterations of the scheduler loop,
// then writes a placeholder image: the runtime has no real GPU backend
// (spec.md §1 replaces rendering with interface contracts), so there is
// no framebuffer to read back. A solid-color PNG at the configured
// dimensions at least exercises the "capture after N frames, then exit"
// CLI contract end to end.
func captureScreenshot(rt *engine.Runtime, cfg core.RuntimeConfig) error {
	for i := 0; i < cfg.Frames; i++ {
		rt.Scheduler.PollOnce()
	}

	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	fill := color.RGBA{R: 0, G: 0, B: 0, A: 255}
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}

	f, err := os.Create(cfg.Screenshot)
	if err != nil {
		return fmt.Errorf("creating screenshot file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding screenshot: %w", err)
	}
	if !cfg.Quiet {
		log.Printf("mystral: wrote screenshot to %s", cfg.Screenshot)
	}
	return nil
}

func compileCommand(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	var include stringList
	fs.Var(&include, "include", "asset directory to bundle (repeatable)")
	output := fs.String("output", "", "output binary/bundle path")
	root := fs.String("root", "", "root directory for bundle paths")
	bundleOnly := fs.Bool("bundle-only", false, "emit a standalone bundle file (no runtime prefix)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: mystral compile <entry> [flags]")
	}
	entry := fs.Arg(0)

	out := *output
	if out == "" {
		if *bundleOnly {
			out = "game.bundle"
		} else {
			out = "game"
		}
	}

	exePath := ""
	if !*bundleOnly {
		var err error
		exePath, err = os.Executable()
		if err != nil {
			return fmt.Errorf("locating running executable to prefix the bundle: %w", err)
		}
	}

	opts := core.CompileOptions{
		Entry:      entry,
		AssetDirs:  include,
		Output:     out,
		Root:       *root,
		BundleOnly: *bundleOnly,
		ExePath:    exePath,
	}

	start := time.Now()
	if err := compiler.Compile(opts); err != nil {
		return err
	}
	log.Printf("mystral: compiled %s -> %s (%s)", entry, out, time.Since(start).Round(time.Millisecond))
	return nil
}

// stringList implements flag.Value so --include can be repeated.
type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprint([]string(*s))
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
