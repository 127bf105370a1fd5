package core

import "time"

// RuntimeConfig configures a Runtime instance. It is populated by flag
// parsing in cmd/mystral and passed by value, mirroring the teacher's flat
// EngineConfig struct.
type RuntimeConfig struct {
	Entry       string
	Width       int
	Height      int
	Title       string
	Headless    bool
	NoWindow    bool
	Watch       bool
	Screenshot  string
	Frames      int
	Quiet       bool
	Root        string
	BundlePath  string // override from the BUNDLE env var
	ShowCrash   bool
	Debug       bool
	IdleTimeout time.Duration // not read: Scheduler.Run in no-window mode always quits after 3 idle poll_once iterations
}

// DefaultRuntimeConfig returns a config with the same defaults the CLI
// applies when a flag is omitted.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Width:  1280,
		Height: 720,
		Title:  "mystral",
		Frames: 60,
	}
}

// CompileOptions configures the `compile` CLI command (spec.md §4.9/§6).
type CompileOptions struct {
	Entry       string
	AssetDirs   []string
	Output      string
	Root        string
	BundleOnly  bool
	ExePath     string // path to the currently-running executable, copied when !BundleOnly
}
