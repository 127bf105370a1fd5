// Package crashhandler installs the signal handling behavior of
// spec.md §7: by default, a crash signal is swallowed into a short
// message and an immediate exit(1), so that a broken native dependency
// does not surface an OS-level crash dialog in the middle of a game. A
// developer debugging a crash can opt back into the OS's own handling
// with SHOW_CRASH_DIALOG=1.
package crashhandler

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// crashSignals is exactly the signal set named in spec.md §7.
var crashSignals = []os.Signal{
	syscall.SIGABRT,
	syscall.SIGSEGV,
	syscall.SIGBUS,
	syscall.SIGTRAP,
	syscall.SIGILL,
}

// Install registers the crash signal handler unless showDialog is true (the
// CLI passes through SHOW_CRASH_DIALOG=1 from the environment). Returns a
// function that stops the handler, for tests and for orderly shutdown.
func Install(showDialog bool) (stop func()) {
	if showDialog {
		return func() {}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, crashSignals...)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			handleCrash(sig)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// handleCrash prints the signal name and exits immediately, matching the
// "print the signal name and call immediate exit(1)" behavior of
// spec.md §7. It does not run deferred cleanup: a process in this state
// cannot trust its own heap, so the only safe action left is to leave.
func handleCrash(sig os.Signal) {
	fmt.Fprintf(os.Stderr, "mystral: fatal signal: %s\n", sig)
	os.Exit(1)
}

// ReraiseDefault restores the OS default disposition for sig and re-raises
// it on the current process, used when SHOW_CRASH_DIALOG=1 lets the signal
// fall through to the OS's own crash reporting instead of being swallowed.
func ReraiseDefault(sig os.Signal) error {
	signal.Reset(sig)
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	return p.Signal(sig)
}
