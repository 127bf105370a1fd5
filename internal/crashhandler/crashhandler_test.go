package crashhandler

import "testing"

func TestInstallShowDialogIsNoop(t *testing.T) {
	stop := Install(true)
	// Must be safe to call even though nothing was registered.
	stop()
}

func TestInstallAndStop(t *testing.T) {
	stop := Install(false)
	defer stop()
	// No signal is sent; this just exercises that Install/stop do not
	// block or panic under normal operation.
}
