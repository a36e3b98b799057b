// Package launcher defines the interface the session broker uses to
// actually start a shell session somewhere (on the host, or inside a
// named container) and get back a PTY master for it.
//
// The production implementation of this interface talks to
// systemd-machined over D-Bus (org.freedesktop.machine1.Manager's
// OpenMachineShell) and is out of scope here: the broker is only
// responsible for the session bookkeeping and protocol surface around
// whatever implementation is wired in. See FakeLauncher for the double
// used by this package's own tests.
package launcher

import (
	"context"

	"github.com/tere-shell/tere-go/internal/ptymaster"
)

// ShellSpec specifies the shell session to start.
type ShellSpec struct {
	// Machine is the container to connect to, or ".host" for the host.
	Machine string
	// User is the username to start the session as.
	User string
	// Program is the absolute path to the shell to run. Empty means the
	// launcher's default.
	Program string
	// Args are arguments to Program; the first should be its own name.
	// Ignored if Program is empty.
	Args []string
	// Env holds environment variables to pass to the session.
	Env []string
}

// ShellLauncher starts shell sessions and returns their PTY master.
type ShellLauncher interface {
	CreateShell(ctx context.Context, spec ShellSpec) (*ptymaster.PTY, error)
}
