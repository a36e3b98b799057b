package launcher

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ptymaster"
)

// FakeLauncher is a ShellLauncher double for tests: each call to
// CreateShell records the spec it was given and hands back one end of
// a fresh socket pair standing in for a PTY master.
type FakeLauncher struct {
	mu    sync.Mutex
	specs []ShellSpec
	err   error
}

// NewFakeLauncher returns a launcher that always succeeds.
func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{}
}

// NewFailingFakeLauncher returns a launcher whose CreateShell always
// fails with err.
func NewFailingFakeLauncher(err error) *FakeLauncher {
	return &FakeLauncher{err: err}
}

// Specs returns the specs passed to CreateShell so far, in call order.
func (f *FakeLauncher) Specs() []ShellSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ShellSpec(nil), f.specs...)
}

// CreateShell implements ShellLauncher.
func (f *FakeLauncher) CreateShell(_ context.Context, spec ShellSpec) (*ptymaster.PTY, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("launcher: fake socketpair: %w", err)
	}
	unix.Close(fds[1])
	return ptymaster.FromFD(ownedfd.FromRawFD(fds[0])), nil
}
