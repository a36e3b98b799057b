// Package ownedfd provides the sole-ownership file descriptor primitive
// used throughout the IPC stack: at most one live handle exists for a
// given kernel descriptor, and that handle closes it exactly once.
package ownedfd

import (
	"fmt"
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// FD uniquely owns one kernel file descriptor. The zero value is not
// valid; construct with FromRawFD or one of the From* conversions.
type FD struct {
	mu       sync.Mutex
	raw      int
	consumed bool
}

// FromRawFD adopts a raw file descriptor. The caller asserts that no
// other owner exists for fd.
func FromRawFD(fd int) *FD {
	return &FD{raw: fd}
}

// Raw returns the underlying descriptor without transferring ownership.
// The returned value is only valid until the FD is closed or released.
func (f *FD) Raw() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw
}

// Release yields the raw descriptor and suppresses the owning close.
// After Release, the FD must not be used again.
func (f *FD) Release() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw := f.raw
	f.consumed = true
	f.raw = -1
	return raw
}

// Close closes the descriptor, ignoring a subsequent double-close. Safe
// to call more than once; only the first call does anything.
func (f *FD) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumed {
		return nil
	}
	f.consumed = true
	raw := f.raw
	f.raw = -1
	if raw < 0 {
		return nil
	}
	return unix.Close(raw)
}

// ToFile converts the FD into an *os.File, moving ownership. name is
// used only for the file's diagnostic name.
func ToFile(f *FD, name string) *os.File {
	return os.NewFile(uintptr(f.Release()), name)
}

// FromFile adopts an *os.File's descriptor, moving ownership away from
// the file. The file must not be used again after this call.
func FromFile(file *os.File) (*FD, error) {
	fd := file.Fd()
	dup, err := unix.Dup(int(fd))
	if err != nil {
		return nil, fmt.Errorf("duplicating file descriptor: %w", err)
	}
	if err := file.Close(); err != nil {
		unix.Close(dup)
		return nil, fmt.Errorf("closing source file after dup: %w", err)
	}
	return FromRawFD(dup), nil
}

// ToUnixConn converts the FD into a *net.UnixConn, moving ownership.
func ToUnixConn(f *FD, name string, network string) (*net.UnixConn, error) {
	raw := f.Raw()
	file := ToFile(f, name)
	conn, err := net.FileConn(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("wrapping fd %d as %s conn: %w", raw, network, err)
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("fd %d did not wrap as a unix conn", raw)
	}
	return unixConn, nil
}

// FromUnixConn adopts a *net.UnixConn's descriptor, moving ownership
// away from conn. conn must not be used again after this call.
func FromUnixConn(conn *net.UnixConn) (*FD, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("getting raw conn: %w", err)
	}
	var dup int
	var dupErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		dup, dupErr = unix.Dup(int(fd))
	})
	if ctrlErr != nil {
		return nil, fmt.Errorf("raw conn control: %w", ctrlErr)
	}
	if dupErr != nil {
		return nil, fmt.Errorf("duplicating unix conn fd: %w", dupErr)
	}
	if err := conn.Close(); err != nil {
		unix.Close(dup)
		return nil, fmt.Errorf("closing source conn after dup: %w", err)
	}
	return FromRawFD(dup), nil
}
