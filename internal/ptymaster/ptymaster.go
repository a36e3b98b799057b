// Package ptymaster wraps a PTY master file descriptor with PTY-specific
// I/O semantics: a read returns EIO rather than a zero-length read once
// the session process attached to the PTY's slave side has exited, so
// this package maps that to io.EOF for callers used to normal fd
// end-of-stream conventions.
package ptymaster

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"

	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
)

// PTY is a PTY master descriptor, owned exclusively by this wrapper.
type PTY struct {
	fd *ownedfd.FD
}

// FromFD adopts fd as a PTY master, moving ownership.
func FromFD(fd *ownedfd.FD) *PTY {
	return &PTY{fd: fd}
}

// Read reads raw bytes from the PTY master. Once the session attached
// to the PTY's slave side exits, the kernel signals it via EIO instead
// of a zero-length read; Read reports that as io.EOF.
func (p *PTY) Read(buf []byte) (int, error) {
	n, err := unix.Read(p.fd.Raw(), buf)
	if err != nil {
		if errors.Is(err, unix.EIO) {
			return 0, io.EOF
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes raw bytes to the PTY master.
func (p *PTY) Write(buf []byte) (int, error) {
	return unix.Write(p.fd.Raw(), buf)
}

// Close closes the PTY master descriptor.
func (p *PTY) Close() error {
	if p.fd == nil {
		return nil
	}
	return p.fd.Close()
}

// TakeFD releases the underlying descriptor to the caller, moving
// ownership away from p. p must not be used again after this call.
func (p *PTY) TakeFD() *ownedfd.FD {
	fd := p.fd
	p.fd = nil
	return fd
}
