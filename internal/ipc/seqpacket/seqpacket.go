// Package seqpacket implements ipc.Transport over connected
// AF_UNIX/SOCK_SEQPACKET sockets. Go's net package exposes this socket
// type directly via the "unixpacket" network name, so Dial/Listen here
// are thin wrappers around net.DialUnix/net.ListenUnix. Connections that
// arrive from elsewhere (FromUnixConn, Listener.Accept) have their socket
// type verified via SO_TYPE. Descriptors travel as ancillary SCM_RIGHTS
// data, parsed with unix.ParseSocketControlMessage/ParseUnixRights.
package seqpacket

import (
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
)

// Conn wraps a connected SOCK_SEQPACKET UNIX socket and implements
// ipc.Transport.
type Conn struct {
	uc *net.UnixConn
}

// ErrNotSeqPacket is returned when a UnixConn is not SOCK_SEQPACKET.
var ErrNotSeqPacket = errors.New("seqpacket: not a SOCK_SEQPACKET socket")

// FromUnixConn wraps an already-connected *net.UnixConn, verifying its
// socket type via SO_TYPE.
func FromUnixConn(uc *net.UnixConn) (*Conn, error) {
	ok, err := isSeqPacket(uc)
	if err != nil {
		return nil, fmt.Errorf("checking socket type: %w", err)
	}
	if !ok {
		return nil, ErrNotSeqPacket
	}
	return &Conn{uc: uc}, nil
}

func isSeqPacket(uc *net.UnixConn) (bool, error) {
	raw, err := uc.SyscallConn()
	if err != nil {
		return false, err
	}
	var typ int
	var getErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		typ, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_TYPE)
	})
	if ctrlErr != nil {
		return false, ctrlErr
	}
	if getErr != nil {
		return false, getErr
	}
	return typ == unix.SOCK_SEQPACKET, nil
}

// Dial connects to a SOCK_SEQPACKET UNIX socket at path.
func Dial(path string) (*Conn, error) {
	uc, err := net.DialUnix("unixpacket", nil, &net.UnixAddr{Name: path, Net: "unixpacket"})
	if err != nil {
		return nil, err
	}
	return &Conn{uc: uc}, nil
}

// Listener wraps a SOCK_SEQPACKET UNIX listener.
type Listener struct {
	l *net.UnixListener
}

// Listen creates a SOCK_SEQPACKET UNIX listener at path.
func Listen(path string) (*Listener, error) {
	l, err := net.ListenUnix("unixpacket", &net.UnixAddr{Name: path, Net: "unixpacket"})
	if err != nil {
		return nil, err
	}
	return &Listener{l: l}, nil
}

// ListenFD wraps a pre-opened listening file descriptor (from socket
// activation) as a SOCK_SEQPACKET listener, moving ownership of fd.
func ListenFD(fd *ownedfd.FD, name string) (*Listener, error) {
	file := ownedfd.ToFile(fd, name)
	l, err := net.FileListener(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("wrapping activation fd as listener: %w", err)
	}
	ul, ok := l.(*net.UnixListener)
	if !ok {
		l.Close()
		return nil, fmt.Errorf("activation fd %s is not a unix listener", name)
	}
	return &Listener{l: ul}, nil
}

// Accept accepts one connection and verifies it is SOCK_SEQPACKET.
func (l *Listener) Accept() (*Conn, error) {
	uc, err := l.l.AcceptUnix()
	if err != nil {
		return nil, err
	}
	return FromUnixConn(uc)
}

// Close closes the listener.
func (l *Listener) Close() error { return l.l.Close() }

// Pair creates a connected pair of SOCK_SEQPACKET sockets via
// socketpair(2), analogous to net.UnixConn.Pair but for this socket
// type (which the net package does not expose a pair constructor for).
func Pair() (*Conn, *Conn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	a, err := wrapRawFD(fds[0], "seqpacket-pair-a")
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := wrapRawFD(fds[1], "seqpacket-pair-b")
	if err != nil {
		a.Close()
		unix.Close(fds[1])
		return nil, nil, err
	}
	return a, b, nil
}

func wrapRawFD(fd int, name string) (*Conn, error) {
	owned := ownedfd.FromRawFD(fd)
	uc, err := ownedfd.ToUnixConn(owned, name, "unixpacket")
	if err != nil {
		return nil, err
	}
	return &Conn{uc: uc}, nil
}

// SendRaw implements ipc.Transport: one sendmsg, payload plus fds as a
// single SCM_RIGHTS control message.
func (c *Conn) SendRaw(payload []byte, fds []int) error {
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	_, _, err := c.uc.WriteMsgUnix(payload, oob, nil)
	return err
}

// ReceiveRaw implements ipc.Transport: one recvmsg sized for maxSize
// bytes of payload and CMSG_SPACE(maxFDs ints) of ancillary data.
func (c *Conn) ReceiveRaw(maxSize, maxFDs int) ([]byte, []*ownedfd.FD, error) {
	buf := make([]byte, maxSize)
	oobLen := unix.CmsgSpace(4 * maxFDs)
	var oob []byte
	if oobLen > 0 {
		oob = make([]byte, oobLen)
	}

	n, oobn, flags, _, err := c.uc.ReadMsgUnix(buf, oob)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return nil, nil, &ipc.ReceiveError{Kind: ipc.ReceiveEnd, Err: err}
		}
		return nil, nil, &ipc.ReceiveError{Kind: ipc.ReceiveSocket, Err: err}
	}
	if n == 0 && oobn == 0 {
		return nil, nil, &ipc.ReceiveError{Kind: ipc.ReceiveEnd}
	}
	if flags&unix.MSG_TRUNC != 0 {
		// Any FDs delivered alongside a too-large payload leak here: oob
		// is never parsed on this path. Matches the original seqpacket.rs,
		// which has the same ordering; a MaxSize large enough for every
		// real message (see wire.DefaultLimits) keeps this path untaken
		// in practice.
		return nil, nil, &ipc.ReceiveError{Kind: ipc.ReceiveTooLarge}
	}

	fds, err := parseRights(oob[:oobn])
	if err != nil {
		closeFDs(fds)
		return nil, nil, &ipc.ReceiveError{Kind: ipc.ReceiveAncillary, Err: err}
	}
	if flags&unix.MSG_CTRUNC != 0 {
		closeFDs(fds)
		return nil, nil, &ipc.ReceiveError{
			Kind:     ipc.ReceiveAncillaryTruncated,
			MaxFDs:   maxFDs,
			BytesCap: len(oob),
		}
	}

	return buf[:n], fds, nil
}

func parseRights(oob []byte) ([]*ownedfd.FD, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	var out []*ownedfd.FD
	for _, scm := range scms {
		if scm.Header.Type != unix.SCM_RIGHTS || scm.Header.Level != unix.SOL_SOCKET {
			// Unknown/non-SCM_RIGHTS ancillary entries are ignored, but
			// any FDs they might carry are still reclaimed and closed.
			if fds, err := unix.ParseUnixRights(&scm); err == nil {
				for _, fd := range fds {
					unix.Close(fd)
				}
			}
			continue
		}
		rights, err := unix.ParseUnixRights(&scm)
		if err != nil {
			continue
		}
		for _, fd := range rights {
			out = append(out, ownedfd.FromRawFD(fd))
		}
	}
	return out, nil
}

func closeFDs(fds []*ownedfd.FD) {
	for _, fd := range fds {
		fd.Close()
	}
}

// Shutdown implements ipc.Transport.
func (c *Conn) Shutdown(how ipc.Direction) error {
	switch how {
	case ipc.ShutdownRead:
		return c.uc.CloseRead()
	case ipc.ShutdownWrite:
		return c.uc.CloseWrite()
	default:
		return c.uc.Close()
	}
}

// Close closes the underlying socket outright.
func (c *Conn) Close() error { return c.uc.Close() }

// Underlying exposes the wrapped *net.UnixConn for advanced use
// (e.g. setting deadlines); most callers should not need this.
func (c *Conn) Underlying() *net.UnixConn { return c.uc }
