// Package ipc defines the transport-level error kinds and the generic
// send/receive helpers shared by every concrete transport
// (seqpacket.Conn in production, ipctest.Fake in unit tests).
package ipc

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/wire"
)

// SendError is returned by Send.
type SendError struct {
	Kind SendErrorKind
	Err  error
}

type SendErrorKind int

const (
	SendSerialize SendErrorKind = iota
	SendSocket
)

func (e *SendError) Error() string {
	switch e.Kind {
	case SendSerialize:
		return fmt.Sprintf("serialize failed: %v", e.Err)
	case SendSocket:
		return fmt.Sprintf("socket sendmsg failed: %v", e.Err)
	default:
		return fmt.Sprintf("send error: %v", e.Err)
	}
}

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError is returned by Receive.
type ReceiveError struct {
	Kind     ReceiveErrorKind
	Err      error
	MaxFDs   int // for AncillaryTruncated
	BytesCap int // for AncillaryTruncated
	Orig     int // for TooManyFds
	Extra    int // for TooManyFds
}

type ReceiveErrorKind int

const (
	ReceiveEnd ReceiveErrorKind = iota
	ReceiveTooLarge
	ReceiveDeserialize
	ReceiveSocket
	ReceiveAncillary
	ReceiveAncillaryTruncated
	ReceiveTooManyFds
)

func (e *ReceiveError) Error() string {
	switch e.Kind {
	case ReceiveEnd:
		return "end of stream"
	case ReceiveTooLarge:
		return "received more data than expected for this message"
	case ReceiveDeserialize:
		return fmt.Sprintf("deserialize failed: %v", e.Err)
	case ReceiveSocket:
		return fmt.Sprintf("socket recvmsg failed: %v", e.Err)
	case ReceiveAncillary:
		return fmt.Sprintf("cannot parse socket ancillary data: %v", e.Err)
	case ReceiveAncillaryTruncated:
		return fmt.Sprintf("ancillary data was truncated: reserved %d bytes for %d fds", e.BytesCap, e.MaxFDs)
	case ReceiveTooManyFds:
		return fmt.Sprintf("received too many FDs: got %d, %d too many", e.Orig, e.Extra)
	default:
		return fmt.Sprintf("receive error: %v", e.Err)
	}
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// IsEnd reports whether err is (or wraps) a ReceiveError{Kind: ReceiveEnd}.
func IsEnd(err error) bool {
	var re *ReceiveError
	return errors.As(err, &re) && re.Kind == ReceiveEnd
}

// Direction names the half (or both) of a connection to shut down.
type Direction int

const (
	ShutdownRead Direction = iota
	ShutdownWrite
	ShutdownBoth
)

func (d Direction) String() string {
	switch d {
	case ShutdownRead:
		return "read"
	case ShutdownWrite:
		return "write"
	default:
		return "both"
	}
}

// ShutdownError is returned by Shutdown.
type ShutdownError struct {
	How Direction
	Err error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("error shutting down IPC socket for %v: %v", e.How, e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }

// Transport is the low-level, non-generic surface a concrete IPC
// connection must implement. Send/Receive below build the typed,
// message-aware API on top of it.
type Transport interface {
	// SendRaw performs one send syscall: payload plus fds as SCM_RIGHTS.
	SendRaw(payload []byte, fds []int) error

	// ReceiveRaw performs one receive syscall sized for a message with
	// the given MaxSize/MaxFDs, and returns the owned FDs received.
	ReceiveRaw(maxSize, maxFDs int) (payload []byte, fds []*ownedfd.FD, err error)

	// Shutdown closes one or both halves of the connection.
	Shutdown(how Direction) error
}

// Send encodes m and performs one send on t. Any FD fields in m are
// released into the encoded message (see wire.Encoder.PutFD) and are
// closed here once the sendmsg call has run, win or lose: the kernel
// has already duplicated them into the outgoing message by then, so
// this side's copy is done.
func Send[M wire.Encodable](t Transport, m M) error {
	payload, fds, err := wire.Marshal(m)
	if err != nil {
		return &SendError{Kind: SendSerialize, Err: err}
	}
	defer closeRawFDs(fds)
	if err := t.SendRaw(payload, fds); err != nil {
		return &SendError{Kind: SendSocket, Err: err}
	}
	return nil
}

func closeRawFDs(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}

// Receive receives one message of type M on t. PM is the pointer
// receiver type that actually implements wire.Decodable; this is the
// standard Go generics idiom for "construct a new *M and return M".
func Receive[M any, PM interface {
	*M
	wire.Decodable
}](t Transport) (M, error) {
	var zero M
	var limits PM = new(M)
	payload, fds, err := t.ReceiveRaw(limits.MaxSize(), limits.MaxFDs())
	if err != nil {
		return zero, err
	}

	leftover, err := wire.Unmarshal(payload, fds, limits)
	if err != nil {
		closeAll(leftover)
		return zero, &ReceiveError{Kind: ReceiveDeserialize, Err: err}
	}
	if len(leftover) != 0 {
		orig := len(fds)
		closeAll(leftover)
		return zero, &ReceiveError{Kind: ReceiveTooManyFds, Orig: orig, Extra: len(leftover)}
	}
	return *limits, nil
}

func closeAll(fds []*ownedfd.FD) {
	for _, fd := range fds {
		fd.Close()
	}
}
