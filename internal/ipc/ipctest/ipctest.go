// Package ipctest provides an in-memory ipc.Transport double for unit
// tests that need to drive a handshake or service handler without a
// real socket. Unlike a callback-registration double, Go's generics
// let callers decode a sent message by type directly (see Sent), so
// there is no need for type-erased boxing on the send side.
package ipctest

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/wire"
)

type rawMsg struct {
	payload []byte
	fds     []int
}

// Fake is a queue-backed ipc.Transport: Add enqueues what Receive will
// hand back, SendRaw records what the code under test sent for later
// inspection via Sent.
type Fake struct {
	mu       sync.Mutex
	incoming []rawMsg
	sent     []rawMsg
	shutdown bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{}
}

// Add queues m to be returned by the next Receive call on this transport.
func Add[M wire.Encodable](f *Fake, m M) {
	payload, fds, err := wire.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("ipctest: marshal queued message: %v", err))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incoming = append(f.incoming, rawMsg{payload: payload, fds: fds})
}

// SimulateShutdown makes every Receive after the queued messages are
// drained report end-of-stream, as if the peer had closed the connection.
func (f *Fake) SimulateShutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
}

// SentCount reports how many messages have been sent so far.
func (f *Fake) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// Sent pops and decodes the next message sent by the code under test.
func Sent[M any, PM interface {
	*M
	wire.Decodable
}](f *Fake) (M, error) {
	var zero M
	f.mu.Lock()
	if len(f.sent) == 0 {
		f.mu.Unlock()
		return zero, fmt.Errorf("ipctest: no message was sent")
	}
	m := f.sent[0]
	f.sent = f.sent[1:]
	f.mu.Unlock()

	owned := make([]*ownedfd.FD, len(m.fds))
	for i, fd := range m.fds {
		owned[i] = ownedfd.FromRawFD(fd)
	}
	var limits PM = new(M)
	leftover, err := wire.Unmarshal(m.payload, owned, limits)
	for _, fd := range leftover {
		fd.Close()
	}
	if err != nil {
		return zero, err
	}
	return *limits, nil
}

// SendRaw implements ipc.Transport. It dups the incoming fds, the way
// a real sendmsg call would duplicate them into the kernel's message
// before returning: the caller is expected to close its own copies
// right after this returns, so the recorded copy must be independent.
func (f *Fake) SendRaw(payload []byte, fds []int) error {
	dup := make([]int, len(fds))
	for i, fd := range fds {
		d, err := unix.Dup(fd)
		if err != nil {
			for _, done := range dup[:i] {
				unix.Close(done)
			}
			return fmt.Errorf("ipctest: dup fd: %w", err)
		}
		dup[i] = d
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), payload...)
	f.sent = append(f.sent, rawMsg{payload: cp, fds: dup})
	return nil
}

// ReceiveRaw implements ipc.Transport.
func (f *Fake) ReceiveRaw(maxSize, maxFDs int) ([]byte, []*ownedfd.FD, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.incoming) == 0 {
		if f.shutdown {
			return nil, nil, &ipc.ReceiveError{Kind: ipc.ReceiveEnd}
		}
		panic("ipctest: fake has no incoming messages queued")
	}
	m := f.incoming[0]
	f.incoming = f.incoming[1:]
	owned := make([]*ownedfd.FD, len(m.fds))
	for i, fd := range m.fds {
		owned[i] = ownedfd.FromRawFD(fd)
	}
	return m.payload, owned, nil
}

// Shutdown implements ipc.Transport. It has no effect on the queue; use
// SimulateShutdown to make the fake behave like a closed peer.
func (f *Fake) Shutdown(ipc.Direction) error {
	return nil
}
