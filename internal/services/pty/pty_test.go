package pty

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/handshake"
	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/seqpacket"
	p "github.com/tere-shell/tere-go/proto/pty"
	puser "github.com/tere-shell/tere-go/proto/ptyuser"
)

// fakePTY stands in for a real PTY master using a connected SOCK_STREAM
// pair, the same substitution the original test suite uses: what
// matters here is byte relaying, not PTY-specific EIO semantics.
func fakePTY(t *testing.T) (*ownedfd.FD, *ownedfd.FD) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	return ownedfd.FromRawFD(fds[0]), ownedfd.FromRawFD(fds[1])
}

func TestRunInitThenEOF(t *testing.T) {
	clientConn, serverConn, err := seqpacket.Pair()
	if err != nil {
		t.Fatalf("seqpacket.Pair: %v", err)
	}
	masterSide, slaveSide := fakePTY(t)
	defer slaveSide.Close()

	serverDone := make(chan error, 1)
	go func() { serverDone <- Run(serverConn) }()

	if err := handshake.AsClient(clientConn, p.ClientIntent, p.ServerIntent); err != nil {
		t.Fatalf("handshake as client: %v", err)
	}
	if err := ipc.Send(clientConn, &p.Init{PTYFd: masterSide}); err != nil {
		t.Fatalf("send Init: %v", err)
	}
	clientConn.Close()

	select {
	case err := <-serverDone:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after client disconnected")
	}
}

func TestRunRelaysInputAndOutput(t *testing.T) {
	clientConn, serverConn, err := seqpacket.Pair()
	if err != nil {
		t.Fatalf("seqpacket.Pair: %v", err)
	}
	masterSide, slaveSide := fakePTY(t)

	serverDone := make(chan error, 1)
	go func() { serverDone <- Run(serverConn) }()

	if err := handshake.AsClient(clientConn, p.ClientIntent, p.ServerIntent); err != nil {
		t.Fatalf("handshake as client: %v", err)
	}
	if err := ipc.Send(clientConn, &p.Init{PTYFd: masterSide}); err != nil {
		t.Fatalf("send Init: %v", err)
	}

	userClientConn, userServerFd, err := seqpacket.Pair()
	if err != nil {
		t.Fatalf("seqpacket.Pair for user: %v", err)
	}
	userServerOwned, err := ownedfd.FromUnixConn(userServerFd.Underlying())
	if err != nil {
		t.Fatalf("FromUnixConn: %v", err)
	}
	if err := ipc.Send(clientConn, &p.Request{NewClient: &p.RequestNewClient{Fd: userServerOwned}}); err != nil {
		t.Fatalf("send NewClient: %v", err)
	}

	if err := handshake.AsClient(userClientConn, puser.ClientIntent, puser.ServerIntent); err != nil {
		t.Fatalf("user handshake as client: %v", err)
	}

	if err := ipc.Send(userClientConn, &puser.Input{KeyboardInput: []byte("hello")}); err != nil {
		t.Fatalf("send Input: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := readFull(slaveSide, buf); err != nil {
		t.Fatalf("reading relayed input from fake pty: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("relayed input = %q, want %q", buf, "hello")
	}

	if _, err := unix.Write(slaveSide.Raw(), []byte("world")); err != nil {
		t.Fatalf("writing fake pty output: %v", err)
	}
	out, err := ipc.Receive[puser.Output, *puser.Output](userClientConn)
	if err != nil {
		t.Fatalf("receive Output: %v", err)
	}
	if string(out.SessionOutput) != "world" {
		t.Fatalf("relayed output = %q, want %q", out.SessionOutput, "world")
	}

	clientConn.Close()
	userClientConn.Close()
}

func readFull(fd *ownedfd.FD, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := unix.Read(fd.Raw(), buf[read:])
		if err != nil {
			return read, err
		}
		if n == 0 {
			return read, nil
		}
		read += n
	}
	return read, nil
}
