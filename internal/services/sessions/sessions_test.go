package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/handshake"
	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/seqpacket"
	"github.com/tere-shell/tere-go/internal/launcher"
	ptysvc "github.com/tere-shell/tere-go/internal/services/pty"
	sp "github.com/tere-shell/tere-go/proto/sessions"
)

func TestCreateShellSessionAttachesClient(t *testing.T) {
	socketPath := t.TempDir() + "/pty.sock"
	ptyListener, err := seqpacket.Listen(socketPath)
	if err != nil {
		t.Fatalf("seqpacket.Listen: %v", err)
	}
	defer ptyListener.Close()
	go func() {
		conn, err := ptyListener.Accept()
		if err != nil {
			return
		}
		ptysvc.Run(conn)
	}()

	broker := NewBroker(launcher.NewFakeLauncher(), socketPath)

	brokerClient, brokerServer, err := seqpacket.Pair()
	if err != nil {
		t.Fatalf("seqpacket.Pair: %v", err)
	}
	go broker.serveConn(context.Background(), brokerServer)

	if err := handshake.AsClient(brokerClient, sp.ClientIntent, sp.ServerIntent); err != nil {
		t.Fatalf("handshake as client: %v", err)
	}

	userClient, userServer, err := seqpacket.Pair()
	if err != nil {
		t.Fatalf("seqpacket.Pair for user fd: %v", err)
	}
	userServerOwned, err := ownedfd.FromUnixConn(userServer.Underlying())
	if err != nil {
		t.Fatalf("FromUnixConn: %v", err)
	}

	req := &sp.Request{CreateShellSession: &sp.CreateShellSession{
		Fd:      userServerOwned,
		Machine: sp.MachineHost(),
		User:    "alice",
	}}
	if err := ipc.Send(brokerClient, req); err != nil {
		t.Fatalf("send CreateShellSession: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- handshake.AsClient(userClient, "tere 2021-06-22T12:12:30 pty_user client", "tere 2021-06-22T12:12:51 pty_user server")
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("user-side handshake: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for broker to attach client to pty service")
	}

	specs := broker.Launcher.(*launcher.FakeLauncher).Specs()
	if len(specs) != 1 {
		t.Fatalf("len(specs) = %d, want 1", len(specs))
	}
	if specs[0].Machine != ".host" {
		t.Errorf("Machine = %q, want .host", specs[0].Machine)
	}
	if specs[0].User != "alice" {
		t.Errorf("User = %q, want alice", specs[0].User)
	}
}

func TestCreateShellSessionStoresAndClosesPtyServiceConn(t *testing.T) {
	socketPath := t.TempDir() + "/pty.sock"
	ptyListener, err := seqpacket.Listen(socketPath)
	if err != nil {
		t.Fatalf("seqpacket.Listen: %v", err)
	}
	defer ptyListener.Close()
	go func() {
		conn, err := ptyListener.Accept()
		if err != nil {
			return
		}
		ptysvc.Run(conn)
	}()

	broker := NewBroker(launcher.NewFakeLauncher(), socketPath)

	_, userServer, err := seqpacket.Pair()
	if err != nil {
		t.Fatalf("seqpacket.Pair for user fd: %v", err)
	}
	userServerOwned, err := ownedfd.FromUnixConn(userServer.Underlying())
	if err != nil {
		t.Fatalf("FromUnixConn: %v", err)
	}

	if err := broker.createShellSession(context.Background(), &sp.CreateShellSession{
		Fd:      userServerOwned,
		Machine: sp.MachineHost(),
		User:    "bob",
	}); err != nil {
		t.Fatalf("createShellSession: %v", err)
	}

	broker.mu.Lock()
	if len(broker.sessions) != 1 {
		broker.mu.Unlock()
		t.Fatalf("len(broker.sessions) = %d, want 1", len(broker.sessions))
	}
	var id SessionID
	var s *session
	for sid, sess := range broker.sessions {
		id, s = sid, sess
	}
	broker.mu.Unlock()

	s.mu.Lock()
	conn := s.ptyServiceConn
	s.mu.Unlock()
	if conn == nil {
		t.Fatal("session.ptyServiceConn is nil after a successful createShellSession")
	}

	broker.forgetSession(id)

	// The connection was closed by forgetSession: a further send on it
	// must fail rather than silently succeed against a live fd.
	if err := conn.SendRaw([]byte("x"), nil); err == nil {
		t.Error("SendRaw succeeded on a connection forgetSession should have closed")
	}
}

func TestCreateShellSessionRejectsDotPrefixedContainer(t *testing.T) {
	broker := NewBroker(launcher.NewFakeLauncher(), "/nonexistent")
	err := broker.createShellSession(context.Background(), &sp.CreateShellSession{
		Machine: sp.MachineContainer(".evil"),
		User:    "alice",
	})
	if err == nil {
		t.Fatal("createShellSession: expected an error for a dot-prefixed container name")
	}
	if len(broker.Launcher.(*launcher.FakeLauncher).Specs()) != 0 {
		t.Error("launcher should not have been invoked for a rejected machine name")
	}
}
