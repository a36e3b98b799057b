// Package pty implements the pty relay service: it owns one PTY master
// fd handed to it at startup, and relays terminal I/O to at most one
// attached client at a time, switching attachment whenever a new client
// connects.
package pty

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/handshake"
	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/seqpacket"
	"github.com/tere-shell/tere-go/internal/ptymaster"
	p "github.com/tere-shell/tere-go/proto/pty"
	puser "github.com/tere-shell/tere-go/proto/ptyuser"
)

// Run serves one pty-service connection: it performs the server side of
// the handshake, receives the Init message handing over the PTY master
// fd, then loops receiving Request messages (currently only NewClient)
// until the connection ends.
func Run(t ipc.Transport) error {
	if err := handshake.AsServer(t, p.ClientIntent, p.ServerIntent); err != nil {
		return fmt.Errorf("pty: handshake: %w", err)
	}

	init, err := ipc.Receive[p.Init, *p.Init](t)
	if err != nil {
		return fmt.Errorf("pty: receive init: %w", err)
	}
	master := ptymaster.FromFD(init.PTYFd)
	defer master.Close()

	var attach attachment
	defer attach.cancel()

	for {
		req, err := ipc.Receive[p.Request, *p.Request](t)
		if err != nil {
			if ipc.IsEnd(err) {
				return nil
			}
			return fmt.Errorf("pty: receive request: %w", err)
		}
		switch {
		case req.NewClient != nil:
			attach.start(master, req.NewClient.Fd)
		default:
			logrus.Warn("pty: received a Request with no variant set")
		}
	}
}

// attachment tracks the single client currently attached to the PTY.
// Starting a new attachment cancels whatever was attached before.
type attachment struct {
	mu       sync.Mutex
	cancelFn func()
	wg       sync.WaitGroup
}

func (a *attachment) start(master *ptymaster.PTY, fd *ownedfd.FD) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelFn != nil {
		a.cancelFn()
	}

	conn, err := ownedfd.ToUnixConn(fd, "pty-client", "unixpacket")
	if err != nil {
		logrus.WithError(err).Error("pty: wrapping new client fd")
		return
	}
	client, err := seqpacket.FromUnixConn(conn)
	if err != nil {
		logrus.WithError(err).Error("pty: new client fd is not a seqpacket socket")
		conn.Close()
		return
	}

	a.cancelFn = func() { client.Close() }
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := serveClient(master, client); err != nil {
			logrus.WithError(err).Info("pty: client attachment ended")
		}
	}()
}

func (a *attachment) cancel() {
	a.mu.Lock()
	cancelFn := a.cancelFn
	a.mu.Unlock()
	if cancelFn != nil {
		cancelFn()
	}
	a.wg.Wait()
}

// serveClient performs the user-facing handshake against one attached
// client, then relays terminal bytes in both directions until either
// the PTY signals its session has ended (EIO on read) or the client
// connection is cancelled by a subsequent attachment.
func serveClient(master *ptymaster.PTY, client ipc.Transport) error {
	if err := handshake.AsServer(client, puser.ClientIntent, puser.ServerIntent); err != nil {
		return fmt.Errorf("pty: user handshake: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	var inputErr, outputErr error

	go func() {
		defer wg.Done()
		inputErr = relayInput(master, client)
	}()

	go func() {
		defer wg.Done()
		outputErr = relayOutput(master, client)
		// The PTY is gone (or the client was cancelled); shut down the
		// read half so a blocked relayInput unblocks too.
		client.Shutdown(ipc.ShutdownRead)
	}()

	wg.Wait()
	if outputErr != nil && outputErr != io.EOF {
		return fmt.Errorf("pty: output relay: %w", outputErr)
	}
	if inputErr != nil && !ipc.IsEnd(inputErr) {
		return fmt.Errorf("pty: input relay: %w", inputErr)
	}
	return nil
}

func relayInput(master *ptymaster.PTY, client ipc.Transport) error {
	for {
		msg, err := ipc.Receive[puser.Input, *puser.Input](client)
		if err != nil {
			return err
		}
		if _, err := master.Write(msg.KeyboardInput); err != nil {
			return fmt.Errorf("writing to pty: %w", err)
		}
	}
}

func relayOutput(master *ptymaster.PTY, client ipc.Transport) error {
	buf := make([]byte, 1024)
	for {
		n, err := master.Read(buf)
		if err != nil {
			return err
		}
		msg := &puser.Output{SessionOutput: append([]byte(nil), buf[:n]...)}
		if err := ipc.Send(client, msg); err != nil {
			return err
		}
	}
}
