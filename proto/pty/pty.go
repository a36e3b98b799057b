// Package pty defines the wire messages exchanged between a pty relay
// service and the session broker that spawns clients against it: handing
// over the PTY master descriptor once, then one descriptor per attaching
// client thereafter.
package pty

import (
	"fmt"

	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/wire"
)

const (
	// ClientIntent identifies a connection from the session broker.
	ClientIntent = "tere 2021-06-11T21:34:03 pty client"
	// ServerIntent identifies a pty relay service.
	ServerIntent = "tere 2021-06-11T21:35:37 pty server"
)

// Init is the first message on a pty service connection: it hands over
// the PTY master fd the service should relay.
type Init struct {
	wire.DefaultLimits
	PTYFd *ownedfd.FD
}

func (m *Init) MaxSize() int { return 1 }
func (m *Init) MaxFDs() int  { return 1 }

func (m *Init) MarshalIPC(e *wire.Encoder) error {
	e.PutUint8(0)
	e.PutFD(m.PTYFd.Release())
	return nil
}

func (m *Init) UnmarshalIPC(d *wire.Decoder) error {
	if _, err := d.GetUint8(); err != nil {
		return err
	}
	fd, err := d.TakeFD()
	if err != nil {
		return err
	}
	m.PTYFd = fd
	return nil
}

// requestKind discriminates the Request union on the wire.
type requestKind uint32

const requestKindNewClient requestKind = 0

// Request is the pty service's client-facing request union. It carries
// exactly one variant today (NewClient) but keeps the discriminant so a
// future variant does not break the wire format.
type Request struct {
	wire.DefaultLimits
	NewClient *RequestNewClient
}

// RequestNewClient asks the pty service to attach fd as the (new, sole)
// client of the relayed session, superseding any previously attached
// client.
type RequestNewClient struct {
	Fd *ownedfd.FD
}

func (m *Request) MaxFDs() int { return 1 }

func (m *Request) MarshalIPC(e *wire.Encoder) error {
	switch {
	case m.NewClient != nil:
		e.PutUint32(uint32(requestKindNewClient))
		e.PutUint8(0)
		e.PutFD(m.NewClient.Fd.Release())
		return nil
	default:
		return fmt.Errorf("pty: Request has no variant set")
	}
}

func (m *Request) UnmarshalIPC(d *wire.Decoder) error {
	kind, err := d.GetUint32()
	if err != nil {
		return err
	}
	switch requestKind(kind) {
	case requestKindNewClient:
		if _, err := d.GetUint8(); err != nil {
			return err
		}
		fd, err := d.TakeFD()
		if err != nil {
			return err
		}
		m.NewClient = &RequestNewClient{Fd: fd}
		return nil
	default:
		return fmt.Errorf("pty: unknown Request discriminant %d", kind)
	}
}
