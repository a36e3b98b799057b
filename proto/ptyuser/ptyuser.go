// Package ptyuser defines the wire messages a pty relay service
// exchanges with the single client currently attached to it: raw
// terminal bytes in each direction.
package ptyuser

import (
	"fmt"

	"github.com/tere-shell/tere-go/internal/ipc/wire"
)

const (
	// ClientIntent identifies an attached pty client.
	ClientIntent = "tere 2021-06-22T12:12:30 pty_user client"
	// ServerIntent identifies the pty relay service side of an attachment.
	ServerIntent = "tere 2021-06-22T12:12:51 pty_user server"
)

type outputKind uint32

const outputKindSessionOutput outputKind = 0

// Output carries PTY output bytes toward the attached client.
type Output struct {
	wire.DefaultLimits
	SessionOutput []byte
}

func (m *Output) MarshalIPC(e *wire.Encoder) error {
	e.PutUint32(uint32(outputKindSessionOutput))
	e.PutBytes(m.SessionOutput)
	return nil
}

func (m *Output) UnmarshalIPC(d *wire.Decoder) error {
	kind, err := d.GetUint32()
	if err != nil {
		return err
	}
	switch outputKind(kind) {
	case outputKindSessionOutput:
		b, err := d.GetBytes()
		if err != nil {
			return err
		}
		m.SessionOutput = b
		return nil
	default:
		return fmt.Errorf("ptyuser: unknown Output discriminant %d", kind)
	}
}

type inputKind uint32

const inputKindKeyboardInput inputKind = 0

// Input carries keystrokes from the attached client toward the PTY.
type Input struct {
	wire.DefaultLimits
	KeyboardInput []byte
}

func (m *Input) MarshalIPC(e *wire.Encoder) error {
	e.PutUint32(uint32(inputKindKeyboardInput))
	e.PutBytes(m.KeyboardInput)
	return nil
}

func (m *Input) UnmarshalIPC(d *wire.Decoder) error {
	kind, err := d.GetUint32()
	if err != nil {
		return err
	}
	switch inputKind(kind) {
	case inputKindKeyboardInput:
		b, err := d.GetBytes()
		if err != nil {
			return err
		}
		m.KeyboardInput = b
		return nil
	default:
		return fmt.Errorf("ptyuser: unknown Input discriminant %d", kind)
	}
}
