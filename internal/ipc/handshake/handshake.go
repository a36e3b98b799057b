// Package handshake implements the first-message version/role agreement
// performed by every IPC connection in this codebase, client and server
// alike: each side proves it was built from the same protocol source
// and is talking to the role it expects.
//
// The original implementation derived this from a build-time blake3
// hash via blake3::derive_key. Nothing in this module's dependency
// corpus carries a grounded blake3 binding, so identity here is
// HMAC-SHA256 keyed by the build-time protocol source hash (see
// internal/protohash) with the intent string as message — the standard
// library's equivalent of a keyed derivation function.
package handshake

//go:generate go run ../../protohash/gen -out protocol_identity_generated.go ../../ipc ../../../proto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/tere-shell/tere-go/internal/ipc"
	"github.com/tere-shell/tere-go/internal/ipc/wire"
)

// ProtocolSourceHash is the build-time hash of the IPC transport and
// proto schema source, computed by internal/protohash and embedded via
// go:generate. See protocol_identity_generated.go.
var ProtocolSourceHash [32]byte

// Identity derives the build identity for one intent string: proof
// that a peer claiming this intent was built from the same protocol
// source as us.
func Identity(intent string) [32]byte {
	mac := hmac.New(sha256.New, ProtocolSourceHash[:])
	mac.Write([]byte(intent))
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

type handshakeMsg struct {
	wire.DefaultLimits
	Intent  string
	BuildID [32]byte
}

func newHandshakeMsg(intent string) handshakeMsg {
	return handshakeMsg{Intent: intent, BuildID: Identity(intent)}
}

func (m handshakeMsg) MaxSize() int { return 256 }

func (m handshakeMsg) MarshalIPC(e *wire.Encoder) error {
	e.PutString(m.Intent)
	e.PutBytes(m.BuildID[:])
	return nil
}

func (m *handshakeMsg) UnmarshalIPC(d *wire.Decoder) error {
	intent, err := d.GetString()
	if err != nil {
		return err
	}
	raw, err := d.GetBytes()
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return fmt.Errorf("handshake: build id must be 32 bytes, got %d", len(raw))
	}
	m.Intent = intent
	copy(m.BuildID[:], raw)
	return nil
}

// ErrorKind names the ways a handshake can fail.
type ErrorKind int

const (
	// Send means the local side could not send its own handshake message.
	Send ErrorKind = iota
	// Receive means the local side could not receive the peer's handshake message.
	Receive
	// WrongVersion means the peer's build identity does not match ours.
	WrongVersion
	// WrongService means the peer identified itself with an unexpected intent.
	WrongService
)

// Error is returned by AsClient and AsServer.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Send:
		return fmt.Sprintf("handshake: socket send error: %v", e.Err)
	case Receive:
		return fmt.Sprintf("handshake: socket receive error: %v", e.Err)
	case WrongVersion:
		return "handshake: peer is running the wrong version of this software"
	case WrongService:
		return "handshake: peer is trying to talk to some other service"
	default:
		return fmt.Sprintf("handshake: error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// AsClient performs the handshake from the connecting side: send our
// intent first, then verify the peer's.
func AsClient(t ipc.Transport, clientIntent, serverIntent string) error {
	if err := ipc.Send(t, newHandshakeMsg(clientIntent)); err != nil {
		return &Error{Kind: Send, Err: err}
	}
	msg, err := ipc.Receive[handshakeMsg, *handshakeMsg](t)
	if err != nil {
		return &Error{Kind: Receive, Err: err}
	}
	return checkPeer(msg, serverIntent)
}

// AsServer performs the handshake from the accepting side: verify the
// peer's intent first, then send ours.
func AsServer(t ipc.Transport, clientIntent, serverIntent string) error {
	msg, err := ipc.Receive[handshakeMsg, *handshakeMsg](t)
	if err != nil {
		return &Error{Kind: Receive, Err: err}
	}
	if err := checkPeer(msg, clientIntent); err != nil {
		return err
	}
	if err := ipc.Send(t, newHandshakeMsg(serverIntent)); err != nil {
		return &Error{Kind: Send, Err: err}
	}
	return nil
}

// checkPeer checks build identity before intent, so a version mismatch
// is always reported as such even when the intent also differs.
func checkPeer(msg handshakeMsg, wantIntent string) error {
	wantID := Identity(wantIntent)
	if !hmac.Equal(wantID[:], msg.BuildID[:]) {
		return &Error{Kind: WrongVersion}
	}
	if msg.Intent != wantIntent {
		return &Error{Kind: WrongService}
	}
	return nil
}
