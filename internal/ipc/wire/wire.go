// Package wire implements the length-prefixed little-endian binary
// codec used by the IPC transport, plus the side channel that pairs
// FD-typed fields with the transport's out-of-band descriptor list.
//
// Rather than thread-local gather/scatter state (the approach used by
// the system this protocol was ported from), FD passing here goes
// through an explicit Encoder/Decoder pair: each carries its own FD
// slice, so there is no hidden global state and no restriction against
// concurrent encodes on different goroutines.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
)

// Message describes the static bounds of a wire message kind. Bounds
// must not depend on message contents — they size the transport's
// receive and ancillary buffers ahead of decoding.
type Message interface {
	MaxSize() int
	MaxFDs() int
}

// DefaultLimits gives the IPC default MaxSize/MaxFDs (8192 bytes, 0
// FDs). Embed it in a message type to only override what differs.
type DefaultLimits struct{}

func (DefaultLimits) MaxSize() int { return 8192 }
func (DefaultLimits) MaxFDs() int  { return 0 }

// Encodable is implemented by every wire message.
type Encodable interface {
	Message
	MarshalIPC(*Encoder) error
}

// Decodable is implemented by every wire message.
type Decodable interface {
	Message
	UnmarshalIPC(*Decoder) error
}

// Encoder accumulates the little-endian payload for one message plus
// the raw FDs that travel as SCM_RIGHTS alongside it.
type Encoder struct {
	buf bytes.Buffer
	fds []int
}

// NewEncoder returns an Encoder with buf pre-sized to hint.
func NewEncoder(sizeHint int) *Encoder {
	e := &Encoder{}
	e.buf.Grow(sizeHint)
	return e
}

// Bytes returns the encoded payload so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// FDs returns the FDs gathered so far, in field-visit order.
func (e *Encoder) FDs() []int { return e.fds }

// PutUint8 writes a single byte.
func (e *Encoder) PutUint8(v uint8) { e.buf.WriteByte(v) }

// PutUint32 writes a uint32, little-endian. Used for enum discriminants.
func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// PutUint64 writes a uint64, little-endian. Used for sequence lengths.
func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// PutBytes writes a length-prefixed byte sequence.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint64(uint64(len(b)))
	e.buf.Write(b)
}

// PutString writes a length-prefixed UTF-8 string.
func (e *Encoder) PutString(s string) {
	e.PutBytes([]byte(s))
}

// PutStringSlice writes a length-prefixed sequence of strings.
func (e *Encoder) PutStringSlice(ss []string) {
	e.PutUint64(uint64(len(ss)))
	for _, s := range ss {
		e.PutString(s)
	}
}

// PutOptionalString writes an optional string as a one-byte presence
// flag followed by the string when present.
func (e *Encoder) PutOptionalString(s *string) {
	if s == nil {
		e.PutUint8(0)
		return
	}
	e.PutUint8(1)
	e.PutString(*s)
}

// PutOptionalStringSlice writes an optional string sequence the same
// way as PutOptionalString.
func (e *Encoder) PutOptionalStringSlice(ss *[]string) {
	if ss == nil {
		e.PutUint8(0)
		return
	}
	e.PutUint8(1)
	e.PutStringSlice(*ss)
}

// PutFD contributes zero payload bytes and pushes fd onto the
// out-of-band FD list; it travels as SCM_RIGHTS ancillary data on the
// same sendmsg as this message.
func (e *Encoder) PutFD(fd int) {
	e.fds = append(e.fds, fd)
}

// Decoder reads the little-endian payload for one message and hands
// out FDs received alongside it, front to back.
type Decoder struct {
	r   *bytes.Reader
	fds []*ownedfd.FD
}

// NewDecoder wraps encoded payload bytes and the FDs received with
// this message (already owned, in ancillary-delivery order).
func NewDecoder(encoded []byte, fds []*ownedfd.FD) *Decoder {
	return &Decoder{r: bytes.NewReader(encoded), fds: fds}
}

// ErrTooFewBytes is returned when the payload ends before decoding
// completes.
var ErrTooFewBytes = errors.New("wire: message ended before decode finished")

// ErrTooFewFDs is returned when an FD-typed field is decoded but no
// FDs remain in the queue.
var ErrTooFewFDs = errors.New("wire: received too few FDs for message")

func (d *Decoder) readFull(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTooFewBytes, err)
	}
	return b, nil
}

// GetUint8 reads a single byte.
func (d *Decoder) GetUint8() (uint8, error) {
	b, err := d.readFull(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// GetUint32 reads a little-endian uint32.
func (d *Decoder) GetUint32() (uint32, error) {
	b, err := d.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// GetUint64 reads a little-endian uint64.
func (d *Decoder) GetUint64() (uint64, error) {
	b, err := d.readFull(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// GetBytes reads a length-prefixed byte sequence.
func (d *Decoder) GetBytes() ([]byte, error) {
	n, err := d.GetUint64()
	if err != nil {
		return nil, err
	}
	return d.readFull(int(n))
}

// GetString reads a length-prefixed UTF-8 string.
func (d *Decoder) GetString() (string, error) {
	b, err := d.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetStringSlice reads a length-prefixed sequence of strings.
func (d *Decoder) GetStringSlice() ([]string, error) {
	n, err := d.GetUint64()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := d.GetString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// GetOptionalString reads what PutOptionalString wrote.
func (d *Decoder) GetOptionalString() (*string, error) {
	present, err := d.GetUint8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	s, err := d.GetString()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOptionalStringSlice reads what PutOptionalStringSlice wrote.
func (d *Decoder) GetOptionalStringSlice() (*[]string, error) {
	present, err := d.GetUint8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	ss, err := d.GetStringSlice()
	if err != nil {
		return nil, err
	}
	return &ss, nil
}

// TakeFD consumes the head of the owned-FD queue. FD-typed fields
// contribute zero payload bytes; their FDs travel out of band.
func (d *Decoder) TakeFD() (*ownedfd.FD, error) {
	if len(d.fds) == 0 {
		return nil, ErrTooFewFDs
	}
	fd := d.fds[0]
	d.fds = d.fds[1:]
	return fd, nil
}

// RemainingFDs returns the FDs left unconsumed. A fully decoded message
// must leave this empty.
func (d *Decoder) RemainingFDs() []*ownedfd.FD {
	return d.fds
}

// Marshal encodes a full message to payload bytes + its FD list.
func Marshal(m Encodable) ([]byte, []int, error) {
	enc := NewEncoder(m.MaxSize())
	if err := m.MarshalIPC(enc); err != nil {
		return nil, nil, err
	}
	return enc.Bytes(), enc.FDs(), nil
}

// Unmarshal decodes payload bytes + received FDs into m, and returns
// the FDs left unconsumed after decode (also when decode fails).
// Leftover FDs are not an error here; the caller decides what to do
// with them (ipc.Receive reports them as ReceiveTooManyFds).
func Unmarshal(encoded []byte, fds []*ownedfd.FD, m Decodable) ([]*ownedfd.FD, error) {
	dec := NewDecoder(encoded, fds)
	if err := m.UnmarshalIPC(dec); err != nil {
		return dec.RemainingFDs(), err
	}
	return dec.RemainingFDs(), nil
}
