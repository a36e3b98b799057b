package wire

import (
	"bytes"
	"testing"
)

type pingMessage struct {
	DefaultLimits
	Seq     uint32
	Name    string
	Tags    []string
	Comment *string
	Extra   *[]string
}

func (m *pingMessage) MarshalIPC(e *Encoder) error {
	e.PutUint32(m.Seq)
	e.PutString(m.Name)
	e.PutStringSlice(m.Tags)
	e.PutOptionalString(m.Comment)
	e.PutOptionalStringSlice(m.Extra)
	return nil
}

func (m *pingMessage) UnmarshalIPC(d *Decoder) error {
	seq, err := d.GetUint32()
	if err != nil {
		return err
	}
	name, err := d.GetString()
	if err != nil {
		return err
	}
	tags, err := d.GetStringSlice()
	if err != nil {
		return err
	}
	comment, err := d.GetOptionalString()
	if err != nil {
		return err
	}
	extra, err := d.GetOptionalStringSlice()
	if err != nil {
		return err
	}
	m.Seq = seq
	m.Name = name
	m.Tags = tags
	m.Comment = comment
	m.Extra = extra
	return nil
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	comment := "hello"
	extra := []string{"a", "b"}
	in := &pingMessage{
		Seq:     42,
		Name:    "session",
		Tags:    []string{"x", "y", "z"},
		Comment: &comment,
		Extra:   &extra,
	}

	payload, fds, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(fds) != 0 {
		t.Fatalf("len(fds) = %d, want 0", len(fds))
	}

	out := &pingMessage{}
	leftover, err := Unmarshal(payload, nil, out)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(leftover) != 0 {
		t.Fatalf("leftover fds = %d, want 0", len(leftover))
	}
	if out.Seq != in.Seq || out.Name != in.Name {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	if len(out.Tags) != len(in.Tags) {
		t.Fatalf("Tags = %v, want %v", out.Tags, in.Tags)
	}
	for i := range in.Tags {
		if out.Tags[i] != in.Tags[i] {
			t.Fatalf("Tags[%d] = %q, want %q", i, out.Tags[i], in.Tags[i])
		}
	}
	if out.Comment == nil || *out.Comment != *in.Comment {
		t.Fatalf("Comment = %v, want %v", out.Comment, in.Comment)
	}
	if out.Extra == nil || len(*out.Extra) != len(*in.Extra) {
		t.Fatalf("Extra = %v, want %v", out.Extra, in.Extra)
	}
}

func TestOptionalFieldsAbsent(t *testing.T) {
	in := &pingMessage{Seq: 1, Name: "n", Tags: nil}
	payload, _, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := &pingMessage{}
	if _, err := Unmarshal(payload, nil, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Comment != nil {
		t.Errorf("Comment = %v, want nil", out.Comment)
	}
	if out.Extra != nil {
		t.Errorf("Extra = %v, want nil", out.Extra)
	}
	if len(out.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", out.Tags)
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	in := &pingMessage{Seq: 7, Name: "n"}
	payload, _, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := &pingMessage{}
	_, err = Unmarshal(payload[:len(payload)-2], nil, out)
	if err == nil {
		t.Fatal("Unmarshal: expected an error for a truncated payload")
	}
}

func TestPutFDRecordedInOrder(t *testing.T) {
	e := NewEncoder(8)
	e.PutFD(5)
	e.PutFD(6)
	e.PutUint8(1)
	e.PutFD(7)
	got := e.FDs()
	want := []int{5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("FDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FDs()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestGetBytesZeroLength(t *testing.T) {
	e := NewEncoder(8)
	e.PutBytes(nil)
	d := NewDecoder(e.Bytes(), nil)
	got, err := d.GetBytes()
	if err != nil {
		t.Fatalf("GetBytes: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetBytes() = %v, want empty", got)
	}
}

func TestDefaultLimits(t *testing.T) {
	var d DefaultLimits
	if d.MaxSize() != 8192 {
		t.Errorf("MaxSize() = %d, want 8192", d.MaxSize())
	}
	if d.MaxFDs() != 0 {
		t.Errorf("MaxFDs() = %d, want 0", d.MaxFDs())
	}
}

func TestEncoderBytesGrowsAfterWrite(t *testing.T) {
	e := NewEncoder(4)
	e.PutUint8(1)
	first := append([]byte(nil), e.Bytes()...)
	e.PutUint8(2)
	if bytes.Equal(e.Bytes(), first) {
		t.Fatal("Bytes() did not grow after a second write")
	}
}
