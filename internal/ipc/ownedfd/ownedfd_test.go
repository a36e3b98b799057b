package ownedfd

import (
	"testing"

	"golang.org/x/sys/unix"
)

func pipeFDs(t *testing.T) (int, int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	return fds[0], fds[1]
}

func TestCloseIsIdempotent(t *testing.T) {
	r, w := pipeFDs(t)
	unix.Close(w)
	fd := FromRawFD(r)
	if err := fd.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := fd.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestReleaseSuppressesClose(t *testing.T) {
	r, w := pipeFDs(t)
	unix.Close(w)
	fd := FromRawFD(r)
	raw := fd.Release()
	if raw != r {
		t.Fatalf("Release() = %d, want %d", raw, r)
	}
	if err := fd.Close(); err != nil {
		t.Fatalf("Close after Release: %v", err)
	}
	// fd no longer owns r: close it ourselves to avoid leaking it.
	unix.Close(r)
}

func TestToFileFromFileRoundTrip(t *testing.T) {
	r, w := pipeFDs(t)
	unix.Close(w)
	fd := FromRawFD(r)

	file := ToFile(fd, "test-pipe")
	defer file.Close()

	back, err := FromFile(file)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	defer back.Close()

	if back.Raw() < 0 {
		t.Fatalf("Raw() = %d, want a valid descriptor", back.Raw())
	}
}

func TestToUnixConnFromUnixConnRoundTrip(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	unix.Close(fds[1])

	fd := FromRawFD(fds[0])
	conn, err := ToUnixConn(fd, "test-conn", "unix")
	if err != nil {
		t.Fatalf("ToUnixConn: %v", err)
	}

	back, err := FromUnixConn(conn)
	if err != nil {
		t.Fatalf("FromUnixConn: %v", err)
	}
	defer back.Close()

	if back.Raw() < 0 {
		t.Fatalf("Raw() = %d, want a valid descriptor", back.Raw())
	}
}
