package launcher

import (
	"context"
	"errors"
	"testing"
)

func TestFakeLauncherRecordsSpecs(t *testing.T) {
	fake := NewFakeLauncher()

	spec := ShellSpec{Machine: "box", User: "alice", Program: "/bin/bash"}
	pty, err := fake.CreateShell(context.Background(), spec)
	if err != nil {
		t.Fatalf("CreateShell: %v", err)
	}
	defer pty.Close()

	specs := fake.Specs()
	if len(specs) != 1 {
		t.Fatalf("Specs() = %v, want 1 entry", specs)
	}
	if specs[0].Machine != spec.Machine || specs[0].User != spec.User || specs[0].Program != spec.Program {
		t.Fatalf("Specs()[0] = %+v, want %+v", specs[0], spec)
	}
}

func TestFakeLauncherRecordsMultipleCallsInOrder(t *testing.T) {
	fake := NewFakeLauncher()

	first := ShellSpec{Machine: "", User: "alice"}
	second := ShellSpec{Machine: "box", User: "bob"}

	if _, err := fake.CreateShell(context.Background(), first); err != nil {
		t.Fatalf("CreateShell(first): %v", err)
	}
	if _, err := fake.CreateShell(context.Background(), second); err != nil {
		t.Fatalf("CreateShell(second): %v", err)
	}

	specs := fake.Specs()
	if len(specs) != 2 ||
		specs[0].Machine != first.Machine || specs[0].User != first.User ||
		specs[1].Machine != second.Machine || specs[1].User != second.User {
		t.Fatalf("Specs() = %+v, want [%+v, %+v]", specs, first, second)
	}
}

func TestFailingFakeLauncherReturnsError(t *testing.T) {
	wantErr := errors.New("boom")
	fake := NewFailingFakeLauncher(wantErr)

	pty, err := fake.CreateShell(context.Background(), ShellSpec{User: "alice"})
	if err != wantErr {
		t.Fatalf("CreateShell err = %v, want %v", err, wantErr)
	}
	if pty != nil {
		t.Fatalf("CreateShell pty = %v, want nil", pty)
	}

	// the call is still recorded even though it failed.
	if len(fake.Specs()) != 1 {
		t.Fatalf("Specs() = %v, want 1 entry", fake.Specs())
	}
}
