package debugclient

import "testing"

func TestSaveLoadDefaultsRoundTrip(t *testing.T) {
	SetDefaultsDir(t.TempDir())
	defer SetDefaultsDir("")

	want := &Defaults{Machine: "box", User: "alice", Program: "/bin/bash"}
	if err := SaveDefaults(want); err != nil {
		t.Fatalf("SaveDefaults: %v", err)
	}

	got, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	if *got != *want {
		t.Fatalf("LoadDefaults() = %+v, want %+v", got, want)
	}
}

func TestLoadDefaultsMissingFileReturnsZeroValue(t *testing.T) {
	SetDefaultsDir(t.TempDir())
	defer SetDefaultsDir("")

	got, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	if *got != (Defaults{}) {
		t.Fatalf("LoadDefaults() = %+v, want zero value", got)
	}
}
