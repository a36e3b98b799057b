package protohash

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a\n")
	writeFile(t, filepath.Join(dir, "sub", "b.go"), "package sub\n")

	h1, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	h2, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("Compute is not deterministic: %x != %x", h1, h2)
	}
}

func TestComputeIgnoresTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a\n")

	before, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	writeFile(t, filepath.Join(dir, "a_test.go"), "package a\n\nfunc TestSomething() {}\n")

	after, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if before != after {
		t.Fatalf("Compute changed after adding a _test.go file: %x != %x", before, after)
	}
}

func TestComputeIgnoresNonGoFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a\n")

	before, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	writeFile(t, filepath.Join(dir, "README.md"), "# notes\n")

	after, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if before != after {
		t.Fatalf("Compute changed after adding a non-.go file: %x != %x", before, after)
	}
}

func TestComputeChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a\n")

	before, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	writeFile(t, filepath.Join(dir, "a.go"), "package a\n\nvar X = 1\n")

	after, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if before == after {
		t.Fatal("Compute did not change after editing a file's content")
	}
}

func TestComputeIndependentOfWalkOrder(t *testing.T) {
	dirA := t.TempDir()
	writeFile(t, filepath.Join(dirA, "z.go"), "package z\n")
	writeFile(t, filepath.Join(dirA, "a.go"), "package a\n")

	dirB := t.TempDir()
	writeFile(t, filepath.Join(dirB, "a.go"), "package a\n")
	writeFile(t, filepath.Join(dirB, "z.go"), "package z\n")

	hA, err := Compute(dirA)
	if err != nil {
		t.Fatalf("Compute(dirA): %v", err)
	}
	hB, err := Compute(dirB)
	if err != nil {
		t.Fatalf("Compute(dirB): %v", err)
	}
	if hA != hB {
		t.Fatalf("Compute depends on creation order: %x != %x", hA, hB)
	}
}
