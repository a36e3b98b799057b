// Package protohash computes a deterministic hash over the source
// files that define the IPC wire surface (internal/ipc and proto),
// mirroring this repo's former build.rs: a build-time hash of the
// protocol-defining source, used as the keying material for the
// handshake's protocol identity (see internal/ipc/handshake).
//
// The hash intentionally covers only the IPC transport and the proto
// schemas, not application logic, so independently-compiled binaries
// (e.g. integration tests) stay compatible across unrelated edits.
package protohash

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Compute walks each root directory, hashing the contents of every .go
// file (except _test.go files) keyed by its path relative to root, and
// returns the combined digest. Walk order is sorted by path for
// determinism.
func Compute(roots ...string) ([32]byte, error) {
	h := sha256.New()
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return [32]byte{}, fmt.Errorf("resolving root %s: %w", root, err)
		}
		var paths []string
		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return [32]byte{}, fmt.Errorf("walking %s: %w", root, err)
		}
		sort.Strings(paths)

		for _, path := range paths {
			rel, err := filepath.Rel(absRoot, path)
			if err != nil {
				return [32]byte{}, err
			}
			fileHash, err := hashFile(path)
			if err != nil {
				return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
			}
			h.Write([]byte(filepath.ToSlash(rel)))
			h.Write([]byte{0})
			h.Write([]byte("F"))
			h.Write(fileHash[:])
			h.Write([]byte{0})
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func hashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
