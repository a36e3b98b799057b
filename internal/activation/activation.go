// Package activation implements systemd-style socket activation: reading
// pre-opened listening sockets handed to this process by a service
// manager via $LISTEN_PID/$LISTEN_FDS/$LISTEN_FDNAMES, per
// sd_listen_fds(3) and systemd.socket(5).
package activation

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
)

// listenFdsStart is LISTEN_FDS_START from sd_listen_fds(3): activated
// fds always begin at fd 3 (0, 1, 2 are stdio).
const listenFdsStart = 3

// Entry is one file descriptor handed to this process by a service
// manager, together with its optional name from $LISTEN_FDNAMES.
// Name is "" when the manager did not provide (or ran out of) names.
type Entry struct {
	Name string
	FD   *ownedfd.FD
}

// Parse reads the socket activation environment and returns the fds
// passed to this process, unsetting all three variables regardless of
// outcome (systemd's own clients do the same, so a child process that
// re-execs does not see stale activation state).
//
// If $LISTEN_PID does not name this process, Parse returns an empty,
// non-nil slice: the environment was not meant for us, not a protocol
// error.
func Parse() ([]Entry, error) {
	return parse(listenFdsStart, os.Getpid(), os.LookupEnv, os.Unsetenv)
}

func parse(start, pid int, lookupEnv func(string) (string, bool), unsetenv func(string)) ([]Entry, error) {
	listenPID, pidSet := lookupEnv("LISTEN_PID")
	listenFDs, fdsSet := lookupEnv("LISTEN_FDS")
	listenNames, _ := lookupEnv("LISTEN_FDNAMES")

	// Done whether parsing succeeds or not.
	unsetenv("LISTEN_PID")
	unsetenv("LISTEN_FDS")
	unsetenv("LISTEN_FDNAMES")

	forUs := true
	if pidSet {
		gotPID, err := strconv.Atoi(listenPID)
		if err != nil {
			return nil, fmt.Errorf("activation: invalid $LISTEN_PID %q: %w", listenPID, err)
		}
		forUs = gotPID == pid
	}
	if !forUs {
		return []Entry{}, nil
	}

	if !fdsSet {
		return nil, fmt.Errorf("activation: $LISTEN_FDS not present")
	}
	numFDs, err := strconv.Atoi(listenFDs)
	if err != nil {
		return nil, fmt.Errorf("activation: invalid $LISTEN_FDS %q: %w", listenFDs, err)
	}

	names := splitNames(listenNames, numFDs)
	entries := make([]Entry, 0, numFDs)
	for i := 0; i < numFDs; i++ {
		entries = append(entries, Entry{
			Name: names[i],
			FD:   ownedfd.FromRawFD(start + i),
		})
	}
	return entries, nil
}

// splitNames implements $LISTEN_FDNAMES's colon-separated name list:
// one name per fd, with any fd past the end of the list left unnamed.
func splitNames(raw string, count int) []string {
	var parts []string
	if raw != "" {
		parts = strings.Split(raw, ":")
	}
	out := make([]string, count)
	for i := 0; i < count && i < len(parts); i++ {
		out[i] = parts[i]
	}
	return out
}
