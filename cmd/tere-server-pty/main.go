// Command tere-server-pty runs one instance of the pty relay service: it
// takes one connection from the broker (the single socket-activation fd,
// or a dial to --socket), receives a single PTY master descriptor via an
// Init message on it, and relays bytes between that PTY and whichever
// client is currently attached.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tere-shell/tere-go/internal/activation"
	"github.com/tere-shell/tere-go/internal/ipc/ownedfd"
	"github.com/tere-shell/tere-go/internal/ipc/seqpacket"
	"github.com/tere-shell/tere-go/internal/services/pty"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "tere-server-pty",
		Short: "Relay bytes between a PTY and its attached client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(socketPath)
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "connect to this socket instead of using socket activation (tests only)")
	return cmd
}

func run(socketPath string) error {
	log := logrus.WithField("component", "tere-server-pty")

	if socketPath != "" {
		conn, err := seqpacket.Dial(socketPath)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", socketPath, err)
		}
		defer conn.Close()
		log.WithField("remote", socketPath).Info("connected to broker")
		return pty.Run(conn)
	}

	entries, err := activation.Parse()
	if err != nil {
		return fmt.Errorf("reading socket activation environment: %w", err)
	}
	if len(entries) != 1 {
		return fmt.Errorf("expected exactly one activation fd, got %d", len(entries))
	}

	// Unlike tere-server-sessions, this fd is not a listening socket: the
	// supervisor delivers one already-connected SOCK_SEQPACKET peer to
	// the broker per instance, so there is no listen/accept step here.
	uc, err := ownedfd.ToUnixConn(entries[0].FD, "tere-server-pty", "unixpacket")
	if err != nil {
		return fmt.Errorf("wrapping activation fd as a connection: %w", err)
	}
	conn, err := seqpacket.FromUnixConn(uc)
	if err != nil {
		return fmt.Errorf("activation fd is not a SOCK_SEQPACKET connection: %w", err)
	}
	defer conn.Close()
	log.Info("accepted broker connection")
	return pty.Run(conn)
}
