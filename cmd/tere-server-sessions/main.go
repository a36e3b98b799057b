// Command tere-server-sessions runs the session broker: it accepts
// connections requesting new shell sessions, starts them via the
// configured shell launcher, and attaches requesting clients to the
// corresponding pty relay service instance.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tere-shell/tere-go/internal/activation"
	"github.com/tere-shell/tere-go/internal/ipc/seqpacket"
	"github.com/tere-shell/tere-go/internal/launcher"
	"github.com/tere-shell/tere-go/internal/ptymaster"
	"github.com/tere-shell/tere-go/internal/services/sessions"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var socketPath, ptyServicePath string

	cmd := &cobra.Command{
		Use:   "tere-server-sessions",
		Short: "Accept client requests and broker shell sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(socketPath, ptyServicePath)
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "listen on this socket instead of using socket activation (tests only)")
	cmd.Flags().StringVar(&ptyServicePath, "pty-service", "", "socket path for the pty relay service (required)")
	return cmd
}

func run(socketPath, ptyServicePath string) error {
	log := logrus.WithField("component", "tere-server-sessions")

	if ptyServicePath == "" {
		return fmt.Errorf("--pty-service is required")
	}

	broker := sessions.NewBroker(unimplementedLauncher{}, ptyServicePath)

	if socketPath != "" {
		listener, err := seqpacket.Listen(socketPath)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", socketPath, err)
		}
		defer listener.Close()
		log.WithField("socket", socketPath).Info("listening")
		return broker.Serve(listener)
	}

	entries, err := activation.Parse()
	if err != nil {
		return fmt.Errorf("reading socket activation environment: %w", err)
	}
	if len(entries) != 1 {
		return fmt.Errorf("expected exactly one activation fd, got %d", len(entries))
	}
	listener, err := seqpacket.ListenFD(entries[0].FD, "tere-server-sessions")
	if err != nil {
		return fmt.Errorf("wrapping activation fd as listener: %w", err)
	}
	defer listener.Close()
	log.Info("listening on activated socket")
	return broker.Serve(listener)
}

// unimplementedLauncher is wired in until a real org.freedesktop.machine1
// D-Bus launcher is built; see internal/launcher's package doc.
type unimplementedLauncher struct{}

func (unimplementedLauncher) CreateShell(ctx context.Context, spec launcher.ShellSpec) (*ptymaster.PTY, error) {
	return nil, fmt.Errorf("no shell launcher implementation is wired in yet")
}
