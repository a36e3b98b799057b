// Command tere-debug-client-sessions is an interactive debug client for
// exercising the sessions broker protocol by hand: it walks the
// operator through a CreateShellSession request, then attaches a
// terminal UI to the resulting pty session.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tere-shell/tere-go/internal/debugclient"
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
		Use:   "tere-debug-client-sessions",
		Short: "Interactively exercise the sessions broker protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if socketPath == "" {
				return fmt.Errorf("--socket is required")
			}
			p := tea.NewProgram(debugclient.NewApp(socketPath), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "path to the sessions broker socket")
	return cmd
}
