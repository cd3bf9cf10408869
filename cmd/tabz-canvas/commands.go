package main

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var o serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the canvas API",
		Long: `Serve the canvas HTTP API, the WebSocket event stream and the
automation spawn queue.

Terminals are linked to the terminal backend configured under [backend].
State is restored at startup and saved after every change.`,
		Example: `  # Serve on the configured address
  tabz-canvas serve

  # Serve on all interfaces without a terminal backend
  tabz-canvas serve --host 0.0.0.0 --no-backend`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), o)
		},
	}
	o.register(cmd)
	return cmd
}

func newTUICmd() *cobra.Command {
	var (
		o     serveOptions
		noAPI bool
	)
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Draw the canvas in this terminal",
		Long: `Draw the canvas in this terminal

Cards are moved with the mouse, the wheel zooms toward the cursor and the
keyboard pans. Press enter on a selected terminal to type into it. The canvas
API keeps running alongside unless --no-api is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), o, !noAPI)
		},
	}
	o.register(cmd)
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not serve the canvas API")
	return cmd
}

func newSSHCmd() *cobra.Command {
	var (
		o                            serveOptions
		sshPort, sshHost, sshKeyPath string
		noAPI                        bool
	)
	cmd := &cobra.Command{
		Use:   "ssh",
		Short: "Serve the canvas TUI over SSH",
		Long: `Serve the canvas TUI over SSH

Every connection gets its own view of one shared canvas. The server will
generate a host key automatically if not specified.`,
		Example: `  # Start SSH server on default port
  tabz-canvas ssh

  # Start on custom port with a custom host key
  tabz-canvas ssh --ssh-port 2323 --key-path /path/to/host_key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSSHServer(cmd.Context(), o, sshHost, sshPort, sshKeyPath, !noAPI)
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&sshPort, "ssh-port", "2222", "SSH server port")
	cmd.Flags().StringVar(&sshHost, "ssh-host", "localhost", "SSH server host")
	cmd.Flags().StringVar(&sshKeyPath, "key-path", "", "Path to SSH host key (auto-generated if not specified)")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not serve the canvas API")
	return cmd
}

func newWebTUICmd() *cobra.Command {
	var (
		o     serveOptions
		w     webTUIOptions
		noAPI bool
	)
	cmd := &cobra.Command{
		Use:   "web-tui",
		Short: "Serve the canvas TUI in the browser",
		Long: `Serve the canvas TUI in the browser through a web terminal

Each browser tab gets its own view of one shared canvas.`,
		Example: `  # Serve on localhost:7681
  tabz-canvas web-tui

  # Read-only view for an audience
  tabz-canvas web-tui --read-only --web-port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w.withAPI = !noAPI
			return runWebTUI(cmd.Context(), o, w)
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&w.host, "web-host", "localhost", "Web terminal host")
	cmd.Flags().StringVar(&w.port, "web-port", "7681", "Web terminal port")
	cmd.Flags().BoolVar(&w.readOnly, "read-only", false, "Disallow input from the browser")
	cmd.Flags().IntVar(&w.maxConnections, "web-max-connections", 0, "Maximum concurrent browser sessions (0 = unlimited)")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not serve the canvas API")
	return cmd
}
