// Package main implements tabz-canvas, an infinite canvas of terminal and
// file cards. The canvas is served over HTTP for the browser, drawn in a
// terminal UI locally, over SSH or through sip, and driven by automation
// tools through a spawn queue.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

// Global flags
var (
	debugMode bool
	themeName string
)

func main() {
	rootCmd := newRootCmd()
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(fmt.Sprintf("%s\nCommit: %s\nBuilt: %s\nBy: %s", version, commit, date, builtBy)),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serveFlags serveOptions

	rootCmd := &cobra.Command{
		Use:   "tabz-canvas",
		Short: "Infinite canvas of terminals and files",
		Long: `tabz-canvas - an infinite canvas of terminal and file cards

Terminals and dropped files live as draggable, resizable cards on a pannable,
zoomable plane. The canvas API is served over HTTP and WebSocket; automation
tools queue terminals through the spawn endpoints.`,
		Example: `  # Serve the canvas API (default)
  tabz-canvas

  # Draw the canvas in this terminal
  tabz-canvas tui

  # Serve the canvas TUI over SSH
  tabz-canvas ssh --port 2222

  # Queue a terminal on a running canvas
  tabz-canvas spawn --name build --command "make watch"`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			applyGlobalFlags()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveFlags)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&themeName, "theme", "", "TUI color theme (bubbletint id)")
	serveFlags.register(rootCmd)

	rootCmd.AddCommand(
		newServeCmd(),
		newTUICmd(),
		newSSHCmd(),
		newWebTUICmd(),
		newSpawnCmd(),
		newHealthCmd(),
		newPendingCmd(),
		newLayoutsCmd(),
		newDropCmd(),
		newConfigCmd(),
		newKeybindsCmd(),
		newThemesCmd(),
	)
	return rootCmd
}
