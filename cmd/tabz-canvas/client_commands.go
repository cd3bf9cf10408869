package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/automation"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/config"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/theme"
	"github.com/spf13/cobra"
)

// canvasURL returns url, or the address of the configured canvas server.
func canvasURL(url string) string {
	if url != "" {
		return url
	}
	cfg, err := config.LoadUserConfig()
	if err != nil {
		return automation.DefaultURL
	}
	return "http://" + net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
}

func newSpawnCmd() *cobra.Command {
	var (
		url    string
		params automation.SpawnParams
	)
	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Queue a terminal on a running canvas",
		Long: `Queue a terminal on a running canvas

The canvas picks up queued terminals within half a second. Width must be
between 200 and 2000 and height between 150 and 1500.`,
		Example: `  # Spawn with defaults
  tabz-canvas spawn

  # Spawn a named terminal running a command
  tabz-canvas spawn --name logs --x 700 --y 100 --command "tail -f app.log"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return spawnTerminal(ctx, cmd.OutOrStdout(), automation.NewClient(canvasURL(url)), params)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Canvas server URL (default from config)")
	cmd.Flags().StringVar(&params.Name, "name", automation.DefaultName, "Terminal name")
	cmd.Flags().Float64Var(&params.X, "x", automation.DefaultX, "X position in world units")
	cmd.Flags().Float64Var(&params.Y, "y", automation.DefaultY, "Y position in world units")
	cmd.Flags().Float64Var(&params.Width, "width", automation.DefaultWidth, "Width in world units")
	cmd.Flags().Float64Var(&params.Height, "height", automation.DefaultHeight, "Height in world units")
	cmd.Flags().StringVar(&params.Command, "command", "", "Command typed into the terminal once connected")
	cmd.Flags().StringVar(&params.Profile, "profile", "", "Backend profile id")
	return cmd
}

func spawnTerminal(ctx context.Context, w io.Writer, client *automation.Client, params automation.SpawnParams) error {
	res, err := client.Spawn(ctx, params)
	if err != nil {
		return err
	}
	c := res.Command
	fmt.Fprintf(w, "Queued %q at (%g, %g), %gx%g\n", c.Name, c.X, c.Y, c.Width, c.Height)
	fmt.Fprintf(w, "  Command ID: %s\n", c.ID)
	return nil
}

func newHealthCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a canvas server is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			res, err := automation.NewClient(canvasURL(url)).Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d pending)\n", res.Status, res.PendingCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Canvas server URL (default from config)")
	return cmd
}

func newPendingCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List queued spawn commands",
		Long: `List spawn commands that the canvas has not picked up yet

Commands are listed oldest first. Listing does not remove them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			commands, err := automation.NewClient(canvasURL(url)).Pending(ctx)
			if err != nil {
				return err
			}
			printPending(cmd.OutOrStdout(), commands, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Canvas server URL (default from config)")
	return cmd
}

func printPending(w io.Writer, commands []automation.SpawnCommand, now time.Time) {
	if len(commands) == 0 {
		fmt.Fprintln(w, lipgloss.NewStyle().Foreground(theme.CLITableDim()).Render("No pending commands."))
		return
	}
	rows := make([][]string, 0, len(commands))
	for _, c := range commands {
		age := now.Sub(time.UnixMilli(c.CreatedAt)).Truncate(time.Second)
		rows = append(rows, []string{
			c.ID,
			c.Name,
			fmt.Sprintf("%g,%g", c.X, c.Y),
			fmt.Sprintf("%gx%g", c.Width, c.Height),
			strings.TrimSpace(c.Command),
			age.String(),
		})
	}
	fmt.Fprintln(w, newTable("ID", "Name", "Position", "Size", "Command", "Age").Rows(rows...).Render())
}

