// Package server serves the canvas TUI over SSH.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/wish/v2"
	"charm.land/wish/v2/bubbletea"
	"charm.land/wish/v2/logging"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/config"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/tui"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
)

// Package-level logger
var logger *log.Logger

func init() {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "ssh",
	})
}

// SetLogLevel sets the logging level for the server package.
func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}

// SSHServerConfig holds configuration for the SSH server.
type SSHServerConfig struct {
	Host    string
	Port    string
	KeyPath string // Host key; generated on first start when missing

	Store *canvas.Store
	Keys  *config.KeybindRegistry
	Links tui.Links // Optional; enables terminal output and focus mode

	CellWidth  int
	CellHeight int
}

// DefaultHostKeyPath returns ~/.ssh/tabz_canvas_host_key.
func DefaultHostKeyPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ssh", "tabz_canvas_host_key"), nil
}

// StartSSHServer runs the SSH server until ctx is done. Every session gets
// its own view of the shared canvas.
func StartSSHServer(ctx context.Context, cfg *SSHServerConfig) error {
	if cfg.Store == nil {
		return errors.New("ssh server needs a canvas store")
	}

	hostKeyPath := cfg.KeyPath
	if hostKeyPath == "" {
		p, err := DefaultHostKeyPath()
		if err != nil {
			return err
		}
		hostKeyPath = p
	}

	server, err := wish.NewServer(
		wish.WithAddress(net.JoinHostPort(cfg.Host, cfg.Port)),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithMiddleware(
			// Bubble Tea middleware for interactive sessions
			bubbletea.Middleware(teaHandler(cfg)),
			// Logging middleware for connection tracking
			logging.Middleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create SSH server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("SSH server starting", "addr", server.Addr, "host_key", hostKeyPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			errChan <- fmt.Errorf("SSH server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return err
	}

	logger.Info("shutting down SSH server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// teaHandler creates a canvas view for each SSH session.
func teaHandler(cfg *SSHServerConfig) bubbletea.Handler {
	return func(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
		pty, _, active := sess.Pty()
		if !active {
			wish.Fatalln(sess, "tabz-canvas needs an interactive terminal (ssh -t)")
			return nil, nil
		}

		opts := []tui.Option{tui.WithCellSize(cfg.CellWidth, cfg.CellHeight)}
		if cfg.Links != nil {
			opts = append(opts, tui.WithLinks(cfg.Links))
		}
		model := tui.NewModel(cfg.Store, cfg.Keys, opts...)
		model.Width, model.Height = pty.Window.Width, pty.Window.Height

		go func() {
			<-sess.Context().Done()
			model.Close()
		}()

		logger.Info("canvas session opened",
			"user", sess.User(),
			"remote", sess.RemoteAddr(),
			"size", fmt.Sprintf("%dx%d", pty.Window.Width, pty.Window.Height),
		)
		return model, nil
	}
}
