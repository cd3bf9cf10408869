package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/Gaurav-Gosain/sip"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/automation"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/backend"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/config"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/files"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/persist"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/server"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/theme"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/tui"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/web"
	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// serveOptions are the flags shared by every command that hosts a canvas.
type serveOptions struct {
	host           string
	port           string
	storage        string
	maxConnections int
	noBackend      bool
}

func (o *serveOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.host, "host", "", "HTTP API host (default from config)")
	cmd.Flags().StringVar(&o.port, "port", "", "HTTP API port (default from config)")
	cmd.Flags().StringVar(&o.storage, "storage", "", "Storage driver: sqlite, file or memory (default from config)")
	cmd.Flags().IntVar(&o.maxConnections, "max-connections", 0, "Maximum concurrent WebSocket connections (0 = unlimited)")
	cmd.Flags().BoolVar(&o.noBackend, "no-backend", false, "Do not connect terminals to the terminal backend")
}

// applyGlobalFlags handles --debug and --theme.
func applyGlobalFlags() {
	if debugMode {
		setLogLevel(log.DebugLevel)
		log.Debug("debug logging enabled")
	}
	if themeName != "" {
		if err := theme.Initialize(themeName); err != nil {
			log.Warn("failed to load theme", "theme", themeName, "err", err)
		}
	}
}

func setLogLevel(level log.Level) {
	log.SetLevel(level)
	automation.SetLogLevel(level)
	backend.SetLogLevel(level)
	files.SetLogLevel(level)
	persist.SetLogLevel(level)
	server.SetLogLevel(level)
	tui.SetLogLevel(level)
	web.SetLogLevel(level)
}

// loadConfig reads the user config, falling back to the defaults. The
// appearance theme applies unless --theme was given.
func loadConfig() *config.UserConfig {
	cfg, err := config.LoadUserConfig()
	if err != nil {
		log.Warn("using default configuration", "err", err)
		cfg = config.DefaultConfig()
	}
	if themeName == "" && cfg.Appearance.Theme != "" {
		if err := theme.Initialize(cfg.Appearance.Theme); err != nil {
			log.Warn("failed to load theme", "theme", cfg.Appearance.Theme, "err", err)
		}
	}
	return cfg
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openPersister opens the configured storage. driver overrides the config
// when set.
func openPersister(cfg *config.UserConfig, driver string) (*persist.Persister, error) {
	if driver == "" {
		driver = cfg.Storage.Driver
	}
	path := cfg.Storage.Path
	if path == "" && driver != "memory" {
		p, err := config.DefaultStatePath(driver)
		if err != nil {
			return nil, err
		}
		path = p
	}
	b, err := persist.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", driver, err)
	}
	log.Debug("storage opened", "driver", driver, "path", path)
	return persist.New(b), nil
}

// canvasRuntime is one running canvas: the store with its persistence,
// terminal links, spawn queue and keybindings.
type canvasRuntime struct {
	cfg       *config.UserConfig
	store     *canvas.Store
	keys      *config.KeybindRegistry
	queue     *automation.Queue
	client    *backend.Client
	links     *backend.Manager
	persister *persist.Persister
	detach    func()
}

// openRuntime restores the canvas and starts its background work: backend
// links, the spawn poller and config reloading. All of it stops with ctx.
func openRuntime(ctx context.Context, cfg *config.UserConfig, o serveOptions) (*canvasRuntime, error) {
	persister, err := openPersister(cfg, o.storage)
	if err != nil {
		return nil, err
	}
	store := canvas.NewStore()
	if _, err := persister.Restore(ctx, store); err != nil {
		_ = persister.Close()
		return nil, fmt.Errorf("failed to restore canvas: %w", err)
	}

	rt := &canvasRuntime{
		cfg:       cfg,
		store:     store,
		keys:      config.NewKeybindRegistry(cfg),
		queue:     automation.NewQueue(),
		persister: persister,
		detach:    persister.Attach(store),
	}

	if cfg.Backend.Enabled && !o.noBackend {
		rt.client = backend.NewClient(cfg.Backend.URL, cfg.Backend.WebSocketURL)
		rt.links = backend.NewManager(store, rt.client, backend.WithWorkingDir(cfg.Backend.WorkingDir))
		rt.links.Start(ctx)
	}

	var source automation.Source = automation.LocalSource{Queue: rt.queue}
	if cfg.Automation.QueueURL != "" {
		source = automation.NewClient(cfg.Automation.QueueURL)
	}
	go automation.NewPoller(source, store, cfg.Automation.PollDuration()).Run(ctx)
	go rt.watchConfig(ctx)

	return rt, nil
}

func (rt *canvasRuntime) watchConfig(ctx context.Context) {
	path, err := config.GetConfigPath()
	if err != nil {
		log.Warn("config reload disabled", "err", err)
		return
	}
	err = config.Watch(ctx, path,
		func(cfg *config.UserConfig) {
			rt.keys.Update(cfg)
			log.Info("keybindings reloaded", "path", path)
		},
		func(err error) {
			log.Warn("config reload failed", "err", err)
		},
	)
	if err != nil {
		log.Warn("config reload disabled", "err", err)
	}
}

func (rt *canvasRuntime) webServer(o serveOptions) *web.Server {
	cfg := web.DefaultConfig()
	if o.host != "" {
		cfg.Host = o.host
	} else if rt.cfg.Server.Host != "" {
		cfg.Host = rt.cfg.Server.Host
	}
	if o.port != "" {
		cfg.Port = o.port
	} else if rt.cfg.Server.Port != "" {
		cfg.Port = rt.cfg.Server.Port
	}
	cfg.AllowOrigins = rt.cfg.Server.AllowOrigins
	cfg.MaxConnections = o.maxConnections
	cfg.Debug = debugMode

	opts := []web.Option{web.WithQueue(rt.queue), web.WithKeymap(rt.keys)}
	if rt.client != nil {
		opts = append(opts, web.WithBackend(rt.client, rt.links))
	}
	return web.NewServer(cfg, rt.store, opts...)
}

// serveInBackground runs the HTTP API for front ends that are not the
// browser, so automation and the push stream keep working.
func (rt *canvasRuntime) serveInBackground(ctx context.Context, o serveOptions) {
	srv := rt.webServer(o)
	go func() {
		if err := srv.Start(ctx); err != nil {
			log.Error("canvas API stopped", "err", err)
		}
	}()
}

func (rt *canvasRuntime) tuiOptions() []tui.Option {
	opts := []tui.Option{tui.WithCellSize(rt.cfg.Canvas.CellWidth, rt.cfg.Canvas.CellHeight)}
	if rt.links != nil {
		opts = append(opts, tui.WithLinks(rt.links))
	}
	return opts
}

func (rt *canvasRuntime) Close() {
	if rt.links != nil {
		rt.links.Stop()
	}
	rt.detach()
	if err := rt.persister.Err(); err != nil {
		log.Warn("last canvas save failed", "err", err)
	}
	if err := rt.persister.Close(); err != nil {
		log.Warn("failed to close storage", "err", err)
	}
}

func runServe(parent context.Context, o serveOptions) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	rt, err := openRuntime(ctx, loadConfig(), o)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.webServer(o).Start(ctx); err != nil {
		return fmt.Errorf("web server error: %w", err)
	}
	return nil
}

func runTUI(parent context.Context, o serveOptions, withAPI bool) error {
	// Log lines would tear the alt screen.
	if !debugMode {
		setLogLevel(log.FatalLevel)
	}

	ctx, cancel := signalContext(parent)
	defer cancel()

	rt, err := openRuntime(ctx, loadConfig(), o)
	if err != nil {
		return err
	}
	defer rt.Close()

	if withAPI {
		rt.serveInBackground(ctx, o)
	}

	model := tui.NewModel(rt.store, rt.keys, rt.tuiOptions()...)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

func runSSHServer(parent context.Context, o serveOptions, sshHost, sshPort, sshKeyPath string, withAPI bool) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	rt, err := openRuntime(ctx, loadConfig(), o)
	if err != nil {
		return err
	}
	defer rt.Close()

	if withAPI {
		rt.serveInBackground(ctx, o)
	}

	log.Info("starting tabz-canvas SSH server", "host", sshHost, "port", sshPort)
	err = server.StartSSHServer(ctx, &server.SSHServerConfig{
		Host:       sshHost,
		Port:       sshPort,
		KeyPath:    sshKeyPath,
		Store:      rt.store,
		Keys:       rt.keys,
		Links:      linksOrNil(rt.links),
		CellWidth:  rt.cfg.Canvas.CellWidth,
		CellHeight: rt.cfg.Canvas.CellHeight,
	})
	if err != nil {
		return fmt.Errorf("SSH server error: %w", err)
	}
	return nil
}

// webTUIOptions are the flags of the web-tui command.
type webTUIOptions struct {
	host           string
	port           string
	readOnly       bool
	maxConnections int
	withAPI        bool
}

func runWebTUI(parent context.Context, o serveOptions, w webTUIOptions) error {
	// Stdout is not a TTY here; without this every color is stripped.
	lipgloss.Writer.Profile = colorprofile.TrueColor
	_ = os.Setenv("TERM", "xterm-256color")
	_ = os.Setenv("COLORTERM", "truecolor")

	ctx, cancel := signalContext(parent)
	defer cancel()

	rt, err := openRuntime(ctx, loadConfig(), o)
	if err != nil {
		return err
	}
	defer rt.Close()

	if w.withAPI {
		rt.serveInBackground(ctx, o)
	}

	sipConfig := sip.DefaultConfig()
	sipConfig.Host = w.host
	sipConfig.Port = w.port
	sipConfig.ReadOnly = w.readOnly
	sipConfig.MaxConnections = w.maxConnections
	sipConfig.Debug = debugMode

	srv := sip.NewServer(sipConfig)
	err = srv.Serve(ctx, func(sess sip.Session) (tea.Model, []tea.ProgramOption) {
		pty := sess.Pty()
		// TODO: close the model's store subscription once sip reports session teardown.
		model := tui.NewModel(rt.store, rt.keys, rt.tuiOptions()...)
		model.Width, model.Height = pty.Width, pty.Height
		return model, nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("web server error: %w", err)
	}
	return nil
}

// linksOrNil keeps a nil *backend.Manager from becoming a non-nil tui.Links.
func linksOrNil(m *backend.Manager) tui.Links {
	if m == nil {
		return nil
	}
	return m
}
