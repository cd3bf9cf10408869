package automation

import (
	"context"
	"time"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
)

// DefaultPollInterval is how often the poller checks the queue.
const DefaultPollInterval = 500 * time.Millisecond

// Source is where the poller reads commands from.
type Source interface {
	Pending(ctx context.Context) ([]SpawnCommand, error)
	Ack(ctx context.Context, ids []string) (int, error)
}

// Spawner creates terminals.
type Spawner interface {
	SpawnTerminal(opts canvas.SpawnOptions) canvas.Terminal
}

// LocalSource reads a Queue in the same process.
type LocalSource struct {
	Queue *Queue
}

// Pending implements Source.
func (s LocalSource) Pending(context.Context) ([]SpawnCommand, error) {
	return s.Queue.Pending(), nil
}

// Ack implements Source.
func (s LocalSource) Ack(_ context.Context, ids []string) (int, error) {
	return s.Queue.Ack(ids), nil
}

// Poller turns queued commands into terminals. A command is spawned at most
// once even if its acknowledgement fails and it is seen again.
type Poller struct {
	source   Source
	spawner  Spawner
	interval time.Duration
	spawned  map[string]struct{}
}

// NewPoller returns a poller; interval <= 0 means DefaultPollInterval.
func NewPoller(source Source, spawner Spawner, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		source:   source,
		spawner:  spawner,
		interval: interval,
		spawned:  make(map[string]struct{}),
	}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if err := p.Poll(ctx); err != nil {
			logger.Debug("poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll processes the pending commands once.
func (p *Poller) Poll(ctx context.Context) error {
	commands, err := p.source.Pending(ctx)
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, len(commands))
	ids := make([]string, 0, len(commands))
	for _, cmd := range commands {
		live[cmd.ID] = struct{}{}
		ids = append(ids, cmd.ID)
		if _, done := p.spawned[cmd.ID]; done {
			continue
		}
		t := p.spawner.SpawnTerminal(OptionsFor(cmd))
		p.spawned[cmd.ID] = struct{}{}
		logger.Info("spawned terminal from queue", "command", cmd.ID, "terminal", t.ID, "name", t.Name)
	}
	// Forget commands that have left the queue.
	for id := range p.spawned {
		if _, ok := live[id]; !ok {
			delete(p.spawned, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = p.source.Ack(ctx, ids)
	return err
}

// OptionsFor converts a queued command into spawn options.
func OptionsFor(cmd SpawnCommand) canvas.SpawnOptions {
	return canvas.SpawnOptions{
		Name:     cmd.Name,
		Position: &canvas.Point{X: cmd.X, Y: cmd.Y},
		Size:     &canvas.Size{Width: cmd.Width, Height: cmd.Height},
		Profile:  cmd.Profile,
		Command:  cmd.Command,
	}
}
