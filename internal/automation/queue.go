// Package automation implements the spawn queue that lets external tools
// place terminals on the canvas: the HTTP endpoints that hold the queue, a
// client for them, and the poller that turns queued commands into terminals.
package automation

import (
	"os"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var logger *log.Logger

func init() {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "automation",
	})
}

// SetLogLevel sets the logging level for the automation package.
func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}

// Spawn request defaults.
const (
	DefaultName   = "Terminal"
	DefaultX      = 100
	DefaultY      = 100
	DefaultWidth  = 600
	DefaultHeight = 400
)

// SpawnCommand is one queued request to create a terminal.
type SpawnCommand struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Command   string  `json:"command,omitempty"`
	Profile   string  `json:"profile,omitempty"`
	CreatedAt int64   `json:"createdAt"`
}

// Queue is an in-memory FIFO of spawn commands. It lives as long as the
// process.
type Queue struct {
	mu       sync.Mutex
	commands []SpawnCommand
	now      func() time.Time
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// NewCommandID returns a fresh command id.
func NewCommandID() string {
	return "cmd-" + uuid.New().String()
}

// Enqueue assigns an id and timestamp to cmd and appends it.
func (q *Queue) Enqueue(cmd SpawnCommand) SpawnCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd.ID = NewCommandID()
	cmd.CreatedAt = q.now().UnixMilli()
	q.commands = append(q.commands, cmd)
	return cmd
}

// Pending returns the queued commands, oldest first.
func (q *Queue) Pending() []SpawnCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.commands)
}

// Ack removes the commands with the given ids and returns how many remain.
// Unknown ids are ignored.
func (q *Queue) Ack(ids []string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = slices.DeleteFunc(q.commands, func(c SpawnCommand) bool {
		return slices.Contains(ids, c.ID)
	})
	return len(q.commands)
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}
