package canvas

import "github.com/google/uuid"

// Item kinds.
const (
	KindTerminal = "terminal"
	KindFile     = "file"
)

// Size limits and defaults for cards.
var (
	MinTerminalSize     = Size{Width: 300, Height: 200}
	MinFileSize         = Size{Width: 200, Height: 150}
	DefaultTerminalSize = Size{Width: 600, Height: 400}
	DefaultFileSize     = Size{Width: 500, Height: 400}
)

// FileType classifies a file card's content.
type FileType string

const (
	FileCode     FileType = "code"
	FileMarkdown FileType = "markdown"
	FileImage    FileType = "image"
	FileText     FileType = "text"
)

// Valid reports whether t is a known file type.
func (t FileType) Valid() bool {
	switch t {
	case FileCode, FileMarkdown, FileImage, FileText:
		return true
	}
	return false
}

// Terminal is a card hosting one backend terminal session.
type Terminal struct {
	ID        string  `json:"id"`
	SessionID *string `json:"sessionId"`
	Name      string  `json:"name"`
	Position  Point   `json:"position"`
	Size      Size    `json:"size"`
	Profile   string  `json:"profile,omitempty"`
	// Command is typed into the session once it connects.
	Command string `json:"command,omitempty"`
}

// Connected reports whether the backend has confirmed a session.
func (t Terminal) Connected() bool { return t.SessionID != nil }

// File is a card displaying a dropped file. Content is immutable.
type File struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Content  string   `json:"content"`
	FileType FileType `json:"fileType"`
	Language string   `json:"language,omitempty"`
	Position Point    `json:"position"`
	Size     Size     `json:"size"`
}

// LayoutTerminal is the template of one terminal inside a Layout.
type LayoutTerminal struct {
	Name     string `json:"name"`
	Position Point  `json:"position"`
	Size     Size   `json:"size"`
	Profile  string `json:"profile,omitempty"`
}

// Layout is a named snapshot of the terminal arrangement and viewport.
type Layout struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Terminals []LayoutTerminal `json:"terminals"`
	Viewport  Viewport         `json:"viewport"`
	CreatedAt int64            `json:"createdAt"`
}

// SpawnOptions configures a new terminal. Nil fields take defaults.
type SpawnOptions struct {
	Name     string `json:"name,omitempty"`
	Position *Point `json:"position,omitempty"`
	Size     *Size  `json:"size,omitempty"`
	Profile  string `json:"profile,omitempty"`
	Command  string `json:"command,omitempty"`
}

// FileInput describes a file card to add.
type FileInput struct {
	Name     string   `json:"name"`
	Content  string   `json:"content"`
	FileType FileType `json:"fileType"`
	Language string   `json:"language,omitempty"`
	Position *Point   `json:"position,omitempty"`
	Size     *Size    `json:"size,omitempty"`
}

// TerminalPatch is a partial update. Nil fields are left unchanged. A
// SessionID pointing at "" clears the session.
type TerminalPatch struct {
	Name      *string `json:"name,omitempty"`
	Position  *Point  `json:"position,omitempty"`
	Size      *Size   `json:"size,omitempty"`
	Profile   *string `json:"profile,omitempty"`
	SessionID *string `json:"sessionId,omitempty"`
}

// FilePatch is a partial update of a file card's geometry.
type FilePatch struct {
	Position *Point `json:"position,omitempty"`
	Size     *Size  `json:"size,omitempty"`
}

// NewID returns a fresh canvas item id.
func NewID() string {
	return "canvas-" + uuid.New().String()
}

func minSize(kind string) Size {
	if kind == KindFile {
		return MinFileSize
	}
	return MinTerminalSize
}

func ptr[T any](v T) *T { return &v }
