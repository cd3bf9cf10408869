// Package render turns file card content into HTML for the browser and
// ANSI text for the terminal front end.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Highlighting styles.
const (
	HTMLStyle     = "github-dark"
	TerminalStyle = "monokai"
)

var (
	markdownOnce     sync.Once
	markdownInstance goldmark.Markdown
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// HTML renders a file card's body. Raw HTML inside markdown is not passed
// through.
func HTML(f canvas.File) (string, error) {
	switch f.FileType {
	case canvas.FileImage:
		return fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(f.Content), html.EscapeString(f.Name)), nil
	case canvas.FileMarkdown:
		var buf bytes.Buffer
		if err := markdown().Convert([]byte(f.Content), &buf); err != nil {
			return "", fmt.Errorf("failed to render markdown: %w", err)
		}
		return `<div class="markdown">` + buf.String() + `</div>`, nil
	case canvas.FileCode:
		return highlightHTML(f.Content, f.Language)
	default:
		return `<pre class="text">` + html.EscapeString(f.Content) + `</pre>`, nil
	}
}

func highlightHTML(code, language string) (string, error) {
	lexer := chroma.Coalesce(Lexer(language, code))
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("failed to tokenise: %w", err)
	}
	formatter := chromahtml.New(chromahtml.TabWidth(4), chromahtml.WithClasses(false))
	var buf bytes.Buffer
	if err := formatter.Format(&buf, Style(HTMLStyle), iterator); err != nil {
		return "", fmt.Errorf("failed to format code: %w", err)
	}
	return buf.String(), nil
}

// Terminal renders a file card's body as ANSI text.
func Terminal(f canvas.File) string {
	switch f.FileType {
	case canvas.FileImage:
		return fmt.Sprintf("[image: %s]", f.Name)
	case canvas.FileCode, canvas.FileMarkdown:
		lang := f.Language
		if f.FileType == canvas.FileMarkdown {
			lang = "markdown"
		}
		var sb strings.Builder
		if err := quick.Highlight(&sb, f.Content, Lexer(lang, f.Content).Config().Name, "terminal256", TerminalStyle); err != nil {
			return f.Content
		}
		return sb.String()
	default:
		return f.Content
	}
}

// Lexer returns a lexer by name, or guesses one from the code.
func Lexer(name, code string) chroma.Lexer {
	if name != "" {
		if l := lexers.Get(name); l != nil {
			return l
		}
	}
	if l := lexers.Analyse(code); l != nil {
		return l
	}
	return lexers.Fallback
}

// Style resolves a style name, falling back to the default style.
func Style(name string) *chroma.Style {
	if s := styles.Get(name); s != nil {
		return s
	}
	return styles.Fallback
}
