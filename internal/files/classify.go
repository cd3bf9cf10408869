// Package files turns dropped files into canvas file cards.
package files

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/charmbracelet/log"
	"github.com/go-enry/go-enry/v2"
)

var logger *log.Logger

func init() {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "files",
	})
}

// SetLogLevel sets the logging level for the files package.
func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}

// MaxFileSize bounds what a single card may hold.
const MaxFileSize = 10 << 20

var (
	// ErrEmptyFile is returned for zero-length drops.
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnreadable is returned for binary files that are not images.
	ErrUnreadable = errors.New("file is not text or an image")
	// ErrTooLarge is returned for files above MaxFileSize.
	ErrTooLarge = errors.New("file is too large")
)

var markdownExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".mdx":      true,
}

// languageAliases maps linguist names to the short names highlighters use.
var languageAliases = map[string]string{
	"C#":          "csharp",
	"C++":         "cpp",
	"Objective-C": "objectivec",
	"Shell":       "bash",
	"Emacs Lisp":  "elisp",
	"Vim Script":  "vim",
	"Go Module":   "go",
	"Dockerfile":  "docker",
	"Makefile":    "makefile",
}

// Classify builds the card for a file called name with the given content.
// Images become data URIs; markdown, code and text keep their content.
func Classify(name string, data []byte) (canvas.FileInput, error) {
	in := canvas.FileInput{Name: filepath.Base(name)}
	switch {
	case len(data) == 0:
		return in, ErrEmptyFile
	case len(data) > MaxFileSize:
		return in, ErrTooLarge
	}

	if isImage(name, data) {
		in.FileType = canvas.FileImage
		in.Content = dataURI(name, data)
		return in, nil
	}
	if enry.IsBinary(data) || !utf8.Valid(data) {
		return in, ErrUnreadable
	}
	in.Content = string(data)

	if markdownExts[strings.ToLower(filepath.Ext(name))] {
		in.FileType = canvas.FileMarkdown
		return in, nil
	}

	if lang := codeLanguage(name, data); lang != "" {
		in.FileType = canvas.FileCode
		in.Language = LanguageAlias(lang)
	} else {
		in.FileType = canvas.FileText
	}
	return in, nil
}

// codeLanguage returns the linguist language of a code file, or "" for
// plain text. An extension shared by plain text and other languages, like
// .txt, counts as text.
func codeLanguage(name string, data []byte) string {
	name = filepath.Base(name)
	langs := enry.GetLanguagesByFilename(name, data, nil)
	if len(langs) == 0 {
		langs = enry.GetLanguagesByExtension(name, data, nil)
	}

	var candidates []string
	for _, lang := range langs {
		if lang == "Text" {
			return ""
		}
		if isCode(lang) {
			candidates = append(candidates, lang)
		}
	}
	switch len(candidates) {
	case 0:
		return ""
	case 1:
		return candidates[0]
	}
	if lang, _ := enry.GetLanguageByClassifier(data, candidates); lang != "" {
		return lang
	}
	return candidates[0]
}

func isCode(lang string) bool {
	switch enry.GetLanguageType(lang) {
	case enry.Programming, enry.Markup, enry.Data:
		return true
	}
	return false
}

// LanguageAlias returns the highlighter name for a linguist language.
func LanguageAlias(lang string) string {
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return strings.ReplaceAll(strings.ToLower(lang), " ", "-")
}

func isImage(name string, data []byte) bool {
	if enry.IsImage(name) {
		return true
	}
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}

func dataURI(name string, data []byte) string {
	typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if typ == "" {
		typ = http.DetectContentType(data)
	}
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = typ[:i]
	}
	return fmt.Sprintf("data:%s;base64,%s", typ, base64.StdEncoding.EncodeToString(data))
}
