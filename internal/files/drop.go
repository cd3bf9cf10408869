package files

import (
	"fmt"
	"os"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
)

// DropStagger offsets each further file of a multi-file drop.
var DropStagger = canvas.Point{X: 30, Y: 30}

// Dropped is one file of a drop.
type Dropped struct {
	Name string
	Data []byte
}

// DropError records a file that was skipped.
type DropError struct {
	Name string
	Err  error
}

func (e DropError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e DropError) Unwrap() error { return e.Err }

// Drop adds the dropped files to store. When at is set the first card lands
// on that screen point, converted with the current viewport, and the others
// are staggered from it; otherwise each card is placed by the solver.
// Unreadable files are skipped and returned as errors.
func Drop(store *canvas.Store, drops []Dropped, at *canvas.Point) ([]canvas.File, []DropError) {
	var origin *canvas.Point
	if at != nil {
		w := store.Viewport().ScreenToWorld(*at)
		origin = &w
	}

	var added []canvas.File
	var skipped []DropError
	for _, d := range drops {
		in, err := Classify(d.Name, d.Data)
		if err != nil {
			logger.Warn("skipping dropped file", "name", d.Name, "err", err)
			skipped = append(skipped, DropError{Name: d.Name, Err: err})
			continue
		}
		if origin != nil {
			pos := origin.Add(DropStagger.Scale(float64(len(added))))
			in.Position = &pos
		}
		f := store.AddFile(in)
		logger.Debug("file dropped", "name", f.Name, "type", f.FileType, "language", f.Language)
		added = append(added, f)
	}
	return added, skipped
}

// ReadPaths loads files from disk for Drop. Files that cannot be read are
// reported alongside the ones that could.
func ReadPaths(paths []string) ([]Dropped, []DropError) {
	var drops []Dropped
	var skipped []DropError
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			skipped = append(skipped, DropError{Name: p, Err: err})
			continue
		}
		drops = append(drops, Dropped{Name: p, Data: data})
	}
	return drops, skipped
}
