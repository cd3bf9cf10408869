package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/automation"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/backend"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/files"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/render"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/theme"
)

const maxBodySize = 1 << 20

// maxUploadSize bounds one multipart drop.
const maxUploadSize = 4 * files.MaxFileSize

var (
	errTerminalNotFound = errors.New("terminal not found")
	errFileNotFound     = errors.New("file not found")
	errLayoutNotFound   = errors.New("layout not found")
	errNoBackend        = errors.New("terminal backend is not configured")
)

// StateResponse is the body of GET /api/canvas/state.
type StateResponse struct {
	canvas.State
	BackendConnected bool `json:"backendConnected"`
}

type terminalResponse struct {
	Success  bool            `json:"success"`
	Terminal canvas.Terminal `json:"terminal"`
}

type fileResponse struct {
	Success bool        `json:"success"`
	File    canvas.File `json:"file"`
}

type skippedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type dropResponse struct {
	Success bool          `json:"success"`
	Files   []canvas.File `json:"files"`
	Skipped []skippedFile `json:"skipped,omitempty"`
}

type layoutsResponse struct {
	Success bool            `json:"success"`
	Layouts []canvas.Layout `json:"layouts"`
}

type layoutResponse struct {
	Success bool          `json:"success"`
	Layout  canvas.Layout `json:"layout"`
}

type loadResponse struct {
	Success   bool              `json:"success"`
	Terminals []canvas.Terminal `json:"terminals"`
	Viewport  canvas.Viewport   `json:"viewport"`
}

type viewportResponse struct {
	Success  bool            `json:"success"`
	Viewport canvas.Viewport `json:"viewport"`
}

type okResponse struct {
	Success bool `json:"success"`
}

// ProfileResponse is a backend profile with its resolved colors.
type ProfileResponse struct {
	backend.Profile
	Theme theme.ProfileTheme `json:"theme"`
}

type profilesResponse struct {
	Success  bool              `json:"success"`
	Profiles []ProfileResponse `json:"profiles"`
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) stateResponse() StateResponse {
	return StateResponse{
		State:            s.store.State(),
		BackendConnected: s.store.BackendConnected(),
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	automation.WriteJSON(w, http.StatusOK, s.stateResponse())
}

func (s *Server) handleSpawnTerminal(w http.ResponseWriter, r *http.Request) {
	var opts canvas.SpawnOptions
	if err := decodeBody(r, &opts); err != nil {
		automation.WriteError(w, http.StatusBadRequest, err)
		return
	}
	t := s.store.SpawnTerminal(opts)
	logger.Info("terminal spawned", "id", t.ID, "name", t.Name, "x", t.Position.X, "y", t.Position.Y)
	automation.WriteJSON(w, http.StatusCreated, terminalResponse{Success: true, Terminal: t})
}

// handleUpdateTerminal patches a terminal. An unknown id is a 404 and
// changes nothing.
func (s *Server) handleUpdateTerminal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Terminal(id); !ok {
		automation.WriteError(w, http.StatusNotFound, errTerminalNotFound)
		return
	}
	var patch canvas.TerminalPatch
	if err := decodeBody(r, &patch); err != nil {
		automation.WriteError(w, http.StatusBadRequest, err)
		return
	}
	// Sessions are owned by the backend link.
	patch.SessionID = nil
	if !s.store.UpdateTerminal(id, patch) {
		automation.WriteError(w, http.StatusNotFound, errTerminalNotFound)
		return
	}
	t, _ := s.store.Terminal(id)
	automation.WriteJSON(w, http.StatusOK, terminalResponse{Success: true, Terminal: t})
}

// handleRemoveTerminal closes a terminal. An unknown id is a 404 and
// changes nothing.
func (s *Server) handleRemoveTerminal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.RemoveTerminal(id) {
		automation.WriteError(w, http.StatusNotFound, errTerminalNotFound)
		return
	}
	logger.Info("terminal removed", "id", id)
	automation.WriteJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleDropFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(files.MaxFileSize); err != nil {
		automation.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		automation.WriteError(w, http.StatusBadRequest, errors.New("no file parts in upload"))
		return
	}

	at, err := dropPoint(r.FormValue("x"), r.FormValue("y"))
	if err != nil {
		automation.WriteError(w, http.StatusBadRequest, err)
		return
	}

	drops := make([]files.Dropped, 0, len(parts))
	var skipped []skippedFile
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			skipped = append(skipped, skippedFile{Name: part.Filename, Error: err.Error()})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, files.MaxFileSize+1))
		_ = f.Close()
		if err != nil {
			skipped = append(skipped, skippedFile{Name: part.Filename, Error: err.Error()})
			continue
		}
		drops = append(drops, files.Dropped{Name: part.Filename, Data: data})
	}

	added, dropErrs := files.Drop(s.store, drops, at)
	for _, e := range dropErrs {
		skipped = append(skipped, skippedFile{Name: e.Name, Error: e.Err.Error()})
	}
	if len(added) == 0 {
		msgs := make([]string, len(skipped))
		for i, sf := range skipped {
			msgs[i] = sf.Name + ": " + sf.Error
		}
		automation.WriteError(w, http.StatusUnprocessableEntity,
			fmt.Errorf("no files could be added: %s", strings.Join(msgs, "; ")))
		return
	}

	logger.Info("files dropped", "added", len(added), "skipped", len(skipped))
	automation.WriteJSON(w, http.StatusCreated, dropResponse{Success: true, Files: added, Skipped: skipped})
}

// dropPoint parses the optional screen drop point. Both coordinates must be
// given together.
func dropPoint(xs, ys string) (*canvas.Point, error) {
	if xs == "" && ys == "" {
		return nil, nil
	}
	x, errX := strconv.ParseFloat(xs, 64)
	y, errY := strconv.ParseFloat(ys, 64)
	if errX != nil || errY != nil {
		return nil, fmt.Errorf("invalid drop point (%q, %q)", xs, ys)
	}
	return &canvas.Point{X: x, Y: y}, nil
}

// handleUpdateFile patches a file card. An unknown id is a 404 and changes
// nothing.
func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.File(id); !ok {
		automation.WriteError(w, http.StatusNotFound, errFileNotFound)
		return
	}
	var patch canvas.FilePatch
	if err := decodeBody(r, &patch); err != nil {
		automation.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if !s.store.UpdateFile(id, patch) {
		automation.WriteError(w, http.StatusNotFound, errFileNotFound)
		return
	}
	f, _ := s.store.File(id)
	automation.WriteJSON(w, http.StatusOK, fileResponse{Success: true, File: f})
}

// handleRemoveFile closes a file card. An unknown id is a 404 and changes
// nothing.
func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.RemoveFile(id) {
		automation.WriteError(w, http.StatusNotFound, errFileNotFound)
		return
	}
	automation.WriteJSON(w, http.StatusOK, okResponse{Success: true})
}

// handleRenderFile serves a file card as an HTML fragment, or a 404 for an
// unknown id.
func (s *Server) handleRenderFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.store.File(r.PathValue("id"))
	if !ok {
		automation.WriteError(w, http.StatusNotFound, errFileNotFound)
		return
	}
	body, err := render.HTML(f)
	if err != nil {
		automation.WriteError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleListLayouts(w http.ResponseWriter, _ *http.Request) {
	automation.WriteJSON(w, http.StatusOK, layoutsResponse{Success: true, Layouts: s.store.Layouts()})
}

func (s *Server) handleSaveLayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		automation.WriteError(w, http.StatusBadRequest, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		automation.WriteError(w, http.StatusBadRequest, errors.New("layout name is required"))
		return
	}
	l := s.store.SaveLayout(name)
	logger.Info("layout saved", "id", l.ID, "name", l.Name, "terminals", len(l.Terminals))
	automation.WriteJSON(w, http.StatusCreated, layoutResponse{Success: true, Layout: l})
}

// handleLoadLayout replaces the terminals and viewport with a saved layout.
// An unknown id is a 404 and leaves the canvas as it was.
func (s *Server) handleLoadLayout(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.LoadLayout(id) {
		automation.WriteError(w, http.StatusNotFound, errLayoutNotFound)
		return
	}
	logger.Info("layout loaded", "id", id)
	automation.WriteJSON(w, http.StatusOK, loadResponse{
		Success:   true,
		Terminals: s.store.Terminals(),
		Viewport:  s.store.Viewport(),
	})
}

// handleDeleteLayout deletes a saved layout. An unknown id is a 404 and
// changes nothing.
func (s *Server) handleDeleteLayout(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.DeleteLayout(id) {
		automation.WriteError(w, http.StatusNotFound, errLayoutNotFound)
		return
	}
	automation.WriteJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleResetViewport(w http.ResponseWriter, _ *http.Request) {
	canvas.NewViewportController(s.store).Reset()
	automation.WriteJSON(w, http.StatusOK, viewportResponse{Success: true, Viewport: s.store.Viewport()})
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta *float64 `json:"delta"`
	}
	if err := decodeBody(r, &req); err != nil {
		automation.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.Delta == nil {
		automation.WriteError(w, http.StatusBadRequest, errors.New("delta is required"))
		return
	}
	canvas.NewViewportController(s.store).ZoomBy(*req.Delta)
	automation.WriteJSON(w, http.StatusOK, viewportResponse{Success: true, Viewport: s.store.Viewport()})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		automation.WriteError(w, http.StatusServiceUnavailable, errNoBackend)
		return
	}
	profiles, err := s.backend.Profiles(r.Context())
	if err != nil {
		logger.Warn("failed to fetch profiles", "err", err)
		automation.WriteError(w, http.StatusBadGateway, err)
		return
	}
	out := make([]ProfileResponse, len(profiles))
	for i, p := range profiles {
		out[i] = ProfileResponse{Profile: p, Theme: theme.ForProfile(p.ThemeName)}
	}
	automation.WriteJSON(w, http.StatusOK, profilesResponse{Success: true, Profiles: out})
}
