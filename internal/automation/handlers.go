package automation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxBodySize bounds request bodies on the queue endpoints.
const maxBodySize = 1 << 20

// Handler serves the queue over HTTP.
type Handler struct {
	queue *Queue
}

// NewHandler returns a Handler for q.
func NewHandler(q *Queue) *Handler {
	return &Handler{queue: q}
}

// RegisterRoutes adds the queue endpoints to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/canvas/spawn", h.handleSpawn)
	mux.HandleFunc("GET /api/canvas/pending", h.handlePending)
	mux.HandleFunc("POST /api/canvas/ack", h.handleAck)
	mux.HandleFunc("GET /api/canvas/health", h.handleHealth)
}

type spawnResponse struct {
	Success bool         `json:"success"`
	Command SpawnCommand `json:"command"`
	Message string       `json:"message"`
}

type pendingResponse struct {
	Success  bool           `json:"success"`
	Commands []SpawnCommand `json:"commands"`
}

type ackRequest struct {
	IDs []string `json:"ids"`
	ID  string   `json:"id,omitempty"`
}

type ackResponse struct {
	Success   bool `json:"success"`
	Remaining int  `json:"remaining"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Success      bool   `json:"success"`
	Status       string `json:"status"`
	PendingCount int    `json:"pendingCount"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handler) handleSpawn(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	cmd, err := ParseSpawnRequest(body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	cmd = h.queue.Enqueue(cmd)
	logger.Info("terminal spawn queued", "id", cmd.ID, "name", cmd.Name, "x", cmd.X, "y", cmd.Y)
	WriteJSON(w, http.StatusOK, spawnResponse{
		Success: true,
		Command: cmd,
		Message: fmt.Sprintf("Terminal spawn queued: %s at (%s, %s)", cmd.Name, formatNumber(cmd.X), formatNumber(cmd.Y)),
	})
}

func (h *Handler) handlePending(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, pendingResponse{Success: true, Commands: h.queue.Pending()})
}

func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	ids, err := ParseAckRequest(body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	remaining := h.queue.Ack(ids)
	logger.Debug("commands acknowledged", "ids", ids, "remaining", remaining)
	WriteJSON(w, http.StatusOK, ackResponse{Success: true, Remaining: remaining})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Success: true, Status: "ok", PendingCount: h.queue.Len()})
}

// ParseAckRequest returns the command ids named by an ack body. "ids" is
// used when it is an array of strings; otherwise the single "id" is.
func ParseAckRequest(body []byte) ([]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	var ids []string
	if raw, ok := fields["ids"]; ok && json.Unmarshal(raw, &ids) == nil && ids != nil {
		return ids, nil
	}
	return []string{stringField(fields, "id")}, nil
}

// ParseSpawnRequest builds a command from a spawn request body. The body must
// be a JSON object; fields that are missing or of the wrong type take their
// defaults.
func ParseSpawnRequest(body []byte) (SpawnCommand, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return SpawnCommand{}, err
	}
	if fields == nil {
		return SpawnCommand{}, errors.New("invalid request: body must be a JSON object")
	}
	cmd := SpawnCommand{
		Name:    stringField(fields, "name"),
		X:       numberField(fields, "x", DefaultX),
		Y:       numberField(fields, "y", DefaultY),
		Width:   numberField(fields, "width", DefaultWidth),
		Height:  numberField(fields, "height", DefaultHeight),
		Command: stringField(fields, "command"),
		Profile: stringField(fields, "profile"),
	}
	if cmd.Name == "" {
		cmd.Name = DefaultName
	}
	return cmd, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok && !isNull(raw) && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func numberField(fields map[string]json.RawMessage, key string, def float64) float64 {
	var f float64
	if raw, ok := fields[key]; ok && !isNull(raw) && json.Unmarshal(raw, &f) == nil {
		return f
	}
	return def
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// formatNumber prints integral values without a fraction.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write response", "err", err)
	}
}

// WriteError writes {success:false, error} with the given status.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: err.Error()})
}
