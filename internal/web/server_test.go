package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/automation"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/backend"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/config"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func newTestServer(t *testing.T, opts ...Option) (*canvas.Store, *httptest.Server) {
	t.Helper()
	store := canvas.NewStore()
	opts = append([]Option{WithKeymap(config.NewKeybindRegistry(config.DefaultConfig()))}, opts...)
	s := NewServer(DefaultConfig(), store, opts...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return store, srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestStateIncludesBackendFlag(t *testing.T) {
	store, srv := newTestServer(t)
	store.SpawnTerminal(canvas.SpawnOptions{Name: "a"})
	store.SetBackendConnected(true)

	var st StateResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/canvas/state", nil, &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !st.BackendConnected {
		t.Error("backendConnected = false")
	}
	if len(st.Terminals) != 1 || st.Terminals[0].Name != "a" {
		t.Errorf("terminals = %+v", st.Terminals)
	}
	if st.Zoom != 1 {
		t.Errorf("zoom = %v", st.Zoom)
	}
}

func TestTerminalRoutes(t *testing.T) {
	store, srv := newTestServer(t)

	var created terminalResponse
	code := doJSON(t, http.MethodPost, srv.URL+"/api/canvas/terminals", map[string]any{"name": "build"}, &created)
	if code != http.StatusCreated {
		t.Fatalf("spawn status = %d", code)
	}
	if created.Terminal.Position != (canvas.Point{X: 100, Y: 100}) {
		t.Errorf("position = %+v, want (100,100)", created.Terminal.Position)
	}

	var updated terminalResponse
	code = doJSON(t, http.MethodPatch, srv.URL+"/api/canvas/terminals/"+created.Terminal.ID,
		map[string]any{"size": map[string]float64{"width": 10, "height": 10}, "sessionId": "forged"}, &updated)
	if code != http.StatusOK {
		t.Fatalf("patch status = %d", code)
	}
	if updated.Terminal.Size != canvas.MinTerminalSize {
		t.Errorf("size = %+v, want clamped to %+v", updated.Terminal.Size, canvas.MinTerminalSize)
	}
	if updated.Terminal.SessionID != nil {
		t.Error("session id was accepted from the client")
	}

	if code := doJSON(t, http.MethodDelete, srv.URL+"/api/canvas/terminals/"+created.Terminal.ID, nil, nil); code != http.StatusOK {
		t.Errorf("delete status = %d", code)
	}
	if len(store.Terminals()) != 0 {
		t.Error("terminal still on canvas")
	}
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	store, srv := newTestServer(t)
	store.SpawnTerminal(canvas.SpawnOptions{Name: "keep"})
	store.AddFile(canvas.FileInput{Name: "keep.txt", Content: "x", FileType: canvas.FileText})
	store.SaveLayout("keep")
	before, _ := json.Marshal(store.State())

	var events atomic.Int32
	stop := store.Observe(func(canvas.Event) { events.Add(1) })
	defer stop()

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPatch, "/api/canvas/terminals/nope", map[string]any{"name": "x"}},
		{http.MethodDelete, "/api/canvas/terminals/nope", nil},
		{http.MethodPatch, "/api/canvas/files/nope", map[string]any{"name": "x"}},
		{http.MethodDelete, "/api/canvas/files/nope", nil},
		{http.MethodGet, "/api/canvas/files/nope/render", nil},
		{http.MethodPost, "/api/canvas/layouts/nope/load", nil},
		{http.MethodDelete, "/api/canvas/layouts/nope", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var res automation.ErrorResponse
			if code := doJSON(t, tt.method, srv.URL+tt.path, tt.body, &res); code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", code)
			}
			if res.Success || res.Error == "" {
				t.Errorf("body = %+v", res)
			}
		})
	}

	if n := events.Load(); n != 0 {
		t.Errorf("unknown ids emitted %d store events", n)
	}
	if after, _ := json.Marshal(store.State()); !bytes.Equal(before, after) {
		t.Errorf("state changed by requests for unknown ids:\nbefore %s\nafter  %s", before, after)
	}
}

func uploadFiles(t *testing.T, url string, fields map[string]string, files map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for _, name := range []string{"notes.txt", "app.js", "empty.txt"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	_ = mw.Close()
	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestDropFiles(t *testing.T) {
	store, srv := newTestServer(t)

	resp := uploadFiles(t, srv.URL+"/api/canvas/files",
		map[string]string{"x": "300", "y": "200"},
		map[string]string{"notes.txt": "hello <b>", "app.js": "const a = 1;\n", "empty.txt": ""},
	)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res dropResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("added %d files, want 2", len(res.Files))
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Name != "empty.txt" {
		t.Errorf("skipped = %+v", res.Skipped)
	}
	if res.Files[0].Position != (canvas.Point{X: 300, Y: 200}) {
		t.Errorf("first file at %+v, want drop point", res.Files[0].Position)
	}
	if res.Files[1].Position != (canvas.Point{X: 330, Y: 230}) {
		t.Errorf("second file at %+v, want staggered", res.Files[1].Position)
	}
	if res.Files[1].FileType != canvas.FileCode {
		t.Errorf("app.js type = %s", res.Files[1].FileType)
	}

	render, err := http.Get(srv.URL + "/api/canvas/files/" + res.Files[0].ID + "/render")
	if err != nil {
		t.Fatal(err)
	}
	defer render.Body.Close()
	body, _ := io.ReadAll(render.Body)
	if !strings.Contains(string(body), "hello &lt;b&gt;") {
		t.Errorf("render = %q", body)
	}
	if ct := render.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}

	if len(store.Files()) != 2 {
		t.Errorf("store has %d files", len(store.Files()))
	}
}

func TestDropRejectsBadInput(t *testing.T) {
	_, srv := newTestServer(t)

	resp := uploadFiles(t, srv.URL+"/api/canvas/files", map[string]string{"x": "abc", "y": "1"},
		map[string]string{"notes.txt": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad drop point status = %d", resp.StatusCode)
	}

	resp = uploadFiles(t, srv.URL+"/api/canvas/files", nil, map[string]string{"empty.txt": ""})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("all-skipped status = %d", resp.StatusCode)
	}

	resp = uploadFiles(t, srv.URL+"/api/canvas/files", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("no parts status = %d", resp.StatusCode)
	}
}

func TestLayoutRoutes(t *testing.T) {
	store, srv := newTestServer(t)
	store.SpawnTerminal(canvas.SpawnOptions{Name: "one"})

	if code := doJSON(t, http.MethodPost, srv.URL+"/api/canvas/layouts", map[string]string{"name": "  "}, nil); code != http.StatusBadRequest {
		t.Errorf("empty name status = %d", code)
	}

	var saved layoutResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/canvas/layouts", map[string]string{"name": "work"}, &saved); code != http.StatusCreated {
		t.Fatalf("save status = %d", code)
	}
	if len(saved.Layout.Terminals) != 1 {
		t.Errorf("layout terminals = %d", len(saved.Layout.Terminals))
	}

	var list layoutsResponse
	doJSON(t, http.MethodGet, srv.URL+"/api/canvas/layouts", nil, &list)
	if len(list.Layouts) != 1 || list.Layouts[0].Name != "work" {
		t.Errorf("layouts = %+v", list.Layouts)
	}

	store.SpawnTerminal(canvas.SpawnOptions{Name: "two"})
	var loaded loadResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/canvas/layouts/"+saved.Layout.ID+"/load", nil, &loaded); code != http.StatusOK {
		t.Fatalf("load status = %d", code)
	}
	if len(loaded.Terminals) != 1 || loaded.Terminals[0].Name != "one" {
		t.Errorf("terminals after load = %+v", loaded.Terminals)
	}

	if code := doJSON(t, http.MethodDelete, srv.URL+"/api/canvas/layouts/"+saved.Layout.ID, nil, nil); code != http.StatusOK {
		t.Errorf("delete status = %d", code)
	}
	if len(store.Layouts()) != 0 {
		t.Error("layout not deleted")
	}
}

func TestViewportRoutes(t *testing.T) {
	store, srv := newTestServer(t)

	var res viewportResponse
	doJSON(t, http.MethodPost, srv.URL+"/api/canvas/viewport/zoom", map[string]float64{"delta": 0.1}, &res)
	if math.Abs(res.Viewport.Zoom-1.1) > 1e-9 {
		t.Errorf("zoom = %v, want 1.1", res.Viewport.Zoom)
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/canvas/viewport/zoom", map[string]float64{"delta": 5}, &res)
	if res.Viewport.Zoom != canvas.MaxZoom {
		t.Errorf("zoom = %v, want clamped to %v", res.Viewport.Zoom, canvas.MaxZoom)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/canvas/viewport/zoom", map[string]any{}, nil); code != http.StatusBadRequest {
		t.Errorf("missing delta status = %d", code)
	}

	store.SetViewport(canvas.Viewport{Offset: canvas.Point{X: 40, Y: -20}, Zoom: 0.5})
	doJSON(t, http.MethodPost, srv.URL+"/api/canvas/viewport/reset", nil, &res)
	if res.Viewport != canvas.DefaultViewport() {
		t.Errorf("viewport = %+v after reset", res.Viewport)
	}
}

func TestAutomationRoutesMounted(t *testing.T) {
	_, srv := newTestServer(t)
	var res map[string]any
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/canvas/spawn", map[string]any{"name": "ci"}, &res); code != http.StatusOK {
		t.Fatalf("spawn status = %d", code)
	}
	var health automation.HealthResponse
	doJSON(t, http.MethodGet, srv.URL+"/api/canvas/health", nil, &health)
	if health.PendingCount != 1 {
		t.Errorf("pending = %d, want 1", health.PendingCount)
	}
}

func TestCORS(t *testing.T) {
	store := canvas.NewStore()
	cfg := DefaultConfig()
	cfg.AllowOrigins = []string{"chrome-extension://abc"}
	srv := httptest.NewServer(NewServer(cfg, store).Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/canvas/spawn", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "chrome-extension://abc" {
		t.Errorf("allow origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/canvas/state", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestProfilesWithoutBackend(t *testing.T) {
	_, srv := newTestServer(t)
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/canvas/profiles", nil, nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	resp, err := http.Get(srv.URL + "/ws/terminals/any")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("relay status = %d, want 503", resp.StatusCode)
	}
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		in   InputEvent
		want string
	}{
		{InputEvent{Key: "n", Ctrl: true}, "ctrl+n"},
		{InputEvent{Key: "N", Meta: true}, "super+n"},
		{InputEvent{Key: "0", Ctrl: true}, "ctrl+0"},
		{InputEvent{Key: "?", Shift: true}, "?"},
		{InputEvent{Key: "ArrowLeft", Shift: true}, "shift+arrowleft"},
		{InputEvent{Key: "x"}, "x"},
	}
	for _, tt := range tests {
		if got := tt.in.KeyString(); got != tt.want {
			t.Errorf("KeyString(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(EventMessage) bool) EventMessage {
	t.Helper()
	for {
		var msg EventMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestEventStream(t *testing.T) {
	store, srv := newTestServer(t)
	store.SpawnTerminal(canvas.SpawnOptions{Name: "first"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()

	snap := readUntil(t, ctx, conn, func(m EventMessage) bool { return m.Type == MsgSnapshot })
	if snap.State == nil || len(snap.State.Terminals) != 1 {
		t.Fatalf("snapshot = %+v", snap.State)
	}

	if err := wsjson.Write(ctx, conn, InputEvent{Type: InputKey, Key: "n", Ctrl: true}); err != nil {
		t.Fatal(err)
	}
	added := readUntil(t, ctx, conn, func(m EventMessage) bool { return m.Type == string(canvas.EventTerminalAdded) })
	if added.ID == "" || added.State == nil || len(added.State.Terminals) != 2 {
		t.Errorf("terminal.added = %+v", added)
	}

	if err := wsjson.Write(ctx, conn, InputEvent{Type: InputWheel, X: 0, Y: 0, DeltaY: -100}); err != nil {
		t.Fatal(err)
	}
	zoomed := readUntil(t, ctx, conn, func(m EventMessage) bool { return m.Type == string(canvas.EventViewportChanged) })
	if math.Abs(zoomed.State.Zoom-1.1) > 1e-9 {
		t.Errorf("zoom after wheel = %v", zoomed.State.Zoom)
	}

	if err := wsjson.Write(ctx, conn, InputEvent{Type: InputKey, Key: "x"}); err != nil {
		t.Fatal(err)
	}
	action := readUntil(t, ctx, conn, func(m EventMessage) bool { return m.Type == MsgAction })
	if action.Action != "close_item" {
		t.Errorf("action = %q, want close_item", action.Action)
	}
}

func TestEventStreamDragsCard(t *testing.T) {
	store, srv := newTestServer(t)
	term := store.SpawnTerminal(canvas.SpawnOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()
	readUntil(t, ctx, conn, func(m EventMessage) bool { return m.Type == MsgSnapshot })

	for _, in := range []InputEvent{
		{Type: InputPointerDown, X: 110, Y: 110},
		{Type: InputPointerMove, X: 160, Y: 130},
		{Type: InputPointerUp},
	} {
		if err := wsjson.Write(ctx, conn, in); err != nil {
			t.Fatal(err)
		}
	}
	readUntil(t, ctx, conn, func(m EventMessage) bool {
		return m.Type == string(canvas.EventTerminalUpdated) && m.ID == term.ID
	})
	got, _ := store.Terminal(term.ID)
	if got.Position != (canvas.Point{X: 150, Y: 120}) {
		t.Errorf("position = %+v, want (150,120)", got.Position)
	}
}

// fakeBackend answers the auth, spawn and profile calls and echoes input
// back as output.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth-token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	mux.HandleFunc("POST /api/spawn", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"session": map[string]string{"name": "sess-1"}})
	})
	mux.HandleFunc("GET /api/browser/profiles", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"profiles":[{"id":"p1","name":"Default"},{"id":"p2","name":"Green","themeName":"matrix"}]}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := context.Background()
		for {
			var m backend.Message
			if err := wsjson.Read(ctx, c, &m); err != nil {
				return
			}
			if m.Type != backend.MsgInput {
				continue
			}
			var data string
			_ = json.Unmarshal(m.Payload, &data)
			_ = wsjson.Write(ctx, c, map[string]any{"type": "output", "payload": "echo:" + data})
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProfilesResolveThemes(t *testing.T) {
	be := fakeBackend(t)
	client := backend.NewClient(be.URL, "ws"+strings.TrimPrefix(be.URL, "http"))
	store := canvas.NewStore()
	_, srv := newTestServer(t, WithBackend(client, backend.NewManager(store, client)))

	var res profilesResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/canvas/profiles", nil, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(res.Profiles) != 2 {
		t.Fatalf("profiles = %d", len(res.Profiles))
	}
	if res.Profiles[0].ThemeName != "high-contrast" || res.Profiles[0].Theme.Background == "" {
		t.Errorf("default profile = %+v", res.Profiles[0])
	}
	if res.Profiles[1].Theme.Foreground == res.Profiles[0].Theme.Foreground {
		t.Error("matrix profile got the default theme")
	}
}

func TestTerminalRelay(t *testing.T) {
	be := fakeBackend(t)
	client := backend.NewClient(be.URL, "ws"+strings.TrimPrefix(be.URL, "http"))
	store := canvas.NewStore()
	links := backend.NewManager(store, client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	links.Start(ctx)

	s := NewServer(DefaultConfig(), store, WithBackend(client, links))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws/terminals/unknown")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown terminal status = %d", resp.StatusCode)
	}

	term := store.SpawnTerminal(canvas.SpawnOptions{Name: "dev"})
	var link *backend.Link
	for deadline := time.Now().Add(3 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
		if l, ok := links.Link(term.ID); ok && l.Connected() {
			link = l
			break
		}
	}
	if link == nil {
		t.Fatal("terminal never connected")
	}

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/terminals/"+term.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()

	payload, _ := json.Marshal("pwd")
	if err := wsjson.Write(ctx, conn, backend.Message{Type: backend.MsgInput, Payload: payload}); err != nil {
		t.Fatal(err)
	}

	var seen strings.Builder
	for !strings.Contains(seen.String(), "echo:pwd") {
		var msg backend.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read: %v (output so far %q)", err, seen.String())
		}
		var out string
		_ = json.Unmarshal(msg.Payload, &out)
		seen.WriteString(out)
	}
	if !strings.Contains(seen.String(), "Connected to TabzChrome backend") {
		t.Errorf("backlog missing status line: %q", seen.String())
	}
}
