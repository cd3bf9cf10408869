package server

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestStartSSHServerNeedsStore(t *testing.T) {
	err := StartSSHServer(context.Background(), &SSHServerConfig{Host: "localhost", Port: "0"})
	if err == nil || !strings.Contains(err.Error(), "store") {
		t.Fatalf("err = %v, want missing store error", err)
	}
}

func TestDefaultHostKeyPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p, err := DefaultHostKeyPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != "tabz_canvas_host_key" || filepath.Base(filepath.Dir(p)) != ".ssh" {
		t.Errorf("path = %q", p)
	}
}
