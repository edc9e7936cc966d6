package engine

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sourceTemplate = `{"version": "1.0", "designWidth": 100, "designHeight": 50, "objects": [{"type": "text", "text": "{{id}}"}]}`

func TestReadTemplate_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sourceTemplate))
	}))
	defer srv.Close()

	tpl, err := ReadTemplate(srv.URL + "/badge.json")
	if err != nil {
		t.Fatalf("Failed to read template: %v", err)
	}
	if len(tpl.Objects) != 1 {
		t.Errorf("Expected 1 object, got %d", len(tpl.Objects))
	}
}

func TestReadTemplate_SlowURL(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
		w.Write([]byte(sourceTemplate))
	}))
	defer srv.Close()
	defer close(done)

	saved := templateClient
	templateClient = &http.Client{Timeout: 50 * time.Millisecond}
	defer func() { templateClient = saved }()

	start := time.Now()
	if _, err := ReadTemplate(srv.URL + "/badge.json"); err == nil {
		t.Fatal("Expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected the fetch to give up quickly, took %v", elapsed)
	}
}
