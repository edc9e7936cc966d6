package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testTemplateJSON = `{
  "version": "1.0",
  "name": "badge",
  "designWidth": 300,
  "designHeight": 200,
  "objects": [
    {"type": "textbox", "left": 10, "top": 10, "width": 200, "height": 30, "text": "Hello {{name}}", "fontSize": 18},
    {"type": "textbox", "left": 10, "top": 60, "width": 100, "height": 100, "text": "{{url}}"}
  ]
}`

const testRecordsCSV = "name,url\nAda,https://x/1\nGrace,https://x/2\nLinus,https://x/3\n"

func writeFixtures(t *testing.T) (string, string, string) {
	t.Helper()

	dir := t.TempDir()
	tplPath := filepath.Join(dir, "badge.json")
	csvPath := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(tplPath, []byte(testTemplateJSON), 0644); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}
	if err := os.WriteFile(csvPath, []byte(testRecordsCSV), 0644); err != nil {
		t.Fatalf("Failed to write records: %v", err)
	}

	t.Setenv("LABEL_DATA_DIR", filepath.Join(dir, "data"))
	return dir, tplPath, csvPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExportCommand(t *testing.T) {
	dir, tplPath, csvPath := writeFixtures(t)
	outPath := filepath.Join(dir, "out.pdf")

	out, err := run(t, "export", tplPath, csvPath, "-o", outPath, "--block-size", "1")
	if err != nil {
		t.Fatalf("Export failed: %v (%s)", err, out)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("Expected a PDF file")
	}
	if !strings.Contains(out, "out.pdf") {
		t.Errorf("Expected summary naming the file, got %q", out)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".labelctl-*"))
	if len(leftovers) != 0 {
		t.Errorf("Expected temp files to be cleaned up, got %v", leftovers)
	}
}

func TestExportCommand_Rejected(t *testing.T) {
	dir, tplPath, csvPath := writeFixtures(t)
	outPath := filepath.Join(dir, "out.pdf")

	tests := []struct {
		name string
		args []string
	}{
		{"reversed range", []string{"--pages", "3-1"}},
		{"page past the end", []string{"--pages", "9"}},
		{"garbage selection", []string{"--pages", "abc"}},
		{"printer spool into a pdf", []string{"--printer", "file://" + filepath.Join(dir, "spool.bin")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"export", tplPath, csvPath, "-o", outPath, "-q"}, tt.args...)
			if _, err := run(t, args...); err == nil {
				t.Error("Expected error")
			}
			if _, err := os.Stat(outPath); !os.IsNotExist(err) {
				t.Error("Expected no output file")
			}
		})
	}
}

func TestExportCommand_Printer(t *testing.T) {
	dir, tplPath, csvPath := writeFixtures(t)
	spool := filepath.Join(dir, "spool.bin")
	copyPath := filepath.Join(dir, "copy.bin")

	if _, err := run(t, "export", tplPath, csvPath, "--printer", "file://"+spool, "-o", copyPath, "-q"); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	sent, err := os.ReadFile(spool)
	if err != nil {
		t.Fatalf("Expected spool file: %v", err)
	}
	kept, err := os.ReadFile(copyPath)
	if err != nil {
		t.Fatalf("Expected output copy: %v", err)
	}
	if len(sent) == 0 || !bytes.Equal(sent, kept) {
		t.Error("Expected the output to be a copy of the spool")
	}
	if bytes.HasPrefix(kept, []byte("%PDF")) {
		t.Error("Expected an ESC/POS spool, got a PDF")
	}
}

func TestRecordsCommand(t *testing.T) {
	_, _, csvPath := writeFixtures(t)

	out, err := run(t, "records", csvPath, "--format", "json")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	var got struct {
		Columns []string `json:"columns"`
		Count   int      `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if got.Count != 3 {
		t.Errorf("Expected 3 records, got %d", got.Count)
	}
	if strings.Join(got.Columns, ",") != "name,url" {
		t.Errorf("Expected columns name,url, got %v", got.Columns)
	}

	out, err = run(t, "records", csvPath, "--limit", "1")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if !strings.Contains(out, "Ada") || strings.Contains(out, "Grace") {
		t.Errorf("Expected only the first row, got %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	dir, tplPath, _ := writeFixtures(t)

	other := filepath.Join(dir, "other.csv")
	if err := os.WriteFile(other, []byte("name\nAda\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "validate", tplPath, "--records", other)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !strings.Contains(out, "{{url}} has no matching column") {
		t.Errorf("Expected a warning for url, got %q", out)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"objects": [{"type": "blob"}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "validate", tplPath, bad); err == nil {
		t.Error("Expected error for invalid template")
	}
}

func TestPreviewCommand(t *testing.T) {
	dir, tplPath, csvPath := writeFixtures(t)
	outPath := filepath.Join(dir, "p.png")

	if _, err := run(t, "preview", tplPath, "-r", csvPath, "--record", "2", "-o", outPath); err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Expected preview file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("Expected a PNG file")
	}

	if _, err := run(t, "preview", tplPath, "-r", csvPath, "--record", "7", "-o", outPath); err == nil {
		t.Error("Expected error for record out of range")
	}
}

func TestRemoteCommand(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/command" {
			t.Errorf("Expected /command, got %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		got = req["command"]

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "message": "Added textbox", "id": "abc"}`))
	}))
	defer srv.Close()

	out, err := run(t, "remote", "--server", srv.URL, "object", "add", "textbox", "Hello {{name}}")
	if err != nil {
		t.Fatalf("Remote failed: %v", err)
	}
	if got != `object add textbox "Hello {{name}}"` {
		t.Errorf("Expected quoted command, got %q", got)
	}
	if !strings.Contains(out, "Added textbox") || !strings.Contains(out, "id: abc") {
		t.Errorf("Expected message and data, got %q", out)
	}
}

func TestRemoteCommand_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success": false, "error": "unknown command: nope"}`))
	}))
	defer srv.Close()

	_, err := run(t, "remote", "-s", srv.URL, "nope")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("Expected server error, got %v", err)
	}
}

func TestJoinCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"status"}, "status"},
		{[]string{"object", "set", "a", "text=hi there"}, `object set a "text=hi there"`},
		{[]string{"template", "rename", ""}, `template rename ""`},
	}

	for _, tt := range tests {
		if got := joinCommand(tt.args); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}
