package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesJSONFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := New(dir, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	zap.S().Infow("show added", "id", 1396)
	log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "showshelf.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var last map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if last["msg"] != "show added" || last["level"] != "info" || last["id"] != float64(1396) {
		t.Errorf("unexpected entry %v", last)
	}
}
