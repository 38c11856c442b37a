package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/remcokranenburg/tunneltanktournament/internal/net/proto"
)

func TestWriteSchemaCreatesDirectories(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "proto.schema.json")
	if err := writeSchema(out, proto.Schema()); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("schema is not valid json: %v", err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be renamed away, stat err=%v", err)
	}
}
