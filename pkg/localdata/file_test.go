package localdata

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackendRoundTrip(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("new file backend: %v", err)
	}

	if _, ok, err := b.Load("cart"); err != nil || ok {
		t.Fatalf("expected missing record, got ok=%v err=%v", ok, err)
	}

	if err := b.Store("cart", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("store: %v", err)
	}
	data, ok, err := b.Load("cart")
	if err != nil || !ok {
		t.Fatalf("load after store: ok=%v err=%v", ok, err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected record data: %q", data)
	}

	if err := b.Store("cart", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _, _ = b.Load("cart")
	if string(data) != `{"a":2}` {
		t.Fatalf("overwrite not visible: %q", data)
	}

	if err := b.Delete("cart"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := b.Load("cart"); ok {
		t.Fatalf("record should be gone after delete")
	}
	// Second delete is a no-op.
	if err := b.Delete("cart"); err != nil {
		t.Fatalf("delete missing record: %v", err)
	}
}

func TestFileBackendLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("new file backend: %v", err)
	}
	if err := b.Store("session", []byte(`{"token":"x"}`)); err != nil {
		t.Fatalf("store: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(entries))
	}
	if got := entries[0].Name(); got != "session.json" {
		t.Fatalf("unexpected file name: %q", got)
	}
}

func TestFileBackendSanitizesRecordNames(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("new file backend: %v", err)
	}
	if err := b.Store("../escape", []byte("x")); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.json")); err != nil {
		t.Fatalf("record should be contained in base dir: %v", err)
	}
}
