package backend

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type storePayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFileStore_Roundtrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	in := storePayload{Name: "test", Count: 42}
	if err := store.Save("sample", in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var out storePayload
	if err := store.Load("sample", &out); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out != in {
		t.Errorf("roundtrip changed payload: %+v != %+v", out, in)
	}
}

func TestFileStore_MissingKey(t *testing.T) {
	store := NewFileStore(t.TempDir())

	var out storePayload
	if err := store.Load("never-saved", &out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing key should return os.ErrNotExist, got %v", err)
	}
}

func TestFileStore_CorruptData(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	var out storePayload
	err := store.Load("bad", &out)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		t.Errorf("corrupt data should be a distinct error, got %v", err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	store := NewFileStore(t.TempDir())

	store.Save("sample", storePayload{Name: "x"})
	if err := store.Delete("sample"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var out storePayload
	if err := store.Load("sample", &out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("deleted key should be gone, got %v", err)
	}

	// deleting twice is a no-op
	if err := store.Delete("sample"); err != nil {
		t.Errorf("double delete should be a no-op, got %v", err)
	}
}

func TestFileStore_CreatesDirOnSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store := NewFileStore(dir)

	if err := store.Save("sample", storePayload{}); err != nil {
		t.Fatalf("Save into missing dir failed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	var out storePayload
	if err := store.Load("missing", &out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing key should return os.ErrNotExist, got %v", err)
	}

	in := storePayload{Name: "mem", Count: 7}
	if err := store.Save("k", in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Load("k", &out); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out != in {
		t.Errorf("roundtrip changed payload: %+v != %+v", out, in)
	}

	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Load("k", &out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("deleted key should be gone, got %v", err)
	}
}
