package metadata

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSlice(t *testing.T, dir, name, content string) FileEntry {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}

	hash, size, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}

	return FileEntry{Store: name, File: name, Items: 1, Bytes: size, Hash: hash}
}

func TestCalculateHash(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := CalculateHash([]byte("abc")); got != want {
		t.Errorf("CalculateHash() = %s, want %s", got, want)
	}
}

func TestWriteAndVerify(t *testing.T) {
	dir := t.TempDir()

	m := &Manifest{
		RunID: "run-1",
		Day:   "2024-03-01",
		Files: []FileEntry{
			writeSlice(t, dir, "a.json", `[{"id":"1"}]`),
			writeSlice(t, dir, "b.json", `[{"id":"2"}]`),
		},
	}

	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if m.Hash == "" || m.LastModify.IsZero() {
		t.Fatal("Expected Write to sign the manifest")
	}

	got, err := Verify(dir)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if got.RunID != "run-1" || len(got.Files) != 2 {
		t.Errorf("Unexpected manifest: %+v", got)
	}
}

func TestVerify_DetectsTamperedFile(t *testing.T) {
	dir := t.TempDir()

	m := &Manifest{Files: []FileEntry{writeSlice(t, dir, "a.json", `[]`)}}
	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(`[{"id":"x"}]`), 0644); err != nil {
		t.Fatalf("Failed to tamper: %v", err)
	}

	_, err := Verify(dir)
	if !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Expected ErrHashMismatch, got %v", err)
	}
}

func TestVerify_DetectsEditedManifest(t *testing.T) {
	dir := t.TempDir()

	m := &Manifest{Files: []FileEntry{writeSlice(t, dir, "a.json", `[]`)}}
	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	m.Files[0].Items = 99
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), mustJSON(t, m), 0644); err != nil {
		t.Fatalf("Failed to rewrite manifest: %v", err)
	}

	_, err := Verify(dir)
	if !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Expected ErrHashMismatch, got %v", err)
	}
}

func TestVerify_MissingFile(t *testing.T) {
	dir := t.TempDir()

	m := &Manifest{Files: []FileEntry{writeSlice(t, dir, "a.json", `[]`)}}
	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "a.json")); err != nil {
		t.Fatalf("Failed to remove: %v", err)
	}

	if _, err := Verify(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestVerify_NoManifest(t *testing.T) {
	if _, err := Verify(t.TempDir()); !errors.Is(err, ErrNoManifest) {
		t.Errorf("Expected ErrNoManifest, got %v", err)
	}
}

func TestVerify_NoHash(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{"files":[]}`), 0644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}

	if _, err := Verify(dir); !errors.Is(err, ErrNoHashFound) {
		t.Errorf("Expected ErrNoHashFound, got %v", err)
	}
}

func mustJSON(t *testing.T, m *Manifest) []byte {
	t.Helper()

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	return data
}
