// Package metadata writes and verifies the manifest that accompanies published price slices.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ManifestFile is the manifest's file name inside the data directory.
const ManifestFile = "manifest.json"

// Manifest verification errors.
var (
	ErrNoManifest   = errors.New("no manifest found")
	ErrNoHashFound  = errors.New("no hash found in manifest")
	ErrHashMismatch = errors.New("hash mismatch")
)

// FileEntry describes one published file.
type FileEntry struct {
	Store string `json:"store"`
	File  string `json:"file"`
	Items int    `json:"items"`
	Bytes int64  `json:"bytes"`
	Hash  string `json:"sha256"`
}

// Manifest lists the files of one publish.
type Manifest struct {
	RunID      string      `json:"runId,omitempty"`
	Day        string      `json:"day,omitempty"`
	LastModify time.Time   `json:"lastModify"`
	Files      []FileEntry `json:"files"`
	Hash       string      `json:"hash"`
}

// CalculateHash computes the hex SHA-256 of content.
func CalculateHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// HashFile returns the hex SHA-256 and size of the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// entriesHash covers every entry line so that editing the file list is detected.
func entriesHash(files []FileEntry) string {
	var sb strings.Builder
	for _, f := range files {
		fmt.Fprintf(&sb, "%s %s %d %s\n", f.Store, f.File, f.Items, f.Hash)
	}

	return CalculateHash([]byte(sb.String()))
}

// Sign stamps the manifest with a fresh timestamp and the hash of its entries.
func Sign(m *Manifest) {
	m.LastModify = time.Now().UTC().Truncate(time.Second)
	m.Hash = entriesHash(m.Files)
}

// Write signs m and stores it in dir.
func Write(dir string, m *Manifest) error {
	Sign(m)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// Read loads the manifest of dir.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &m, nil
}

// Verify checks the manifest of dir and re-hashes every listed file.
// All mismatches are reported, joined.
func Verify(dir string) (*Manifest, error) {
	m, err := Read(dir)
	if err != nil {
		return nil, err
	}

	if m.Hash == "" {
		return m, ErrNoHashFound
	}

	if calculated := entriesHash(m.Files); calculated != m.Hash {
		return m, fmt.Errorf("%w: manifest expected %s, got %s", ErrHashMismatch, m.Hash, calculated)
	}

	var errs []error

	for _, entry := range m.Files {
		hash, _, err := HashFile(filepath.Join(dir, entry.File))
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if hash != entry.Hash {
			errs = append(errs, fmt.Errorf("%w: %s expected %s, got %s", ErrHashMismatch, entry.File, entry.Hash, hash))
		}
	}

	return m, errors.Join(errs...)
}
