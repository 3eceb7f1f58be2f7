// Package rawdata reads the category groups written by the fetch stage.
package rawdata

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"hotprices/internal/models"
)

// Placeholders substituted into the raw file pattern.
const (
	StorePlaceholder = "{store}"
	DayPlaceholder   = "{day}"
)

// DefaultPattern matches every raw file of a store for a day, compressed or not.
const DefaultPattern = "{store}/{day}*.json*"

// Loader errors.
var (
	ErrNoRawData      = errors.New("no raw data")
	ErrInvalidPattern = errors.New("invalid raw file pattern")
)

// LoadStats describes one Load call.
type LoadStats struct {
	Files    int
	Bytes    int64
	Duration time.Duration
}

// Loader reads raw category groups from OutputDir.
type Loader struct {
	OutputDir string
	Pattern   string

	fsys fs.FS
}

// NewLoader creates a loader rooted at outputDir. An empty pattern uses DefaultPattern.
func NewLoader(outputDir, pattern string) *Loader {
	if pattern == "" {
		pattern = DefaultPattern
	}

	return &Loader{
		OutputDir: outputDir,
		Pattern:   pattern,
		fsys:      os.DirFS(outputDir),
	}
}

// Glob returns the raw files matching store and day, relative to OutputDir, in lexical order.
func (l *Loader) Glob(store, day string) ([]string, error) {
	pattern := strings.NewReplacer(StorePlaceholder, store, DayPlaceholder, day).Replace(l.Pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPattern, pattern)
	}

	matches, err := doublestar.Glob(l.fs(), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s: %w", pattern, err)
	}

	sort.Strings(matches)

	return matches, nil
}

// Load reads and concatenates every raw file of store for day.
func (l *Loader) Load(ctx context.Context, store, day string) ([]models.CategoryGroup, LoadStats, error) {
	startTime := time.Now()

	var stats LoadStats

	files, err := l.Glob(store, day)
	if err != nil {
		return nil, stats, err
	}

	if len(files) == 0 {
		stats.Duration = time.Since(startTime)
		return nil, stats, fmt.Errorf("%w: store %s on %s in %s", ErrNoRawData, store, day, l.OutputDir)
	}

	var groups []models.CategoryGroup

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		fileGroups, size, err := l.readFile(name)
		if err != nil {
			return nil, stats, err
		}

		groups = append(groups, fileGroups...)
		stats.Files++
		stats.Bytes += size
	}

	stats.Duration = time.Since(startTime)

	return groups, stats, nil
}

func (l *Loader) readFile(name string) ([]models.CategoryGroup, int64, error) {
	f, err := l.fs().Open(name)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open raw file %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat raw file %s: %w", name, err)
	}

	var r io.Reader = f

	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to open gzip stream %s: %w", name, err)
		}
		defer gz.Close()

		r = gz
	}

	var groups []models.CategoryGroup
	if err := json.NewDecoder(r).Decode(&groups); err != nil {
		return nil, 0, fmt.Errorf("failed to decode raw file %s: %w", name, err)
	}

	return groups, info.Size(), nil
}

func (l *Loader) fs() fs.FS {
	if l.fsys == nil {
		l.fsys = os.DirFS(l.OutputDir)
	}

	return l.fsys
}
