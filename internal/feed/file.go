package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	appLog "courtavail/internal/log"
)

// FileSource reads batch checkpoint files previously written by a scrape:
// JSON arrays of objects whose "description" field holds one event blob.
type FileSource struct {
	// Patterns are glob patterns; matched files are read in sorted order.
	Patterns []string
}

type checkpointEntry struct {
	Description string `json:"description"`
}

// Fetch reads every matching file. A file that cannot be read or decoded
// is logged and skipped; Fetch fails only when no file could be read.
func (s *FileSource) Fetch(ctx context.Context) ([]string, error) {
	var files []string
	for _, pattern := range s.Patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("file source: bad pattern %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, errors.New("file source: no files match the configured patterns")
	}

	var (
		out  []string
		read int
		errs []error
	)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blobs, err := readCheckpoint(path)
		if err != nil {
			appLog.Error("checkpoint read failed", err, "path", path)
			errs = append(errs, err)
			continue
		}
		read++
		out = append(out, blobs...)
	}

	if read == 0 {
		return nil, errors.Join(errs...)
	}
	appLog.Info("checkpoint files loaded", "files", read, "blobs", len(out))
	return out, nil
}

func readCheckpoint(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []checkpointEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if s := flatten(e.Description); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
