// Package feed acquires raw event text blobs from the facility calendar.
// Every source yields strings in the shape the records parser expects:
//
//	<Weekday>, <Month> <Day>, <Year>[, <start> - <end>] <location/description>
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courtavail/internal/config"
)

// Source yields raw event blobs.
type Source interface {
	Fetch(ctx context.Context) ([]string, error)
}

// New builds the Source selected by cfg.Kind. loc is the facility zone that
// ICS times are converted into.
func New(cfg config.SourceConfig, loc *time.Location) (Source, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Kind {
	case "page":
		return &PageSource{URL: cfg.URL, Selector: cfg.Selector, Timeout: timeout}, nil
	case "ics":
		return NewICSSource(cfg.URL, cfg.CacheDir, timeout, loc), nil
	case "file":
		return &FileSource{Patterns: cfg.Files}, nil
	default:
		return nil, fmt.Errorf("feed: unknown source kind %q", cfg.Kind)
	}
}

// flatten collapses all whitespace runs (including newlines from rendered
// page text) into single spaces.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
