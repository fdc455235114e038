// Package refresh runs the fetch, parse and build pipeline and publishes the
// resulting report.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"courtavail/internal/feed"
	appLog "courtavail/internal/log"
	"courtavail/internal/metrics"
	"courtavail/internal/model"
	"courtavail/internal/records"
	"courtavail/internal/report"
)

// ErrNoReport means no refresh has published a report yet.
var ErrNoReport = errors.New("no availability report published yet")

// Store holds the most recently published report.
type Store struct {
	mu  sync.RWMutex
	rep model.Report
	at  time.Time
	set bool
}

// Set publishes rep.
func (s *Store) Set(rep model.Report, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rep = rep
	s.at = at
	s.set = true
}

// Get returns the current report and whether one has been published.
func (s *Store) Get() (model.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rep, s.set
}

// PublishedAt returns when the current report was published.
func (s *Store) PublishedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.at
}

// Runner executes refreshes. Runs are serialized.
type Runner struct {
	Source  feed.Source
	Builder *report.Builder

	// HorizonDays is the number of dates, starting today, in each report.
	HorizonDays int

	// OutputPath, if set, receives the report JSON after each run.
	OutputPath string

	Store   *Store
	Metrics *metrics.Metrics

	mu sync.Mutex
}

// Run fetches raw events and rebuilds the report for the horizon. When the
// fetch fails the previously published report is left in place and
// returned together with the error.
func (r *Runner) Run(ctx context.Context) (model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runID := uuid.NewString()
	started := time.Now()
	appLog.Info("refresh start", "run", runID)

	raw, err := r.Source.Fetch(ctx)
	if err != nil {
		r.Metrics.ObserveRefresh(metrics.ResultFetchError, time.Since(started))
		appLog.Error("refresh fetch failed; keeping previous report", err, "run", runID)
		prev, _ := r.Store.Get()
		return prev, fmt.Errorf("fetch events: %w", err)
	}

	loc := r.Builder.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if r.Builder.Now != nil {
		now = r.Builder.Now
	}

	recs, parseDiags := records.Parse(raw)
	recs, normDiags := records.NormalizeDates(recs, loc)

	dates := report.Horizon(now().In(loc), r.horizon())
	rep := r.Builder.Build(dates, recs)

	diags := append(append(parseDiags, normDiags...), rep.Diagnostics...)
	if len(diags) > 0 {
		rep.Diagnostics = diags
	}
	for _, d := range rep.Diagnostics {
		appLog.Warn("refresh diagnostic", "run", runID, "kind", d.Kind, "date", d.Date, "input", d.Input, "message", d.Message)
	}

	published := time.Now()
	r.Store.Set(rep, published)
	r.Metrics.ObserveReport(rep, len(recs), published)

	if r.OutputPath != "" {
		if err := report.Save(r.OutputPath, rep); err != nil {
			r.Metrics.ObserveRefresh(metrics.ResultSaveError, time.Since(started))
			appLog.Error("refresh save failed", err, "run", runID, "path", r.OutputPath)
			return rep, fmt.Errorf("save report: %w", err)
		}
	}

	took := time.Since(started)
	r.Metrics.ObserveRefresh(metrics.ResultOK, took)
	appLog.Info("refresh done", "run", runID, "blobs", len(raw), "records", len(recs),
		"dates", len(rep.Availability), "diagnostics", len(rep.Diagnostics), "took", took.String())
	return rep, nil
}

func (r *Runner) horizon() int {
	if r.HorizonDays <= 0 {
		return 7
	}
	return r.HorizonDays
}
