// Package report assembles per-day availability into the published
// AvailabilityReport.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"courtavail/internal/availability"
	"courtavail/internal/fileutil"
	"courtavail/internal/filter"
	appLog "courtavail/internal/log"
	"courtavail/internal/model"
	"courtavail/internal/records"
)

const (
	// TimestampLayout formats LastUpdated.
	TimestampLayout = "2006-01-02 15:04:05"

	defaultWorkers = 4
)

// Builder computes availability for a set of dates. All fields are read
// only during Build, so one Builder may be shared.
type Builder struct {
	Hours model.WeeklyHours
	Rule  filter.Rule

	// Location is the facility time zone. Defaults to time.Local.
	Location *time.Location

	// Now stamps LastUpdated. Defaults to time.Now.
	Now func() time.Time

	// Workers bounds how many dates are computed concurrently.
	Workers int
}

type dayResult struct {
	key   string
	slots []string
	ok    bool
	diags []model.Diagnostic
}

// BuildFromText runs the whole pipeline over raw event blobs: parse,
// normalize dates, then Build. Parse and normalization diagnostics come
// first in the report.
func (b *Builder) BuildFromText(dates []time.Time, raw []string) model.Report {
	recs, parseDiags := records.Parse(raw)
	recs, normDiags := records.NormalizeDates(recs, b.location())

	rep := b.Build(dates, recs)

	diags := make([]model.Diagnostic, 0, len(parseDiags)+len(normDiags)+len(rep.Diagnostics))
	diags = append(diags, parseDiags...)
	diags = append(diags, normDiags...)
	diags = append(diags, rep.Diagnostics...)
	if len(diags) > 0 {
		rep.Diagnostics = diags
	}
	return rep
}

// Build computes the free slots of every date from normalized records.
// It never fails as a whole: a date whose computation fails is omitted and
// the failure recorded in Diagnostics.
func (b *Builder) Build(dates []time.Time, recs []model.EventRecord) model.Report {
	loc := b.location()
	results := make([]dayResult, len(dates))

	workers := b.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, d := range dates {
		i, d := i, d
		g.Go(func() error {
			results[i] = b.day(d, loc, recs)
			return nil
		})
	}
	// Per-date failures become diagnostics; no goroutine returns an error.
	g.Wait()

	rep := model.Report{
		Availability: make(map[string][]string, len(dates)),
		LastUpdated:  b.now().In(loc).Format(TimestampLayout),
	}
	for _, r := range results {
		if r.ok {
			rep.Availability[r.key] = r.slots
		}
		rep.Diagnostics = append(rep.Diagnostics, r.diags...)
	}

	return rep
}

// day computes one date. The calendar day of d is taken as written and
// placed in loc.
func (b *Builder) day(d time.Time, loc *time.Location, recs []model.EventRecord) (res dayResult) {
	date := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	res.key = date.Format(time.DateOnly)

	defer func() {
		if r := recover(); r != nil {
			appLog.Error("availability computation panicked", fmt.Errorf("%v", r), "date", res.key)
			res = dayResult{
				key: res.key,
				diags: append(res.diags, model.Diagnostic{
					Kind:    model.KindInternal,
					Date:    res.key,
					Message: fmt.Sprint(r),
				}),
			}
		}
	}()

	window, err := availability.Window(date, b.Hours)
	if err != nil {
		kind := model.KindInternal
		var le *availability.LookupError
		if errors.As(err, &le) {
			kind = model.KindWeekdayLookup
		}
		res.diags = append(res.diags, model.Diagnostic{Kind: kind, Date: res.key, Message: err.Error()})
		return res
	}

	pairs := filter.SelectBusy(date, recs, b.Rule)
	free, diags := availability.Compute(date, window, pairs)
	res.diags = append(res.diags, diags...)

	res.slots = make([]string, 0, len(free))
	for _, f := range free {
		res.slots = append(res.slots, f.Slot())
	}
	res.ok = true

	appLog.Debug("availability computed", "date", res.key, "busy", len(pairs), "free", len(res.slots))
	return res
}

func (b *Builder) location() *time.Location {
	if b.Location == nil {
		return time.Local
	}
	return b.Location
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// Horizon returns days consecutive dates starting with the calendar day of
// from, each at midnight in from's location.
func Horizon(from time.Time, days int) []time.Time {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	out := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, start.AddDate(0, 0, i))
	}
	return out
}

// DatesOf returns the distinct dates of normalized records in ascending
// order. Records that failed normalization are ignored.
func DatesOf(recs []model.EventRecord) []time.Time {
	seen := make(map[string]bool)
	var out []time.Time
	for _, r := range recs {
		if r.Date.IsZero() {
			continue
		}
		key := r.Date.Format(time.DateOnly)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r.Date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Save writes rep as JSON to path atomically.
func Save(path string, rep model.Report) error {
	if path == "" {
		return errors.New("report path is empty")
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return fileutil.WriteAtomic(path, data, 0o755, 0o644)
}

// Load reads a report previously written by Save.
func Load(path string) (model.Report, error) {
	var rep model.Report
	data, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		return rep, fmt.Errorf("decode report %s: %w", path, err)
	}
	if rep.Availability == nil {
		rep.Availability = map[string][]string{}
	}
	return rep, nil
}
