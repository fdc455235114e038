// Package availability computes the free windows of a single day: the
// facility's operating window minus every busy interval on the court.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"courtavail/internal/clock"
	"courtavail/internal/model"
)

// MergeThreshold is the smallest gap between busy intervals that is
// reported as free time. Gaps of this length or shorter are absorbed.
const MergeThreshold = time.Minute

// LookupError reports a weekday missing from the operating hours table.
type LookupError struct {
	Weekday time.Weekday
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no operating hours for %s", e.Weekday)
}

// InvalidIntervalError reports a busy range that resolves to end before start.
type InvalidIntervalError struct {
	Range      model.TextRange
	Start, End clock.TimeOfDay
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("busy range %q - %q resolves to %s-%s (end before start)",
		e.Range.Start, e.Range.End, e.Start, e.End)
}

// Window resolves the operating window of date from the weekly table.
func Window(date time.Time, hours model.WeeklyHours) (model.OperatingWindow, error) {
	dh, ok := hours[date.Weekday()]
	if !ok {
		return model.OperatingWindow{}, &LookupError{Weekday: date.Weekday()}
	}

	open, err := clock.Parse(dh.Open, "")
	if err != nil {
		return model.OperatingWindow{}, fmt.Errorf("%s open: %w", date.Weekday(), err)
	}
	closing, err := clock.Parse(dh.Close, "")
	if err != nil {
		return model.OperatingWindow{}, fmt.Errorf("%s close: %w", date.Weekday(), err)
	}

	w := model.OperatingWindow{Open: open.Clock.On(date), Close: closing.Clock.On(date)}
	if !w.Open.Before(w.Close) {
		return model.OperatingWindow{}, fmt.Errorf("%s: open %s is not before close %s",
			date.Weekday(), open.Clock, closing.Clock)
	}
	return w, nil
}

// Resolve parses every text range onto date. The end text is used as
// meridiem context for the start. Unparseable or inverted ranges are
// dropped and reported.
func Resolve(date time.Time, pairs []model.TextRange) ([]model.BusyInterval, []model.Diagnostic) {
	iso := date.Format(time.DateOnly)
	out := make([]model.BusyInterval, 0, len(pairs))
	var diags []model.Diagnostic

	for _, p := range pairs {
		iv, err := resolveOne(date, p)
		if err != nil {
			diags = append(diags, model.Diagnostic{
				Kind:    kindOf(err),
				Date:    iso,
				Input:   p.Start + " - " + p.End,
				Message: err.Error(),
			})
			continue
		}
		out = append(out, iv)
	}

	return out, diags
}

func resolveOne(date time.Time, p model.TextRange) (model.BusyInterval, error) {
	startTok, err := clock.Parse(p.Start, p.End)
	if err != nil {
		return model.BusyInterval{}, err
	}
	endTok, err := clock.Parse(p.End, "")
	if err != nil {
		return model.BusyInterval{}, err
	}

	start := startTok.Clock.On(date)
	end := endTok.Clock.On(date)

	if endTok.Clock == (clock.TimeOfDay{}) {
		// A bare start borrowing "am" from "12am" is read as pm: "10 - 12am"
		// runs from 22:00, not from 10:00.
		if flipped, ok := startTok.Flipped(); ok && flipped.On(date).After(start) {
			start = flipped.On(date)
		}
		// An event ending at 12am ends at the following midnight.
		if start.After(end) {
			end = end.AddDate(0, 0, 1)
		}
	}

	if start.After(end) {
		if flipped, ok := startTok.Flipped(); ok && !flipped.On(date).After(end) {
			start = flipped.On(date)
		}
	}

	if start.After(end) {
		return model.BusyInterval{}, &InvalidIntervalError{Range: p, Start: startTok.Clock, End: endTok.Clock}
	}

	return model.BusyInterval{Start: start, End: end}, nil
}

func kindOf(err error) model.DiagnosticKind {
	var tfe *clock.TimeFormatError
	if errors.As(err, &tfe) {
		return model.KindTimeFormat
	}
	var iie *InvalidIntervalError
	if errors.As(err, &iie) {
		return model.KindInvalidInterval
	}
	return model.KindInternal
}

// Free returns the parts of window not covered by busy, sorted and
// disjoint. Busy intervals separated by MergeThreshold or less are treated
// as contiguous. busy is not modified.
func Free(window model.OperatingWindow, busy []model.BusyInterval) []model.FreeInterval {
	if len(busy) == 0 {
		return []model.FreeInterval{{Start: window.Open, End: window.Close}}
	}

	sorted := make([]model.BusyInterval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})

	out := make([]model.FreeInterval, 0, len(sorted)+1)
	cursor := window.Open

	for _, b := range sorted {
		gapEnd := b.Start
		if gapEnd.After(window.Close) {
			gapEnd = window.Close
		}
		if cursor.Add(MergeThreshold).Before(gapEnd) {
			out = append(out, model.FreeInterval{Start: cursor, End: gapEnd})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if cursor.Before(window.Close) {
		out = append(out, model.FreeInterval{Start: cursor, End: window.Close})
	}

	return out
}

// Compute resolves pairs onto date and returns the free intervals of
// window along with diagnostics for every dropped pair.
func Compute(date time.Time, window model.OperatingWindow, pairs []model.TextRange) ([]model.FreeInterval, []model.Diagnostic) {
	if len(pairs) == 0 {
		return Free(window, nil), nil
	}
	busy, diags := Resolve(date, pairs)
	return Free(window, busy), diags
}
