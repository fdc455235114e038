// Package filter selects the records that occupy the tracked court on a
// given date.
package filter

import (
	"regexp"
	"strings"
	"time"

	"courtavail/internal/model"
	"courtavail/internal/records"
)

// Secondary describes a booking that blocks the court without naming it:
// a record whose location mentions Room and also contains Keyword.
type Secondary struct {
	Room    string
	Keyword string
}

// Rule decides whether a record's location text occupies the resource.
type Rule struct {
	labels    []*regexp.Regexp
	secondary []Secondary
}

// NewRule builds a matcher for label and its aliases. A label only matches
// when it is not directly followed by another digit, so "Court #3" does not
// match "Court #30".
func NewRule(label string, aliases []string, secondary []Secondary) Rule {
	var r Rule
	for _, l := range append([]string{label}, aliases...) {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		r.labels = append(r.labels, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(l)+`(?:\D|$)`))
	}
	for _, s := range secondary {
		if strings.TrimSpace(s.Room) == "" || strings.TrimSpace(s.Keyword) == "" {
			continue
		}
		r.secondary = append(r.secondary, Secondary{
			Room:    strings.ToLower(s.Room),
			Keyword: strings.ToLower(s.Keyword),
		})
	}
	return r
}

// Matches reports whether location occupies the resource.
func (r Rule) Matches(location string) bool {
	if location == "" {
		return false
	}
	for _, re := range r.labels {
		if re.MatchString(location) {
			return true
		}
	}
	lower := strings.ToLower(location)
	for _, s := range r.secondary {
		if strings.Contains(lower, s.Room) && strings.Contains(lower, s.Keyword) {
			return true
		}
	}
	return false
}

// SelectBusy returns the raw (start, end) text of every record on date that
// occupies the resource, in encounter order.
func SelectBusy(date time.Time, recs []model.EventRecord, rule Rule) []model.TextRange {
	target := records.CanonicalDate(date)

	var out []model.TextRange
	for _, rec := range recs {
		if rec.DateText != target {
			continue
		}
		if !rule.Matches(rec.Location) {
			continue
		}
		out = append(out, model.TextRange{Start: rec.StartText, End: rec.EndText})
	}
	return out
}
