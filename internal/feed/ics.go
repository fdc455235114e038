package feed

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "courtavail/internal/log"
)

const (
	blobDateLayout = "Monday, January 2, 2006"
	blobTimeLayout = "3:04pm"

	// maxEventDays caps how many per-day blobs one VEVENT can produce.
	maxEventDays = 31
)

// ICSSource reads a published iCalendar feed and renders every VEVENT as
// one blob per calendar day it touches.
type ICSSource struct {
	URL      string
	Location *time.Location

	getter *cachedGetter
}

// NewICSSource returns an ICSSource whose HTTP responses are cached under
// cacheDir.
func NewICSSource(url, cacheDir string, timeout time.Duration, loc *time.Location) *ICSSource {
	if loc == nil {
		loc = time.Local
	}
	return &ICSSource{
		URL:      url,
		Location: loc,
		getter:   newCachedGetter(cacheDir, timeout),
	}
}

func (s *ICSSource) Fetch(ctx context.Context) ([]string, error) {
	body, fromCache, err := s.getter.Get(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	blobs, err := RenderICS(body, s.Location)
	if err != nil {
		appLog.Error("ics parse failed", err, "url", redactURL(s.URL))
		return nil, err
	}
	appLog.Info("ics render completed", "url", redactURL(s.URL), "from_cache", fromCache, "blobs", len(blobs))
	return blobs, nil
}

// RenderICS parses an ICS payload and renders its events as text blobs in
// loc. Events without a usable DTSTART are skipped.
func RenderICS(body []byte, loc *time.Location) ([]string, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []string
	for _, ve := range cal.Events() {
		blobs, rerr := renderVEvent(ve, loc)
		if rerr != nil {
			appLog.Warn("ics vevent skipped", "reason", rerr.Error())
			continue
		}
		out = append(out, blobs...)
	}
	return out, nil
}

func renderVEvent(ve *ical.VEvent, loc *time.Location) ([]string, error) {
	var summary, location string
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		location = p.Value
	}
	tail := flatten(location + " " + summary)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return nil, errors.New("missing DTSTART")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, err
	}
	end, _ := ve.GetEndAt()

	if isDateValue(dtStart) {
		// Dates are taken as written, not shifted between zones.
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		if end.IsZero() {
			end = start.AddDate(0, 0, 1)
		} else {
			end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
		}
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	} else {
		start = start.In(loc)
		if end.IsZero() {
			end = start
		}
		end = end.In(loc)
		if !end.After(start) {
			return []string{rangeBlob(start, start.Format(blobTimeLayout), start.Format(blobTimeLayout), tail)}, nil
		}
	}

	return splitDays(start, end, tail), nil
}

// splitDays renders [start, end) as one blob per calendar day. A day that
// is fully covered becomes an all-day blob without a time range.
func splitDays(start, end time.Time, tail string) []string {
	var out []string
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for i := 0; i < maxEventDays && day.Before(end); i++ {
		next := day.AddDate(0, 0, 1)

		s := start
		if s.Before(day) {
			s = day
		}
		e := end
		if e.After(next) {
			e = next
		}

		switch {
		case s.Equal(day) && e.Equal(next):
			out = append(out, joinBlob(day.Format(blobDateLayout), tail))
		case e.Equal(next):
			out = append(out, rangeBlob(day, s.Format(blobTimeLayout), "11:59pm", tail))
		default:
			out = append(out, rangeBlob(day, s.Format(blobTimeLayout), e.Format(blobTimeLayout), tail))
		}
		day = next
	}
	return out
}

func rangeBlob(day time.Time, start, end, tail string) string {
	return joinBlob(day.Format(blobDateLayout)+", "+start+" - "+end, tail)
}

func joinBlob(head, tail string) string {
	if tail == "" {
		return head
	}
	return head + " " + tail
}

// isDateValue reports whether a DTSTART carries a DATE rather than a
// DATE-TIME value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
