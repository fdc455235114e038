// Package records parses raw calendar text blobs of the form
//
//	<Weekday>, <Month> <Day>, <Year>[, <start> - <end>]<location and description>
//
// into model.EventRecord values.
package records

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	appLog "courtavail/internal/log"
	"courtavail/internal/model"
)

const (
	// CanonicalLayout is the one textual date form used for comparing
	// records against target dates.
	CanonicalLayout = "Monday, January 02, 2006"

	AllDayStart = "12am"
	AllDayEnd   = "11:59pm"
)

// ShapeError reports a blob that does not start with a recognizable date.
type ShapeError struct {
	Raw string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("event text does not match date/time/location shape: %q", e.Raw)
}

// DateNormalizationError reports a record date that could not be re-rendered
// in canonical form.
type DateNormalizationError struct {
	Text string
}

func (e *DateNormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize date %q", e.Text)
}

const timeToken = `\d+(?::\d+)?\s?(?i:am|pm)?`

var blobPattern = regexp.MustCompile(
	`(?s)^([A-Za-z]+, [A-Za-z]+ \d+, \d{4})(?:, (` + timeToken + `) - (` + timeToken + `))?(.*)$`,
)

// rangeRecovery matches a time range that ended up at the front of the
// trailing text instead of right after the date.
type rangeRecovery struct {
	name string
	re   *regexp.Regexp
}

// recoveries are tried in order against the trailing text. Groups: start,
// end, remainder.
var recoveries = []rangeRecovery{
	{
		name: "comma led range",
		re:   regexp.MustCompile(`(?s)^[,;:]?\s*(` + timeToken + `) - (` + timeToken + `)(.*)$`),
	},
	{
		name: "unicode dash range",
		re:   regexp.MustCompile(`(?s)^[,;:]?\s*(` + timeToken + `)\s*[–—]\s*(` + timeToken + `)(.*)$`),
	},
	{
		name: "worded range",
		re:   regexp.MustCompile(`(?s)^[,;:]?\s*(` + timeToken + `) to (` + timeToken + `)(.*)$`),
	},
}

// dateLayouts are accepted when normalizing record dates. The first entry
// also accepts the canonical (zero padded) form.
var dateLayouts = []string{
	"Monday, January 2, 2006",
	"Mon, January 2, 2006",
	"Monday, Jan 2, 2006",
	"Mon, Jan 2, 2006",
}

// Parse converts raw blobs into records. Blank blobs are ignored; blobs
// without a leading date are skipped and reported as record_shape
// diagnostics.
func Parse(raw []string) ([]model.EventRecord, []model.Diagnostic) {
	out := make([]model.EventRecord, 0, len(raw))
	var diags []model.Diagnostic

	for _, blob := range raw {
		text := strings.TrimSpace(blob)
		if text == "" {
			continue
		}

		rec, err := parseOne(text)
		if err != nil {
			appLog.Debug("event text skipped", "reason", err.Error())
			diags = append(diags, model.Diagnostic{
				Kind:    model.KindRecordShape,
				Input:   text,
				Message: err.Error(),
			})
			continue
		}
		out = append(out, rec)
	}

	return out, diags
}

func parseOne(text string) (model.EventRecord, error) {
	m := blobPattern.FindStringSubmatch(text)
	if m == nil {
		return model.EventRecord{}, &ShapeError{Raw: text}
	}

	rec := model.EventRecord{
		DateText:  m[1],
		StartText: strings.TrimSpace(m[2]),
		EndText:   strings.TrimSpace(m[3]),
		Raw:       text,
	}
	location := strings.TrimSpace(m[4])

	if rec.StartText == "" {
		for _, r := range recoveries {
			rm := r.re.FindStringSubmatch(location)
			if rm == nil {
				continue
			}
			rec.StartText = strings.TrimSpace(rm[1])
			rec.EndText = strings.TrimSpace(rm[2])
			location = rm[3]
			break
		}
	}

	if rec.StartText == "" {
		rec.StartText = AllDayStart
		rec.EndText = AllDayEnd
		rec.AllDay = true
	}

	rec.Location = cleanLocation(location)
	return rec, nil
}

func cleanLocation(s string) string {
	return strings.TrimSpace(strings.TrimLeft(s, ",;:-| \t\r\n"))
}

// CanonicalDate renders t in the canonical record date form.
func CanonicalDate(t time.Time) string {
	return t.Format(CanonicalLayout)
}

// NormalizeDates rewrites every record's DateText into canonical form and
// fills Date in loc. Records already in canonical form are unchanged.
// Records whose date cannot be parsed keep their text and are reported as
// date_normalization diagnostics so they do not vanish silently.
func NormalizeDates(recs []model.EventRecord, loc *time.Location) ([]model.EventRecord, []model.Diagnostic) {
	if loc == nil {
		loc = time.Local
	}

	out := make([]model.EventRecord, len(recs))
	var diags []model.Diagnostic

	for i, rec := range recs {
		d, err := parseDate(rec.DateText, loc)
		if err != nil {
			diags = append(diags, model.Diagnostic{
				Kind:    model.KindDateNormalization,
				Input:   rec.Raw,
				Message: err.Error(),
			})
			out[i] = rec
			continue
		}
		rec.Date = d
		rec.DateText = CanonicalDate(d)
		out[i] = rec
	}

	return out, diags
}

func parseDate(text string, loc *time.Location) (time.Time, error) {
	text = strings.Join(strings.Fields(text), " ")
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateNormalizationError{Text: text}
}
