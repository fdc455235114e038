// Package clock turns loosely written time-of-day tokens ("7pm", "10:30am",
// "14:30", a bare "7" next to "9pm") into TimeOfDay values.
package clock

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// On places t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, date.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Token is the result of parsing one time expression.
type Token struct {
	Clock TimeOfDay

	// Inferred is "am" or "pm" when the meridiem was copied from the
	// context token rather than written in the text itself.
	Inferred string
}

// Flipped returns the clock with the opposite meridiem. Only meaningful for
// tokens whose meridiem was inferred.
func (t Token) Flipped() (TimeOfDay, bool) {
	if t.Inferred == "" {
		return t.Clock, false
	}
	return TimeOfDay{Hour: (t.Clock.Hour + 12) % 24, Minute: t.Clock.Minute}, true
}

// TimeFormatError reports a token that none of the known patterns accept.
type TimeFormatError struct {
	Text    string
	Context string
}

func (e *TimeFormatError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("time format not recognized: %q (context %q)", e.Text, e.Context)
	}
	return fmt.Sprintf("time format not recognized: %q", e.Text)
}

type pattern struct {
	name    string
	re      *regexp.Regexp
	extract func(m []string) (TimeOfDay, bool)
}

// patterns are tried in order; the first full match wins.
var patterns = []pattern{
	{
		name: "hour meridiem",
		re:   regexp.MustCompile(`^(\d{1,2})(am|pm)$`),
		extract: func(m []string) (TimeOfDay, bool) {
			return twelveHour(m[1], "0", m[2])
		},
	},
	{
		name: "hour:minute meridiem",
		re:   regexp.MustCompile(`^(\d{1,2}):(\d{2})(am|pm)$`),
		extract: func(m []string) (TimeOfDay, bool) {
			return twelveHour(m[1], m[2], m[3])
		},
	},
	{
		name: "24h hour:minute",
		re:   regexp.MustCompile(`^(\d{1,2}):(\d{2})$`),
		extract: func(m []string) (TimeOfDay, bool) {
			return twentyFourHour(m[1], m[2])
		},
	},
	{
		// "730pm"
		name: "compact meridiem",
		re:   regexp.MustCompile(`^(\d{1,2})(\d{2})(am|pm)$`),
		extract: func(m []string) (TimeOfDay, bool) {
			return twelveHour(m[1], m[2], m[3])
		},
	},
	{
		// Leading-zero retry: "930" is read as "0930".
		name: "compact 24h",
		re:   regexp.MustCompile(`^(\d{3,4})$`),
		extract: func(m []string) (TimeOfDay, bool) {
			padded := strings.Repeat("0", 4-len(m[1])) + m[1]
			return twentyFourHour(padded[:2], padded[2:])
		},
	},
	{
		name: "noon",
		re:   regexp.MustCompile(`^noon$`),
		extract: func([]string) (TimeOfDay, bool) {
			return TimeOfDay{Hour: 12}, true
		},
	},
	{
		name: "midnight",
		re:   regexp.MustCompile(`^midnight$`),
		extract: func([]string) (TimeOfDay, bool) {
			return TimeOfDay{}, true
		},
	},
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// Parse resolves text into a time of day. When text is a bare number and
// context ends in a meridiem, that meridiem is borrowed ("7" with context
// "10:30pm" is 19:00). Only the trailing meridiem of context counts, so a
// stray "am" elsewhere in it is ignored.
func Parse(text, context string) (Token, error) {
	s := normalize(text)
	var tok Token

	if digitsOnly.MatchString(s) && context != "" {
		c := normalize(context)
		switch {
		case strings.HasSuffix(c, "pm"):
			s += "pm"
			tok.Inferred = "pm"
		case strings.HasSuffix(c, "am"):
			s += "am"
			tok.Inferred = "am"
		}
	}

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if c, ok := p.extract(m); ok {
			tok.Clock = c
			return tok, nil
		}
	}

	return Token{}, &TimeFormatError{Text: text, Context: context}
}

// normalize lower-cases and drops whitespace and dots, so "6:30 A.M."
// becomes "6:30am".
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '.', '\u00a0':
			return -1
		}
		return r
	}, s)
}

func twelveHour(hs, ms, meridiem string) (TimeOfDay, bool) {
	h, err := strconv.Atoi(hs)
	if err != nil || h < 1 || h > 12 {
		return TimeOfDay{}, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, false
	}
	h %= 12
	if meridiem == "pm" {
		h += 12
	}
	return TimeOfDay{Hour: h, Minute: m}, true
}

func twentyFourHour(hs, ms string) (TimeOfDay, bool) {
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: h, Minute: m}, true
}
