package model

import "time"

// EventRecord is one reservation parsed out of a raw calendar text blob.
// A record without an explicit time range is all-day: StartText "12am",
// EndText "11:59pm", AllDay true.
type EventRecord struct {
	// DateText is the date as written, rewritten into the canonical
	// "Monday, January 02, 2006" form by records.NormalizeDates.
	DateText string `json:"date_text"`
	// Date is the parsed calendar day (midnight, facility zone). Zero until
	// normalization succeeds.
	Date time.Time `json:"date"`

	StartText string `json:"start_text"`
	EndText   string `json:"end_text"`
	Location  string `json:"location"`
	AllDay    bool   `json:"all_day"`

	// Raw is the blob the record was parsed from.
	Raw string `json:"raw"`
}

// TextRange is an unparsed (start, end) pair taken from a record.
type TextRange struct {
	Start string
	End   string
}

// BusyInterval is a reservation resolved onto a concrete date.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// FreeInterval is a gap inside the operating window not covered by any
// BusyInterval.
type FreeInterval struct {
	Start time.Time
	End   time.Time
}

// Slot renders the interval as "HH:MM-HH:MM" in 24-hour form.
func (f FreeInterval) Slot() string {
	return f.Start.Format("15:04") + "-" + f.End.Format("15:04")
}

// Duration of the free interval.
func (f FreeInterval) Duration() time.Duration {
	return f.End.Sub(f.Start)
}

// OperatingWindow is the facility's open/close range on one date.
type OperatingWindow struct {
	Open  time.Time
	Close time.Time
}

// DayHours is the textual open/close pair of one weekday.
type DayHours struct {
	Open  string `yaml:"open" json:"open"`
	Close string `yaml:"close" json:"close"`
}

// WeeklyHours maps each weekday to its operating hours.
type WeeklyHours map[time.Weekday]DayHours

// Report is the published availability artifact.
type Report struct {
	// Availability maps an ISO date ("2025-03-07") to its free slots.
	Availability map[string][]string `json:"availability"`
	LastUpdated  string              `json:"last_updated"`
	Diagnostics  []Diagnostic        `json:"diagnostics,omitempty"`
}

// DiagnosticKind classifies why an input contributed nothing (or was
// flagged) during a report build.
type DiagnosticKind string

const (
	KindRecordShape       DiagnosticKind = "record_shape"
	KindDateNormalization DiagnosticKind = "date_normalization"
	KindTimeFormat        DiagnosticKind = "time_format"
	KindInvalidInterval   DiagnosticKind = "invalid_interval"
	KindWeekdayLookup     DiagnosticKind = "weekday_lookup"
	KindInternal          DiagnosticKind = "internal"
)

// Diagnostic describes a single input that was dropped, repaired or
// flagged. Date is the ISO date being computed, when known.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Date    string         `json:"date,omitempty"`
	Input   string         `json:"input,omitempty"`
	Message string         `json:"message"`
}
