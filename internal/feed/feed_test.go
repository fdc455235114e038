package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtavail/internal/config"
	"courtavail/internal/records"
)

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//courtavail//test//EN
BEGIN:VEVENT
UID:badminton@example.com
DTSTAMP:20250301T000000Z
DTSTART:20250307T190000Z
DTEND:20250307T210000Z
SUMMARY:Intramural Badminton
LOCATION:Woodruff PE Center Court #3
END:VEVENT
BEGIN:VEVENT
UID:closed@example.com
DTSTAMP:20250301T000000Z
DTSTART;VALUE=DATE:20250309
DTEND;VALUE=DATE:20250310
SUMMARY:Closed
LOCATION:Woodruff PE Center Court #3
END:VEVENT
BEGIN:VEVENT
UID:overnight@example.com
DTSTAMP:20250301T000000Z
DTSTART:20250310T030000Z
DTEND:20250310T140000Z
SUMMARY:Lock-in
LOCATION:Woodruff PE Center Court #1
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestRenderICS(t *testing.T) {
	blobs, err := RenderICS(crlf(sampleICS), newYork(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Friday, March 7, 2025, 2:00pm - 4:00pm Woodruff PE Center Court #3 Intramural Badminton",
		"Sunday, March 9, 2025 Woodruff PE Center Court #3 Closed",
		"Sunday, March 9, 2025, 11:00pm - 11:59pm Woodruff PE Center Court #1 Lock-in",
		"Monday, March 10, 2025, 12:00am - 10:00am Woodruff PE Center Court #1 Lock-in",
	}, blobs)
}

func TestRenderICSRoundTripsThroughParser(t *testing.T) {
	blobs, err := RenderICS(crlf(sampleICS), newYork(t))
	require.NoError(t, err)

	recs, diags := records.Parse(blobs)
	assert.Empty(t, diags)
	require.Len(t, recs, 4)

	assert.Equal(t, "Friday, March 7, 2025", recs[0].DateText)
	assert.Equal(t, "2:00pm", recs[0].StartText)
	assert.Equal(t, "4:00pm", recs[0].EndText)
	assert.Equal(t, "Woodruff PE Center Court #3 Intramural Badminton", recs[0].Location)

	assert.True(t, recs[1].AllDay)
	assert.Equal(t, records.AllDayStart, recs[1].StartText)
	assert.Equal(t, records.AllDayEnd, recs[1].EndText)

	assert.Equal(t, "11:59pm", recs[2].EndText)
	assert.Equal(t, "12:00am", recs[3].StartText)
}

func TestRenderICSRejectsGarbage(t *testing.T) {
	_, err := RenderICS(nil, time.UTC)
	assert.Error(t, err)
}

func TestICSSourceUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(crlf(sampleICS))
	}))

	src := NewICSSource(srv.URL+"/calendar.ics", t.TempDir(), 5*time.Second, newYork(t))

	first, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 4)

	second, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), hits.Load())

	// Server gone: the cached body is still served.
	srv.Close()
	third, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestICSSourceFailsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewICSSource(srv.URL, t.TempDir(), time.Second, time.UTC)
	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("batch_2_checkpoint.json", `[{"description": "Saturday, March 8, 2025, 3 - 4pm\n Court #3"}]`)
	write("batch_1_checkpoint.json", `[{"description": "Friday, March 7, 2025, 5pm - 6pm Court #1"}, {"description": "  "}]`)
	write("batch_3_checkpoint.json", `{not json`)

	src := &FileSource{Patterns: []string{filepath.Join(dir, "batch_*_checkpoint.json")}}
	blobs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Friday, March 7, 2025, 5pm - 6pm Court #1",
		"Saturday, March 8, 2025, 3 - 4pm Court #3",
	}, blobs)

	src = &FileSource{Patterns: []string{filepath.Join(dir, "batch_3_*.json")}}
	_, err = src.Fetch(context.Background())
	assert.Error(t, err)

	src = &FileSource{Patterns: []string{filepath.Join(dir, "none_*.json")}}
	_, err = src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	for kind, want := range map[string]any{
		"page": &PageSource{},
		"ics":  &ICSSource{},
		"file": &FileSource{},
	} {
		src, err := New(config.SourceConfig{Kind: kind, URL: "https://example.com/cal"}, time.UTC)
		require.NoError(t, err, kind)
		assert.IsType(t, want, src, kind)
	}

	_, err := New(config.SourceConfig{Kind: "ftp"}, time.UTC)
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private.ics?token=abcd"))
	assert.Equal(t, "feed://...(redacted)", redactURL("not a url"))
}
