package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtavail/internal/model"
)

var friday = time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04:05", hhmm)
	if err != nil {
		t, err = time.Parse("15:04", hhmm)
		if err != nil {
			panic(err)
		}
	}
	return time.Date(friday.Year(), friday.Month(), friday.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func window(open, close string) model.OperatingWindow {
	return model.OperatingWindow{Open: at(open), Close: at(close)}
}

func busy(start, end string) model.BusyInterval {
	return model.BusyInterval{Start: at(start), End: at(end)}
}

func free(start, end string) model.FreeInterval {
	return model.FreeInterval{Start: at(start), End: at(end)}
}

func weekly() model.WeeklyHours {
	return model.WeeklyHours{
		time.Monday:    {Open: "6:30am", Close: "11pm"},
		time.Tuesday:   {Open: "6:30am", Close: "11pm"},
		time.Wednesday: {Open: "6:30am", Close: "11pm"},
		time.Thursday:  {Open: "6:30am", Close: "11pm"},
		time.Friday:    {Open: "6:30am", Close: "9pm"},
		time.Saturday:  {Open: "8am", Close: "8pm"},
		time.Sunday:    {Open: "8am", Close: "9pm"},
	}
}

func TestWindow(t *testing.T) {
	w, err := Window(friday, weekly())
	require.NoError(t, err)
	assert.Equal(t, window("06:30", "21:00"), w)

	for d := 0; d < 7; d++ {
		date := friday.AddDate(0, 0, d)
		w, err := Window(date, weekly())
		require.NoError(t, err)
		assert.True(t, w.Open.Before(w.Close), date.Weekday().String())
	}
}

func TestWindowLookupError(t *testing.T) {
	hours := weekly()
	delete(hours, time.Friday)

	_, err := Window(friday, hours)
	var le *LookupError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, time.Friday, le.Weekday)
}

func TestWindowRejectsInvertedHours(t *testing.T) {
	hours := weekly()
	hours[time.Friday] = model.DayHours{Open: "9pm", Close: "6:30am"}
	_, err := Window(friday, hours)
	assert.Error(t, err)
}

func TestFree(t *testing.T) {
	cases := []struct {
		name   string
		window model.OperatingWindow
		busy   []model.BusyInterval
		want   []model.FreeInterval
	}{
		{
			name:   "no busy intervals",
			window: window("06:30", "21:00"),
			want:   []model.FreeInterval{free("06:30", "21:00")},
		},
		{
			name:   "single afternoon booking",
			window: window("06:30", "21:00"),
			busy:   []model.BusyInterval{busy("14:00", "16:00")},
			want:   []model.FreeInterval{free("06:30", "14:00"), free("16:00", "21:00")},
		},
		{
			name:   "sub minute gap is merged",
			window: window("08:00", "12:00"),
			busy:   []model.BusyInterval{busy("09:00", "10:00"), busy("10:00:30", "11:00")},
			want:   []model.FreeInterval{free("08:00", "09:00"), free("11:00", "12:00")},
		},
		{
			name:   "exactly one minute gap is merged",
			window: window("08:00", "12:00"),
			busy:   []model.BusyInterval{busy("09:00", "10:00"), busy("10:01", "11:00")},
			want:   []model.FreeInterval{free("08:00", "09:00"), free("11:00", "12:00")},
		},
		{
			name:   "two minute gap is kept",
			window: window("08:00", "12:00"),
			busy:   []model.BusyInterval{busy("09:00", "10:00"), busy("10:02", "11:00")},
			want: []model.FreeInterval{
				free("08:00", "09:00"), free("10:00", "10:02"), free("11:00", "12:00"),
			},
		},
		{
			name:   "overlapping and unsorted",
			window: window("08:00", "20:00"),
			busy: []model.BusyInterval{
				busy("15:00", "17:00"), busy("09:00", "12:00"), busy("10:00", "11:00"), busy("11:30", "13:00"),
			},
			want: []model.FreeInterval{
				free("08:00", "09:00"), free("13:00", "15:00"), free("17:00", "20:00"),
			},
		},
		{
			name:   "busy before open and after close",
			window: window("08:00", "20:00"),
			busy:   []model.BusyInterval{busy("06:00", "09:00"), busy("21:00", "22:00")},
			want:   []model.FreeInterval{free("09:00", "20:00")},
		},
		{
			name:   "busy runs past close",
			window: window("08:00", "20:00"),
			busy:   []model.BusyInterval{busy("18:00", "23:00")},
			want:   []model.FreeInterval{free("08:00", "18:00")},
		},
		{
			name:   "all day booking",
			window: window("08:00", "20:00"),
			busy:   []model.BusyInterval{busy("00:00", "23:59")},
			want:   []model.FreeInterval{},
		},
		{
			name:   "booking ends exactly at close",
			window: window("08:00", "20:00"),
			busy:   []model.BusyInterval{busy("08:00", "20:00")},
			want:   []model.FreeInterval{},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Free(c.window, c.busy))
		})
	}
}

func TestFreeReconstitutesWindow(t *testing.T) {
	w := window("06:30", "23:00")
	b := []model.BusyInterval{busy("07:00", "08:15"), busy("12:00", "13:30"), busy("18:45", "22:00")}

	got := Free(w, b)
	require.Len(t, got, 4)

	// Interleave free and busy and check they tile the window exactly.
	cursor := w.Open
	for i, f := range got {
		assert.Equal(t, cursor, f.Start)
		cursor = f.End
		if i < len(b) {
			assert.Equal(t, cursor, b[i].Start)
			cursor = b[i].End
		}
	}
	assert.Equal(t, w.Close, cursor)
}

func TestFreeDoesNotModifyInput(t *testing.T) {
	b := []model.BusyInterval{busy("15:00", "16:00"), busy("09:00", "10:00")}
	_ = Free(window("08:00", "20:00"), b)
	assert.Equal(t, at("15:00"), b[0].Start)
}

func TestResolve(t *testing.T) {
	pairs := []model.TextRange{
		{Start: "2:00pm", End: "4:00pm"},
		{Start: "7", End: "10:30pm"},
		{Start: "11", End: "1pm"},
		{Start: "10pm", End: "12am"},
		{Start: "10", End: "12am"},
		{Start: "soon", End: "later"},
		{Start: "5pm", End: "3pm"},
		{Start: "5", End: "am/pm"},
	}

	got, diags := Resolve(friday, pairs)
	require.Len(t, got, 5)
	assert.Equal(t, busy("14:00", "16:00"), got[0])
	assert.Equal(t, busy("19:00", "22:30"), got[1])
	assert.Equal(t, busy("11:00", "13:00"), got[2])
	assert.Equal(t, model.BusyInterval{Start: at("22:00"), End: friday.AddDate(0, 0, 1)}, got[3])
	assert.Equal(t, model.BusyInterval{Start: at("22:00"), End: friday.AddDate(0, 0, 1)}, got[4])

	require.Len(t, diags, 3)
	assert.Equal(t, model.KindTimeFormat, diags[0].Kind)
	assert.Equal(t, "2025-03-07", diags[0].Date)
	assert.Equal(t, "soon - later", diags[0].Input)
	assert.Equal(t, model.KindInvalidInterval, diags[1].Kind)
	assert.Equal(t, model.KindTimeFormat, diags[2].Kind)
}

func TestResolveInferredMeridiem(t *testing.T) {
	// The end carries both meridiems, so it never parses and the range is
	// dropped as a time format problem.
	got, diags := Resolve(friday, []model.TextRange{{Start: "5", End: "11:59pm (9am rain date)"}})
	assert.Empty(t, got)
	require.Len(t, diags, 1)
	assert.Equal(t, model.KindTimeFormat, diags[0].Kind)

	got, diags = Resolve(friday, []model.TextRange{{Start: "5", End: "7pm"}})
	assert.Empty(t, diags)
	assert.Equal(t, []model.BusyInterval{busy("17:00", "19:00")}, got)
}

func TestResolveEndingAtMidnight(t *testing.T) {
	nextMidnight := friday.AddDate(0, 0, 1)
	cases := []struct {
		name  string
		pair  model.TextRange
		start time.Time
	}{
		{"explicit pm start", model.TextRange{Start: "10pm", End: "12am"}, at("22:00")},
		{"borrowed am is read as pm", model.TextRange{Start: "10", End: "12am"}, at("22:00")},
		{"bare noon hour", model.TextRange{Start: "12", End: "12am"}, at("12:00")},
		{"explicit am start spans the day", model.TextRange{Start: "10am", End: "12am"}, at("10:00")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, diags := Resolve(friday, []model.TextRange{c.pair})
			assert.Empty(t, diags)
			assert.Equal(t, []model.BusyInterval{{Start: c.start, End: nextMidnight}}, got)
		})
	}
}

func TestCompute(t *testing.T) {
	w := window("06:30", "21:00")

	got, diags := Compute(friday, w, []model.TextRange{{Start: "2:00pm", End: "4:00pm"}})
	assert.Empty(t, diags)
	slots := make([]string, 0, len(got))
	for _, f := range got {
		slots = append(slots, f.Slot())
	}
	assert.Equal(t, []string{"06:30-14:00", "16:00-21:00"}, slots)

	got, diags = Compute(friday, w, nil)
	assert.Empty(t, diags)
	assert.Equal(t, []model.FreeInterval{free("06:30", "21:00")}, got)

	// A late booking written as "10 - 12am" sits after Friday's close.
	got, diags = Compute(friday, w, []model.TextRange{{Start: "10", End: "12am"}})
	assert.Empty(t, diags)
	slots = slots[:0]
	for _, f := range got {
		slots = append(slots, f.Slot())
	}
	assert.Equal(t, []string{"06:30-21:00"}, slots)
}
