package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		context string
		want    TimeOfDay
	}{
		{"hour pm", "7pm", "", TimeOfDay{19, 0}},
		{"hour am", "7am", "", TimeOfDay{7, 0}},
		{"hour minute", "10:30am", "", TimeOfDay{10, 30}},
		{"upper case and spaces", " 6:30 AM ", "", TimeOfDay{6, 30}},
		{"dotted meridiem", "9 p.m.", "", TimeOfDay{21, 0}},
		{"midnight", "12am", "", TimeOfDay{0, 0}},
		{"noon", "12pm", "", TimeOfDay{12, 0}},
		{"end of day", "11:59pm", "", TimeOfDay{23, 59}},
		{"24 hour", "14:30", "", TimeOfDay{14, 30}},
		{"24 hour single digit", "6:05", "", TimeOfDay{6, 5}},
		{"bare hour pm context", "7", "10:30pm", TimeOfDay{19, 0}},
		{"bare hour am context", "9", "11am", TimeOfDay{9, 0}},
		{"bare twelve pm context", "12", "1pm", TimeOfDay{12, 0}},
		{"leading zero retry", "930", "", TimeOfDay{9, 30}},
		{"compact four digits", "1745", "", TimeOfDay{17, 45}},
		{"compact meridiem", "730pm", "", TimeOfDay{19, 30}},
		{"named noon", "Noon", "", TimeOfDay{12, 0}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tok, err := Parse(c.text, c.context)
			require.NoError(t, err)
			assert.Equal(t, c.want, tok.Clock)
		})
	}
}

func TestParseInferenceFlags(t *testing.T) {
	tok, err := Parse("7", "10:30pm")
	require.NoError(t, err)
	assert.Equal(t, "pm", tok.Inferred)

	tok, err = Parse("7pm", "10:30am")
	require.NoError(t, err)
	assert.Empty(t, tok.Inferred, "explicit meridiem is never overridden")
	assert.Equal(t, TimeOfDay{19, 0}, tok.Clock)

	tok, err = Parse("5", "9am-10pm")
	require.NoError(t, err)
	assert.Equal(t, "pm", tok.Inferred, "only the trailing meridiem is borrowed")
	assert.Equal(t, TimeOfDay{17, 0}, tok.Clock)

	tok, err = Parse("7", "10:00 AM")
	require.NoError(t, err)
	assert.Equal(t, "am", tok.Inferred)
	assert.Equal(t, TimeOfDay{7, 0}, tok.Clock)

	// No trailing meridiem: nothing is borrowed and a bare hour does not parse.
	_, err = Parse("5", "11:59pm (9am rain date)")
	var tfe *TimeFormatError
	assert.True(t, errors.As(err, &tfe))
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{"", "7", "25:00", "13pm", "0am", "7:75pm", "soon", "7 - 9pm"} {
		_, err := Parse(text, "")
		var tfe *TimeFormatError
		require.Error(t, err, text)
		assert.True(t, errors.As(err, &tfe), text)
		assert.Equal(t, text, tfe.Text)
	}
}

func TestFlipped(t *testing.T) {
	tok, err := Parse("11", "1pm")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{23, 0}, tok.Clock)

	flipped, ok := tok.Flipped()
	assert.True(t, ok)
	assert.Equal(t, TimeOfDay{11, 0}, flipped)

	tok, err = Parse("11pm", "")
	require.NoError(t, err)
	_, ok = tok.Flipped()
	assert.False(t, ok)
}

func TestOn(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	date := time.Date(2025, 3, 7, 15, 45, 12, 0, loc)
	got := TimeOfDay{Hour: 6, Minute: 30}.On(date)
	assert.Equal(t, time.Date(2025, 3, 7, 6, 30, 0, 0, loc), got)
	assert.Equal(t, "06:30", TimeOfDay{6, 30}.String())
}
