package ztmfeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseArchiveName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
		start time.Time
		end   time.Time
	}{
		{
			name:  "valid range",
			input: "20250601_20250614.zip",
			ok:    true,
			start: day(2025, 6, 1),
			end:   day(2025, 6, 14),
		},
		{
			name:  "valid without extension",
			input: "20250601_20250614",
			ok:    true,
			start: day(2025, 6, 1),
			end:   day(2025, 6, 14),
		},
		{
			name:  "no underscore",
			input: "warsaw.zip",
			ok:    false,
		},
		{
			name:  "short date",
			input: "2025061_20250614.zip",
			ok:    false,
		},
		{
			name:  "non-numeric date",
			input: "202506ab_20250614.zip",
			ok:    false,
		},
		{
			name:  "three segments",
			input: "20250601_20250614_extra.zip",
			ok:    false,
		},
		{
			name:  "empty",
			input: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := ParseArchiveName(tt.input)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.input, f.Name)
				assert.Equal(t, tt.start, f.Start)
				assert.Equal(t, tt.end, f.End)
			}
		})
	}
}

func TestCoversInclusiveBounds(t *testing.T) {
	f, ok := ParseArchiveName("20250601_20250614.zip")
	require.True(t, ok)

	assert.True(t, f.Covers(day(2025, 6, 1)))
	assert.True(t, f.Covers(day(2025, 6, 14)))
	assert.True(t, f.Covers(day(2025, 6, 7)))
	assert.False(t, f.Covers(day(2025, 5, 31)))
	assert.False(t, f.Covers(day(2025, 6, 15)))
}

func TestCoversIgnoresTimeOfDay(t *testing.T) {
	f, ok := ParseArchiveName("20250601_20250614.zip")
	require.True(t, ok)

	lateOnLastDay := time.Date(2025, 6, 14, 23, 59, 59, 0, time.UTC)
	assert.True(t, f.Covers(lateOnLastDay))
}

func TestSelectForDate(t *testing.T) {
	names := []string{
		"README.txt",
		"20250501_20250531.zip",
		"20250601_20250614.zip",
		"20250615_20250630.zip",
	}

	name, ok := SelectForDate(names, day(2025, 6, 10))
	require.True(t, ok)
	assert.Equal(t, "20250601_20250614.zip", name)

	name, ok = SelectForDate(names, day(2025, 5, 15))
	require.True(t, ok)
	assert.Equal(t, "20250501_20250531.zip", name)

	_, ok = SelectForDate(names, day(2025, 7, 1))
	assert.False(t, ok)
}

func TestSelectForDateSkipsMalformedEntries(t *testing.T) {
	names := []string{"latest.zip", "broken_name.zip", "20250601_20250614.zip"}

	name, ok := SelectForDate(names, day(2025, 6, 5))
	require.True(t, ok)
	assert.Equal(t, "20250601_20250614.zip", name)
}

func TestSelectForDateEmptyListing(t *testing.T) {
	_, ok := SelectForDate(nil, day(2025, 6, 5))
	assert.False(t, ok)
}

func TestSelectForDateFirstMatchWins(t *testing.T) {
	names := []string{
		"20250601_20250630.zip",
		"20250601_20250614.zip",
	}

	name, ok := SelectForDate(names, day(2025, 6, 5))
	require.True(t, ok)
	assert.Equal(t, "20250601_20250630.zip", name)
}
