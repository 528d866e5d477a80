package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  int64
		ok    bool
	}{
		{"10", 10_000, true},
		{"0", 0, true},
		{"10m", 600_000, true},
		{"2 days", 172_800_000, true},
		{"1h30m", 5_400_000, true},
		{"1.5h", 5_400_000, true},
		{"1 WEEK", 604_800_000, true},
		{"3mo", 3 * 2_592_000_000, true},
		{"1y", 31_557_600_000, true},
		{" 45 sec ", 45_000, true},
		{"-5m", -300_000, true},
		{"", 0, false},
		{"permanent", 0, false},
		{"10 parsecs", 0, false},
		{"5m x", 0, false},
		{"m", 0, false},
		{"9223372036854774784ms", 9_223_372_036_854_774_784, true},
		{"9223372036854775808ms", 0, false},
		{"4611686018427387904ms 4611686018427387904ms", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseDuration(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0 seconds", FormatDuration(0))
	assert.Equal(t, "2 hours", FormatDuration(2*msHour))
	assert.Equal(t, "1 day 1 hour 1 minute 1 second", FormatDuration(msDay+msHour+msMinute+msSecond))
	assert.Equal(t, "1 week 1 day", FormatDuration(8*msDay))
	assert.Equal(t, "1 month 15 days", FormatDuration(45*msDay))
}

func TestHumanizeDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "500 ms", HumanizeDuration(500))
	assert.Equal(t, "1 second", HumanizeDuration(msSecond))
	assert.Equal(t, "2 minutes", HumanizeDuration(90*msSecond))
	assert.Equal(t, "1 hour", HumanizeDuration(msHour))
	assert.Equal(t, "7 days", HumanizeDuration(msWeek))
}
