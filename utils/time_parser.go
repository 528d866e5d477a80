package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

const (
	msSecond = int64(1000)
	msMinute = 60 * msSecond
	msHour   = 60 * msMinute
	msDay    = 24 * msHour
	msWeek   = 7 * msDay
)

// durationUnits maps every accepted unit spelling to its length in milliseconds.
var durationUnits = map[string]float64{
	"ms": 1, "msec": 1, "msecs": 1, "millisecond": 1, "milliseconds": 1,
	"s": 1000, "sec": 1000, "secs": 1000, "second": 1000, "seconds": 1000,
	"m": 60e3, "min": 60e3, "mins": 60e3, "minute": 60e3, "minutes": 60e3,
	"h": 3600e3, "hr": 3600e3, "hrs": 3600e3, "hour": 3600e3, "hours": 3600e3,
	"d": 86400e3, "day": 86400e3, "days": 86400e3,
	"w": 604800e3, "wk": 604800e3, "wks": 604800e3, "week": 604800e3, "weeks": 604800e3,
	"mo": 2592000e3, "mos": 2592000e3, "month": 2592000e3, "months": 2592000e3,
	"y": 31557600e3, "yr": 31557600e3, "yrs": 31557600e3, "year": 31557600e3, "years": 31557600e3,
}

// ParseDuration converts user input into milliseconds.
// A bare integer is read as seconds. Anything else must be a sequence of
// number/unit pairs such as "10m", "2 days" or "1h30m". The second return
// value is false when the input can't be parsed; zero and negative results
// are returned as-is and left for the caller to reject.
func ParseDuration(input string) (int64, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return 0, false
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs > math.MaxInt64/msSecond || secs < math.MinInt64/msSecond {
			return 0, false
		}
		return secs * msSecond, true
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}

	var total float64
	components := 0
	rs := []rune(s)
	for i := 0; i < len(rs); {
		if unicode.IsSpace(rs[i]) {
			i++
			continue
		}

		start := i
		for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
			i++
		}
		if start == i {
			return 0, false
		}
		num, err := strconv.ParseFloat(string(rs[start:i]), 64)
		if err != nil {
			return 0, false
		}

		for i < len(rs) && unicode.IsSpace(rs[i]) {
			i++
		}

		start = i
		for i < len(rs) && unicode.IsLetter(rs[i]) {
			i++
		}
		unit, ok := durationUnits[string(rs[start:i])]
		if !ok {
			return 0, false
		}

		total += num * unit
		components++
	}

	// float64(math.MaxInt64) rounds up to 2^63, which int64 can't hold.
	if components == 0 || total >= math.MaxInt64 {
		return 0, false
	}

	ms := int64(math.Round(total))
	if negative {
		ms = -ms
	}
	return ms, true
}

func pluralize(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatDuration renders milliseconds as "1 month 2 days 3 hours".
// Spans longer than 30 days are expressed in 30-day months.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = -ms
	}

	weeks := ms / msWeek
	ms %= msWeek
	days := ms / msDay
	ms %= msDay
	hours := ms / msHour
	ms %= msHour
	minutes := ms / msMinute
	ms %= msMinute
	seconds := ms / msSecond

	var parts []string
	totalDays := weeks*7 + days
	if totalDays > 30 {
		parts = append(parts, pluralize(totalDays/30, "month"))
		if rem := totalDays % 30; rem > 0 {
			parts = append(parts, pluralize(rem, "day"))
		}
	} else {
		if weeks > 0 {
			parts = append(parts, pluralize(weeks, "week"))
		}
		if days > 0 {
			parts = append(parts, pluralize(days, "day"))
		}
	}
	if hours > 0 {
		parts = append(parts, pluralize(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, pluralize(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, pluralize(seconds, "second"))
	}

	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, " ")
}

// HumanizeDuration renders milliseconds as a single rounded unit, e.g. "2 days"
// or "90 minutes" becoming "2 hours". Used in generated reasons.
func HumanizeDuration(ms int64) string {
	abs := ms
	if abs < 0 {
		abs = -abs
	}

	unit := func(size int64, name string) string {
		n := int64(math.Round(float64(ms) / float64(size)))
		if float64(abs) >= float64(size)*1.5 {
			return fmt.Sprintf("%d %ss", n, name)
		}
		return fmt.Sprintf("%d %s", n, name)
	}

	switch {
	case abs >= msDay:
		return unit(msDay, "day")
	case abs >= msHour:
		return unit(msHour, "hour")
	case abs >= msMinute:
		return unit(msMinute, "minute")
	case abs >= msSecond:
		return unit(msSecond, "second")
	}
	return fmt.Sprintf("%d ms", ms)
}
