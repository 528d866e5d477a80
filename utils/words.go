package utils

import "strings"

var (
	smallNumbers = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

	scales = []struct {
		size int
		name string
	}{
		{1_000_000_000, "billion"},
		{1_000_000, "million"},
		{1_000, "thousand"},
	}
)

// NumberWords spells out n in English, e.g. 21 -> "twenty-one" and
// 1234 -> "one thousand, two hundred thirty-four".
func NumberWords(n int) string {
	if n < 0 {
		return "minus " + NumberWords(-n)
	}
	if n < 1000 {
		return hundreds(n)
	}

	var parts []string
	for _, sc := range scales {
		if n >= sc.size {
			parts = append(parts, NumberWords(n/sc.size)+" "+sc.name)
			n %= sc.size
		}
	}
	if n > 0 {
		parts = append(parts, hundreds(n))
	}
	return strings.Join(parts, ", ")
}

func hundreds(n int) string {
	switch {
	case n < 20:
		return smallNumbers[n]
	case n < 100:
		if n%10 == 0 {
			return tens[n/10]
		}
		return tens[n/10] + "-" + smallNumbers[n%10]
	}

	s := smallNumbers[n/100] + " hundred"
	if n%100 != 0 {
		s += " " + hundreds(n%100)
	}
	return s
}
