// Package validate contains the pure input validators used by the
// registration flows. Every function is side-effect free so the flow
// handlers can re-prompt without touching session state.
package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBadDate  = errors.New("date must match DD.MM.YYYY")
	ErrBadGrade = errors.New("grade must be a number from 1 to 11")
	ErrBadEmail = errors.New("malformed email address")
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ParseDOB parses a strict DD.MM.YYYY date: two-digit day and month,
// four-digit year, real calendar date. "1.1.2020" is rejected.
func ParseDOB(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 10 || raw[2] != '.' || raw[5] != '.' {
		return time.Time{}, ErrBadDate
	}
	t, err := time.Parse("02.01.2006", raw)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	// time.Parse normalizes overflow (31.04 -> 01.05); reject that.
	if t.Format("02.01.2006") != raw {
		return time.Time{}, ErrBadDate
	}
	return t, nil
}

// Age returns full years between dob and now with day precision.
func Age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	anniversary := dob.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// ParseGrade accepts an all-digit string in [1, 11].
func ParseGrade(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrBadGrade
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, ErrBadGrade
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 11 {
		return 0, ErrBadGrade
	}
	return n, nil
}

// NormalizePhone prepends a leading + for identity payloads. Capture
// and display keep the raw form; only submission normalizes.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "+") {
		return raw
	}
	return "+" + raw
}

// CheckEmail validates an address shape. Skipping the field is a
// separate path and never reaches the validator.
func CheckEmail(raw string) error {
	if raw == "" {
		return ErrBadEmail
	}
	if !emailRe.MatchString(raw) {
		return ErrBadEmail
	}
	return nil
}

// Toggle flips the presence of tag in set and returns the result.
// The input slice is not modified.
func Toggle(set []string, tag string) []string {
	out := make([]string, 0, len(set)+1)
	removed := false
	for _, t := range set {
		if t == tag {
			removed = true
			continue
		}
		out = append(out, t)
	}
	if !removed {
		out = append(out, tag)
	}
	return out
}

// Has reports whether tag is present in set.
func Has(set []string, tag string) bool {
	for _, t := range set {
		if t == tag {
			return true
		}
	}
	return false
}
