package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDOB(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"valid date", "17.05.2010", true},
		{"leap day", "29.02.2024", true},
		{"non-leap feb 29", "29.02.2023", false},
		{"april has 30 days", "31.04.2020", false},
		{"single digit components", "1.1.2020", false},
		{"wrong separator", "17-05-2010", false},
		{"garbage", "yesterday", false},
		{"empty", "", false},
		{"trailing text", "17.05.2010x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDOB(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrBadDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, got.Format("02.01.2006"))
		})
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	dob := time.Date(2010, 8, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 16, Age(dob, now), "birthday today counts")

	dob = time.Date(2010, 8, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 15, Age(dob, now), "birthday tomorrow does not")

	dob = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, Age(dob, now), "future dob clamps to zero")
}

func TestParseGrade(t *testing.T) {
	for _, bad := range []string{"0", "12", "abc", "", "-3", "1.5", "3a"} {
		_, err := ParseGrade(bad)
		assert.ErrorIs(t, err, ErrBadGrade, "input %q", bad)
	}
	for input, want := range map[string]int{"1": 1, "11": 11, "7": 7, " 5 ": 5} {
		got, err := ParseGrade(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got)
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+998901234567", NormalizePhone("998901234567"))
	assert.Equal(t, "+998901234567", NormalizePhone("+998901234567"))
	assert.Equal(t, "", NormalizePhone("  "))
}

func TestToggle(t *testing.T) {
	set := []string{}
	set = Toggle(set, "math")
	set = Toggle(set, "math")
	assert.Empty(t, set, "double toggle returns to empty")

	set = Toggle(set, "math")
	set = Toggle(set, "art")
	assert.ElementsMatch(t, []string{"math", "art"}, set)

	orig := []string{"math", "art"}
	_ = Toggle(orig, "math")
	assert.Equal(t, []string{"math", "art"}, orig, "input slice untouched")
}

func TestCheckEmail(t *testing.T) {
	assert.NoError(t, CheckEmail("user@example.com"))
	assert.Error(t, CheckEmail("not-an-email"))
	assert.Error(t, CheckEmail(""))
}
