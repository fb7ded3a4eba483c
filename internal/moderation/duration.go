package moderation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingDuration is returned for an empty duration token.
	ErrMissingDuration = errors.New("duration is required")
	// ErrInvalidDuration is returned for a token that is not a duration.
	ErrInvalidDuration = errors.New("invalid duration")
)

// DefaultMuteDuration applies when /mute is given no duration.
const DefaultMuteDuration = time.Hour

// MaxDuration bounds parsed durations. Telegram treats restrictions longer
// than a year as permanent.
const MaxDuration = 366 * 24 * time.Hour

var (
	compactDuration = regexp.MustCompile(`^(\d+[dhm])+$`)
	durationPart    = regexp.MustCompile(`(\d+)([dhm])`)
	unitLength      = map[string]time.Duration{"d": 24 * time.Hour, "h": time.Hour, "m": time.Minute}
)

// ParseDuration parses a compact duration: one or more <int><unit> pairs with
// unit in d, h, m (e.g. "1h30m", "2d"), or a bare integer taken as minutes.
func ParseDuration(token string) (time.Duration, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return 0, ErrMissingDuration
	}

	tooLong := func() error {
		return fmt.Errorf("%w: %q exceeds %s", ErrInvalidDuration, token, FormatDuration(MaxDuration))
	}

	var total time.Duration
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		if n > int64(MaxDuration/time.Minute) {
			return 0, tooLong()
		}
		total = time.Duration(n) * time.Minute
	} else {
		if !compactDuration.MatchString(token) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, token)
		}
		for _, part := range durationPart.FindAllStringSubmatch(token, -1) {
			unit := unitLength[part[2]]
			n, err := strconv.ParseInt(part[1], 10, 64)
			// Checking each part keeps the running sum far below overflow.
			if err != nil || n > int64(MaxDuration/unit) {
				return 0, tooLong()
			}
			total += time.Duration(n) * unit
			if total > MaxDuration {
				return 0, tooLong()
			}
		}
	}

	if total <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidDuration, token)
	}
	return total, nil
}

// LooksLikeDuration reports whether the first argument of a command should be
// read as a duration rather than the start of a reason.
func LooksLikeDuration(token string) bool {
	return token != "" && token[0] >= '0' && token[0] <= '9'
}

// FormatDuration renders d as "1 day 2 hours 30 minutes", dropping zero parts.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return plural(int(d/time.Second), "second")
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
