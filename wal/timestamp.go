package wal

import (
	"fmt"
	"strconv"
	"time"
)

// Log keys and record dateTime fields carry a 20 character wall-clock stamp,
// YYYYMMDDhhmmssuuuuuu, so lexicographic ordering equals chronological
// ordering. All stamps are taken in UTC.

const (
	// KeyPrefix starts every log key; entity keys are opaque UUIDs and can
	// never collide with it.
	KeyPrefix = "log:"

	timeLayout = "20060102150405"
	stampLen   = 20
)

// FormatTime renders t as a 20 character YYYYMMDDhhmmssuuuuuu stamp.
func FormatTime(t time.Time) string {
	t = t.UTC()
	return t.Format(timeLayout) + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}

// ParseTime parses a stamp produced by FormatTime.
func ParseTime(s string) (time.Time, error) {
	if len(s) != stampLen {
		return time.Time{}, fmt.Errorf("timestamp %q: want %d characters", s, stampLen)
	}
	t, err := time.ParseInLocation(timeLayout, s[:14], time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	micros, err := strconv.Atoi(s[14:])
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.Add(time.Duration(micros) * time.Microsecond), nil
}

// KeyTime extracts the wall-clock stamp embedded in a log key.
func KeyTime(key string) (time.Time, error) {
	if len(key) < len(KeyPrefix)+stampLen || key[:len(KeyPrefix)] != KeyPrefix {
		return time.Time{}, fmt.Errorf("malformed log key %q", key)
	}
	return ParseTime(key[len(KeyPrefix) : len(KeyPrefix)+stampLen])
}
