package timeutil

import "time"

// Clock returns the current time. Tests swap it for a fixed instant.
var Clock = func() time.Time {
	return time.Now()
}

// Now returns the current time in UTC.
func Now() time.Time {
	return Clock().UTC()
}

// Format renders t in the API's timestamp layout.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatPtr renders t, or nil when t is unset.
func FormatPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := Format(*t)
	return &s
}
