package dbx

import "time"

// Time normalizes t before it is written or compared: UTC, whole seconds.
// SQLite stores timestamps as text and compares them lexically, which only
// orders correctly for a fixed-width representation.
func Time(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
