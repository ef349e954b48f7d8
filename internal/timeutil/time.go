package timeutil

import "time"

var nowFunc = time.Now

// Now returns the current time. It is wrapped to simplify testing and
// allow centralized timezone handling for the service and scheduler.
func Now() time.Time {
	return nowFunc()
}

// SetNowFunc overrides the function used by Now. Passing nil resets it.
func SetNowFunc(fn func() time.Time) {
	if fn == nil {
		nowFunc = time.Now
		return
	}
	nowFunc = fn
}

// NowMillis returns Now as Unix epoch milliseconds, the unit of refresh,
// watch, and air-date timestamps.
func NowMillis() int64 {
	return Now().UnixMilli()
}

// NowSeconds returns Now as Unix epoch seconds, the unit of edit timestamps.
func NowSeconds() int64 {
	return Now().Unix()
}

// FromMillis converts epoch milliseconds back to a time in loc.
func FromMillis(ms int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc)
}
