// Package kst pins every instant the bot handles to Korea Standard Time
// and owns the text layout reservations are persisted in.
package kst

import (
	"time"
	_ "time/tzdata"
)

// Layout is the on-disk format for reservation times. A value written with
// Format and reread with Parse reproduces the same instant to the second.
const Layout = "2006-01-02 15:04:05"

var Location = mustLoadLocation()

func mustLoadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		panic("kst: load Asia/Seoul: " + err.Error())
	}
	return loc
}

// Now returns the current time in Korea Standard Time.
func Now() time.Time {
	return time.Now().In(Location)
}

func Format(t time.Time) string {
	return t.In(Location).Format(Layout)
}

func Parse(s string) (time.Time, error) {
	return time.ParseInLocation(Layout, s, Location)
}
