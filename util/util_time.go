package util

import (
	"time"
)

// Datetime related utility functions.
// General convention - suffix Z if utc based, no suffix if localTime.
const (
	DATETIME_FORMAT_YYYYMMDD_HYPHEN string = "2006-01-02"
)

// TimeNowZ Return current time in UTC. Should be used everywhere to avoid local timezone.
func TimeNowZ() time.Time {
	return time.Now().UTC()
}

// HoursBetween Returns hours from 'from' to 'to' as float. Negative if 'to' is before 'from'.
func HoursBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}
