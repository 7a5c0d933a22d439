package timezone

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/bradfitz/latlong"
)

// ErrNoZoneForCoordinates is returned when no IANA zone covers a point
var ErrNoZoneForCoordinates = errors.New("no timezone for coordinates")

// ErrFractionalOffset is returned for zones whose standard offset is not a
// whole number of hours, which "<offset>_<dst>" cannot represent
var ErrFractionalOffset = errors.New("timezone offset is not a whole hour")

// FormatZone renders an offset/DST pair as "<offset>_<dst>"
func FormatZone(offset, dst int) string {
	return fmt.Sprintf("%d_%d", offset, dst)
}

// ParseZone splits a "<offset>_<dst>" string. Empty or malformed input
// reports ok == false.
func ParseZone(zone string) (offset, dst int, ok bool) {
	rawOffset, rawDST, found := strings.Cut(zone, "_")
	if !found {
		return 0, 0, false
	}

	offset, err := strconv.Atoi(rawOffset)
	if err != nil {
		return 0, 0, false
	}

	dst, err = strconv.Atoi(rawDST)
	if err != nil || (dst != 0 && dst != 1) {
		return 0, 0, false
	}

	return offset, dst, true
}

// WithinTextingHours reports whether the local hour for zone at now lies in
// [start, end). An unknown zone is never restricted.
func WithinTextingHours(zone string, start, end int, now time.Time) bool {
	offset, dst, ok := ParseZone(zone)
	if !ok {
		return true
	}

	local := now.UTC().Add(time.Duration(offset) * time.Hour)
	if dst == 1 && usDSTInEffect(local) {
		local = local.Add(time.Hour)
	}

	hour := local.Hour()
	return hour >= start && hour < end
}

// usDSTInEffect applies the US rule to a standard-time wall clock: DST runs
// from 02:00 on the second Sunday of March to 02:00 DST (01:00 standard) on
// the first Sunday of November.
func usDSTInEffect(std time.Time) bool {
	year := std.Year()
	begin := nthSunday(year, time.March, 2).Add(2 * time.Hour)
	end := nthSunday(year, time.November, 1).Add(time.Hour)

	wall := time.Date(year, std.Month(), std.Day(), std.Hour(), std.Minute(), std.Second(), 0, time.UTC)
	return !wall.Before(begin) && wall.Before(end)
}

func nthSunday(year int, month time.Month, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := (7 - int(first.Weekday())) % 7
	return first.AddDate(0, 0, days+7*(n-1))
}

// ZoneFromCoordinates derives a standard UTC offset in whole hours and a DST
// flag for a point, using the zone rules in effect during year.
func ZoneFromCoordinates(lat, lng float64, year int) (offset int, hasDST bool, err error) {
	name := latlong.LookupZoneName(lat, lng)
	if name == "" {
		return 0, false, fmt.Errorf("%w: (%f, %f)", ErrNoZoneForCoordinates, lat, lng)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load location %s: %w", name, err)
	}

	_, jan := time.Date(year, time.January, 1, 12, 0, 0, 0, loc).Zone()
	_, jul := time.Date(year, time.July, 1, 12, 0, 0, 0, loc).Zone()

	std := min(jan, jul)
	if std%3600 != 0 {
		return 0, false, fmt.Errorf("%w: %s is UTC%+.1f", ErrFractionalOffset, name, float64(std)/3600)
	}

	return std / 3600, jan != jul, nil
}
