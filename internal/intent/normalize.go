package intent

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"chatcal/internal/models"
)

const (
	defaultStartHour = 9
	defaultDuration  = time.Hour
)

// compactDateTime matches YYYYMMDDTHHMM[SS] followed by an optional offset.
var compactDateTime = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})T(\d{2})(\d{2})(\d{2})?(.*)$`)

// Normalize fills in missing start/end times and repairs compact timestamps.
// It never fails and does not modify details.
func Normalize(details models.EventDetails, fallbackTimeZone string) models.EventDetails {
	return NormalizeAt(details, fallbackTimeZone, time.Now())
}

// NormalizeAt is Normalize with an explicit clock.
func NormalizeAt(details models.EventDetails, fallbackTimeZone string, now time.Time) models.EventDetails {
	tz := details.TimeZone
	if tz == "" {
		tz = fallbackTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		tz, loc = "UTC", time.UTC
	}

	out := details
	if !details.Start.Complete() || !details.End.Complete() {
		local := now.In(loc)
		start := time.Date(local.Year(), local.Month(), local.Day()+1, defaultStartHour, 0, 0, 0, loc)
		end := start.Add(defaultDuration)
		out.Start = &models.EventTime{DateTime: start.Format(time.RFC3339), TimeZone: tz}
		out.End = &models.EventTime{DateTime: end.Format(time.RFC3339), TimeZone: tz}
		return out
	}

	out.Start = repairEndpoint(details.Start, tz)
	out.End = repairEndpoint(details.End, tz)
	return out
}

func repairEndpoint(t *models.EventTime, tz string) *models.EventTime {
	fixed := &models.EventTime{DateTime: RepairDateTime(t.DateTime), TimeZone: t.TimeZone}
	if fixed.TimeZone == "" {
		fixed.TimeZone = tz
	}
	return fixed
}

// RepairDateTime rewrites a compact timestamp such as 20250810T100000-0700 into
// 2025-08-10T10:00:00-0700. Values that already contain both '-' and ':' are
// returned unchanged, as is anything that does not look like the compact form.
func RepairDateTime(s string) string {
	if strings.Contains(s, "-") && strings.Contains(s, ":") {
		return s
	}
	m := compactDateTime.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	sec := m[6]
	if sec == "" {
		sec = "00"
	}
	return m[1] + "-" + m[2] + "-" + m[3] + "T" + m[4] + ":" + m[5] + ":" + sec + m[7]
}
