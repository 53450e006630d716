package domain

import "time"

// RollRateWindows resets every rate window whose reset time has passed. The reset time of a
// rolled window moves to now plus one window.
func (r UsageRecord) RollRateWindows(now time.Time) (UsageRecord, bool) {
	rolled := false
	if !now.Before(r.HourlyResetAt) {
		r.HourlyCount = 0
		r.HourlyResetAt = now.Add(HourlyWindow)
		rolled = true
	}
	if !now.Before(r.DailyResetAt) {
		r.DailyCount = 0
		r.DailyResetAt = now.Add(DailyWindow)
		rolled = true
	}
	return r, rolled
}

// RollPeriod starts a new monthly window when now has reached PeriodEnd. All monthly counters
// are cleared and the window advances in whole months until it contains now.
func (r UsageRecord) RollPeriod(now time.Time) (UsageRecord, bool) {
	if now.Before(r.PeriodEnd) {
		return r, false
	}
	start, end := NextPeriod(r.PeriodStart, r.PeriodEnd, now)
	r.PeriodStart = start
	r.PeriodEnd = end
	r.SearchCount = 0
	r.AnalysisCount = 0
	r.GrantWritingCount = 0
	r.SynthesisCount = 0
	return r, true
}

// NextPeriod returns the monthly window containing now that follows [start, end).
func NextPeriod(start, end, now time.Time) (time.Time, time.Time) {
	if end.IsZero() || !end.After(start) {
		return now, now.AddDate(0, 1, 0)
	}
	for !now.Before(end) {
		start = end
		end = end.AddDate(0, 1, 0)
	}
	return start, end
}
