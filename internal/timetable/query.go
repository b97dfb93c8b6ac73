package timetable

import "sort"

// Query returns the sessions for (parity, weekday) ordered by start time.
// Sessions starting at the same time keep their source order.
func Query(records []SessionRecord, parity Parity, weekday Weekday) []SessionRecord {
	out := make([]SessionRecord, 0, 8)
	for _, r := range records {
		if r.Parity == parity && r.Weekday == weekday {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// Group holds the sessions of one (parity, weekday) pair.
type Group struct {
	Parity   Parity
	Weekday  Weekday
	Sessions []SessionRecord
}

// QueryAll groups every session by parity (odd first) and weekday (Monday to
// Saturday). Pairs without sessions are omitted; Sunday is never listed.
func QueryAll(records []SessionRecord) []Group {
	var out []Group
	for _, p := range Parities {
		for _, d := range ScheduleDays {
			ss := Query(records, p, d)
			if len(ss) == 0 {
				continue
			}
			out = append(out, Group{Parity: p, Weekday: d, Sessions: ss})
		}
	}
	return out
}
