package narration

import (
	"math"
	"sort"
)

// fallbackEntryLimit caps the script when the bundle has no usable duration.
const fallbackEntryLimit = 10

func rankEntry(e ScriptEntry) float64 {
	var base float64
	switch e.ActionType {
	case ActionPreTeachPause:
		base = 1.6
	case ActionGapFilling:
		base = 1.4
	default:
		base = 1.0
	}
	if e.Ref.IsIntro() {
		base += 2.5
	}
	if len(e.Ref.SubtitleIndexes) > 0 {
		base += 0.1
	}
	if e.ActionType == ActionGapFilling && len(e.Ref.GapAfterIndexes) > 0 {
		base += 0.05
	}
	return base + min(0.2, e.EstimatedDuration/20.0)
}

func minGapFor(e ScriptEntry) float64 {
	d := e.EstimatedDuration
	if e.ActionType == ActionPreTeachPause {
		return max(6.0, d+2.5)
	}
	return max(2.5, d+0.8)
}

// RequiredSpacing is the minimum distance in seconds between the start times of a and b.
// Ducked commentary may sit closer to its neighbours than a pause may.
func RequiredSpacing(a, b ScriptEntry) float64 {
	ga, gb := minGapFor(a), minGapFor(b)
	if a.ActionType == ActionGapFilling || b.ActionType == ActionGapFilling {
		return max(2.0, min(ga, gb))
	}
	return max(ga, gb)
}

// SelectEntries keeps a rate-bounded, well-spaced subset of entries. The earliest intro
// is always kept and does not count against the rate; the rest are chosen greedily by
// rank, skipping any entry too close to one already chosen.
func SelectEntries(entries []ScriptEntry, b AnalysisBundle, ratePerMinute int) []ScriptEntry {
	if len(entries) == 0 {
		return nil
	}
	byTime := func(list []ScriptEntry) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].TimeIn < list[j].TimeIn })
	}

	total := 0.0
	for _, s := range b.Subtitles {
		total = max(total, s.EndTime)
	}
	for _, s := range b.Scenes {
		total = max(total, s.EndTime)
	}
	if total <= 0 {
		out := cloneEntries(entries)
		byTime(out)
		if len(out) > fallbackEntryLimit {
			out = out[:fallbackEntryLimit]
		}
		return out
	}

	maxEntries := int(math.Floor(total / 60.0 * float64(ratePerMinute)))
	maxEntries = max(3, min(maxEntries, len(entries)))

	introAt := -1
	for i, e := range entries {
		if !e.Ref.IsIntro() {
			continue
		}
		if introAt == -1 || e.TimeIn < entries[introAt].TimeIn {
			introAt = i
		}
	}

	pool := make([]ScriptEntry, 0, len(entries))
	for i, e := range entries {
		if i != introAt {
			pool = append(pool, e)
		}
	}
	target := maxEntries
	chosen := make([]ScriptEntry, 0, target+1)
	if introAt >= 0 {
		target++
		chosen = append(chosen, entries[introAt])
	}
	target = min(len(entries), target)

	sort.SliceStable(pool, func(i, j int) bool {
		ri, rj := rankEntry(pool[i]), rankEntry(pool[j])
		if ri != rj {
			return ri > rj
		}
		return pool[i].TimeIn < pool[j].TimeIn
	})

	for _, e := range pool {
		if len(chosen) >= target {
			break
		}
		ok := true
		for _, c := range chosen {
			if math.Abs(e.TimeIn-c.TimeIn) < RequiredSpacing(e, c) {
				ok = false
				break
			}
		}
		if ok {
			chosen = append(chosen, e)
		}
	}

	out := cloneEntries(chosen)
	byTime(out)
	return out
}
