package narration

import (
	"sort"
	"strings"
)

// Postprocess turns the raw candidates of every window into the final entry list:
// normalize, place against the timeline, fold close pauses, then select a bounded subset.
// intro may be nil.
func Postprocess(entries []ScriptEntry, b AnalysisBundle, intro *ScriptEntry, p Profile) []ScriptEntry {
	lang := p.langKey()
	cleaned := make([]ScriptEntry, 0, len(entries)+1)

	if intro != nil && strings.TrimSpace(intro.Script) != "" {
		e := *intro
		e.Ref = e.Ref.Clone()
		e.EstimatedDuration = max(e.EstimatedDuration, EstimateDuration(lang, e.Script))
		e.TimeIn = max(0, e.TimeIn)
		e.ActionType = ActionPreTeachPause
		e.Ducking = false
		cleaned = append(cleaned, e)
	}

	for _, e := range entries {
		if e.ActionType != ActionPreTeachPause && e.ActionType != ActionGapFilling {
			continue
		}
		if strings.TrimSpace(e.Script) == "" {
			continue
		}
		est := EstimateDuration(lang, e.Script)
		if e.EstimatedDuration <= 0 {
			e.EstimatedDuration = est
		} else {
			e.EstimatedDuration = max(e.EstimatedDuration, est)
		}
		e.TimeIn = max(0, e.TimeIn)
		e.Ref = e.Ref.Clone()
		cleaned = append(cleaned, e)
	}

	cleaned = ApplyTimingConstraints(cleaned, b)
	cleaned = MergeClosePauses(cleaned, lang)
	selected := SelectEntries(cleaned, b, max(1, p.MaxEntriesPerMinute))
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].TimeIn < selected[j].TimeIn })
	return selected
}
