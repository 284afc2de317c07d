package narration

import (
	"sort"
	"strings"
)

// MaxPauseMergeGap is the widest spacing at which two consecutive pauses are folded together.
const MaxPauseMergeGap = 6.0

// MergeClosePauses folds each pre_teach_pause into the kept pause before it when they are
// at most MaxPauseMergeGap apart, so the viewer is not stopped twice in quick succession.
// The intro never merges. The earlier entry keeps its time, which anchors the chain.
func MergeClosePauses(entries []ScriptEntry, lang string) []ScriptEntry {
	if len(entries) == 0 {
		return nil
	}
	sorted := cloneEntries(entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimeIn < sorted[j].TimeIn })

	san := Sanitizer{Lang: lang}
	sep := "。"
	if isEnglishLang(lang) {
		sep = ". "
	}

	merged := make([]ScriptEntry, 0, len(sorted))
	for _, e := range sorted {
		if len(merged) == 0 {
			merged = append(merged, e)
			continue
		}
		prev := &merged[len(merged)-1]
		foldable := prev.ActionType == ActionPreTeachPause &&
			e.ActionType == ActionPreTeachPause &&
			e.TimeIn-prev.TimeIn <= MaxPauseMergeGap &&
			!prev.Ref.IsIntro() && !e.Ref.IsIntro()
		if !foldable {
			merged = append(merged, e)
			continue
		}

		combined := san.Sanitize(strings.TrimSpace(prev.Script) + sep + strings.TrimSpace(e.Script))
		if combined != "" {
			prev.Script = combined
			prev.EstimatedDuration = max(prev.EstimatedDuration, EstimateDuration(lang, combined))
			prev.Ref = mergeRefs(prev.Ref, e.Ref, lang)
		}
	}
	return merged
}

func mergeRefs(a, b Ref, lang string) Ref {
	out := a.Clone()
	if v := unionInts(a.SubtitleIndexes, b.SubtitleIndexes); len(v) > 0 {
		out.SubtitleIndexes = v
	}
	if v := unionInts(a.SceneIDs, b.SceneIDs); len(v) > 0 {
		out.SceneIDs = v
	}
	if v := unionInts(a.GapAfterIndexes, b.GapAfterIndexes); len(v) > 0 {
		out.GapAfterIndexes = v
	}

	r0 := strings.TrimSpace(a.Reason)
	r1 := strings.TrimSpace(b.Reason)
	switch {
	case r1 == "":
	case r0 == "":
		out.Reason = r1
	case !strings.Contains(r0, r1):
		joiner := "; "
		if isChineseLang(lang) {
			joiner = "；"
		}
		out.Reason = r0 + joiner + r1
	}
	return out
}

// unionInts concatenates a and b, keeping the first occurrence of each value.
func unionInts(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	var out []int
	for _, list := range [][]int{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func isChineseLang(lang string) bool {
	k := strings.ToLower(strings.TrimSpace(lang))
	return k == "" || strings.HasPrefix(k, "zh")
}

func isEnglishLang(lang string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "en")
}
