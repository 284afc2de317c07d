package narration

import (
	"math"
	"sort"
)

const (
	speechPad        = 0.12
	subtitlePad      = 0.05
	preRollSeconds   = 0.4
	minGapHeadroom   = 0.02
	placementEpsilon = 1e-6
)

// SilenceSpan is a stretch of the timeline with no detected speech.
type SilenceSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s SilenceSpan) Len() float64 { return s.End - s.Start }

// timeline holds the lookups the solver needs for one bundle.
type timeline struct {
	subsByIndex map[int]Subtitle
	subsByTime  []Subtitle
	gaps        []Gap
	gapByAfter  map[int]Gap
	silence     []SilenceSpan
}

func newTimeline(b AnalysisBundle) timeline {
	tl := timeline{
		subsByIndex: make(map[int]Subtitle, len(b.Subtitles)),
		subsByTime:  append([]Subtitle(nil), b.Subtitles...),
		gaps:        b.Gaps(),
		gapByAfter:  make(map[int]Gap, len(b.Gaps())),
	}
	for _, s := range b.Subtitles {
		tl.subsByIndex[s.Index] = s
	}
	sort.SliceStable(tl.subsByTime, func(i, j int) bool {
		a, c := tl.subsByTime[i], tl.subsByTime[j]
		if a.StartTime != c.StartTime {
			return a.StartTime < c.StartTime
		}
		if a.EndTime != c.EndTime {
			return a.EndTime < c.EndTime
		}
		return a.Index < c.Index
	})
	for _, g := range tl.gaps {
		tl.gapByAfter[g.AfterIndex] = g
	}
	tl.silence = SilenceSpans(b)
	return tl
}

// TotalDuration is the furthest end time across subtitles, diarization and scenes.
func TotalDuration(b AnalysisBundle) float64 {
	total := 0.0
	for _, s := range b.Subtitles {
		total = max(total, s.EndTime)
	}
	for _, d := range b.Diarization {
		total = max(total, d.EndTime)
	}
	for _, s := range b.Scenes {
		total = max(total, s.EndTime)
	}
	return total
}

// SilenceSpans derives silence from diarization: speech segments are padded, clamped to
// the timeline and merged, and silence is what remains. Without diarization there is no
// silence information and the result is nil.
func SilenceSpans(b AnalysisBundle) []SilenceSpan {
	total := TotalDuration(b)
	if len(b.Diarization) == 0 || total <= 0 {
		return nil
	}

	speech := make([]SilenceSpan, 0, len(b.Diarization))
	for _, d := range b.Diarization {
		if d.EndTime <= d.StartTime {
			continue
		}
		speech = append(speech, SilenceSpan{
			Start: max(0, d.StartTime-speechPad),
			End:   min(total, d.EndTime+speechPad),
		})
	}
	speech = mergeSpans(speech)

	var out []SilenceSpan
	cursor := 0.0
	for _, s := range speech {
		if s.Start > cursor {
			out = append(out, SilenceSpan{Start: cursor, End: s.Start})
		}
		cursor = max(cursor, s.End)
	}
	if cursor < total {
		out = append(out, SilenceSpan{Start: cursor, End: total})
	}
	return out
}

func mergeSpans(spans []SilenceSpan) []SilenceSpan {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	out := []SilenceSpan{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			last.End = max(last.End, s.End)
			continue
		}
		out = append(out, s)
	}
	return out
}

// usableSilence finds a silence stretch inside [lo, hi] at least need seconds long,
// preferring one that contains t and otherwise the one whose midpoint is nearest t.
func (tl timeline) usableSilence(lo, hi, t, need float64) (SilenceSpan, bool) {
	if hi <= lo || len(tl.silence) == 0 {
		return SilenceSpan{}, false
	}
	var cands []SilenceSpan
	for _, s := range tl.silence {
		x := SilenceSpan{Start: max(lo, s.Start), End: min(hi, s.End)}
		if x.End <= x.Start {
			continue
		}
		if x.Len() >= need {
			cands = append(cands, x)
		}
	}
	if len(cands) == 0 {
		return SilenceSpan{}, false
	}
	for _, c := range cands {
		if c.Start <= t && t <= c.End {
			return c, true
		}
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if math.Abs((c.Start+c.End)*0.5-t) < math.Abs((best.Start+best.End)*0.5-t) {
			best = c
		}
	}
	return best, true
}

func (tl timeline) gapContaining(t float64) (Gap, bool) {
	for _, g := range tl.gaps {
		if g.StartTime <= t && t <= g.EndTime {
			return g, true
		}
	}
	return Gap{}, false
}

func (tl timeline) nextSubtitle(t float64) (Subtitle, bool) {
	for _, s := range tl.subsByTime {
		if s.StartTime >= t {
			return s, true
		}
	}
	return Subtitle{}, false
}

func (tl timeline) overlapsSubtitles(start, end float64) bool {
	if end <= start {
		return false
	}
	for _, s := range tl.subsByTime {
		s0 := s.StartTime - subtitlePad
		s1 := s.EndTime + subtitlePad
		if start < s1 && end > s0 {
			return true
		}
		if s0 > end {
			break
		}
	}
	return false
}

// ApplyTimingConstraints places every candidate against the real timeline. A gap_filling
// entry that cannot be placed inside a usable silent gap without touching a subtitle is
// downgraded to a pre_teach_pause just before its target line. The input is not modified.
func ApplyTimingConstraints(entries []ScriptEntry, b AnalysisBundle) []ScriptEntry {
	tl := newTimeline(b)
	out := cloneEntries(entries)
	for i := range out {
		switch out[i].ActionType {
		case ActionGapFilling:
			tl.placeGapFilling(&out[i])
		case ActionPreTeachPause:
			tl.anchorPause(&out[i])
		}
	}
	return out
}

func (tl timeline) anchorPause(e *ScriptEntry) {
	if len(e.Ref.SubtitleIndexes) > 0 {
		if sub, ok := tl.subsByIndex[e.Ref.SubtitleIndexes[0]]; ok && e.TimeIn > sub.StartTime {
			e.TimeIn = max(0, sub.StartTime-preRollSeconds)
		}
	}
	e.Ducking = false
}

func (tl timeline) placeGapFilling(e *ScriptEntry) {
	var (
		gap    Gap
		hasGap bool
	)
	if len(e.Ref.GapAfterIndexes) > 0 {
		gap, hasGap = tl.gapByAfter[e.Ref.GapAfterIndexes[0]]
	}
	if !hasGap {
		if len(e.Ref.SubtitleIndexes) > 0 {
			gap, hasGap = tl.gapByAfter[e.Ref.SubtitleIndexes[0]-1]
		}
		if !hasGap {
			gap, hasGap = tl.gapContaining(e.TimeIn)
		}
	}

	var (
		target    Subtitle
		hasTarget bool
	)
	if hasGap {
		target, hasTarget = tl.subsByIndex[gap.AfterIndex+1]
	}
	if !hasTarget && len(e.Ref.SubtitleIndexes) > 0 {
		target, hasTarget = tl.subsByIndex[e.Ref.SubtitleIndexes[0]]
	}
	if !hasTarget {
		target, hasTarget = tl.nextSubtitle(e.TimeIn)
	}

	downgrade := func() {
		if hasTarget {
			e.TimeIn = max(0, target.StartTime-preRollSeconds)
		}
		e.ActionType = ActionPreTeachPause
		e.Ducking = false
	}

	if !hasGap {
		downgrade()
		return
	}
	prev, okPrev := tl.subsByIndex[gap.AfterIndex]
	next, okNext := tl.subsByIndex[gap.AfterIndex+1]
	if !okPrev || !okNext {
		downgrade()
		return
	}

	start := max(gap.StartTime, prev.EndTime)
	end := min(gap.EndTime, next.StartTime)
	if end <= start {
		downgrade()
		return
	}

	dur := max(0, e.EstimatedDuration)
	gapLen := end - start
	if gapLen <= dur+minGapHeadroom {
		downgrade()
		return
	}
	slack := gapLen - dur
	pad := min(0.35, max(0.12, slack*0.25))
	guard := min(0.10, max(0.05, slack*0.05))

	if len(tl.silence) > 0 {
		s, ok := tl.usableSilence(start, end, e.TimeIn, dur+2*(speechPad+subtitlePad))
		if !ok {
			downgrade()
			return
		}
		start, end = s.Start, s.End
	}

	earliest := start + pad + guard
	latest := end - pad - guard - dur
	if latest+placementEpsilon < earliest {
		downgrade()
		return
	}

	t := min(max(e.TimeIn, earliest), latest)
	if tl.overlapsSubtitles(t, t+dur) {
		downgrade()
		return
	}

	e.TimeIn = t
	e.Ducking = true
	if len(e.Ref.GapAfterIndexes) == 0 {
		e.Ref.GapAfterIndexes = []int{gap.AfterIndex}
	}
}
