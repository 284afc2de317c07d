package narration

import (
	"fmt"
	"testing"
)

func TestMergeClosePauses(t *testing.T) {
	t.Parallel()

	in := []ScriptEntry{
		{TimeIn: 14, ActionType: ActionPreTeachPause, Script: "Second", EstimatedDuration: 1, Ref: Ref{SubtitleIndexes: []int{3, 2}, Reason: "grammar"}},
		{TimeIn: 10, ActionType: ActionPreTeachPause, Script: "First", EstimatedDuration: 1, Ref: Ref{SubtitleIndexes: []int{2}, Reason: "idiom"}},
		{TimeIn: 30, ActionType: ActionPreTeachPause, Script: "Far", EstimatedDuration: 1},
	}
	got := MergeClosePauses(in, "en")
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2", len(got))
	}
	m := got[0]
	if m.TimeIn != 10 || m.Script != "First. Second" {
		t.Fatalf("merged=%v %q", m.TimeIn, m.Script)
	}
	if fmt.Sprint(m.Ref.SubtitleIndexes) != "[2 3]" || m.Ref.Reason != "idiom; grammar" {
		t.Fatalf("ref=%+v", m.Ref)
	}
	if in[1].Script != "First" {
		t.Fatalf("input was modified")
	}
}

func TestMergeClosePauses_ChineseAndIntro(t *testing.T) {
	t.Parallel()

	in := []ScriptEntry{
		{TimeIn: 0, ActionType: ActionPreTeachPause, Script: "开场", Ref: Ref{Reason: ReasonIntro}},
		{TimeIn: 3, ActionType: ActionPreTeachPause, Script: "第一", Ref: Ref{Reason: "习语"}},
		{TimeIn: 6, ActionType: ActionPreTeachPause, Script: "第二", Ref: Ref{Reason: "语法"}},
		{TimeIn: 8, ActionType: ActionGapFilling, Script: "间隙", Ducking: true},
	}
	got := MergeClosePauses(in, "zh")
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3: %+v", len(got), got)
	}
	if got[0].Script != "开场" {
		t.Fatalf("intro merged: %q", got[0].Script)
	}
	if got[1].Script != "第一。第二" || got[1].Ref.Reason != "习语；语法" {
		t.Fatalf("merged=%q reason=%q", got[1].Script, got[1].Ref.Reason)
	}
	if got[2].ActionType != ActionGapFilling {
		t.Fatalf("gap filling should not merge")
	}
}

func TestRequiredSpacing(t *testing.T) {
	t.Parallel()

	pause := ScriptEntry{ActionType: ActionPreTeachPause, EstimatedDuration: 2}
	longPause := ScriptEntry{ActionType: ActionPreTeachPause, EstimatedDuration: 5}
	gap := ScriptEntry{ActionType: ActionGapFilling, EstimatedDuration: 1}

	if got := RequiredSpacing(pause, longPause); got != 7.5 {
		t.Fatalf("pause/pause=%v, want 7.5", got)
	}
	if got := RequiredSpacing(pause, gap); got != 2.5 {
		t.Fatalf("pause/gap=%v, want 2.5", got)
	}
}

func minuteBundle(seconds float64) AnalysisBundle {
	return AnalysisBundle{Subtitles: []Subtitle{{Index: 1, StartTime: 0, EndTime: seconds, Text: "x"}}}
}

func TestSelectEntries_RateCapKeepsIntro(t *testing.T) {
	t.Parallel()

	entries := []ScriptEntry{{TimeIn: 0, ActionType: ActionPreTeachPause, Script: "intro", EstimatedDuration: 3, Ref: Ref{Reason: ReasonIntro}}}
	for i := 0; i < 30; i++ {
		entries = append(entries, ScriptEntry{
			TimeIn: float64(10 + 20*i), ActionType: ActionPreTeachPause, Script: "p",
			EstimatedDuration: 2, Ref: Ref{SubtitleIndexes: []int{i + 1}},
		})
	}
	got := SelectEntries(entries, minuteBundle(600), 1)
	if len(got) != 11 {
		t.Fatalf("len=%d, want 11", len(got))
	}
	if !got[0].Ref.IsIntro() {
		t.Fatalf("first entry should be intro, got %+v", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i].TimeIn < got[i-1].TimeIn {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestSelectEntries_Spacing(t *testing.T) {
	t.Parallel()

	entries := []ScriptEntry{
		{TimeIn: 10, ActionType: ActionPreTeachPause, Script: "a", EstimatedDuration: 1, Ref: Ref{SubtitleIndexes: []int{1}}},
		{TimeIn: 13, ActionType: ActionPreTeachPause, Script: "b", EstimatedDuration: 1},
		{TimeIn: 13.5, ActionType: ActionGapFilling, Script: "c", EstimatedDuration: 1},
	}
	got := SelectEntries(entries, minuteBundle(60), 3)
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2: %+v", len(got), got)
	}
	if got[0].Script != "a" || got[1].Script != "c" {
		t.Fatalf("got %q,%q want a,c", got[0].Script, got[1].Script)
	}
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			d := got[j].TimeIn - got[i].TimeIn
			if d < RequiredSpacing(got[i], got[j]) {
				t.Fatalf("entries %d,%d too close: %v", i, j, d)
			}
		}
	}
}

func TestSelectEntries_NoDurationFallback(t *testing.T) {
	t.Parallel()

	var entries []ScriptEntry
	for i := 15; i > 0; i-- {
		entries = append(entries, ScriptEntry{TimeIn: float64(i), ActionType: ActionPreTeachPause, Script: "x"})
	}
	got := SelectEntries(entries, AnalysisBundle{}, 3)
	if len(got) != 10 {
		t.Fatalf("len=%d, want 10", len(got))
	}
	if got[0].TimeIn != 1 || got[9].TimeIn != 10 {
		t.Fatalf("want the ten earliest, got %v..%v", got[0].TimeIn, got[9].TimeIn)
	}
}

func TestPostprocess_Pipeline(t *testing.T) {
	t.Parallel()

	b := gapBundle(9, 12)
	intro := &ScriptEntry{TimeIn: 0, ActionType: ActionPreTeachPause, Script: "Welcome!", Ref: Ref{Reason: ReasonIntro}}
	cands := []ScriptEntry{
		{TimeIn: 9, ActionType: ActionGapFilling, Script: "quick", EstimatedDuration: 0.4, Ducking: true, Ref: Ref{SubtitleIndexes: []int{2}}},
		{TimeIn: 5, ActionType: ActionIgnore, Script: "dropped"},
		{TimeIn: 6, ActionType: ActionPreTeachPause, Script: "   "},
	}
	got := Postprocess(cands, b, intro, Profile{NarrationLang: "en", Audience: "adult", MaxEntriesPerMinute: 3})
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2: %+v", len(got), got)
	}
	if !got[0].Ref.IsIntro() || got[0].EstimatedDuration < 1.0 {
		t.Fatalf("intro=%+v", got[0])
	}
	// The estimate is raised to the spoken length before placement.
	if got[1].ActionType != ActionGapFilling || got[1].EstimatedDuration != 1.0 || !approx(got[1].TimeIn, 9.45) {
		t.Fatalf("gap entry=%+v", got[1])
	}
	if intro.EstimatedDuration != 0 {
		t.Fatalf("intro argument was modified")
	}
}
