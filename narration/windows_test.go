package narration

import (
	"errors"
	"strings"
	"testing"
)

func eventsAt(times ...float64) []UnifiedEvent {
	out := make([]UnifiedEvent, 0, len(times))
	for i, t := range times {
		idx := i + 1
		out = append(out, UnifiedEvent{Time: t, Kind: EventSubtitle, Content: "x", SubtitleIndex: &idx})
	}
	return out
}

func TestSlidingWindows_OverlapAndIndexes(t *testing.T) {
	t.Parallel()

	ws, err := SlidingWindows(eventsAt(0, 30, 65, 120), 60, 10)
	if err != nil {
		t.Fatalf("SlidingWindows: %v", err)
	}
	if len(ws) != 3 {
		t.Fatalf("len(windows)=%d, want 3", len(ws))
	}
	for i, w := range ws {
		if w.Index != i {
			t.Fatalf("windows[%d].Index=%d", i, w.Index)
		}
	}
	if len(ws[0].Events) != 2 || len(ws[1].Events) != 1 || len(ws[2].Events) != 1 {
		t.Fatalf("event counts=%d,%d,%d want 2,1,1", len(ws[0].Events), len(ws[1].Events), len(ws[2].Events))
	}
	if ws[1].Start != 50 || ws[2].Start != 100 {
		t.Fatalf("starts=%v,%v want 50,100", ws[1].Start, ws[2].Start)
	}
}

func TestSlidingWindows_SkipsEmptyAndRenumbers(t *testing.T) {
	t.Parallel()

	ws, err := SlidingWindows(eventsAt(0, 100), 50, 0)
	if err != nil {
		t.Fatalf("SlidingWindows: %v", err)
	}
	if len(ws) != 2 {
		t.Fatalf("len(windows)=%d, want 2", len(ws))
	}
	if ws[1].Index != 1 || ws[1].Events[0].Time != 100 {
		t.Fatalf("second window=%+v", ws[1])
	}
}

func TestSlidingWindows_LastEventOnBoundaryCoveredOnce(t *testing.T) {
	t.Parallel()

	ws, err := SlidingWindows(eventsAt(0, 50), 60, 10)
	if err != nil {
		t.Fatalf("SlidingWindows: %v", err)
	}
	if len(ws) != 1 {
		t.Fatalf("len(windows)=%d, want 1", len(ws))
	}
	if len(ws[0].Events) != 2 {
		t.Fatalf("events=%d, want 2", len(ws[0].Events))
	}
}

func TestSlidingWindows_InvalidParams(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		size, overlap float64
	}{
		{"zero size", 0, 0},
		{"negative overlap", 60, -1},
		{"overlap equals size", 60, 60},
	}
	for _, tc := range cases {
		if _, err := SlidingWindows(eventsAt(0), tc.size, tc.overlap); !errors.Is(err, ErrInvalidWindowing) {
			t.Fatalf("%s: err=%v, want ErrInvalidWindowing", tc.name, err)
		}
	}
}

func TestSlidingWindows_Empty(t *testing.T) {
	t.Parallel()

	ws, err := SlidingWindows(nil, 60, 10)
	if err != nil || len(ws) != 0 {
		t.Fatalf("windows=%v err=%v", ws, err)
	}
}

func TestWindowSpan(t *testing.T) {
	t.Parallel()

	d := 3.0
	w := Window{Start: 0, End: 60, Events: []UnifiedEvent{{Time: 5}, {Time: 20, Duration: &d}}}
	start, end := w.Span()
	if start != 5 || end != 23 {
		t.Fatalf("span=%v..%v, want 5..23", start, end)
	}
}

func sampleBundle() AnalysisBundle {
	spk := "S1"
	return AnalysisBundle{
		CourseID: "c1",
		Subtitles: []Subtitle{
			{Index: 1, StartTime: 0, EndTime: 2, Text: "Hello there", SpeakerID: &spk},
			{Index: 2, StartTime: 5, EndTime: 7, Text: "How are you"},
		},
		TimelineFeatures: &TimelineFeatures{Gaps: []Gap{
			{AfterIndex: 1, StartTime: 2, EndTime: 5, Duration: 3},
		}},
		Scenes:         []Scene{{SceneID: 0, StartTime: 0, EndTime: 7}},
		VisualFeatures: []VisualFeature{{SceneID: 0, Caption: "A kitchen", Characters: []string{"Ann"}}},
		SpeakerMap:     &SpeakerMap{Mappings: map[string]string{"S1": "Ann"}},
	}
}

func TestBuildEvents_OrderAndRendering(t *testing.T) {
	t.Parallel()

	events := BuildEvents(sampleBundle(), DefaultEventOptions())
	if len(events) != 4 {
		t.Fatalf("len(events)=%d, want 4", len(events))
	}
	kinds := []EventKind{EventVisual, EventSubtitle, EventGap, EventSubtitle}
	for i, k := range kinds {
		if events[i].Kind != k {
			t.Fatalf("events[%d].Kind=%s, want %s", i, events[i].Kind, k)
		}
	}

	text := LLMInput(events)
	for _, want := range []string{
		"[VISUAL#0 @ 0.0s] A kitchen Characters: Ann",
		"[SUB#1 @ 0.0s] [Ann] Hello there",
		"[GAP(after#1) @ 2.0s] (3.0s) Silent gap after subtitle #1",
		"[SUB#2 @ 5.0s] How are you",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("LLMInput missing %q:\n%s", want, text)
		}
	}
}

func TestBuildEvents_Options(t *testing.T) {
	t.Parallel()

	events := BuildEvents(sampleBundle(), EventOptions{IncludeGaps: true, MinGapDuration: 5})
	for _, e := range events {
		if e.Kind != EventSubtitle {
			t.Fatalf("unexpected event %s", e.Kind)
		}
	}
	if got := BuildEvents(AnalysisBundle{}, DefaultEventOptions()); len(got) != 0 {
		t.Fatalf("events without subtitles=%d, want 0", len(got))
	}
}
