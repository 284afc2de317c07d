package narration

import (
	"fmt"
	"sort"
	"strings"
)

type EventKind string

const (
	EventVisual   EventKind = "visual"
	EventGap      EventKind = "gap"
	EventSubtitle EventKind = "sub"
)

// priority orders events that share a timestamp: visual, then gap, then subtitle.
func (k EventKind) priority() int {
	switch k {
	case EventVisual:
		return 0
	case EventGap:
		return 1
	case EventSubtitle:
		return 2
	}
	return 3
}

// UnifiedEvent is one entry of the merged timeline the oracle sees.
type UnifiedEvent struct {
	Time          float64   `json:"time"`
	Kind          EventKind `json:"event_type"`
	Content       string    `json:"content"`
	Duration      *float64  `json:"duration"`
	Speaker       string    `json:"speaker,omitempty"`
	SceneID       *int      `json:"scene_id"`
	SubtitleIndex *int      `json:"subtitle_index"`
}

// Line renders the event as a single time-tagged oracle input line.
func (e UnifiedEvent) Line() string {
	ts := fmt.Sprintf("%.1fs", e.Time)
	switch e.Kind {
	case EventVisual:
		scene := ""
		if e.SceneID != nil {
			scene = fmt.Sprintf("#%d", *e.SceneID)
		}
		return fmt.Sprintf("[VISUAL%s @ %s] %s", scene, ts, e.Content)
	case EventSubtitle:
		speaker := ""
		if e.Speaker != "" {
			speaker = "[" + e.Speaker + "] "
		}
		sub := ""
		if e.SubtitleIndex != nil {
			sub = fmt.Sprintf("#%d", *e.SubtitleIndex)
		}
		return fmt.Sprintf("[SUB%s @ %s] %s%s", sub, ts, speaker, e.Content)
	case EventGap:
		after := ""
		if e.SubtitleIndex != nil {
			after = fmt.Sprintf("(after#%d)", *e.SubtitleIndex)
		}
		dur := ""
		if e.Duration != nil && *e.Duration != 0 {
			dur = fmt.Sprintf(" (%.1fs)", *e.Duration)
		}
		return fmt.Sprintf("[GAP%s @ %s]%s %s", after, ts, dur, e.Content)
	}
	return fmt.Sprintf("[%s @ %s] %s", strings.ToUpper(string(e.Kind)), ts, e.Content)
}

func (e UnifiedEvent) end() float64 {
	if e.Duration == nil {
		return e.Time
	}
	return e.Time + *e.Duration
}

// LLMInput joins the events into the multi-line block sent to the oracle.
func LLMInput(events []UnifiedEvent) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.Line())
	}
	return strings.Join(lines, "\n")
}

// EventOptions controls which optional event kinds are merged into the timeline.
type EventOptions struct {
	IncludeVisual  bool
	IncludeGaps    bool
	MinGapDuration float64
}

func DefaultEventOptions() EventOptions {
	return EventOptions{IncludeVisual: true, IncludeGaps: true, MinGapDuration: 1.0}
}

// BuildEvents merges subtitles, gaps and scene visuals into one time-ordered list.
// A bundle without subtitles yields no events.
func BuildEvents(b AnalysisBundle, opt EventOptions) []UnifiedEvent {
	if len(b.Subtitles) == 0 {
		return nil
	}

	events := make([]UnifiedEvent, 0, len(b.Subtitles)+len(b.Gaps())+len(b.Scenes))
	for _, s := range b.Subtitles {
		dur := s.Duration()
		idx := s.Index
		ev := UnifiedEvent{
			Time:          s.StartTime,
			Kind:          EventSubtitle,
			Content:       s.Text,
			Duration:      &dur,
			SubtitleIndex: &idx,
		}
		if s.SpeakerID != nil && *s.SpeakerID != "" {
			ev.Speaker = b.SpeakerMap.Name(*s.SpeakerID)
		}
		events = append(events, ev)
	}

	if opt.IncludeGaps {
		for _, g := range b.Gaps() {
			if g.Duration < opt.MinGapDuration {
				continue
			}
			dur := g.Duration
			after := g.AfterIndex
			events = append(events, UnifiedEvent{
				Time:          g.StartTime,
				Kind:          EventGap,
				Content:       fmt.Sprintf("Silent gap after subtitle #%d", g.AfterIndex),
				Duration:      &dur,
				SubtitleIndex: &after,
			})
		}
	}

	if opt.IncludeVisual && len(b.VisualFeatures) > 0 {
		byScene := make(map[int]VisualFeature, len(b.VisualFeatures))
		for _, vf := range b.VisualFeatures {
			byScene[vf.SceneID] = vf
		}
		for _, sc := range b.Scenes {
			content := fmt.Sprintf("Scene %d starts", sc.SceneID)
			if vf, ok := byScene[sc.SceneID]; ok && vf.Caption != "" {
				content = vf.Caption
				if len(vf.Characters) > 0 {
					content += " Characters: " + strings.Join(vf.Characters, ", ")
				}
			}
			dur := sc.EndTime - sc.StartTime
			id := sc.SceneID
			events = append(events, UnifiedEvent{
				Time:     sc.StartTime,
				Kind:     EventVisual,
				Content:  content,
				Duration: &dur,
				SceneID:  &id,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].Kind.priority() < events[j].Kind.priority()
	})
	return events
}
