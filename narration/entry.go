package narration

import "strings"

type ActionType string

const (
	ActionPreTeachPause ActionType = "pre_teach_pause"
	ActionGapFilling    ActionType = "gap_filling"
	ActionIgnore        ActionType = "ignore"
)

// ReasonIntro marks the synthetic opening entry.
const ReasonIntro = "intro"

// Ref ties an entry back to the input events it was derived from.
type Ref struct {
	SubtitleIndexes []int  `json:"subtitle_indexes,omitempty"`
	SceneIDs        []int  `json:"scene_ids,omitempty"`
	GapAfterIndexes []int  `json:"gap_after_indexes,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

func (r Ref) Clone() Ref {
	return Ref{
		SubtitleIndexes: cloneInts(r.SubtitleIndexes),
		SceneIDs:        cloneInts(r.SceneIDs),
		GapAfterIndexes: cloneInts(r.GapAfterIndexes),
		Reason:          r.Reason,
	}
}

func (r Ref) IsIntro() bool {
	return strings.ToLower(strings.TrimSpace(r.Reason)) == ReasonIntro
}

type WidgetType string

const (
	WidgetExplainCard WidgetType = "explain_card"
	WidgetQACard      WidgetType = "qa_card"
	WidgetGraph       WidgetType = "graph"
	WidgetMindmap     WidgetType = "mindmap"
	WidgetStepsCard   WidgetType = "steps_card"
)

func (w WidgetType) Valid() bool {
	switch w {
	case WidgetExplainCard, WidgetQACard, WidgetGraph, WidgetMindmap, WidgetStepsCard:
		return true
	}
	return false
}

// Widget is optional structured overlay content attached to an entry.
type Widget struct {
	WidgetType WidgetType     `json:"widget_type"`
	Title      string         `json:"title"`
	Body       map[string]any `json:"body"`
}

// ScriptEntry is a single narration action. Candidates parsed from the oracle use the
// same shape; EntryID is assigned only once the final script is assembled.
type ScriptEntry struct {
	EntryID           string     `json:"entry_id,omitempty"`
	TimeIn            float64    `json:"time_in"`
	ActionType        ActionType `json:"action_type"`
	Script            string     `json:"script"`
	Ducking           bool       `json:"ducking"`
	EstimatedDuration float64    `json:"estimated_duration"`
	Ref               Ref        `json:"ref"`
	TTSPath           *string    `json:"tts_path"`
	Widget            *Widget    `json:"widget"`
}

// End is the time the entry's narration is expected to finish.
func (e ScriptEntry) End() float64 {
	return e.TimeIn + e.EstimatedDuration
}

const (
	ScriptVersion  = "1.0"
	ScriptRevision = "llm_v1"
	GeneratorLLM   = "llm"
)

// Script is the finalized, time-ordered narration schedule for one course.
type Script struct {
	Version       string        `json:"version"`
	CourseID      string        `json:"course_id"`
	ScriptVersion string        `json:"script_version"`
	ProfileHash   string        `json:"profile_hash"`
	InputHash     string        `json:"input_hash"`
	Entries       []ScriptEntry `json:"entries"`
	Directives    *Directives   `json:"directives"`
	GeneratedAt   string        `json:"generated_at"`
	Generator     string        `json:"generator"`
}

// ScriptMeta is the small sidecar written next to a saved script.
type ScriptMeta struct {
	CacheKey      string `json:"cache_key"`
	CourseID      string `json:"course_id"`
	InputHash     string `json:"input_hash"`
	ProfileHash   string `json:"profile_hash"`
	GeneratedAt   string `json:"generated_at"`
	EntryCount    int    `json:"entry_count"`
	FailedWindows []int  `json:"failed_windows"`
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	return append([]int(nil), in...)
}

func cloneEntries(in []ScriptEntry) []ScriptEntry {
	out := make([]ScriptEntry, len(in))
	for i, e := range in {
		e.Ref = e.Ref.Clone()
		out[i] = e
	}
	return out
}
