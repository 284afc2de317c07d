package narration

// Subtitle is one timed subtitle line, format-agnostic.
type Subtitle struct {
	Index     int     `json:"index"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
	SpeakerID *string `json:"speaker_id"`
}

func (s Subtitle) Duration() float64 {
	if s.EndTime <= s.StartTime {
		return 0
	}
	return s.EndTime - s.StartTime
}

// Gap is the silence between two consecutive subtitles.
type Gap struct {
	AfterIndex int     `json:"after_index"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Duration   float64 `json:"duration"`
}

type DensityInfo struct {
	Index          int     `json:"index"`
	WordsPerSecond float64 `json:"words_per_second"`
	IsHighDensity  bool    `json:"is_high_density"`
}

// TimelineFeatures groups gap and speech-density analysis of the subtitle track.
type TimelineFeatures struct {
	Gaps             []Gap         `json:"gaps"`
	Densities        []DensityInfo `json:"densities"`
	GapThreshold     float64       `json:"gap_threshold"`
	DensityThreshold float64       `json:"density_threshold"`
}

type Scene struct {
	SceneID       int      `json:"scene_id"`
	StartTime     float64  `json:"start_time"`
	EndTime       float64  `json:"end_time"`
	KeyframePaths []string `json:"keyframe_paths"`
}

// VisualFeature is the vision caption for one scene.
type VisualFeature struct {
	SceneID    int      `json:"scene_id"`
	Caption    string   `json:"caption"`
	Characters []string `json:"characters"`
	Tags       []string `json:"tags"`
}

type DiarizationSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// SpeakerMap maps diarization speaker ids to character names.
type SpeakerMap struct {
	Mappings map[string]string `json:"mappings"`
}

// Name returns the mapped name for id, or id itself when unmapped.
func (m *SpeakerMap) Name(id string) string {
	if m == nil {
		return id
	}
	if name, ok := m.Mappings[id]; ok {
		return name
	}
	return id
}

// AnalysisBundle is everything the engine reads for one course.
type AnalysisBundle struct {
	CourseID         string               `json:"course_id"`
	Subtitles        []Subtitle           `json:"subtitles"`
	TimelineFeatures *TimelineFeatures    `json:"timeline_features"`
	Scenes           []Scene              `json:"scenes"`
	Diarization      []DiarizationSegment `json:"diarization"`
	VisualFeatures   []VisualFeature      `json:"visual_features"`
	SpeakerMap       *SpeakerMap          `json:"speaker_map"`
	AnalyzedAt       string               `json:"analyzed_at,omitempty"`
	AnalysisVersion  string               `json:"analysis_version,omitempty"`
}

// Gaps returns the timeline gaps, or nil when no timeline features exist.
func (b AnalysisBundle) Gaps() []Gap {
	if b.TimelineFeatures == nil {
		return nil
	}
	return b.TimelineFeatures.Gaps
}
