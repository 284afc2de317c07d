package narration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/theimaginaryfoundation/narration-script/narration/fileutils"
)

// canonicalJSON encodes v with sorted object keys and no HTML escaping, so equal inputs
// always hash equally regardless of struct field order.
func canonicalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return fileutils.MarshalJSON(generic, false)
}

func hashJSON(v any) (string, error) {
	b, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// InputHash fingerprints everything in the bundle that can change the generated script.
// Diarization is excluded.
func InputHash(b AnalysisBundle) (string, error) {
	subs := b.Subtitles
	if subs == nil {
		subs = []Subtitle{}
	}
	payload := map[string]any{
		"subtitles":         subs,
		"timeline_features": nil,
		"scenes":            nil,
		"visual_features":   nil,
		"speaker_map":       nil,
	}
	if b.TimelineFeatures != nil {
		payload["timeline_features"] = b.TimelineFeatures
	}
	if len(b.Scenes) > 0 {
		payload["scenes"] = b.Scenes
	}
	if len(b.VisualFeatures) > 0 {
		payload["visual_features"] = b.VisualFeatures
	}
	if b.SpeakerMap != nil {
		payload["speaker_map"] = b.SpeakerMap.Mappings
	}
	h, err := hashJSON(payload)
	if err != nil {
		return "", fmt.Errorf("InputHash: %w", err)
	}
	return h, nil
}

// ProfileHash is a short fingerprint of the narration profile.
func ProfileHash(p Profile) (string, error) {
	h, err := hashJSON(p)
	if err != nil {
		return "", fmt.Errorf("ProfileHash: %w", err)
	}
	return h[:16], nil
}

// SubtitlesHash fingerprints only the fields of each subtitle that matter for playback,
// with times rounded to the millisecond.
func SubtitlesHash(subs []Subtitle) (string, error) {
	type essential struct {
		Index     int     `json:"index"`
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
		Text      string  `json:"text"`
	}
	list := make([]essential, 0, len(subs))
	for _, s := range subs {
		list = append(list, essential{
			Index:     s.Index,
			StartTime: roundMillis(s.StartTime),
			EndTime:   roundMillis(s.EndTime),
			Text:      s.Text,
		})
	}
	h, err := hashJSON(list)
	if err != nil {
		return "", fmt.Errorf("SubtitlesHash: %w", err)
	}
	return h, nil
}

// ScriptCacheKey identifies a generated script by course, subtitle content and profile.
func ScriptCacheKey(courseID, subtitlesHash, profileHash string) string {
	profile := "default"
	if profileHash != "" {
		profile = shorten(profileHash, 16)
	}
	return strings.Join([]string{
		"script:" + ScriptVersion,
		"course:" + courseID,
		"subs:" + shorten(subtitlesHash, 16),
		"profile:" + profile,
		"gen:" + GeneratorLLM,
	}, ":")
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func roundMillis(v float64) float64 {
	return math.Round(v*1000) / 1000
}
