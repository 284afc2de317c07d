package narration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/theimaginaryfoundation/narration-script/narration/fileutils"
)

// LoadBundle reads an analysis bundle from a single .json, .yaml or .yml file.
func LoadBundle(path string) (AnalysisBundle, error) {
	var b AnalysisBundle
	raw, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("LoadBundle: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if raw, err = yamlToJSON(raw); err != nil {
			return b, fmt.Errorf("LoadBundle: %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("LoadBundle: decode %s: %w", path, err)
	}
	return b, nil
}

// yamlToJSON re-encodes a YAML document so the json tags of the bundle types apply.
func yamlToJSON(raw []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return json.Marshal(v)
}

// LoadAnalysisDir assembles a bundle from the per-artifact layout of an analysis run:
//
//	subtitles.json          required
//	timeline_features.json  optional
//	diarization.json        optional
//	scenes.json             optional
//	visual_features.json    optional
//	speaker_map.json        optional
//
// courseID defaults to the directory name.
func LoadAnalysisDir(dir, courseID string) (AnalysisBundle, error) {
	if courseID == "" {
		courseID = filepath.Base(filepath.Clean(dir))
	}
	b := AnalysisBundle{CourseID: courseID}

	found, err := readJSONArtifact(dir, "subtitles.json", &b.Subtitles)
	if err != nil {
		return b, err
	}
	if !found {
		return b, fmt.Errorf("LoadAnalysisDir: %s: subtitles.json not found", dir)
	}

	var tf TimelineFeatures
	if ok, err := readJSONArtifact(dir, "timeline_features.json", &tf); err != nil {
		return b, err
	} else if ok {
		b.TimelineFeatures = &tf
	}
	if _, err := readJSONArtifact(dir, "diarization.json", &b.Diarization); err != nil {
		return b, err
	}
	if _, err := readJSONArtifact(dir, "scenes.json", &b.Scenes); err != nil {
		return b, err
	}
	if _, err := readJSONArtifact(dir, "visual_features.json", &b.VisualFeatures); err != nil {
		return b, err
	}
	var sm SpeakerMap
	if ok, err := readJSONArtifact(dir, "speaker_map.json", &sm); err != nil {
		return b, err
	} else if ok {
		b.SpeakerMap = &sm
	}
	return b, nil
}

func readJSONArtifact(dir, name string, v any) (bool, error) {
	path := filepath.Join(dir, name)
	raw, ok, err := fileutils.ReadFileIfExists(path)
	if err != nil {
		return false, fmt.Errorf("LoadAnalysisDir: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("LoadAnalysisDir: decode %s: %w", path, err)
	}
	return true, nil
}
