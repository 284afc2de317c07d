package narration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theimaginaryfoundation/narration-script/narration/store"
)

func TestInputHash_StableAndIgnoresDiarization(t *testing.T) {
	t.Parallel()

	a := sampleBundle()
	h1, err := InputHash(a)
	if err != nil {
		t.Fatalf("InputHash: %v", err)
	}
	if len(h1) != 64 {
		t.Fatalf("len(hash)=%d, want 64", len(h1))
	}

	b := sampleBundle()
	b.Diarization = []DiarizationSegment{{SpeakerID: "S1", StartTime: 0, EndTime: 2}}
	b.AnalyzedAt = "2026-01-01T00:00:00Z"
	h2, _ := InputHash(b)
	if h1 != h2 {
		t.Fatalf("diarization changed the input hash")
	}

	b.Subtitles[1].Text = "How old are you"
	h3, _ := InputHash(b)
	if h3 == h1 {
		t.Fatalf("subtitle text change did not change the hash")
	}

	empty := sampleBundle()
	empty.Scenes, empty.VisualFeatures = []Scene{}, []VisualFeature{}
	none := sampleBundle()
	none.Scenes, none.VisualFeatures = nil, nil
	he, _ := InputHash(empty)
	hn, _ := InputHash(none)
	if he != hn {
		t.Fatalf("empty and missing scenes should hash the same")
	}
}

func TestProfileHashAndCacheKey(t *testing.T) {
	t.Parallel()

	p := DefaultProfile()
	h1, err := ProfileHash(p)
	if err != nil || len(h1) != 16 {
		t.Fatalf("ProfileHash=%q err=%v", h1, err)
	}
	p.EnglishLevel = "advanced"
	if h2, _ := ProfileHash(p); h2 == h1 {
		t.Fatalf("profile change did not change the hash")
	}

	subs := []Subtitle{{Index: 1, StartTime: 1.00004, EndTime: 2, Text: "a"}}
	s1, _ := SubtitlesHash(subs)
	subs[0].StartTime = 1.0
	s2, _ := SubtitlesHash(subs)
	if s1 != s2 {
		t.Fatalf("sub-millisecond jitter changed the subtitles hash")
	}

	key := ScriptCacheKey("c1", s1, "")
	want := "script:1.0:course:c1:subs:" + s1[:16] + ":profile:default:gen:llm"
	if key != want {
		t.Fatalf("key=%q, want %q", key, want)
	}
	if !strings.Contains(ScriptCacheKey("c1", s1, h1), ":profile:"+h1+":") {
		t.Fatalf("profile hash missing from key")
	}
}

func TestWindowCache_CompatibleAndRoundTrip(t *testing.T) {
	t.Parallel()

	fp := Fingerprint{InputHash: "in", ProfileHash: "p", WindowSize: 60, WindowOverlap: 10, Model: "m", NarrationLang: "en", Audience: "adult", MaxEntriesPerMinute: 3}
	c := NewWindowCache(fp, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if !c.Compatible(fp) {
		t.Fatalf("new cache should be compatible with its fingerprint")
	}
	other := fp
	other.Model = "m2"
	if c.Compatible(other) {
		t.Fatalf("model change should invalidate")
	}
	var nilCache *WindowCache
	if nilCache.Compatible(fp) {
		t.Fatalf("nil cache should never be compatible")
	}

	c.SetSlot(&WindowSlot{Index: 2, Status: StatusFailed, Entries: []ScriptEntry{}, Error: "boom"})
	c.SetSlot(&WindowSlot{Index: 0, Status: StatusSuccess, Entries: []ScriptEntry{}})
	c.SetSlot(&WindowSlot{Index: 1, Status: StatusFailed, Entries: []ScriptEntry{}})

	st := store.NewMemory()
	ctx := context.Background()
	if err := SaveWindowCache(ctx, st, "k", c); err != nil {
		t.Fatalf("SaveWindowCache: %v", err)
	}
	got, err := LoadWindowCache(ctx, st, "k")
	if err != nil {
		t.Fatalf("LoadWindowCache: %v", err)
	}
	if !got.Compatible(fp) || got.GeneratedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("loaded cache=%+v", got)
	}
	if !got.Slot(0).Done() || got.Slot(1).Done() || got.Slot(5) != nil {
		t.Fatalf("slots=%+v", got.Windows)
	}
	if fw := got.FailedWindows(); len(fw) != 2 || fw[0] != 1 || fw[1] != 2 {
		t.Fatalf("FailedWindows=%v, want [1 2]", fw)
	}

	missing, err := LoadWindowCache(ctx, st, "absent")
	if missing != nil || err != nil {
		t.Fatalf("missing cache=%v err=%v, want nil,nil", missing, err)
	}
	_ = st.Put(ctx, "bad", []byte("{"))
	if _, err := LoadWindowCache(ctx, st, "bad"); err == nil {
		t.Fatalf("corrupt cache should error")
	}
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := ValidateStruct(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.WindowOverlap = cfg.WindowSize
	cfg.Profile.NarrationLang = ""
	err := ValidateStruct(cfg)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v, want *ValidationError", err)
	}
	msg := verr.Error()
	for _, want := range []string{"window_overlap: must be < WindowSize", "profile.narration_lang: is required"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
}

func TestLoadBundle_JSONAndYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "bundle.json")
	if err := os.WriteFile(jsonPath, []byte(`{"course_id":"c1","subtitles":[{"index":1,"start_time":0,"end_time":1.5,"text":"Hi"}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := LoadBundle(jsonPath)
	if err != nil {
		t.Fatalf("LoadBundle json: %v", err)
	}
	if b.CourseID != "c1" || len(b.Subtitles) != 1 || b.Subtitles[0].EndTime != 1.5 {
		t.Fatalf("bundle=%+v", b)
	}

	yamlPath := filepath.Join(dir, "bundle.yaml")
	doc := "course_id: c2\nsubtitles:\n  - index: 1\n    start_time: 0\n    end_time: 2\n    text: Hello\ntimeline_features:\n  gaps:\n    - after_index: 1\n      start_time: 2\n      end_time: 4\n      duration: 2\n"
	if err := os.WriteFile(yamlPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err = LoadBundle(yamlPath)
	if err != nil {
		t.Fatalf("LoadBundle yaml: %v", err)
	}
	if b.CourseID != "c2" || len(b.Gaps()) != 1 || b.Gaps()[0].Duration != 2 {
		t.Fatalf("bundle=%+v", b)
	}
}

func TestLoadAnalysisDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "course-7")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := LoadAnalysisDir(dir, ""); err == nil {
		t.Fatalf("missing subtitles.json should error")
	}

	files := map[string]string{
		"subtitles.json":   `[{"index":1,"start_time":0,"end_time":1,"text":"a"}]`,
		"speaker_map.json": `{"mappings":{"S1":"Ann"}}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	b, err := LoadAnalysisDir(dir, "")
	if err != nil {
		t.Fatalf("LoadAnalysisDir: %v", err)
	}
	if b.CourseID != "course-7" || len(b.Subtitles) != 1 {
		t.Fatalf("bundle=%+v", b)
	}
	if b.TimelineFeatures != nil || b.SpeakerMap == nil || b.SpeakerMap.Name("S1") != "Ann" {
		t.Fatalf("optional artifacts: tf=%v sm=%v", b.TimelineFeatures, b.SpeakerMap)
	}
}
