package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theimaginaryfoundation/narration-script/narration/logger"
)

func TestParseFlags_Overrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("narration-script", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-in", "data/course-1/analysis/",
		"-model", "gpt-5-mini",
		"-lang", "en",
		"-audience", "child",
		"-max-per-minute", "2",
		"-window-size", "45",
		"-window-overlap", "5",
		"-retry-failed",
		"-reuse=false",
		"-timeout", "30s",
		"-store", "sqlite",
		"-sqlite", "narration.db",
		"-directions", "english_vocab, culture_bg",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.InPath != filepath.Clean("data/course-1/analysis") {
		t.Fatalf("InPath=%q", cfg.InPath)
	}
	if cfg.NarrationLang != "en" || cfg.Audience != "child" || cfg.MaxPerMinute != 2 {
		t.Fatalf("profile lang=%q audience=%q rate=%d", cfg.NarrationLang, cfg.Audience, cfg.MaxPerMinute)
	}
	if cfg.WindowSize != 45 || cfg.WindowOverlap != 5 {
		t.Fatalf("window=%v/%v", cfg.WindowSize, cfg.WindowOverlap)
	}
	if !cfg.RetryFailed || cfg.Reuse {
		t.Fatalf("RetryFailed=%v Reuse=%v", cfg.RetryFailed, cfg.Reuse)
	}
	if cfg.Timeout != 30*time.Second || cfg.StoreKind != "sqlite" || cfg.SQLitePath != "narration.db" {
		t.Fatalf("timeout=%v store=%q sqlite=%q", cfg.Timeout, cfg.StoreKind, cfg.SQLitePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	gc := generatorConfig(cfg)
	if gc.Profile.Directives == nil || strings.Join(gc.Profile.Directives.Directions, "|") != "english_vocab|culture_bg" {
		t.Fatalf("directives=%+v", gc.Profile.Directives)
	}
}

func TestParseFlags_ConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "narration.yaml")
	doc := "model: from-file\nwindow-size: 90\nlang: en\nlog-level: debug\n"
	if err := os.WriteFile(cfgPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("NARRATION_LEVEL=advanced\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("NARRATION_LEVEL") })
	t.Setenv("NARRATION_WINDOW_SIZE", "120")

	fs := flag.NewFlagSet("narration-script", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-config", cfgPath, "-env-file", envPath, "-in", "x.json", "-lang", "zh"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.Model != "from-file" {
		t.Fatalf("Model=%q, want value from config file", cfg.Model)
	}
	if cfg.WindowSize != 120 {
		t.Fatalf("WindowSize=%v, want env to beat the config file", cfg.WindowSize)
	}
	if cfg.NarrationLang != "zh" {
		t.Fatalf("lang=%q, want explicit flag to win", cfg.NarrationLang)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel=%q", cfg.LogLevel)
	}
	if cfg.EnglishLevel != "advanced" {
		t.Fatalf("EnglishLevel=%q, want value from -env-file", cfg.EnglishLevel)
	}
	if cfg.MaxPerMinute != 3 {
		t.Fatalf("MaxPerMinute=%d, want default", cfg.MaxPerMinute)
	}
}

func TestParseFlags_BadConfigValue(t *testing.T) {
	t.Setenv("NARRATION_WINDOW_OVERLAP", "ten")

	fs := flag.NewFlagSet("narration-script", flag.ContinueOnError)
	if _, err := parseFlags(fs, []string{"-in", "x.json"}); err == nil {
		t.Fatalf("want error for non-numeric window overlap")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := defaultConfig()
	base.InPath = "x.json"
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"missing in", func(c *Config) { c.InPath = "" }, "missing -in"},
		{"missing model", func(c *Config) { c.Model = "" }, "missing -model"},
		{"overlap", func(c *Config) { c.WindowOverlap = c.WindowSize }, "window-overlap"},
		{"rate", func(c *Config) { c.MaxPerMinute = 0 }, "max-per-minute"},
		{"store", func(c *Config) { c.StoreKind = "redis" }, "store must be"},
		{"s3 bucket", func(c *Config) { c.StoreKind = "s3" }, "missing -s3-bucket"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}
	for _, tc := range cases {
		c := base
		tc.mut(&c)
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err=%v, want %q", tc.name, err, tc.want)
		}
	}
}

const bundleJSON = `{
  "course_id": "demo",
  "subtitles": [
    {"index": 1, "start_time": 10, "end_time": 12, "text": "Break a leg"},
    {"index": 2, "start_time": 70, "end_time": 72, "text": "See you later"}
  ],
  "timeline_features": {"gaps": [{"after_index": 1, "start_time": 12, "end_time": 70, "duration": 58}]}
}`

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "bundle.json")
	if err := os.WriteFile(in, []byte(bundleJSON), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := defaultConfig()
	cfg.InPath = in
	cfg.DryRun = true
	var out bytes.Buffer
	if err := run(context.Background(), cfg, logger.Nop(), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	for _, want := range []string{"course=demo", "subtitles=2", "events=3", "windows=2", "window 0 ", "window 1 "} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestLoadInput_CourseIDFallbacks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "lesson-3.yaml")
	doc := "subtitles:\n  - index: 1\n    start_time: 0\n    end_time: 1\n    text: Hi\n"
	if err := os.WriteFile(in, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := loadInput(in, "")
	if err != nil {
		t.Fatalf("loadInput: %v", err)
	}
	if b.CourseID != "lesson-3" {
		t.Fatalf("CourseID=%q, want file stem", b.CourseID)
	}
	b, err = loadInput(in, "override")
	if err != nil || b.CourseID != "override" {
		t.Fatalf("CourseID=%q err=%v", b.CourseID, err)
	}
	if _, err := loadInput(filepath.Join(dir, "missing.json"), ""); err == nil {
		t.Fatalf("want error for missing input")
	}
}

func TestOpenStore_FileAndSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	for _, kind := range []string{"file", "sqlite"} {
		cfg := defaultConfig()
		cfg.StoreKind = kind
		cfg.StoreDir = filepath.Join(dir, "courses")
		cfg.SQLitePath = filepath.Join(dir, "narration.db")

		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			t.Fatalf("%s: openStore: %v", kind, err)
		}
		if err := st.Put(ctx, "demo/script/smart_script.json", []byte("{}")); err != nil {
			t.Fatalf("%s: Put: %v", kind, err)
		}
		got, err := st.Get(ctx, "demo/script/smart_script.json")
		if err != nil || string(got) != "{}" {
			t.Fatalf("%s: Get=%q err=%v", kind, got, err)
		}
		closeStore()
	}
}
