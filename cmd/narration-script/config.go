package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/theimaginaryfoundation/narration-script/narration/logger"
)

type Config struct {
	InPath      string
	CourseID    string
	CourseTitle string
	OutPath     string
	Pretty      bool

	Model           string
	APIKey          string
	BaseURL         string
	SendTemperature bool
	FlexTier        bool
	Timeout         time.Duration
	Structured      bool

	NarrationLang string
	Audience      string
	EnglishLevel  string
	MaxPerMinute  int
	Directions    string

	WindowSize     float64
	WindowOverlap  float64
	IntroSubtitles int
	Reuse          bool
	RetryFailed    bool

	StoreKind        string
	StoreDir         string
	SQLitePath       string
	S3Bucket         string
	S3Prefix         string
	S3Region         string
	S3Endpoint       string
	S3ForcePathStyle bool

	DryRun    bool
	LogLevel  string
	LogFormat string

	ConfigFile string
	EnvFile    string
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.Model == "" && !c.DryRun {
		return errors.New("missing -model")
	}
	if !(c.WindowSize > 0) {
		return errors.New("window-size must be > 0")
	}
	if c.WindowOverlap < 0 || c.WindowOverlap >= c.WindowSize {
		return errors.New("window-overlap must be >= 0 and < window-size")
	}
	if c.MaxPerMinute < 1 {
		return errors.New("max-per-minute must be >= 1")
	}
	if c.IntroSubtitles < 0 {
		return errors.New("intro-subtitles must be >= 0")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	switch c.StoreKind {
	case "file":
		if c.StoreDir == "" {
			return errors.New("missing -store-dir")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing -sqlite")
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("missing -s3-bucket")
		}
	default:
		return errors.New("store must be one of file, sqlite, s3")
	}
	return c.logConfig().Validate()
}

func (c Config) logConfig() logger.Config {
	lc := logger.Config{Level: c.LogLevel, Format: c.LogFormat}
	lc.ApplyDefaults()
	return lc
}

func defaultConfig() Config {
	return Config{
		Model:           "gpt-5-mini",
		SendTemperature: true,
		Timeout:         5 * time.Minute,
		NarrationLang:   "zh",
		Audience:        "adult",
		EnglishLevel:    "intermediate",
		MaxPerMinute:    3,
		WindowSize:      60,
		WindowOverlap:   10,
		IntroSubtitles:  6,
		Reuse:           true,
		StoreKind:       "file",
		StoreDir:        filepath.FromSlash("data/courses"),
		LogLevel:        "info",
		LogFormat:       "console",
	}
}
