package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/theimaginaryfoundation/narration-script/narration/fileutils"
	"github.com/theimaginaryfoundation/narration-script/narration/store"
)

const windowCacheVersion = "1.0"

type SlotStatus string

const (
	StatusMissing SlotStatus = "missing"
	StatusSuccess SlotStatus = "success"
	StatusFailed  SlotStatus = "failed"
)

// IntroSlot records the outcome of the intro oracle call.
type IntroSlot struct {
	Status SlotStatus `json:"status"`
	Text   string     `json:"text"`
	Error  string     `json:"error"`
}

// WindowSlot records the outcome of one window's oracle call.
type WindowSlot struct {
	Index     int           `json:"index"`
	StartTime float64       `json:"start_time"`
	EndTime   float64       `json:"end_time"`
	Status    SlotStatus    `json:"status"`
	Entries   []ScriptEntry `json:"entries"`
	Error     string        `json:"error"`
}

// Done reports whether the slot holds a successful result that can be reused.
func (s *WindowSlot) Done() bool {
	return s != nil && s.Status == StatusSuccess && s.Entries != nil
}

// Fingerprint is everything a cached window result depends on. A cache written under a
// different fingerprint is never reused.
type Fingerprint struct {
	InputHash           string
	ProfileHash         string
	WindowSize          float64
	WindowOverlap       float64
	Model               string
	NarrationLang       string
	Audience            string
	EnglishLevel        string
	MaxEntriesPerMinute int
}

// WindowCache is the persisted per-window progress of a generation run.
type WindowCache struct {
	Version             string                 `json:"version"`
	Generator           string                 `json:"generator"`
	GeneratedAt         string                 `json:"generated_at"`
	InputHash           string                 `json:"input_hash"`
	ProfileHash         string                 `json:"profile_hash"`
	WindowSize          float64                `json:"window_size"`
	WindowOverlap       float64                `json:"window_overlap"`
	Model               string                 `json:"model"`
	NarrationLang       string                 `json:"narration_lang"`
	Audience            string                 `json:"audience"`
	EnglishLevel        string                 `json:"english_level"`
	MaxEntriesPerMinute int                    `json:"max_entries_per_minute"`
	Intro               IntroSlot              `json:"intro"`
	Windows             map[string]*WindowSlot `json:"windows"`
}

func NewWindowCache(fp Fingerprint, now time.Time) *WindowCache {
	return &WindowCache{
		Version:             windowCacheVersion,
		Generator:           GeneratorLLM,
		GeneratedAt:         isoTimestamp(now),
		InputHash:           fp.InputHash,
		ProfileHash:         fp.ProfileHash,
		WindowSize:          fp.WindowSize,
		WindowOverlap:       fp.WindowOverlap,
		Model:               fp.Model,
		NarrationLang:       fp.NarrationLang,
		Audience:            fp.Audience,
		EnglishLevel:        fp.EnglishLevel,
		MaxEntriesPerMinute: fp.MaxEntriesPerMinute,
		Intro:               IntroSlot{Status: StatusMissing},
		Windows:             map[string]*WindowSlot{},
	}
}

// Compatible reports whether c was produced under fp.
func (c *WindowCache) Compatible(fp Fingerprint) bool {
	if c == nil {
		return false
	}
	return c.Generator == GeneratorLLM &&
		c.InputHash == fp.InputHash &&
		c.ProfileHash == fp.ProfileHash &&
		c.WindowSize == fp.WindowSize &&
		c.WindowOverlap == fp.WindowOverlap &&
		c.NarrationLang == fp.NarrationLang &&
		c.Audience == fp.Audience &&
		c.EnglishLevel == fp.EnglishLevel &&
		c.MaxEntriesPerMinute == fp.MaxEntriesPerMinute &&
		c.Model == fp.Model
}

func (c *WindowCache) Slot(index int) *WindowSlot {
	return c.Windows[strconv.Itoa(index)]
}

func (c *WindowCache) SetSlot(s *WindowSlot) {
	if c.Windows == nil {
		c.Windows = map[string]*WindowSlot{}
	}
	c.Windows[strconv.Itoa(s.Index)] = s
}

// FailedWindows returns the indices of failed slots in ascending order.
func (c *WindowCache) FailedWindows() []int {
	out := []int{}
	for k, s := range c.Windows {
		if s == nil || s.Status != StatusFailed {
			continue
		}
		i, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// LoadWindowCache reads the cache stored under key. A missing cache is (nil, nil).
func LoadWindowCache(ctx context.Context, st Store, key string) (*WindowCache, error) {
	b, err := st.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("LoadWindowCache: get %s: %w", key, err)
	}
	var c WindowCache
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("LoadWindowCache: decode %s: %w", key, err)
	}
	return &c, nil
}

func SaveWindowCache(ctx context.Context, st Store, key string, c *WindowCache) error {
	b, err := fileutils.MarshalJSON(c, true)
	if err != nil {
		return fmt.Errorf("SaveWindowCache: encode: %w", err)
	}
	if err := st.Put(ctx, key, append(b, '\n')); err != nil {
		return fmt.Errorf("SaveWindowCache: put %s: %w", key, err)
	}
	return nil
}

func isoTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
