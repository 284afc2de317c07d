package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/narration-script/narration/fileutils"
	"github.com/theimaginaryfoundation/narration-script/narration/logger"
	"github.com/theimaginaryfoundation/narration-script/narration/store"
)

const (
	PurposeWindow = "window"
	PurposeIntro  = "intro"
)

// OracleRequest is one call to the language model.
type OracleRequest struct {
	Purpose     string
	Model       string
	System      string
	User        string
	Temperature float64
	// Structured asks for the window JSON envelope instead of free text.
	Structured bool
}

// Oracle produces narration text. Implementations must honor ctx cancellation.
type Oracle interface {
	Complete(ctx context.Context, req OracleRequest) (string, error)
}

// Store persists blobs. Get returns store.ErrNotFound for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Config is the fixed part of a Generator.
type Config struct {
	Model            string       `json:"model"`
	Profile          Profile      `json:"profile"`
	WindowSize       float64      `json:"window_size" validate:"gt=0"`
	WindowOverlap    float64      `json:"window_overlap" validate:"gte=0,ltfield=WindowSize"`
	StructuredOutput bool         `json:"structured_output"`
	Events           EventOptions `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Profile:       DefaultProfile(),
		WindowSize:    60,
		WindowOverlap: 10,
		Events:        DefaultEventOptions(),
	}
}

// GenerateOptions are per-run switches.
type GenerateOptions struct {
	// ProfileHash identifies the caller's profile; when empty it is derived from the profile.
	ProfileHash        string
	CourseTitle        string
	IntroSubtitleCount int
	ReuseCachedWindows bool
	RetryFailedOnly    bool
}

func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{IntroSubtitleCount: 6, ReuseCachedWindows: true}
}

// Generator turns analysis bundles into narration scripts, one window of the timeline per
// oracle call, persisting progress after every call so an interrupted run resumes.
type Generator struct {
	oracle Oracle
	store  Store
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
}

type Option func(*Generator)

func WithLogger(l *logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGenerator(oracle Oracle, st Store, cfg Config, opts ...Option) (*Generator, error) {
	if oracle == nil {
		return nil, errors.New("NewGenerator: oracle is nil")
	}
	if st == nil {
		return nil, errors.New("NewGenerator: store is nil")
	}
	if err := ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("NewGenerator: %w", err)
	}
	g := &Generator{oracle: oracle, store: st, cfg: cfg, log: logger.Nop(), now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.log = g.log.WithComponent("generator")
	return g, nil
}

func (g *Generator) fingerprint(inputHash, profileHash string) Fingerprint {
	p := g.cfg.Profile
	return Fingerprint{
		InputHash:           inputHash,
		ProfileHash:         profileHash,
		WindowSize:          g.cfg.WindowSize,
		WindowOverlap:       g.cfg.WindowOverlap,
		Model:               g.cfg.Model,
		NarrationLang:       p.NarrationLang,
		Audience:            p.Audience,
		EnglishLevel:        p.EnglishLevel,
		MaxEntriesPerMinute: p.MaxEntriesPerMinute,
	}
}

// Generate builds the narration script for b. Window failures are recorded in the window
// cache and only surface as an EmptyScriptError when nothing usable remains.
func (g *Generator) Generate(ctx context.Context, b AnalysisBundle, opt GenerateOptions) (*Script, error) {
	started := g.now()
	p := g.cfg.Profile
	log := g.log.WithFields(logger.Fields(logger.FieldCourseID, b.CourseID))

	inputHash, err := InputHash(b)
	if err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}
	profileHash := opt.ProfileHash
	if profileHash == "" {
		if profileHash, err = ProfileHash(p); err != nil {
			return nil, fmt.Errorf("Generate: %w", err)
		}
	}

	events := BuildEvents(b, g.cfg.Events)
	if len(events) == 0 {
		log.Warn("no events to narrate")
		return &Script{
			Version:       ScriptVersion,
			CourseID:      b.CourseID,
			ScriptVersion: ScriptRevision,
			ProfileHash:   profileHash,
			InputHash:     inputHash,
			Entries:       []ScriptEntry{},
			Directives:    p.Directives,
			GeneratedAt:   isoTimestamp(g.now()),
			Generator:     GeneratorLLM,
		}, nil
	}

	windows, err := SlidingWindows(events, g.cfg.WindowSize, g.cfg.WindowOverlap)
	if err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}
	log.Info("generating narration script", logger.Fields("windows", len(windows), "events", len(events)))

	cacheKey := store.WindowCacheKey(b.CourseID)
	fp := g.fingerprint(inputHash, profileHash)
	reuse := opt.ReuseCachedWindows || opt.RetryFailedOnly

	var cache *WindowCache
	if reuse {
		cache, err = LoadWindowCache(ctx, g.store, cacheKey)
		if err != nil {
			log.Warn("window cache unreadable, starting fresh", logger.Fields(logger.FieldError, err))
			cache = nil
		}
	}
	if !cache.Compatible(fp) {
		if cache != nil {
			log.Info("window cache does not match inputs, starting fresh")
		}
		cache = NewWindowCache(fp, g.now())
	}
	cache.GeneratedAt = isoTimestamp(g.now())

	introText, err := g.resolveIntro(ctx, cache, cacheKey, b, opt)
	if err != nil {
		return nil, err
	}

	var candidates []ScriptEntry
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wlog := log.WithFields(logger.Fields(logger.FieldWindow, w.Index))

		if slot := cache.Slot(w.Index); reuse && slot.Done() {
			wlog.Debug("reusing cached window", logger.Fields("entries", len(slot.Entries)))
			candidates = append(candidates, cloneEntries(slot.Entries)...)
			continue
		}

		start, end := w.Span()
		slot := &WindowSlot{Index: w.Index, StartTime: start, EndTime: end}
		entries, werr := g.processWindow(ctx, w)
		if werr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			werr = &WindowError{Index: w.Index, Err: werr}
			slot.Status, slot.Entries, slot.Error = StatusFailed, []ScriptEntry{}, werr.Error()
			wlog.Warn("window failed", logger.Fields(logger.FieldError, werr))
		} else {
			if entries == nil {
				entries = []ScriptEntry{}
			}
			slot.Status, slot.Entries = StatusSuccess, entries
			candidates = append(candidates, cloneEntries(entries)...)
			wlog.Debug("window done", logger.Fields("entries", len(entries)))
		}
		cache.SetSlot(slot)
		cache.GeneratedAt = isoTimestamp(g.now())
		if err := SaveWindowCache(ctx, g.store, cacheKey, cache); err != nil {
			return nil, fmt.Errorf("Generate: %w", err)
		}
	}

	var intro *ScriptEntry
	if text := strings.TrimSpace(introText); text != "" {
		intro = introEntry(text, b.Subtitles, opt.IntroSubtitleCount, p.langKey())
	}

	final := Postprocess(candidates, b, intro, p)
	if len(final) == 0 {
		return nil, &EmptyScriptError{FailedWindows: cache.FailedWindows()}
	}
	for i := range final {
		final[i].EntryID = fmt.Sprintf("llm_entry_%04d", i)
	}

	log.Info("narration script generated", logger.Fields(
		"entries", len(final),
		"candidates", len(candidates),
		"failed_windows", cache.FailedWindows(),
	), logger.Since(started))

	return &Script{
		Version:       ScriptVersion,
		CourseID:      b.CourseID,
		ScriptVersion: ScriptRevision,
		ProfileHash:   profileHash,
		InputHash:     inputHash,
		Entries:       final,
		Directives:    p.Directives,
		GeneratedAt:   isoTimestamp(g.now()),
		Generator:     GeneratorLLM,
	}, nil
}

// resolveIntro returns the intro text to use, calling the oracle when the cached intro
// cannot be reused. The cache is persisted after every attempt.
func (g *Generator) resolveIntro(ctx context.Context, cache *WindowCache, key string, b AnalysisBundle, opt GenerateOptions) (string, error) {
	try := true
	switch {
	case opt.RetryFailedOnly:
		try = cache.Intro.Status != StatusSuccess
	case opt.ReuseCachedWindows:
		try = !(cache.Intro.Status == StatusSuccess && strings.TrimSpace(cache.Intro.Text) != "")
	}
	if !try {
		return cache.Intro.Text, nil
	}

	text, err := g.generateIntro(ctx, b, opt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		g.log.Warn("intro failed", logger.Fields(logger.FieldError, err))
		cache.Intro = IntroSlot{Status: StatusFailed, Error: err.Error()}
	} else {
		cache.Intro = IntroSlot{Status: StatusSuccess, Text: strings.TrimSpace(text)}
	}
	if err := SaveWindowCache(ctx, g.store, key, cache); err != nil {
		return "", fmt.Errorf("Generate: %w", err)
	}
	return cache.Intro.Text, nil
}

func (g *Generator) generateIntro(ctx context.Context, b AnalysisBundle, opt GenerateOptions) (string, error) {
	p := g.cfg.Profile
	out, err := g.oracle.Complete(ctx, OracleRequest{
		Purpose:     PurposeIntro,
		Model:       g.cfg.Model,
		System:      IntroSystemPrompt(p),
		User:        IntroUserPrompt(p, opt.CourseTitle, b.Subtitles, max(0, opt.IntroSubtitleCount)),
		Temperature: introTemperature,
	})
	if err != nil {
		return "", err
	}
	return Sanitizer{Lang: p.NarrationLang}.Sanitize(out), nil
}

func (g *Generator) processWindow(ctx context.Context, w Window) ([]ScriptEntry, error) {
	p := g.cfg.Profile
	start, end := w.Span()
	out, err := g.oracle.Complete(ctx, OracleRequest{
		Purpose:     PurposeWindow,
		Model:       g.cfg.Model,
		System:      SystemPrompt(p),
		User:        UserPrompt(p, start, end, LLMInput(w.Events)),
		Temperature: windowTemperature,
		Structured:  g.cfg.StructuredOutput,
	})
	if err != nil {
		return nil, err
	}
	entries, err := ParseCandidates(out, Sanitizer{Lang: p.NarrationLang})
	if err != nil {
		g.log.Debug("unparseable window output", logger.Fields(
			logger.FieldWindow, w.Index,
			"output", fileutils.Truncate(fileutils.OneLine(out), 300),
		))
		return nil, err
	}
	return entries, nil
}

func introEntry(text string, subs []Subtitle, count int, lang string) *ScriptEntry {
	ref := Ref{Reason: ReasonIntro}
	for i, s := range subs {
		if i >= max(0, count) {
			break
		}
		ref.SubtitleIndexes = append(ref.SubtitleIndexes, s.Index)
	}
	return &ScriptEntry{
		TimeIn:            0,
		ActionType:        ActionPreTeachPause,
		Script:            text,
		EstimatedDuration: EstimateDuration(lang, text),
		Ref:               ref,
	}
}

// SaveScript writes the script and its meta sidecar. subs are the subtitles the script
// was generated from and feed the cache key.
func (g *Generator) SaveScript(ctx context.Context, s *Script, subs []Subtitle) error {
	if s == nil {
		return errors.New("SaveScript: script is nil")
	}
	subsHash, err := SubtitlesHash(subs)
	if err != nil {
		return fmt.Errorf("SaveScript: %w", err)
	}

	failed := []int{}
	if cache, err := LoadWindowCache(ctx, g.store, store.WindowCacheKey(s.CourseID)); err == nil && cache != nil && cache.InputHash == s.InputHash {
		failed = cache.FailedWindows()
	}

	body, err := fileutils.MarshalJSON(s, true)
	if err != nil {
		return fmt.Errorf("SaveScript: encode script: %w", err)
	}
	if err := g.store.Put(ctx, store.ScriptKey(s.CourseID), append(body, '\n')); err != nil {
		return fmt.Errorf("SaveScript: %w", err)
	}

	meta := ScriptMeta{
		CacheKey:      ScriptCacheKey(s.CourseID, subsHash, s.ProfileHash),
		CourseID:      s.CourseID,
		InputHash:     s.InputHash,
		ProfileHash:   s.ProfileHash,
		GeneratedAt:   s.GeneratedAt,
		EntryCount:    len(s.Entries),
		FailedWindows: failed,
	}
	mb, err := fileutils.MarshalJSON(meta, true)
	if err != nil {
		return fmt.Errorf("SaveScript: encode meta: %w", err)
	}
	if err := g.store.Put(ctx, store.ScriptMetaKey(s.CourseID), append(mb, '\n')); err != nil {
		return fmt.Errorf("SaveScript: %w", err)
	}
	return nil
}

// LoadScript returns the saved script for courseID, or (nil, nil) when none exists.
func (g *Generator) LoadScript(ctx context.Context, courseID string) (*Script, error) {
	b, err := g.store.Get(ctx, store.ScriptKey(courseID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("LoadScript: %w", err)
	}
	var s Script
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("LoadScript: decode: %w", err)
	}
	return &s, nil
}
