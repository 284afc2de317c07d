package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/theimaginaryfoundation/narration-script/narration"
	"github.com/theimaginaryfoundation/narration-script/narration/fileutils"
	"github.com/theimaginaryfoundation/narration-script/narration/logger"
	"github.com/theimaginaryfoundation/narration-script/narration/provider"
	"github.com/theimaginaryfoundation/narration-script/narration/store"
)

const envPrefix = "NARRATION"

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" && !cfg.DryRun {
		fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.logConfig()).WithFields(logger.Fields(logger.FieldRunID, uuid.NewString()))
	if err := run(ctx, cfg, log, os.Stdout); err != nil {
		log.Error("run failed", logger.Fields(logger.FieldError, err))
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *logger.Logger, stdout io.Writer) error {
	bundle, err := loadInput(cfg.InPath, cfg.CourseID)
	if err != nil {
		return err
	}
	if cfg.DryRun {
		return dryRun(bundle, cfg, stdout)
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	oracle, err := provider.NewOpenAIOracle(provider.Options{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		SendTemperature: cfg.SendTemperature,
		FlexTier:        cfg.FlexTier,
		Timeout:         cfg.Timeout,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	gen, err := narration.NewGenerator(oracle, st, generatorConfig(cfg), narration.WithLogger(log))
	if err != nil {
		return err
	}

	opt := narration.DefaultGenerateOptions()
	opt.CourseTitle = cfg.CourseTitle
	opt.IntroSubtitleCount = cfg.IntroSubtitles
	opt.ReuseCachedWindows = cfg.Reuse
	opt.RetryFailedOnly = cfg.RetryFailed

	script, err := gen.Generate(ctx, bundle, opt)
	if err != nil {
		return err
	}
	if err := gen.SaveScript(ctx, script, bundle.Subtitles); err != nil {
		return err
	}
	if cfg.OutPath != "" {
		if err := fileutils.WriteJSONFileAtomic(cfg.OutPath, script, cfg.Pretty); err != nil {
			return fmt.Errorf("write -out: %w", err)
		}
	}

	fmt.Fprintf(stdout, "course=%s entries=%d input_hash=%s\n", script.CourseID, len(script.Entries), script.InputHash)
	return nil
}

// dryRun prints the windows that would be sent to the oracle.
func dryRun(b narration.AnalysisBundle, cfg Config, w io.Writer) error {
	gc := generatorConfig(cfg)
	events := narration.BuildEvents(b, gc.Events)
	windows, err := narration.SlidingWindows(events, gc.WindowSize, gc.WindowOverlap)
	if err != nil {
		return err
	}
	hash, err := narration.InputHash(b)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "course=%s subtitles=%d events=%d windows=%d input_hash=%s\n",
		b.CourseID, len(b.Subtitles), len(events), len(windows), hash)
	for _, win := range windows {
		start, end := win.Span()
		fmt.Fprintf(w, "window %d %.1fs-%.1fs events=%d\n", win.Index, start, end, len(win.Events))
	}
	return nil
}

func generatorConfig(cfg Config) narration.Config {
	gc := narration.DefaultConfig()
	gc.Model = cfg.Model
	gc.WindowSize = cfg.WindowSize
	gc.WindowOverlap = cfg.WindowOverlap
	gc.StructuredOutput = cfg.Structured
	gc.Profile = narration.Profile{
		NarrationLang:       cfg.NarrationLang,
		Audience:            cfg.Audience,
		EnglishLevel:        cfg.EnglishLevel,
		MaxEntriesPerMinute: cfg.MaxPerMinute,
	}
	if dirs := splitList(cfg.Directions); len(dirs) > 0 {
		gc.Profile.Directives = &narration.Directives{Directions: dirs}
	}
	return gc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadInput reads a bundle file (.json, .yaml, .yml) or an analysis directory.
func loadInput(path, courseID string) (narration.AnalysisBundle, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return narration.AnalysisBundle{}, fmt.Errorf("stat -in: %w", err)
	}
	if fi.IsDir() {
		return narration.LoadAnalysisDir(path, courseID)
	}
	b, err := narration.LoadBundle(path)
	if err != nil {
		return b, err
	}
	if courseID != "" {
		b.CourseID = courseID
	}
	if b.CourseID == "" {
		b.CourseID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return b, nil
}

func openStore(ctx context.Context, cfg Config) (narration.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreKind {
	case "file":
		st, err := store.NewFile(cfg.StoreDir)
		return st, noop, err
	case "sqlite":
		st, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return st, func() { _ = st.Close() }, nil
	case "s3":
		st, err := store.NewS3(ctx, store.S3Config{
			Bucket:         cfg.S3Bucket,
			Prefix:         cfg.S3Prefix,
			Region:         cfg.S3Region,
			Endpoint:       cfg.S3Endpoint,
			AccessKey:      os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
		return st, noop, err
	}
	return nil, noop, fmt.Errorf("unknown store %q", cfg.StoreKind)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InPath, "in", "", "Analysis bundle (.json/.yaml) OR analysis directory containing subtitles.json")
	fs.StringVar(&cfg.CourseID, "course-id", "", "Course id (default: bundle course_id, else the input file or directory name)")
	fs.StringVar(&cfg.CourseTitle, "title", "", "Optional course title shown to the intro prompt")
	fs.StringVar(&cfg.OutPath, "out", "", "Optional path to also write the script JSON to")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print -out JSON")

	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model to use (e.g. gpt-5-mini)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Optional OpenAI-compatible base URL")
	fs.BoolVar(&cfg.SendTemperature, "temperature", cfg.SendTemperature, "Send sampling temperature (disable for models that reject it)")
	fs.BoolVar(&cfg.FlexTier, "flex", false, "Use the flex service tier")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout (0 disables)")
	fs.BoolVar(&cfg.Structured, "structured", false, "Request the structured JSON envelope for window output")

	fs.StringVar(&cfg.NarrationLang, "lang", cfg.NarrationLang, "Narration language (zh, en)")
	fs.StringVar(&cfg.Audience, "audience", cfg.Audience, "Audience (adult, child)")
	fs.StringVar(&cfg.EnglishLevel, "level", cfg.EnglishLevel, "Learner English level (beginner, intermediate, advanced)")
	fs.IntVar(&cfg.MaxPerMinute, "max-per-minute", cfg.MaxPerMinute, "Max narration entries per minute of video")
	fs.StringVar(&cfg.Directions, "directions", "", "Comma-separated narration directions (english_vocab, plot_summary, knowledge_point, culture_bg, summary_recap)")

	fs.Float64Var(&cfg.WindowSize, "window-size", cfg.WindowSize, "Window length in seconds")
	fs.Float64Var(&cfg.WindowOverlap, "window-overlap", cfg.WindowOverlap, "Window overlap in seconds")
	fs.IntVar(&cfg.IntroSubtitles, "intro-subtitles", cfg.IntroSubtitles, "Opening subtitles shown to the intro prompt")
	fs.BoolVar(&cfg.Reuse, "reuse", cfg.Reuse, "Reuse successful windows from a compatible window cache")
	fs.BoolVar(&cfg.RetryFailed, "retry-failed", false, "Only re-run windows (and intro) that failed in the cached run")

	fs.StringVar(&cfg.StoreKind, "store", cfg.StoreKind, "Artifact store: file, sqlite, s3")
	fs.StringVar(&cfg.StoreDir, "store-dir", cfg.StoreDir, "Root directory for -store file")
	fs.StringVar(&cfg.SQLitePath, "sqlite", "", "Database path for -store sqlite")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", "", "Bucket for -store s3")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", "", "Key prefix for -store s3")
	fs.StringVar(&cfg.S3Region, "s3-region", "", "Region for -store s3 (default: AWS config)")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", "", "Custom endpoint for S3-compatible services")
	fs.BoolVar(&cfg.S3ForcePathStyle, "s3-path-style", false, "Use path-style S3 addressing")

	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print windows without calling the model")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (console, json)")

	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional YAML/JSON/TOML file keyed by flag name")
	fs.StringVar(&cfg.EnvFile, "env-file", "", "Optional .env file loaded before reading NARRATION_* variables")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			return Config{}, fmt.Errorf("load -env-file: %w", err)
		}
	}
	if err := applyLayeredConfig(fs, cfg.ConfigFile); err != nil {
		return Config{}, err
	}

	if cfg.InPath != "" {
		cfg.InPath = filepath.Clean(cfg.InPath)
	}
	if cfg.OutPath != "" {
		cfg.OutPath = filepath.Clean(cfg.OutPath)
	}
	cfg.StoreDir = filepath.Clean(cfg.StoreDir)
	return cfg, nil
}

// applyLayeredConfig fills every flag not given on the command line from NARRATION_*
// environment variables, then from the config file. Keys are flag names; env names
// upper-case them and replace '-' with '_'.
func applyLayeredConfig(fs *flag.FlagSet, path string) error {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read -config %s: %w", path, err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if explicit[f.Name] || f.Name == "config" || f.Name == "env-file" {
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("config %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
