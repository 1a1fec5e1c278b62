package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "PAPERFEEDER_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	llmAPIKeyEnv     = "LLM_API_KEY"
	llmBaseURLEnv    = "LLM_BASE_URL"
	llmModelEnv      = "LLM_MODEL"
	filterAPIKeyEnv  = "LLM_FILTER_API_KEY"
	filterBaseURLEnv = "LLM_FILTER_BASE_URL"
	filterModelEnv   = "LLM_FILTER_MODEL"
	tavilyAPIKeyEnv  = "TAVILY_API_KEY"
	resendAPIKeyEnv  = "RESEND_API_KEY"
	emailToEnv       = "EMAIL_TO"
	papersEnabledEnv = "PAPERS_ENABLED"
	blogsEnabledEnv  = "BLOGS_ENABLED"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	LLM       LLMConfig       `yaml:"llm"`
	FilterLLM LLMConfig       `yaml:"filterLlm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Research  ResearchConfig  `yaml:"research"`
	Email     EmailConfig     `yaml:"email"`
	Sources   SourcesConfig   `yaml:"sources"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the optional Postgres history store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines when the pipeline should run in serve mode.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Duration parses YAML values like "500ms" or "30s"; bare integers are
// treated as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LLMConfig defines how to contact an OpenAI-compatible chat API.
type LLMConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
}

// PipelineConfig carries the research profile and every filtering knob.
// The numeric defaults are a starting point, not hard requirements.
type PipelineConfig struct {
	ResearchInterests string   `yaml:"researchInterests"`
	Keywords          []string `yaml:"keywords"`
	ExcludeKeywords   []string `yaml:"excludeKeywords"`

	LLMFilterEnabled *bool `yaml:"llmFilterEnabled"`

	// Skip the coarse LLM pass when the keyword filter keeps this many
	// items or fewer.
	LLMFilterThreshold int `yaml:"llmFilterThreshold"`
	BatchSize          int `yaml:"batchSize"`

	// Minimum backend score (0-10) an item must reach to survive a pass.
	ScoreThreshold int      `yaml:"scoreThreshold"`
	BatchPacing    Duration `yaml:"batchPacing"`
	CoarseMaxItems int      `yaml:"coarseMaxItems"`
	MaxItems       int      `yaml:"maxItems"`
}

// FilterEnabled reports whether the LLM scoring passes run; on by default.
func (p PipelineConfig) FilterEnabled() bool {
	return p.LLMFilterEnabled == nil || *p.LLMFilterEnabled
}

// ResearchConfig controls the enrichment stage.
type ResearchConfig struct {
	TavilyAPIKey   string   `yaml:"tavilyApiKey"`
	MaxConcurrent  int      `yaml:"maxConcurrent"`
	PerItemTimeout Duration `yaml:"perItemTimeout"`
	SearchDepth    string   `yaml:"searchDepth"`
}

// EmailConfig wires digest delivery.
type EmailConfig struct {
	ResendAPIKey string `yaml:"resendApiKey"`
	From         string `yaml:"from"`
	To           string `yaml:"to"`
}

// SourcesConfig enables/disables item providers.
type SourcesConfig struct {
	PapersEnabled      *bool        `yaml:"papersEnabled"`
	PaperDaysBack      int          `yaml:"paperDaysBack"`
	ArxivCategories    []string     `yaml:"arxivCategories"`
	ArxivMaxResults    int          `yaml:"arxivMaxResults"`
	HuggingFaceEnabled *bool        `yaml:"huggingfaceEnabled"`
	ManualEnabled      *bool        `yaml:"manualEnabled"`
	ManualPath         string       `yaml:"manualPath"`
	BlogsEnabled       *bool        `yaml:"blogsEnabled"`
	BlogDaysBack       int          `yaml:"blogDaysBack"`
	BlogMaxPerFeed     int          `yaml:"blogMaxPerFeed"`
	EnabledBlogs       []string     `yaml:"enabledBlogs"`
	CustomBlogs        []BlogConfig `yaml:"customBlogs"`
	IncludeNonPriority *bool        `yaml:"includeNonPriority"`
}

// Papers reports whether paper sources run; on by default.
func (s SourcesConfig) Papers() bool { return s.PapersEnabled == nil || *s.PapersEnabled }

// HuggingFace reports whether the daily-papers source runs; on by default.
func (s SourcesConfig) HuggingFace() bool {
	return s.HuggingFaceEnabled == nil || *s.HuggingFaceEnabled
}

// Manual reports whether the manual-additions source runs; off by default.
func (s SourcesConfig) Manual() bool { return s.ManualEnabled != nil && *s.ManualEnabled }

// Blogs reports whether feed sources run; on by default.
func (s SourcesConfig) Blogs() bool { return s.BlogsEnabled == nil || *s.BlogsEnabled }

// NonPriorityBlogs reports whether non-priority feeds are fetched too.
func (s SourcesConfig) NonPriorityBlogs() bool {
	return s.IncludeNonPriority == nil || *s.IncludeNonPriority
}

// BlogConfig describes a single RSS/Atom feed.
type BlogConfig struct {
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	FeedURL  string `yaml:"feedUrl"`
	Priority bool   `yaml:"priority"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadPath(os.Getenv(configPathEnv))
}

// LoadPath reads the given YAML file over defaults, then environment overrides.
func LoadPath(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(filterAPIKeyEnv); v != "" {
		c.FilterLLM.APIKey = v
	}
	if v := os.Getenv(filterBaseURLEnv); v != "" {
		c.FilterLLM.BaseURL = v
	}
	if v := os.Getenv(filterModelEnv); v != "" {
		c.FilterLLM.Model = v
	}

	if v := os.Getenv(tavilyAPIKeyEnv); v != "" {
		c.Research.TavilyAPIKey = v
	}

	if v := os.Getenv(resendAPIKeyEnv); v != "" {
		c.Email.ResendAPIKey = v
	}
	if v := os.Getenv(emailToEnv); v != "" {
		c.Email.To = v
	}

	if v := os.Getenv(papersEnabledEnv); v != "" {
		c.Sources.PapersEnabled = boolPtr(parseBool(v))
	}
	if v := os.Getenv(blogsEnabledEnv); v != "" {
		c.Sources.BlogsEnabled = boolPtr(parseBool(v))
	}

	// The filter LLM falls back to the main credentials when not set
	// separately.
	if c.FilterLLM.APIKey == "" {
		c.FilterLLM.APIKey = c.LLM.APIKey
	}
}

func boolPtr(v bool) *bool { return &v }

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false
	}
	return true
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	base.LLM = mergeLLM(base.LLM, override.LLM)
	base.FilterLLM = mergeLLM(base.FilterLLM, override.FilterLLM)
	base.Pipeline = mergePipeline(base.Pipeline, override.Pipeline)
	base.Research = mergeResearch(base.Research, override.Research)

	if override.Email.ResendAPIKey != "" {
		base.Email.ResendAPIKey = override.Email.ResendAPIKey
	}
	if override.Email.From != "" {
		base.Email.From = override.Email.From
	}
	if override.Email.To != "" {
		base.Email.To = override.Email.To
	}

	base.Sources = mergeSources(base.Sources, override.Sources)

	return base
}

func mergeLLM(base, override LLMConfig) LLMConfig {
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	return base
}

func mergePipeline(base, override PipelineConfig) PipelineConfig {
	if override.ResearchInterests != "" {
		base.ResearchInterests = override.ResearchInterests
	}
	if len(override.Keywords) > 0 {
		base.Keywords = override.Keywords
	}
	if len(override.ExcludeKeywords) > 0 {
		base.ExcludeKeywords = override.ExcludeKeywords
	}
	if override.LLMFilterEnabled != nil {
		base.LLMFilterEnabled = override.LLMFilterEnabled
	}
	if override.LLMFilterThreshold > 0 {
		base.LLMFilterThreshold = override.LLMFilterThreshold
	}
	if override.BatchSize > 0 {
		base.BatchSize = override.BatchSize
	}
	if override.ScoreThreshold > 0 {
		base.ScoreThreshold = override.ScoreThreshold
	}
	if override.BatchPacing > 0 {
		base.BatchPacing = override.BatchPacing
	}
	if override.CoarseMaxItems > 0 {
		base.CoarseMaxItems = override.CoarseMaxItems
	}
	if override.MaxItems > 0 {
		base.MaxItems = override.MaxItems
	}
	return base
}

func mergeResearch(base, override ResearchConfig) ResearchConfig {
	if override.TavilyAPIKey != "" {
		base.TavilyAPIKey = override.TavilyAPIKey
	}
	if override.MaxConcurrent > 0 {
		base.MaxConcurrent = override.MaxConcurrent
	}
	if override.PerItemTimeout > 0 {
		base.PerItemTimeout = override.PerItemTimeout
	}
	if override.SearchDepth != "" {
		base.SearchDepth = override.SearchDepth
	}
	return base
}

func mergeSources(base, override SourcesConfig) SourcesConfig {
	if override.PapersEnabled != nil {
		base.PapersEnabled = override.PapersEnabled
	}
	if override.PaperDaysBack > 0 {
		base.PaperDaysBack = override.PaperDaysBack
	}
	if len(override.ArxivCategories) > 0 {
		base.ArxivCategories = override.ArxivCategories
	}
	if override.ArxivMaxResults > 0 {
		base.ArxivMaxResults = override.ArxivMaxResults
	}
	if override.HuggingFaceEnabled != nil {
		base.HuggingFaceEnabled = override.HuggingFaceEnabled
	}
	if override.ManualEnabled != nil {
		base.ManualEnabled = override.ManualEnabled
	}
	if override.ManualPath != "" {
		base.ManualPath = override.ManualPath
	}
	if override.BlogsEnabled != nil {
		base.BlogsEnabled = override.BlogsEnabled
	}
	if override.BlogDaysBack > 0 {
		base.BlogDaysBack = override.BlogDaysBack
	}
	if override.BlogMaxPerFeed > 0 {
		base.BlogMaxPerFeed = override.BlogMaxPerFeed
	}
	if len(override.EnabledBlogs) > 0 {
		base.EnabledBlogs = override.EnabledBlogs
	}
	if len(override.CustomBlogs) > 0 {
		base.CustomBlogs = override.CustomBlogs
	}
	if override.IncludeNonPriority != nil {
		base.IncludeNonPriority = override.IncludeNonPriority
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		FilterLLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Pipeline: PipelineConfig{
			ResearchInterests: defaultInterests,
			Keywords: []string{
				"diffusion model", "flow matching", "generative model",
				"chain of thought", "reasoning", "large language model",
				"in-context learning", "representation learning",
				"contrastive learning", "self-supervised", "foundation model",
				"alignment", "rlhf", "safety benchmark",
				"tokenizer", "latent reasoning",
			},
			LLMFilterThreshold: 5,
			BatchSize:          10,
			ScoreThreshold:     6,
			BatchPacing:        Duration(500 * time.Millisecond),
			CoarseMaxItems:     20,
			MaxItems:           20,
		},
		Research: ResearchConfig{
			MaxConcurrent:  5,
			PerItemTimeout: Duration(30 * time.Second),
			SearchDepth:    "basic",
		},
		Email: EmailConfig{
			From: "paperfeeder@resend.dev",
		},
		Sources: SourcesConfig{
			PaperDaysBack:   1,
			ArxivCategories: []string{"cs.LG", "cs.CL"},
			ArxivMaxResults: 300,
			ManualPath:      "manual_papers.json",
			BlogDaysBack:    7,
			BlogMaxPerFeed:  5,
		},
	}
}

const defaultInterests = `I'm a researcher interested in:
1. Generative models, especially diffusion models for language
2. LLM reasoning, including chain-of-thought and latent reasoning
3. Representation learning and continuous tokenization
4. AI safety, including benchmarks and alignment`
