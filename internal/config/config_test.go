package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPathMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
logging:
  level: debug
pipeline:
  llmFilterEnabled: false
  batchSize: 4
  batchPacing: 250ms
research:
  perItemTimeout: 10
sources:
  papersEnabled: false
  blogDaysBack: 3
  enabledBlogs: [openai, anthropic]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadPath(path)

	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Pipeline.FilterEnabled() {
		t.Error("llm filter should be disabled by file")
	}
	if cfg.Pipeline.BatchSize != 4 {
		t.Errorf("batch size = %d", cfg.Pipeline.BatchSize)
	}
	if got := cfg.Pipeline.BatchPacing.Std(); got != 250*time.Millisecond {
		t.Errorf("batch pacing = %v", got)
	}
	if got := cfg.Research.PerItemTimeout.Std(); got != 10*time.Second {
		t.Errorf("per-item timeout = %v", got)
	}
	if cfg.Sources.Papers() {
		t.Error("papers should be disabled by file")
	}
	if cfg.Sources.BlogDaysBack != 3 {
		t.Errorf("blog days back = %d", cfg.Sources.BlogDaysBack)
	}
	if len(cfg.Sources.EnabledBlogs) != 2 {
		t.Errorf("enabled blogs = %v", cfg.Sources.EnabledBlogs)
	}

	// untouched sections keep their defaults
	if cfg.Pipeline.ScoreThreshold != 6 {
		t.Errorf("score threshold = %d", cfg.Pipeline.ScoreThreshold)
	}
	if cfg.Scheduler.CronExpression != "0 6 * * *" {
		t.Errorf("cron = %q", cfg.Scheduler.CronExpression)
	}
}

func TestLoadPathMissingFileFallsBack(t *testing.T) {
	cfg := LoadPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.Pipeline.BatchSize != 10 || !cfg.Pipeline.FilterEnabled() {
		t.Errorf("defaults not applied: %+v", cfg.Pipeline)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "main-key")
	t.Setenv("TAVILY_API_KEY", "tvly-key")
	t.Setenv("PAPERS_ENABLED", "false")

	cfg := LoadPath("")

	if cfg.LLM.APIKey != "main-key" {
		t.Errorf("llm key = %q", cfg.LLM.APIKey)
	}
	if cfg.FilterLLM.APIKey != "main-key" {
		t.Error("filter llm must inherit the main key when unset")
	}
	if cfg.Research.TavilyAPIKey != "tvly-key" {
		t.Errorf("tavily key = %q", cfg.Research.TavilyAPIKey)
	}
	if cfg.Sources.Papers() {
		t.Error("papers should be disabled via env")
	}
}

func TestFilterLLMKeyNotOverwritten(t *testing.T) {
	t.Setenv("LLM_API_KEY", "main-key")
	t.Setenv("LLM_FILTER_API_KEY", "cheap-key")

	cfg := LoadPath("")
	if cfg.FilterLLM.APIKey != "cheap-key" {
		t.Errorf("filter llm key = %q", cfg.FilterLLM.APIKey)
	}
}

func TestSchedulerLocation(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.Scheduler.Location().String(); got != "UTC" {
		t.Errorf("location = %q", got)
	}
}
