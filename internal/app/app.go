package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"paperfeeder/internal/config"
	"paperfeeder/internal/filter"
	"paperfeeder/internal/infrastructure/email"
	"paperfeeder/internal/infrastructure/llm"
	"paperfeeder/internal/infrastructure/scheduler"
	"paperfeeder/internal/infrastructure/search"
	"paperfeeder/internal/infrastructure/source"
	"paperfeeder/internal/infrastructure/storage"
	"paperfeeder/internal/logging"
	"paperfeeder/internal/ports"
	"paperfeeder/internal/report"
	"paperfeeder/internal/research"
	"paperfeeder/internal/scanner"
	"paperfeeder/internal/usecase"
)

// Options carries the per-invocation overrides from the CLI.
type Options struct {
	// DryRun writes the digest to a local file instead of emailing it.
	DryRun bool
	// DigestPath is where a dry run writes its output.
	DigestPath string
	// PaperDaysBack and BlogDaysBack override the configured windows when
	// positive.
	PaperDaysBack int
	BlogDaysBack  int
	// DisablePapers and DisableBlogs drop the respective sources for this
	// invocation only.
	DisablePapers bool
	DisableBlogs  bool
}

// Application wires configuration to the pipeline and its lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	db       *sql.DB
}

// New builds a runnable application instance. Adapters that need external
// credentials degrade gracefully: no search key means offline enrichment,
// no database means no cross-run history.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	registry := scanner.NewRegistry(baseLogger.With("component", "scanner"))
	a.registerSources(registry, opts)
	if registry.Len() == 0 {
		return nil, fmt.Errorf("no item sources enabled")
	}

	repository, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	coarse, fine := a.buildFilters()
	researcher := a.buildResearcher()

	var deliverer ports.Deliverer
	if opts.DryRun {
		deliverer = &email.FileDeliverer{Path: opts.DigestPath, Logger: baseLogger}
	} else {
		deliverer = email.NewResendDeliverer(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.To)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Registry:         registry,
		Repository:       repository,
		Keyword:          filter.NewKeywordFilter(cfg.Pipeline.Keywords, cfg.Pipeline.ExcludeKeywords),
		Coarse:           coarse,
		Fine:             fine,
		Researcher:       researcher,
		Renderer:         report.NewHTMLRenderer(),
		Deliverer:        deliverer,
		Logger:           baseLogger.With("component", "pipeline"),
		LLMFilterEnabled: cfg.Pipeline.FilterEnabled(),
		SkipThreshold:    cfg.Pipeline.LLMFilterThreshold,
		MaxItems:         cfg.Pipeline.MaxItems,
	})

	return a, nil
}

func (a *Application) registerSources(registry *scanner.Registry, opts Options) {
	cfg := a.cfg
	paperDays := cfg.Sources.PaperDaysBack
	if opts.PaperDaysBack > 0 {
		paperDays = opts.PaperDaysBack
	}
	blogDays := cfg.Sources.BlogDaysBack
	if opts.BlogDaysBack > 0 {
		blogDays = opts.BlogDaysBack
	}

	if cfg.Sources.Papers() && !opts.DisablePapers {
		registry.Register("arxiv",
			source.NewArxivSource(nil, cfg.Sources.ArxivCategories, cfg.Sources.ArxivMaxResults,
				a.logger.With("component", "source.arxiv")),
			paperDays)
		if cfg.Sources.HuggingFace() {
			registry.Register("huggingface",
				source.NewHuggingFaceSource(nil, a.logger.With("component", "source.huggingface")),
				paperDays)
		}
		if cfg.Sources.Manual() {
			registry.Register("manual", source.NewManualSource(cfg.Sources.ManualPath), paperDays)
		}
	}

	if cfg.Sources.Blogs() && !opts.DisableBlogs {
		custom := make([]source.Feed, 0, len(cfg.Sources.CustomBlogs))
		for _, b := range cfg.Sources.CustomBlogs {
			custom = append(custom, source.Feed{
				Key:      b.Key,
				Name:     b.Name,
				URL:      b.FeedURL,
				Priority: b.Priority,
			})
		}
		feeds := source.SelectFeeds(cfg.Sources.EnabledBlogs, custom, cfg.Sources.NonPriorityBlogs())
		registry.Register("blogs",
			source.NewBlogSource(feeds, nil, cfg.Sources.BlogMaxPerFeed,
				a.logger.With("component", "source.blogs")),
			blogDays)
	}
}

func (a *Application) openRepository(ctx context.Context) (ports.ItemRepository, error) {
	dsn := a.cfg.Database.DSN
	if dsn == "" {
		a.logger.Info("no database configured, cross-run history disabled")
		return nil, nil
	}

	db, err := storage.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history store: %w", err)
	}
	a.db = db

	repository := storage.NewPostgresRepository(db)
	if err := repository.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repository, nil
}

func (a *Application) buildFilters() (coarse, fine ports.ItemFilter) {
	if !a.cfg.Pipeline.FilterEnabled() {
		return nil, nil
	}

	pipeline := a.cfg.Pipeline
	coarse = filter.NewLLMFilter(filter.LLMFilterOptions{
		Client:            llm.NewOpenAIClient(a.cfg.FilterLLM),
		ResearchInterests: pipeline.ResearchInterests,
		Mode:              filter.ModeCoarse,
		MaxKeep:           pipeline.CoarseMaxItems,
		BatchSize:         pipeline.BatchSize,
		ScoreThreshold:    pipeline.ScoreThreshold,
		BatchPacing:       pipeline.BatchPacing.Std(),
		Logger:            a.logger.With("component", "filter.coarse"),
	})
	fine = filter.NewLLMFilter(filter.LLMFilterOptions{
		Client:            llm.NewOpenAIClient(a.cfg.LLM),
		ResearchInterests: pipeline.ResearchInterests,
		Mode:              filter.ModeFine,
		MaxKeep:           pipeline.MaxItems,
		BatchSize:         pipeline.BatchSize,
		ScoreThreshold:    pipeline.ScoreThreshold,
		BatchPacing:       pipeline.BatchPacing.Std(),
		Logger:            a.logger.With("component", "filter.fine"),
	})
	return coarse, fine
}

func (a *Application) buildResearcher() ports.Researcher {
	rc := a.cfg.Research
	if rc.TavilyAPIKey == "" {
		a.logger.Info("no search key configured, running offline enrichment")
		return &research.StaticResearcher{Logger: a.logger.With("component", "researcher")}
	}

	searcher := search.NewTavilyClient(rc.TavilyAPIKey, rc.SearchDepth)
	return research.NewSignalResearcher(searcher,
		rc.MaxConcurrent,
		rc.PerItemTimeout.Std(),
		a.logger.With("component", "researcher"))
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) error {
	now := time.Now().In(a.cfg.Scheduler.Location())
	return a.pipeline.Run(ctx, now)
}

// Serve runs the pipeline on the configured cron schedule until the context
// is canceled.
func (a *Application) Serve(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	runner := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Timezone)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return runner.Stop(stopCtx)
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
