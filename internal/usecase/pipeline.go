package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
	"paperfeeder/internal/scanner"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Registry   *scanner.Registry
	Repository ports.ItemRepository
	Keyword    ports.ItemFilter
	Coarse     ports.ItemFilter
	Fine       ports.ItemFilter
	Researcher ports.Researcher
	Renderer   ports.ReportRenderer
	Deliverer  ports.Deliverer
	Logger     *slog.Logger

	// LLMFilterEnabled gates both scoring passes.
	LLMFilterEnabled bool
	// SkipThreshold: at or below this many keyword survivors the coarse
	// pass is skipped as unnecessary overhead.
	SkipThreshold int
	// MaxItems caps the scored portion of the final list. Priority items
	// do not count against it.
	MaxItems int
}

// Pipeline sequences recall filtering, coarse LLM scoring, enrichment, fine
// LLM re-ranking, and delivery. Priority items bypass every stage and are
// prepended to the output unconditionally.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.SkipThreshold <= 0 {
		deps.SkipThreshold = 5
	}
	if deps.MaxItems <= 0 {
		deps.MaxItems = 20
	}
	return &Pipeline{deps: deps}
}

// Run executes one full pipeline pass for the given trigger time.
func (p *Pipeline) Run(ctx context.Context, now time.Time) error {
	d := p.deps

	fetched, err := d.Registry.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch items: %w", err)
	}

	items := domain.Dedup(fetched)
	p.info("fetched", "total", len(fetched), "unique", len(items))

	items, err = p.dropDelivered(ctx, items)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		p.info("nothing to process, aborting run")
		return nil
	}

	priority, normal := domain.SplitPriority(items)
	p.info("split priority items", "priority", len(priority), "normal", len(normal))

	scored, err := p.scoreNormal(ctx, normal)
	if err != nil {
		return err
	}

	final := append(append([]domain.Item{}, priority...), scored...)
	if len(final) == 0 {
		p.info("no items survived filtering, aborting run")
		return nil
	}

	return p.deliver(ctx, final, now)
}

// scoreNormal pushes the non-priority items through recall filtering, the
// optional coarse pass, enrichment, and the fine pass.
func (p *Pipeline) scoreNormal(ctx context.Context, normal []domain.Item) ([]domain.Item, error) {
	d := p.deps
	if len(normal) == 0 {
		return nil, nil
	}

	survivors, err := d.Keyword.Filter(ctx, normal)
	if err != nil {
		return nil, fmt.Errorf("keyword filter: %w", err)
	}
	p.info("keyword filter done", "survivors", len(survivors))
	if len(survivors) == 0 {
		return nil, nil
	}

	if d.LLMFilterEnabled && len(survivors) > d.SkipThreshold {
		survivors, err = d.Coarse.Filter(ctx, survivors)
		if err != nil {
			return nil, fmt.Errorf("coarse filter: %w", err)
		}
		p.info("coarse filter done", "survivors", len(survivors))
	} else if d.LLMFilterEnabled {
		p.info("skipping coarse filter", "survivors", len(survivors), "threshold", d.SkipThreshold)
	}

	if d.Researcher != nil && len(survivors) > 0 {
		survivors, err = d.Researcher.Enrich(ctx, survivors)
		if err != nil {
			return nil, fmt.Errorf("enrich: %w", err)
		}
		p.info("enrichment done", "enriched", len(survivors))
	}

	if !d.LLMFilterEnabled {
		// Enrichment returns items in completion order; restore the recall
		// ranking before the cap so the top survivors are the ones kept.
		sort.SliceStable(survivors, func(i, j int) bool {
			return survivors[i].RelevanceScore > survivors[j].RelevanceScore
		})
		if len(survivors) > d.MaxItems {
			survivors = survivors[:d.MaxItems]
		}
		return survivors, nil
	}

	if len(survivors) == 0 {
		return nil, nil
	}

	survivors, err = d.Fine.Filter(ctx, survivors)
	if err != nil {
		return nil, fmt.Errorf("fine filter: %w", err)
	}
	p.info("fine filter done", "selected", len(survivors))
	return survivors, nil
}

func (p *Pipeline) dropDelivered(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	d := p.deps
	if d.Repository == nil || len(items) == 0 {
		return items, nil
	}

	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.DedupKey()
	}

	seen, err := d.Repository.AlreadyDelivered(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load delivered history: %w", err)
	}

	fresh := items[:0]
	for _, item := range items {
		if seen[item.DedupKey()] {
			continue
		}
		fresh = append(fresh, item)
	}
	if dropped := len(keys) - len(fresh); dropped > 0 {
		p.info("dropped previously delivered items", "dropped", dropped)
	}
	return fresh, nil
}

func (p *Pipeline) deliver(ctx context.Context, final []domain.Item, now time.Time) error {
	d := p.deps

	html, err := d.Renderer.Render(final, now)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	subject := fmt.Sprintf("Daily Paper Digest - %s", now.Format("2006-01-02"))
	if err := d.Deliverer.Deliver(ctx, subject, html); err != nil {
		return fmt.Errorf("deliver report: %w", err)
	}
	p.info("digest delivered", "items", len(final))

	if d.Repository != nil {
		for _, item := range final {
			if err := d.Repository.SaveDelivered(ctx, item, now); err != nil {
				return fmt.Errorf("persist item %s: %w", item.DedupKey(), err)
			}
		}
	}
	return nil
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Info(msg, args...)
	}
}
