// Package scraper drives scrape runs over the listing sections and the
// recipe detail pages they link to.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-recipes/config"
	"github.com/aluiziolira/go-scrape-recipes/models"
	"github.com/aluiziolira/go-scrape-recipes/parser"
	"github.com/aluiziolira/go-scrape-recipes/pipeline"
)

// State is the phase a scraper is currently in.
type State string

// Run states.
const (
	StateIdle              State = "idle"
	StateRunning           State = "running"
	StateCollectingDetails State = "collecting_details"
	StatePersisting        State = "persisting"
)

// PageFetcher downloads a page body.
type PageFetcher interface {
	Fetch(ctx context.Context, phase, url string) ([]byte, error)
}

// Scraper runs the listing and detail phases and hands the results to a
// sink. At most one run is active at a time.
type Scraper struct {
	cfg     *config.Config
	fetcher PageFetcher
	sink    pipeline.Sink
	Metrics *Metrics

	running atomic.Bool
	state   atomic.Value
}

// New builds a scraper. A nil metrics value disables instrumentation.
func New(cfg *config.Config, fetcher PageFetcher, sink pipeline.Sink, metrics *Metrics) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	s := &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		sink:    sink,
		Metrics: metrics,
	}
	s.state.Store(StateIdle)
	return s, nil
}

// State reports the current run phase.
func (s *Scraper) State() State {
	return s.state.Load().(State)
}

// Running reports whether a run is active.
func (s *Scraper) Running() bool {
	return s.running.Load()
}

// Run performs one full scrape. It returns ErrRunInProgress without doing
// any work when another run is active. The returned status is also written
// through the sink, whatever the outcome.
func (s *Scraper) Run(ctx context.Context) (*models.RunStatus, error) {
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("scrape already in progress, skipping trigger")
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)
	defer s.setState(StateIdle)

	start := time.Now()
	status := &models.RunStatus{StartTime: start.UTC()}
	slog.Info("scrape run started", slog.Any("sections", s.cfg.Sections))

	runErr := s.run(ctx, status)

	status.EndTime = time.Now().UTC()
	status.Outcome = models.OutcomeCompleted
	if runErr != nil {
		status.Outcome = models.OutcomeFailed
		status.Error = runErr.Error()
		s.Metrics.IncError(errorTypeLabel(runErr))
		slog.Error("scrape run failed", slog.Any("error", runErr))
	}

	if err := s.sink.WriteStatus(status); err != nil {
		slog.Error("failed to write run status", slog.Any("error", err))
		if runErr == nil {
			runErr = err
		}
	}

	s.Metrics.ObserveRun(status.Outcome, time.Since(start))

	slog.Info("scrape run finished",
		slog.String("outcome", status.Outcome),
		slog.Int("recipes", status.TotalRecipes),
		slog.Int("details", status.TotalDetails),
		slog.Int("details_failed", status.DetailsFailed),
		slog.Duration("duration", status.EndTime.Sub(status.StartTime)),
	)
	return status, runErr
}

func (s *Scraper) run(ctx context.Context, status *models.RunStatus) error {
	if err := s.sink.Clear(); err != nil {
		return err
	}

	listings, err := pipeline.NewListingCollector(s.cfg.DedupeSize)
	if err != nil {
		return fmt.Errorf("create listing collector: %w", err)
	}

	s.setState(StateRunning)
	raw := make([]models.RawSection, 0, len(s.cfg.Sections))
	for _, section := range s.cfg.Sections {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := s.scrapeSection(ctx, section)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			slog.Error("section scrape failed",
				slog.String("section", section),
				slog.String("category", errorTypeLabel(err)),
				slog.Any("error", err),
			)
			s.Metrics.IncError(errorTypeLabel(err))
			status.AddSection(section, models.OutcomeFailed, 0, err)
			continue
		}

		kept := listings.AddSection(section, resp.Results)
		raw = append(raw, models.RawSection{Section: section, Results: resp.Raw})
		status.AddSection(section, models.OutcomeSuccess, kept, nil)
		s.Metrics.AddItems("listing", kept)
		s.Metrics.AddDuplicates("listing", len(resp.Results)-kept)
		slog.Info("section scraped",
			slog.String("section", section),
			slog.Int("results", len(resp.Results)),
			slog.Int("kept", kept),
		)
	}

	records := listings.Records()
	status.TotalRecipes = len(records)

	if err := s.sink.WriteRaw(raw); err != nil {
		return err
	}
	if err := s.sink.WriteListings(ctx, records); err != nil {
		return err
	}

	s.setState(StateCollectingDetails)
	details, failed, err := s.collectDetails(ctx, listings.DetailURLs(), pipeline.ThumbnailIndex(records))
	if err != nil {
		return err
	}
	status.TotalDetails = len(details)
	status.DetailsFailed = failed

	s.setState(StatePersisting)
	return s.sink.WriteDetails(ctx, details)
}

func (s *Scraper) scrapeSection(ctx context.Context, section string) (*models.ListingResponse, error) {
	body, err := s.fetcher.Fetch(ctx, PhaseListing, s.cfg.SectionURL(section))
	if err != nil {
		return nil, err
	}
	return parser.ExtractListingResponse(string(body))
}

func (s *Scraper) scrapeDetail(ctx context.Context, url string) (*models.RecipeDocument, error) {
	body, err := s.fetcher.Fetch(ctx, PhaseDetail, url)
	if err != nil {
		return nil, err
	}
	return parser.ExtractRecipeDocument(string(body))
}

// collectDetails fetches every detail page on a bounded pool, then
// normalizes and deduplicates the documents in url order.
func (s *Scraper) collectDetails(ctx context.Context, urls []string, thumbnails map[string]string) ([]models.DetailRecord, int, error) {
	docs := make([]*models.RecipeDocument, len(urls))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DetailWorkers)
	for i, url := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := s.scrapeDetail(gctx, url)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				s.Metrics.IncError(errorTypeLabel(err))
				slog.Error("detail scrape failed",
					slog.String("url", url),
					slog.String("category", errorTypeLabel(err)),
					slog.Any("error", err),
				)
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	collector, err := pipeline.NewDetailCollector(s.cfg.DedupeSize)
	if err != nil {
		return nil, 0, fmt.Errorf("create detail collector: %w", err)
	}
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		record := parser.NormalizeDetail(doc, urls[i], thumbnails[parser.RecipeIDFromURL(urls[i])])
		if !collector.Add(record) {
			s.Metrics.AddDuplicates("detail", 1)
		}
	}

	records := collector.Records()
	s.Metrics.AddItems("detail", len(records))
	return records, int(failed.Load()), nil
}

func (s *Scraper) setState(state State) {
	s.state.Store(state)
}
