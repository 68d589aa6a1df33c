package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"MovieCurator/internal/curation"
	"MovieCurator/internal/domain"
	"MovieCurator/internal/metrics"
	"MovieCurator/internal/ports"
)

// Page bounds for a single fetch.
const (
	MinPages     = 1
	MaxPages     = 10
	DefaultPages = 5
)

const (
	digestSize          = 5
	notificationTimeout = 10 * time.Second
)

var (
	// ErrCurationInProgress is reported when a run is requested while another is in flight.
	ErrCurationInProgress = errors.New("curation already in progress")
	// ErrNoUpcomingMovies is reported when the fetch yields zero usable candidates.
	ErrNoUpcomingMovies = errors.New("no upcoming movies found to curate")
	// ErrPersistence wraps failures of the featured list replace.
	ErrPersistence = errors.New("persist featured list")
)

// Error codes carried by failed CurationResults.
const (
	CodeInProgress  = "curation_in_progress"
	CodeNoMovies    = "no_upcoming_movies"
	CodeFetch       = "fetch_failed"
	CodePersistence = "persistence_failed"
	CodeLock        = "lock_failed"
	CodeInternal    = "internal_error"
)

var (
	errLock  = errors.New("acquire run lock")
	errFetch = errors.New("fetch candidates")
)

// CuratorDeps wires driven adapters into the curation use case.
type CuratorDeps struct {
	Source     ports.CandidateSource
	Repository ports.FeaturedRepository
	Locker     ports.RunLock
	Notifier   ports.Notifier
	Logger     *slog.Logger
	Clock      func() time.Time
	// Interval is the staleness window for non-forced runs; defaults to curation.DefaultInterval.
	Interval time.Duration
	// DefaultMaxPages applies when a request leaves MaxPages unset.
	DefaultMaxPages int
}

// CurateRequest carries the trigger parameters of one run.
type CurateRequest struct {
	MaxPages int
	Force    bool
}

// Curator coordinates fetch, scoring, selection and persistence with single-flight semantics.
type Curator struct {
	source       ports.CandidateSource
	repository   ports.FeaturedRepository
	locker       ports.RunLock
	notifier     ports.Notifier
	logger       *slog.Logger
	now          func() time.Time
	interval     time.Duration
	defaultPages int

	running atomic.Bool

	mu           sync.Mutex
	lastCuration *time.Time
}

// NewCurator constructs the orchestration component.
func NewCurator(deps CuratorDeps) *Curator {
	c := &Curator{
		source:       deps.Source,
		repository:   deps.Repository,
		locker:       deps.Locker,
		notifier:     deps.Notifier,
		logger:       deps.Logger,
		now:          deps.Clock,
		interval:     deps.Interval,
		defaultPages: deps.DefaultMaxPages,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "curator")
	if c.now == nil {
		c.now = time.Now
	}
	if c.interval <= 0 {
		c.interval = curation.DefaultInterval
	}
	if c.defaultPages == 0 {
		c.defaultPages = DefaultPages
	}
	c.defaultPages = clampPages(c.defaultPages)
	return c
}

// Curate runs one curation pass and reports the outcome; it never returns an error value.
// The digest goes out after the run guards are released.
func (c *Curator) Curate(ctx context.Context, req CurateRequest) domain.CurationResult {
	result, featured := c.run(ctx, req)
	if result.Success && !result.Skipped {
		c.notify(ctx, c.logger.With("run_id", result.RunID), featured)
	}
	return result
}

func (c *Curator) run(ctx context.Context, req CurateRequest) (result domain.CurationResult, featured []domain.FeaturedMovie) {
	start := c.now()
	result = domain.CurationResult{
		RunID:     uuid.NewString(),
		Timestamp: start.UTC(),
	}
	logger := c.logger.With("run_id", result.RunID)

	if !c.running.CompareAndSwap(false, true) {
		logger.Warn("curation rejected: run already in flight")
		return c.failure(result, start, ErrCurationInProgress), nil
	}
	defer c.running.Store(false)

	if c.locker != nil {
		ok, err := c.locker.TryLock()
		if err != nil {
			return c.failure(result, start, fmt.Errorf("%w: %w", errLock, err)), nil
		}
		if !ok {
			logger.Warn("curation rejected: another process holds the run lock")
			return c.failure(result, start, ErrCurationInProgress), nil
		}
		defer func() {
			if err := c.locker.Unlock(); err != nil {
				logger.Warn("release run lock", "error", err)
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("curation panicked", "panic", r)
			result = c.failure(result, start, fmt.Errorf("curation panicked: %v", r))
			featured = nil
		}
	}()

	if !req.Force {
		last := c.lastCurationTime(ctx)
		if !curation.ShouldCurate(last, c.interval, start) {
			next := curation.NextDue(last, c.interval, start).UTC()
			lastUTC := last.UTC()
			logger.Info("curation skipped: featured list is fresh", "last_curation", lastUTC, "next_due", next)
			metrics.CurationRuns.WithLabelValues("skipped").Inc()
			result.Success = true
			result.Skipped = true
			result.LastCuration = &lastUTC
			result.NextCurationDue = &next
			result.Message = "featured list is fresh; next curation due at " + next.Format(time.RFC3339)
			result.DurationMs = c.now().Sub(start).Milliseconds()
			return result, nil
		}
	}

	pages := c.defaultPages
	if req.MaxPages != 0 {
		pages = clampPages(req.MaxPages)
	}
	logger.Info("curation started", "max_pages", pages, "force", req.Force)

	movies, err := c.source.FetchCandidates(ctx, pages)
	if err != nil {
		return c.failure(result, start, fmt.Errorf("%w: %w", errFetch, err)), nil
	}
	metrics.CandidatesFetched.Set(float64(len(movies)))
	if len(movies) == 0 {
		return c.failure(result, start, ErrNoUpcomingMovies), nil
	}
	result.MoviesProcessed = len(movies)

	scored := curation.ScoreAll(movies)
	curation.SortByScore(scored)
	featured = curation.Select(scored)
	result.FeaturedEntriesSelected = len(featured)

	if err := c.repository.ReplaceAll(ctx, featured); err != nil {
		return c.failure(result, start, fmt.Errorf("%w: %w", ErrPersistence, err)), nil
	}

	finished := c.now()
	c.recordSuccess(finished)

	result.Success = true
	result.DurationMs = finished.Sub(start).Milliseconds()
	metrics.CurationRuns.WithLabelValues("success").Inc()
	metrics.CurationDuration.Observe(finished.Sub(start).Seconds())
	metrics.FeaturedEntries.Set(float64(len(featured)))
	metrics.LastSuccess.Set(float64(finished.Unix()))

	logger.Info("curation finished",
		"movies_processed", result.MoviesProcessed,
		"featured_selected", result.FeaturedEntriesSelected,
		"duration_ms", result.DurationMs,
	)
	return result, featured
}

// Status reports the running flag and staleness schedule without side effects.
func (c *Curator) Status(ctx context.Context) domain.CurationStatus {
	now := c.now()
	last := c.lastCurationTime(ctx)
	next := curation.NextDue(last, c.interval, now).UTC()
	status := domain.CurationStatus{
		IsRunning:       c.running.Load(),
		NextCurationDue: &next,
	}
	if last != nil {
		l := last.UTC()
		status.LastCuration = &l
	}
	return status
}

// Featured reads the persisted featured list.
func (c *Curator) Featured(ctx context.Context, q ports.ReadQuery) ([]domain.FeaturedMovie, error) {
	entries, err := c.repository.ReadAll(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read featured: %w", err)
	}
	return entries, nil
}

// lastCurationTime prefers the store's newest update and falls back to the in-memory record.
func (c *Curator) lastCurationTime(ctx context.Context) *time.Time {
	c.mu.Lock()
	memory := c.lastCuration
	c.mu.Unlock()

	if c.repository == nil {
		return memory
	}
	stored, err := c.repository.MostRecentUpdate(ctx)
	if err != nil {
		c.logger.Warn("read last curation from store; using in-memory value", "error", err)
		return memory
	}
	if stored == nil {
		return memory
	}
	return stored
}

func (c *Curator) recordSuccess(at time.Time) {
	at = at.UTC()
	c.mu.Lock()
	c.lastCuration = &at
	c.mu.Unlock()
}

func (c *Curator) failure(result domain.CurationResult, start time.Time, err error) domain.CurationResult {
	code, outcome := classify(err)
	result.Success = false
	result.Skipped = false
	result.Err = err
	result.Error = err.Error()
	result.ErrorCode = code
	result.DurationMs = c.now().Sub(start).Milliseconds()

	metrics.CurationRuns.WithLabelValues(outcome).Inc()
	if !errors.Is(err, ErrCurationInProgress) {
		c.logger.Error("curation failed", "run_id", result.RunID, "error_code", code, "error", err)
	}
	return result
}

func classify(err error) (code, outcome string) {
	switch {
	case errors.Is(err, ErrCurationInProgress):
		return CodeInProgress, "conflict"
	case errors.Is(err, ErrNoUpcomingMovies):
		return CodeNoMovies, "empty"
	case errors.Is(err, ErrPersistence):
		return CodePersistence, "persistence_error"
	case errors.Is(err, errLock):
		return CodeLock, "error"
	case errors.Is(err, errFetch):
		return CodeFetch, "error"
	default:
		return CodeInternal, "error"
	}
}

func (c *Curator) notify(ctx context.Context, logger *slog.Logger, featured []domain.FeaturedMovie) {
	if c.notifier == nil || len(featured) == 0 {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
	defer cancel()
	if err := c.notifier.PublishDigest(notifyCtx, buildDigestMessage(featured)); err != nil {
		logger.Warn("publish curation digest", "error", err)
	}
}

func buildDigestMessage(featured []domain.FeaturedMovie) string {
	var b strings.Builder
	b.WriteString("Upcoming featured movies\n\n")
	for i, entry := range featured {
		if i == digestSize {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s)\nScore: %.1f\n%s\n\n",
			entry.RankPosition,
			entry.Title,
			entry.ReleaseDate.Format("2006-01-02"),
			entry.CurationScore,
			entry.CurationReasoning,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func clampPages(n int) int {
	if n < MinPages {
		return MinPages
	}
	if n > MaxPages {
		return MaxPages
	}
	return n
}
