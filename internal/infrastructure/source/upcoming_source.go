package source

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"MovieCurator/internal/domain"
	"MovieCurator/internal/infrastructure/tmdb"
	"MovieCurator/internal/metrics"
	"MovieCurator/internal/ports"
)

const (
	releaseDateLayout = "2006-01-02"
	lookbackMonths    = 6
)

// UpcomingSource implements CandidateSource over the provider's upcoming listing.
type UpcomingSource struct {
	client   tmdb.UpcomingLister
	region   string
	language string
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*UpcomingSource)(nil)

// Options carries the request parameters shared by every page.
type Options struct {
	Region         string
	Language       string
	RequestTimeout time.Duration
	Now            func() time.Time
}

// NewUpcomingSource wires the provider client; RequestTimeout defaults to 10s.
func NewUpcomingSource(client tmdb.UpcomingLister, opts Options, log *slog.Logger) *UpcomingSource {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &UpcomingSource{
		client:   client,
		region:   opts.Region,
		language: opts.Language,
		timeout:  opts.RequestTimeout,
		now:      opts.Now,
		logger:   log.With("component", "upcoming_source"),
	}
}

// FetchCandidates requests pages 1..maxPages concurrently and merges whatever succeeded.
// Failed pages are logged and skipped; an all-failed fetch yields an empty slice.
func (s *UpcomingSource) FetchCandidates(ctx context.Context, maxPages int) ([]domain.Movie, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	pages := make([][]tmdb.Movie, maxPages)
	var g errgroup.Group
	for i := 0; i < maxPages; i++ {
		page := i + 1
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			resp, err := s.client.Upcoming(reqCtx, tmdb.UpcomingRequest{
				Page:     page,
				Region:   s.region,
				Language: s.language,
			})
			if err != nil {
				metrics.ProviderPageFailures.Inc()
				s.logger.Warn("upcoming page failed", "page", page, "error", err)
				return nil
			}
			pages[page-1] = resp.Results
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cutoff := s.cutoff()
	seen := make(map[int64]struct{})
	candidates := make([]domain.Movie, 0)
	var stale, undated int
	for _, results := range pages {
		for _, raw := range results {
			release, err := time.ParseInLocation(releaseDateLayout, strings.TrimSpace(raw.ReleaseDate), time.UTC)
			if err != nil {
				undated++
				continue
			}
			if release.Before(cutoff) {
				stale++
				continue
			}
			if _, dup := seen[raw.ID]; dup {
				continue
			}
			seen[raw.ID] = struct{}{}
			candidates = append(candidates, toDomain(raw, release))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].ReleaseDate.Equal(candidates[j].ReleaseDate) {
			return candidates[i].ReleaseDate.Before(candidates[j].ReleaseDate)
		}
		return candidates[i].ID < candidates[j].ID
	})

	s.logger.Debug("candidates fetched",
		"pages", maxPages,
		"candidates", len(candidates),
		"stale", stale,
		"undated", undated,
	)
	return candidates, nil
}

// cutoff is midnight UTC six months before today, not the current instant minus six months.
// This widens the floor by up to one day: a release dated exactly six months ago is kept
// for the whole of today, where an instant-based floor would drop it after midnight.
func (s *UpcomingSource) cutoff() time.Time {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, -lookbackMonths, 0)
}

func toDomain(raw tmdb.Movie, release time.Time) domain.Movie {
	genres := make([]int, len(raw.GenreIDs))
	copy(genres, raw.GenreIDs)
	return domain.Movie{
		ID:           raw.ID,
		Title:        strings.TrimSpace(raw.Title),
		Overview:     plainText(raw.Overview),
		ReleaseDate:  release,
		VoteAverage:  raw.VoteAverage,
		VoteCount:    raw.VoteCount,
		Popularity:   raw.Popularity,
		GenreIDs:     genres,
		PosterPath:   deref(raw.PosterPath),
		BackdropPath: deref(raw.BackdropPath),
	}
}

// plainText strips markup and entities and collapses whitespace.
func plainText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
