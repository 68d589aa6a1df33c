package ports

import (
	"context"
	"time"

	"MovieCurator/internal/domain"
)

// CandidateSource pulls upcoming-release candidates from the metadata provider.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, maxPages int) ([]domain.Movie, error)
}

// ReadQuery controls ordering and size of featured list reads.
type ReadQuery struct {
	SortBy string
	Order  string
	Limit  int
}

// FeaturedRepository persists the live curated batch.
type FeaturedRepository interface {
	ReplaceAll(ctx context.Context, entries []domain.FeaturedMovie) error
	ReadAll(ctx context.Context, q ReadQuery) ([]domain.FeaturedMovie, error)
	MostRecentUpdate(ctx context.Context) (*time.Time, error)
}

// RunLock guards curation across processes sharing the same store.
type RunLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// Notifier streams curated digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when curation passes are triggered.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
