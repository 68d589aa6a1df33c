package domain

import "time"

// CategoryUpcoming tags featured entries produced by the upcoming curation pass.
const CategoryUpcoming = "upcoming"

// MaxFeatured caps the number of entries persisted per curation run.
const MaxFeatured = 10

// Movie is a candidate fetched from the metadata provider. It is never cached locally.
type Movie struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Overview     string    `json:"overview"`
	ReleaseDate  time.Time `json:"releaseDate"`
	VoteAverage  float64   `json:"voteAverage"`
	VoteCount    int64     `json:"voteCount"`
	Popularity   float64   `json:"popularity"`
	GenreIDs     []int     `json:"genreIds"`
	PosterPath   string    `json:"posterPath,omitempty"`
	BackdropPath string    `json:"backdropPath,omitempty"`
}

// ScoredMovie pairs a candidate with its heuristic score and the factors behind it.
type ScoredMovie struct {
	Movie     Movie
	Score     float64
	Reasoning string
}

// FeaturedMovie is a curated entry as persisted in the featured table.
type FeaturedMovie struct {
	Movie
	CurationScore     float64   `json:"curationScore"`
	CurationReasoning string    `json:"curationReasoning"`
	RankPosition      int       `json:"rankPosition"`
	Category          string    `json:"category"`
	FeaturedAt        time.Time `json:"featuredAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// CurationResult is the uniform outcome of a curation attempt.
type CurationResult struct {
	RunID                   string    `json:"runId"`
	Success                 bool      `json:"success"`
	Skipped                 bool      `json:"skipped,omitempty"`
	MoviesProcessed         int       `json:"moviesProcessed"`
	FeaturedEntriesSelected int       `json:"featuredEntriesSelected"`
	DurationMs              int64     `json:"durationMs"`
	Timestamp               time.Time `json:"timestamp"`
	Error                   string    `json:"error,omitempty"`
	ErrorCode               string    `json:"errorCode,omitempty"`

	// Message, LastCuration and NextCurationDue explain a skipped run.
	Message         string     `json:"message,omitempty"`
	LastCuration    *time.Time `json:"lastCuration,omitempty"`
	NextCurationDue *time.Time `json:"nextCurationDue,omitempty"`

	// Err keeps the failure for errors.Is checks by callers.
	Err error `json:"-"`
}

// CurationStatus reports the orchestrator state without side effects.
type CurationStatus struct {
	IsRunning       bool       `json:"isRunning"`
	LastCuration    *time.Time `json:"lastCuration"`
	NextCurationDue *time.Time `json:"nextCurationDue"`
}
