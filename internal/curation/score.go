package curation

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"MovieCurator/internal/domain"
)

const (
	ratingWeight     = 40.0
	popularityWeight = 30.0
	voteCountWeight  = 15.0

	blockbusterBonus  = 15.0
	anticipatedBonus  = 10.0
	defaultGenreBonus = 5.0
	releaseBonus      = 5.0
	plotBonus         = 5.0

	highRatingThreshold     = 7.5
	highBuzzThreshold       = 50.0
	strongInterestThreshold = 500
	detailedPlotLength      = 200

	fallbackReasoning = "Solid upcoming release with good potential"
)

var blockbusterGenres = map[int]struct{}{
	domain.GenreAction:         {},
	domain.GenreScienceFiction: {},
	domain.GenreFantasy:        {},
	domain.GenreAdventure:      {},
}

var anticipatedGenres = map[int]struct{}{
	domain.GenreAction:         {},
	domain.GenreScienceFiction: {},
	domain.GenreFantasy:        {},
	domain.GenreAdventure:      {},
	domain.GenreThriller:       {},
}

var primeMonths = map[time.Month]struct{}{
	time.May:      {},
	time.June:     {},
	time.July:     {},
	time.November: {},
	time.December: {},
}

// Score computes the "worth waiting for" score of a candidate and the factors that fired.
// The blockbuster bonus takes precedence over the anticipated bonus; they never stack.
func Score(m domain.Movie) (float64, string) {
	var (
		score   float64
		factors []string
	)

	score += (m.VoteAverage / 10) * ratingWeight
	if m.VoteAverage >= highRatingThreshold {
		factors = append(factors, fmt.Sprintf("High rating (%.1f/10)", m.VoteAverage))
	}

	score += math.Min((m.Popularity/100)*popularityWeight, popularityWeight)
	if m.Popularity > highBuzzThreshold {
		factors = append(factors, fmt.Sprintf("High buzz (popularity: %.0f)", m.Popularity))
	}

	score += math.Min((float64(m.VoteCount)/1000)*voteCountWeight, voteCountWeight)
	if m.VoteCount > strongInterestThreshold {
		factors = append(factors, fmt.Sprintf("Strong audience interest (%d votes)", m.VoteCount))
	}

	switch {
	case hasAnyGenre(m.GenreIDs, blockbusterGenres):
		score += blockbusterBonus
		factors = append(factors, "Blockbuster genre")
	case hasAnyGenre(m.GenreIDs, anticipatedGenres):
		score += anticipatedBonus
		factors = append(factors, "Highly anticipated genre")
	default:
		score += defaultGenreBonus
	}

	if !m.ReleaseDate.IsZero() {
		if _, ok := primeMonths[m.ReleaseDate.Month()]; ok {
			score += releaseBonus
			factors = append(factors, "Prime release window")
		}
	}

	if utf8.RuneCountInString(m.Overview) > detailedPlotLength {
		score += plotBonus
		factors = append(factors, "Detailed plot description")
	}

	reasoning := fallbackReasoning
	if len(factors) > 0 {
		reasoning = "Selected for: " + strings.Join(factors, ", ")
	}

	return round2(score), reasoning
}

// ScoreAll scores every candidate, preserving input order.
func ScoreAll(movies []domain.Movie) []domain.ScoredMovie {
	scored := make([]domain.ScoredMovie, 0, len(movies))
	for _, m := range movies {
		s, reasoning := Score(m)
		scored = append(scored, domain.ScoredMovie{Movie: m, Score: s, Reasoning: reasoning})
	}
	return scored
}

func hasAnyGenre(ids []int, set map[int]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
