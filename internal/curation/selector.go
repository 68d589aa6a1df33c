package curation

import (
	"math/big"
	"sort"
	"strconv"

	"MovieCurator/internal/domain"
)

const (
	// MinScore is the floor for the diversity pass.
	MinScore = 5.0
	// backfillFactor relaxes the floor when the diversity pass leaves open slots.
	backfillFactor = 0.8
	// guaranteedSlots are filled by score alone before the diversity gate applies.
	guaranteedSlots = 3
	// qualityBypass lets high scorers skip the diversity gate.
	qualityBypass = 70.0
)

// SortByScore orders candidates by descending score; ties keep the lower ID first.
func SortByScore(scored []domain.ScoredMovie) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Movie.ID < scored[j].Movie.ID
	})
}

// Select picks up to domain.MaxFeatured entries from a score-descending list,
// balancing quality against genre diversity. Ranks follow admission order.
func Select(scored []domain.ScoredMovie) []domain.FeaturedMovie {
	selected := make([]domain.FeaturedMovie, 0, domain.MaxFeatured)
	represented := make(map[int]struct{})
	picked := make(map[int64]struct{})

	admit := func(c domain.ScoredMovie) {
		rank := len(selected) + 1
		for _, g := range c.Movie.GenreIDs {
			represented[g] = struct{}{}
		}
		picked[c.Movie.ID] = struct{}{}
		selected = append(selected, domain.FeaturedMovie{
			Movie:             c.Movie,
			CurationScore:     c.Score,
			CurationReasoning: rankReasoning(rank, c.Reasoning, c.Score),
			RankPosition:      rank,
			Category:          domain.CategoryUpcoming,
		})
	}

	for _, c := range scored {
		if len(selected) >= domain.MaxFeatured {
			break
		}
		if c.Score < MinScore {
			continue
		}
		if _, dup := picked[c.Movie.ID]; dup {
			continue
		}
		if len(selected) < guaranteedSlots || hasNewGenre(c.Movie.GenreIDs, represented) || c.Score > qualityBypass {
			admit(c)
		}
	}

	if len(selected) < domain.MaxFeatured {
		relaxed := MinScore * backfillFactor
		for _, c := range scored {
			if len(selected) >= domain.MaxFeatured {
				break
			}
			if _, ok := picked[c.Movie.ID]; ok {
				continue
			}
			if c.Score < relaxed {
				break
			}
			admit(c)
		}
	}

	return selected
}

func hasNewGenre(ids []int, represented map[int]struct{}) bool {
	for _, id := range ids {
		if _, ok := represented[id]; !ok {
			return true
		}
	}
	return false
}

// rankReasoning tags the score with one decimal, rounding ties up (7.25 reads 7.3).
func rankReasoning(rank int, base string, score float64) string {
	return rankPrefix(rank) + base + " (Score: " + oneDecimal(score) + ")"
}

// oneDecimal rounds the exact binary value, so 12.35 (stored just below the tie) reads 12.3.
func oneDecimal(v float64) string {
	if v < 0 {
		return "-" + oneDecimal(-v)
	}
	x := new(big.Float).SetPrec(256).SetFloat64(v)
	x.Mul(x, big.NewFloat(10))
	x.Add(x, big.NewFloat(0.5))
	n, _ := x.Int(nil)
	tenths := n.Int64()
	return strconv.FormatInt(tenths/10, 10) + "." + strconv.FormatInt(tenths%10, 10)
}

func rankPrefix(rank int) string {
	switch {
	case rank == 1:
		return "🏆 Top Pick: "
	case rank <= 3:
		return "🥇 Premium Choice: "
	case rank <= 6:
		return "⭐ Highly Recommended: "
	default:
		return "🎬 Worth Watching: "
	}
}
