package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MovieCurator/internal/domain"
	"MovieCurator/internal/ports"
)

const featuredTable = "featured_movies"

// ErrInvalidBatch is returned when a batch violates the featured list shape.
var ErrInvalidBatch = errors.New("invalid featured batch")

var featuredColumns = []string{
	"id", "title", "overview", "release_date", "poster_path", "backdrop_path",
	"vote_average", "vote_count", "popularity", "genre_ids",
	"curation_score", "curation_reasoning", "rank_position", "category",
	"featured_at", "updated_at",
}

var sortColumns = map[string]string{
	"":               "rank_position",
	"rank_position":  "rank_position",
	"rankposition":   "rank_position",
	"curation_score": "curation_score",
	"curationscore":  "curation_score",
	"release_date":   "release_date",
	"releasedate":    "release_date",
	"popularity":     "popularity",
	"vote_average":   "vote_average",
	"voteaverage":    "vote_average",
}

// FeaturedRepository persists the curated featured list.
type FeaturedRepository struct {
	db      *sql.DB
	dialect dialect
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.FeaturedRepository = (*FeaturedRepository)(nil)

// NewFeaturedRepository wires a sql.DB opened with the given driver name.
func NewFeaturedRepository(db *sql.DB, driver string) (*FeaturedRepository, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &FeaturedRepository{
		db:      db,
		dialect: d,
		builder: sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		now:     time.Now,
	}, nil
}

// EnsureSchema creates the featured table and its indexes when missing.
func (r *FeaturedRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range r.dialect.schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ReplaceAll swaps the stored upcoming batch for entries inside one transaction.
// Readers see either the previous batch or the new one; a failure keeps the previous batch.
func (r *FeaturedRepository) ReplaceAll(ctx context.Context, entries []domain.FeaturedMovie) error {
	if err := validateBatch(entries); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteSQL, deleteArgs, err := r.builder.Delete(featuredTable).
		Where(sq.Eq{"category": domain.CategoryUpcoming}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteSQL, deleteArgs...); err != nil {
		return fmt.Errorf("delete featured: %w", err)
	}

	if len(entries) > 0 {
		stamp := r.now().UTC()
		insert := r.builder.Insert(featuredTable).Columns(featuredColumns...)
		for _, e := range entries {
			category := e.Category
			if category == "" {
				category = domain.CategoryUpcoming
			}
			featuredAt := e.FeaturedAt
			if featuredAt.IsZero() {
				featuredAt = stamp
			}
			insert = insert.Values(
				e.ID,
				e.Title,
				e.Overview,
				dateOnly(e.ReleaseDate),
				nullString(e.PosterPath),
				nullString(e.BackdropPath),
				e.VoteAverage,
				e.VoteCount,
				e.Popularity,
				r.dialect.genres(e.GenreIDs),
				e.CurationScore,
				e.CurationReasoning,
				e.RankPosition,
				category,
				featuredAt.UTC(),
				stamp,
			)
		}
		insertSQL, insertArgs, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
			return fmt.Errorf("insert featured: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// ReadAll returns featured entries releasing today or later (UTC).
func (r *FeaturedRepository) ReadAll(ctx context.Context, q ports.ReadQuery) ([]domain.FeaturedMovie, error) {
	column, ok := sortColumns[strings.ToLower(strings.TrimSpace(q.SortBy))]
	if !ok {
		return nil, fmt.Errorf("unsupported sort column %q", q.SortBy)
	}
	direction := "ASC"
	switch strings.ToLower(strings.TrimSpace(q.Order)) {
	case "", "asc":
	case "desc":
		direction = "DESC"
	default:
		return nil, fmt.Errorf("unsupported sort order %q", q.Order)
	}
	limit := q.Limit
	if limit <= 0 || limit > domain.MaxFeatured {
		limit = domain.MaxFeatured
	}

	orderBy := []string{column + " " + direction}
	if column != "rank_position" {
		orderBy = append(orderBy, "rank_position ASC")
	}

	query, args, err := r.builder.Select(featuredColumns...).
		From(featuredTable).
		Where(sq.Eq{"category": domain.CategoryUpcoming}).
		Where(sq.GtOrEq{"release_date": dateOnly(r.now())}).
		OrderBy(orderBy...).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build read: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query featured: %w", err)
	}

	result := make([]domain.FeaturedMovie, 0, limit)
	for rows.Next() {
		entry, scanErr := r.scanEntry(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, scanErr
		}
		result = append(result, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// MostRecentUpdate returns the newest updated_at of the upcoming batch, or nil when empty.
func (r *FeaturedRepository) MostRecentUpdate(ctx context.Context) (*time.Time, error) {
	// ORDER BY keeps the column type so sqlite hands back a time value; MAX() would not.
	query, args, err := r.builder.Select("updated_at").
		From(featuredTable).
		Where(sq.Eq{"category": domain.CategoryUpcoming}).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build most recent: %w", err)
	}

	var updatedAt time.Time
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query most recent update: %w", err)
	}
	updatedAt = updatedAt.UTC()
	return &updatedAt, nil
}

func (r *FeaturedRepository) scanEntry(rows *sql.Rows) (domain.FeaturedMovie, error) {
	var (
		entry    domain.FeaturedMovie
		poster   sql.NullString
		backdrop sql.NullString
		genres   = r.dialect.genreTarget()
	)
	if err := rows.Scan(
		&entry.ID,
		&entry.Title,
		&entry.Overview,
		&entry.ReleaseDate,
		&poster,
		&backdrop,
		&entry.VoteAverage,
		&entry.VoteCount,
		&entry.Popularity,
		genres,
		&entry.CurationScore,
		&entry.CurationReasoning,
		&entry.RankPosition,
		&entry.Category,
		&entry.FeaturedAt,
		&entry.UpdatedAt,
	); err != nil {
		return domain.FeaturedMovie{}, fmt.Errorf("scan featured: %w", err)
	}
	entry.PosterPath = poster.String
	entry.BackdropPath = backdrop.String
	entry.GenreIDs = genres.Ints()
	entry.ReleaseDate = dateOnly(entry.ReleaseDate)
	entry.FeaturedAt = entry.FeaturedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}

func validateBatch(entries []domain.FeaturedMovie) error {
	if len(entries) > domain.MaxFeatured {
		return fmt.Errorf("%w: %d entries exceeds limit of %d", ErrInvalidBatch, len(entries), domain.MaxFeatured)
	}
	ranks := make(map[int]struct{}, len(entries))
	ids := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if e.RankPosition < 1 || e.RankPosition > len(entries) {
			return fmt.Errorf("%w: rank %d outside 1..%d", ErrInvalidBatch, e.RankPosition, len(entries))
		}
		if _, dup := ranks[e.RankPosition]; dup {
			return fmt.Errorf("%w: duplicate rank %d", ErrInvalidBatch, e.RankPosition)
		}
		ranks[e.RankPosition] = struct{}{}
		if _, dup := ids[e.ID]; dup {
			return fmt.Errorf("%w: duplicate movie id %d", ErrInvalidBatch, e.ID)
		}
		ids[e.ID] = struct{}{}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
