package storage

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/lib/pq"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"
)

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name        string
	driverName  string
	placeholder sq.PlaceholderFormat
	schema      []string
	genres      func(ids []int) driver.Valuer
	genreTarget func() genreScanner
}

// genreScanner reads the genre column back into ints.
type genreScanner interface {
	sql.Scanner
	Ints() []int
}

func dialectFor(name string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case dialectPostgres, "postgresql":
		return postgresDialect, nil
	case dialectSQLite, "sqlite3":
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}

var postgresDialect = dialect{
	name:        dialectPostgres,
	driverName:  "postgres",
	placeholder: sq.Dollar,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS featured_movies (
			id                 BIGINT PRIMARY KEY,
			title              TEXT NOT NULL,
			overview           TEXT NOT NULL DEFAULT '',
			release_date       DATE NOT NULL,
			poster_path        TEXT,
			backdrop_path      TEXT,
			vote_average       DOUBLE PRECISION NOT NULL DEFAULT 0,
			vote_count         BIGINT NOT NULL DEFAULT 0,
			popularity         DOUBLE PRECISION NOT NULL DEFAULT 0,
			genre_ids          INTEGER[] NOT NULL DEFAULT '{}',
			curation_score     DOUBLE PRECISION NOT NULL,
			curation_reasoning TEXT NOT NULL,
			rank_position      INTEGER NOT NULL CHECK (rank_position BETWEEN 1 AND 10),
			category           TEXT NOT NULL DEFAULT 'upcoming',
			featured_at        TIMESTAMPTZ NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS featured_movies_category_rank ON featured_movies (category, rank_position)`,
		`CREATE INDEX IF NOT EXISTS featured_movies_release_date ON featured_movies (release_date)`,
	},
	genres: func(ids []int) driver.Valuer {
		arr := make(pq.Int64Array, len(ids))
		for i, id := range ids {
			arr[i] = int64(id)
		}
		return arr
	},
	genreTarget: func() genreScanner { return &pgGenres{} },
}

var sqliteDialect = dialect{
	name:        dialectSQLite,
	driverName:  "sqlite",
	placeholder: sq.Question,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS featured_movies (
			id                 INTEGER PRIMARY KEY,
			title              TEXT NOT NULL,
			overview           TEXT NOT NULL DEFAULT '',
			release_date       DATE NOT NULL,
			poster_path        TEXT,
			backdrop_path      TEXT,
			vote_average       REAL NOT NULL DEFAULT 0,
			vote_count         INTEGER NOT NULL DEFAULT 0,
			popularity         REAL NOT NULL DEFAULT 0,
			genre_ids          TEXT NOT NULL DEFAULT '[]',
			curation_score     REAL NOT NULL,
			curation_reasoning TEXT NOT NULL,
			rank_position      INTEGER NOT NULL CHECK (rank_position BETWEEN 1 AND 10),
			category           TEXT NOT NULL DEFAULT 'upcoming',
			featured_at        TIMESTAMP NOT NULL,
			updated_at         TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS featured_movies_category_rank ON featured_movies (category, rank_position)`,
		`CREATE INDEX IF NOT EXISTS featured_movies_release_date ON featured_movies (release_date)`,
	},
	genres:      func(ids []int) driver.Valuer { return jsonGenres(ids) },
	genreTarget: func() genreScanner { return &jsonGenres{} },
}

type pgGenres struct {
	pq.Int64Array
}

func (g *pgGenres) Scan(src any) error {
	return g.Int64Array.Scan(src)
}

func (g *pgGenres) Ints() []int {
	out := make([]int, len(g.Int64Array))
	for i, v := range g.Int64Array {
		out[i] = int(v)
	}
	return out
}

// jsonGenres stores genre codes as a JSON array in a TEXT column.
type jsonGenres []int

func (g jsonGenres) Value() (driver.Value, error) {
	if g == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]int(g))
	if err != nil {
		return nil, fmt.Errorf("encode genres: %w", err)
	}
	return string(raw), nil
}

func (g *jsonGenres) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = jsonGenres{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan genres: unsupported type %T", src)
	}
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("decode genres: %w", err)
	}
	*g = ids
	return nil
}

func (g *jsonGenres) Ints() []int {
	if *g == nil {
		return []int{}
	}
	return []int(*g)
}
