package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-rails/castingkit/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS actors (
	id     BIGSERIAL PRIMARY KEY,
	name   VARCHAR(80) UNIQUE,
	age    INTEGER NOT NULL,
	gender VARCHAR(10) NOT NULL
);
CREATE TABLE IF NOT EXISTS movies (
	id           BIGSERIAL PRIMARY KEY,
	title        VARCHAR(80) UNIQUE,
	release_date TIMESTAMPTZ NOT NULL
);`

// Store persists actors and movies in Postgres.
type Store struct {
	pg *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

func New(pg *pgxpool.Pool) *Store { return &Store{pg: pg} }

// EnsureSchema creates the actors and movies tables when they do not exist.
// It never alters existing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pg.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) ListActors(ctx context.Context) ([]core.Actor, error) {
	rows, err := s.pg.Query(ctx, `SELECT id, name, age, gender FROM actors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []core.Actor{}
	for rows.Next() {
		var a core.Actor
		if err := rows.Scan(&a.ID, &a.Name, &a.Age, &a.Gender); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateActor(ctx context.Context, a core.Actor) (core.Actor, error) {
	if err := core.ValidateActor(a); err != nil {
		return core.Actor{}, err
	}
	err := s.pg.QueryRow(ctx,
		`INSERT INTO actors (name, age, gender) VALUES ($1, $2, $3) RETURNING id`,
		a.Name, a.Age, a.Gender,
	).Scan(&a.ID)
	if err != nil {
		return core.Actor{}, mapErr("actor", err)
	}
	return a, nil
}

func (s *Store) UpdateActor(ctx context.Context, id int64, p core.ActorPatch) (core.Actor, error) {
	var out core.Actor
	err := pgx.BeginFunc(ctx, s.pg, func(tx pgx.Tx) error {
		var cur core.Actor
		if err := tx.QueryRow(ctx,
			`SELECT id, name, age, gender FROM actors WHERE id = $1 FOR UPDATE`, id,
		).Scan(&cur.ID, &cur.Name, &cur.Age, &cur.Gender); err != nil {
			return err
		}
		next, err := core.ApplyActorPatch(cur, p)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE actors SET name = $2, age = $3, gender = $4 WHERE id = $1`,
			id, next.Name, next.Age, next.Gender,
		); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return core.Actor{}, mapErr("actor", err)
	}
	return out, nil
}

func (s *Store) DeleteActor(ctx context.Context, id int64) (core.Actor, error) {
	var a core.Actor
	err := s.pg.QueryRow(ctx,
		`DELETE FROM actors WHERE id = $1 RETURNING id, name, age, gender`, id,
	).Scan(&a.ID, &a.Name, &a.Age, &a.Gender)
	if err != nil {
		return core.Actor{}, mapErr("actor", err)
	}
	return a, nil
}

func (s *Store) ListMovies(ctx context.Context) ([]core.Movie, error) {
	rows, err := s.pg.Query(ctx, `SELECT id, title, release_date FROM movies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []core.Movie{}
	for rows.Next() {
		var m core.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.ReleaseDate); err != nil {
			return nil, err
		}
		m.ReleaseDate = m.ReleaseDate.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CreateMovie(ctx context.Context, m core.Movie) (core.Movie, error) {
	if m.Title == "" || m.ReleaseDate.IsZero() {
		return core.Movie{}, core.ErrInvalid
	}
	err := s.pg.QueryRow(ctx,
		`INSERT INTO movies (title, release_date) VALUES ($1, $2) RETURNING id`,
		m.Title, m.ReleaseDate,
	).Scan(&m.ID)
	if err != nil {
		return core.Movie{}, mapErr("movie", err)
	}
	return m, nil
}

func (s *Store) UpdateMovie(ctx context.Context, id int64, p core.MoviePatch) (core.Movie, error) {
	var out core.Movie
	err := pgx.BeginFunc(ctx, s.pg, func(tx pgx.Tx) error {
		var cur core.Movie
		if err := tx.QueryRow(ctx,
			`SELECT id, title, release_date FROM movies WHERE id = $1 FOR UPDATE`, id,
		).Scan(&cur.ID, &cur.Title, &cur.ReleaseDate); err != nil {
			return err
		}
		cur.ReleaseDate = cur.ReleaseDate.UTC()
		next, err := core.ApplyMoviePatch(cur, p)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE movies SET title = $2, release_date = $3 WHERE id = $1`,
			id, next.Title, next.ReleaseDate,
		); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return core.Movie{}, mapErr("movie", err)
	}
	return out, nil
}

func (s *Store) DeleteMovie(ctx context.Context, id int64) (core.Movie, error) {
	var m core.Movie
	err := s.pg.QueryRow(ctx,
		`DELETE FROM movies WHERE id = $1 RETURNING id, title, release_date`, id,
	).Scan(&m.ID, &m.Title, &m.ReleaseDate)
	if err != nil {
		return core.Movie{}, mapErr("movie", err)
	}
	m.ReleaseDate = m.ReleaseDate.UTC()
	return m, nil
}

func mapErr(kind string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", kind, core.ErrNotFound)
	}
	if errors.Is(err, core.ErrInvalid) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", kind, core.ErrConflict)
		case "23502", "22001", "22003":
			return fmt.Errorf("%s: %w", kind, core.ErrInvalid)
		}
	}
	return fmt.Errorf("%s: %w", kind, err)
}
