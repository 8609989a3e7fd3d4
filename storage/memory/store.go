package memorystore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/open-rails/castingkit/core"
)

// Store keeps actors and movies in process memory. Names and titles are
// unique, compared case-sensitively like the Postgres unique constraints.
type Store struct {
	mu      sync.RWMutex
	actors  map[int64]core.Actor
	movies  map[int64]core.Movie
	actorID int64
	movieID int64
}

var _ core.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		actors: map[int64]core.Actor{},
		movies: map[int64]core.Movie{},
	}
}

func (s *Store) ListActors(ctx context.Context) ([]core.Actor, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateActor(ctx context.Context, a core.Actor) (core.Actor, error) {
	_ = ctx
	if err := core.ValidateActor(a); err != nil {
		return core.Actor{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actorNameTaken(a.Name, 0) {
		return core.Actor{}, fmt.Errorf("actor %q: %w", a.Name, core.ErrConflict)
	}
	s.actorID++
	a.ID = s.actorID
	s.actors[a.ID] = a
	return a, nil
}

func (s *Store) UpdateActor(ctx context.Context, id int64, p core.ActorPatch) (core.Actor, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.actors[id]
	if !ok {
		return core.Actor{}, fmt.Errorf("actor %d: %w", id, core.ErrNotFound)
	}
	next, err := core.ApplyActorPatch(cur, p)
	if err != nil {
		return core.Actor{}, err
	}
	if s.actorNameTaken(next.Name, id) {
		return core.Actor{}, fmt.Errorf("actor %q: %w", next.Name, core.ErrConflict)
	}
	s.actors[id] = next
	return next, nil
}

func (s *Store) DeleteActor(ctx context.Context, id int64) (core.Actor, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return core.Actor{}, fmt.Errorf("actor %d: %w", id, core.ErrNotFound)
	}
	delete(s.actors, id)
	return a, nil
}

func (s *Store) ListMovies(ctx context.Context) ([]core.Movie, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateMovie(ctx context.Context, m core.Movie) (core.Movie, error) {
	_ = ctx
	if strings.TrimSpace(m.Title) == "" || m.ReleaseDate.IsZero() {
		return core.Movie{}, core.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.movieTitleTaken(m.Title, 0) {
		return core.Movie{}, fmt.Errorf("movie %q: %w", m.Title, core.ErrConflict)
	}
	s.movieID++
	m.ID = s.movieID
	s.movies[m.ID] = m
	return m, nil
}

func (s *Store) UpdateMovie(ctx context.Context, id int64, p core.MoviePatch) (core.Movie, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.movies[id]
	if !ok {
		return core.Movie{}, fmt.Errorf("movie %d: %w", id, core.ErrNotFound)
	}
	next, err := core.ApplyMoviePatch(cur, p)
	if err != nil {
		return core.Movie{}, err
	}
	if s.movieTitleTaken(next.Title, id) {
		return core.Movie{}, fmt.Errorf("movie %q: %w", next.Title, core.ErrConflict)
	}
	s.movies[id] = next
	return next, nil
}

func (s *Store) DeleteMovie(ctx context.Context, id int64) (core.Movie, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	if !ok {
		return core.Movie{}, fmt.Errorf("movie %d: %w", id, core.ErrNotFound)
	}
	delete(s.movies, id)
	return m, nil
}

// callers hold s.mu
func (s *Store) actorNameTaken(name string, except int64) bool {
	for id, a := range s.actors {
		if id != except && a.Name == name {
			return true
		}
	}
	return false
}

// callers hold s.mu
func (s *Store) movieTitleTaken(title string, except int64) bool {
	for id, m := range s.movies {
		if id != except && m.Title == title {
			return true
		}
	}
	return false
}
