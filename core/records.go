package core

import (
	"context"
	"strings"
	"time"
)

// Actor is a casting-agency talent record.
type Actor struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// Movie is a production the agency casts for.
type Movie struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	ReleaseDate time.Time `json:"release_date"`
}

// ActorPatch carries the fields of a partial actor update; nil means unchanged.
type ActorPatch struct {
	Name   *string
	Age    *int
	Gender *string
}

// MoviePatch carries the fields of a partial movie update; nil means unchanged.
// Year, Month and Day replace the matching part of the current release date.
type MoviePatch struct {
	Title *string
	Year  *int
	Month *int
	Day   *int
}

// Store is the persistence boundary for the gated operations.
type Store interface {
	ListActors(ctx context.Context) ([]Actor, error)
	CreateActor(ctx context.Context, a Actor) (Actor, error)
	UpdateActor(ctx context.Context, id int64, p ActorPatch) (Actor, error)
	DeleteActor(ctx context.Context, id int64) (Actor, error)

	ListMovies(ctx context.Context) ([]Movie, error)
	CreateMovie(ctx context.Context, m Movie) (Movie, error)
	UpdateMovie(ctx context.Context, id int64, p MoviePatch) (Movie, error)
	DeleteMovie(ctx context.Context, id int64) (Movie, error)
}

// ValidateActor checks the required actor fields.
func ValidateActor(a Actor) error {
	if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Gender) == "" || a.Age <= 0 {
		return ErrInvalid
	}
	return nil
}

// ReleaseDate builds a UTC calendar date and rejects values that
// time.Date would silently normalize (for example February 30).
func ReleaseDate(year, month, day int) (time.Time, error) {
	if year <= 0 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, ErrInvalid
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, ErrInvalid
	}
	return t, nil
}

// ApplyActorPatch returns a with every non-nil field of p applied.
func ApplyActorPatch(a Actor, p ActorPatch) (Actor, error) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Age != nil {
		a.Age = *p.Age
	}
	if p.Gender != nil {
		a.Gender = *p.Gender
	}
	return a, ValidateActor(a)
}

// ApplyMoviePatch returns m with every non-nil field of p applied.
// All date parts are applied together against the current release date.
func ApplyMoviePatch(m Movie, p MoviePatch) (Movie, error) {
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return m, ErrInvalid
		}
		m.Title = *p.Title
	}
	y, mo, d := m.ReleaseDate.Year(), int(m.ReleaseDate.Month()), m.ReleaseDate.Day()
	if p.Year != nil {
		y = *p.Year
	}
	if p.Month != nil {
		mo = *p.Month
	}
	if p.Day != nil {
		d = *p.Day
	}
	rd, err := ReleaseDate(y, mo, d)
	if err != nil {
		return m, err
	}
	m.ReleaseDate = rd
	return m, nil
}
