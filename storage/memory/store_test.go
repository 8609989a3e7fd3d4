package memorystore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/open-rails/castingkit/core"
	"github.com/stretchr/testify/require"
)

func TestStore_Actors(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	a, err := s.CreateActor(ctx, core.Actor{Name: "Ana", Age: 30, Gender: "female"})
	require.NoError(t, err)
	require.EqualValues(t, 1, a.ID)
	b, err := s.CreateActor(ctx, core.Actor{Name: "Bo", Age: 40, Gender: "male"})
	require.NoError(t, err)

	_, err = s.CreateActor(ctx, core.Actor{Name: "Ana", Age: 22, Gender: "female"})
	require.ErrorIs(t, err, core.ErrConflict)
	_, err = s.CreateActor(ctx, core.Actor{Name: "Cy", Age: 0, Gender: "male"})
	require.ErrorIs(t, err, core.ErrInvalid)

	name := "Ana"
	_, err = s.UpdateActor(ctx, b.ID, core.ActorPatch{Name: &name})
	require.ErrorIs(t, err, core.ErrConflict)

	age := 41
	got, err := s.UpdateActor(ctx, b.ID, core.ActorPatch{Age: &age})
	require.NoError(t, err)
	require.Equal(t, core.Actor{ID: b.ID, Name: "Bo", Age: 41, Gender: "male"}, got)

	_, err = s.UpdateActor(ctx, 99, core.ActorPatch{Age: &age})
	require.ErrorIs(t, err, core.ErrNotFound)

	list, err := s.ListActors(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, a.ID, list[0].ID)

	del, err := s.DeleteActor(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana", del.Name)
	_, err = s.DeleteActor(ctx, a.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	// Ids are not reused after a delete.
	c, err := s.CreateActor(ctx, core.Actor{Name: "Ana", Age: 30, Gender: "female"})
	require.NoError(t, err)
	require.EqualValues(t, 3, c.ID)
}

func TestStore_Movies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rd := time.Date(1995, time.December, 15, 0, 0, 0, 0, time.UTC)

	m, err := s.CreateMovie(ctx, core.Movie{Title: "Heat", ReleaseDate: rd})
	require.NoError(t, err)
	_, err = s.CreateMovie(ctx, core.Movie{Title: "Heat", ReleaseDate: rd})
	require.ErrorIs(t, err, core.ErrConflict)
	_, err = s.CreateMovie(ctx, core.Movie{Title: "", ReleaseDate: rd})
	require.ErrorIs(t, err, core.ErrInvalid)

	day := 1
	got, err := s.UpdateMovie(ctx, m.ID, core.MoviePatch{Day: &day})
	require.NoError(t, err)
	require.Equal(t, time.Date(1995, time.December, 1, 0, 0, 0, 0, time.UTC), got.ReleaseDate)

	list, err := s.ListMovies(ctx)
	require.NoError(t, err)
	require.Equal(t, []core.Movie{got}, list)

	_, err = s.DeleteMovie(ctx, m.ID)
	require.NoError(t, err)
	_, err = s.UpdateMovie(ctx, m.ID, core.MoviePatch{Day: &day})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.CreateActor(ctx, core.Actor{Name: "same", Age: 20 + i, Gender: "x"})
		}(i)
	}
	wg.Wait()
	list, err := s.ListActors(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
