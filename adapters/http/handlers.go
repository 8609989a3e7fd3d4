package authhttp

import (
	"errors"
	"net/http"

	"github.com/open-rails/castingkit/core"
	"github.com/sirupsen/logrus"
)

type actorRequest struct {
	Name   *string `json:"name"`
	Age    *int    `json:"age"`
	Gender *string `json:"gender"`
}

type movieRequest struct {
	Title *string `json:"title"`
	Year  *int    `json:"year"`
	Month *int    `json:"month"`
	Day   *int    `json:"day"`
}

func (s *Service) handleIndexGET(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"greeting": "Welcome to the casting agency API.",
	})
}

func (s *Service) handleHealthGET(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Service) handleActorsGET(w http.ResponseWriter, r *http.Request, _ core.Claims) {
	actors, err := s.store.ListActors(r.Context())
	if err != nil {
		s.log.WithError(err).Error("list_actors_failed")
		serverErr(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "actors": actors})
}

func (s *Service) handleMoviesGET(w http.ResponseWriter, r *http.Request, _ core.Claims) {
	movies, err := s.store.ListMovies(r.Context())
	if err != nil {
		s.log.WithError(err).Error("list_movies_failed")
		serverErr(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "movies": movies})
}

func (s *Service) handleActorsPOST(w http.ResponseWriter, r *http.Request, cl core.Claims) {
	var req actorRequest
	if err := decodeJSON(r, &req); err != nil {
		unprocessable(w)
		return
	}
	if req.Name == nil || req.Age == nil || req.Gender == nil {
		unprocessable(w)
		return
	}
	a, err := s.store.CreateActor(r.Context(), core.Actor{Name: *req.Name, Age: *req.Age, Gender: *req.Gender})
	if err != nil {
		s.storeFailed(w, "create_actor_failed", err)
		return
	}
	s.audit(cl, "actor_created", a.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "new_actor": a})
}

func (s *Service) handleMoviesPOST(w http.ResponseWriter, r *http.Request, cl core.Claims) {
	var req movieRequest
	if err := decodeJSON(r, &req); err != nil {
		unprocessable(w)
		return
	}
	if req.Title == nil || req.Year == nil || req.Month == nil || req.Day == nil {
		unprocessable(w)
		return
	}
	rd, err := core.ReleaseDate(*req.Year, *req.Month, *req.Day)
	if err != nil {
		unprocessable(w)
		return
	}
	m, err := s.store.CreateMovie(r.Context(), core.Movie{Title: *req.Title, ReleaseDate: rd})
	if err != nil {
		s.storeFailed(w, "create_movie_failed", err)
		return
	}
	s.audit(cl, "movie_created", m.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "new_movie": m})
}

func (s *Service) handleActorPATCH(w http.ResponseWriter, r *http.Request, cl core.Claims) {
	id, ok := pathID(r)
	if !ok {
		notFound(w)
		return
	}
	var req actorRequest
	if err := decodeJSON(r, &req); err != nil {
		unprocessable(w)
		return
	}
	a, err := s.store.UpdateActor(r.Context(), id, core.ActorPatch{Name: req.Name, Age: req.Age, Gender: req.Gender})
	if err != nil {
		s.storeFailed(w, "update_actor_failed", err)
		return
	}
	s.audit(cl, "actor_modified", a.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "modified_actor": a})
}

func (s *Service) handleMoviePATCH(w http.ResponseWriter, r *http.Request, cl core.Claims) {
	id, ok := pathID(r)
	if !ok {
		notFound(w)
		return
	}
	var req movieRequest
	if err := decodeJSON(r, &req); err != nil {
		unprocessable(w)
		return
	}
	m, err := s.store.UpdateMovie(r.Context(), id, core.MoviePatch{Title: req.Title, Year: req.Year, Month: req.Month, Day: req.Day})
	if err != nil {
		s.storeFailed(w, "update_movie_failed", err)
		return
	}
	s.audit(cl, "movie_modified", m.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "modified_movie": m})
}

func (s *Service) handleActorDELETE(w http.ResponseWriter, r *http.Request, cl core.Claims) {
	id, ok := pathID(r)
	if !ok {
		notFound(w)
		return
	}
	a, err := s.store.DeleteActor(r.Context(), id)
	if err != nil {
		s.storeFailed(w, "delete_actor_failed", err)
		return
	}
	s.audit(cl, "actor_deleted", a.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted_actor": a})
}

func (s *Service) handleMovieDELETE(w http.ResponseWriter, r *http.Request, cl core.Claims) {
	id, ok := pathID(r)
	if !ok {
		notFound(w)
		return
	}
	m, err := s.store.DeleteMovie(r.Context(), id)
	if err != nil {
		s.storeFailed(w, "delete_movie_failed", err)
		return
	}
	s.audit(cl, "movie_deleted", m.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted_movie": m})
}

func (s *Service) storeFailed(w http.ResponseWriter, event string, err error) {
	if !errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrConflict) && !errors.Is(err, core.ErrInvalid) {
		s.log.WithError(err).Error(event)
	}
	writeStoreErr(w, err)
}

func (s *Service) audit(cl core.Claims, event string, id int64) {
	s.log.WithFields(logrus.Fields{"sub": cl.Subject, "id": id}).Info(event)
}
