package authhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/open-rails/castingkit/core"
	"github.com/open-rails/castingkit/metrics"
	"github.com/sirupsen/logrus"
)

// Route is one protected operation: it runs only for callers holding Permission.
type Route struct {
	Method     string
	Pattern    string
	Permission core.Permission
	Handler    ClaimsHandler
}

// Routes returns the protected route table.
func (s *Service) Routes() []Route {
	return []Route{
		{http.MethodGet, "/actors", core.PermGetActors, s.handleActorsGET},
		{http.MethodGet, "/movies", core.PermGetMovies, s.handleMoviesGET},
		{http.MethodPost, "/actors", core.PermPostActors, s.handleActorsPOST},
		{http.MethodPost, "/movies", core.PermPostMovies, s.handleMoviesPOST},
		{http.MethodPatch, "/actors/{id}", core.PermPatchActors, s.handleActorPATCH},
		{http.MethodPatch, "/movies/{id}", core.PermPatchMovies, s.handleMoviePATCH},
		{http.MethodDelete, "/actors/{id}", core.PermDeleteActors, s.handleActorDELETE},
		{http.MethodDelete, "/movies/{id}", core.PermDeleteMovies, s.handleMovieDELETE},
	}
}

// Handler builds the full router: public endpoints plus every route from
// Routes wrapped by the rate limiter and Gate.Require.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(requestLogger(s.log, s.clientIP))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { notFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { methodNotAllowed(w) })

	r.Get("/", s.handleIndexGET)
	r.Get("/healthz", s.handleHealthGET)
	if s.metricsH != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsH)
	}

	for _, rt := range s.Routes() {
		r.Method(rt.Method, rt.Pattern, s.limit(s.gate.Require(rt.Permission, rt.Handler)))
	}
	return r
}

func requestLogger(log logrus.FieldLogger, clientIP ClientIPFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			// Headers are never logged; Authorization carries the token.
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"client_ip":  clientIP(r),
				"method":     r.Method,
				"route":      route,
				"status":     status,
				"ms":         time.Since(start).Milliseconds(),
				"bytes":      ww.BytesWritten(),
			}).Info("request_completed")
		})
	}
}
