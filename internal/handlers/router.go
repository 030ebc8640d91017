package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Routes struct {
	Auth      *AuthHandlers
	Users     *UserHandlers
	WebSocket http.Handler
	// Authenticator guards the /users routes.
	Authenticator interface {
		Authenticate(token string) (string, error)
	}
	Log *zap.Logger
}

func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(rt.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/register", rt.Auth.Register)
	r.Post("/login", rt.Auth.Login)
	r.Handle("/ws", rt.WebSocket)

	r.Route("/users", func(r chi.Router) {
		r.Use(RequireUser(rt.Authenticator))

		r.Put("/me/location", rt.Users.UpdateLocation)
		r.Get("/nearby", rt.Users.Nearby)
		r.Get("/{userID}/online", rt.Users.Online)
		r.Post("/{userID}/follow", rt.Users.Follow)
		r.Post("/{userID}/visit", rt.Users.Visit)
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	log = log.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)))
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
