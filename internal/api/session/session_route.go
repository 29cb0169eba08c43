package session

import (
	"danmaku-sync/internal/config"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func RegisterRoute(route chi.Router) {
	timeout := config.GetConfig().Server.Timeout
	if timeout <= 0 {
		timeout = 60
	}
	sessionRoute := route.Group(func(s chi.Router) {
		sessionOptions := cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"*"},
		})
		s.Use(sessionOptions.Handler)
		s.Use(middleware.Timeout(time.Duration(1e9 * timeout)))
	})
	sessionRoute.Route("/api/v1/sessions", func(r chi.Router) {
		r.Get("/", ListHandler)
		r.Post("/", CreateHandler)
		r.Route("/{sid}", func(r chi.Router) {
			r.Get("/", StatusHandler)
			r.Delete("/", DeleteHandler)
			r.Get("/comments", CommentHandler)
			r.Put("/position", PositionHandler)
			r.Post("/stop", StopHandler)
			r.Post("/reconnect", ReconnectHandler)
			r.Post("/clear", ClearHandler)
		})
	})
}
