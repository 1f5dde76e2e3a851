package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRoutes(rooms Rooms, turns Turns, wsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", wsHandler.ServeHTTP)

	r.Route("/rooms/{roomID}", func(r chi.Router) {
		r.Get("/status", RoomStatus(rooms))
		r.Get("/turns", RoomTurns(turns))
		r.Delete("/", DeleteRoom(rooms))
	})
	return r
}
