package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/parkspot/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса parkspot.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/public-spots", func(r chi.Router) {
		r.Get("/", h.ListPublicSpots)
		r.Get("/near", h.PublicSpotsNear)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Optional)

			r.Post("/", h.ReportLeaving)
			r.Post("/{id}/taken", h.ConfirmTaken)
		})
	})

	r.Get("/api/reliability/{userId}", h.GetReliability)
	r.Get("/api/badges", h.ListBadges)

	if h.service != nil {
		h.mountMarketplace(r)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func (h *Handler) mountMarketplace(r chi.Router) {
	r.Post("/api/session", h.CreateSession)
	r.Delete("/api/session", h.DeleteSession)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", h.RegisterUser)
		r.Get("/firebase/{uid}", h.GetUserByFirebaseUID)
		r.Get("/{id}", h.GetUser)

		r.With(h.authMiddleware.Middleware).Put("/{id}", h.UpdateUser)
	})

	r.Route("/api/parking-spots", func(r chi.Router) {
		r.Get("/", h.ListParkingSpots)
		r.Get("/search", h.SearchParkingSpots)
		r.Get("/host/{hostId}", h.ListHostParkingSpots)
		r.Get("/{id}", h.GetParkingSpot)

		r.With(h.authMiddleware.Middleware).Post("/", h.CreateParkingSpot)
	})

	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/", h.CreateBooking)
		r.Get("/user/{userId}", h.ListUserBookings)
		r.Get("/{id}", h.GetBooking)
		r.Post("/{id}/cancel", h.CancelBooking)
	})
}
