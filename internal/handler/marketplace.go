package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parkspot/internal/middleware"
	"github.com/mmeshcher/parkspot/internal/model"
)

// ListParkingSpots возвращает все объявления.
func (h *Handler) ListParkingSpots(w http.ResponseWriter, r *http.Request) {
	spots, err := h.service.ListParkingSpots(r.Context())
	if err != nil {
		h.writeError(w, err, "list parking spots error")
		return
	}

	writeJSON(w, http.StatusOK, spots)
}

// CreateParkingSpot публикует объявление текущего пользователя.
func (h *Handler) CreateParkingSpot(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	var req model.ParkingSpot
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	spot, err := h.service.CreateParkingSpot(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, err, "create parking spot error", zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusCreated, spot)
}

// SearchParkingSpots возвращает объявления рядом с точкой, ближайшие первыми.
func (h *Handler) SearchParkingSpots(w http.ResponseWriter, r *http.Request) {
	lat, okLat := parseFloatParam(r, "lat", true)
	lng, okLng := parseFloatParam(r, "lng", true)
	radius, okRadius := parseFloatParam(r, "radius", false)
	if !okLat || !okLng || !okRadius {
		httpError(w, http.StatusBadRequest)
		return
	}

	spots, err := h.service.SearchParkingSpots(r.Context(), lat, lng, radius)
	if err != nil {
		h.writeError(w, err, "search parking spots error")
		return
	}

	writeJSON(w, http.StatusOK, spots)
}

// GetParkingSpot возвращает объявление по идентификатору.
func (h *Handler) GetParkingSpot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpError(w, http.StatusBadRequest)
		return
	}

	spot, err := h.service.GetParkingSpot(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get parking spot error", zap.Int64("spotID", id))
		return
	}

	writeJSON(w, http.StatusOK, spot)
}

// ListHostParkingSpots возвращает объявления хоста.
func (h *Handler) ListHostParkingSpots(w http.ResponseWriter, r *http.Request) {
	hostID, ok := pathID(r, "hostId")
	if !ok {
		httpError(w, http.StatusBadRequest)
		return
	}

	spots, err := h.service.ListHostParkingSpots(r.Context(), hostID)
	if err != nil {
		h.writeError(w, err, "list host parking spots error", zap.Int64("hostID", hostID))
		return
	}

	writeJSON(w, http.StatusOK, spots)
}

type bookingRequest struct {
	ParkingSpotID int64     `json:"parking_spot_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// CreateBooking бронирует место для текущего пользователя.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}
	if req.ParkingSpotID <= 0 {
		httpError(w, http.StatusBadRequest)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), userID, req.ParkingSpotID, req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, err, "create booking error",
			zap.Int64("userID", userID),
			zap.Int64("spotID", req.ParkingSpotID),
		)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// ListUserBookings возвращает историю бронирований текущего пользователя.
func (h *Handler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	userID, ok := pathID(r, "userId")
	if !ok {
		httpError(w, http.StatusBadRequest)
		return
	}

	bookings, err := h.service.ListUserBookings(r.Context(), callerID, userID)
	if err != nil {
		h.writeError(w, err, "list bookings error", zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, bookings)
}

// GetBooking возвращает бронирование текущего пользователя.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		httpError(w, http.StatusBadRequest)
		return
	}

	booking, err := h.service.GetBooking(r.Context(), callerID, id)
	if err != nil {
		h.writeError(w, err, "get booking error", zap.Int64("bookingID", id))
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// CancelBooking отменяет бронирование текущего пользователя.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		httpError(w, http.StatusBadRequest)
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), callerID, id)
	if err != nil {
		h.writeError(w, err, "cancel booking error", zap.Int64("bookingID", id))
		return
	}

	writeJSON(w, http.StatusOK, booking)
}
