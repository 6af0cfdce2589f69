package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/parkspot/internal/middleware"
	"github.com/mmeshcher/parkspot/internal/model"
	"github.com/mmeshcher/parkspot/internal/notify"
	"github.com/mmeshcher/parkspot/internal/tracker"
)

// actorID возвращает идентификатор пользователя из сессии, а без неё значение из тела запроса.
func actorID(r *http.Request, fromBody string) string {
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		return strconv.FormatInt(id, 10)
	}
	return strings.TrimSpace(fromBody)
}

type reportRequest struct {
	UserID      string            `json:"user_id"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	SurfaceType model.SurfaceType `json:"surface_type"`
}

type reportResponse struct {
	ID string `json:"id"`
}

// ReportLeaving принимает сообщение о том, что пользователь освободил место.
func (h *Handler) ReportLeaving(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	id, err := h.tracker.ReportLeaving(actorID(r, req.UserID), req.Lat, req.Lng, req.SurfaceType)
	if err != nil {
		h.writeError(w, err, "report leaving error")
		return
	}

	if spot, ok := h.tracker.Spot(id); ok {
		h.dispatchVacated(r.Context(), spot)
	}

	writeJSON(w, http.StatusCreated, reportResponse{ID: id})
}

// dispatchVacated отправляет уведомление в фоне; ошибки доставки только журналируются.
func (h *Handler) dispatchVacated(parent context.Context, spot model.PublicSpot) {
	event := notify.EventFromSpot(spot)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), dispatchTimeout)

	go func() {
		defer cancel()
		if err := h.dispatcher.SpotVacated(ctx, event); err != nil {
			h.logger.Warn("spot vacated notification failed",
				zap.String("spot_id", event.SpotID),
				zap.Error(err),
			)
		}
	}()
}

type takenRequest struct {
	UserID string `json:"user_id"`
}

// ConfirmTaken отмечает место занятым.
func (h *Handler) ConfirmTaken(w http.ResponseWriter, r *http.Request) {
	var req takenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest)
		return
	}

	userID := actorID(r, req.UserID)
	if userID == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return
	}

	spotID := chi.URLParam(r, "id")
	if !h.tracker.ConfirmTaken(spotID, userID) {
		httpError(w, http.StatusNotFound)
		return
	}

	spot, _ := h.tracker.Spot(spotID)
	writeJSON(w, http.StatusOK, spot)
}

// ListPublicSpots возвращает места, которые ещё не заняты.
func (h *Handler) ListPublicSpots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.ActiveSpots())
}

func parseFloatParam(r *http.Request, name string, required bool) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, !required
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PublicSpotsNear возвращает активные места рядом с точкой.
func (h *Handler) PublicSpotsNear(w http.ResponseWriter, r *http.Request) {
	lat, okLat := parseFloatParam(r, "lat", true)
	lng, okLng := parseFloatParam(r, "lng", true)
	radius, okRadius := parseFloatParam(r, "radius", false)
	if !okLat || !okLng || !okRadius {
		httpError(w, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, h.tracker.SpotsNear(lat, lng, radius))
}

// GetReliability возвращает рейтинг пользователя. Для неизвестного пользователя
// возвращается начальное состояние: рейтинг 100 и ни одной награды.
func (h *Handler) GetReliability(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	rel, ok := h.tracker.UserScore(userID)
	if !ok {
		rel = model.Reliability{
			UserID:           userID,
			ReliabilityScore: 100,
			Badges:           []model.Badge{},
		}
	}

	writeJSON(w, http.StatusOK, rel)
}

// ListBadges возвращает каталог наград.
func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tracker.Catalogue())
}
