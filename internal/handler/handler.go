// Package handler содержит HTTP-обработчики API сервиса parkspot.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/parkspot/internal/middleware"
	"github.com/mmeshcher/parkspot/internal/model"
	"github.com/mmeshcher/parkspot/internal/notify"
	"github.com/mmeshcher/parkspot/internal/repository"
	"github.com/mmeshcher/parkspot/internal/service"
	"github.com/mmeshcher/parkspot/internal/tracker"
)

// Service определяет контракт бизнес-логики маркетплейса, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, u model.User) (*model.User, error)
	AuthenticateByFirebaseUID(ctx context.Context, uid string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByFirebaseUID(ctx context.Context, uid string) (*model.User, error)
	UpdateUserRole(ctx context.Context, callerID, userID int64, role string) (*model.User, error)
	CreateParkingSpot(ctx context.Context, hostID int64, spot model.ParkingSpot) (*model.ParkingSpot, error)
	GetParkingSpot(ctx context.Context, id int64) (*model.ParkingSpot, error)
	ListParkingSpots(ctx context.Context) ([]model.ParkingSpot, error)
	ListHostParkingSpots(ctx context.Context, hostID int64) ([]model.ParkingSpot, error)
	SearchParkingSpots(ctx context.Context, lat, lng, radiusMeters float64) ([]model.ParkingSpot, error)
	CreateBooking(ctx context.Context, guestID, spotID int64, start, end time.Time) (*model.Booking, error)
	GetBooking(ctx context.Context, callerID, id int64) (*model.Booking, error)
	ListUserBookings(ctx context.Context, callerID, userID int64) ([]model.Booking, error)
	CancelBooking(ctx context.Context, callerID, id int64) (*model.Booking, error)
}

// Tracker определяет контракт учёта освободившихся уличных мест.
type Tracker interface {
	ReportLeaving(userID string, lat, lng float64, surface model.SurfaceType) (string, error)
	ConfirmTaken(spotID, userID string) bool
	Spot(id string) (model.PublicSpot, bool)
	ActiveSpots() []model.PublicSpot
	SpotsNear(lat, lng, radiusMeters float64) []model.PublicSpot
	UserScore(userID string) (model.Reliability, bool)
}

const dispatchTimeout = 15 * time.Second

// Handler реализует HTTP-обработчики API сервиса parkspot.
// service может быть nil: тогда маршруты маркетплейса не регистрируются.
type Handler struct {
	service        Service
	tracker        Tracker
	dispatcher     notify.Dispatcher
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, t Tracker, d notify.Dispatcher, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	if d == nil {
		d = notify.NewLogDispatcher(logger)
	}
	return &Handler{
		service:        s,
		tracker:        t,
		dispatcher:     d,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

// writeError переводит доменную ошибку в HTTP-статус. Неизвестные ошибки журналируются.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, tracker.ErrInvalidReport):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrForbidden):
		httpError(w, http.StatusForbidden)
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrSpotNotFound),
		errors.Is(err, repository.ErrBookingNotFound):
		httpError(w, http.StatusNotFound)
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrBookingConflict),
		errors.Is(err, repository.ErrBookingStateChanged):
		httpError(w, http.StatusConflict)
	case errors.Is(err, service.ErrSpotUnavailable):
		httpError(w, http.StatusUnprocessableEntity)
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		httpError(w, http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type registerRequest struct {
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        model.Role `json:"role"`
	FirebaseUID string     `json:"firebase_uid"`
}

// RegisterUser регистрирует пользователя и открывает для него сессию.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), model.User{
		Email:       req.Email,
		Name:        req.Name,
		Role:        req.Role,
		FirebaseUID: req.FirebaseUID,
	})
	if err != nil {
		h.writeError(w, err, "register user error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID)
	writeJSON(w, http.StatusCreated, user)
}

type sessionRequest struct {
	FirebaseUID string `json:"firebase_uid"`
}

// CreateSession открывает сессию для пользователя, уже прошедшего проверку у провайдера.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	user, err := h.service.AuthenticateByFirebaseUID(r.Context(), req.FirebaseUID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			httpError(w, http.StatusUnauthorized)
			return
		}
		h.writeError(w, err, "create session error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID)
	writeJSON(w, http.StatusOK, user)
}

// DeleteSession закрывает текущую сессию.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GetUser возвращает пользователя по идентификатору.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpError(w, http.StatusBadRequest)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get user error", zap.Int64("userID", id))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GetUserByFirebaseUID возвращает пользователя по идентификатору провайдера.
func (h *Handler) GetUserByFirebaseUID(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	user, err := h.service.GetUserByFirebaseUID(r.Context(), uid)
	if err != nil {
		h.writeError(w, err, "get user by firebase uid error", zap.String("uid", uid))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Role string `json:"role"`
}

// UpdateUser меняет роль текущего пользователя.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
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

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateUserRole(r.Context(), callerID, id, req.Role)
	if err != nil {
		h.writeError(w, err, "update user error", zap.Int64("userID", id))
		return
	}

	writeJSON(w, http.StatusOK, user)
}
