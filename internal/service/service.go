// Package service реализует бизнес-логику маркетплейса парковок.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/parkspot/internal/geo"
	"github.com/mmeshcher/parkspot/internal/model"
	"github.com/mmeshcher/parkspot/internal/validation"
)

// DefaultSearchRadius радиус поиска объявлений по умолчанию в метрах.
const DefaultSearchRadius = 5000.0

const maxBookingDuration = 30 * 24 * time.Hour

var (
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden возвращается, если пользователь не является владельцем ресурса.
	ErrForbidden = errors.New("forbidden")
	// ErrSpotUnavailable возвращается при бронировании снятого с публикации места.
	ErrSpotUnavailable = errors.New("parking spot is not available")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByFirebaseUID(ctx context.Context, uid string) (*model.User, error)
	UpdateUserRole(ctx context.Context, id int64, role model.Role) (*model.User, error)
	CreateParkingSpot(ctx context.Context, s model.ParkingSpot) (*model.ParkingSpot, error)
	GetParkingSpot(ctx context.Context, id int64) (*model.ParkingSpot, error)
	ListParkingSpots(ctx context.Context) ([]model.ParkingSpot, error)
	ListParkingSpotsByHost(ctx context.Context, hostID int64) ([]model.ParkingSpot, error)
	ListParkingSpotsInBox(ctx context.Context, box geo.Box) ([]model.ParkingSpot, error)
	CreateBooking(ctx context.Context, b model.Booking) (*model.Booking, error)
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	ListBookingsByGuest(ctx context.Context, guestID int64) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, from, to model.BookingStatus) error
	CompleteFinishedBookings(ctx context.Context, now time.Time) (int64, error)
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, u model.User) (*model.User, error) {
	u.Email = strings.TrimSpace(u.Email)
	u.Name = strings.TrimSpace(u.Name)

	switch {
	case !validation.IsValidEmail(u.Email):
		return nil, invalid("email %q", u.Email)
	case u.Name == "":
		return nil, invalid("empty name")
	case !validation.IsValidRole(string(u.Role)):
		return nil, invalid("role %q", u.Role)
	case strings.TrimSpace(u.FirebaseUID) == "":
		return nil, invalid("empty firebase uid")
	}

	return s.repo.CreateUser(ctx, u)
}

// AuthenticateByFirebaseUID находит пользователя по идентификатору внешнего провайдера.
// Проверка токена провайдера выполняется клиентом, здесь uid считается доверенным.
func (s *Service) AuthenticateByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, invalid("empty firebase uid")
	}
	return s.repo.GetUserByFirebaseUID(ctx, uid)
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUser(ctx, id)
}

// GetUserByFirebaseUID возвращает пользователя по идентификатору внешнего провайдера.
func (s *Service) GetUserByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	return s.repo.GetUserByFirebaseUID(ctx, uid)
}

// UpdateUserRole меняет роль пользователя. Менять роль может только сам пользователь.
func (s *Service) UpdateUserRole(ctx context.Context, callerID, userID int64, role string) (*model.User, error) {
	if !validation.IsValidRole(role) {
		return nil, invalid("role %q", role)
	}
	if callerID != userID {
		return nil, ErrForbidden
	}
	return s.repo.UpdateUserRole(ctx, userID, model.Role(role))
}

// CreateParkingSpot публикует объявление от имени хоста.
func (s *Service) CreateParkingSpot(ctx context.Context, hostID int64, spot model.ParkingSpot) (*model.ParkingSpot, error) {
	if msg, ok := validation.ValidateParkingSpot(spot); !ok {
		return nil, invalid("%s", msg)
	}
	spot.HostID = &hostID
	return s.repo.CreateParkingSpot(ctx, spot)
}

// GetParkingSpot возвращает объявление по идентификатору.
func (s *Service) GetParkingSpot(ctx context.Context, id int64) (*model.ParkingSpot, error) {
	return s.repo.GetParkingSpot(ctx, id)
}

// ListParkingSpots возвращает все объявления.
func (s *Service) ListParkingSpots(ctx context.Context) ([]model.ParkingSpot, error) {
	return s.repo.ListParkingSpots(ctx)
}

// ListHostParkingSpots возвращает объявления хоста.
func (s *Service) ListHostParkingSpots(ctx context.Context, hostID int64) ([]model.ParkingSpot, error) {
	return s.repo.ListParkingSpotsByHost(ctx, hostID)
}

// SearchParkingSpots возвращает объявления в пределах radiusMeters от точки, ближайшие первыми.
func (s *Service) SearchParkingSpots(ctx context.Context, lat, lng, radiusMeters float64) ([]model.ParkingSpot, error) {
	if !geo.ValidCoordinates(lat, lng) {
		return nil, invalid("coordinates %v, %v", lat, lng)
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) {
		radiusMeters = DefaultSearchRadius
	}

	candidates, err := s.repo.ListParkingSpotsInBox(ctx, geo.BoundingBox(lat, lng, radiusMeters))
	if err != nil {
		return nil, err
	}

	type ranked struct {
		spot     model.ParkingSpot
		distance float64
	}
	hits := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		d := geo.DistanceMeters(lat, lng, c.Latitude, c.Longitude)
		if d <= radiusMeters {
			hits = append(hits, ranked{spot: c, distance: d})
		}
	}
	slices.SortStableFunc(hits, func(a, b ranked) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		default:
			return 0
		}
	})

	res := make([]model.ParkingSpot, 0, len(hits))
	for _, h := range hits {
		res = append(res, h.spot)
	}
	return res, nil
}

// BookingPrice возвращает стоимость бронирования, округлённую до центов.
func BookingPrice(pricePerHour float64, start, end time.Time) float64 {
	hours := end.Sub(start).Hours()
	return math.Round(pricePerHour*hours*100) / 100
}

// CreateBooking бронирует место для гостя на интервал [start, end).
func (s *Service) CreateBooking(ctx context.Context, guestID, spotID int64, start, end time.Time) (*model.Booking, error) {
	if !end.After(start) {
		return nil, invalid("end time must be after start time")
	}
	if end.Sub(start) > maxBookingDuration {
		return nil, invalid("booking longer than %s", maxBookingDuration)
	}
	if end.Before(s.now()) {
		return nil, invalid("booking in the past")
	}

	spot, err := s.repo.GetParkingSpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	if !spot.IsAvailable {
		return nil, ErrSpotUnavailable
	}

	return s.repo.CreateBooking(ctx, model.Booking{
		ParkingSpotID: spotID,
		GuestID:       guestID,
		StartTime:     start,
		EndTime:       end,
		TotalPrice:    BookingPrice(spot.PricePerHour, start, end),
		Status:        model.BookingStatusConfirmed,
	})
}

// GetBooking возвращает бронирование, если его запрашивает сам гость.
func (s *Service) GetBooking(ctx context.Context, callerID, id int64) (*model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.GuestID != callerID {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListUserBookings возвращает историю бронирований пользователя.
func (s *Service) ListUserBookings(ctx context.Context, callerID, userID int64) ([]model.Booking, error) {
	if callerID != userID {
		return nil, ErrForbidden
	}
	return s.repo.ListBookingsByGuest(ctx, userID)
}

// CancelBooking отменяет подтверждённое бронирование гостя.
func (s *Service) CancelBooking(ctx context.Context, callerID, id int64) (*model.Booking, error) {
	b, err := s.GetBooking(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BookingStatusConfirmed {
		return nil, invalid("booking is %s", b.Status)
	}

	if err := s.repo.UpdateBookingStatus(ctx, id, model.BookingStatusConfirmed, model.BookingStatusCancelled); err != nil {
		return nil, err
	}

	b.Status = model.BookingStatusCancelled
	return b, nil
}

// StartBookingUpdates запускает фоновый процесс завершения закончившихся бронирований.
func (s *Service) StartBookingUpdates(ctx context.Context, interval time.Duration) {
	if s.repo == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.completeFinishedBookings(ctx)
			}
		}
	}()
}

func (s *Service) completeFinishedBookings(ctx context.Context) {
	n, err := s.repo.CompleteFinishedBookings(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("complete finished bookings error", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.logger.Info("bookings completed", zap.Int64("count", n))
	}
}
