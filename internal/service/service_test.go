package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmeshcher/parkspot/internal/geo"
	"github.com/mmeshcher/parkspot/internal/model"
	"github.com/mmeshcher/parkspot/internal/repository"
)

type stubRepo struct {
	createUserErr error
	createdUser   model.User

	getUser    *model.User
	getUserErr error

	spot    *model.ParkingSpot
	spotErr error
	created model.ParkingSpot

	boxSpots []model.ParkingSpot
	box      geo.Box

	booking        *model.Booking
	bookingErr     error
	createdBooking model.Booking
	bookings       []model.Booking

	statusFrom, statusTo model.BookingStatus
	statusErr            error

	completeCalls atomic.Int32
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	if s.createUserErr != nil {
		return nil, s.createUserErr
	}
	s.createdUser = u
	u.ID = 1
	return &u, nil
}

func (s *stubRepo) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) GetUserByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) UpdateUserRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	return &model.User{ID: id, Role: role}, nil
}

func (s *stubRepo) CreateParkingSpot(ctx context.Context, spot model.ParkingSpot) (*model.ParkingSpot, error) {
	s.created = spot
	spot.ID = 10
	return &spot, nil
}

func (s *stubRepo) GetParkingSpot(ctx context.Context, id int64) (*model.ParkingSpot, error) {
	return s.spot, s.spotErr
}

func (s *stubRepo) ListParkingSpots(ctx context.Context) ([]model.ParkingSpot, error) {
	return s.boxSpots, nil
}

func (s *stubRepo) ListParkingSpotsByHost(ctx context.Context, hostID int64) ([]model.ParkingSpot, error) {
	return s.boxSpots, nil
}

func (s *stubRepo) ListParkingSpotsInBox(ctx context.Context, box geo.Box) ([]model.ParkingSpot, error) {
	s.box = box
	return s.boxSpots, nil
}

func (s *stubRepo) CreateBooking(ctx context.Context, b model.Booking) (*model.Booking, error) {
	if s.bookingErr != nil {
		return nil, s.bookingErr
	}
	s.createdBooking = b
	b.ID = 100
	return &b, nil
}

func (s *stubRepo) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	if s.bookingErr != nil {
		return nil, s.bookingErr
	}
	b := *s.booking
	return &b, nil
}

func (s *stubRepo) ListBookingsByGuest(ctx context.Context, guestID int64) ([]model.Booking, error) {
	return s.bookings, nil
}

func (s *stubRepo) UpdateBookingStatus(ctx context.Context, id int64, from, to model.BookingStatus) error {
	s.statusFrom, s.statusTo = from, to
	return s.statusErr
}

func (s *stubRepo) CompleteFinishedBookings(ctx context.Context, now time.Time) (int64, error) {
	s.completeCalls.Add(1)
	return 0, nil
}

func validSpot() model.ParkingSpot {
	return model.ParkingSpot{
		Name:         "Garage Duomo",
		Address:      "Via Emilia 1, Modena",
		Latitude:     44.6471,
		Longitude:    10.9252,
		PricePerHour: 2.5,
		IsAvailable:  true,
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{createUserErr: repository.ErrUserExists}
	svc := NewService(repo, nil)

	_, err := svc.RegisterUser(context.Background(), model.User{
		Email:       "anna@example.com",
		Name:        "Anna",
		Role:        model.RoleGuest,
		FirebaseUID: "uid-1",
	})
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterUser_Validation(t *testing.T) {
	tests := []struct {
		name string
		user model.User
	}{
		{name: "bad email", user: model.User{Email: "anna", Name: "Anna", Role: model.RoleGuest, FirebaseUID: "u"}},
		{name: "empty name", user: model.User{Email: "anna@example.com", Name: " ", Role: model.RoleGuest, FirebaseUID: "u"}},
		{name: "unknown role", user: model.User{Email: "anna@example.com", Name: "Anna", Role: "admin", FirebaseUID: "u"}},
		{name: "no uid", user: model.User{Email: "anna@example.com", Name: "Anna", Role: model.RoleHost}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&stubRepo{}, nil)
			_, err := svc.RegisterUser(context.Background(), tt.user)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRegisterUser_TrimsFields(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	u, err := svc.RegisterUser(context.Background(), model.User{
		Email:       " anna@example.com ",
		Name:        " Anna ",
		Role:        model.RoleHost,
		FirebaseUID: "uid-1",
	})
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}
	if u.ID != 1 || repo.createdUser.Email != "anna@example.com" || repo.createdUser.Name != "Anna" {
		t.Fatalf("unexpected user stored: %+v", repo.createdUser)
	}
}

func TestAuthenticateByFirebaseUID_Empty(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)

	_, err := svc.AuthenticateByFirebaseUID(context.Background(), "  ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthenticateByFirebaseUID_NotFound(t *testing.T) {
	svc := NewService(&stubRepo{getUserErr: repository.ErrUserNotFound}, nil)

	_, err := svc.AuthenticateByFirebaseUID(context.Background(), "uid-1")
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateUserRole_OnlyOwner(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)

	if _, err := svc.UpdateUserRole(context.Background(), 1, 2, "host"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.UpdateUserRole(context.Background(), 1, 1, "owner"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	u, err := svc.UpdateUserRole(context.Background(), 1, 1, "host")
	if err != nil {
		t.Fatalf("UpdateUserRole error: %v", err)
	}
	if u.Role != model.RoleHost {
		t.Fatalf("Role = %q, want host", u.Role)
	}
}

func TestCreateParkingSpot_SetsHost(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	spot := validSpot()
	other := int64(99)
	spot.HostID = &other

	res, err := svc.CreateParkingSpot(context.Background(), 7, spot)
	if err != nil {
		t.Fatalf("CreateParkingSpot error: %v", err)
	}
	if res.HostID == nil || *res.HostID != 7 {
		t.Fatalf("HostID = %v, want 7", res.HostID)
	}
}

func TestCreateParkingSpot_Invalid(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)

	spot := validSpot()
	spot.AvailabilityStartTime = "25:00"

	_, err := svc.CreateParkingSpot(context.Background(), 7, spot)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchParkingSpots_FiltersAndSorts(t *testing.T) {
	near := validSpot()
	near.ID = 1
	near.Latitude, near.Longitude = 44.6472, 10.9253

	nearest := validSpot()
	nearest.ID = 2

	far := validSpot()
	far.ID = 3
	far.Latitude, far.Longitude = 44.4949, 11.3426

	repo := &stubRepo{boxSpots: []model.ParkingSpot{far, near, nearest}}
	svc := NewService(repo, nil)

	res, err := svc.SearchParkingSpots(context.Background(), 44.6471, 10.9252, 1000)
	if err != nil {
		t.Fatalf("SearchParkingSpots error: %v", err)
	}
	if len(res) != 2 || res[0].ID != 2 || res[1].ID != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSearchParkingSpots_DefaultRadius(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	if _, err := svc.SearchParkingSpots(context.Background(), 44.6471, 10.9252, 0); err != nil {
		t.Fatalf("SearchParkingSpots error: %v", err)
	}

	want := geo.BoundingBox(44.6471, 10.9252, DefaultSearchRadius)
	if repo.box != want {
		t.Fatalf("box = %+v, want %+v", repo.box, want)
	}
}

func TestSearchParkingSpots_InvalidCoordinates(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)

	_, err := svc.SearchParkingSpots(context.Background(), 95, 10, 100)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBookingPrice(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		price float64
		end   time.Time
		want  float64
	}{
		{name: "two hours", price: 2.5, end: start.Add(2 * time.Hour), want: 5},
		{name: "ninety minutes", price: 3, end: start.Add(90 * time.Minute), want: 4.5},
		{name: "twenty minutes rounded", price: 1, end: start.Add(20 * time.Minute), want: 0.33},
		{name: "free", price: 0, end: start.Add(time.Hour), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BookingPrice(tt.price, start, tt.end); got != tt.want {
				t.Fatalf("BookingPrice = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateBooking(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)
	spot := validSpot()
	spot.ID = 5

	t.Run("ok", func(t *testing.T) {
		repo := &stubRepo{spot: &spot}
		svc := NewService(repo, nil)
		svc.now = func() time.Time { return now }

		b, err := svc.CreateBooking(context.Background(), 3, 5, start, start.Add(2*time.Hour))
		if err != nil {
			t.Fatalf("CreateBooking error: %v", err)
		}
		if b.ID != 100 || b.GuestID != 3 || b.ParkingSpotID != 5 {
			t.Fatalf("unexpected booking: %+v", b)
		}
		if b.TotalPrice != 5 || b.Status != model.BookingStatusConfirmed {
			t.Fatalf("unexpected price or status: %+v", b)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		svc := NewService(&stubRepo{spot: &spot}, nil)
		svc.now = func() time.Time { return now }

		_, err := svc.CreateBooking(context.Background(), 3, 5, start, start)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("in the past", func(t *testing.T) {
		svc := NewService(&stubRepo{spot: &spot}, nil)
		svc.now = func() time.Time { return now }

		_, err := svc.CreateBooking(context.Background(), 3, 5, now.Add(-3*time.Hour), now.Add(-time.Hour))
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("spot unavailable", func(t *testing.T) {
		hidden := spot
		hidden.IsAvailable = false
		svc := NewService(&stubRepo{spot: &hidden}, nil)
		svc.now = func() time.Time { return now }

		_, err := svc.CreateBooking(context.Background(), 3, 5, start, start.Add(time.Hour))
		if !errors.Is(err, ErrSpotUnavailable) {
			t.Fatalf("expected ErrSpotUnavailable, got %v", err)
		}
	})

	t.Run("spot not found", func(t *testing.T) {
		svc := NewService(&stubRepo{spotErr: repository.ErrSpotNotFound}, nil)
		svc.now = func() time.Time { return now }

		_, err := svc.CreateBooking(context.Background(), 3, 5, start, start.Add(time.Hour))
		if !errors.Is(err, repository.ErrSpotNotFound) {
			t.Fatalf("expected ErrSpotNotFound, got %v", err)
		}
	})

	t.Run("conflict", func(t *testing.T) {
		svc := NewService(&stubRepo{spot: &spot, bookingErr: repository.ErrBookingConflict}, nil)
		svc.now = func() time.Time { return now }

		_, err := svc.CreateBooking(context.Background(), 3, 5, start, start.Add(time.Hour))
		if !errors.Is(err, repository.ErrBookingConflict) {
			t.Fatalf("expected ErrBookingConflict, got %v", err)
		}
	})
}

func TestGetBooking_OnlyGuest(t *testing.T) {
	repo := &stubRepo{booking: &model.Booking{ID: 1, GuestID: 3, Status: model.BookingStatusConfirmed}}
	svc := NewService(repo, nil)

	if _, err := svc.GetBooking(context.Background(), 4, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetBooking(context.Background(), 3, 1); err != nil {
		t.Fatalf("GetBooking error: %v", err)
	}
}

func TestListUserBookings_OnlyOwner(t *testing.T) {
	repo := &stubRepo{bookings: []model.Booking{{ID: 1, GuestID: 3}}}
	svc := NewService(repo, nil)

	if _, err := svc.ListUserBookings(context.Background(), 4, 3); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	res, err := svc.ListUserBookings(context.Background(), 3, 3)
	if err != nil {
		t.Fatalf("ListUserBookings error: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("unexpected bookings: %+v", res)
	}
}

func TestCancelBooking(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		repo := &stubRepo{booking: &model.Booking{ID: 1, GuestID: 3, Status: model.BookingStatusConfirmed}}
		svc := NewService(repo, nil)

		b, err := svc.CancelBooking(context.Background(), 3, 1)
		if err != nil {
			t.Fatalf("CancelBooking error: %v", err)
		}
		if b.Status != model.BookingStatusCancelled {
			t.Fatalf("Status = %q, want cancelled", b.Status)
		}
		if repo.statusFrom != model.BookingStatusConfirmed || repo.statusTo != model.BookingStatusCancelled {
			t.Fatalf("unexpected transition %q -> %q", repo.statusFrom, repo.statusTo)
		}
	})

	t.Run("already completed", func(t *testing.T) {
		repo := &stubRepo{booking: &model.Booking{ID: 1, GuestID: 3, Status: model.BookingStatusCompleted}}
		svc := NewService(repo, nil)

		if _, err := svc.CancelBooking(context.Background(), 3, 1); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("state changed concurrently", func(t *testing.T) {
		repo := &stubRepo{
			booking:   &model.Booking{ID: 1, GuestID: 3, Status: model.BookingStatusConfirmed},
			statusErr: repository.ErrBookingStateChanged,
		}
		svc := NewService(repo, nil)

		if _, err := svc.CancelBooking(context.Background(), 3, 1); !errors.Is(err, repository.ErrBookingStateChanged) {
			t.Fatalf("expected ErrBookingStateChanged, got %v", err)
		}
	})

	t.Run("other guest", func(t *testing.T) {
		repo := &stubRepo{booking: &model.Booking{ID: 1, GuestID: 3, Status: model.BookingStatusConfirmed}}
		svc := NewService(repo, nil)

		if _, err := svc.CancelBooking(context.Background(), 4, 1); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestStartBookingUpdates_Ticks(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.StartBookingUpdates(ctx, 5*time.Millisecond)

	deadline := time.After(time.Second)
	for repo.completeCalls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("booking updates did not run, calls = %d", repo.completeCalls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartBookingUpdates_NoRepo(t *testing.T) {
	svc := &Service{}

	done := make(chan struct{})
	go func() {
		svc.StartBookingUpdates(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("StartBookingUpdates did not return without repository")
	}
}
