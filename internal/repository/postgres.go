// Package repository содержит реализацию доступа к данным маркетплейса в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/parkspot/internal/geo"
	"github.com/mmeshcher/parkspot/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже занятым email или firebase uid.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrSpotNotFound возвращается, если парковочное место не найдено.
	ErrSpotNotFound = errors.New("parking spot not found")
	// ErrBookingNotFound возвращается, если бронирование не найдено.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrBookingConflict возвращается, если место уже забронировано на пересекающийся интервал.
	ErrBookingConflict = errors.New("parking spot already booked for this period")
	// ErrBookingStateChanged возвращается, если статус бронирования изменился параллельно.
	ErrBookingStateChanged = errors.New("booking status changed concurrently")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при конфликтах сериализации, взаимных блокировках и обрывах соединения.
func withRetry(ctx context.Context, delays []time.Duration, fn func() error) error {
	var err error

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, name, role, firebase_uid, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.FirebaseUID, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, role, firebase_uid) VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		u.Email, u.Name, string(u.Role), u.FirebaseUID,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
}

// GetUserByFirebaseUID возвращает пользователя по идентификатору внешнего провайдера.
func (r *PostgresRepository) GetUserByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE firebase_uid = $1`, uid,
	))
}

// UpdateUserRole меняет роль пользователя.
func (r *PostgresRepository) UpdateUserRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET role = $2 WHERE id = $1 RETURNING `+userColumns,
		id, string(role),
	))
}

const spotColumns = `id, name, address, latitude, longitude, price_per_hour,
	COALESCE(description, ''), COALESCE(features, '{}'), COALESCE(image_urls, '{}'),
	is_available, host_id, rating, COALESCE(availability_days, '{}'),
	COALESCE(availability_start_time, ''), COALESCE(availability_end_time, ''),
	is_accessible, created_at`

func scanParkingSpot(row rowScanner) (*model.ParkingSpot, error) {
	var s model.ParkingSpot
	err := row.Scan(
		&s.ID, &s.Name, &s.Address, &s.Latitude, &s.Longitude, &s.PricePerHour,
		&s.Description, &s.Features, &s.ImageURLs,
		&s.IsAvailable, &s.HostID, &s.Rating, &s.AvailabilityDays,
		&s.AvailabilityStartTime, &s.AvailabilityEndTime,
		&s.IsAccessible, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpotNotFound
		}
		return nil, fmt.Errorf("scan parking spot: %w", err)
	}
	return &s, nil
}

func collectParkingSpots(rows pgx.Rows) ([]model.ParkingSpot, error) {
	defer rows.Close()

	var res []model.ParkingSpot
	for rows.Next() {
		s, err := scanParkingSpot(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// CreateParkingSpot сохраняет новое объявление.
func (r *PostgresRepository) CreateParkingSpot(ctx context.Context, s model.ParkingSpot) (*model.ParkingSpot, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO parking_spots (
			name, address, latitude, longitude, price_per_hour, description, features, image_urls,
			is_available, host_id, rating, availability_days, availability_start_time,
			availability_end_time, is_accessible
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+spotColumns,
		s.Name, s.Address, s.Latitude, s.Longitude, s.PricePerHour, nullIfEmpty(s.Description),
		s.Features, s.ImageURLs, s.IsAvailable, s.HostID, s.Rating, s.AvailabilityDays,
		nullIfEmpty(s.AvailabilityStartTime), nullIfEmpty(s.AvailabilityEndTime), s.IsAccessible,
	)

	created, err := scanParkingSpot(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create parking spot: %w", err)
	}
	return created, nil
}

// GetParkingSpot возвращает объявление по идентификатору.
func (r *PostgresRepository) GetParkingSpot(ctx context.Context, id int64) (*model.ParkingSpot, error) {
	return scanParkingSpot(r.pool.QueryRow(ctx,
		`SELECT `+spotColumns+` FROM parking_spots WHERE id = $1`, id,
	))
}

// ListParkingSpots возвращает все объявления.
func (r *PostgresRepository) ListParkingSpots(ctx context.Context) ([]model.ParkingSpot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+spotColumns+` FROM parking_spots ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select parking spots: %w", err)
	}
	return collectParkingSpots(rows)
}

// ListParkingSpotsByHost возвращает объявления хоста.
func (r *PostgresRepository) ListParkingSpotsByHost(ctx context.Context, hostID int64) ([]model.ParkingSpot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+spotColumns+` FROM parking_spots WHERE host_id = $1 ORDER BY id`,
		hostID,
	)
	if err != nil {
		return nil, fmt.Errorf("select host parking spots: %w", err)
	}
	return collectParkingSpots(rows)
}

// ListParkingSpotsInBox возвращает объявления, попадающие в прямоугольник box.
func (r *PostgresRepository) ListParkingSpotsInBox(ctx context.Context, box geo.Box) ([]model.ParkingSpot, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if box.MinLng < -180 || box.MaxLng > 180 {
		// прямоугольник пересекает антимеридиан, фильтруем только по широте
		rows, err = r.pool.Query(ctx,
			`SELECT `+spotColumns+` FROM parking_spots
			 WHERE latitude BETWEEN $1 AND $2 ORDER BY id`,
			box.MinLat, box.MaxLat,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+spotColumns+` FROM parking_spots
			 WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4 ORDER BY id`,
			box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("select parking spots in box: %w", err)
	}
	return collectParkingSpots(rows)
}

const bookingColumns = `id, parking_spot_id, guest_id, start_time, end_time, total_price, status, created_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b      model.Booking
		status string
	)
	err := row.Scan(&b.ID, &b.ParkingSpotID, &b.GuestID, &b.StartTime, &b.EndTime, &b.TotalPrice, &status, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}

// CreateBooking сохраняет бронирование, если место свободно на весь интервал.
// Проверка пересечений и вставка выполняются в сериализуемой транзакции.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b model.Booking) (*model.Booking, error) {
	var created *model.Booking

	err := withRetry(ctx, r.delays, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var overlapping bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE parking_spot_id = $1 AND status = $2
				  AND start_time < $4 AND end_time > $3
			)`,
			b.ParkingSpotID, string(model.BookingStatusConfirmed), b.StartTime, b.EndTime,
		).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("check overlapping bookings: %w", err)
		}
		if overlapping {
			return ErrBookingConflict
		}

		created, err = scanBooking(tx.QueryRow(ctx,
			`INSERT INTO bookings (parking_spot_id, guest_id, start_time, end_time, total_price, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+bookingColumns,
			b.ParkingSpotID, b.GuestID, b.StartTime, b.EndTime, b.TotalPrice, string(b.Status),
		))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return ErrSpotNotFound
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetBooking возвращает бронирование по идентификатору.
func (r *PostgresRepository) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id,
	))
}

// ListBookingsByGuest возвращает бронирования гостя, начиная с последних.
func (r *PostgresRepository) ListBookingsByGuest(ctx context.Context, guestID int64) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE guest_id = $1 ORDER BY start_time DESC`,
		guestID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var res []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateBookingStatus переводит бронирование из статуса from в статус to.
func (r *PostgresRepository) UpdateBookingStatus(ctx context.Context, id int64, from, to model.BookingStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingStateChanged
	}
	return nil
}

// CompleteFinishedBookings отмечает завершёнными подтверждённые бронирования, закончившиеся до now.
func (r *PostgresRepository) CompleteFinishedBookings(ctx context.Context, now time.Time) (int64, error) {
	var affected int64

	err := withRetry(ctx, r.delays, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE bookings SET status = $1 WHERE status = $2 AND end_time <= $3`,
			string(model.BookingStatusCompleted), string(model.BookingStatusConfirmed), now,
		)
		if err != nil {
			return fmt.Errorf("complete bookings: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	})

	return affected, err
}
