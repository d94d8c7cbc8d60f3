package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for roster persistence operations.
type Repository interface {
	GetRoom(ctx context.Context, name string) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	CreateRoom(ctx context.Context, room *Room) error
	DeleteRoom(ctx context.Context, dn string) error

	GetDevice(ctx context.Context, name string) (*Device, error)
	GetDevices(ctx context.Context, roomDN string) ([]Device, error)
	CreateDevice(ctx context.Context, device *Device) error
	DeleteDevice(ctx context.Context, name string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed directory repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetRoom returns the room with the given name.
func (r *SQLiteRepository) GetRoom(ctx context.Context, name string) (*Room, error) {
	const query = `SELECT dn, name, created_at, updated_at FROM rooms WHERE name = ?`

	var room Room
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&room.DN, &room.Name, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying room %s: %w", name, err)
	}
	return &room, nil
}

// ListRooms returns all rooms ordered by name.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	const query = `SELECT dn, name, created_at, updated_at FROM rooms ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.DN, &room.Name, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CreateRoom inserts a new room.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	const query = `INSERT INTO rooms (dn, name) VALUES (?, ?)`

	if _, err := r.db.ExecContext(ctx, query, room.DN, room.Name); err != nil {
		if isUniqueViolation(err) {
			return ErrRoomExists
		}
		return fmt.Errorf("inserting room %s: %w", room.DN, err)
	}
	return nil
}

// DeleteRoom removes a room and, via foreign keys, its devices.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, dn string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE dn = ?`, dn)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", dn, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// GetDevice returns the device with the given name, addresses included.
func (r *SQLiteRepository) GetDevice(ctx context.Context, name string) (*Device, error) {
	const query = `SELECT name, room_dn, mac_address, is_teacher, created_at, updated_at
		FROM devices WHERE name = ?`

	var device Device
	var mac sql.NullString
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&device.Name, &device.RoomDN, &mac, &device.IsTeacher,
		&device.CreatedAt, &device.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device %s: %w", name, err)
	}
	device.MACAddress = mac.String

	device.Addresses, err = r.deviceAddresses(ctx, device.Name)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// GetDevices returns all devices of a room, ordered by name, each with its
// addresses in preference order.
func (r *SQLiteRepository) GetDevices(ctx context.Context, roomDN string) ([]Device, error) {
	const query = `SELECT name, room_dn, mac_address, is_teacher, created_at, updated_at
		FROM devices WHERE room_dn = ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, roomDN)
	if err != nil {
		return nil, fmt.Errorf("listing devices for %s: %w", roomDN, err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var device Device
		var mac sql.NullString
		if err := rows.Scan(&device.Name, &device.RoomDN, &mac, &device.IsTeacher,
			&device.CreatedAt, &device.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		device.MACAddress = mac.String
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range devices {
		devices[i].Addresses, err = r.deviceAddresses(ctx, devices[i].Name)
		if err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// deviceAddresses loads a device's addresses in preference order.
func (r *SQLiteRepository) deviceAddresses(ctx context.Context, name string) ([]string, error) {
	const query = `SELECT address FROM device_addresses
		WHERE device_name = ? ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("listing addresses for %s: %w", name, err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scanning address: %w", err)
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

// CreateDevice inserts a device and its addresses in one transaction.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, device *Device) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	const insertDevice = `INSERT INTO devices (name, room_dn, mac_address, is_teacher)
		VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertDevice,
		device.Name, device.RoomDN, nullStr(device.MACAddress), device.IsTeacher); err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device %s: %w", device.Name, err)
	}

	const insertAddress = `INSERT INTO device_addresses (device_name, address, position)
		VALUES (?, ?, ?)`
	for i, address := range device.Addresses {
		if _, err := tx.ExecContext(ctx, insertAddress, device.Name, address, i); err != nil {
			return fmt.Errorf("inserting address %s for %s: %w", address, device.Name, err)
		}
	}

	return tx.Commit()
}

// DeleteDevice removes a device and its addresses.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", name, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// nullStr converts an empty string to a NULL column value.
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
