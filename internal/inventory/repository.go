package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines persistence operations for the inventory catalog.
type Repository interface {
	// Zone CRUD
	CreateZone(ctx context.Context, zone *Zone) error
	GetZone(ctx context.Context, id string) (*Zone, error)
	ListZones(ctx context.Context) ([]Zone, error)
	UpdateZone(ctx context.Context, zone *Zone) error
	DeleteZone(ctx context.Context, id string) error

	// Device CRUD
	CreateDevice(ctx context.Context, device *Device) error
	GetDevice(ctx context.Context, id string) (*Device, error)
	ListDevices(ctx context.Context) ([]Device, error)
	ListDevicesByZone(ctx context.Context, zoneID string) ([]Device, error)
	ListDevicesByModel(ctx context.Context, model string) ([]Device, error)
	UpdateDevice(ctx context.Context, device *Device) error
	DeleteDevice(ctx context.Context, id string) error

	// Entities
	CreateEntity(ctx context.Context, entity *Entity) error
	GetEntity(ctx context.Context, id string) (*Entity, error)
	ListEntitiesByDevice(ctx context.Context, deviceID string) ([]Entity, error)
	DeleteEntity(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed inventory repository.
//
// Parameters:
//   - db: Open SQLite connection used for catalog queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
//
// Security: Uses parameterised SQL queries to prevent injection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateZone inserts a new zone.
//
// Returns ErrZoneExists if the ID is already taken, ErrInvalidZone if
// validation fails.
func (r *SQLiteRepository) CreateZone(ctx context.Context, zone *Zone) error {
	if zone == nil {
		return fmt.Errorf("zone is required")
	}
	if err := ValidateZone(zone); err != nil {
		return err
	}

	now := time.Now().UTC()
	zone.CreatedAt = now
	zone.UpdatedAt = now

	query := `INSERT INTO zones (id, name, sensor_entity_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		zone.ID,
		zone.Name,
		zone.SensorEntityID,
		formatTime(zone.CreatedAt),
		formatTime(zone.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrZoneExists
		}
		return fmt.Errorf("inserting zone: %w", err)
	}

	return nil
}

// GetZone retrieves a zone by ID.
// Returns ErrZoneNotFound if the zone does not exist.
func (r *SQLiteRepository) GetZone(ctx context.Context, id string) (*Zone, error) {
	query := `SELECT id, name, sensor_entity_id, created_at, updated_at
		FROM zones WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	zone, err := scanZone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, err
	}

	return zone, nil
}

// ListZones returns all zones ordered by name.
func (r *SQLiteRepository) ListZones(ctx context.Context) ([]Zone, error) {
	query := `SELECT id, name, sensor_entity_id, created_at, updated_at
		FROM zones ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zones: %w", err)
	}
	return zones, nil
}

// UpdateZone modifies an existing zone.
// Returns ErrZoneNotFound if the zone does not exist.
func (r *SQLiteRepository) UpdateZone(ctx context.Context, zone *Zone) error {
	if zone == nil {
		return fmt.Errorf("zone is required")
	}
	if err := ValidateZone(zone); err != nil {
		return err
	}

	zone.UpdatedAt = time.Now().UTC()

	query := `UPDATE zones SET name = ?, sensor_entity_id = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		zone.Name,
		zone.SensorEntityID,
		formatTime(zone.UpdatedAt),
		zone.ID,
	)
	if err != nil {
		return fmt.Errorf("updating zone: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// DeleteZone removes a zone and, via foreign keys, its devices and entities.
// Returns ErrZoneNotFound if the zone does not exist.
func (r *SQLiteRepository) DeleteZone(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting zone: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// CreateDevice inserts a new device.
//
// Returns ErrDeviceExists if the ID is already taken, ErrInvalidDevice if
// validation fails.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, device *Device) error {
	if device == nil {
		return fmt.Errorf("device is required")
	}
	if err := ValidateDevice(device); err != nil {
		return err
	}

	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	query := `INSERT INTO devices (id, zone_id, name, model, manufacturer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		device.ID,
		device.ZoneID,
		device.Name,
		device.Model,
		device.Manufacturer,
		formatTime(device.CreatedAt),
		formatTime(device.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id string) (*Device, error) {
	query := `SELECT id, zone_id, name, model, manufacturer, created_at, updated_at
		FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	return device, nil
}

// ListDevices returns all devices ordered by name.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	query := `SELECT id, zone_id, name, model, manufacturer, created_at, updated_at
		FROM devices ORDER BY name`

	return r.queryDevices(ctx, query)
}

// ListDevicesByZone returns all devices in a zone ordered by name.
func (r *SQLiteRepository) ListDevicesByZone(ctx context.Context, zoneID string) ([]Device, error) {
	query := `SELECT id, zone_id, name, model, manufacturer, created_at, updated_at
		FROM devices WHERE zone_id = ? ORDER BY name`

	return r.queryDevices(ctx, query, zoneID)
}

// ListDevicesByModel returns all devices with the given model tag ordered by name.
func (r *SQLiteRepository) ListDevicesByModel(ctx context.Context, model string) ([]Device, error) {
	query := `SELECT id, zone_id, name, model, manufacturer, created_at, updated_at
		FROM devices WHERE model = ? ORDER BY name`

	return r.queryDevices(ctx, query, model)
}

// UpdateDevice modifies an existing device.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *SQLiteRepository) UpdateDevice(ctx context.Context, device *Device) error {
	if device == nil {
		return fmt.Errorf("device is required")
	}
	if err := ValidateDevice(device); err != nil {
		return err
	}

	device.UpdatedAt = time.Now().UTC()

	query := `UPDATE devices SET zone_id = ?, name = ?, model = ?, manufacturer = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		device.ZoneID,
		device.Name,
		device.Model,
		device.Manufacturer,
		formatTime(device.UpdatedAt),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// DeleteDevice removes a device and, via foreign keys, its entities.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// CreateEntity inserts a new entity.
//
// Returns ErrEntityExists if the ID is already taken, ErrInvalidEntity or
// ErrInvalidDomain if validation fails.
func (r *SQLiteRepository) CreateEntity(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("entity is required")
	}
	if err := ValidateEntity(entity); err != nil {
		return err
	}

	entity.CreatedAt = time.Now().UTC()

	query := `INSERT INTO entities (id, device_id, domain, name, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		entity.ID,
		entity.DeviceID,
		string(entity.Domain),
		entity.Name,
		formatTime(entity.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntityExists
		}
		return fmt.Errorf("inserting entity: %w", err)
	}

	return nil
}

// GetEntity retrieves an entity by ID.
// Returns ErrEntityNotFound if the entity does not exist.
func (r *SQLiteRepository) GetEntity(ctx context.Context, id string) (*Entity, error) {
	query := `SELECT id, device_id, domain, name, created_at
		FROM entities WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}

	return entity, nil
}

// ListEntitiesByDevice returns all entities for a device ordered by ID.
func (r *SQLiteRepository) ListEntitiesByDevice(ctx context.Context, deviceID string) ([]Entity, error) {
	query := `SELECT id, device_id, domain, name, created_at
		FROM entities WHERE device_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// DeleteEntity removes an entity.
// Returns ErrEntityNotFound if the entity does not exist.
func (r *SQLiteRepository) DeleteEntity(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// queryDevices runs a device query and scans all rows.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...interface{}) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanZone scans a zone row in column order.
func scanZone(row rowScanner) (*Zone, error) {
	var z Zone
	var sensor sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&z.ID, &z.Name, &sensor, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning zone: %w", err)
	}

	if sensor.Valid {
		z.SensorEntityID = &sensor.String
	}
	z.CreatedAt = parseTime(createdAt)
	z.UpdatedAt = parseTime(updatedAt)
	return &z, nil
}

// scanDevice scans a device row in column order.
func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var createdAt, updatedAt string

	if err := row.Scan(&d.ID, &d.ZoneID, &d.Name, &d.Model, &d.Manufacturer, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// scanEntity scans an entity row in column order.
func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var createdAt string

	if err := row.Scan(&e.ID, &e.DeviceID, (*string)(&e.Domain), &e.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

// formatTime serialises a timestamp for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime deserialises a stored timestamp.
// Format is controlled by us, so parse errors yield the zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // Format is controlled
	return t
}

// isUniqueConstraintError detects SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
