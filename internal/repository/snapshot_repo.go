package repository

import (
	"context"
	"database/sql"
	"time"

	"butler_bridge/internal/models"
)

type SnapshotSQLite struct {
	db *sql.DB
}

func NewSnapshotSQLite(db *sql.DB) *SnapshotSQLite {
	return &SnapshotSQLite{db: db}
}

var _ SnapshotRepo = (*SnapshotSQLite)(nil)

const (
	upsertDeviceSQL = `
		INSERT INTO device_snapshot
			(id, unique_id, name, type, room, home, temp_current, temp_target,
			 temp_min, temp_max, power, mode, function, conn_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unique_id=excluded.unique_id,
			name=excluded.name,
			type=excluded.type,
			room=excluded.room,
			home=excluded.home,
			temp_current=excluded.temp_current,
			temp_target=excluded.temp_target,
			temp_min=excluded.temp_min,
			temp_max=excluded.temp_max,
			power=excluded.power,
			mode=excluded.mode,
			function=excluded.function,
			conn_status=excluded.conn_status,
			updated_at=excluded.updated_at
	`

	deleteDeviceSQL = `DELETE FROM device_snapshot WHERE id=?`

	selectDevicesSQL = `
		SELECT id, unique_id, name, type, room, home, temp_current, temp_target,
		       temp_min, temp_max, power, mode, function, conn_status, updated_at
		FROM device_snapshot ORDER BY id
	`
)

// Upsert writes one device row. Pending overrides are in-flight state and are
// deliberately not persisted.
func (r *SnapshotSQLite) Upsert(ctx context.Context, d models.DeviceState) error {
	tsUTC := d.LastUpdated
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	_, err := r.db.ExecContext(ctx, upsertDeviceSQL,
		d.ID,
		d.UniqueID,
		d.Name,
		d.Type,
		d.Room,
		d.Home,
		d.CurrentTemperature,
		d.TargetTemperature,
		d.MinTemperature,
		d.MaxTemperature,
		d.PowerState,
		d.Mode,
		d.Function,
		d.ConnectionStatus,
		tsUTC,
	)
	return err
}

// Delete removes a device that has disappeared from the gateway.
func (r *SnapshotSQLite) Delete(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx, deleteDeviceSQL, deviceID)
	return err
}

// LoadAll returns every persisted device row.
func (r *SnapshotSQLite) LoadAll(ctx context.Context) ([]models.DeviceState, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DeviceState, 0, 16)
	for rows.Next() {
		var d models.DeviceState
		if err := rows.Scan(
			&d.ID,
			&d.UniqueID,
			&d.Name,
			&d.Type,
			&d.Room,
			&d.Home,
			&d.CurrentTemperature,
			&d.TargetTemperature,
			&d.MinTemperature,
			&d.MaxTemperature,
			&d.PowerState,
			&d.Mode,
			&d.Function,
			&d.ConnectionStatus,
			&d.LastUpdated,
		); err != nil {
			return nil, err
		}
		d.LastUpdated = d.LastUpdated.UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
