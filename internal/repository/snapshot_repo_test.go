package repository_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"butler_bridge/internal/models"
	"butler_bridge/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

func deviceFixture() models.DeviceState {
	return models.DeviceState{
		ID:                 "dev-1",
		UniqueID:           "uniq-1",
		Name:               "Soggiorno",
		Type:               "FCL485",
		Room:               "Soggiorno",
		Home:               "Casa",
		CurrentTemperature: 20.5,
		TargetTemperature:  21.0,
		MinTemperature:     5,
		MaxTemperature:     40,
		PowerState:         true,
		Mode:               models.ModeHeat,
		Function:           2,
		ConnectionStatus:   models.ConnOK,
	}
}

func TestSnapshotSQLite_Upsert_SetsUTCNowWhenTimeZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSnapshotSQLite(db)
	d := deviceFixture() // LastUpdated is zero

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO device_snapshot")).
		WithArgs(
			d.ID, d.UniqueID, d.Name, d.Type, d.Room, d.Home,
			d.CurrentTemperature, d.TargetTemperature,
			d.MinTemperature, d.MaxTemperature,
			d.PowerState, d.Mode, d.Function, d.ConnectionStatus,
			isUTCRecent,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Upsert(context.Background(), d); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSnapshotSQLite_Upsert_ConvertsGivenTimeToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSnapshotSQLite(db)

	locRome, _ := time.LoadLocation("Europe/Rome")
	original := time.Date(2025, 3, 10, 9, 30, 0, 0, locRome)
	expectedUTC := original.UTC()

	d := deviceFixture()
	d.LastUpdated = original

	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(expectedUTC) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO device_snapshot")).
		WithArgs(
			d.ID, d.UniqueID, d.Name, d.Type, d.Room, d.Home,
			d.CurrentTemperature, d.TargetTemperature,
			d.MinTemperature, d.MaxTemperature,
			d.PowerState, d.Mode, d.Function, d.ConnectionStatus,
			isExactUTC,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Upsert(context.Background(), d); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSnapshotSQLite_Upsert_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSnapshotSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO device_snapshot")).
		WillReturnError(errors.New("db down"))

	if err := repo.Upsert(context.Background(), deviceFixture()); err == nil {
		t.Fatalf("Upsert() expected error, got nil")
	}
}

func TestSnapshotSQLite_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSnapshotSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM device_snapshot WHERE id=?")).
		WithArgs("dev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "dev-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSnapshotSQLite_LoadAll_HappyPath_UTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSnapshotSQLite(db)

	cols := []string{"id", "unique_id", "name", "type", "room", "home",
		"temp_current", "temp_target", "temp_min", "temp_max",
		"power", "mode", "function", "conn_status", "updated_at"}

	locNY, _ := time.LoadLocation("America/New_York")
	nonUTC := time.Date(2025, 2, 1, 8, 30, 0, 0, locNY)

	rows := sqlmock.NewRows(cols).
		AddRow("dev-1", "uniq-1", "Soggiorno", "FCL485", "Soggiorno", "Casa",
			20.5, 21.0, 5.0, 40.0, true, "HEAT", 2, "OK", nonUTC).
		AddRow("dev-2", "uniq-2", "Studio", "FCL485", "Studio", "Casa",
			18.0, 19.0, 5.0, 40.0, false, "COOL", 0, "ERROR", nonUTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, unique_id, name, type, room, home")).
		WillReturnRows(rows)

	got, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadAll() returned %d rows, want 2", len(got))
	}
	if got[0].ID != "dev-1" || got[0].TargetTemperature != 21.0 || !got[0].PowerState {
		t.Fatalf("LoadAll() unexpected first row: %+v", got[0])
	}
	if got[1].Mode != models.ModeCool || got[1].ConnectionStatus != models.ConnError {
		t.Fatalf("LoadAll() unexpected second row: %+v", got[1])
	}
	for _, d := range got {
		if d.LastUpdated.Location() != time.UTC {
			t.Fatalf("LoadAll() timestamp not UTC: %v", d.LastUpdated)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSnapshotSQLite_LoadAll_QueryErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewSnapshotSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, unique_id, name, type, room, home")).
		WillReturnError(errors.New("db down"))

	if _, err := repo.LoadAll(context.Background()); err == nil {
		t.Fatalf("LoadAll() expected error, got nil")
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
