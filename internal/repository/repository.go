package repository

import (
	"context"
	"database/sql"
	"time"

	"butler_bridge/internal/models"
	"butler_bridge/internal/repository/db"
)

// InitDB opens the SQLite file and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// SnapshotRepo persists the last known device snapshot so a restart can serve
// stale-but-labeled data before the first poll completes.
type SnapshotRepo interface {
	Upsert(ctx context.Context, d models.DeviceState) error
	Delete(ctx context.Context, deviceID string) error
	LoadAll(ctx context.Context) ([]models.DeviceState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.GatewayEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.GatewayEvent, error)
}

type Repository struct {
	Snapshot SnapshotRepo
	Events   EventRepo
	Auth     Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Snapshot: NewSnapshotSQLite(db),
		Events:   NewEventSQLite(db),
		Auth:     NewUserRepository(db),
	}
}
