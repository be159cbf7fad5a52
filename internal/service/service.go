package service

import (
	"context"
	"time"

	"butler_bridge/internal/gateway"
	"butler_bridge/internal/models"
	"butler_bridge/internal/repository"
)

// GatewayClient is the transport surface the services need from the Butler
// gateway. *gateway.Client is the production implementation.
type GatewayClient interface {
	FetchState(ctx context.Context) (*gateway.HomepageDocument, error)
	SetSetPoint(ctx context.Context, deviceUID string, value float64) error
	PowerOn(ctx context.Context, deviceUID string) error
	PowerOff(ctx context.Context, deviceUID string) error
}

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Coordinator owns the polling cadence against the gateway.
// Stop via context cancellation in main() for graceful shutdown.
type Coordinator interface {
	Run(ctx context.Context)
	PollOnce(ctx context.Context) error
	Refresh()
	WarmStart(ctx context.Context) error
}

// Monitoring exposes the last-known-good snapshot. Reads never block on an
// in-flight poll and never fail; degraded data is labeled, not withheld.
type Monitoring interface {
	Snapshot() []models.DeviceState
	Device(id string) (models.DeviceState, bool)
	Subscribe() chan []models.DeviceState
	Unsubscribe(ch chan []models.DeviceState)
}

// Dispatcher issues control commands. Every failure propagates to the caller;
// a failed command is never optimistically reflected.
type Dispatcher interface {
	SetTemperature(ctx context.Context, deviceID string, value float64) error
	SetPower(ctx context.Context, deviceID string, on bool) error
	SetMode(ctx context.Context, deviceID, mode string) error
}

// EventLog exposes append-only gateway events with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.GatewayEvent, error)
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Coordinator
	Monitoring
	Dispatcher
	EventLog
	Authorization
}

// Config carries the tunables consumed from the outside.
type Config struct {
	PollInterval     time.Duration // default 60s
	FailureThreshold int           // consecutive poll failures before degrading, default 3
	SettleTTL        time.Duration // optimistic override lifetime, default 30s
}

const (
	defaultPollInterval     = 60 * time.Second
	defaultFailureThreshold = 3
	defaultSettleTTL        = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.SettleTTL <= 0 {
		c.SettleTTL = defaultSettleTTL
	}
	return c
}

// NewService wires the gateway client and repository layer into concrete services.
func NewService(gw GatewayClient, repos *repository.Repository, cfg Config) *Service {
	cfg = cfg.withDefaults()
	coord := NewCoordinatorService(gw, repos.Snapshot, repos.Events, cfg)
	return &Service{
		Coordinator:   coord,
		Monitoring:    coord,
		Dispatcher:    NewDispatcherService(gw, coord, repos.Events, cfg.SettleTTL),
		EventLog:      NewEventLogService(repos.Events),
		Authorization: NewAuthService(repos.Auth),
	}
}
