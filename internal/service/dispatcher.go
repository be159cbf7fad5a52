package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"butler_bridge/internal/models"
	"butler_bridge/internal/repository"
)

// Command-level errors. Transport failures from the gateway client pass
// through unwrapped so callers can still branch on the gateway taxonomy.
var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrValidation    = errors.New("invalid command")
	ErrUnsupported   = errors.New("operation not supported by this device")
)

// snapshotControl is what the dispatcher needs from the coordinator.
type snapshotControl interface {
	Device(id string) (models.DeviceState, bool)
	RegisterOverride(deviceID, field string, value any, ttl time.Duration)
	Refresh()
}

// DispatcherService validates and issues control commands, then reconciles
// optimistic state with the coordinator.
type DispatcherService struct {
	gw        GatewayClient
	coord     snapshotControl
	eventRepo repository.EventRepo
	settleTTL time.Duration
}

func NewDispatcherService(gw GatewayClient, coord snapshotControl, eventRepo repository.EventRepo, settleTTL time.Duration) *DispatcherService {
	if settleTTL <= 0 {
		settleTTL = defaultSettleTTL
	}
	return &DispatcherService{gw: gw, coord: coord, eventRepo: eventRepo, settleTTL: settleTTL}
}

// SetTemperature commands a new target. Out-of-range values fail fast against
// the device's last known bounds without touching the network.
func (s *DispatcherService) SetTemperature(ctx context.Context, deviceID string, value float64) error {
	d, ok := s.coord.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if value < d.MinTemperature || value > d.MaxTemperature {
		return fmt.Errorf("%w: target %.1f outside [%.1f, %.1f]", ErrValidation, value, d.MinTemperature, d.MaxTemperature)
	}

	if err := s.gw.SetSetPoint(ctx, deviceID, value); err != nil {
		return err
	}

	s.settle(ctx, deviceID, models.FieldTargetTemperature, value,
		fmt.Sprintf("set point commanded to %.1f", value))
	return nil
}

// SetPower turns a device on (out of standby) or off. Turning on restores the
// previous target temperature and mode; the gateway keeps both.
func (s *DispatcherService) SetPower(ctx context.Context, deviceID string, on bool) error {
	if _, ok := s.coord.Device(deviceID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	var err error
	if on {
		err = s.gw.PowerOn(ctx, deviceID)
	} else {
		err = s.gw.PowerOff(ctx, deviceID)
	}
	if err != nil {
		return err
	}

	desc := "device powered off"
	if on {
		desc = "device powered on"
	}
	s.settle(ctx, deviceID, models.FieldPowerState, on, desc)
	return nil
}

// SetMode expresses heat/cool/off semantics through standby: OFF powers the
// device down, the device's own room mode powers it up. The room selector is
// not commandable per device, so requesting the opposite mode is unsupported.
func (s *DispatcherService) SetMode(ctx context.Context, deviceID, mode string) error {
	d, ok := s.coord.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "OFF":
		return s.SetPower(ctx, deviceID, false)
	case models.ModeHeat, models.ModeCool:
		if strings.ToUpper(strings.TrimSpace(mode)) != d.Mode {
			return fmt.Errorf("%w: room is set to %s", ErrUnsupported, d.Mode)
		}
		return s.SetPower(ctx, deviceID, true)
	default:
		return fmt.Errorf("%w: mode %q", ErrUnsupported, mode)
	}
}

// settle records the optimistic override and schedules the follow-up poll.
// Called only after the gateway acknowledged the command.
func (s *DispatcherService) settle(ctx context.Context, deviceID, field string, value any, desc string) {
	s.coord.RegisterOverride(deviceID, field, value, s.settleTTL)
	_ = s.eventRepo.Append(ctx, models.GatewayEvent{
		Type:        models.EventCommand,
		DeviceID:    deviceID,
		Description: desc,
		Metadata:    map[string]any{"field": field, "value": value},
	})
	s.coord.Refresh()
}
