package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"butler_bridge/internal/models"
)

// Temperature bounds used when a device record omits min/max.
const (
	defaultMinTemp = 5.0
	defaultMaxTemp = 40.0
)

var errNotANumber = errors.New("not a number")

// DeviceDefect records one device dropped during normalization. Defects never
// fail the whole document.
type DeviceDefect struct {
	UID    string
	Room   string
	Reason string
}

// Normalize flattens a homes→rooms→devices document into canonical device
// states keyed by uid. Devices with a missing uid, unparseable temperatures,
// or an unrecognized standby encoding are skipped and reported as defects.
func Normalize(doc *HomepageDocument, now time.Time) (map[string]models.DeviceState, []DeviceDefect) {
	out := make(map[string]models.DeviceState)
	var defects []DeviceDefect

	for _, home := range doc.Result.User.Homes {
		for _, room := range home.Rooms {
			// The heating/cooling selector is scoped to the room; older
			// firmwares only carry it on the home.
			mode := coerceMode(room.Mode, coerceMode(home.Mode, models.ModeHeat))

			for key, dev := range room.Devices {
				uid := dev.UID
				if uid == "" {
					uid = key
				}
				if uid == "" {
					defects = append(defects, DeviceDefect{Room: room.Name, Reason: "missing uid"})
					continue
				}

				st, err := normalizeDevice(dev, uid, room.Name, home.Name, mode, now)
				if err != nil {
					defects = append(defects, DeviceDefect{UID: uid, Room: room.Name, Reason: err.Error()})
					continue
				}
				out[uid] = st
			}
		}
	}
	return out, defects
}

func normalizeDevice(dev RawDevice, uid, room, home, mode string, now time.Time) (models.DeviceState, error) {
	tempRoom, err := coerceFloat(dev.TempRoom)
	if err != nil {
		return models.DeviceState{}, fmt.Errorf("tempRoom: %w", err)
	}
	tempSet, err := coerceFloat(dev.TempSet)
	if err != nil {
		return models.DeviceState{}, fmt.Errorf("tempSet: %w", err)
	}
	standby, err := coerceStandby(dev.StandBy.Value)
	if err != nil {
		return models.DeviceState{}, fmt.Errorf("standBy.value: %w", err)
	}

	minTemp, err := coerceFloat(dev.Min)
	if err != nil {
		minTemp = defaultMinTemp
	}
	maxTemp, err := coerceFloat(dev.Max)
	if err != nil {
		maxTemp = defaultMaxTemp
	}

	// The device itself enforces range; an out-of-range tempSet is a transient
	// artifact (seen during mode changes), so clamp rather than reject.
	if tempSet < minTemp {
		tempSet = minTemp
	}
	if tempSet > maxTemp {
		tempSet = maxTemp
	}

	name := dev.Name
	if name == "" {
		name = room
	}

	return models.DeviceState{
		ID:                 uid,
		UniqueID:           firstNonEmpty(dev.UniqueID, uid),
		Name:               name,
		Type:               dev.Type,
		Room:               room,
		Home:               home,
		CurrentTemperature: tempRoom,
		TargetTemperature:  tempSet,
		MinTemperature:     minTemp,
		MaxTemperature:     maxTemp,
		PowerState:         !standby, // standby means powered off
		Mode:               mode,
		Function:           coerceFunction(dev.Settings.Function.Value),
		ConnectionStatus:   coerceConnStatus(dev.ConnectionStatus.Status),
		LastUpdated:        now,
	}, nil
}

// coerceStandby resolves the two physical encodings of the vendor's standby
// boolean: numeric 0/1 (any non-zero is truthy) and the strings
// "true"/"false"/"0"/"1". Anything else is a defect for that device.
func coerceStandby(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, fmt.Errorf("unrecognized standby string %q", t)
	case nil:
		return false, errors.New("standby value missing")
	default:
		return false, fmt.Errorf("unrecognized standby type %T", v)
	}
}

// coerceFloat accepts JSON numbers and numeric strings.
func coerceFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotANumber, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %v", errNotANumber, v)
	}
}

// coerceMode maps the room/home selector to a mode constant: 0 heats, 1 cools.
// A missing or unreadable selector keeps the fallback.
func coerceMode(v any, fallback string) string {
	f, err := coerceFloat(v)
	if err != nil {
		return fallback
	}
	if f == 1 {
		return models.ModeCool
	}
	return models.ModeHeat
}

// coerceConnStatus maps the per-device status code: 1=OK, 2=error, anything
// else (including absent) is UNKNOWN. Never fails.
func coerceConnStatus(v any) string {
	f, err := coerceFloat(v)
	if err != nil {
		return models.ConnUnknown
	}
	switch f {
	case 1:
		return models.ConnOK
	case 2:
		return models.ConnError
	default:
		return models.ConnUnknown
	}
}

// coerceFunction reads the cooling preset slot; 0 when absent or unreadable.
func coerceFunction(v any) int {
	f, err := coerceFloat(v)
	if err != nil {
		return 0
	}
	return int(f)
}

// truthy interprets the vendor's loosely typed success flag.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1"
	default:
		return false
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
