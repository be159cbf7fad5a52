package service

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"butler_bridge/internal/gateway"
	"butler_bridge/internal/models"
	"butler_bridge/internal/repository"
)

// A device must be absent from this many consecutive successful polls before
// it is dropped; one transient omission must not flap device presence.
const missedPollsBeforeRemoval = 2

// Raw and commanded temperatures are compared within this tolerance when
// deciding whether the gateway has caught up with an override.
const tempConfirmEpsilon = 0.05

// CoordinatorService drives the poll loop, owns the canonical snapshot, and
// merges optimistic overrides into reads until the gateway confirms them.
type CoordinatorService struct {
	gw           GatewayClient
	snapshotRepo repository.SnapshotRepo
	eventRepo    repository.EventRepo

	interval         time.Duration
	failureThreshold int

	// pollMu serializes poll execution; a poll is never started while one is
	// in flight.
	pollMu sync.Mutex

	mu        sync.RWMutex
	devices   map[string]models.DeviceState         // raw-derived truth, keyed by uid
	overrides map[string]map[string]models.Override // device -> field -> override
	missed    map[string]int                        // consecutive successful polls a device was absent
	failures  int                                   // consecutive failed polls
	degraded  bool

	// refreshCh has capacity 1: triggers arriving mid-poll coalesce into a
	// single follow-up poll.
	refreshCh chan struct{}

	subMu sync.Mutex
	subs  map[chan []models.DeviceState]struct{}
}

func NewCoordinatorService(gw GatewayClient, snapshotRepo repository.SnapshotRepo, eventRepo repository.EventRepo, cfg Config) *CoordinatorService {
	cfg = cfg.withDefaults()
	return &CoordinatorService{
		gw:               gw,
		snapshotRepo:     snapshotRepo,
		eventRepo:        eventRepo,
		interval:         cfg.PollInterval,
		failureThreshold: cfg.FailureThreshold,
		devices:          make(map[string]models.DeviceState),
		overrides:        make(map[string]map[string]models.Override),
		missed:           make(map[string]int),
		refreshCh:        make(chan struct{}, 1),
		subs:             make(map[chan []models.DeviceState]struct{}),
	}
}

// WarmStart seeds the snapshot from the last persisted poll so consumers see
// stale-but-labeled data before the gateway answers. Connection status is
// forced to UNKNOWN until the first successful poll.
func (s *CoordinatorService) WarmStart(ctx context.Context) error {
	persisted, err := s.snapshotRepo.LoadAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range persisted {
		d.ConnectionStatus = models.ConnUnknown
		s.devices[d.ID] = d
	}
	return nil
}

// Run polls at the configured interval until ctx is canceled. On-demand
// refresh triggers wake the loop early.
func (s *CoordinatorService) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	_ = s.PollOnce(ctx) // first poll immediately, errors already absorbed

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-s.refreshCh:
		}
		_ = s.PollOnce(ctx)
	}
}

// Refresh requests an out-of-band poll. Non-blocking; concurrent requests
// collapse into one pending trigger.
func (s *CoordinatorService) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// PollOnce fetches, normalizes, and merges one full state document. The error
// return exists for callers that want to know the poll outcome (tests, manual
// refresh endpoints); the snapshot itself absorbs all failures.
func (s *CoordinatorService) PollOnce(ctx context.Context) error {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	now := time.Now().UTC()
	doc, err := s.gw.FetchState(ctx)
	if err != nil {
		s.recordFailure(ctx, err, now)
		return err
	}

	normalized, defects := gateway.Normalize(doc, now)
	s.applyPoll(ctx, normalized, defects, now)
	return nil
}

// recordFailure leaves the snapshot untouched and escalates to UNKNOWN
// connection status once failures reach the threshold. Last known numeric
// values are kept: stale-but-displayed beats blank.
func (s *CoordinatorService) recordFailure(ctx context.Context, pollErr error, now time.Time) {
	s.mu.Lock()
	s.failures++
	crossed := s.failures == s.failureThreshold && !s.degraded
	if s.failures >= s.failureThreshold {
		s.degraded = true
		for uid, d := range s.devices {
			d.ConnectionStatus = models.ConnUnknown
			s.devices[uid] = d
		}
	}
	var snap []models.DeviceState
	if crossed {
		snap = s.composeLocked(now)
	}
	s.mu.Unlock()

	_ = s.eventRepo.Append(ctx, models.GatewayEvent{
		OccurredAt:  now,
		Type:        models.EventPollFailed,
		Description: "poll failed: " + pollErr.Error(),
	})
	if crossed {
		_ = s.eventRepo.Append(ctx, models.GatewayEvent{
			OccurredAt:  now,
			Type:        models.EventDegraded,
			Description: "consecutive poll failures reached threshold; connection status degraded to UNKNOWN",
			Metadata:    map[string]any{"failures": s.failureThreshold},
		})
		s.notify(snap)
	}
}

// applyPoll replaces raw-derived fields for every present device, ages out
// devices missing twice in a row, and drops overrides the gateway confirmed.
func (s *CoordinatorService) applyPoll(ctx context.Context, normalized map[string]models.DeviceState, defects []gateway.DeviceDefect, now time.Time) {
	var added, removed []string

	s.mu.Lock()
	s.failures = 0
	s.degraded = false

	for uid, st := range normalized {
		if _, known := s.devices[uid]; !known {
			added = append(added, uid)
		}
		s.devices[uid] = st
		delete(s.missed, uid)
		s.confirmOverridesLocked(uid, st)
	}

	for uid := range s.devices {
		if _, present := normalized[uid]; present {
			continue
		}
		s.missed[uid]++
		if s.missed[uid] >= missedPollsBeforeRemoval {
			delete(s.devices, uid)
			delete(s.overrides, uid)
			delete(s.missed, uid)
			removed = append(removed, uid)
		}
	}

	s.pruneExpiredOverridesLocked(now)
	snap := s.composeLocked(now)
	s.mu.Unlock()

	// Persistence and event logging are best-effort; the in-memory snapshot
	// is already the source of truth for consumers.
	for _, st := range normalized {
		_ = s.snapshotRepo.Upsert(ctx, st)
	}
	for _, uid := range added {
		_ = s.eventRepo.Append(ctx, models.GatewayEvent{
			OccurredAt:  now,
			Type:        models.EventDeviceAdded,
			DeviceID:    uid,
			Description: "device appeared in poll result",
		})
	}
	for _, uid := range removed {
		_ = s.snapshotRepo.Delete(ctx, uid)
		_ = s.eventRepo.Append(ctx, models.GatewayEvent{
			OccurredAt:  now,
			Type:        models.EventDeviceRemoved,
			DeviceID:    uid,
			Description: "device absent from two consecutive polls",
		})
	}
	for _, d := range defects {
		_ = s.eventRepo.Append(ctx, models.GatewayEvent{
			OccurredAt:  now,
			Type:        models.EventDefect,
			DeviceID:    d.UID,
			Description: "device dropped during normalization: " + d.Reason,
			Metadata:    map[string]any{"room": d.Room},
		})
	}

	s.notify(snap)
}

// RegisterOverride records an optimistic value for one device field. The
// override masks the raw-derived value until the gateway confirms it or ttl
// lapses, whichever comes first.
func (s *CoordinatorService) RegisterOverride(deviceID, field string, value any, ttl time.Duration) {
	now := time.Now().UTC()

	s.mu.Lock()
	ovs := s.overrides[deviceID]
	if ovs == nil {
		ovs = make(map[string]models.Override)
		s.overrides[deviceID] = ovs
	}
	ovs[field] = models.Override{
		Field:     field,
		Value:     value,
		ExpiresAt: now.Add(ttl),
	}
	snap := s.composeLocked(now)
	s.mu.Unlock()

	s.notify(snap)
}

// Snapshot returns a consistent copy of every device with unexpired overrides
// applied. Never blocks on an in-flight poll.
func (s *CoordinatorService) Snapshot() []models.DeviceState {
	now := time.Now().UTC()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.composeLocked(now)
}

// Device returns one composed device state by uid.
func (s *CoordinatorService) Device(id string) (models.DeviceState, bool) {
	now := time.Now().UTC()
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return models.DeviceState{}, false
	}
	return s.composeDeviceLocked(d, now), true
}

// Subscribe registers a snapshot-change listener. The channel carries the
// freshest snapshot; a slow consumer only ever misses intermediate states.
func (s *CoordinatorService) Subscribe() chan []models.DeviceState {
	ch := make(chan []models.DeviceState, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *CoordinatorService) Unsubscribe(ch chan []models.DeviceState) {
	s.subMu.Lock()
	delete(s.subs, ch)
	s.subMu.Unlock()
}

func (s *CoordinatorService) notify(snap []models.DeviceState) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		// Replace a pending undelivered snapshot with the newer one.
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// confirmOverridesLocked drops overrides whose commanded value the newly
// polled raw value has caught up to.
func (s *CoordinatorService) confirmOverridesLocked(uid string, raw models.DeviceState) {
	ovs := s.overrides[uid]
	for field, ov := range ovs {
		switch field {
		case models.FieldTargetTemperature:
			want, ok := ov.Value.(float64)
			if ok && math.Abs(raw.TargetTemperature-want) < tempConfirmEpsilon {
				delete(ovs, field)
			}
		case models.FieldPowerState:
			want, ok := ov.Value.(bool)
			if ok && raw.PowerState == want {
				delete(ovs, field)
			}
		default:
			delete(ovs, field)
		}
	}
	if len(ovs) == 0 {
		delete(s.overrides, uid)
	}
}

// pruneExpiredOverridesLocked enforces the settle window: once expired, an
// unconfirmed override is dropped and the raw-derived value shows again.
func (s *CoordinatorService) pruneExpiredOverridesLocked(now time.Time) {
	for uid, ovs := range s.overrides {
		for field, ov := range ovs {
			if ov.Expired(now) {
				delete(ovs, field)
			}
		}
		if len(ovs) == 0 {
			delete(s.overrides, uid)
		}
	}
}

// composeLocked builds the consumer-visible snapshot: raw-derived records with
// unexpired overrides masked on top, sorted by uid for stable output.
func (s *CoordinatorService) composeLocked(now time.Time) []models.DeviceState {
	out := make([]models.DeviceState, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, s.composeDeviceLocked(d, now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *CoordinatorService) composeDeviceLocked(d models.DeviceState, now time.Time) models.DeviceState {
	ovs := s.overrides[d.ID]
	if len(ovs) == 0 {
		return d
	}

	fields := make([]string, 0, len(ovs))
	for field := range ovs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		ov := ovs[field]
		if ov.Expired(now) {
			continue
		}
		switch field {
		case models.FieldTargetTemperature:
			if v, ok := ov.Value.(float64); ok {
				d.TargetTemperature = v
			}
		case models.FieldPowerState:
			if v, ok := ov.Value.(bool); ok {
				d.PowerState = v
			}
		}
		d.PendingOverrides = append(d.PendingOverrides, ov)
	}
	return d
}
