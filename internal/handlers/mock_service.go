package handlers

import (
	"context"
	"net/http"
	"time"

	"butler_bridge/internal/models"
	"butler_bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockDispatcher struct {
	setTempErr  error
	setPowerErr error
	setModeErr  error

	lastDeviceID string
	lastValue    float64
	lastOn       bool
	lastMode     string

	setTempCalls  int
	setPowerCalls int
	setModeCalls  int
}

func (m *mockDispatcher) SetTemperature(ctx context.Context, deviceID string, value float64) error {
	m.setTempCalls++
	m.lastDeviceID = deviceID
	m.lastValue = value
	return m.setTempErr
}
func (m *mockDispatcher) SetPower(ctx context.Context, deviceID string, on bool) error {
	m.setPowerCalls++
	m.lastDeviceID = deviceID
	m.lastOn = on
	return m.setPowerErr
}
func (m *mockDispatcher) SetMode(ctx context.Context, deviceID, mode string) error {
	m.setModeCalls++
	m.lastDeviceID = deviceID
	m.lastMode = mode
	return m.setModeErr
}

type mockMonitoring struct {
	devices []models.DeviceState
	subs    chan []models.DeviceState
}

func (m *mockMonitoring) Snapshot() []models.DeviceState { return m.devices }
func (m *mockMonitoring) Device(id string) (models.DeviceState, bool) {
	for _, d := range m.devices {
		if d.ID == id {
			return d, true
		}
	}
	return models.DeviceState{}, false
}
func (m *mockMonitoring) Subscribe() chan []models.DeviceState {
	if m.subs == nil {
		m.subs = make(chan []models.DeviceState, 1)
	}
	return m.subs
}
func (m *mockMonitoring) Unsubscribe(ch chan []models.DeviceState) {}

type mockCoordinator struct {
	refreshCalls int
	pollErr      error
}

func (m *mockCoordinator) Run(ctx context.Context)            {}
func (m *mockCoordinator) PollOnce(ctx context.Context) error { return m.pollErr }
func (m *mockCoordinator) Refresh()                           { m.refreshCalls++ }
func (m *mockCoordinator) WarmStart(ctx context.Context) error { return nil }

type mockEventLog struct {
	resp     []models.GatewayEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.GatewayEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
