package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"butler_bridge/internal/models"
	"butler_bridge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestWebSocket_SnapshotStream_InitialAndPush(t *testing.T) {
	mon := &mockMonitoring{devices: []models.DeviceState{testDevice("dev-1")}}
	s := &service.Service{Monitoring: mon}

	r := gin.New()
	h := NewHandler(s, nil)
	r.GET("/ws", h.wsConnect)

	srv := httptest.NewServer(r)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	type envelope struct {
		Type  string          `json:"type"`
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}

	// Initial snapshot arrives without any change notification.
	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != "snapshot" || len(env.Data) == 0 {
		t.Fatalf("bad envelope: %+v", env)
	}
	var devices []models.DeviceState
	if err := json.Unmarshal(env.Data, &devices); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "dev-1" {
		t.Fatalf("unexpected initial snapshot: %+v", devices)
	}

	// A change pushed through the subscription reaches the client.
	changed := testDevice("dev-1")
	changed.TargetTemperature = 23
	mon.Subscribe() <- []models.DeviceState{changed}

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read pushed snapshot: %v", err)
	}
	if err := json.Unmarshal(env.Data, &devices); err != nil {
		t.Fatalf("unmarshal pushed snapshot: %v", err)
	}
	if len(devices) != 1 || devices[0].TargetTemperature != 23 {
		t.Fatalf("expected pushed target 23, got %+v", devices)
	}
}
