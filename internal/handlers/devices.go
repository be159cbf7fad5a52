package handlers

import (
	"errors"
	"net/http"

	"butler_bridge/internal/gateway"
	"butler_bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusCommanded = "commanded"
	statusRefreshed = "refresh_triggered"

	errUnknownDevice   = "unknown device"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// commandStatusCode maps the command error taxonomy onto HTTP codes.
// Validation and unsupported operations are the caller's fault; a rejected
// command means the gateway refused; transport failures are upstream trouble.
func commandStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrRejected):
		return http.StatusBadGateway
	case errors.Is(err, gateway.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, gateway.ErrConnection), errors.Is(err, gateway.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Request DTOs.
type setTemperatureRequest struct {
	Value float64 `json:"value" binding:"required"`
}

type setPowerRequest struct {
	On *bool `json:"on" binding:"required"`
}

type setModeRequest struct {
	Mode string `json:"mode" binding:"required"` // OFF | HEAT | COOL
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List devices
// @Description  Current snapshot of every known device, stale-but-labeled during gateway trouble.
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	devices := h.services.Monitoring.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// @Summary      Get one device
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device uid"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/devices/{id} [get]
// @Security     BearerAuth
func (h *Handler) getDevice(c *gin.Context) {
	d, ok := h.services.Monitoring.Device(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownDevice})
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Set target temperature
// @Description  Validates against the device's last known min/max before touching the gateway.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path   string                 true  "Device uid"
// @Param        body  body   setTemperatureRequest  true  "Target payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/devices/{id}/temperature [put]
// @Security     BearerAuth
func (h *Handler) setTemperature(c *gin.Context) {
	var req setTemperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.services.Dispatcher.SetTemperature(c.Request.Context(), id, req.Value); err != nil {
		h.logAndJSONError(c, commandStatusCode(err), err.Error(), "set_temperature_failed", err, "device", id, "value", req.Value)
		return
	}
	h.respondWithDevice(c, id)
}

// @Summary      Power a device on or off
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path   string           true  "Device uid"
// @Param        body  body   setPowerRequest  true  "Power payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/devices/{id}/power [post]
// @Security     BearerAuth
func (h *Handler) setPower(c *gin.Context) {
	var req setPowerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.On == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + "missing 'on'"})
		return
	}
	id := c.Param("id")
	if err := h.services.Dispatcher.SetPower(c.Request.Context(), id, *req.On); err != nil {
		h.logAndJSONError(c, commandStatusCode(err), err.Error(), "set_power_failed", err, "device", id, "on", *req.On)
		return
	}
	h.respondWithDevice(c, id)
}

// @Summary      Set mode
// @Description  OFF powers the device down; HEAT/COOL power it up when matching the room's selector.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path   string          true  "Device uid"
// @Param        body  body   setModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/devices/{id}/mode [post]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.services.Dispatcher.SetMode(c.Request.Context(), id, req.Mode); err != nil {
		h.logAndJSONError(c, commandStatusCode(err), err.Error(), "set_mode_failed", err, "device", id, "mode", req.Mode)
		return
	}
	h.respondWithDevice(c, id)
}

// @Summary      Trigger an on-demand poll
// @Tags         devices
// @Produce      json
// @Success      202  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/refresh [post]
// @Security     BearerAuth
func (h *Handler) refresh(c *gin.Context) {
	h.services.Coordinator.Refresh()
	c.JSON(http.StatusAccepted, gin.H{"status": statusRefreshed})
}

// respondWithDevice returns the commanded device's composed state, which
// already reflects the optimistic override.
func (h *Handler) respondWithDevice(c *gin.Context, id string) {
	resp := gin.H{"status": statusCommanded}
	if d, ok := h.services.Monitoring.Device(id); ok {
		resp["device"] = d
	}
	c.JSON(http.StatusOK, resp)
}
