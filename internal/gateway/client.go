package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiPath = "/installedplugin/com.innova.ambiente/2.0/server/index.php"

// Gateway actions.
const (
	actionGetHomepage = "getHomepage"
	actionSetSetPoint = "setSetPoint"
	actionPowerOn     = "powerOnDevice"
	actionPowerOff    = "powerOffDevice"
)

const defaultTimeout = 10 * time.Second

// Client talks to the Butler gateway's plugin endpoint. The endpoint is plain
// HTTP on the local network with no authentication. The client performs no
// retries; retry policy belongs to callers.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the gateway at host (IP or hostname, optional
// port). A non-positive timeout falls back to the 10s default.
func NewClient(host string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    "http://" + host + apiPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchState retrieves the full homes→rooms→devices document.
func (c *Client) FetchState(ctx context.Context) (*HomepageDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.actionURL(actionGetHomepage), nil)
	if err != nil {
		return nil, fmt.Errorf("build state request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", classifyTransportErr(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProtocol, resp.StatusCode)
	}

	var doc HomepageDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrProtocol, err)
	}
	if !truthy(doc.Success) {
		return nil, fmt.Errorf("%w: success=false", ErrProtocol)
	}
	if doc.Result == nil || doc.Result.User == nil {
		return nil, fmt.Errorf("%w: missing RESULT.user", ErrProtocol)
	}
	return &doc, nil
}

// SetSetPoint commands a new target temperature on one device.
func (c *Client) SetSetPoint(ctx context.Context, deviceUID string, value float64) error {
	return c.sendCommand(ctx, actionSetSetPoint, deviceUID, url.Values{
		"value": {strconv.FormatFloat(value, 'f', -1, 64)},
	})
}

// PowerOn takes the device out of standby.
func (c *Client) PowerOn(ctx context.Context, deviceUID string) error {
	return c.sendCommand(ctx, actionPowerOn, deviceUID, url.Values{"value": {"1"}})
}

// PowerOff puts the device into standby.
func (c *Client) PowerOff(ctx context.Context, deviceUID string) error {
	return c.sendCommand(ctx, actionPowerOff, deviceUID, url.Values{"value": {"0"}})
}

// sendCommand posts one form-encoded action addressed by device uid. A
// reachable gateway answering anything other than a success-shaped JSON body
// is ErrRejected; the vendor's error schema is not parsed beyond that.
func (c *Client) sendCommand(ctx context.Context, action, deviceUID string, params url.Values) error {
	form := url.Values{"deviceUid": {deviceUID}}
	for k, vs := range params {
		form[k] = vs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.actionURL(action), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", action, classifyTransportErr(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("%s: %w: read body: %v", action, classifyTransportErr(err), err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w: status %d", action, ErrRejected, resp.StatusCode)
	}
	var ack CommandAck
	if err := json.Unmarshal(body, &ack); err != nil || !truthy(ack.Success) {
		return fmt.Errorf("%s: %w", action, ErrRejected)
	}
	return nil
}

func (c *Client) actionURL(action string) string {
	return c.baseURL + "?Action=" + action
}
