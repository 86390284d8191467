// Package device talks to the bulb REST API.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
)

const (
	// DefaultTimeout bounds each HTTP request to the bulb API.
	DefaultTimeout = 30 * time.Second

	// MaxAliasLength is the longest alias the API accepts.
	MaxAliasLength = 100

	// maxErrorBody caps how much of a failure response is logged.
	maxErrorBody = 512
)

// Config holds bulb API connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Rate is the number of commands per second sent to the API. Zero disables limiting.
	Rate  float64
	Burst int
}

// DeviceInfo is one entry of the upstream device list.
type DeviceInfo struct {
	IP    string `json:"ip"`
	Alias string `json:"alias"`
	On    bool   `json:"on"`
	Model string `json:"model"`
	SwVer string `json:"sw_ver"`
	MAC   string `json:"mac"`
}

// Client sends bulb commands over HTTP. It is safe for concurrent use and
// keeps no per-run state.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ pattern.DeviceClient = (*Client)(nil)

// NewClient creates a bulb API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	if cfg.APIKey == "" {
		log.Printf("⚠️  Bulb API key not configured, some API calls may fail")
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// SetPower turns the bulb on or off.
func (c *Client) SetPower(ctx context.Context, deviceID string, on bool) (bool, error) {
	state := "off"
	if on {
		state = "on"
	}
	return c.command(ctx, http.MethodGet, "/test/"+escape(deviceID)+"/"+state, nil)
}

// SetColorHex sets an RGB color. A missing '#' prefix is added.
func (c *Client) SetColorHex(ctx context.Context, deviceID, hex string) (bool, error) {
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	body := struct {
		Hex string `json:"hex"`
	}{Hex: hex}
	return c.command(ctx, http.MethodPost, "/bulb/"+escape(deviceID)+"/hex", body)
}

// SetColorHSB sets a hue/saturation color, with brightness when given.
func (c *Client) SetColorHSB(ctx context.Context, deviceID string, hue, saturation int, brightness *int) (bool, error) {
	body := struct {
		Hue        int  `json:"hue"`
		Saturation int  `json:"saturation"`
		Brightness *int `json:"brightness"`
	}{Hue: hue, Saturation: saturation, Brightness: brightness}
	return c.command(ctx, http.MethodPost, "/bulb/"+escape(deviceID)+"/color", body)
}

// SetTemperature sets a white color temperature in kelvin.
func (c *Client) SetTemperature(ctx context.Context, deviceID string, kelvin int) (bool, error) {
	body := struct {
		Kelvin int `json:"kelvin"`
	}{Kelvin: kelvin}
	return c.command(ctx, http.MethodPost, "/bulb/"+escape(deviceID)+"/temperature", body)
}

// SetBrightness sets brightness in percent.
func (c *Client) SetBrightness(ctx context.Context, deviceID string, brightness int) (bool, error) {
	body := struct {
		Brightness int `json:"brightness"`
	}{Brightness: brightness}
	return c.command(ctx, http.MethodPost, "/bulb/"+escape(deviceID)+"/brightness", body)
}

// ListDevices returns the devices known to the bulb API.
func (c *Client) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, readSnippet(resp.Body))
	}

	var devices []DeviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		return nil, fmt.Errorf("%w: failed to decode device list: %v", ErrUpstream, err)
	}

	log.Printf("Retrieved %d devices from bulb API", len(devices))
	return devices, nil
}

// UpdateAlias renames a device.
func (c *Client) UpdateAlias(ctx context.Context, deviceIP, alias string) (bool, error) {
	if strings.TrimSpace(alias) == "" {
		return false, fmt.Errorf("%w: alias is required", ErrInvalidAlias)
	}
	if len([]rune(alias)) > MaxAliasLength {
		return false, fmt.Errorf("%w: alias cannot exceed %d characters", ErrInvalidAlias, MaxAliasLength)
	}

	body := struct {
		Alias string `json:"alias"`
	}{Alias: alias}
	return c.command(ctx, http.MethodPost, "/"+escape(deviceIP)+"/alias", body)
}

// command sends one request and reports whether the API accepted it.
// Transport failures and non-2xx responses are logged and reported as false;
// only problems building the request are returned as errors.
func (c *Client) command(ctx context.Context, method, path string, body any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		log.Printf("Bulb command %s %s not sent: %v", method, path, err)
		return false, nil
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Bulb command %s %s failed: %v", method, path, err)
		return false, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Bulb command %s %s failed with status %d: %s", method, path, resp.StatusCode, readSnippet(resp.Body))
		return false, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return true, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("ngrok-skip-browser-warning", "true")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
