package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/naveenspark/beacon/pkg/domain"
)

const pushPrefix = "/push-notifications"

// Client is the case-management API client. It covers the push
// notification registry and the auth endpoints the CLI needs.
// It keeps no state besides the bearer token and never retries.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout of the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new API client. baseURL is the API root, e.g. https://crm.example.org/api.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// --- Auth ---

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "/auth/login", body, &resp); err != nil {
		return "", fmt.Errorf("client.Login: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("client.Login: empty access token")
	}
	return resp.AccessToken, nil
}

// GetMe returns the authenticated user.
func (c *Client) GetMe(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.get(ctx, "/auth/me", &u); err != nil {
		return nil, fmt.Errorf("client.GetMe: %w", err)
	}
	return &u, nil
}

// --- Push subscriptions ---

// VAPIDPublicKey fetches the server's application server key. The endpoint
// is public; the token is sent anyway when present.
func (c *Client) VAPIDPublicKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.get(ctx, pushPrefix+"/vapid-public-key", &resp); err != nil {
		return "", fmt.Errorf("client.VAPIDPublicKey: %w", err)
	}
	return resp.PublicKey, nil
}

// RegisterSubscription stores a device subscription for the caller. The
// backend returns the existing record when the endpoint is already known.
func (c *Client) RegisterSubscription(ctx context.Context, req domain.SubscriptionRequest) (*domain.PushSubscription, error) {
	var sub domain.PushSubscription
	if err := c.post(ctx, pushPrefix+"/subscriptions", req, &sub); err != nil {
		return nil, fmt.Errorf("client.RegisterSubscription: %w", err)
	}
	return &sub, nil
}

// ListSubscriptions returns every subscription owned by the caller.
func (c *Client) ListSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	var subs []domain.PushSubscription
	if err := c.get(ctx, pushPrefix+"/subscriptions", &subs); err != nil {
		return nil, fmt.Errorf("client.ListSubscriptions: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes a subscription by ID. A 404 is reported as
// success: either way the subscription no longer exists.
func (c *Client) DeleteSubscription(ctx context.Context, id int64) error {
	path := pushPrefix + "/subscriptions/" + strconv.FormatInt(id, 10)
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil
		}
		return fmt.Errorf("client.DeleteSubscription: %w", err)
	}
	return nil
}

// --- Notification settings ---

// NotificationSettings returns the caller's per-type settings. The backend
// only lists types the caller's roles allow.
func (c *Client) NotificationSettings(ctx context.Context) ([]domain.NotificationSetting, error) {
	var resp struct {
		Settings []domain.NotificationSetting `json:"settings"`
	}
	if err := c.get(ctx, pushPrefix+"/settings", &resp); err != nil {
		return nil, fmt.Errorf("client.NotificationSettings: %w", err)
	}
	return resp.Settings, nil
}

// UpdateNotificationSetting enables or disables a single notification type.
func (c *Client) UpdateNotificationSetting(ctx context.Context, notificationType string, enabled bool) (*domain.NotificationSetting, error) {
	var setting domain.NotificationSetting
	path := pushPrefix + "/settings/" + url.PathEscape(notificationType)
	if err := c.doRequest(ctx, http.MethodPut, path, map[string]bool{"enabled": enabled}, &setting); err != nil {
		return nil, fmt.Errorf("client.UpdateNotificationSetting: %w", err)
	}
	return &setting, nil
}

// SendTestNotification asks the backend to push a test message to every
// subscription of the caller.
func (c *Client) SendTestNotification(ctx context.Context, req domain.TestNotificationRequest) (*domain.TestNotificationResponse, error) {
	var resp domain.TestNotificationResponse
	if err := c.post(ctx, pushPrefix+"/test", req, &resp); err != nil {
		return nil, fmt.Errorf("client.SendTestNotification: %w", err)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}
