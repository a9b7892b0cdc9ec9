package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot/internal/client/models"
	"github.com/spcopeland72-crypto/canny-carrot/internal/common"
)

const requestTimeout = 12 * time.Second

// HTTPClient talks JSON over HTTP to the store-of-record server. It keeps an
// access/refresh token pair and transparently refreshes once when the access
// token expires mid-call.
type HTTPClient struct {
	baseURL      string
	http         *http.Client
	accessToken  string
	refreshToken string
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TenantID     string `json:"tenantId"`
}

func (c *HTTPClient) Login(ctx context.Context, email string, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/login", body, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", common.ErrInvalidCredentials
	default:
		return "", statusError(resp)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	c.accessToken = tokens.AccessToken
	c.refreshToken = tokens.RefreshToken
	return tokens.TenantID, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/api/ping", nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return common.ErrUnreachable
	}
	return nil
}

func (c *HTTPClient) FetchTenant(ctx context.Context, tenantID string) (*models.Profile, error) {
	raw, err := c.getJSON(ctx, "/api/tenants/"+tenantID)
	if err != nil || raw == nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode tenant profile: %w", err)
	}
	return &p, nil
}

func (c *HTTPClient) FetchIDSet(ctx context.Context, tenantID string, col models.Collection) ([]string, error) {
	raw, err := c.getJSON(ctx, collectionPath(tenantID, col))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var out struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode id set: %w", err)
	}
	return out.IDs, nil
}

func (c *HTTPClient) FetchRecord(ctx context.Context, tenantID string, col models.Collection, id string) (json.RawMessage, error) {
	return c.getJSON(ctx, recordPath(tenantID, col, id))
}

func (c *HTTPClient) PushRecord(ctx context.Context, tenantID string, col models.Collection, id string, record json.RawMessage) error {
	resp, err := c.send(ctx, http.MethodPut, recordPath(tenantID, col, id), record, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		return common.ErrVersionConflict
	default:
		return statusError(resp)
	}
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, tenantID string, col models.Collection, id string) error {
	resp, err := c.send(ctx, http.MethodDelete, recordPath(tenantID, col, id), nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		// deleting an already-absent record is fine
		return nil
	default:
		return statusError(resp)
	}
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// getJSON performs an authenticated GET. 404 maps to (nil, nil).
func (c *HTTPClient) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, common.ErrUnreachable
		}
		return raw, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError(resp)
	}
}

// send performs one request, refreshing the access token once when the
// server reports it expired.
func (c *HTTPClient) send(ctx context.Context, method string, path string, body []byte, authed bool) (*http.Response, error) {
	resp, err := c.do(ctx, method, path, body, authed)
	if err != nil {
		return nil, err
	}

	if authed && resp.StatusCode == http.StatusUnauthorized && c.refreshToken != "" {
		resp.Body.Close()
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		return c.do(ctx, method, path, body, authed)
	}
	return resp, nil
}

func (c *HTTPClient) do(ctx context.Context, method string, path string, body []byte, authed bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// transport failure: the offline steady state
		return nil, fmt.Errorf("%w: %v", common.ErrUnreachable, err)
	}
	return resp, nil
}

func (c *HTTPClient) refresh(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"refreshToken": c.refreshToken})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/refresh", body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.ErrRefreshTokenExpired
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}
	c.accessToken = tokens.AccessToken
	c.refreshToken = tokens.RefreshToken
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: server returned %s", common.ErrUnreachable, resp.Status)
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("remote error: %s: %s", resp.Status, string(b))
}

func collectionPath(tenantID string, col models.Collection) string {
	return "/api/tenants/" + tenantID + "/" + string(col)
}

func recordPath(tenantID string, col models.Collection, id string) string {
	return collectionPath(tenantID, col) + "/" + id
}
