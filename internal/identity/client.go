package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// Client talks to the identity gateway's REST API using the service-role key.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates a gateway client for the given base URL and service key.
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type userPayload struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	CreatedAt time.Time    `json:"created_at"`
	Metadata  UserMetadata `json:"user_metadata"`
}

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         *userPayload `json:"user"`
}

// EstablishSession validates the access token against the gateway, falling
// back to a single refresh-token grant when the access token is rejected.
// A token pair the gateway will not honor yields (nil, nil).
func (c *Client) EstablishSession(ctx context.Context, accessToken, refreshToken string) (*User, error) {
	user, status, err := c.fetchUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		return nil, fmt.Errorf("identity: establish session: unexpected status %d", status)
	}

	if refreshToken == "" {
		return nil, nil
	}

	refreshed, _, err := c.refreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*User, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return nil, 0, fmt.Errorf("identity: build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("identity: fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var payload userPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("identity: decode user: %w", err)
	}
	user, err := payload.toUser()
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return user, resp.StatusCode, nil
}

// refreshSession redeems a refresh token; a gateway rejection returns
// (nil, nil) so callers can downgrade to the anonymous state.
func (c *Client) refreshSession(ctx context.Context, refreshToken string) (*User, *Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	resp, err := c.postJSON(ctx, "/token?grant_type=refresh_token", body)
	if err != nil {
		return nil, nil, fmt.Errorf("identity: refresh session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("identity: refresh session: unexpected status %d", resp.StatusCode)
	}

	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("identity: decode refreshed session: %w", err)
	}
	if payload.User == nil {
		return nil, nil, nil
	}
	user, err := payload.User.toUser()
	if err != nil {
		return nil, nil, err
	}
	return user, payload.toSession(), nil
}

// CreateUser provisions a pre-confirmed user via the gateway's admin API.
func (c *Client) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	body := map[string]any{
		"email":         params.Email,
		"email_confirm": params.EmailConfirmed,
		"user_metadata": params.Metadata,
	}

	resp, err := c.postJSON(ctx, "/admin/users", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserCreation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUserCreation, resp.StatusCode, detail)
	}

	var payload userPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUserCreation, err)
	}
	user, err := payload.toUser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserCreation, err)
	}
	return user, nil
}

// GenerateMagicLink asks the gateway for a magic-link artifact and returns
// the hashed token to be verified server-side.
func (c *Client) GenerateMagicLink(ctx context.Context, email string) (string, error) {
	body := map[string]string{
		"type":  string(OTPMagicLink),
		"email": email,
	}

	resp, err := c.postJSON(ctx, "/admin/generate_link", body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLinkGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: status %d: %s", ErrLinkGeneration, resp.StatusCode, detail)
	}

	var payload struct {
		HashedToken string `json:"hashed_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrLinkGeneration, err)
	}
	if payload.HashedToken == "" {
		return "", fmt.Errorf("%w: empty hashed token", ErrLinkGeneration)
	}
	return payload.HashedToken, nil
}

// VerifyOneTimeToken redeems a hashed one-time token for a full session.
func (c *Client) VerifyOneTimeToken(ctx context.Context, tokenHash string, otpType OTPType) (*Session, *User, error) {
	body := map[string]string{
		"type":       string(otpType),
		"token_hash": tokenHash,
	}

	resp, err := c.postJSON(ctx, "/verify", body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, nil, fmt.Errorf("%w: status %d: %s", ErrVerification, resp.StatusCode, detail)
	}

	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("%w: decode response: %v", ErrVerification, err)
	}
	if payload.AccessToken == "" || payload.User == nil {
		return nil, nil, fmt.Errorf("%w: response carries no session", ErrVerification)
	}
	user, err := payload.User.toUser()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return payload.toSession(), user, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)

	return c.httpClient.Do(req)
}

func (p *userPayload) toUser() (*User, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid user id %q: %w", p.ID, err)
	}
	return &User{
		ID:        id,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
		Metadata:  p.Metadata,
	}, nil
}

func (p *sessionPayload) toSession() *Session {
	return &Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(p.ExpiresIn) * time.Second),
	}
}
