package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Scope is the fixed authorization scope requested from Strava.
const Scope = "activity:read_all,profile:read_all"

// Endpoint is Strava's OAuth 2.0 endpoint pair.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://www.strava.com/oauth/authorize",
	TokenURL: "https://www.strava.com/oauth/token",
}

// Athlete is the athlete summary Strava embeds in its token response.
type Athlete struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	Profile       string `json:"profile"`
	ProfileMedium string `json:"profile_medium"`
}

// AvatarURL returns the best available profile image URL.
func (a Athlete) AvatarURL() string {
	if a.Profile != "" {
		return a.Profile
	}
	return a.ProfileMedium
}

// TokenGrant is the result of a successful authorization-code exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	Athlete      Athlete
}

// Client drives Strava's authorization-code flow.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the OAuth endpoint, used by tests to point the
// exchange at a local server.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(c *Client) {
		c.config.Endpoint = endpoint
	}
}

// NewClient creates a Strava OAuth client. The redirect URI is derived from
// the app's public base URL.
func NewClient(clientID, clientSecret, appBaseURL string, opts ...Option) *Client {
	c := &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  appBaseURL + "/api/auth/strava/callback",
			Endpoint:     Endpoint,
			Scopes:       []string{Scope},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AuthCodeURL builds the provider authorization URL. No local state is
// created at this step.
func (c *Client) AuthCodeURL() string {
	return c.config.AuthCodeURL("", oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange redeems an authorization code for tokens and the athlete identity
// carried alongside them. A single attempt; failures are final.
func (c *Client) Exchange(ctx context.Context, code string) (*TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("strava: token exchange: %w", err)
	}

	grant := &TokenGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scope:        Scope,
	}

	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		grant.Scope = scope
	}

	// Strava reports an absolute expiry alongside the standard expires_in.
	if expiresAt, ok := token.Extra("expires_at").(float64); ok && expiresAt > 0 {
		grant.ExpiresAt = time.Unix(int64(expiresAt), 0)
	}

	rawAthlete := token.Extra("athlete")
	if rawAthlete == nil {
		return nil, errors.New("strava: token response carries no athlete")
	}

	encoded, err := json.Marshal(rawAthlete)
	if err != nil {
		return nil, fmt.Errorf("strava: re-encode athlete: %w", err)
	}
	if err := json.Unmarshal(encoded, &grant.Athlete); err != nil {
		return nil, fmt.Errorf("strava: parse athlete: %w", err)
	}
	if grant.Athlete.ID == 0 {
		return nil, errors.New("strava: athlete id missing from token response")
	}

	return grant, nil
}
