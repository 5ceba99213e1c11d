// Package graph is the HTTP client for the mailbox/calendar provider's
// OAuth2 and REST endpoints. All calls are bounded single requests; the
// package performs no retries and holds no credential state of its own.
package graph

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

	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
)

// Config holds the OAuth application settings for the provider.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       string
	// TokenURL is the OAuth2 token endpoint.
	TokenURL string
	// BaseURL is the REST API root, e.g. https://graph.microsoft.com/v1.0.
	BaseURL string
}

// Client defines the provider operations the sync engines consume.
type Client interface {
	// ExchangeCode redeems an authorization code for tokens.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error)

	// RefreshToken redeems a refresh token for a new token pair.
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)

	// Me fetches the profile of the token's owner.
	Me(ctx context.Context, accessToken string) (*Profile, error)

	// ListMessages fetches inbox messages received at or after since,
	// newest first, capped at top results.
	ListMessages(ctx context.Context, accessToken string, since time.Time, top int) ([]Message, error)

	// MarkMessageRead flags a message as read.
	MarkMessageRead(ctx context.Context, accessToken, messageID string) error

	// ListCalendarView fetches events overlapping [start, end], ordered by
	// start time, capped at top results, rendered in the given timezone.
	ListCalendarView(ctx context.Context, accessToken string, start, end time.Time, timezone string, top int) ([]Event, error)
}

// client implements Client over net/http
type client struct {
	config Config
	http   *http.Client
}

// NewClient creates a provider client with a bounded request timeout.
func NewClient(config Config) Client {
	return &client{
		config: config,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// ExchangeCode redeems an authorization code for tokens
func (c *client) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("scope", c.config.Scopes)
	return c.tokenRequest(ctx, "code_exchange", form)
}

// RefreshToken redeems a refresh token for a new token pair
func (c *client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("scope", c.config.Scopes)
	return c.tokenRequest(ctx, "token_refresh", form)
}

func (c *client) tokenRequest(ctx context.Context, operation string, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, apperrors.NewProviderError(operation, resp.StatusCode, readBody(resp.Body))
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%s response contained no access token", operation)
	}
	return &token, nil
}

// Me fetches the authorized profile
func (c *client) Me(ctx context.Context, accessToken string) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, accessToken, "/me", nil, "", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListMessages fetches inbox messages received in the window, newest first
func (c *client) ListMessages(ctx context.Context, accessToken string, since time.Time, top int) ([]Message, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("receivedDateTime ge %s", since.UTC().Format(time.RFC3339)))
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", strconv.Itoa(top))
	params.Set("$select", "id,subject,bodyPreview,body,from,receivedDateTime,conversationId,isRead")

	var out listResponse[Message]
	if err := c.get(ctx, accessToken, "/me/mailFolders/inbox/messages", params, "", &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// MarkMessageRead flags a message as read. Pure side effect: callers treat a
// failure here as loggable, never as a reason to fail ingestion.
func (c *client) MarkMessageRead(ctx context.Context, accessToken, messageID string) error {
	body, _ := json.Marshal(map[string]bool{"isRead": true})
	endpoint := c.config.BaseURL + "/me/messages/" + url.PathEscape(messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mark_read request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mark_read request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return apperrors.NewProviderError("mark_read", resp.StatusCode, readBody(resp.Body))
	}
	return nil
}

// ListCalendarView fetches events in the window, ordered by start time
func (c *client) ListCalendarView(ctx context.Context, accessToken string, start, end time.Time, timezone string, top int) ([]Event, error) {
	params := url.Values{}
	params.Set("startDateTime", start.UTC().Format(time.RFC3339))
	params.Set("endDateTime", end.UTC().Format(time.RFC3339))
	params.Set("$orderby", "start/dateTime")
	params.Set("$top", strconv.Itoa(top))
	params.Set("$select", "id,subject,start,end,location,isAllDay")

	prefer := ""
	if timezone != "" {
		prefer = fmt.Sprintf(`outlook.timezone="%s"`, timezone)
	}

	var out listResponse[Event]
	if err := c.get(ctx, accessToken, "/me/calendarView", params, prefer, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *client) get(ctx context.Context, accessToken, path string, params url.Values, prefer string, dest interface{}) error {
	endpoint := c.config.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return apperrors.NewProviderError(path, resp.StatusCode, readBody(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// readBody drains up to 4KB of an error response for diagnostics.
func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(b)
}
