package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bizdesk/bizdesk-backend/internal/api/response"
	"github.com/bizdesk/bizdesk-backend/internal/graph"
	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// OAuthConfig holds what the authorization-code flow needs beyond the
// provider client itself.
type OAuthConfig struct {
	ClientID          string
	Scopes            string
	RedirectURL       string
	AuthorizeEndpoint string
}

// OAuthHandler drives the provider connect/disconnect flow for both scopes:
// a tenant's support mailbox and a user's calendar.
type OAuthHandler struct {
	config      OAuthConfig
	provider    graph.Client
	credentials repository.CredentialRepository
	tenants     repository.TenantRepository
	users       repository.UserRepository
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(
	config OAuthConfig,
	provider graph.Client,
	credentials repository.CredentialRepository,
	tenants repository.TenantRepository,
	users repository.UserRepository,
) *OAuthHandler {
	return &OAuthHandler{
		config:      config,
		provider:    provider,
		credentials: credentials,
		tenants:     tenants,
		users:       users,
	}
}

// Connect handles GET /api/v1/oauth/connect. It validates the scope target
// exists and returns the provider authorization URL with the scope encoded
// in the state parameter.
func (h *OAuthHandler) Connect(c echo.Context) error {
	scopeType := models.CredentialScope(c.QueryParam("scope_type"))
	scopeID := c.QueryParam("scope_id")

	if scopeType != models.ScopeTenant && scopeType != models.ScopeUser {
		return response.BadRequest(c, "scope_type must be 'tenant' or 'user'")
	}
	if scopeID == "" {
		return response.BadRequest(c, "scope_id is required")
	}

	ctx := c.Request().Context()
	var err error
	if scopeType == models.ScopeTenant {
		_, err = h.tenants.GetByID(ctx, scopeID)
	} else {
		_, err = h.users.GetByID(ctx, scopeID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, fmt.Sprintf("%s not found", scopeType))
		}
		return response.InternalError(c, "failed to load scope target")
	}

	state := fmt.Sprintf("%s:%s", scopeType, scopeID)
	authorize, err := url.Parse(h.config.AuthorizeEndpoint)
	if err != nil {
		return response.InternalError(c, "invalid authorize endpoint")
	}
	q := authorize.Query()
	q.Set("client_id", h.config.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", h.config.RedirectURL)
	q.Set("response_mode", "query")
	q.Set("scope", h.config.Scopes)
	q.Set("state", state)
	authorize.RawQuery = q.Encode()

	return response.Success(c, map[string]string{
		"authorize_url": authorize.String(),
	})
}

// Callback handles GET /api/v1/oauth/callback. It redeems the code, asks the
// provider who authorized it and stores the credential for the scope carried
// in state.
func (h *OAuthHandler) Callback(c echo.Context) error {
	if errParam := c.QueryParam("error"); errParam != "" {
		return response.BadRequest(c, fmt.Sprintf("provider returned error: %s", errParam))
	}

	code := c.QueryParam("code")
	if code == "" {
		return response.BadRequest(c, "code is required")
	}

	scopeType, scopeID, err := parseState(c.QueryParam("state"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	token, err := h.provider.ExchangeCode(ctx, code, h.config.RedirectURL)
	if err != nil {
		return response.Error(c, fmt.Errorf("code exchange failed: %w", err))
	}
	if token.RefreshToken == "" {
		// Without a refresh token the connection dies with the first access
		// token; treat it as a failed connect rather than store a dud.
		return response.BadRequest(c, "provider granted no refresh token; check the offline_access scope")
	}

	profile, err := h.provider.Me(ctx, token.AccessToken)
	if err != nil {
		return response.Error(c, fmt.Errorf("profile lookup failed: %w", err))
	}

	expires := time.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
	cred := &models.Credential{
		ID:             uuid.NewString(),
		ScopeType:      scopeType,
		ScopeID:        scopeID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ExpiresAt:      &expires,
		ConnectedEmail: profile.Address(),
	}
	if err := h.credentials.Upsert(ctx, cred); err != nil {
		return response.Error(c, fmt.Errorf("failed to store credential: %w", err))
	}

	return response.SuccessWithMessage(c, map[string]string{
		"scope_type":      string(scopeType),
		"scope_id":        scopeID,
		"connected_email": cred.ConnectedEmail,
	}, "connected")
}

// Status handles GET /api/v1/oauth/status
func (h *OAuthHandler) Status(c echo.Context) error {
	scopeType := models.CredentialScope(c.QueryParam("scope_type"))
	scopeID := c.QueryParam("scope_id")
	if scopeID == "" || (scopeType != models.ScopeTenant && scopeType != models.ScopeUser) {
		return response.BadRequest(c, "scope_type and scope_id are required")
	}

	cred, err := h.credentials.GetByScope(c.Request().Context(), scopeType, scopeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Success(c, map[string]interface{}{"connected": false})
		}
		return response.InternalError(c, "failed to load credential")
	}

	return response.Success(c, map[string]interface{}{
		"connected":       cred.Connected(),
		"connected_email": cred.ConnectedEmail,
	})
}

// Disconnect handles DELETE /api/v1/oauth/connection
func (h *OAuthHandler) Disconnect(c echo.Context) error {
	scopeType := models.CredentialScope(c.QueryParam("scope_type"))
	scopeID := c.QueryParam("scope_id")
	if scopeID == "" || (scopeType != models.ScopeTenant && scopeType != models.ScopeUser) {
		return response.BadRequest(c, "scope_type and scope_id are required")
	}

	if err := h.credentials.Delete(c.Request().Context(), scopeType, scopeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "no connection for scope")
		}
		return response.InternalError(c, "failed to disconnect")
	}
	return response.NoContent(c)
}

func parseState(state string) (models.CredentialScope, string, error) {
	for i := 0; i < len(state); i++ {
		if state[i] == ':' {
			scopeType := models.CredentialScope(state[:i])
			scopeID := state[i+1:]
			if (scopeType == models.ScopeTenant || scopeType == models.ScopeUser) && scopeID != "" {
				return scopeType, scopeID, nil
			}
			break
		}
	}
	return "", "", fmt.Errorf("invalid state parameter")
}
