package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
	"github.com/bizdesk/bizdesk-backend/internal/graph"
	"github.com/bizdesk/bizdesk-backend/internal/logger"
	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
)

// RefreshSkew is the safety margin before expiry. A token inside this margin
// is refreshed before use.
const RefreshSkew = 5 * time.Minute

// TokenService manages the OAuth token lifecycle for all scopes. It is the
// only component that talks to the provider's token endpoint and the only
// writer of credential token fields.
type TokenService struct {
	credentials repository.CredentialRepository
	provider    graph.Client
	secLog      *logger.SecurityLogger
	log         *slog.Logger

	// now is injectable for boundary tests.
	now func() time.Time
}

// NewTokenService creates a TokenService
func NewTokenService(
	credentials repository.CredentialRepository,
	provider graph.Client,
	secLog *logger.SecurityLogger,
	log *slog.Logger,
) *TokenService {
	return &TokenService{
		credentials: credentials,
		provider:    provider,
		secLog:      secLog,
		log:         log,
		now:         time.Now,
	}
}

// GetValidToken returns a currently valid access token for the scope,
// refreshing and persisting first when the stored one is within RefreshSkew
// of expiry. Returns ErrNotConnected when the scope has no refresh token or
// when the provider rejected it; the latter clears the credential so the
// scope surfaces as "needs reconnection" instead of retrying forever.
func (s *TokenService) GetValidToken(ctx context.Context, scopeType models.CredentialScope, scopeID string) (string, error) {
	cred, err := s.credentials.GetByScope(ctx, scopeType, scopeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.ErrNotConnected
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	if !cred.Connected() {
		return "", apperrors.ErrNotConnected
	}

	if cred.AccessToken != "" && cred.ExpiresAt != nil &&
		cred.ExpiresAt.After(s.now().Add(RefreshSkew)) {
		return cred.AccessToken, nil
	}

	token, err := s.provider.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		var provErr *apperrors.ProviderError
		if errors.As(err, &provErr) {
			// The provider answered and said no. A stale refresh token will
			// keep failing, so this is a one-way transition to disconnected.
			if clearErr := s.credentials.Clear(ctx, scopeType, scopeID); clearErr != nil {
				s.log.Error("failed to clear credential after refresh rejection",
					slog.String("scope_type", string(scopeType)),
					slog.String("scope_id", scopeID),
					slog.String("error", clearErr.Error()))
			}
			s.secLog.CredentialRevoked(string(scopeType), scopeID, "refresh_rejected")
			return "", apperrors.ErrNotConnected
		}
		// Network-level failure: the refresh token may still be good, keep it
		// and let the next scheduled run retry.
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	expires := s.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	cred.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}
	cred.ExpiresAt = &expires

	// Persist before returning so a concurrent caller for the same scope
	// sees the refreshed pair instead of redeeming the old one again.
	if err := s.credentials.Upsert(ctx, cred); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credential: %w", err)
	}
	s.secLog.CredentialRefreshed(string(scopeType), scopeID, expires)

	return token.AccessToken, nil
}

// Disconnect force-clears a scope's credential. Used when the provider
// reports an authentication failure mid-poll, i.e. the server noticed the
// revocation before the local expiry tracking did.
func (s *TokenService) Disconnect(ctx context.Context, scopeType models.CredentialScope, scopeID, reason string) {
	if err := s.credentials.Clear(ctx, scopeType, scopeID); err != nil {
		s.log.Error("failed to clear credential",
			slog.String("scope_type", string(scopeType)),
			slog.String("scope_id", scopeID),
			slog.String("error", err.Error()))
		return
	}
	s.secLog.CredentialRevoked(string(scopeType), scopeID, reason)
}
