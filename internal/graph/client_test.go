package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	c := NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scopes:       "offline_access Mail.Read",
		TokenURL:     server.URL + "/token",
		BaseURL:      server.URL,
	})
	return c, server
}

func TestRefreshToken_Success(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))

		json.NewEncoder(w).Encode(Token{
			AccessToken:  "at-new",
			RefreshToken: "rt-new",
			ExpiresIn:    3600,
			TokenType:    "Bearer",
		})
	}))
	defer server.Close()

	token, err := c.RefreshToken(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-new", token.AccessToken)
	assert.Equal(t, "rt-new", token.RefreshToken)
	assert.Equal(t, 3600, token.ExpiresIn)
}

func TestRefreshToken_ProviderMayOmitRefreshToken(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Token{AccessToken: "at-new", ExpiresIn: 3600})
	}))
	defer server.Close()

	token, err := c.RefreshToken(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-new", token.AccessToken)
	assert.Empty(t, token.RefreshToken)
}

func TestRefreshToken_NonSuccessStatus(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	_, err := c.RefreshToken(context.Background(), "rt-revoked")
	require.Error(t, err)

	var provErr *apperrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.StatusCode)
	assert.Equal(t, "token_refresh", provErr.Operation)
}

func TestExchangeCode_SendsAuthorizationCodeGrant(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://app.example/callback", r.PostForm.Get("redirect_uri"))
		json.NewEncoder(w).Encode(Token{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600})
	}))
	defer server.Close()

	token, err := c.ExchangeCode(context.Background(), "the-code", "https://app.example/callback")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
}

func TestListMessages_QueryAndDecode(t *testing.T) {
	received := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/mailFolders/inbox/messages", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("$filter"), "receivedDateTime ge ")
		assert.Equal(t, "receivedDateTime desc", r.URL.Query().Get("$orderby"))
		assert.Equal(t, "50", r.URL.Query().Get("$top"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []Message{{
				ID:               "msg-1",
				Subject:          "Help",
				Body:             ItemBody{ContentType: "text", Content: "please help"},
				From:             Recipient{EmailAddress: EmailAddress{Address: "Customer@Example.COM", Name: "Cust Omer"}},
				ReceivedDateTime: received,
				ConversationID:   "conv-1",
			}},
		})
	}))
	defer server.Close()

	msgs, err := c.ListMessages(context.Background(), "at-1", received.Add(-time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg-1", msgs[0].ID)
	assert.Equal(t, "customer@example.com", msgs[0].SenderAddress())
	assert.Equal(t, "Cust Omer", msgs[0].SenderName())
	assert.True(t, msgs[0].ReceivedDateTime.Equal(received))
}

func TestListMessages_AuthError(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken"}}`))
	}))
	defer server.Close()

	_, err := c.ListMessages(context.Background(), "at-stale", time.Now(), 50)
	var provErr *apperrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.True(t, provErr.IsAuth())
}

func TestMarkMessageRead(t *testing.T) {
	var patched bool
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/me/messages/msg-1", r.URL.Path)
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["isRead"])
		patched = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, c.MarkMessageRead(context.Background(), "at-1", "msg-1"))
	assert.True(t, patched)
}

func TestListCalendarView_PreferHeaderAndWindow(t *testing.T) {
	c, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/calendarView", r.URL.Path)
		assert.Equal(t, `outlook.timezone="Europe/Berlin"`, r.Header.Get("Prefer"))
		assert.NotEmpty(t, r.URL.Query().Get("startDateTime"))
		assert.NotEmpty(t, r.URL.Query().Get("endDateTime"))
		assert.Equal(t, "5", r.URL.Query().Get("$top"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []Event{{
				ID:      "ev-1",
				Subject: "Standup",
				Start:   DateTimeTimeZone{DateTime: "2026-02-10T10:00:00.0000000", TimeZone: "UTC"},
				End:     DateTimeTimeZone{DateTime: "2026-02-10T10:15:00.0000000", TimeZone: "UTC"},
			}},
		})
	}))
	defer server.Close()

	now := time.Now().UTC()
	events, err := c.ListCalendarView(context.Background(), "at-1", now, now.Add(15*time.Minute), "Europe/Berlin", 5)
	require.NoError(t, err)
	require.Len(t, events, 1)

	start, err := events[0].Start.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC), start.UTC())
}

func TestDateTimeTimeZone_Time(t *testing.T) {
	tests := []struct {
		name  string
		input DateTimeTimeZone
		want  time.Time
	}{
		{
			"utc with fraction",
			DateTimeTimeZone{DateTime: "2026-03-01T08:00:00.1234567", TimeZone: "UTC"},
			time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			"no fraction",
			DateTimeTimeZone{DateTime: "2026-03-01T08:00:00", TimeZone: "UTC"},
			time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			"unknown zone falls back to utc",
			DateTimeTimeZone{DateTime: "2026-03-01T08:00:00", TimeZone: "Not/AZone"},
			time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.Time()
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want))
		})
	}
}
