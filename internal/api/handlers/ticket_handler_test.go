package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
	"github.com/bizdesk/bizdesk-backend/internal/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TicketHandlerTestSuite is the test suite for TicketHandler
type TicketHandlerTestSuite struct {
	suite.Suite
	echo    *echo.Echo
	db      *gorm.DB
	repo    repository.TicketRepository
	handler *TicketHandler
	tenant  *models.Tenant
}

// SetupTest runs before each test
func (s *TicketHandlerTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), db.AutoMigrate(
		&models.Tenant{}, &models.Client{}, &models.Ticket{}, &models.TicketMessage{}))

	s.echo = echo.New()
	s.db = db
	s.repo = repository.NewTicketRepository(db)
	s.handler = NewTicketHandler(s.repo, services.NewTicketService(s.repo))

	s.tenant = &models.Tenant{ID: uuid.NewString(), Name: "Acme GmbH"}
	require.NoError(s.T(), db.Create(s.tenant).Error)
}

// TestTicketHandlerTestSuite runs the test suite
func TestTicketHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TicketHandlerTestSuite))
}

func (s *TicketHandlerTestSuite) createContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	return c, rec
}

func (s *TicketHandlerTestSuite) createTicket(status models.TicketStatus) *models.Ticket {
	ticket := &models.Ticket{
		TenantID:       s.tenant.ID,
		Subject:        "Printer broken",
		SenderEmail:    "alice@client.example",
		Status:         status,
		Priority:       models.TicketPriorityNormal,
		LastActivityAt: time.Now().UTC(),
		ResponseCount:  1,
	}
	first, err := models.NewInboundEmail("", "it is broken", "alice@client.example", "Alice", uuid.NewString())
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.repo.CreateWithFirstMessage(context.Background(), ticket, first))
	if status != models.TicketStatusNew {
		ticket.Status = status
		require.NoError(s.T(), s.repo.Update(context.Background(), ticket))
	}
	return ticket
}

func (s *TicketHandlerTestSuite) TestList() {
	s.createTicket(models.TicketStatusNew)
	s.createTicket(models.TicketStatusOpen)

	c, rec := s.createContext(http.MethodGet, "/api/v1/tickets?tenant_id="+s.tenant.ID, "")
	require.NoError(s.T(), s.handler.List(c))
	s.Equal(http.StatusOK, rec.Code)

	var resp struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
		Meta    struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Success)
	s.Len(resp.Data, 2)
	s.EqualValues(2, resp.Meta.Total)
}

func (s *TicketHandlerTestSuite) TestListFiltersByStatus() {
	s.createTicket(models.TicketStatusNew)
	s.createTicket(models.TicketStatusOpen)

	c, rec := s.createContext(http.MethodGet,
		"/api/v1/tickets?tenant_id="+s.tenant.ID+"&status=open", "")
	require.NoError(s.T(), s.handler.List(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"total":1`)
}

func (s *TicketHandlerTestSuite) TestListRequiresTenant() {
	c, rec := s.createContext(http.MethodGet, "/api/v1/tickets", "")
	require.NoError(s.T(), s.handler.List(c))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *TicketHandlerTestSuite) TestListRejectsUnknownStatus() {
	c, rec := s.createContext(http.MethodGet,
		"/api/v1/tickets?tenant_id="+s.tenant.ID+"&status=bogus", "")
	require.NoError(s.T(), s.handler.List(c))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *TicketHandlerTestSuite) TestGetByID() {
	ticket := s.createTicket(models.TicketStatusNew)

	c, rec := s.createContext(http.MethodGet, "/api/v1/tickets/"+ticket.ID, "")
	c.SetParamNames("id")
	c.SetParamValues(ticket.ID)
	require.NoError(s.T(), s.handler.Get(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), ticket.Number)
}

func (s *TicketHandlerTestSuite) TestGetByNumber() {
	ticket := s.createTicket(models.TicketStatusNew)

	c, rec := s.createContext(http.MethodGet, "/api/v1/tickets/"+ticket.Number, "")
	c.SetParamNames("id")
	c.SetParamValues(ticket.Number)
	require.NoError(s.T(), s.handler.Get(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), ticket.ID)
}

func (s *TicketHandlerTestSuite) TestGetNotFound() {
	c, rec := s.createContext(http.MethodGet, "/api/v1/tickets/nope", "")
	c.SetParamNames("id")
	c.SetParamValues("nope")
	require.NoError(s.T(), s.handler.Get(c))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *TicketHandlerTestSuite) TestReply() {
	ticket := s.createTicket(models.TicketStatusNew)

	body := `{"agent_email":"agent@acme.example","agent_name":"Agent","body":"On it."}`
	c, rec := s.createContext(http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/reply", body)
	c.SetParamNames("id")
	c.SetParamValues(ticket.ID)
	require.NoError(s.T(), s.handler.Reply(c))
	s.Equal(http.StatusCreated, rec.Code)

	after, err := s.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(s.T(), err)
	s.Equal(models.TicketStatusOpen, after.Status)
	s.NotNil(after.FirstResponseAt)
}

func (s *TicketHandlerTestSuite) TestReplyValidation() {
	ticket := s.createTicket(models.TicketStatusNew)

	cases := []string{
		`{"agent_email":"agent@acme.example","body":""}`,
		`{"agent_email":"not-an-email","body":"hi"}`,
		`{"body":"hi"}`,
	}
	for _, body := range cases {
		c, rec := s.createContext(http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/reply", body)
		c.SetParamNames("id")
		c.SetParamValues(ticket.ID)
		require.NoError(s.T(), s.handler.Reply(c))
		s.Equal(http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func (s *TicketHandlerTestSuite) TestAddNote() {
	ticket := s.createTicket(models.TicketStatusNew)

	body := `{"agent_email":"agent@acme.example","body":"call them back"}`
	c, rec := s.createContext(http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/notes", body)
	c.SetParamNames("id")
	c.SetParamValues(ticket.ID)
	require.NoError(s.T(), s.handler.AddNote(c))
	s.Equal(http.StatusCreated, rec.Code)

	// Notes leave the status machine alone
	after, err := s.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(s.T(), err)
	s.Equal(models.TicketStatusNew, after.Status)
}

func (s *TicketHandlerTestSuite) TestChangeStatus() {
	ticket := s.createTicket(models.TicketStatusOpen)

	c, rec := s.createContext(http.MethodPatch, "/api/v1/tickets/"+ticket.ID+"/status",
		`{"status":"resolved"}`)
	c.SetParamNames("id")
	c.SetParamValues(ticket.ID)
	require.NoError(s.T(), s.handler.ChangeStatus(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"resolved"`)
}

func (s *TicketHandlerTestSuite) TestChangeStatusIllegalTransition() {
	ticket := s.createTicket(models.TicketStatusClosed)

	c, rec := s.createContext(http.MethodPatch, "/api/v1/tickets/"+ticket.ID+"/status",
		`{"status":"open"}`)
	c.SetParamNames("id")
	c.SetParamValues(ticket.ID)
	require.NoError(s.T(), s.handler.ChangeStatus(c))
	s.Equal(http.StatusConflict, rec.Code)
	s.Contains(rec.Body.String(), "INVALID_TRANSITION")
}

func (s *TicketHandlerTestSuite) TestChangeStatusUnknownTicket() {
	c, rec := s.createContext(http.MethodPatch, "/api/v1/tickets/"+uuid.NewString()+"/status",
		`{"status":"open"}`)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	require.NoError(s.T(), s.handler.ChangeStatus(c))
	s.Equal(http.StatusNotFound, rec.Code)
}
