package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CredentialRepositoryTestSuite is the test suite for CredentialRepository
type CredentialRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo CredentialRepository
}

// SetupSuite runs once before all tests
func (s *CredentialRepositoryTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	err = db.AutoMigrate(&models.Credential{})
	require.NoError(s.T(), err)

	s.db = db
	s.repo = NewCredentialRepository(db)
}

// TearDownSuite runs once after all tests
func (s *CredentialRepositoryTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test
func (s *CredentialRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM credentials")
}

func (s *CredentialRepositoryTestSuite) TestUpsertAndGet() {
	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	cred := &models.Credential{
		ScopeType:      models.ScopeTenant,
		ScopeID:        "tenant-1",
		AccessToken:    "at-1",
		RefreshToken:   "rt-1",
		ExpiresAt:      &expires,
		ConnectedEmail: "support@acme.example",
	}
	require.NoError(s.T(), s.repo.Upsert(context.Background(), cred))

	got, err := s.repo.GetByScope(context.Background(), models.ScopeTenant, "tenant-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "at-1", got.AccessToken)
	assert.Equal(s.T(), "rt-1", got.RefreshToken)
	assert.True(s.T(), got.Connected())
}

func (s *CredentialRepositoryTestSuite) TestUpsertReplacesExistingScope() {
	cred := &models.Credential{
		ScopeType:    models.ScopeTenant,
		ScopeID:      "tenant-1",
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
	}
	require.NoError(s.T(), s.repo.Upsert(context.Background(), cred))

	refreshed := &models.Credential{
		ScopeType:    models.ScopeTenant,
		ScopeID:      "tenant-1",
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
	}
	require.NoError(s.T(), s.repo.Upsert(context.Background(), refreshed))

	var count int64
	s.db.Model(&models.Credential{}).Count(&count)
	assert.Equal(s.T(), int64(1), count)

	got, err := s.repo.GetByScope(context.Background(), models.ScopeTenant, "tenant-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "at-new", got.AccessToken)
	assert.Equal(s.T(), "rt-new", got.RefreshToken)
}

func (s *CredentialRepositoryTestSuite) TestClearKeepsRow() {
	expires := time.Now().UTC().Add(time.Hour)
	cred := &models.Credential{
		ScopeType:      models.ScopeUser,
		ScopeID:        "user-1",
		AccessToken:    "at",
		RefreshToken:   "rt",
		ExpiresAt:      &expires,
		ConnectedEmail: "alice@acme.example",
	}
	require.NoError(s.T(), s.repo.Upsert(context.Background(), cred))

	require.NoError(s.T(), s.repo.Clear(context.Background(), models.ScopeUser, "user-1"))

	got, err := s.repo.GetByScope(context.Background(), models.ScopeUser, "user-1")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), got.AccessToken)
	assert.Empty(s.T(), got.RefreshToken)
	assert.Nil(s.T(), got.ExpiresAt)
	assert.Empty(s.T(), got.ConnectedEmail)
	assert.False(s.T(), got.Connected())
}

func (s *CredentialRepositoryTestSuite) TestListConnectedSkipsCleared() {
	for _, c := range []*models.Credential{
		{ScopeType: models.ScopeUser, ScopeID: "user-1", RefreshToken: "rt-1"},
		{ScopeType: models.ScopeUser, ScopeID: "user-2", RefreshToken: "rt-2"},
		{ScopeType: models.ScopeTenant, ScopeID: "tenant-1", RefreshToken: "rt-t"},
	} {
		require.NoError(s.T(), s.repo.Upsert(context.Background(), c))
	}
	require.NoError(s.T(), s.repo.Clear(context.Background(), models.ScopeUser, "user-2"))

	connected, err := s.repo.ListConnected(context.Background(), models.ScopeUser)
	require.NoError(s.T(), err)
	require.Len(s.T(), connected, 1)
	assert.Equal(s.T(), "user-1", connected[0].ScopeID)
}

func (s *CredentialRepositoryTestSuite) TestGetByScopeNotFound() {
	_, err := s.repo.GetByScope(context.Background(), models.ScopeTenant, "missing")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *CredentialRepositoryTestSuite) TestDelete() {
	cred := &models.Credential{ScopeType: models.ScopeTenant, ScopeID: "tenant-1", RefreshToken: "rt"}
	require.NoError(s.T(), s.repo.Upsert(context.Background(), cred))

	require.NoError(s.T(), s.repo.Delete(context.Background(), models.ScopeTenant, "tenant-1"))
	assert.ErrorIs(s.T(),
		s.repo.Delete(context.Background(), models.ScopeTenant, "tenant-1"), ErrNotFound)
}

// TestCredentialRepositoryTestSuite runs the test suite
func TestCredentialRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(CredentialRepositoryTestSuite))
}
