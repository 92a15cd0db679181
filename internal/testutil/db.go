// Package testutil provides sqlite-backed fixtures shared by package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/eventhub/internal/config"
	"github.com/example/eventhub/internal/database"
	"github.com/example/eventhub/internal/models"
	"github.com/example/eventhub/internal/utils"
)

// JWTSecret signs every token minted by the helpers.
const JWTSecret = "test-jwt-secret"

// NewDB opens a migrated sqlite database in a temp dir that is removed with t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "eventhub-test.db")
	conn, err := database.Open(config.DriverSQLite, path, logger.Silent)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(conn); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { database.Close(conn) })

	return conn
}

// CreateUser inserts a user with role and returns its identity.
func CreateUser(t *testing.T, db *gorm.DB, role models.Role) models.Identity {
	t.Helper()

	id := uuid.New()
	user := models.User{
		BaseModel:    models.BaseModel{ID: id},
		Email:        fmt.Sprintf("%s-%s@example.com", role, id.String()[:8]),
		Name:         string(role),
		PasswordHash: "unused",
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create %s user: %v", role, err)
	}

	return models.Identity{UserID: id, Role: role}
}

// Token mints a one-hour bearer token for identity.
func Token(t *testing.T, identity models.Identity) string {
	t.Helper()

	token, err := utils.GenerateToken(JWTSecret, identity, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}
