package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/example/eventhub/internal/config"
	"github.com/example/eventhub/internal/models"
	"github.com/example/eventhub/internal/utils"
)

func findUser(ctx context.Context, db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no user with email %q", email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func issueToken(ctx context.Context, db *gorm.DB, cfg *config.Config, email string) (string, error) {
	user, err := findUser(ctx, db, email)
	if err != nil {
		return "", err
	}
	return utils.GenerateToken(cfg.JWTSecret, models.Identity{UserID: user.ID, Role: user.Role}, cfg.TokenExpires)
}

func promoteUser(ctx context.Context, db *gorm.DB, email, rawRole string) (*models.User, error) {
	role, ok := models.ParseRole(rawRole)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", rawRole)
	}

	user, err := findUser(ctx, db, email)
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	user.Role = role
	return user, nil
}
