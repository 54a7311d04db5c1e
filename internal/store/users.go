package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"rh-portal-be/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindUserByLogin looks a user up by matricula or e-mail. Returns nil when
// neither matches.
func (s *Store) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("matricula = ? OR email = ?", login, login).
		Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
