package repository

import (
	"context"
	"errors"
	"time"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
)

// ErrNotFound is returned when a row addressed by folder and name does not
// exist.
var ErrNotFound = errors.New("not found")

// GroupRepository persists the groups of group folders.
type GroupRepository interface {
	// Create inserts the group and its members.
	Create(ctx context.Context, group *models.Group) error
	GetByName(ctx context.Context, folder, name string) (*models.Group, error)
	// ListByFolder returns the folder's groups by name, members in order.
	ListByFolder(ctx context.Context, folder string) ([]models.Group, error)
	Delete(ctx context.Context, folder, name string) error
	ReplaceMembers(ctx context.Context, folder, name string, members []string) error
}

// PrincipalRepository persists the internal principals of principal folders.
type PrincipalRepository interface {
	Create(ctx context.Context, principal *models.Principal) error
	GetByName(ctx context.Context, folder, name string) (*models.Principal, error)
	ListByFolder(ctx context.Context, folder string) ([]models.Principal, error)
	Delete(ctx context.Context, folder, name string) error
	UpdateLogin(ctx context.Context, folder, name, login string) error
	UpdatePassword(ctx context.Context, folder, name, hash, manager string) error
}

// RevokedTokenRepository is the bearer token denylist.
type RevokedTokenRepository interface {
	Revoke(ctx context.Context, jti, subject string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, gracePeriod time.Duration) (int64, error)
}
