package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/terraconstructs/pluggableauth/internal/db/bunx"
	"github.com/terraconstructs/pluggableauth/internal/db/models"
	"github.com/uptrace/bun"
)

// BunPrincipalRepository implements PrincipalRepository using Bun ORM
type BunPrincipalRepository struct {
	db bun.IDB
}

// NewBunPrincipalRepository creates a new Bun-based principal repository
func NewBunPrincipalRepository(db bun.IDB) *BunPrincipalRepository {
	return &BunPrincipalRepository{db: db}
}

// Create inserts a new principal
func (r *BunPrincipalRepository) Create(ctx context.Context, principal *models.Principal) error {
	if principal.ID == "" {
		principal.ID = bunx.NewUUIDv7()
	}

	_, err := r.db.NewInsert().
		Model(principal).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

// GetByName retrieves a principal by folder and name
func (r *BunPrincipalRepository) GetByName(ctx context.Context, folder, name string) (*models.Principal, error) {
	principal := new(models.Principal)
	err := r.db.NewSelect().
		Model(principal).
		Where("folder = ?", folder).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("principal %s/%s: %w", folder, name, ErrNotFound)
		}
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return principal, nil
}

// ListByFolder returns every principal of folder ordered by name
func (r *BunPrincipalRepository) ListByFolder(ctx context.Context, folder string) ([]models.Principal, error) {
	var principals []models.Principal
	err := r.db.NewSelect().
		Model(&principals).
		Where("folder = ?", folder).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	return principals, nil
}

// Delete removes a principal
func (r *BunPrincipalRepository) Delete(ctx context.Context, folder, name string) error {
	result, err := r.db.NewDelete().
		Model((*models.Principal)(nil)).
		Where("folder = ?", folder).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	return requireRow(result, "principal", folder, name)
}

// UpdateLogin changes the login of a principal
func (r *BunPrincipalRepository) UpdateLogin(ctx context.Context, folder, name, login string) error {
	result, err := r.db.NewUpdate().
		Model((*models.Principal)(nil)).
		Set("login = ?", login).
		Set("updated_at = ?", time.Now()).
		Where("folder = ?", folder).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update principal login: %w", err)
	}
	return requireRow(result, "principal", folder, name)
}

// UpdatePassword stores a new encoded password and the manager that encoded it
func (r *BunPrincipalRepository) UpdatePassword(ctx context.Context, folder, name, hash, manager string) error {
	result, err := r.db.NewUpdate().
		Model((*models.Principal)(nil)).
		Set("password_hash = ?", hash).
		Set("password_manager = ?", manager).
		Set("updated_at = ?", time.Now()).
		Where("folder = ?", folder).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update principal password: %w", err)
	}
	return requireRow(result, "principal", folder, name)
}

func requireRow(result sql.Result, kind, folder, name string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s/%s: %w", kind, folder, name, ErrNotFound)
	}
	return nil
}
