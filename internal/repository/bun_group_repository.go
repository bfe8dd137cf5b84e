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

// BunGroupRepository implements GroupRepository using Bun ORM. db may be a
// *bun.DB or a bun.Tx.
type BunGroupRepository struct {
	db bun.IDB
}

// NewBunGroupRepository creates a new Bun-based group repository
func NewBunGroupRepository(db bun.IDB) *BunGroupRepository {
	return &BunGroupRepository{db: db}
}

func memberRows(groupID string, members []string) []models.GroupMember {
	rows := make([]models.GroupMember, len(members))
	for i, id := range members {
		rows[i] = models.GroupMember{GroupID: groupID, Position: i, PrincipalID: id}
	}
	return rows
}

// Create inserts the group row and its member rows
func (r *BunGroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = bunx.NewUUIDv7()
	}

	_, err := r.db.NewInsert().
		Model(group).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}

	if len(group.Members) == 0 {
		return nil
	}
	for i := range group.Members {
		group.Members[i].GroupID = group.ID
		group.Members[i].Position = i
	}
	if _, err := r.db.NewInsert().Model(&group.Members).Exec(ctx); err != nil {
		return fmt.Errorf("create group members: %w", err)
	}
	return nil
}

// GetByName retrieves a group with its members
func (r *BunGroupRepository) GetByName(ctx context.Context, folder, name string) (*models.Group, error) {
	group := new(models.Group)
	err := r.db.NewSelect().
		Model(group).
		Relation("Members", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("gm.position ASC")
		}).
		Where("g.folder = ?", folder).
		Where("g.name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s/%s: %w", folder, name, ErrNotFound)
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return group, nil
}

// ListByFolder returns every group of folder ordered by name
func (r *BunGroupRepository) ListByFolder(ctx context.Context, folder string) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.NewSelect().
		Model(&groups).
		Relation("Members", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("gm.position ASC")
		}).
		Where("g.folder = ?", folder).
		Order("g.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (r *BunGroupRepository) groupID(ctx context.Context, folder, name string) (string, error) {
	var id string
	err := r.db.NewSelect().
		Model((*models.Group)(nil)).
		Column("id").
		Where("folder = ?", folder).
		Where("name = ?", name).
		Scan(ctx, &id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("group %s/%s: %w", folder, name, ErrNotFound)
		}
		return "", fmt.Errorf("get group id: %w", err)
	}
	return id, nil
}

// Delete removes a group and its member rows
func (r *BunGroupRepository) Delete(ctx context.Context, folder, name string) error {
	id, err := r.groupID(ctx, folder, name)
	if err != nil {
		return err
	}

	if _, err := r.db.NewDelete().Model((*models.GroupMember)(nil)).Where("group_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete group members: %w", err)
	}
	if _, err := r.db.NewDelete().Model((*models.Group)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// ReplaceMembers overwrites the ordered member list of a group
func (r *BunGroupRepository) ReplaceMembers(ctx context.Context, folder, name string, members []string) error {
	id, err := r.groupID(ctx, folder, name)
	if err != nil {
		return err
	}

	if _, err := r.db.NewDelete().Model((*models.GroupMember)(nil)).Where("group_id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	if len(members) > 0 {
		rows := memberRows(id, members)
		if _, err := r.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert group members: %w", err)
		}
	}

	_, err = r.db.NewUpdate().
		Model((*models.Group)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch group: %w", err)
	}
	return nil
}
