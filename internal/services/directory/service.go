// Package directory keeps group and principal folders in sync with the
// database. Every change is applied to the in-memory folder first, which
// enforces the folder invariants, and is then stored in one transaction. A
// change that cannot be stored is reverted in memory.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-logr/logr"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
	"github.com/terraconstructs/pluggableauth/internal/graph"
	"github.com/terraconstructs/pluggableauth/internal/plugins/groupfolder"
	"github.com/terraconstructs/pluggableauth/internal/plugins/principalfolder"
	"github.com/terraconstructs/pluggableauth/internal/repository"
)

var (
	// ErrUnknownFolder is returned for a folder key that was never registered.
	ErrUnknownFolder = errors.New("unknown folder")

	// ErrNoSuchEntry is returned when a group or principal is not in its folder.
	ErrNoSuchEntry = errors.New("no such entry")
)

// Service manages the registered folders. A nil database keeps every change
// in memory only.
type Service struct {
	db         *bun.DB
	log        logr.Logger
	groups     map[string]*groupfolder.GroupFolder
	principals map[string]*principalfolder.PrincipalFolder
}

type Option func(*Service)

func WithLogger(l logr.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService constructs a service with no folders registered.
func NewService(db *bun.DB, opts ...Option) *Service {
	s := &Service{
		db:         db,
		log:        logr.Discard(),
		groups:     make(map[string]*groupfolder.GroupFolder),
		principals: make(map[string]*principalfolder.PrincipalFolder),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterGroupFolder makes f available under key, the folder column of its
// stored rows.
func (s *Service) RegisterGroupFolder(key string, f *groupfolder.GroupFolder) {
	s.groups[key] = f
}

// RegisterPrincipalFolder makes f available under key.
func (s *Service) RegisterPrincipalFolder(key string, f *principalfolder.PrincipalFolder) {
	s.principals[key] = f
}

// GroupFolders lists the registered group folder keys.
func (s *Service) GroupFolders() []string {
	keys := make([]string, 0, len(s.groups))
	for k := range s.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupFolder returns the folder registered under key.
func (s *Service) GroupFolder(key string) (*groupfolder.GroupFolder, error) {
	f, ok := s.groups[key]
	if !ok {
		return nil, fmt.Errorf("%w: group folder %q", ErrUnknownFolder, key)
	}
	return f, nil
}

// PrincipalFolder returns the folder registered under key.
func (s *Service) PrincipalFolder(key string) (*principalfolder.PrincipalFolder, error) {
	f, ok := s.principals[key]
	if !ok {
		return nil, fmt.Errorf("%w: principal folder %q", ErrUnknownFolder, key)
	}
	return f, nil
}

// persist runs fn in a transaction. It is a no-op without a database.
func (s *Service) persist(ctx context.Context, fn func(ctx context.Context, groups repository.GroupRepository, principals repository.PrincipalRepository) error) error {
	if s.db == nil {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, repository.NewBunGroupRepository(tx), repository.NewBunPrincipalRepository(tx))
	})
}

// Load fills the registered folders from the database. Groups are stored
// without the cycle check; stored memberships were checked when written.
func (s *Service) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	groupRepo := repository.NewBunGroupRepository(s.db)
	principalRepo := repository.NewBunPrincipalRepository(s.db)

	for key, f := range s.principals {
		rows, err := principalRepo.ListByFolder(ctx, key)
		if err != nil {
			return fmt.Errorf("load principal folder %q: %w", key, err)
		}
		for _, row := range rows {
			p := principalfolder.RestoreInternalPrincipal(row.Login, row.PasswordHash, row.Title, row.Description, row.PasswordManager)
			if err := f.Set(row.Name, p); err != nil {
				return fmt.Errorf("load principal %q into %q: %w", row.Name, key, err)
			}
		}
		s.log.Info("loaded principal folder", "folder", key, "principals", len(rows))
	}

	for key, f := range s.groups {
		rows, err := groupRepo.ListByFolder(ctx, key)
		if err != nil {
			return fmt.Errorf("load group folder %q: %w", key, err)
		}
		for _, row := range rows {
			info := groupfolder.NewGroupInformation(row.Title, row.Description, row.MemberIDs()...)
			if err := f.Set(ctx, row.Name, info); err != nil {
				return fmt.Errorf("load group %q into %q: %w", row.Name, key, err)
			}
		}
		s.log.Info("loaded group folder", "folder", key, "groups", len(rows))
	}
	return nil
}

// AddGroup stores a new group. Its members are checked for cycles before
// the row is written, and no event is published unless both succeed.
func (s *Service) AddGroup(ctx context.Context, folder, name, title, description string, members []string) error {
	f, err := s.GroupFolder(folder)
	if err != nil {
		return err
	}

	info := groupfolder.NewGroupInformation(title, description, members...)
	err = f.Insert(ctx, name, info, func(ctx context.Context) error {
		err := s.persist(ctx, func(ctx context.Context, groups repository.GroupRepository, _ repository.PrincipalRepository) error {
			return groups.Create(ctx, &models.Group{
				Folder:      folder,
				Name:        name,
				Title:       title,
				Description: description,
				Members:     memberRows(info.Principals()),
			})
		})
		if err != nil {
			return fmt.Errorf("store group %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.V(1).Info("group added", "folder", folder, "group", name, "members", len(members))
	return nil
}

func memberRows(ids []string) []models.GroupMember {
	rows := make([]models.GroupMember, len(ids))
	for i, id := range ids {
		rows[i] = models.GroupMember{Position: i, PrincipalID: id}
	}
	return rows
}

// RemoveGroup deletes a group and its memberships.
func (s *Service) RemoveGroup(ctx context.Context, folder, name string) error {
	f, err := s.GroupFolder(folder)
	if err != nil {
		return err
	}
	if !f.Contains(name) {
		return fmt.Errorf("%w: group %q in %q", ErrNoSuchEntry, name, folder)
	}

	err = f.Remove(ctx, name, func(ctx context.Context) error {
		err := s.persist(ctx, func(ctx context.Context, groups repository.GroupRepository, _ repository.PrincipalRepository) error {
			return groups.Delete(ctx, folder, name)
		})
		if err != nil {
			return fmt.Errorf("delete group %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.V(1).Info("group removed", "folder", folder, "group", name)
	return nil
}

// SetGroupMembers replaces a group's members. A membership that would close
// a cycle is rejected with a *groupfolder.GroupCycleError.
func (s *Service) SetGroupMembers(ctx context.Context, folder, name string, members []string) error {
	f, err := s.GroupFolder(folder)
	if err != nil {
		return err
	}
	info, ok := f.Get(name)
	if !ok {
		return fmt.Errorf("%w: group %q in %q", ErrNoSuchEntry, name, folder)
	}

	return info.UpdatePrincipals(ctx, members, func(ctx context.Context) error {
		err := s.persist(ctx, func(ctx context.Context, groups repository.GroupRepository, _ repository.PrincipalRepository) error {
			return groups.ReplaceMembers(ctx, folder, name, members)
		})
		if err != nil {
			return fmt.Errorf("store members of %q: %w", name, err)
		}
		return nil
	})
}

// AddPrincipal stores a new internal principal with its password encoded by
// managerName (the default manager when empty).
func (s *Service) AddPrincipal(ctx context.Context, folder, name, login, clear, title, description, managerName string) error {
	f, err := s.PrincipalFolder(folder)
	if err != nil {
		return err
	}
	p, err := principalfolder.NewInternalPrincipal(login, clear, title, description, managerName)
	if err != nil {
		return err
	}
	if err := f.Set(name, p); err != nil {
		return err
	}

	err = s.persist(ctx, func(ctx context.Context, _ repository.GroupRepository, principals repository.PrincipalRepository) error {
		return principals.Create(ctx, &models.Principal{
			Folder:          folder,
			Name:            name,
			Login:           p.Login(),
			PasswordHash:    p.EncodedPassword(),
			PasswordManager: p.PasswordManagerName(),
			Title:           title,
			Description:     description,
		})
	})
	if err != nil {
		return s.reverted(fmt.Errorf("store principal %q: %w", name, err), f.Delete(name))
	}
	s.log.V(1).Info("principal added", "folder", folder, "principal", name, "login", login)
	return nil
}

// RemovePrincipal deletes an internal principal. Group memberships naming
// it are left alone.
func (s *Service) RemovePrincipal(ctx context.Context, folder, name string) error {
	f, err := s.PrincipalFolder(folder)
	if err != nil {
		return err
	}
	p, ok := f.Get(name)
	if !ok {
		return fmt.Errorf("%w: principal %q in %q", ErrNoSuchEntry, name, folder)
	}
	if err := f.Delete(name); err != nil {
		return err
	}

	err = s.persist(ctx, func(ctx context.Context, _ repository.GroupRepository, principals repository.PrincipalRepository) error {
		return principals.Delete(ctx, folder, name)
	})
	if err != nil {
		return s.reverted(fmt.Errorf("delete principal %q: %w", name, err), f.Set(name, p))
	}
	return nil
}

// ChangeLogin renames a principal's login. A login taken in the folder is
// rejected with principalfolder.ErrLoginTaken.
func (s *Service) ChangeLogin(ctx context.Context, folder, name, login string) error {
	p, err := s.principal(folder, name)
	if err != nil {
		return err
	}
	old := p.Login()
	if err := p.SetLogin(login); err != nil {
		return err
	}

	err = s.persist(ctx, func(ctx context.Context, _ repository.GroupRepository, principals repository.PrincipalRepository) error {
		return principals.UpdateLogin(ctx, folder, name, login)
	})
	if err != nil {
		return s.reverted(fmt.Errorf("store login of %q: %w", name, err), p.SetLogin(old))
	}
	return nil
}

// SetPassword re-encodes a principal's password, switching to managerName
// when it is not empty.
func (s *Service) SetPassword(ctx context.Context, folder, name, clear, managerName string) error {
	p, err := s.principal(folder, name)
	if err != nil {
		return err
	}
	oldEncoded, oldManager := p.EncodedPassword(), p.PasswordManagerName()
	if err := p.SetPassword(clear, managerName); err != nil {
		return err
	}

	err = s.persist(ctx, func(ctx context.Context, _ repository.GroupRepository, principals repository.PrincipalRepository) error {
		return principals.UpdatePassword(ctx, folder, name, p.EncodedPassword(), p.PasswordManagerName())
	})
	if err != nil {
		p.RestorePassword(oldEncoded, oldManager)
		return fmt.Errorf("store password of %q: %w", name, err)
	}
	return nil
}

// reverted joins a failed in-memory revert to the error that caused it.
func (s *Service) reverted(err, revertErr error) error {
	if revertErr == nil {
		return err
	}
	s.log.Error(revertErr, "revert in memory failed", "cause", err.Error())
	return errors.Join(err, revertErr)
}

func (s *Service) principal(folder, name string) (*principalfolder.InternalPrincipal, error) {
	f, err := s.PrincipalFolder(folder)
	if err != nil {
		return nil, err
	}
	p, ok := f.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: principal %q in %q", ErrNoSuchEntry, name, folder)
	}
	return p, nil
}

// AuditCycles reports membership cycles across every registered group
// folder, as may exist in data written before the cycle check.
func (s *Service) AuditCycles() ([][]string, error) {
	folders := make([]*groupfolder.GroupFolder, 0, len(s.groups))
	for _, key := range s.GroupFolders() {
		folders = append(folders, s.groups[key])
	}
	return groupfolder.AuditCycles(folders...)
}

// Closure lists the groups id reaches through every registered group folder,
// nearest first. It fails when the memberships contain a cycle.
func (s *Service) Closure(id string) ([]graph.Layer, error) {
	var edges []graph.Edge
	for _, key := range s.GroupFolders() {
		edges = append(edges, s.groups[key].Edges()...)
	}
	return graph.Layers(edges, id)
}
