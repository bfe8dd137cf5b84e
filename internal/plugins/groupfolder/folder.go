package groupfolder

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/pluggableauth/internal/container"
	"github.com/terraconstructs/pluggableauth/internal/event"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
	"github.com/terraconstructs/pluggableauth/internal/telemetry"
)

const tracerName = "pauth/plugins/groupfolder"

// GroupFolder is a prefixed collection of groups that doubles as an
// authenticator plugin for group ids.
type GroupFolder struct {
	prefix string
	groups *container.Container[*GroupInformation]
	log    logr.Logger
	bus    *event.Bus
	source authn.PrincipalSource

	// writeMu serializes membership mutations, including their cycle check.
	writeMu sync.Mutex

	mu          sync.RWMutex
	byPrincipal map[string][]string
	scope       authn.Scope
	name        string
}

var (
	_ authn.AuthenticatorPlugin = (*GroupFolder)(nil)
	_ authn.Searchable          = (*GroupFolder)(nil)
	_ container.Locatable       = (*GroupFolder)(nil)
)

type Option func(*GroupFolder)

func WithLogger(l logr.Logger) Option {
	return func(f *GroupFolder) { f.log = l }
}

// WithEventBus publishes membership events on b instead of the scope's bus.
func WithEventBus(b *event.Bus) Option {
	return func(f *GroupFolder) { f.bus = b }
}

// WithPrincipalSource sets the lookup used by the cycle check. By default the
// enclosing scope is used, or the folder's own index outside a scope.
func WithPrincipalSource(src authn.PrincipalSource) Option {
	return func(f *GroupFolder) { f.source = src }
}

// New returns an empty folder whose group ids start with prefix.
func New(prefix string, opts ...Option) *GroupFolder {
	f := &GroupFolder{
		prefix:      prefix,
		log:         logr.Discard(),
		byPrincipal: make(map[string][]string),
	}
	f.groups = container.New[*GroupInformation](f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *GroupFolder) String() string {
	return fmt.Sprintf("GroupFolder(%q)", f.prefix)
}

func (f *GroupFolder) Prefix() string { return f.prefix }

// SetLocation records the authentication scope the folder is stored in.
func (f *GroupFolder) SetLocation(parent any, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scope, _ = parent.(authn.Scope)
	f.name = name
}

// Scope returns the enclosing authentication scope, or nil.
func (f *GroupFolder) Scope() authn.Scope {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.scope
}

func (f *GroupFolder) scopePrefix() string {
	if s := f.Scope(); s != nil {
		return s.Prefix()
	}
	return ""
}

func (f *GroupFolder) events() *event.Bus {
	if f.bus != nil {
		return f.bus
	}
	if s := f.Scope(); s != nil {
		return s.Events()
	}
	return nil
}

func (f *GroupFolder) lookup() authn.PrincipalSource {
	if f.source != nil {
		return f.source
	}
	if s := f.Scope(); s != nil {
		return s
	}
	return localSource{folder: f}
}

func (f *GroupFolder) publish(ctx context.Context, evs []any) {
	bus := f.events()
	for _, ev := range evs {
		bus.Notify(ctx, ev)
	}
}

// Get returns the group stored under name.
func (f *GroupFolder) Get(name string) (*GroupInformation, bool) {
	return f.groups.Get(name)
}

// Contains reports whether a group is stored under name.
func (f *GroupFolder) Contains(name string) bool {
	return f.groups.Contains(name)
}

// Names lists the stored group names in order.
func (f *GroupFolder) Names() []string {
	return f.groups.Keys()
}

// All iterates over the stored groups in name order.
func (f *GroupFolder) All() iter.Seq2[string, *GroupInformation] {
	return f.groups.All()
}

func (f *GroupFolder) Len() int { return f.groups.Len() }

// Set stores info under name, indexes its members and publishes
// PrincipalsAddedToGroup (when it has members) and GroupAdded. Members are
// not checked for cycles.
func (f *GroupFolder) Set(ctx context.Context, name string, info *GroupInformation) error {
	evs, err := func() ([]any, error) {
		f.writeMu.Lock()
		defer f.writeMu.Unlock()
		return f.setLocked(name, info)
	}()
	if err != nil {
		return err
	}
	f.publish(ctx, evs)
	return nil
}

// Insert stores info under name like Set, but first checks its members for
// cycles and then runs commit. Events are published only when both succeed;
// otherwise the group is removed again and the error returned.
func (f *GroupFolder) Insert(ctx context.Context, name string, info *GroupInformation, commit func(context.Context) error) error {
	evs, err := func() ([]any, error) {
		f.writeMu.Lock()
		defer f.writeMu.Unlock()

		evs, err := f.setLocked(name, info)
		if err != nil {
			return nil, err
		}
		err = checkNoCycles(ctx, sortedIDs(info.Principals()), f.lookup())
		if err == nil && commit != nil {
			err = commit(ctx)
		}
		if err != nil {
			if _, rerr := f.deleteLocked(name); rerr != nil {
				err = errors.Join(err, fmt.Errorf("revert group %q: %w", name, rerr))
			}
			f.log.V(1).Info("group insert rolled back", "group", f.prefix+name, "error", err.Error())
			return nil, err
		}
		return evs, nil
	}()
	if err != nil {
		return err
	}
	f.publish(ctx, evs)
	return nil
}

func (f *GroupFolder) setLocked(name string, info *GroupInformation) ([]any, error) {
	if err := f.groups.Set(name, info); err != nil {
		return nil, fmt.Errorf("add group %q: %w", name, err)
	}
	groupID := f.prefix + name
	principals := uniqueIDs(info.Principals())

	f.mu.Lock()
	f.addToIndex(principals, groupID)
	f.mu.Unlock()

	var evs []any
	if len(principals) > 0 {
		evs = append(evs, PrincipalsAddedToGroup{
			PrincipalIDs: principals,
			GroupID:      f.scopePrefix() + groupID,
		})
	}
	group := authn.NewPrincipal(groupID, info.Title, info.Description)
	group.MarkGroup()
	evs = append(evs, GroupAdded{Group: group})

	f.log.V(1).Info("group added", "group", groupID, "members", len(principals))
	return evs, nil
}

// Delete removes the group stored under name, unindexes its members and
// publishes PrincipalsRemovedFromGroup when it had members.
func (f *GroupFolder) Delete(ctx context.Context, name string) error {
	return f.Remove(ctx, name, nil)
}

// Remove deletes the group like Delete and then runs commit. When commit
// fails the group is stored again and nothing is published.
func (f *GroupFolder) Remove(ctx context.Context, name string, commit func(context.Context) error) error {
	evs, err := func() ([]any, error) {
		f.writeMu.Lock()
		defer f.writeMu.Unlock()

		info, ok := f.groups.Get(name)
		if !ok {
			return nil, fmt.Errorf("delete group %q: %w", name, ErrGroupNotFound)
		}
		evs, err := f.deleteLocked(name)
		if err != nil || commit == nil {
			return evs, err
		}
		if err := commit(ctx); err != nil {
			if _, rerr := f.setLocked(name, info); rerr != nil {
				err = errors.Join(err, fmt.Errorf("restore group %q: %w", name, rerr))
			}
			return nil, err
		}
		return evs, nil
	}()
	if err != nil {
		return err
	}
	f.publish(ctx, evs)
	return nil
}

func (f *GroupFolder) deleteLocked(name string) ([]any, error) {
	info, ok := f.groups.Get(name)
	if !ok {
		return nil, fmt.Errorf("delete group %q: %w", name, ErrGroupNotFound)
	}
	groupID := f.prefix + name
	principals := uniqueIDs(info.Principals())

	f.mu.Lock()
	f.removeFromIndex(principals, groupID)
	f.mu.Unlock()

	if _, err := f.groups.Delete(name); err != nil {
		return nil, fmt.Errorf("delete group %q: %w", name, err)
	}
	info.detach()

	var evs []any
	if len(principals) > 0 {
		evs = append(evs, PrincipalsRemovedFromGroup{
			PrincipalIDs: principals,
			GroupID:      f.scopePrefix() + groupID,
		})
	}
	f.log.V(1).Info("group deleted", "group", groupID)
	return evs, nil
}

// addToIndex requires f.mu.
func (f *GroupFolder) addToIndex(principalIDs []string, groupID string) {
	for _, id := range principalIDs {
		if slices.Contains(f.byPrincipal[id], groupID) {
			continue
		}
		f.byPrincipal[id] = append(slices.Clone(f.byPrincipal[id]), groupID)
	}
}

// removeFromIndex requires f.mu.
func (f *GroupFolder) removeFromIndex(principalIDs []string, groupID string) {
	for _, id := range principalIDs {
		groups, ok := f.byPrincipal[id]
		if !ok {
			continue
		}
		remaining := slices.DeleteFunc(slices.Clone(groups), func(g string) bool { return g == groupID })
		if len(remaining) == 0 {
			delete(f.byPrincipal, id)
		} else {
			f.byPrincipal[id] = remaining
		}
	}
}

// uniqueIDs drops repeated ids, keeping first occurrences.
func uniqueIDs(ids []string) []string {
	_, added := membershipDelta(nil, ids)
	return added
}

func sortedIDs(ids []string) []string {
	out := mapset.NewThreadUnsafeSet(ids...).ToSlice()
	slices.Sort(out)
	return out
}

// membershipDelta returns the ids only in old (removed, in old order) and only
// in next (added, in next order).
func membershipDelta(old, next []string) (removed, added []string) {
	oldSet := mapset.NewThreadUnsafeSet(old...)
	nextSet := mapset.NewThreadUnsafeSet(next...)

	seen := mapset.NewThreadUnsafeSet[string]()
	for _, id := range old {
		if !nextSet.Contains(id) && seen.Add(id) {
			removed = append(removed, id)
		}
	}
	seen.Clear()
	for _, id := range next {
		if !oldSet.Contains(id) && seen.Add(id) {
			added = append(added, id)
		}
	}
	return removed, added
}

func (f *GroupFolder) applyPrincipals(g *GroupInformation, groupID string, old, next []string) (removed, added []string) {
	removed, added = membershipDelta(old, next)
	f.mu.Lock()
	defer f.mu.Unlock()
	g.setPrincipalList(next)
	f.removeFromIndex(removed, groupID)
	f.addToIndex(added, groupID)
	return removed, added
}

func (f *GroupFolder) setPrincipals(ctx context.Context, g *GroupInformation, ids []string, check bool, commit func(context.Context) error) error {
	groupID := f.prefix + g.Name()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "groupfolder.SetPrincipals",
		attribute.String(telemetry.AttrGroupID, groupID),
		attribute.Int(telemetry.AttrGroupMembers, len(ids)),
	)
	defer span.End()

	evs, err := func() ([]any, error) {
		f.writeMu.Lock()
		defer f.writeMu.Unlock()

		old := g.Principals()
		removed, added := f.applyPrincipals(g, groupID, old, ids)

		var err error
		if check {
			err = checkNoCycles(ctx, sortedIDs(ids), f.lookup())
		}
		if err == nil && commit != nil {
			err = commit(ctx)
		}
		if err != nil {
			f.applyPrincipals(g, groupID, ids, old)
			f.log.V(1).Info("membership change rolled back", "group", groupID, "error", err.Error())
			return nil, err
		}

		fullID := f.scopePrefix() + groupID
		var evs []any
		if len(removed) > 0 {
			evs = append(evs, PrincipalsRemovedFromGroup{PrincipalIDs: removed, GroupID: fullID})
		}
		if len(added) > 0 {
			evs = append(evs, PrincipalsAddedToGroup{PrincipalIDs: added, GroupID: fullID})
		}
		return evs, nil
	}()
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	f.publish(ctx, evs)
	return nil
}

// GetGroupsForPrincipal returns the ids of the groups id is a direct member
// of, or an empty slice.
func (f *GroupFolder) GetGroupsForPrincipal(id string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.byPrincipal[id])
}

// GetPrincipalsForGroup returns the members of the group stored under name.
func (f *GroupFolder) GetPrincipalsForGroup(name string) ([]string, error) {
	info, ok := f.groups.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	return info.Principals(), nil
}

// Search yields prefixed ids of groups whose title or description contains
// query["search"], ignoring case. start skips that many stored groups
// (matching or not); batchSize caps the results, with 0 meaning no cap.
// Without a "search" key nothing is yielded.
func (f *GroupFolder) Search(_ context.Context, query authn.Query, start, batchSize int) iter.Seq[string] {
	return func(yield func(string) bool) {
		term, ok := query["search"]
		if !ok {
			return
		}
		term = strings.ToLower(term)

		i, n := -1, 0
		for name, info := range f.groups.All() {
			i++
			if !strings.Contains(strings.ToLower(info.Title), term) &&
				!strings.Contains(strings.ToLower(info.Description), term) {
				continue
			}
			if i < start {
				continue
			}
			if batchSize > 0 && n >= batchSize {
				return
			}
			n++
			if !yield(f.prefix + name) {
				return
			}
		}
	}
}

// AuthenticateCredentials always returns nil; folders of groups do not
// authenticate.
func (f *GroupFolder) AuthenticateCredentials(context.Context, authn.Credentials) *authn.PrincipalInfo {
	return nil
}

// PrincipalInfo returns group information for a folder-prefixed id.
func (f *GroupFolder) PrincipalInfo(_ context.Context, id string) *authn.PrincipalInfo {
	name, ok := strings.CutPrefix(id, f.prefix)
	if !ok {
		return nil
	}
	info, ok := f.groups.Get(name)
	if !ok {
		return nil
	}
	return &authn.PrincipalInfo{
		ID:          f.prefix + name,
		Title:       info.Title,
		Description: info.Description,
		Group:       &groupMembers{info: info},
	}
}
