// Package memory implements the store interfaces in process, mirroring the
// invariants of the PostgreSQL implementation. It backs handler tests and
// local development without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"turfwar.org/internal/faction"
	"turfwar.org/internal/feature"
	"turfwar.org/internal/identity"
	"turfwar.org/internal/ids"
	"turfwar.org/internal/stats"
)

type Store struct {
	mu        sync.RWMutex
	users     map[string]*identity.User
	factions  map[string]*faction.Faction
	grants    map[string]map[string]bool
	snapshots map[string][]*stats.Snapshot
}

func New() *Store {
	return &Store{
		users:     make(map[string]*identity.User),
		factions:  make(map[string]*faction.Faction),
		grants:    make(map[string]map[string]bool),
		snapshots: make(map[string][]*stats.Snapshot),
	}
}

func (s *Store) Users() identity.Store   { return &userStore{s} }
func (s *Store) Factions() faction.Store { return &factionStore{s} }
func (s *Store) Features() feature.Store { return &featureStore{s} }
func (s *Store) Stats() stats.Store      { return &statsStore{s} }

var (
	_ identity.Store = (*userStore)(nil)
	_ faction.Store  = (*factionStore)(nil)
	_ feature.Store  = (*featureStore)(nil)
	_ stats.Store    = (*statsStore)(nil)
)

func cloneUser(u *identity.User) *identity.User {
	out := *u
	if u.FactionID != nil {
		fid := *u.FactionID
		out.FactionID = &fid
	}
	return &out
}

func cloneFaction(f *faction.Faction) *faction.Faction {
	out := *f
	return &out
}

type userStore struct{ s *Store }

func (us *userStore) Create(_ context.Context, u *identity.User) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()

	// Exact-match conflicts, mirroring the database's unique constraints.
	for _, existing := range us.s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("%w: username already exists", identity.ErrConflict)
		}
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email already exists", identity.ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	us.s.users[u.ID] = cloneUser(u)
	return nil
}

func (us *userStore) FindByID(_ context.Context, id string) (*identity.User, error) {
	us.s.mu.RLock()
	defer us.s.mu.RUnlock()
	u, ok := us.s.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return cloneUser(u), nil
}

func (us *userStore) FindByUsername(_ context.Context, username string) (*identity.User, error) {
	us.s.mu.RLock()
	defer us.s.mu.RUnlock()
	for _, u := range us.s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, identity.ErrNotFound
}

func (us *userStore) List(_ context.Context) ([]*identity.User, error) {
	us.s.mu.RLock()
	defer us.s.mu.RUnlock()
	out := make([]*identity.User, 0, len(us.s.users))
	for _, u := range us.s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (us *userStore) SetAdmin(_ context.Context, userID string, isAdmin bool) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()
	u, ok := us.s.users[userID]
	if !ok {
		return identity.ErrNotFound
	}
	u.IsAdmin = isAdmin
	return nil
}

func (us *userStore) SetPassword(_ context.Context, userID, passwordHash string) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()
	u, ok := us.s.users[userID]
	if !ok {
		return identity.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (us *userStore) Delete(_ context.Context, userID string) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()

	u, ok := us.s.users[userID]
	if !ok {
		return identity.ErrNotFound
	}
	delete(us.s.grants, userID)

	if u.FactionID != nil {
		if f, ok := us.s.factions[*u.FactionID]; ok && f.LeaderID == userID {
			heir := us.s.earliestMemberLocked(f.ID, userID)
			if heir == nil {
				delete(us.s.factions, f.ID)
			} else {
				f.LeaderID = heir.ID
				f.LeaderUsername = heir.Username
			}
		}
	}
	delete(us.s.users, userID)
	return nil
}

// earliestMemberLocked returns the longest-tenured member of the faction
// other than the excluded user, or nil. Caller holds the lock.
func (s *Store) earliestMemberLocked(factionID, excludeID string) *identity.User {
	var heir *identity.User
	for _, u := range s.users {
		if u.ID == excludeID || u.FactionID == nil || *u.FactionID != factionID {
			continue
		}
		if heir == nil || u.CreatedAt.Before(heir.CreatedAt) {
			heir = u
		}
	}
	return heir
}

type factionStore struct{ s *Store }

func (fs *factionStore) Create(_ context.Context, name string, requester *identity.User) (*faction.Faction, error) {
	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	u, ok := fs.s.users[requester.ID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	if u.FactionID != nil {
		return nil, faction.ErrAlreadyMember
	}
	for _, f := range fs.s.factions {
		if f.Name == name {
			return nil, faction.ErrNameTaken
		}
	}

	code := faction.NewInvitationCode()
	for fs.s.codeTakenLocked(code) {
		code = faction.NewInvitationCode()
	}
	f := &faction.Faction{
		ID:             ids.New(),
		Name:           name,
		InvitationCode: code,
		LeaderID:       u.ID,
		LeaderUsername: u.Username,
		CreatedAt:      time.Now().UTC(),
	}
	fs.s.factions[f.ID] = f
	fid := f.ID
	u.FactionID = &fid
	return cloneFaction(f), nil
}

func (s *Store) codeTakenLocked(code string) bool {
	for _, f := range s.factions {
		if f.InvitationCode == code {
			return true
		}
	}
	return false
}

func (fs *factionStore) Join(_ context.Context, code string, requester *identity.User) (*faction.Faction, error) {
	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	var target *faction.Faction
	for _, f := range fs.s.factions {
		if f.InvitationCode == code {
			target = f
			break
		}
	}
	if target == nil {
		return nil, faction.ErrInvalidCode
	}
	u, ok := fs.s.users[requester.ID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	if u.FactionID != nil {
		return nil, faction.ErrAlreadyMember
	}
	fid := target.ID
	u.FactionID = &fid
	return cloneFaction(target), nil
}

func (fs *factionStore) Leave(_ context.Context, requester *identity.User) error {
	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	u, ok := fs.s.users[requester.ID]
	if !ok {
		return identity.ErrNotFound
	}
	if u.FactionID == nil {
		return faction.ErrNotInFaction
	}
	if f, ok := fs.s.factions[*u.FactionID]; ok && f.LeaderID == u.ID {
		return faction.ErrLeaderCannotLeave
	}
	u.FactionID = nil
	return nil
}

func (fs *factionStore) Transfer(_ context.Context, requester *identity.User, newLeaderUsername string) (*faction.Faction, error) {
	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	u, ok := fs.s.users[requester.ID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	if u.FactionID == nil {
		return nil, faction.ErrNotInFaction
	}
	f, ok := fs.s.factions[*u.FactionID]
	if !ok {
		return nil, faction.ErrNotFound
	}
	if f.LeaderID != u.ID {
		return nil, faction.ErrNotLeader
	}
	var heir *identity.User
	for _, cand := range fs.s.users {
		if cand.Username == newLeaderUsername {
			heir = cand
			break
		}
	}
	if heir == nil || heir.FactionID == nil || *heir.FactionID != f.ID {
		return nil, faction.ErrNotMember
	}
	f.LeaderID = heir.ID
	f.LeaderUsername = heir.Username
	return cloneFaction(f), nil
}

func (fs *factionStore) Delete(_ context.Context, factionID string) error {
	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	if _, ok := fs.s.factions[factionID]; !ok {
		return faction.ErrNotFound
	}
	for _, u := range fs.s.users {
		if u.FactionID != nil && *u.FactionID == factionID {
			u.FactionID = nil
		}
	}
	delete(fs.s.factions, factionID)
	return nil
}

func (fs *factionStore) FindByID(_ context.Context, id string) (*faction.Faction, error) {
	fs.s.mu.RLock()
	defer fs.s.mu.RUnlock()
	f, ok := fs.s.factions[id]
	if !ok {
		return nil, faction.ErrNotFound
	}
	return cloneFaction(f), nil
}

func (fs *factionStore) Members(_ context.Context, factionID string) ([]faction.Member, error) {
	fs.s.mu.RLock()
	defer fs.s.mu.RUnlock()

	var users []*identity.User
	for _, u := range fs.s.users {
		if u.FactionID != nil && *u.FactionID == factionID {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	members := make([]faction.Member, 0, len(users))
	for _, u := range users {
		members = append(members, faction.Member{ID: u.ID, Username: u.Username})
	}
	return members, nil
}

type featureStore struct{ s *Store }

func (fs *featureStore) Set(_ context.Context, userID, name string, enabled bool) error {
	if !feature.Known(name) {
		return fmt.Errorf("%w: %s", feature.ErrUnknownFeature, name)
	}
	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	if enabled {
		if _, ok := fs.s.users[userID]; !ok {
			return feature.ErrNotFound
		}
		if fs.s.grants[userID] == nil {
			fs.s.grants[userID] = make(map[string]bool)
		}
		fs.s.grants[userID][name] = true
		return nil
	}
	delete(fs.s.grants[userID], name)
	return nil
}

func (fs *featureStore) IsEnabled(_ context.Context, userID, name string) (bool, error) {
	fs.s.mu.RLock()
	defer fs.s.mu.RUnlock()
	return fs.s.grants[userID][name], nil
}

func (fs *featureStore) ListForUser(_ context.Context, userID string) (map[string]bool, error) {
	fs.s.mu.RLock()
	defer fs.s.mu.RUnlock()
	out := make(map[string]bool, len(feature.All))
	for _, name := range feature.All {
		out[name] = fs.s.grants[userID][name]
	}
	return out, nil
}

func (fs *featureStore) BulkUpdate(_ context.Context, updates map[string]map[string]bool, actorIsAdmin bool) (feature.BulkResult, error) {
	fs.s.mu.Lock()
	defer fs.s.mu.Unlock()

	// Validate the whole batch first so a failure leaves nothing applied.
	for _, feats := range updates {
		for name := range feats {
			if !feature.Known(name) {
				return feature.BulkResult{}, fmt.Errorf("%w: %s", feature.ErrUnknownFeature, name)
			}
		}
	}

	var res feature.BulkResult
	userIDs := make([]string, 0, len(updates))
	for uid := range updates {
		userIDs = append(userIDs, uid)
	}
	sort.Strings(userIDs)

	for _, uid := range userIDs {
		if _, ok := fs.s.users[uid]; !ok {
			res.MissingUsers = append(res.MissingUsers, uid)
			continue
		}
		names := make([]string, 0, len(updates[uid]))
		for name := range updates[uid] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if !actorIsAdmin {
				res.DeniedGrants = append(res.DeniedGrants, uid+"/"+name)
				continue
			}
			if updates[uid][name] {
				if fs.s.grants[uid] == nil {
					fs.s.grants[uid] = make(map[string]bool)
				}
				fs.s.grants[uid][name] = true
			} else {
				delete(fs.s.grants[uid], name)
			}
			res.Applied++
		}
	}
	return res, nil
}

type statsStore struct{ s *Store }

func (st *statsStore) Record(_ context.Context, snap *stats.Snapshot) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if snap.ID == "" {
		snap.ID = ids.New()
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}
	stored := *snap
	st.s.snapshots[snap.UserID] = append(st.s.snapshots[snap.UserID], &stored)
	return nil
}

func (st *statsStore) LatestTwo(_ context.Context, userID string) (*stats.Snapshot, *stats.Snapshot, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	snaps := st.s.snapshots[userID]
	if len(snaps) == 0 {
		return nil, nil, stats.ErrNoStats
	}
	ordered := make([]*stats.Snapshot, len(snaps))
	copy(ordered, snaps)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp.After(ordered[j].Timestamp) })
	cur := *ordered[0]
	if len(ordered) == 1 {
		return &cur, nil, nil
	}
	prev := *ordered[1]
	return &cur, &prev, nil
}

func (st *statsStore) Leaderboard(_ context.Context, limit int) ([]stats.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()

	var entries []stats.Entry
	for uid, snaps := range st.s.snapshots {
		if len(snaps) == 0 {
			continue
		}
		latest := snaps[0]
		for _, s := range snaps[1:] {
			if s.Timestamp.After(latest.Timestamp) {
				latest = s
			}
		}
		username := uid
		if u, ok := st.s.users[uid]; ok {
			username = u.Username
		}
		entries = append(entries, stats.Entry{
			UserID:   uid,
			Username: username,
			Kills:    latest.Kills,
			Wins:     latest.TotalWins,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kills != entries[j].Kills {
			return entries[i].Kills > entries[j].Kills
		}
		return entries[i].Username < entries[j].Username
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
