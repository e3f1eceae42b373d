package store

import (
	"context"
	"sync"
	"time"

	"github.com/starfall-project/authcore/internal/server/fop"
)

// MemoryStore keeps accounts in process memory. It backs tests and is the
// snapshot the file store serializes.
type MemoryStore struct {
	mu      sync.RWMutex
	byUID   map[uint32]UserRecord
	byName  map[string]uint32 // folded username -> uid
	byEmail map[string]uint32 // folded email -> uid
	nextUID uint32
	max     int

	// now is a test seam.
	now func() time.Time
}

// NewMemoryStore returns an empty store capped at max accounts.
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{
		byUID:   make(map[uint32]UserRecord),
		byName:  make(map[string]uint32),
		byEmail: make(map[string]uint32),
		nextUID: 1,
		max:     max,
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, rec UserRecord) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.byUID) >= s.max {
		return UserRecord{}, fop.ErrUserTooBig
	}
	if _, taken := s.byName[fold(rec.Username)]; taken {
		return UserRecord{}, fop.ErrUserNameNotValid
	}
	if _, taken := s.byEmail[fold(rec.Email)]; taken {
		return UserRecord{}, fop.ErrEmailNotValid
	}

	rec.UID = s.nextUID
	s.nextUID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	s.byUID[rec.UID] = rec
	s.byName[fold(rec.Username)] = rec.UID
	s.byEmail[fold(rec.Email)] = rec.UID
	return rec, nil
}

func (s *MemoryStore) FindByUID(_ context.Context, uid uint32) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byUID[uid]
	if !ok {
		return UserRecord{}, fop.ErrUserNotFound
	}
	return rec, nil
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uid, ok := s.byName[fold(username)]
	if !ok {
		return UserRecord{}, fop.ErrUserNotFound
	}
	return s.byUID[uid], nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uid, ok := s.byEmail[fold(email)]
	if !ok {
		return UserRecord{}, fop.ErrUserNotFound
	}
	return s.byUID[uid], nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, uid uint32, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byUID[uid]
	if !ok {
		return fop.ErrUserNotFound
	}
	rec.PasswordHash = passwordHash
	s.byUID[uid] = rec
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUID), nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

// snapshot copies the current state for serialization.
func (s *MemoryStore) snapshot() fileSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := fileSnapshot{NextUID: s.nextUID, Users: make([]UserRecord, 0, len(s.byUID))}
	for _, rec := range s.byUID {
		snap.Users = append(snap.Users, rec)
	}
	return snap
}

// restore replaces the state with a deserialized snapshot.
func (s *MemoryStore) restore(snap fileSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byUID = make(map[uint32]UserRecord, len(snap.Users))
	s.byName = make(map[string]uint32, len(snap.Users))
	s.byEmail = make(map[string]uint32, len(snap.Users))
	s.nextUID = snap.NextUID

	for _, rec := range snap.Users {
		s.byUID[rec.UID] = rec
		s.byName[fold(rec.Username)] = rec.UID
		s.byEmail[fold(rec.Email)] = rec.UID
		if rec.UID >= s.nextUID {
			s.nextUID = rec.UID + 1
		}
	}
}

var _ Store = (*MemoryStore)(nil)
