package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// fileSnapshot is the on-disk shape of the user database.
type fileSnapshot struct {
	NextUID uint32       `json:"next_uid"`
	Users   []UserRecord `json:"users"`
}

// FileStore keeps accounts in memory and serializes them to a JSON file.
// Mutations only mark the store dirty; Flush performs the actual write, so a
// periodic flusher plus flush-on-close bounds data loss without putting disk
// IO on the request path.
type FileStore struct {
	mem   *MemoryStore
	path  string
	dirty atomic.Bool

	// flushMu serializes writers of the file itself.
	flushMu sync.Mutex
}

// OpenFileStore loads the snapshot at path, or starts empty if the file does
// not exist yet. A present but unreadable file is an error: silently starting
// empty would orphan every existing account.
func OpenFileStore(path string, max int) (*FileStore, error) {
	s := &FileStore{mem: NewMemoryStore(max), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user db: %w", err)
	}

	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode user db %s: %w", path, err)
	}
	s.mem.restore(snap)
	return s, nil
}

func (s *FileStore) Create(ctx context.Context, rec UserRecord) (UserRecord, error) {
	created, err := s.mem.Create(ctx, rec)
	if err != nil {
		return UserRecord{}, err
	}
	s.dirty.Store(true)
	return created, nil
}

func (s *FileStore) FindByUID(ctx context.Context, uid uint32) (UserRecord, error) {
	return s.mem.FindByUID(ctx, uid)
}

func (s *FileStore) FindByUsername(ctx context.Context, username string) (UserRecord, error) {
	return s.mem.FindByUsername(ctx, username)
}

func (s *FileStore) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	return s.mem.FindByEmail(ctx, email)
}

func (s *FileStore) UpdatePassword(ctx context.Context, uid uint32, passwordHash string) error {
	if err := s.mem.UpdatePassword(ctx, uid, passwordHash); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	return s.mem.Count(ctx)
}

// Flush writes the snapshot if anything changed since the last flush. The
// write goes through a temp file and rename so a crash never leaves a
// truncated database behind.
func (s *FileStore) Flush(context.Context) error {
	if !s.dirty.Swap(false) {
		return nil
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	snap := s.mem.snapshot()
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].UID < snap.Users[j].UID })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user db: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("flush user db: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		s.dirty.Store(true)
		return fmt.Errorf("flush user db: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		s.dirty.Store(true)
		return fmt.Errorf("flush user db: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		s.dirty.Store(true)
		return fmt.Errorf("flush user db: %w", err)
	}
	return nil
}

func (s *FileStore) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

var _ Store = (*FileStore)(nil)
