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
	"time"

	"jobmate/internship-service/internal/model"
)

// FileStore keeps subscriptions in a JSON object on disk:
//
//	{"<channel_id>": {"last_update": "2025-01-05T10:00:00Z", "guild_id": "..."}}
//
// The whole file is rewritten through a temp file and a rename on every
// mutation. One mutex serialises all access; contention is a registration
// racing a tick, at most.
type FileStore struct {
	path string

	mu   sync.Mutex
	subs map[string]model.Subscription
}

// OpenFileStore loads path. A missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, subs: make(map[string]model.Subscription)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s.subs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for id, sub := range s.subs {
		sub.ChannelID = id
		s.subs[id] = sub
	}
	return s, nil
}

func (s *FileStore) Register(ctx context.Context, channelID, guildID string) (model.Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subs[channelID]; ok {
		return sub, false, nil
	}

	sub := model.Subscription{
		ChannelID: channelID,
		GuildID:   guildID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.commit(channelID, sub); err != nil {
		return model.Subscription{}, false, err
	}
	return sub, true, nil
}

func (s *FileStore) Get(ctx context.Context, channelID string) (model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[channelID]
	if !ok {
		return model.Subscription{}, ErrNotFound
	}
	return sub, nil
}

func (s *FileStore) List(ctx context.Context) ([]model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out, nil
}

func (s *FileStore) Advance(ctx context.Context, channelID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[channelID]
	if !ok {
		return ErrNotFound
	}
	if !later(sub.LastUpdate, at) {
		return nil
	}

	at = at.UTC()
	sub.LastUpdate = &at
	return s.commit(channelID, sub)
}

func (s *FileStore) Close() error { return nil }

// commit persists the store with sub applied and only then updates memory,
// so a failed write leaves the in-memory state matching the file.
func (s *FileStore) commit(channelID string, sub model.Subscription) error {
	next := make(map[string]model.Subscription, len(s.subs)+1)
	for id, v := range s.subs {
		next[id] = v
	}
	next[channelID] = sub

	if err := writeJSONAtomic(s.path, next); err != nil {
		return fmt.Errorf("persist subscriptions: %w", err)
	}
	s.subs = next
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
