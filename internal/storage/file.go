package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sunsched/pkg/logx"
)

// fileStore keeps every record in memory and rewrites the whole snapshot
// on each mutation via tmp-file + rename. Schedule counts are small, so a
// full rewrite is cheaper than being clever.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
	recs []Record
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return err
	}
	s.recs = recs
	return nil
}

func (s *fileStore) SaveSchedule(ctx context.Context, r Record) error {
	_ = ctx
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.recs {
		if s.recs[i].ID == r.ID {
			s.recs[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		s.recs = append(s.recs, r)
	}
	return s.flushLocked()
}

func (s *fileStore) DeleteSchedule(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.recs[:0]
	for _, r := range s.recs {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.recs = kept
	return s.flushLocked()
}

func (s *fileStore) LoadSchedules(ctx context.Context) ([]Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.recs))
	copy(out, s.recs)
	return out, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) flushLocked() error {
	b, err := json.MarshalIndent(s.recs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Debug("snapshot rename failed", logx.Err(err))
		return err
	}
	return nil
}
