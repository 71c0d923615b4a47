/**
 * @description
 * JSON snapshot file implementation of the Repository interface, used when no
 * DATABASE_URL is configured. The whole state is written to a temp file and
 * renamed into place so a crash mid-write never truncates the last good
 * snapshot.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/TheL321/PrimeBank-sub000/internal/domain"
)

// snapshotFile is the on-disk layout of one snapshot.
type snapshotFile struct {
	Accounts  []domain.Account `json:"accounts"`
	Companies []domain.Company `json:"companies"`
}

// SnapshotStore persists the full ledger state as a single JSON file.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotStore creates a store writing to the given path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// LoadAccounts reads the account section of the snapshot. A missing file is
// an empty ledger, not an error.
func (s *SnapshotStore) LoadAccounts(ctx context.Context) ([]domain.Account, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	return snap.Accounts, nil
}

// SaveAccounts rewrites the snapshot with the given accounts, preserving the
// company section.
func (s *SnapshotStore) SaveAccounts(ctx context.Context, accounts []domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.readLocked()
	if err != nil {
		return err
	}
	snap.Accounts = accounts
	return s.writeLocked(snap)
}

// SaveCompany upserts one company into the snapshot.
func (s *SnapshotStore) SaveCompany(ctx context.Context, c domain.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.readLocked()
	if err != nil {
		return err
	}
	replaced := false
	for i := range snap.Companies {
		if snap.Companies[i].ID == c.ID {
			snap.Companies[i] = c
			replaced = true
			break
		}
	}
	if !replaced {
		snap.Companies = append(snap.Companies, c)
	}
	return s.writeLocked(snap)
}

// LoadCompanies reads the company section of the snapshot.
func (s *SnapshotStore) LoadCompanies(ctx context.Context) ([]domain.Company, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	return snap.Companies, nil
}

func (s *SnapshotStore) read() (snapshotFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *SnapshotStore) readLocked() (snapshotFile, error) {
	var snap snapshotFile
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return snap, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return snap, nil
}

func (s *SnapshotStore) writeLocked(snap snapshotFile) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
