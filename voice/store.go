package voice

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperr "github.com/CS-5/apalto-bot/errors"
)

type (
	// PairRecord is the persisted form of a pair.
	PairRecord struct {
		GuildID    string    `json:"guild_id"`
		Team1ID    string    `json:"team1_id"`
		Team2ID    string    `json:"team2_id"`
		CategoryID string    `json:"category_id"`
		CreatorID  string    `json:"creator_id"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// PersistentData is the document written to the state file.
	PersistentData struct {
		Pairs []PairRecord `json:"pairs"`
	}

	// Store reads and writes the pair snapshot so pairs survive a restart.
	Store struct {
		filePath string
		mu       sync.Mutex
	}
)

// NewStore creates a store backed by filePath. An empty path returns nil,
// which disables persistence.
func NewStore(filePath string) *Store {
	if filePath == "" {
		return nil
	}
	return &Store{filePath: filePath}
}

// Path returns the backing file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.filePath
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (s *Store) Load() (*PersistentData, error) {
	data := &PersistentData{}
	if s == nil {
		return data, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, apperr.Wrap(err, apperr.CodeStoreReadFailure, "reading pair state",
			apperr.Field("path", s.filePath))
	}

	if err := json.Unmarshal(file, data); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStoreReadFailure, "decoding pair state",
			apperr.Field("path", s.filePath))
	}

	return data, nil
}

// Save replaces the snapshot. snapshot is evaluated under the store lock so
// concurrent saves are written in the order their snapshots were taken.
func (s *Store) Save(snapshot func() *PersistentData) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := snapshot()
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStoreWriteFailure, "encoding pair state")
	}

	tmp := s.filePath + ".tmp"
	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Wrap(err, apperr.CodeStoreWriteFailure, "creating state directory",
				apperr.Field("path", dir))
		}
	}
	if err := os.WriteFile(tmp, jsonData, 0o644); err != nil {
		return apperr.Wrap(err, apperr.CodeStoreWriteFailure, "writing pair state",
			apperr.Field("path", tmp))
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return apperr.Wrap(err, apperr.CodeStoreWriteFailure, "replacing pair state",
			apperr.Field("path", s.filePath))
	}

	return nil
}

func recordOf(p *Pair) PairRecord {
	return PairRecord{
		GuildID:    p.GuildID,
		Team1ID:    p.Team1ID,
		Team2ID:    p.Team2ID,
		CategoryID: p.CategoryID,
		CreatorID:  p.CreatorID,
		CreatedAt:  p.CreatedAt,
	}
}

func (r PairRecord) pair() *Pair {
	return &Pair{
		GuildID:    r.GuildID,
		Team1ID:    r.Team1ID,
		Team2ID:    r.Team2ID,
		CategoryID: r.CategoryID,
		CreatorID:  r.CreatorID,
		CreatedAt:  r.CreatedAt,
	}
}
