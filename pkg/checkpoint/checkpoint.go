package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"catalogfetch/pkg/logger"
)

// CurrentVersion is written into every saved checkpoint
const CurrentVersion = 1

// State is the set of identifiers whose records are durably written
type State struct {
	ProcessedIDs []string  `json:"processed_ids"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	Version      int       `json:"version,omitempty"`

	index map[string]struct{}
}

// NewState returns an empty state
func NewState() *State {
	return &State{
		ProcessedIDs: []string{},
		index:        make(map[string]struct{}),
	}
}

func (s *State) ensureIndex() {
	if s.index != nil {
		return
	}
	s.index = make(map[string]struct{}, len(s.ProcessedIDs))
	deduped := s.ProcessedIDs[:0]
	for _, id := range s.ProcessedIDs {
		if _, seen := s.index[id]; seen {
			continue
		}
		s.index[id] = struct{}{}
		deduped = append(deduped, id)
	}
	s.ProcessedIDs = deduped
}

// Add appends ids not already present and returns how many were new
func (s *State) Add(ids ...string) int {
	s.ensureIndex()
	added := 0
	for _, id := range ids {
		if _, seen := s.index[id]; seen {
			continue
		}
		s.index[id] = struct{}{}
		s.ProcessedIDs = append(s.ProcessedIDs, id)
		added++
	}
	return added
}

// Contains reports whether id has been processed
func (s *State) Contains(id string) bool {
	s.ensureIndex()
	_, ok := s.index[id]
	return ok
}

// Len returns the number of processed identifiers
func (s *State) Len() int {
	s.ensureIndex()
	return len(s.ProcessedIDs)
}

// Pending returns the ids not yet processed, preserving order
func (s *State) Pending(ids []string) []string {
	s.ensureIndex()
	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, done := s.index[id]; !done {
			pending = append(pending, id)
		}
	}
	return pending
}

// Store persists State to a single JSON file
type Store struct {
	path   string
	logger logger.Logger

	// crash-injection points used by tests
	beforeRename func(tempPath string)
	afterRename  func()
	closeBackup  func(f *os.File) error
}

// NewStore creates a store backed by path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		path:         path,
		logger:       log,
		beforeRename: func(string) {},
		afterRename:  func() {},
		closeBackup:  (*os.File).Close,
	}
}

// Path returns the checkpoint file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the checkpoint. An absent or unreadable file yields an empty
// state; problems are logged, never returned.
func (s *Store) Load() *State {
	file, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).WarnWithFields("Checkpoint unreadable, starting empty", map[string]interface{}{
				"path": s.path,
			})
		}
		return NewState()
	}
	defer file.Close()

	var state State
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		s.logger.WithError(err).WarnWithFields("Checkpoint corrupt, starting empty", map[string]interface{}{
			"path": s.path,
		})
		return NewState()
	}
	if state.ProcessedIDs == nil {
		state.ProcessedIDs = []string{}
	}
	state.ensureIndex()

	s.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"path":       s.path,
		"processed":  len(state.ProcessedIDs),
		"updated_at": state.UpdatedAt,
	})

	return &state
}

// Save writes state atomically: the new content is fully written and synced
// to a temporary file before it replaces the checkpoint.
func (s *Store) Save(state *State) error {
	state.ensureIndex()
	state.UpdatedAt = time.Now().UTC()
	state.Version = CurrentVersion

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	s.beforeRename(tempPath)

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	syncDir(filepath.Dir(s.path))

	s.afterRename()

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"path":      s.path,
		"processed": len(state.ProcessedIDs),
	})

	return nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}

// Exists checks if a checkpoint file exists
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Delete removes the checkpoint file
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	s.logger.InfoWithFields("Checkpoint deleted", map[string]interface{}{
		"path": s.path,
	})
	return nil
}

// Backup copies the current checkpoint to path.backup and returns the backup
// location, or "" when there is nothing to back up.
func (s *Store) Backup() (string, error) {
	if !s.Exists() {
		return "", nil
	}

	backupPath := s.path + ".backup"

	src, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to sync backup file: %w", err)
	}
	if err := s.closeBackup(dst); err != nil {
		return "", fmt.Errorf("failed to close backup file: %w", err)
	}

	s.logger.DebugWithFields("Checkpoint backed up", map[string]interface{}{
		"backup": backupPath,
	})
	return backupPath, nil
}
