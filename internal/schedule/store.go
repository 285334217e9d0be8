// Package schedule persists the next-eligible-publish time in a small JSON
// file so the posting cadence survives restarts.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"trend_reposter/internal/domain"
)

// PostTimeKey holds the next post time as Unix epoch seconds.
const PostTimeKey = "post_time"

var (
	ErrCorruptState = errors.New("corrupt schedule state")
	ErrNotFound     = errors.New("schedule state not found")
)

// Store is a file-backed key-value document. It assumes a single process
// owns the file and takes no locks.
type Store struct {
	fs   afero.Fs
	path string
}

func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return s.path
}

// Init creates the state file with post_time = now + delay when it does not
// exist yet. It reports whether the file was created.
func (s *Store) Init(now time.Time, delay time.Duration) (bool, error) {
	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return false, fmt.Errorf("stat state file: %w", err)
	}
	if exists {
		return false, nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create state directory: %w", err)
		}
	}

	data := map[string]any{PostTimeKey: epochSeconds(now.Add(delay))}
	if err := s.writeData(data); err != nil {
		return false, err
	}
	return true, nil
}

// Read returns the persisted schedule.
func (s *Store) Read() (domain.ScheduleState, error) {
	data, err := s.ReadData()
	if err != nil {
		return domain.ScheduleState{}, err
	}

	raw, ok := data[PostTimeKey]
	if !ok {
		return domain.ScheduleState{}, fmt.Errorf("%w: missing %q", ErrCorruptState, PostTimeKey)
	}
	secs, ok := raw.(float64)
	if !ok {
		return domain.ScheduleState{}, fmt.Errorf("%w: %q is %T, want number", ErrCorruptState, PostTimeKey, raw)
	}

	return domain.ScheduleState{NextPostTime: fromEpochSeconds(secs)}, nil
}

// Write persists state, keeping any other keys already in the file.
func (s *Store) Write(state domain.ScheduleState) error {
	return s.Set(PostTimeKey, epochSeconds(state.NextPostTime))
}

// Set replaces one key in the document and leaves the others untouched.
func (s *Store) Set(key string, value any) error {
	data, err := s.ReadData()
	if err != nil {
		return err
	}
	data[key] = value
	return s.writeData(data)
}

// ReadData returns the whole document.
func (s *Store) ReadData() (map[string]any, error) {
	raw, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: document is null", ErrCorruptState)
	}
	return data, nil
}

func (s *Store) writeData(data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, body, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpochSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
