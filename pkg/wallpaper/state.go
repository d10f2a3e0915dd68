package wallpaper

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/util/fsutil"
	"github.com/dixieflatline76/Easel/util/log"
)

// SchedulerState is the scheduler's persisted memory. LastScheduledUpdateTimeMillis
// only advances on a successful scheduled update and is the sole basis for the
// "already updated today" decision. LastUpdateTimeMillis advances on any success
// and is reported to observers only.
type SchedulerState struct {
	LastAttemptedMetadata         *provider.Metadata `json:"lastAttemptedMetadata,omitempty"`
	LastUpdateTimeMillis          int64              `json:"lastUpdateTimeMillis"`
	LastScheduledUpdateTimeMillis int64              `json:"lastScheduledUpdateTimeMillis"`
}

// LastScheduled returns the last scheduled update as a time, zero when never.
func (s SchedulerState) LastScheduled() time.Time {
	if s.LastScheduledUpdateTimeMillis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.LastScheduledUpdateTimeMillis)
}

// LastUpdate returns the last successful update of any kind, zero when never.
func (s SchedulerState) LastUpdate() time.Time {
	if s.LastUpdateTimeMillis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.LastUpdateTimeMillis)
}

// StateFile persists SchedulerState with a single backup generation.
type StateFile struct {
	path string
}

// NewStateFile returns a StateFile at path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Load reads the state, falling back to the backup and then to a zero state. It
// never fails; a recovered read is logged.
func (f *StateFile) Load() SchedulerState {
	st, usedBackup, err := fsutil.ReadJSONWithBackup(f.path, func() SchedulerState { return SchedulerState{} })
	switch {
	case err == nil:
	case usedBackup:
		log.Printf("Scheduler: %v: %v, state restored from backup", provider.ErrStateCorrupt, err)
	case !errors.Is(err, os.ErrNotExist):
		log.Printf("Scheduler: %v: %v, starting from a zero state", provider.ErrStateCorrupt, err)
	}
	return st
}

// Save writes the state: the current file becomes the backup, then the new
// content replaces it atomically.
func (f *StateFile) Save(st SchedulerState) error {
	if err := fsutil.WriteJSONWithBackup(f.path, st); err != nil {
		return fmt.Errorf("%w: save state: %v", provider.ErrStorage, err)
	}
	return nil
}
