package status

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Execution stages published by the engine. Mirrors the phases the
// dashboard poller understands.
const (
	StageInitializing = "initializing"
	StageWalletInit   = "wallet_init"
	StageWaiting      = "waiting_balance"
	StageMonitoring   = "monitoring"
	StageScheduled    = "scheduled"
	StageExecuting    = "executing"
	StageCompleted    = "completed"
	StageError        = "error"
)

// Log levels for Entry.
const (
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelError   = "error"
	LevelSuccess = "success"
)

const maxLogEntries = 1000

// Snapshot is the single "what is happening now" record. Success is nil
// while an operation is still in progress.
type Snapshot struct {
	Stage        string              `json:"stage"`
	Message      string              `json:"message"`
	Timestamp    time.Time           `json:"timestamp"`
	Success      *bool               `json:"success"`
	Details      map[string]any      `json:"details,omitempty"`
	ScheduleInfo []ScheduleCountdown `json:"schedule_info,omitempty"`
}

// ScheduleCountdown is the per-schedule countdown republished by the
// scheduler heartbeat.
type ScheduleCountdown struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	NextFireAt time.Time     `json:"next_fire_at"`
	NextFireIn time.Duration `json:"next_fire_in"`
}

// Entry is one line of the bounded execution log.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Store holds the status snapshot and the log ring for one agent. All
// methods are safe for concurrent use; writers replace the snapshot
// wholesale so readers never see a partial update.
type Store struct {
	mu       sync.Mutex
	snapshot Snapshot
	logs     []Entry
	logger   *zap.Logger
}

// NewStore creates an empty Store mirroring log entries to the given logger.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		snapshot: Snapshot{Stage: StageInitializing, Message: "Starting...", Timestamp: time.Now()},
		logger:   logger,
	}
}

// Bool returns a pointer suitable for Snapshot.Success.
func Bool(v bool) *bool { return &v }

// Publish replaces the snapshot. shouldLog=false suppresses the log
// side-effect (used by the heartbeat) while keeping the snapshot fresh.
func (s *Store) Publish(stage, message string, success *bool, details map[string]any, scheduleInfo []ScheduleCountdown, shouldLog bool) {
	s.mu.Lock()
	s.snapshot = Snapshot{
		Stage:        stage,
		Message:      message,
		Timestamp:    time.Now(),
		Success:      success,
		Details:      details,
		ScheduleInfo: scheduleInfo,
	}
	if shouldLog {
		level := LevelInfo
		if success != nil {
			if *success {
				level = LevelSuccess
			} else {
				level = LevelError
			}
		}
		s.appendLocked(message, level)
	}
	s.mu.Unlock()

	if shouldLog {
		fields := []zap.Field{zap.String("stage", stage)}
		if success != nil && !*success {
			s.logger.Error(message, fields...)
		} else {
			s.logger.Info(message, fields...)
		}
	}
}

// Current returns a copy of the latest snapshot.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot
	if s.snapshot.Details != nil {
		snap.Details = make(map[string]any, len(s.snapshot.Details))
		for k, v := range s.snapshot.Details {
			snap.Details[k] = v
		}
	}
	snap.ScheduleInfo = append([]ScheduleCountdown(nil), s.snapshot.ScheduleInfo...)
	return snap
}

// Reset restores the snapshot to its initial state. The log is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{Stage: StageInitializing, Message: "Starting...", Timestamp: time.Now()}
}

// AppendLog adds a line to the bounded log ring.
func (s *Store) AppendLog(message, level string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(message, level)
}

// appendLocked evicts the oldest entry once the ring is full.
func (s *Store) appendLocked(message, level string) {
	if level == "" {
		level = LevelInfo
	}
	s.logs = append(s.logs, Entry{Timestamp: time.Now(), Level: level, Message: message})
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[len(s.logs)-maxLogEntries:]
	}
}

// Logs returns a copy of the retained log entries, oldest first.
func (s *Store) Logs() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.logs...)
}

// ClearLogs drops all retained log entries.
func (s *Store) ClearLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
}
