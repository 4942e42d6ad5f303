package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-trade-agent-go/internal/status"
)

// Schedule kinds.
const (
	KindInterval   = "interval"
	KindDailyTimes = "daily_times"
)

const (
	heartbeatPeriod = 5 * time.Second
	// Only every Nth heartbeat writes a log line; the snapshot itself is
	// refreshed on every tick.
	heartbeatLogEvery = 12
)

// Callback is one execution cycle. The returned details are recorded in
// the schedule's last execution.
type Callback func(ctx context.Context) (map[string]any, error)

// Execution records the outcome of a single fire.
type Execution struct {
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// DayTime is a wall-clock fire time in UTC.
type DayTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Info is the externally visible state of an active schedule.
type Info struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	StartedAt     time.Time  `json:"started_at"`
	NextFireAt    time.Time  `json:"next_fire_at"`
	LastExecution *Execution `json:"last_execution,omitempty"`
}

type schedule struct {
	id                 string
	kind               string
	interval           time.Duration
	times              []DayTime
	executeImmediately bool
	startedAt          time.Time
	fn                 Callback
	cancel             context.CancelFunc

	mu            sync.Mutex
	running       bool
	nextFireAt    time.Time
	lastExecution *Execution
}

// Scheduler owns all active schedules and the status heartbeat.
type Scheduler struct {
	logger *zap.Logger
	store  *status.Store

	mu              sync.Mutex
	schedules       map[string]*schedule
	heartbeatCancel context.CancelFunc
	wg              sync.WaitGroup
}

// New creates an empty Scheduler publishing heartbeats into the given store.
func New(logger *zap.Logger, store *status.Store) *Scheduler {
	return &Scheduler{
		logger:    logger.Named("scheduler"),
		store:     store,
		schedules: make(map[string]*schedule),
	}
}

// minInterval is the smallest accepted interval; shorter (or
// non-positive) intervals are clamped to it.
const minInterval = time.Millisecond

// ScheduleInterval registers a schedule firing every interval. With
// executeImmediately the callback also fires once at registration time.
// Intervals below minInterval are clamped.
func (s *Scheduler) ScheduleInterval(fn Callback, interval time.Duration, executeImmediately bool) string {
	if interval < minInterval {
		interval = minInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	sched := &schedule{
		id:                 uuid.NewString(),
		kind:               KindInterval,
		interval:           interval,
		executeImmediately: executeImmediately,
		startedAt:          time.Now(),
		fn:                 fn,
		cancel:             cancel,
	}
	sched.setNextFire(time.Now().Add(interval))

	s.register(sched)

	// The immediate fire happens at registration time, before the first
	// timer tick, so the caller observes its outcome synchronously.
	if executeImmediately {
		s.fire(context.WithoutCancel(ctx), sched)
	}

	s.wg.Add(1)
	go s.runInterval(ctx, sched)

	s.logger.Info("Interval schedule registered",
		zap.String("schedule_id", sched.id),
		zap.Duration("interval", interval),
		zap.Bool("execute_immediately", executeImmediately))
	return sched.id
}

// ScheduleDailyTimes registers a schedule firing at the given UTC
// wall-clock times, each formatted "HH:MM".
func (s *Scheduler) ScheduleDailyTimes(fn Callback, times []string) (string, error) {
	parsed, err := ParseDayTimes(times)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched := &schedule{
		id:        uuid.NewString(),
		kind:      KindDailyTimes,
		times:     parsed,
		startedAt: time.Now(),
		fn:        fn,
		cancel:    cancel,
	}
	sched.setNextFire(NextDailyFire(time.Now().UTC(), parsed))

	s.register(sched)

	s.wg.Add(1)
	go s.runDaily(ctx, sched)

	s.logger.Info("Daily schedule registered",
		zap.String("schedule_id", sched.id),
		zap.Strings("times", times))
	return sched.id, nil
}

// Stop cancels a schedule's future fires. An in-flight execution is not
// interrupted and still records its outcome. Returns false for unknown IDs.
func (s *Scheduler) Stop(id string) bool {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	if ok {
		delete(s.schedules, id)
	}
	stopHeartbeat := ok && len(s.schedules) == 0
	var cancelHeartbeat context.CancelFunc
	if stopHeartbeat {
		cancelHeartbeat = s.heartbeatCancel
		s.heartbeatCancel = nil
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	sched.cancel()
	if cancelHeartbeat != nil {
		cancelHeartbeat()
	}
	s.logger.Info("Schedule stopped", zap.String("schedule_id", id))
	return true
}

// StopAll cancels every active schedule and returns how many were stopped.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	stopped := make([]*schedule, 0, len(s.schedules))
	for id, sched := range s.schedules {
		stopped = append(stopped, sched)
		delete(s.schedules, id)
	}
	cancelHeartbeat := s.heartbeatCancel
	s.heartbeatCancel = nil
	s.mu.Unlock()

	for _, sched := range stopped {
		sched.cancel()
	}
	if cancelHeartbeat != nil {
		cancelHeartbeat()
	}
	if len(stopped) > 0 {
		s.logger.Info("All schedules stopped", zap.Int("count", len(stopped)))
	}
	return len(stopped)
}

// Info returns the state of all active schedules.
func (s *Scheduler) Info() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]Info, 0, len(s.schedules))
	for _, sched := range s.schedules {
		sched.mu.Lock()
		info := Info{
			ID:         sched.id,
			Kind:       sched.kind,
			StartedAt:  sched.startedAt,
			NextFireAt: sched.nextFireAt,
		}
		if sched.lastExecution != nil {
			exec := *sched.lastExecution
			info.LastExecution = &exec
		}
		sched.mu.Unlock()
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StartedAt.Before(infos[j].StartedAt) })
	return infos
}

// Wait blocks until all schedule goroutines have exited. Intended for
// shutdown paths after StopAll.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) register(sched *schedule) {
	s.mu.Lock()
	s.schedules[sched.id] = sched
	if s.heartbeatCancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.heartbeatCancel = cancel
		s.wg.Add(1)
		go s.runHeartbeat(ctx)
	}
	s.mu.Unlock()
}

func (s *Scheduler) runInterval(ctx context.Context, sched *schedule) {
	defer s.wg.Done()

	ticker := time.NewTicker(sched.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sched.setNextFire(time.Now().Add(sched.interval))
			// Fires are serialized per schedule: a tick arriving while
			// the previous cycle is still running is skipped and logged.
			if !sched.tryAcquire() {
				s.logger.Warn("Skipping fire, previous execution still running",
					zap.String("schedule_id", sched.id))
				s.store.AppendLog(
					fmt.Sprintf("Schedule %s: skipped fire, previous execution still running", sched.id),
					status.LevelWarn)
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer sched.release()
				// The schedule's ctx only governs the timer loop. Stop
				// prevents future fires; an execution already running
				// completes and records its outcome.
				s.fire(context.WithoutCancel(ctx), sched)
			}()
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context, sched *schedule) {
	defer s.wg.Done()

	for {
		next := NextDailyFire(time.Now().UTC(), sched.times)
		sched.setNextFire(next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(context.WithoutCancel(ctx), sched)
		}
	}
}

// fire wraps one callback execution, recording its outcome regardless of
// how it ends. Both schedule kinds run through this single path.
func (s *Scheduler) fire(ctx context.Context, sched *schedule) {
	start := time.Now()
	details, err := s.invoke(ctx, sched)

	exec := &Execution{
		Timestamp: start,
		Duration:  time.Since(start),
		Success:   err == nil,
		Details:   details,
	}
	if err != nil {
		exec.Error = err.Error()
	}

	sched.mu.Lock()
	sched.lastExecution = exec
	sched.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled execution failed",
			zap.String("schedule_id", sched.id),
			zap.Duration("duration", exec.Duration),
			zap.Error(err))
	} else {
		s.logger.Info("Scheduled execution completed",
			zap.String("schedule_id", sched.id),
			zap.Duration("duration", exec.Duration))
	}
}

// invoke calls the callback, converting a panic into a recorded error so a
// misbehaving cycle can never take the timer down.
func (s *Scheduler) invoke(ctx context.Context, sched *schedule) (details map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return sched.fn(ctx)
}

func (s *Scheduler) runHeartbeat(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			s.publishCountdowns(tick%heartbeatLogEvery == 0)
		}
	}
}

func (s *Scheduler) publishCountdowns(shouldLog bool) {
	now := time.Now()

	s.mu.Lock()
	countdowns := make([]status.ScheduleCountdown, 0, len(s.schedules))
	for _, sched := range s.schedules {
		sched.mu.Lock()
		countdowns = append(countdowns, status.ScheduleCountdown{
			ID:         sched.id,
			Kind:       sched.kind,
			NextFireAt: sched.nextFireAt,
			NextFireIn: sched.nextFireAt.Sub(now).Truncate(time.Second),
		})
		sched.mu.Unlock()
	}
	s.mu.Unlock()

	if len(countdowns) == 0 {
		return
	}

	soonest := countdowns[0]
	for _, c := range countdowns[1:] {
		if c.NextFireAt.Before(soonest.NextFireAt) {
			soonest = c
		}
	}
	msg := fmt.Sprintf("Next execution in %s", soonest.NextFireIn)
	s.store.Publish(status.StageScheduled, msg, nil, nil, countdowns, false)
	if shouldLog {
		s.store.AppendLog(msg, status.LevelInfo)
		s.logger.Info("Schedule heartbeat",
			zap.Int("active_schedules", len(countdowns)),
			zap.Duration("next_fire_in", soonest.NextFireIn))
	}
}

func (sched *schedule) setNextFire(t time.Time) {
	sched.mu.Lock()
	sched.nextFireAt = t
	sched.mu.Unlock()
}

func (sched *schedule) tryAcquire() bool {
	sched.mu.Lock()
	defer sched.mu.Unlock()
	if sched.running {
		return false
	}
	sched.running = true
	return true
}

func (sched *schedule) release() {
	sched.mu.Lock()
	sched.running = false
	sched.mu.Unlock()
}

// ParseDayTimes parses "HH:MM" strings into a sorted ascending slice.
func ParseDayTimes(times []string) ([]DayTime, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("at least one time is required")
	}

	parsed := make([]DayTime, 0, len(times))
	for _, raw := range times {
		parts := strings.Split(raw, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid time %q, expected HH:MM", raw)
		}
		hour, err := strconv.Atoi(parts[0])
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("invalid hour in %q", raw)
		}
		minute, err := strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("invalid minute in %q", raw)
		}
		parsed = append(parsed, DayTime{Hour: hour, Minute: minute})
	}

	sort.Slice(parsed, func(i, j int) bool {
		if parsed[i].Hour != parsed[j].Hour {
			return parsed[i].Hour < parsed[j].Hour
		}
		return parsed[i].Minute < parsed[j].Minute
	})
	return parsed, nil
}

// NextDailyFire returns the earliest configured time strictly after now,
// rolling over to the first configured time tomorrow when none remain
// today. times must be sorted ascending; now is interpreted in UTC.
func NextDailyFire(now time.Time, times []DayTime) time.Time {
	for _, t := range times {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, time.UTC)
		if candidate.After(now) {
			return candidate
		}
	}
	first := times[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), first.Hour, first.Minute, 0, 0, time.UTC)
}
