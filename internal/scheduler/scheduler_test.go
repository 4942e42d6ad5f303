package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"solana-trade-agent-go/internal/status"
)

func newTestScheduler() (*Scheduler, *status.Store) {
	store := status.NewStore(zap.NewNop())
	return New(zap.NewNop(), store), store
}

func countingCallback(fires *atomic.Int32) Callback {
	return func(ctx context.Context) (map[string]any, error) {
		fires.Add(1)
		return nil, nil
	}
}

func TestParseDayTimes(t *testing.T) {
	parsed, err := ParseDayTimes([]string{"15:30", "09:30"})
	assert.NoError(t, err)
	// Kept sorted ascending.
	assert.Equal(t, []DayTime{{Hour: 9, Minute: 30}, {Hour: 15, Minute: 30}}, parsed)
}

func TestParseDayTimesRejectsMalformedInput(t *testing.T) {
	cases := []string{"930", "24:00", "09:60", "ab:cd", ""}
	for _, c := range cases {
		_, err := ParseDayTimes([]string{c})
		assert.Error(t, err, "expected error for %q", c)
	}

	_, err := ParseDayTimes(nil)
	assert.Error(t, err)
}

func TestNextDailyFire(t *testing.T) {
	times, err := ParseDayTimes([]string{"09:30", "15:30"})
	assert.NoError(t, err)

	day := func(hour, minute int) time.Time {
		return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
	}

	// Before the first time: fires same day at 09:30.
	assert.Equal(t, day(9, 30), NextDailyFire(day(9, 0), times))
	// Between the two: fires same day at 15:30.
	assert.Equal(t, day(15, 30), NextDailyFire(day(12, 0), times))
	// After the last time: rolls to 09:30 next day.
	assert.Equal(t, day(9, 30).AddDate(0, 0, 1), NextDailyFire(day(16, 0), times))
	// Exactly on a configured time: strictly after, so the next slot.
	assert.Equal(t, day(15, 30), NextDailyFire(day(9, 30), times))
}

func TestScheduleIntervalFiresAndStops(t *testing.T) {
	s, _ := newTestScheduler()
	defer s.StopAll()

	var fires atomic.Int32
	id := s.ScheduleInterval(countingCallback(&fires), 100*time.Millisecond, true)

	// Immediate fire at registration plus ticks at ~100ms and ~200ms.
	time.Sleep(250 * time.Millisecond)
	fired := fires.Load()
	assert.GreaterOrEqual(t, fired, int32(2))

	assert.True(t, s.Stop(id))
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, fired, fires.Load(), "no fires after stop")
}

func TestScheduleIntervalWithoutImmediateExecution(t *testing.T) {
	s, _ := newTestScheduler()
	defer s.StopAll()

	var fires atomic.Int32
	s.ScheduleInterval(countingCallback(&fires), 200*time.Millisecond, false)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load(), "no fire before the first tick")
}

func TestStopDoesNotCancelInFlightExecution(t *testing.T) {
	s, _ := newTestScheduler()

	started := make(chan struct{})
	var sawCancel atomic.Bool
	var completed atomic.Bool
	id := s.ScheduleInterval(func(ctx context.Context) (map[string]any, error) {
		close(started)
		select {
		case <-ctx.Done():
			sawCancel.Store(true)
			return nil, ctx.Err()
		case <-time.After(150 * time.Millisecond):
		}
		completed.Store(true)
		return nil, nil
	}, 30*time.Millisecond, false)

	<-started
	assert.True(t, s.Stop(id))
	s.Wait()

	assert.False(t, sawCancel.Load(), "a running execution must not observe Stop")
	assert.True(t, completed.Load(), "the in-flight execution must run to completion")
}

func TestScheduleIntervalClampsNonPositiveInterval(t *testing.T) {
	s, _ := newTestScheduler()
	defer s.StopAll()

	var fires atomic.Int32
	id := s.ScheduleInterval(countingCallback(&fires), 0, false)

	assert.NotEmpty(t, id)
	assert.Len(t, s.Info(), 1)

	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, fires.Load(), int32(1))
}

func TestStopUnknownSchedule(t *testing.T) {
	s, _ := newTestScheduler()
	assert.False(t, s.Stop("no-such-id"))
}

func TestStopAllReturnsCount(t *testing.T) {
	s, _ := newTestScheduler()

	var fires atomic.Int32
	s.ScheduleInterval(countingCallback(&fires), time.Hour, false)
	s.ScheduleInterval(countingCallback(&fires), time.Hour, false)
	_, err := s.ScheduleDailyTimes(countingCallback(&fires), []string{"09:30"})
	assert.NoError(t, err)

	assert.Equal(t, 3, s.StopAll())
	assert.Equal(t, 0, s.StopAll())
	assert.Empty(t, s.Info())
}

func TestCallbackErrorIsRecordedNotPropagated(t *testing.T) {
	s, _ := newTestScheduler()
	defer s.StopAll()

	s.ScheduleInterval(func(ctx context.Context) (map[string]any, error) {
		return nil, errors.New("quote service down")
	}, time.Hour, true)

	// The immediate fire runs synchronously during registration, so the
	// outcome is already recorded.
	infos := s.Info()
	assert.Len(t, infos, 1)
	assert.NotNil(t, infos[0].LastExecution)
	assert.False(t, infos[0].LastExecution.Success)
	assert.Contains(t, infos[0].LastExecution.Error, "quote service down")
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	s, _ := newTestScheduler()
	defer s.StopAll()

	s.ScheduleInterval(func(ctx context.Context) (map[string]any, error) {
		panic("boom")
	}, time.Hour, true)

	infos := s.Info()
	assert.Len(t, infos, 1)
	assert.NotNil(t, infos[0].LastExecution)
	assert.False(t, infos[0].LastExecution.Success)
	assert.Contains(t, infos[0].LastExecution.Error, "panicked")
}

func TestOverlappingFiresAreSkipped(t *testing.T) {
	s, store := newTestScheduler()
	defer s.StopAll()

	var fires atomic.Int32
	s.ScheduleInterval(func(ctx context.Context) (map[string]any, error) {
		fires.Add(1)
		time.Sleep(180 * time.Millisecond)
		return nil, nil
	}, 50*time.Millisecond, false)

	time.Sleep(400 * time.Millisecond)

	// With a 180ms cycle on a 50ms interval most ticks must be skipped.
	assert.LessOrEqual(t, fires.Load(), int32(3))

	skipped := false
	for _, entry := range store.Logs() {
		if strings.Contains(entry.Message, "skipped fire") {
			skipped = true
			break
		}
	}
	assert.True(t, skipped, "expected a skip log entry")
}

func TestInfoReportsSuccessfulExecution(t *testing.T) {
	s, _ := newTestScheduler()
	defer s.StopAll()

	s.ScheduleInterval(func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"signature": "abc123"}, nil
	}, time.Hour, true)

	infos := s.Info()
	assert.Len(t, infos, 1)
	assert.Equal(t, KindInterval, infos[0].Kind)
	assert.NotNil(t, infos[0].LastExecution)
	assert.True(t, infos[0].LastExecution.Success)
	assert.Equal(t, "abc123", infos[0].LastExecution.Details["signature"])
	assert.True(t, infos[0].NextFireAt.After(time.Now()))
}
