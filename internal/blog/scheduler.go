package blog

import (
	"context"
	"errors"
	"sync"
	"time"
)

// scheduledPrefix names archives produced by timer ticks.
const scheduledPrefix = "scheduled-backup"

// Scheduler gates automatic backups on a pair of latched timestamps:
// a backup is due iff a change was recorded after the last successful
// backup. One Scheduler instance owns its state; nothing is
// process-global, so tests can run isolated instances.
type Scheduler struct {
	svc    *Service
	clock  Clock
	logger Logger
	prefix string

	mu         sync.Mutex
	lastChange time.Time
	hasChange  bool
	lastBackup time.Time
	hasBackup  bool
}

// SchedulerStatus is a point-in-time view of the scheduler state.
type SchedulerStatus struct {
	LastChange     *time.Time
	LastBackup     *time.Time
	ChangesPending bool
}

// NewScheduler creates a Scheduler driving the given service.
func NewScheduler(svc *Service, clock Clock, logger Logger) *Scheduler {
	return &Scheduler{svc: svc, clock: clock, logger: logger, prefix: scheduledPrefix}
}

// SetPrefix overrides the archive name prefix for scheduled backups.
func (sc *Scheduler) SetPrefix(prefix string) {
	if prefix != "" {
		sc.prefix = prefix
	}
}

// RecordChange marks the store dirty. Safe to call any number of
// times; only the latest timestamp matters.
func (sc *Scheduler) RecordChange() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lastChange = sc.clock.Now()
	sc.hasChange = true
}

// Due reports whether a backup should run: a change has been recorded
// and it is strictly after the last successful backup.
func (sc *Scheduler) Due() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.due()
}

func (sc *Scheduler) due() bool {
	return sc.hasChange && (!sc.hasBackup || sc.lastChange.After(sc.lastBackup))
}

// Tick runs one scheduling cycle. If no backup is due it returns
// (nil, nil) without touching the pipeline. If another operation is
// already in flight the tick is skipped, not queued. On success the
// change latch is cleared; on failure both timestamps are left alone
// so the next tick retries.
func (sc *Scheduler) Tick(ctx context.Context) (*BackupResult, error) {
	if !sc.Due() {
		sc.logger.Debug("tick: no changes since last backup, skipping")
		return nil, nil
	}
	return sc.runBackup(ctx, true)
}

// ForceBackup runs the backup pipeline unconditionally, bypassing the
// due-check. Timestamps are updated the same way as for a tick.
func (sc *Scheduler) ForceBackup(ctx context.Context) (*BackupResult, error) {
	return sc.runBackup(ctx, false)
}

func (sc *Scheduler) runBackup(ctx context.Context, skipWhenBusy bool) (*BackupResult, error) {
	name := sc.svc.BackupName(sc.prefix)
	result, err := sc.svc.createBackup(ctx, scheduledPrefix, name)
	if err != nil {
		if skipWhenBusy && errors.Is(err, ErrBusy) {
			sc.logger.Info("tick: operation in progress, skipping")
			return nil, nil
		}
		return nil, err
	}

	sc.mu.Lock()
	sc.lastBackup = sc.clock.Now()
	sc.hasBackup = true
	sc.hasChange = false
	sc.mu.Unlock()

	return result, nil
}

// Status returns the current scheduler state.
func (sc *Scheduler) Status() SchedulerStatus {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	status := SchedulerStatus{ChangesPending: sc.due()}
	if sc.hasChange {
		t := sc.lastChange
		status.LastChange = &t
	}
	if sc.hasBackup {
		t := sc.lastBackup
		status.LastBackup = &t
	}
	return status
}

// Run fires Tick on a fixed wall-clock interval until ctx is done.
// Tick errors are logged, never returned: a failed scheduled backup
// must not take the process down, and the unchanged timestamps make
// the next tick retry.
func (sc *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sc.logger.Info("scheduler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if _, err := sc.Tick(ctx); err != nil {
				sc.logger.Error("scheduled backup failed", "error", err)
			}
		}
	}
}
