package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickFunc runs one periodic update for a group. Returning done=true
// ends the loop; an error is logged and the loop carries on.
type TickFunc func(ctx context.Context) (done bool, err error)

type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// GroupScheduler owns the per-group update loops. Each group has at
// most one loop; starting a group that already has one replaces it,
// and the old loop is fully stopped before the new one begins. Loops
// sleep a full interval before their first tick.
type GroupScheduler struct {
	logger   *zap.Logger
	interval time.Duration

	// opMu serializes Start/Stop/StopAll so replacement never races.
	opMu sync.Mutex

	mu    sync.Mutex
	loops map[string]*loopHandle
}

// NewGroupScheduler creates a scheduler ticking every interval.
func NewGroupScheduler(interval time.Duration, logger *zap.Logger) *GroupScheduler {
	return &GroupScheduler{
		logger:   logger,
		interval: interval,
		loops:    make(map[string]*loopHandle),
	}
}

// Start launches the update loop for a group, replacing any loop
// already running for it.
func (s *GroupScheduler) Start(groupID string, tick TickFunc) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stopLocked(groupID)

	ctx, cancel := context.WithCancel(context.Background())
	handle := &loopHandle{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.loops[groupID] = handle
	s.mu.Unlock()

	go s.run(ctx, groupID, handle, tick)
	s.logger.Info("update loop started", zap.String("group_id", groupID))
}

// Stop cancels the loop for a group and waits for it to exit. Stopping
// a group with no loop is a no-op.
func (s *GroupScheduler) Stop(groupID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stopLocked(groupID)
}

// StopAll stops every loop. Called on shutdown.
func (s *GroupScheduler) StopAll() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	handles := s.loops
	s.loops = make(map[string]*loopHandle)
	s.mu.Unlock()

	for id, h := range handles {
		h.cancel()
		<-h.done
		s.logger.Info("update loop stopped", zap.String("group_id", id))
	}
}

// Running reports whether a loop is active for the group.
func (s *GroupScheduler) Running(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[groupID]
	return ok
}

func (s *GroupScheduler) stopLocked(groupID string) {
	s.mu.Lock()
	handle, ok := s.loops[groupID]
	if ok {
		delete(s.loops, groupID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	handle.cancel()
	<-handle.done
	s.logger.Info("update loop stopped", zap.String("group_id", groupID))
}

func (s *GroupScheduler) run(ctx context.Context, groupID string, handle *loopHandle, tick TickFunc) {
	defer close(handle.done)
	defer s.remove(groupID, handle)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		done, err := tick(ctx)
		if err != nil {
			s.logger.Error("group update failed",
				zap.String("group_id", groupID), zap.Error(err))
		}
		if done {
			s.logger.Info("update loop finished", zap.String("group_id", groupID))
			return
		}

		timer.Reset(s.interval)
	}
}

// remove clears the map entry only when it still points at this loop,
// leaving any replacement started in the meantime untouched.
func (s *GroupScheduler) remove(groupID string, handle *loopHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.loops[groupID]; ok && current == handle {
		delete(s.loops, groupID)
	}
}
