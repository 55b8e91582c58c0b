package sharedstorage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/models"
)

// RunCleanup drops broadcasts older than the broadcast TTL and users idle for
// longer than the user TTL. Each collection is rewritten only if something was
// removed from it, including when nothing is left.
func (s *service) RunCleanup(ctx context.Context) *CleanupOutput {
	now := s.clock.Now()
	output := &CleanupOutput{}
	var changes []*models.Change

	s.mu.Lock()

	broadcasts := s.loadBroadcasts(ctx)
	keptBroadcasts := make([]*models.Broadcast, 0, len(broadcasts))
	for _, broadcast := range broadcasts {
		if now.Sub(broadcast.Timestamp) < s.broadcastTTL {
			keptBroadcasts = append(keptBroadcasts, broadcast)
		}
	}
	if removed := len(broadcasts) - len(keptBroadcasts); removed > 0 {
		if change, ok := s.write(ctx, BroadcastsKey, keptBroadcasts); ok {
			output.BroadcastsRemoved = removed
			changes = append(changes, change)
		}
	}

	users := s.loadUsers(ctx)
	keptUsers := s.freshUsers(users, now)
	if removed := len(users) - len(keptUsers); removed > 0 {
		if change, ok := s.write(ctx, UsersKey, keptUsers); ok {
			output.UsersRemoved = removed
			changes = append(changes, change)
		}
	}

	s.mu.Unlock()

	for _, change := range changes {
		s.publishChange(ctx, change)
	}

	s.metrics.addCleanupRemoved("broadcasts", output.BroadcastsRemoved)
	s.metrics.addCleanupRemoved("users", output.UsersRemoved)

	if output.BroadcastsRemoved > 0 || output.UsersRemoved > 0 {
		s.logger.Info("cleanup removed expired records",
			zap.Int("broadcasts", output.BroadcastsRemoved),
			zap.Int("users", output.UsersRemoved))
	}

	return output
}

func (s *service) runCleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunCleanup(ctx)
		}
	}
}
