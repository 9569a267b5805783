package server

import (
	"context"
	"time"
)

const sweepInterval = time.Hour

// StartSweeper runs the periodic cleanup of expired sessions and stale CSRF
// states until ctx is cancelled. It needs no coordination with request
// handling: both sides agree on the expiry predicates and deletion is
// idempotent.
func (s *Server) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runSweep()
			}
		}
	}()
}

func (s *Server) runSweep() {
	removedSessions := s.sessions.CleanupExpired()
	removedStates := 0
	if s.states != nil {
		removedStates = s.states.Sweep()
	}
	if removedSessions > 0 || removedStates > 0 {
		s.log.Info().
			Int("sessions", removedSessions).
			Int("states", removedStates).
			Msg("cleanup sweep removed expired records")
	}
}
