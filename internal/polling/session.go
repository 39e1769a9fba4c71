package polling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the bookkeeping for one in-flight monitoring loop. The
// orchestrator holds it only as a cancel handle; loop internals stay here.
type Session struct {
	ID        string
	TargetID  string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session scoped under parent for one target.
func NewSession(parent context.Context, targetID string) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:        uuid.NewString(),
		TargetID:  targetID,
		StartedAt: time.Now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context returns the context governing the session's polling loop.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Cancel stops the loop: any pending wait resolves immediately and no
// further status fetch is issued.
func (s *Session) Cancel() {
	s.cancel()
}

// Cancelled reports whether the session has been cancelled or finished.
func (s *Session) Cancelled() bool {
	return s.ctx.Err() != nil
}
