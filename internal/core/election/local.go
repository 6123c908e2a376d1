package election

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/devansh-12/messaging-app/internal/core/domain"
)

// LocalTransport connects engines living in the same process. Delivery goes
// through the receiving engine's Schedule, so handlers still run on the
// receiver's loop. Used by tests and single-binary demos.
type LocalTransport struct {
	mu      sync.RWMutex
	engines map[int64]*Engine
	down    map[int64]bool
}

// NewLocalTransport returns an empty in-process transport.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		engines: make(map[int64]*Engine),
		down:    make(map[int64]bool),
	}
}

// Register makes e reachable under its node id.
func (t *LocalTransport) Register(e *Engine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engines[e.SelfID()] = e
}

// SetDown marks a node as unreachable, or reachable again.
func (t *LocalTransport) SetDown(id int64, down bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.down[id] = down
}

// SendElection implements Transport.
func (t *LocalTransport) SendElection(ctx context.Context, to domain.Node, msg *domain.Election) error {
	e, err := t.target(ctx, to.ID)
	if err != nil {
		return err
	}
	cp := &domain.Election{CandidateIDs: slices.Clone(msg.CandidateIDs), InitiatorID: msg.InitiatorID}
	e.cfg.Schedule(func() { e.HandleElection(cp) })
	return nil
}

// SendCoordinator implements Transport.
func (t *LocalTransport) SendCoordinator(ctx context.Context, to domain.Node, msg *domain.Coordinator) error {
	e, err := t.target(ctx, to.ID)
	if err != nil {
		return err
	}
	cp := *msg
	e.cfg.Schedule(func() { e.HandleCoordinator(&cp) })
	return nil
}

func (t *LocalTransport) target(ctx context.Context, id int64) (*Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrPeerUnreachable.WithCause(err)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.engines[id]
	if !ok || t.down[id] {
		return nil, domain.ErrPeerUnreachable.WithDetails(fmt.Sprintf("node %d", id))
	}
	return e, nil
}
