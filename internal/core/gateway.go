// Package core implements the persistence gateway: every public call runs in its
// own session and, for mutations, its own transaction, and the session is
// released on every path.
package core

import (
	"context"
	"fmt"
	"time"

	"coursestore/pkg/domain"
)

// Phase is a step of the per-call session lifecycle.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseSessionOpen   Phase = "session_open"
	PhaseTxActive      Phase = "tx_active"
	PhaseCommitted     Phase = "committed"
	PhaseRolledBack    Phase = "rolled_back"
	PhaseSessionClosed Phase = "session_closed"
)

// Operation names reported to loggers, metrics, tracers and audit recorders.
const (
	OpStore    = "store"
	OpDelete   = "delete"
	OpFindByID = "find_by_id"
	OpFindAll  = "find_all"
)

// Gateway is a thin transactional facade over a session factory. It keeps no
// mutable state and is safe for concurrent use.
type Gateway[E domain.Entity] struct {
	sessions domain.SessionFactory[E]
	options
}

// NewGateway constructs a gateway over the supplied session factory.
func NewGateway[E domain.Entity](sessions domain.SessionFactory[E], opts ...Option) *Gateway[E] {
	if sessions == nil {
		panic("core: nil session factory")
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Gateway[E]{sessions: sessions, options: o}
}

// call tracks one gateway invocation through its lifecycle.
type call struct {
	op      string
	id      int64
	phase   Phase
	outcome Outcome
}

func newCall(op string, id int64) *call {
	return &call{op: op, id: id, phase: PhaseIdle, outcome: OutcomeNone}
}

// Store inserts the entity when its key is zero and updates it otherwise, then
// returns it with its key assigned. On failure the unit of work is rolled back
// and the store error is returned unchanged; if that rolled back an insert the
// entity's key is reset to zero. Entities implementing domain.Normalizer are
// normalized before they are written. The entity must be non-nil.
func (g *Gateway[E]) Store(ctx context.Context, entity E) (E, error) {
	inserting := entity.Key() == 0
	if n, ok := any(entity).(domain.Normalizer); ok {
		n.Normalize()
	}
	c := newCall(OpStore, entity.Key())
	err := g.observe(ctx, c, func(ctx context.Context) error {
		return g.inTransaction(ctx, c, func(ctx context.Context, sess domain.Session[E]) error {
			err := sess.SaveOrUpdate(ctx, entity)
			c.id = entity.Key()
			return err
		})
	})
	if err != nil && inserting && c.outcome != OutcomeCommitted {
		entity.SetKey(0)
	}
	return entity, err
}

// Delete removes the entity stored under id. A missing id is not an error.
func (g *Gateway[E]) Delete(ctx context.Context, id int64) error {
	c := newCall(OpDelete, id)
	return g.observe(ctx, c, func(ctx context.Context) error {
		return g.inTransaction(ctx, c, func(ctx context.Context, sess domain.Session[E]) error {
			entity, ok, err := sess.Get(ctx, id)
			if err != nil || !ok {
				return err
			}
			return sess.Delete(ctx, entity)
		})
	})
}

// FindByID loads the entity stored under id. An absent entity is reported as
// (zero, false, nil).
func (g *Gateway[E]) FindByID(ctx context.Context, id int64) (E, bool, error) {
	var (
		found E
		ok    bool
	)
	c := newCall(OpFindByID, id)
	err := g.observe(ctx, c, func(ctx context.Context) error {
		return g.withSession(ctx, c, func(ctx context.Context, sess domain.Session[E]) error {
			var err error
			found, ok, err = sess.Get(ctx, id)
			return err
		})
	})
	if err != nil || !ok {
		var zero E
		return zero, false, err
	}
	return found, true, nil
}

// FindAll returns every stored entity, fully loaded before the session closes.
func (g *Gateway[E]) FindAll(ctx context.Context) ([]E, error) {
	var all []E
	c := newCall(OpFindAll, 0)
	err := g.observe(ctx, c, func(ctx context.Context) error {
		return g.withSession(ctx, c, func(ctx context.Context, sess domain.Session[E]) error {
			var err error
			all, err = sess.QueryAll(ctx)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []E{}
	}
	return all, nil
}

// withSession opens a session, runs fn and closes the session on every path,
// panics included. A close error surfaces only when fn succeeded.
func (g *Gateway[E]) withSession(ctx context.Context, c *call, fn func(context.Context, domain.Session[E]) error) (err error) {
	sess, err := g.sessions.OpenSession(ctx)
	if err != nil {
		return err
	}
	c.phase = PhaseSessionOpen
	defer func() {
		cerr := sess.Close()
		c.phase = PhaseSessionClosed
		if cerr == nil {
			return
		}
		if err == nil {
			err = cerr
			return
		}
		g.logger.Warn("session close failed", "operation", c.op, "entity_id", c.id, "error", cerr)
	}()
	return fn(ctx, sess)
}

// inTransaction runs fn between begin and commit. Any failure after begin,
// commit failures and panics included, rolls back before the error or panic
// propagates. A begin failure is returned without a rollback.
func (g *Gateway[E]) inTransaction(ctx context.Context, c *call, fn func(context.Context, domain.Session[E]) error) error {
	return g.withSession(ctx, c, func(ctx context.Context, sess domain.Session[E]) error {
		tx, err := sess.BeginTransaction(ctx)
		if err != nil {
			return err
		}
		c.phase = PhaseTxActive
		committed := false
		defer func() {
			if !committed {
				g.rollback(c, tx)
			}
		}()
		if err := fn(ctx, sess); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		c.phase = PhaseCommitted
		c.outcome = OutcomeCommitted
		return nil
	})
}

func (g *Gateway[E]) rollback(c *call, tx domain.Transaction) {
	c.phase = PhaseRolledBack
	c.outcome = OutcomeRolledBack
	if err := tx.Rollback(); err != nil {
		g.logger.Warn("rollback failed", "operation", c.op, "entity_id", c.id, "error", err)
		return
	}
	g.logger.Info("transaction rolled back", "operation", c.op, "entity_id", c.id)
}

// observe wraps a call with tracing, metrics, audit and logging. A panic is
// reported as a failure and then re-raised.
func (g *Gateway[E]) observe(ctx context.Context, c *call, fn func(context.Context) error) error {
	start := g.clock.Now()
	ctx, span := g.tracer.Start(ctx, c.op)
	g.logger.Debug("operation started", "operation", c.op, "entity_id", c.id)
	defer func() {
		if r := recover(); r != nil {
			g.finish(ctx, span, c, start, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()
	err := fn(ctx)
	g.finish(ctx, span, c, start, err)
	return err
}

func (g *Gateway[E]) finish(ctx context.Context, span TraceSpan, c *call, start time.Time, err error) {
	now := g.clock.Now()
	duration := now.Sub(start)
	span.End(err)
	g.metrics.Observe(ctx, c.op, err == nil, duration)

	entry := AuditEntry{
		Operation: c.op,
		EntityID:  c.id,
		Status:    AuditStatusSuccess,
		Outcome:   c.outcome,
		Phase:     c.phase,
		Duration:  duration,
		Timestamp: now,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		g.logger.Error("operation failed", "operation", c.op, "entity_id", c.id, "outcome", string(c.outcome), "error", err)
	} else {
		g.logger.Debug("operation completed", "operation", c.op, "entity_id", c.id, "outcome", string(c.outcome))
	}
	g.audit.Record(ctx, entry)
}
