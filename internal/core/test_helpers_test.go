package core

import (
	"context"
	"sync"
	"time"

	"coursestore/internal/infra/persistence/memory"
	"coursestore/pkg/domain"
)

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, line := range l.lines {
		if line.level == level {
			out = append(out, line.msg)
		}
	}
	return out
}

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *captureAuditRecorder) last() AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

type metricCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricCall
}

func (m *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricCall{op: op, success: success, duration: duration})
}

type spanKey struct{}

type captureTracer struct {
	mu    sync.Mutex
	spans []*captureSpan
}

func (t *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	span := &captureSpan{op: op}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, span), span
}

type captureSpan struct {
	op    string
	ended int
	err   error
}

func (s *captureSpan) End(err error) {
	s.ended++
	s.err = err
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// faults configures failures injected by faultFactory. Operations not named
// pass through to the wrapped provider.
type faults struct {
	open     error
	begin    error
	get      error
	save     error
	del      error
	query    error
	commit   error
	rollback error
	close    error
	panicOn  string
}

// faultFactory wraps a provider, injects failures and records the lifecycle
// calls the gateway makes.
type faultFactory struct {
	inner domain.SessionFactory[*domain.Course]
	f     faults

	mu     sync.Mutex
	events []string
	ctxs   []context.Context
}

func newFaultFactory(inner domain.SessionFactory[*domain.Course], f faults) *faultFactory {
	return &faultFactory{inner: inner, f: f}
}

func (ff *faultFactory) record(ctx context.Context, event string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ff.events = append(ff.events, event)
	if ctx != nil {
		ff.ctxs = append(ff.ctxs, ctx)
	}
	if ff.f.panicOn == event {
		panic("injected " + event + " panic")
	}
}

func (ff *faultFactory) log() []string {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return append([]string(nil), ff.events...)
}

func (ff *faultFactory) OpenSession(ctx context.Context) (domain.Session[*domain.Course], error) {
	ff.record(ctx, "open")
	if ff.f.open != nil {
		return nil, ff.f.open
	}
	sess, err := ff.inner.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	return &faultSession{ff: ff, inner: sess}, nil
}

type faultSession struct {
	ff    *faultFactory
	inner domain.Session[*domain.Course]
}

func (s *faultSession) BeginTransaction(ctx context.Context) (domain.Transaction, error) {
	s.ff.record(ctx, "begin")
	if s.ff.f.begin != nil {
		return nil, s.ff.f.begin
	}
	tx, err := s.inner.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return &faultTx{ff: s.ff, inner: tx}, nil
}

func (s *faultSession) Get(ctx context.Context, id int64) (*domain.Course, bool, error) {
	s.ff.record(ctx, "get")
	if s.ff.f.get != nil {
		return nil, false, s.ff.f.get
	}
	return s.inner.Get(ctx, id)
}

func (s *faultSession) SaveOrUpdate(ctx context.Context, c *domain.Course) error {
	s.ff.record(ctx, "save")
	if err := s.inner.SaveOrUpdate(ctx, c); err != nil {
		return err
	}
	return s.ff.f.save
}

func (s *faultSession) Delete(ctx context.Context, c *domain.Course) error {
	s.ff.record(ctx, "delete")
	if s.ff.f.del != nil {
		return s.ff.f.del
	}
	return s.inner.Delete(ctx, c)
}

func (s *faultSession) QueryAll(ctx context.Context) ([]*domain.Course, error) {
	s.ff.record(ctx, "query")
	if s.ff.f.query != nil {
		return nil, s.ff.f.query
	}
	return s.inner.QueryAll(ctx)
}

func (s *faultSession) Close() error {
	s.ff.record(nil, "close")
	if err := s.inner.Close(); err != nil {
		return err
	}
	return s.ff.f.close
}

type faultTx struct {
	ff    *faultFactory
	inner domain.Transaction
}

func (t *faultTx) Commit() error {
	t.ff.record(nil, "commit")
	if t.ff.f.commit != nil {
		return t.ff.f.commit
	}
	return t.inner.Commit()
}

func (t *faultTx) Rollback() error {
	t.ff.record(nil, "rollback")
	if err := t.inner.Rollback(); err != nil {
		return err
	}
	return t.ff.f.rollback
}

func newMemoryGateway(opts ...Option) (*Gateway[*domain.Course], *memory.Store[*domain.Course]) {
	store := memory.NewCourseStore()
	return NewCourseGateway(store, opts...), store
}

func newFaultGateway(f faults, opts ...Option) (*Gateway[*domain.Course], *memory.Store[*domain.Course], *faultFactory) {
	store := memory.NewCourseStore()
	ff := newFaultFactory(store, f)
	return NewCourseGateway(ff, opts...), store, ff
}

func course(name string, fee int) *domain.Course {
	return &domain.Course{
		Name:      name,
		BeginDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC),
		Fee:       fee,
	}
}
