package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/senselogic/internal/expr"
	"github.com/roach88/senselogic/internal/ir"
)

const (
	queueExpressions = "expressions"
	queueValues      = "values"
)

// registration is an active logic expression.
type registration struct {
	id   string
	root expr.Logical

	mu      sync.Mutex
	last    ir.TriState
	hasLast bool
}

// record stores state and reports whether it differs from the previous one.
func (r *registration) record(state ir.TriState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := !r.hasLast || r.last != state
	r.last, r.hasLast = state, true
	return changed
}

func (r *registration) lastState() (ir.TriState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// subscription is an active value subscription.
type subscription struct {
	id   string
	node expr.Valued

	mu      sync.Mutex
	last    []ir.Reading
	hasLast bool
}

// record stores readings and reports whether listeners should hear about
// them. A nil slice after nothing or after another nil is not news.
func (s *subscription) record(readings []ir.Reading) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if readings == nil {
		changed := s.hasLast
		s.last, s.hasLast = nil, false
		return changed
	}
	changed := !s.hasLast || !ir.ReadingsEqual(s.last, readings)
	s.last, s.hasLast = readings, true
	return changed
}

type ownerKind int

const (
	ownerExpression ownerKind = iota + 1
	ownerSubscription
)

// owner records who holds an id. claim tells one registration attempt apart
// from a later one reusing the same id.
type owner struct {
	kind  ownerKind
	claim uint64
}

// Scheduler re-evaluates registered expressions when their results could
// change and reports state transitions to listeners.
//
// Two queues run independently: one for logic expressions, one for value
// subscriptions. Each entry is scheduled at its tree's defer-until time.
// Expressions that evaluate to UNDEFINED are parked until NotifyDataChanged
// names one of their leaves.
//
// Thread-safety model:
//   - Register, Unregister, Submit, Subscribe, Unsubscribe,
//     NotifyDataChanged, Snapshot: safe from any goroutine
//   - Run: call once; it blocks until ctx is cancelled or Shutdown
//   - Step: for single-goroutine drivers that do not call Run
//
// No two workers evaluate the same id concurrently.
type Scheduler struct {
	sensors expr.SensorCapability
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics
	ids     IDGenerator
	workers int

	exprs  *deadlineQueue[*registration]
	values *deadlineQueue[*subscription]

	mu        sync.RWMutex
	owners    map[string]owner
	aliases   map[string]string // leaf id -> owning id
	claims    uint64
	listeners []Listener
	readers   []ReadingListener
	closed    bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, typically with a test clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithIDGenerator sets the generator used by Submit.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) { s.ids = g }
}

// WithWorkers sets the number of workers per queue. Default: 1.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a Scheduler whose leaves bind to sensors.
func New(sensors expr.SensorCapability, opts ...Option) *Scheduler {
	s := &Scheduler{
		sensors: sensors,
		clock:   SystemClock{},
		logger:  slog.Default(),
		ids:     UUIDv7Generator{},
		workers: 1,
		exprs:   newDeadlineQueue[*registration](queueExpressions),
		values:  newDeadlineQueue[*subscription](queueValues),
		owners:  make(map[string]owner),
		aliases: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddListener subscribes l to expression transitions.
func (s *Scheduler) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// AddReadingListener subscribes l to value subscription updates.
func (s *Scheduler) AddReadingListener(l ReadingListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readers = append(s.readers, l)
}

// Register binds root's leaves and schedules it for evaluation now.
//
// It fails with ALREADY_REGISTERED if id is active, with CONFIGURATION or
// SETUP if a leaf cannot be bound (already bound leaves are released), and
// with SHUTDOWN after Shutdown.
//
// An Unregister that lands while the leaves are being bound wins: the tree is
// destroyed and Register fails with NOT_REGISTERED.
func (s *Scheduler) Register(ctx context.Context, id string, root expr.Logical) error {
	expr.AssignIDs(root, id)
	claim, err := s.claim(id, ownerExpression, root)
	if err != nil {
		return err
	}
	if err := s.bind(ctx, id, claim, root); err != nil {
		return err
	}
	if err := s.commit(id, claim, func(now int64) bool {
		return s.exprs.add(id, &registration{id: id, root: root}, now)
	}); err != nil {
		expr.Destroy(ctx, root)
		return err
	}
	s.logger.Debug("expression registered", "expression_id", id, "expression", root.String())
	s.updateDepth()
	return nil
}

// Submit registers root under a generated id and returns the id.
func (s *Scheduler) Submit(ctx context.Context, root expr.Logical) (string, error) {
	id := s.ids.Generate()
	if err := s.Register(ctx, id, root); err != nil {
		return "", err
	}
	return id, nil
}

// Unregister removes id and releases its sensors. An evaluation already in
// flight completes silently and is not requeued.
func (s *Scheduler) Unregister(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.releaseKindLocked(id, ownerExpression) {
		s.mu.Unlock()
		return &RegistrationError{Code: ErrCodeNotRegistered, ID: id}
	}
	reg, ok := s.exprs.remove(id)
	s.mu.Unlock()
	if ok {
		expr.Destroy(ctx, reg.root)
	}
	s.logger.Debug("expression unregistered", "expression_id", id)
	s.updateDepth()
	return nil
}

// Subscribe binds node's leaves and reports its readings to reading
// listeners whenever they change.
func (s *Scheduler) Subscribe(ctx context.Context, id string, node expr.Valued) error {
	expr.AssignIDs(node, id)
	claim, err := s.claim(id, ownerSubscription, node)
	if err != nil {
		return err
	}
	if err := s.bind(ctx, id, claim, node); err != nil {
		return err
	}
	if err := s.commit(id, claim, func(now int64) bool {
		return s.values.add(id, &subscription{id: id, node: node}, now)
	}); err != nil {
		expr.Destroy(ctx, node)
		return err
	}
	s.logger.Debug("subscription registered", "subscription_id", id, "expression", node.String())
	s.updateDepth()
	return nil
}

// Unsubscribe removes a value subscription.
func (s *Scheduler) Unsubscribe(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.releaseKindLocked(id, ownerSubscription) {
		s.mu.Unlock()
		return &RegistrationError{Code: ErrCodeNotRegistered, ID: id}
	}
	sub, ok := s.values.remove(id)
	s.mu.Unlock()
	if ok {
		expr.Destroy(ctx, sub.node)
	}
	s.updateDepth()
	return nil
}

// NotifyDataChanged makes every entry owning one of ids due now. Ids may name
// leaves or whole expressions; unknown ids are ignored. Safe to call at any
// time, including while the named entry is being evaluated.
func (s *Scheduler) NotifyDataChanged(ids ...string) {
	now := s.clock.Now()
	for _, id := range ids {
		s.mu.RLock()
		key, ok := s.aliases[id]
		if !ok {
			key = id
		}
		kind := s.owners[key].kind
		s.mu.RUnlock()

		switch kind {
		case ownerExpression:
			if s.exprs.promote(key, now) {
				s.metrics.promoted(queueExpressions)
			}
		case ownerSubscription:
			if s.values.promote(key, now) {
				s.metrics.promoted(queueValues)
			}
		}
	}
}

// claim reserves id and the leaf ids under n and returns the claim number.
func (s *Scheduler) claim(id string, kind ownerKind, n expr.Node) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, &RegistrationError{Code: ErrCodeShutdown, ID: id}
	}
	if _, taken := s.owners[id]; taken {
		return 0, &RegistrationError{Code: ErrCodeAlreadyRegistered, ID: id}
	}
	leaves := expr.Leaves(n)
	for _, leaf := range leaves {
		if _, taken := s.aliases[leaf.ID()]; taken {
			return 0, &RegistrationError{Code: ErrCodeAlreadyRegistered, ID: id,
				Err: fmt.Errorf("leaf id %s in use", leaf.ID())}
		}
	}
	s.claims++
	s.owners[id] = owner{kind: kind, claim: s.claims}
	for _, leaf := range leaves {
		s.aliases[leaf.ID()] = id
	}
	return s.claims, nil
}

// commit queues a freshly bound entry if claim still holds id. The add runs
// under mu, the same lock Unregister holds while it releases and removes.
func (s *Scheduler) commit(id string, claim uint64, add func(now int64) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &RegistrationError{Code: ErrCodeShutdown, ID: id}
	}
	if s.owners[id].claim != claim {
		return &RegistrationError{Code: ErrCodeNotRegistered, ID: id,
			Err: errors.New("unregistered while binding")}
	}
	if !add(s.clock.Now()) {
		s.releaseLocked(id)
		return &RegistrationError{Code: ErrCodeShutdown, ID: id}
	}
	return nil
}

func (s *Scheduler) bind(ctx context.Context, id string, claim uint64, n expr.Node) error {
	err := expr.Initialize(ctx, n, s.sensors)
	if err == nil {
		return nil
	}
	s.releaseClaim(id, claim)
	code := ErrCodeSetup
	if expr.IsConfigurationError(err) {
		code = ErrCodeConfiguration
	}
	s.logger.Warn("binding failed", "id", id, "code", string(code), "error", err)
	return &RegistrationError{Code: code, ID: id, Err: err}
}

// releaseClaim frees id if claim still holds it.
func (s *Scheduler) releaseClaim(id string, claim uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[id].claim == claim {
		s.releaseLocked(id)
	}
}

func (s *Scheduler) releaseLocked(id string) {
	delete(s.owners, id)
	for leaf, owner := range s.aliases {
		if owner == id {
			delete(s.aliases, leaf)
		}
	}
}

// releaseKindLocked frees id if it is owned by kind.
func (s *Scheduler) releaseKindLocked(id string, kind ownerKind) bool {
	if o, ok := s.owners[id]; !ok || o.kind != kind {
		return false
	}
	s.releaseLocked(id)
	return true
}

// Run starts the workers of both queues and blocks until ctx is cancelled
// or Shutdown is called.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting", "workers", s.workers)
	g, ctx := errgroup.WithContext(ctx)
	for range s.workers {
		g.Go(func() error {
			return runQueue(ctx, s, s.exprs, s.evaluateExpression)
		})
		g.Go(func() error {
			return runQueue(ctx, s, s.values, s.refreshValue)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		s.logger.Info("scheduler stopping: context cancelled")
	} else {
		s.logger.Info("scheduler stopping")
	}
	return err
}

// runQueue is one worker loop. It processes due entries, otherwise sleeps
// until the next deadline or until new work is signalled.
func runQueue[T any](ctx context.Context, s *Scheduler, q *deadlineQueue[T], process func(context.Context, *queueEntry[T], int64)) error {
	for {
		now := s.clock.Now()
		e, wakeAt, closed := q.next(now)
		if closed {
			return nil
		}
		if e != nil {
			process(ctx, e, now)
			continue
		}

		var timer Timer
		var fire <-chan time.Time
		if wakeAt != ir.Forever {
			timer = s.clock.TimerAt(wakeAt)
			fire = timer.C()
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case _, ok := <-q.wait():
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return nil
			}
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Step processes every entry due at the clock's current time, including
// entries promoted while stepping, and returns how many evaluations ran.
// It is meant for drivers that advance a test clock instead of calling Run.
func (s *Scheduler) Step(ctx context.Context) int {
	now := s.clock.Now()
	n := 0
	for {
		progressed := false
		if e, _, _ := s.exprs.next(now); e != nil {
			s.evaluateExpression(ctx, e, now)
			progressed = true
			n++
		}
		if e, _, _ := s.values.next(now); e != nil {
			s.refreshValue(ctx, e, now)
			progressed = true
			n++
		}
		if !progressed {
			return n
		}
	}
}

// NextDue returns the earliest pending deadline across both queues, or
// ir.Forever when everything is parked.
func (s *Scheduler) NextDue() int64 {
	return min(s.exprs.peek(), s.values.peek())
}

func (s *Scheduler) evaluateExpression(ctx context.Context, e *queueEntry[*registration], now int64) {
	reg := e.item
	start := time.Now()
	state, err := reg.root.Evaluate(ctx, now)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, expr.ErrUnbound) || !s.exprs.active(e) {
			s.metrics.observe(queueExpressions, "absorbed", elapsed)
			s.logger.Debug("evaluation absorbed", "expression_id", reg.id, "error", ErrRaceAbsorbed)
			s.exprs.complete(e, now, 0, true)
			return
		}
		s.metrics.observe(queueExpressions, "error", elapsed)
		drop(ctx, s, e, reg.id, reg.root, s.exprs, &expr.EvaluationError{ExpressionID: reg.id, Err: err})
		return
	}

	s.metrics.observe(queueExpressions, state.String(), elapsed)
	if reg.record(state) && s.exprs.active(e) {
		s.metrics.transition(state)
		s.logger.Debug("expression transition", "expression_id", reg.id, "state", state.String(), "at", now)
		s.notifyState(reg.id, state)
	}
	s.exprs.complete(e, now, reg.root.DeferUntil(), state == ir.Undefined)
	s.updateDepth()
}

func (s *Scheduler) refreshValue(ctx context.Context, e *queueEntry[*subscription], now int64) {
	sub := e.item
	start := time.Now()
	readings, err := sub.node.Values(ctx, now)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, expr.ErrNoValuesInInterval):
		s.metrics.observe(queueValues, "no_values", elapsed)
		if sub.record(nil) && s.values.active(e) {
			s.notifyReadings(sub.id, nil)
		}
		s.values.complete(e, now, 0, true)
	case err != nil && (errors.Is(err, expr.ErrUnbound) || !s.values.active(e)):
		s.metrics.observe(queueValues, "absorbed", elapsed)
		s.values.complete(e, now, 0, true)
	case err != nil:
		s.metrics.observe(queueValues, "error", elapsed)
		drop(ctx, s, e, sub.id, sub.node, s.values, &expr.EvaluationError{ExpressionID: sub.id, Err: err})
	default:
		s.metrics.observe(queueValues, "ok", elapsed)
		if sub.record(readings) && s.values.active(e) {
			s.notifyReadings(sub.id, readings)
		}
		due := sub.node.DeferUntil()
		s.values.complete(e, now, due, due == ir.Forever)
	}
	s.updateDepth()
}

// drop removes an entry after a fatal error and reports it once. If the
// entry was unregistered meanwhile nothing is reported.
func drop[T any](ctx context.Context, s *Scheduler, e *queueEntry[T], id string, n expr.Node, q *deadlineQueue[T], err error) {
	s.mu.Lock()
	removed := q.removeEntry(e)
	if removed {
		s.releaseLocked(id)
	}
	s.mu.Unlock()
	if !removed {
		return
	}
	expr.Destroy(ctx, n)
	s.logger.Error("evaluation failed", "expression_id", id, "error", err)
	s.notifyError(id, err)
	s.updateDepth()
}

func (s *Scheduler) notifyState(id string, state ir.TriState) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		s.safely(id, func() {
			switch state {
			case ir.True:
				l.OnTrue(id)
			case ir.False:
				l.OnFalse(id)
			default:
				l.OnUndefined(id)
			}
		})
	}
}

func (s *Scheduler) notifyError(id string, err error) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		s.safely(id, func() { l.OnError(id, err) })
	}
}

func (s *Scheduler) notifyReadings(id string, readings []ir.Reading) {
	s.mu.RLock()
	readers := append([]ReadingListener(nil), s.readers...)
	s.mu.RUnlock()
	for _, r := range readers {
		s.safely(id, func() { r.OnReading(id, readings) })
	}
}

// safely runs a listener callback, containing panics to the callback.
func (s *Scheduler) safely(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("listener panicked", "id", id, "panic", r)
		}
	}()
	fn()
}

func (s *Scheduler) updateDepth() {
	if s.metrics == nil {
		return
	}
	q, p := s.exprs.depth()
	s.metrics.depth(queueExpressions, q, p)
	q, p = s.values.depth()
	s.metrics.depth(queueValues, q, p)
}

// Shutdown destroys every expression and subscription and stops the
// workers. Later registrations fail with SHUTDOWN. Idempotent.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.owners = make(map[string]owner)
	s.aliases = make(map[string]string)
	s.mu.Unlock()

	for _, reg := range s.exprs.close() {
		expr.Destroy(ctx, reg.root)
	}
	for _, sub := range s.values.close() {
		expr.Destroy(ctx, sub.node)
	}
	s.logger.Info("scheduler shut down")
}

// ExpressionStatus describes one active expression.
type ExpressionStatus struct {
	ID         string
	Expression string
	State      ir.TriState
	Evaluated  bool
	Due        int64
	Parked     bool
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	Expressions   []ExpressionStatus
	Subscriptions []string
	Queued        int
	Parked        int
}

// Snapshot reports every active expression sorted by id.
func (s *Scheduler) Snapshot() Snapshot {
	var snap Snapshot
	for _, st := range s.exprs.snapshot() {
		state, evaluated := st.Item.lastState()
		snap.Expressions = append(snap.Expressions, ExpressionStatus{
			ID:         st.Key,
			Expression: st.Item.root.String(),
			State:      state,
			Evaluated:  evaluated,
			Due:        st.Due,
			Parked:     st.Parked,
		})
		if st.Parked {
			snap.Parked++
		} else {
			snap.Queued++
		}
	}
	for _, st := range s.values.snapshot() {
		snap.Subscriptions = append(snap.Subscriptions, st.Key)
	}
	return snap
}
