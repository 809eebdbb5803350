// Package karma maintains per-user karma aggregates derived from an
// append-only activity ledger.
//
// Each observed user has one aggregate: a running total, a rank resolved
// from that total, and a bounded recent-activity view. State is seeded from
// a one-shot historical snapshot and then advanced by a live stream of new
// activities. The two sources overlap and arrive in no guaranteed relative
// order; a per-user applied-set makes application idempotent so no activity
// is ever counted twice and none is lost.
package karma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"kudos/internal/karma/metrics"
	"kudos/internal/rank"
	id "kudos/pkg/domain"
	dErrors "kudos/pkg/domain-errors"
	"kudos/pkg/platform/sentinel"
)

// Outcome classifies the result of feeding one activity to the aggregator.
// Duplicate application is an expected no-op, not an error, but callers and
// tests need to tell it apart from a genuinely new application.
type Outcome int

const (
	// OutcomeApplied: the activity was new and folded into the aggregate.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate: the activity id was already applied; nothing changed.
	OutcomeDuplicate
	// OutcomeBuffered: a snapshot is in flight; the activity was queued for
	// replay once the snapshot has seeded the applied-set.
	OutcomeBuffered
	// OutcomeDropped: the observation was torn down while the activity was
	// in flight; the activity was discarded.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeBuffered:
		return "buffered"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// observation phases form the session state machine:
// Loading (snapshot in flight) -> Live (events flowing) -> Stopped.
type phase int

const (
	phaseLoading phase = iota
	phaseLive
	phaseStopped
)

// observation is the engine-owned state for one user. All mutation happens
// under mu, so events for the same user apply one at a time; observations
// for different users never contend.
type observation struct {
	mu      sync.Mutex
	phase   phase
	state   *UserState
	applied *appliedSet
	// buffer holds live events that arrived before the snapshot resolved,
	// in arrival order. Replayed through the normal apply path on the
	// Loading -> Live transition.
	buffer []Activity
	sub    Subscription
	cancel context.CancelFunc
}

// Aggregator owns one UserState per observed user. It is the only writer of
// that state.
type Aggregator struct {
	ledger   Ledger
	source   Source
	sink     Sink
	resolver *rank.Resolver

	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	snapshotLimit int

	mu           sync.RWMutex
	observations map[id.UserID]*observation
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithLogger sets a logger for warnings and apply failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithSnapshotLimit overrides the bounded history fetch size.
func WithSnapshotLimit(limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.snapshotLimit = limit
		}
	}
}

const defaultSnapshotLimit = 50

// New constructs an Aggregator. The sink may be nil when the surrounding
// application does not surface gain notifications.
func New(ledger Ledger, source Source, sink Sink, resolver *rank.Resolver, opts ...Option) *Aggregator {
	a := &Aggregator{
		ledger:        ledger,
		source:        source,
		sink:          sink,
		resolver:      resolver,
		tracer:        otel.Tracer("kudos/internal/karma"),
		snapshotLimit: defaultSnapshotLimit,
		observations:  make(map[id.UserID]*observation),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Observe begins (or resumes) observation of a user: it opens the live
// subscription, fetches the historical snapshot and the stored rank
// fallback, seeds state, replays any events buffered while the snapshot was
// in flight, and transitions the observation to Live.
//
// Idempotent: observing an already-live user is a no-op, and a user whose
// previous Observe failed mid-snapshot is retried without resubscribing.
// Snapshot fetch failures surface as recoverable unavailable errors; the
// caller owns the retry policy.
func (a *Aggregator) Observe(ctx context.Context, userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	obs, created := a.getOrCreateObservation(userID)
	if created && a.metrics != nil {
		a.metrics.ObservedUsers.Inc()
	}

	obs.mu.Lock()
	if obs.phase != phaseLoading {
		// Live: nothing to do. Stopped: session already ended; a fresh
		// Observe after StopObserving creates a new observation instead.
		obs.mu.Unlock()
		return nil
	}
	needSub := obs.sub == nil
	obs.mu.Unlock()

	if needSub {
		if err := a.subscribe(ctx, userID, obs); err != nil {
			return err
		}
	}

	return a.loadSnapshotFromLedger(ctx, userID, obs)
}

// subscribe opens the live subscription before the snapshot fetch so no
// event can slip between the two; anything delivered while Loading lands in
// the buffer.
func (a *Aggregator) subscribe(ctx context.Context, userID id.UserID, obs *observation) error {
	// The subscription outlives this call; it is torn down by
	// StopObserving, not by the caller's request context.
	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := a.source.Subscribe(pumpCtx, userID)
	if err != nil {
		cancel()
		return dErrors.Wrap(dErrors.CodeUnavailable, "subscribe to live activity stream", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.phase == phaseStopped {
		cancel()
		_ = sub.Close()
		return nil
	}
	if obs.sub != nil {
		// Lost a race with a concurrent Observe; keep the first.
		cancel()
		_ = sub.Close()
		return nil
	}
	obs.sub = sub
	obs.cancel = cancel
	go a.pump(pumpCtx, obs, sub)
	return nil
}

func (a *Aggregator) loadSnapshotFromLedger(ctx context.Context, userID id.UserID, obs *observation) error {
	ctx, span := a.tracer.Start(ctx, "karma.load_snapshot")
	defer span.End()
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	var activities []Activity
	g.Go(func() error {
		acts, err := a.ledger.RecentActivities(gctx, userID, a.snapshotLimit)
		if err != nil {
			return dErrors.Wrap(dErrors.CodeUnavailable, "fetch activity snapshot", err)
		}
		activities = acts
		return nil
	})

	// The stored rank is a display fallback only: seed it as soon as it
	// arrives so reads during Loading show something, and never fail the
	// snapshot over it.
	g.Go(func() error {
		label, err := a.ledger.StoredRank(gctx, userID)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) && a.logger != nil {
				a.logger.WarnContext(gctx, "stored rank fetch failed",
					"user_id", userID,
					"error", err,
				)
			}
			return nil
		}
		if label == "" {
			return nil
		}
		obs.mu.Lock()
		if obs.phase == phaseLoading && obs.state.Rank == "" {
			obs.state.Rank = label
		}
		obs.mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		// Observation stays Loading; live events keep buffering and a
		// repeat Observe retries the snapshot idempotently.
		return err
	}

	// Seed the same observation object: if StopObserving won the race while
	// the fetch was in flight, the stopped flag makes this a no-op instead
	// of resurrecting discarded state.
	if err := a.loadSnapshotInto(ctx, obs, activities); err != nil {
		return err
	}

	if a.metrics != nil {
		a.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

// LoadSnapshot seeds a user's aggregate from a bounded history slice,
// ordered newest first. Each activity not already seen is marked seen, added
// to the total, and inserted into the recent view up to its cap. Safe to
// call repeatedly with the same snapshot: re-supplying already-applied
// activities changes nothing.
//
// Completing a snapshot transitions the observation to Live: events buffered
// during Loading are replayed through the normal apply path, in arrival
// order, after the applied-set has been seeded.
func (a *Aggregator) LoadSnapshot(ctx context.Context, userID id.UserID, activities []Activity) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	obs, created := a.getOrCreateObservation(userID)
	if created && a.metrics != nil {
		a.metrics.ObservedUsers.Inc()
	}
	return a.loadSnapshotInto(ctx, obs, activities)
}

func (a *Aggregator) loadSnapshotInto(ctx context.Context, obs *observation, activities []Activity) error {
	userID := obs.state.UserID

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.phase == phaseStopped {
		// Torn down while the fetch was in flight; discard quietly.
		return nil
	}

	for _, act := range activities {
		if err := act.Validate(); err != nil {
			if a.logger != nil {
				a.logger.WarnContext(ctx, "skipping malformed snapshot activity",
					"user_id", userID,
					"error", err,
				)
			}
			continue
		}
		if !obs.applied.MarkIfUnseen(act.ID) {
			continue
		}
		obs.state.Total += act.Points
		obs.state.insertRecent(act)
	}

	standing, err := a.resolver.Resolve(obs.state.Total)
	if err != nil {
		return err
	}
	obs.state.Rank = standing.Label

	buffered := obs.buffer
	obs.buffer = nil
	obs.phase = phaseLive

	for _, act := range buffered {
		if _, err := a.applyLocked(ctx, obs, act); err != nil {
			if a.logger != nil {
				a.logger.ErrorContext(ctx, "replaying buffered activity failed",
					"user_id", userID,
					"activity_id", act.ID,
					"error", err,
				)
			}
		}
	}

	if a.metrics != nil {
		a.metrics.SnapshotLoads.Inc()
	}
	return nil
}

// ApplyEvent feeds one live activity to a user's aggregate. Requires that a
// snapshot load (possibly empty) has already initialized the user's state;
// anything else is an ordering bug at the call site and fails loudly.
//
// Redelivery of an already-applied id (stream reconnect, snapshot overlap)
// returns OutcomeDuplicate and leaves the aggregate untouched.
func (a *Aggregator) ApplyEvent(ctx context.Context, userID id.UserID, act Activity) (Outcome, error) {
	ctx, span := a.tracer.Start(ctx, "karma.apply_event")
	defer span.End()

	if err := act.Validate(); err != nil {
		return OutcomeDropped, err
	}
	if act.UserID != userID {
		return OutcomeDropped, dErrors.New(dErrors.CodeInvalidInput, "activity belongs to a different user")
	}

	a.mu.RLock()
	obs := a.observations[userID]
	a.mu.RUnlock()
	if obs == nil {
		return OutcomeDropped, ErrStateNotInitialized
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	return a.applyLocked(ctx, obs, act)
}

// applyLocked applies one activity to an observation. Caller holds obs.mu.
func (a *Aggregator) applyLocked(ctx context.Context, obs *observation, act Activity) (Outcome, error) {
	switch obs.phase {
	case phaseStopped:
		return OutcomeDropped, nil
	case phaseLoading:
		obs.buffer = append(obs.buffer, act)
		if a.metrics != nil {
			a.metrics.EventsBuffered.Inc()
		}
		return OutcomeBuffered, nil
	}

	if !obs.applied.MarkIfUnseen(act.ID) {
		if a.metrics != nil {
			a.metrics.DuplicatesSkipped.Inc()
		}
		return OutcomeDuplicate, nil
	}

	obs.state.Total += act.Points
	obs.state.Recent = append(obs.state.Recent, Activity{})
	copy(obs.state.Recent[1:], obs.state.Recent)
	obs.state.Recent[0] = act
	if len(obs.state.Recent) > RecentLimit {
		obs.state.Recent = obs.state.Recent[:RecentLimit]
	}

	standing, err := a.resolver.Resolve(obs.state.Total)
	if err != nil {
		return OutcomeApplied, err
	}
	obs.state.Rank = standing.Label

	if a.metrics != nil {
		a.metrics.EventsApplied.Inc()
	}

	if act.Points > 0 && a.sink != nil {
		a.sink.Notify(ctx, Notification{
			UserID:      obs.state.UserID,
			Title:       fmt.Sprintf("+%d karma", act.Points),
			Description: act.Reason(),
		})
		if a.metrics != nil {
			a.metrics.NotificationsEmitted.Inc()
		}
	}

	return OutcomeApplied, nil
}

// pump drains one user's subscription into the aggregate until the channel
// closes.
func (a *Aggregator) pump(ctx context.Context, obs *observation, sub Subscription) {
	for act := range sub.Events() {
		obs.mu.Lock()
		outcome, err := a.applyLocked(ctx, obs, act)
		obs.mu.Unlock()
		if err != nil && a.logger != nil {
			a.logger.ErrorContext(ctx, "applying live activity failed",
				"user_id", act.UserID,
				"activity_id", act.ID,
				"outcome", outcome.String(),
				"error", err,
			)
		}
	}
}

// CurrentState returns a copy of the user's aggregate, or not-found if the
// user has never been observed. During Loading the seeded state (with the
// stored-rank fallback, if any) is returned; once Live, the resolver's
// output is authoritative.
func (a *Aggregator) CurrentState(userID id.UserID) (*UserState, error) {
	a.mu.RLock()
	obs := a.observations[userID]
	a.mu.RUnlock()
	if obs == nil {
		return nil, ErrNotObserved
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	return obs.state.clone(), nil
}

// Standing resolves the user's current total against the rank table.
func (a *Aggregator) Standing(userID id.UserID) (rank.Standing, error) {
	state, err := a.CurrentState(userID)
	if err != nil {
		return rank.Standing{}, err
	}
	return a.resolver.Resolve(state.Total)
}

// StopObserving releases the live subscription and discards in-memory state
// for the user. Safe to call multiple times; in-flight snapshot or apply
// work for the user detects the teardown and becomes a no-op.
func (a *Aggregator) StopObserving(userID id.UserID) {
	a.mu.Lock()
	obs, ok := a.observations[userID]
	if ok {
		delete(a.observations, userID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}

	obs.mu.Lock()
	obs.phase = phaseStopped
	sub := obs.sub
	cancel := obs.cancel
	obs.sub = nil
	obs.cancel = nil
	obs.buffer = nil
	obs.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		_ = sub.Close()
	}
	if a.metrics != nil {
		a.metrics.ObservedUsers.Dec()
	}
}

// Close stops every active observation. Used on shutdown.
func (a *Aggregator) Close() {
	a.mu.RLock()
	userIDs := make([]id.UserID, 0, len(a.observations))
	for userID := range a.observations {
		userIDs = append(userIDs, userID)
	}
	a.mu.RUnlock()

	for _, userID := range userIDs {
		a.StopObserving(userID)
	}
}

func (a *Aggregator) getOrCreateObservation(userID id.UserID) (*observation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if obs, ok := a.observations[userID]; ok {
		return obs, false
	}
	obs := &observation{
		phase:   phaseLoading,
		state:   &UserState{UserID: userID},
		applied: newAppliedSet(),
	}
	a.observations[userID] = obs
	return obs, true
}
