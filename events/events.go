// Package events carries the notifications emitted by registries and
// giveaways after a mutation commits.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
)

// Kind names an event type.
type Kind string

const (
	KindGiveawayCreated   Kind = "giveaway_created"
	KindFeeAddressChanged Kind = "fee_address_changed"
	KindStatusChanged     Kind = "status_changed"
	KindBannerChanged     Kind = "banner_changed"
	KindAuthenticated     Kind = "authenticated"
	KindTokensClaimed     Kind = "tokens_claimed"
	KindGiveawayCancelled Kind = "giveaway_cancelled"
)

// Event is a committed state change.
//
// Field use per kind:
//   - GiveawayCreated: Subject = owner, Amount = pool, Fee = fee, Index = registry index
//   - FeeAddressChanged: Subject = new fee address
//   - StatusChanged: Value = new status name
//   - BannerChanged: Value = new banner
//   - Authenticated: Subject = user, Flag = new value
//   - TokensClaimed: Subject = recipient, Amount = share
//   - GiveawayCancelled: Subject = owner, Amount = refund
type Event struct {
	ID       uuid.UUID
	Kind     Kind
	At       time.Time
	Giveaway ledger.Address // zero for registry-level events
	Slug     string
	Actor    ledger.Address
	Subject  ledger.Address
	Amount   uint64
	Fee      uint64
	Index    uint64
	Value    string
	Flag     bool
}

// New stamps a fresh event of the given kind.
func New(kind Kind) Event {
	return Event{ID: uuid.New(), Kind: kind, At: time.Now().UTC()}
}

// Emitter receives events. Emit must not call back into the emitting object.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, e Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(context.Context, Event) {})

// Multi fans an event out to several emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, e Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(ctx, e)
		}
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind returns the recorded events of one kind.
func (r *Recorder) OfKind(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// LogSink writes every event to a logger at info level.
type LogSink struct {
	Log logger.Logger
}

// Emit implements Emitter.
func (s LogSink) Emit(_ context.Context, e Event) {
	fields := []zap.Field{
		logger.String("event_id", e.ID.String()),
		logger.String("kind", string(e.Kind)),
	}
	if !e.Giveaway.IsZero() {
		fields = append(fields, logger.Stringer("giveaway", e.Giveaway), logger.String("slug", e.Slug))
	}
	if !e.Subject.IsZero() {
		fields = append(fields, logger.Stringer("subject", e.Subject))
	}
	if e.Amount != 0 {
		fields = append(fields, logger.Uint64("amount", e.Amount))
	}
	if e.Value != "" {
		fields = append(fields, logger.String("value", e.Value))
	}
	if e.Kind == KindAuthenticated {
		fields = append(fields, logger.Bool("authenticated", e.Flag))
	}
	s.Log.Info("giveaway event", fields...)
}
