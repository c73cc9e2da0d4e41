// Package metrics exposes giveaway activity as Prometheus counters.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bitfsorg/libgiveaway-go/events"
)

// Metrics counts committed giveaway events. It implements events.Emitter.
type Metrics struct {
	// Every event by kind
	Events *prometheus.CounterVec

	GiveawaysCreated prometheus.Counter
	PooledTokens     prometheus.Counter
	FeesCollected    prometheus.Counter

	Claims        prometheus.Counter
	ClaimedTokens prometheus.Counter

	Cancellations  prometheus.Counter
	RefundedTokens prometheus.Counter

	// Status changes by target status
	StatusChanges *prometheus.CounterVec

	// Authentication changes by new value
	Authentications *prometheus.CounterVec
}

// New registers the giveaway metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giveaway_events_total",
			Help: "Total committed giveaway events by kind",
		}, []string{"kind"}),
		GiveawaysCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "giveaway_created_total",
			Help: "Total number of giveaways created",
		}),
		PooledTokens: f.NewCounter(prometheus.CounterOpts{
			Name: "giveaway_pooled_tokens_total",
			Help: "Total base units deposited into giveaway escrows",
		}),
		FeesCollected: f.NewCounter(prometheus.CounterOpts{
			Name: "giveaway_fees_collected_total",
			Help: "Total base units paid to the fee address",
		}),
		Claims: f.NewCounter(prometheus.CounterOpts{
			Name: "giveaway_claims_total",
			Help: "Total number of successful claims",
		}),
		ClaimedTokens: f.NewCounter(prometheus.CounterOpts{
			Name: "giveaway_claimed_tokens_total",
			Help: "Total base units paid out to recipients",
		}),
		Cancellations: f.NewCounter(prometheus.CounterOpts{
			Name: "giveaway_cancellations_total",
			Help: "Total number of cancelled giveaways",
		}),
		RefundedTokens: f.NewCounter(prometheus.CounterOpts{
			Name: "giveaway_refunded_tokens_total",
			Help: "Total base units refunded to owners on cancellation",
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giveaway_status_changes_total",
			Help: "Total status changes by target status",
		}, []string{"status"}),
		Authentications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giveaway_authentications_total",
			Help: "Total allow-list changes by new value",
		}, []string{"authenticated"}),
	}
}

// Emit implements events.Emitter.
func (m *Metrics) Emit(_ context.Context, e events.Event) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case events.KindGiveawayCreated:
		m.GiveawaysCreated.Inc()
		m.PooledTokens.Add(float64(e.Amount))
		m.FeesCollected.Add(float64(e.Fee))
	case events.KindTokensClaimed:
		m.Claims.Inc()
		m.ClaimedTokens.Add(float64(e.Amount))
	case events.KindGiveawayCancelled:
		m.Cancellations.Inc()
		m.RefundedTokens.Add(float64(e.Amount))
	case events.KindStatusChanged:
		m.StatusChanges.WithLabelValues(e.Value).Inc()
	case events.KindAuthenticated:
		m.Authentications.WithLabelValues(strconv.FormatBool(e.Flag)).Inc()
	}
}
