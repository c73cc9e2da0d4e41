package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bitfsorg/libgiveaway-go/logger"
)

func TestNew_StampsIDAndTime(t *testing.T) {
	a := New(KindTokensClaimed)
	b := New(KindTokensClaimed)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.At.IsZero())
	assert.Equal(t, KindTokensClaimed, a.Kind)
}

func TestRecorder_OfKindAndReset(t *testing.T) {
	ctx := context.Background()
	var r Recorder
	r.Emit(ctx, New(KindStatusChanged))
	r.Emit(ctx, New(KindTokensClaimed))
	r.Emit(ctx, New(KindStatusChanged))

	assert.Len(t, r.Events(), 3)
	assert.Len(t, r.OfKind(KindStatusChanged), 2)
	assert.Empty(t, r.OfKind(KindGiveawayCancelled))

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestMulti_FansOutInOrder(t *testing.T) {
	var order []string
	m := Multi{
		EmitterFunc(func(context.Context, Event) { order = append(order, "first") }),
		nil,
		EmitterFunc(func(context.Context, Event) { order = append(order, "second") }),
	}
	m.Emit(context.Background(), New(KindBannerChanged))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestLogSink_WritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := LogSink{Log: logger.FromZap(zap.New(core))}

	e := New(KindAuthenticated)
	e.Giveaway[0] = 0x01
	e.Slug = "unique-slug"
	e.Subject[0] = 0x02
	e.Flag = true
	sink.Emit(context.Background(), e)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "authenticated", fields["kind"])
	assert.Equal(t, "unique-slug", fields["slug"])
	assert.Equal(t, true, fields["authenticated"])
	assert.Equal(t, e.Subject.String(), fields["subject"])
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.Emit(context.Background(), New(KindGiveawayCreated))
	})
}
