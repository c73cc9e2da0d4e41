package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitfsorg/libgiveaway-go/events"
	"github.com/bitfsorg/libgiveaway-go/factory"
	"github.com/bitfsorg/libgiveaway-go/logger"
)

// Checkpointer is an events.Emitter that writes the affected state to a
// Store after every committed mutation. Persistence errors are logged and
// the first one is kept for Err.
//
// After a failed write the stored state lags the committed one, so every
// later event rewrites the whole registry until a full save succeeds.
// Resync forces that save.
type Checkpointer struct {
	store Store
	log   logger.Logger

	mu    sync.Mutex
	reg   *factory.Registry
	err   error
	stale bool
}

// NewCheckpointer creates a checkpointer. Events are ignored until Attach.
func NewCheckpointer(s Store, log logger.Logger) *Checkpointer {
	if log == nil {
		log = logger.Nop()
	}
	return &Checkpointer{store: s, log: log}
}

// Attach binds the registry whose state is checkpointed.
func (c *Checkpointer) Attach(reg *factory.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reg = reg
}

// Err returns the first persistence error, if any.
func (c *Checkpointer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stale reports whether the store may lag the registry.
func (c *Checkpointer) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Emit implements events.Emitter.
func (c *Checkpointer) Emit(_ context.Context, e events.Event) {
	c.mu.Lock()
	reg, stale := c.reg, c.stale
	c.mu.Unlock()
	if reg == nil {
		return
	}
	if stale {
		if err := c.Resync(); err != nil {
			c.log.Error("checkpoint resync failed", logger.String("kind", string(e.Kind)), logger.Error(err))
		}
		return
	}
	if err := c.save(reg, e); err != nil {
		c.log.Error("checkpoint failed", logger.String("kind", string(e.Kind)), logger.Error(err))
		c.fail(err)
	}
}

// Resync writes the full registry, clearing the stale state on success.
// Err keeps reporting the original failure.
func (c *Checkpointer) Resync() error {
	c.mu.Lock()
	reg := c.reg
	c.mu.Unlock()
	if reg == nil {
		return nil
	}
	if err := c.store.SaveRegistry(reg.Snapshot()); err != nil {
		err = fmt.Errorf("store: resync: %w", err)
		c.fail(err)
		return err
	}
	c.mu.Lock()
	c.stale = false
	c.mu.Unlock()
	return nil
}

func (c *Checkpointer) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
	if c.err == nil {
		c.err = err
	}
}

func (c *Checkpointer) save(reg *factory.Registry, e events.Event) error {
	switch e.Kind {
	case events.KindFeeAddressChanged:
		return c.store.SaveMeta(reg.SnapshotMeta())
	case events.KindGiveawayCreated:
		if err := c.store.SaveMeta(reg.SnapshotMeta()); err != nil {
			return err
		}
	}
	g, err := reg.Giveaway(e.Index)
	if err != nil {
		return fmt.Errorf("store: checkpoint %s: %w", e.Slug, err)
	}
	if g.Address() != e.Giveaway {
		return fmt.Errorf("%w: event for %s resolved to %s", ErrCorrupt, e.Giveaway, g.Address())
	}
	return c.store.SaveGiveaway(g.Snapshot())
}
