package feed

import (
	"context"
	"sync"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
	"bitbucket.org/mmdatafocus/ptw_backend/events"
	"bitbucket.org/mmdatafocus/ptw_backend/models"
)

// Loader fetches the full record set for a refresh.
type Loader func(ctx context.Context) ([]models.Permit, error)

// Coordinator maintains the in-memory live view behind the websocket feed.
// Row events are merged in place; whole-dataset events trigger a refresh.
// A refresh started while another is in flight supersedes it: the older
// load is cancelled and its result discarded even if it completes first.
type Coordinator struct {
	mu            sync.Mutex
	permits       []models.Permit
	loader        Loader
	generation    int
	cancelRefresh context.CancelFunc
	wg            sync.WaitGroup
}

func NewCoordinator(loader Loader) *Coordinator {
	if loader == nil {
		loader = func(ctx context.Context) ([]models.Permit, error) {
			return models.ListPermits(ctx, nil)
		}
	}
	return &Coordinator{loader: loader}
}

// Run consumes bus events until ctx is done. It loads the initial snapshot
// before entering the loop.
func (c *Coordinator) Run(ctx context.Context, bus *events.Bus) {
	logger := config.GetLogger()

	ch, cancel := bus.Subscribe()
	defer cancel()

	c.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.cancelRefresh != nil {
				c.cancelRefresh()
			}
			c.mu.Unlock()
			c.wg.Wait()
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			switch e.Kind {
			case events.Inserted:
				c.applyInsert(e.Permit)
			case events.Updated:
				c.applyUpdate(e.Permit)
			case events.Deleted:
				c.applyDelete(e.Permit)
			case events.Changed:
				c.Refresh(ctx)
			default:
				logger.Warnf("feed: unknown event kind %q", e.Kind)
			}
		}
	}
}

// Snapshot returns a copy of the current view, newest first.
func (c *Coordinator) Snapshot() []models.Permit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Permit, len(c.permits))
	copy(out, c.permits)
	return out
}

// Refresh reloads the whole view. Safe to call concurrently: each call takes
// a new generation, cancels the previous in-flight load, and only the result
// matching the latest generation is installed.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancelRefresh != nil {
		c.cancelRefresh()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelRefresh = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		permits, err := c.loader(loadCtx)
		if err != nil {
			if loadCtx.Err() == nil {
				config.LogError(config.GetLogger(), "feed", "Refresh", "Snapshot load failed", gen, err)
			}
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation {
			// a newer refresh superseded this one
			return
		}
		c.permits = permits
	}()
}

// Wait blocks until in-flight refreshes finish. Used in shutdown and tests.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// applyInsert prepends the record unless it is already present, so replaying
// an insert is a no-op.
func (c *Coordinator) applyInsert(p *models.Permit) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.permits {
		if c.permits[i].ID == p.ID {
			c.permits[i] = *p
			return
		}
	}
	c.permits = append([]models.Permit{*p}, c.permits...)
}

// applyUpdate overwrites the matching record in place; an update for a
// record not in the view is ignored rather than resurrected.
func (c *Coordinator) applyUpdate(p *models.Permit) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.permits {
		if c.permits[i].ID == p.ID {
			c.permits[i] = *p
			return
		}
	}
}

func (c *Coordinator) applyDelete(p *models.Permit) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.permits {
		if c.permits[i].ID == p.ID {
			c.permits = append(c.permits[:i], c.permits[i+1:]...)
			return
		}
	}
}
