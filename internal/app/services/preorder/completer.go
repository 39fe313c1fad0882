package preorder

import (
	"context"
	"sync"
	"time"

	"github.com/questline/storefront/internal/app/domain/catalog"
	"github.com/questline/storefront/internal/app/gateway"
	"github.com/questline/storefront/internal/app/metrics"
	"github.com/questline/storefront/internal/app/storage"
	"github.com/questline/storefront/pkg/logger"
)

// Completer periodically completes confirmed pre-orders whose item has been
// released. It implements system.Service.
type Completer struct {
	service  *Service
	store    storage.PreOrderStore
	catalog  gateway.Catalog
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewCompleter constructs the sweep with the given poll interval.
func NewCompleter(service *Service, store storage.PreOrderStore, cat gateway.Catalog, interval time.Duration, log *logger.Logger) *Completer {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.NewDefault("preorder-completer")
	}
	return &Completer{service: service, store: store, catalog: cat, interval: interval, log: log}
}

// Name implements system.Service.
func (c *Completer) Name() string { return "preorder-completer" }

// Start launches the sweep loop.
func (c *Completer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				c.tick(loopCtx)
			}
		}
	}()
	return nil
}

// Stop halts the sweep loop and waits for an in-flight pass to finish.
func (c *Completer) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	c.running = false
	return nil
}

// tick runs one sweep pass. Catalog lookups are grouped per item so a batch
// of pre-orders for the same title costs one gateway call.
func (c *Completer) tick(ctx context.Context) {
	metrics.RecordSweepRun("preorder-completer")

	confirmed, err := c.store.ListConfirmedPreOrders(ctx)
	if err != nil {
		c.log.WithError(err).Warn("list confirmed pre-orders failed")
		return
	}
	now := time.Now().UTC()
	items := make(map[string]*catalog.Item)

	for _, p := range confirmed {
		item, ok := items[p.ItemID]
		if !ok {
			resolved, err := c.catalog.GetItem(ctx, p.ItemID)
			if err != nil {
				c.log.WithError(err).WithField("item_id", p.ItemID).Warn("catalog lookup failed")
				items[p.ItemID] = nil
				continue
			}
			item = &resolved
			items[p.ItemID] = item
		}
		if item == nil || !item.Released(now) {
			continue
		}
		if err := c.service.Complete(ctx, p.ID); err != nil {
			c.log.WithError(err).WithField("pre_order_id", p.ID).Warn("complete pre-order failed")
		}
	}
}
