package gift

import (
	"context"
	"sync"
	"time"

	"github.com/questline/storefront/internal/app/metrics"
	"github.com/questline/storefront/internal/app/storage"
	"github.com/questline/storefront/pkg/logger"
)

// Expirer periodically expires pending gifts whose claim window has elapsed
// and re-drives entitlement grants for claimed gifts that never recorded
// one. It implements system.Service.
type Expirer struct {
	service  *Service
	store    storage.GiftStore
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewExpirer constructs the sweep with the given poll interval.
func NewExpirer(service *Service, store storage.GiftStore, interval time.Duration, log *logger.Logger) *Expirer {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.NewDefault("gift-expirer")
	}
	return &Expirer{service: service, store: store, interval: interval, log: log}
}

// Name implements system.Service.
func (e *Expirer) Name() string { return "gift-expirer" }

// Start launches the sweep loop.
func (e *Expirer) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				e.tick(loopCtx)
			}
		}
	}()
	return nil
}

// Stop halts the sweep loop and waits for an in-flight pass to finish.
func (e *Expirer) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.cancel()
	e.wg.Wait()
	e.running = false
	return nil
}

// tick runs one sweep pass. Failures on individual gifts are logged and do
// not stop the pass.
func (e *Expirer) tick(ctx context.Context) {
	metrics.RecordSweepRun("gift-expirer")

	pending, err := e.store.ListPendingGifts(ctx)
	if err != nil {
		e.log.WithError(err).Warn("list pending gifts failed")
	} else {
		for _, g := range pending {
			if err := e.service.Expire(ctx, g); err != nil {
				e.log.WithError(err).WithField("gift_id", g.ID).Warn("expire gift failed")
			}
		}
	}

	ungranted, err := e.store.ListClaimedUngranted(ctx)
	if err != nil {
		e.log.WithError(err).Warn("list ungranted gifts failed")
		return
	}
	for _, g := range ungranted {
		if err := e.service.RedriveGrant(ctx, g); err != nil {
			e.log.WithError(err).WithField("gift_id", g.ID).Warn("re-drive grant failed")
		}
	}
}
