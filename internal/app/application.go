package app

import (
	"context"
	"fmt"
	"time"

	"github.com/questline/storefront/internal/app/gateway"
	giftsvc "github.com/questline/storefront/internal/app/services/gift"
	preordersvc "github.com/questline/storefront/internal/app/services/preorder"
	"github.com/questline/storefront/internal/app/storage"
	"github.com/questline/storefront/internal/app/storage/memory"
	"github.com/questline/storefront/internal/app/system"
	"github.com/questline/storefront/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Gifts     storage.GiftStore
	PreOrders storage.PreOrderStore
}

// Gateways carries the external service clients. Catalog, Identity,
// Entitlement and Payment are required; Notifier may be nil to disable
// notifications.
type Gateways struct {
	Catalog     gateway.Catalog
	Identity    gateway.Identity
	Entitlement gateway.Entitlement
	Payment     gateway.Payment
	Notifier    gateway.Notifier
}

// Options tunes application behaviour.
type Options struct {
	// SweepInterval is the poll interval for the expiration and completion
	// sweeps. Zero selects the default.
	SweepInterval time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Gifts     *giftsvc.Service
	PreOrders *preordersvc.Service
}

// New builds a fully initialised application with the provided stores and
// gateways.
func New(stores Stores, gateways Gateways, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if gateways.Catalog == nil {
		return nil, fmt.Errorf("catalog gateway is required")
	}
	if gateways.Identity == nil {
		return nil, fmt.Errorf("identity gateway is required")
	}
	if gateways.Entitlement == nil {
		return nil, fmt.Errorf("entitlement gateway is required")
	}
	if gateways.Payment == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	if gateways.Notifier == nil {
		log.Warn("no notifier configured; notifications disabled")
	}

	mem := memory.New()
	if stores.Gifts == nil {
		stores.Gifts = mem
	}
	if stores.PreOrders == nil {
		stores.PreOrders = mem
	}

	manager := system.NewManager()

	giftService := giftsvc.New(stores.Gifts, gateways.Catalog, gateways.Identity,
		gateways.Entitlement, gateways.Payment, gateways.Notifier, log)
	preOrderService := preordersvc.New(stores.PreOrders, gateways.Catalog, gateways.Identity,
		gateways.Entitlement, gateways.Payment, gateways.Notifier, log)

	sweeps := []system.Service{
		giftsvc.NewExpirer(giftService, stores.Gifts, opts.SweepInterval, log),
		preordersvc.NewCompleter(preOrderService, stores.PreOrders, gateways.Catalog, opts.SweepInterval, log),
	}
	for _, svc := range sweeps {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Gifts:     giftService,
		PreOrders: preOrderService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
