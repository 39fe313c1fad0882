// Package catalog holds the read model for store items resolved through the
// catalog gateway. Items are not owned or persisted by this system.
package catalog

import (
	"time"

	"github.com/questline/storefront/internal/app/domain/money"
)

// Item describes a catalog entry as returned by the catalog gateway.
type Item struct {
	ID               string
	Title            string
	Price            money.Money
	ReleaseAt        time.Time
	PreOrderEligible bool
}

// Released reports whether the item's release date has passed.
func (i Item) Released(now time.Time) bool {
	return !i.ReleaseAt.After(now)
}

// PreOrderable reports whether the item can currently be pre-ordered: the
// eligibility flag is set and the release date is still in the future.
func (i Item) PreOrderable(now time.Time) bool {
	return i.PreOrderEligible && i.ReleaseAt.After(now)
}
