/*
store.go - Persistence interfaces for the inventory engine

PURPOSE:
  Defines the storage contracts the services depend on. Implementations:
  - store/memory.go:          in-memory maps for tests
  - store/sqlite (top-level): production SQLite backend

CRITICAL INVARIANT:
  AppendMovement MUST insert the movement row and apply the balance increment
  in one atomic step (one transaction, relative increment in SQL for the
  SQLite backend). A store that reads the balance, adds in application code
  and writes it back will lose increments under concurrent writers.

SEE ALSO:
  - catalog.go: consumes CatalogStore
  - ledger.go:  consumes LedgerStore
*/
package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOG STORE
// =============================================================================

// CatalogStore persists fabrics, variants and aliases. Codes arriving here
// are already normalized by the Catalog service.
type CatalogStore interface {
	// CreateFabric inserts a fabric. Fails with DuplicateKeyError when the
	// code is taken.
	CreateFabric(ctx context.Context, f Fabric) (Fabric, error)

	// UpdateFabric applies the non-nil fields of upd.
	UpdateFabric(ctx context.Context, code string, upd FabricUpdate) (Fabric, error)

	// GetFabric resolves a fabric by code or alias.
	GetFabric(ctx context.Context, code string) (Fabric, error)

	// ListFabrics returns a page of fabrics plus the unpaged total.
	ListFabrics(ctx context.Context, f FabricFilter) ([]Fabric, int, error)

	// AddAlias registers an alternate code. Returns false if the alias was
	// already present on this fabric.
	AddAlias(ctx context.Context, code, alias string) (bool, error)

	// RemoveAlias deletes an alias. Returns false if it was not present.
	RemoveAlias(ctx context.Context, code, alias string) (bool, error)

	// CreateVariant inserts a variant under the given fabric. Fails with
	// DuplicateKeyError when (fabric, color) is taken.
	CreateVariant(ctx context.Context, fabricCode string, v Variant) (VariantDetail, error)

	// UpdateVariant applies the non-nil fields of upd; a color rename
	// re-checks uniqueness within the fabric.
	UpdateVariant(ctx context.Context, ref VariantRef, upd VariantUpdate) (VariantDetail, error)

	// DeleteVariant removes a variant together with its movements and
	// balance (cascade).
	DeleteVariant(ctx context.Context, ref VariantRef) error

	// GetVariant resolves a variant by business reference.
	GetVariant(ctx context.Context, ref VariantRef) (VariantDetail, error)

	// ListVariants returns a page of variants plus the unpaged total,
	// with balances attached when f.IncludeStock is set.
	ListVariants(ctx context.Context, f VariantFilter) ([]VariantStock, int, error)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore persists movements and the derived balance.
type LedgerStore interface {
	// AppendMovement atomically inserts mv against the variant at ref and
	// increments the variant's balance by mv.DeltaM, creating the balance
	// row on first movement. Returns the stored movement and the balance
	// after the increment. Fails with NotFoundError when ref does not
	// resolve, and with ErrAlreadyReversed when mv.ReversalOf collides with
	// an existing reversal.
	AppendMovement(ctx context.Context, ref VariantRef, mv Movement) (Movement, decimal.Decimal, error)

	// GetMovement fetches one movement with its variant codes.
	GetMovement(ctx context.Context, id string) (MovementDetail, error)

	// HasReversal reports whether a reversal already references movementID.
	HasReversal(ctx context.Context, movementID string) (bool, error)

	// Movements returns a filtered history page plus the unpaged total.
	Movements(ctx context.Context, f MovementFilter) ([]MovementDetail, int, error)

	// GetStock fetches a variant with its balance. A variant with no
	// movements yet yields a zero balance, not an error.
	GetStock(ctx context.Context, ref VariantRef) (VariantDetail, Balance, error)
}

// Store is the full persistence surface the service layer is wired with.
type Store interface {
	CatalogStore
	LedgerStore
}
