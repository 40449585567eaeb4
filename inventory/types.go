/*
Package inventory provides the core stock bookkeeping engine.

PURPOSE:
  This package contains the domain types and services for tracking fabric
  stock: the entity catalog (fabrics and variants), the append-only movement
  ledger with its transactionally maintained balance, the stock reader, and
  the batch coordinator.

KEY CONCEPTS IN THIS FILE (types.go):
  - Fabric/Variant: catalog entities, addressed by business codes
  - Movement: an immutable ledger entry recording a stock change in meters
  - Balance: the single mutable aggregate derived from a variant's ledger
  - StockView: display-ready balance (meters, rolls, whole-roll split)

DESIGN PRINCIPLES:
  1. Canonical unit: the ledger and balance only ever hold meters
  2. Precision: quantities use decimal.Decimal, never float64
  3. Immutability: movements are never edited; corrections are reversals
  4. Business identity: callers address variants by (fabric_code, color_code)

SEE ALSO:
  - units.go:  unit conversion ("m" / "roll")
  - ledger.go: movement recording and stock reads
  - store.go:  persistence interfaces
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GALLERY - Structured image metadata
// =============================================================================

// GalleryShoot is a photoshoot namespace with a main image and extra shots.
type GalleryShoot struct {
	Main   string   `json:"main"`
	Images []string `json:"images,omitempty"`
}

// Gallery maps a namespace (e.g. "photoshoot1") to its images.
type Gallery map[string]GalleryShoot

// =============================================================================
// CATALOG ENTITIES
// =============================================================================

// Fabric is a textile product family identified by a business code.
type Fabric struct {
	ID        int64
	Code      string
	Name      string
	ImageURL  string
	Gallery   Gallery
	Aliases   []string
	CreatedAt time.Time
}

// Variant is a specific color/spec combination of a fabric. Stock is tracked
// at variant granularity.
type Variant struct {
	ID        int64
	FabricID  int64
	ColorCode string
	GSM       *int
	Width     *int
	Finish    string
	ImageURL  string
	Gallery   Gallery
	CreatedAt time.Time
}

// VariantDetail is a variant joined with its parent fabric's basics.
type VariantDetail struct {
	Variant
	FabricCode     string
	FabricName     string
	FabricImageURL string
	FabricGallery  Gallery
}

// VariantStock is a variant detail optionally decorated with its balance
// (the "join stock" flag on list and lookup operations).
type VariantStock struct {
	VariantDetail
	Stock *Balance
}

// VariantRef addresses a variant by business identifiers. Internal surrogate
// keys never cross the package boundary.
type VariantRef struct {
	FabricCode string
	ColorCode  string
}

// Normalize returns the ref with both codes in canonical form.
func (r VariantRef) Normalize() VariantRef {
	return VariantRef{
		FabricCode: NormalizeFabricCode(r.FabricCode),
		ColorCode:  NormalizeColorCode(r.ColorCode),
	}
}

func (r VariantRef) String() string {
	return r.FabricCode + "/" + r.ColorCode
}

// =============================================================================
// MOVEMENT - Immutable ledger entry
// =============================================================================

// MovementKind is a closed enumeration; the kind determines the sign policy
// applied to the caller-supplied quantity (see Ledger.Record).
type MovementKind string

const (
	MovementReceipt MovementKind = "RECEIPT"
	MovementIssue   MovementKind = "ISSUE"
	MovementAdjust  MovementKind = "ADJUST"
)

// Valid reports whether k is one of the recognized kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementReceipt, MovementIssue, MovementAdjust:
		return true
	}
	return false
}

// Movement is an immutable stock change against a variant.
//
// DeltaM is fully determined by (OriginalQty, OriginalUnit) through the unit
// converter and the kind's sign policy; it is never independently settable.
// RollCount is advisory metadata and takes no part in balance math.
type Movement struct {
	ID           string
	VariantID    int64
	Kind         MovementKind
	OccurredAt   time.Time
	DeltaM       decimal.Decimal
	OriginalQty  decimal.Decimal
	OriginalUnit Unit
	RollCount    *int
	DocumentID   string
	Reason       string

	// ReversalOf carries the id of the movement this one cancels out.
	// Empty for ordinary movements. A movement is reversed at most once.
	ReversalOf string
}

// MovementDetail is a movement joined with its variant's business codes,
// as returned by history queries.
type MovementDetail struct {
	Movement
	FabricCode string
	ColorCode  string
}

// MovementFilter narrows history queries. Zero values mean "no filter".
type MovementFilter struct {
	FabricCode string
	ColorCode  string
	Kind       MovementKind
	DocumentID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	SortDesc   bool
}

// =============================================================================
// BALANCE - The single mutable derived aggregate
// =============================================================================

// Balance is the current on-hand quantity for a variant. It is updated by a
// relative increment in the same transaction as each ledger append and equals
// the sum of the variant's movement deltas at all times.
type Balance struct {
	VariantID int64
	OnHandM   decimal.Decimal
	UpdatedAt time.Time
}

// =============================================================================
// RESULTS AND VIEWS
// =============================================================================

// MovementResult is returned after a successful ledger append.
type MovementResult struct {
	MovementID string
	Kind       MovementKind
	DeltaM     decimal.Decimal
	OnHandM    decimal.Decimal // balance after the append
}

// StockView is the display-ready balance for a variant. All fields are
// computed regardless of the requested display unit; DisplayUnit only says
// which one the caller asked to foreground.
type StockView struct {
	Variant     VariantDetail
	OnHandM     decimal.Decimal
	OnHandRolls decimal.Decimal
	WholeRolls  int64
	RemainderM  decimal.Decimal
	DisplayUnit Unit
	UpdatedAt   time.Time
}

// splitRolls derives the roll figures from an on-hand meter quantity.
// WholeRolls uses floor, not truncation: -50m is -1 whole roll with a
// remainder of 150m, so remainder is always in [0, RollLength).
func splitRolls(onHandM decimal.Decimal) (rolls decimal.Decimal, whole int64, remainder decimal.Decimal) {
	rolls = onHandM.Div(RollLength)
	wholeDec := rolls.Floor()
	whole = wholeDec.IntPart()
	remainder = onHandM.Sub(wholeDec.Mul(RollLength))
	return rolls, whole, remainder
}

// NewStockView assembles the view for a variant balance.
func NewStockView(v VariantDetail, b Balance, display Unit) StockView {
	rolls, whole, rem := splitRolls(b.OnHandM)
	return StockView{
		Variant:     v,
		OnHandM:     b.OnHandM,
		OnHandRolls: rolls,
		WholeRolls:  whole,
		RemainderM:  rem,
		DisplayUnit: display,
		UpdatedAt:   b.UpdatedAt,
	}
}

// =============================================================================
// UPDATE PAYLOADS
// =============================================================================

// FabricUpdate carries optional field updates; nil means "leave unchanged".
type FabricUpdate struct {
	Name     *string
	ImageURL *string
	Gallery  *Gallery
}

// VariantUpdate carries optional field updates. NewColorCode renames the
// variant and is re-checked for uniqueness before committing.
type VariantUpdate struct {
	NewColorCode *string
	GSM          *int
	Width        *int
	Finish       *string
	ImageURL     *string
	Gallery      *Gallery
}

// FabricFilter narrows fabric listings.
type FabricFilter struct {
	Query  string // matches code, name or alias (substring)
	Limit  int
	Offset int
}

// VariantFilter narrows variant listings.
type VariantFilter struct {
	FabricCode   string
	ColorCode    string
	Finish       string
	GSMMin       *int
	GSMMax       *int
	WidthMin     *int
	WidthMax     *int
	IncludeStock bool
	InStockOnly  bool
	Limit        int
	Offset       int
	SortBy       string // whitelisted by the store; default "id"
	SortDesc     bool
}

// clampPage applies the default page size used across listing operations.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
