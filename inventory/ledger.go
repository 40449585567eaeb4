/*
ledger.go - Movement ledger and stock reader

PURPOSE:
  The only write path into stock. Every change is an immutable movement;
  the balance is maintained by the store in the same transaction as the
  append and is never written directly by anything else.

SIGN POLICY (owned here, never by callers):
  RECEIPT  delta = +toMeters(qty)         incoming goods
  ISSUE    delta = -toMeters(|qty|)       outgoing goods, sign forced
  ADJUST   delta =  toMeters(qty)         signed correction, sign kept

CANCELLATION:
  A movement is cancelled by appending a compensating ADJUST that carries
  reversal_of. History is never edited; a movement is reversed at most once
  and a reversal cannot itself be reversed.

SEE ALSO:
  - store.go: atomicity contract for AppendMovement
  - types.go: StockView derivation
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger records movements and serves stock reads.
type Ledger struct {
	store LedgerStore
	now   func() time.Time
}

// NewLedger wires the ledger service to a store.
func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// MovementRequest is a single movement to record. Qty is interpreted per the
// kind's sign policy; RollCount, DocumentID and Reason are advisory metadata.
type MovementRequest struct {
	Ref        VariantRef
	Qty        decimal.Decimal
	Unit       Unit
	RollCount  *int
	DocumentID string
	Reason     string
}

// =============================================================================
// RECORDING
// =============================================================================

// Record converts the request quantity to a signed meter delta and appends
// the movement, updating the balance atomically.
func (l *Ledger) Record(ctx context.Context, kind MovementKind, req MovementRequest) (MovementResult, error) {
	if !kind.Valid() {
		return MovementResult{}, &InvalidInputError{
			Field:  "kind",
			Reason: fmt.Sprintf("unknown movement kind %q", string(kind)),
		}
	}

	// Zero quantities are allowed: a zero-delta row still documents that a
	// count happened (a stocktake that found nothing off).
	qty, rollCount := applySignPolicy(kind, req.Qty, req.RollCount)
	delta, err := ToMeters(qty, req.Unit)
	if err != nil {
		return MovementResult{}, err
	}

	mv := Movement{
		ID:           uuid.NewString(),
		Kind:         kind,
		OccurredAt:   l.now().UTC(),
		DeltaM:       delta,
		OriginalQty:  qty,
		OriginalUnit: req.Unit,
		RollCount:    rollCount,
		DocumentID:   req.DocumentID,
		Reason:       req.Reason,
	}

	saved, onHand, err := l.store.AppendMovement(ctx, req.Ref.Normalize(), mv)
	if err != nil {
		return MovementResult{}, err
	}
	return MovementResult{
		MovementID: saved.ID,
		Kind:       saved.Kind,
		DeltaM:     saved.DeltaM,
		OnHandM:    onHand,
	}, nil
}

// applySignPolicy forces the sign the kind demands. ISSUE always subtracts,
// whatever sign the caller sent; ADJUST and RECEIPT keep the caller's sign
// (receipts of negative quantities are corrections the ADJUST kind should
// carry, but the ledger does not second-guess them).
func applySignPolicy(kind MovementKind, qty decimal.Decimal, rollCount *int) (decimal.Decimal, *int) {
	if kind != MovementIssue {
		return qty, rollCount
	}
	out := qty.Abs().Neg()
	if rollCount != nil {
		n := *rollCount
		if n < 0 {
			n = -n
		}
		n = -n
		rollCount = &n
	}
	return out, rollCount
}

// Receive records incoming goods.
func (l *Ledger) Receive(ctx context.Context, req MovementRequest) (MovementResult, error) {
	return l.Record(ctx, MovementReceipt, req)
}

// Issue records outgoing goods. The quantity's sign is forced negative.
func (l *Ledger) Issue(ctx context.Context, req MovementRequest) (MovementResult, error) {
	return l.Record(ctx, MovementIssue, req)
}

// Adjust records a signed correction.
func (l *Ledger) Adjust(ctx context.Context, req MovementRequest) (MovementResult, error) {
	return l.Record(ctx, MovementAdjust, req)
}

// =============================================================================
// CANCELLATION
// =============================================================================

// Cancel appends a compensating ADJUST for the given movement. The original
// row is untouched; the reversal carries reversal_of so double cancellation
// is rejected, racing cancels included (the store holds a uniqueness
// constraint on reversal_of).
func (l *Ledger) Cancel(ctx context.Context, movementID, reason string) (MovementResult, error) {
	orig, err := l.store.GetMovement(ctx, movementID)
	if err != nil {
		return MovementResult{}, err
	}
	if orig.ReversalOf != "" {
		return MovementResult{}, fmt.Errorf("movement %s is itself a reversal: %w", movementID, ErrAlreadyReversed)
	}
	if reversed, err := l.store.HasReversal(ctx, movementID); err != nil {
		return MovementResult{}, err
	} else if reversed {
		return MovementResult{}, fmt.Errorf("movement %s: %w", movementID, ErrAlreadyReversed)
	}

	if reason == "" {
		reason = "cancellation of " + movementID
	}
	delta := orig.DeltaM.Neg()
	mv := Movement{
		ID:           uuid.NewString(),
		Kind:         MovementAdjust,
		OccurredAt:   l.now().UTC(),
		DeltaM:       delta,
		OriginalQty:  delta,
		OriginalUnit: UnitMeter,
		DocumentID:   orig.DocumentID,
		Reason:       reason,
		ReversalOf:   orig.ID,
	}
	if orig.RollCount != nil {
		n := -*orig.RollCount
		mv.RollCount = &n
	}

	saved, onHand, err := l.store.AppendMovement(ctx, VariantRef{FabricCode: orig.FabricCode, ColorCode: orig.ColorCode}, mv)
	if err != nil {
		return MovementResult{}, err
	}
	return MovementResult{
		MovementID: saved.ID,
		Kind:       saved.Kind,
		DeltaM:     saved.DeltaM,
		OnHandM:    onHand,
	}, nil
}

// =============================================================================
// READS
// =============================================================================

// Stock returns the display-ready balance for a variant. A variant with no
// movements reads as zero. The display unit defaults to meters.
func (l *Ledger) Stock(ctx context.Context, ref VariantRef, display Unit) (StockView, error) {
	if display == "" {
		display = UnitMeter
	}
	if !display.Valid() {
		return StockView{}, &InvalidUnitError{Unit: display}
	}
	variant, balance, err := l.store.GetStock(ctx, ref.Normalize())
	if err != nil {
		return StockView{}, err
	}
	return NewStockView(variant, balance, display), nil
}

// GetMovement fetches a single movement by id.
func (l *Ledger) GetMovement(ctx context.Context, id string) (MovementDetail, error) {
	return l.store.GetMovement(ctx, id)
}

// Movements returns a filtered history page and the unpaged total.
func (l *Ledger) Movements(ctx context.Context, f MovementFilter) ([]MovementDetail, int, error) {
	f.FabricCode = NormalizeFabricCode(f.FabricCode)
	f.ColorCode = NormalizeColorCode(f.ColorCode)
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, 0, &InvalidInputError{
			Field:  "kind",
			Reason: fmt.Sprintf("unknown movement kind %q", string(f.Kind)),
		}
	}
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return l.store.Movements(ctx, f)
}
