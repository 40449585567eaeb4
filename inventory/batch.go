/*
batch.go - Batch coordinator

PURPOSE:
  Bulk operations over the catalog and the ledger. Three shapes share one
  grammar: a size cap checked before any work starts, independent items, and
  an ordered result that makes partial success legible (successes and
  failures keep their submission index).

CAPS:
  variant creation   100 items
  movement recording  50 items
  lookups             uncapped (read-only)

  An oversized batch fails whole with ErrBatchTooLarge; no item is processed.
*/
package inventory

import "context"

const (
	// MaxCreateBatch caps bulk variant creation.
	MaxCreateBatch = 100

	// MaxMovementBatch caps bulk movement recording. Lower than the creation
	// cap because every item writes two tables.
	MaxMovementBatch = 50
)

// BatchSummary totals a batch outcome.
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
}

// BatchFailure pins an error to the submission index of the item it belongs
// to, with the item's business reference for legibility.
type BatchFailure struct {
	Index int
	Ref   string
	Err   error
}

// =============================================================================
// BULK VARIANT CREATION
// =============================================================================

// VariantCreated is one successful item of a creation batch.
type VariantCreated struct {
	Index   int
	Variant VariantDetail
}

// VariantBatchResult is the ordered outcome of a creation batch.
type VariantBatchResult struct {
	Created []VariantCreated
	Failed  []BatchFailure
	Summary BatchSummary
}

// CreateVariantsBatch inserts up to MaxCreateBatch variants under one fabric.
// Items are independent: a duplicate color in item 3 does not stop item 4.
func (c *Catalog) CreateVariantsBatch(ctx context.Context, fabricCode string, items []Variant) (VariantBatchResult, error) {
	if len(items) > MaxCreateBatch {
		return VariantBatchResult{}, &BatchTooLargeError{Size: len(items), Limit: MaxCreateBatch}
	}
	fabricCode = NormalizeFabricCode(fabricCode)

	// The fabric is resolved once up front; a missing fabric fails the whole
	// batch rather than each item separately.
	if _, err := c.store.GetFabric(ctx, fabricCode); err != nil {
		return VariantBatchResult{}, err
	}

	res := VariantBatchResult{Summary: BatchSummary{Total: len(items)}}
	for i, item := range items {
		created, err := c.CreateVariant(ctx, fabricCode, item)
		if err != nil {
			res.Failed = append(res.Failed, BatchFailure{
				Index: i,
				Ref:   fabricCode + "/" + NormalizeColorCode(item.ColorCode),
				Err:   err,
			})
			res.Summary.Failed++
			continue
		}
		res.Created = append(res.Created, VariantCreated{Index: i, Variant: created})
		res.Summary.Succeeded++
	}
	return res, nil
}

// =============================================================================
// BULK MOVEMENT RECORDING
// =============================================================================

// MovementRecorded is one successful item of a movement batch.
type MovementRecorded struct {
	Index  int
	Ref    string
	Result MovementResult
}

// MovementBatchResult is the ordered outcome of a movement batch.
type MovementBatchResult struct {
	Recorded []MovementRecorded
	Failed   []BatchFailure
	Summary  BatchSummary
}

// RecordBatch records up to MaxMovementBatch movements of one kind. The
// documentID and reason are shared across the batch (one delivery note, many
// lines). Items are independent; each append is individually atomic.
func (l *Ledger) RecordBatch(ctx context.Context, kind MovementKind, items []MovementRequest, documentID, reason string) (MovementBatchResult, error) {
	if len(items) > MaxMovementBatch {
		return MovementBatchResult{}, &BatchTooLargeError{Size: len(items), Limit: MaxMovementBatch}
	}
	if !kind.Valid() {
		return MovementBatchResult{}, &InvalidInputError{Field: "kind", Reason: "unknown movement kind"}
	}

	res := MovementBatchResult{Summary: BatchSummary{Total: len(items)}}
	for i, item := range items {
		if documentID != "" {
			item.DocumentID = documentID
		}
		if reason != "" {
			item.Reason = reason
		}
		ref := item.Ref.Normalize()
		out, err := l.Record(ctx, kind, item)
		if err != nil {
			res.Failed = append(res.Failed, BatchFailure{Index: i, Ref: ref.String(), Err: err})
			res.Summary.Failed++
			continue
		}
		res.Recorded = append(res.Recorded, MovementRecorded{Index: i, Ref: ref.String(), Result: out})
		res.Summary.Succeeded++
	}
	return res, nil
}

// =============================================================================
// BULK LOOKUP
// =============================================================================

// LookupHit is one resolved reference of a lookup batch.
type LookupHit struct {
	Index   int
	Ref     string
	Variant VariantStock
}

// LookupMiss is one unresolved reference. Misses are data, not errors.
type LookupMiss struct {
	Index int
	Ref   string
}

// LookupResult is the ordered outcome of a lookup batch.
type LookupResult struct {
	Found   []LookupHit
	Missing []LookupMiss
	Summary BatchSummary
}

// LookupVariants resolves many color codes under one fabric in a single
// call. Read-only, so uncapped. With includeStock each hit carries its
// balance (zero when the variant has no movements yet).
func (c *Catalog) LookupVariants(ctx context.Context, fabricCode string, colorCodes []string, includeStock bool) (LookupResult, error) {
	fabricCode = NormalizeFabricCode(fabricCode)
	if _, err := c.store.GetFabric(ctx, fabricCode); err != nil {
		return LookupResult{}, err
	}

	res := LookupResult{Summary: BatchSummary{Total: len(colorCodes)}}
	for i, raw := range colorCodes {
		color := NormalizeColorCode(raw)
		ref := fabricCode + "/" + color
		if color == "" {
			res.Missing = append(res.Missing, LookupMiss{Index: i, Ref: ref})
			res.Summary.Failed++
			continue
		}
		list, _, err := c.store.ListVariants(ctx, VariantFilter{
			FabricCode:   fabricCode,
			ColorCode:    color,
			IncludeStock: includeStock,
			Limit:        1,
		})
		if err != nil {
			return LookupResult{}, err
		}
		if len(list) == 0 {
			res.Missing = append(res.Missing, LookupMiss{Index: i, Ref: ref})
			res.Summary.Failed++
			continue
		}
		res.Found = append(res.Found, LookupHit{Index: i, Ref: ref, Variant: list[0]})
		res.Summary.Succeeded++
	}
	return res, nil
}
