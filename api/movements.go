/*
movements.go - Ledger endpoints

PURPOSE:
  The write side of stock. Three kinds share one request shape; the route
  decides the kind and the ledger owns the sign policy, so clients never
  send signed deltas for receipts or issues.

ENDPOINTS:
  POST /api/movements/receive         Record incoming goods
  POST /api/movements/issue           Record outgoing goods
  POST /api/movements/adjust          Record a signed correction (reason required)
  POST /api/movements/receive/batch   Up to 50 receipts in one call
  POST /api/movements/issue/batch     Up to 50 issues in one call
  POST /api/movements/adjust/batch    Up to 50 adjustments in one call
  GET  /api/movements                 Filtered history
  GET  /api/movements/{id}            Single movement
  POST /api/movements/{id}/cancel     Append a compensating reversal

SEE ALSO:
  - inventory/ledger.go: sign policy and cancellation semantics
  - inventory/batch.go: batch caps and partial-success grammar
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/traider/fabric-inventory/inventory"
)

// =============================================================================
// SINGLE MOVEMENTS
// =============================================================================

// Receive records incoming goods.
// POST /api/movements/receive
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	h.recordMovement(w, r, inventory.MovementReceipt)
}

// Issue records outgoing goods. Quantity sign is forced negative server-side.
// POST /api/movements/issue
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	h.recordMovement(w, r, inventory.MovementIssue)
}

// Adjust records a signed correction. A reason is mandatory: adjustments
// with no explanation are unauditable.
// POST /api/movements/adjust
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	h.recordMovement(w, r, inventory.MovementAdjust)
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request, kind inventory.MovementKind) {
	var req MovementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if kind == inventory.MovementAdjust && req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Validation failed",
			Fields: []FieldError{{Field: "Reason", Message: "is required for adjustments"}},
		})
		return
	}

	domainReq, err := toDomainMovement(req)
	if err != nil {
		writeDomainError(w, "Invalid movement", err)
		return
	}
	result, err := h.Ledger.Record(r.Context(), kind, domainReq)
	if err != nil {
		writeDomainError(w, "Failed to record movement", err)
		return
	}

	movementsRecorded.WithLabelValues(string(kind)).Inc()
	writeJSON(w, http.StatusCreated, toMovementResultDTO(result))
}

func toDomainMovement(req MovementRequest) (inventory.MovementRequest, error) {
	qty, err := inventory.ParseQuantity(req.Qty)
	if err != nil {
		return inventory.MovementRequest{}, err
	}
	return inventory.MovementRequest{
		Ref: inventory.VariantRef{
			FabricCode: req.FabricCode,
			ColorCode:  req.ColorCode,
		},
		Qty:        qty,
		Unit:       inventory.Unit(req.UOM),
		RollCount:  req.RollCount,
		DocumentID: req.DocumentID,
		Reason:     req.Reason,
	}, nil
}

// =============================================================================
// BATCH MOVEMENTS
// =============================================================================

// BatchMovements records up to 50 movements of one kind. Items are
// independent; partial success answers 207, an oversized batch 400 with
// nothing recorded.
// POST /api/movements/{receive|issue|adjust}/batch
func (h *Handler) BatchMovements(kind inventory.MovementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchMovementsRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if kind == inventory.MovementAdjust && req.Reason == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "Validation failed",
				Fields: []FieldError{{Field: "Reason", Message: "is required for adjustments"}},
			})
			return
		}

		items := make([]inventory.MovementRequest, len(req.Items))
		for i, item := range req.Items {
			domainReq, err := toDomainMovement(item)
			if err != nil {
				writeDomainError(w, "Invalid movement", err)
				return
			}
			items[i] = domainReq
		}

		res, err := h.Ledger.RecordBatch(r.Context(), kind, items, req.DocumentID, req.Reason)
		if err != nil {
			writeDomainError(w, "Failed to record movements", err)
			return
		}

		resp := BatchMovementsResponse{
			Recorded: make([]RecordedItemDTO, 0, len(res.Recorded)),
			Failed:   toBatchFailureDTOs(res.Failed),
			Summary:  toBatchSummaryDTO(res.Summary),
		}
		for _, rec := range res.Recorded {
			resp.Recorded = append(resp.Recorded, RecordedItemDTO{
				Index:  rec.Index,
				Ref:    rec.Ref,
				Result: toMovementResultDTO(rec.Result),
			})
		}
		movementsRecorded.WithLabelValues(string(kind)).Add(float64(res.Summary.Succeeded))
		observeBatch("movements", resp.Summary)

		status := http.StatusCreated
		if resp.Summary.Failed > 0 {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, resp)
	}
}

// =============================================================================
// HISTORY AND CANCELLATION
// =============================================================================

// ListMovements returns a filtered history page, newest first by default.
// GET /api/movements?fabric_code=&color_code=&kind=&document_id=&from=&to=
//
//	&order=&limit=&offset=
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := inventory.MovementFilter{
		FabricCode: q.Get("fabric_code"),
		ColorCode:  q.Get("color_code"),
		Kind:       inventory.MovementKind(q.Get("kind")),
		DocumentID: q.Get("document_id"),
		From:       timeQueryPtr(r, "from"),
		To:         timeQueryPtr(r, "to"),
		Limit:      intQuery(r, "limit", 0),
		Offset:     intQuery(r, "offset", 0),
		SortDesc:   q.Get("order") != "asc",
	}

	movements, total, err := h.Ledger.Movements(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list movements", err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Items: toMovementDTOs(movements), Total: total,
		Limit: filter.Limit, Offset: filter.Offset,
	})
}

// GetMovement returns a single movement by id.
// GET /api/movements/{id}
func (h *Handler) GetMovement(w http.ResponseWriter, r *http.Request) {
	movement, err := h.Ledger.GetMovement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get movement", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTO(movement))
}

// CancelMovement appends a compensating reversal. The original row is never
// touched; cancelling twice (or cancelling a reversal) answers 409.
// POST /api/movements/{id}/cancel
func (h *Handler) CancelMovement(w http.ResponseWriter, r *http.Request) {
	var req CancelMovementRequest
	if r.ContentLength > 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}

	result, err := h.Ledger.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to cancel movement", err)
		return
	}

	movementsCancelled.Inc()
	writeJSON(w, http.StatusCreated, toMovementResultDTO(result))
}
