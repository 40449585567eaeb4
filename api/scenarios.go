/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  data for demos. Each scenario creates fabrics, variants, aliases and
  movements that demonstrate specific features.

AVAILABLE SCENARIOS:
  starter-catalog:  Two fabrics with variants, aliases and opening stock
  receiving-day:    A delivery note booked as one movement batch
  stocktake:        Corrections: signed adjustments and a cancellation
  oversold:         Issues below zero showing negative-balance tolerance

NOTE:
  Scenarios write into the live database and do not reset it. Loading the
  same scenario twice conflicts on the fabric codes it seeds. Only use in
  development/demo environments.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "starter-catalog"}

SEE ALSO:
  - server.go: scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/traider/fabric-inventory/inventory"
)

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "starter-catalog",
		Name:        "Starter Catalog",
		Description: "Two fabrics with variants, supplier aliases and opening stock",
	},
	{
		ID:          "receiving-day",
		Name:        "Receiving Day",
		Description: "A delivery note booked as one batch of receipts",
	},
	{
		ID:          "stocktake",
		Name:        "Stocktake Corrections",
		Description: "Signed adjustments with reasons and a cancelled receipt",
	},
	{
		ID:          "oversold",
		Name:        "Oversold Variant",
		Description: "Issues past zero; bookkeeping tolerates negative balances",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds one predefined scenario into the live database.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "starter-catalog":
		err = h.loadStarterCatalog(ctx)
	case "receiving-day":
		err = h.loadReceivingDay(ctx)
	case "stocktake":
		err = h.loadStocktake(ctx)
	case "oversold":
		err = h.loadOversold(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedFabric(ctx context.Context, code, name string, aliases []string, colors ...string) error {
	if _, err := h.Catalog.CreateFabric(ctx, inventory.Fabric{Code: code, Name: name, Aliases: aliases}); err != nil {
		return err
	}
	for _, color := range colors {
		if _, err := h.Catalog.CreateVariant(ctx, code, inventory.Variant{ColorCode: color}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadStarterCatalog(ctx context.Context) error {
	if err := h.seedFabric(ctx, "COT_POPL_01", "Cotton Poplin", []string{"SUP_CP_7"}, "C101", "C102", "C201"); err != nil {
		return err
	}
	if err := h.seedFabric(ctx, "LIN_TWL_02", "Linen Twill", nil, "L010", "L011"); err != nil {
		return err
	}

	openings := []struct {
		fabric, color string
		rolls         int
	}{
		{"COT_POPL_01", "C101", 5},
		{"COT_POPL_01", "C102", 2},
		{"LIN_TWL_02", "L010", 3},
	}
	for _, o := range openings {
		rolls := o.rolls
		_, err := h.Ledger.Receive(ctx, inventory.MovementRequest{
			Ref:        inventory.VariantRef{FabricCode: o.fabric, ColorCode: o.color},
			Qty:        decimal.NewFromInt(int64(o.rolls)),
			Unit:       inventory.UnitRoll,
			RollCount:  &rolls,
			DocumentID: "OPENING",
			Reason:     "opening stock",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadReceivingDay(ctx context.Context) error {
	if err := h.seedFabric(ctx, "VIS_CRP_03", "Viscose Crepe", []string{"SUP_VC_12"}, "V301", "V302", "V303"); err != nil {
		return err
	}

	items := make([]inventory.MovementRequest, 0, 3)
	for i, color := range []string{"V301", "V302", "V303"} {
		items = append(items, inventory.MovementRequest{
			Ref: inventory.VariantRef{FabricCode: "VIS_CRP_03", ColorCode: color},
			Qty: decimal.NewFromInt(int64(i + 1)), Unit: inventory.UnitRoll,
		})
	}
	res, err := h.Ledger.RecordBatch(ctx, inventory.MovementReceipt, items, "GRN-2026-0314", "weekly delivery")
	if err != nil {
		return err
	}
	if len(res.Failed) > 0 {
		return res.Failed[0].Err
	}
	return nil
}

func (h *Handler) loadStocktake(ctx context.Context) error {
	if err := h.seedFabric(ctx, "WOL_FLN_04", "Wool Flannel", nil, "W401"); err != nil {
		return err
	}
	ref := inventory.VariantRef{FabricCode: "WOL_FLN_04", ColorCode: "W401"}

	rcpt, err := h.Ledger.Receive(ctx, inventory.MovementRequest{
		Ref: ref, Qty: decimal.NewFromInt(4), Unit: inventory.UnitRoll, DocumentID: "GRN-2026-0299",
	})
	if err != nil {
		return err
	}
	// shrinkage found during the count
	if _, err := h.Ledger.Adjust(ctx, inventory.MovementRequest{
		Ref: ref, Qty: decimal.NewFromInt(-13), Unit: inventory.UnitMeter, Reason: "stocktake shrinkage",
	}); err != nil {
		return err
	}
	// one receipt was booked against the wrong lot and gets reversed
	if _, err := h.Ledger.Cancel(ctx, rcpt.MovementID, "booked against wrong lot"); err != nil {
		return err
	}
	_, err = h.Ledger.Receive(ctx, inventory.MovementRequest{
		Ref: ref, Qty: decimal.NewFromInt(4), Unit: inventory.UnitRoll, DocumentID: "GRN-2026-0300",
	})
	return err
}

func (h *Handler) loadOversold(ctx context.Context) error {
	if err := h.seedFabric(ctx, "SLK_SAT_05", "Silk Satin", nil, "S501"); err != nil {
		return err
	}
	ref := inventory.VariantRef{FabricCode: "SLK_SAT_05", ColorCode: "S501"}

	if _, err := h.Ledger.Receive(ctx, inventory.MovementRequest{
		Ref: ref, Qty: decimal.NewFromInt(40), Unit: inventory.UnitMeter,
	}); err != nil {
		return err
	}
	// sold more than was ever received; the ledger records it anyway
	_, err := h.Ledger.Issue(ctx, inventory.MovementRequest{
		Ref: ref, Qty: decimal.NewFromInt(90), Unit: inventory.UnitMeter, DocumentID: "SO-2026-1187",
	})
	return err
}
