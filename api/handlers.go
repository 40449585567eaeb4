/*
handlers.go - HTTP API handlers for the fabric inventory system

PURPOSE:
  Exposes the inventory engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Fabrics:
    GET    /api/fabrics                          List fabrics
    POST   /api/fabrics                          Create fabric
    GET    /api/fabrics/{code}                   Get fabric (code or alias)
    PATCH  /api/fabrics/{code}                   Update fabric
    POST   /api/fabrics/{code}/aliases           Add alias
    DELETE /api/fabrics/{code}/aliases/{alias}   Remove alias

  Variants:
    GET    /api/variants                         List/filter variants
    POST   /api/fabrics/{code}/variants          Create variant
    POST   /api/fabrics/{code}/variants/batch    Create up to 100 variants
    POST   /api/fabrics/{code}/variants/lookup   Resolve many color codes
    GET    /api/fabrics/{code}/variants/{color}  Get variant
    PATCH  /api/fabrics/{code}/variants/{color}  Update variant
    DELETE /api/fabrics/{code}/variants/{color}  Delete variant (cascades)

  Stock:
    GET    /api/stock/{code}/{color}?uom=        Current balance, derived views

  Movements: see movements.go

ARCHITECTURE:
  Handler struct holds the two domain services:
  - Catalog: fabric/variant CRUD and lookups
  - Ledger: movement recording, cancellation, stock reads

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid unit/input, oversized batches
  - 404: Fabric, variant or movement not found
  - 409: Duplicate code, movement already reversed
  - 207: Batch with partial success
  - 500: Internal errors

SECURITY NOTE:
  Single-tenant service; no authentication or authorization. Deploy behind
  a trusted boundary.

SEE ALSO:
  - dto.go: Request/response data structures
  - movements.go: Ledger endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/traider/fabric-inventory/inventory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog *inventory.Catalog
	Ledger  *inventory.Ledger
}

// NewHandler creates a new handler over the domain services.
func NewHandler(catalog *inventory.Catalog, ledger *inventory.Ledger) *Handler {
	return &Handler{Catalog: catalog, Ledger: ledger}
}

// =============================================================================
// FABRIC HANDLERS
// =============================================================================

// CreateFabric creates a product family.
// POST /api/fabrics
func (h *Handler) CreateFabric(w http.ResponseWriter, r *http.Request) {
	var req CreateFabricRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	fabric, err := h.Catalog.CreateFabric(r.Context(), inventory.Fabric{
		Code:     req.FabricCode,
		Name:     req.Name,
		ImageURL: req.ImageURL,
		Gallery:  req.Gallery,
		Aliases:  normalizeAliases(req.Aliases),
	})
	if err != nil {
		writeDomainError(w, "Failed to create fabric", err)
		return
	}
	writeJSON(w, http.StatusCreated, toFabricDTO(fabric))
}

func normalizeAliases(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		norm := inventory.NormalizeFabricCode(a)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// ListFabrics returns a page of fabrics.
// GET /api/fabrics?q=&limit=&offset=
func (h *Handler) ListFabrics(w http.ResponseWriter, r *http.Request) {
	filter := inventory.FabricFilter{
		Query:  r.URL.Query().Get("q"),
		Limit:  intQuery(r, "limit", 0),
		Offset: intQuery(r, "offset", 0),
	}
	fabrics, total, err := h.Catalog.ListFabrics(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list fabrics", err)
		return
	}

	dtos := make([]FabricDTO, len(fabrics))
	for i, f := range fabrics {
		dtos[i] = toFabricDTO(f)
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Items: dtos, Total: total, Limit: filter.Limit, Offset: filter.Offset,
	})
}

// GetFabric resolves a fabric by code or alias.
// GET /api/fabrics/{code}
func (h *Handler) GetFabric(w http.ResponseWriter, r *http.Request) {
	fabric, err := h.Catalog.GetFabric(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, "Failed to get fabric", err)
		return
	}
	writeJSON(w, http.StatusOK, toFabricDTO(fabric))
}

// UpdateFabric patches a fabric.
// PATCH /api/fabrics/{code}
func (h *Handler) UpdateFabric(w http.ResponseWriter, r *http.Request) {
	var req UpdateFabricRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	fabric, err := h.Catalog.UpdateFabric(r.Context(), chi.URLParam(r, "code"), inventory.FabricUpdate{
		Name:     req.Name,
		ImageURL: req.ImageURL,
		Gallery:  req.Gallery,
	})
	if err != nil {
		writeDomainError(w, "Failed to update fabric", err)
		return
	}
	writeJSON(w, http.StatusOK, toFabricDTO(fabric))
}

// AddAlias registers an alternate code for a fabric. Adding an alias the
// fabric already carries is idempotent and answers 200.
// POST /api/fabrics/{code}/aliases
func (h *Handler) AddAlias(w http.ResponseWriter, r *http.Request) {
	var req AliasRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	added, err := h.Catalog.AddAlias(r.Context(), chi.URLParam(r, "code"), req.Alias)
	if err != nil {
		writeDomainError(w, "Failed to add alias", err)
		return
	}
	fabric, err := h.Catalog.GetFabric(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, "Failed to get fabric", err)
		return
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, toFabricDTO(fabric))
}

// RemoveAlias drops an alias from a fabric.
// DELETE /api/fabrics/{code}/aliases/{alias}
func (h *Handler) RemoveAlias(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Catalog.RemoveAlias(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "alias"))
	if err != nil {
		writeDomainError(w, "Failed to remove alias", err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Alias not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VARIANT HANDLERS
// =============================================================================

// CreateVariant adds a color/spec combination to a fabric.
// POST /api/fabrics/{code}/variants
func (h *Handler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	var req CreateVariantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	variant, err := h.Catalog.CreateVariant(r.Context(), chi.URLParam(r, "code"), variantFromRequest(req))
	if err != nil {
		writeDomainError(w, "Failed to create variant", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVariantDTO(variant))
}

func variantFromRequest(req CreateVariantRequest) inventory.Variant {
	return inventory.Variant{
		ColorCode: req.ColorCode,
		GSM:       req.GSM,
		Width:     req.WidthCM,
		Finish:    req.Finish,
		ImageURL:  req.ImageURL,
		Gallery:   req.Gallery,
	}
}

// BatchCreateVariants creates up to 100 variants under one fabric. Items are
// independent; partial success answers 207.
// POST /api/fabrics/{code}/variants/batch
func (h *Handler) BatchCreateVariants(w http.ResponseWriter, r *http.Request) {
	var req BatchCreateVariantsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	items := make([]inventory.Variant, len(req.Items))
	for i, item := range req.Items {
		items[i] = variantFromRequest(item)
	}
	res, err := h.Catalog.CreateVariantsBatch(r.Context(), chi.URLParam(r, "code"), items)
	if err != nil {
		writeDomainError(w, "Failed to create variants", err)
		return
	}

	resp := BatchVariantsResponse{
		Created: make([]VariantDTO, 0, len(res.Created)),
		Failed:  toBatchFailureDTOs(res.Failed),
		Summary: toBatchSummaryDTO(res.Summary),
	}
	for _, c := range res.Created {
		resp.Created = append(resp.Created, toVariantDTO(c.Variant))
	}
	observeBatch("create_variants", resp.Summary)

	status := http.StatusCreated
	if resp.Summary.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// LookupVariants resolves many color codes under one fabric. Misses are
// data, not errors; the response is 200 whenever the fabric exists.
// POST /api/fabrics/{code}/variants/lookup
func (h *Handler) LookupVariants(w http.ResponseWriter, r *http.Request) {
	var req LookupVariantsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Catalog.LookupVariants(r.Context(), chi.URLParam(r, "code"), req.ColorCodes, req.IncludeStock)
	if err != nil {
		writeDomainError(w, "Failed to look up variants", err)
		return
	}

	resp := LookupResponse{
		Found:   make([]VariantDTO, 0, len(res.Found)),
		Missing: make([]LookupMissDTO, 0, len(res.Missing)),
		Summary: toBatchSummaryDTO(res.Summary),
	}
	for _, hit := range res.Found {
		resp.Found = append(resp.Found, toVariantStockDTO(hit.Variant))
	}
	for _, miss := range res.Missing {
		resp.Missing = append(resp.Missing, LookupMissDTO{Index: miss.Index, Ref: miss.Ref})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListVariants returns a filtered page of variants.
// GET /api/variants
func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := inventory.VariantFilter{
		FabricCode:   q.Get("fabric_code"),
		ColorCode:    q.Get("color_code"),
		Finish:       q.Get("finish"),
		GSMMin:       intQueryPtr(r, "gsm_min"),
		GSMMax:       intQueryPtr(r, "gsm_max"),
		WidthMin:     intQueryPtr(r, "width_min"),
		WidthMax:     intQueryPtr(r, "width_max"),
		IncludeStock: boolQuery(r, "include_stock"),
		InStockOnly:  boolQuery(r, "in_stock_only"),
		Limit:        intQuery(r, "limit", 0),
		Offset:       intQuery(r, "offset", 0),
		SortBy:       q.Get("sort"),
		SortDesc:     q.Get("order") == "desc",
	}
	if filter.InStockOnly {
		filter.IncludeStock = true
	}

	variants, total, err := h.Catalog.ListVariants(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list variants", err)
		return
	}

	dtos := make([]VariantDTO, len(variants))
	for i, v := range variants {
		dtos[i] = toVariantStockDTO(v)
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Items: dtos, Total: total, Limit: filter.Limit, Offset: filter.Offset,
	})
}

// GetVariant resolves a variant by business reference.
// GET /api/fabrics/{code}/variants/{color}
func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	variant, err := h.Catalog.GetVariant(r.Context(), refFromURL(r))
	if err != nil {
		writeDomainError(w, "Failed to get variant", err)
		return
	}
	writeJSON(w, http.StatusOK, toVariantDTO(variant))
}

// UpdateVariant patches a variant.
// PATCH /api/fabrics/{code}/variants/{color}
func (h *Handler) UpdateVariant(w http.ResponseWriter, r *http.Request) {
	var req UpdateVariantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	variant, err := h.Catalog.UpdateVariant(r.Context(), refFromURL(r), inventory.VariantUpdate{
		NewColorCode: req.NewColorCode,
		GSM:          req.GSM,
		Width:        req.WidthCM,
		Finish:       req.Finish,
		ImageURL:     req.ImageURL,
		Gallery:      req.Gallery,
	})
	if err != nil {
		writeDomainError(w, "Failed to update variant", err)
		return
	}
	writeJSON(w, http.StatusOK, toVariantDTO(variant))
}

// DeleteVariant removes a variant together with its history and balance.
// DELETE /api/fabrics/{code}/variants/{color}
func (h *Handler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteVariant(r.Context(), refFromURL(r)); err != nil {
		writeDomainError(w, "Failed to delete variant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// STOCK HANDLER
// =============================================================================

// GetStock returns the current balance for a variant, with all derived
// figures (rolls, whole-roll split). A variant without movements reads zero.
// GET /api/stock/{code}/{color}?uom=m|roll
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	view, err := h.Ledger.Stock(r.Context(), refFromURL(r), inventory.Unit(r.URL.Query().Get("uom")))
	if err != nil {
		writeDomainError(w, "Failed to read stock", err)
		return
	}
	writeJSON(w, http.StatusOK, toStockDTO(view))
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func refFromURL(r *http.Request) inventory.VariantRef {
	return inventory.VariantRef{
		FabricCode: chi.URLParam(r, "code"),
		ColorCode:  chi.URLParam(r, "color"),
	}
}

// decodeAndValidate parses the body and runs tag validation. On failure it
// answers 400 and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if fields := validateStruct(dst); fields != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Validation failed",
			Fields: fields,
		})
		return false
	}
	return true
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func intQueryPtr(r *http.Request, key string) *int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func boolQuery(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return v == "true" || v == "1"
}

func timeQueryPtr(r *http.Request, key string) *time.Time {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// writeDomainError maps inventory errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case inventory.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case inventory.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
