/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

QUANTITIES:
  Quantities travel as JSON numbers and are converted to decimal.Decimal at
  the handler boundary (inventory.ParseQuantity rejects NaN/Inf). Responses
  render decimals back to numbers.

VALIDATION:
  Request structs carry go-playground/validator tags; see validate.go.

SEE ALSO:
  - handlers.go: Uses these types
  - inventory/types.go: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/traider/fabric-inventory/inventory"
)

// =============================================================================
// FABRIC DTOs
// =============================================================================

// CreateFabricRequest creates a product family.
type CreateFabricRequest struct {
	FabricCode string            `json:"fabric_code" validate:"required,max=64"`
	Name       string            `json:"name" validate:"required,max=200"`
	ImageURL   string            `json:"image_url" validate:"omitempty,url"`
	Gallery    inventory.Gallery `json:"gallery"`
	Aliases    []string          `json:"aliases" validate:"omitempty,dive,required,max=64"`
}

// UpdateFabricRequest patches a fabric; absent fields stay unchanged.
type UpdateFabricRequest struct {
	Name     *string            `json:"name" validate:"omitempty,max=200"`
	ImageURL *string            `json:"image_url" validate:"omitempty,url"`
	Gallery  *inventory.Gallery `json:"gallery"`
}

// AliasRequest adds an alternate fabric code.
type AliasRequest struct {
	Alias string `json:"alias" validate:"required,max=64"`
}

// FabricDTO represents a fabric in API responses.
type FabricDTO struct {
	ID         int64             `json:"id"`
	FabricCode string            `json:"fabric_code"`
	Name       string            `json:"name"`
	ImageURL   string            `json:"image_url,omitempty"`
	Gallery    inventory.Gallery `json:"gallery"`
	Aliases    []string          `json:"aliases"`
	CreatedAt  time.Time         `json:"created_at"`
}

// =============================================================================
// VARIANT DTOs
// =============================================================================

// CreateVariantRequest adds a color/spec combination to a fabric.
type CreateVariantRequest struct {
	ColorCode string            `json:"color_code" validate:"required,max=32"`
	GSM       *int              `json:"gsm" validate:"omitempty,gt=0,lte=2000"`
	WidthCM   *int              `json:"width_cm" validate:"omitempty,gt=0,lte=1000"`
	Finish    string            `json:"finish" validate:"omitempty,max=100"`
	ImageURL  string            `json:"image_url" validate:"omitempty,url"`
	Gallery   inventory.Gallery `json:"gallery"`
}

// BatchCreateVariantsRequest creates many variants under one fabric.
type BatchCreateVariantsRequest struct {
	Items []CreateVariantRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateVariantRequest patches a variant; new_color_code renames it.
type UpdateVariantRequest struct {
	NewColorCode *string            `json:"new_color_code" validate:"omitempty,max=32"`
	GSM          *int               `json:"gsm" validate:"omitempty,gt=0,lte=2000"`
	WidthCM      *int               `json:"width_cm" validate:"omitempty,gt=0,lte=1000"`
	Finish       *string            `json:"finish" validate:"omitempty,max=100"`
	ImageURL     *string            `json:"image_url" validate:"omitempty,url"`
	Gallery      *inventory.Gallery `json:"gallery"`
}

// LookupVariantsRequest resolves many color codes under one fabric.
type LookupVariantsRequest struct {
	ColorCodes   []string `json:"color_codes" validate:"required,min=1,dive,required"`
	IncludeStock bool     `json:"include_stock"`
}

// StockSummaryDTO is the balance attached to variant listings.
type StockSummaryDTO struct {
	OnHandM   float64   `json:"on_hand_m"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VariantDTO represents a variant in API responses, with its fabric basics.
type VariantDTO struct {
	ID         int64             `json:"id"`
	FabricCode string            `json:"fabric_code"`
	FabricName string            `json:"fabric_name"`
	ColorCode  string            `json:"color_code"`
	GSM        *int              `json:"gsm,omitempty"`
	WidthCM    *int              `json:"width_cm,omitempty"`
	Finish     string            `json:"finish"`
	ImageURL   string            `json:"image_url,omitempty"`
	Gallery    inventory.Gallery `json:"gallery"`
	CreatedAt  time.Time         `json:"created_at"`
	Stock      *StockSummaryDTO  `json:"stock,omitempty"`
}

// =============================================================================
// MOVEMENT DTOs
// =============================================================================

// MovementRequest records one stock change. The uom is a closed set; the
// kind comes from the route.
type MovementRequest struct {
	FabricCode string  `json:"fabric_code" validate:"required,max=64"`
	ColorCode  string  `json:"color_code" validate:"required,max=32"`
	Qty        float64 `json:"qty"`
	UOM        string  `json:"uom" validate:"required,oneof=m roll"`
	RollCount  *int    `json:"roll_count"`
	DocumentID string  `json:"document_id" validate:"omitempty,max=100"`
	Reason     string  `json:"reason" validate:"omitempty,max=500"`
}

// BatchMovementsRequest records many movements of one kind. DocumentID and
// Reason apply to every item (one delivery note, many lines).
type BatchMovementsRequest struct {
	Items      []MovementRequest `json:"items" validate:"required,min=1,dive"`
	DocumentID string            `json:"document_id" validate:"omitempty,max=100"`
	Reason     string            `json:"reason" validate:"omitempty,max=500"`
}

// CancelMovementRequest reverses a movement.
type CancelMovementRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// MovementResultDTO is returned after a recorded movement.
type MovementResultDTO struct {
	MovementID string  `json:"movement_id"`
	Kind       string  `json:"kind"`
	DeltaM     float64 `json:"delta_m"`
	OnHandM    float64 `json:"on_hand_m"`
}

// MovementDTO represents a history row.
type MovementDTO struct {
	ID          string    `json:"id"`
	FabricCode  string    `json:"fabric_code"`
	ColorCode   string    `json:"color_code"`
	Kind        string    `json:"kind"`
	OccurredAt  time.Time `json:"occurred_at"`
	DeltaM      float64   `json:"delta_m"`
	OriginalQty float64   `json:"original_qty"`
	OriginalUOM string    `json:"original_uom"`
	RollCount   *int      `json:"roll_count,omitempty"`
	DocumentID  string    `json:"document_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ReversalOf  string    `json:"reversal_of,omitempty"`
}

// =============================================================================
// STOCK DTOs
// =============================================================================

// StockDTO is the display-ready balance for one variant. All derived fields
// are present whatever uom was requested.
type StockDTO struct {
	FabricCode  string     `json:"fabric_code"`
	ColorCode   string     `json:"color_code"`
	OnHandM     float64    `json:"on_hand_m"`
	OnHandRolls float64    `json:"on_hand_rolls"`
	WholeRolls  int64      `json:"whole_rolls"`
	RemainderM  float64    `json:"remainder_m"`
	UOM         string     `json:"uom"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// =============================================================================
// BATCH AND LIST ENVELOPES
// =============================================================================

// BatchSummaryDTO totals a batch outcome.
type BatchSummaryDTO struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchFailureDTO pins an error to its submission index.
type BatchFailureDTO struct {
	Index int    `json:"index"`
	Ref   string `json:"ref"`
	Error string `json:"error"`
}

// BatchVariantsResponse is the outcome of a bulk variant creation.
type BatchVariantsResponse struct {
	Created []VariantDTO      `json:"created"`
	Failed  []BatchFailureDTO `json:"failed"`
	Summary BatchSummaryDTO   `json:"summary"`
}

// RecordedItemDTO is one successful movement of a batch.
type RecordedItemDTO struct {
	Index  int               `json:"index"`
	Ref    string            `json:"ref"`
	Result MovementResultDTO `json:"result"`
}

// BatchMovementsResponse is the outcome of a bulk movement recording.
type BatchMovementsResponse struct {
	Recorded []RecordedItemDTO `json:"recorded"`
	Failed   []BatchFailureDTO `json:"failed"`
	Summary  BatchSummaryDTO   `json:"summary"`
}

// LookupMissDTO is one unresolved reference of a lookup.
type LookupMissDTO struct {
	Index int    `json:"index"`
	Ref   string `json:"ref"`
}

// LookupResponse is the outcome of a bulk variant lookup.
type LookupResponse struct {
	Found   []VariantDTO    `json:"found"`
	Missing []LookupMissDTO `json:"missing"`
	Summary BatchSummaryDTO `json:"summary"`
}

// ListResponse wraps a page of items with the unpaged total.
type ListResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toFabricDTO(f inventory.Fabric) FabricDTO {
	aliases := f.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return FabricDTO{
		ID:         f.ID,
		FabricCode: f.Code,
		Name:       f.Name,
		ImageURL:   f.ImageURL,
		Gallery:    f.Gallery,
		Aliases:    aliases,
		CreatedAt:  f.CreatedAt,
	}
}

func toVariantDTO(v inventory.VariantDetail) VariantDTO {
	return VariantDTO{
		ID:         v.ID,
		FabricCode: v.FabricCode,
		FabricName: v.FabricName,
		ColorCode:  v.ColorCode,
		GSM:        v.GSM,
		WidthCM:    v.Width,
		Finish:     v.Finish,
		ImageURL:   v.ImageURL,
		Gallery:    v.Gallery,
		CreatedAt:  v.CreatedAt,
	}
}

func toVariantStockDTO(v inventory.VariantStock) VariantDTO {
	dto := toVariantDTO(v.VariantDetail)
	if v.Stock != nil {
		dto.Stock = &StockSummaryDTO{
			OnHandM:   v.Stock.OnHandM.InexactFloat64(),
			UpdatedAt: v.Stock.UpdatedAt,
		}
	}
	return dto
}

func toMovementResultDTO(r inventory.MovementResult) MovementResultDTO {
	return MovementResultDTO{
		MovementID: r.MovementID,
		Kind:       string(r.Kind),
		DeltaM:     r.DeltaM.InexactFloat64(),
		OnHandM:    r.OnHandM.InexactFloat64(),
	}
}

func toMovementDTO(m inventory.MovementDetail) MovementDTO {
	return MovementDTO{
		ID:          m.ID,
		FabricCode:  m.FabricCode,
		ColorCode:   m.ColorCode,
		Kind:        string(m.Kind),
		OccurredAt:  m.OccurredAt,
		DeltaM:      m.DeltaM.InexactFloat64(),
		OriginalQty: m.OriginalQty.InexactFloat64(),
		OriginalUOM: string(m.OriginalUnit),
		RollCount:   m.RollCount,
		DocumentID:  m.DocumentID,
		Reason:      m.Reason,
		ReversalOf:  m.ReversalOf,
	}
}

func toMovementDTOs(ms []inventory.MovementDetail) []MovementDTO {
	dtos := make([]MovementDTO, len(ms))
	for i, m := range ms {
		dtos[i] = toMovementDTO(m)
	}
	return dtos
}

func toStockDTO(v inventory.StockView) StockDTO {
	dto := StockDTO{
		FabricCode:  v.Variant.FabricCode,
		ColorCode:   v.Variant.ColorCode,
		OnHandM:     v.OnHandM.InexactFloat64(),
		OnHandRolls: v.OnHandRolls.InexactFloat64(),
		WholeRolls:  v.WholeRolls,
		RemainderM:  v.RemainderM.InexactFloat64(),
		UOM:         string(v.DisplayUnit),
	}
	if !v.UpdatedAt.IsZero() {
		t := v.UpdatedAt
		dto.UpdatedAt = &t
	}
	return dto
}

func toBatchSummaryDTO(s inventory.BatchSummary) BatchSummaryDTO {
	return BatchSummaryDTO{Total: s.Total, Succeeded: s.Succeeded, Failed: s.Failed}
}

func toBatchFailureDTOs(failures []inventory.BatchFailure) []BatchFailureDTO {
	out := make([]BatchFailureDTO, 0, len(failures))
	for _, f := range failures {
		out = append(out, BatchFailureDTO{Index: f.Index, Ref: f.Ref, Error: f.Err.Error()})
	}
	return out
}
