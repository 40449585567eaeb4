/*
catalog.go - Entity catalog service

PURPOSE:
  CRUD over fabrics and variants with canonical code handling. Every code is
  normalized on the way in, for writes and lookups alike, so the store only
  ever sees canonical identifiers.

SEE ALSO:
  - codes.go: normalization rules
  - batch.go: bulk variant creation and lookup
*/
package inventory

import "context"

// DefaultFinish is applied when a variant is created without one.
const DefaultFinish = "Standard"

// Catalog manages fabrics and their variants.
type Catalog struct {
	store CatalogStore
}

// NewCatalog wires the catalog service to a store.
func NewCatalog(store CatalogStore) *Catalog {
	return &Catalog{store: store}
}

// =============================================================================
// FABRICS
// =============================================================================

// CreateFabric normalizes the code and inserts the fabric.
func (c *Catalog) CreateFabric(ctx context.Context, f Fabric) (Fabric, error) {
	f.Code = NormalizeFabricCode(f.Code)
	if f.Code == "" {
		return Fabric{}, &InvalidInputError{Field: "fabric_code", Reason: "empty after normalization"}
	}
	if f.Name == "" {
		return Fabric{}, &InvalidInputError{Field: "name", Reason: "must not be empty"}
	}
	if f.Gallery == nil {
		f.Gallery = Gallery{}
	}
	return c.store.CreateFabric(ctx, f)
}

// UpdateFabric patches a fabric addressed by code or alias.
func (c *Catalog) UpdateFabric(ctx context.Context, code string, upd FabricUpdate) (Fabric, error) {
	if upd.Name != nil && *upd.Name == "" {
		return Fabric{}, &InvalidInputError{Field: "name", Reason: "must not be empty"}
	}
	return c.store.UpdateFabric(ctx, NormalizeFabricCode(code), upd)
}

// GetFabric resolves a fabric by code or alias.
func (c *Catalog) GetFabric(ctx context.Context, code string) (Fabric, error) {
	return c.store.GetFabric(ctx, NormalizeFabricCode(code))
}

// ListFabrics returns a page of fabrics and the unpaged total.
func (c *Catalog) ListFabrics(ctx context.Context, f FabricFilter) ([]Fabric, int, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return c.store.ListFabrics(ctx, f)
}

// AddAlias registers an alternate code for a fabric. Adding an alias that is
// already present is a no-op, reported via the bool.
func (c *Catalog) AddAlias(ctx context.Context, code, alias string) (bool, error) {
	alias = NormalizeFabricCode(alias)
	if alias == "" {
		return false, &InvalidInputError{Field: "alias", Reason: "empty after normalization"}
	}
	return c.store.AddAlias(ctx, NormalizeFabricCode(code), alias)
}

// RemoveAlias drops an alias from a fabric.
func (c *Catalog) RemoveAlias(ctx context.Context, code, alias string) (bool, error) {
	return c.store.RemoveAlias(ctx, NormalizeFabricCode(code), NormalizeFabricCode(alias))
}

// =============================================================================
// VARIANTS
// =============================================================================

// CreateVariant normalizes codes, defaults the finish and inserts the
// variant under the given fabric.
func (c *Catalog) CreateVariant(ctx context.Context, fabricCode string, v Variant) (VariantDetail, error) {
	v.ColorCode = NormalizeColorCode(v.ColorCode)
	if v.ColorCode == "" {
		return VariantDetail{}, &InvalidInputError{Field: "color_code", Reason: "empty after normalization"}
	}
	if v.Finish == "" {
		v.Finish = DefaultFinish
	}
	if v.Gallery == nil {
		v.Gallery = Gallery{}
	}
	return c.store.CreateVariant(ctx, NormalizeFabricCode(fabricCode), v)
}

// UpdateVariant patches a variant. A color rename goes through the same
// normalization and uniqueness check as creation.
func (c *Catalog) UpdateVariant(ctx context.Context, ref VariantRef, upd VariantUpdate) (VariantDetail, error) {
	if upd.NewColorCode != nil {
		norm := NormalizeColorCode(*upd.NewColorCode)
		if norm == "" {
			return VariantDetail{}, &InvalidInputError{Field: "color_code", Reason: "empty after normalization"}
		}
		upd.NewColorCode = &norm
	}
	return c.store.UpdateVariant(ctx, ref.Normalize(), upd)
}

// DeleteVariant removes a variant and, by cascade, its movement history and
// balance.
func (c *Catalog) DeleteVariant(ctx context.Context, ref VariantRef) error {
	return c.store.DeleteVariant(ctx, ref.Normalize())
}

// GetVariant resolves a variant by business reference.
func (c *Catalog) GetVariant(ctx context.Context, ref VariantRef) (VariantDetail, error) {
	return c.store.GetVariant(ctx, ref.Normalize())
}

// ListVariants returns a page of variants and the unpaged total.
func (c *Catalog) ListVariants(ctx context.Context, f VariantFilter) ([]VariantStock, int, error) {
	f.FabricCode = NormalizeFabricCode(f.FabricCode)
	f.ColorCode = NormalizeColorCode(f.ColorCode)
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return c.store.ListVariants(ctx, f)
}
