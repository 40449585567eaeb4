package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traider/fabric-inventory/inventory"
	"github.com/traider/fabric-inventory/inventory/store"
)

func newTestCatalog(t *testing.T) *inventory.Catalog {
	t.Helper()
	return inventory.NewCatalog(store.NewMemory())
}

// =============================================================================
// FABRIC TESTS
// =============================================================================

func TestCatalog_CreateFabric_NormalizesCode(t *testing.T) {
	// GIVEN: A sloppy fabric code
	// WHEN: Creating
	// THEN: It is stored in canonical form and findable under any spelling

	catalog := newTestCatalog(t)
	ctx := context.Background()

	created, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "cot-popl 01", Name: "Cotton Poplin"})
	require.NoError(t, err)
	assert.Equal(t, "COT_POPL_01", created.Code)

	got, err := catalog.GetFabric(ctx, "Cot Popl-01")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestCatalog_CreateFabric_EmptyAfterNormalization_Rejected(t *testing.T) {
	catalog := newTestCatalog(t)

	_, err := catalog.CreateFabric(context.Background(), inventory.Fabric{Code: "--- ", Name: "Ghost"})
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
}

func TestCatalog_CreateFabric_DuplicateCode_Rejected(t *testing.T) {
	// GIVEN: An existing fabric
	// WHEN: Creating another whose code normalizes to the same string
	// THEN: Rejected as a duplicate

	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)

	_, err = catalog.CreateFabric(ctx, inventory.Fabric{Code: "cot-01", Name: "Cotton again"})
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)
}

func TestCatalog_UpdateFabric_PatchesOnlyGivenFields(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton", ImageURL: "https://img/cot.jpg"})
	require.NoError(t, err)

	name := "Cotton Poplin"
	upd, err := catalog.UpdateFabric(ctx, "COT_01", inventory.FabricUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Cotton Poplin", upd.Name)
	assert.Equal(t, "https://img/cot.jpg", upd.ImageURL, "untouched fields stay")
}

func TestCatalog_UpdateFabric_EmptyName_Rejected(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)

	empty := ""
	_, err = catalog.UpdateFabric(ctx, "COT_01", inventory.FabricUpdate{Name: &empty})
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
}

func TestCatalog_ListFabrics_QueryAndPaging(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	for _, f := range []inventory.Fabric{
		{Code: "COT_01", Name: "Cotton Poplin"},
		{Code: "COT_02", Name: "Cotton Twill"},
		{Code: "LIN_01", Name: "Linen"},
	} {
		_, err := catalog.CreateFabric(ctx, f)
		require.NoError(t, err)
	}

	cottons, total, err := catalog.ListFabrics(ctx, inventory.FabricFilter{Query: "cotton"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, cottons, 2)

	page, total, err := catalog.ListFabrics(ctx, inventory.FabricFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "LIN_01", page[0].Code)
}

// =============================================================================
// ALIAS TESTS
// =============================================================================

func TestCatalog_Aliases_ResolveEverywhere(t *testing.T) {
	// GIVEN: A fabric with an alias
	// WHEN: Looking up by the alias
	// THEN: The same fabric resolves; the alias obeys the same normalization

	catalog := newTestCatalog(t)
	ctx := context.Background()

	created, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)

	added, err := catalog.AddAlias(ctx, "COT_01", "supplier-x 7")
	require.NoError(t, err)
	assert.True(t, added)

	got, err := catalog.GetFabric(ctx, "SUPPLIER_X_7")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Contains(t, got.Aliases, "SUPPLIER_X_7")
}

func TestCatalog_AddAlias_AlreadyPresent_Idempotent(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)

	added, err := catalog.AddAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = catalog.AddAlias(ctx, "COT_01", "sup-7")
	require.NoError(t, err)
	assert.False(t, added, "re-adding the same alias is a no-op")
}

func TestCatalog_AddAlias_CollidesWithExistingCode_Rejected(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = catalog.CreateFabric(ctx, inventory.Fabric{Code: "LIN_01", Name: "Linen"})
	require.NoError(t, err)

	_, err = catalog.AddAlias(ctx, "COT_01", "LIN_01")
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)
}

func TestCatalog_RemoveAlias(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = catalog.AddAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)

	removed, err := catalog.RemoveAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = catalog.GetFabric(ctx, "SUP_7")
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	removed, err = catalog.RemoveAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent alias reports false")
}

// =============================================================================
// VARIANT TESTS
// =============================================================================

func TestCatalog_CreateVariant_DefaultsAndNormalization(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)

	gsm := 120
	created, err := catalog.CreateVariant(ctx, "cot-01", inventory.Variant{ColorCode: "c-101", GSM: &gsm})
	require.NoError(t, err)
	assert.Equal(t, "C101", created.ColorCode)
	assert.Equal(t, inventory.DefaultFinish, created.Finish)
	assert.Equal(t, "COT_01", created.FabricCode)
}

func TestCatalog_CreateVariant_DuplicateColorWithinFabric_Rejected(t *testing.T) {
	// GIVEN: A fabric with color C101
	// WHEN: Adding C101 again to the same fabric, but the same color to a
	//       different fabric
	// THEN: The first is rejected, the second succeeds; uniqueness is scoped
	//       per fabric

	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = catalog.CreateFabric(ctx, inventory.Fabric{Code: "LIN_01", Name: "Linen"})
	require.NoError(t, err)

	_, err = catalog.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101"})
	require.NoError(t, err)

	_, err = catalog.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "c 101"})
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)

	_, err = catalog.CreateVariant(ctx, "LIN_01", inventory.Variant{ColorCode: "C101"})
	assert.NoError(t, err)
}

func TestCatalog_CreateVariant_UnderAlias(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = catalog.AddAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)

	created, err := catalog.CreateVariant(ctx, "SUP_7", inventory.Variant{ColorCode: "C101"})
	require.NoError(t, err)
	assert.Equal(t, "COT_01", created.FabricCode, "detail carries the canonical code, not the alias")
}

func TestCatalog_UpdateVariant_Rename(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = catalog.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101"})
	require.NoError(t, err)
	_, err = catalog.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C102"})
	require.NoError(t, err)

	ref := inventory.VariantRef{FabricCode: "COT_01", ColorCode: "C101"}

	// Rename onto a taken code fails
	taken := "c-102"
	_, err = catalog.UpdateVariant(ctx, ref, inventory.VariantUpdate{NewColorCode: &taken})
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)

	// Rename to a free code succeeds and the old ref stops resolving
	free := "c-103"
	upd, err := catalog.UpdateVariant(ctx, ref, inventory.VariantUpdate{NewColorCode: &free})
	require.NoError(t, err)
	assert.Equal(t, "C103", upd.ColorCode)

	_, err = catalog.GetVariant(ctx, ref)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestCatalog_DeleteVariant_RemovesHistory(t *testing.T) {
	// GIVEN: A variant with movements
	// WHEN: Deleting the variant
	// THEN: The variant, its balance and its history are gone

	mem := store.NewMemory()
	catalog := inventory.NewCatalog(mem)
	ledger := inventory.NewLedger(mem)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = catalog.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101"})
	require.NoError(t, err)

	ref := inventory.VariantRef{FabricCode: "COT_01", ColorCode: "C101"}
	_, err = ledger.Receive(ctx, inventory.MovementRequest{Ref: ref, Qty: meters(10), Unit: inventory.UnitMeter})
	require.NoError(t, err)

	require.NoError(t, catalog.DeleteVariant(ctx, ref))

	_, err = catalog.GetVariant(ctx, ref)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	history, total, err := ledger.Movements(ctx, inventory.MovementFilter{FabricCode: "COT_01"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, history)
}

func TestCatalog_ListVariants_FiltersAndStock(t *testing.T) {
	mem := store.NewMemory()
	catalog := inventory.NewCatalog(mem)
	ledger := inventory.NewLedger(mem)
	ctx := context.Background()

	_, err := catalog.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)

	light, heavy := 90, 220
	_, err = catalog.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101", GSM: &light})
	require.NoError(t, err)
	_, err = catalog.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C102", GSM: &heavy})
	require.NoError(t, err)

	_, err = ledger.Receive(ctx, inventory.MovementRequest{
		Ref: inventory.VariantRef{FabricCode: "COT_01", ColorCode: "C102"}, Qty: meters(75), Unit: inventory.UnitMeter,
	})
	require.NoError(t, err)

	min := 100
	heavies, total, err := catalog.ListVariants(ctx, inventory.VariantFilter{FabricCode: "COT_01", GSMMin: &min})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, heavies, 1)
	assert.Equal(t, "C102", heavies[0].ColorCode)

	inStock, total, err := catalog.ListVariants(ctx, inventory.VariantFilter{FabricCode: "COT_01", InStockOnly: true, IncludeStock: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, inStock, 1)
	require.NotNil(t, inStock[0].Stock)
	assert.Equal(t, "75", inStock[0].Stock.OnHandM.String())
}
