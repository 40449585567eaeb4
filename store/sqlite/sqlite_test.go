package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traider/fabric-inventory/inventory"
	"github.com/traider/fabric-inventory/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCotton(t *testing.T, store *sqlite.Store) inventory.VariantRef {
	t.Helper()
	ctx := context.Background()
	_, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = store.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101", Finish: "Standard"})
	require.NoError(t, err)
	return inventory.VariantRef{FabricCode: "COT_01", ColorCode: "C101"}
}

func movement(kind inventory.MovementKind, qty decimal.Decimal, unit inventory.Unit) inventory.Movement {
	return inventory.Movement{
		ID:           uuid.NewString(),
		Kind:         kind,
		OccurredAt:   time.Now().UTC(),
		DeltaM:       qty,
		OriginalQty:  qty,
		OriginalUnit: unit,
	}
}

func receipt(qty float64) inventory.Movement {
	return movement(inventory.MovementReceipt, decimal.NewFromFloat(qty), inventory.UnitMeter)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestStore_CreateFabric_DuplicateCode_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)

	_, err = store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton again"})
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)
}

func TestStore_CreateFabric_CodeCollidesWithAlias_Rejected(t *testing.T) {
	// GIVEN: A fabric with alias SUP_7
	// WHEN: Creating a new fabric whose code is SUP_7
	// THEN: Rejected; codes and aliases share one namespace

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton", Aliases: []string{"SUP_7"}})
	require.NoError(t, err)

	_, err = store.CreateFabric(ctx, inventory.Fabric{Code: "SUP_7", Name: "Impostor"})
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)
}

func TestStore_GetFabric_ByAlias(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton", Aliases: []string{"SUP_7"}})
	require.NoError(t, err)

	got, err := store.GetFabric(ctx, "SUP_7")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []string{"SUP_7"}, got.Aliases)
}

func TestStore_AddAlias_Semantics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = store.CreateFabric(ctx, inventory.Fabric{Code: "LIN_01", Name: "Linen"})
	require.NoError(t, err)

	added, err := store.AddAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)
	assert.True(t, added)

	// same alias again: no-op
	added, err = store.AddAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)
	assert.False(t, added)

	// alias owned by another fabric: conflict
	_, err = store.AddAlias(ctx, "LIN_01", "SUP_7")
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)

	// alias equal to an existing canonical code: conflict
	_, err = store.AddAlias(ctx, "COT_01", "LIN_01")
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)
}

func TestStore_RemoveAlias(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton", Aliases: []string{"SUP_7"}})
	require.NoError(t, err)

	removed, err := store.RemoveAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemoveAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_CreateVariant_DuplicatePerFabric(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = store.CreateFabric(ctx, inventory.Fabric{Code: "LIN_01", Name: "Linen"})
	require.NoError(t, err)

	_, err = store.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101", Finish: "Standard"})
	require.NoError(t, err)

	_, err = store.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101", Finish: "Standard"})
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey, "same color under the same fabric")

	_, err = store.CreateVariant(ctx, "LIN_01", inventory.Variant{ColorCode: "C101", Finish: "Standard"})
	assert.NoError(t, err, "same color under a different fabric is fine")
}

func TestStore_UpdateVariant_RenameCollision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = store.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101", Finish: "Standard"})
	require.NoError(t, err)
	_, err = store.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C102", Finish: "Standard"})
	require.NoError(t, err)

	taken := "C102"
	_, err = store.UpdateVariant(ctx, inventory.VariantRef{FabricCode: "COT_01", ColorCode: "C101"},
		inventory.VariantUpdate{NewColorCode: &taken})
	assert.ErrorIs(t, err, inventory.ErrDuplicateKey)
}

func TestStore_DeleteVariant_CascadesLedger(t *testing.T) {
	// GIVEN: A variant with movements and a balance
	// WHEN: Deleting the variant
	// THEN: Its history and balance rows are gone with it

	store := newTestStore(t)
	ref := seedCotton(t, store)
	ctx := context.Background()

	_, _, err := store.AppendMovement(ctx, ref, receipt(100))
	require.NoError(t, err)

	require.NoError(t, store.DeleteVariant(ctx, ref))

	_, _, err = store.GetStock(ctx, ref)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	_, total, err := store.Movements(ctx, inventory.MovementFilter{FabricCode: "COT_01", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestStore_AppendMovement_BalanceInSameTransaction(t *testing.T) {
	store := newTestStore(t)
	ref := seedCotton(t, store)
	ctx := context.Background()

	_, onHand, err := store.AppendMovement(ctx, ref, receipt(120.5))
	require.NoError(t, err)
	assert.Equal(t, "120.5", onHand.String())

	_, onHand, err = store.AppendMovement(ctx, ref,
		movement(inventory.MovementIssue, decimal.NewFromFloat(-30.25), inventory.UnitMeter))
	require.NoError(t, err)
	assert.Equal(t, "90.25", onHand.String())

	_, balance, err := store.GetStock(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "90.25", balance.OnHandM.String())
}

func TestStore_AppendMovement_MillimeterPrecision(t *testing.T) {
	// GIVEN: A quantity finer than the ledger's millimeter storage
	// WHEN: Appending
	// THEN: The returned delta reports what actually stuck

	store := newTestStore(t)
	ref := seedCotton(t, store)

	mv, onHand, err := store.AppendMovement(context.Background(), ref, receipt(1.23456))
	require.NoError(t, err)
	assert.Equal(t, "1.235", mv.DeltaM.String())
	assert.Equal(t, "1.235", onHand.String())
}

func TestStore_AppendMovement_UnknownVariant_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.AppendMovement(context.Background(),
		inventory.VariantRef{FabricCode: "NOPE", ColorCode: "C1"}, receipt(1))
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestStore_AppendMovement_SecondReversal_Rejected(t *testing.T) {
	// GIVEN: A movement that already has a reversal
	// WHEN: Inserting another reversal for the same movement
	// THEN: The unique index rejects it, whatever path raced there

	store := newTestStore(t)
	ref := seedCotton(t, store)
	ctx := context.Background()

	orig, _, err := store.AppendMovement(ctx, ref, receipt(100))
	require.NoError(t, err)

	rev1 := movement(inventory.MovementAdjust, decimal.NewFromInt(-100), inventory.UnitMeter)
	rev1.ReversalOf = orig.ID
	_, _, err = store.AppendMovement(ctx, ref, rev1)
	require.NoError(t, err)

	rev2 := movement(inventory.MovementAdjust, decimal.NewFromInt(-100), inventory.UnitMeter)
	rev2.ReversalOf = orig.ID
	_, _, err = store.AppendMovement(ctx, ref, rev2)
	assert.ErrorIs(t, err, inventory.ErrAlreadyReversed)

	has, err := store.HasReversal(ctx, orig.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestStore_AppendMovement_Concurrent_NoLostIncrements(t *testing.T) {
	// GIVEN: Concurrent appends against one variant
	// WHEN: All complete
	// THEN: The balance is exactly the sum; the relative SQL increment can
	//       never lose an update

	store := newTestStore(t)
	ref := seedCotton(t, store)
	ctx := context.Background()

	const workers = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.AppendMovement(ctx, ref, receipt(4))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, balance, err := store.GetStock(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.OnHandM.String())
}

func TestStore_GetStock_NoMovements_ZeroBalance(t *testing.T) {
	store := newTestStore(t)
	ref := seedCotton(t, store)

	vd, balance, err := store.GetStock(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "C101", vd.ColorCode)
	assert.True(t, balance.OnHandM.IsZero())
	assert.True(t, balance.UpdatedAt.IsZero())
}

func TestStore_Movements_FiltersAndOrder(t *testing.T) {
	store := newTestStore(t)
	ref := seedCotton(t, store)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, kind := range []inventory.MovementKind{
		inventory.MovementReceipt, inventory.MovementIssue, inventory.MovementAdjust,
	} {
		mv := movement(kind, decimal.NewFromInt(int64(i+1)), inventory.UnitMeter)
		mv.OccurredAt = base.Add(time.Duration(i) * time.Hour)
		mv.DocumentID = "DOC-" + string(kind)
		_, _, err := store.AppendMovement(ctx, ref, mv)
		require.NoError(t, err)
	}

	// kind filter
	issues, total, err := store.Movements(ctx, inventory.MovementFilter{Kind: inventory.MovementIssue, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, issues, 1)
	assert.Equal(t, "DOC-ISSUE", issues[0].DocumentID)

	// time window
	from := base.Add(30 * time.Minute)
	windowed, total, err := store.Movements(ctx, inventory.MovementFilter{From: &from, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, windowed, 2)

	// newest first
	desc, _, err := store.Movements(ctx, inventory.MovementFilter{SortDesc: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, inventory.MovementAdjust, desc[0].Kind)
	assert.Equal(t, inventory.MovementReceipt, desc[2].Kind)
}

func TestStore_Movements_FabricFilterByAlias(t *testing.T) {
	store := newTestStore(t)
	ref := seedCotton(t, store)
	ctx := context.Background()

	_, err := store.AddAlias(ctx, "COT_01", "SUP_7")
	require.NoError(t, err)
	_, _, err = store.AppendMovement(ctx, ref, receipt(10))
	require.NoError(t, err)

	byAlias, total, err := store.Movements(ctx, inventory.MovementFilter{FabricCode: "SUP_7", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byAlias, 1)
	assert.Equal(t, "COT_01", byAlias[0].FabricCode, "history rows carry the canonical code")
}

func TestStore_ListVariants_StockAndSorting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	for _, color := range []string{"C103", "C101", "C102"} {
		_, err = store.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: color, Finish: "Standard"})
		require.NoError(t, err)
	}
	_, _, err = store.AppendMovement(ctx,
		inventory.VariantRef{FabricCode: "COT_01", ColorCode: "C102"}, receipt(60))
	require.NoError(t, err)

	sorted, total, err := store.ListVariants(ctx, inventory.VariantFilter{
		FabricCode: "COT_01", SortBy: "color_code", IncludeStock: true, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, sorted, 3)
	assert.Equal(t, "C101", sorted[0].ColorCode)
	assert.Equal(t, "C103", sorted[2].ColorCode)
	require.NotNil(t, sorted[1].Stock)
	assert.Equal(t, "60", sorted[1].Stock.OnHandM.String())
	require.NotNil(t, sorted[0].Stock)
	assert.True(t, sorted[0].Stock.OnHandM.IsZero(), "no balance row reads as zero")

	inStock, total, err := store.ListVariants(ctx, inventory.VariantFilter{
		FabricCode: "COT_01", InStockOnly: true, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, inStock, 1)
	assert.Equal(t, "C102", inStock[0].ColorCode)
}

func TestStore_Persistence_AcrossReopen(t *testing.T) {
	// GIVEN: Movements written to a file-backed database
	// WHEN: Closing and reopening
	// THEN: Catalog and balance survive

	path := t.TempDir() + "/inventory.db"
	store, err := sqlite.New(path)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.CreateFabric(ctx, inventory.Fabric{Code: "COT_01", Name: "Cotton"})
	require.NoError(t, err)
	_, err = store.CreateVariant(ctx, "COT_01", inventory.Variant{ColorCode: "C101", Finish: "Standard"})
	require.NoError(t, err)
	ref := inventory.VariantRef{FabricCode: "COT_01", ColorCode: "C101"}
	_, _, err = store.AppendMovement(ctx, ref, receipt(42))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, balance, err := reopened.GetStock(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "42", balance.OnHandM.String())
}
