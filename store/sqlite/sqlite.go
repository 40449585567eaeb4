/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements inventory.Store (catalog + ledger) using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The movement ledger is append-only:
  - No UPDATE statements on stock_movements
  - No caller-visible DELETE (rows only go away with their variant, by cascade)
  - Corrections via reversal movements only

BALANCE DISCIPLINE:
  stock_balances is only ever written inside AppendMovement, in the same
  transaction as the movement insert, with a relative increment executed in
  SQL ("ON CONFLICT ... DO UPDATE SET on_hand_mm = on_hand_mm + excluded").
  The balance is never read, modified in Go and written back; that pattern
  loses increments under concurrent writers.

  Quantities are stored as INTEGER millimeters (thousandths of a meter, the
  ledger's fixed precision) so the SQL increment is exact. decimal.Decimal
  conversion happens at the boundary of this package.

KEY TABLES:
  fabrics:          product families, addressed by canonical fabric_code
  fabric_aliases:   alternate codes resolving to a fabric
  fabric_variants:  color/spec combinations, UNIQUE(fabric_id, color_code)
  stock_movements:  immutable ledger of stock changes
  stock_balances:   derived on-hand per variant (one row, upserted)

INDEXES:
  - idx_movements_variant_ts: history reads per variant (hot path)
  - idx_movements_document:   delivery-note lookups
  - idx_movements_reversal:   UNIQUE partial index; a movement is reversed
                              at most once, racing cancels lose here

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  catalog := inventory.NewCatalog(store)
  ledger := inventory.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - inventory/store.go: Interface definitions
  - inventory/ledger.go: Higher-level ledger using Store
  - inventory/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/traider/fabric-inventory/inventory"
)

// Store implements inventory.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ inventory.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one pooled connection: SQLite allows a single writer anyway, and with
	// ":memory:" every new connection would get its own empty database
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Fabrics (product families)
	CREATE TABLE IF NOT EXISTS fabrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fabric_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		image_url TEXT,
		gallery_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);

	-- Alternate codes resolving to a fabric
	CREATE TABLE IF NOT EXISTS fabric_aliases (
		alias TEXT PRIMARY KEY,
		fabric_id INTEGER NOT NULL REFERENCES fabrics(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_aliases_fabric
		ON fabric_aliases(fabric_id);

	-- Variants (stock is tracked at this granularity)
	CREATE TABLE IF NOT EXISTS fabric_variants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fabric_id INTEGER NOT NULL REFERENCES fabrics(id) ON DELETE CASCADE,
		color_code TEXT NOT NULL,
		gsm INTEGER,
		width_cm INTEGER,
		finish TEXT NOT NULL DEFAULT 'Standard',
		image_url TEXT,
		gallery_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		UNIQUE(fabric_id, color_code)
	);

	CREATE INDEX IF NOT EXISTS idx_variants_fabric
		ON fabric_variants(fabric_id);

	-- Movements (append-only ledger). delta_qty_mm is the signed change in
	-- millimeters; it is derived from (original_qty, original_uom) on write
	-- and never edited.
	CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY,
		variant_id INTEGER NOT NULL REFERENCES fabric_variants(id) ON DELETE CASCADE,
		movement_kind TEXT NOT NULL CHECK (movement_kind IN ('RECEIPT','ISSUE','ADJUST')),
		occurred_at TEXT NOT NULL,
		delta_qty_mm INTEGER NOT NULL,
		original_qty TEXT NOT NULL,
		original_uom TEXT NOT NULL CHECK (original_uom IN ('m','roll')),
		roll_count INTEGER,
		document_id TEXT,
		reason TEXT,
		reversal_of TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_movements_variant_ts
		ON stock_movements(variant_id, occurred_at DESC);
	CREATE INDEX IF NOT EXISTS idx_movements_document
		ON stock_movements(document_id) WHERE document_id IS NOT NULL;

	-- CRITICAL: a movement is reversed at most once. Two racing cancels both
	-- insert a reversal; the second one fails here.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_movements_reversal
		ON stock_movements(reversal_of) WHERE reversal_of IS NOT NULL;

	-- Derived balances (one row per variant, written only by AppendMovement)
	CREATE TABLE IF NOT EXISTS stock_balances (
		variant_id INTEGER PRIMARY KEY REFERENCES fabric_variants(id) ON DELETE CASCADE,
		on_hand_mm INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FABRICS (inventory.CatalogStore)
// =============================================================================

// CreateFabric inserts a fabric and its initial aliases.
func (s *Store) CreateFabric(ctx context.Context, f inventory.Fabric) (inventory.Fabric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inventory.Fabric{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// the code must not collide with an existing code OR alias
	if _, err := s.fabricIDByCode(ctx, tx, f.Code); err == nil {
		return inventory.Fabric{}, &inventory.DuplicateKeyError{Entity: "fabric", Key: f.Code}
	} else if !inventory.IsNotFound(err) {
		return inventory.Fabric{}, err
	}

	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO fabrics (fabric_code, name, image_url, gallery_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.Code, f.Name, nullString(f.ImageURL), galleryJSON(f.Gallery),
		f.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return inventory.Fabric{}, &inventory.DuplicateKeyError{Entity: "fabric", Key: f.Code}
		}
		return inventory.Fabric{}, fmt.Errorf("failed to insert fabric: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return inventory.Fabric{}, err
	}

	for _, alias := range f.Aliases {
		if err := s.insertAlias(ctx, tx, id, alias); err != nil {
			return inventory.Fabric{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return inventory.Fabric{}, err
	}
	return s.getFabricByID(ctx, s.db, id)
}

// UpdateFabric applies the non-nil fields of upd.
func (s *Store) UpdateFabric(ctx context.Context, code string, upd inventory.FabricUpdate) (inventory.Fabric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.fabricIDByCode(ctx, s.db, code)
	if err != nil {
		return inventory.Fabric{}, err
	}

	sets := []string{}
	args := []any{}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, nullString(*upd.ImageURL))
	}
	if upd.Gallery != nil {
		sets = append(sets, "gallery_json = ?")
		args = append(args, galleryJSON(*upd.Gallery))
	}
	if len(sets) > 0 {
		args = append(args, id)
		query := "UPDATE fabrics SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return inventory.Fabric{}, fmt.Errorf("failed to update fabric: %w", err)
		}
	}
	return s.getFabricByID(ctx, s.db, id)
}

// GetFabric resolves a fabric by code or alias.
func (s *Store) GetFabric(ctx context.Context, code string) (inventory.Fabric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.fabricIDByCode(ctx, s.db, code)
	if err != nil {
		return inventory.Fabric{}, err
	}
	return s.getFabricByID(ctx, s.db, id)
}

// ListFabrics returns a page of fabrics plus the unpaged total. The query
// matches code, name and aliases as substrings.
func (s *Store) ListFabrics(ctx context.Context, f inventory.FabricFilter) ([]inventory.Fabric, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := "1=1"
	args := []any{}
	if f.Query != "" {
		where = `(f.fabric_code LIKE '%' || ? || '%'
			OR UPPER(f.name) LIKE '%' || UPPER(?) || '%'
			OR EXISTS (SELECT 1 FROM fabric_aliases a
				WHERE a.fabric_id = f.id AND a.alias LIKE '%' || ? || '%'))`
		q := strings.ToUpper(f.Query)
		args = append(args, q, f.Query, q)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fabrics f WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT f.id, f.fabric_code, f.name, f.image_url, f.gallery_json, f.created_at
		FROM fabrics f
		WHERE ` + where + `
		ORDER BY f.id ASC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query fabrics: %w", err)
	}
	defer rows.Close()

	var fabrics []inventory.Fabric
	for rows.Next() {
		fab, err := scanFabric(rows)
		if err != nil {
			return nil, 0, err
		}
		fabrics = append(fabrics, fab)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range fabrics {
		aliases, err := s.fabricAliases(ctx, fabrics[i].ID)
		if err != nil {
			return nil, 0, err
		}
		fabrics[i].Aliases = aliases
	}
	return fabrics, total, nil
}

// AddAlias registers an alternate code for a fabric.
func (s *Store) AddAlias(ctx context.Context, code, alias string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.fabricIDByCode(ctx, s.db, code)
	if err != nil {
		return false, err
	}

	// already resolving to this fabric is a no-op
	if owner, err := s.fabricIDByCode(ctx, s.db, alias); err == nil {
		if owner == id {
			return false, nil
		}
		return false, &inventory.DuplicateKeyError{Entity: "alias", Key: alias}
	} else if !inventory.IsNotFound(err) {
		return false, err
	}

	if err := s.insertAlias(ctx, s.db, id, alias); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveAlias drops an alias from a fabric.
func (s *Store) RemoveAlias(ctx context.Context, code, alias string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.fabricIDByCode(ctx, s.db, code)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM fabric_aliases WHERE fabric_id = ? AND alias = ?", id, alias)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// =============================================================================
// VARIANTS (inventory.CatalogStore)
// =============================================================================

// CreateVariant inserts a variant under the given fabric.
func (s *Store) CreateVariant(ctx context.Context, fabricCode string, v inventory.Variant) (inventory.VariantDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fabricID, err := s.fabricIDByCode(ctx, s.db, fabricCode)
	if err != nil {
		return inventory.VariantDetail{}, err
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fabric_variants (fabric_id, color_code, gsm, width_cm, finish, image_url, gallery_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fabricID, v.ColorCode, nullInt(v.GSM), nullInt(v.Width), v.Finish,
		nullString(v.ImageURL), galleryJSON(v.Gallery),
		v.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return inventory.VariantDetail{}, &inventory.DuplicateKeyError{
				Entity: "variant",
				Key:    fabricCode + "/" + v.ColorCode,
			}
		}
		return inventory.VariantDetail{}, fmt.Errorf("failed to insert variant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return inventory.VariantDetail{}, err
	}
	return s.getVariantByID(ctx, id)
}

// UpdateVariant applies the non-nil fields of upd.
func (s *Store) UpdateVariant(ctx context.Context, ref inventory.VariantRef, upd inventory.VariantUpdate) (inventory.VariantDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.variantIDByRef(ctx, s.db, ref)
	if err != nil {
		return inventory.VariantDetail{}, err
	}

	sets := []string{}
	args := []any{}
	if upd.NewColorCode != nil {
		sets = append(sets, "color_code = ?")
		args = append(args, *upd.NewColorCode)
	}
	if upd.GSM != nil {
		sets = append(sets, "gsm = ?")
		args = append(args, *upd.GSM)
	}
	if upd.Width != nil {
		sets = append(sets, "width_cm = ?")
		args = append(args, *upd.Width)
	}
	if upd.Finish != nil {
		sets = append(sets, "finish = ?")
		args = append(args, *upd.Finish)
	}
	if upd.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, nullString(*upd.ImageURL))
	}
	if upd.Gallery != nil {
		sets = append(sets, "gallery_json = ?")
		args = append(args, galleryJSON(*upd.Gallery))
	}
	if len(sets) > 0 {
		args = append(args, id)
		query := "UPDATE fabric_variants SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			if isUniqueConstraintError(err) {
				return inventory.VariantDetail{}, &inventory.DuplicateKeyError{
					Entity: "variant",
					Key:    ref.FabricCode + "/" + *upd.NewColorCode,
				}
			}
			return inventory.VariantDetail{}, fmt.Errorf("failed to update variant: %w", err)
		}
	}
	return s.getVariantByID(ctx, id)
}

// DeleteVariant removes a variant; movements and balance go with it (FK
// cascade, foreign_keys=on in the DSN).
func (s *Store) DeleteVariant(ctx context.Context, ref inventory.VariantRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.variantIDByRef(ctx, s.db, ref)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM fabric_variants WHERE id = ?", id)
	return err
}

// GetVariant resolves a variant by business reference.
func (s *Store) GetVariant(ctx context.Context, ref inventory.VariantRef) (inventory.VariantDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.variantIDByRef(ctx, s.db, ref)
	if err != nil {
		return inventory.VariantDetail{}, err
	}
	return s.getVariantByID(ctx, id)
}

// ListVariants returns a page of variants plus the unpaged total.
func (s *Store) ListVariants(ctx context.Context, f inventory.VariantFilter) ([]inventory.VariantStock, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conds := []string{"1=1"}
	args := []any{}
	if f.FabricCode != "" {
		conds = append(conds, `(f.fabric_code = ? OR EXISTS
			(SELECT 1 FROM fabric_aliases a WHERE a.fabric_id = f.id AND a.alias = ?))`)
		args = append(args, f.FabricCode, f.FabricCode)
	}
	if f.ColorCode != "" {
		conds = append(conds, "v.color_code = ?")
		args = append(args, f.ColorCode)
	}
	if f.Finish != "" {
		conds = append(conds, "UPPER(v.finish) = UPPER(?)")
		args = append(args, f.Finish)
	}
	if f.GSMMin != nil {
		conds = append(conds, "v.gsm >= ?")
		args = append(args, *f.GSMMin)
	}
	if f.GSMMax != nil {
		conds = append(conds, "v.gsm <= ?")
		args = append(args, *f.GSMMax)
	}
	if f.WidthMin != nil {
		conds = append(conds, "v.width_cm >= ?")
		args = append(args, *f.WidthMin)
	}
	if f.WidthMax != nil {
		conds = append(conds, "v.width_cm <= ?")
		args = append(args, *f.WidthMax)
	}
	if f.InStockOnly {
		conds = append(conds, "COALESCE(b.on_hand_mm, 0) > 0")
	}
	where := strings.Join(conds, " AND ")

	from := `
		FROM fabric_variants v
		JOIN fabrics f ON f.id = v.fabric_id
		LEFT JOIN stock_balances b ON b.variant_id = v.id`

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) "+from+" WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	// sort columns are whitelisted; anything else falls back to id
	orderCol := map[string]string{
		"id":         "v.id",
		"color_code": "v.color_code",
		"created_at": "v.created_at",
		"gsm":        "v.gsm",
		"width":      "v.width_cm",
		"on_hand":    "COALESCE(b.on_hand_mm, 0)",
	}[f.SortBy]
	if orderCol == "" {
		orderCol = "v.id"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}

	query := `
		SELECT v.id, v.fabric_id, v.color_code, v.gsm, v.width_cm, v.finish,
		       v.image_url, v.gallery_json, v.created_at,
		       f.fabric_code, f.name, f.image_url, f.gallery_json,
		       b.on_hand_mm, b.updated_at` +
		from + " WHERE " + where +
		" ORDER BY " + orderCol + " " + dir + ", v.id ASC LIMIT ? OFFSET ?"

	rows, err := s.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var out []inventory.VariantStock
	for rows.Next() {
		var (
			vd        inventory.VariantDetail
			gsm       sql.NullInt64
			width     sql.NullInt64
			vImage    sql.NullString
			vGallery  string
			createdAt string
			fImage    sql.NullString
			fGallery  string
			onHandMM  sql.NullInt64
			updatedAt sql.NullString
		)
		if err := rows.Scan(
			&vd.ID, &vd.FabricID, &vd.ColorCode, &gsm, &width, &vd.Finish,
			&vImage, &vGallery, &createdAt,
			&vd.FabricCode, &vd.FabricName, &fImage, &fGallery,
			&onHandMM, &updatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan variant: %w", err)
		}
		fillVariantDetail(&vd, gsm, width, vImage, vGallery, createdAt, fImage, fGallery)

		vs := inventory.VariantStock{VariantDetail: vd}
		if f.IncludeStock {
			b := inventory.Balance{VariantID: vd.ID}
			if onHandMM.Valid {
				b.OnHandM = fromMilli(onHandMM.Int64)
				b.UpdatedAt = parseTime(updatedAt.String)
			}
			vs.Stock = &b
		}
		out = append(out, vs)
	}
	return out, total, rows.Err()
}

// =============================================================================
// LEDGER (inventory.LedgerStore)
// =============================================================================

// AppendMovement inserts the movement row and applies the balance increment
// in ONE transaction. The increment happens in SQL, relative to whatever is
// stored, so concurrent appends can never lose updates.
func (s *Store) AppendMovement(ctx context.Context, ref inventory.VariantRef, mv inventory.Movement) (inventory.Movement, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inventory.Movement{}, decimal.Decimal{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	variantID, err := s.variantIDByRef(ctx, tx, ref)
	if err != nil {
		return inventory.Movement{}, decimal.Decimal{}, err
	}
	mv.VariantID = variantID
	if mv.OccurredAt.IsZero() {
		mv.OccurredAt = time.Now().UTC()
	}

	deltaMM := toMilli(mv.DeltaM)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements
		(id, variant_id, movement_kind, occurred_at, delta_qty_mm,
		 original_qty, original_uom, roll_count, document_id, reason, reversal_of)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.ID, variantID, string(mv.Kind),
		mv.OccurredAt.Format(time.RFC3339Nano), deltaMM,
		mv.OriginalQty.String(), string(mv.OriginalUnit),
		nullInt(mv.RollCount), nullString(mv.DocumentID), nullString(mv.Reason),
		nullString(mv.ReversalOf),
	)
	if err != nil {
		if isReversalUniquenessError(err) {
			return inventory.Movement{}, decimal.Decimal{},
				fmt.Errorf("movement %s: %w", mv.ReversalOf, inventory.ErrAlreadyReversed)
		}
		return inventory.Movement{}, decimal.Decimal{}, fmt.Errorf("failed to append movement: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_balances (variant_id, on_hand_mm, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(variant_id) DO UPDATE SET
			on_hand_mm = stock_balances.on_hand_mm + excluded.on_hand_mm,
			updated_at = excluded.updated_at`,
		variantID, deltaMM, mv.OccurredAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return inventory.Movement{}, decimal.Decimal{}, fmt.Errorf("failed to update balance: %w", err)
	}

	var onHandMM int64
	if err := tx.QueryRowContext(ctx,
		"SELECT on_hand_mm FROM stock_balances WHERE variant_id = ?", variantID,
	).Scan(&onHandMM); err != nil {
		return inventory.Movement{}, decimal.Decimal{}, err
	}

	if err := tx.Commit(); err != nil {
		return inventory.Movement{}, decimal.Decimal{}, err
	}
	// the ledger's precision is fixed at millimeters; hand back what stuck
	mv.DeltaM = fromMilli(deltaMM)
	return mv, fromMilli(onHandMM), nil
}

// GetMovement fetches one movement with its variant codes.
func (s *Store) GetMovement(ctx context.Context, id string) (inventory.MovementDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, movementSelect+" WHERE m.id = ?", id)
	if err != nil {
		return inventory.MovementDetail{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return inventory.MovementDetail{}, err
		}
		return inventory.MovementDetail{}, &inventory.NotFoundError{Entity: "movement", Key: id}
	}
	return scanMovement(rows)
}

// HasReversal reports whether a reversal already references movementID.
func (s *Store) HasReversal(ctx context.Context, movementID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stock_movements WHERE reversal_of = ?", movementID,
	).Scan(&count)
	return count > 0, err
}

const movementSelect = `
	SELECT m.id, m.variant_id, m.movement_kind, m.occurred_at, m.delta_qty_mm,
	       m.original_qty, m.original_uom, m.roll_count, m.document_id,
	       m.reason, m.reversal_of, f.fabric_code, v.color_code
	FROM stock_movements m
	JOIN fabric_variants v ON v.id = m.variant_id
	JOIN fabrics f ON f.id = v.fabric_id`

// Movements returns a filtered history page plus the unpaged total.
func (s *Store) Movements(ctx context.Context, f inventory.MovementFilter) ([]inventory.MovementDetail, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conds := []string{"1=1"}
	args := []any{}
	if f.FabricCode != "" {
		conds = append(conds, `(f.fabric_code = ? OR EXISTS
			(SELECT 1 FROM fabric_aliases a WHERE a.fabric_id = f.id AND a.alias = ?))`)
		args = append(args, f.FabricCode, f.FabricCode)
	}
	if f.ColorCode != "" {
		conds = append(conds, "v.color_code = ?")
		args = append(args, f.ColorCode)
	}
	if f.Kind != "" {
		conds = append(conds, "m.movement_kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.DocumentID != "" {
		conds = append(conds, "m.document_id = ?")
		args = append(args, f.DocumentID)
	}
	if f.From != nil {
		conds = append(conds, "m.occurred_at >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339Nano))
	}
	if f.To != nil {
		conds = append(conds, "m.occurred_at <= ?")
		args = append(args, f.To.UTC().Format(time.RFC3339Nano))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM stock_movements m
		JOIN fabric_variants v ON v.id = m.variant_id
		JOIN fabrics f ON f.id = v.fabric_id` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	query := movementSelect + where +
		" ORDER BY m.occurred_at " + dir + ", m.rowid " + dir +
		" LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var out []inventory.MovementDetail
	for rows.Next() {
		md, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, md)
	}
	return out, total, rows.Err()
}

// GetStock fetches a variant with its balance. No balance row yet means a
// zero balance, not an error.
func (s *Store) GetStock(ctx context.Context, ref inventory.VariantRef) (inventory.VariantDetail, inventory.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.variantIDByRef(ctx, s.db, ref)
	if err != nil {
		return inventory.VariantDetail{}, inventory.Balance{}, err
	}
	vd, err := s.getVariantByID(ctx, id)
	if err != nil {
		return inventory.VariantDetail{}, inventory.Balance{}, err
	}

	b := inventory.Balance{VariantID: id}
	var onHandMM int64
	var updatedAt string
	err = s.db.QueryRowContext(ctx,
		"SELECT on_hand_mm, updated_at FROM stock_balances WHERE variant_id = ?", id,
	).Scan(&onHandMM, &updatedAt)
	switch {
	case err == sql.ErrNoRows:
		// lazy balance: no movements yet
	case err != nil:
		return inventory.VariantDetail{}, inventory.Balance{}, err
	default:
		b.OnHandM = fromMilli(onHandMM)
		b.UpdatedAt = parseTime(updatedAt)
	}
	return vd, b, nil
}

// =============================================================================
// INTERNAL QUERIES
// =============================================================================

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) fabricIDByCode(ctx context.Context, q querier, code string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT f.id FROM fabrics f WHERE f.fabric_code = ?
		UNION
		SELECT a.fabric_id FROM fabric_aliases a WHERE a.alias = ?
		LIMIT 1`, code, code,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, &inventory.NotFoundError{Entity: "fabric", Key: code}
	}
	return id, err
}

func (s *Store) variantIDByRef(ctx context.Context, q querier, ref inventory.VariantRef) (int64, error) {
	fabricID, err := s.fabricIDByCode(ctx, q, ref.FabricCode)
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.QueryRowContext(ctx,
		"SELECT id FROM fabric_variants WHERE fabric_id = ? AND color_code = ?",
		fabricID, ref.ColorCode,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, &inventory.NotFoundError{Entity: "variant", Key: ref.String()}
	}
	return id, err
}

func (s *Store) insertAlias(ctx context.Context, q querier, fabricID int64, alias string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO fabric_aliases (alias, fabric_id) VALUES (?, ?)", alias, fabricID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &inventory.DuplicateKeyError{Entity: "alias", Key: alias}
		}
		return fmt.Errorf("failed to insert alias: %w", err)
	}
	return nil
}

func (s *Store) getFabricByID(ctx context.Context, q querier, id int64) (inventory.Fabric, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, fabric_code, name, image_url, gallery_json, created_at
		FROM fabrics WHERE id = ?`, id)
	if err != nil {
		return inventory.Fabric{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return inventory.Fabric{}, err
		}
		return inventory.Fabric{}, &inventory.NotFoundError{Entity: "fabric", Key: fmt.Sprintf("#%d", id)}
	}
	fab, err := scanFabric(rows)
	if err != nil {
		return inventory.Fabric{}, err
	}
	rows.Close()

	aliases, err := s.fabricAliases(ctx, id)
	if err != nil {
		return inventory.Fabric{}, err
	}
	fab.Aliases = aliases
	return fab, nil
}

func (s *Store) fabricAliases(ctx context.Context, fabricID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT alias FROM fabric_aliases WHERE fabric_id = ? ORDER BY alias", fabricID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func (s *Store) getVariantByID(ctx context.Context, id int64) (inventory.VariantDetail, error) {
	var (
		vd        inventory.VariantDetail
		gsm       sql.NullInt64
		width     sql.NullInt64
		vImage    sql.NullString
		vGallery  string
		createdAt string
		fImage    sql.NullString
		fGallery  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT v.id, v.fabric_id, v.color_code, v.gsm, v.width_cm, v.finish,
		       v.image_url, v.gallery_json, v.created_at,
		       f.fabric_code, f.name, f.image_url, f.gallery_json
		FROM fabric_variants v
		JOIN fabrics f ON f.id = v.fabric_id
		WHERE v.id = ?`, id,
	).Scan(
		&vd.ID, &vd.FabricID, &vd.ColorCode, &gsm, &width, &vd.Finish,
		&vImage, &vGallery, &createdAt,
		&vd.FabricCode, &vd.FabricName, &fImage, &fGallery,
	)
	if err == sql.ErrNoRows {
		return inventory.VariantDetail{}, &inventory.NotFoundError{Entity: "variant", Key: fmt.Sprintf("#%d", id)}
	}
	if err != nil {
		return inventory.VariantDetail{}, err
	}
	fillVariantDetail(&vd, gsm, width, vImage, vGallery, createdAt, fImage, fGallery)
	return vd, nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func scanFabric(rows *sql.Rows) (inventory.Fabric, error) {
	var (
		f         inventory.Fabric
		imageURL  sql.NullString
		gallery   string
		createdAt string
	)
	if err := rows.Scan(&f.ID, &f.Code, &f.Name, &imageURL, &gallery, &createdAt); err != nil {
		return f, fmt.Errorf("failed to scan fabric: %w", err)
	}
	f.ImageURL = imageURL.String
	f.Gallery = parseGallery(gallery)
	f.CreatedAt = parseTime(createdAt)
	return f, nil
}

func fillVariantDetail(vd *inventory.VariantDetail, gsm, width sql.NullInt64,
	vImage sql.NullString, vGallery, createdAt string, fImage sql.NullString, fGallery string) {
	if gsm.Valid {
		n := int(gsm.Int64)
		vd.GSM = &n
	}
	if width.Valid {
		n := int(width.Int64)
		vd.Width = &n
	}
	vd.ImageURL = vImage.String
	vd.Gallery = parseGallery(vGallery)
	vd.CreatedAt = parseTime(createdAt)
	vd.FabricImageURL = fImage.String
	vd.FabricGallery = parseGallery(fGallery)
}

func scanMovement(rows *sql.Rows) (inventory.MovementDetail, error) {
	var (
		md          inventory.MovementDetail
		kind        string
		occurredAt  string
		deltaMM     int64
		originalQty string
		originalUOM string
		rollCount   sql.NullInt64
		documentID  sql.NullString
		reason      sql.NullString
		reversalOf  sql.NullString
	)
	if err := rows.Scan(
		&md.ID, &md.VariantID, &kind, &occurredAt, &deltaMM,
		&originalQty, &originalUOM, &rollCount, &documentID,
		&reason, &reversalOf, &md.FabricCode, &md.ColorCode,
	); err != nil {
		return md, fmt.Errorf("failed to scan movement: %w", err)
	}
	md.Kind = inventory.MovementKind(kind)
	md.OccurredAt = parseTime(occurredAt)
	md.DeltaM = fromMilli(deltaMM)
	md.OriginalQty, _ = decimal.NewFromString(originalQty)
	md.OriginalUnit = inventory.Unit(originalUOM)
	if rollCount.Valid {
		n := int(rollCount.Int64)
		md.RollCount = &n
	}
	md.DocumentID = documentID.String
	md.Reason = reason.String
	md.ReversalOf = reversalOf.String
	return md, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// toMilli converts a meter quantity to integer millimeters, the ledger's
// fixed storage precision.
func toMilli(d decimal.Decimal) int64 {
	return d.Round(3).Shift(3).IntPart()
}

func fromMilli(n int64) decimal.Decimal {
	return decimal.New(n, -3)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func galleryJSON(g inventory.Gallery) string {
	if g == nil {
		return "{}"
	}
	b, err := json.Marshal(g)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func parseGallery(s string) inventory.Gallery {
	g := inventory.Gallery{}
	if s != "" {
		json.Unmarshal([]byte(s), &g)
	}
	return g
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (contains(err.Error(), "UNIQUE constraint failed") ||
		contains(err.Error(), "duplicate key"))
}

func isReversalUniquenessError(err error) bool {
	return isUniqueConstraintError(err) && contains(err.Error(), "reversal_of")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && containsAt(s, substr, 0))
}

func containsAt(s, substr string, start int) bool {
	for i := start; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
