/*
memory.go - In-memory store implementation

PURPOSE:
  Map-backed implementation of inventory.Store for tests and local
  experimentation. Mirrors the SQLite backend's semantics, including the
  atomic append+increment (trivial here: one mutex guards both structures).

CONCURRENCY:
  sync.RWMutex around all maps. Values are copied on the way out so callers
  can never alias internal state.

SEE ALSO:
  - ../store.go: the contract this implements
  - ../../store/sqlite: the production backend
*/
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traider/fabric-inventory/inventory"
)

type variantRec struct {
	variant    inventory.Variant
	balance    decimal.Decimal
	balanceAt  time.Time
	hasBalance bool
}

type fabricRec struct {
	fabric   inventory.Fabric
	aliases  map[string]struct{}
	variants map[string]*variantRec // keyed by color code
}

type movementRec struct {
	mv         inventory.Movement
	fabricCode string
	colorCode  string
	seq        int
}

// Memory is an in-memory inventory.Store.
type Memory struct {
	mu            sync.RWMutex
	fabrics       map[string]*fabricRec // keyed by canonical fabric code
	aliasIdx      map[string]string     // alias -> fabric code
	movements     map[string]*movementRec
	reversals     map[string]string // original movement id -> reversal id
	nextFabricID  int64
	nextVariantID int64
	nextSeq       int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		fabrics:   make(map[string]*fabricRec),
		aliasIdx:  make(map[string]string),
		movements: make(map[string]*movementRec),
		reversals: make(map[string]string),
	}
}

var _ inventory.Store = (*Memory)(nil)

// =============================================================================
// HELPERS
// =============================================================================

func cloneGallery(g inventory.Gallery) inventory.Gallery {
	if g == nil {
		return inventory.Gallery{}
	}
	out := make(inventory.Gallery, len(g))
	for k, v := range g {
		images := make([]string, len(v.Images))
		copy(images, v.Images)
		out[k] = inventory.GalleryShoot{Main: v.Main, Images: images}
	}
	return out
}

func (m *Memory) resolveFabric(code string) (*fabricRec, bool) {
	if rec, ok := m.fabrics[code]; ok {
		return rec, true
	}
	if owner, ok := m.aliasIdx[code]; ok {
		return m.fabrics[owner], true
	}
	return nil, false
}

func (m *Memory) resolveVariant(ref inventory.VariantRef) (*fabricRec, *variantRec, bool) {
	fab, ok := m.resolveFabric(ref.FabricCode)
	if !ok {
		return nil, nil, false
	}
	v, ok := fab.variants[ref.ColorCode]
	if !ok {
		return nil, nil, false
	}
	return fab, v, true
}

func (m *Memory) fabricOut(rec *fabricRec) inventory.Fabric {
	f := rec.fabric
	f.Gallery = cloneGallery(rec.fabric.Gallery)
	f.Aliases = make([]string, 0, len(rec.aliases))
	for a := range rec.aliases {
		f.Aliases = append(f.Aliases, a)
	}
	sort.Strings(f.Aliases)
	return f
}

func (m *Memory) variantOut(fab *fabricRec, rec *variantRec) inventory.VariantDetail {
	v := rec.variant
	v.Gallery = cloneGallery(rec.variant.Gallery)
	return inventory.VariantDetail{
		Variant:        v,
		FabricCode:     fab.fabric.Code,
		FabricName:     fab.fabric.Name,
		FabricImageURL: fab.fabric.ImageURL,
		FabricGallery:  cloneGallery(fab.fabric.Gallery),
	}
}

func (m *Memory) balanceOut(rec *variantRec) inventory.Balance {
	return inventory.Balance{
		VariantID: rec.variant.ID,
		OnHandM:   rec.balance,
		UpdatedAt: rec.balanceAt,
	}
}

// =============================================================================
// FABRICS
// =============================================================================

func (m *Memory) CreateFabric(_ context.Context, f inventory.Fabric) (inventory.Fabric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.resolveFabric(f.Code); taken {
		return inventory.Fabric{}, &inventory.DuplicateKeyError{Entity: "fabric", Key: f.Code}
	}
	m.nextFabricID++
	f.ID = m.nextFabricID
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	rec := &fabricRec{
		fabric:   f,
		aliases:  make(map[string]struct{}),
		variants: make(map[string]*variantRec),
	}
	rec.fabric.Gallery = cloneGallery(f.Gallery)
	for _, a := range f.Aliases {
		if _, taken := m.resolveFabric(a); taken {
			return inventory.Fabric{}, &inventory.DuplicateKeyError{Entity: "alias", Key: a}
		}
		rec.aliases[a] = struct{}{}
		m.aliasIdx[a] = f.Code
	}
	rec.fabric.Aliases = nil
	m.fabrics[f.Code] = rec
	return m.fabricOut(rec), nil
}

func (m *Memory) UpdateFabric(_ context.Context, code string, upd inventory.FabricUpdate) (inventory.Fabric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.resolveFabric(code)
	if !ok {
		return inventory.Fabric{}, &inventory.NotFoundError{Entity: "fabric", Key: code}
	}
	if upd.Name != nil {
		rec.fabric.Name = *upd.Name
	}
	if upd.ImageURL != nil {
		rec.fabric.ImageURL = *upd.ImageURL
	}
	if upd.Gallery != nil {
		rec.fabric.Gallery = cloneGallery(*upd.Gallery)
	}
	return m.fabricOut(rec), nil
}

func (m *Memory) GetFabric(_ context.Context, code string) (inventory.Fabric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.resolveFabric(code)
	if !ok {
		return inventory.Fabric{}, &inventory.NotFoundError{Entity: "fabric", Key: code}
	}
	return m.fabricOut(rec), nil
}

func (m *Memory) ListFabrics(_ context.Context, f inventory.FabricFilter) ([]inventory.Fabric, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]*fabricRec, 0, len(m.fabrics))
	q := strings.ToUpper(f.Query)
	for _, rec := range m.fabrics {
		if q != "" && !fabricMatches(rec, q) {
			continue
		}
		matches = append(matches, rec)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].fabric.ID < matches[j].fabric.ID
	})
	total := len(matches)
	matches = page(matches, f.Limit, f.Offset)

	out := make([]inventory.Fabric, 0, len(matches))
	for _, rec := range matches {
		out = append(out, m.fabricOut(rec))
	}
	return out, total, nil
}

func fabricMatches(rec *fabricRec, upperQuery string) bool {
	if strings.Contains(rec.fabric.Code, upperQuery) ||
		strings.Contains(strings.ToUpper(rec.fabric.Name), upperQuery) {
		return true
	}
	for a := range rec.aliases {
		if strings.Contains(a, upperQuery) {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *Memory) AddAlias(_ context.Context, code, alias string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.resolveFabric(code)
	if !ok {
		return false, &inventory.NotFoundError{Entity: "fabric", Key: code}
	}
	if _, present := rec.aliases[alias]; present {
		return false, nil
	}
	if _, taken := m.resolveFabric(alias); taken {
		return false, &inventory.DuplicateKeyError{Entity: "alias", Key: alias}
	}
	rec.aliases[alias] = struct{}{}
	m.aliasIdx[alias] = rec.fabric.Code
	return true, nil
}

func (m *Memory) RemoveAlias(_ context.Context, code, alias string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.resolveFabric(code)
	if !ok {
		return false, &inventory.NotFoundError{Entity: "fabric", Key: code}
	}
	if _, present := rec.aliases[alias]; !present {
		return false, nil
	}
	delete(rec.aliases, alias)
	delete(m.aliasIdx, alias)
	return true, nil
}

// =============================================================================
// VARIANTS
// =============================================================================

func (m *Memory) CreateVariant(_ context.Context, fabricCode string, v inventory.Variant) (inventory.VariantDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fab, ok := m.resolveFabric(fabricCode)
	if !ok {
		return inventory.VariantDetail{}, &inventory.NotFoundError{Entity: "fabric", Key: fabricCode}
	}
	if _, taken := fab.variants[v.ColorCode]; taken {
		return inventory.VariantDetail{}, &inventory.DuplicateKeyError{
			Entity: "variant",
			Key:    fab.fabric.Code + "/" + v.ColorCode,
		}
	}
	m.nextVariantID++
	v.ID = m.nextVariantID
	v.FabricID = fab.fabric.ID
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	rec := &variantRec{variant: v}
	rec.variant.Gallery = cloneGallery(v.Gallery)
	fab.variants[v.ColorCode] = rec
	return m.variantOut(fab, rec), nil
}

func (m *Memory) UpdateVariant(_ context.Context, ref inventory.VariantRef, upd inventory.VariantUpdate) (inventory.VariantDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fab, rec, ok := m.resolveVariant(ref)
	if !ok {
		return inventory.VariantDetail{}, &inventory.NotFoundError{Entity: "variant", Key: ref.String()}
	}
	if upd.NewColorCode != nil && *upd.NewColorCode != rec.variant.ColorCode {
		if _, taken := fab.variants[*upd.NewColorCode]; taken {
			return inventory.VariantDetail{}, &inventory.DuplicateKeyError{
				Entity: "variant",
				Key:    fab.fabric.Code + "/" + *upd.NewColorCode,
			}
		}
		delete(fab.variants, rec.variant.ColorCode)
		rec.variant.ColorCode = *upd.NewColorCode
		fab.variants[rec.variant.ColorCode] = rec
		// history rows follow the rename
		for _, mrec := range m.movements {
			if mrec.mv.VariantID == rec.variant.ID {
				mrec.colorCode = rec.variant.ColorCode
			}
		}
	}
	if upd.GSM != nil {
		gsm := *upd.GSM
		rec.variant.GSM = &gsm
	}
	if upd.Width != nil {
		w := *upd.Width
		rec.variant.Width = &w
	}
	if upd.Finish != nil {
		rec.variant.Finish = *upd.Finish
	}
	if upd.ImageURL != nil {
		rec.variant.ImageURL = *upd.ImageURL
	}
	if upd.Gallery != nil {
		rec.variant.Gallery = cloneGallery(*upd.Gallery)
	}
	return m.variantOut(fab, rec), nil
}

func (m *Memory) DeleteVariant(_ context.Context, ref inventory.VariantRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fab, rec, ok := m.resolveVariant(ref)
	if !ok {
		return &inventory.NotFoundError{Entity: "variant", Key: ref.String()}
	}
	for id, mrec := range m.movements {
		if mrec.mv.VariantID == rec.variant.ID {
			delete(m.movements, id)
			delete(m.reversals, mrec.mv.ReversalOf)
		}
	}
	delete(fab.variants, rec.variant.ColorCode)
	return nil
}

func (m *Memory) GetVariant(_ context.Context, ref inventory.VariantRef) (inventory.VariantDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fab, rec, ok := m.resolveVariant(ref)
	if !ok {
		return inventory.VariantDetail{}, &inventory.NotFoundError{Entity: "variant", Key: ref.String()}
	}
	return m.variantOut(fab, rec), nil
}

func (m *Memory) ListVariants(_ context.Context, f inventory.VariantFilter) ([]inventory.VariantStock, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []variantPair
	for _, fab := range m.fabrics {
		if f.FabricCode != "" && fab.fabric.Code != f.FabricCode {
			if owner, ok := m.aliasIdx[f.FabricCode]; !ok || owner != fab.fabric.Code {
				continue
			}
		}
		for _, rec := range fab.variants {
			if !variantMatches(rec, f) {
				continue
			}
			matches = append(matches, variantPair{fab, rec})
		}
	}
	sortVariants(matches, f)
	total := len(matches)
	matches = page(matches, f.Limit, f.Offset)

	out := make([]inventory.VariantStock, 0, len(matches))
	for _, p := range matches {
		vs := inventory.VariantStock{VariantDetail: m.variantOut(p.fab, p.rec)}
		if f.IncludeStock {
			b := m.balanceOut(p.rec)
			vs.Stock = &b
		}
		out = append(out, vs)
	}
	return out, total, nil
}

func variantMatches(rec *variantRec, f inventory.VariantFilter) bool {
	v := rec.variant
	if f.ColorCode != "" && v.ColorCode != f.ColorCode {
		return false
	}
	if f.Finish != "" && !strings.EqualFold(v.Finish, f.Finish) {
		return false
	}
	if f.GSMMin != nil && (v.GSM == nil || *v.GSM < *f.GSMMin) {
		return false
	}
	if f.GSMMax != nil && (v.GSM == nil || *v.GSM > *f.GSMMax) {
		return false
	}
	if f.WidthMin != nil && (v.Width == nil || *v.Width < *f.WidthMin) {
		return false
	}
	if f.WidthMax != nil && (v.Width == nil || *v.Width > *f.WidthMax) {
		return false
	}
	if f.InStockOnly && !rec.balance.IsPositive() {
		return false
	}
	return true
}

type variantPair struct {
	fab *fabricRec
	rec *variantRec
}

func sortVariants(matches []variantPair, f inventory.VariantFilter) {
	less := func(a, b inventory.Variant) bool { return a.ID < b.ID }
	switch f.SortBy {
	case "color_code":
		less = func(a, b inventory.Variant) bool { return a.ColorCode < b.ColorCode }
	case "created_at":
		less = func(a, b inventory.Variant) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sort.Slice(matches, func(i, j int) bool {
		if f.SortDesc {
			return less(matches[j].rec.variant, matches[i].rec.variant)
		}
		return less(matches[i].rec.variant, matches[j].rec.variant)
	})
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) AppendMovement(_ context.Context, ref inventory.VariantRef, mv inventory.Movement) (inventory.Movement, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fab, rec, ok := m.resolveVariant(ref)
	if !ok {
		return inventory.Movement{}, decimal.Decimal{}, &inventory.NotFoundError{Entity: "variant", Key: ref.String()}
	}
	if mv.ReversalOf != "" {
		if _, taken := m.reversals[mv.ReversalOf]; taken {
			return inventory.Movement{}, decimal.Decimal{}, fmt.Errorf("movement %s: %w", mv.ReversalOf, inventory.ErrAlreadyReversed)
		}
	}

	mv.VariantID = rec.variant.ID
	if mv.OccurredAt.IsZero() {
		mv.OccurredAt = time.Now().UTC()
	}
	m.nextSeq++
	m.movements[mv.ID] = &movementRec{
		mv:         mv,
		fabricCode: fab.fabric.Code,
		colorCode:  rec.variant.ColorCode,
		seq:        m.nextSeq,
	}
	if mv.ReversalOf != "" {
		m.reversals[mv.ReversalOf] = mv.ID
	}

	rec.balance = rec.balance.Add(mv.DeltaM)
	rec.balanceAt = mv.OccurredAt
	rec.hasBalance = true
	return mv, rec.balance, nil
}

func (m *Memory) GetMovement(_ context.Context, id string) (inventory.MovementDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.movements[id]
	if !ok {
		return inventory.MovementDetail{}, &inventory.NotFoundError{Entity: "movement", Key: id}
	}
	return inventory.MovementDetail{
		Movement:   rec.mv,
		FabricCode: rec.fabricCode,
		ColorCode:  rec.colorCode,
	}, nil
}

func (m *Memory) HasReversal(_ context.Context, movementID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.reversals[movementID]
	return ok, nil
}

func (m *Memory) Movements(_ context.Context, f inventory.MovementFilter) ([]inventory.MovementDetail, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []*movementRec
	for _, rec := range m.movements {
		if !movementMatches(rec, f) {
			continue
		}
		matches = append(matches, rec)
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if f.SortDesc {
			a, b = b, a
		}
		if !a.mv.OccurredAt.Equal(b.mv.OccurredAt) {
			return a.mv.OccurredAt.Before(b.mv.OccurredAt)
		}
		return a.seq < b.seq
	})
	total := len(matches)
	matches = page(matches, f.Limit, f.Offset)

	out := make([]inventory.MovementDetail, 0, len(matches))
	for _, rec := range matches {
		out = append(out, inventory.MovementDetail{
			Movement:   rec.mv,
			FabricCode: rec.fabricCode,
			ColorCode:  rec.colorCode,
		})
	}
	return out, total, nil
}

func movementMatches(rec *movementRec, f inventory.MovementFilter) bool {
	if f.FabricCode != "" && rec.fabricCode != f.FabricCode {
		return false
	}
	if f.ColorCode != "" && rec.colorCode != f.ColorCode {
		return false
	}
	if f.Kind != "" && rec.mv.Kind != f.Kind {
		return false
	}
	if f.DocumentID != "" && rec.mv.DocumentID != f.DocumentID {
		return false
	}
	if f.From != nil && rec.mv.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && rec.mv.OccurredAt.After(*f.To) {
		return false
	}
	return true
}

func (m *Memory) GetStock(_ context.Context, ref inventory.VariantRef) (inventory.VariantDetail, inventory.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fab, rec, ok := m.resolveVariant(ref)
	if !ok {
		return inventory.VariantDetail{}, inventory.Balance{}, &inventory.NotFoundError{Entity: "variant", Key: ref.String()}
	}
	return m.variantOut(fab, rec), m.balanceOut(rec), nil
}
