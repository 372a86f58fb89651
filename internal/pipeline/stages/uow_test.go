package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/peakgear/pricewatch/internal/persistence"
)

// fakeUoW is an in-memory persistence.UnitOfWork. Repos share state across
// calls so rerun tests behave like a real database.
type fakeUoW struct {
	providers  *fakeProviders
	currencies *fakeCurrencies
	products   *fakeProducts
	variants   *fakeVariants
	mappings   *fakeMappings
	prices     *fakePrices
	trending   *fakeTrending

	committed  bool
	rolledBack bool
}

func newFakeUoW() *fakeUoW {
	return &fakeUoW{
		providers: &fakeProviders{},
		currencies: &fakeCurrencies{rows: []persistence.Currency{
			{ID: 1, Code: "TRY", ExchangeRate: 1.0},
			{ID: 2, Code: "USD", ExchangeRate: 34.20},
			{ID: 3, Code: "EUR", ExchangeRate: 37.50},
		}},
		products: &fakeProducts{byName: make(map[string]*persistence.Product)},
		variants: &fakeVariants{},
		mappings: &fakeMappings{rows: make(map[string]*persistence.ProductMapping)},
		prices:   &fakePrices{history: make(map[int64][]persistence.PriceHistory)},
		trending: &fakeTrending{},
	}
}

func (u *fakeUoW) Providers() persistence.ProviderRepo          { return u.providers }
func (u *fakeUoW) Currencies() persistence.CurrencyRepo         { return u.currencies }
func (u *fakeUoW) Products() persistence.ProductRepo            { return u.products }
func (u *fakeUoW) Variants() persistence.VariantRepo            { return u.variants }
func (u *fakeUoW) Mappings() persistence.MappingRepo            { return u.mappings }
func (u *fakeUoW) PriceHistories() persistence.PriceHistoryRepo { return u.prices }
func (u *fakeUoW) Trending() persistence.TrendingRepo           { return u.trending }

func (u *fakeUoW) Commit() error   { u.committed = true; return nil }
func (u *fakeUoW) Rollback() error { u.rolledBack = true; return nil }

type fakeProviders struct {
	rows   []persistence.Provider
	allErr error
}

func (r *fakeProviders) All(context.Context) ([]persistence.Provider, error) {
	if r.allErr != nil {
		return nil, r.allErr
	}
	return r.rows, nil
}

func (r *fakeProviders) BySlug(_ context.Context, slug string) (*persistence.Provider, error) {
	for i := range r.rows {
		if r.rows[i].Slug == slug {
			return &r.rows[i], nil
		}
	}
	return nil, nil
}

func (r *fakeProviders) SlugIndex(context.Context) (map[string]int64, error) {
	index := make(map[string]int64, len(r.rows))
	for _, p := range r.rows {
		index[p.Slug] = p.ID
	}
	return index, nil
}

type fakeCurrencies struct {
	rows   []persistence.Currency
	allErr error
}

func (r *fakeCurrencies) All(context.Context) ([]persistence.Currency, error) {
	if r.allErr != nil {
		return nil, r.allErr
	}
	return r.rows, nil
}

func (r *fakeCurrencies) ByCode(_ context.Context, code string) (*persistence.Currency, error) {
	for i := range r.rows {
		if r.rows[i].Code == code {
			return &r.rows[i], nil
		}
	}
	return nil, nil
}

type fakeProducts struct {
	byName    map[string]*persistence.Product
	nextID    int64
	created   int
	byNameHit int
	byNameErr error
	createErr error
}

func (r *fakeProducts) ByName(_ context.Context, name string) (*persistence.Product, error) {
	if r.byNameErr != nil {
		return nil, r.byNameErr
	}
	r.byNameHit++
	if p, ok := r.byName[name]; ok {
		return p, nil
	}
	return nil, nil
}

func (r *fakeProducts) Create(_ context.Context, p *persistence.Product) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	r.byName[p.Name] = p
	r.created++
	return nil
}

// seed registers an existing product under its normalized name.
func (r *fakeProducts) seed(id int64, name, slug string) *persistence.Product {
	p := &persistence.Product{ID: id, Name: name, Slug: slug}
	r.byName[name] = p
	if id > r.nextID {
		r.nextID = id
	}
	return p
}

type fakeVariants struct {
	batches  [][]persistence.ProductVariant
	batchErr error
}

func (r *fakeVariants) CreateBatch(_ context.Context, variants []persistence.ProductVariant) error {
	if r.batchErr != nil {
		return r.batchErr
	}
	r.batches = append(r.batches, variants)
	return nil
}

func (r *fakeVariants) all() []persistence.ProductVariant {
	var out []persistence.ProductVariant
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

type fakeMappings struct {
	rows          map[string]*persistence.ProductMapping
	nextID        int64
	findOrCreated int
	margins       map[int64]marginCall
	findErr       error
	setProductErr error
	setMarginErr  error
}

type marginCall struct {
	margin    float64
	arbitrage bool
}

func mappingKey(providerID int64, code string) string {
	return fmt.Sprintf("%d:%s", providerID, code)
}

func (r *fakeMappings) ByProviderAndCode(_ context.Context, providerID int64, code string) (*persistence.ProductMapping, error) {
	if m, ok := r.rows[mappingKey(providerID, code)]; ok {
		return m, nil
	}
	return nil, nil
}

func (r *fakeMappings) FindOrCreate(_ context.Context, providerID int64, code string, productURL *string) (*persistence.ProductMapping, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	key := mappingKey(providerID, code)
	if m, ok := r.rows[key]; ok {
		return m, nil
	}
	r.nextID++
	m := &persistence.ProductMapping{
		ID:                  r.nextID,
		ProviderID:          providerID,
		ExternalProductCode: code,
		ProductURL:          productURL,
	}
	r.rows[key] = m
	r.findOrCreated++
	return m, nil
}

func (r *fakeMappings) SetProduct(_ context.Context, mappingID, productID int64) error {
	if r.setProductErr != nil {
		return r.setProductErr
	}
	for _, m := range r.rows {
		if m.ID == mappingID {
			pid := productID
			m.ProductID = &pid
			return nil
		}
	}
	return fmt.Errorf("mapping %d not found", mappingID)
}

func (r *fakeMappings) SetMargin(_ context.Context, mappingID int64, margin float64, arbitrage bool) error {
	if r.setMarginErr != nil {
		return r.setMarginErr
	}
	if r.margins == nil {
		r.margins = make(map[int64]marginCall)
	}
	r.margins[mappingID] = marginCall{margin: margin, arbitrage: arbitrage}
	return nil
}

// seed registers a mapping, optionally already matched to a product.
func (r *fakeMappings) seed(id, providerID int64, code string, productID *int64) *persistence.ProductMapping {
	m := &persistence.ProductMapping{
		ID:                  id,
		ProviderID:          providerID,
		ExternalProductCode: code,
		ProductID:           productID,
	}
	r.rows[mappingKey(providerID, code)] = m
	if id > r.nextID {
		r.nextID = id
	}
	return m
}

type fakePrices struct {
	history   map[int64][]persistence.PriceHistory
	saved     []persistence.PriceHistory
	nextID    int64
	meanCalls int
	listErr   error
	createErr error
	meanErr   error
}

func (r *fakePrices) ListByMapping(_ context.Context, mappingID int64, limit int) ([]persistence.PriceHistory, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	rows := r.history[mappingID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]persistence.PriceHistory, len(rows))
	copy(out, rows)
	return out, nil
}

func (r *fakePrices) CreateBatch(_ context.Context, records []persistence.PriceHistory) error {
	if r.createErr != nil {
		return r.createErr
	}
	// Newest first, like rows ordered by created_at desc. Inserts in one
	// transaction are visible to later stages of the same batch.
	for _, rec := range records {
		r.nextID++
		rec.ID = r.nextID
		rec.CreatedAt = time.Now()
		r.saved = append(r.saved, rec)
		r.history[rec.MappingID] = append([]persistence.PriceHistory{rec}, r.history[rec.MappingID]...)
	}
	return nil
}

func (r *fakePrices) MeanPrice(_ context.Context, mappingID int64, limit int) (float64, bool, error) {
	r.meanCalls++
	if r.meanErr != nil {
		return 0, false, r.meanErr
	}
	rows := r.history[mappingID]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	sum := 0.0
	for _, row := range rows {
		sum += row.Price
	}
	return sum / float64(len(rows)), true, nil
}

// seedHistory stores a newest-first price series for a mapping.
func (r *fakePrices) seedHistory(mappingID int64, prices ...float64) {
	for _, p := range prices {
		r.nextID++
		r.history[mappingID] = append(r.history[mappingID], persistence.PriceHistory{
			ID:        r.nextID,
			MappingID: mappingID,
			Price:     p,
			InStock:   true,
		})
	}
}

type fakeTrending struct {
	rows       []persistence.TrendingProduct
	replaced   int
	replaceErr error
}

func (r *fakeTrending) ReplaceAll(_ context.Context, entries []persistence.TrendingProduct) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.rows = append([]persistence.TrendingProduct(nil), entries...)
	r.replaced++
	return nil
}

// staticRates is a Converter over a fixed table.
type staticRates map[string]float64

func (r staticRates) Rates(context.Context) map[string]float64 { return r }

func testRates() staticRates {
	return staticRates{"TRY": 1.0, "USD": 34.20, "EUR": 37.50}
}
