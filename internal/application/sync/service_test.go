package syncapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/supplier"
)

// fakeAPI scripts supplier responses and records the calls made.
type fakeAPI struct {
	mu sync.Mutex

	pages      map[string][]*supplier.ProductPage
	listErr    map[string]error
	details    map[string]*supplier.DetailRecord
	variants   map[string][]supplier.Variant
	stocks     map[string][]supplier.AreaStock
	reviews    map[string][]supplier.Review
	categories []supplier.CategoryNode
	warehouses []supplier.Warehouse

	quota      float64
	quotaErr   error
	refreshErr error

	listCalls       []string
	fetchQuotaCalls int
	refreshCalls    int
	appliedRPS      []float64

	// listGate blocks ListProducts until closed; listStarted signals
	// the first blocked call.
	listGate    chan struct{}
	listStarted chan struct{}
	startOnce   sync.Once
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		pages:    map[string][]*supplier.ProductPage{},
		listErr:  map[string]error{},
		details:  map[string]*supplier.DetailRecord{},
		variants: map[string][]supplier.Variant{},
		stocks:   map[string][]supplier.AreaStock{},
		reviews:  map[string][]supplier.Review{},
		quota:    5,
	}
}

func (f *fakeAPI) RefreshAccessToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshErr
}

func (f *fakeAPI) FetchQuota(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchQuotaCalls++
	return f.quota, f.quotaErr
}

func (f *fakeAPI) ApplyQuota(rps float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appliedRPS = append(f.appliedRPS, rps)
}

func (f *fakeAPI) ListProducts(ctx context.Context, page, pageSize int, countryCode string) (*supplier.ProductPage, error) {
	if f.listGate != nil {
		f.startOnce.Do(func() { close(f.listStarted) })
		select {
		case <-f.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, fmt.Sprintf("%s:%d", countryCode, page))
	if err := f.listErr[countryCode]; err != nil {
		return nil, err
	}
	pages := f.pages[countryCode]
	if page > len(pages) {
		return &supplier.ProductPage{PageNum: page, PageSize: pageSize, TotalPages: len(pages)}, nil
	}
	return pages[page-1], nil
}

func (f *fakeAPI) GetProductDetail(ctx context.Context, externalID string) (*supplier.DetailRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.details[externalID]; ok {
		return d, nil
	}
	return nil, errors.New("detail unavailable")
}

func (f *fakeAPI) ListVariants(ctx context.Context, externalID string) ([]supplier.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.variants[externalID], nil
}

func (f *fakeAPI) GetProductStock(ctx context.Context, externalID string) ([]supplier.AreaStock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stocks[externalID], nil
}

func (f *fakeAPI) ListReviews(ctx context.Context, externalID string, pageSize int) ([]supplier.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reviews[externalID], nil
}

func (f *fakeAPI) ListCategories(ctx context.Context) ([]supplier.CategoryNode, error) {
	return f.categories, nil
}

func (f *fakeAPI) ListWarehouses(ctx context.Context) ([]supplier.Warehouse, error) {
	return f.warehouses, nil
}

var _ CatalogAPI = (*fakeAPI)(nil)

// memSnapshots is an in-memory SnapshotRepository.
type memSnapshots struct {
	mu       sync.Mutex
	listings map[string]supplier.ListingSnapshot
	variants map[string]supplier.VariantSnapshot
	stocks   map[string]supplier.StockSnapshot
	reviews  map[string]supplier.ReviewSnapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{
		listings: map[string]supplier.ListingSnapshot{},
		variants: map[string]supplier.VariantSnapshot{},
		stocks:   map[string]supplier.StockSnapshot{},
		reviews:  map[string]supplier.ReviewSnapshot{},
	}
}

func (m *memSnapshots) SaveListing(ctx context.Context, snap *supplier.ListingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[snap.ExternalID] = *snap
	return nil
}

func (m *memSnapshots) SaveVariants(ctx context.Context, snaps []supplier.VariantSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		m.variants[s.VariantID] = s
	}
	return nil
}

func (m *memSnapshots) SaveStocks(ctx context.Context, snaps []supplier.StockSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		m.stocks[s.OwnerID+"/"+s.AreaID] = s
	}
	return nil
}

func (m *memSnapshots) SaveReviews(ctx context.Context, snaps []supplier.ReviewSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		m.reviews[s.ReviewID] = s
	}
	return nil
}

var _ supplier.SnapshotRepository = (*memSnapshots)(nil)

// memRefs is an in-memory ReferenceRepository.
type memRefs struct {
	mu         sync.Mutex
	categories map[string]supplier.CategoryRef
	warehouses map[string]supplier.WarehouseRef
}

func newMemRefs() *memRefs {
	return &memRefs{
		categories: map[string]supplier.CategoryRef{},
		warehouses: map[string]supplier.WarehouseRef{},
	}
}

func (m *memRefs) SaveCategories(ctx context.Context, refs []supplier.CategoryRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range refs {
		m.categories[r.CategoryID] = r
	}
	return nil
}

func (m *memRefs) SaveWarehouses(ctx context.Context, refs []supplier.WarehouseRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range refs {
		m.warehouses[r.WarehouseID] = r
	}
	return nil
}

func (m *memRefs) FindCategory(ctx context.Context, categoryID string) (*supplier.CategoryRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.categories[categoryID]; ok {
		return &r, nil
	}
	return nil, shared.ErrNotFound
}

func (m *memRefs) FindWarehouse(ctx context.Context, warehouseID string) (*supplier.WarehouseRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.warehouses[warehouseID]; ok {
		return &r, nil
	}
	return nil, shared.ErrNotFound
}

var _ supplier.ReferenceRepository = (*memRefs)(nil)

// memProducts is an in-memory ProductRepository.
type memProducts struct {
	mu    sync.Mutex
	items map[string]*catalog.Product
}

func newMemProducts() *memProducts {
	return &memProducts{items: map[string]*catalog.Product{}}
}

func (m *memProducts) Upsert(ctx context.Context, product *catalog.Product, policy catalog.UpdatePolicy) error {
	if err := product.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *product
	m.items[product.Supplier+"/"+product.ExternalID] = &clone
	return nil
}

func (m *memProducts) FindBySupplierExternalID(ctx context.Context, sup, externalID string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.items[sup+"/"+externalID]; ok {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (m *memProducts) CountBySupplier(ctx context.Context, sup string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key := range m.items {
		if strings.HasPrefix(key, sup+"/") {
			n++
		}
	}
	return n, nil
}

var _ catalog.ProductRepository = (*memProducts)(nil)

// memCache is an in-memory SyncCache.
type memCache struct {
	mu            sync.Mutex
	quota         float64
	hasQuota      bool
	setQuotaCalls int
	lastSummary   *supplier.Summary
}

func (m *memCache) GetQuota(ctx context.Context) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quota, m.hasQuota, nil
}

func (m *memCache) SetQuota(ctx context.Context, rps float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = rps
	m.hasQuota = true
	m.setQuotaCalls++
	return nil
}

func (m *memCache) SetLastSummary(ctx context.Context, summary *supplier.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSummary = summary
	return nil
}

func (m *memCache) GetLastSummary(ctx context.Context) (*supplier.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSummary, nil
}

var _ SyncCache = (*memCache)(nil)

type testHarness struct {
	api       *fakeAPI
	snapshots *memSnapshots
	refs      *memRefs
	products  *memProducts
	cache     *memCache
	service   *Service
}

func newHarness(api *fakeAPI, cache *memCache) *testHarness {
	logger := zap.NewNop()
	snapshots := newMemSnapshots()
	refs := newMemRefs()
	products := newMemProducts()
	enricher := NewEnricher(api, snapshots, logger)

	var syncCache SyncCache
	if cache != nil {
		syncCache = cache
	}

	return &testHarness{
		api:       api,
		snapshots: snapshots,
		refs:      refs,
		products:  products,
		cache:     cache,
		service:   NewService(api, enricher, products, refs, syncCache, nil, Options{}, logger),
	}
}

func listingFor(pid string, inventory int) supplier.RawListing {
	return supplier.RawListing{
		ExternalID:     pid,
		Name:           "Item " + pid,
		SKU:            "SKU-" + pid,
		SellPrice:      "10.00",
		TotalInventory: inventory,
		CategoryID:     "C-1",
		CategoryName:   "Stuff",
	}
}

func pageOf(pageNum, totalPages int, listings ...supplier.RawListing) *supplier.ProductPage {
	return &supplier.ProductPage{
		PageNum:    pageNum,
		PageSize:   supplier.DefaultPageSize,
		TotalPages: totalPages,
		List:       listings,
	}
}

func TestServiceRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should issue exactly totalPages requests per country", func(t *testing.T) {
		api := newFakeAPI()
		api.pages["US"] = []*supplier.ProductPage{
			pageOf(1, 3, listingFor("P-1", 10)),
			pageOf(2, 3, listingFor("P-2", 10)),
			pageOf(3, 3, listingFor("P-3", 10)),
		}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})

		require.NoError(t, err)
		assert.Equal(t, []string{"US:1", "US:2", "US:3"}, api.listCalls)
		assert.Equal(t, 3, summary.PagesProcessed)
		assert.Equal(t, 3, summary.ProductUpserts)
	})

	t.Run("should share the page cap across country codes", func(t *testing.T) {
		api := newFakeAPI()
		api.pages["US"] = []*supplier.ProductPage{
			pageOf(1, 2, listingFor("P-1", 10)),
			pageOf(2, 2, listingFor("P-2", 10)),
		}
		api.pages["DE"] = []*supplier.ProductPage{
			pageOf(1, 2, listingFor("P-3", 10)),
			pageOf(2, 2, listingFor("P-4", 10)),
		}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{
			CountryCodes: []string{"US", "DE"},
			MaxPages:     3,
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"US:1", "US:2", "DE:1"}, api.listCalls)
		assert.Equal(t, 3, summary.PagesProcessed)
	})

	t.Run("should skip listings below the inventory threshold", func(t *testing.T) {
		api := newFakeAPI()
		api.pages["US"] = []*supplier.ProductPage{
			pageOf(1, 1, listingFor("P-LOW", 2), listingFor("P-OK", 50)),
		}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{
			CountryCodes:            []string{"US"},
			StartInventoryThreshold: 5,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, summary.RawProducts)
		assert.Equal(t, 1, summary.ProductUpserts)
		_, err = h.products.FindBySupplierExternalID(ctx, supplier.Name, "P-LOW")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("should skip excluded categories", func(t *testing.T) {
		api := newFakeAPI()
		excluded := listingFor("P-X", 10)
		excluded.CategoryID = "C-BAN"
		api.pages["US"] = []*supplier.ProductPage{
			pageOf(1, 1, excluded, listingFor("P-OK", 10)),
		}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{
			CountryCodes:       []string{"US"},
			ExcludeCategoryIDs: []string{"C-BAN"},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, summary.RawProducts)
		assert.Equal(t, 1, summary.ProductUpserts)
	})

	t.Run("should reject a second run while one is active", func(t *testing.T) {
		api := newFakeAPI()
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 1, listingFor("P-1", 10))}
		api.listGate = make(chan struct{})
		api.listStarted = make(chan struct{})
		h := newHarness(api, nil)

		done := make(chan error, 1)
		go func() {
			_, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})
			done <- err
		}()

		<-api.listStarted
		_, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})
		assert.ErrorIs(t, err, shared.ErrSyncInProgress)

		close(api.listGate)
		require.NoError(t, <-done)

		// The slot frees up once the first run completes.
		_, err = h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})
		assert.NoError(t, err)
	})

	t.Run("should prefer the cached quota over a settings call", func(t *testing.T) {
		api := newFakeAPI()
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 1)}
		cache := &memCache{quota: 7, hasQuota: true}
		h := newHarness(api, cache)

		_, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})

		require.NoError(t, err)
		assert.Equal(t, 0, api.fetchQuotaCalls)
		assert.Equal(t, []float64{7}, api.appliedRPS)
	})

	t.Run("should fetch and cache the quota on a cache miss", func(t *testing.T) {
		api := newFakeAPI()
		api.quota = 4
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 1)}
		cache := &memCache{}
		h := newHarness(api, cache)

		_, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})

		require.NoError(t, err)
		assert.Equal(t, 1, api.fetchQuotaCalls)
		assert.Equal(t, []float64{4}, api.appliedRPS)
		assert.Equal(t, 1, cache.setQuotaCalls)
		assert.Equal(t, float64(4), cache.quota)
	})

	t.Run("should keep the fallback rate when the quota fetch fails", func(t *testing.T) {
		api := newFakeAPI()
		api.quotaErr = errors.New("settings endpoint down")
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 1, listingFor("P-1", 10))}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})

		require.NoError(t, err)
		assert.Empty(t, api.appliedRPS)
		assert.Equal(t, 1, summary.ProductUpserts)
	})

	t.Run("should proceed when the credential refresh fails", func(t *testing.T) {
		api := newFakeAPI()
		api.refreshErr = errors.New("refresh endpoint down")
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 1, listingFor("P-1", 10))}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})

		require.NoError(t, err)
		assert.Equal(t, 1, api.refreshCalls)
		assert.Equal(t, 1, summary.ProductUpserts)
	})

	t.Run("should continue with the next country after a page failure", func(t *testing.T) {
		api := newFakeAPI()
		api.listErr["US"] = errors.New("supplier hiccup")
		api.pages["DE"] = []*supplier.ProductPage{pageOf(1, 1, listingFor("P-DE", 10))}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US", "DE"}})

		require.NoError(t, err)
		assert.Equal(t, 1, summary.PagesProcessed)
		assert.Equal(t, 1, summary.ProductUpserts)
	})

	t.Run("should accumulate counters and persist snapshots", func(t *testing.T) {
		api := newFakeAPI()
		listing := listingFor("P-1", 10)
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 1, listing)}
		api.details["P-1"] = &supplier.DetailRecord{
			ExternalID:  "P-1",
			Name:        "Detailed Item",
			Description: "Long form",
			SellPrice:   "10.00",
			CostPrice:   "6.00",
		}
		api.variants["P-1"] = []supplier.Variant{
			{VariantID: "V-1", ProductID: "P-1", SKU: "SKU-V1", SellPrice: "10.00",
				Stocks: []supplier.CountryStock{{VariantID: "V-1", CountryCode: "US", TotalInventory: 3}}},
			{VariantID: "V-2", ProductID: "P-1", SKU: "SKU-V2", SellPrice: "11.00"},
		}
		api.stocks["P-1"] = []supplier.AreaStock{{AreaID: "W-1", AreaName: "US East", TotalInventory: 9}}
		api.reviews["P-1"] = []supplier.Review{
			{ReviewID: "R-1", ProductID: "P-1", Score: 5, Comment: "great"},
			{ReviewID: "R-2", ProductID: "P-1", Score: 4, Comment: "fine"},
		}
		api.categories = []supplier.CategoryNode{{ID: "C-1", Name: "Stuff Proper"}}
		api.warehouses = []supplier.Warehouse{{WarehouseID: "W-1", Code: "USE", CountryCode: "US", Name: "US Eastern"}}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})

		require.NoError(t, err)
		assert.Equal(t, 1, summary.RawProducts)
		assert.Equal(t, 2, summary.RawVariants)
		assert.Equal(t, 2, summary.RawStocks)
		assert.Equal(t, 2, summary.RawComments)
		assert.Equal(t, 1, summary.ProductUpserts)

		assert.Contains(t, h.snapshots.listings, "P-1")
		assert.Len(t, h.snapshots.variants, 2)
		assert.Len(t, h.snapshots.reviews, 2)
		assert.Contains(t, h.snapshots.stocks, "P-1/W-1")
		assert.Contains(t, h.snapshots.stocks, "V-1/US")

		product, err := h.products.FindBySupplierExternalID(ctx, supplier.Name, "P-1")
		require.NoError(t, err)
		assert.Equal(t, "Detailed Item", product.Title)
		assert.Equal(t, 9, product.StockCount)
		assert.Equal(t, "Stuff Proper", product.CategoryName)
		assert.Equal(t, "USE", product.WarehouseCode)
		require.NotNil(t, product.CostPrice)
	})

	t.Run("should drop priceless items without failing the run", func(t *testing.T) {
		api := newFakeAPI()
		priceless := listingFor("P-FREE", 10)
		priceless.SellPrice = ""
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 1, priceless, listingFor("P-OK", 10))}
		h := newHarness(api, nil)

		summary, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})

		require.NoError(t, err)
		assert.Equal(t, 2, summary.RawProducts)
		assert.Equal(t, 1, summary.ProductUpserts)
		// The raw listing is still snapshotted for auditing.
		assert.Contains(t, h.snapshots.listings, "P-FREE")
	})

	t.Run("should stop at cancellation", func(t *testing.T) {
		api := newFakeAPI()
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 2, listingFor("P-1", 10))}
		h := newHarness(api, nil)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := h.service.Run(cancelled, supplier.Config{CountryCodes: []string{"US"}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestServiceStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("should report idle with no history", func(t *testing.T) {
		h := newHarness(newFakeAPI(), nil)

		running, last := h.service.Status(ctx)

		assert.False(t, running)
		assert.Nil(t, last)
	})

	t.Run("should expose the last completed summary", func(t *testing.T) {
		api := newFakeAPI()
		api.pages["US"] = []*supplier.ProductPage{pageOf(1, 1, listingFor("P-1", 10))}
		h := newHarness(api, nil)

		_, err := h.service.Run(ctx, supplier.Config{CountryCodes: []string{"US"}})
		require.NoError(t, err)

		running, last := h.service.Status(ctx)
		assert.False(t, running)
		require.NotNil(t, last)
		assert.Equal(t, 1, last.ProductUpserts)
	})

	t.Run("should fall back to the cached summary after restart", func(t *testing.T) {
		cache := &memCache{lastSummary: &supplier.Summary{ProductUpserts: 12}}
		h := newHarness(newFakeAPI(), cache)

		_, last := h.service.Status(ctx)

		require.NotNil(t, last)
		assert.Equal(t, 12, last.ProductUpserts)
	})
}
