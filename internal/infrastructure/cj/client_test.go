package cj

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		BaseURL:        baseURL,
		AccessToken:    "test-token",
		RefreshToken:   "refresh-token",
		FallbackRPS:    1000, // effectively unthrottled for tests
		RetryBaseDelay: 20 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func okEnvelope(data string) string {
	return fmt.Sprintf(`{"code":200,"result":true,"message":"ok","data":%s}`, data)
}

func TestNewClient_Validation(t *testing.T) {
	t.Run("missing base url", func(t *testing.T) {
		_, err := NewClient(&Config{AccessToken: "t"}, zap.NewNop())
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("missing access token", func(t *testing.T) {
		_, err := NewClient(&Config{BaseURL: "https://api.example.com"}, zap.NewNop())
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestClient_RateLimitBackoff(t *testing.T) {
	t.Run("two 429s then success", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, okEnvelope(`{"qpsLimit":3}`))
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		start := time.Now()
		rps, err := client.FetchQuota(context.Background())
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, 3.0, rps)
		assert.Equal(t, int32(3), calls.Load())
		// Delays double: 20ms then 40ms, so the call cannot finish in
		// under 60ms.
		assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	})

	t.Run("retry ceiling exhausted", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		_, err := client.FetchQuota(context.Background())

		assert.ErrorIs(t, err, ErrQuotaExhausted)
		assert.Equal(t, int32(maxAttempts), calls.Load())
	})

	t.Run("rate limit callback fires once per 429", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, okEnvelope(`{"qpsLimit":3}`))
		}))
		defer server.Close()

		var hits atomic.Int32
		client := testClient(t, server.URL)
		client.SetRateLimitCallback(func() { hits.Add(1) })

		_, err := client.FetchQuota(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("callback counts the exhausting 429 too", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		var hits atomic.Int32
		client := testClient(t, server.URL)
		client.SetRateLimitCallback(func() { hits.Add(1) })

		_, err := client.FetchQuota(context.Background())

		assert.ErrorIs(t, err, ErrQuotaExhausted)
		assert.Equal(t, int32(maxAttempts), hits.Load())
	})

	t.Run("non-429 error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		_, err := client.FetchQuota(context.Background())

		assert.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_EnvelopeHandling(t *testing.T) {
	t.Run("supplier-level failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"code":1600200,"result":false,"message":"quota used up"}`)
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		_, err := client.FetchQuota(context.Background())

		require.ErrorIs(t, err, ErrRequestFailed)
		assert.Contains(t, err.Error(), "quota used up")
	})

	t.Run("sends access token header", func(t *testing.T) {
		var gotToken string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotToken = r.Header.Get("CJ-Access-Token")
			fmt.Fprint(w, okEnvelope(`{"qpsLimit":1}`))
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		_, err := client.FetchQuota(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "test-token", gotToken)
	})
}

func TestClient_RefreshAccessToken(t *testing.T) {
	t.Run("installs new token for later calls", func(t *testing.T) {
		var tokens []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokens = append(tokens, r.Header.Get("CJ-Access-Token"))
			if r.URL.Path == "/authentication/refreshAccessToken" {
				fmt.Fprint(w, okEnvelope(`{"accessToken":"fresh-token"}`))
				return
			}
			fmt.Fprint(w, okEnvelope(`{"qpsLimit":1}`))
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		require.NoError(t, client.RefreshAccessToken(context.Background()))
		_, err := client.FetchQuota(context.Background())
		require.NoError(t, err)

		require.Len(t, tokens, 2)
		assert.Equal(t, "test-token", tokens[0])
		assert.Equal(t, "fresh-token", tokens[1])
	})

	t.Run("empty token in response rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, okEnvelope(`{"accessToken":""}`))
		}))
		defer server.Close()

		client := testClient(t, server.URL)
		assert.ErrorIs(t, client.RefreshAccessToken(context.Background()), ErrRequestFailed)
	})

	t.Run("no refresh token configured", func(t *testing.T) {
		client, err := NewClient(&Config{
			BaseURL:     "https://api.example.com",
			AccessToken: "t",
		}, zap.NewNop())
		require.NoError(t, err)
		assert.ErrorIs(t, client.RefreshAccessToken(context.Background()), ErrNotConfigured)
	})
}

func TestClient_ListProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product/list", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("pageNum"))
		assert.Equal(t, "40", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "US", r.URL.Query().Get("countryCode"))
		fmt.Fprint(w, okEnvelope(`{
			"pageNum": 2, "pageSize": 40, "total": 90,
			"list": [
				{"pid": "P-1", "productNameEn": "Blue Mug", "sellPrice": "12.50", "discountPrice": 9.99},
				{"pid": "P-2", "productNameEn": "Red Mug", "sellPrice": 8}
			]
		}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	page, err := client.ListProducts(context.Background(), 2, 40, "US")
	require.NoError(t, err)

	assert.Equal(t, 90, page.Total)
	assert.Equal(t, 3, page.TotalPages) // derived from total/pageSize
	require.Len(t, page.List, 2)
	assert.Equal(t, "P-1", page.List[0].ExternalID)
	assert.EqualValues(t, "9.99", page.List[0].DiscountPrice)
	assert.EqualValues(t, "8", page.List[1].SellPrice)
}

func TestClient_SubResources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/product/query":
			fmt.Fprint(w, okEnvelope(`{"pid":"P-1","productNameEn":"Blue Mug","sellPrice":"11.00","costPrice":"6.40"}`))
		case "/product/variant/query":
			fmt.Fprint(w, okEnvelope(`[{"vid":"V-1","pid":"P-1","variantSku":"SKU-1","variantSellPrice":"11.50",
				"stockList":[{"countryCode":"US","totalInventoryNum":5},{"countryCode":"DE","totalInventoryNum":3}]}]`))
		case "/product/stock/queryByPid":
			fmt.Fprint(w, okEnvelope(`[{"areaId":"W-1","countryCode":"US","totalInventoryNum":8}]`))
		case "/product/comments":
			fmt.Fprint(w, okEnvelope(`{"total":1,"list":[{"commentId":"C-1","pid":"P-1","score":5,"comment":"great"}]}`))
		case "/product/getCategory":
			fmt.Fprint(w, okEnvelope(`[{"categoryId":"1","categoryName":"Apparel","children":[{"categoryId":"11","categoryName":"Hats"}]}]`))
		case "/logistic/warehouse/list":
			fmt.Fprint(w, okEnvelope(`[{"areaId":"W-1","areaEn":"US-East","countryCode":"US","areaName":"US East"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	ctx := context.Background()

	t.Run("detail", func(t *testing.T) {
		detail, err := client.GetProductDetail(ctx, "P-1")
		require.NoError(t, err)
		assert.Equal(t, "P-1", detail.ExternalID)
		assert.EqualValues(t, "6.40", detail.CostPrice)
	})

	t.Run("variants with country stock", func(t *testing.T) {
		variants, err := client.ListVariants(ctx, "P-1")
		require.NoError(t, err)
		require.Len(t, variants, 1)
		assert.Equal(t, "SKU-1", variants[0].SKU)
		require.Len(t, variants[0].Stocks, 2)
		assert.Equal(t, 5, variants[0].Stocks[0].TotalInventory)
	})

	t.Run("product stock", func(t *testing.T) {
		stocks, err := client.GetProductStock(ctx, "P-1")
		require.NoError(t, err)
		require.Len(t, stocks, 1)
		assert.Equal(t, "W-1", stocks[0].AreaID)
	})

	t.Run("reviews", func(t *testing.T) {
		reviews, err := client.ListReviews(ctx, "P-1", 20)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		assert.Equal(t, "C-1", reviews[0].ReviewID)
	})

	t.Run("categories as bare array", func(t *testing.T) {
		categories, err := client.ListCategories(ctx)
		require.NoError(t, err)
		require.Len(t, categories, 1)
		assert.Equal(t, "Apparel", categories[0].Name)
		require.Len(t, categories[0].Children, 1)
	})

	t.Run("warehouses as bare array", func(t *testing.T) {
		warehouses, err := client.ListWarehouses(ctx)
		require.NoError(t, err)
		require.Len(t, warehouses, 1)
		assert.Equal(t, "US-East", warehouses[0].Code)
	})
}
