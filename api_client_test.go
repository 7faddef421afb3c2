package elementorder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFetchOrdersEndpoint(t *testing.T) {
	endpoint := BuildFetchOrdersEndpoint(FetchOrdersParams{
		Chain:        "eth",
		Side:         OrderSideSell,
		OrderBy:      "created_at",
		Direction:    "desc",
		ListedBefore: 1700000000,
		Limit:        50,
	})

	parsed, err := url.Parse(endpoint)
	require.NoError(t, err)
	assert.Equal(t, "/orders/list", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "eth", query.Get("chain"))
	assert.Equal(t, "1", query.Get("side"))
	assert.Equal(t, "50", query.Get("limit"))
	assert.Equal(t, "1700000000", query.Get("listed_before"))
	assert.Empty(t, query.Get("listed_after"))
	assert.Empty(t, query.Get("payment_token"))

	parsed, err = url.Parse(BuildFetchOrdersEndpoint(FetchOrdersParams{Side: OrderSideBuy}))
	require.NoError(t, err)
	assert.Equal(t, "0", parsed.Query().Get("side"))
	assert.Empty(t, parsed.Query().Get("limit"))
}

func TestAPIClient_FetchOrders(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "/orders/list", r.URL.Path)
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"msg":"","data":{"orders":[
			{"orderHash":"0xabc","side":0,"saleKind":0,"createTime":1700000001},
			{"orderHash":"0xdef","side":1,"saleKind":3,"createTime":"1700000000","quantity":null}
		]}}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "test-key", time.Second)
	orders, err := client.FetchOrders(context.Background(), FetchOrdersParams{Chain: "eth", Side: OrderSideBuy, Limit: 2})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "0", gotQuery.Get("side"))
	assert.Equal(t, "2", gotQuery.Get("limit"))
	assert.Equal(t, "0xabc", orders[0].OrderHash)
	assert.Equal(t, 1, orders[1].Side)
	assert.Equal(t, "1700000001", string(orders[0].CreateTime))
	assert.Equal(t, "1700000000", string(orders[1].CreateTime))
	assert.Empty(t, string(orders[1].Quantity))
}

func TestAPIClient_FetchOrdersErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http status", status: http.StatusInternalServerError, body: "upstream failure"},
		{name: "api code", status: http.StatusOK, body: `{"code":1001,"msg":"invalid api key"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewAPIClient(server.URL, "", time.Second).FetchOrders(context.Background(), FetchOrdersParams{})
			require.Error(t, err)
			var apiErr *OpenAPIError
			assert.True(t, errors.As(err, &apiErr))
		})
	}
}

func TestAPIClient_FetchOrdersLimit(t *testing.T) {
	client := NewAPIClient("http://127.0.0.1:1", "", time.Second)
	_, err := client.FetchOrders(context.Background(), FetchOrdersParams{Limit: MaxFetchLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidParam)
}
