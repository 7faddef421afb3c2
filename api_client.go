package elementorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultAPIHost is the Element open API. Testnets are not served.
const DefaultAPIHost = "https://api.element.market/openapi/v1"

// MaxFetchLimit is the largest page the order list endpoint returns
const MaxFetchLimit = 50

// FetchOrdersParams filters the order list endpoint
type FetchOrdersParams struct {
	// Chain is the API chain name, see NetworkConfig.APIChain.
	Chain        string
	Side         OrderSide
	PaymentToken string
	// OrderBy is "created_at" or "base_price".
	OrderBy string
	// Direction is "desc" or "asc".
	Direction    string
	ListedBefore int64
	ListedAfter  int64
	Limit        int
}

// OrderSource yields fetched orders
type OrderSource interface {
	FetchOrders(ctx context.Context, params FetchOrdersParams) ([]*FetchedOrder, error)
}

type fetchOrdersResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Orders []*FetchedOrder `json:"orders"`
	} `json:"data"`
}

// APIClient handles HTTP requests to the Element order book API
type APIClient struct {
	host   string
	apiKey string
	client *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(host, apiKey string, timeout time.Duration) *APIClient {
	if host == "" {
		host = DefaultAPIHost
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		host:   host,
		apiKey: apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// doRequest performs an HTTP request
func (c *APIClient) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// decodeJSONResponse reads the response body, checks HTTP status, and decodes JSON
func (c *APIClient) decodeJSONResponse(resp *http.Response, result interface{}) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyStr := string(bodyBytes)
		if bodyStr == "" {
			bodyStr = resp.Status
		}
		return &OpenAPIError{Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bodyStr)}
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		bodyStr := string(bodyBytes)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		return fmt.Errorf("failed to decode JSON response: %w (body: %s)", err, bodyStr)
	}

	return nil
}

// BuildFetchOrdersEndpoint renders the order list path and query
func BuildFetchOrdersEndpoint(params FetchOrdersParams) string {
	query := url.Values{}
	if params.Chain != "" {
		query.Set("chain", params.Chain)
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.ListedAfter > 0 {
		query.Set("listed_after", strconv.FormatInt(params.ListedAfter, 10))
	}
	if params.ListedBefore > 0 {
		query.Set("listed_before", strconv.FormatInt(params.ListedBefore, 10))
	}
	if params.OrderBy != "" {
		query.Set("order_by", params.OrderBy)
	}
	if params.Direction != "" {
		query.Set("direction", params.Direction)
	}
	if params.PaymentToken != "" {
		query.Set("payment_token", params.PaymentToken)
	}
	// The API encodes sell as 1 and buy as 0.
	if params.Side == OrderSideSell {
		query.Set("side", "1")
	} else {
		query.Set("side", "0")
	}
	return "/orders/list?" + query.Encode()
}

// FetchOrders fetches one page of the order list
func (c *APIClient) FetchOrders(ctx context.Context, params FetchOrdersParams) ([]*FetchedOrder, error) {
	if params.Limit < 0 || params.Limit > MaxFetchLimit {
		return nil, &InvalidParamError{Message: fmt.Sprintf("limit must be between 1 and %d", MaxFetchLimit)}
	}

	resp, err := c.doRequest(ctx, http.MethodGet, BuildFetchOrdersEndpoint(params), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result fetchOrdersResponse
	if err := c.decodeJSONResponse(resp, &result); err != nil {
		return nil, err
	}

	if result.Code != 0 {
		return nil, &OpenAPIError{Message: fmt.Sprintf("API error %d: %s", result.Code, result.Msg)}
	}

	return result.Data.Orders, nil
}
