package elementorder

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/kaifufi/element-order-sdk-go/chain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	orders []*FetchedOrder
	err    error
	params FetchOrdersParams
}

func (f *fakeSource) FetchOrders(ctx context.Context, params FetchOrdersParams) ([]*FetchedOrder, error) {
	f.params = params
	return f.orders, f.err
}

type fakeSink struct {
	mu     sync.Mutex
	orders []QueuedOrder
}

func (f *fakeSink) Push(ctx context.Context, orders []QueuedOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, orders...)
	return nil
}

type fakeSubmitter struct {
	signer   common.Address
	sent     []*types.Transaction
	reverted bool
}

func (f *fakeSubmitter) GetSignerAddress() common.Address {
	return f.signer
}

func (f *fakeSubmitter) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    uint64(len(f.sent)),
		To:       &to,
		Value:    value,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
	f.sent = append(f.sent, tx)
	return tx, nil
}

func (f *fakeSubmitter) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt := &types.Receipt{TxHash: txHash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}
	if f.reverted {
		receipt.Status = types.ReceiptStatusFailed
	}
	return receipt, nil
}

type fakeSubscription struct {
	errCh chan error
}

func (s *fakeSubscription) Unsubscribe()      {}
func (s *fakeSubscription) Err() <-chan error { return s.errCh }

type fakeWatcher struct {
	logs []types.Log
	sub  *fakeSubscription
}

func (f *fakeWatcher) SubscribeLogs(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error) {
	go func() {
		for _, log := range f.logs {
			select {
			case ch <- log:
			case <-ctx.Done():
				return
			}
		}
	}()
	return f.sub, nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// toFetched renders a signed standard order the way the order book serves it
func toFetched(t *testing.T, order *Order, createTime int64) *FetchedOrder {
	t.Helper()
	data, err := order.StandardData()
	require.NoError(t, err)
	gross, err := GetRawERC20Amount(order)
	require.NoError(t, err)

	fees := make([]map[string]interface{}, 0, len(data.Fees))
	for _, fee := range data.Fees {
		fees = append(fees, map[string]interface{}{
			"recipient": fee.Recipient,
			"amount":    fee.Amount.String(),
			"feeData":   fee.FeeData,
		})
	}
	wire := map[string]interface{}{
		"nonce":              order.Nonce.String(),
		"hashNonce":          copyBig(order.HashNonce).String(),
		"erc20TokenAmount":   gross.String(),
		"erc1155TokenAmount": order.NFTAmount.String(),
		"fees":               fees,
	}

	side := 1
	if order.Side == OrderSideBuy {
		side = 0
	}
	return &FetchedOrder{
		CreateTime:      flexString(strconv.FormatInt(createTime, 10)),
		ListingTime:     flexString(strconv.FormatInt(order.ListingTime, 10)),
		ExpirationTime:  flexString(strconv.FormatInt(order.ExpirationTime, 10)),
		OrderHash:       order.Hash,
		Maker:           order.Maker,
		Taker:           order.Taker,
		Side:            side,
		SaleKind:        int(order.Kind),
		PaymentToken:    ToRawERC20Token(order.Currency),
		Schema:          string(order.Schema),
		ContractAddress: order.NFTAddress,
		TokenID:         flexString(order.NFTID.String()),
		Quantity:        flexString(order.NFTAmount.String()),
		ExchangeData: mustJSON(t, map[string]interface{}{
			"order": wire,
			"signature": map[string]interface{}{
				"signatureType": 0,
				"v":             order.V,
				"r":             order.R.Hex(),
				"s":             order.S.Hex(),
			},
		}),
	}
}

func newTestClient(t *testing.T, config ClientConfig, opts ...Option) *Client {
	t.Helper()
	if config.ChainID == 0 {
		config.ChainID = ChainIDEthereum
	}
	opts = append([]Option{WithLogger(testLogger()), WithOrderSource(&fakeSource{})}, opts...)
	client, err := NewClient(config, opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{ChainID: ChainID(999)})
	assert.ErrorIs(t, err, ErrUnsupportedChain)

	_, err = NewClient(ClientConfig{ChainID: ChainIDEthereum, FetchLimit: MaxFetchLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = NewClient(ClientConfig{ChainID: ChainIDEthereum, CheckFillability: true})
	assert.ErrorIs(t, err, ErrInvalidParam)

	client, err := NewClient(ClientConfig{ChainID: ChainIDEthereum, CheckFillability: true},
		WithLogger(testLogger()), WithChainStateReader(&fakeChainState{}))
	require.NoError(t, err)
	assert.Equal(t, "eth", client.Network().APIChain)
	client.Close()
}

func TestClient_ProcessOrders(t *testing.T) {
	builder, _ := newTestBuilder(t)
	valid, err := builder.BuildOrder(newTestRequest(OrderSideSell, SchemaERC721))
	require.NoError(t, err)
	forged, err := builder.BuildOrder(newTestRequest(OrderSideBuy, SchemaERC1155))
	require.NoError(t, err)

	auction := toFetched(t, valid, 1)
	auction.SaleKind = int(OrderKindDutchAuction)

	unparsable := toFetched(t, valid, 1)
	unparsable.OrderHash = "0x01"

	invalid := toFetched(t, forged, 1)
	invalid.Maker = testMaker

	metrics := NewMetrics()
	client := newTestClient(t, ClientConfig{}, WithMetrics(metrics))

	results, err := client.ProcessOrders(context.Background(), []*FetchedOrder{
		toFetched(t, valid, 1), auction, unparsable, invalid, nil,
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, OutcomeAccepted, results[0].Outcome)
	assert.Equal(t, valid.ID, results[0].Order.ID)
	assert.Equal(t, "925", results[0].Order.Price.String())
	assert.Equal(t, OutcomeSkipped, results[1].Outcome)
	assert.Equal(t, OutcomeParseError, results[2].Outcome)
	assert.ErrorIs(t, results[2].Err, ErrParse)
	assert.Equal(t, OutcomeInvalid, results[3].Outcome)
	assert.ErrorIs(t, results[3].Err, ErrInvalidSignature)
	assert.Equal(t, OutcomeParseError, results[4].Outcome)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OrdersProcessed.WithLabelValues("fixed_price", OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OrdersProcessed.WithLabelValues("dutch_auction", OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OrdersProcessed.WithLabelValues("fixed_price", OutcomeInvalid)))
}

func TestClient_ProcessOrdersChecksFillability(t *testing.T) {
	builder, _ := newTestBuilder(t)
	var fetched []*FetchedOrder
	for i := 0; i < 4; i++ {
		req := newTestRequest(OrderSideSell, SchemaERC721)
		req.Nonce = big.NewInt(int64(i))
		if i%2 == 1 {
			req.HashNonce = big.NewInt(1)
		}
		order, err := builder.BuildOrder(req)
		require.NoError(t, err)
		fetched = append(fetched, toFetched(t, order, int64(i)))
	}

	reader := &fakeChainState{hashNonce: big.NewInt(0), bitVector: new(big.Int)}
	client := newTestClient(t, ClientConfig{CheckFillability: true, CheckConcurrency: 2}, WithChainStateReader(reader))

	results, err := client.ProcessOrders(context.Background(), fetched)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, result := range results {
		if i%2 == 1 {
			assert.Equal(t, OutcomeNotFillable, result.Outcome, "order %d", i)
			assert.ErrorIs(t, result.Err, ErrNotFillable)
		} else {
			assert.Equal(t, OutcomeAccepted, result.Outcome, "order %d", i)
		}
	}
}

func TestClient_ProcessOrdersCheckFailure(t *testing.T) {
	builder, _ := newTestBuilder(t)
	order, err := builder.BuildOrder(newTestRequest(OrderSideSell, SchemaERC721))
	require.NoError(t, err)

	reader := &fakeChainState{err: errors.New("rpc unavailable")}
	client := newTestClient(t, ClientConfig{CheckFillability: true}, WithChainStateReader(reader))

	results, err := client.ProcessOrders(context.Background(), []*FetchedOrder{toFetched(t, order, 1)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCheckFailure, results[0].Outcome)
}

func TestClient_FetchOrders(t *testing.T) {
	builder, _ := newTestBuilder(t)
	first, err := builder.BuildOrder(newTestRequest(OrderSideSell, SchemaERC721))
	require.NoError(t, err)
	req := newTestRequest(OrderSideSell, SchemaERC1155)
	req.NFTAmount = big.NewInt(2)
	second, err := builder.BuildOrder(req)
	require.NoError(t, err)

	source := &fakeSource{orders: []*FetchedOrder{toFetched(t, first, 1700000200), toFetched(t, second, 1700000100)}}
	sink := &fakeSink{}
	client := newTestClient(t, ClientConfig{}, WithOrderSource(source), WithOrderSink(sink))

	result, err := client.FetchOrders(context.Background(), OrderSideSell, 1700000300)
	require.NoError(t, err)

	assert.Equal(t, "eth", source.params.Chain)
	assert.Equal(t, OrderSideSell, source.params.Side)
	assert.Equal(t, int64(1700000300), source.params.ListedBefore)
	assert.Equal(t, "created_at", source.params.OrderBy)
	assert.Equal(t, "desc", source.params.Direction)
	assert.Equal(t, MaxFetchLimit, source.params.Limit)

	assert.Equal(t, int64(1700000200), result.Cursor)
	require.Len(t, result.Accepted, 2)
	require.Len(t, sink.orders, 2)

	queued := sink.orders[0]
	assert.Equal(t, first.ID, queued.ID)
	assert.Equal(t, testNFT, queued.Target)
	assert.Equal(t, builder.Maker(), queued.Maker)
	assert.Equal(t, int64(1700000200), queued.CreatedAt)
	assert.Equal(t, QueueSource, queued.Source)
	assert.Equal(t, first.Hash, queued.Data.Hash)
}

func TestClient_FetchOrdersEmptyPageKeepsCursor(t *testing.T) {
	client := newTestClient(t, ClientConfig{}, WithOrderSource(&fakeSource{}))

	result, err := client.FetchOrders(context.Background(), OrderSideBuy, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Cursor)
	assert.Empty(t, result.Accepted)
}

func TestClient_FetchOrdersSourceError(t *testing.T) {
	metrics := NewMetrics()
	client := newTestClient(t, ClientConfig{}, WithMetrics(metrics),
		WithOrderSource(&fakeSource{err: &OpenAPIError{Message: "HTTP 500"}}))

	_, err := client.FetchOrders(context.Background(), OrderSideSell, 0)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchErrors))
}

func TestClient_HandleStreamOrder(t *testing.T) {
	builder, _ := newTestBuilder(t)
	order, err := builder.BuildOrder(newTestRequest(OrderSideBuy, SchemaERC721))
	require.NoError(t, err)

	sink := &fakeSink{}
	client := newTestClient(t, ClientConfig{}, WithOrderSink(sink))

	result, err := client.HandleStreamOrder(context.Background(), &StreamEvent{Channel: ChannelOrderOffer}, toFetched(t, order, 5))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, OutcomeAccepted, result.Outcome)
	require.Len(t, sink.orders, 1)

	result, err = client.HandleStreamOrder(context.Background(), &StreamEvent{Channel: ChannelOrderCancelled}, toFetched(t, order, 5))
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Len(t, sink.orders, 1)
}

func TestClient_Submission(t *testing.T) {
	builder, _ := newTestBuilder(t)
	sell, err := builder.BuildOrder(newTestRequest(OrderSideSell, SchemaERC721))
	require.NoError(t, err)
	req := newTestRequest(OrderSideSell, SchemaERC1155)
	req.NFTAmount = big.NewInt(2)
	erc1155, err := builder.BuildOrder(req)
	require.NoError(t, err)

	submitter := &fakeSubmitter{signer: common.HexToAddress(testTaker)}
	metrics := NewMetrics()
	client := newTestClient(t, ClientConfig{}, WithTransactionSubmitter(submitter), WithMetrics(metrics))

	result, err := client.FillOrder(context.Background(), sell, MatchParams{})
	require.NoError(t, err)
	assert.Equal(t, "buyERC721Ex", result.Method)
	// 1000 signed plus 75 of fees
	assert.Equal(t, "1075", result.Value)
	assert.Len(t, result.TxHash, 66)

	results, err := client.CancelOrders(context.Background(), []*Order{erc1155, sell})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "batchCancelERC721Orders", results[0].Method)
	assert.Equal(t, "batchCancelERC1155Orders", results[1].Method)

	result, err = client.IncrementHashNonce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", result.Value)

	require.Len(t, submitter.sent, 4)
	assert.Equal(t, client.Exchange().Address(), *submitter.sent[0].To())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SubmittedCalls.WithLabelValues("buyERC721Ex")))

	_, err = client.CancelOrders(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestClient_SubmissionRequiresSubmitter(t *testing.T) {
	client := newTestClient(t, ClientConfig{})

	_, err := client.IncrementHashNonce(context.Background())
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = client.FilterEvents(context.Background(), big.NewInt(1), big.NewInt(2))
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestClient_WaitForTransaction(t *testing.T) {
	submitter := &fakeSubmitter{signer: common.HexToAddress(testTaker)}
	client := newTestClient(t, ClientConfig{}, WithTransactionSubmitter(submitter))

	result, err := client.IncrementHashNonce(context.Background())
	require.NoError(t, err)

	receipt, err := client.WaitForTransaction(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, result.TxHash, strings.ToLower(receipt.TxHash.Hex()))

	submitter.reverted = true
	receipt, err = client.WaitForTransaction(context.Background(), result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
	assert.NotNil(t, receipt)
}

func TestClient_WatchEvents(t *testing.T) {
	exchange := common.HexToAddress(DefaultNetworks()[ChainIDEthereum].Exchange)
	bad := newEventLog(t, exchange, EventHashNonceIncremented, common.HexToAddress(testMaker), big.NewInt(1))
	bad.Data = bad.Data[:8]
	watcher := &fakeWatcher{
		sub: &fakeSubscription{errCh: make(chan error)},
		logs: []types.Log{
			bad,
			newEventLog(t, common.HexToAddress(testNFT), EventERC721OrderCancelled, common.HexToAddress(testMaker), big.NewInt(1)),
			newEventLog(t, exchange, EventERC721OrderCancelled, common.HexToAddress(testMaker), big.NewInt(2)),
			newEventLog(t, exchange, EventHashNonceIncremented, common.HexToAddress(testMaker), big.NewInt(3)),
		},
	}
	metrics := NewMetrics()
	client := newTestClient(t, ClientConfig{}, WithLogSubscriber(watcher), WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []*ExchangeEvent
	err := client.WatchEvents(ctx, func(event *ExchangeEvent) {
		events = append(events, event)
		if len(events) == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].Cancelled.Nonce.String())
	assert.Equal(t, "3", events[1].HashNonceIncreased.HashNonce.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExchangeEvents.WithLabelValues(EventERC721OrderCancelled)))

	failing := &fakeWatcher{sub: &fakeSubscription{errCh: make(chan error, 1)}}
	failing.sub.errCh <- errors.New("connection lost")
	client = newTestClient(t, ClientConfig{}, WithLogSubscriber(failing))
	err = client.WatchEvents(context.Background(), func(*ExchangeEvent) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")

	err = newTestClient(t, ClientConfig{}).WatchEvents(context.Background(), func(*ExchangeEvent) {})
	assert.ErrorIs(t, err, ErrInvalidParam)
}

type fakeFilterer struct {
	logs []types.Log
	from *big.Int
}

func (f *fakeFilterer) FilterLogs(ctx context.Context, fromBlock, toBlock *big.Int) ([]types.Log, error) {
	f.from = fromBlock
	return f.logs, nil
}

func TestClient_FilterEvents(t *testing.T) {
	exchange := common.HexToAddress(DefaultNetworks()[ChainIDEthereum].Exchange)
	filterer := &fakeFilterer{logs: []types.Log{
		newEventLog(t, exchange, EventERC721OrderCancelled, common.HexToAddress(testMaker), big.NewInt(4)),
	}}
	client := newTestClient(t, ClientConfig{}, WithLogFilterer(filterer))

	events, err := client.FilterEvents(context.Background(), big.NewInt(100), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "100", filterer.from.String())
	assert.Equal(t, SchemaERC721, events[0].Cancelled.Schema)
}

type fixedSignerVerifier struct {
	chainVerifier TypedDataVerifier
	signer        common.Address
}

func (f fixedSignerVerifier) HashTypedData(typedData apitypes.TypedData) (common.Hash, error) {
	return f.chainVerifier.HashTypedData(typedData)
}

func (f fixedSignerVerifier) RecoverSigner(typedData apitypes.TypedData, v uint8, r, s common.Hash) (common.Address, error) {
	return f.signer, nil
}

func TestClient_WithVerifier(t *testing.T) {
	builder, _ := newTestBuilder(t)
	order, err := builder.BuildOrder(newTestRequest(OrderSideSell, SchemaERC721))
	require.NoError(t, err)

	verifier := fixedSignerVerifier{chainVerifier: chain.EIP712Verifier{}, signer: common.HexToAddress(testTaker)}
	client := newTestClient(t, ClientConfig{}, WithVerifier(verifier))

	results, err := client.ProcessOrders(context.Background(), []*FetchedOrder{toFetched(t, order, 1)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeInvalid, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, ErrInvalidSignature)
}
