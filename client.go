package elementorder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kaifufi/element-order-sdk-go/chain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// QueueSource tags orders handed to an OrderSink
const QueueSource = "element"

// TransactionSubmitter signs and sends exchange calls
type TransactionSubmitter interface {
	GetSignerAddress() common.Address
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// OrderSink receives validated orders
type OrderSink interface {
	Push(ctx context.Context, orders []QueuedOrder) error
}

// LogFilterer returns the exchange logs of a block range
type LogFilterer interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock *big.Int) ([]types.Log, error)
}

// LogSubscriber streams new exchange logs
type LogSubscriber interface {
	SubscribeLogs(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Client fetches, validates and settles Element orders for one chain
type Client struct {
	config    ClientConfig
	network   NetworkConfig
	source    OrderSource
	validator *Validator
	verifier  TypedDataVerifier
	reader    ChainStateReader
	checker   *FillabilityChecker
	exchange  *Exchange
	events    *EventDecoder
	submitter TransactionSubmitter
	filterer  LogFilterer
	watcher   LogSubscriber
	sink      OrderSink
	caller    *chain.ContractCaller
	logger    *logrus.Entry
	metrics   *Metrics
}

// Option customizes a Client
type Option func(*Client)

// WithLogger sets the logger entry
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics collectors
func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithOrderSource replaces the HTTP order source
func WithOrderSource(source OrderSource) Option {
	return func(c *Client) { c.source = source }
}

// WithOrderSink sets where accepted orders are pushed
func WithOrderSink(sink OrderSink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithVerifier replaces the EIP712 verifier
func WithVerifier(verifier TypedDataVerifier) Option {
	return func(c *Client) { c.verifier = verifier }
}

// WithChainStateReader replaces the RPC backed state reader
func WithChainStateReader(reader ChainStateReader) Option {
	return func(c *Client) { c.reader = reader }
}

// WithTransactionSubmitter replaces the RPC backed submitter
func WithTransactionSubmitter(submitter TransactionSubmitter) Option {
	return func(c *Client) { c.submitter = submitter }
}

// WithLogFilterer replaces the RPC backed log source
func WithLogFilterer(filterer LogFilterer) Option {
	return func(c *Client) { c.filterer = filterer }
}

// WithLogSubscriber replaces the RPC backed log subscription
func WithLogSubscriber(watcher LogSubscriber) Option {
	return func(c *Client) { c.watcher = watcher }
}

// NewClient creates a new Element order client
func NewClient(config ClientConfig, opts ...Option) (*Client, error) {
	if config.Networks == nil {
		config.Networks = DefaultNetworks()
	}
	if config.FetchLimit == 0 {
		config.FetchLimit = MaxFetchLimit
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.FillabilityTimeout == 0 {
		config.FillabilityTimeout = DefaultFillabilityTimeout
	}
	if config.CheckConcurrency == 0 {
		config.CheckConcurrency = 8
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	network, err := config.Networks.Lookup(config.ChainID)
	if err != nil {
		return nil, err
	}
	exchange, err := NewExchange(config.Networks, config.ChainID)
	if err != nil {
		return nil, err
	}
	events, err := NewEventDecoder(config.Networks, config.ChainID)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:   config,
		network:  network,
		exchange: exchange,
		events:   events,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logger := logrus.New()
		if level, err := logrus.ParseLevel(config.LogLevel); err == nil {
			logger.SetLevel(level)
		}
		c.logger = logrus.NewEntry(logger)
	}
	c.logger = c.logger.WithField("chain_id", int64(config.ChainID))

	if c.metrics == nil {
		c.metrics = NewMetrics()
	}
	if c.source == nil {
		c.source = NewAPIClient(config.Host, config.APIKey, config.RequestTimeout)
	}
	c.validator = NewValidator(config.Networks, c.verifier)

	if config.RPCURL != "" && (c.reader == nil || c.submitter == nil || c.filterer == nil || c.watcher == nil) {
		caller, err := chain.NewContractCaller(config.RPCURL, config.PrivateKey, network.Exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to create contract caller: %w", err)
		}
		c.caller = caller
		if c.reader == nil {
			c.reader = caller
		}
		if c.filterer == nil {
			c.filterer = caller
		}
		if c.watcher == nil {
			c.watcher = caller
		}
		if c.submitter == nil && config.PrivateKey != "" {
			c.submitter = caller
		}
	}

	if config.CheckFillability {
		if c.reader == nil {
			return nil, &InvalidParamError{Message: "RPC URL required to check fillability"}
		}
		c.checker = NewFillabilityChecker(c.reader, config.FillabilityTimeout)
	}

	return c, nil
}

// Close closes the client and cleans up resources
func (c *Client) Close() {
	if c.caller != nil {
		c.caller.Close()
	}
}

// Exchange returns the settlement encoder of the client's chain
func (c *Client) Exchange() *Exchange {
	return c.exchange
}

// Network returns the deployment of the client's chain
func (c *Client) Network() NetworkConfig {
	return c.network
}

// Metrics returns the client's collectors
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// FetchOrders fetches one page of orders listed before listedBefore (0 for
// the newest), processes it and pushes the accepted orders to the sink.
func (c *Client) FetchOrders(ctx context.Context, side OrderSide, listedBefore int64) (*FetchResult, error) {
	params := FetchOrdersParams{
		Chain:        c.network.APIChain,
		Side:         side,
		OrderBy:      "created_at",
		Direction:    "desc",
		ListedBefore: listedBefore,
		Limit:        c.config.FetchLimit,
	}

	start := time.Now()
	fetched, err := c.source.FetchOrders(ctx, params)
	c.metrics.observeSince(c.metrics.FetchDuration, start)
	if err != nil {
		c.metrics.FetchErrors.Inc()
		return nil, err
	}

	results, err := c.ProcessOrders(ctx, fetched)
	if err != nil {
		return nil, err
	}

	out := &FetchResult{Cursor: listedBefore, Results: results}
	for _, result := range results {
		if result.Outcome == OutcomeAccepted {
			out.Accepted = append(out.Accepted, toQueuedOrder(result.Order, fetched[result.Index]))
		}
	}

	if len(out.Accepted) > 0 && c.sink != nil {
		if err := c.sink.Push(ctx, out.Accepted); err != nil {
			return nil, fmt.Errorf("failed to push orders: %w", err)
		}
		c.metrics.OrdersQueued.Add(float64(len(out.Accepted)))
	}

	if len(fetched) > 0 && fetched[0] != nil {
		if cursor, err := strconv.ParseInt(string(fetched[0].CreateTime), 10, 64); err == nil {
			out.Cursor = cursor
			c.metrics.LastFetchCursor.Set(float64(cursor))
		}
	}

	c.logger.WithFields(logrus.Fields{
		"side":     side.String(),
		"fetched":  len(fetched),
		"accepted": len(out.Accepted),
		"cursor":   out.Cursor,
	}).Info("fetched orders")

	return out, nil
}

// ProcessOrders converts and validates fetched orders, then checks the
// fillability of the valid ones in parallel when enabled. One result is
// returned per input order. Only ErrUnsupportedChain and context errors
// abort the call.
func (c *Client) ProcessOrders(ctx context.Context, fetched []*FetchedOrder) ([]OrderResult, error) {
	results := make([]OrderResult, len(fetched))
	for i, f := range fetched {
		results[i] = c.processOrder(i, f)
		if errors.Is(results[i].Err, ErrUnsupportedChain) {
			return nil, results[i].Err
		}
	}

	if c.checker != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.config.CheckConcurrency)
		for i := range results {
			if results[i].Outcome != OutcomeAccepted {
				continue
			}
			result := &results[i]
			g.Go(func() error {
				c.checkFillability(gctx, result)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for _, result := range results {
		c.metrics.observeOrder(result.Kind, result.Outcome)
	}
	return results, nil
}

func (c *Client) processOrder(index int, fetched *FetchedOrder) OrderResult {
	result := OrderResult{Index: index}
	if fetched == nil {
		result.Outcome = OutcomeParseError
		result.Err = newOrderError(ErrParse, "", "nil order")
		return result
	}
	result.Hash = strings.SplitN(fetched.OrderHash, ":", 2)[0]
	result.Kind = OrderKind(fetched.SaleKind)

	switch result.Kind {
	case OrderKindFixedPrice, OrderKindBatchSignedOrder, OrderKindContractOffer:
	default:
		result.Outcome = OutcomeSkipped
		return result
	}

	logger := c.logger.WithFields(logrus.Fields{
		"hash": result.Hash,
		"kind": result.Kind.String(),
	})

	order, err := ToOrder(fetched)
	if err != nil {
		logger.WithField("reason", err.Error()).Warn("skipping unparsable order")
		result.Outcome = OutcomeParseError
		result.Err = err
		return result
	}
	result.Order = order

	if err := c.validator.CheckValidity(c.config.ChainID, order); err != nil {
		logger.WithFields(logrus.Fields{
			"id":     order.ID,
			"maker":  order.Maker,
			"reason": err.Error(),
		}).Warn("rejecting invalid order")
		result.Outcome = OutcomeInvalid
		result.Err = err
		return result
	}

	result.Outcome = OutcomeAccepted
	return result
}

func (c *Client) checkFillability(ctx context.Context, result *OrderResult) {
	start := time.Now()
	err := c.checker.CheckFillability(ctx, result.Order)
	c.metrics.observeSince(c.metrics.CheckDuration, start)
	if err == nil {
		return
	}

	result.Err = err
	if errors.Is(err, ErrNotFillable) {
		result.Outcome = OutcomeNotFillable
	} else {
		result.Outcome = OutcomeCheckFailure
	}
	c.logger.WithFields(logrus.Fields{
		"id":     result.Order.ID,
		"hash":   result.Hash,
		"maker":  result.Order.Maker,
		"reason": err.Error(),
	}).Info("order not fillable")
}

func toQueuedOrder(order *Order, fetched *FetchedOrder) QueuedOrder {
	createdAt, _ := strconv.ParseInt(string(fetched.CreateTime), 10, 64)
	return QueuedOrder{
		ID:        order.ID,
		Target:    order.NFTAddress,
		Maker:     order.Maker,
		CreatedAt: createdAt,
		Data:      order,
		Source:    QueueSource,
	}
}

// HandleStreamOrder runs one pushed order through ProcessOrders and queues
// it when accepted. Cancellation messages are ignored.
func (c *Client) HandleStreamOrder(ctx context.Context, event *StreamEvent, fetched *FetchedOrder) (*OrderResult, error) {
	if fetched == nil || (event != nil && event.Channel == ChannelOrderCancelled) {
		return nil, nil
	}
	results, err := c.ProcessOrders(ctx, []*FetchedOrder{fetched})
	if err != nil {
		return nil, err
	}
	result := results[0]
	if result.Outcome == OutcomeAccepted && c.sink != nil {
		if err := c.sink.Push(ctx, []QueuedOrder{toQueuedOrder(result.Order, fetched)}); err != nil {
			return nil, fmt.Errorf("failed to push order: %w", err)
		}
		c.metrics.OrdersQueued.Inc()
	}
	return &result, nil
}

// NewOrderStream returns a websocket client whose orders are passed to
// HandleStreamOrder
func (c *Client) NewOrderStream(ctx context.Context, config WSConfig) *WSClient {
	if config.APIKey == "" {
		config.APIKey = c.config.APIKey
	}
	config.OnOrder = func(event *StreamEvent, order *FetchedOrder) {
		if _, err := c.HandleStreamOrder(ctx, event, order); err != nil {
			c.logger.WithError(err).WithField("channel", event.Channel).Warn("failed to handle stream order")
		}
	}
	if config.OnError == nil {
		config.OnError = func(err error) {
			c.logger.WithError(err).Warn("order stream error")
		}
	}
	return NewWSClient(config)
}

// CheckFillability checks a single order against the chain state
func (c *Client) CheckFillability(ctx context.Context, order *Order) error {
	checker := c.checker
	if checker == nil {
		if c.reader == nil {
			return &InvalidParamError{Message: "no chain state reader configured"}
		}
		checker = NewFillabilityChecker(c.reader, c.config.FillabilityTimeout)
	}
	return checker.CheckFillability(ctx, order)
}

// FillOrder fills order as the configured signer
func (c *Client) FillOrder(ctx context.Context, order *Order, params MatchParams) (*TransactionResult, error) {
	if c.submitter == nil {
		return nil, &InvalidParamError{Message: "no transaction submitter configured"}
	}
	call, err := c.exchange.FillOrder(order, c.submitter.GetSignerAddress().Hex(), params)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, fillMethod(order), call)
}

// CancelOrder cancels a single order of the signer
func (c *Client) CancelOrder(ctx context.Context, order *Order) (*TransactionResult, error) {
	call, err := c.exchange.CancelOrder(order)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, cancelMethod(order.Schema), call)
}

// CancelOrders cancels orders with one transaction per schema
func (c *Client) CancelOrders(ctx context.Context, orders []*Order) ([]*TransactionResult, error) {
	if len(orders) == 0 {
		return nil, &InvalidParamError{Message: "orders list cannot be empty"}
	}
	calls, err := c.exchange.BatchCancelOrders(orders)
	if err != nil {
		return nil, err
	}

	erc721 := false
	for _, order := range orders {
		if order != nil && order.Schema == SchemaERC721 {
			erc721 = true
			break
		}
	}

	results := make([]*TransactionResult, 0, len(calls))
	for i, call := range calls {
		method := cancelMethod(SchemaERC1155)
		if i == 0 && erc721 {
			method = cancelMethod(SchemaERC721)
		}
		result, err := c.send(ctx, method, call)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// IncrementHashNonce cancels every order the signer signed so far
func (c *Client) IncrementHashNonce(ctx context.Context) (*TransactionResult, error) {
	call, err := c.exchange.IncrementHashNonce()
	if err != nil {
		return nil, err
	}
	return c.send(ctx, "incrementHashNonce", call)
}

// FilterEvents decodes the exchange events of a block range
func (c *Client) FilterEvents(ctx context.Context, fromBlock, toBlock *big.Int) ([]*ExchangeEvent, error) {
	if c.filterer == nil {
		return nil, &InvalidParamError{Message: "no log source configured"}
	}
	logs, err := c.filterer.FilterLogs(ctx, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	return c.events.DecodeLogs(logs)
}

// WatchEvents subscribes to new exchange logs and hands every decoded event
// to handle. It blocks until ctx is done or the subscription fails.
func (c *Client) WatchEvents(ctx context.Context, handle func(*ExchangeEvent)) error {
	if c.watcher == nil {
		return &InvalidParamError{Message: "no log subscription configured"}
	}
	logs := make(chan types.Log, 64)
	sub, err := c.watcher.SubscribeLogs(ctx, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("log subscription failed: %w", err)
		case log := <-logs:
			event, err := c.events.Decode(log)
			if err != nil {
				c.logger.WithError(err).WithField("tx_hash", log.TxHash.Hex()).Warn("failed to decode exchange log")
				continue
			}
			if event == nil {
				continue
			}
			c.metrics.ExchangeEvents.WithLabelValues(event.Name).Inc()
			handle(event)
		}
	}
}

// WaitForTransaction waits until the transaction of result is mined. A
// reverted transaction is returned together with an error.
func (c *Client) WaitForTransaction(ctx context.Context, result *TransactionResult) (*types.Receipt, error) {
	if c.submitter == nil {
		return nil, &InvalidParamError{Message: "no transaction submitter configured"}
	}
	receipt, err := c.submitter.WaitForReceipt(ctx, common.HexToHash(result.TxHash))
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s transaction %s reverted", result.Method, result.TxHash)
	}
	return receipt, nil
}

func (c *Client) send(ctx context.Context, method string, call *Call) (*TransactionResult, error) {
	if c.submitter == nil {
		return nil, &InvalidParamError{Message: "no transaction submitter configured"}
	}
	tx, err := c.submitter.SendTransaction(ctx, call.To, call.Data, call.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}
	c.metrics.SubmittedCalls.WithLabelValues(method).Inc()

	result := &TransactionResult{
		Method: method,
		TxHash: strings.ToLower(tx.Hash().Hex()),
		Value:  "0",
	}
	if call.Value != nil {
		result.Value = call.Value.String()
	}
	c.logger.WithFields(logrus.Fields{
		"method":  method,
		"tx_hash": result.TxHash,
		"value":   result.Value,
	}).Info("sent exchange transaction")
	return result, nil
}

func fillMethod(order *Order) string {
	if order == nil {
		return ""
	}
	if order.Kind == OrderKindBatchSignedOrder {
		return "fillBatchSignedERC721Order"
	}
	switch {
	case order.Side == OrderSideSell && order.Schema == SchemaERC721:
		return "buyERC721Ex"
	case order.Side == OrderSideSell:
		return "buyERC1155Ex"
	case order.Schema == SchemaERC721:
		return "sellERC721"
	default:
		return "sellERC1155"
	}
}

func cancelMethod(schema Schema) string {
	if schema == SchemaERC721 {
		return "batchCancelERC721Orders"
	}
	return "batchCancelERC1155Orders"
}
