package elementorder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kaifufi/element-order-sdk-go/chain"
)

// Exchange event names
const (
	EventERC721SellOrderFilled  = "ERC721SellOrderFilled"
	EventERC721BuyOrderFilled   = "ERC721BuyOrderFilled"
	EventERC1155SellOrderFilled = "ERC1155SellOrderFilled"
	EventERC1155BuyOrderFilled  = "ERC1155BuyOrderFilled"
	EventERC721OrderCancelled   = "ERC721OrderCancelled"
	EventERC1155OrderCancelled  = "ERC1155OrderCancelled"
	EventHashNonceIncremented   = "HashNonceIncremented"
)

// OrderFilledEvent is emitted when a standard or batch order is filled
type OrderFilledEvent struct {
	OrderID   string
	OrderHash string
	Side      OrderSide
	Schema    Schema
	Maker     string
	Taker     string
	Nonce     *big.Int
	// Currency is in standard form, the zero address for the native coin.
	Currency    string
	ERC20Amount *big.Int
	// Price is the unit price, ERC20Amount divided by NFTAmount.
	Price      *big.Int
	Fees       []Fee
	NFTAddress string
	NFTID      *big.Int
	NFTAmount  *big.Int
}

// OrderCancelledEvent is emitted for every cancelled nonce
type OrderCancelledEvent struct {
	Schema Schema
	Maker  string
	Nonce  *big.Int
}

// HashNonceIncrementedEvent is emitted when a maker invalidates all orders
type HashNonceIncrementedEvent struct {
	Maker     string
	HashNonce *big.Int
}

// ExchangeEvent is one decoded exchange log. Exactly one payload is set.
type ExchangeEvent struct {
	Name        string
	TxHash      string
	BlockNumber uint64
	LogIndex    uint

	Filled             *OrderFilledEvent
	Cancelled          *OrderCancelledEvent
	HashNonceIncreased *HashNonceIncrementedEvent
}

// EventDecoder decodes the logs of one exchange deployment
type EventDecoder struct {
	exchange common.Address
	abi      abi.ABI
}

// NewEventDecoder creates a decoder for the exchange of chainID
func NewEventDecoder(networks Networks, chainID ChainID) (*EventDecoder, error) {
	network, err := networks.Lookup(chainID)
	if err != nil {
		return nil, err
	}
	return &EventDecoder{
		exchange: common.HexToAddress(network.Exchange),
		abi:      chain.GetExchangeABI(),
	}, nil
}

// Decode decodes log. Logs of other contracts and unknown events yield nil
// without error.
func (d *EventDecoder) Decode(log types.Log) (*ExchangeEvent, error) {
	if log.Address != d.exchange || len(log.Topics) == 0 {
		return nil, nil
	}
	event, err := d.abi.EventByID(log.Topics[0])
	if err != nil {
		return nil, nil
	}

	values := make(map[string]interface{})
	if err := d.abi.UnpackIntoMap(values, event.Name, log.Data); err != nil {
		return nil, fmt.Errorf("%w: failed to unpack %s: %v", ErrParse, event.Name, err)
	}

	decoded := &ExchangeEvent{
		Name:        event.Name,
		TxHash:      strings.ToLower(log.TxHash.Hex()),
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}

	switch event.Name {
	case EventERC721SellOrderFilled, EventERC721BuyOrderFilled:
		filled, err := decodeFilled(values, SchemaERC721)
		if err != nil {
			return nil, err
		}
		if event.Name == EventERC721SellOrderFilled {
			filled.Side = OrderSideSell
		} else {
			filled.Side = OrderSideBuy
		}
		decoded.Filled = filled

	case EventERC1155SellOrderFilled, EventERC1155BuyOrderFilled:
		filled, err := decodeFilled(values, SchemaERC1155)
		if err != nil {
			return nil, err
		}
		if event.Name == EventERC1155SellOrderFilled {
			filled.Side = OrderSideSell
		} else {
			filled.Side = OrderSideBuy
		}
		decoded.Filled = filled

	case EventERC721OrderCancelled, EventERC1155OrderCancelled:
		schema := SchemaERC1155
		if event.Name == EventERC721OrderCancelled {
			schema = SchemaERC721
		}
		maker, err := addressValue(values, "maker")
		if err != nil {
			return nil, err
		}
		nonce, err := bigValue(values, "nonce")
		if err != nil {
			return nil, err
		}
		decoded.Cancelled = &OrderCancelledEvent{Schema: schema, Maker: maker, Nonce: nonce}

	case EventHashNonceIncremented:
		maker, err := addressValue(values, "maker")
		if err != nil {
			return nil, err
		}
		hashNonce, err := bigValue(values, "newHashNonce")
		if err != nil {
			return nil, err
		}
		decoded.HashNonceIncreased = &HashNonceIncrementedEvent{Maker: maker, HashNonce: hashNonce}

	default:
		return nil, nil
	}
	return decoded, nil
}

// DecodeLogs decodes every exchange log of logs, skipping unrelated ones
func (d *EventDecoder) DecodeLogs(logs []types.Log) ([]*ExchangeEvent, error) {
	events := make([]*ExchangeEvent, 0, len(logs))
	for _, log := range logs {
		event, err := d.Decode(log)
		if err != nil {
			return nil, fmt.Errorf("log %s#%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		if event != nil {
			events = append(events, event)
		}
	}
	return events, nil
}

func decodeFilled(values map[string]interface{}, schema Schema) (*OrderFilledEvent, error) {
	hash, ok := values["orderHash"].([32]byte)
	if !ok {
		return nil, fmt.Errorf("%w: orderHash", ErrParse)
	}
	filled := &OrderFilledEvent{
		OrderHash: strings.ToLower(common.Hash(hash).Hex()),
		Schema:    schema,
	}

	var err error
	if filled.Maker, err = addressValue(values, "maker"); err != nil {
		return nil, err
	}
	if filled.Taker, err = addressValue(values, "taker"); err != nil {
		return nil, err
	}
	if filled.Nonce, err = bigValue(values, "nonce"); err != nil {
		return nil, err
	}
	erc20Token, err := addressValue(values, "erc20Token")
	if err != nil {
		return nil, err
	}
	filled.Currency = ToStandardERC20Token(erc20Token)

	if schema == SchemaERC721 {
		if filled.ERC20Amount, err = bigValue(values, "erc20TokenAmount"); err != nil {
			return nil, err
		}
		if filled.NFTAddress, err = addressValue(values, "erc721Token"); err != nil {
			return nil, err
		}
		if filled.NFTID, err = bigValue(values, "erc721TokenId"); err != nil {
			return nil, err
		}
		filled.NFTAmount = big.NewInt(1)
	} else {
		if filled.ERC20Amount, err = bigValue(values, "erc20FillAmount"); err != nil {
			return nil, err
		}
		if filled.NFTAddress, err = addressValue(values, "erc1155Token"); err != nil {
			return nil, err
		}
		if filled.NFTID, err = bigValue(values, "erc1155TokenId"); err != nil {
			return nil, err
		}
		if filled.NFTAmount, err = bigValue(values, "erc1155FillAmount"); err != nil {
			return nil, err
		}
	}

	filled.Price = copyBig(filled.ERC20Amount)
	if filled.NFTAmount.Sign() > 0 {
		filled.Price.Div(filled.Price, filled.NFTAmount)
	}

	if raw, ok := values["fees"]; ok {
		fees := *abi.ConvertType(raw, new([]chain.FilledFee)).(*[]chain.FilledFee)
		filled.Fees = make([]Fee, 0, len(fees))
		for _, fee := range fees {
			filled.Fees = append(filled.Fees, Fee{
				Recipient: strings.ToLower(fee.Recipient.Hex()),
				Amount:    copyBig(fee.Amount),
				FeeData:   "0x",
			})
		}
	}

	// Only the orderHash and nonce determine the order id.
	filled.OrderID = ToOrderID(common.Hash(hash), filled.Nonce)
	return filled, nil
}

func addressValue(values map[string]interface{}, name string) (string, error) {
	v, ok := values[name].(common.Address)
	if !ok {
		return "", fmt.Errorf("%w: %s is not an address", ErrParse, name)
	}
	return strings.ToLower(v.Hex()), nil
}

func bigValue(values map[string]interface{}, name string) (*big.Int, error) {
	v, ok := values[name].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s is not an integer", ErrParse, name)
	}
	return new(big.Int).Set(v), nil
}
