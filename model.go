package elementorder

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OrderSide represents the side of an order
type OrderSide int

const (
	OrderSideSell OrderSide = iota
	OrderSideBuy
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideSell:
		return "sell"
	case OrderSideBuy:
		return "buy"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// OrderKind is the sale kind reported by the order book
type OrderKind int

const (
	OrderKindFixedPrice       OrderKind = 0
	OrderKindDutchAuction     OrderKind = 1
	OrderKindEnglishAuction   OrderKind = 2
	OrderKindBatchSignedOrder OrderKind = 3
	OrderKindContractOffer    OrderKind = 7
)

func (k OrderKind) String() string {
	switch k {
	case OrderKindFixedPrice:
		return "fixed_price"
	case OrderKindDutchAuction:
		return "dutch_auction"
	case OrderKindEnglishAuction:
		return "english_auction"
	case OrderKindBatchSignedOrder:
		return "batch_signed"
	case OrderKindContractOffer:
		return "contract_offer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Schema is the token standard of the traded NFT
type Schema string

const (
	SchemaERC721  Schema = "erc721"
	SchemaERC1155 Schema = "erc1155"
)

// Fee is a single fee entry of a standard order
type Fee struct {
	Recipient string   `json:"recipient"`
	Amount    *big.Int `json:"amount"`
	FeeData   string   `json:"feeData"`
}

// Property is a property validator of a buy order
type Property struct {
	PropertyValidator string `json:"propertyValidator"`
	PropertyData      string `json:"propertyData"`
}

// OrderData is the kind specific payload of an Order. It is implemented by
// *StandardData and *BatchSignedData only.
type OrderData interface {
	isOrderData()
}

// StandardData is the payload of every non batch order
type StandardData struct {
	Fees []Fee `json:"fees"`
	// Properties is nil when the source carried none.
	Properties []Property `json:"properties,omitempty"`
}

func (*StandardData) isOrderData() {}

// CollectionItem is one NFT listed inside a batch
type CollectionItem struct {
	ERC20TokenAmount *big.Int `json:"erc20TokenAmount"`
	NFTID            *big.Int `json:"nftId"`
}

// Collection groups the items of one NFT contract inside a batch
type Collection struct {
	NFTAddress          string           `json:"nftAddress"`
	PlatformFee         uint16           `json:"platformFee"`
	RoyaltyFeeRecipient string           `json:"royaltyFeeRecipient"`
	RoyaltyFee          uint16           `json:"royaltyFee"`
	Items               []CollectionItem `json:"items"`
}

// BatchSignedData is the payload of a batch signed ERC721 order
type BatchSignedData struct {
	StartNonce           *big.Int     `json:"startNonce"`
	PlatformFeeRecipient string       `json:"platformFeeRecipient"`
	BasicCollections     []Collection `json:"basicCollections"`
	Collections          []Collection `json:"collections"`
}

func (*BatchSignedData) isOrderData() {}

// Order is the canonical representation of an order book entry. It is built
// once by ToOrder and never mutated afterwards.
type Order struct {
	ID             string      `json:"id"`
	Hash           string      `json:"hash"`
	Side           OrderSide   `json:"side"`
	Kind           OrderKind   `json:"kind"`
	Maker          string      `json:"maker"`
	Taker          string      `json:"taker"`
	ListingTime    int64       `json:"listingTime"`
	ExpirationTime int64       `json:"expirationTime"`
	Nonce          *big.Int    `json:"nonce"`
	Currency       string      `json:"currency"`
	Price          *big.Int    `json:"price"`
	Schema         Schema      `json:"schema"`
	NFTAddress     string      `json:"nftAddress"`
	NFTID          *big.Int    `json:"nftId"`
	NFTAmount      *big.Int    `json:"nftAmount"`
	HashNonce      *big.Int    `json:"hashNonce"`
	Data           OrderData   `json:"data"`
	V              uint8       `json:"v"`
	R              common.Hash `json:"r"`
	S              common.Hash `json:"s"`
}

// UnmarshalJSON decodes Data into the payload type selected by Kind.
func (o *Order) UnmarshalJSON(b []byte) error {
	type plain Order
	aux := struct {
		*plain
		Data json.RawMessage `json:"data"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	o.Data = nil
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		return nil
	}
	if o.Kind == OrderKindBatchSignedOrder {
		data := &BatchSignedData{}
		if err := json.Unmarshal(aux.Data, data); err != nil {
			return err
		}
		o.Data = data
		return nil
	}
	data := &StandardData{}
	if err := json.Unmarshal(aux.Data, data); err != nil {
		return err
	}
	o.Data = data
	return nil
}

// StandardData returns the payload of a non batch order.
func (o *Order) StandardData() (*StandardData, error) {
	d, ok := o.Data.(*StandardData)
	if !ok || d == nil {
		return nil, newOrderError(ErrInvalidOrder, o.Hash, "%s order has no standard data", o.Kind)
	}
	return d, nil
}

// BatchSignedData returns the payload of a batch signed order.
func (o *Order) BatchSignedData() (*BatchSignedData, error) {
	d, ok := o.Data.(*BatchSignedData)
	if !ok || d == nil {
		return nil, newOrderError(ErrInvalidOrder, o.Hash, "%s order has no batch data", o.Kind)
	}
	return d, nil
}

// IsNativeCurrency reports whether the order is priced in the chain's native coin.
func (o *Order) IsNativeCurrency() bool {
	return o.Currency == ZeroAddress
}

// MatchParams carries taker supplied values for fills
type MatchParams struct {
	// NFTID is required for contract offers.
	NFTID *big.Int
	// NFTAmount is required for ERC1155 fills.
	NFTAmount *big.Int
}

// QueuedOrder is what gets handed to an OrderSink after validation
type QueuedOrder struct {
	ID        string `json:"id"`
	Target    string `json:"target"`
	Maker     string `json:"maker"`
	CreatedAt int64  `json:"created_at"`
	Data      *Order `json:"data"`
	Source    string `json:"source"`
}

// OrderResult is the outcome of processing one fetched order
type OrderResult struct {
	Index   int
	Hash    string
	Kind    OrderKind
	Outcome string
	// Order is nil when the payload could not be parsed.
	Order *Order
	Err   error
}

// FetchResult is one page of the order list after processing
type FetchResult struct {
	// Cursor is the createTime of the newest fetched order, or the
	// listedBefore passed in when the page was empty.
	Cursor   int64
	Accepted []QueuedOrder
	Results  []OrderResult
}

// TransactionResult represents the result of a blockchain transaction
type TransactionResult struct {
	Method string
	TxHash string
	Value  string
}
