package elementorder

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"math/rand"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/kaifufi/element-order-sdk-go/chain"
)

// DefaultOrderDuration is the lifetime of a built order without an expiration time
const DefaultOrderDuration = 7 * 24 * time.Hour

// OrderRequest describes a fixed price order to build
type OrderRequest struct {
	Side       OrderSide
	Schema     Schema
	NFTAddress string
	NFTID      *big.Int
	// NFTAmount defaults to 1.
	NFTAmount *big.Int
	// Currency defaults to the native coin.
	Currency string
	// Price is the unit price net of fees.
	Price *big.Int
	Fees  []Fee
	Taker string

	ListingTime    int64
	ExpirationTime int64
	// Nonce is generated when nil.
	Nonce     *big.Int
	HashNonce *big.Int
}

// OrderBuilder builds and signs orders
type OrderBuilder struct {
	domain apitypes.TypedDataDomain
	signer *ecdsa.PrivateKey
	maker  string
}

// NewOrderBuilder creates a new OrderBuilder
func NewOrderBuilder(networks Networks, chainID ChainID, signer *ecdsa.PrivateKey) (*OrderBuilder, error) {
	if signer == nil {
		return nil, &InvalidParamError{Message: "signer is required"}
	}
	if networks == nil {
		networks = DefaultNetworks()
	}
	network, err := networks.Lookup(chainID)
	if err != nil {
		return nil, err
	}
	return &OrderBuilder{
		domain: chain.NewEIP712Domain(int64(chainID), network.Exchange),
		signer: signer,
		maker:  lc(crypto.PubkeyToAddress(signer.PublicKey).Hex()),
	}, nil
}

// Maker returns the address orders are signed for
func (ob *OrderBuilder) Maker() string {
	return ob.maker
}

// BuildOrder builds and signs a fixed price order
func (ob *OrderBuilder) BuildOrder(req *OrderRequest) (*Order, error) {
	if err := ob.validateInputs(req); err != nil {
		return nil, err
	}

	order := &Order{
		Side:           req.Side,
		Kind:           OrderKindFixedPrice,
		Maker:          ob.maker,
		ListingTime:    req.ListingTime,
		ExpirationTime: req.ExpirationTime,
		Nonce:          req.Nonce,
		Price:          copyBig(req.Price),
		Schema:         req.Schema,
		NFTID:          copyBig(req.NFTID),
		NFTAmount:      big.NewInt(1),
		HashNonce:      copyBig(req.HashNonce),
		Data:           &StandardData{Fees: make([]Fee, 0, len(req.Fees))},
	}

	var err error
	if order.Taker, err = parseAddress(req.Taker); err != nil {
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid taker: %v", err)}
	}
	if order.NFTAddress, err = parseAddress(req.NFTAddress); err != nil {
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid nft address: %v", err)}
	}
	currency, err := parseAddress(req.Currency)
	if err != nil {
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid currency: %v", err)}
	}
	order.Currency = ToStandardERC20Token(currency)

	if req.NFTAmount != nil && req.Schema == SchemaERC1155 {
		order.NFTAmount = copyBig(req.NFTAmount)
	}
	if order.ListingTime == 0 {
		order.ListingTime = time.Now().Unix()
	}
	if order.ExpirationTime == 0 {
		order.ExpirationTime = order.ListingTime + int64(DefaultOrderDuration/time.Second)
	}
	if order.Nonce == nil {
		order.Nonce = ob.generateNonce()
	}

	data := order.Data.(*StandardData)
	for _, fee := range req.Fees {
		recipient, err := parseAddress(fee.Recipient)
		if err != nil {
			return nil, &InvalidParamError{Message: fmt.Sprintf("invalid fee recipient: %v", err)}
		}
		feeData, err := parseHexData(fee.FeeData)
		if err != nil {
			return nil, &InvalidParamError{Message: fmt.Sprintf("invalid fee data: %v", err)}
		}
		data.Fees = append(data.Fees, Fee{Recipient: recipient, Amount: copyBig(fee.Amount), FeeData: feeData})
	}

	if err := ob.SignOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// SignOrder signs order with EIP712 and sets its Hash, ID and signature.
// An empty maker is set to the signer.
func (ob *OrderBuilder) SignOrder(order *Order) error {
	if order == nil {
		return &InvalidParamError{Message: "order is required"}
	}
	if order.Maker == "" {
		order.Maker = ob.maker
	}
	if lc(order.Maker) != ob.maker {
		return &InvalidParamError{Message: fmt.Sprintf("maker %s is not the signer %s", order.Maker, ob.maker)}
	}

	typedData, err := NewTypedData(ob.domain, order)
	if err != nil {
		return err
	}
	hash, err := chain.HashTypedData(typedData)
	if err != nil {
		return err
	}
	v, r, s, err := chain.SignTypedData(typedData, ob.signer)
	if err != nil {
		return err
	}

	order.Hash = strings.ToLower(hash.Hex())
	order.ID = ToOrderID(hash, order.Nonce)
	order.V, order.R, order.S = v, r, s
	return nil
}

func (ob *OrderBuilder) validateInputs(req *OrderRequest) error {
	if req == nil {
		return &InvalidParamError{Message: "order request is required"}
	}
	if req.NFTAddress == "" {
		return &InvalidParamError{Message: "nft address is required"}
	}
	if req.NFTID == nil || req.NFTID.Sign() < 0 {
		return &InvalidParamError{Message: "nft id is required"}
	}
	if req.Price == nil || req.Price.Sign() < 0 {
		return &InvalidParamError{Message: "price must not be negative"}
	}
	if req.Side != OrderSideBuy && req.Side != OrderSideSell {
		return &InvalidParamError{Message: "invalid side"}
	}
	if req.Schema != SchemaERC721 && req.Schema != SchemaERC1155 {
		return &InvalidParamError{Message: fmt.Sprintf("invalid schema %q", req.Schema)}
	}
	if req.Schema == SchemaERC1155 && req.NFTAmount != nil && req.NFTAmount.Sign() <= 0 {
		return &InvalidParamError{Message: "nft amount must be positive"}
	}
	if req.ListingTime < 0 || req.ListingTime > 0xffffffff || req.ExpirationTime < 0 || req.ExpirationTime > 0xffffffff {
		return &InvalidParamError{Message: "listing and expiration times must fit in uint32"}
	}
	for _, fee := range req.Fees {
		if fee.Amount == nil || fee.Amount.Sign() < 0 {
			return &InvalidParamError{Message: "fee amount must not be negative"}
		}
	}
	return nil
}

// generateNonce returns a random nonce below 2^48
func (ob *OrderBuilder) generateNonce() *big.Int {
	return big.NewInt(rand.Int63n(1 << MaxNonceBits))
}
