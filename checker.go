package elementorder

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/kaifufi/element-order-sdk-go/chain"
)

// DefaultFillabilityTimeout bounds one fillability check
const DefaultFillabilityTimeout = 10 * time.Second

// TypedDataVerifier hashes typed data and recovers signers
type TypedDataVerifier interface {
	HashTypedData(typedData apitypes.TypedData) (common.Hash, error)
	RecoverSigner(typedData apitypes.TypedData, v uint8, r, s common.Hash) (common.Address, error)
}

// ChainStateReader reads the exchange state a fillability check depends on
type ChainStateReader interface {
	GetHashNonce(ctx context.Context, maker common.Address) (*big.Int, error)
	GetERC721OrderStatusBitVector(ctx context.Context, maker common.Address, nonceRange *big.Int) (*big.Int, error)
	GetERC1155SellOrderInfo(ctx context.Context, order chain.ERC1155SellOrder) (*chain.OrderInfo, error)
	GetERC1155BuyOrderInfo(ctx context.Context, order chain.ERC1155BuyOrder) (*chain.OrderInfo, error)
}

// Validator checks order hashes and maker signatures
type Validator struct {
	networks Networks
	verifier TypedDataVerifier
}

// NewValidator creates a Validator. A nil verifier selects chain.EIP712Verifier.
func NewValidator(networks Networks, verifier TypedDataVerifier) *Validator {
	if networks == nil {
		networks = DefaultNetworks()
	}
	if verifier == nil {
		verifier = chain.EIP712Verifier{}
	}
	return &Validator{networks: networks, verifier: verifier}
}

// CheckValidity recomputes the EIP712 hash of order and recovers its signer.
// A signer other than the maker fails with ErrInvalidSignature whether or not
// the hash matches; otherwise a hash mismatch fails with ErrInvalidOrder.
func (v *Validator) CheckValidity(chainID ChainID, order *Order) error {
	if order == nil {
		return &InvalidParamError{Message: "order is required"}
	}
	network, err := v.networks.Lookup(chainID)
	if err != nil {
		return err
	}

	typedData, err := NewTypedData(chain.NewEIP712Domain(int64(chainID), network.Exchange), order)
	if err != nil {
		return err
	}

	signer, err := v.verifier.RecoverSigner(typedData, order.V, order.R, order.S)
	if err != nil {
		return newOrderError(ErrInvalidSignature, order.Hash, "recover signer: %v", err)
	}
	if lc(signer.Hex()) != lc(order.Maker) {
		return newOrderError(ErrInvalidSignature, order.Hash, "signer %s is not maker %s", lc(signer.Hex()), order.Maker)
	}

	hash, err := v.verifier.HashTypedData(typedData)
	if err != nil {
		return newOrderError(ErrInvalidOrder, order.Hash, "hash typed data: %v", err)
	}
	if lc(hash.Hex()) != lc(order.Hash) {
		return newOrderError(ErrInvalidOrder, order.Hash, "recomputed hash %s", lc(hash.Hex()))
	}
	return nil
}

// FillabilityChecker checks an order against the exchange state
type FillabilityChecker struct {
	reader  ChainStateReader
	timeout time.Duration
}

// NewFillabilityChecker creates a checker. A zero timeout selects
// DefaultFillabilityTimeout.
func NewFillabilityChecker(reader ChainStateReader, timeout time.Duration) *FillabilityChecker {
	if timeout <= 0 {
		timeout = DefaultFillabilityTimeout
	}
	return &FillabilityChecker{reader: reader, timeout: timeout}
}

// CheckFillability fails with ErrNotFillable when the maker's hash nonce
// moved on, the ERC721 nonce was consumed, or the ERC1155 order has nothing
// left. Reader failures are returned as they are.
func (f *FillabilityChecker) CheckFillability(ctx context.Context, order *Order) error {
	if order == nil {
		return &InvalidParamError{Message: "order is required"}
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	maker := common.HexToAddress(order.Maker)
	hashNonce, err := f.reader.GetHashNonce(ctx, maker)
	if err != nil {
		return fmt.Errorf("failed to get hash nonce: %w", err)
	}
	if hashNonce == nil || hashNonce.Cmp(copyBig(order.HashNonce)) != 0 {
		return newOrderError(ErrNotFillable, order.Hash, "hash nonce is %v, order signed %v", hashNonce, order.HashNonce)
	}

	if order.Schema == SchemaERC721 {
		return f.checkERC721(ctx, maker, order)
	}
	return f.checkERC1155(ctx, order)
}

func (f *FillabilityChecker) checkERC721(ctx context.Context, maker common.Address, order *Order) error {
	nonce := copyBig(order.Nonce)

	// nonceRange = nonce >> 8
	nonceRange := new(big.Int).Rsh(nonce, 8)
	vector, err := f.reader.GetERC721OrderStatusBitVector(ctx, maker, nonceRange)
	if err != nil {
		return fmt.Errorf("failed to get order status bit vector: %w", err)
	}

	// nonceMask = 1 << (nonce & 0xff)
	bit := new(big.Int).And(nonce, big.NewInt(0xff)).Uint64()
	if vector != nil && vector.Bit(int(bit)) != 0 {
		return newOrderError(ErrNotFillable, order.Hash, "nonce %s already filled or cancelled", nonce)
	}
	return nil
}

func (f *FillabilityChecker) checkERC1155(ctx context.Context, order *Order) error {
	var (
		info *chain.OrderInfo
		err  error
	)
	if order.Side == OrderSideSell {
		raw, rawErr := ToRawERC1155SellOrder(order)
		if rawErr != nil {
			return rawErr
		}
		info, err = f.reader.GetERC1155SellOrderInfo(ctx, *raw)
	} else {
		raw, rawErr := ToRawERC1155BuyOrder(order)
		if rawErr != nil {
			return rawErr
		}
		info, err = f.reader.GetERC1155BuyOrderInfo(ctx, *raw)
	}
	if err != nil {
		return fmt.Errorf("failed to get order info: %w", err)
	}

	if info == nil || info.Status != chain.OrderStatusFillable {
		return newOrderError(ErrNotFillable, order.Hash, "order status is not fillable")
	}
	if info.RemainingAmount == nil || info.RemainingAmount.Sign() == 0 {
		return newOrderError(ErrNotFillable, order.Hash, "no remaining amount")
	}
	return nil
}
