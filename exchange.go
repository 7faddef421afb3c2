package elementorder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/kaifufi/element-order-sdk-go/chain"
)

// Call is an encoded exchange transaction, ready for a TransactionSubmitter
type Call struct {
	To   common.Address
	Data []byte
	// Value is the native coin to attach, nil when none.
	Value *big.Int
}

// Exchange encodes settlement calls against the Element exchange of one chain
type Exchange struct {
	chainID ChainID
	network NetworkConfig
	address common.Address
	abi     abi.ABI
}

// NewExchange binds an encoder to the deployment of chainID
func NewExchange(networks Networks, chainID ChainID) (*Exchange, error) {
	network, err := networks.Lookup(chainID)
	if err != nil {
		return nil, err
	}
	return &Exchange{
		chainID: chainID,
		network: network,
		address: common.HexToAddress(network.Exchange),
		abi:     chain.GetExchangeABI(),
	}, nil
}

// Address returns the exchange contract address
func (e *Exchange) Address() common.Address {
	return e.address
}

// ChainID returns the chain the encoder is bound to
func (e *Exchange) ChainID() ChainID {
	return e.chainID
}

// Domain returns the EIP712 domain orders of this exchange are signed under
func (e *Exchange) Domain() apitypes.TypedDataDomain {
	return chain.NewEIP712Domain(int64(e.chainID), e.network.Exchange)
}

// FillOrder encodes the call that fills order on behalf of taker
func (e *Exchange) FillOrder(order *Order, taker string, params MatchParams) (*Call, error) {
	if order == nil {
		return nil, &InvalidParamError{Message: "order is required"}
	}
	taker, err := parseAddress(taker)
	if err != nil {
		return nil, &InvalidParamError{Message: fmt.Sprintf("taker: %v", err)}
	}

	if order.Kind == OrderKindBatchSignedOrder {
		return e.fillBatchSignedOrder(order, taker)
	}

	signature := chain.Signature{
		SignatureType: uint8(chain.SignatureTypeEIP712),
		V:             order.V,
		R:             order.R,
		S:             order.S,
	}

	if order.Side == OrderSideSell {
		return e.fillSellOrder(order, signature, taker, params)
	}
	return e.fillBuyOrder(order, signature, params)
}

func (e *Exchange) fillSellOrder(order *Order, signature chain.Signature, taker string, params MatchParams) (*Call, error) {
	payable, err := sellPayableAmount(order)
	if err != nil {
		return nil, err
	}

	if order.Schema == SchemaERC721 {
		raw, err := ToRawNFTSellOrder(order)
		if err != nil {
			return nil, err
		}
		data, err := e.abi.Pack("buyERC721Ex", *raw, signature, common.HexToAddress(taker), []byte{})
		if err != nil {
			return nil, fmt.Errorf("failed to pack buyERC721Ex: %w", err)
		}
		call := &Call{To: e.address, Data: data}
		if order.IsNativeCurrency() {
			call.Value = payable
		}
		return call, nil
	}

	buyAmount, err := requireAmount(params.NFTAmount)
	if err != nil {
		return nil, err
	}
	raw, err := ToRawERC1155SellOrder(order)
	if err != nil {
		return nil, err
	}
	data, err := e.abi.Pack("buyERC1155Ex", *raw, signature, common.HexToAddress(taker), buyAmount, []byte{})
	if err != nil {
		return nil, fmt.Errorf("failed to pack buyERC1155Ex: %w", err)
	}
	call := &Call{To: e.address, Data: data}
	if order.IsNativeCurrency() {
		call.Value = scaleCeil(payable, buyAmount, order.NFTAmount)
	}
	return call, nil
}

// sellPayableAmount is what a taker pays to fill a whole standard sell order:
// the signed erc20TokenAmount plus every fee, which the exchange charges on top.
func sellPayableAmount(order *Order) (*big.Int, error) {
	amount, err := GetRawERC20Amount(order)
	if err != nil {
		return nil, err
	}
	data, err := order.StandardData()
	if err != nil {
		return nil, err
	}
	return amount.Add(amount, sumFees(data.Fees)), nil
}

func (e *Exchange) fillBuyOrder(order *Order, signature chain.Signature, params MatchParams) (*Call, error) {
	unwrapNativeToken := lc(order.Currency) == lc(e.network.WrappedNative)

	nftID := order.NFTID
	if order.Kind == OrderKindContractOffer {
		if params.NFTID == nil || params.NFTID.Sign() < 0 {
			return nil, &InvalidParamError{Message: "nft id is required to fill a contract offer"}
		}
		nftID = params.NFTID
	}

	if order.Schema == SchemaERC721 {
		raw, err := ToRawNFTBuyOrder(order)
		if err != nil {
			return nil, err
		}
		data, err := e.abi.Pack("sellERC721", *raw, signature, copyBig(nftID), unwrapNativeToken, []byte{})
		if err != nil {
			return nil, fmt.Errorf("failed to pack sellERC721: %w", err)
		}
		return &Call{To: e.address, Data: data}, nil
	}

	sellAmount, err := requireAmount(params.NFTAmount)
	if err != nil {
		return nil, err
	}
	raw, err := ToRawERC1155BuyOrder(order)
	if err != nil {
		return nil, err
	}
	data, err := e.abi.Pack("sellERC1155", *raw, signature, copyBig(nftID), sellAmount, unwrapNativeToken, []byte{})
	if err != nil {
		return nil, fmt.Errorf("failed to pack sellERC1155: %w", err)
	}
	return &Call{To: e.address, Data: data}, nil
}

func (e *Exchange) fillBatchSignedOrder(order *Order, taker string) (*Call, error) {
	batch, err := order.BatchSignedData()
	if err != nil {
		return nil, err
	}

	// data1 [56 bits(startNonce) + 8 bits(v) + 32 bits(listingTime) + 160 bits(maker)]
	data1, err := toWord(
		BigBits(batch.StartNonce, 56),
		Uint64Bits(uint64(order.V), 8),
		Uint64Bits(uint64(order.ListingTime), 32),
		AddressBits(order.Maker, 160),
	)
	if err != nil {
		return nil, err
	}

	// taker [64 bits(part1) + 96 bits(part2)]
	takerValue := new(big.Int).SetBytes(common.HexToAddress(taker).Bytes())
	takerPart1 := new(big.Int).Rsh(takerValue, 96)
	takerPart2 := new(big.Int).And(takerValue, mask96)

	// data2 [64 bits(taker part1) + 32 bits(expiryTime) + 160 bits(erc20Token)]
	data2, err := toWord(
		BigBits(takerPart1, 64),
		Uint64Bits(uint64(order.ExpirationTime), 32),
		AddressBits(ToRawERC20Token(order.Currency), 160),
	)
	if err != nil {
		return nil, err
	}

	// data3 [96 bits(taker part2) + 160 bits(platformFeeRecipient)]
	data3, err := toWord(
		BigBits(takerPart2, 96),
		AddressBits(batch.PlatformFeeRecipient, 160),
	)
	if err != nil {
		return nil, err
	}

	collections, err := CollectionsBytes(batch, order.Nonce)
	if err != nil {
		return nil, err
	}

	parameter := chain.BatchSignedOrderParameter{
		Data1: new(big.Int).SetBytes(data1[:]),
		Data2: new(big.Int).SetBytes(data2[:]),
		Data3: new(big.Int).SetBytes(data3[:]),
		R:     order.R,
		S:     order.S,
	}
	data, err := e.abi.Pack("fillBatchSignedERC721Order", parameter, collections)
	if err != nil {
		return nil, fmt.Errorf("failed to pack fillBatchSignedERC721Order: %w", err)
	}

	call := &Call{To: e.address, Data: data}
	if order.IsNativeCurrency() {
		call.Value = copyBig(order.Price)
	}
	return call, nil
}

// CollectionsBytes encodes the collections argument of
// fillBatchSignedERC721Order, marking the item that nonce resolves to.
func CollectionsBytes(data *BatchSignedData, nonce *big.Int) ([]byte, error) {
	if _, err := FindBatchSignedOrderItem(data, nonce); err != nil {
		return nil, err
	}

	var out []byte
	target := nonce.Int64()
	current := data.StartNonce.Int64()
	for _, collection := range data.BasicCollections {
		b, err := collectionBytes(true, collection, target, current)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		current += int64(len(collection.Items))
	}
	for _, collection := range data.Collections {
		b, err := collectionBytes(false, collection, target, current)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		current += int64(len(collection.Items))
	}
	return out, nil
}

func collectionBytes(isBasic bool, collection Collection, target, start int64) ([]byte, error) {
	var filledIndex, filledCount uint64
	if target >= start && target < start+int64(len(collection.Items)) {
		filledIndex = uint64(target - start)
		filledCount = 1
	}

	var collectionType uint64
	if !isBasic {
		collectionType = 1
	}

	// head1 [96 bits(filledIndexList part1) + 160 bits(nftAddress)]
	// The leftmost byte of the index list holds filledIndex.
	head1, err := PackBits(
		Uint64Bits(filledIndex, 8),
		Uint64Bits(0, 88),
		AddressBits(collection.NFTAddress, 160),
	)
	if err != nil {
		return nil, err
	}

	// head2 [8 bits(collectionType) + 8 bits(itemsCount) + 8 bits(filledCount) + 8 bits(unused)
	//        + 32 bits(filledIndexList part2)
	//        + 16 bits(platformFee) + 16 bits(royaltyFee) + 160 bits(royaltyFeeRecipient)]
	head2, err := PackBits(
		Uint64Bits(collectionType, 8),
		Uint64Bits(uint64(len(collection.Items)), 8),
		Uint64Bits(filledCount, 8),
		Uint64Bits(0, 8),
		Uint64Bits(0, 32),
		Uint64Bits(uint64(collection.PlatformFee), 16),
		Uint64Bits(uint64(collection.RoyaltyFee), 16),
		AddressBits(collection.RoyaltyFeeRecipient, 160),
	)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 64+len(collection.Items)*64)
	out = append(out, head1...)
	out = append(out, head2...)
	for _, item := range collection.Items {
		if isBasic {
			word, err := basicItemWord(item)
			if err != nil {
				return nil, err
			}
			out = append(out, word[:]...)
			continue
		}
		amount, err := PackBits(BigBits(item.ERC20TokenAmount, 256))
		if err != nil {
			return nil, err
		}
		nftID, err := PackBits(BigBits(item.NFTID, 256))
		if err != nil {
			return nil, err
		}
		out = append(out, amount...)
		out = append(out, nftID...)
	}
	return out, nil
}

// CancelOrder encodes the cancellation of a single order nonce
func (e *Exchange) CancelOrder(order *Order) (*Call, error) {
	if order == nil {
		return nil, &InvalidParamError{Message: "order is required"}
	}
	return e.cancelNonces(order.Schema, []*big.Int{copyBig(order.Nonce)})
}

// BatchCancelOrders encodes one cancellation call per schema, ERC721 first.
// Nonces keep their input order.
func (e *Exchange) BatchCancelOrders(orders []*Order) ([]*Call, error) {
	var erc721Nonces, erc1155Nonces []*big.Int
	for _, order := range orders {
		if order == nil {
			continue
		}
		if order.Schema == SchemaERC721 {
			erc721Nonces = append(erc721Nonces, copyBig(order.Nonce))
		} else {
			erc1155Nonces = append(erc1155Nonces, copyBig(order.Nonce))
		}
	}

	var calls []*Call
	if len(erc721Nonces) > 0 {
		call, err := e.cancelNonces(SchemaERC721, erc721Nonces)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if len(erc1155Nonces) > 0 {
		call, err := e.cancelNonces(SchemaERC1155, erc1155Nonces)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (e *Exchange) cancelNonces(schema Schema, nonces []*big.Int) (*Call, error) {
	method := "batchCancelERC1155Orders"
	if schema == SchemaERC721 {
		method = "batchCancelERC721Orders"
	}
	data, err := e.abi.Pack(method, nonces)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return &Call{To: e.address, Data: data}, nil
}

// IncrementHashNonce encodes the call that invalidates every order the
// sender signed so far.
func (e *Exchange) IncrementHashNonce() (*Call, error) {
	data, err := e.abi.Pack("incrementHashNonce")
	if err != nil {
		return nil, fmt.Errorf("failed to pack incrementHashNonce: %w", err)
	}
	return &Call{To: e.address, Data: data}, nil
}

func requireAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, &InvalidParamError{Message: "nft amount must be a positive integer"}
	}
	return copyBig(amount), nil
}

// scaleCeil returns ceil(v * num / den)
func scaleCeil(v, num, den *big.Int) *big.Int {
	if den == nil || den.Sign() == 0 {
		return copyBig(v)
	}
	product := new(big.Int).Mul(v, num)
	quo, rem := new(big.Int).QuoRem(product, den, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}
