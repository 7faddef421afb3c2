package chain

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SignatureType represents the signature type of a standard order
type SignatureType uint8

const (
	SignatureTypeEIP712 SignatureType = iota
	SignatureTypePreSigned
)

// ERC1155 order status values returned by getERC1155*OrderInfo
const (
	OrderStatusInvalid uint8 = iota
	OrderStatusFillable
	OrderStatusUnfillable
	OrderStatusExpired
)

// Fee is the LibNFTOrder.Fee tuple
type Fee struct {
	Recipient common.Address `abi:"recipient"`
	Amount    *big.Int       `abi:"amount"`
	FeeData   []byte         `abi:"feeData"`
}

// Property is the LibNFTOrder.Property tuple
type Property struct {
	PropertyValidator common.Address `abi:"propertyValidator"`
	PropertyData      []byte         `abi:"propertyData"`
}

// Signature is the LibSignature.Signature tuple
type Signature struct {
	SignatureType uint8    `abi:"signatureType"`
	V             uint8    `abi:"v"`
	R             [32]byte `abi:"r"`
	S             [32]byte `abi:"s"`
}

// NFTSellOrder is the ERC721 sell order tuple
type NFTSellOrder struct {
	Maker            common.Address `abi:"maker"`
	Taker            common.Address `abi:"taker"`
	Expiry           *big.Int       `abi:"expiry"`
	Nonce            *big.Int       `abi:"nonce"`
	Erc20Token       common.Address `abi:"erc20Token"`
	Erc20TokenAmount *big.Int       `abi:"erc20TokenAmount"`
	Fees             []Fee          `abi:"fees"`
	Nft              common.Address `abi:"nft"`
	NftId            *big.Int       `abi:"nftId"`
}

// NFTBuyOrder is the ERC721 buy order tuple
type NFTBuyOrder struct {
	Maker            common.Address `abi:"maker"`
	Taker            common.Address `abi:"taker"`
	Expiry           *big.Int       `abi:"expiry"`
	Nonce            *big.Int       `abi:"nonce"`
	Erc20Token       common.Address `abi:"erc20Token"`
	Erc20TokenAmount *big.Int       `abi:"erc20TokenAmount"`
	Fees             []Fee          `abi:"fees"`
	Nft              common.Address `abi:"nft"`
	NftId            *big.Int       `abi:"nftId"`
	NftProperties    []Property     `abi:"nftProperties"`
}

// ERC1155SellOrder is the ERC1155 sell order tuple
type ERC1155SellOrder struct {
	Maker              common.Address `abi:"maker"`
	Taker              common.Address `abi:"taker"`
	Expiry             *big.Int       `abi:"expiry"`
	Nonce              *big.Int       `abi:"nonce"`
	Erc20Token         common.Address `abi:"erc20Token"`
	Erc20TokenAmount   *big.Int       `abi:"erc20TokenAmount"`
	Fees               []Fee          `abi:"fees"`
	Erc1155Token       common.Address `abi:"erc1155Token"`
	Erc1155TokenId     *big.Int       `abi:"erc1155TokenId"`
	Erc1155TokenAmount *big.Int       `abi:"erc1155TokenAmount"`
}

// ERC1155BuyOrder is the ERC1155 buy order tuple
type ERC1155BuyOrder struct {
	Maker                  common.Address `abi:"maker"`
	Taker                  common.Address `abi:"taker"`
	Expiry                 *big.Int       `abi:"expiry"`
	Nonce                  *big.Int       `abi:"nonce"`
	Erc20Token             common.Address `abi:"erc20Token"`
	Erc20TokenAmount       *big.Int       `abi:"erc20TokenAmount"`
	Fees                   []Fee          `abi:"fees"`
	Erc1155Token           common.Address `abi:"erc1155Token"`
	Erc1155TokenId         *big.Int       `abi:"erc1155TokenId"`
	Erc1155TokenProperties []Property     `abi:"erc1155TokenProperties"`
	Erc1155TokenAmount     *big.Int       `abi:"erc1155TokenAmount"`
}

// BatchSignedOrderParameter is the first argument of fillBatchSignedERC721Order
type BatchSignedOrderParameter struct {
	Data1 *big.Int `abi:"data1"`
	Data2 *big.Int `abi:"data2"`
	Data3 *big.Int `abi:"data3"`
	R     [32]byte `abi:"r"`
	S     [32]byte `abi:"s"`
}

// OrderInfo is the LibNFTOrder.OrderInfo tuple
type OrderInfo struct {
	OrderHash       [32]byte
	Status          uint8
	OrderAmount     *big.Int
	RemainingAmount *big.Int
}

// FilledFee is the fee tuple emitted by the fill events
type FilledFee struct {
	Recipient common.Address `abi:"recipient"`
	Amount    *big.Int       `abi:"amount"`
}

const feeComponents = `[
	{"name": "recipient", "type": "address"},
	{"name": "amount", "type": "uint256"},
	{"name": "feeData", "type": "bytes"}
]`

const propertyComponents = `[
	{"name": "propertyValidator", "type": "address"},
	{"name": "propertyData", "type": "bytes"}
]`

const filledFeeComponents = `[
	{"name": "recipient", "type": "address"},
	{"name": "amount", "type": "uint256"}
]`

const signatureInput = `{"name": "signature", "type": "tuple", "components": [
	{"name": "signatureType", "type": "uint8"},
	{"name": "v", "type": "uint8"},
	{"name": "r", "type": "bytes32"},
	{"name": "s", "type": "bytes32"}
]}`

const nftSellOrderComponents = `[
	{"name": "maker", "type": "address"},
	{"name": "taker", "type": "address"},
	{"name": "expiry", "type": "uint256"},
	{"name": "nonce", "type": "uint256"},
	{"name": "erc20Token", "type": "address"},
	{"name": "erc20TokenAmount", "type": "uint256"},
	{"name": "fees", "type": "tuple[]", "components": ` + feeComponents + `},
	{"name": "nft", "type": "address"},
	{"name": "nftId", "type": "uint256"}
]`

const nftBuyOrderComponents = `[
	{"name": "maker", "type": "address"},
	{"name": "taker", "type": "address"},
	{"name": "expiry", "type": "uint256"},
	{"name": "nonce", "type": "uint256"},
	{"name": "erc20Token", "type": "address"},
	{"name": "erc20TokenAmount", "type": "uint256"},
	{"name": "fees", "type": "tuple[]", "components": ` + feeComponents + `},
	{"name": "nft", "type": "address"},
	{"name": "nftId", "type": "uint256"},
	{"name": "nftProperties", "type": "tuple[]", "components": ` + propertyComponents + `}
]`

const erc1155SellOrderComponents = `[
	{"name": "maker", "type": "address"},
	{"name": "taker", "type": "address"},
	{"name": "expiry", "type": "uint256"},
	{"name": "nonce", "type": "uint256"},
	{"name": "erc20Token", "type": "address"},
	{"name": "erc20TokenAmount", "type": "uint256"},
	{"name": "fees", "type": "tuple[]", "components": ` + feeComponents + `},
	{"name": "erc1155Token", "type": "address"},
	{"name": "erc1155TokenId", "type": "uint256"},
	{"name": "erc1155TokenAmount", "type": "uint128"}
]`

const erc1155BuyOrderComponents = `[
	{"name": "maker", "type": "address"},
	{"name": "taker", "type": "address"},
	{"name": "expiry", "type": "uint256"},
	{"name": "nonce", "type": "uint256"},
	{"name": "erc20Token", "type": "address"},
	{"name": "erc20TokenAmount", "type": "uint256"},
	{"name": "fees", "type": "tuple[]", "components": ` + feeComponents + `},
	{"name": "erc1155Token", "type": "address"},
	{"name": "erc1155TokenId", "type": "uint256"},
	{"name": "erc1155TokenProperties", "type": "tuple[]", "components": ` + propertyComponents + `},
	{"name": "erc1155TokenAmount", "type": "uint128"}
]`

const orderInfoOutput = `[{"name": "orderInfo", "type": "tuple", "components": [
	{"name": "orderHash", "type": "bytes32"},
	{"name": "status", "type": "uint8"},
	{"name": "orderAmount", "type": "uint128"},
	{"name": "remainingAmount", "type": "uint128"}
]}]`

const orderFilledHead = `
	{"name": "orderHash", "type": "bytes32", "indexed": false},
	{"name": "maker", "type": "address", "indexed": false},
	{"name": "taker", "type": "address", "indexed": false},
	{"name": "nonce", "type": "uint256", "indexed": false},
	{"name": "erc20Token", "type": "address", "indexed": false}`

// Element exchange ABI, restricted to the entry points and events this SDK uses
const exchangeABIJSON = `[
	{
		"type": "function", "name": "buyERC721Ex", "stateMutability": "payable",
		"inputs": [
			{"name": "sellOrder", "type": "tuple", "components": ` + nftSellOrderComponents + `},
			` + signatureInput + `,
			{"name": "taker", "type": "address"},
			{"name": "takerData", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function", "name": "buyERC1155Ex", "stateMutability": "payable",
		"inputs": [
			{"name": "sellOrder", "type": "tuple", "components": ` + erc1155SellOrderComponents + `},
			` + signatureInput + `,
			{"name": "taker", "type": "address"},
			{"name": "erc1155BuyAmount", "type": "uint128"},
			{"name": "takerData", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function", "name": "sellERC721", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "buyOrder", "type": "tuple", "components": ` + nftBuyOrderComponents + `},
			` + signatureInput + `,
			{"name": "erc721TokenId", "type": "uint256"},
			{"name": "unwrapNativeToken", "type": "bool"},
			{"name": "takerData", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function", "name": "sellERC1155", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "buyOrder", "type": "tuple", "components": ` + erc1155BuyOrderComponents + `},
			` + signatureInput + `,
			{"name": "erc1155TokenId", "type": "uint256"},
			{"name": "erc1155SellAmount", "type": "uint128"},
			{"name": "unwrapNativeToken", "type": "bool"},
			{"name": "takerData", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function", "name": "fillBatchSignedERC721Order", "stateMutability": "payable",
		"inputs": [
			{"name": "parameter", "type": "tuple", "components": [
				{"name": "data1", "type": "uint256"},
				{"name": "data2", "type": "uint256"},
				{"name": "data3", "type": "uint256"},
				{"name": "r", "type": "bytes32"},
				{"name": "s", "type": "bytes32"}
			]},
			{"name": "collections", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function", "name": "batchCancelERC721Orders", "stateMutability": "nonpayable",
		"inputs": [{"name": "orderNonces", "type": "uint256[]"}],
		"outputs": []
	},
	{
		"type": "function", "name": "batchCancelERC1155Orders", "stateMutability": "nonpayable",
		"inputs": [{"name": "orderNonces", "type": "uint256[]"}],
		"outputs": []
	},
	{
		"type": "function", "name": "incrementHashNonce", "stateMutability": "nonpayable",
		"inputs": [],
		"outputs": []
	},
	{
		"type": "function", "name": "getHashNonce", "stateMutability": "view",
		"inputs": [{"name": "maker", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function", "name": "getERC721OrderStatusBitVector", "stateMutability": "view",
		"inputs": [
			{"name": "maker", "type": "address"},
			{"name": "nonceRange", "type": "uint248"}
		],
		"outputs": [{"name": "bitVector", "type": "uint256"}]
	},
	{
		"type": "function", "name": "getERC1155SellOrderInfo", "stateMutability": "view",
		"inputs": [{"name": "order", "type": "tuple", "components": ` + erc1155SellOrderComponents + `}],
		"outputs": ` + orderInfoOutput + `
	},
	{
		"type": "function", "name": "getERC1155BuyOrderInfo", "stateMutability": "view",
		"inputs": [{"name": "order", "type": "tuple", "components": ` + erc1155BuyOrderComponents + `}],
		"outputs": ` + orderInfoOutput + `
	},
	{
		"type": "event", "name": "ERC721SellOrderFilled", "anonymous": false,
		"inputs": [` + orderFilledHead + `,
			{"name": "erc20TokenAmount", "type": "uint256", "indexed": false},
			{"name": "fees", "type": "tuple[]", "indexed": false, "components": ` + filledFeeComponents + `},
			{"name": "erc721Token", "type": "address", "indexed": false},
			{"name": "erc721TokenId", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event", "name": "ERC721BuyOrderFilled", "anonymous": false,
		"inputs": [` + orderFilledHead + `,
			{"name": "erc20TokenAmount", "type": "uint256", "indexed": false},
			{"name": "fees", "type": "tuple[]", "indexed": false, "components": ` + filledFeeComponents + `},
			{"name": "erc721Token", "type": "address", "indexed": false},
			{"name": "erc721TokenId", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event", "name": "ERC1155SellOrderFilled", "anonymous": false,
		"inputs": [` + orderFilledHead + `,
			{"name": "erc20FillAmount", "type": "uint256", "indexed": false},
			{"name": "fees", "type": "tuple[]", "indexed": false, "components": ` + filledFeeComponents + `},
			{"name": "erc1155Token", "type": "address", "indexed": false},
			{"name": "erc1155TokenId", "type": "uint256", "indexed": false},
			{"name": "erc1155FillAmount", "type": "uint128", "indexed": false}
		]
	},
	{
		"type": "event", "name": "ERC1155BuyOrderFilled", "anonymous": false,
		"inputs": [` + orderFilledHead + `,
			{"name": "erc20FillAmount", "type": "uint256", "indexed": false},
			{"name": "fees", "type": "tuple[]", "indexed": false, "components": ` + filledFeeComponents + `},
			{"name": "erc1155Token", "type": "address", "indexed": false},
			{"name": "erc1155TokenId", "type": "uint256", "indexed": false},
			{"name": "erc1155FillAmount", "type": "uint128", "indexed": false}
		]
	},
	{
		"type": "event", "name": "ERC721OrderCancelled", "anonymous": false,
		"inputs": [
			{"name": "maker", "type": "address", "indexed": false},
			{"name": "nonce", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event", "name": "ERC1155OrderCancelled", "anonymous": false,
		"inputs": [
			{"name": "maker", "type": "address", "indexed": false},
			{"name": "nonce", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event", "name": "HashNonceIncremented", "anonymous": false,
		"inputs": [
			{"name": "maker", "type": "address", "indexed": false},
			{"name": "newHashNonce", "type": "uint256", "indexed": false}
		]
	}
]`

var (
	exchangeABI     abi.ABI
	exchangeABIOnce sync.Once
)

// GetExchangeABI returns the parsed Element exchange ABI
func GetExchangeABI() abi.ABI {
	exchangeABIOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(exchangeABIJSON))
		if err != nil {
			panic("failed to parse exchange ABI: " + err.Error())
		}
		exchangeABI = parsed
	})
	return exchangeABI
}
