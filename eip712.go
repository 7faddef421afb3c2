package elementorder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/kaifufi/element-order-sdk-go/chain"
)

// TypedDataSchema identifies one of the five EIP712 primary types the
// exchange accepts.
type TypedDataSchema string

const (
	TypedDataNFTSellOrder            TypedDataSchema = "NFTSellOrder"
	TypedDataNFTBuyOrder             TypedDataSchema = "NFTBuyOrder"
	TypedDataERC1155SellOrder        TypedDataSchema = "ERC1155SellOrder"
	TypedDataERC1155BuyOrder         TypedDataSchema = "ERC1155BuyOrder"
	TypedDataBatchSignedERC721Orders TypedDataSchema = "BatchSignedERC721Orders"
)

var (
	feeType = []apitypes.Type{
		{Name: "recipient", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "feeData", Type: "bytes"},
	}

	propertyType = []apitypes.Type{
		{Name: "propertyValidator", Type: "address"},
		{Name: "propertyData", Type: "bytes"},
	}

	nftSellOrderTypes = apitypes.Types{
		"EIP712Domain": chain.EIP712DomainType,
		"NFTSellOrder": {
			{Name: "maker", Type: "address"},
			{Name: "taker", Type: "address"},
			{Name: "expiry", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "erc20Token", Type: "address"},
			{Name: "erc20TokenAmount", Type: "uint256"},
			{Name: "fees", Type: "Fee[]"},
			{Name: "nft", Type: "address"},
			{Name: "nftId", Type: "uint256"},
			{Name: "hashNonce", Type: "uint256"},
		},
		"Fee": feeType,
	}

	nftBuyOrderTypes = apitypes.Types{
		"EIP712Domain": chain.EIP712DomainType,
		"NFTBuyOrder": {
			{Name: "maker", Type: "address"},
			{Name: "taker", Type: "address"},
			{Name: "expiry", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "erc20Token", Type: "address"},
			{Name: "erc20TokenAmount", Type: "uint256"},
			{Name: "fees", Type: "Fee[]"},
			{Name: "nft", Type: "address"},
			{Name: "nftId", Type: "uint256"},
			{Name: "nftProperties", Type: "Property[]"},
			{Name: "hashNonce", Type: "uint256"},
		},
		"Fee":      feeType,
		"Property": propertyType,
	}

	erc1155SellOrderTypes = apitypes.Types{
		"EIP712Domain": chain.EIP712DomainType,
		"ERC1155SellOrder": {
			{Name: "maker", Type: "address"},
			{Name: "taker", Type: "address"},
			{Name: "expiry", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "erc20Token", Type: "address"},
			{Name: "erc20TokenAmount", Type: "uint256"},
			{Name: "fees", Type: "Fee[]"},
			{Name: "erc1155Token", Type: "address"},
			{Name: "erc1155TokenId", Type: "uint256"},
			{Name: "erc1155TokenAmount", Type: "uint128"},
			{Name: "hashNonce", Type: "uint256"},
		},
		"Fee": feeType,
	}

	erc1155BuyOrderTypes = apitypes.Types{
		"EIP712Domain": chain.EIP712DomainType,
		"ERC1155BuyOrder": {
			{Name: "maker", Type: "address"},
			{Name: "taker", Type: "address"},
			{Name: "expiry", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "erc20Token", Type: "address"},
			{Name: "erc20TokenAmount", Type: "uint256"},
			{Name: "fees", Type: "Fee[]"},
			{Name: "erc1155Token", Type: "address"},
			{Name: "erc1155TokenId", Type: "uint256"},
			{Name: "erc1155TokenProperties", Type: "Property[]"},
			{Name: "erc1155TokenAmount", Type: "uint128"},
			{Name: "hashNonce", Type: "uint256"},
		},
		"Fee":      feeType,
		"Property": propertyType,
	}

	batchSignedOrderTypes = apitypes.Types{
		"EIP712Domain": chain.EIP712DomainType,
		"BatchSignedERC721Orders": {
			{Name: "maker", Type: "address"},
			{Name: "listingTime", Type: "uint256"},
			{Name: "expiryTime", Type: "uint256"},
			{Name: "startNonce", Type: "uint256"},
			{Name: "erc20Token", Type: "address"},
			{Name: "platformFeeRecipient", Type: "address"},
			{Name: "basicCollections", Type: "BasicCollection[]"},
			{Name: "collections", Type: "Collection[]"},
			{Name: "hashNonce", Type: "uint256"},
		},
		"BasicCollection": {
			{Name: "nftAddress", Type: "address"},
			{Name: "fee", Type: "bytes32"},
			{Name: "items", Type: "bytes32[]"},
		},
		"Collection": {
			{Name: "nftAddress", Type: "address"},
			{Name: "fee", Type: "bytes32"},
			{Name: "items", Type: "OrderItem[]"},
		},
		"OrderItem": {
			{Name: "erc20TokenAmount", Type: "uint256"},
			{Name: "nftId", Type: "uint256"},
		},
	}
)

// TypedDataSchemaOf maps (kind, schema, side) to the primary type the order
// was signed under. Every value of the three enums is handled explicitly.
func TypedDataSchemaOf(kind OrderKind, schema Schema, side OrderSide) (TypedDataSchema, error) {
	switch kind {
	case OrderKindBatchSignedOrder:
		if schema != SchemaERC721 || side != OrderSideSell {
			return "", fmt.Errorf("%w: batch signed orders are ERC721 sell orders, got %s %s", ErrInvalidOrder, schema, side)
		}
		return TypedDataBatchSignedERC721Orders, nil
	case OrderKindFixedPrice, OrderKindDutchAuction, OrderKindEnglishAuction, OrderKindContractOffer:
	default:
		return "", fmt.Errorf("%w: unknown order kind %d", ErrInvalidOrder, int(kind))
	}

	switch schema {
	case SchemaERC721:
		switch side {
		case OrderSideSell:
			return TypedDataNFTSellOrder, nil
		case OrderSideBuy:
			return TypedDataNFTBuyOrder, nil
		}
	case SchemaERC1155:
		switch side {
		case OrderSideSell:
			return TypedDataERC1155SellOrder, nil
		case OrderSideBuy:
			return TypedDataERC1155BuyOrder, nil
		}
	default:
		return "", fmt.Errorf("%w: unknown schema %q", ErrInvalidOrder, schema)
	}
	return "", fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, int(side))
}

// NewTypedData builds the EIP712 typed data the order's maker signed.
func NewTypedData(domain apitypes.TypedDataDomain, order *Order) (apitypes.TypedData, error) {
	schema, err := TypedDataSchemaOf(order.Kind, order.Schema, order.Side)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	var (
		types   apitypes.Types
		message apitypes.TypedDataMessage
	)
	switch schema {
	case TypedDataNFTSellOrder:
		raw, err := ToRawNFTSellOrder(order)
		if err != nil {
			return apitypes.TypedData{}, err
		}
		types, message = nftSellOrderTypes, nftSellOrderMessage(raw)
	case TypedDataNFTBuyOrder:
		raw, err := ToRawNFTBuyOrder(order)
		if err != nil {
			return apitypes.TypedData{}, err
		}
		types, message = nftBuyOrderTypes, nftBuyOrderMessage(raw)
	case TypedDataERC1155SellOrder:
		raw, err := ToRawERC1155SellOrder(order)
		if err != nil {
			return apitypes.TypedData{}, err
		}
		types, message = erc1155SellOrderTypes, erc1155SellOrderMessage(raw)
	case TypedDataERC1155BuyOrder:
		raw, err := ToRawERC1155BuyOrder(order)
		if err != nil {
			return apitypes.TypedData{}, err
		}
		types, message = erc1155BuyOrderTypes, erc1155BuyOrderMessage(raw)
	case TypedDataBatchSignedERC721Orders:
		raw, err := ToRawBatchSignedOrder(order)
		if err != nil {
			return apitypes.TypedData{}, err
		}
		types, message = batchSignedOrderTypes, batchSignedOrderMessage(raw)
	}
	message["hashNonce"] = copyBig(order.HashNonce)

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: string(schema),
		Domain:      domain,
		Message:     message,
	}, nil
}

func feesMessage(fees []chain.Fee) []interface{} {
	list := make([]interface{}, 0, len(fees))
	for _, fee := range fees {
		list = append(list, map[string]interface{}{
			"recipient": fee.Recipient.Hex(),
			"amount":    fee.Amount,
			"feeData":   fee.FeeData,
		})
	}
	return list
}

func propertiesMessage(properties []chain.Property) []interface{} {
	list := make([]interface{}, 0, len(properties))
	for _, property := range properties {
		list = append(list, map[string]interface{}{
			"propertyValidator": property.PropertyValidator.Hex(),
			"propertyData":      property.PropertyData,
		})
	}
	return list
}

func nftSellOrderMessage(raw *chain.NFTSellOrder) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"maker":            raw.Maker.Hex(),
		"taker":            raw.Taker.Hex(),
		"expiry":           raw.Expiry,
		"nonce":            raw.Nonce,
		"erc20Token":       raw.Erc20Token.Hex(),
		"erc20TokenAmount": raw.Erc20TokenAmount,
		"fees":             feesMessage(raw.Fees),
		"nft":              raw.Nft.Hex(),
		"nftId":            raw.NftId,
	}
}

func nftBuyOrderMessage(raw *chain.NFTBuyOrder) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"maker":            raw.Maker.Hex(),
		"taker":            raw.Taker.Hex(),
		"expiry":           raw.Expiry,
		"nonce":            raw.Nonce,
		"erc20Token":       raw.Erc20Token.Hex(),
		"erc20TokenAmount": raw.Erc20TokenAmount,
		"fees":             feesMessage(raw.Fees),
		"nft":              raw.Nft.Hex(),
		"nftId":            raw.NftId,
		"nftProperties":    propertiesMessage(raw.NftProperties),
	}
}

func erc1155SellOrderMessage(raw *chain.ERC1155SellOrder) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"maker":              raw.Maker.Hex(),
		"taker":              raw.Taker.Hex(),
		"expiry":             raw.Expiry,
		"nonce":              raw.Nonce,
		"erc20Token":         raw.Erc20Token.Hex(),
		"erc20TokenAmount":   raw.Erc20TokenAmount,
		"fees":               feesMessage(raw.Fees),
		"erc1155Token":       raw.Erc1155Token.Hex(),
		"erc1155TokenId":     raw.Erc1155TokenId,
		"erc1155TokenAmount": raw.Erc1155TokenAmount,
	}
}

func erc1155BuyOrderMessage(raw *chain.ERC1155BuyOrder) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"maker":                  raw.Maker.Hex(),
		"taker":                  raw.Taker.Hex(),
		"expiry":                 raw.Expiry,
		"nonce":                  raw.Nonce,
		"erc20Token":             raw.Erc20Token.Hex(),
		"erc20TokenAmount":       raw.Erc20TokenAmount,
		"fees":                   feesMessage(raw.Fees),
		"erc1155Token":           raw.Erc1155Token.Hex(),
		"erc1155TokenId":         raw.Erc1155TokenId,
		"erc1155TokenProperties": propertiesMessage(raw.Erc1155TokenProperties),
		"erc1155TokenAmount":     raw.Erc1155TokenAmount,
	}
}

func batchSignedOrderMessage(raw *RawBatchSignedOrder) apitypes.TypedDataMessage {
	basic := make([]interface{}, 0, len(raw.BasicCollections))
	for _, c := range raw.BasicCollections {
		items := make([]interface{}, 0, len(c.Items))
		for _, item := range c.Items {
			items = append(items, item[:])
		}
		basic = append(basic, map[string]interface{}{
			"nftAddress": c.NFTAddress,
			"fee":        c.Fee[:],
			"items":      items,
		})
	}

	collections := make([]interface{}, 0, len(raw.Collections))
	for _, c := range raw.Collections {
		items := make([]interface{}, 0, len(c.Items))
		for _, item := range c.Items {
			items = append(items, map[string]interface{}{
				"erc20TokenAmount": copyBig(item.ERC20TokenAmount),
				"nftId":            copyBig(item.NFTID),
			})
		}
		collections = append(collections, map[string]interface{}{
			"nftAddress": c.NFTAddress,
			"fee":        c.Fee[:],
			"items":      items,
		})
	}

	return apitypes.TypedDataMessage{
		"maker":                raw.Maker,
		"listingTime":          new(big.Int).SetInt64(raw.ListingTime),
		"expiryTime":           new(big.Int).SetInt64(raw.ExpiryTime),
		"startNonce":           copyBig(raw.StartNonce),
		"erc20Token":           raw.ERC20Token,
		"platformFeeRecipient": raw.PlatformFeeRecipient,
		"basicCollections":     basic,
		"collections":          collections,
	}
}
