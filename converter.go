package elementorder

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kaifufi/element-order-sdk-go/chain"
)

// FetchedOrder is an order record as returned by the order book API
type FetchedOrder struct {
	CreateTime      flexString `json:"createTime"`
	ExpirationTime  flexString `json:"expirationTime"`
	ListingTime     flexString `json:"listingTime"`
	OrderHash       string     `json:"orderHash"`
	Maker           string     `json:"maker"`
	Taker           string     `json:"taker"`
	Side            int        `json:"side"`
	SaleKind        int        `json:"saleKind"`
	PaymentToken    string     `json:"paymentToken"`
	Schema          string     `json:"schema"`
	ContractAddress string     `json:"contractAddress"`
	TokenID         flexString `json:"tokenId"`
	Quantity        flexString `json:"quantity"`
	ExchangeData    string     `json:"exchangeData"`
}

// flexString accepts a JSON string, number or null
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type wireItem struct {
	ERC20TokenAmount flexString `json:"erc20TokenAmount"`
	NFTID            flexString `json:"nftId"`
}

type wireCollection struct {
	NFTAddress          string     `json:"nftAddress"`
	PlatformFee         flexString `json:"platformFee"`
	RoyaltyFeeRecipient string     `json:"royaltyFeeRecipient"`
	RoyaltyFee          flexString `json:"royaltyFee"`
	Items               []wireItem `json:"items"`
}

type batchExchangeData struct {
	Nonce                flexString       `json:"nonce"`
	HashNonce            flexString       `json:"hashNonce"`
	V                    flexString       `json:"v"`
	R                    string           `json:"r"`
	S                    string           `json:"s"`
	StartNonce           flexString       `json:"startNonce"`
	PlatformFeeRecipient string           `json:"platformFeeRecipient"`
	BasicCollections     []wireCollection `json:"basicCollections"`
	Collections          []wireCollection `json:"collections"`
}

type wireFee struct {
	Recipient string     `json:"recipient"`
	Amount    flexString `json:"amount"`
	FeeData   string     `json:"feeData"`
}

type wireProperty struct {
	PropertyValidator string `json:"propertyValidator"`
	PropertyData      string `json:"propertyData"`
}

type wireOrder struct {
	Nonce                  flexString     `json:"nonce"`
	HashNonce              flexString     `json:"hashNonce"`
	Erc20TokenAmount       flexString     `json:"erc20TokenAmount"`
	Fees                   []wireFee      `json:"fees"`
	NftProperties          []wireProperty `json:"nftProperties"`
	Erc1155TokenAmount     flexString     `json:"erc1155TokenAmount"`
	Erc1155TokenProperties []wireProperty `json:"erc1155TokenProperties"`
}

type wireSignature struct {
	V flexString `json:"v"`
	R string     `json:"r"`
	S string     `json:"s"`
}

type standardExchangeData struct {
	Order     *wireOrder     `json:"order"`
	Signature *wireSignature `json:"signature"`
}

// BatchItemLocation is the position of a nonce inside a batch signed order
type BatchItemLocation struct {
	// Basic reports whether the item lives in BasicCollections.
	Basic      bool
	Collection int
	Item       int
	Value      CollectionItem
}

func parseErr(hash string, format string, args ...interface{}) error {
	return newOrderError(ErrParse, hash, format, args...)
}

// ToOrder converts a fetched order into the canonical Order. Errors wrap
// ErrParse for malformed payloads, and ErrInvalidNonce or ErrInvalidOrder
// when a batch nonce cannot be resolved.
func ToOrder(fetched *FetchedOrder) (*Order, error) {
	if fetched == nil {
		return nil, parseErr("", "nil order")
	}

	rawHash := strings.SplitN(fetched.OrderHash, ":", 2)[0]
	hash, err := parseHash(rawHash)
	if err != nil {
		return nil, parseErr(rawHash, "orderHash: %v", err)
	}
	hashHex := strings.ToLower(hash.Hex())

	order := &Order{
		Hash: hashHex,
		Kind: OrderKind(fetched.SaleKind),
	}

	// The order book encodes 0 as buy and 1 as sell.
	switch fetched.Side {
	case 0:
		order.Side = OrderSideBuy
	case 1:
		order.Side = OrderSideSell
	default:
		return nil, parseErr(hashHex, "unknown side %d", fetched.Side)
	}

	order.Schema = SchemaERC1155
	if lc(fetched.Schema) == string(SchemaERC721) {
		order.Schema = SchemaERC721
	}

	if order.Maker, err = parseAddress(fetched.Maker); err != nil {
		return nil, parseErr(hashHex, "maker: %v", err)
	}
	if order.Taker, err = parseAddress(fetched.Taker); err != nil {
		return nil, parseErr(hashHex, "taker: %v", err)
	}
	if order.NFTAddress, err = parseAddress(fetched.ContractAddress); err != nil {
		return nil, parseErr(hashHex, "contractAddress: %v", err)
	}
	currency, err := parseAddress(fetched.PaymentToken)
	if err != nil {
		return nil, parseErr(hashHex, "paymentToken: %v", err)
	}
	order.Currency = ToStandardERC20Token(currency)

	if order.ListingTime, err = parseUint32(string(fetched.ListingTime)); err != nil {
		return nil, parseErr(hashHex, "listingTime: %v", err)
	}
	if order.ExpirationTime, err = parseUint32(string(fetched.ExpirationTime)); err != nil {
		return nil, parseErr(hashHex, "expirationTime: %v", err)
	}
	if order.NFTID, err = parseUint(string(fetched.TokenID)); err != nil {
		return nil, parseErr(hashHex, "tokenId: %v", err)
	}

	if order.Kind == OrderKindBatchSignedOrder {
		err = fillBatchSignedOrder(order, fetched.ExchangeData)
	} else {
		err = fillStandardOrder(order, fetched.ExchangeData)
	}
	if err != nil {
		return nil, err
	}

	// Only the orderHash and nonce determine the order id.
	order.ID = ToOrderID(hash, order.Nonce)
	return order, nil
}

func fillBatchSignedOrder(order *Order, exchangeData string) error {
	var raw batchExchangeData
	if err := json.Unmarshal([]byte(exchangeData), &raw); err != nil {
		return parseErr(order.Hash, "exchangeData: %v", err)
	}

	var err error
	if order.Nonce, err = parseUint(string(raw.Nonce)); err != nil {
		return parseErr(order.Hash, "nonce: %v", err)
	}
	if order.HashNonce, err = parseUint(string(raw.HashNonce)); err != nil {
		return parseErr(order.Hash, "hashNonce: %v", err)
	}
	if err = parseSignature(order, string(raw.V), raw.R, raw.S); err != nil {
		return err
	}

	data := &BatchSignedData{}
	if data.StartNonce, err = parseUint(string(raw.StartNonce)); err != nil {
		return parseErr(order.Hash, "startNonce: %v", err)
	}
	if data.PlatformFeeRecipient, err = parseAddress(raw.PlatformFeeRecipient); err != nil {
		return parseErr(order.Hash, "platformFeeRecipient: %v", err)
	}
	if data.BasicCollections, err = normalizeCollections(raw.BasicCollections); err != nil {
		return parseErr(order.Hash, "basicCollections: %v", err)
	}
	if data.Collections, err = normalizeCollections(raw.Collections); err != nil {
		return parseErr(order.Hash, "collections: %v", err)
	}
	order.Data = data
	order.NFTAmount = big.NewInt(1)

	location, err := FindBatchSignedOrderItem(data, order.Nonce)
	if err != nil {
		if oe, ok := err.(*OrderError); ok {
			oe.OrderHash = order.Hash
		}
		return err
	}
	order.Price = copyBig(location.Value.ERC20TokenAmount)
	return nil
}

func fillStandardOrder(order *Order, exchangeData string) error {
	var raw standardExchangeData
	if err := json.Unmarshal([]byte(exchangeData), &raw); err != nil {
		return parseErr(order.Hash, "exchangeData: %v", err)
	}
	if raw.Order == nil {
		return parseErr(order.Hash, "exchangeData: missing order")
	}
	if raw.Signature == nil {
		return parseErr(order.Hash, "exchangeData: missing signature")
	}

	var err error
	if order.Nonce, err = parseUint(string(raw.Order.Nonce)); err != nil {
		return parseErr(order.Hash, "nonce: %v", err)
	}
	if order.HashNonce, err = parseUint(string(raw.Order.HashNonce)); err != nil {
		return parseErr(order.Hash, "hashNonce: %v", err)
	}
	if err = parseSignature(order, string(raw.Signature.V), raw.Signature.R, raw.Signature.S); err != nil {
		return err
	}

	properties := raw.Order.NftProperties
	if order.Schema == SchemaERC721 {
		order.NFTAmount = big.NewInt(1)
	} else {
		if order.NFTAmount, err = parseUint(string(raw.Order.Erc1155TokenAmount)); err != nil {
			return parseErr(order.Hash, "erc1155TokenAmount: %v", err)
		}
		if order.NFTAmount.Sign() <= 0 {
			return parseErr(order.Hash, "erc1155TokenAmount must be positive")
		}
		properties = raw.Order.Erc1155TokenProperties
	}

	data := &StandardData{Fees: make([]Fee, 0, len(raw.Order.Fees))}
	for i, f := range raw.Order.Fees {
		fee := Fee{}
		if fee.Recipient, err = parseAddress(f.Recipient); err != nil {
			return parseErr(order.Hash, "fees[%d].recipient: %v", i, err)
		}
		if fee.Amount, err = parseUint(string(f.Amount)); err != nil {
			return parseErr(order.Hash, "fees[%d].amount: %v", i, err)
		}
		if fee.FeeData, err = parseHexData(f.FeeData); err != nil {
			return parseErr(order.Hash, "fees[%d].feeData: %v", i, err)
		}
		data.Fees = append(data.Fees, fee)
	}
	if order.Side == OrderSideBuy && properties != nil {
		data.Properties = make([]Property, 0, len(properties))
		for i, p := range properties {
			property := Property{}
			if property.PropertyValidator, err = parseAddress(p.PropertyValidator); err != nil {
				return parseErr(order.Hash, "properties[%d].propertyValidator: %v", i, err)
			}
			if property.PropertyData, err = parseHexData(p.PropertyData); err != nil {
				return parseErr(order.Hash, "properties[%d].propertyData: %v", i, err)
			}
			data.Properties = append(data.Properties, property)
		}
	}
	order.Data = data

	gross, err := parseUint(string(raw.Order.Erc20TokenAmount))
	if err != nil {
		return parseErr(order.Hash, "erc20TokenAmount: %v", err)
	}
	net := new(big.Int).Sub(gross, sumFees(data.Fees))
	if net.Sign() < 0 {
		return parseErr(order.Hash, "fees exceed erc20TokenAmount %s", gross.String())
	}
	order.Price = net.Div(net, order.NFTAmount)
	return nil
}

func parseSignature(order *Order, v, r, s string) error {
	parsedV, err := strconv.ParseUint(strings.TrimSpace(v), 10, 8)
	if err != nil {
		return parseErr(order.Hash, "v: %v", err)
	}
	order.V = uint8(parsedV)
	if order.R, err = parseHash(r); err != nil {
		return parseErr(order.Hash, "r: %v", err)
	}
	if order.S, err = parseHash(s); err != nil {
		return parseErr(order.Hash, "s: %v", err)
	}
	return nil
}

func parseHash(s string) (common.Hash, error) {
	s = lc(s)
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return common.Hash{}, fmt.Errorf("invalid bytes32 %q", s)
	}
	data, err := parseHexData(s)
	if err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(data), nil
}

func parseUint32(s string) (int64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func normalizeCollections(collections []wireCollection) ([]Collection, error) {
	list := make([]Collection, 0, len(collections))
	for i, c := range collections {
		var (
			collection Collection
			err        error
		)
		if collection.NFTAddress, err = parseAddress(c.NFTAddress); err != nil {
			return nil, fmt.Errorf("[%d].nftAddress: %w", i, err)
		}
		if collection.RoyaltyFeeRecipient, err = parseAddress(c.RoyaltyFeeRecipient); err != nil {
			return nil, fmt.Errorf("[%d].royaltyFeeRecipient: %w", i, err)
		}
		if collection.PlatformFee, err = parseUint16(string(c.PlatformFee)); err != nil {
			return nil, fmt.Errorf("[%d].platformFee: %w", i, err)
		}
		if collection.RoyaltyFee, err = parseUint16(string(c.RoyaltyFee)); err != nil {
			return nil, fmt.Errorf("[%d].royaltyFee: %w", i, err)
		}
		collection.Items = make([]CollectionItem, 0, len(c.Items))
		for j, item := range c.Items {
			amount, err := parseUint(string(item.ERC20TokenAmount))
			if err != nil {
				return nil, fmt.Errorf("[%d].items[%d].erc20TokenAmount: %w", i, j, err)
			}
			nftID, err := parseUint(string(item.NFTID))
			if err != nil {
				return nil, fmt.Errorf("[%d].items[%d].nftId: %w", i, j, err)
			}
			collection.Items = append(collection.Items, CollectionItem{ERC20TokenAmount: amount, NFTID: nftID})
		}
		list = append(list, collection)
	}
	return list, nil
}

// FindBatchSignedOrderItem resolves nonce to an item. Basic collections are
// scanned first, then the others, each occupying a contiguous nonce run
// starting at data.StartNonce.
func FindBatchSignedOrderItem(data *BatchSignedData, nonce *big.Int) (*BatchItemLocation, error) {
	if nonce == nil || data == nil || data.StartNonce == nil {
		return nil, newOrderError(ErrInvalidNonce, "", "missing nonce")
	}
	if nonce.Cmp(maxBatchNonce) > 0 || data.StartNonce.Cmp(maxBatchNonce) > 0 {
		return nil, newOrderError(ErrInvalidNonce, "", "nonce %s or start nonce %s exceeds 2^%d", nonce, data.StartNonce, MaxNonceBits)
	}

	target := nonce.Int64()
	start := data.StartNonce.Int64()
	for i, collection := range data.BasicCollections {
		end := start + int64(len(collection.Items))
		if target >= start && target < end {
			idx := int(target - start)
			return &BatchItemLocation{Basic: true, Collection: i, Item: idx, Value: collection.Items[idx]}, nil
		}
		start = end
	}
	for i, collection := range data.Collections {
		end := start + int64(len(collection.Items))
		if target >= start && target < end {
			idx := int(target - start)
			return &BatchItemLocation{Basic: false, Collection: i, Item: idx, Value: collection.Items[idx]}, nil
		}
		start = end
	}
	return nil, newOrderError(ErrInvalidOrder, "", "nonce %s is outside the batch", nonce)
}

// ToOrderID derives the order id from the raw order hash and the nonce
func ToOrderID(orderHash common.Hash, nonce *big.Int) string {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type},
		{Type: uint256Type},
	}

	encoded, err := arguments.Pack([32]byte(orderHash), copyBig(nonce))
	if err != nil {
		panic("failed to encode order id: " + err.Error())
	}
	return strings.ToLower(crypto.Keccak256Hash(encoded).Hex())
}

// ToStandardERC20Token maps the native coin sentinel to the zero address
func ToStandardERC20Token(address string) string {
	address = lc(address)
	if address == "" || address == NativeEthAddress {
		return ZeroAddress
	}
	return address
}

// ToRawERC20Token maps the zero address to the native coin sentinel
func ToRawERC20Token(address string) string {
	address = lc(address)
	if address == "" || address == ZeroAddress {
		return NativeEthAddress
	}
	return address
}

func sumFees(fees []Fee) *big.Int {
	total := new(big.Int)
	for _, fee := range fees {
		if fee.Amount != nil {
			total.Add(total, fee.Amount)
		}
	}
	return total
}

// GetExpiry packs [32 bits(listingTime) + 32 bits(expirationTime)]
func GetExpiry(order *Order) *big.Int {
	expiry := new(big.Int).Lsh(big.NewInt(order.ListingTime), 32)
	return expiry.Or(expiry, big.NewInt(order.ExpirationTime))
}

// GetRawERC20Amount is the erc20TokenAmount the maker signed: the net price
// times the amount, plus every fee for standard orders.
func GetRawERC20Amount(order *Order) (*big.Int, error) {
	amount := new(big.Int).Mul(copyBig(order.Price), copyBig(order.NFTAmount))
	if order.Kind == OrderKindBatchSignedOrder {
		return amount, nil
	}
	data, err := order.StandardData()
	if err != nil {
		return nil, err
	}
	return amount.Add(amount, sumFees(data.Fees)), nil
}

func toRawFees(order *Order, fees []Fee) ([]chain.Fee, error) {
	list := make([]chain.Fee, 0, len(fees))
	for i, fee := range fees {
		feeData, err := hexToBytes(fee.FeeData)
		if err != nil {
			return nil, newOrderError(ErrInvalidOrder, order.Hash, "fees[%d].feeData: %v", i, err)
		}
		list = append(list, chain.Fee{
			Recipient: common.HexToAddress(fee.Recipient),
			Amount:    copyBig(fee.Amount),
			FeeData:   feeData,
		})
	}
	return list, nil
}

func toRawProperties(order *Order, properties []Property) ([]chain.Property, error) {
	list := make([]chain.Property, 0, len(properties))
	for i, property := range properties {
		propertyData, err := hexToBytes(property.PropertyData)
		if err != nil {
			return nil, newOrderError(ErrInvalidOrder, order.Hash, "properties[%d].propertyData: %v", i, err)
		}
		list = append(list, chain.Property{
			PropertyValidator: common.HexToAddress(property.PropertyValidator),
			PropertyData:      propertyData,
		})
	}
	return list, nil
}

// ToRawNFTSellOrder builds the ERC721 sell order tuple
func ToRawNFTSellOrder(order *Order) (*chain.NFTSellOrder, error) {
	data, err := order.StandardData()
	if err != nil {
		return nil, err
	}
	amount, err := GetRawERC20Amount(order)
	if err != nil {
		return nil, err
	}
	fees, err := toRawFees(order, data.Fees)
	if err != nil {
		return nil, err
	}
	return &chain.NFTSellOrder{
		Maker:            common.HexToAddress(order.Maker),
		Taker:            common.HexToAddress(order.Taker),
		Expiry:           GetExpiry(order),
		Nonce:            copyBig(order.Nonce),
		Erc20Token:       common.HexToAddress(ToRawERC20Token(order.Currency)),
		Erc20TokenAmount: amount,
		Fees:             fees,
		Nft:              common.HexToAddress(order.NFTAddress),
		NftId:            copyBig(order.NFTID),
	}, nil
}

// ToRawNFTBuyOrder builds the ERC721 buy order tuple
func ToRawNFTBuyOrder(order *Order) (*chain.NFTBuyOrder, error) {
	data, err := order.StandardData()
	if err != nil {
		return nil, err
	}
	amount, err := GetRawERC20Amount(order)
	if err != nil {
		return nil, err
	}
	fees, err := toRawFees(order, data.Fees)
	if err != nil {
		return nil, err
	}
	properties, err := toRawProperties(order, data.Properties)
	if err != nil {
		return nil, err
	}
	return &chain.NFTBuyOrder{
		Maker:            common.HexToAddress(order.Maker),
		Taker:            common.HexToAddress(order.Taker),
		Expiry:           GetExpiry(order),
		Nonce:            copyBig(order.Nonce),
		Erc20Token:       common.HexToAddress(ToRawERC20Token(order.Currency)),
		Erc20TokenAmount: amount,
		Fees:             fees,
		Nft:              common.HexToAddress(order.NFTAddress),
		NftId:            copyBig(order.NFTID),
		NftProperties:    properties,
	}, nil
}

// ToRawERC1155SellOrder builds the ERC1155 sell order tuple
func ToRawERC1155SellOrder(order *Order) (*chain.ERC1155SellOrder, error) {
	data, err := order.StandardData()
	if err != nil {
		return nil, err
	}
	amount, err := GetRawERC20Amount(order)
	if err != nil {
		return nil, err
	}
	fees, err := toRawFees(order, data.Fees)
	if err != nil {
		return nil, err
	}
	return &chain.ERC1155SellOrder{
		Maker:              common.HexToAddress(order.Maker),
		Taker:              common.HexToAddress(order.Taker),
		Expiry:             GetExpiry(order),
		Nonce:              copyBig(order.Nonce),
		Erc20Token:         common.HexToAddress(ToRawERC20Token(order.Currency)),
		Erc20TokenAmount:   amount,
		Fees:               fees,
		Erc1155Token:       common.HexToAddress(order.NFTAddress),
		Erc1155TokenId:     copyBig(order.NFTID),
		Erc1155TokenAmount: copyBig(order.NFTAmount),
	}, nil
}

// ToRawERC1155BuyOrder builds the ERC1155 buy order tuple
func ToRawERC1155BuyOrder(order *Order) (*chain.ERC1155BuyOrder, error) {
	data, err := order.StandardData()
	if err != nil {
		return nil, err
	}
	amount, err := GetRawERC20Amount(order)
	if err != nil {
		return nil, err
	}
	fees, err := toRawFees(order, data.Fees)
	if err != nil {
		return nil, err
	}
	properties, err := toRawProperties(order, data.Properties)
	if err != nil {
		return nil, err
	}
	return &chain.ERC1155BuyOrder{
		Maker:                  common.HexToAddress(order.Maker),
		Taker:                  common.HexToAddress(order.Taker),
		Expiry:                 GetExpiry(order),
		Nonce:                  copyBig(order.Nonce),
		Erc20Token:             common.HexToAddress(ToRawERC20Token(order.Currency)),
		Erc20TokenAmount:       amount,
		Fees:                   fees,
		Erc1155Token:           common.HexToAddress(order.NFTAddress),
		Erc1155TokenId:         copyBig(order.NFTID),
		Erc1155TokenProperties: properties,
		Erc1155TokenAmount:     copyBig(order.NFTAmount),
	}, nil
}

// RawBasicCollection is a basic collection with its items packed as
// [96 bits(erc20TokenAmount) + 160 bits(nftId)] words.
type RawBasicCollection struct {
	NFTAddress string
	Fee        [32]byte
	Items      [][32]byte
}

// RawCollection is a collection whose items keep full width fields
type RawCollection struct {
	NFTAddress string
	Fee        [32]byte
	Items      []CollectionItem
}

// RawBatchSignedOrder is the BatchSignedERC721Orders struct the maker signed
type RawBatchSignedOrder struct {
	Maker                string
	ListingTime          int64
	ExpiryTime           int64
	StartNonce           *big.Int
	ERC20Token           string
	PlatformFeeRecipient string
	BasicCollections     []RawBasicCollection
	Collections          []RawCollection
	HashNonce            *big.Int
}

// ToRawBatchSignedOrder builds the signed batch struct
func ToRawBatchSignedOrder(order *Order) (*RawBatchSignedOrder, error) {
	data, err := order.BatchSignedData()
	if err != nil {
		return nil, err
	}

	raw := &RawBatchSignedOrder{
		Maker:                order.Maker,
		ListingTime:          order.ListingTime,
		ExpiryTime:           order.ExpirationTime,
		StartNonce:           copyBig(data.StartNonce),
		ERC20Token:           ToRawERC20Token(order.Currency),
		PlatformFeeRecipient: data.PlatformFeeRecipient,
		BasicCollections:     make([]RawBasicCollection, 0, len(data.BasicCollections)),
		Collections:          make([]RawCollection, 0, len(data.Collections)),
		HashNonce:            copyBig(order.HashNonce),
	}

	for _, collection := range data.BasicCollections {
		fee, err := collectionFeeWord(collection)
		if err != nil {
			return nil, err
		}
		items := make([][32]byte, 0, len(collection.Items))
		for _, item := range collection.Items {
			word, err := basicItemWord(item)
			if err != nil {
				return nil, err
			}
			items = append(items, word)
		}
		raw.BasicCollections = append(raw.BasicCollections, RawBasicCollection{
			NFTAddress: collection.NFTAddress,
			Fee:        fee,
			Items:      items,
		})
	}

	for _, collection := range data.Collections {
		fee, err := collectionFeeWord(collection)
		if err != nil {
			return nil, err
		}
		raw.Collections = append(raw.Collections, RawCollection{
			NFTAddress: collection.NFTAddress,
			Fee:        fee,
			Items:      collection.Items,
		})
	}
	return raw, nil
}

// collectionFeeWord packs [64 bits(unused) + 16 bits(platformFee) + 16 bits(royaltyFee) + 160 bits(royaltyFeeRecipient)]
func collectionFeeWord(collection Collection) ([32]byte, error) {
	return toWord(
		Uint64Bits(0, 64),
		Uint64Bits(uint64(collection.PlatformFee), 16),
		Uint64Bits(uint64(collection.RoyaltyFee), 16),
		AddressBits(collection.RoyaltyFeeRecipient, 160),
	)
}

// basicItemWord packs [96 bits(erc20TokenAmount) + 160 bits(nftId)]
func basicItemWord(item CollectionItem) ([32]byte, error) {
	return toWord(
		BigBits(item.ERC20TokenAmount, 96),
		BigBits(item.NFTID, 160),
	)
}
