package elementorder

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHash       = "0x1111111111111111111111111111111111111111111111111111111111111111"
	testMaker      = "0x2222222222222222222222222222222222222222"
	testNFT        = "0x3333333333333333333333333333333333333333"
	testFeeAccount = "0x4444444444444444444444444444444444444444"
	testToken      = "0x5555555555555555555555555555555555555555"
	testValidator  = "0x6666666666666666666666666666666666666666"
	testSigR       = "0x7777777777777777777777777777777777777777777777777777777777777777"
	testSigS       = "0x0888888888888888888888888888888888888888888888888888888888888888"
)

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func standardExchangeDataJSON(t *testing.T, order map[string]interface{}) string {
	t.Helper()
	return mustJSON(t, map[string]interface{}{
		"order": order,
		"signature": map[string]interface{}{
			"signatureType": 0,
			"v":             27,
			"r":             testSigR,
			"s":             testSigS,
		},
	})
}

func newFetchedERC721Sell(t *testing.T) *FetchedOrder {
	return &FetchedOrder{
		CreateTime:      "1700000100",
		ListingTime:     "1700000000",
		ExpirationTime:  "1800000000",
		OrderHash:       testHash,
		Maker:           testMaker,
		Side:            1,
		SaleKind:        int(OrderKindFixedPrice),
		PaymentToken:    NativeEthAddress,
		Schema:          "ERC721",
		ContractAddress: testNFT,
		TokenID:         "42",
		Quantity:        "1",
		ExchangeData: standardExchangeDataJSON(t, map[string]interface{}{
			"nonce":            "7",
			"hashNonce":        "0",
			"erc20TokenAmount": "1000",
			"fees": []map[string]interface{}{
				{"recipient": testFeeAccount, "amount": "50", "feeData": "0x"},
				{"recipient": testFeeAccount, "amount": "25", "feeData": ""},
			},
		}),
	}
}

func newFetchedERC1155Buy(t *testing.T, amount string) *FetchedOrder {
	return &FetchedOrder{
		CreateTime:      "1700000100",
		ListingTime:     "1700000000",
		ExpirationTime:  "1800000000",
		OrderHash:       testHash + ":1",
		Maker:           testMaker,
		Side:            0,
		SaleKind:        int(OrderKindFixedPrice),
		PaymentToken:    testToken,
		Schema:          "erc1155",
		ContractAddress: testNFT,
		TokenID:         "9",
		Quantity:        flexString(amount),
		ExchangeData: standardExchangeDataJSON(t, map[string]interface{}{
			"nonce":              "8",
			"hashNonce":          "2",
			"erc20TokenAmount":   "1000",
			"erc1155TokenAmount": amount,
			"fees":               []map[string]interface{}{},
			"erc1155TokenProperties": []map[string]interface{}{
				{"propertyValidator": testValidator, "propertyData": "0xAB"},
			},
		}),
	}
}

func newTestBatchData() *BatchSignedData {
	item := func(amount, id int64) CollectionItem {
		return CollectionItem{ERC20TokenAmount: big.NewInt(amount), NFTID: big.NewInt(id)}
	}
	return &BatchSignedData{
		StartNonce:           big.NewInt(100),
		PlatformFeeRecipient: testFeeAccount,
		BasicCollections: []Collection{{
			NFTAddress:          testNFT,
			PlatformFee:         200,
			RoyaltyFeeRecipient: testFeeAccount,
			RoyaltyFee:          100,
			Items:               []CollectionItem{item(10, 1), item(20, 2), item(30, 3)},
		}},
		Collections: []Collection{{
			NFTAddress:          testToken,
			PlatformFee:         50,
			RoyaltyFeeRecipient: ZeroAddress,
			Items:               []CollectionItem{item(40, 4), item(50, 5)},
		}},
	}
}

func newFetchedBatch(t *testing.T, nonce string) *FetchedOrder {
	wireCollections := func(collections []Collection) []map[string]interface{} {
		list := make([]map[string]interface{}, 0, len(collections))
		for _, c := range collections {
			items := make([]map[string]interface{}, 0, len(c.Items))
			for _, item := range c.Items {
				items = append(items, map[string]interface{}{
					"erc20TokenAmount": item.ERC20TokenAmount.String(),
					"nftId":            item.NFTID.String(),
				})
			}
			list = append(list, map[string]interface{}{
				"nftAddress":          c.NFTAddress,
				"platformFee":         c.PlatformFee,
				"royaltyFeeRecipient": c.RoyaltyFeeRecipient,
				"royaltyFee":          c.RoyaltyFee,
				"items":               items,
			})
		}
		return list
	}

	data := newTestBatchData()
	return &FetchedOrder{
		CreateTime:      "1700000100",
		ListingTime:     "1700000000",
		ExpirationTime:  "1800000000",
		OrderHash:       testHash,
		Maker:           testMaker,
		Side:            1,
		SaleKind:        int(OrderKindBatchSignedOrder),
		PaymentToken:    ZeroAddress,
		Schema:          "erc721",
		ContractAddress: testNFT,
		TokenID:         "2",
		Quantity:        "1",
		ExchangeData: mustJSON(t, map[string]interface{}{
			"nonce":                nonce,
			"hashNonce":            "0",
			"v":                    28,
			"r":                    testSigR,
			"s":                    testSigS,
			"startNonce":           100,
			"platformFeeRecipient": data.PlatformFeeRecipient,
			"basicCollections":     wireCollections(data.BasicCollections),
			"collections":          wireCollections(data.Collections),
		}),
	}
}

func TestToOrder_ERC721SellNetPrice(t *testing.T) {
	order, err := ToOrder(newFetchedERC721Sell(t))
	require.NoError(t, err)

	assert.Equal(t, OrderSideSell, order.Side)
	assert.Equal(t, OrderKindFixedPrice, order.Kind)
	assert.Equal(t, SchemaERC721, order.Schema)
	assert.Equal(t, testHash, order.Hash)
	assert.Equal(t, ZeroAddress, order.Currency)
	assert.Equal(t, ZeroAddress, order.Taker)
	assert.Equal(t, int64(1700000000), order.ListingTime)
	assert.Equal(t, int64(1800000000), order.ExpirationTime)
	assert.Equal(t, "42", order.NFTID.String())
	assert.Equal(t, "1", order.NFTAmount.String())
	assert.Equal(t, "925", order.Price.String())
	assert.Equal(t, uint8(27), order.V)
	assert.Equal(t, common.HexToHash(testSigR), order.R)

	data, err := order.StandardData()
	require.NoError(t, err)
	require.Len(t, data.Fees, 2)
	assert.Equal(t, "0x", data.Fees[1].FeeData)
	assert.Nil(t, data.Properties)

	gross, err := GetRawERC20Amount(order)
	require.NoError(t, err)
	assert.Equal(t, "1000", gross.String())

	assert.Equal(t, ToOrderID(common.HexToHash(testHash), big.NewInt(7)), order.ID)
}

func TestToOrder_ERC1155BuyKeepsProperties(t *testing.T) {
	order, err := ToOrder(newFetchedERC1155Buy(t, "4"))
	require.NoError(t, err)

	assert.Equal(t, OrderSideBuy, order.Side)
	assert.Equal(t, SchemaERC1155, order.Schema)
	assert.Equal(t, testHash, order.Hash)
	assert.Equal(t, testToken, order.Currency)
	assert.Equal(t, "4", order.NFTAmount.String())
	assert.Equal(t, "250", order.Price.String())
	assert.Equal(t, "2", order.HashNonce.String())

	data, err := order.StandardData()
	require.NoError(t, err)
	require.Len(t, data.Properties, 1)
	assert.Equal(t, testValidator, data.Properties[0].PropertyValidator)
	assert.Equal(t, "0xab", data.Properties[0].PropertyData)
}

func TestToOrder_ParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *FetchedOrder)
	}{
		{"unknown side", func(f *FetchedOrder) { f.Side = 2 }},
		{"short hash", func(f *FetchedOrder) { f.OrderHash = "0x1234" }},
		{"bad maker", func(f *FetchedOrder) { f.Maker = "maker" }},
		{"listing time overflow", func(f *FetchedOrder) { f.ListingTime = "4294967296" }},
		{"negative expiration", func(f *FetchedOrder) { f.ExpirationTime = "-1" }},
		{"bad token id", func(f *FetchedOrder) { f.TokenID = "abc" }},
		{"bad exchange data", func(f *FetchedOrder) { f.ExchangeData = "{" }},
		{"missing signature", func(f *FetchedOrder) { f.ExchangeData = `{"order":{"nonce":"1"}}` }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetched := newFetchedERC721Sell(t)
			tt.mutate(fetched)
			_, err := ToOrder(fetched)
			assert.ErrorIs(t, err, ErrParse)
		})
	}

	_, err := ToOrder(nil)
	assert.ErrorIs(t, err, ErrParse)
}

func TestToOrder_RejectsZeroERC1155Amount(t *testing.T) {
	_, err := ToOrder(newFetchedERC1155Buy(t, "0"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestToOrder_RejectsFeesAboveAmount(t *testing.T) {
	fetched := newFetchedERC721Sell(t)
	fetched.ExchangeData = standardExchangeDataJSON(t, map[string]interface{}{
		"nonce":            "7",
		"hashNonce":        "0",
		"erc20TokenAmount": "60",
		"fees": []map[string]interface{}{
			{"recipient": testFeeAccount, "amount": "50"},
			{"recipient": testFeeAccount, "amount": "25"},
		},
	})

	_, err := ToOrder(fetched)
	assert.ErrorIs(t, err, ErrParse)
}

func TestToOrder_RejectsNegativeIntegers(t *testing.T) {
	tests := []struct {
		name  string
		order map[string]interface{}
	}{
		{"fee", map[string]interface{}{
			"nonce": "7", "hashNonce": "0", "erc20TokenAmount": "1000",
			"fees": []map[string]interface{}{{"recipient": testFeeAccount, "amount": "-50"}},
		}},
		{"nonce", map[string]interface{}{"nonce": "-7", "hashNonce": "0", "erc20TokenAmount": "1000"}},
		{"hash nonce", map[string]interface{}{"nonce": "7", "hashNonce": "-1", "erc20TokenAmount": "1000"}},
		{"amount", map[string]interface{}{"nonce": "7", "hashNonce": "0", "erc20TokenAmount": "-1000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetched := newFetchedERC721Sell(t)
			fetched.ExchangeData = standardExchangeDataJSON(t, tt.order)
			_, err := ToOrder(fetched)
			assert.ErrorIs(t, err, ErrParse)
		})
	}

	fetched := newFetchedERC721Sell(t)
	fetched.TokenID = "-42"
	_, err := ToOrder(fetched)
	assert.ErrorIs(t, err, ErrParse)
}

func TestToRawNFTSellOrder_RejectsBadFeeData(t *testing.T) {
	order, err := ToOrder(newFetchedERC721Sell(t))
	require.NoError(t, err)
	data, err := order.StandardData()
	require.NoError(t, err)
	data.Fees[0].FeeData = "0xzz"

	_, err = ToRawNFTSellOrder(order)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewTypedData(newTestExchange(t).Domain(), order)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestToOrder_SellOrderDropsProperties(t *testing.T) {
	fetched := newFetchedERC1155Buy(t, "4")
	fetched.Side = 1

	order, err := ToOrder(fetched)
	require.NoError(t, err)
	data, err := order.StandardData()
	require.NoError(t, err)
	assert.Nil(t, data.Properties)
}

func TestFetchedOrder_UnmarshalNumbers(t *testing.T) {
	var fetched FetchedOrder
	err := json.Unmarshal([]byte(`{"createTime":1700000100,"listingTime":"1700000000","expirationTime":null,"tokenId":12345678901234567890123}`), &fetched)
	require.NoError(t, err)
	assert.Equal(t, flexString("1700000100"), fetched.CreateTime)
	assert.Equal(t, flexString("1700000000"), fetched.ListingTime)
	assert.Equal(t, flexString(""), fetched.ExpirationTime)
	assert.Equal(t, flexString("12345678901234567890123"), fetched.TokenID)
}

func TestFindBatchSignedOrderItem(t *testing.T) {
	data := newTestBatchData()

	location, err := FindBatchSignedOrderItem(data, big.NewInt(101))
	require.NoError(t, err)
	assert.True(t, location.Basic)
	assert.Equal(t, 0, location.Collection)
	assert.Equal(t, 1, location.Item)
	assert.Equal(t, "20", location.Value.ERC20TokenAmount.String())

	location, err = FindBatchSignedOrderItem(data, big.NewInt(104))
	require.NoError(t, err)
	assert.False(t, location.Basic)
	assert.Equal(t, 0, location.Collection)
	assert.Equal(t, 1, location.Item)
	assert.Equal(t, "5", location.Value.NFTID.String())

	_, err = FindBatchSignedOrderItem(data, big.NewInt(99))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = FindBatchSignedOrderItem(data, big.NewInt(105))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	tooLarge := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), MaxNonceBits), big.NewInt(1))
	_, err = FindBatchSignedOrderItem(data, tooLarge)
	assert.ErrorIs(t, err, ErrInvalidNonce)
}

func TestToOrder_BatchSigned(t *testing.T) {
	order, err := ToOrder(newFetchedBatch(t, "104"))
	require.NoError(t, err)

	assert.Equal(t, OrderKindBatchSignedOrder, order.Kind)
	assert.Equal(t, "50", order.Price.String())
	assert.Equal(t, "1", order.NFTAmount.String())
	assert.Equal(t, uint8(28), order.V)

	data, err := order.BatchSignedData()
	require.NoError(t, err)
	assert.Equal(t, "100", data.StartNonce.String())
	require.Len(t, data.BasicCollections, 1)
	require.Len(t, data.Collections, 1)
	assert.Equal(t, uint16(200), data.BasicCollections[0].PlatformFee)
	assert.Equal(t, uint16(100), data.BasicCollections[0].RoyaltyFee)

	gross, err := GetRawERC20Amount(order)
	require.NoError(t, err)
	assert.Equal(t, "50", gross.String())
}

func TestToOrder_BatchNonceOutsideBatch(t *testing.T) {
	_, err := ToOrder(newFetchedBatch(t, "105"))
	require.ErrorIs(t, err, ErrInvalidOrder)

	var orderErr *OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, testHash, orderErr.OrderHash)
}

func TestToOrder_BatchNonceTooLarge(t *testing.T) {
	_, err := ToOrder(newFetchedBatch(t, "281474976710657"))
	assert.ErrorIs(t, err, ErrInvalidNonce)
}

func TestToOrderID_DependsOnHashAndNonce(t *testing.T) {
	hash := common.HexToHash(testHash)
	id := ToOrderID(hash, big.NewInt(1))

	assert.Len(t, id, 66)
	assert.Equal(t, id, ToOrderID(hash, big.NewInt(1)))
	assert.NotEqual(t, id, ToOrderID(hash, big.NewInt(2)))
	assert.NotEqual(t, id, ToOrderID(common.HexToHash(testSigR), big.NewInt(1)))
}

func TestERC20TokenRoundTrip(t *testing.T) {
	assert.Equal(t, ZeroAddress, ToStandardERC20Token(NativeEthAddress))
	assert.Equal(t, ZeroAddress, ToStandardERC20Token(""))
	assert.Equal(t, NativeEthAddress, ToRawERC20Token(ZeroAddress))
	assert.Equal(t, testToken, ToRawERC20Token(ToStandardERC20Token(testToken)))
	assert.Equal(t, NativeEthAddress, ToRawERC20Token(ToStandardERC20Token(NativeEthAddress)))
}

func TestGetExpiry(t *testing.T) {
	order := &Order{ListingTime: 1, ExpirationTime: 2}
	expected := new(big.Int).Lsh(big.NewInt(1), 32)
	expected.Or(expected, big.NewInt(2))
	assert.Equal(t, expected.String(), GetExpiry(order).String())
}

func TestToRawBatchSignedOrder_PacksWords(t *testing.T) {
	order := &Order{
		Kind:     OrderKindBatchSignedOrder,
		Maker:    testMaker,
		Currency: ZeroAddress,
		Data:     newTestBatchData(),
	}

	raw, err := ToRawBatchSignedOrder(order)
	require.NoError(t, err)
	assert.Equal(t, NativeEthAddress, raw.ERC20Token)
	require.Len(t, raw.BasicCollections, 1)
	require.Len(t, raw.BasicCollections[0].Items, 3)

	// (10 << 160) | 1
	expectedItem := new(big.Int).Lsh(big.NewInt(10), 160)
	expectedItem.Or(expectedItem, big.NewInt(1))
	assert.Equal(t, expectedItem.String(), new(big.Int).SetBytes(raw.BasicCollections[0].Items[0][:]).String())

	// (200 << 176) | (100 << 160) | recipient
	expectedFee := new(big.Int).Lsh(big.NewInt(200), 176)
	expectedFee.Or(expectedFee, new(big.Int).Lsh(big.NewInt(100), 160))
	expectedFee.Or(expectedFee, new(big.Int).SetBytes(common.HexToAddress(testFeeAccount).Bytes()))
	assert.Equal(t, expectedFee.String(), new(big.Int).SetBytes(raw.BasicCollections[0].Fee[:]).String())

	require.Len(t, raw.Collections, 1)
	assert.Equal(t, "40", raw.Collections[0].Items[0].ERC20TokenAmount.String())
}
