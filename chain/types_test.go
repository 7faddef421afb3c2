package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExchangeABI_EventTopics(t *testing.T) {
	topics := map[string]string{
		"ERC721SellOrderFilled":  "0x9c248aa1a265aa616f707b979d57f4529bb63a4fc34dc7fc61fdddc18410f74e",
		"ERC721BuyOrderFilled":   "0xd90a5c60975c6ff8eafcf02088e7b50ae5d9e156a79206ba553df1c4fb4594c2",
		"ERC1155SellOrderFilled": "0xfcde121a3f6a9b14a3ce266d61fc00940de86c4d8c1d733fe62d503ae5d99ff9",
		"ERC1155BuyOrderFilled":  "0x105616901449a64554ca9246a5bbcaca973b40b3c0055e5070c6fa191618d9f3",
		"ERC721OrderCancelled":   "0xa015ad2dc32f266993958a0fd9884c746b971b254206f3478bc43e2f125c7b9e",
		"ERC1155OrderCancelled":  "0x4d5ea7da64f50a4a329921b8d2cab52dff4ebcc58b61d10ff839e28e91445684",
		"HashNonceIncremented":   "0x4cf3e8a83c6bf8a510613208458629675b4ae99b8029e3ab6cb6a86e5f01fd31",
	}

	parsed := GetExchangeABI()
	assert.Len(t, parsed.Events, len(topics))
	for name, topic := range topics {
		event, ok := parsed.Events[name]
		require.True(t, ok, name)
		assert.Equal(t, topic, event.ID.Hex(), event.Sig)
	}
}

func TestGetExchangeABI_MethodSelectors(t *testing.T) {
	selectors := map[string]string{
		"buyERC721Ex":                   "0xb18d619f",
		"buyERC1155Ex":                  "0x744773f1",
		"sellERC721":                    "0xa8809485",
		"sellERC1155":                   "0x496c5a55",
		"fillBatchSignedERC721Order":    "0xa4d73041",
		"batchCancelERC721Orders":       "0x86219940",
		"batchCancelERC1155Orders":      "0xa1865d6f",
		"incrementHashNonce":            "0x050505d6",
		"getHashNonce":                  "0x5e725186",
		"getERC721OrderStatusBitVector": "0x030b2730",
	}

	parsed := GetExchangeABI()
	for name, selector := range selectors {
		method, ok := parsed.Methods[name]
		require.True(t, ok, name)
		assert.Equal(t, selector, hexutil.Encode(method.ID), method.Sig)
	}
}
