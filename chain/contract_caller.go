package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ContractCaller handles Element exchange interactions over JSON-RPC
type ContractCaller struct {
	client       *ethclient.Client
	privateKey   *ecdsa.PrivateKey
	exchangeAddr common.Address
	exchangeABI  abi.ABI
}

// NewContractCaller creates a new ContractCaller instance. privateKeyHex may
// be empty for a read only caller.
func NewContractCaller(rpcURL string, privateKeyHex string, exchangeAddr string) (*ContractCaller, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	var privateKey *ecdsa.PrivateKey
	if privateKeyHex != "" {
		privateKey, err = crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
	}

	return &ContractCaller{
		client:       client,
		privateKey:   privateKey,
		exchangeAddr: common.HexToAddress(exchangeAddr),
		exchangeABI:  GetExchangeABI(),
	}, nil
}

// GetSignerAddress returns the address of the signer
func (cc *ContractCaller) GetSignerAddress() common.Address {
	if cc.privateKey == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(cc.privateKey.PublicKey)
}

// GetHashNonce returns the current hash nonce of maker
func (cc *ContractCaller) GetHashNonce(ctx context.Context, maker common.Address) (*big.Int, error) {
	var hashNonce *big.Int
	if err := cc.call(ctx, &hashNonce, "getHashNonce", maker); err != nil {
		return nil, err
	}
	return hashNonce, nil
}

// GetERC721OrderStatusBitVector returns the filled/cancelled bits of the 256
// nonces starting at nonceRange << 8
func (cc *ContractCaller) GetERC721OrderStatusBitVector(ctx context.Context, maker common.Address, nonceRange *big.Int) (*big.Int, error) {
	var vector *big.Int
	if err := cc.call(ctx, &vector, "getERC721OrderStatusBitVector", maker, nonceRange); err != nil {
		return nil, err
	}
	return vector, nil
}

// GetERC1155SellOrderInfo returns the status and remaining amount of a sell order
func (cc *ContractCaller) GetERC1155SellOrderInfo(ctx context.Context, order ERC1155SellOrder) (*OrderInfo, error) {
	return cc.orderInfo(ctx, "getERC1155SellOrderInfo", order)
}

// GetERC1155BuyOrderInfo returns the status and remaining amount of a buy order
func (cc *ContractCaller) GetERC1155BuyOrderInfo(ctx context.Context, order ERC1155BuyOrder) (*OrderInfo, error) {
	return cc.orderInfo(ctx, "getERC1155BuyOrderInfo", order)
}

func (cc *ContractCaller) orderInfo(ctx context.Context, method string, order interface{}) (*OrderInfo, error) {
	data, err := cc.exchangeABI.Pack(method, order)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &cc.exchangeAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}

	values, err := cc.exchangeABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s output: %d values", method, len(values))
	}

	info := *abi.ConvertType(values[0], new(OrderInfo)).(*OrderInfo)
	return &info, nil
}

// call packs a view call on the exchange and unpacks its single output into out
func (cc *ContractCaller) call(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	data, err := cc.exchangeABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}

	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &cc.exchangeAddr,
		Data: data,
	}, nil)
	if err != nil {
		return err
	}

	if err := cc.exchangeABI.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return nil
}

// CheckGasBalance checks if signer can pay for gas plus value
func (cc *ContractCaller) CheckGasBalance(ctx context.Context, estimatedGas uint64, value *big.Int) error {
	signerAddr := cc.GetSignerAddress()
	balance, err := cc.client.BalanceAt(ctx, signerAddr, nil)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	gasPrice, err := cc.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	// Add 20% safety margin
	estimatedGasWithMargin := new(big.Int).Mul(new(big.Int).SetUint64(estimatedGas), big.NewInt(120))
	estimatedGasWithMargin.Div(estimatedGasWithMargin, big.NewInt(100))

	required := new(big.Int).Mul(estimatedGasWithMargin, gasPrice)
	if value != nil {
		required.Add(required, value)
	}

	if balance.Cmp(required) < 0 {
		return fmt.Errorf("insufficient balance: signer %s has %s wei, but needs approximately %s wei",
			signerAddr.Hex(),
			balance.String(),
			required.String(),
		)
	}

	return nil
}

// SendTransaction signs and sends a call to the exchange. value may be nil.
func (cc *ContractCaller) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	if cc.privateKey == nil {
		return nil, fmt.Errorf("no private key configured")
	}
	if value == nil {
		value = new(big.Int)
	}

	from := cc.GetSignerAddress()
	gasLimit, err := cc.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	if err := cc.CheckGasBalance(ctx, gasLimit, value); err != nil {
		return nil, err
	}

	chainID, err := cc.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	nonce, err := cc.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := cc.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit * 120 / 100,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), cc.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := cc.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx, nil
}

// WaitForReceipt waits for a transaction receipt with timeout
func (cc *ContractCaller) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	for {
		receipt, err := cc.client.TransactionReceipt(timeoutCtx, txHash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-timeoutCtx.Done():
			return nil, fmt.Errorf("timeout waiting for transaction receipt: %s", txHash.Hex())
		case <-time.After(2 * time.Second):
		}
	}
}

// ExchangeLogsQuery filters the exchange logs of a block range. A nil toBlock
// means latest.
func (cc *ContractCaller) ExchangeLogsQuery(fromBlock, toBlock *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: []common.Address{cc.exchangeAddr},
	}
}

// FilterLogs returns the exchange logs of a block range
func (cc *ContractCaller) FilterLogs(ctx context.Context, fromBlock, toBlock *big.Int) ([]types.Log, error) {
	logs, err := cc.client.FilterLogs(ctx, cc.ExchangeLogsQuery(fromBlock, toBlock))
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}
	return logs, nil
}

// SubscribeLogs streams new exchange logs into ch. It needs a websocket or
// IPC endpoint.
func (cc *ContractCaller) SubscribeLogs(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error) {
	sub, err := cc.client.SubscribeFilterLogs(ctx, cc.ExchangeLogsQuery(nil, nil), ch)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to logs: %w", err)
	}
	return sub, nil
}

// Close closes the Ethereum client connection
func (cc *ContractCaller) Close() {
	if cc.client != nil {
		cc.client.Close()
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
