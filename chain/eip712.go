package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712 related errors
var (
	ErrInvalidSignatureV = errors.New("invalid signature v")
)

// EIP712 Domain constants of the Element exchange
const (
	EIP712DomainName    = "ElementEx"
	EIP712DomainVersion = "1.0.0"
)

// EIP712DomainType is the field list of the EIP712Domain struct
var EIP712DomainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// NewEIP712Domain creates the Element domain for a chain and exchange deployment
func NewEIP712Domain(chainID int64, verifyingContract string) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              EIP712DomainName,
		Version:           EIP712DomainVersion,
		ChainId:           math.NewHexOrDecimal256(chainID),
		VerifyingContract: verifyingContract,
	}
}

// EIP712Verifier hashes typed data and recovers signers with go-ethereum's apitypes
type EIP712Verifier struct{}

// HashTypedData computes keccak256("\x19\x01" ++ domainSeparator ++ structHash)
func (EIP712Verifier) HashTypedData(typedData apitypes.TypedData) (common.Hash, error) {
	return HashTypedData(typedData)
}

// RecoverSigner recovers the address that produced (v, r, s) over the typed data
func (EIP712Verifier) RecoverSigner(typedData apitypes.TypedData, v uint8, r, s common.Hash) (common.Address, error) {
	digest, err := HashTypedData(typedData)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, v, r, s)
}

// HashTypedData computes the EIP712 digest of typedData
func HashTypedData(typedData apitypes.TypedData) (common.Hash, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash %s: %w", typedData.PrimaryType, err)
	}

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator...)
	data = append(data, structHash...)

	return crypto.Keccak256Hash(data), nil
}

// RecoverAddress recovers the signer of digest. v may be 0/1 or 27/28.
func RecoverAddress(digest common.Hash, v uint8, r, s common.Hash) (common.Address, error) {
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, ErrInvalidSignatureV
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig[0:32], r.Bytes())
	copy(sig[32:64], s.Bytes())
	sig[64] = v

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignTypedData signs typed data and returns (v, r, s) with v in {27, 28}
func SignTypedData(typedData apitypes.TypedData, key *ecdsa.PrivateKey) (uint8, common.Hash, common.Hash, error) {
	digest, err := HashTypedData(typedData)
	if err != nil {
		return 0, common.Hash{}, common.Hash{}, err
	}

	signature, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return 0, common.Hash{}, common.Hash{}, fmt.Errorf("failed to sign typed data: %w", err)
	}

	return signature[64] + 27, common.BytesToHash(signature[0:32]), common.BytesToHash(signature[32:64]), nil
}
