package elementorder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ZeroAddress      = "0x0000000000000000000000000000000000000000"
	NativeEthAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

	// MaxNonceBits is the width reserved for batch nonces.
	MaxNonceBits = 48
)

var (
	maxBatchNonce = new(big.Int).Lsh(big.NewInt(1), MaxNonceBits)

	// mask96 = (1 << 96) - 1
	mask96 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))
)

// lc lower-cases and trims a wire string.
func lc(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseBigInt parses a decimal or 0x-prefixed hexadecimal integer.
func ParseBigInt(s string) (*big.Int, error) {
	s = lc(s)
	if s == "" {
		return nil, fmt.Errorf("empty integer")
	}
	var (
		v  *big.Int
		ok bool
	)
	if strings.HasPrefix(s, "0x") {
		if len(s) == 2 {
			return new(big.Int), nil
		}
		v, ok = new(big.Int).SetString(s[2:], 16)
	} else {
		v, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// parseUint parses an unsigned wire integer.
func parseUint(s string) (*big.Int, error) {
	v, err := ParseBigInt(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative integer %q", s)
	}
	return v, nil
}

// parseAddress lower-cases an address, mapping empty input to the zero address.
func parseAddress(s string) (string, error) {
	s = lc(s)
	if s == "" {
		return ZeroAddress, nil
	}
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// parseHexData validates 0x-prefixed hex data and returns it lower-cased.
func parseHexData(s string) (string, error) {
	s = lc(s)
	if s == "" {
		return "0x", nil
	}
	if !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("invalid hex data %q", s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", fmt.Errorf("invalid hex data %q: %w", s, err)
	}
	return s, nil
}

// hexToBytes decodes hex data with an optional 0x prefix.
func hexToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(lc(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex data %q: %w", s, err)
	}
	return b, nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// BitField is one value of a packed record together with its declared width.
type BitField struct {
	Value *big.Int
	Bits  uint
}

// Uint64Bits builds a BitField from an unsigned integer.
func Uint64Bits(v uint64, bits uint) BitField {
	return BitField{Value: new(big.Int).SetUint64(v), Bits: bits}
}

// BigBits builds a BitField from a big integer.
func BigBits(v *big.Int, bits uint) BitField {
	return BitField{Value: v, Bits: bits}
}

// AddressBits builds a BitField from a hex address.
func AddressBits(addr string, bits uint) BitField {
	return BitField{Value: new(big.Int).SetBytes(common.HexToAddress(addr).Bytes()), Bits: bits}
}

// PackBits concatenates the fields most significant first. Each value is
// truncated to its low Bits bits.
func PackBits(fields ...BitField) ([]byte, error) {
	var total uint
	acc := new(big.Int)
	for i, f := range fields {
		v := f.Value
		if v == nil {
			v = new(big.Int)
		}
		if v.Sign() < 0 {
			return nil, fmt.Errorf("field %d: %w: %s", i, ErrNegativeBitField, v.String())
		}
		mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), f.Bits), big.NewInt(1))
		acc.Lsh(acc, f.Bits)
		acc.Or(acc, new(big.Int).And(v, mask))
		total += f.Bits
	}
	if total%8 != 0 {
		return nil, fmt.Errorf("%w: %d bits", ErrBitAlignment, total)
	}
	return acc.FillBytes(make([]byte, total/8)), nil
}

// EncodeBits is PackBits rendered as lower-case hex.
func EncodeBits(withPrefix bool, fields ...BitField) (string, error) {
	packed, err := PackBits(fields...)
	if err != nil {
		return "", err
	}
	if withPrefix {
		return "0x" + hex.EncodeToString(packed), nil
	}
	return hex.EncodeToString(packed), nil
}

// toWord packs fields that add up to exactly one 256 bit word.
func toWord(fields ...BitField) ([32]byte, error) {
	var word [32]byte
	packed, err := PackBits(fields...)
	if err != nil {
		return word, err
	}
	if len(packed) != 32 {
		return word, fmt.Errorf("packed word is %d bytes", len(packed))
	}
	copy(word[:], packed)
	return word, nil
}
