package contract

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const TokenDecimals = 18

// Caller is the read-only contract call surface.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PoolStats mirrors the getContractStats() tuple.
type PoolStats struct {
	TotalUsers         *big.Int
	ContractBalance    *big.Int
	TotalFundsReceived *big.Int
	TotalPaidOut       *big.Int
	TotalRejoins       *big.Int
}

// ReadStats calls getContractStats() at the latest block.
func ReadStats(ctx context.Context, caller Caller, address common.Address) (PoolStats, error) {
	parsed, err := PoolABI()
	if err != nil {
		return PoolStats{}, err
	}
	input, err := parsed.Pack("getContractStats")
	if err != nil {
		return PoolStats{}, errors.Wrap(err, "failed to pack getContractStats")
	}
	data, err := caller.CallContract(ctx, ethereum.CallMsg{To: &address, Data: input}, nil)
	if err != nil {
		return PoolStats{}, errors.Wrap(err, "getContractStats call failed")
	}
	return UnpackStats(data)
}

func UnpackStats(data []byte) (PoolStats, error) {
	parsed, err := PoolABI()
	if err != nil {
		return PoolStats{}, err
	}
	values, err := parsed.Unpack("getContractStats", data)
	if err != nil {
		return PoolStats{}, errors.Wrap(err, "failed to unpack getContractStats")
	}
	if len(values) != 5 {
		return PoolStats{}, errors.Newf("getContractStats returned %d values, expected 5", len(values))
	}
	ints := make([]*big.Int, len(values))
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok {
			return PoolStats{}, errors.Newf("getContractStats value %d has type %T", i, v)
		}
		ints[i] = n
	}
	return PoolStats{
		TotalUsers:         ints[0],
		ContractBalance:    ints[1],
		TotalFundsReceived: ints[2],
		TotalPaidOut:       ints[3],
		TotalRejoins:       ints[4],
	}, nil
}

// FormatUnits renders amount scaled down by decimals with prec fractional
// digits, rounding halves away from zero.
func FormatUnits(amount *big.Int, decimals int, prec int) string {
	if amount == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(amount, scale).FloatString(prec)
}
