package factory

import (
	"fmt"
	"math/bits"

	"github.com/bitfsorg/libgiveaway-go/giveaway"
)

const (
	// DefaultFeeRateBps is the creation fee: 1% of the pool.
	DefaultFeeRateBps = 100

	// MaxFeeRateBps is 100%.
	MaxFeeRateBps = 10000
)

// ComputeFee returns floor(pool * rateBps / 10000).
func ComputeFee(pool, rateBps uint64) (uint64, error) {
	if rateBps > MaxFeeRateBps {
		return 0, fmt.Errorf("%w: %d bps", ErrInvalidFeeRate, rateBps)
	}
	hi, lo := bits.Mul64(pool, rateBps)
	// hi < MaxFeeRateBps because the quotient never exceeds pool.
	fee, _ := bits.Div64(hi, lo, MaxFeeRateBps)
	return fee, nil
}

// Charge returns the pool, the fee and their sum for a giveaway, rejecting
// zero amounts and any overflow.
func Charge(shareAmount, recipientCount, rateBps uint64) (pool, fee, total uint64, err error) {
	pool, err = giveaway.PoolSize(shareAmount, recipientCount)
	if err != nil {
		return 0, 0, 0, err
	}
	fee, err = ComputeFee(pool, rateBps)
	if err != nil {
		return 0, 0, 0, err
	}
	total, carry := bits.Add64(pool, fee, 0)
	if carry != 0 {
		return 0, 0, 0, fmt.Errorf("%w: pool %d plus fee %d", giveaway.ErrAmountOverflow, pool, fee)
	}
	return pool, fee, total, nil
}
