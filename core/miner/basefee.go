package miner

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/chainspec"
	"github.com/edr-dev/edr/core/types"
)

// computeBaseFee applies the EIP-1559 base-fee adjustment formula to
// parent, using params for the denominator/elasticity multiplier in effect.
// Returns nil pre-London (parent.BaseFee == nil), matching the header field
// itself being optional before that fork.
func computeBaseFee(parent *types.Header, params chainspec.BaseFeeParams) *uint256.Int {
	if parent.BaseFee == nil {
		return nil
	}
	if params.ElasticityMultiplier == 0 {
		params = chainspec.DefaultBaseFeeParams
	}

	target := parent.GasLimit / params.ElasticityMultiplier
	parentBaseFee := parent.BaseFee

	if parent.GasUsed == target {
		return new(uint256.Int).Set(parentBaseFee)
	}

	denom := uint256.NewInt(params.Denominator)

	if parent.GasUsed > target {
		gasDelta := uint256.NewInt(parent.GasUsed - target)
		delta := new(uint256.Int).Mul(parentBaseFee, gasDelta)
		delta.Div(delta, uint256.NewInt(target))
		delta.Div(delta, denom)
		if delta.IsZero() {
			delta = uint256.NewInt(1)
		}
		return new(uint256.Int).Add(parentBaseFee, delta)
	}

	gasDelta := uint256.NewInt(target - parent.GasUsed)
	delta := new(uint256.Int).Mul(parentBaseFee, gasDelta)
	delta.Div(delta, uint256.NewInt(target))
	delta.Div(delta, denom)

	newFee := new(uint256.Int).Sub(parentBaseFee, delta)
	if newFee.Sign() < 0 {
		return uint256.NewInt(0)
	}
	return newFee
}
