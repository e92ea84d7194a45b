package chainspec

import (
	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
)

// GenericSpec is L1's activation schedule with permissive tx-type
// validation, for chains that are not Ethereum mainnet and not an OP-stack
// chain but are otherwise L1-shaped (§4.L: "permissive validation for
// unknown chains").
type GenericSpec struct{ base }

// NewGenericSpec builds a permissive chain specification for the given
// chain ID, accepting every known tx type including DepositTxType.
func NewGenericSpec(chainID uint64) *GenericSpec {
	return &GenericSpec{base{
		name:        "generic",
		chainID:     chainID,
		activations: mainnetActivations(),
		baseFeeHist: []baseFeeActivation{{blockNumber: nil, params: DefaultBaseFeeParams}},
		predeploys:  map[common.Address]Predeploy{},
		allowedTxType: func(types.TxType) bool {
			return true
		},
	}}
}
