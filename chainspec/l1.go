package chainspec

import "github.com/edr-dev/edr/common"

// L1Spec is Ethereum mainnet's chain specification: the standard
// Frontier-through-Prague activation schedule, no predeploys, and every tx
// type except the OP-only DepositTxType.
type L1Spec struct{ base }

// NewL1Spec builds the Ethereum mainnet chain specification (chainID 1).
func NewL1Spec() *L1Spec {
	return &L1Spec{base{
		name:        "l1",
		chainID:     1,
		activations: mainnetActivations(),
		baseFeeHist: []baseFeeActivation{{blockNumber: nil, params: DefaultBaseFeeParams}},
		predeploys:  map[common.Address]Predeploy{},
	}}
}
