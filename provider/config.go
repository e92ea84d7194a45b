package provider

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/chainspec"
	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/fork"
	"github.com/edr-dev/edr/trace"
)

// MiningConfig selects the miner's block-production policy at startup
// (§4.H): Auto mines one block per admitted transaction; a non-zero
// IntervalMillis switches to timer-driven mining instead.
type MiningConfig struct {
	Auto           bool
	IntervalMillis uint64
}

// GenesisAccount seeds one account in the from-genesis world state (§6's
// "genesisState" config option): a prefunded EOA, or a pre-deployed
// contract with code and storage.
type GenesisAccount struct {
	Address common.Address
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
	Storage map[common.Hash]common.Hash
}

// OwnedAccount is a development private key the provider can sign
// transactions with on the caller's behalf (§6's "ownedAccounts"),
// matching Hardhat/Anvil's default unlocked-account set.
type OwnedAccount struct {
	PrivateKey *secp256k1.PrivateKey
}

// ObservabilityConfig wires the optional tracing/coverage/gas-report sinks
// (§4.I) into every transaction the provider mines.
type ObservabilityConfig struct {
	// CodeCoverageCallback, when set, is installed as the interpreter's
	// coverage-sink callback for every mined transaction; eth_call,
	// eth_estimateGas and debug_traceCall run without it.
	CodeCoverageCallback func(tag []byte) error
	// GasReport, when set, receives one CallReport per call/create frame
	// of every mined transaction.
	GasReport *GasReportConfig
}

// GasReportConfig configures per-transaction gas reporting (§4.I/§6).
type GasReportConfig struct {
	Decoder trace.ContractDecoder
	Resolve func(addr common.Address) (codeHash common.Hash, code []byte)
}

// ForkConfig remote-forks the provider's world state onto a live chain
// (§4.F), backing otherwise-unset accounts with fork.Cache instead of
// empty genesis state.
type ForkConfig struct {
	BaseDir string
	URL     string
	Block   fork.BlockTag
	Fetcher fork.RpcFetcher
}

// Config is the provider's full construction configuration, matching §6's
// enumerated option set.
type Config struct {
	ChainID                      uint64
	NetworkID                    uint64
	Hardfork                     types.Hardfork
	BlockGasLimit                uint64
	Coinbase                     common.Address
	MinGasPrice                  *uint256.Int
	AllowBlocksWithSameTimestamp bool
	AllowUnlimitedContractSize   bool
	BailOnCallFailure            bool
	BailOnTransactionFailure     bool

	Mining MiningConfig

	GenesisState  []GenesisAccount
	OwnedAccounts []OwnedAccount

	Observability ObservabilityConfig

	Fork *ForkConfig

	BaseFeeParams chainspec.BaseFeeParams
}

// DefaultConfig returns a manual-mining, chainID-1337 development config
// with no owned accounts and no genesis allocations, the minimal config a
// caller can start mutating.
func DefaultConfig() Config {
	return Config{
		ChainID:       1337,
		NetworkID:     1337,
		Hardfork:      types.Cancun,
		BlockGasLimit: 30_000_000,
		MinGasPrice:   uint256.NewInt(1),
	}
}
