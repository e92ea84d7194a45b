package chainspec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edr-dev/edr/chainspec"
	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
)

func TestL1HardforkResolution(t *testing.T) {
	spec := chainspec.NewL1Spec()
	require.Equal(t, types.Frontier, spec.Hardfork(0, 0))
	require.Equal(t, types.London, spec.Hardfork(12_965_000, 0))
	require.Equal(t, types.Prague, spec.Hardfork(20_000_000, 1_800_000_000))
	require.False(t, spec.SupportsTxType(types.DepositTxType))
}

func TestOPGasPriceOracleIsFjord(t *testing.T) {
	spec := chainspec.NewOPSpec(10)
	require.True(t, spec.SupportsTxType(types.DepositTxType))

	gasPriceOracle := common.HexToAddress("0x420000000000000000000000000000000000000F")
	out, ok, err := spec.ResolvePredeployCall(gasPriceOracle, []byte{0x96, 0x0e, 0x3a, 0x23})
	require.True(t, ok)
	require.NoError(t, err)
	require.Len(t, out, 32)
	require.Equal(t, byte(1), out[31])
}

func TestOPUnsupportedPredeployReverts(t *testing.T) {
	spec := chainspec.NewOPSpec(10)
	messagePasser := common.HexToAddress("0x4200000000000000000000000000000000000016")

	out, ok, err := spec.ResolvePredeployCall(messagePasser, []byte{0x3f, 0x82, 0x7a, 0x5a})
	require.True(t, ok)
	require.ErrorIs(t, err, chainspec.ErrPredeployUnsupported)
	require.Equal(t, []byte{0x08, 0xc3, 0x79, 0xa0}, out[0:4])
}

func TestForChainIDFallsBackToGeneric(t *testing.T) {
	spec := chainspec.ForChainID(999_999)
	require.IsType(t, &chainspec.GenericSpec{}, spec)
	require.True(t, spec.SupportsTxType(types.DepositTxType))
}
