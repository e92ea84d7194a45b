package miner_test

import (
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/blockchain"
	"github.com/edr-dev/edr/core/mempool"
	"github.com/edr-dev/edr/core/miner"
	"github.com/edr-dev/edr/core/state"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
	"github.com/edr-dev/edr/crypto"
)

func newTestSetup(t *testing.T) (*blockchain.Chain, *mempool.Pool, *secp256k1.PrivateKey, types.Signer) {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(priv.PubKey())

	overlay := state.NewOverlay(state.EmptyLoader)
	overlay.CreateAccount(sender)
	overlay.AddBalance(sender, uint256.NewInt(1_000_000_000_000_000))

	chainCfg := vm.ChainConfig{ChainID: 1337, Hardfork: types.London}
	genesis := &types.Header{Number: 0, GasLimit: 30_000_000, Timestamp: 1000}
	chain := blockchain.NewChain(chainCfg, genesis, overlay)

	signer := types.NewSigner(1337)
	pool := mempool.New(mempool.DefaultConfig(), chain.State(), signer, types.HashTransaction)

	return chain, pool, priv, signer
}

func signedTransfer(t *testing.T, priv *secp256k1.PrivateKey, signer types.Signer, nonce uint64, gasPrice int64) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0x00000000000000000000000000000000000042")
	tx := types.NewLegacyTx(nonce, &to, uint256.NewInt(1), 21000, uint256.NewInt(uint64(gasPrice)), nil)
	digest := signer.SigningHash(tx)
	sig, err := crypto.Sign(digest.Bytes(), priv)
	require.NoError(t, err)
	tx.Sig = types.Signature{V: sig[64], R: new(uint256.Int).SetBytes(sig[0:32]), S: new(uint256.Int).SetBytes(sig[32:64])}
	return tx
}

func TestManualMineDrainsPool(t *testing.T) {
	chain, pool, priv, signer := newTestSetup(t)
	m := miner.New(chain, pool, miner.Config{GasLimit: 30_000_000})

	require.NoError(t, pool.Add(signedTransfer(t, priv, signer, 0, 10)))
	require.Equal(t, 1, pool.Count())

	result, err := m.Mine()
	require.NoError(t, err)
	require.Len(t, result.Receipts, 1)
	require.Equal(t, uint64(1), chain.Head().Header.Number)
}

func TestAutoMineMinesOnTransactionAdded(t *testing.T) {
	chain, pool, priv, signer := newTestSetup(t)
	m := miner.New(chain, pool, miner.Config{GasLimit: 30_000_000})
	m.SetAutoMine(true)
	require.Equal(t, miner.ModeAuto, m.CurrentMode())

	require.NoError(t, pool.Add(signedTransfer(t, priv, signer, 0, 10)))
	m.NotifyTransactionAdded()

	require.Equal(t, uint64(1), chain.Head().Header.Number)
}

func TestTimestampStrictlyIncreasingWhenDisallowed(t *testing.T) {
	chain, pool, _, _ := newTestSetup(t)
	m := miner.New(chain, pool, miner.Config{GasLimit: 30_000_000, AllowBlocksWithSameTimestamp: false})

	result, err := m.Mine()
	require.NoError(t, err)
	require.Greater(t, result.Block.Header.Timestamp, uint64(1000))
}

func TestIntervalMiningProducesBlocksOnATimer(t *testing.T) {
	chain, pool, _, _ := newTestSetup(t)
	m := miner.New(chain, pool, miner.Config{GasLimit: 30_000_000})

	m.SetIntervalMining(20)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return chain.Head().Header.Number >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
