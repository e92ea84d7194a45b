package executor_test

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/executor"
	"github.com/edr-dev/edr/core/state"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/trace"
)

func signTx(t *testing.T, tx *types.Transaction, priv *secp256k1.PrivateKey, signer types.Signer) *types.Transaction {
	t.Helper()
	digest := signer.SigningHash(tx)
	sig, err := crypto.Sign(digest.Bytes(), priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Sig = types.Signature{
		V: sig[64],
		R: new(uint256.Int).SetBytes(sig[0:32]),
		S: new(uint256.Int).SetBytes(sig[32:64]),
	}
	return tx
}

func newTestBlockContext(coinbase common.Address, gasLimit uint64) vm.BlockContext {
	return vm.BlockContext{
		GetHash:  func(uint64) common.Hash { return common.Hash{} },
		Coinbase: coinbase,
		GasLimit: gasLimit,
	}
}

func TestApplyTransactionSimpleTransfer(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sender := crypto.PubkeyToAddress(priv.PubKey())
	recipient := common.HexToAddress("0x00000000000000000000000000000000000042")
	coinbase := common.HexToAddress("0x00000000000000000000000000000000000099")

	overlay := state.NewOverlay(state.EmptyLoader)
	overlay.CreateAccount(sender)
	overlay.AddBalance(sender, uint256.NewInt(1_000_000_000_000_000))
	overlay.SetNonce(sender, 0)

	chainCfg := vm.ChainConfig{ChainID: 1337, Hardfork: types.London}
	blockCtx := newTestBlockContext(coinbase, 10_000_000)
	signer := types.NewSigner(chainCfg.ChainID)

	tx := signTx(t, types.NewLegacyTx(0, &recipient, uint256.NewInt(1000), 21000, uint256.NewInt(1_000_000_000), nil), priv, signer)

	gp := new(executor.GasPool).AddGas(blockCtx.GasLimit)
	receipt, err := executor.ApplyTransaction(blockCtx, chainCfg, overlay, tx, signer, gp)
	if err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("expected success, got status %d", receipt.Status)
	}
	if receipt.GasUsed != 21000 {
		t.Fatalf("expected 21000 gas used, got %d", receipt.GasUsed)
	}
	if got := overlay.GetBalance(recipient); got.Cmp(uint256.NewInt(1000)) != 0 {
		t.Fatalf("recipient balance = %s, want 1000", got.String())
	}
	if got := overlay.GetNonce(sender); got != 1 {
		t.Fatalf("sender nonce = %d, want 1", got)
	}
}

func TestApplyTransactionNonceTooLow(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	sender := crypto.PubkeyToAddress(priv.PubKey())
	recipient := common.HexToAddress("0x00000000000000000000000000000000000042")

	overlay := state.NewOverlay(state.EmptyLoader)
	overlay.CreateAccount(sender)
	overlay.AddBalance(sender, uint256.NewInt(1_000_000_000_000))
	overlay.SetNonce(sender, 5)

	chainCfg := vm.ChainConfig{ChainID: 1337, Hardfork: types.London}
	blockCtx := newTestBlockContext(common.Address{}, 10_000_000)
	signer := types.NewSigner(chainCfg.ChainID)

	tx := signTx(t, types.NewLegacyTx(3, &recipient, uint256.NewInt(1), 21000, uint256.NewInt(1), nil), priv, signer)

	gp := new(executor.GasPool).AddGas(blockCtx.GasLimit)
	if _, err := executor.ApplyTransaction(blockCtx, chainCfg, overlay, tx, signer, gp); err == nil {
		t.Fatal("expected nonce-too-low error")
	}
	if gp.Gas() != blockCtx.GasLimit {
		t.Fatalf("gas pool should be refunded on validation failure, got %d", gp.Gas())
	}
}

func TestApplyTransactionContractCreation(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	sender := crypto.PubkeyToAddress(priv.PubKey())

	overlay := state.NewOverlay(state.EmptyLoader)
	overlay.CreateAccount(sender)
	overlay.AddBalance(sender, uint256.NewInt(1_000_000_000_000_000))

	chainCfg := vm.ChainConfig{ChainID: 1337, Hardfork: types.Shanghai}
	blockCtx := newTestBlockContext(common.Address{}, 10_000_000)
	signer := types.NewSigner(chainCfg.ChainID)

	// PUSH1 0 PUSH1 0 RETURN: deploys empty code.
	initcode := []byte{0x60, 0x00, 0x60, 0x00, 0xf3}
	tx := signTx(t, types.NewLegacyTx(0, nil, new(uint256.Int), 200000, uint256.NewInt(1_000_000_000), initcode), priv, signer)

	gp := new(executor.GasPool).AddGas(blockCtx.GasLimit)
	receipt, err := executor.ApplyTransaction(blockCtx, chainCfg, overlay, tx, signer, gp)
	if err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("expected success, got status %d", receipt.Status)
	}
	if receipt.ContractAddress.IsZero() {
		t.Fatal("expected a non-zero contract address")
	}
}

func TestApplyTransactionWithConfigFeedsTracerAndCoverageSink(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	sender := crypto.PubkeyToAddress(priv.PubKey())
	recipient := common.HexToAddress("0x00000000000000000000000000000000000042")

	overlay := state.NewOverlay(state.EmptyLoader)
	overlay.CreateAccount(sender)
	overlay.AddBalance(sender, uint256.NewInt(1_000_000_000_000_000))

	chainCfg := vm.ChainConfig{ChainID: 1337, Hardfork: types.London}
	blockCtx := newTestBlockContext(common.Address{}, 10_000_000)
	signer := types.NewSigner(chainCfg.ChainID)

	tx := signTx(t, types.NewLegacyTx(0, &recipient, uint256.NewInt(1), 21000, uint256.NewInt(1_000_000_000), nil), priv, signer)

	recorder := trace.NewRecorder(false)
	var hits []common.Hash
	sink := trace.NewCoverageSink(func(tag common.Hash) { hits = append(hits, tag) })

	cfg := vm.Config{
		CoverageSink:     trace.CoverageSinkAddress,
		CoverageCallback: sink.Callback,
	}

	gp := new(executor.GasPool).AddGas(blockCtx.GasLimit)
	receipt, err := executor.ApplyTransactionWithConfig(blockCtx, chainCfg, overlay, tx, signer, gp, cfg, recorder)
	if err != nil {
		t.Fatalf("ApplyTransactionWithConfig: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("expected success, got status %d", receipt.Status)
	}
	// A plain value transfer has no code, so the interpreter never runs and
	// no call frame executes, but the top-level Call itself must still have
	// fired OnEnter/OnExit on the recorder.
	items := recorder.Items()
	if len(items) != 2 {
		t.Fatalf("expected OnEnter+OnExit trace items, got %d", len(items))
	}
	if items[0].Kind != trace.MessageBegin || items[1].Kind != trace.MessageEnd {
		t.Fatalf("expected MessageBegin then MessageEnd, got %v then %v", items[0].Kind, items[1].Kind)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no coverage hits for a call that never reaches the sink address, got %d", len(hits))
	}
}
