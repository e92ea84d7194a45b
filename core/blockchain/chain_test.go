package blockchain_test

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/blockchain"
	"github.com/edr-dev/edr/core/state"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
	"github.com/edr-dev/edr/crypto"
)

func newTestChain(t *testing.T) (*blockchain.Chain, *secp256k1.PrivateKey, common.Address) {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sender := crypto.PubkeyToAddress(priv.PubKey())

	overlay := state.NewOverlay(state.EmptyLoader)
	overlay.CreateAccount(sender)
	overlay.AddBalance(sender, uint256.NewInt(1_000_000_000_000_000))

	chainCfg := vm.ChainConfig{ChainID: 1337, Hardfork: types.London}
	genesis := &types.Header{Number: 0, GasLimit: 30_000_000}
	c := blockchain.NewChain(chainCfg, genesis, overlay)
	return c, priv, sender
}

func TestApplyBlockSingleTransfer(t *testing.T) {
	c, priv, sender := newTestChain(t)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000042")
	signer := types.NewSigner(1337)

	tx := types.NewLegacyTx(0, &recipient, uint256.NewInt(500), 21000, uint256.NewInt(1_000_000_000), nil)
	digest := signer.SigningHash(tx)
	sig, err := crypto.Sign(digest.Bytes(), priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Sig = types.Signature{V: sig[64], R: new(uint256.Int).SetBytes(sig[0:32]), S: new(uint256.Int).SetBytes(sig[32:64])}

	header := &types.Header{GasLimit: 30_000_000, Timestamp: 1001, Miner: common.HexToAddress("0x00000000000000000000000000000000000099")}
	result, err := c.ApplyBlock(header, []*types.Transaction{tx})
	if err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}
	if result.GasUsed != 21000 {
		t.Fatalf("expected 21000 gas used, got %d", result.GasUsed)
	}
	if len(result.Receipts) != 1 || result.Receipts[0].Status != types.ReceiptStatusSuccessful {
		t.Fatalf("expected one successful receipt, got %+v", result.Receipts)
	}
	if got := c.State().GetBalance(recipient); got.Cmp(uint256.NewInt(500)) != 0 {
		t.Fatalf("recipient balance = %s, want 500", got.String())
	}
	if c.Head().Header.Number != 1 {
		t.Fatalf("expected chain head at block 1, got %d", c.Head().Header.Number)
	}
	if len(c.Receipts(1)) != 1 {
		t.Fatalf("expected receipt index to carry 1 receipt for block 1")
	}
}

func TestSnapshotRevertRollsBackBlocksAndState(t *testing.T) {
	c, priv, sender := newTestChain(t)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000042")
	signer := types.NewSigner(1337)

	snap := c.Snapshot()

	tx := types.NewLegacyTx(0, &recipient, uint256.NewInt(500), 21000, uint256.NewInt(1_000_000_000), nil)
	digest := signer.SigningHash(tx)
	sig, _ := crypto.Sign(digest.Bytes(), priv)
	tx.Sig = types.Signature{V: sig[64], R: new(uint256.Int).SetBytes(sig[0:32]), S: new(uint256.Int).SetBytes(sig[32:64])}

	header := &types.Header{GasLimit: 30_000_000, Timestamp: 1001}
	if _, err := c.ApplyBlock(header, []*types.Transaction{tx}); err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}
	if c.Head().Header.Number != 1 {
		t.Fatalf("expected block 1 to be mined")
	}

	if ok := c.RevertToSnapshot(snap); !ok {
		t.Fatal("expected RevertToSnapshot to succeed")
	}
	if c.Head().Header.Number != 0 {
		t.Fatalf("expected chain head back at genesis, got %d", c.Head().Header.Number)
	}
	if got := c.State().GetBalance(recipient); !got.IsZero() {
		t.Fatalf("expected recipient balance reverted to zero, got %s", got.String())
	}
	if got := c.State().GetNonce(sender); got != 0 {
		t.Fatalf("expected sender nonce reverted to 0, got %d", got)
	}
}
