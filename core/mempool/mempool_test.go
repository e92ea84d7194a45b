package mempool_test

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/mempool"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
)

type mockState struct {
	nonces map[common.Address]uint64
}

func newMockState() *mockState { return &mockState{nonces: make(map[common.Address]uint64)} }

func (s *mockState) GetNonce(addr common.Address) uint64 { return s.nonces[addr] }
func (s *mockState) GetBalance(common.Address) *uint256.Int {
	return uint256.NewInt(1_000_000_000_000_000)
}

func signedTx(t *testing.T, priv *secp256k1.PrivateKey, signer types.Signer, nonce uint64, gasPrice int64) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0x000000000000000000000000000000000000de")
	tx := types.NewLegacyTx(nonce, &to, new(uint256.Int), 21000, uint256.NewInt(uint64(gasPrice)), nil)
	digest := signer.SigningHash(tx)
	sig, err := crypto.Sign(digest.Bytes(), priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Sig = types.Signature{V: sig[64], R: new(uint256.Int).SetBytes(sig[0:32]), S: new(uint256.Int).SetBytes(sig[32:64])}
	return tx
}

func TestAddPromotesSequentialNonce(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	signer := types.NewSigner(1337)
	state := newMockState()
	pool := mempool.New(mempool.DefaultConfig(), state, signer, types.HashTransaction)

	if err := pool.Add(signedTx(t, priv, signer, 0, 10)); err != nil {
		t.Fatalf("add nonce 0: %v", err)
	}
	if pool.Count() != 1 {
		t.Fatalf("expected 1 tx in pool, got %d", pool.Count())
	}

	from := crypto.PubkeyToAddress(priv.PubKey())
	pending := pool.Pending()[from]
	if len(pending) != 1 {
		t.Fatalf("expected sender to have 1 pending tx, got %d", len(pending))
	}
}

func TestAddQueuesFutureNonceThenPromotes(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	signer := types.NewSigner(1337)
	state := newMockState()
	pool := mempool.New(mempool.DefaultConfig(), state, signer, types.HashTransaction)
	from := crypto.PubkeyToAddress(priv.PubKey())

	if err := pool.Add(signedTx(t, priv, signer, 1, 10)); err != nil {
		t.Fatalf("add future nonce: %v", err)
	}
	if len(pool.Pending()[from]) != 0 {
		t.Fatal("nonce-1 tx should not be pending while nonce 0 is missing")
	}

	if err := pool.Add(signedTx(t, priv, signer, 0, 10)); err != nil {
		t.Fatalf("add nonce 0: %v", err)
	}
	if got := len(pool.Pending()[from]); got != 2 {
		t.Fatalf("expected both txs promoted to pending, got %d", got)
	}
}

func TestAddRejectsStaleNonce(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	signer := types.NewSigner(1337)
	state := newMockState()
	from := crypto.PubkeyToAddress(priv.PubKey())
	state.nonces[from] = 5

	pool := mempool.New(mempool.DefaultConfig(), state, signer, types.HashTransaction)
	if err := pool.Add(signedTx(t, priv, signer, 3, 10)); err == nil {
		t.Fatal("expected nonce-too-low error")
	}
}

func TestPendingByPriceOrdersDescending(t *testing.T) {
	signer := types.NewSigner(1337)
	state := newMockState()
	pool := mempool.New(mempool.DefaultConfig(), state, signer, types.HashTransaction)

	privLow, _ := secp256k1.GeneratePrivateKey()
	privHigh, _ := secp256k1.GeneratePrivateKey()
	if err := pool.Add(signedTx(t, privLow, signer, 0, 5)); err != nil {
		t.Fatalf("add low-price tx: %v", err)
	}
	if err := pool.Add(signedTx(t, privHigh, signer, 0, 50)); err != nil {
		t.Fatalf("add high-price tx: %v", err)
	}

	ordered := pool.PendingByPrice()
	if len(ordered) != 2 {
		t.Fatalf("expected 2 pending txs, got %d", len(ordered))
	}
	if ordered[0].GasPrice.Cmp(ordered[1].GasPrice) < 0 {
		t.Fatal("expected transactions ordered by descending gas price")
	}
}
