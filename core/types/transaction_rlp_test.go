package types_test

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
)

func signForDecodeTest(t *testing.T, tx *types.Transaction, priv *secp256k1.PrivateKey, signer types.Signer) *types.Transaction {
	t.Helper()
	digest := signer.SigningHash(tx)
	sig, err := crypto.Sign(digest.Bytes(), priv)
	require.NoError(t, err)
	tx.Sig = types.Signature{V: sig[64], R: new(uint256.Int).SetBytes(sig[0:32]), S: new(uint256.Int).SetBytes(sig[32:64])}
	return tx
}

func TestDecodeTransactionRoundTripsLegacy(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	signer := types.NewSigner(1337)
	to := common.HexToAddress("0x00000000000000000000000000000000000042")

	tx := signForDecodeTest(t, types.NewLegacyTx(7, &to, uint256.NewInt(1000), 21000, uint256.NewInt(1_000_000_000), []byte{0x01, 0x02}), priv, signer)

	enc, err := tx.EncodeRLP()
	require.NoError(t, err)

	decoded, err := types.DecodeTransaction(enc)
	require.NoError(t, err)
	require.Equal(t, types.LegacyTxType, decoded.Type)
	require.Equal(t, uint64(7), decoded.Nonce)
	require.Equal(t, to, *decoded.To)
	require.Equal(t, 0, tx.Value.Cmp(decoded.Value))

	wantSender := crypto.PubkeyToAddress(priv.PubKey())
	gotSender, err := signer.Sender(decoded)
	require.NoError(t, err)
	require.Equal(t, wantSender, gotSender)
}

func TestDecodeTransactionRoundTripsDynamicFee(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	signer := types.NewSigner(1337)
	to := common.HexToAddress("0x00000000000000000000000000000000000042")

	tx := signForDecodeTest(t, types.NewDynamicFeeTx(1337, 3, &to, uint256.NewInt(5), 50000, uint256.NewInt(30_000_000_000), uint256.NewInt(1_000_000_000), nil, nil), priv, signer)

	enc, err := tx.EncodeRLP()
	require.NoError(t, err)

	decoded, err := types.DecodeTransaction(enc)
	require.NoError(t, err)
	require.Equal(t, types.DynamicFeeTxType, decoded.Type)
	require.Equal(t, uint64(3), decoded.Nonce)
	require.Equal(t, uint64(1337), decoded.ChainID)

	wantSender := crypto.PubkeyToAddress(priv.PubKey())
	gotSender, err := signer.Sender(decoded)
	require.NoError(t, err)
	require.Equal(t, wantSender, gotSender)
}

func TestDecodeTransactionRejectsUnknownType(t *testing.T) {
	_, err := types.DecodeTransaction([]byte{0x7e})
	require.Error(t, err)
}
