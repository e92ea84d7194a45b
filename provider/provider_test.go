package provider_test

import (
	"encoding/json"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/provider"
)

func newTestProvider(t *testing.T, funded common.Address, priv *secp256k1.PrivateKey) *provider.Provider {
	t.Helper()
	cfg := provider.DefaultConfig()
	cfg.Mining.Auto = true
	cfg.GenesisState = []provider.GenesisAccount{
		{Address: funded, Balance: uint256.NewInt(1_000_000_000_000_000_000)},
	}
	cfg.OwnedAccounts = []provider.OwnedAccount{{PrivateKey: priv}}

	p, err := provider.NewProvider(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func call(t *testing.T, p *provider.Provider, method string, params ...interface{}) (json.RawMessage, *provider.RPCError) {
	t.Helper()
	rawParams := make([]json.RawMessage, len(params))
	for i, param := range params {
		b, err := json.Marshal(param)
		require.NoError(t, err)
		rawParams[i] = b
	}
	req := provider.Request{JSONRPC: "2.0", Method: method, Params: rawParams, ID: json.RawMessage("1")}
	reqBytes, err := json.Marshal(req)
	require.NoError(t, err)

	resp := p.HandleRequest(reqBytes)
	var decoded provider.Response
	require.NoError(t, json.Unmarshal([]byte(resp.Data), &decoded))
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	result, err := json.Marshal(decoded.Result)
	require.NoError(t, err)
	return result, nil
}

func TestProviderChainIdAndBlockNumber(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())
	p := newTestProvider(t, from, priv)

	result, rpcErr := call(t, p, "eth_chainId")
	require.Nil(t, rpcErr)
	var chainID string
	require.NoError(t, json.Unmarshal(result, &chainID))
	require.Equal(t, "0x539", chainID) // 1337 in hex

	result, rpcErr = call(t, p, "eth_blockNumber")
	require.Nil(t, rpcErr)
	var blockNum string
	require.NoError(t, json.Unmarshal(result, &blockNum))
	require.Equal(t, "0x0", blockNum)
}

func TestProviderSendTransactionAutomines(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())
	p := newTestProvider(t, from, priv)

	to := common.HexToAddress("0x00000000000000000000000000000000000042")
	txParams := map[string]string{
		"from":  from.Hex(),
		"to":    to.Hex(),
		"value": "0x2710",
		"gas":   "0x5208",
	}
	result, rpcErr := call(t, p, "eth_sendTransaction", txParams)
	require.Nil(t, rpcErr)
	var txHash string
	require.NoError(t, json.Unmarshal(result, &txHash))
	require.NotEmpty(t, txHash)

	result, rpcErr = call(t, p, "eth_blockNumber")
	require.Nil(t, rpcErr)
	var blockNum string
	require.NoError(t, json.Unmarshal(result, &blockNum))
	require.Equal(t, "0x1", blockNum)

	result, rpcErr = call(t, p, "eth_getTransactionReceipt", txHash)
	require.Nil(t, rpcErr)
	var receipt struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(result, &receipt))
	require.Equal(t, "0x1", receipt.Status)

	result, rpcErr = call(t, p, "eth_getBalance", to.Hex())
	require.Nil(t, rpcErr)
	var balance string
	require.NoError(t, json.Unmarshal(result, &balance))
	require.Equal(t, "0x2710", balance)
}

func TestProviderDebugTraceTransaction(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())
	p := newTestProvider(t, from, priv)

	to := common.HexToAddress("0x00000000000000000000000000000000000042")
	txParams := map[string]string{"from": from.Hex(), "to": to.Hex(), "value": "0x1", "gas": "0x5208"}

	_, rpcErr := call(t, p, "eth_sendTransaction", txParams)
	require.Nil(t, rpcErr)

	result, rpcErr := call(t, p, "eth_getBlockByNumber", "0x1", false)
	require.Nil(t, rpcErr)
	var block struct {
		Transactions []string `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(result, &block))
	require.Len(t, block.Transactions, 1)

	result, rpcErr = call(t, p, "debug_traceTransaction", block.Transactions[0])
	require.Nil(t, rpcErr)
	var trace struct {
		Failed bool `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(result, &trace))
	require.False(t, trace.Failed)
}

func TestProviderManualMiningLeavesTransactionPending(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())

	cfg := provider.DefaultConfig()
	cfg.GenesisState = []provider.GenesisAccount{{Address: from, Balance: uint256.NewInt(1_000_000_000_000_000_000)}}
	cfg.OwnedAccounts = []provider.OwnedAccount{{PrivateKey: priv}}
	p, err := provider.NewProvider(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	to := common.HexToAddress("0x00000000000000000000000000000000000042")
	_, rpcErr := call(t, p, "eth_sendTransaction", map[string]string{"from": from.Hex(), "to": to.Hex(), "value": "0x1", "gas": "0x5208"})
	require.Nil(t, rpcErr)

	result, rpcErr := call(t, p, "eth_blockNumber")
	require.Nil(t, rpcErr)
	var blockNum string
	require.NoError(t, json.Unmarshal(result, &blockNum))
	require.Equal(t, "0x0", blockNum)

	_, rpcErr = call(t, p, "evm_mine")
	require.Nil(t, rpcErr)

	result, rpcErr = call(t, p, "eth_blockNumber")
	require.Nil(t, rpcErr)
	require.NoError(t, json.Unmarshal(result, &blockNum))
	require.Equal(t, "0x1", blockNum)
}

func TestProviderUnknownMethod(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())
	p := newTestProvider(t, from, priv)

	_, rpcErr := call(t, p, "eth_notARealMethod")
	require.NotNil(t, rpcErr)
	require.Equal(t, provider.ErrCodeMethodNotFound, rpcErr.Code)
}

func TestProviderEvmSnapshotRevert(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(priv.PubKey())
	p := newTestProvider(t, from, priv)

	result, rpcErr := call(t, p, "evm_snapshot")
	require.Nil(t, rpcErr)
	var snapID string
	require.NoError(t, json.Unmarshal(result, &snapID))

	to := common.HexToAddress("0x00000000000000000000000000000000000042")
	_, rpcErr = call(t, p, "eth_sendTransaction", map[string]string{"from": from.Hex(), "to": to.Hex(), "value": "0x1", "gas": "0x5208"})
	require.Nil(t, rpcErr)

	result, rpcErr = call(t, p, "eth_blockNumber")
	require.Nil(t, rpcErr)
	var blockNum string
	require.NoError(t, json.Unmarshal(result, &blockNum))
	require.Equal(t, "0x1", blockNum)

	result, rpcErr = call(t, p, "evm_revert", snapID)
	require.Nil(t, rpcErr)
	var reverted bool
	require.NoError(t, json.Unmarshal(result, &reverted))
	require.True(t, reverted)

	result, rpcErr = call(t, p, "eth_blockNumber")
	require.Nil(t, rpcErr)
	require.NoError(t, json.Unmarshal(result, &blockNum))
	require.Equal(t, "0x0", blockNum)
}
