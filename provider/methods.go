package provider

// methodTable returns the full eth_/net_/web3_/evm_/debug_/hardhat_ method
// dispatch table (§4.J), grounded on the teacher's pkg/rpc/api.go
// HandleRequest switch but built as a lookup table instead, since EDR's
// provider has none of the teacher's HTTP-route/middleware concerns that
// motivated its method-registry abstraction.
func methodTable() map[string]methodFunc {
	return map[string]methodFunc{
		"eth_chainId":                         ethChainId,
		"eth_blockNumber":                      ethBlockNumber,
		"eth_gasPrice":                         ethGasPrice,
		"eth_getBalance":                       ethGetBalance,
		"eth_getTransactionCount":              ethGetTransactionCount,
		"eth_getCode":                          ethGetCode,
		"eth_getStorageAt":                     ethGetStorageAt,
		"eth_getBlockByNumber":                 ethGetBlockByNumber,
		"eth_getBlockByHash":                   ethGetBlockByHash,
		"eth_getTransactionReceipt":            ethGetTransactionReceipt,
		"eth_getTransactionByHash":             ethGetTransactionByHash,
		"eth_getLogs":                          ethGetLogs,
		"eth_sendRawTransaction":               ethSendRawTransaction,
		"eth_sendTransaction":                  ethSendTransaction,
		"eth_call":                             ethCall,
		"eth_estimateGas":                      ethEstimateGas,
		"eth_subscribe":                        ethSubscribe,
		"eth_unsubscribe":                      ethUnsubscribe,

		"net_version":   netVersion,
		"net_listening": netListening,

		"web3_clientVersion": web3ClientVersion,
		"web3_sha3":          web3Sha3,

		"debug_traceTransaction": debugTraceTransaction,
		"debug_traceCall":        debugTraceCall,

		"evm_mine":              evmMine,
		"evm_snapshot":          evmSnapshot,
		"evm_revert":            evmRevert,
		"evm_setAutomine":       evmSetAutomine,
		"evm_setIntervalMining": evmSetIntervalMining,

		"hardhat_setBalance":               hardhatSetBalance,
		"hardhat_setCode":                  hardhatSetCode,
		"hardhat_setStorageAt":             hardhatSetStorageAt,
		"hardhat_setNonce":                 hardhatSetNonce,
		"hardhat_impersonateAccount":       hardhatImpersonateAccount,
		"hardhat_stopImpersonatingAccount": hardhatStopImpersonatingAccount,
	}
}
