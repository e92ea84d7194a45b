package provider

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
)

// blockJSON is the eth_getBlockBy* response shape (§6): enough of the
// header plus either full transactions or just their hashes.
type blockJSON struct {
	Number        string        `json:"number"`
	Hash          string        `json:"hash"`
	ParentHash    string        `json:"parentHash"`
	Timestamp     string        `json:"timestamp"`
	GasLimit      string        `json:"gasLimit"`
	GasUsed       string        `json:"gasUsed"`
	Miner         string        `json:"miner"`
	BaseFeePerGas string        `json:"baseFeePerGas,omitempty"`
	Transactions  []interface{} `json:"transactions"`
}

func (p *Provider) blockJSON(b *types.Block, fullTx bool) blockJSON {
	out := blockJSON{
		Number:     encodeUint64(b.Header.Number),
		Hash:       encodeBytes(b.Hash(headerHashFn).Bytes()),
		ParentHash: encodeBytes(b.Header.ParentHash.Bytes()),
		Timestamp:  encodeUint64(b.Header.Timestamp),
		GasLimit:   encodeUint64(b.Header.GasLimit),
		GasUsed:    encodeUint64(b.Header.GasUsed),
		Miner:      b.Header.Miner.Hex(),
	}
	if b.Header.BaseFee != nil {
		out.BaseFeePerGas = encodeWord(b.Header.BaseFee)
	}
	for _, tx := range b.Transactions {
		if fullTx {
			out.Transactions = append(out.Transactions, p.txJSON(tx))
		} else {
			out.Transactions = append(out.Transactions, encodeBytes(tx.Hash(types.HashTransaction).Bytes()))
		}
	}
	return out
}

type txJSONBody struct {
	Hash     string `json:"hash"`
	Nonce    string `json:"nonce"`
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Value    string `json:"value"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice,omitempty"`
	Input    string `json:"input"`
	Type     string `json:"type"`
}

func (p *Provider) txJSON(tx *types.Transaction) txJSONBody {
	body := txJSONBody{
		Hash:  encodeBytes(tx.Hash(types.HashTransaction).Bytes()),
		Nonce: encodeUint64(tx.Nonce),
		Value: encodeWord(tx.Value),
		Gas:   encodeUint64(tx.GasLimit),
		Input: encodeBytes(tx.Data),
		Type:  encodeUint64(uint64(tx.Type)),
	}
	if tx.To != nil {
		body.To = tx.To.Hex()
	}
	if tx.GasPrice != nil {
		body.GasPrice = encodeWord(tx.GasPrice)
	}
	if from, err := p.signer.Sender(tx); err == nil {
		body.From = from.Hex()
	}
	return body
}

type receiptJSON struct {
	TransactionHash   string    `json:"transactionHash"`
	TransactionIndex  string    `json:"transactionIndex"`
	BlockHash         string    `json:"blockHash"`
	BlockNumber       string    `json:"blockNumber"`
	From              string    `json:"from,omitempty"`
	To                string    `json:"to,omitempty"`
	CumulativeGasUsed string    `json:"cumulativeGasUsed"`
	GasUsed           string    `json:"gasUsed"`
	ContractAddress   string    `json:"contractAddress,omitempty"`
	Status            string    `json:"status"`
	Logs              []logJSON `json:"logs"`
}

type logJSON struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      string   `json:"blockNumber"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
	BlockHash        string   `json:"blockHash"`
	LogIndex         string   `json:"logIndex"`
	Removed          bool     `json:"removed"`
}

func logToJSON(l *types.Log) logJSON {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = encodeBytes(t.Bytes())
	}
	return logJSON{
		Address:          l.Address.Hex(),
		Topics:           topics,
		Data:             encodeBytes(l.Data),
		BlockNumber:      encodeUint64(l.BlockNumber),
		TransactionHash:  encodeBytes(l.TxHash.Bytes()),
		TransactionIndex: encodeUint64(uint64(l.TxIndex)),
		BlockHash:        encodeBytes(l.BlockHash.Bytes()),
		LogIndex:         encodeUint64(uint64(l.Index)),
		Removed:          l.Removed,
	}
}

func receiptToJSON(r *types.Receipt, tx *types.Transaction, signer types.Signer) receiptJSON {
	out := receiptJSON{
		TransactionHash:   encodeBytes(r.TxHash.Bytes()),
		TransactionIndex:  encodeUint64(uint64(r.TransactionIndex)),
		BlockHash:         encodeBytes(r.BlockHash.Bytes()),
		BlockNumber:       encodeUint64(r.BlockNumber),
		CumulativeGasUsed: encodeUint64(r.CumulativeGasUsed),
		GasUsed:           encodeUint64(r.GasUsed),
		Status:            encodeUint64(uint64(r.Status)),
	}
	if tx != nil {
		if from, err := signer.Sender(tx); err == nil {
			out.From = from.Hex()
		}
		if tx.To != nil {
			out.To = tx.To.Hex()
		}
	}
	if r.ContractAddress != (common.Address{}) {
		out.ContractAddress = r.ContractAddress.Hex()
	}
	for _, l := range r.Logs {
		out.Logs = append(out.Logs, logToJSON(l))
	}
	return out
}

// resolveBlockNumber interprets an eth_ block-tag parameter against the
// chain's current head (§6: "latest"/"pending" both resolve to the current
// tip — EDR has no separate pending block).
func (p *Provider) resolveBlockNumber(raw json.RawMessage) (uint64, error) {
	n, latest, err := parseBlockTag(raw)
	if err != nil {
		return 0, err
	}
	if latest {
		return p.chain.Head().Header.Number, nil
	}
	return n, nil
}

func parseAddressHex(s string) (common.Address, error) {
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return common.Address{}, err
	}
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("invalid address length %d", len(b))
	}
	return common.BytesToAddress(b), nil
}

func hexOrEmpty(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(trimHexPrefix(s))
}

func (p *Provider) findReceipt(want common.Hash) (*types.Receipt, *types.Transaction) {
	for n := p.chain.Head().Header.Number; ; n-- {
		receipts := p.chain.Receipts(n)
		for _, r := range receipts {
			if r.TxHash == want {
				b := p.chain.BlockByNumber(n)
				for _, tx := range b.Transactions {
					if tx.Hash(types.HashTransaction) == want {
						return r, tx
					}
				}
				return r, nil
			}
		}
		if n == 0 {
			break
		}
	}
	return nil, nil
}

func ethChainId(p *Provider, params []json.RawMessage) (interface{}, error) {
	return encodeUint64(p.chainID), nil
}

func ethBlockNumber(p *Provider, params []json.RawMessage) (interface{}, error) {
	return encodeUint64(p.chain.Head().Header.Number), nil
}

func ethGasPrice(p *Provider, params []json.RawMessage) (interface{}, error) {
	head := p.chain.Head().Header
	if head.BaseFee != nil {
		return encodeWord(new(uint256.Int).Add(head.BaseFee, uint256.NewInt(1_000_000_000))), nil
	}
	return encodeUint64(1_000_000_000), nil
}

func ethGetBalance(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	return encodeWord(p.chain.State().GetBalance(addr)), nil
}

func ethGetTransactionCount(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	return encodeUint64(p.chain.State().GetNonce(addr)), nil
}

func ethGetCode(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	return encodeBytes(p.chain.State().GetCode(addr)), nil
}

func ethGetStorageAt(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	slotRaw, err := requireParam(params, 1, "position")
	if err != nil {
		return nil, err
	}
	slot, err := decodeHashParam(slotRaw)
	if err != nil {
		return nil, err
	}
	return encodeBytes(p.chain.State().GetState(addr, slot).Bytes()), nil
}

func ethGetBlockByNumber(p *Provider, params []json.RawMessage) (interface{}, error) {
	tagRaw, err := requireParam(params, 0, "block")
	if err != nil {
		return nil, err
	}
	number, err := p.resolveBlockNumber(tagRaw)
	if err != nil {
		return nil, err
	}
	fullTx := false
	if raw, ok := paramAt(params, 1); ok {
		json.Unmarshal(raw, &fullTx)
	}
	b := p.chain.BlockByNumber(number)
	if b == nil {
		return nil, nil
	}
	return p.blockJSON(b, fullTx), nil
}

func ethGetBlockByHash(p *Provider, params []json.RawMessage) (interface{}, error) {
	hashRaw, err := requireParam(params, 0, "hash")
	if err != nil {
		return nil, err
	}
	want, err := decodeHashParam(hashRaw)
	if err != nil {
		return nil, err
	}
	fullTx := false
	if raw, ok := paramAt(params, 1); ok {
		json.Unmarshal(raw, &fullTx)
	}
	for n := p.chain.Head().Header.Number; ; n-- {
		b := p.chain.BlockByNumber(n)
		if b != nil && b.Hash(headerHashFn) == want {
			return p.blockJSON(b, fullTx), nil
		}
		if n == 0 {
			break
		}
	}
	return nil, nil
}

func ethGetTransactionReceipt(p *Provider, params []json.RawMessage) (interface{}, error) {
	hashRaw, err := requireParam(params, 0, "hash")
	if err != nil {
		return nil, err
	}
	want, err := decodeHashParam(hashRaw)
	if err != nil {
		return nil, err
	}
	r, tx := p.findReceipt(want)
	if r == nil {
		return nil, nil
	}
	return receiptToJSON(r, tx, p.signer), nil
}

func ethGetTransactionByHash(p *Provider, params []json.RawMessage) (interface{}, error) {
	hashRaw, err := requireParam(params, 0, "hash")
	if err != nil {
		return nil, err
	}
	want, err := decodeHashParam(hashRaw)
	if err != nil {
		return nil, err
	}
	if tx := p.pool.Get(want); tx != nil {
		return p.txJSON(tx), nil
	}
	_, tx := p.findReceipt(want)
	if tx == nil {
		return nil, nil
	}
	return p.txJSON(tx), nil
}

func ethGetLogs(p *Provider, params []json.RawMessage) (interface{}, error) {
	var filter struct {
		FromBlock json.RawMessage `json:"fromBlock"`
		ToBlock   json.RawMessage `json:"toBlock"`
		Address   json.RawMessage `json:"address"`
	}
	raw, err := requireParam(params, 0, "filter")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &filter); err != nil {
		return nil, fmt.Errorf("invalid filter object: %w", err)
	}

	from, err := p.resolveBlockNumber(filter.FromBlock)
	if err != nil {
		return nil, err
	}
	to, err := p.resolveBlockNumber(filter.ToBlock)
	if err != nil {
		return nil, err
	}

	var addrFilter *common.Address
	if len(filter.Address) != 0 {
		a, err := decodeAddressParam(filter.Address)
		if err != nil {
			return nil, err
		}
		addrFilter = &a
	}

	out := []logJSON{}
	for n := from; n <= to; n++ {
		for _, r := range p.chain.Receipts(n) {
			for _, l := range r.Logs {
				if addrFilter != nil && l.Address != *addrFilter {
					continue
				}
				out = append(out, logToJSON(l))
			}
		}
	}
	return out, nil
}

func ethSendRawTransaction(p *Provider, params []json.RawMessage) (interface{}, error) {
	raw, err := requireParam(params, 0, "data")
	if err != nil {
		return nil, err
	}
	data, err := decodeBytesParam(raw)
	if err != nil {
		return nil, err
	}
	tx, err := types.DecodeTransaction(data)
	if err != nil {
		return nil, fmt.Errorf("decoding raw transaction: %w", err)
	}
	return p.submitTransaction(tx)
}

func ethSendTransaction(p *Provider, params []json.RawMessage) (interface{}, error) {
	var body struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Gas      string `json:"gas"`
		GasPrice string `json:"gasPrice"`
		Value    string `json:"value"`
		Data     string `json:"data"`
		Input    string `json:"input"`
		Nonce    string `json:"nonce"`
	}
	raw, err := requireParam(params, 0, "transaction")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("invalid transaction object: %w", err)
	}

	from, err := parseAddressHex(body.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	key, ok := p.lookupOwnedAccount(from)
	if !ok {
		return nil, fmt.Errorf("unknown account %s: not in ownedAccounts", from.Hex())
	}

	nonce := p.chain.State().GetNonce(from)
	if body.Nonce != "" {
		if n, err := parseUint64(body.Nonce); err == nil {
			nonce = n
		}
	}
	gas := uint64(90000)
	if body.Gas != "" {
		if g, err := parseUint64(body.Gas); err == nil {
			gas = g
		}
	}
	gasPrice, err := parseWord(body.GasPrice)
	if err != nil {
		return nil, err
	}
	if gasPrice.IsZero() {
		gasPrice = uint256.NewInt(1_000_000_000)
	}
	value, err := parseWord(body.Value)
	if err != nil {
		return nil, err
	}
	data := body.Data
	if data == "" {
		data = body.Input
	}
	input, err := hexOrEmpty(data)
	if err != nil {
		return nil, err
	}

	var to *common.Address
	if body.To != "" {
		t, err := parseAddressHex(body.To)
		if err != nil {
			return nil, err
		}
		to = &t
	}

	tx := types.NewLegacyTx(nonce, to, value, gas, gasPrice, input)
	digest := p.signer.SigningHash(tx)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, err
	}
	tx.Sig = types.Signature{V: sig[64], R: new(uint256.Int).SetBytes(sig[0:32]), S: new(uint256.Int).SetBytes(sig[32:64])}

	return p.submitTransaction(tx)
}

func ethCall(p *Provider, params []json.RawMessage) (interface{}, error) {
	ret, _, err := p.call(params, 0)
	if err != nil {
		return nil, err
	}
	return encodeBytes(ret), nil
}

func ethEstimateGas(p *Provider, params []json.RawMessage) (interface{}, error) {
	_, gasUsed, err := p.call(params, 0)
	if err != nil {
		return nil, err
	}
	return encodeUint64(gasUsed + gasUsed/5), nil
}

func netVersion(p *Provider, params []json.RawMessage) (interface{}, error) {
	return fmt.Sprintf("%d", p.networkID), nil
}

func netListening(p *Provider, params []json.RawMessage) (interface{}, error) {
	return true, nil
}

func web3ClientVersion(p *Provider, params []json.RawMessage) (interface{}, error) {
	return "edr/1.0.0", nil
}

func web3Sha3(p *Provider, params []json.RawMessage) (interface{}, error) {
	raw, err := requireParam(params, 0, "data")
	if err != nil {
		return nil, err
	}
	data, err := decodeBytesParam(raw)
	if err != nil {
		return nil, err
	}
	return encodeBytes(crypto.Keccak256(data)), nil
}
