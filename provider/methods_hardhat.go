package provider

import (
	"encoding/json"
)

// hardhatSetBalance overwrites an account's balance directly, bypassing the
// mempool/executor entirely — a development-only state mutation Hardhat
// exposes for test setup (§6).
func hardhatSetBalance(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	wordRaw, err := requireParam(params, 1, "balance")
	if err != nil {
		return nil, err
	}
	want, err := decodeWordParam(wordRaw)
	if err != nil {
		return nil, err
	}

	state := p.chain.State()
	current := state.GetBalance(addr)
	state.SubBalance(addr, current)
	state.AddBalance(addr, want)
	return true, nil
}

// hardhatSetCode installs arbitrary bytecode at an address without running
// a CREATE, the usual way test setup seeds precompiled mocks (§6).
func hardhatSetCode(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	codeRaw, err := requireParam(params, 1, "code")
	if err != nil {
		return nil, err
	}
	code, err := decodeBytesParam(codeRaw)
	if err != nil {
		return nil, err
	}
	p.chain.State().SetCode(addr, code)
	return true, nil
}

// hardhatSetStorageAt writes one storage slot directly (§6).
func hardhatSetStorageAt(p *Provider, params []json.RawMessage) (interface{}, error) {
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
	valRaw, err := requireParam(params, 2, "value")
	if err != nil {
		return nil, err
	}
	val, err := decodeHashParam(valRaw)
	if err != nil {
		return nil, err
	}
	p.chain.State().SetState(addr, slot, val)
	return true, nil
}

// hardhatSetNonce writes an account's nonce directly (§6).
func hardhatSetNonce(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	nonceRaw, err := requireParam(params, 1, "nonce")
	if err != nil {
		return nil, err
	}
	nonce, err := decodeUint64Param(nonceRaw)
	if err != nil {
		return nil, err
	}
	p.chain.State().SetNonce(addr, nonce)
	return true, nil
}

// hardhatImpersonateAccount records addr in the provider's impersonated
// set; nothing in the provider reads that set. EDR's mempool and executor
// derive the sender exclusively via ECDSA signature recovery
// (Signer.Sender), so impersonation does not let eth_sendTransaction skip
// signing for addr — only a registered OwnedAccount private key can
// actually send. eth_sendTransaction from an impersonated address that is
// not an OwnedAccount fails with the same unknown-account error as if
// impersonateAccount had never been called.
func hardhatImpersonateAccount(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.impersonated[addr] = true
	p.mu.Unlock()
	return true, nil
}

func hardhatStopImpersonatingAccount(p *Provider, params []json.RawMessage) (interface{}, error) {
	addrRaw, err := requireParam(params, 0, "address")
	if err != nil {
		return nil, err
	}
	addr, err := decodeAddressParam(addrRaw)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	delete(p.impersonated, addr)
	p.mu.Unlock()
	return true, nil
}
