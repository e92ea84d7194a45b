package provider

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// subscription buffers the events delivered for one eth_subscribe id.
// Grounded on core/miner.Hub's Broadcast (§4.H): the hub fans newHeads/logs
// out to live WebSocket connections the instant a block commits, but
// HandleRequest has no socket of its own to push over (§4.J) — a caller
// embedding Provider in-process has no open connection to write frames to.
// A subscription plays the hub's role for that caller: mineNow() publishes
// into it synchronously, right where Hub.Broadcast would fire, and the
// caller drains it with PollSubscription instead of reading off a conn.
type subscription struct {
	kind string
	addr *commonAddressFilter
	buf  []json.RawMessage
}

// commonAddressFilter narrows a "logs" subscription to one contract address,
// the same filter shape eth_getLogs accepts (§6).
type commonAddressFilter struct {
	hex string
}

var subIDCounter uint64

func newSubID() string {
	return fmt.Sprintf("0x%x", atomic.AddUint64(&subIDCounter, 1))
}

// publishNewHeads and publishLogs are called from mineNow right after a
// block commits, mirroring Hub.Broadcast's "before returning control"
// ordering guarantee (§5) — a subscriber's first poll after the mining RPC
// returns is guaranteed to see the block that call produced.
func (p *Provider) publishNewHeads(b blockJSON) {
	p.mu.Lock()
	defer p.mu.Unlock()
	payload, err := json.Marshal(b)
	if err != nil {
		return
	}
	for _, sub := range p.subs {
		if sub.kind != "newHeads" {
			continue
		}
		sub.buf = append(sub.buf, payload)
	}
}

func (p *Provider) publishPendingTransaction(hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	payload, err := json.Marshal(hash)
	if err != nil {
		return
	}
	for _, sub := range p.subs {
		if sub.kind != "newPendingTransactions" {
			continue
		}
		sub.buf = append(sub.buf, payload)
	}
}

func (p *Provider) publishLogs(logs []logJSON) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subs {
		if sub.kind != "logs" {
			continue
		}
		for _, l := range logs {
			if sub.addr != nil && l.Address != sub.addr.hex {
				continue
			}
			payload, err := json.Marshal(l)
			if err != nil {
				continue
			}
			sub.buf = append(sub.buf, payload)
		}
	}
}

// ethSubscribe registers a newHeads/logs/newPendingTransactions watcher and
// returns its id. Unlike a WebSocket Hub connection, nothing is pushed back
// over HandleRequest's synchronous call — the id is meant to be handed to
// PollSubscription (a Go-level API, not a JSON-RPC method: HandleRequest has
// no channel of its own to deliver a push notification over, §4.J).
func ethSubscribe(p *Provider, params []json.RawMessage) (interface{}, error) {
	kindRaw, err := requireParam(params, 0, "subscriptionType")
	if err != nil {
		return nil, err
	}
	var kind string
	if err := json.Unmarshal(kindRaw, &kind); err != nil {
		return nil, fmt.Errorf("invalid subscription type: %w", err)
	}
	switch kind {
	case "newHeads", "newPendingTransactions":
	case "logs":
	default:
		return nil, fmt.Errorf("unsupported subscription type %q", kind)
	}

	var addrFilter *commonAddressFilter
	if kind == "logs" {
		if raw, ok := paramAt(params, 1); ok {
			var filter struct {
				Address string `json:"address"`
			}
			if err := json.Unmarshal(raw, &filter); err == nil && filter.Address != "" {
				addrFilter = &commonAddressFilter{hex: filter.Address}
			}
		}
	}

	id := newSubID()
	p.mu.Lock()
	if p.subs == nil {
		p.subs = make(map[string]*subscription)
	}
	p.subs[id] = &subscription{kind: kind, addr: addrFilter}
	p.mu.Unlock()
	return id, nil
}

func ethUnsubscribe(p *Provider, params []json.RawMessage) (interface{}, error) {
	idRaw, err := requireParam(params, 0, "subscriptionId")
	if err != nil {
		return nil, err
	}
	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return nil, fmt.Errorf("invalid subscription id: %w", err)
	}
	p.mu.Lock()
	_, ok := p.subs[id]
	delete(p.subs, id)
	p.mu.Unlock()
	return ok, nil
}

// PollSubscription drains the events queued for id since the last poll. It
// is the in-process analogue of a Hub WebSocket frame read: callers that
// embed Provider directly (no socket, §4.J) use this instead of reading off
// a net.Conn.
func (p *Provider) PollSubscription(id string) ([]json.RawMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.subs[id]
	if !ok {
		return nil, false
	}
	out := sub.buf
	sub.buf = nil
	return out, true
}
