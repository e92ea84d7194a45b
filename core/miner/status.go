package miner

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"
)

// statusView is the JSON body served by the status endpoint: enough for a
// local dashboard or health check to show current mining state without
// speaking JSON-RPC.
type statusView struct {
	Mode             string `json:"mode"`
	IntervalMillis   uint64 `json:"intervalMillis,omitempty"`
	HeadBlockNumber  uint64 `json:"headBlockNumber"`
	PendingTxCount   int    `json:"pendingTxCount"`
	WebsocketClients int    `json:"websocketClients"`
}

// StatusHandler returns an http.Handler serving GET /status with the
// miner's current mode, chain head, and subscriber count, wrapped in
// rs/cors so a browser-based dashboard on a different origin can poll it
// without EDR growing its own CORS header plumbing.
//
// Grounded on the teacher's pkg/server (zeta-chain-evm's server/json_rpc.go
// equivalent, `cors.Default()` / `cors.AllowAll()` then `.Handler(mux)`) —
// the one place in the retrieved pack that wires rs/cors against a real
// http.Handler.
func (m *Miner) StatusHandler(allowAllOrigins bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.status())
	})

	c := cors.Default()
	if allowAllOrigins {
		c = cors.AllowAll()
	}
	return c.Handler(mux)
}

func (m *Miner) status() statusView {
	m.mu.Lock()
	mode := m.mode
	intervalMillis := uint64(m.interval.Milliseconds())
	m.mu.Unlock()

	return statusView{
		Mode:             mode.String(),
		IntervalMillis:   intervalMillis,
		HeadBlockNumber:  m.chain.Head().Header.Number,
		PendingTxCount:   m.pool.Count(),
		WebsocketClients: m.hub.ConnectionCount(),
	}
}
