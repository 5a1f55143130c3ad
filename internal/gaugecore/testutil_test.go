package gaugecore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

const (
	selAllowance = "0xdd62ed3e"
	selBalanceOf = "0x70a08231"
)

// fakeGateway stands in for the Seren gateway: it serves the publisher
// catalog, the Curve gauge listing (wrapped in the gateway envelope)
// and JSON-RPC calls routed to any publisher slug.
type fakeGateway struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	rpcCalls   map[string]int
	submitted  []string
	catalog    []map[string]any
	gaugesBody map[string]any

	chainIDHex   string
	nonceHex     string
	gasPriceHex  string
	estimateHex  string
	estimateErr  string // non-empty: eth_estimateGas returns this JSON-RPC error
	allowanceHex string
	balanceHex   string
	txHashHex    string
}

func newFakeGateway(t *testing.T) *fakeGateway {
	fg := &fakeGateway{
		t:            t,
		rpcCalls:     map[string]int{},
		chainIDHex:   "0x1",
		nonceHex:     "0x7",
		gasPriceHex:  "0x3b9aca00", // 1 gwei
		estimateHex:  "0x186a0",    // 100000
		allowanceHex: "0x0",
		balanceHex:   "0xde0b6b3a7640000", // 1 ether
		txHashHex:    "0x9f2f6e1fcafc77ba39ce3a2d4d96b6f6f42ab7bb312b77a6a1e6a6e2b28d0c01",
	}
	fg.server = httptest.NewServer(http.HandlerFunc(fg.handle))
	t.Cleanup(fg.server.Close)
	return fg
}

func (fg *fakeGateway) client() *seren.Client {
	return seren.NewClient("test-key", fg.server.URL, zerolog.Nop())
}

func (fg *fakeGateway) calls(method string) int {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return fg.rpcCalls[method]
}

func (fg *fakeGateway) submittedRaw() []string {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return append([]string(nil), fg.submitted...)
}

func (fg *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/publishers" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{
			"data":       fg.catalogOrDefault(),
			"pagination": map[string]any{"has_more": false},
		})
	case strings.HasSuffix(r.URL.Path, "/curve-finance/getGauges"):
		// Gauge data arrives wrapped in the gateway envelope.
		writeJSON(w, map[string]any{"status": 200, "body": fg.gaugesBody})
	case r.Method == http.MethodPost:
		fg.handleRPC(w, r)
	default:
		writeJSON(w, map[string]any{"status": "healthy"})
	}
}

func (fg *fakeGateway) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fg.t.Fatalf("decode rpc request: %v", err)
	}
	fg.mu.Lock()
	fg.rpcCalls[req.Method]++
	fg.mu.Unlock()

	respond := func(result any) {
		writeJSON(w, map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
	}
	respondErr := func(message string) {
		writeJSON(w, map[string]any{"jsonrpc": "2.0", "id": 1, "error": map[string]any{"code": -32000, "message": message}})
	}

	switch req.Method {
	case "eth_chainId":
		respond(fg.chainIDHex)
	case "eth_getTransactionCount":
		respond(fg.nonceHex)
	case "eth_gasPrice":
		respond(fg.gasPriceHex)
	case "eth_estimateGas":
		if fg.estimateErr != "" {
			respondErr(fg.estimateErr)
			return
		}
		respond(fg.estimateHex)
	case "eth_getBalance":
		respond(fg.balanceHex)
	case "eth_call":
		call, _ := req.Params[0].(map[string]any)
		data, _ := call["data"].(string)
		switch {
		case strings.HasPrefix(data, selAllowance):
			respond(fg.allowanceHex)
		case strings.HasPrefix(data, selBalanceOf):
			respond(fg.balanceHex)
		default:
			respondErr("unexpected eth_call selector")
		}
	case "eth_sendRawTransaction":
		raw, _ := req.Params[0].(string)
		fg.mu.Lock()
		fg.submitted = append(fg.submitted, raw)
		n := len(fg.submitted)
		fg.mu.Unlock()
		respond(fg.txHashHex[:len(fg.txHashHex)-1] + string(rune('0'+n)))
	default:
		respondErr("unsupported method " + req.Method)
	}
}

func (fg *fakeGateway) catalogOrDefault() []map[string]any {
	if fg.catalog != nil {
		return fg.catalog
	}
	return []map[string]any{
		{
			"slug":        "seren-ethereum-rpc",
			"name":        "Ethereum RPC",
			"description": "JSON-RPC access to Ethereum mainnet",
			"categories":  []any{"rpc", "ethereum"},
			"is_active":   true,
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func testTarget(publisher string) RPCTarget {
	return RPCTarget{Publisher: publisher, Method: http.MethodPost, Path: "", PublisherSource: "test"}
}
