package gaugecore

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/serenhq/curve-gauge-trader/internal/config"
	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

// defaultProbes cover the JSON-RPC path variants seen across chain
// publishers, plus a health endpoint for diagnostics.
func defaultProbes() []config.Probe {
	chainIDBody := func() map[string]any {
		return map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"method":  "eth_chainId",
			"params":  []any{},
		}
	}
	return []config.Probe{
		{Method: http.MethodPost, Path: "", Body: chainIDBody()},
		{Method: http.MethodPost, Path: "/ext/bc/C/rpc", Body: chainIDBody()},
		{Method: http.MethodPost, Path: "/rpc", Body: chainIDBody()},
		{Method: http.MethodGet, Path: "/health", Body: map[string]any{}},
	}
}

type ProbeTarget struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// CapabilityResult reports whether the resolved publisher actually
// answers JSON-RPC, and which probe variant it answered on.
type CapabilityResult struct {
	Status          string       `json:"status"`
	Required        bool         `json:"required"`
	Connector       string       `json:"connector"`
	Publisher       string       `json:"publisher"`
	PublisherSource string       `json:"publisher_source"`
	Probe           *ProbeTarget `json:"probe,omitempty"`
	RPCTarget       *ProbeTarget `json:"rpc_target,omitempty"`
	ResponsePreview []string     `json:"response_preview,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// CheckRPCCapability resolves the chain's publisher and walks the
// probe list until one returns a well-formed JSON-RPC result. All
// probes failing is fatal when the check is required, otherwise the
// aggregated errors come back as a warning.
func CheckRPCCapability(ctx context.Context, gw *seren.Client, chain string, cfg *config.Config) (CapabilityResult, error) {
	required := *cfg.RPCCapability.Required
	probes := cfg.RPCCapability.Probes
	if len(probes) == 0 {
		probes = defaultProbes()
	}
	connector := "rpc_" + chain

	publisher, publisherSource, err := ResolvePublisher(ctx, gw, chain, cfg.RPCPublishers)
	if err != nil {
		return CapabilityResult{}, err
	}

	var probeErrors []string
	for _, probe := range probes {
		result, err := runProbe(ctx, gw, publisher, probe)
		if err != nil {
			probeErrors = append(probeErrors, fmt.Sprintf("%s %s: %v", probe.Method, seren.PathLabel(probe.Path), err))
			continue
		}
		if result == nil {
			// Non-RPC probe (e.g. GET /health) succeeded but cannot
			// establish a JSON-RPC target; keep walking the list.
			continue
		}
		target := &ProbeTarget{Method: probe.Method, Path: probe.Path}
		return CapabilityResult{
			Status:          "ok",
			Required:        required,
			Connector:       connector,
			Publisher:       publisher,
			PublisherSource: publisherSource,
			Probe:           target,
			RPCTarget:       &ProbeTarget{Method: probe.Method, Path: probe.Path},
			ResponsePreview: result,
		}, nil
	}

	labels := make([]string, 0, len(probes))
	for _, probe := range probes {
		labels = append(labels, fmt.Sprintf("%s %s", probe.Method, seren.PathLabel(probe.Path)))
	}
	message := fmt.Sprintf("RPC capability check failed for chain '%s' (connector '%s', publisher '%s'). Probes attempted: %s.",
		chain, connector, publisher, strings.Join(labels, ", "))
	if len(probeErrors) > 0 {
		message = fmt.Sprintf("%s Errors: %s", message, strings.Join(probeErrors, " | "))
	}

	if required {
		return CapabilityResult{}, faults.Configf("%s", message)
	}
	return CapabilityResult{
		Status:          "warning",
		Required:        required,
		Connector:       connector,
		Publisher:       publisher,
		PublisherSource: publisherSource,
		Error:           message,
	}, nil
}

// runProbe executes one probe. A POST probe succeeds only when the
// unwrapped payload is a JSON object carrying a result and no error;
// any other method returns (nil, nil) on transport success because it
// cannot prove JSON-RPC capability.
func runProbe(ctx context.Context, gw *seren.Client, publisher string, probe config.Probe) ([]string, error) {
	payload, err := gw.Call(ctx, publisher, probe.Method, probe.Path, probe.Body)
	if err != nil {
		return nil, err
	}
	unwrapped, err := seren.Unwrap(payload, publisher, probe.Method, probe.Path)
	if err != nil {
		return nil, err
	}
	if probe.Method != http.MethodPost {
		return nil, nil
	}
	obj, ok := unwrapped.(map[string]any)
	if !ok {
		return nil, faults.Publisherf("%s %s %s did not return a JSON object",
			publisher, probe.Method, seren.PathLabel(probe.Path))
	}
	if rpcError, present := obj["error"]; present && !isEmptyRPCError(rpcError) {
		return nil, faults.Publisherf("%s %s %s returned JSON-RPC error: %s",
			publisher, probe.Method, seren.PathLabel(probe.Path), seren.Preview(rpcError))
	}
	if _, present := obj["result"]; !present {
		return nil, faults.Publisherf("%s %s %s missing JSON-RPC result",
			publisher, probe.Method, seren.PathLabel(probe.Path))
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
