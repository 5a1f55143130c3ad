package gaugecore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/serenhq/curve-gauge-trader/internal/faults"
	"github.com/serenhq/curve-gauge-trader/internal/seren"
)

// chainDiscoveryTerms drive catalog scoring per target chain. A
// publisher must mention at least one term to be a candidate.
var chainDiscoveryTerms = map[string][]string{
	"ethereum":  {"ethereum"},
	"arbitrum":  {"arbitrum"},
	"base":      {"base"},
	"optimism":  {"optimism"},
	"polygon":   {"polygon", "matic"},
	"avalanche": {"avalanche", "avax"},
	"bsc":       {"bsc", "binance", "bnb"},
	"gnosis":    {"gnosis", "xdai"},
	"zksync":    {"zksync"},
	"scroll":    {"scroll"},
}

var tokenSplitRe = regexp.MustCompile(`[^a-z0-9]+`)

// tokenSet splits lowercased text on non-alphanumerics into a set.
func tokenSet(value string) map[string]bool {
	tokens := map[string]bool{}
	for _, token := range tokenSplitRe.Split(strings.ToLower(value), -1) {
		if token != "" {
			tokens[token] = true
		}
	}
	return tokens
}

func anyTermIn(tokens map[string]bool, terms []string) bool {
	for _, term := range terms {
		if tokens[term] {
			return true
		}
	}
	return false
}

func categoriesText(publisher map[string]any) string {
	raw, ok := publisher["categories"].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			parts = append(parts, strings.ToLower(s))
		}
	}
	return strings.Join(parts, " ")
}

// isRPCLikePublisher keeps only backends that plausibly speak JSON-RPC.
func isRPCLikePublisher(publisher map[string]any) bool {
	slugTokens := tokenSet(asString(publisher["slug"]))
	nameTokens := tokenSet(asString(publisher["name"]))
	categoryTokens := tokenSet(categoriesText(publisher))
	if categoryTokens["rpc"] || slugTokens["rpc"] || nameTokens["rpc"] {
		return true
	}
	description := strings.ToLower(asString(publisher["description"]))
	return strings.Contains(description, "json-rpc") || strings.Contains(description, "json rpc")
}

// scorePublisher ranks a candidate against a chain's terms. Exact
// slug-namespace prefix scores highest, category match next, free-text
// description match lowest.
func scorePublisher(publisher map[string]any, terms []string) (int, bool) {
	slug := strings.ToLower(strings.TrimSpace(asString(publisher["slug"])))
	description := strings.ToLower(asString(publisher["description"]))

	slugTokens := tokenSet(slug)
	nameTokens := tokenSet(asString(publisher["name"]))
	categoryTokens := tokenSet(categoriesText(publisher))
	descriptionTokens := tokenSet(description)

	all := map[string]bool{}
	for _, set := range []map[string]bool{slugTokens, nameTokens, categoryTokens, descriptionTokens} {
		for token := range set {
			all[token] = true
		}
	}
	if !anyTermIn(all, terms) {
		return 0, false
	}

	score := 0
	if strings.HasPrefix(slug, "seren-") {
		score += 20
	}
	if anyTermIn(slugTokens, terms) {
		score += 12
	}
	if anyTermIn(categoryTokens, terms) {
		score += 8
	}
	if anyTermIn(nameTokens, terms) {
		score += 6
	}
	if strings.Contains(description, "json-rpc") {
		score += 4
	}
	return score, true
}

// DiscoverRPCPublishers scores the catalog once and returns the best
// slug per chain. Ties break to the lexicographically smallest slug so
// the mapping is deterministic for a fixed catalog.
func DiscoverRPCPublishers(publishers []map[string]any) map[string]string {
	discovered := map[string]string{}

	for chain, terms := range chainDiscoveryTerms {
		bestScore := -1
		bestSlug := ""
		for _, publisher := range publishers {
			if active, ok := publisher["is_active"].(bool); ok && !active {
				continue
			}
			if !isRPCLikePublisher(publisher) {
				continue
			}
			slug := strings.ToLower(strings.TrimSpace(asString(publisher["slug"])))
			if slug == "" {
				continue
			}
			score, matched := scorePublisher(publisher, terms)
			if !matched {
				continue
			}
			if score > bestScore || (score == bestScore && slug < bestSlug) {
				bestScore = score
				bestSlug = slug
			}
		}
		if bestSlug != "" {
			discovered[chain] = bestSlug
		}
	}
	return discovered
}

// ResolvePublisher maps a chain to its RPC publisher slug: an explicit
// config override wins, otherwise the scored catalog scan. No match is
// a configuration error listing everything that was discovered, so an
// operator can add an override.
func ResolvePublisher(ctx context.Context, gw *seren.Client, chain string, overrides map[string]string) (string, string, error) {
	if slug, ok := overrides[chain]; ok {
		return slug, "config.rpc_publishers", nil
	}

	publishers, err := gw.ListPublishers(ctx)
	if err != nil {
		return "", "", err
	}
	discovered := DiscoverRPCPublishers(publishers)
	if slug, ok := discovered[chain]; ok {
		return slug, "catalog:/publishers", nil
	}

	chains := lo.Keys(discovered)
	sort.Strings(chains)
	mappings := strings.Join(lo.Map(chains, func(c string, _ int) string {
		return fmt.Sprintf("%s:%s", c, discovered[c])
	}), ", ")
	if mappings == "" {
		mappings = "none"
	}
	return "", "", faults.Configf(
		"No RPC publisher is available for chain '%s' (connector alias 'rpc_%s'). "+
			"Auto-discovered mappings: %s. Add an explicit override in config.rpc_publishers if needed.",
		chain, chain, mappings)
}
