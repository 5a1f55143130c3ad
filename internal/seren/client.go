// Package seren is the HTTP client for the Seren publisher gateway.
// Every outbound call of the agent goes through one authenticated
// surface: POST/GET {base}/publishers/{slug}{path}.
package seren

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/serenhq/curve-gauge-trader/internal/faults"
)

const (
	DefaultBaseURL = "https://api.serendb.com"

	requestTimeout  = 30 * time.Second
	catalogPageSize = 100
	catalogMaxPages = 5
)

type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

func NewClient(apiKey, baseURL string, logger zerolog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	normalized := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	for _, suffix := range []string{"/v1/publishers", "/publishers"} {
		normalized = strings.TrimSuffix(normalized, suffix)
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(normalized, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
		log:     logger.With().Str("component", "seren_client").Logger(),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// request performs one HTTP round-trip against the gateway and decodes
// the payload as a JSON object. No retries: a transport failure is
// fatal for the run.
func (c *Client) request(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	normalizedPath := path
	if !strings.HasPrefix(normalizedPath, "/") {
		normalizedPath = "/" + normalizedPath
	}
	target := c.baseURL + normalizedPath
	methodUpper := strings.ToUpper(method)

	var reader io.Reader
	if methodUpper != http.MethodGet {
		if body == nil {
			body = map[string]any{}
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, faults.PublisherWrap(err, "encode request body for %s: %v", normalizedPath, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, methodUpper, target, reader)
	if err != nil {
		return nil, faults.PublisherWrap(err, "build request for %s: %v", normalizedPath, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, faults.PublisherWrap(err, "Connection failed on %s: %v", normalizedPath, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.PublisherWrap(err, "Read failed on %s: %v", normalizedPath, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, faults.Publisherf("HTTP %d on %s: %s", resp.StatusCode, normalizedPath, Preview(string(raw)))
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, faults.PublisherWrap(err, "Invalid JSON from %s: %s", normalizedPath, Preview(string(raw)))
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, faults.Publisherf("Response from %s was not an object", normalizedPath)
	}
	return obj, nil
}

// Call routes one request to a named publisher. The error message
// always carries publisher, method and path for diagnosis.
func (c *Client) Call(ctx context.Context, publisher, method, path string, body map[string]any) (map[string]any, error) {
	cleaned := strings.TrimSpace(path)
	normalized := ""
	if cleaned != "" && cleaned != "/" {
		normalized = cleaned
		if !strings.HasPrefix(normalized, "/") {
			normalized = "/" + normalized
		}
	}

	c.log.Debug().Str("publisher", publisher).Str("method", method).Str("path", PathLabel(normalized)).Msg("gateway call")
	payload, err := c.request(ctx, method, "/publishers/"+publisher+normalized, body)
	if err != nil {
		return nil, faults.PublisherWrap(err, "%s %s: %v", publisher, strings.ToUpper(method), err)
	}
	return payload, nil
}

// ListPublishers pages through the full publisher catalog, capped at
// catalogMaxPages pages.
func (c *Client) ListPublishers(ctx context.Context) ([]map[string]any, error) {
	var publishers []map[string]any
	offset := 0

	for page := 0; page < catalogMaxPages; page++ {
		query := url.Values{}
		query.Set("limit", fmt.Sprintf("%d", catalogPageSize))
		query.Set("offset", fmt.Sprintf("%d", offset))
		payload, err := c.request(ctx, http.MethodGet, "/publishers?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}

		data, ok := payload["data"].([]any)
		if !ok {
			return nil, faults.Publisherf("Invalid publisher catalog response: missing data list")
		}
		pageItems := 0
		for _, item := range data {
			if entry, ok := item.(map[string]any); ok {
				publishers = append(publishers, entry)
				pageItems++
			}
		}

		pagination, _ := payload["pagination"].(map[string]any)
		hasMore := false
		if pagination != nil {
			hasMore, _ = pagination["has_more"].(bool)
		}
		if !hasMore || pageItems == 0 {
			break
		}
		if count, ok := toInt(pagination["count"]); ok && count > 0 {
			offset += count
		} else {
			offset += pageItems
		}
	}
	return publishers, nil
}

// Unwrap strips the two-level gateway envelope: a payload that carries
// an integer status alongside a body is proxied upstream content, and
// the body is the real response only for 2xx statuses.
func Unwrap(payload map[string]any, publisher, method, path string) (any, error) {
	status, hasStatus := toInt(payload["status"])
	body, hasBody := payload["body"]
	if hasStatus && hasBody {
		if status < 200 || status >= 300 {
			return nil, faults.Publisherf("%s upstream %s %s returned status %d: %s",
				publisher, method, PathLabel(path), status, Preview(body))
		}
		return body, nil
	}
	return payload, nil
}

// PathLabel keeps root-path probes readable in error text.
func PathLabel(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

// Preview truncates arbitrary payloads for error messages.
func Preview(value any) string {
	var text string
	if s, ok := value.(string); ok {
		text = s
	} else if encoded, err := json.Marshal(value); err == nil {
		text = string(encoded)
	} else {
		text = fmt.Sprintf("%v", value)
	}
	if len(text) > 220 {
		return text[:220]
	}
	return text
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}
