package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// credentialProbeTimeout bounds the validation round-trip.
const credentialProbeTimeout = 5 * time.Second

// ValidationResult reports a credential check.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidateCredential checks a credential against the provider. For
// locally-hosted providers the check is reachability of the model listing
// endpoint; connection refused and timeouts map to a friendly "server not
// running" message rather than a raw transport error.
func (c *Client) ValidateCredential(ctx context.Context, apiKey string) ValidationResult {
	if err := c.ensureInitialized(); err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}

	probeCtx, cancel := context.WithTimeout(ctx, credentialProbeTimeout)
	defer cancel()

	var endpoint string
	headers := map[string]string{}
	switch c.provider {
	case "ollama":
		endpoint = c.localBaseRoot("http://localhost:11434") + "/api/tags"
	case "lmstudio":
		endpoint = c.localBaseRoot("http://localhost:1234") + "/v1/models"
	case "anthropic":
		endpoint = "https://api.anthropic.com/v1/models"
		headers["x-api-key"] = apiKey
		headers["anthropic-version"] = "2023-06-01"
	case "gemini":
		endpoint = fmt.Sprintf("%s/models?key=%s", c.geminiBaseURL(), apiKey)
	default:
		base := c.opts.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		endpoint = strings.TrimSuffix(base, "/") + "/models"
		headers["Authorization"] = "Bearer " + apiKey
	}

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isLocalVendor(c.provider) && isConnectionFailure(err) {
			return ValidationResult{
				Valid: false,
				Error: fmt.Sprintf("%s server is not running at %s", c.provider, endpoint),
			}
		}
		return ValidationResult{Valid: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return ValidationResult{Valid: true}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ValidationResult{Valid: false, Error: "credential rejected by provider"}
	default:
		return ValidationResult{
			Valid:    true,
			Warnings: []string{fmt.Sprintf("model listing returned %d; credential may still be valid", resp.StatusCode)},
		}
	}
}

func isConnectionFailure(err error) bool {
	s := err.Error()
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "deadline exceeded") ||
		strings.Contains(s, "Client.Timeout") ||
		strings.Contains(s, "no such host")
}

func (c *Client) localBaseRoot(fallback string) string {
	if c.opts.BaseURL == "" {
		return fallback
	}
	// Strip an OpenAI-compatible /v1 suffix to reach the native API.
	return strings.TrimSuffix(strings.TrimSuffix(c.opts.BaseURL, "/"), "/v1")
}

// ListModels returns the models this provider can drive. Cloud providers
// answer from the static catalog; Ollama is queried live with a catalog-
// free fallback context window.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if c.provider == "ollama" {
		return c.listOllamaModels(ctx)
	}
	if models, ok := modelCatalog[c.provider]; ok {
		out := make([]ModelInfo, len(models))
		copy(out, models)
		return out, nil
	}
	return nil, llm.NewError(llm.ErrResourceNotFound,
		fmt.Errorf("no model catalog for provider %s", c.provider))
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type ollamaShowResponse struct {
	ModelInfo map[string]any `json:"model_info"`
}

func (c *Client) listOllamaModels(ctx context.Context) ([]ModelInfo, error) {
	root := c.localBaseRoot("http://localhost:11434")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapProviderError(c.provider, err)
	}
	defer resp.Body.Close()

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding ollama tags: %w", err)
	}

	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, ModelInfo{
			ID:                m.Name,
			Provider:          "ollama",
			ContextWindow:     c.ollamaContextWindow(ctx, root, m.Name),
			SupportsTools:     true,
			SupportsStreaming: true,
		})
	}
	return models, nil
}

// ollamaContextWindow asks /api/show for the model's context length.
// Ollama reports variable sizes; 4096 is used only when the endpoint is
// unreachable or the answer is unusable.
func (c *Client) ollamaContextWindow(ctx context.Context, root, model string) int {
	body, err := json.Marshal(map[string]string{"name": model})
	if err != nil {
		return ollamaFallbackContextWindow
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, root+"/api/show", bytes.NewReader(body))
	if err != nil {
		return ollamaFallbackContextWindow
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ollamaFallbackContextWindow
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return ollamaFallbackContextWindow
	}

	var show ollamaShowResponse
	if err := json.NewDecoder(resp.Body).Decode(&show); err != nil {
		return ollamaFallbackContextWindow
	}
	for key, value := range show.ModelInfo {
		if strings.HasSuffix(key, ".context_length") || key == "context_length" {
			if f, ok := value.(float64); ok && f > 0 {
				return int(f)
			}
		}
	}
	return ollamaFallbackContextWindow
}
