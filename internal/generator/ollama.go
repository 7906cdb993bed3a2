package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const DefaultOllamaURL = "http://localhost:11434"

type ollamaBackend struct {
	baseURL    string
	model      string
	deviceAuto bool
	client     *http.Client
}

func newOllamaBackend(cfg ServiceConfig) *ollamaBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &ollamaBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cfg.Model,
		deviceAuto: cfg.DeviceAuto,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (b *ollamaBackend) name() string { return "ollama" }

func (b *ollamaBackend) complete(ctx context.Context, prompt string, p Params) (string, error) {
	options := map[string]interface{}{
		"num_predict": p.MaxNewTokens,
	}
	if p.Temperature != nil {
		options["temperature"] = *p.Temperature
	}
	// Ollama places layers on the GPU itself; pin to CPU unless asked not to.
	if !b.deviceAuto {
		options["num_gpu"] = 0
	}

	jsonData, err := json.Marshal(map[string]interface{}{
		"model":   b.model,
		"prompt":  prompt,
		"stream":  false,
		"options": options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Response, nil
}
