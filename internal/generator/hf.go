package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultHFBaseURL = "https://api-inference.huggingface.co"

type hfBackend struct {
	baseURL    string
	apiKey     string
	model      string
	deviceAuto bool
	client     *http.Client
}

func newHFBackend(cfg ServiceConfig) *hfBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultHFBaseURL
	}
	return &hfBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		deviceAuto: cfg.DeviceAuto,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (b *hfBackend) name() string { return "hf" }

type hfParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens"`
	Temperature    *float64 `json:"temperature,omitempty"`
	DoSample       bool     `json:"do_sample"`
	ReturnFullText bool     `json:"return_full_text"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseGPU       bool `json:"use_gpu"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

func (b *hfBackend) complete(ctx context.Context, prompt string, p Params) (string, error) {
	jsonData, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxNewTokens: p.MaxNewTokens,
			Temperature:  p.Temperature,
			DoSample:     p.Temperature != nil,
		},
		Options: hfOptions{WaitForModel: true, UseGPU: b.deviceAuto},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/models/%s", b.baseURL, b.model), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out) == 0 {
		return "", ErrEmptyOutput
	}
	return out[0].GeneratedText, nil
}
