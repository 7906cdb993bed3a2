package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultHFBaseURL = "https://api-inference.huggingface.co"

// HFEngine runs a seq2seq translation model behind the Hugging Face
// inference API (or a compatible self-hosted text-generation-inference server).
type HFEngine struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewHFEngine(baseURL, apiKey, model string, timeout time.Duration) *HFEngine {
	if baseURL == "" {
		baseURL = DefaultHFBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HFEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *HFEngine) Name() string {
	return "hf:" + e.model
}

func (e *HFEngine) Translate(ctx context.Context, req TranslateRequest) (*Result, error) {
	start := time.Now()

	body := map[string]interface{}{
		"inputs": req.Text,
		"parameters": map[string]interface{}{
			"max_length": req.MaxLength,
		},
		"options": map[string]interface{}{
			"wait_for_model": true,
		},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/models/%s", e.baseURL, e.model), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out []struct {
		TranslationText string `json:"translation_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no translation returned")
	}

	return &Result{
		Text:    out[0].TranslationText,
		Engine:  e.Name(),
		Latency: time.Since(start),
	}, nil
}
