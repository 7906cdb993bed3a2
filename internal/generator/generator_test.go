package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHF_Generate(t *testing.T) {
	var got hfRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/Qwen/Qwen2.5-0.5B-Instruct", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode([]map[string]string{{"generated_text": " Answer: Rest and drink fluids. "}})
	}))
	defer server.Close()

	g, err := New(ServiceConfig{BaseURL: server.URL})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "Question: cold?\nAnswer:", Params{MaxNewTokens: 256, Temperature: Temperature(0.4)})
	require.NoError(t, err)
	assert.Equal(t, "Rest and drink fluids.", out)

	assert.Equal(t, 256, got.Parameters.MaxNewTokens)
	require.NotNil(t, got.Parameters.Temperature)
	assert.InDelta(t, 0.4, *got.Parameters.Temperature, 1e-9)
	assert.True(t, got.Parameters.DoSample)
	assert.False(t, got.Parameters.ReturnFullText)
	assert.False(t, got.Options.UseGPU)
}

func TestHF_Generate_NoTemperature(t *testing.T) {
	var raw struct {
		Parameters map[string]interface{} `json:"parameters"`
		Options    map[string]interface{} `json:"options"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`[{"generated_text":"Rest."}]`))
	}))
	defer server.Close()

	g, err := New(ServiceConfig{Backend: "hf", BaseURL: server.URL, DeviceAuto: true})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "p", Params{MaxNewTokens: 200})
	require.NoError(t, err)

	_, hasTemp := raw.Parameters["temperature"]
	assert.False(t, hasTemp)
	assert.Equal(t, false, raw.Parameters["do_sample"])
	assert.Equal(t, true, raw.Options["use_gpu"])
}

func TestHF_Generate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"status", http.StatusInternalServerError, `{"error":"boom"}`},
		{"bad json", http.StatusOK, `nope`},
		{"no candidates", http.StatusOK, `[]`},
		{"empty after cleanup", http.StatusOK, `[{"generated_text":"<think>hmm</think>"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			g, err := New(ServiceConfig{BaseURL: server.URL})
			require.NoError(t, err)

			_, err = g.Generate(context.Background(), "p", Params{MaxNewTokens: 10})
			var ge *GenerationError
			require.True(t, errors.As(err, &ge), "got %v", err)
			assert.Equal(t, "hf", ge.Backend)
			assert.Equal(t, DefaultModel, ge.Model)
		})
	}
}

func TestOllama_Generate(t *testing.T) {
	var got struct {
		Model   string                 `json:"model"`
		Prompt  string                 `json:"prompt"`
		Stream  bool                   `json:"stream"`
		Options map[string]interface{} `json:"options"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"response": "**See a doctor** if it gets worse."})
	}))
	defer server.Close()

	g, err := New(ServiceConfig{Backend: "ollama", BaseURL: server.URL, Model: "qwen2.5:0.5b", StripMarkdown: true})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "prompt", Params{MaxNewTokens: 256, Temperature: Temperature(0.4)})
	require.NoError(t, err)
	assert.Equal(t, "See a doctor if it gets worse.", out)

	assert.Equal(t, "qwen2.5:0.5b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, float64(256), got.Options["num_predict"])
	assert.Equal(t, 0.4, got.Options["temperature"])
	assert.Equal(t, float64(0), got.Options["num_gpu"])
}

func TestOllama_DeviceAuto(t *testing.T) {
	var options map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Options map[string]interface{} `json:"options"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		options = body.Options
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	g, err := New(ServiceConfig{Backend: "ollama", BaseURL: server.URL, DeviceAuto: true})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "prompt", Params{MaxNewTokens: 200})
	require.NoError(t, err)

	_, pinned := options["num_gpu"]
	assert.False(t, pinned)
	_, hasTemp := options["temperature"]
	assert.False(t, hasTemp)
}

func TestOpenAI_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model     string  `json:"model"`
			MaxTokens int     `json:"max_tokens"`
			Temp      float64 `json:"temperature"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		assert.Equal(t, 200, body.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Rest and hydrate."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	g, err := New(ServiceConfig{Backend: "openai", BaseURL: server.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "prompt", Params{MaxNewTokens: 200})
	require.NoError(t, err)
	assert.Equal(t, "Rest and hydrate.", out)
	assert.Equal(t, "openai:gpt-4o-mini", g.Name())
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(ServiceConfig{Backend: "llama.cpp"})
	assert.Error(t, err)
}
