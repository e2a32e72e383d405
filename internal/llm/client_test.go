package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nativeOptions(url string) Options {
	return Options{BaseURL: url, Model: "deepseek-r1:8b", Retries: 3, RetryDelay: time.Millisecond, Timeout: 2 * time.Second}
}

func TestClient_NativeGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-r1:8b", req.Model)
		assert.Equal(t, "Apa itu algoritma?", req.Prompt)
		assert.False(t, req.Stream)

		_, _ = w.Write([]byte(`{"response": "  Algoritma adalah langkah-langkah.  "}`))
	}))
	defer server.Close()

	text, err := NewClient(nativeOptions(server.URL)).Generate(context.Background(), "Apa itu algoritma?")
	require.NoError(t, err)
	assert.Equal(t, "Algoritma adalah langkah-langkah.", text)
}

func TestClient_NativeRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"response": "siap"}`))
	}))
	defer server.Close()

	text, err := NewClient(nativeOptions(server.URL)).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "siap", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NativeServerErrorExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(nativeOptions(server.URL)).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "[Error Ollama API] Gagal menghubungi Ollama setelah beberapa percobaan.", SentinelFor(err))
}

func TestClient_NativeAPIError(t *testing.T) {
	body := strings.Repeat("x", 300)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	_, err := NewClient(nativeOptions(server.URL)).Generate(context.Background(), "p")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Len(t, apiErr.Body, 200)
	assert.Equal(t, "[Error Ollama API] "+body[:200], SentinelFor(err))
}

func TestClient_NativeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewClient(nativeOptions(server.URL)).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrInvalidJSON)
	assert.Equal(t, "[Error] Respons JSON tidak valid.", SentinelFor(err))
}

func TestClient_NativeEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response": "   "}`))
	}))
	defer server.Close()

	_, err := NewClient(nativeOptions(server.URL)).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, "[Error] Model tidak mengembalikan jawaban.", SentinelFor(err))
}

func TestClient_NativeTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	opts := nativeOptions(server.URL)
	opts.Timeout = 50 * time.Millisecond
	_, err := NewClient(opts).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "[Error Ollama API] Timeout.", SentinelFor(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_NativeConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(nativeOptions(url)).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(nativeOptions(server.URL)).Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-r1:8b", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"deepseek-r1:8b",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":" Halo siswa! "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	opts := nativeOptions(server.URL)
	opts.UseOpenAIAPI = true
	text, err := NewClient(opts).Generate(context.Background(), "halo")
	require.NoError(t, err)
	assert.Equal(t, "Halo siswa!", text)
}

func TestClient_ChatCompletionFallsBackToNative(t *testing.T) {
	var chatCalls, nativeCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			chatCalls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		case "/api/generate":
			nativeCalls.Add(1)
			_, _ = w.Write([]byte(`{"response": "dari native"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	opts := nativeOptions(server.URL)
	opts.UseOpenAIAPI = true
	opts.Retries = 2
	text, err := NewClient(opts).Generate(context.Background(), "halo")
	require.NoError(t, err)
	assert.Equal(t, "dari native", text)
	assert.Equal(t, int32(2), chatCalls.Load())
	assert.Equal(t, int32(1), nativeCalls.Load())
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"generate", `{"response": "a"}`, "a"},
		{"content", `{"content": "b"}`, "b"},
		{"chat message", `{"message": {"role": "assistant", "content": "c"}}`, "c"},
		{"text", `{"text": "d"}`, "d"},
		{"plain string", `"e"`, "e"},
		{"list", `[{"response": "f"}, "g"]`, "fg"},
		{"choices", `{"choices": [{"message": {"content": "h"}}]}`, "h"},
		{"unknown", `{"other": 1}`, ""},
		{"number", `42`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decoded interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &decoded))
			assert.Equal(t, tt.expected, extractText(decoded))
		})
	}
}

func TestSentinelFor_Nil(t *testing.T) {
	assert.Equal(t, "", SentinelFor(nil))
}

func TestProbe(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	alive := httptest.NewServer(http.NotFoundHandler())
	defer alive.Close()

	base, ok := Probe(context.Background(), []string{deadURL, broken.URL, alive.URL}, time.Second)
	require.True(t, ok)
	assert.Equal(t, alive.URL, base)

	_, ok = Probe(context.Background(), []string{deadURL, broken.URL}, time.Second)
	assert.False(t, ok)
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:11435", "http://localhost:11434"}, Candidates("", nil))
	assert.Equal(t, []string{"http://ollama:9999"}, Candidates("ollama/", []int{9999}))
	assert.Equal(t, []string{"https://gpu.local:11434"}, Candidates("https://gpu.local", []int{11434}))
}
