package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csipbllm/backend-go/app/controllers"
	"github.com/csipbllm/backend-go/internal/config"
	"github.com/csipbllm/backend-go/internal/di"
)

func setupRoutes(t *testing.T) {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Ollama.Host = "http://127.0.0.1"
	cfg.Ollama.Ports = []int{1}
	cfg.Ollama.ProbeTimeout = 200 * time.Millisecond
	cfg.RAG.MaterialsDir = t.TempDir()
	cfg.RAG.Cache.Provider = "file"
	cfg.RAG.Cache.Path = t.TempDir() + "/cache.gob"
	cfg.RAG.VectorStore.Provider = "memory"
	cfg.Session.Provider = "memory"

	container := di.InitContainer()
	require.NoError(t, di.RegisterProviders(container, cfg, di.Infrastructure{}))

	web.BConfig.CopyRequestBody = true
	web.BConfig.WebConfig.AutoRender = false
	require.NoError(t, Init(controllers.NewControllerFactory(container), Options{StaticDir: t.TempDir()}))
}

func serve(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	web.BeeApp.Handlers.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// 路由只能注册一次，所有场景放在同一个测试里
func TestRoutes(t *testing.T) {
	setupRoutes(t)

	t.Run("history json is empty", func(t *testing.T) {
		w := serve(http.MethodGet, "/history", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []interface{}{}, decode(t, w)["history"])
	})

	t.Run("history text placeholder", func(t *testing.T) {
		w := serve(http.MethodGet, "/history?format=text", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Belum ada percakapan.", decode(t, w)["data"])
	})

	t.Run("chat requires question", func(t *testing.T) {
		w := serve(http.MethodPost, "/chat", []byte(`{"cognitive":"par"}`), nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		assert.Equal(t, "Question is required", body["error"])
		assert.Equal(t, "VALIDATION_FAILED", body["code"])
	})

	t.Run("chat rejects blank question with any mode", func(t *testing.T) {
		w := serve(http.MethodPost, "/chat", []byte(`{"question":"","mode":"slow"}`), nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Question is required", decode(t, w)["error"])
	})

	t.Run("evaluate rejects malformed json", func(t *testing.T) {
		w := serve(http.MethodPost, "/evaluate", []byte(`{"user_answer":`), nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid JSON body", decode(t, w)["error"])
	})

	t.Run("root without frontend", func(t *testing.T) {
		w := serve(http.MethodGet, "/", nil, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "index.html tidak ditemukan", decode(t, w)["error"])
	})

	t.Run("warmup survives client disconnect", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/rag/warmup", nil).WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		web.BeeApp.Handlers.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "ready", body["status"])
		index, ok := body["index"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "ready", index["state"])
	})

	t.Run("health", func(t *testing.T) {
		w := serve(http.MethodGet, "/health", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "ok", body["status"])
		assert.Contains(t, body, "index")
	})

	t.Run("metrics", func(t *testing.T) {
		w := serve(http.MethodGet, "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `tutor_requests_total{endpoint="chat",status="error"} 2`)
	})

	t.Run("cors preflight", func(t *testing.T) {
		w := serve(http.MethodOptions, "/chat", nil, map[string]string{"Origin": "http://localhost:5173"})
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
