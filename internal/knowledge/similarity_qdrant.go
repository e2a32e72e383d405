package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const qdrantUpsertBatch = 256

// QdrantOptions Qdrant客户端配置
type QdrantOptions struct {
	Endpoint   string
	APIKey     string
	Collection string
	UseTLS     bool
	Timeout    time.Duration
}

// QdrantIndex 基于Qdrant Dot距离的加速检索
type QdrantIndex struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	collection string

	mu    sync.RWMutex
	built bool
}

// NewQdrantIndex 创建Qdrant索引
func NewQdrantIndex(opts QdrantOptions) *QdrantIndex {
	scheme := "http"
	if opts.UseTLS {
		scheme = "https"
	}
	if opts.Endpoint == "" {
		opts.Endpoint = fmt.Sprintf("%s://localhost:6333", scheme)
	}
	if !strings.HasPrefix(opts.Endpoint, "http") {
		opts.Endpoint = fmt.Sprintf("%s://%s", scheme, opts.Endpoint)
	}
	if opts.Collection == "" {
		opts.Collection = "material_chunks"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	return &QdrantIndex{
		client:     &http.Client{Timeout: opts.Timeout},
		endpoint:   strings.TrimSuffix(opts.Endpoint, "/"),
		apiKey:     opts.APIKey,
		collection: opts.Collection,
	}
}

func (q *QdrantIndex) Name() string {
	return "qdrant"
}

// Build 重建集合并批量写入向量，点ID即索引位置
func (q *QdrantIndex) Build(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors to index")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.built = false

	path := fmt.Sprintf("/collections/%s", q.collection)
	if err := q.expect(ctx, http.MethodDelete, path, nil, http.StatusOK, http.StatusNotFound); err != nil {
		return err
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     len(vectors[0]),
			"distance": "Dot",
		},
	}
	if err := q.expect(ctx, http.MethodPut, path, body, http.StatusOK); err != nil {
		return err
	}

	for start := 0; start < len(vectors); start += qdrantUpsertBatch {
		end := start + qdrantUpsertBatch
		if end > len(vectors) {
			end = len(vectors)
		}
		points := make([]map[string]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, map[string]interface{}{
				"id":     i,
				"vector": vectors[i],
			})
		}
		payload := map[string]interface{}{"points": points}
		if err := q.expect(ctx, http.MethodPut, path+"/points?wait=true", payload, http.StatusOK); err != nil {
			return err
		}
	}

	q.built = true
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	q.mu.RLock()
	built := q.built
	q.mu.RUnlock()
	if !built {
		return nil, ErrIndexNotBuilt
	}
	if k <= 0 {
		return nil, nil
	}

	body := map[string]interface{}{
		"vector":       query,
		"limit":        k,
		"with_payload": false,
		"with_vector":  false,
	}
	resp, err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collection), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("qdrant search failed: %s %s", resp.Status, string(raw))
	}

	var searchResp struct {
		Result []struct {
			ID    interface{} `json:"id"`
			Score float64     `json:"score"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(searchResp.Result))
	for _, item := range searchResp.Result {
		idx, ok := parsePointID(item.ID)
		if !ok {
			continue
		}
		matches = append(matches, Match{Index: idx, Score: item.Score})
	}
	sortMatchesByScore(matches)
	return matches, nil
}

func (q *QdrantIndex) Ready() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.built
}

func parsePointID(val interface{}) (int, bool) {
	switch v := val.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err != nil {
			return -1, false
		}
		return out, true
	default:
		return -1, false
	}
}

func (q *QdrantIndex) expect(ctx context.Context, method, path string, body interface{}, okStatus ...int) error {
	resp, err := q.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, status := range okStatus {
		if resp.StatusCode == status {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
	}
	raw, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("qdrant %s %s failed: %s %s", method, path, resp.Status, string(raw))
}

func (q *QdrantIndex) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.endpoint+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	return q.client.Do(req)
}
