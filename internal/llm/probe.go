package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

// DefaultPort 探测失败时假定的Ollama端口
const DefaultPort = 11434

// DefaultPorts 启动时按顺序探测的端口
var DefaultPorts = []int{11435, DefaultPort}

// Candidates 由主机与端口组合出候选地址
func Candidates(host string, ports []int) []string {
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		host = "http://localhost"
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	if len(ports) == 0 {
		ports = DefaultPorts
	}

	out := make([]string, 0, len(ports))
	for _, port := range ports {
		out = append(out, fmt.Sprintf("%s:%d", host, port))
	}
	return out
}

// Probe 返回第一个应答 200 或 404 的候选地址
func Probe(ctx context.Context, candidates []string, timeout time.Duration) (string, bool) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	for _, base := range candidates {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound {
			logger.Info("Ollama detected", zap.String("base_url", base))
			return base, true
		}
	}
	return "", false
}

// DetectBaseURL 探测Ollama地址；全部失败时使用默认端口
func DetectBaseURL(ctx context.Context, host string, ports []int, timeout time.Duration) string {
	candidates := Candidates(host, ports)
	if base, ok := Probe(ctx, candidates, timeout); ok {
		return base
	}

	fallback := Candidates(host, []int{DefaultPort})[0]
	logger.Warn("Ollama not found on any candidate port, assuming default",
		zap.Strings("candidates", candidates),
		zap.String("base_url", fallback))
	return fallback
}
