package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService 指标服务，每个实例持有独立的注册表
type MetricsService struct {
	registry *prometheus.Registry

	ragDecisions  *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	indexChunks   prometheus.Gauge
}

// NewMetricsService 创建指标服务
func NewMetricsService() *MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsService{
		registry: reg,
		ragDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_rag_decisions_total",
				Help: "Context assembly outcomes by endpoint and rag mode",
			},
			[]string{"endpoint", "rag_mode"},
		),
		modelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutor_model_call_duration_seconds",
				Help:    "Duration of generation model calls",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"purpose", "status"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_requests_total",
				Help: "Handled tutor requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		indexChunks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tutor_material_index_chunks",
			Help: "Number of chunks in the material index",
		}),
	}
}

// Registerer 供其他组件注册指标
func (ms *MetricsService) Registerer() prometheus.Registerer {
	return ms.registry
}

// Gatherer 返回指标采集器
func (ms *MetricsService) Gatherer() prometheus.Gatherer {
	return ms.registry
}

// RecordRagDecision 记录上下文组装结果
func (ms *MetricsService) RecordRagDecision(endpoint, ragMode string) {
	if ms == nil {
		return
	}
	ms.ragDecisions.WithLabelValues(endpoint, ragMode).Inc()
}

// ObserveModelCall 记录模型调用耗时
func (ms *MetricsService) ObserveModelCall(purpose string, duration time.Duration, err error) {
	if ms == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	ms.modelDuration.WithLabelValues(purpose, status).Observe(duration.Seconds())
}

// RecordRequest 记录请求结果
func (ms *MetricsService) RecordRequest(endpoint, status string) {
	if ms == nil {
		return
	}
	ms.requests.WithLabelValues(endpoint, status).Inc()
}

// SetIndexChunks 更新索引分块数
func (ms *MetricsService) SetIndexChunks(n int) {
	if ms == nil {
		return
	}
	ms.indexChunks.Set(float64(n))
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{})
}

// ServeHTTP 实现http.Handler接口
func (ms *MetricsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.Handler().ServeHTTP(w, r)
}
