package services

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// CircuitBreakerState 熔断器状态
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// String 返回状态字符串
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen 熔断器打开，请求被拒绝
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerOptions 熔断器配置
type CircuitBreakerOptions struct {
	FailureThreshold int           // 连续失败次数阈值
	SuccessThreshold int           // 半开状态下恢复所需成功次数
	Timeout          time.Duration // 打开后多久允许试探
	// IsFailure 判断错误是否计入失败；为空时所有错误都计入
	IsFailure func(error) bool
}

// DefaultCircuitBreakerOptions 默认配置
func DefaultCircuitBreakerOptions() CircuitBreakerOptions {
	return CircuitBreakerOptions{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          time.Minute,
	}
}

// CircuitBreakerStats 熔断器统计
type CircuitBreakerStats struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	FailureCount     int       `json:"failure_count"`
	SuccessCount     int       `json:"success_count"`
	FailureThreshold int       `json:"failure_threshold"`
	SuccessThreshold int       `json:"success_threshold"`
	Timeout          string    `json:"timeout"`
	Rejected         int64     `json:"rejected"`
	LastFailureTime  time.Time `json:"last_failure_time,omitempty"`
}

// CircuitBreaker 熔断器
type CircuitBreaker struct {
	name string
	opts CircuitBreakerOptions
	now  func() time.Time

	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	rejected        int64
	lastFailureTime time.Time
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(name string, opts CircuitBreakerOptions) *CircuitBreaker {
	defaults := DefaultCircuitBreakerOptions()
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = defaults.FailureThreshold
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = defaults.SuccessThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	return &CircuitBreaker{name: name, opts: opts, now: time.Now}
}

// Name 返回熔断器名称
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call 执行函数调用（带熔断保护）；熔断时返回 ErrCircuitOpen
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && (cb.opts.IsFailure == nil || cb.opts.IsFailure(err)) {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.opts.Timeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			return true
		}
		cb.rejected++
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.opts.SuccessThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()
	switch cb.state {
	case StateHalfOpen:
		cb.state = StateOpen
		cb.successCount = 0
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.opts.FailureThreshold {
			cb.state = StateOpen
		}
	}
}

// GetState 获取当前状态
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats 获取统计信息
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:             cb.name,
		State:            cb.state.String(),
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		FailureThreshold: cb.opts.FailureThreshold,
		SuccessThreshold: cb.opts.SuccessThreshold,
		Timeout:          cb.opts.Timeout.String(),
		Rejected:         cb.rejected,
		LastFailureTime:  cb.lastFailureTime,
	}
}

// 全局熔断器管理
var (
	globalCircuitBreakers = make(map[string]*CircuitBreaker)
	circuitBreakerMutex   sync.RWMutex
)

// GetCircuitBreaker 获取或创建全局熔断器
func GetCircuitBreaker(name string, opts CircuitBreakerOptions) *CircuitBreaker {
	circuitBreakerMutex.RLock()
	cb, exists := globalCircuitBreakers[name]
	circuitBreakerMutex.RUnlock()
	if exists {
		return cb
	}

	circuitBreakerMutex.Lock()
	defer circuitBreakerMutex.Unlock()
	if cb, exists = globalCircuitBreakers[name]; exists {
		return cb
	}
	cb = NewCircuitBreaker(name, opts)
	globalCircuitBreakers[name] = cb
	return cb
}

// GetAllCircuitBreakers 获取所有熔断器状态，按名称排序
func GetAllCircuitBreakers() []CircuitBreakerStats {
	circuitBreakerMutex.RLock()
	defer circuitBreakerMutex.RUnlock()

	result := make([]CircuitBreakerStats, 0, len(globalCircuitBreakers))
	for _, cb := range globalCircuitBreakers {
		result = append(result, cb.GetStats())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
