// Package metrics Prometheus指标
//
// 指标在InitMetrics中通过promauto注册到默认Registry，/metrics由promhttp暴露。
// 未初始化时所有辅助函数都是空操作，单元测试无需关心指标注册。
//
// 命名约定：<领域>_<对象>_<单位>，Counter以_total结尾，耗时以_seconds结尾。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// HTTP
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInProgress prometheus.Gauge

	// 订单
	OrdersCreatedTotal      prometheus.Counter
	OrdersFailedTotal       prometheus.Counter
	OrderCreationDuration   prometheus.Histogram
	OrderTransitionsTotal   *prometheus.CounterVec // label: to, source
	OrderSequenceConflicts  prometheus.Counter
	PaymentWebhooksTotal    *prometheus.CounterVec // label: result
	PaymentProviderDuration *prometheus.HistogramVec

	// 数字交付
	DownloadsIssuedTotal prometheus.Counter

	// 分账
	PayoutsTotal   *prometheus.CounterVec // label: result
	PayoutAmount   prometheus.Counter
	CartMergeTotal *prometheus.CounterVec // label: result

	// 熔断器
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec

	// Saga
	SagaExecutionsTotal    *prometheus.CounterVec
	SagaExecutionDuration  prometheus.Histogram
	SagaCompensationsTotal prometheus.Counter

	// 消息
	MessagesPublishedTotal *prometheus.CounterVec
)

// InitMetrics 注册所有指标，重复调用无副作用
func InitMetrics() {
	once.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP请求总数",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP请求耗时（秒）",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "path"})

	HTTPRequestsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_progress",
		Help: "正在处理的HTTP请求数",
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "订单创建总数",
	})

	OrdersFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "订单创建失败总数",
	})

	OrderCreationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_creation_duration_seconds",
		Help:    "订单创建耗时（秒）",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "订单状态流转次数",
	}, []string{"to", "source"})

	OrderSequenceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_sequence_conflicts_total",
		Help: "订单号唯一约束冲突次数（触发重试）",
	})

	PaymentWebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "支付回调处理结果",
	}, []string{"result"})

	PaymentProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_provider_request_duration_seconds",
		Help:    "支付服务商接口耗时（秒）",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation", "outcome"})

	DownloadsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "downloads_issued_total",
		Help: "签发的下载链接数",
	})

	PayoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_total",
		Help: "分账执行结果",
	}, []string{"result"})

	PayoutAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_amount_minor_total",
		Help: "已成功分账金额（最小货币单位）",
	})

	CartMergeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_total",
		Help: "登录时游客购物车合并结果",
	}, []string{"result"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
	}, []string{"name"})

	CircuitBreakerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_requests_total",
		Help: "熔断器请求总数",
	}, []string{"name", "result"})

	SagaExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_executions_total",
		Help: "Saga执行总数",
	}, []string{"saga", "status"})

	SagaExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "saga_execution_duration_seconds",
		Help:    "Saga执行耗时（秒）",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
	})

	SagaCompensationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saga_compensations_total",
		Help: "Saga补偿执行总数",
	})

	MessagesPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_published_total",
		Help: "发布的领域事件数",
	}, []string{"routing_key", "status"})
}

// IncCounter Counter加1
func IncCounter(counter prometheus.Counter) {
	if counter != nil {
		counter.Inc()
	}
}

// AddCounter Counter增加指定值
func AddCounter(counter prometheus.Counter, v float64) {
	if counter != nil {
		counter.Add(v)
	}
}

// IncCounterVec 带标签的Counter加1
func IncCounterVec(counter *prometheus.CounterVec, labels map[string]string) {
	if counter != nil {
		counter.With(labels).Inc()
	}
}

// IncGauge Gauge加1
func IncGauge(gauge prometheus.Gauge) {
	if gauge != nil {
		gauge.Inc()
	}
}

// DecGauge Gauge减1
func DecGauge(gauge prometheus.Gauge) {
	if gauge != nil {
		gauge.Dec()
	}
}

// SetGaugeVec 设置带标签的Gauge
func SetGaugeVec(gauge *prometheus.GaugeVec, labels map[string]string, value float64) {
	if gauge != nil {
		gauge.With(labels).Set(value)
	}
}

// ObserveHistogram 记录Histogram观测值
func ObserveHistogram(histogram prometheus.Histogram, value float64) {
	if histogram != nil {
		histogram.Observe(value)
	}
}

// ObserveHistogramVec 记录带标签的Histogram观测值
func ObserveHistogramVec(histogram *prometheus.HistogramVec, labels map[string]string, value float64) {
	if histogram != nil {
		histogram.With(labels).Observe(value)
	}
}
