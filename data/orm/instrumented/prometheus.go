package instrumented

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder 以 Prometheus 指标记录模型操作
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusRecorder 创建并注册指标；reg 为 nil 时使用默认注册器。
//
// 重复注册时复用已存在的指标，便于多个 ORM 实例共享同一组指标。
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "repokit_orm_operations_total",
		Help: "按表、操作与结果统计的 ORM 操作次数",
	}, []string{"table", "op", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repokit_orm_operation_duration_seconds",
		Help:    "ORM 操作耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"table", "op"})

	var err error
	if operations, err = register(reg, operations); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &PrometheusRecorder{operations: operations, duration: duration}, nil
}

// Observe 实现 IRecorder
func (r *PrometheusRecorder) Observe(table, op string, err error, elapsed time.Duration) {
	r.operations.WithLabelValues(table, op, Status(err)).Inc()
	r.duration.WithLabelValues(table, op).Observe(elapsed.Seconds())
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}
