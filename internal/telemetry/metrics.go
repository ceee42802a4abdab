package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики Prometheus. Регистрируются в DefaultRegisterer при импорте
// пакета; каждый бинарь отдаёт их через promhttp на /metrics.
var (
	// FlowSubmissions — количество отправленных на выполнение canvas.
	FlowSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cds",
		Subsystem: "flows",
		Name:      "submissions_total",
		Help:      "Number of flow canvases submitted for execution.",
	})

	// TaskExecutions — выполненные задачи по имени и итоговому статусу.
	TaskExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cds",
		Subsystem: "tasks",
		Name:      "executions_total",
		Help:      "Number of task executions by task name and final status.",
	}, []string{"task", "status"})

	// TaskDuration — длительность выполнения задач по имени.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cds",
		Subsystem: "tasks",
		Name:      "execution_duration_seconds",
		Help:      "Task execution duration by task name.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"task"})

	// ActiveExecutions — количество исполняемых диспетчером цепочек.
	ActiveExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cds",
		Subsystem: "dispatcher",
		Name:      "active_executions",
		Help:      "Number of flow executions currently tracked by the dispatcher.",
	})

	// SweepRedeliveries — задачи, переотправленные sweep-проходом.
	SweepRedeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cds",
		Subsystem: "dispatcher",
		Name:      "sweep_redeliveries_total",
		Help:      "Number of pending tasks redelivered by the dispatcher sweep.",
	})
)
