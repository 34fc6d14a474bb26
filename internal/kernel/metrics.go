package kernel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are registered on a per-kernel registry so several kernels can
// live in one process (tests do this).
type metrics struct {
	ticks          prometheus.Counter
	tasksCreated   prometheus.Counter
	taskExits      prometheus.Counter
	createFailures *prometheus.CounterVec
	timeouts       *prometheus.CounterVec
	isrYields      prometheus.Counter
	inheritances   prometheus.Counter
	liveTasks      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtos",
			Name:      "ticks_total",
			Help:      "Kernel ticks processed",
		}),
		tasksCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtos",
			Name:      "tasks_created_total",
			Help:      "Task contexts created",
		}),
		taskExits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtos",
			Name:      "task_exits_total",
			Help:      "Task contexts released",
		}),
		createFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtos",
			Name:      "task_create_failures_total",
			Help:      "Task creations rejected by the kernel",
		}, []string{"reason"}),
		timeouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtos",
			Name:      "wait_timeouts_total",
			Help:      "Blocking waits that ended by timeout",
		}, []string{"object"}),
		isrYields: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtos",
			Name:      "isr_yields_total",
			Help:      "Yield requests issued on interrupt exit",
		}),
		inheritances: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtos",
			Name:      "priority_inheritance_total",
			Help:      "Mutex holders boosted to a waiter's priority",
		}),
		liveTasks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtos",
			Name:      "live_tasks",
			Help:      "Task contexts currently bound",
		}),
	}
}
