package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pool's Prometheus instruments. A nil *Metrics is valid
// and disables instrumentation.
type Metrics struct {
	tasksExecuted prometheus.Counter
	taskPanics    prometheus.Counter
}

// RegisterMetrics creates the pool's instruments on the given registerer
// and attaches them to the pool. Worker, idle and queue-depth gauges are
// sampled from the pool at scrape time.
func (p *Pool) RegisterMetrics(reg prometheus.Registerer) {
	f := promauto.With(reg)

	m := &Metrics{
		tasksExecuted: f.NewCounter(prometheus.CounterOpts{
			Name: "taskgrid_pool_tasks_executed_total",
			Help: "Number of thunks run to completion by pool workers.",
		}),
		taskPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "taskgrid_pool_task_panics_total",
			Help: "Number of submitted functions that panicked.",
		}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "taskgrid_pool_workers",
		Help: "Number of workers currently tracked by the pool.",
	}, func() float64 { return float64(p.Size()) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "taskgrid_pool_idle_workers",
		Help: "Number of workers parked on the wait condition.",
	}, func() float64 { return float64(p.IdleCount()) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "taskgrid_pool_queue_depth",
		Help: "Number of thunks waiting in the queue.",
	}, func() float64 { return float64(p.QueueLen()) })

	p.metrics.Store(m)
}

func (m *Metrics) countExecuted() {
	if m != nil {
		m.tasksExecuted.Inc()
	}
}

func (m *Metrics) countPanic() {
	if m != nil {
		m.taskPanics.Inc()
	}
}
