package service

import "github.com/prometheus/client_golang/prometheus"

var (
	TaskMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planview_task_mutations_total",
		Help: "Committed task mutations by operation",
	}, []string{"op"})
	StepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planview_pipeline_step_failures_total",
		Help: "Best-effort pipeline steps that failed after commit",
	}, []string{"op", "step"})
	NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planview_notifications_total",
		Help: "Persisted notifications by event type",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(TaskMutations, StepFailures, NotificationsSent)
}
