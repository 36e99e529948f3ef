package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ExecutorCollector tracks the checkpoint executor's scheduling, watermark
// and retry behavior.
type ExecutorCollector struct {
	lastExecutedCheckpoint prometheus.Gauge
	lastSyncedCheckpoint   prometheus.Gauge
	scheduledCheckpoints   prometheus.Counter
	checkpointDuration     prometheus.Histogram
	laggedNotifications    prometheus.Counter
	executionRetries       prometheus.Counter
	reconfigurations       prometheus.Counter
}

// NewExecutorCollector registers and returns the executor collectors.
func NewExecutorCollector(registerer prometheus.Registerer) *ExecutorCollector {
	factory := promauto.With(registerer)
	return &ExecutorCollector{
		lastExecutedCheckpoint: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceExecution,
			Subsystem: subsystemExecutor,
			Name:      "last_executed_checkpoint",
			Help:      "sequence number of the highest executed checkpoint",
		}),
		lastSyncedCheckpoint: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceExecution,
			Subsystem: subsystemExecutor,
			Name:      "last_synced_checkpoint",
			Help:      "sequence number of the highest synced checkpoint observed",
		}),
		scheduledCheckpoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceExecution,
			Subsystem: subsystemExecutor,
			Name:      "scheduled_checkpoints_total",
			Help:      "number of checkpoints scheduled for execution",
		}),
		checkpointDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceExecution,
			Subsystem: subsystemExecutor,
			Name:      "checkpoint_execution_duration_seconds",
			Help:      "time from scheduling a checkpoint to durable effects",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60},
		}),
		laggedNotifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceExecution,
			Subsystem: subsystemExecutor,
			Name:      "lagged_sync_notifications_total",
			Help:      "number of times the sync subscription lagged and the executor fell back to the persisted watermark",
		}),
		executionRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceExecution,
			Subsystem: subsystemExecutor,
			Name:      "execution_retries_total",
			Help:      "number of transient execution failures that were retried",
		}),
		reconfigurations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceExecution,
			Subsystem: subsystemExecutor,
			Name:      "reconfigurations_total",
			Help:      "number of epoch reconfigurations triggered",
		}),
	}
}

// CheckpointExecuted records a watermark advance and the checkpoint's
// execution latency.
func (c *ExecutorCollector) CheckpointExecuted(sequenceNumber uint64, duration time.Duration) {
	c.lastExecutedCheckpoint.Set(float64(sequenceNumber))
	c.checkpointDuration.Observe(duration.Seconds())
}

// CheckpointSynced records the highest synced checkpoint observed.
func (c *ExecutorCollector) CheckpointSynced(sequenceNumber uint64) {
	c.lastSyncedCheckpoint.Set(float64(sequenceNumber))
}

// CheckpointScheduled records a checkpoint entering the task pool.
func (c *ExecutorCollector) CheckpointScheduled() {
	c.scheduledCheckpoints.Inc()
}

// SyncNotificationLagged records a dropped-notification fallback.
func (c *ExecutorCollector) SyncNotificationLagged() {
	c.laggedNotifications.Inc()
}

// ExecutionRetried records one transient-failure retry.
func (c *ExecutorCollector) ExecutionRetried() {
	c.executionRetries.Inc()
}

// ReconfigurationTriggered records an epoch transition broadcast.
func (c *ExecutorCollector) ReconfigurationTriggered() {
	c.reconfigurations.Inc()
}
